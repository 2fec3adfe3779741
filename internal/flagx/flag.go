// Package flagx contains flag-parsing helpers shared by the server and the
// load-harness binaries.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns only the arguments that belong to one of the allowed
// flags. Both the "-f value" and "-f=value" (or "--flag=value") spellings
// are recognized; for the two-token spelling the value is kept together
// with its flag. Everything else, including positional arguments and flags
// not listed in allowed, is dropped.
//
// Components use this to pick their own flags out of os.Args without
// tripping over flags registered elsewhere (the test binary's -test.*
// flags included).
func FilterArgs(args []string, allowed []string) []string {
	keep := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		keep[name] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "-f=value" spelling: match on the part before the first '='.
		if name, _, found := strings.Cut(arg, "="); found && strings.HasPrefix(arg, "-") {
			if keep[name] {
				out = append(out, arg)
			}
			continue
		}

		if !keep[arg] {
			continue
		}
		out = append(out, arg)
		// A following token that does not itself look like a flag is this
		// flag's value.
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// JsonConfigFlags returns the config file path passed via -c or -config,
// or an empty string when neither flag is present. Other arguments are
// ignored, so callers can invoke it before their own flag parsing.
func JsonConfigFlags() string {
	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	var path string
	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(args)

	return path
}
