// Package common defines shared constants and sentinel errors used across
// the chatdb server and load-harness layers. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound   = errors.New("not found")
	ErrorConstraint = errors.New("constraint violation")

	// Transaction-level errors.
	ErrSerializationFailure = errors.New("serialization failure")

	// Pool-level errors (acquisition wait bound exceeded).
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
)
