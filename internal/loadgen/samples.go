package loadgen

// sampleMessages is the pool of chat prompts simulated users send.
var sampleMessages = []string{
	"What is the capital of France?",
	"Explain quantum computing in simple terms.",
	"Write a haiku about databases.",
	"How do connection pools work in PostgreSQL?",
	"What are the ACID properties?",
	"Describe the difference between SQL and NoSQL.",
	"What is a deadlock and how can it be prevented?",
	"Explain the CAP theorem.",
	"What is eventual consistency?",
	"How does Raft consensus work?",
	"What are the benefits of microservices?",
	"Explain the observer pattern.",
	"What is the difference between threads and processes?",
	"How does garbage collection work?",
	"What is a race condition?",
}

// searchTerms feed the search endpoint; most occur in sampleMessages so
// searches regularly hit.
var searchTerms = []string{
	"quantum", "database", "PostgreSQL", "connection", "deadlock",
	"ACID", "consistency", "Raft", "consensus", "microservices",
	"observer", "threads", "garbage", "race", "capital",
	"connection pool", "CAP theorem", "garbage collection",
	"kubernetes", "terraform", "monitoring",
}
