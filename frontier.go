package kura

import "context"

// Task is a unit of crawl work: one URL at one link distance from the seed.
type Task struct {
	// URL is the absolute URL to fetch.
	URL string

	// Key is the canonical form of URL used for de-duplication.
	Key string

	// Depth is the number of link hops from the seed, which has depth 0.
	Depth int
}

// URLFrontier holds pending tasks and the set of visited keys.
type URLFrontier interface {
	// Push queues a task. Returns false if its key was already visited
	// or is already queued.
	Push(task Task) bool

	// Next returns the next task to dispatch and marks its key visited.
	// Returns false if nothing is queued.
	Next() (Task, bool)

	// Len returns the number of queued tasks.
	Len() int

	// Seen returns true if key has been dispatched or queued.
	Seen(key string) bool
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
