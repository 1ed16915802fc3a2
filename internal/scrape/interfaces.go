package scrape

import (
	"context"
	"time"
)

// Invocation is one request to the external engine process.
type Invocation struct {
	// URLs to fetch. A single-element slice selects single mode; more than
	// one element selects the engine's batch mode.
	URLs []string
	// ConfigJSON is the serialized tuning record passed as the engine's
	// second argument. Empty means no config argument.
	ConfigJSON string
}

// ProcessOutput is everything a finished (or killed) engine process left
// behind. Stdout carries only the JSON payload; diagnostics go to stderr.
type ProcessOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner launches one engine process and waits for it. Implementations must
// honor ctx cancellation by killing the process. The returned error reports
// spawn problems only; a non-zero exit is not an error.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (ProcessOutput, error)
}

// Hasher derives the cache storage key from a source URL.
type Hasher interface {
	HashURL(url string) string
}

// Clock returns the current time (swappable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs for batch invocations.
type IDGenerator interface {
	NewID() (string, error)
}

// Cache is the bounded content store populated by successful fetches.
type Cache interface {
	Put(outcome ExecutionOutcome) error
	Get(url string) (CacheEntry, bool)
	Search(query string, limit int) []CacheEntry
	List(limit int) []CacheEntry
	Stats() CacheStats
	Clear() error
}
