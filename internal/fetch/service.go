// Package fetch wires the single-URL path: consult the cache first, invoke
// the executor on a miss, and persist the result before returning it.
package fetch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mbellhart/crawlcache/internal/scrape"
)

// Executor runs one engine invocation for one URL.
type Executor interface {
	Execute(ctx context.Context, url string, cfg scrape.FetchConfig, timeout time.Duration) scrape.ExecutionOutcome
}

// Result is a fetch answer plus its provenance.
type Result struct {
	Outcome   scrape.ExecutionOutcome `json:"outcome"`
	FromCache bool                    `json:"from_cache"`
	// Entry is set when the answer came from the cache, carrying the
	// access bookkeeping fields.
	Entry *scrape.CacheEntry `json:"entry,omitempty"`
}

// Service answers single-URL fetch requests against the cache and executor.
type Service struct {
	cache    scrape.Cache
	executor Executor
	logger   *zap.Logger
}

// New constructs a Service.
func New(cache scrape.Cache, executor Executor, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cache: cache, executor: executor, logger: logger}
}

// Fetch returns the cached entry for url when one exists, unless force is
// set. On a miss (or forced refetch) the executor runs and a successful
// outcome is written to the cache — overwriting any prior entry wholesale —
// before the outcome is returned. Failed outcomes are never cached.
func (s *Service) Fetch(ctx context.Context, url string, cfg scrape.FetchConfig, timeout time.Duration, force bool) (Result, error) {
	if !force {
		if entry, ok := s.cache.Get(url); ok {
			s.logger.Debug("cache hit", zap.String("url", url),
				zap.Int("access_count", entry.AccessCount))
			return Result{
				Outcome: scrape.ExecutionOutcome{
					URL:              entry.SourceURL,
					Succeeded:        true,
					Title:            entry.Title,
					Body:             entry.Body,
					StatusCode:       entry.StatusCode,
					RawContentLength: entry.ContentLength,
				},
				FromCache: true,
				Entry:     &entry,
			}, nil
		}
	}

	outcome := s.executor.Execute(ctx, url, cfg, timeout)
	if outcome.Succeeded {
		if err := s.cache.Put(outcome); err != nil {
			return Result{}, err
		}
	}
	return Result{Outcome: outcome}, nil
}
