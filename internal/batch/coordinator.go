// Package batch delegates a list of URLs to a single aggregate engine
// invocation and folds the per-URL results into the content cache. The
// engine owns all fan-out concurrency; this layer makes exactly one
// subprocess call per batch and waits for it.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mbellhart/crawlcache/internal/executor"
	"github.com/mbellhart/crawlcache/internal/metrics"
	"github.com/mbellhart/crawlcache/internal/resultcodec"
	"github.com/mbellhart/crawlcache/internal/scrape"
)

// DefaultMaxBatchSize bounds how many URLs one batch may carry.
const DefaultMaxBatchSize = 50

// DefaultTimeout bounds the aggregate invocation when unconfigured.
const DefaultTimeout = 10 * time.Minute

// InvocationError reports an aggregate-level failure: the engine produced
// no parseable response at all, so there are no partial results to salvage.
type InvocationError struct {
	Kind    scrape.FailureKind
	Message string
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("batch invocation failed (%s): %s", e.Kind, e.Message)
}

// Coordinator runs aggregate engine invocations and populates the cache.
type Coordinator struct {
	runner       scrape.Runner
	cache        scrape.Cache
	ids          scrape.IDGenerator
	timeout      time.Duration
	maxBatchSize int
	logger       *zap.Logger
}

// New constructs a Coordinator.
func New(runner scrape.Runner, cache scrape.Cache, ids scrape.IDGenerator, timeout time.Duration, maxBatchSize int, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		runner:       runner,
		cache:        cache,
		ids:          ids,
		timeout:      timeout,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// ExecuteBatch fetches every URL through one engine invocation. Outcomes
// preserve input order. Every successful outcome is written to the cache
// before return; failures are never cached. An error return means the
// aggregate invocation itself failed (or the cache directory is unusable)
// and no per-URL outcomes exist.
func (c *Coordinator) ExecuteBatch(ctx context.Context, urls []string, cfg scrape.BatchConfig) (scrape.BatchOutcome, error) {
	if len(urls) == 0 {
		return scrape.BatchOutcome{}, fmt.Errorf("batch is empty")
	}
	if len(urls) > c.maxBatchSize {
		return scrape.BatchOutcome{}, fmt.Errorf("batch of %d urls exceeds the limit of %d", len(urls), c.maxBatchSize)
	}

	runID, err := c.ids.NewID()
	if err != nil {
		return scrape.BatchOutcome{}, fmt.Errorf("generate run id: %w", err)
	}

	// Syntactically invalid URLs never reach the engine; they become
	// per-URL validation failures while the rest of the batch proceeds.
	invalid := make(map[string]string, len(urls))
	valid := make([]string, 0, len(urls))
	for _, u := range urls {
		if vErr := scrape.ValidateURL(u); vErr != nil {
			invalid[u] = vErr.Error()
			continue
		}
		valid = append(valid, u)
	}

	outcome := scrape.BatchOutcome{RunID: runID}
	started := time.Now()

	var records []resultcodec.Record
	if len(valid) > 0 {
		records, err = c.invoke(ctx, valid, cfg)
		if err != nil {
			metrics.ObserveBatch("failed", time.Since(started))
			return scrape.BatchOutcome{}, err
		}
	}
	outcome.WallClockMillis = time.Since(started).Milliseconds()

	claimed := make([]bool, len(records))
	for _, u := range urls {
		if msg, ok := invalid[u]; ok {
			outcome.Outcomes = append(outcome.Outcomes, scrape.Failure(u, scrape.FailureValidation, msg))
			continue
		}
		outcome.Outcomes = append(outcome.Outcomes, claimRecord(u, records, claimed))
	}

	for _, o := range outcome.Outcomes {
		if !o.Succeeded {
			outcome.FailureCount++
			continue
		}
		outcome.SuccessCount++
		if putErr := c.cache.Put(o); putErr != nil {
			metrics.ObserveBatch("failed", time.Since(started))
			return scrape.BatchOutcome{}, fmt.Errorf("cache batch result: %w", putErr)
		}
	}

	metrics.ObserveBatch("completed", time.Since(started))
	c.logger.Info("batch finished",
		zap.String("run_id", runID),
		zap.Int("urls", len(urls)),
		zap.Int("succeeded", outcome.SuccessCount),
		zap.Int("failed", outcome.FailureCount),
		zap.Int64("wall_clock_ms", outcome.WallClockMillis))
	return outcome, nil
}

func (c *Coordinator) invoke(ctx context.Context, urls []string, cfg scrape.BatchConfig) ([]resultcodec.Record, error) {
	configJSON, err := executor.EncodeConfig(cfg)
	if err != nil {
		return nil, &InvocationError{Kind: scrape.FailureValidation, Message: err.Error()}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, runErr := c.runner.Run(runCtx, scrape.Invocation{URLs: urls, ConfigJSON: configJSON})
	if runErr != nil {
		switch runCtx.Err() {
		case context.DeadlineExceeded:
			return nil, &InvocationError{Kind: scrape.FailureTimeout, Message: "engine exceeded " + c.timeout.String()}
		case nil:
			return nil, &InvocationError{Kind: scrape.FailureSpawn, Message: runErr.Error()}
		default:
			return nil, &InvocationError{Kind: scrape.FailureCanceled, Message: "batch canceled by caller"}
		}
	}
	switch runCtx.Err() {
	case context.DeadlineExceeded:
		return nil, &InvocationError{Kind: scrape.FailureTimeout, Message: "engine exceeded " + c.timeout.String()}
	case nil:
	default:
		return nil, &InvocationError{Kind: scrape.FailureCanceled, Message: "batch canceled by caller"}
	}

	records, parseErr := resultcodec.DecodeBatch(out.Stdout)
	if parseErr != nil {
		if out.ExitCode != 0 {
			msg := strings.TrimSpace(string(out.Stderr))
			if msg == "" {
				msg = parseErr.Error()
			}
			return nil, &InvocationError{Kind: scrape.FailureProcess, Message: msg}
		}
		return nil, &InvocationError{
			Kind:    scrape.FailureMalformed,
			Message: parseErr.Error() + "; raw output: " + resultcodec.RawSample(out.Stdout),
		}
	}
	return records, nil
}

// claimRecord finds the first unclaimed engine record for a URL. The engine
// may complete URLs in any order internally; matching by URL restores input
// order. A URL with no record means the aggregate response was incomplete.
func claimRecord(url string, records []resultcodec.Record, claimed []bool) scrape.ExecutionOutcome {
	for i, rec := range records {
		if claimed[i] || rec.URL != url {
			continue
		}
		claimed[i] = true
		return rec.Outcome(url)
	}
	return scrape.Failure(url, scrape.FailureMalformed, "engine returned no record for url")
}
