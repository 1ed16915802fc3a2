// Package executor invokes the external engine for a single URL, bounding
// it with a wall-clock timeout and classifying every way the invocation can
// go wrong. Failures come back as outcome values, never as errors, so
// callers can aggregate them. The executor does not retry; callers wanting
// resilience wrap Execute themselves.
package executor

import (
	"context"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/mbellhart/crawlcache/internal/metrics"
	"github.com/mbellhart/crawlcache/internal/resultcodec"
	"github.com/mbellhart/crawlcache/internal/scrape"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout bounds an engine invocation when the caller passes zero.
const DefaultTimeout = 60 * time.Second

// Executor runs single-URL engine invocations.
type Executor struct {
	runner  scrape.Runner
	timeout time.Duration
	logger  *zap.Logger
}

// New constructs an Executor with a default per-call timeout.
func New(runner scrape.Runner, timeout time.Duration, logger *zap.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{runner: runner, timeout: timeout, logger: logger}
}

// Execute fetches one URL through the engine. timeout overrides the
// executor default when positive. The outcome classification is the core
// contract: Timeout, SpawnFailure, ProcessFailure, MalformedResponse, and
// the engine's own reported failure are all distinct.
func (e *Executor) Execute(ctx context.Context, url string, cfg scrape.FetchConfig, timeout time.Duration) scrape.ExecutionOutcome {
	if err := scrape.ValidateURL(url); err != nil {
		return e.observe(scrape.Failure(url, scrape.FailureValidation, err.Error()))
	}
	if timeout <= 0 {
		timeout = e.timeout
	}

	configJSON, err := EncodeConfig(cfg)
	if err != nil {
		return e.observe(scrape.Failure(url, scrape.FailureValidation, err.Error()))
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	out, runErr := e.runner.Run(runCtx, scrape.Invocation{
		URLs:       []string{url},
		ConfigJSON: configJSON,
	})
	elapsed := time.Since(started)

	if runErr != nil {
		switch runCtx.Err() {
		case context.DeadlineExceeded:
			return e.observe(timeoutFailure(url, timeout))
		case nil:
			return e.observe(scrape.Failure(url, scrape.FailureSpawn, runErr.Error()))
		default:
			return e.observe(canceledFailure(url))
		}
	}
	switch runCtx.Err() {
	case context.DeadlineExceeded:
		return e.observe(timeoutFailure(url, timeout))
	case nil:
	default:
		// Caller cancellation, typically an interrupt signal. Distinct
		// from both the deadline kill and a genuine engine crash.
		return e.observe(canceledFailure(url))
	}

	e.logger.Debug("engine invocation finished",
		zap.String("url", url),
		zap.Int("exit_code", out.ExitCode),
		zap.Duration("elapsed", elapsed))

	// The engine may exit non-zero yet still print a well-formed failure
	// record; a parsed record always wins over exit-code classification.
	rec, parseErr := resultcodec.DecodeSingle(out.Stdout)
	if parseErr == nil {
		return e.observe(rec.Outcome(url))
	}
	if out.ExitCode != 0 {
		msg := strings.TrimSpace(string(out.Stderr))
		if msg == "" {
			msg = parseErr.Error()
		}
		return e.observe(scrape.Failure(url, scrape.FailureProcess, msg))
	}
	return e.observe(scrape.Failure(url, scrape.FailureMalformed,
		parseErr.Error()+"; raw output: "+resultcodec.RawSample(out.Stdout)))
}

func (e *Executor) observe(outcome scrape.ExecutionOutcome) scrape.ExecutionOutcome {
	if outcome.Succeeded {
		metrics.ObserveExecution("success")
		return outcome
	}
	metrics.ObserveExecution(string(outcome.FailureKind))
	e.logger.Info("fetch failed",
		zap.String("url", outcome.URL),
		zap.String("kind", string(outcome.FailureKind)),
		zap.String("message", outcome.FailureMessage))
	return outcome
}

func timeoutFailure(url string, timeout time.Duration) scrape.ExecutionOutcome {
	return scrape.Failure(url, scrape.FailureTimeout,
		"engine exceeded "+timeout.String()+" and was killed")
}

func canceledFailure(url string) scrape.ExecutionOutcome {
	return scrape.Failure(url, scrape.FailureCanceled, "fetch canceled by caller")
}

// EncodeConfig serializes a fetch or batch config record for the engine's
// config argument. Zero-valued configs encode to an empty string so the
// engine's own defaults apply.
func EncodeConfig(cfg any) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if string(data) == "{}" {
		return "", nil
	}
	return string(data), nil
}
