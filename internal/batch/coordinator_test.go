package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mbellhart/crawlcache/internal/scrape"
)

type fakeRunner struct {
	out          scrape.ProcessOutput
	err          error
	blockUntilMs int
	lastInv      scrape.Invocation
	calls        int
}

func (r *fakeRunner) Run(ctx context.Context, inv scrape.Invocation) (scrape.ProcessOutput, error) {
	r.calls++
	r.lastInv = inv
	if r.blockUntilMs > 0 {
		select {
		case <-ctx.Done():
			return scrape.ProcessOutput{ExitCode: -1}, ctx.Err()
		case <-time.After(time.Duration(r.blockUntilMs) * time.Millisecond):
		}
	}
	return r.out, r.err
}

// fakeCache records puts and can simulate an unusable directory.
type fakeCache struct {
	puts   []scrape.ExecutionOutcome
	putErr error
}

func (c *fakeCache) Put(outcome scrape.ExecutionOutcome) error {
	if c.putErr != nil {
		return c.putErr
	}
	c.puts = append(c.puts, outcome)
	return nil
}

func (c *fakeCache) Get(string) (scrape.CacheEntry, bool)   { return scrape.CacheEntry{}, false }
func (c *fakeCache) Search(string, int) []scrape.CacheEntry { return nil }
func (c *fakeCache) List(int) []scrape.CacheEntry           { return nil }
func (c *fakeCache) Stats() scrape.CacheStats               { return scrape.CacheStats{} }
func (c *fakeCache) Clear() error                           { return nil }

type fakeIDs struct{}

func (fakeIDs) NewID() (string, error) { return "run-0001", nil }

func newTestCoordinator(runner *fakeRunner, cache *fakeCache) *Coordinator {
	return New(runner, cache, fakeIDs{}, time.Second, 10, zap.NewNop())
}

func TestExecuteBatch_OrderPreservedAcrossOutOfOrderRecords(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: scrape.ProcessOutput{Stdout: []byte(`[
		{"success": true, "markdown": "c", "url": "https://c.test", "status_code": 200},
		{"success": true, "markdown": "a", "url": "https://a.test", "status_code": 200},
		{"success": false, "url": "https://b.test", "error": "unreachable"}
	]`)}}
	cache := &fakeCache{}
	c := newTestCoordinator(runner, cache)

	urls := []string{"https://a.test", "https://b.test", "https://c.test"}
	outcome, err := c.ExecuteBatch(context.Background(), urls, scrape.BatchConfig{})
	require.NoError(t, err)

	require.Len(t, outcome.Outcomes, 3)
	for i, u := range urls {
		require.Equal(t, u, outcome.Outcomes[i].URL)
	}
	require.Equal(t, 2, outcome.SuccessCount)
	require.Equal(t, 1, outcome.FailureCount)
	require.Equal(t, "run-0001", outcome.RunID)
	require.Equal(t, 1, runner.calls, "the whole batch must go to one invocation")
}

func TestExecuteBatch_SuccessesCachedFailuresNot(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: scrape.ProcessOutput{Stdout: []byte(`[
		{"success": true, "markdown": "body a", "url": "https://a.test", "status_code": 200},
		{"success": false, "url": "https://b.test", "error": "timeout upstream"}
	]`)}}
	cache := &fakeCache{}
	c := newTestCoordinator(runner, cache)

	_, err := c.ExecuteBatch(context.Background(), []string{"https://a.test", "https://b.test"}, scrape.BatchConfig{})
	require.NoError(t, err)

	require.Len(t, cache.puts, 1)
	require.Equal(t, "https://a.test", cache.puts[0].URL)
}

func TestExecuteBatch_RejectsEmptyList(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	c := newTestCoordinator(runner, &fakeCache{})

	_, err := c.ExecuteBatch(context.Background(), nil, scrape.BatchConfig{})
	require.Error(t, err)
	require.Zero(t, runner.calls)
}

func TestExecuteBatch_RejectsOversizedList(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	c := New(runner, &fakeCache{}, fakeIDs{}, time.Second, 2, zap.NewNop())

	urls := []string{"https://a.test", "https://b.test", "https://c.test"}
	_, err := c.ExecuteBatch(context.Background(), urls, scrape.BatchConfig{})
	require.Error(t, err)
	require.Zero(t, runner.calls)
}

func TestExecuteBatch_InvalidURLBecomesPerURLFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: scrape.ProcessOutput{Stdout: []byte(`[
		{"success": true, "markdown": "a", "url": "https://a.test", "status_code": 200}
	]`)}}
	c := newTestCoordinator(runner, &fakeCache{})

	outcome, err := c.ExecuteBatch(context.Background(), []string{"https://a.test", "not-a-url"}, scrape.BatchConfig{})
	require.NoError(t, err)

	require.Len(t, outcome.Outcomes, 2)
	require.True(t, outcome.Outcomes[0].Succeeded)
	require.Equal(t, scrape.FailureValidation, outcome.Outcomes[1].FailureKind)
	require.Equal(t, []string{"https://a.test"}, runner.lastInv.URLs,
		"invalid urls must not reach the engine")
}

func TestExecuteBatch_MissingRecordBecomesPerURLFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: scrape.ProcessOutput{Stdout: []byte(`[
		{"success": true, "markdown": "a", "url": "https://a.test", "status_code": 200}
	]`)}}
	c := newTestCoordinator(runner, &fakeCache{})

	outcome, err := c.ExecuteBatch(context.Background(), []string{"https://a.test", "https://b.test"}, scrape.BatchConfig{})
	require.NoError(t, err)

	require.Equal(t, scrape.FailureMalformed, outcome.Outcomes[1].FailureKind)
	require.Equal(t, 1, outcome.SuccessCount)
	require.Equal(t, 1, outcome.FailureCount)
}

func TestExecuteBatch_AggregateSpawnFailureFailsWholeBatch(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("start engine process: not found")}
	c := newTestCoordinator(runner, &fakeCache{})

	_, err := c.ExecuteBatch(context.Background(), []string{"https://a.test"}, scrape.BatchConfig{})
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, scrape.FailureSpawn, invErr.Kind)
}

func TestExecuteBatch_AggregateTimeoutFailsWholeBatch(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{blockUntilMs: 5000}
	c := New(runner, &fakeCache{}, fakeIDs{}, 100*time.Millisecond, 10, zap.NewNop())

	_, err := c.ExecuteBatch(context.Background(), []string{"https://a.test"}, scrape.BatchConfig{})
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, scrape.FailureTimeout, invErr.Kind)
}

func TestExecuteBatch_CallerCancellationFailsWholeBatch(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{blockUntilMs: 5000}
	c := New(runner, &fakeCache{}, fakeIDs{}, 10*time.Second, 10, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.ExecuteBatch(ctx, []string{"https://a.test"}, scrape.BatchConfig{})
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, scrape.FailureCanceled, invErr.Kind,
		"an interrupt is not a spawn failure")
}

func TestExecuteBatch_MalformedAggregateFailsWholeBatch(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: scrape.ProcessOutput{Stdout: []byte("progress: 50%...")}}
	c := newTestCoordinator(runner, &fakeCache{})

	_, err := c.ExecuteBatch(context.Background(), []string{"https://a.test"}, scrape.BatchConfig{})
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, scrape.FailureMalformed, invErr.Kind)
}

func TestExecuteBatch_CachePutFailureIsFatal(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: scrape.ProcessOutput{Stdout: []byte(`[
		{"success": true, "markdown": "a", "url": "https://a.test", "status_code": 200}
	]`)}}
	cache := &fakeCache{putErr: errors.New("write cache record: disk full")}
	c := newTestCoordinator(runner, cache)

	_, err := c.ExecuteBatch(context.Background(), []string{"https://a.test"}, scrape.BatchConfig{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestExecuteBatch_ConfigForwardedOpaquely(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{out: scrape.ProcessOutput{Stdout: []byte(`[]`)}}
	c := newTestCoordinator(runner, &fakeCache{})

	_, err := c.ExecuteBatch(context.Background(), []string{"https://a.test"}, scrape.BatchConfig{
		Strategy:    "full-render",
		MaxSessions: 8,
	})
	require.NoError(t, err)
	require.Contains(t, runner.lastInv.ConfigJSON, `"strategy":"full-render"`)
	require.Contains(t, runner.lastInv.ConfigJSON, `"max_sessions":8`)
}
