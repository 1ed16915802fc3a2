package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mbellhart/crawlcache/internal/scrape"
)

func TestNew_RequiresCommand(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, zap.NewNop())
	require.Error(t, err)
}

func TestProcRunner_CapturesStdoutAndExitCode(t *testing.T) {
	t.Parallel()

	r, err := New(Config{Command: "/bin/sh", Script: "-c"}, zap.NewNop())
	require.NoError(t, err)

	out, err := r.Run(context.Background(), scrape.Invocation{
		URLs: []string{`printf '{"success": true}'`},
	})
	require.NoError(t, err)
	require.Equal(t, 0, out.ExitCode)
	require.Equal(t, `{"success": true}`, string(out.Stdout))
}

func TestProcRunner_SeparatesStderr(t *testing.T) {
	t.Parallel()

	r, err := New(Config{Command: "/bin/sh", Script: "-c"}, zap.NewNop())
	require.NoError(t, err)

	out, err := r.Run(context.Background(), scrape.Invocation{
		URLs: []string{`printf payload; printf diagnostics >&2`},
	})
	require.NoError(t, err)
	require.Equal(t, "payload", string(out.Stdout))
	require.Equal(t, "diagnostics", string(out.Stderr))
}

func TestProcRunner_NonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()

	r, err := New(Config{Command: "/bin/sh", Script: "-c"}, zap.NewNop())
	require.NoError(t, err)

	out, err := r.Run(context.Background(), scrape.Invocation{
		URLs: []string{`printf 'boom' >&2; exit 3`},
	})
	require.NoError(t, err)
	require.Equal(t, 3, out.ExitCode)
	require.Equal(t, "boom", string(out.Stderr))
}

func TestProcRunner_MissingExecutableFailsToSpawn(t *testing.T) {
	t.Parallel()

	r, err := New(Config{Command: "/nonexistent/engine-binary"}, zap.NewNop())
	require.NoError(t, err)

	_, err = r.Run(context.Background(), scrape.Invocation{URLs: []string{"https://example.com"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "start engine process")
}

func TestProcRunner_KilledOnContextTimeout(t *testing.T) {
	t.Parallel()

	r, err := New(Config{Command: "/bin/sh", Script: "-c"}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	out, err := r.Run(ctx, scrape.Invocation{URLs: []string{"sleep 30"}})
	elapsed := time.Since(started)

	require.NoError(t, err)
	require.NotEqual(t, 0, out.ExitCode)
	require.Less(t, elapsed, 5*time.Second, "process must be killed near the deadline, not waited out")
}

func TestProcRunner_KillsDescendantsHoldingPipes(t *testing.T) {
	t.Parallel()

	r, err := New(Config{Command: "/bin/sh", Script: "-c"}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// The backgrounded sleep inherits the stdout pipe; killing only the
	// shell would leave it open and stall Run for the full 30 seconds.
	started := time.Now()
	out, err := r.Run(ctx, scrape.Invocation{URLs: []string{"sleep 30 & wait"}})
	elapsed := time.Since(started)

	require.NoError(t, err)
	require.NotEqual(t, 0, out.ExitCode)
	require.Less(t, elapsed, 3*time.Second, "descendants must die with the wrapper")
}

func TestProcRunner_PassesURLsAndConfigAsArguments(t *testing.T) {
	t.Parallel()

	// Echo back the arguments so the argv contract is observable.
	r, err := New(Config{Command: "/bin/echo"}, zap.NewNop())
	require.NoError(t, err)

	out, err := r.Run(context.Background(), scrape.Invocation{
		URLs:       []string{"https://a.test", "https://b.test"},
		ConfigJSON: `{"max_sessions":4}`,
	})
	require.NoError(t, err)
	echoed := strings.TrimSpace(string(out.Stdout))
	require.Equal(t, `https://a.test https://b.test {"max_sessions":4}`, echoed)
}
