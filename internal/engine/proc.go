// Package engine runs the external scraping engine as a subprocess. The
// engine is consumed purely through its stdin-less argv/stdout contract:
// URLs and a config record go in as arguments, one JSON payload comes back
// on stdout, diagnostics on stderr.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mbellhart/crawlcache/internal/scrape"
)

// killGracePeriod is how long Wait keeps draining the stdout/stderr pipes
// after the process is killed. The engine forks renderer children that
// inherit the pipes; without this bound a kill would block until every
// descendant exits.
const killGracePeriod = time.Second

// Config locates the engine executable.
type Config struct {
	// Command is the interpreter or binary to launch, e.g. "python3".
	Command string `mapstructure:"command" yaml:"command"`
	// Script is the engine wrapper script path, passed as the first
	// argument. Empty when Command is a self-contained binary.
	Script string `mapstructure:"script" yaml:"script"`
}

// ProcRunner implements scrape.Runner with a real subprocess per call.
// It is stateless; concurrent Run calls spawn independent processes.
type ProcRunner struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a ProcRunner.
func New(cfg Config, logger *zap.Logger) (*ProcRunner, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("engine command is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcRunner{cfg: cfg, logger: logger}, nil
}

// Run launches one engine process and waits for it to exit or for ctx to
// expire, in which case the process is killed. A non-zero exit status is not
// an error; only a process that never started produces one.
func (r *ProcRunner) Run(ctx context.Context, inv scrape.Invocation) (scrape.ProcessOutput, error) {
	args := make([]string, 0, len(inv.URLs)+2)
	if r.cfg.Script != "" {
		args = append(args, r.cfg.Script)
	}
	args = append(args, inv.URLs...)
	if inv.ConfigJSON != "" {
		args = append(args, inv.ConfigJSON)
	}

	cmd := exec.CommandContext(ctx, r.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Run the engine in its own process group and kill the whole group on
	// ctx expiry, so renderer descendants die with the wrapper instead of
	// keeping the pipes open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = killGracePeriod

	if err := cmd.Start(); err != nil {
		return scrape.ProcessOutput{}, fmt.Errorf("start engine process: %w", err)
	}
	r.logger.Debug("engine process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("urls", len(inv.URLs)))

	waitErr := cmd.Wait()
	out := scrape.ProcessOutput{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
	}
	// ErrWaitDelay means the process finished but an inheriting descendant
	// still held the pipes past the grace period; the output we have is
	// all there will be.
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) &&
		!errors.Is(waitErr, exec.ErrWaitDelay) && ctx.Err() == nil {
		return out, fmt.Errorf("wait for engine process: %w", waitErr)
	}
	return out, nil
}
