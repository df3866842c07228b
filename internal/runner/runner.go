// Package runner is the single point where external process failures become
// domain errors. Every pipeline stage and archival step goes through a Runner
// so tests can intercept commands and dry-run mode can plan without side
// effects.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/polsommer/HDtextureDDS/internal/logging"
)

// ErrExternalTool marks a command that exited non-zero. The wrapped message
// carries the captured stderr (or stdout when stderr is empty) verbatim.
var ErrExternalTool = errors.New("external tool failed")

// Output carries the captured streams of a completed command.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// Exec runs commands for real, blocking until completion.
type Exec struct {
	logger *slog.Logger
}

// NewExec constructs the real runner.
func NewExec(logger *slog.Logger) *Exec {
	return &Exec{logger: logging.NewComponentLogger(logger, "runner")}
}

// Run spawns the command and captures stdout/stderr separately. A non-zero
// exit is surfaced as ErrExternalTool carrying the captured error text.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("exec", slog.String("command", name), slog.Any("args", args))

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return out, fmt.Errorf("%s: %w", name, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(out.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(out.Stdout)
		}
		if detail == "" {
			detail = exitErr.Error()
		}
		return out, fmt.Errorf("%w: %s: %s", ErrExternalTool, name, detail)
	}
	return out, fmt.Errorf("start %s: %w", name, err)
}

// DryRun never spawns anything; every call succeeds and the planned command
// is recorded for inspection.
type DryRun struct {
	mu      sync.Mutex
	planned []string
}

// NewDryRun constructs a planning runner.
func NewDryRun() *DryRun {
	return &DryRun{}
}

// Run records the command line and reports success.
func (d *DryRun) Run(_ context.Context, name string, args ...string) (Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.planned = append(d.planned, FormatCommand(name, args...))
	return Output{}, nil
}

// Planned returns the command lines recorded so far.
func (d *DryRun) Planned() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.planned...)
}

// Func adapts a function to the Runner interface for tests.
type Func func(ctx context.Context, name string, args ...string) (Output, error)

func (f Func) Run(ctx context.Context, name string, args ...string) (Output, error) {
	return f(ctx, name, args...)
}

// FormatCommand renders a command line for logs and dry-run plans.
func FormatCommand(name string, args ...string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
