// Package archive commits the processed output tree to git for archival.
package archive

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polsommer/HDtextureDDS/internal/logging"
	"github.com/polsommer/HDtextureDDS/internal/runner"
)

// Options describes one archival pass over the output tree.
type Options struct {
	OutputDir string
	Message   string
	Remote    string
	Branch    string
	Push      bool
}

// Commit stages the output directory and commits it, optionally pushing to
// the configured remote/branch. Each sub-operation is a separate git
// invocation; the first failure aborts and is fatal to the run's exit status.
// Completed file processing is never rolled back.
func Commit(ctx context.Context, r runner.Runner, logger *slog.Logger, opts Options) error {
	log := logging.NewComponentLogger(logger, "archive")

	if _, err := r.Run(ctx, "git", "add", opts.OutputDir); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if _, err := r.Run(ctx, "git", "commit", "-m", opts.Message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	log.Info("committed output tree", slog.String("dir", opts.OutputDir))

	if !opts.Push {
		return nil
	}
	if _, err := r.Run(ctx, "git", "push", opts.Remote, opts.Branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	log.Info("pushed output tree",
		slog.String("remote", opts.Remote),
		slog.String("branch", opts.Branch))
	return nil
}
