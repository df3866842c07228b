// Package batch drives one processing run: it enumerates source textures,
// classifies each one, sequences the pipeline stages or a plain copy, and
// aggregates per-file results into a run manifest. One bad file never stops
// the batch; every per-file failure is converted into an error result at this
// boundary.
package batch

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/polsommer/HDtextureDDS/internal/classify"
	"github.com/polsommer/HDtextureDDS/internal/dds"
	"github.com/polsommer/HDtextureDDS/internal/fileutil"
	"github.com/polsommer/HDtextureDDS/internal/logging"
	"github.com/polsommer/HDtextureDDS/internal/manifest"
	"github.com/polsommer/HDtextureDDS/internal/pipeline"
	"github.com/polsommer/HDtextureDDS/internal/runner"
	"github.com/polsommer/HDtextureDDS/internal/tools"
)

// LockFileName guards an output root against concurrent runs.
const LockFileName = ".hdtexture.lock"

// scratchDirName holds intermediate rasters under the output root.
const scratchDirName = "_tmp"

const skipMessage = "output exists; use --overwrite to reprocess"

// Options configures one batch run. Built once at startup from layered
// configuration; the driver never reads ambient state mid-run.
type Options struct {
	InputRoot  string
	OutputRoot string
	Model      string
	// Template, when non-zero, replaces the texconv/realesrgan pipeline for
	// files that would be upscaled.
	Template  pipeline.Template
	GPU       int
	MaxDim    int
	Format    string
	Overwrite bool
	DryRun    bool
}

// Driver owns one run's state. Files are processed sequentially in discovery
// order; no shared mutable state crosses file boundaries except the result
// list and the scratch tree.
type Driver struct {
	opts    Options
	toolset tools.ToolSet
	run     runner.Runner
	logger  *slog.Logger

	now      func() time.Time
	newRunID func() string
}

// New constructs a driver. The toolset may be the zero value when a command
// template is configured.
func New(opts Options, ts tools.ToolSet, r runner.Runner, logger *slog.Logger) *Driver {
	return &Driver{
		opts:     opts,
		toolset:  ts,
		run:      r,
		logger:   logging.NewComponentLogger(logger, "batch"),
		now:      func() time.Time { return time.Now().UTC() },
		newRunID: func() string { return uuid.NewString() },
	}
}

// Run processes every discovered texture and returns the populated manifest.
// The returned error reports run-level failures only (lock contention,
// unreadable roots); per-file failures are recorded in the manifest instead.
func (d *Driver) Run(ctx context.Context) (manifest.Manifest, error) {
	inputRoot, err := filepath.Abs(d.opts.InputRoot)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("resolve input root: %w", err)
	}
	outputRoot, err := filepath.Abs(d.opts.OutputRoot)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("resolve output root: %w", err)
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return manifest.Manifest{}, fmt.Errorf("create output root: %w", err)
	}

	lock := flock.New(filepath.Join(outputRoot, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return manifest.Manifest{}, fmt.Errorf("another run is already processing %s", outputRoot)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	files, err := discover(inputRoot)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("scan input root: %w", err)
	}

	scratchRoot := filepath.Join(outputRoot, scratchDirName)
	if !d.opts.DryRun {
		if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
			return manifest.Manifest{}, fmt.Errorf("create scratch directory: %w", err)
		}
	}

	d.logger.Info("run started",
		slog.Int("files", len(files)),
		slog.String("input", inputRoot),
		slog.String("output", outputRoot),
		slog.String("model", d.opts.Model),
		slog.Bool("dry_run", d.opts.DryRun))
	if d.toolset.Converter != "" {
		d.logger.Info("resolved tools",
			slog.String("converter", d.toolset.Converter),
			slog.String("upscaler", d.toolset.Upscaler),
			slog.String("models", d.toolset.ModelsDir))
	}

	m := manifest.Manifest{
		RunID:      d.newRunID(),
		Model:      d.opts.Model,
		Command:    d.opts.Template.String(),
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
		Started:    d.now(),
		DryRun:     d.opts.DryRun,
		Overwrite:  d.opts.Overwrite,
		Results:    make([]manifest.Result, 0, len(files)),
	}

	for i, src := range files {
		rel, relErr := filepath.Rel(inputRoot, src)
		if relErr != nil {
			rel = src
		}
		d.logger.Info("processing",
			slog.Int("index", i+1),
			slog.Int("total", len(files)),
			slog.String("file", rel))

		result := d.processFile(ctx, src, rel, outputRoot, scratchRoot)
		m.Results = append(m.Results, result)

		switch result.Status {
		case manifest.StatusError:
			d.logger.Error("file failed",
				slog.String("file", rel),
				slog.String("message", result.Message))
		default:
			d.logger.Info("file done",
				slog.String("file", rel),
				slog.String("status", string(result.Status)),
				slog.Int("scale", result.Scale))
		}
	}

	m.Finished = d.now()
	tally := m.Tally()
	d.logger.Info("run finished",
		slog.Int("ok", tally.OK),
		slog.Int("skipped", tally.Skipped),
		slog.Int("errors", tally.Errors),
		slog.Int("pending", tally.Pending))

	return m, nil
}

// processFile walks one file through the state machine. Every failure path
// returns an error result rather than propagating, keeping the batch alive.
func (d *Driver) processFile(ctx context.Context, src, rel, outputRoot, scratchRoot string) manifest.Result {
	dst := filepath.Join(outputRoot, rel)

	result := manifest.Result{
		Source:      src,
		Destination: dst,
		Kind:        "unknown",
	}

	width, height, err := dds.ReadDimensions(src)
	if err != nil {
		result.Status = manifest.StatusError
		result.Message = err.Error()
		return result
	}
	result.Width = width
	result.Height = height

	kind := classify.ClassifyKind(filepath.Base(src))
	scale := classify.ScaleFor(kind, width, height, d.opts.MaxDim)
	result.Kind = string(kind)
	result.Scale = scale

	// Skip decision precedes any write or external invocation.
	if _, statErr := os.Stat(dst); statErr == nil && !d.opts.Overwrite {
		result.Status = manifest.StatusSkipped
		result.Message = skipMessage
		return result
	}

	if !d.opts.DryRun {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return d.fail(result, fmt.Errorf("create destination directory: %w", err))
		}
	}

	if scale == 1 {
		return d.copyFile(result, src, dst)
	}
	if !d.opts.Template.IsZero() {
		return d.runTemplate(ctx, result, src, dst)
	}
	return d.runPipeline(ctx, result, src, dst, rel, scratchRoot, scale)
}

// copyFile handles normal maps and textures already at the size ceiling.
func (d *Driver) copyFile(result manifest.Result, src, dst string) manifest.Result {
	if d.opts.DryRun {
		result.Status = manifest.StatusPending
		result.Message = "copy"
		return result
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return d.fail(result, err)
	}
	result.Status = manifest.StatusOK
	result.Message = "copied"
	return result
}

func (d *Driver) runTemplate(ctx context.Context, result manifest.Result, src, dst string) manifest.Result {
	if d.opts.DryRun {
		result.Status = manifest.StatusPending
		result.Message = d.opts.Template.Expand(src, dst)
		return result
	}
	_, out, err := d.opts.Template.Invoke(ctx, d.run, src, dst)
	if err != nil {
		return d.fail(result, err)
	}
	result.Status = manifest.StatusOK
	result.Message = strings.TrimSpace(out.Stdout)
	return result
}

// runPipeline sequences decode, upscale, encode, and the final relocate.
func (d *Driver) runPipeline(ctx context.Context, result manifest.Result, src, dst, rel, scratchRoot string, scale int) manifest.Result {
	// Each file gets a private scratch subdirectory keyed by its relative
	// path, so same-named files in different subdirectories can never
	// clobber each other's intermediates.
	scratch := filepath.Join(scratchRoot, scratchKey(rel))
	if !d.opts.DryRun {
		if err := os.MkdirAll(scratch, 0o755); err != nil {
			return d.fail(result, fmt.Errorf("create scratch directory: %w", err))
		}
	}

	pngIn, err := pipeline.Decode(ctx, d.run, d.toolset, src, scratch)
	if err != nil {
		return d.fail(result, err)
	}

	pngOut := filepath.Join(scratch, stem(src)+"_up"+pipeline.IntermediateExt)
	if err := pipeline.Upscale(ctx, d.run, d.toolset, pngIn, pngOut, scale, d.opts.Model, d.opts.GPU); err != nil {
		return d.fail(result, err)
	}

	produced, err := pipeline.Encode(ctx, d.run, d.toolset, pngOut, filepath.Dir(dst), d.opts.Format)
	if err != nil {
		return d.fail(result, err)
	}

	if d.opts.DryRun {
		result.Status = manifest.StatusPending
		result.Message = fmt.Sprintf("planned x%d upscale", scale)
		return result
	}

	if err := relocate(produced, dst); err != nil {
		return d.fail(result, err)
	}
	result.Status = manifest.StatusOK
	return result
}

// fail converts an error into a terminal error result. Scale is forced to 0
// so failed files are flagged explicitly even when classification succeeded.
func (d *Driver) fail(result manifest.Result, err error) manifest.Result {
	result.Status = manifest.StatusError
	result.Scale = 0
	result.Message = err.Error()
	return result
}

// relocate moves the produced file onto the mirrored destination path,
// replacing any existing file. A produced path already equal to the
// destination needs no rename.
func relocate(produced, dst string) error {
	if filepath.Clean(produced) == filepath.Clean(dst) {
		return nil
	}
	if _, err := os.Stat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("replace destination: %w", err)
		}
	}
	if err := os.Rename(produced, dst); err != nil {
		return fmt.Errorf("relocate output: %w", err)
	}
	return nil
}

// discover returns every .dds file under root in deterministic walk order.
func discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".dds") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// scratchKey derives a collision-free scratch subdirectory name from the
// file's relative path.
func scratchKey(rel string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(rel))
	return fmt.Sprintf("%s-%08x", stem(rel), h.Sum32())
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
