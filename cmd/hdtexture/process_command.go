package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/polsommer/HDtextureDDS/internal/archive"
	"github.com/polsommer/HDtextureDDS/internal/batch"
	"github.com/polsommer/HDtextureDDS/internal/config"
	"github.com/polsommer/HDtextureDDS/internal/logging"
	"github.com/polsommer/HDtextureDDS/internal/manifest"
	"github.com/polsommer/HDtextureDDS/internal/pipeline"
	"github.com/polsommer/HDtextureDDS/internal/runlog"
	"github.com/polsommer/HDtextureDDS/internal/runner"
	"github.com/polsommer/HDtextureDDS/internal/tools"
)

func newProcessCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Scan the input tree and upscale every DDS texture into the output tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if err := applyProcessFlags(cmd, cfg); err != nil {
				return err
			}
			return runProcess(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", config.Default().Paths.InputDir, "Directory containing DDS files to process")
	flags.String("output", config.Default().Paths.OutputDir, "Directory where processed files are written")
	flags.String("tools", config.Default().Paths.ToolsDir, "Directory holding texconv, realesrgan-ncnn-vulkan, and models")
	flags.String("model", config.Default().Upscale.Model, "Real-ESRGAN model name")
	flags.String("command", "", "External command template with {input}/{output} placeholders, replacing the built-in pipeline")
	flags.Int("gpu", 0, "Accelerator device index")
	flags.Int("max-dim", config.Default().Upscale.MaxDim, "Textures at or above this dimension are copied, not upscaled")
	flags.String("format", config.Default().Upscale.Format, "DDS compression format for re-encoding")
	flags.Bool("overwrite", false, "Replace destinations that already exist")
	flags.Bool("dry-run", false, "Plan and validate without invoking external tools or writing textures")
	flags.Bool("git-commit", false, "Commit the output directory after processing")
	flags.Bool("git-push", false, "Push the commit to the remote (implies --git-commit)")
	flags.String("git-remote", config.Default().Git.Remote, "Remote name used with --git-push")
	flags.String("git-branch", config.Default().Git.Branch, "Branch name used with --git-push")
	flags.String("commit-message", config.Default().Git.Message, "Commit message used with --git-commit")

	return cmd
}

// applyProcessFlags overlays explicitly set flags onto the layered config,
// then re-validates the result.
func applyProcessFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	setString := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if flags.Changed(name) {
			*dst, _ = flags.GetBool(name)
		}
	}
	setInt := func(name string, dst *int) {
		if flags.Changed(name) {
			*dst, _ = flags.GetInt(name)
		}
	}

	setString("input", &cfg.Paths.InputDir)
	setString("output", &cfg.Paths.OutputDir)
	setString("tools", &cfg.Paths.ToolsDir)
	setString("model", &cfg.Upscale.Model)
	setString("command", &cfg.Upscale.Command)
	setInt("gpu", &cfg.Upscale.GPU)
	setInt("max-dim", &cfg.Upscale.MaxDim)
	setString("format", &cfg.Upscale.Format)
	setBool("overwrite", &cfg.Upscale.Overwrite)
	setBool("git-commit", &cfg.Git.Commit)
	setBool("git-push", &cfg.Git.Push)
	setString("git-remote", &cfg.Git.Remote)
	setString("git-branch", &cfg.Git.Branch)
	setString("commit-message", &cfg.Git.Message)

	if cfg.Git.Push {
		cfg.Git.Commit = true
	}
	return cfg.Validate()
}

func runProcess(cmd *cobra.Command, cfg *config.Config) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}

	tpl, err := pipeline.ParseTemplate(cfg.Upscale.Command)
	if err != nil {
		return err
	}

	// The fixed pipeline needs its executables resolved before any file is
	// touched; the template variant brings its own command.
	var toolset tools.ToolSet
	if tpl.IsZero() {
		toolset, err = tools.Locate(cfg.Paths.ToolsDir)
		if err != nil {
			return err
		}
	}

	var run runner.Runner
	if dryRun {
		run = runner.NewDryRun()
	} else {
		run = runner.NewExec(logger)
	}

	driver := batch.New(batch.Options{
		InputRoot:  cfg.Paths.InputDir,
		OutputRoot: cfg.Paths.OutputDir,
		Model:      cfg.Upscale.Model,
		Template:   tpl,
		GPU:        cfg.Upscale.GPU,
		MaxDim:     cfg.Upscale.MaxDim,
		Format:     cfg.Upscale.Format,
		Overwrite:  cfg.Upscale.Overwrite,
		DryRun:     dryRun,
	}, toolset, run, logger)

	m, err := driver.Run(cmd.Context())
	if err != nil {
		return err
	}

	manifestPath, err := manifest.Write(m.OutputRoot, m)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	recordRun(cmd, logger, m)

	tally := m.Tally()
	fmt.Fprintln(cmd.OutOrStdout(), renderSummaryTable(tally))
	fmt.Fprintf(cmd.OutOrStdout(), "Manifest: %s\n", manifestPath)

	if cfg.Git.Commit {
		err := archive.Commit(cmd.Context(), run, logger, archive.Options{
			OutputDir: m.OutputRoot,
			Message:   cfg.Git.Message,
			Remote:    cfg.Git.Remote,
			Branch:    cfg.Git.Branch,
			Push:      cfg.Git.Push,
		})
		if err != nil {
			return err
		}
	}

	if tally.Errors > 0 {
		return errFilesFailed
	}
	return nil
}

// recordRun appends the manifest to the SQLite history. Failures here never
// change the run's outcome.
func recordRun(cmd *cobra.Command, logger *slog.Logger, m manifest.Manifest) {
	store, err := runlog.Open(m.OutputRoot)
	if err != nil {
		logger.Warn("run history unavailable", logging.Error(err))
		return
	}
	defer store.Close()

	if err := store.RecordRun(cmd.Context(), m); err != nil {
		logger.Warn("run history not recorded", logging.Error(err))
	}
}

func renderSummaryTable(tally manifest.Tally) string {
	rows := [][]string{
		{"ok", strconv.Itoa(tally.OK)},
		{"skipped", strconv.Itoa(tally.Skipped)},
		{"errors", strconv.Itoa(tally.Errors)},
	}
	if tally.Pending > 0 {
		rows = append(rows, []string{"pending", strconv.Itoa(tally.Pending)})
	}
	return renderTable([]string{"Status", "Files"}, rows, []columnAlignment{alignLeft, alignRight})
}
