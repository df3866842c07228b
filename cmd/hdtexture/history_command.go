package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/polsommer/HDtextureDDS/internal/config"
	"github.com/polsommer/HDtextureDDS/internal/runlog"
)

func newHistoryCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent processing runs recorded for an output tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.Paths.OutputDir, _ = cmd.Flags().GetString("output")
			}
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := runlog.Open(cfg.Paths.OutputDir)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				mode := "live"
				if run.DryRun {
					mode = "dry-run"
				}
				rows = append(rows, []string{
					run.ID,
					run.Started.Local().Format(time.DateTime),
					run.Model,
					mode,
					strconv.Itoa(run.OK),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Errors),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Started", "Model", "Mode", "OK", "Skipped", "Errors"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().String("output", config.Default().Paths.OutputDir, "Output tree whose history to list")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	return cmd
}
