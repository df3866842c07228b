package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polsommer/HDtextureDDS/internal/config"
	"github.com/polsommer/HDtextureDDS/internal/tools"
)

func newToolsCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Report availability of the external converter, upscaler, and model data",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tools") {
				cfg.Paths.ToolsDir, _ = cmd.Flags().GetString("tools")
			}

			statuses := tools.Report(cfg.Paths.ToolsDir)

			rows := make([][]string, 0, len(statuses))
			missing := 0
			for _, s := range statuses {
				state := "ok"
				detail := s.Path
				if !s.Available {
					state = "missing"
					detail = s.Detail
					missing++
				}
				rows = append(rows, []string{s.Name, state, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Artifact", "Status", "Location"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if missing > 0 {
				return fmt.Errorf("%d required artifact(s) missing from %s", missing, cfg.Paths.ToolsDir)
			}
			return nil
		},
	}

	cmd.Flags().String("tools", config.Default().Paths.ToolsDir, "Directory to check for external tools")
	return cmd
}
