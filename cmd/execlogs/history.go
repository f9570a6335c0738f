package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func historyCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded download runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch output {
			case formatTable, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unknown output format %q", output)
			}

			cfg, err := loadConfig(root, cmd.Flags(), nil, nil)
			if err != nil {
				return err
			}
			// history never writes to the console log
			cfg.Log.IncludeStdout = false

			appCtx, cleanup, err := buildContext(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			if appCtx.Store == nil {
				return fmt.Errorf("no run history: store.driver is %q", cfg.Store.Driver)
			}

			runs, err := appCtx.Store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderRuns(cmd.OutOrStdout(), runs, output)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show, 0 for all")
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "table, json or yaml")

	return cmd
}
