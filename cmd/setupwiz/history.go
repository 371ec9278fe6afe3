package main

import (
	"fmt"
	"time"

	"setupwiz/cmd/setupwiz/ui"
	"setupwiz/config"
	"setupwiz/internal/history"
	"setupwiz/pkg/sdk/setup"

	"github.com/spf13/cobra"
)

func historyCmd(global *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent wizard runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := config.Load(global.configPath)
			if err != nil {
				return err
			}
			store, err := history.Open(settings.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted("no runs recorded"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Table(historyRows(runs)))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultLimit, "Number of runs to show")
	return cmd
}

func historyRows(runs []setup.Run) ([]string, [][]string) {
	headers := []string{"FINISHED", "OUTCOME", "IMAGE", "DURATION", "MESSAGE"}
	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			run.FinishedAt.Local().Format(time.DateTime),
			run.Outcome,
			run.Image,
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
			run.Message,
		}
	}
	return headers, rows
}
