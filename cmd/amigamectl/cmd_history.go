package main

import (
	"fmt"

	"github.com/spf13/cobra"

	amigame "amigame/pkg/amigame"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a run's per-generation utilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			history, err := client.History(cmd.Context(), amigame.HistoryRequest{RunID: runID, Latest: latest, Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), history)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "generation  attacker_utility  defender_utility")
			for _, record := range history {
				fmt.Fprintf(out, "%10d  %16.6f  %16.6f\n", record.Generation, record.AttackerUtility, record.DefenderUtility)
			}
			return nil
		},
	}
	addRunSelectorFlags(cmd)
	cmd.Flags().Int("limit", 0, "show at most this many generations (0 = all)")
	return cmd
}

func addRunSelectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("run-id", "", "run id")
	cmd.Flags().Bool("latest", false, "use the most recent run")
}
