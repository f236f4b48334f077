package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	amigame "amigame/pkg/amigame"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(cmd.Context(), amigame.RunsRequest{Limit: limit})
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"runs":  runs,
					"count": len(runs),
				})
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet. Use 'amigamectl run' to start one.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  scenario=%s replicator=%s seed=%d nodes=%d strategies=%s/%s gens=%d u_a=%.6f u_d=%.6f\n",
					r.RunID, r.CreatedAtUTC, r.Scenario, r.Replicator, r.Seed, r.Nodes,
					humanize.Comma(int64(r.AttackerStrategies)), humanize.Comma(int64(r.DefenderStrategies)),
					r.Generations, r.FinalAttackerUtility, r.FinalDefenderUtility)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum runs to list")
	return cmd
}
