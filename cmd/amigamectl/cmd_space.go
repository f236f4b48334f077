package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	amigame "amigame/pkg/amigame"
)

func newSpaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "space",
		Short: "Count the pure strategies of a budget over n nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, _ := cmd.Flags().GetInt("nodes")
			resolution, _ := cmd.Flags().GetInt("resolution")
			budget, _ := cmd.Flags().GetFloat64("budget")
			jsonOut, _ := cmd.Flags().GetBool("json")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			space, err := client.Space(cmd.Context(), amigame.SpaceRequest{Nodes: nodes, Resolution: resolution, Budget: budget})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), space)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s strategies (%d levels over %d nodes)\n",
				humanize.Comma(int64(space.Strategies)), space.Levels, space.Nodes)
			return nil
		},
	}
	cmd.Flags().IntP("nodes", "n", 3, "number of nodes")
	cmd.Flags().IntP("resolution", "K", 5, "allocation levels per unit of budget")
	cmd.Flags().Float64("budget", 1, "budget")
	return cmd
}
