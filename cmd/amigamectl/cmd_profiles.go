package main

import (
	"fmt"

	"github.com/spf13/cobra"

	amigame "amigame/pkg/amigame"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Show attack and defence intensity summed by node group or tree level",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			by, _ := cmd.Flags().GetString("by")
			jsonOut, _ := cmd.Flags().GetBool("json")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			profiles, err := client.Profiles(cmd.Context(), amigame.ProfilesRequest{RunID: runID, Latest: latest, By: by})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), profiles)
			}
			out := cmd.OutOrStdout()
			for _, p := range profiles {
				last := len(p.Generations) - 1
				if last < 0 {
					fmt.Fprintf(out, "%s nodes=%v (no generations)\n", p.Group, p.Nodes)
					continue
				}
				fmt.Fprintf(out, "%s nodes=%v attack %.4f -> %.4f defence %.4f -> %.4f\n",
					p.Group, p.Nodes, p.Attack[0], p.Attack[last], p.Defence[0], p.Defence[last])
			}
			return nil
		},
	}
	addRunSelectorFlags(cmd)
	cmd.Flags().String("by", amigame.ProfileByGroup, "grouping: group|level")
	return cmd
}
