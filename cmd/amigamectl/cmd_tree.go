package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	amigame "amigame/pkg/amigame"
)

func newTreeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Describe a tree and check its node economics",
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioName, _ := cmd.Flags().GetString("scenario")
			treeFile, _ := cmd.Flags().GetString("tree-file")
			detection, _ := cmd.Flags().GetFloat64("detection")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if scenarioName != "" && treeFile != "" {
				return fmt.Errorf("cannot specify both --scenario and --tree-file")
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Tree(cmd.Context(), amigame.TreeRequest{
				Scenario:      scenarioName,
				TreeFile:      treeFile,
				DetectionRate: detection,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d nodes, a=%.2f)\n", summary.Name, len(summary.Nodes), detection)
			for _, n := range summary.Nodes {
				fmt.Fprintf(out, "%3d %-*s v=%-6.3g C_A=%-6.3g C_D=%-6.3g s*=%.4f t*=%.4f",
					n.Index, n.Depth*2+12, strings.Repeat("  ", n.Depth)+n.Label, n.Value, n.CostAttack, n.CostDefence, n.AttackStar, n.DefenceStar)
				if n.Group != "" {
					fmt.Fprintf(out, " [%s]", n.Group)
				}
				fmt.Fprintln(out)
			}
			if len(summary.Problems) == 0 {
				fmt.Fprintln(out, "economics ok")
				return nil
			}
			fmt.Fprintf(out, "%d problem(s):\n", len(summary.Problems))
			for _, p := range summary.Problems {
				fmt.Fprintf(out, "  - %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().String("scenario", "", "built-in scenario")
	cmd.Flags().String("tree-file", "", "YAML tree document")
	cmd.Flags().Float64P("detection", "a", 0.3, "detection rate a in [0,1)")
	return cmd
}
