package main

import (
	"fmt"

	"github.com/spf13/cobra"

	amigame "amigame/pkg/amigame"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to an export directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run-id")
			latest, _ := cmd.Flags().GetBool("latest")
			outDir, _ := cmd.Flags().GetString("out")
			jsonOut, _ := cmd.Flags().GetBool("json")

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			exported, err := client.Export(cmd.Context(), amigame.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), exported)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", exported.RunID, exported.Directory)
			return nil
		},
	}
	addRunSelectorFlags(cmd)
	cmd.Flags().String("out", "", "export directory (default exports)")
	return cmd
}
