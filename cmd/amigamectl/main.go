package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"amigame/internal/logging"
	"amigame/internal/storage"
	amigame "amigame/pkg/amigame"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger := logging.Get()
		logger.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "amigamectl",
		Short: "Evolve attacker and defender strategies on asset trees",
		Long: `amigamectl plays the confidentiality game on a tree of assets and
evolves mixed attacker and defender strategies with replicator dynamics.

Runs are persisted in the configured store and written as artifacts
under the runs directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			logging.Init(level, cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("store", "", "store backend: memory|sqlite (default from build)")
	rootCmd.PersistentFlags().String("db-path", "amigame.db", "sqlite database path")
	rootCmd.PersistentFlags().String("runs-dir", "runs", "directory for run artifacts and the run index")
	rootCmd.PersistentFlags().String("log-level", "", "log level (default LOG_LEVEL or info)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newRunsCmd(),
		newHistoryCmd(),
		newProfilesCmd(),
		newExportCmd(),
		newTreeCmd(),
		newSpaceCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "amigamectl version %s\n", version)
			return nil
		},
	}
}

// newClient opens a client from the persistent store flags.
func newClient(cmd *cobra.Command) (*amigame.Client, error) {
	storeKind, _ := cmd.Flags().GetString("store")
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath, _ := cmd.Flags().GetString("db-path")
	runsDir, _ := cmd.Flags().GetString("runs-dir")
	return amigame.New(amigame.Options{
		StoreKind: storeKind,
		DBPath:    dbPath,
		RunsDir:   runsDir,
	})
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
