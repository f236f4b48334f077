package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"amigame/internal/config"
	"amigame/internal/evo"
	"amigame/internal/logging"
	"amigame/internal/scenario"
	amigame "amigame/pkg/amigame"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run or resume a simulation",
		Long: `Run evolves the attacker and defender populations of a tree for a
number of generations.

Settings come from the defaults, then the --config file, then AMIGAME_*
environment variables, then --scenario (which loads the scenario's own
game and replicator settings), then any other flag given explicitly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
				logging.Init(cfg.LogLevel, cmd.ErrOrStderr())
			}

			opts := amigame.Options{
				StoreKind: cfg.Store,
				DBPath:    cfg.DBPath,
				RunsDir:   cfg.ArtifactsDir,
			}
			if cfg.MetricsAddr != "" {
				opts.Registerer = prometheus.NewRegistry()
			}
			client, err := amigame.New(opts)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, runErr := client.Run(cmd.Context(), amigame.RunRequest{
				RunID:              cfg.RunID,
				ContinueRunID:      cfg.ContinueRunID,
				Scenario:           cfg.Scenario,
				TreeFile:           cfg.TreeFile,
				Resolution:         cfg.Resolution,
				DetectionRate:      cfg.DetectionRate,
				AttackerBudget:     cfg.AttackerBudget,
				DefenderBudget:     cfg.DefenderBudget,
				Replicator:         cfg.Replicator,
				TruncationFraction: cfg.TruncationFraction,
				DT:                 cfg.DT,
				Delta:              cfg.Delta,
				Generations:        cfg.Generations,
				Seed:               cfg.Seed,
				MetricsAddr:        cfg.MetricsAddr,
			})
			if summary.RunID == "" {
				return runErr
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
				return runErr
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s scenario=%s generations=%d\n", summary.RunID, summary.Scenario, summary.Generations)
			if summary.ResumedFrom != "" {
				fmt.Fprintf(out, "resumed from %s\n", summary.ResumedFrom)
			}
			fmt.Fprintf(out, "strategies attacker=%s defender=%s\n",
				humanize.Comma(int64(summary.AttackerStrategies)),
				humanize.Comma(int64(summary.DefenderStrategies)))
			fmt.Fprintf(out, "final utility attacker=%.6f defender=%.6f\n", summary.FinalAttackerUtility, summary.FinalDefenderUtility)
			fmt.Fprintf(out, "elapsed %s\n", summary.Elapsed.Round(time.Millisecond))
			if summary.ArtifactsDir != "" {
				fmt.Fprintf(out, "artifacts %s\n", summary.ArtifactsDir)
			}
			return runErr
		},
	}

	cmd.Flags().String("config", "", "YAML run configuration file")
	cmd.Flags().String("run-id", "", "run id (generated when empty)")
	cmd.Flags().String("scenario", "", "built-in scenario: "+strings.Join(scenario.Names(), ", "))
	cmd.Flags().String("tree-file", "", "YAML tree document")
	cmd.Flags().IntP("resolution", "K", 0, "allocation levels per unit of budget")
	cmd.Flags().Float64("detection", 0, "detection rate a in [0,1)")
	cmd.Flags().Float64("attacker-budget", 0, "attacker budget")
	cmd.Flags().Float64("defender-budget", 0, "defender budget")
	cmd.Flags().String("replicator", "", "replicator: "+strings.Join(evo.ReplicatorNames(), "|"))
	cmd.Flags().Float64("k", 0, "truncation fraction")
	cmd.Flags().Float64("dt", 0, "REQN step size")
	cmd.Flags().Float64("delta", 0, "REQN noise magnitude")
	cmd.Flags().Int("gens", 0, "generations to run")
	cmd.Flags().Int64("seed", 0, "random seed for REQN noise")
	cmd.Flags().String("continue", "", "resume the stored run with this id")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run")
	return cmd
}

// loadRunConfig layers defaults, the config file, the environment, the
// selected scenario and explicitly set flags.
func loadRunConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("scenario") {
		name, _ := flags.GetString("scenario")
		sc, err := scenario.Lookup(name)
		if err != nil {
			return nil, err
		}
		cfg.ApplyScenario(sc)
	}
	if flags.Changed("tree-file") {
		cfg.TreeFile, _ = flags.GetString("tree-file")
	}
	if flags.Changed("run-id") {
		cfg.RunID, _ = flags.GetString("run-id")
	}
	if flags.Changed("continue") {
		cfg.ContinueRunID, _ = flags.GetString("continue")
	}
	if flags.Changed("resolution") {
		cfg.Resolution, _ = flags.GetInt("resolution")
	}
	if flags.Changed("detection") {
		cfg.DetectionRate, _ = flags.GetFloat64("detection")
	}
	if flags.Changed("attacker-budget") {
		cfg.AttackerBudget, _ = flags.GetFloat64("attacker-budget")
	}
	if flags.Changed("defender-budget") {
		cfg.DefenderBudget, _ = flags.GetFloat64("defender-budget")
	}
	if flags.Changed("replicator") {
		cfg.Replicator, _ = flags.GetString("replicator")
	}
	if flags.Changed("k") {
		cfg.TruncationFraction, _ = flags.GetFloat64("k")
	}
	if flags.Changed("dt") {
		cfg.DT, _ = flags.GetFloat64("dt")
	}
	if flags.Changed("delta") {
		cfg.Delta, _ = flags.GetFloat64("delta")
	}
	if flags.Changed("gens") {
		cfg.Generations, _ = flags.GetInt("gens")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("store") {
		cfg.Store, _ = flags.GetString("store")
	}
	if flags.Changed("db-path") {
		cfg.DBPath, _ = flags.GetString("db-path")
	}
	if flags.Changed("runs-dir") {
		cfg.ArtifactsDir, _ = flags.GetString("runs-dir")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
