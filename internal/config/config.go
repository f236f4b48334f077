// Package config provides run configuration for amigame.
// Configuration is loaded from a YAML file and can be overridden by
// AMIGAME_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"amigame/internal/evo"
	"amigame/internal/game"
	"amigame/internal/scenario"
)

// RunConfig holds everything needed to start or resume a simulation run.
type RunConfig struct {
	// RunID names the run. A random ID is generated when empty.
	RunID string `yaml:"run_id"`

	// ContinueRunID resumes a stored run instead of starting a new one.
	ContinueRunID string `yaml:"continue_run_id"`

	// Scenario selects a built-in tree (star, ami-small, ami-large).
	Scenario string `yaml:"scenario"`

	// TreeFile points at a YAML tree document and takes precedence over Scenario.
	TreeFile string `yaml:"tree_file"`

	Resolution     int     `yaml:"resolution"`
	DetectionRate  float64 `yaml:"detection_rate"`
	AttackerBudget float64 `yaml:"attacker_budget"`
	DefenderBudget float64 `yaml:"defender_budget"`

	// Replicator is reqn or truncation.
	Replicator         string  `yaml:"replicator"`
	TruncationFraction float64 `yaml:"truncation_fraction"`
	DT                 float64 `yaml:"dt"`
	Delta              float64 `yaml:"delta"`

	Generations int   `yaml:"generations"`
	Seed        int64 `yaml:"seed"`

	// Store is the persistence backend: memory or sqlite.
	Store  string `yaml:"store"`
	DBPath string `yaml:"db_path"`

	ArtifactsDir string `yaml:"artifacts_dir"`

	// MetricsAddr serves Prometheus metrics during the run when set.
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
}

// Default returns a RunConfig with default values.
func Default() *RunConfig {
	gameCfg := game.DefaultConfig()
	params := evo.DefaultParams()
	return &RunConfig{
		Scenario:           "star",
		Resolution:         gameCfg.Resolution,
		DetectionRate:      gameCfg.DetectionRate,
		AttackerBudget:     gameCfg.AttackerBudget,
		DefenderBudget:     gameCfg.DefenderBudget,
		Replicator:         params.Replicator,
		TruncationFraction: params.TruncationFraction,
		DT:                 params.DT,
		Delta:              params.Delta,
		Generations:        200,
		Seed:               1,
		Store:              "memory",
		ArtifactsDir:       "runs",
		LogLevel:           "info",
	}
}

// Load builds a config from defaults, the optional YAML file at path and
// environment overrides, in that order.
func Load(path string) (*RunConfig, error) {
	config := Default()
	if path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is usable.
func (c *RunConfig) Validate() error {
	if c.TreeFile == "" && c.Scenario == "" && c.ContinueRunID == "" {
		return fmt.Errorf("one of scenario, tree_file or continue_run_id is required")
	}
	if c.Generations < 0 {
		return fmt.Errorf("generations must be >= 0, got %d", c.Generations)
	}
	if err := c.GameConfig().Validate(); err != nil {
		return err
	}
	if err := c.ReplicatorParams().Validate(); err != nil {
		return err
	}
	switch c.Store {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("invalid store: %s (must be memory or sqlite)", c.Store)
	}
	return nil
}

// GameConfig returns the game parameters of the run.
func (c *RunConfig) GameConfig() game.Config {
	return game.Config{
		Resolution:     c.Resolution,
		DetectionRate:  c.DetectionRate,
		AttackerBudget: c.AttackerBudget,
		DefenderBudget: c.DefenderBudget,
	}
}

// ReplicatorParams returns the population dynamics parameters of the run.
func (c *RunConfig) ReplicatorParams() evo.Params {
	return evo.Params{
		Replicator:         c.Replicator,
		TruncationFraction: c.TruncationFraction,
		DT:                 c.DT,
		Delta:              c.Delta,
	}
}

// ApplyScenario copies a scenario's tree choice together with the game and
// replicator settings it is meant to be played with.
func (c *RunConfig) ApplyScenario(s scenario.Scenario) {
	c.Scenario = s.Name
	c.TreeFile = ""
	c.Resolution = s.Game.Resolution
	c.DetectionRate = s.Game.DetectionRate
	c.AttackerBudget = s.Game.AttackerBudget
	c.DefenderBudget = s.Game.DefenderBudget
	c.Replicator = s.Replicator.Replicator
	c.TruncationFraction = s.Replicator.TruncationFraction
	c.DT = s.Replicator.DT
	c.Delta = s.Replicator.Delta
	if s.Generations > 0 {
		c.Generations = s.Generations
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *RunConfig) {
	if v := os.Getenv("AMIGAME_SCENARIO"); v != "" {
		config.Scenario = v
	}
	if v := os.Getenv("AMIGAME_TREE_FILE"); v != "" {
		config.TreeFile = v
	}
	if v := os.Getenv("AMIGAME_RESOLUTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Resolution = n
		}
	}
	if v := os.Getenv("AMIGAME_DETECTION_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.DetectionRate = f
		}
	}
	if v := os.Getenv("AMIGAME_REPLICATOR"); v != "" {
		config.Replicator = strings.ToLower(v)
	}
	if v := os.Getenv("AMIGAME_GENERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Generations = n
		}
	}
	if v := os.Getenv("AMIGAME_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Seed = n
		}
	}
	if v := os.Getenv("AMIGAME_STORE"); v != "" {
		config.Store = v
	}
	if v := os.Getenv("AMIGAME_DB_PATH"); v != "" {
		config.DBPath = v
	}
	if v := os.Getenv("AMIGAME_ARTIFACTS_DIR"); v != "" {
		config.ArtifactsDir = v
	}
	if v := os.Getenv("AMIGAME_METRICS_ADDR"); v != "" {
		config.MetricsAddr = v
	}
	if v := os.Getenv("AMIGAME_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
}
