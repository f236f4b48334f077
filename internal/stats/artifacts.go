package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"amigame/internal/game"
	"amigame/internal/model"
)

const runIndexFile = "run_index.json"

const (
	configFile   = "config.json"
	nodesFile    = "nodes.json"
	historyFile  = "history.json"
	utilityFile  = "utility.csv"
	attacksFile  = "attackers.csv"
	defencesFile = "defenders.csv"
	groupsFile   = "groups.csv"
	trendFile    = "trends.dat"
)

type RunConfig struct {
	RunID              string  `json:"run_id"`
	ContinueRunID      string  `json:"continue_run_id,omitempty"`
	Scenario           string  `json:"scenario"`
	TreeFile           string  `json:"tree_file,omitempty"`
	Resolution         int     `json:"resolution"`
	DetectionRate      float64 `json:"detection_rate"`
	AttackerBudget     float64 `json:"attacker_budget"`
	DefenderBudget     float64 `json:"defender_budget"`
	Replicator         string  `json:"replicator"`
	TruncationFraction float64 `json:"truncation_fraction"`
	DT                 float64 `json:"dt"`
	Delta              float64 `json:"delta"`
	InitialGeneration  int     `json:"initial_generation"`
	Generations        int     `json:"generations"`
	Seed               int64   `json:"seed"`
	Store              string  `json:"store"`
}

type RunArtifacts struct {
	Config  RunConfig                `json:"config"`
	Nodes   []game.NodeSummary       `json:"nodes"`
	History []model.GenerationRecord `json:"history"`

	FinalAttackerUtility float64 `json:"final_attacker_utility"`
	FinalDefenderUtility float64 `json:"final_defender_utility"`
}

type RunIndexEntry struct {
	RunID                string  `json:"run_id"`
	Scenario             string  `json:"scenario"`
	Nodes                int     `json:"nodes"`
	Resolution           int     `json:"resolution"`
	DetectionRate        float64 `json:"detection_rate"`
	Replicator           string  `json:"replicator"`
	AttackerStrategies   int     `json:"attacker_strategies"`
	DefenderStrategies   int     `json:"defender_strategies"`
	Generations          int     `json:"generations"`
	Seed                 int64   `json:"seed"`
	FinalAttackerUtility float64 `json:"final_attacker_utility"`
	FinalDefenderUtility float64 `json:"final_defender_utility"`
	CreatedAtUTC         string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, nodesFile), artifacts.Nodes); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, historyFile), map[string]any{
		"history":                artifacts.History,
		"final_attacker_utility": artifacts.FinalAttackerUtility,
		"final_defender_utility": artifacts.FinalDefenderUtility,
	}); err != nil {
		return "", err
	}

	labels := make([]string, len(artifacts.Nodes))
	groups := make([]string, len(artifacts.Nodes))
	for i, node := range artifacts.Nodes {
		labels[i] = node.Label
		groups[i] = node.Group
	}
	if err := WriteUtilitySeries(filepath.Join(runDir, utilityFile), artifacts.History); err != nil {
		return "", err
	}
	if err := WriteProfileSeries(filepath.Join(runDir, attacksFile), labels, artifacts.History, attackProfile); err != nil {
		return "", err
	}
	if err := WriteProfileSeries(filepath.Join(runDir, defencesFile), labels, artifacts.History, defenceProfile); err != nil {
		return "", err
	}
	if err := WriteGroupSeries(filepath.Join(runDir, groupsFile), GroupProfiles(artifacts.History, groups)); err != nil {
		return "", err
	}
	if err := WriteTrendGraph(filepath.Join(runDir, trendFile), artifacts.Config.RunID, BuildTrendSeries(artifacts.History, labels)); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory's artifacts into outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{configFile, nodesFile, historyFile, utilityFile, attacksFile, defencesFile}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{groupsFile, trendFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadHistory(baseDir, runID string) ([]model.GenerationRecord, bool, error) {
	path := filepath.Join(baseDir, runID, historyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var payload struct {
		History []model.GenerationRecord `json:"history"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, err
	}
	return payload.History, true, nil
}

func ReadNodes(baseDir, runID string) ([]game.NodeSummary, bool, error) {
	path := filepath.Join(baseDir, runID, nodesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var nodes []game.NodeSummary
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, false, err
	}
	return nodes, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
