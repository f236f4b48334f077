package amigame

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"amigame/internal/config"
	"amigame/internal/game"
	"amigame/internal/metrics"
	"amigame/internal/model"
	"amigame/internal/platform"
	"amigame/internal/scenario"
	"amigame/internal/stats"
	"amigame/internal/storage"
	"amigame/internal/tree"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "amigame.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	// Registerer receives the per-generation metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

type Client struct {
	store     storage.Store
	simulator *platform.Simulator
	metrics   *metrics.Collector

	runsDir    string
	exportsDir string
}

// RunRequest starts or resumes a run. A zero Resolution takes the game and
// replicator settings from the scenario; otherwise the fields given here are
// used as they are.
type RunRequest struct {
	RunID         string
	ContinueRunID string
	Scenario      string
	TreeFile      string

	Resolution     int
	DetectionRate  float64
	AttackerBudget float64
	DefenderBudget float64

	Replicator         string
	TruncationFraction float64
	DT                 float64
	Delta              float64

	Generations int
	Seed        int64
	MetricsAddr string
}

type RunSummary struct {
	RunID                string
	Scenario             string
	ResumedFrom          string
	ArtifactsDir         string
	AttackerStrategies   int
	DefenderStrategies   int
	Generations          int
	FinalAttackerUtility float64
	FinalDefenderUtility float64
	Elapsed              time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID                string
	CreatedAtUTC         string
	Scenario             string
	Replicator           string
	Seed                 int64
	Nodes                int
	AttackerStrategies   int
	DefenderStrategies   int
	Generations          int
	FinalAttackerUtility float64
	FinalDefenderUtility float64
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

// Profile groupings.
const (
	ProfileByGroup = "group"
	ProfileByLevel = "level"
)

type ProfilesRequest struct {
	RunID  string
	Latest bool
	// By is "group" (default) or "level".
	By string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type TreeRequest struct {
	Scenario      string
	TreeFile      string
	DetectionRate float64
}

// TreeSummary lists a tree's nodes with their equilibrium hints. Problems
// holds every economic validation failure at the requested detection rate.
type TreeSummary struct {
	Name     string
	Nodes    []game.NodeSummary
	Problems []string
}

type SpaceRequest struct {
	Nodes      int
	Resolution int
	Budget     float64
}

type SpaceSummary struct {
	Nodes      int
	Resolution int
	Budget     float64
	Levels     int
	Strategies int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	var collector *metrics.Collector
	if opts.Registerer != nil {
		collector, err = metrics.NewCollector(opts.Registerer)
		if err != nil {
			_ = storage.CloseIfSupported(store)
			return nil, err
		}
	}

	return &Client{
		store:      store,
		metrics:    collector,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureSimulator(ctx)
	return err
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg, err := runConfig(req)
	if err != nil {
		return RunSummary{}, err
	}
	sim, err := c.ensureSimulator(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	result, err := sim.Run(ctx, cfg)
	summary := RunSummary{
		RunID:                result.Run.ID,
		Scenario:             result.Run.Scenario,
		ResumedFrom:          result.Run.ResumedFrom,
		ArtifactsDir:         result.ArtifactsDir,
		AttackerStrategies:   result.Run.AttackerStrategies,
		DefenderStrategies:   result.Run.DefenderStrategies,
		Generations:          result.Run.Generations,
		FinalAttackerUtility: result.Run.FinalAttackerUtility,
		FinalDefenderUtility: result.Run.FinalDefenderUtility,
		Elapsed:              result.Elapsed,
	}
	return summary, err
}

// runConfig turns a request into a validated run configuration.
func runConfig(req RunRequest) (config.RunConfig, error) {
	cfg := config.Default()
	cfg.RunID = req.RunID
	cfg.ContinueRunID = req.ContinueRunID
	cfg.MetricsAddr = req.MetricsAddr
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}

	if req.Scenario == "" && req.TreeFile == "" {
		req.Scenario = cfg.Scenario
	}
	if req.TreeFile == "" {
		sc, err := scenario.Lookup(req.Scenario)
		if err != nil && req.ContinueRunID == "" {
			return config.RunConfig{}, err
		}
		if err == nil {
			cfg.ApplyScenario(sc)
		}
	} else {
		cfg.TreeFile = req.TreeFile
	}

	if req.Resolution != 0 {
		cfg.Resolution = req.Resolution
		cfg.DetectionRate = req.DetectionRate
		cfg.AttackerBudget = req.AttackerBudget
		cfg.DefenderBudget = req.DefenderBudget
		cfg.Replicator = req.Replicator
		cfg.TruncationFraction = req.TruncationFraction
		cfg.DT = req.DT
		cfg.Delta = req.Delta
	}
	if req.Generations > 0 {
		cfg.Generations = req.Generations
	}
	if err := cfg.Validate(); err != nil {
		return config.RunConfig{}, err
	}
	return *cfg, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:                e.RunID,
			CreatedAtUTC:         e.CreatedAtUTC,
			Scenario:             e.Scenario,
			Replicator:           e.Replicator,
			Seed:                 e.Seed,
			Nodes:                e.Nodes,
			AttackerStrategies:   e.AttackerStrategies,
			DefenderStrategies:   e.DefenderStrategies,
			Generations:          e.Generations,
			FinalAttackerUtility: e.FinalAttackerUtility,
			FinalDefenderUtility: e.FinalDefenderUtility,
		})
	}
	return out, nil
}

// History returns a run's generation records, from the store when it holds
// the run and from the run's artifacts otherwise.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.GenerationRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "history")
	if err != nil {
		return nil, err
	}
	history, err := c.history(ctx, runID)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

// Profiles aggregates a run's per-node profiles by node group or tree level.
func (c *Client) Profiles(ctx context.Context, req ProfilesRequest) ([]stats.GroupProfile, error) {
	by := req.By
	if by == "" {
		by = ProfileByGroup
	}
	if by != ProfileByGroup && by != ProfileByLevel {
		return nil, fmt.Errorf("unsupported profile grouping: %s", req.By)
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "profiles")
	if err != nil {
		return nil, err
	}
	history, err := c.history(ctx, runID)
	if err != nil {
		return nil, err
	}
	nodes, err := c.nodes(ctx, runID)
	if err != nil {
		return nil, err
	}

	if by == ProfileByLevel {
		depths := make([]int, len(nodes))
		for i, node := range nodes {
			depths[i] = node.Depth
		}
		return stats.LevelProfiles(history, depths), nil
	}
	groups := make([]string, len(nodes))
	for i, node := range nodes {
		groups[i] = node.Group
	}
	return stats.GroupProfiles(history, groups), nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// Tree describes a built-in scenario or tree document without running it.
func (c *Client) Tree(_ context.Context, req TreeRequest) (TreeSummary, error) {
	var (
		sc  scenario.Scenario
		err error
	)
	switch {
	case req.TreeFile != "":
		sc, err = scenario.LoadFile(req.TreeFile)
	case req.Scenario != "":
		sc, err = scenario.Lookup(req.Scenario)
	default:
		return TreeSummary{}, errors.New("tree requires scenario or tree file")
	}
	if err != nil {
		return TreeSummary{}, err
	}
	tr, err := sc.Tree()
	if err != nil {
		return TreeSummary{}, err
	}
	g, err := game.New(tr, game.Config{Resolution: 1, DetectionRate: req.DetectionRate})
	if err != nil {
		return TreeSummary{}, err
	}

	summary := TreeSummary{Name: sc.Name, Nodes: g.NodeSummaries()}
	for i := 0; i < tr.Len(); i++ {
		if err := tree.ValidateNode(i, tr.Node(i), req.DetectionRate); err != nil {
			summary.Problems = append(summary.Problems, err.Error())
		}
	}
	return summary, nil
}

// Space counts the strategies of an n-node space without enumerating it.
func (c *Client) Space(_ context.Context, req SpaceRequest) (SpaceSummary, error) {
	cfg := game.Config{Resolution: req.Resolution, AttackerBudget: req.Budget}
	if err := cfg.Validate(); err != nil {
		return SpaceSummary{}, err
	}
	levels := game.Levels(req.Resolution, req.Budget)
	count, err := game.Compositions(req.Nodes, levels)
	if err != nil {
		return SpaceSummary{}, err
	}
	return SpaceSummary{
		Nodes:      req.Nodes,
		Resolution: req.Resolution,
		Budget:     req.Budget,
		Levels:     levels,
		Strategies: count,
	}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, action string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.runsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", action)
	}
	return runID, nil
}

func (c *Client) history(ctx context.Context, runID string) ([]model.GenerationRecord, error) {
	if _, err := c.ensureSimulator(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return history, nil
	}
	history, ok, err = stats.ReadHistory(c.runsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: history for %s", platform.ErrRunNotFound, runID)
	}
	return history, nil
}

func (c *Client) nodes(ctx context.Context, runID string) ([]game.NodeSummary, error) {
	nodes, ok, err := stats.ReadNodes(c.runsDir, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		return nodes, nil
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: nodes for %s", platform.ErrRunNotFound, runID)
	}
	records := make([]tree.Node, len(run.Nodes))
	for i, node := range run.Nodes {
		records[i] = tree.Node{
			Label:       node.Label,
			Group:       node.Group,
			Value:       node.Value,
			CostAttack:  node.CostAttack,
			CostDefence: node.CostDefence,
			Children:    node.Children,
		}
	}
	tr, err := tree.New(records)
	if err != nil {
		return nil, err
	}
	g, err := game.New(tr, game.Config{Resolution: 1, DetectionRate: run.Game.DetectionRate})
	if err != nil {
		return nil, err
	}
	return g.NodeSummaries(), nil
}

func (c *Client) ensureSimulator(ctx context.Context) (*platform.Simulator, error) {
	if c.simulator != nil {
		return c.simulator, nil
	}
	sim := platform.NewSimulator(platform.Config{
		Store:        c.store,
		ArtifactsDir: c.runsDir,
		Metrics:      c.metrics,
	})
	if err := sim.Init(ctx); err != nil {
		return nil, err
	}
	c.simulator = sim
	return c.simulator, nil
}
