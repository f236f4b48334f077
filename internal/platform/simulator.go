package platform

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"amigame/internal/config"
	"amigame/internal/evo"
	"amigame/internal/game"
	"amigame/internal/logging"
	"amigame/internal/metrics"
	"amigame/internal/model"
	"amigame/internal/scenario"
	"amigame/internal/stats"
	"amigame/internal/storage"
	"amigame/internal/tree"
)

var ErrRunNotFound = errors.New("run not found")

// indexTimeFormat keeps index timestamps fixed-width so they sort as strings.
const indexTimeFormat = "2006-01-02T15:04:05.000000000Z"

type Config struct {
	Store storage.Store
	// ArtifactsDir receives per-run artifacts and the run index. Empty skips
	// artifact output.
	ArtifactsDir string
	// Metrics is optional; a nil collector records nothing.
	Metrics *metrics.Collector
}

// RunResult describes a finished (or interrupted) run. History covers the
// whole run, including generations recorded before a resume.
type RunResult struct {
	Run            model.RunRecord
	Nodes          []game.NodeSummary
	History        []model.GenerationRecord
	FinalAttackers []float64
	FinalDefenders []float64
	ArtifactsDir   string
	Elapsed        time.Duration
}

// Simulator wires a tree, its game and a population together, drives the
// population for the requested generations and persists the outcome.
type Simulator struct {
	store        storage.Store
	artifactsDir string
	metrics      *metrics.Collector

	mu      sync.Mutex
	started bool
}

func NewSimulator(cfg Config) *Simulator {
	return &Simulator{
		store:        cfg.Store,
		artifactsDir: cfg.ArtifactsDir,
		metrics:      cfg.Metrics,
	}
}

func (s *Simulator) Init(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.store.Init(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *Simulator) Store() storage.Store {
	return s.store
}

// run is the state needed to drive one simulation, whether fresh or resumed.
type run struct {
	record     model.RunRecord
	tree       *tree.Tree
	game       *game.Game
	population *evo.Population
	prior      []model.GenerationRecord
	start      int
}

// Run starts a new simulation, or resumes cfg.ContinueRunID, and drives it
// for cfg.Generations generations. When ctx is cancelled between generations
// the progress made so far is persisted and returned with ctx's error.
func (s *Simulator) Run(ctx context.Context, cfg config.RunConfig) (RunResult, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return RunResult{}, fmt.Errorf("simulator is not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return RunResult{}, err
	}

	var (
		r   *run
		err error
	)
	if cfg.ContinueRunID != "" {
		r, err = s.resume(ctx, cfg)
	} else {
		r, err = s.prepare(cfg)
	}
	if err != nil {
		return RunResult{}, err
	}

	ctx = logging.WithRunID(ctx, r.record.ID)
	logger := logging.ForRun(ctx)
	logger.Info().
		Str("scenario", r.record.Scenario).
		Str("replicator", r.record.Replicator.Name).
		Int("nodes", r.tree.Len()).
		Int("attacker_strategies", r.record.AttackerStrategies).
		Int("defender_strategies", r.record.DefenderStrategies).
		Int("from_generation", r.start).
		Int("generations", cfg.Generations).
		Str("resumed_from", r.record.ResumedFrom).
		Msg("run starting")

	if cfg.MetricsAddr != "" && s.metrics != nil {
		serveCtx, stopServing := context.WithCancel(ctx)
		defer stopServing()
		go func() {
			if err := s.metrics.Serve(serveCtx, cfg.MetricsAddr); err != nil {
				logger.Warn().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics endpoint stopped")
			}
		}()
	}

	labels := make([]string, r.tree.Len())
	for i := range labels {
		labels[i] = r.tree.Label(i)
	}
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Population:    r.population,
		Generations:   cfg.Generations,
		RecordInitial: len(r.prior) == 0,
		OnGeneration: func(record model.GenerationRecord, elapsed time.Duration) error {
			logger.Debug().
				Int("generation", record.Generation).
				Float64("attacker_utility", record.AttackerUtility).
				Float64("defender_utility", record.DefenderUtility).
				Dur("elapsed", elapsed).
				Msg("generation recorded")
			s.metrics.Observe(record, labels, elapsed)
			return nil
		},
	})
	if err != nil {
		return RunResult{}, err
	}

	out, runErr := monitor.Run(ctx)
	if runErr != nil && ctx.Err() == nil {
		return RunResult{}, runErr
	}

	history := make([]model.GenerationRecord, 0, len(r.prior)+len(out.History))
	history = append(history, r.prior...)
	history = append(history, out.History...)

	result, err := s.persist(context.WithoutCancel(ctx), cfg, r, history)
	if err != nil {
		return RunResult{}, err
	}
	result.Elapsed = out.Elapsed
	if runErr != nil {
		logger.Warn().Err(runErr).Int("generation", result.Run.Generations).Msg("run interrupted")
		return result, runErr
	}
	logger.Info().
		Int("generation", result.Run.Generations).
		Float64("attacker_utility", result.Run.FinalAttackerUtility).
		Float64("defender_utility", result.Run.FinalDefenderUtility).
		Dur("elapsed", out.Elapsed).
		Msg("run finished")
	return result, nil
}

func (s *Simulator) prepare(cfg config.RunConfig) (*run, error) {
	name, nodes, err := resolveNodes(cfg)
	if err != nil {
		return nil, err
	}
	tr, err := tree.New(nodes)
	if err != nil {
		return nil, err
	}
	g, err := newGame(tr, cfg.GameConfig())
	if err != nil {
		return nil, err
	}
	attackSpace, err := g.AttackerStrategies()
	if err != nil {
		return nil, err
	}
	defenceSpace, err := g.DefenderStrategies()
	if err != nil {
		return nil, err
	}

	params := cfg.ReplicatorParams()
	pop, err := evo.NewPopulation(g, evo.Uniform(attackSpace.Len()), evo.Uniform(defenceSpace.Len()), evo.Options{
		Params: params,
		Rand:   rand.New(rand.NewSource(cfg.Seed)),
	})
	if err != nil {
		return nil, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	now := time.Now().UTC()
	return &run{
		record: model.RunRecord{
			VersionedRecord:    storage.CurrentVersion(),
			ID:                 runID,
			Scenario:           name,
			CreatedAt:          now,
			UpdatedAt:          now,
			Seed:               cfg.Seed,
			Game:               gameParams(cfg.GameConfig()),
			Replicator:         replicatorParams(pop.Params()),
			Nodes:              nodeRecords(tr.Nodes()),
			AttackerStrategies: attackSpace.Len(),
			DefenderStrategies: defenceSpace.Len(),
		},
		tree:       tr,
		game:       g,
		population: pop,
	}, nil
}

// resume rebuilds a stored run's game from its record and restores the last
// snapshot. The stored game and replicator settings win over cfg. A RunID
// different from ContinueRunID forks the run under the new ID.
func (s *Simulator) resume(ctx context.Context, cfg config.RunConfig) (*run, error) {
	stored, ok, err := s.store.GetRun(ctx, cfg.ContinueRunID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, cfg.ContinueRunID)
	}
	snapshot, ok, err := s.store.GetSnapshot(ctx, stored.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no population snapshot for %s", ErrRunNotFound, stored.ID)
	}
	prior, _, err := s.store.GetHistory(ctx, stored.ID)
	if err != nil {
		return nil, err
	}

	tr, err := tree.New(treeNodes(stored.Nodes))
	if err != nil {
		return nil, fmt.Errorf("rebuild tree for %s: %w", stored.ID, err)
	}
	g, err := newGame(tr, gameConfig(stored.Game))
	if err != nil {
		return nil, err
	}
	pop, err := evo.NewPopulation(g, snapshot.Attackers, snapshot.Defenders, evo.Options{
		Params:     evoParams(stored.Replicator),
		Rand:       rand.New(rand.NewSource(stored.Seed + int64(snapshot.Generation))),
		Generation: snapshot.Generation,
	})
	if err != nil {
		return nil, fmt.Errorf("restore population for %s: %w", stored.ID, err)
	}

	record := stored
	record.VersionedRecord = storage.CurrentVersion()
	record.UpdatedAt = time.Now().UTC()
	if cfg.RunID != "" && cfg.RunID != stored.ID {
		record.ID = cfg.RunID
		record.ResumedFrom = stored.ID
		record.CreatedAt = record.UpdatedAt
	}
	return &run{
		record:     record,
		tree:       tr,
		game:       g,
		population: pop,
		prior:      prior,
		start:      snapshot.Generation,
	}, nil
}

func (s *Simulator) persist(ctx context.Context, cfg config.RunConfig, r *run, history []model.GenerationRecord) (RunResult, error) {
	pop := r.population
	record := r.record
	record.Generations = pop.Generation()
	record.UpdatedAt = time.Now().UTC()
	if n := len(history); n > 0 {
		record.FinalAttackerUtility = history[n-1].AttackerUtility
		record.FinalDefenderUtility = history[n-1].DefenderUtility
	}

	snapshot := model.PopulationSnapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           record.ID,
		Generation:      pop.Generation(),
		Seed:            record.Seed,
		Attackers:       pop.Attackers(),
		Defenders:       pop.Defenders(),
	}
	if err := s.store.SaveRun(ctx, record); err != nil {
		return RunResult{}, fmt.Errorf("save run %s: %w", record.ID, err)
	}
	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		return RunResult{}, fmt.Errorf("save snapshot %s: %w", record.ID, err)
	}
	if err := s.store.SaveHistory(ctx, record.ID, history); err != nil {
		return RunResult{}, fmt.Errorf("save history %s: %w", record.ID, err)
	}

	result := RunResult{
		Run:            record,
		Nodes:          r.game.NodeSummaries(),
		History:        history,
		FinalAttackers: snapshot.Attackers,
		FinalDefenders: snapshot.Defenders,
	}
	if s.artifactsDir == "" {
		return result, nil
	}

	dir, err := stats.WriteRunArtifacts(s.artifactsDir, stats.RunArtifacts{
		Config:               artifactConfig(cfg, record, r.start),
		Nodes:                result.Nodes,
		History:              history,
		FinalAttackerUtility: record.FinalAttackerUtility,
		FinalDefenderUtility: record.FinalDefenderUtility,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("write artifacts %s: %w", record.ID, err)
	}
	if err := stats.AppendRunIndex(s.artifactsDir, stats.RunIndexEntry{
		RunID:                record.ID,
		Scenario:             record.Scenario,
		Nodes:                len(record.Nodes),
		Resolution:           record.Game.Resolution,
		DetectionRate:        record.Game.DetectionRate,
		Replicator:           record.Replicator.Name,
		AttackerStrategies:   record.AttackerStrategies,
		DefenderStrategies:   record.DefenderStrategies,
		Generations:          record.Generations,
		Seed:                 record.Seed,
		FinalAttackerUtility: record.FinalAttackerUtility,
		FinalDefenderUtility: record.FinalDefenderUtility,
		CreatedAtUTC:         record.CreatedAt.UTC().Format(indexTimeFormat),
	}); err != nil {
		return RunResult{}, fmt.Errorf("index run %s: %w", record.ID, err)
	}
	result.ArtifactsDir = dir
	return result, nil
}

// resolveNodes picks the tree of a new run: a tree document when one is
// given, a built-in scenario otherwise.
func resolveNodes(cfg config.RunConfig) (string, []tree.Node, error) {
	if cfg.TreeFile != "" {
		sc, err := scenario.LoadFile(cfg.TreeFile)
		if err != nil {
			return "", nil, err
		}
		return sc.Name, sc.Nodes, nil
	}
	sc, err := scenario.Lookup(cfg.Scenario)
	if err != nil {
		return "", nil, err
	}
	return sc.Name, sc.Nodes, nil
}

func newGame(tr *tree.Tree, cfg game.Config) (*game.Game, error) {
	g, err := game.New(tr, cfg)
	if err != nil {
		return nil, err
	}
	if err := g.ValidateTree(); err != nil {
		return nil, err
	}
	return g, nil
}

func artifactConfig(cfg config.RunConfig, record model.RunRecord, start int) stats.RunConfig {
	return stats.RunConfig{
		RunID:              record.ID,
		ContinueRunID:      cfg.ContinueRunID,
		Scenario:           record.Scenario,
		TreeFile:           cfg.TreeFile,
		Resolution:         record.Game.Resolution,
		DetectionRate:      record.Game.DetectionRate,
		AttackerBudget:     record.Game.AttackerBudget,
		DefenderBudget:     record.Game.DefenderBudget,
		Replicator:         record.Replicator.Name,
		TruncationFraction: record.Replicator.TruncationFraction,
		DT:                 record.Replicator.DT,
		Delta:              record.Replicator.Delta,
		InitialGeneration:  start,
		Generations:        cfg.Generations,
		Seed:               record.Seed,
		Store:              cfg.Store,
	}
}
