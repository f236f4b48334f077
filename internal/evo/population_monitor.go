package evo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"amigame/internal/model"
)

type RunResult struct {
	History        []model.GenerationRecord
	FinalAttackers []float64
	FinalDefenders []float64
	Elapsed        time.Duration
}

type MonitorConfig struct {
	Population  *Population
	Generations int
	// RecordInitial records the starting state before any replication.
	// Resumed runs leave it off since that state was recorded already.
	RecordInitial bool
	// OnGeneration is called with every record as it is produced. Returning an
	// error stops the run.
	OnGeneration func(model.GenerationRecord, time.Duration) error
}

// PopulationMonitor drives a population for a fixed number of generations.
type PopulationMonitor struct {
	cfg MonitorConfig
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Population == nil {
		return nil, errors.New("population is required")
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0, got %d", cfg.Generations)
	}
	return &PopulationMonitor{cfg: cfg}, nil
}

func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	started := time.Now()
	pop := m.cfg.Population
	history := make([]model.GenerationRecord, 0, m.cfg.Generations+1)

	record := func(elapsed time.Duration) error {
		if err := pop.CalculateUtilities(); err != nil {
			return err
		}
		rec := Snapshot(pop)
		history = append(history, rec)
		if m.cfg.OnGeneration != nil {
			if err := m.cfg.OnGeneration(rec, elapsed); err != nil {
				return fmt.Errorf("generation %d observer: %w", rec.Generation, err)
			}
		}
		return nil
	}

	if m.cfg.RecordInitial {
		if err := record(0); err != nil {
			return RunResult{}, err
		}
	}
	for i := 0; i < m.cfg.Generations; i++ {
		if err := ctx.Err(); err != nil {
			return RunResult{History: history}, err
		}
		stepStarted := time.Now()
		if err := pop.Replicate(); err != nil {
			return RunResult{History: history}, fmt.Errorf("generation %d: %w", pop.Generation()+1, err)
		}
		if err := record(time.Since(stepStarted)); err != nil {
			return RunResult{History: history}, err
		}
	}

	return RunResult{
		History:        history,
		FinalAttackers: pop.Attackers(),
		FinalDefenders: pop.Defenders(),
		Elapsed:        time.Since(started),
	}, nil
}

// Snapshot records the population's current generation using the utilities
// last computed for it.
func Snapshot(p *Population) model.GenerationRecord {
	return model.GenerationRecord{
		Generation:      p.Generation(),
		AttackerUtility: p.AverageAttackerUtility(),
		DefenderUtility: p.AverageDefenderUtility(),
		AttackProfile:   p.AttackProfile(),
		DefenceProfile:  p.DefenceProfile(),
	}
}
