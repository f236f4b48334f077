package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"amigame/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	snapshots   map[string]model.PopulationSnapshot
	history     map[string][]model.GenerationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.snapshots = make(map[string]model.PopulationSnapshot)
	s.history = make(map[string][]model.GenerationRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = copyRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return copyRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, copyRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snapshot model.PopulationSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.snapshots[snapshot.RunID] = copySnapshot(snapshot)
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, runID string) (model.PopulationSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[runID]
	if !ok {
		return model.PopulationSnapshot{}, false, nil
	}
	return copySnapshot(snapshot), true, nil
}

func (s *MemoryStore) SaveHistory(_ context.Context, runID string, history []model.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.history[runID] = copyHistory(history)
	return nil
}

func (s *MemoryStore) GetHistory(_ context.Context, runID string) ([]model.GenerationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return copyHistory(history), true, nil
}

func copyRun(run model.RunRecord) model.RunRecord {
	nodes := make([]model.NodeRecord, len(run.Nodes))
	for i, node := range run.Nodes {
		node.Children = append([]int(nil), node.Children...)
		nodes[i] = node
	}
	run.Nodes = nodes
	return run
}

func copySnapshot(snapshot model.PopulationSnapshot) model.PopulationSnapshot {
	snapshot.Attackers = append([]float64(nil), snapshot.Attackers...)
	snapshot.Defenders = append([]float64(nil), snapshot.Defenders...)
	return snapshot
}

func copyHistory(history []model.GenerationRecord) []model.GenerationRecord {
	copied := make([]model.GenerationRecord, len(history))
	for i, record := range history {
		record.AttackProfile = append([]float64(nil), record.AttackProfile...)
		record.DefenceProfile = append([]float64(nil), record.DefenceProfile...)
		copied[i] = record
	}
	return copied
}

func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
}
