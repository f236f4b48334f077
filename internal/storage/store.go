package storage

import (
	"context"

	"amigame/internal/model"
)

// Store persists simulation runs so they can be inspected and resumed.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns every run ordered by creation time, oldest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveSnapshot(ctx context.Context, snapshot model.PopulationSnapshot) error
	GetSnapshot(ctx context.Context, runID string) (model.PopulationSnapshot, bool, error)
	SaveHistory(ctx context.Context, runID string, history []model.GenerationRecord) error
	GetHistory(ctx context.Context, runID string) ([]model.GenerationRecord, bool, error)
}
