//go:build sqlite

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"amigame/internal/model"
)

func openSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(filepath.Join(t.TempDir(), "amigame.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreRunRoundTripAndList(t *testing.T) {
	ctx := context.Background()
	store := openSQLiteStore(t)

	second := sampleRun("run-2", time.Unix(200, 0).UTC())
	first := sampleRun("run-1", time.Unix(100, 0).UTC())
	for _, run := range []model.RunRecord{second, first} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected run-1")
	}
	if loaded.Scenario != "star" || len(loaded.Nodes) != 3 || loaded.Nodes[0].Children[1] != 2 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	first.Generations = 12
	if err := store.SaveRun(ctx, first); err != nil {
		t.Fatalf("upsert run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-1" || runs[1].ID != "run-2" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Generations != 12 {
		t.Fatalf("upsert did not replace payload: %+v", runs[0])
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, got ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreSnapshotAndHistory(t *testing.T) {
	ctx := context.Background()
	store := openSQLiteStore(t)

	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		Generation:      3,
		Attackers:       []float64{0.5, 0.5},
		Defenders:       []float64{0.2, 0.8},
	}
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	snapshot.Generation = 4
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("upsert snapshot: %v", err)
	}
	loaded, ok, err := store.GetSnapshot(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get snapshot: ok=%t err=%v", ok, err)
	}
	if loaded.Generation != 4 || loaded.Defenders[1] != 0.8 {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}

	history := []model.GenerationRecord{{Generation: 0, AttackerUtility: 2, DefenderUtility: -3, AttackProfile: []float64{1, 0}, DefenceProfile: []float64{0, 1}}}
	if err := store.SaveHistory(ctx, "run-1", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetHistory(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(output) != 1 || output[0].DefenderUtility != -3 {
		t.Fatalf("unexpected history: %+v", output)
	}
}

func TestSQLiteStoreRejectsStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	store := openSQLiteStore(t)

	stale := model.PopulationSnapshot{RunID: "run-legacy", Attackers: []float64{1}, Defenders: []float64{1}}
	if err := store.SaveSnapshot(ctx, stale); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if _, _, err := store.GetSnapshot(ctx, "run-legacy"); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "amigame.db"))
	if _, _, err := store.GetRun(context.Background(), "run-1"); err == nil {
		t.Fatal("expected error before init")
	}
}
