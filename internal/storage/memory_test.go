package storage

import (
	"context"
	"testing"
	"time"

	"amigame/internal/model"
)

func sampleRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		Scenario:        "star",
		CreatedAt:       created,
		Game:            model.GameParams{Resolution: 2, AttackerBudget: 1, DefenderBudget: 1},
		Replicator:      model.ReplicatorParams{Name: "reqn", DT: 0.1},
		Nodes: []model.NodeRecord{
			{Label: "root", Value: 4, CostAttack: 1, CostDefence: 1, Children: []int{1, 2}},
			{Label: "left", Value: 2, CostAttack: 0.5, CostDefence: 0.5},
			{Label: "right", Value: 2, CostAttack: 0.5, CostDefence: 0.5},
		},
	}
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := sampleRun("run-1", time.Unix(100, 0))
	if err := store.SaveRun(ctx, input); err != nil {
		t.Fatalf("save run: %v", err)
	}
	input.Nodes[0].Children[0] = 99

	output, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if output.Nodes[0].Children[0] != 1 {
		t.Fatalf("store aliased caller nodes: %+v", output.Nodes[0])
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, got ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreListRunsOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, run := range []model.RunRecord{
		sampleRun("run-c", time.Unix(300, 0)),
		sampleRun("run-a", time.Unix(100, 0)),
		sampleRun("run-b", time.Unix(100, 0)),
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run-a" || runs[1].ID != "run-b" || runs[2].ID != "run-c" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
}

func TestMemoryStoreSnapshotAndHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		Generation:      5,
		Attackers:       []float64{0.25, 0.75},
		Defenders:       []float64{1},
	}
	if err := store.SaveSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	snapshot.Attackers[0] = 1
	loaded, ok, err := store.GetSnapshot(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get snapshot: ok=%t err=%v", ok, err)
	}
	if loaded.Attackers[0] != 0.25 || loaded.Generation != 5 {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}

	history := []model.GenerationRecord{
		{Generation: 0, AttackerUtility: 1, DefenderUtility: -2, AttackProfile: []float64{0.5, 0.5}, DefenceProfile: []float64{1, 0}},
		{Generation: 1, AttackerUtility: 1.5, DefenderUtility: -2.5, AttackProfile: []float64{0.6, 0.4}, DefenceProfile: []float64{0.9, 0.1}},
	}
	if err := store.SaveHistory(ctx, "run-1", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history[1].AttackProfile[0] = 42
	output, ok, err := store.GetHistory(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if len(output) != 2 || output[1].AttackProfile[0] != 0.6 {
		t.Fatalf("unexpected history: %+v", output)
	}
	output[0].DefenceProfile[0] = 42
	again, _, _ := store.GetHistory(ctx, "run-1")
	if again[0].DefenceProfile[0] != 1 {
		t.Fatal("GetHistory returned internal slices")
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), sampleRun("run-1", time.Now())); err == nil {
		t.Fatal("expected error saving to uninitialized store")
	}
}
