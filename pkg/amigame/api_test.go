package amigame

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"amigame/internal/game"
	"amigame/internal/platform"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func TestClientRunRunsAndExport(t *testing.T) {
	client, base := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Scenario: "star", Generations: 4, Seed: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.Scenario != "star" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Generations != 4 || summary.AttackerStrategies != 6 || summary.DefenderStrategies != 6 {
		t.Fatalf("unexpected summary counts: %+v", summary)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Replicator != "reqn" {
		t.Fatalf("expected run %s in runs list: %+v", summary.RunID, runs)
	}

	history, err := client.History(ctx, HistoryRequest{Latest: true})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 5 || history[4].Generation != 4 {
		t.Fatalf("unexpected history: %d records", len(history))
	}
	limited, err := client.History(ctx, HistoryRequest{RunID: summary.RunID, Limit: 2})
	if err != nil || len(limited) != 2 {
		t.Fatalf("limited history: len=%d err=%v", len(limited), err)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("exported %s, want %s", exported.RunID, summary.RunID)
	}
	if !strings.HasPrefix(exported.Directory, filepath.Join(base, "exports")) {
		t.Fatalf("unexpected export directory: %s", exported.Directory)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "history.json")); err != nil {
		t.Fatalf("exported history missing: %v", err)
	}
}

func TestClientHistoryFallsBackToArtifacts(t *testing.T) {
	base := t.TempDir()
	runsDir := filepath.Join(base, "runs")
	first, err := New(Options{StoreKind: "memory", RunsDir: runsDir})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	summary, err := first.Run(context.Background(), RunRequest{Scenario: "star", Generations: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// A fresh memory store knows nothing about the run.
	second, err := New(Options{StoreKind: "memory", RunsDir: runsDir})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	history, err := second.History(context.Background(), HistoryRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records from artifacts, got %d", len(history))
	}

	if _, err := second.History(context.Background(), HistoryRequest{RunID: "missing"}); !errors.Is(err, platform.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestClientProfiles(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	if _, err := client.Run(ctx, RunRequest{Scenario: "star", Generations: 3}); err != nil {
		t.Fatalf("run: %v", err)
	}

	groups, err := client.Profiles(ctx, ProfilesRequest{Latest: true})
	if err != nil {
		t.Fatalf("group profiles: %v", err)
	}
	if len(groups) != 2 || groups[0].Group != "HES" || groups[1].Group != "Meter" {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if len(groups[1].Nodes) != 2 || len(groups[1].Attack) != 4 {
		t.Fatalf("unexpected meter group: %+v", groups[1])
	}

	levels, err := client.Profiles(ctx, ProfilesRequest{Latest: true, By: ProfileByLevel})
	if err != nil {
		t.Fatalf("level profiles: %v", err)
	}
	if len(levels) != 2 || levels[0].Group != "level 1" || levels[1].Group != "level 2" {
		t.Fatalf("unexpected levels: %+v", levels)
	}
	for i := range levels[0].Attack {
		total := levels[0].Attack[i] + levels[1].Attack[i]
		// Every attacker strategy spends the whole budget of 1.
		if total < 1-1e-9 || total > 1+1e-9 {
			t.Fatalf("generation %d attack total %v", i, total)
		}
	}

	if _, err := client.Profiles(ctx, ProfilesRequest{Latest: true, By: "colour"}); err == nil {
		t.Fatal("expected unsupported grouping error")
	}
}

func TestClientResume(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	first, err := client.Run(ctx, RunRequest{RunID: "resumable", Scenario: "star", Generations: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	resumed, err := client.Run(ctx, RunRequest{ContinueRunID: first.RunID, Generations: 3})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.RunID != "resumable" || resumed.Generations != 5 {
		t.Fatalf("unexpected resumed summary: %+v", resumed)
	}
	history, err := client.History(ctx, HistoryRequest{RunID: "resumable"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 6 {
		t.Fatalf("expected 6 records, got %d", len(history))
	}
}

func TestClientRunWithExplicitSettings(t *testing.T) {
	client, _ := newTestClient(t)
	summary, err := client.Run(context.Background(), RunRequest{
		Scenario:           "star",
		Resolution:         3,
		DetectionRate:      0.2,
		AttackerBudget:     1,
		DefenderBudget:     1,
		Replicator:         "truncation",
		TruncationFraction: 0.5,
		Generations:        2,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// C(3+2, 2) compositions of 3 levels over 3 nodes.
	if summary.AttackerStrategies != 10 {
		t.Fatalf("expected 10 strategies, got %d", summary.AttackerStrategies)
	}

	if _, err := client.Run(context.Background(), RunRequest{Scenario: "nowhere"}); err == nil {
		t.Fatal("expected unknown scenario error")
	}
}

func TestClientRunPublishesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, err := New(Options{StoreKind: "memory", RunsDir: t.TempDir(), Registerer: reg})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Run(context.Background(), RunRequest{Scenario: "star", Generations: 3}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := testutil.ToFloat64(client.metrics.GenerationsTotal); got != 4 {
		t.Fatalf("amigame_generations_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(client.metrics.Generation); got != 3 {
		t.Fatalf("amigame_generation = %v, want 3", got)
	}
}

func TestClientTreeAndSpace(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Tree(ctx, TreeRequest{Scenario: "ami-small"})
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if summary.Name != "ami-small" || len(summary.Nodes) != 15 || len(summary.Problems) != 0 {
		t.Fatalf("unexpected tree summary: name=%s nodes=%d problems=%v", summary.Name, len(summary.Nodes), summary.Problems)
	}

	strict, err := client.Tree(ctx, TreeRequest{Scenario: "star", DetectionRate: 0.9})
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	// v(1-a) drops to 0.4 on the root and 0.2 on the leaves.
	if len(strict.Problems) != 3 {
		t.Fatalf("expected 3 problems at a=0.9, got %v", strict.Problems)
	}

	space, err := client.Space(ctx, SpaceRequest{Nodes: 15, Resolution: 3, Budget: 1})
	if err != nil {
		t.Fatalf("space: %v", err)
	}
	want, _ := game.Compositions(15, 3)
	if space.Levels != 3 || space.Strategies != want || want != 680 {
		t.Fatalf("unexpected space: %+v (want %d)", space, want)
	}
	if _, err := client.Space(ctx, SpaceRequest{Nodes: 3, Resolution: 0, Budget: 1}); err == nil {
		t.Fatal("expected invalid resolution error")
	}
	if got, err := client.Space(ctx, SpaceRequest{Nodes: 40, Resolution: 5, Budget: 80}); !errors.Is(err, game.ErrStrategySpaceTooLarge) {
		t.Fatalf("expected ErrStrategySpaceTooLarge, got %+v err=%v", got, err)
	}
}

func TestClientRequestValidation(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export without run id to fail")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected export with both run id and latest to fail")
	}
	if _, err := client.History(ctx, HistoryRequest{Latest: true}); err == nil {
		t.Fatal("expected latest history without runs to fail")
	}
	if _, err := client.History(ctx, HistoryRequest{RunID: "x", Limit: -1}); err == nil {
		t.Fatal("expected negative limit to fail")
	}
	if _, err := client.Tree(ctx, TreeRequest{}); err == nil {
		t.Fatal("expected tree without source to fail")
	}
}
