package stats

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildTrendSeries(t *testing.T) {
	series := BuildTrendSeries(sampleHistory(), []string{"root", "left", "right"})
	if len(series) != 8 {
		t.Fatalf("expected 8 series, got %d", len(series))
	}
	if series[0].Name != SeriesAttackerUtility || series[1].Name != SeriesDefenderUtility {
		t.Fatalf("unexpected leading series: %s %s", series[0].Name, series[1].Name)
	}
	if series[2].Name != "attack:root" || series[5].Name != "defence:root" {
		t.Fatalf("unexpected node series order: %s %s", series[2].Name, series[5].Name)
	}
	if len(series[0].Points) != 3 || series[0].Points[2] != (TrendPoint{Generation: 2, Value: 2}) {
		t.Fatalf("unexpected utility points: %+v", series[0].Points)
	}
	if got := series[5].Values(); got[1] != 0.3 {
		t.Fatalf("unexpected root defence values: %v", got)
	}
}

func TestSummarizeTrend(t *testing.T) {
	series := BuildTrendSeries(sampleHistory(), nil)[0]
	summary := SummarizeTrend(series, 0)
	if summary.Mean != 1.5 || summary.Min != 1 || summary.Max != 2 || summary.Final != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if math.Abs(summary.Std-0.5) > 1e-12 {
		t.Fatalf("std=%v, want 0.5", summary.Std)
	}

	last := SummarizeTrend(series, 1)
	if last.Mean != 2 || last.Std != 0 {
		t.Fatalf("unexpected single-point summary: %+v", last)
	}
	if empty := SummarizeTrend(TrendSeries{Name: "empty"}, 3); empty.Mean != 0 || empty.Name != "empty" {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestWriteTrendGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trends.dat")
	series := BuildTrendSeries(sampleHistory(), []string{"root node"})
	if err := WriteTrendGraph(path, "run-1", series); err != nil {
		t.Fatalf("write trend graph: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"#attacker_utility Vs Generation, Run:run-1\n0 1\n1 1.5\n2 2\n",
		"#attack_root_node Vs Generation, Run:run-1\n",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("trend graph missing %q:\n%s", want, text)
		}
	}
}
