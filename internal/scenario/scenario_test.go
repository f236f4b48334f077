package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"amigame/internal/evo"
	"amigame/internal/game"
	"amigame/internal/tree"
)

func TestBuiltinScenariosAreValid(t *testing.T) {
	cases := []struct {
		name   string
		nodes  int
		groups map[string]int
	}{
		{name: "star", nodes: 3, groups: map[string]int{GroupHeadEnd: 1, GroupMeter: 2}},
		{name: "ami-small", nodes: 15, groups: map[string]int{GroupHeadEnd: 1, GroupCollector: 3, GroupMeterCollector: 2, GroupMeter: 9}},
		{name: "ami-large", nodes: 24, groups: map[string]int{GroupHeadEnd: 1, GroupCollector: 2, GroupMeterCollector: 5, GroupMeter: 16}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Lookup(tc.name)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			tr, err := s.Tree()
			if err != nil {
				t.Fatalf("tree: %v", err)
			}
			if tr.Len() != tc.nodes || tr.Root() != 0 {
				t.Fatalf("unexpected tree len=%d root=%d", tr.Len(), tr.Root())
			}
			if err := tr.Validate(s.Game.DetectionRate); err != nil {
				t.Fatalf("economics: %v", err)
			}
			if err := s.Game.Validate(); err != nil {
				t.Fatalf("game config: %v", err)
			}
			if err := s.Replicator.Validate(); err != nil {
				t.Fatalf("replicator params: %v", err)
			}
			groups := make(map[string]int)
			for _, node := range s.Nodes {
				groups[node.Group]++
			}
			if !reflect.DeepEqual(groups, tc.groups) {
				t.Fatalf("unexpected groups %v, want %v", groups, tc.groups)
			}
		})
	}
}

func TestAMISmallStructure(t *testing.T) {
	s := AMISmall()
	tr, err := s.Tree()
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	wantChildren := map[int][]int{
		0: {1, 2},
		1: {3, 4},
		2: {5, 6},
		4: {7, 8, 9},
		5: {10, 11},
		6: {12, 13, 14},
	}
	for parent, children := range wantChildren {
		if got := tr.Children(parent); !reflect.DeepEqual(got, children) {
			t.Fatalf("children(%d)=%v, want %v", parent, got, children)
		}
	}
	if tr.Depth(14) != 3 {
		t.Fatalf("depth of last meter=%d, want 3", tr.Depth(14))
	}

	g, err := game.New(tr, s.Game)
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	count, err := game.Compositions(tr.Len(), 3)
	if err != nil {
		t.Fatalf("compositions: %v", err)
	}
	if count != 680 {
		t.Fatalf("expected 680 strategies, got %d", count)
	}
	if g.N() != 15 {
		t.Fatalf("unexpected node count %d", g.N())
	}
}

func TestAMILargeHalvesHeadEndValue(t *testing.T) {
	s := AMILarge()
	if s.Nodes[0].Value != 32.5 {
		t.Fatalf("head-end value=%v, want 32.5", s.Nodes[0].Value)
	}
	if s.Replicator.Replicator != evo.ReplicatorTruncation || s.Game.DefenderBudget != 4 {
		t.Fatalf("unexpected settings: %+v %+v", s.Game, s.Replicator)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("mesh"); !errors.Is(err, ErrUnknownScenario) {
		t.Fatalf("expected ErrUnknownScenario, got %v", err)
	}
	if !reflect.DeepEqual(Names(), []string{"ami-large", "ami-small", "star"}) {
		t.Fatalf("unexpected names: %v", Names())
	}
}

const chainDocument = `
name: chain
nodes:
  - label: gateway
    group: HES
    value: 10
    cost_attack: 2
    cost_defence: 1
    children: [1]
  - label: meter
    value: 4
    cost_attack: 0.5
    cost_defence: 0.5
game:
  resolution: 4
  detection_rate: 0.1
replicator:
  replicator: truncation
  truncation_fraction: 0.3
generations: 15
`

func TestParseDocumentKeepsDefaultsForOmittedFields(t *testing.T) {
	s, err := Parse([]byte(chainDocument))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Name != "chain" || len(s.Nodes) != 2 || s.Generations != 15 {
		t.Fatalf("unexpected scenario: %+v", s)
	}
	defaults := game.DefaultConfig()
	if s.Game.Resolution != 4 || s.Game.DetectionRate != 0.1 || s.Game.AttackerBudget != defaults.AttackerBudget || s.Game.DefenderBudget != defaults.DefenderBudget {
		t.Fatalf("unexpected game config: %+v", s.Game)
	}
	if s.Replicator.Replicator != "truncation" || s.Replicator.TruncationFraction != 0.3 || s.Replicator.DT != evo.DefaultParams().DT {
		t.Fatalf("unexpected replicator params: %+v", s.Replicator)
	}
	if !reflect.DeepEqual(s.Nodes[0].Children, []int{1}) || s.Nodes[0].Group != "HES" {
		t.Fatalf("unexpected root node: %+v", s.Nodes[0])
	}
}

func TestParseDocumentRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{name: "unknown field", doc: "nodes:\n  - value: 1\n    weight: 2\n"},
		{name: "no nodes", doc: "name: empty\n"},
		{name: "dangling child", doc: "nodes:\n  - value: 1\n    children: [3]\n", want: tree.ErrInvalidTree},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected parse error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	want := AMISmall()
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestLoadFileDefaultsName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "substation.yaml")
	doc := "nodes:\n  - value: 5\n    cost_attack: 1\n    cost_defence: 1\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Name != "substation" || len(s.Nodes) != 1 {
		t.Fatalf("unexpected scenario: %+v", s)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}
