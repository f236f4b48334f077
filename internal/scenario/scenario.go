package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"amigame/internal/evo"
	"amigame/internal/game"
	"amigame/internal/tree"
)

var ErrUnknownScenario = errors.New("unknown scenario")

// Node groups used by the built-in AMI hierarchies.
const (
	GroupHeadEnd        = "HES"
	GroupCollector      = "Collector"
	GroupMeterCollector = "Meter/Collector"
	GroupMeter          = "Meter"
)

// Scenario is a tree together with the game and replicator settings it is
// meant to be played with.
type Scenario struct {
	Name        string
	Description string
	Nodes       []tree.Node
	Game        game.Config
	Replicator  evo.Params
	Generations int
}

// Tree builds and structurally validates the scenario's tree.
func (s Scenario) Tree() (*tree.Tree, error) {
	tr, err := tree.New(s.Nodes)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return tr, nil
}

var builtins = map[string]func() Scenario{
	"star":      Star,
	"ami-small": AMISmall,
	"ami-large": AMILarge,
}

func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Lookup(name string) (Scenario, error) {
	build, ok := builtins[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownScenario, name, strings.Join(Names(), ", "))
	}
	return build(), nil
}

// Star is a root with two leaves, small enough to check utilities by hand.
func Star() Scenario {
	return Scenario{
		Name:        "star",
		Description: "root with two leaves",
		Nodes: []tree.Node{
			{Label: "root", Group: GroupHeadEnd, Value: 4, CostAttack: 1, CostDefence: 1, Children: []int{1, 2}},
			{Label: "left", Group: GroupMeter, Value: 2, CostAttack: 0.5, CostDefence: 0.5},
			{Label: "right", Group: GroupMeter, Value: 2, CostAttack: 0.5, CostDefence: 0.5},
		},
		Game:        game.Config{Resolution: 2, DetectionRate: 0, AttackerBudget: 1, DefenderBudget: 1},
		Replicator:  evo.Params{Replicator: evo.ReplicatorREQN, TruncationFraction: 0.2, DT: 0.1, Delta: 0},
		Generations: 10,
	}
}

// AMISmall is a 15 node metering hierarchy: a head-end system, two
// collectors and their meters.
func AMISmall() Scenario {
	b := tree.NewBuilder()
	hes := b.Add(tree.Node{Label: "hes", Group: GroupHeadEnd, Value: 33, CostDefence: 0.6, CostAttack: 10})
	c1 := b.Add(tree.Node{Label: "collector-1", Group: GroupCollector, Value: 15, CostDefence: 0.6, CostAttack: 6})
	c2 := b.Add(tree.Node{Label: "collector-2", Group: GroupCollector, Value: 18, CostDefence: 0.6, CostAttack: 6})
	m1 := b.Add(meter("meter-1", 3))
	mc1 := b.Add(tree.Node{Label: "meter-collector-1", Group: GroupMeterCollector, Value: 12, CostDefence: 0.8, CostAttack: 0.01})
	mc2 := b.Add(tree.Node{Label: "meter-collector-2", Group: GroupMeterCollector, Value: 9, CostDefence: 0.8, CostAttack: 0.01})
	c3 := b.Add(tree.Node{Label: "collector-3", Group: GroupCollector, Value: 9, CostDefence: 0.6, CostAttack: 6})
	leaves := make([]int, 8)
	for i := range leaves {
		leaves[i] = b.Add(meter(fmt.Sprintf("meter-%d", i+2), 3))
	}
	b.Link(hes, c1, c2).
		Link(c1, m1, mc1).
		Link(c2, mc2, c3).
		Link(mc1, leaves[0], leaves[1], leaves[2]).
		Link(mc2, leaves[3], leaves[4]).
		Link(c3, leaves[5], leaves[6], leaves[7])

	return Scenario{
		Name:        "ami-small",
		Description: "15 node metering hierarchy",
		Nodes:       mustNodes(b),
		Game:        game.Config{Resolution: 3, DetectionRate: 0, AttackerBudget: 1, DefenderBudget: 1},
		Replicator:  evo.Params{Replicator: evo.ReplicatorREQN, TruncationFraction: 0.2, DT: 0.1, Delta: 100},
		Generations: 200,
	}
}

func meter(label string, value float64) tree.Node {
	return tree.Node{Label: label, Group: GroupMeter, Value: value, CostDefence: 0.8, CostAttack: 0.01}
}

// AMILarge is a 24 node metering hierarchy with uniform costs. The head-end
// value is halved so that its own exposure stays below what its children
// pass through.
func AMILarge() Scenario {
	values := []float64{
		32.5,
		20, 40,
		14, 6, 29, 4, 15,
		1, 2, 1, 5,
		3, 1.5,
		1, 4, 6, 4, 3,
		1, 1.5,
		3, 5, 1.5,
	}
	links := [][]int{
		0: {1, 2},
		1: {3, 4},
		2: {5, 6, 7},
		3: {8, 9, 10, 11},
		4: {12, 13},
		5: {14, 15, 16, 17, 18},
		6: {19, 20},
		7: {21, 22, 23},
	}
	nodes := make([]tree.Node, len(values))
	for i, value := range values {
		group := GroupMeter
		switch {
		case i == 0:
			group = GroupHeadEnd
		case i <= 2:
			group = GroupCollector
		case i < len(links):
			group = GroupMeterCollector
		}
		nodes[i] = tree.Node{
			Label:       fmt.Sprintf("n%d", i+1),
			Group:       group,
			Value:       value,
			CostAttack:  0.2,
			CostDefence: 0.05,
		}
		if i < len(links) {
			nodes[i].Children = links[i]
		}
	}
	return Scenario{
		Name:        "ami-large",
		Description: "24 node metering hierarchy",
		Nodes:       nodes,
		Game:        game.Config{Resolution: 2, DetectionRate: 0.6, AttackerBudget: 1, DefenderBudget: 4},
		Replicator:  evo.Params{Replicator: evo.ReplicatorTruncation, TruncationFraction: 0.2, DT: 0.1, Delta: 0},
		Generations: 25,
	}
}

func mustNodes(b *tree.Builder) []tree.Node {
	tr, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tr.Nodes()
}
