package game

// NodeSummary lists a node's economics together with the interior
// equilibrium hints s* = C_D / (v(1-a)) and t* = 1 - C_A / (v(1-a)).
type NodeSummary struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Group       string  `json:"group,omitempty"`
	Depth       int     `json:"depth"`
	Value       float64 `json:"value"`
	CostAttack  float64 `json:"cost_attack"`
	CostDefence float64 `json:"cost_defence"`
	AttackStar  float64 `json:"s_star"`
	DefenceStar float64 `json:"t_star"`
}

func (g *Game) NodeSummaries() []NodeSummary {
	out := make([]NodeSummary, 0, g.N())
	a := g.cfg.DetectionRate
	for i := 0; i < g.N(); i++ {
		node := g.tree.Node(i)
		summary := NodeSummary{
			Index:       i,
			Label:       g.tree.Label(i),
			Group:       node.Group,
			Depth:       g.tree.Depth(i),
			Value:       node.Value,
			CostAttack:  node.CostAttack,
			CostDefence: node.CostDefence,
		}
		// Worthless nodes have no interior equilibrium.
		if effective := node.Value * (1 - a); effective > 0 {
			summary.AttackStar = node.CostDefence / effective
			summary.DefenceStar = 1 - node.CostAttack/effective
		}
		out = append(out, summary)
	}
	return out
}
