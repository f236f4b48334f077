package platform

import (
	"strings"

	"amigame/internal/evo"
	"amigame/internal/game"
	"amigame/internal/model"
	"amigame/internal/tree"
)

func gameParams(cfg game.Config) model.GameParams {
	return model.GameParams{
		Resolution:     cfg.Resolution,
		DetectionRate:  cfg.DetectionRate,
		AttackerBudget: cfg.AttackerBudget,
		DefenderBudget: cfg.DefenderBudget,
	}
}

func gameConfig(p model.GameParams) game.Config {
	return game.Config{
		Resolution:     p.Resolution,
		DetectionRate:  p.DetectionRate,
		AttackerBudget: p.AttackerBudget,
		DefenderBudget: p.DefenderBudget,
	}
}

func replicatorParams(p evo.Params) model.ReplicatorParams {
	return model.ReplicatorParams{
		Name:               strings.ToLower(strings.TrimSpace(p.Replicator)),
		TruncationFraction: p.TruncationFraction,
		DT:                 p.DT,
		Delta:              p.Delta,
	}
}

func evoParams(p model.ReplicatorParams) evo.Params {
	return evo.Params{
		Replicator:         p.Name,
		TruncationFraction: p.TruncationFraction,
		DT:                 p.DT,
		Delta:              p.Delta,
	}
}

func nodeRecords(nodes []tree.Node) []model.NodeRecord {
	out := make([]model.NodeRecord, len(nodes))
	for i, node := range nodes {
		out[i] = model.NodeRecord{
			Label:       node.Label,
			Group:       node.Group,
			Value:       node.Value,
			CostAttack:  node.CostAttack,
			CostDefence: node.CostDefence,
			Children:    append([]int(nil), node.Children...),
		}
	}
	return out
}

func treeNodes(records []model.NodeRecord) []tree.Node {
	out := make([]tree.Node, len(records))
	for i, record := range records {
		out[i] = tree.Node{
			Label:       record.Label,
			Group:       record.Group,
			Value:       record.Value,
			CostAttack:  record.CostAttack,
			CostDefence: record.CostDefence,
			Children:    append([]int(nil), record.Children...),
		}
	}
	return out
}
