package stats

import (
	"strconv"

	"amigame/internal/model"
)

const ungrouped = "ungrouped"

// GroupProfile is the summed attack and defence intensity of a set of nodes
// over time.
type GroupProfile struct {
	Group       string    `json:"group"`
	Nodes       []int     `json:"nodes"`
	Generations []int     `json:"generations"`
	Attack      []float64 `json:"attack"`
	Defence     []float64 `json:"defence"`
}

// GroupProfiles sums per-node profiles by groups[node]. Nodes with an empty
// group are collected under "ungrouped". Groups keep the order in which they
// first appear.
func GroupProfiles(history []model.GenerationRecord, groups []string) []GroupProfile {
	if len(groups) == 0 {
		return nil
	}
	order := make([]string, 0)
	members := make(map[string][]int)
	for node, group := range groups {
		if group == "" {
			group = ungrouped
		}
		if _, ok := members[group]; !ok {
			order = append(order, group)
		}
		members[group] = append(members[group], node)
	}

	out := make([]GroupProfile, 0, len(order))
	for _, group := range order {
		nodes := members[group]
		profile := GroupProfile{
			Group:       group,
			Nodes:       nodes,
			Generations: make([]int, 0, len(history)),
			Attack:      make([]float64, 0, len(history)),
			Defence:     make([]float64, 0, len(history)),
		}
		for _, record := range history {
			profile.Generations = append(profile.Generations, record.Generation)
			profile.Attack = append(profile.Attack, sumAt(record.AttackProfile, nodes))
			profile.Defence = append(profile.Defence, sumAt(record.DefenceProfile, nodes))
		}
		out = append(out, profile)
	}
	return out
}

// LevelProfiles groups nodes by tree depth, labelled "level 1" for the root.
func LevelProfiles(history []model.GenerationRecord, depths []int) []GroupProfile {
	groups := make([]string, len(depths))
	for i, depth := range depths {
		groups[i] = "level " + strconv.Itoa(depth+1)
	}
	return GroupProfiles(history, groups)
}

func sumAt(values []float64, indices []int) float64 {
	var sum float64
	for _, i := range indices {
		if i < len(values) {
			sum += values[i]
		}
	}
	return sum
}
