package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type GameParams struct {
	Resolution     int     `json:"resolution"`
	DetectionRate  float64 `json:"detection_rate"`
	AttackerBudget float64 `json:"attacker_budget"`
	DefenderBudget float64 `json:"defender_budget"`
}

type ReplicatorParams struct {
	Name               string  `json:"name"`
	TruncationFraction float64 `json:"truncation_fraction"`
	DT                 float64 `json:"dt"`
	Delta              float64 `json:"delta"`
}

type NodeRecord struct {
	Label       string  `json:"label"`
	Group       string  `json:"group,omitempty"`
	Value       float64 `json:"value"`
	CostAttack  float64 `json:"cost_attack"`
	CostDefence float64 `json:"cost_defence"`
	Children    []int   `json:"children,omitempty"`
}

// RunRecord describes a simulation run well enough to resume it.
type RunRecord struct {
	VersionedRecord
	ID          string           `json:"id"`
	Scenario    string           `json:"scenario"`
	ResumedFrom string           `json:"resumed_from,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Seed        int64            `json:"seed"`
	Game        GameParams       `json:"game"`
	Replicator  ReplicatorParams `json:"replicator"`
	Nodes       []NodeRecord     `json:"nodes"`

	AttackerStrategies int `json:"attacker_strategies"`
	DefenderStrategies int `json:"defender_strategies"`
	// Generations is the number of completed replication steps.
	Generations int `json:"generations"`

	FinalAttackerUtility float64 `json:"final_attacker_utility"`
	FinalDefenderUtility float64 `json:"final_defender_utility"`
}

// PopulationSnapshot holds both mixed strategies after a generation.
type PopulationSnapshot struct {
	VersionedRecord
	RunID      string    `json:"run_id"`
	Generation int       `json:"generation"`
	// Seed is the run seed; noise after a resume draws from Seed+Generation.
	Seed      int64     `json:"seed"`
	Attackers []float64 `json:"attackers"`
	Defenders  []float64 `json:"defenders"`
}

type GenerationRecord struct {
	Generation      int       `json:"generation"`
	AttackerUtility float64   `json:"attacker_utility"`
	DefenderUtility float64   `json:"defender_utility"`
	AttackProfile   []float64 `json:"attack_profile"`
	DefenceProfile  []float64 `json:"defence_profile"`
}
