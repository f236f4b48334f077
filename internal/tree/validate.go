package tree

import (
	"errors"
	"fmt"
)

// ValidationError reports a node whose cost exceeds its value net of detection.
type ValidationError struct {
	Index int
	Side  string
	Cost  float64
	Limit float64
}

func (e *ValidationError) Error() string {
	switch e.Side {
	case "attack":
		return fmt.Sprintf("node %d: attack cost %.4g exceeds %.4g, attacking an undefended node must pay off", e.Index, e.Cost, e.Limit)
	default:
		return fmt.Sprintf("node %d: defence cost %.4g exceeds %.4g, defending a fully attacked node must pay off", e.Index, e.Cost, e.Limit)
	}
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidNodeEconomics
}

// ValidateNode checks C_A <= v(1-a) and C_D <= v(1-a).
func ValidateNode(index int, node Node, detectionRate float64) error {
	limit := node.Value * (1 - detectionRate)
	if node.CostAttack > limit {
		return &ValidationError{Index: index, Side: "attack", Cost: node.CostAttack, Limit: limit}
	}
	if node.CostDefence > limit {
		return &ValidationError{Index: index, Side: "defence", Cost: node.CostDefence, Limit: limit}
	}
	return nil
}

// Validate checks every node against the detection rate of the game that will
// be played on the tree. All failing nodes are reported.
func (t *Tree) Validate(detectionRate float64) error {
	if detectionRate < 0 || detectionRate >= 1 {
		return fmt.Errorf("%w: detection rate %v outside [0,1)", ErrInvalidNodeEconomics, detectionRate)
	}
	var errs []error
	for i, node := range t.nodes {
		if err := ValidateNode(i, node, detectionRate); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
