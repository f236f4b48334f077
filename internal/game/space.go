package game

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxSpaceEntries bounds count*nodes for a materialized space (32 GiB of
// float64s).
const maxSpaceEntries = 1 << 32

// Space is an enumerated strategy space: one row per strategy, one column per
// tree node, entries are allocation levels (integer levels divided by K).
// A Space is read-only once built.
type Space struct {
	m *mat.Dense
}

// Levels is the number of allocation units a budget buys at resolution K,
// floor(K*budget).
func Levels(resolution int, budget float64) int {
	return int(float64(resolution) * budget)
}

func newSpace(nodes, resolution int, budget float64) (*Space, error) {
	levels := Levels(resolution, budget)
	count, err := Compositions(nodes, levels)
	if err != nil {
		return nil, err
	}
	if nodes > 0 && (count > math.MaxInt/nodes || count*nodes > maxSpaceEntries) {
		return nil, fmt.Errorf("%w: %d strategies over %d nodes", ErrStrategySpaceTooLarge, count, nodes)
	}
	data := make([]float64, 0, count*nodes)
	k := float64(resolution)
	err = EachComposition(nodes, levels, func(v []int) {
		for _, level := range v {
			data = append(data, float64(level)/k)
		}
	})
	if err != nil {
		return nil, err
	}
	if count == 0 || nodes == 0 {
		return &Space{}, nil
	}
	return &Space{m: mat.NewDense(count, nodes, data)}, nil
}

// Len is the number of strategies.
func (s *Space) Len() int {
	if s.m == nil {
		return 0
	}
	r, _ := s.m.Dims()
	return r
}

// Nodes is the length of each strategy vector.
func (s *Space) Nodes() int {
	if s.m == nil {
		return 0
	}
	_, c := s.m.Dims()
	return c
}

// Strategy copies strategy i into dst. dst must be nil or of length Nodes().
func (s *Space) Strategy(i int, dst []float64) []float64 {
	return mat.Row(dst, i, s.m)
}

// Matrix exposes the space as a read-only gonum matrix.
func (s *Space) Matrix() mat.Matrix {
	return s.m
}

// Profile returns weights·space, the per-node marginal allocation of a
// distribution over the space. len(weights) must equal Len().
func (s *Space) Profile(weights []float64) []float64 {
	out := make([]float64, s.Nodes())
	if s.m == nil {
		return out
	}
	var v mat.VecDense
	v.MulVec(s.m.T(), mat.NewVecDense(len(weights), weights))
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
