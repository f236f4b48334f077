package evo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

const (
	ReplicatorREQN       = "reqn"
	ReplicatorTruncation = "truncation"
)

var ErrUnknownReplicator = errors.New("unknown replicator")

// Side selects one of the two populations.
type Side int

const (
	SideAttacker Side = iota
	SideDefender
)

func (s Side) String() string {
	if s == SideDefender {
		return "defender"
	}
	return "attacker"
}

// Params are the replicator settings shared by both populations.
type Params struct {
	Replicator         string  `json:"replicator" yaml:"replicator"`
	TruncationFraction float64 `json:"truncation_fraction" yaml:"truncation_fraction"`
	DT                 float64 `json:"dt" yaml:"dt"`
	Delta              float64 `json:"delta" yaml:"delta"`
}

func DefaultParams() Params {
	return Params{
		Replicator:         ReplicatorREQN,
		TruncationFraction: 0.2,
		DT:                 0.1,
		Delta:              0.1,
	}
}

func (p Params) Validate() error {
	switch normalizeReplicator(p.Replicator) {
	case ReplicatorREQN:
		if !(p.DT > 0) || math.IsInf(p.DT, 0) {
			return fmt.Errorf("%w: dt must be > 0, got %v", ErrInvalidParams, p.DT)
		}
		if p.Delta < 0 || math.IsNaN(p.Delta) || math.IsInf(p.Delta, 0) {
			return fmt.Errorf("%w: delta must be >= 0, got %v", ErrInvalidParams, p.Delta)
		}
	case ReplicatorTruncation:
		if p.TruncationFraction < 0 || p.TruncationFraction > 1 || math.IsNaN(p.TruncationFraction) {
			return fmt.Errorf("%w: truncation fraction must be in [0,1], got %v", ErrInvalidParams, p.TruncationFraction)
		}
	default:
		return fmt.Errorf("%w: %q (available: %s)", ErrUnknownReplicator, p.Replicator, strings.Join(ReplicatorNames(), ", "))
	}
	return nil
}

// Replicator advances a population by one generation. Step runs after the
// population's average utilities have been refreshed and must derive both
// new distributions from the pre-update state.
type Replicator interface {
	Name() string
	Step(p *Population) error
}

func normalizeReplicator(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// REQN is the discrete replicator equation with uniform exploration noise.
// Each strategy moves by dt*p*(E-avg) and then receives noise scaled by
// delta/|attackers| over its share of the population.
type REQN struct {
	DT float64
}

func (REQN) Name() string { return ReplicatorREQN }

func (r REQN) Step(p *Population) error {
	attackPayoff, err := p.expectedPayoffs(SideAttacker)
	if err != nil {
		return err
	}
	defencePayoff, err := p.expectedPayoffs(SideDefender)
	if err != nil {
		return err
	}
	attackers, err := r.advance(p, p.attackers, attackPayoff, p.averageAttacker)
	if err != nil {
		return fmt.Errorf("attacker: %w", err)
	}
	defenders, err := r.advance(p, p.defenders, defencePayoff, p.averageDefender)
	if err != nil {
		return fmt.Errorf("defender: %w", err)
	}
	p.commit(attackers, defenders)
	return nil
}

func (r REQN) advance(p *Population, current, payoff []float64, average float64) ([]float64, error) {
	next := make([]float64, len(current))
	for i, mass := range current {
		next[i] = mass + r.DT*mass*(payoff[i]-average)
	}
	if p.noise > 0 {
		scale := p.noise / float64(len(next))
		for i := range next {
			next[i] += scale * p.rng.Float64()
		}
	}
	for i, x := range next {
		if x < 0 {
			next[i] = 0
		}
	}
	return normalize(next)
}

// Truncation moves the mass of the worst performing strategies onto the best
// ones. Only strategies with non-zero mass take part. Ranked ascending by
// expected payoff, rank i hands its mass to rank count-1-i for the first
// floor(Fraction*count) ranks, stopping once the pair meets in the middle.
// A Fraction above 0.5 therefore behaves the same as 0.5.
type Truncation struct {
	Fraction float64
}

func (Truncation) Name() string { return ReplicatorTruncation }

func (t Truncation) Step(p *Population) error {
	attackPayoff, err := p.expectedPayoffs(SideAttacker)
	if err != nil {
		return err
	}
	defencePayoff, err := p.expectedPayoffs(SideDefender)
	if err != nil {
		return err
	}
	p.commit(
		t.truncate(p.attackers, attackPayoff),
		t.truncate(p.defenders, defencePayoff),
	)
	return nil
}

func (t Truncation) truncate(current, payoff []float64) []float64 {
	next := append([]float64(nil), current...)
	alive := make([]int, 0, len(current))
	scores := make([]float64, 0, len(current))
	for i, mass := range current {
		if mass > 0 {
			alive = append(alive, i)
			scores = append(scores, payoff[i])
		}
	}
	count := len(alive)
	order := make([]int, count)
	floats.ArgsortStable(scores, order)

	pairs := int(t.Fraction * float64(count))
	for i := 0; i < pairs; i++ {
		best := count - 1 - i
		if i >= best {
			break
		}
		worst, winner := alive[order[i]], alive[order[best]]
		next[winner] += next[worst]
		next[worst] = 0
	}
	return next
}

func normalize(p []float64) ([]float64, error) {
	sum := floats.Sum(p)
	if !(sum > 0) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("%w: total mass %v", ErrInvalidDistribution, sum)
	}
	floats.Scale(1/sum, p)
	return p, nil
}
