package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"amigame/internal/game"
)

var (
	ErrStrategySpaceMismatch = errors.New("distribution does not match strategy space")
	ErrInvalidDistribution   = errors.New("invalid population distribution")
	ErrInvalidParams         = errors.New("invalid replicator parameters")
)

// distributionTolerance bounds |sum(p)-1| for caller supplied distributions.
const distributionTolerance = 1e-6

// Options configures a Population.
type Options struct {
	Params
	// Rand drives REQN noise. Required when Delta > 0.
	Rand *rand.Rand
	// Generation is the starting generation counter, non-zero when resuming.
	Generation int
}

// Population holds the attacker and defender mixed strategies of a game and
// advances them one generation at a time.
type Population struct {
	game         *game.Game
	attackSpace  *game.Space
	defenceSpace *game.Space

	attackers []float64
	defenders []float64

	params     Params
	noise      float64
	replicator Replicator
	rng        *rand.Rand

	averageAttacker float64
	averageDefender float64
	ready           bool
	fresh           bool
	generation      int

	attackBuf  []float64
	defenceBuf []float64
}

func NewPopulation(g *game.Game, attackers, defenders []float64, opts Options) (*Population, error) {
	if g == nil {
		return nil, errors.New("game is required")
	}
	attackSpace, err := g.AttackerStrategies()
	if err != nil {
		return nil, fmt.Errorf("attacker strategies: %w", err)
	}
	defenceSpace, err := g.DefenderStrategies()
	if err != nil {
		return nil, fmt.Errorf("defender strategies: %w", err)
	}
	if len(attackers) != attackSpace.Len() {
		return nil, fmt.Errorf("%w: attacker distribution has %d entries, space has %d", ErrStrategySpaceMismatch, len(attackers), attackSpace.Len())
	}
	if len(defenders) != defenceSpace.Len() {
		return nil, fmt.Errorf("%w: defender distribution has %d entries, space has %d", ErrStrategySpaceMismatch, len(defenders), defenceSpace.Len())
	}
	if err := checkDistribution("attacker", attackers); err != nil {
		return nil, err
	}
	if err := checkDistribution("defender", defenders); err != nil {
		return nil, err
	}
	if opts.Generation < 0 {
		return nil, fmt.Errorf("generation must be >= 0, got %d", opts.Generation)
	}

	params := opts.Params
	replicator, err := NewReplicator(params)
	if err != nil {
		return nil, err
	}
	if replicator.Name() == ReplicatorREQN && params.Delta > 0 && opts.Rand == nil {
		return nil, fmt.Errorf("%w: random source is required for REQN noise", ErrInvalidParams)
	}

	return &Population{
		game:         g,
		attackSpace:  attackSpace,
		defenceSpace: defenceSpace,
		attackers:    append([]float64(nil), attackers...),
		defenders:    append([]float64(nil), defenders...),
		params:       params,
		noise:        params.Delta / float64(len(attackers)),
		replicator:   replicator,
		rng:          opts.Rand,
		generation:   opts.Generation,
		attackBuf:    make([]float64, attackSpace.Nodes()),
		defenceBuf:   make([]float64, defenceSpace.Nodes()),
	}, nil
}

// Uniform returns the uniform distribution over n strategies.
func Uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

func checkDistribution(side string, p []float64) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: %s distribution is empty", ErrInvalidDistribution, side)
	}
	for i, x := range p {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: %s entry %d is %v", ErrInvalidDistribution, side, i, x)
		}
	}
	if sum := floats.Sum(p); math.Abs(sum-1) > distributionTolerance {
		return fmt.Errorf("%w: %s distribution sums to %v", ErrInvalidDistribution, side, sum)
	}
	return nil
}

func (p *Population) Game() *game.Game {
	return p.game
}

func (p *Population) Params() Params {
	return p.params
}

// Generation counts completed Replicate calls, including those before a resume.
func (p *Population) Generation() int {
	return p.generation
}

func (p *Population) Attackers() []float64 {
	return append([]float64(nil), p.attackers...)
}

func (p *Population) Defenders() []float64 {
	return append([]float64(nil), p.defenders...)
}

// ExpectedPayoffAttacker is the payoff of strategy against the current mixed
// defender population.
func (p *Population) ExpectedPayoffAttacker(strategy []float64) (float64, error) {
	utility, err := p.game.AttackerUtility(strategy, p.defenceSpace.Matrix())
	if err != nil {
		return 0, err
	}
	return floats.Dot(utility, p.defenders), nil
}

// ExpectedPayoffDefender is the payoff of strategy against the current mixed
// attacker population.
func (p *Population) ExpectedPayoffDefender(strategy []float64) (float64, error) {
	utility, err := p.game.DefenderUtility(p.attackSpace.Matrix(), strategy)
	if err != nil {
		return 0, err
	}
	return floats.Dot(utility, p.attackers), nil
}

// AveragePayoffAttacker is the mean fitness of the attacker population.
func (p *Population) AveragePayoffAttacker() (float64, error) {
	var average float64
	for i, mass := range p.attackers {
		if mass == 0 {
			continue
		}
		payoff, err := p.ExpectedPayoffAttacker(p.attackSpace.Strategy(i, p.attackBuf))
		if err != nil {
			return 0, err
		}
		average += payoff * mass
	}
	return average, nil
}

// AveragePayoffDefender is the mean fitness of the defender population.
func (p *Population) AveragePayoffDefender() (float64, error) {
	var average float64
	for i, mass := range p.defenders {
		if mass == 0 {
			continue
		}
		payoff, err := p.ExpectedPayoffDefender(p.defenceSpace.Strategy(i, p.defenceBuf))
		if err != nil {
			return 0, err
		}
		average += payoff * mass
	}
	return average, nil
}

// CalculateUtilities refreshes the cached average payoffs of both populations.
func (p *Population) CalculateUtilities() error {
	attacker, err := p.AveragePayoffAttacker()
	if err != nil {
		return fmt.Errorf("average attacker payoff: %w", err)
	}
	defender, err := p.AveragePayoffDefender()
	if err != nil {
		return fmt.Errorf("average defender payoff: %w", err)
	}
	p.averageAttacker = attacker
	p.averageDefender = defender
	p.ready = true
	p.fresh = true
	return nil
}

// Replicate refreshes utilities and advances both populations by one
// generation. Both sides are updated from the pre-update state.
func (p *Population) Replicate() error {
	if !p.fresh {
		if err := p.CalculateUtilities(); err != nil {
			return err
		}
	}
	if err := p.replicator.Step(p); err != nil {
		return fmt.Errorf("%s step: %w", p.replicator.Name(), err)
	}
	p.generation++
	return nil
}

// AverageAttackerUtility returns the value last computed by CalculateUtilities.
func (p *Population) AverageAttackerUtility() float64 {
	return p.averageAttacker
}

// AverageDefenderUtility returns the value last computed by CalculateUtilities.
func (p *Population) AverageDefenderUtility() float64 {
	return p.averageDefender
}

// AttackProfile is the per-node attack intensity of the current population.
func (p *Population) AttackProfile() []float64 {
	return p.attackSpace.Profile(p.attackers)
}

// DefenceProfile is the per-node defence intensity of the current population.
func (p *Population) DefenceProfile() []float64 {
	return p.defenceSpace.Profile(p.defenders)
}

// expectedPayoffs evaluates every strategy with non-zero mass on one side.
// Zero-mass entries are left at zero.
func (p *Population) expectedPayoffs(side Side) ([]float64, error) {
	mass, space, buf := p.attackers, p.attackSpace, p.attackBuf
	payoff := p.ExpectedPayoffAttacker
	if side == SideDefender {
		mass, space, buf = p.defenders, p.defenceSpace, p.defenceBuf
		payoff = p.ExpectedPayoffDefender
	}
	out := make([]float64, len(mass))
	for i, m := range mass {
		if m == 0 {
			continue
		}
		value, err := payoff(space.Strategy(i, buf))
		if err != nil {
			return nil, err
		}
		out[i] = value
	}
	return out, nil
}

// commit replaces both distributions at once.
func (p *Population) commit(attackers, defenders []float64) {
	p.attackers = attackers
	p.defenders = defenders
	p.fresh = false
}
