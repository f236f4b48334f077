package game

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"amigame/internal/tree"
)

var (
	ErrInvalidParameters = errors.New("invalid game parameters")
	ErrDimensionMismatch = errors.New("strategy dimension mismatch")
)

// Config holds the scalar parameters of a confidentiality game.
type Config struct {
	Resolution     int     `json:"resolution" yaml:"resolution"`
	DetectionRate  float64 `json:"detection_rate" yaml:"detection_rate"`
	AttackerBudget float64 `json:"attacker_budget" yaml:"attacker_budget"`
	DefenderBudget float64 `json:"defender_budget" yaml:"defender_budget"`
}

func DefaultConfig() Config {
	return Config{
		Resolution:     5,
		DetectionRate:  0.3,
		AttackerBudget: 1.0,
		DefenderBudget: 1.5,
	}
}

func (c Config) Validate() error {
	if c.Resolution < 1 {
		return fmt.Errorf("%w: resolution must be >= 1, got %d", ErrInvalidParameters, c.Resolution)
	}
	if c.DetectionRate < 0 || c.DetectionRate >= 1 || math.IsNaN(c.DetectionRate) {
		return fmt.Errorf("%w: detection rate must be in [0,1), got %v", ErrInvalidParameters, c.DetectionRate)
	}
	if c.AttackerBudget < 0 || math.IsNaN(c.AttackerBudget) || math.IsInf(c.AttackerBudget, 0) {
		return fmt.Errorf("%w: attacker budget must be >= 0, got %v", ErrInvalidParameters, c.AttackerBudget)
	}
	if c.DefenderBudget < 0 || math.IsNaN(c.DefenderBudget) || math.IsInf(c.DefenderBudget, 0) {
		return fmt.Errorf("%w: defender budget must be >= 0, got %v", ErrInvalidParameters, c.DefenderBudget)
	}
	return nil
}

// Game is the confidentiality game played on an asset tree. Attacking a node
// exposes its own value and the value of each of its direct children; both
// are discounted by the detection rate and by the defence on the exposed node.
//
// The tree's economic validity is not checked here; call ValidateTree (or
// tree.Validate with the detection rate) before simulating.
type Game struct {
	tree *tree.Tree
	cfg  Config

	values      []float64
	costAttack  []float64
	costDefence []float64
	children    [][]int

	attackOnce  sync.Once
	attackSpace *Space
	attackErr   error

	defenceOnce  sync.Once
	defenceSpace *Space
	defenceErr   error
}

func New(tr *tree.Tree, cfg Config) (*Game, error) {
	if tr == nil {
		return nil, fmt.Errorf("%w: tree is required", ErrInvalidParameters)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := tr.Len()
	g := &Game{
		tree:        tr,
		cfg:         cfg,
		values:      make([]float64, n),
		costAttack:  make([]float64, n),
		costDefence: make([]float64, n),
		children:    make([][]int, n),
	}
	for i := 0; i < n; i++ {
		node := tr.Node(i)
		g.values[i] = node.Value
		g.costAttack[i] = node.CostAttack
		g.costDefence[i] = node.CostDefence
		g.children[i] = node.Children
	}
	return g, nil
}

func (g *Game) Tree() *tree.Tree {
	return g.tree
}

func (g *Game) Config() Config {
	return g.cfg
}

// N is the number of tree nodes, the length of every strategy.
func (g *Game) N() int {
	return len(g.values)
}

// ValidateTree checks every node against this game's detection rate.
func (g *Game) ValidateTree() error {
	return g.tree.Validate(g.cfg.DetectionRate)
}

// AttackerStrategies enumerates the attacker space on first use and returns
// the cached space afterwards.
func (g *Game) AttackerStrategies() (*Space, error) {
	g.attackOnce.Do(func() {
		g.attackSpace, g.attackErr = newSpace(g.N(), g.cfg.Resolution, g.cfg.AttackerBudget)
	})
	return g.attackSpace, g.attackErr
}

// DefenderStrategies enumerates the defender space on first use and returns
// the cached space afterwards.
func (g *Game) DefenderStrategies() (*Space, error) {
	g.defenceOnce.Do(func() {
		g.defenceSpace, g.defenceErr = newSpace(g.N(), g.cfg.Resolution, g.cfg.DefenderBudget)
	})
	return g.defenceSpace, g.defenceErr
}

// AttackerUtility returns the attacker payoff of attack against every row of
// defences. For node i with children C(i):
//
//	U += v_i s_i (1-a)(1-t_i) - s_i C_A_i + sum_{c in C(i)} v_c s_i (1-a)(1-t_c)
func (g *Game) AttackerUtility(attack []float64, defences mat.Matrix) ([]float64, error) {
	rows, cols := defences.Dims()
	if len(attack) != g.N() || cols != g.N() {
		return nil, fmt.Errorf("%w: attack=%d defences=%d nodes=%d", ErrDimensionMismatch, len(attack), cols, g.N())
	}
	a := g.cfg.DetectionRate
	t := viewOf(defences)
	utility := make([]float64, rows)
	for i, s := range attack {
		if s == 0 {
			continue
		}
		for r := 0; r < rows; r++ {
			own := g.values[i] * s * (1 - a) * (1 - t.at(r, i))
			var passThrough float64
			for _, c := range g.children[i] {
				passThrough += g.values[c] * s * (1 - a) * (1 - t.at(r, c))
			}
			utility[r] += own - s*g.costAttack[i] + passThrough
		}
	}
	return utility, nil
}

// DefenderUtility returns the defender payoff of defence against every row of
// attacks. For node i with children C(i):
//
//	U += -v_i s_i (1-a)(1-t_i) - t_i C_D_i - sum_{c in C(i)} v_c s_i (1-a)(1-t_c)
//
// The defence cost term does not depend on the attack, so this is not the
// negation of AttackerUtility.
func (g *Game) DefenderUtility(attacks mat.Matrix, defence []float64) ([]float64, error) {
	rows, cols := attacks.Dims()
	if len(defence) != g.N() || cols != g.N() {
		return nil, fmt.Errorf("%w: defence=%d attacks=%d nodes=%d", ErrDimensionMismatch, len(defence), cols, g.N())
	}
	a := g.cfg.DetectionRate
	view := viewOf(attacks)
	utility := make([]float64, rows)
	for i, t := range defence {
		cost := t * g.costDefence[i]
		for r := 0; r < rows; r++ {
			s := view.at(r, i)
			loss := g.values[i] * s * (1 - a) * (1 - t)
			var passThrough float64
			if s != 0 {
				for _, c := range g.children[i] {
					passThrough += g.values[c] * s * (1 - a) * (1 - defence[c])
				}
			}
			utility[r] += -loss - cost - passThrough
		}
	}
	return utility, nil
}

// matrixView reads dense row-major storage directly and falls back to At for
// other matrix implementations.
type matrixView struct {
	m      mat.Matrix
	data   []float64
	stride int
}

func viewOf(m mat.Matrix) matrixView {
	if raw, ok := m.(mat.RawMatrixer); ok {
		rm := raw.RawMatrix()
		return matrixView{m: m, data: rm.Data, stride: rm.Stride}
	}
	return matrixView{m: m}
}

func (v matrixView) at(r, c int) float64 {
	if v.data != nil {
		return v.data[r*v.stride+c]
	}
	return v.m.At(r, c)
}
