package tree

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTree          = errors.New("invalid tree")
	ErrInvalidNodeEconomics = errors.New("invalid node economics")
)

// Node is one asset in the hierarchy. Children are indices into the owning
// tree's node sequence.
type Node struct {
	Label       string  `json:"label,omitempty" yaml:"label,omitempty"`
	Group       string  `json:"group,omitempty" yaml:"group,omitempty"`
	Value       float64 `json:"value" yaml:"value"`
	CostAttack  float64 `json:"cost_attack" yaml:"cost_attack"`
	CostDefence float64 `json:"cost_defence" yaml:"cost_defence"`
	Children    []int   `json:"children,omitempty" yaml:"children,omitempty"`
}

// Tree is an immutable, index-addressed asset hierarchy. Index i of the node
// sequence is the position of node i in every strategy vector.
type Tree struct {
	nodes  []Node
	parent []int
	root   int
}

// New validates the structure of nodes and returns the tree. Every child index
// must resolve, every node has at most one parent and exactly one node is the
// root.
func New(nodes []Node) (*Tree, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: at least one node is required", ErrInvalidTree)
	}

	owned := make([]Node, len(nodes))
	parent := make([]int, len(nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i, node := range nodes {
		if node.Value < 0 || node.CostAttack < 0 || node.CostDefence < 0 {
			return nil, fmt.Errorf("%w: node %d has a negative value or cost", ErrInvalidTree, i)
		}
		for _, child := range node.Children {
			if child < 0 || child >= len(nodes) {
				return nil, fmt.Errorf("%w: node %d references unknown child %d", ErrInvalidTree, i, child)
			}
			if child == i {
				return nil, fmt.Errorf("%w: node %d is its own child", ErrInvalidTree, i)
			}
			if parent[child] >= 0 {
				return nil, fmt.Errorf("%w: node %d has parents %d and %d", ErrInvalidTree, child, parent[child], i)
			}
			parent[child] = i
		}
		owned[i] = node
		owned[i].Children = append([]int(nil), node.Children...)
	}

	root := -1
	for i, p := range parent {
		if p >= 0 {
			continue
		}
		if root >= 0 {
			return nil, fmt.Errorf("%w: nodes %d and %d are both roots", ErrInvalidTree, root, i)
		}
		root = i
	}
	if root < 0 {
		return nil, fmt.Errorf("%w: no root node", ErrInvalidTree)
	}

	// With one parent per node, reaching every node from the root rules out cycles.
	seen := make([]bool, len(owned))
	stack := []int{root}
	reached := 0
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[current] {
			continue
		}
		seen[current] = true
		reached++
		stack = append(stack, owned[current].Children...)
	}
	if reached != len(owned) {
		return nil, fmt.Errorf("%w: %d nodes are unreachable from root %d", ErrInvalidTree, len(owned)-reached, root)
	}

	return &Tree{nodes: owned, parent: parent, root: root}, nil
}

func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) Root() int {
	return t.root
}

// Node returns a copy of node i.
func (t *Tree) Node(i int) Node {
	node := t.nodes[i]
	node.Children = append([]int(nil), node.Children...)
	return node
}

// Nodes returns a copy of the whole node sequence.
func (t *Tree) Nodes() []Node {
	out := make([]Node, len(t.nodes))
	for i := range t.nodes {
		out[i] = t.Node(i)
	}
	return out
}

func (t *Tree) Children(i int) []int {
	return append([]int(nil), t.nodes[i].Children...)
}

// Parent returns the parent index of node i; the root has none.
func (t *Tree) Parent(i int) (int, bool) {
	p := t.parent[i]
	return p, p >= 0
}

// Depth is the number of edges between node i and the root.
func (t *Tree) Depth(i int) int {
	depth := 0
	for p := t.parent[i]; p >= 0; p = t.parent[p] {
		depth++
	}
	return depth
}

// Label returns the node label, falling back to its index.
func (t *Tree) Label(i int) string {
	if t.nodes[i].Label != "" {
		return t.nodes[i].Label
	}
	return fmt.Sprintf("n%d", i)
}
