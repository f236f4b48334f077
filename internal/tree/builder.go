package tree

import "fmt"

// Builder assembles a tree in arena form: nodes are appended first and linked
// by index afterwards.
type Builder struct {
	nodes []Node
	err   error
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a node and returns its index.
func (b *Builder) Add(node Node) int {
	node.Children = append([]int(nil), node.Children...)
	b.nodes = append(b.nodes, node)
	return len(b.nodes) - 1
}

// Link appends children to parent. The first bad parent index is reported by Build.
func (b *Builder) Link(parent int, children ...int) *Builder {
	if parent < 0 || parent >= len(b.nodes) {
		if b.err == nil {
			b.err = fmt.Errorf("%w: link from unknown parent %d", ErrInvalidTree, parent)
		}
		return b
	}
	b.nodes[parent].Children = append(b.nodes[parent].Children, children...)
	return b
}

func (b *Builder) Build() (*Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	return New(b.nodes)
}
