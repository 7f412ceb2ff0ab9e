package model

import "fmt"

type TreeKind string

const (
	KindRoot       TreeKind = "root"
	KindFolder     TreeKind = "folder"
	KindUnassigned TreeKind = "unassigned"
	KindNode       TreeKind = "node"
)

func ParseTreeKind(s string) (TreeKind, error) {
	switch k := TreeKind(s); k {
	case KindRoot, KindFolder, KindUnassigned, KindNode:
		return k, nil
	default:
		return "", fmt.Errorf("unknown tree node type %q", s)
	}
}

// Container reports whether tree nodes of this kind have children.
func (k TreeKind) Container() bool {
	return k == KindRoot || k == KindFolder || k == KindUnassigned
}

// TreeNode is an entry of the organisation tree. Children is only set for
// container kinds; Node is only set for leaves.
type TreeNode struct {
	ID       string      `json:"_id"`
	Name     string      `json:"name"`
	Kind     TreeKind    `json:"type"`
	Path     []string    `json:"path,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
	Node     *Node       `json:"-"`
}

// Leaves returns the number of node leaves below t.
func (t *TreeNode) Leaves() int {
	if t == nil {
		return 0
	}
	if t.Kind == KindNode {
		return 1
	}
	n := 0
	for _, c := range t.Children {
		n += c.Leaves()
	}
	return n
}
