package render

import (
	"fmt"

	"github.com/charmbracelet/lipgloss/tree"

	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// Tree prints the management tree with node leaves annotated by serial
// number and connection status.
func (p *Printer) Tree(root *model.TreeNode) {
	if root == nil {
		return
	}
	p.Println(p.buildTree(root).String())
}

func (p *Printer) buildTree(tn *model.TreeNode) *tree.Tree {
	t := tree.Root(p.label(tn)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(p.st.muted.PaddingRight(1))
	for _, c := range tn.Children {
		if c.Kind.Container() {
			t.Child(p.buildTree(c))
		} else {
			t.Child(p.label(c))
		}
	}
	return t
}

func (p *Printer) label(tn *model.TreeNode) string {
	switch tn.Kind {
	case model.KindNode:
		if tn.Node == nil {
			return tn.Name
		}
		return fmt.Sprintf("%s %s %s", tn.Name,
			p.st.muted.Render("["+tn.Node.SerialNumber+"]"), p.status(tn.Node.ConnectionStatus))
	case model.KindUnassigned:
		return p.st.muted.Render(tn.Name)
	default:
		return p.st.bold.Render(tn.Name)
	}
}
