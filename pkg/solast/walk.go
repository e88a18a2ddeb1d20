package solast

import (
	"sort"

	"github.com/juanfranblanco/vscode-solidity-sub001/pkg/sourcemap"
)

// Visit is returned by a visitor to steer the walk.
type Visit struct {
	// Descend continues into the node's children.
	Descend bool
	// Stop ends the walk after the current node.
	Stop bool
}

var (
	descend = Visit{Descend: true}
	skip    = Visit{}
	stop    = Visit{Stop: true}
)

// Walk visits root and its descendants in pre-order, parents before children and siblings in
// source order. The tree is only read.
func Walk(root *Node, visit func(*Node) Visit) {
	if root == nil {
		return
	}
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		v := visit(n)
		if v.Stop {
			return
		}
		if !v.Descend {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Collect returns every node for which pred holds, in walk order.
func Collect(root *Node, pred func(*Node) bool) []*Node {
	var out []*Node
	Walk(root, func(n *Node) Visit {
		if pred(n) {
			out = append(out, n)
		}
		return descend
	})
	return out
}

// FindEnclosing returns the first node of kind whose span contains span. Subtrees whose span does
// not contain span are pruned. Because the walk is pre-order, the outermost matching node wins
// when several nested nodes of the same kind enclose span.
func FindEnclosing(root *Node, kind string, span sourcemap.Span) *Node {
	var found *Node
	Walk(root, func(n *Node) Visit {
		if !n.HasSrc {
			return descend
		}
		if !n.Src.Contains(span) {
			return skip
		}
		if n.Kind == kind {
			found = n
			return stop
		}
		return descend
	})
	return found
}

// FileIndices returns the distinct non-negative file indices referenced by src attributes.
func FileIndices(root *Node) []int {
	seen := make(map[int]bool)
	Walk(root, func(n *Node) Visit {
		if n.HasSrc && n.Src.FileIndex >= 0 {
			seen[n.Src.FileIndex] = true
		}
		return descend
	})
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
