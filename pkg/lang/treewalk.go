// SPDX-License-Identifier: AGPL-3.0-or-later

package lang

import sitter "github.com/smacker/go-tree-sitter"

// countErrors counts ERROR nodes in a subtree. The extractors call it and
// discard the result; no syntax-error warning is logged. Tree-sitter keeps
// parsing past errors, so a non-zero count is informational, not fatal.
func countErrors(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Type() == "ERROR" {
		count++
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		count += countErrors(n.Child(i))
	}
	return count
}

// childrenOfType returns the immediate children of n whose node type is
// any of the given types.
func childrenOfType(n *sitter.Node, types ...string) []*sitter.Node {
	if n == nil {
		return nil
	}
	want := make(map[string]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if want[c.Type()] {
			out = append(out, c)
		}
	}
	return out
}

// walk calls visit on every node in the subtree rooted at n, pre-order.
// If visit returns false, the children of that node are not visited.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

// nodeText returns the source slice a node spans.
func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// lineRangeOf converts a node's 0-based tree-sitter rows to a 1-based
// inclusive LineRange (spec.md section 3: "1-based").
func lineRangeOf(n *sitter.Node) LineRange {
	return LineRange{
		Start: int(n.StartPoint().Row) + 1,
		End:   int(n.EndPoint().Row) + 1,
	}
}

func startLineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
