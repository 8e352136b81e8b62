package resolver

import sitter "github.com/smacker/go-tree-sitter"

// content returns the source text spanned by n. Tree-sitter nodes carry
// byte offsets, not the text itself, so every caller slices source
// directly rather than relying on a Content-style convenience method.
func content(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if start >= end || int(end) > len(source) {
		return ""
	}
	return string(source[start:end])
}

// childrenOfType returns n's direct children whose Type() equals kind.
func childrenOfType(n *sitter.Node, kind string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child != nil && child.Type() == kind {
			out = append(out, child)
		}
	}
	return out
}

// firstChildOfType returns n's first direct child of the given kind, or
// nil.
func firstChildOfType(n *sitter.Node, kind string) *sitter.Node {
	children := childrenOfType(n, kind)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// walk calls visit for every node in the subtree rooted at n, depth-first,
// pre-order. visit returns false to skip descending into that node's
// children.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		walk(n.Child(i), visit)
	}
}
