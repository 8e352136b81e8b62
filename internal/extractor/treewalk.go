package extractor

import sitter "github.com/smacker/go-tree-sitter"

// content returns the source text spanned by n, sliced directly from the
// byte buffer rather than through a Content-style convenience method —
// the same manual-slicing pattern internal/resolver and the pack's
// tree-sitter parser use.
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

func firstChildOfType(n *sitter.Node, kind string) *sitter.Node {
	children := childrenOfType(n, kind)
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// walk calls visit for every node in the subtree rooted at n, depth-first,
// pre-order. visit returning false skips n's children — extractors use
// this to avoid descending into nested function bodies when only
// top-level items are wanted.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		walk(n.Child(i), visit)
	}
}

func location(n *sitter.Node) SourceLocation {
	if n == nil {
		return SourceLocation{}
	}
	start, end := n.StartPoint(), n.EndPoint()
	return SourceLocation{
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column),
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column),
	}
}
