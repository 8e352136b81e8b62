package resolver

import sitter "github.com/smacker/go-tree-sitter"

// parseRustImports walks a Rust AST for use_declaration nodes, handling:
//
//   - use std::io::Read;                 -> ("Read", "std::io::Read")
//   - use std::io::{Read, Write};        -> [("Read", "std::io::Read"), ("Write", ...)]
//   - use std::io::Read as MyRead;       -> ("MyRead", "std::io::Read")
//   - use std::io::*;                    -> glob base "std::io"
//   - nested groups (`use a::{b::{c}}`)  -> flattened recursively
func parseRustImports(root *sitter.Node, source []byte) *ImportMap {
	m := NewImportMap("::")
	if root == nil {
		return m
	}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "use_declaration" {
			return true
		}
		parseRustUseArgument(useDeclarationArgument(n), source, m)
		return true
	})
	return m
}

// useDeclarationArgument returns the single meaningful child of a
// use_declaration node (everything but the leading "use" keyword and
// trailing ";").
func useDeclarationArgument(decl *sitter.Node) *sitter.Node {
	count := int(decl.ChildCount())
	for i := 0; i < count; i++ {
		child := decl.Child(i)
		switch child.Type() {
		case "use", ";":
			continue
		default:
			return child
		}
	}
	return nil
}

func parseRustUseArgument(arg *sitter.Node, source []byte, m *ImportMap) {
	if arg == nil {
		return
	}
	switch arg.Type() {
	case "use_as_clause":
		path := firstChildOfType(arg, "scoped_identifier")
		if path == nil {
			path = firstChildOfType(arg, "identifier")
		}
		alias := lastChildOfType(arg, "identifier")
		if path != nil && alias != nil {
			m.Add(content(alias, source), content(path, source))
		}
	case "scoped_identifier":
		full := content(arg, source)
		if simple := rsplitLast(full, "::"); simple != "*" {
			m.Add(simple, full)
		}
	case "scoped_use_list":
		base := firstChildOfType(arg, "scoped_identifier")
		if base == nil {
			base = firstChildOfType(arg, "identifier")
		}
		list := firstChildOfType(arg, "use_list")
		if base != nil && list != nil {
			parseRustUseList(list, source, content(base, source), m)
		}
	case "use_list":
		// Bare `use {a, b};` with no common base path.
		parseRustUseList(arg, source, "", m)
	case "use_wildcard":
		base := firstChildOfType(arg, "scoped_identifier")
		if base == nil {
			base = firstChildOfType(arg, "identifier")
		}
		if base != nil {
			m.AddGlobBase(content(base, source))
		}
	case "identifier":
		name := content(arg, source)
		m.Add(name, name)
	}
}

// parseRustUseList processes a `{...}` group, prefixing each member with
// basePath (empty for a bare top-level group) and recursing into nested
// groups and aliases.
func parseRustUseList(list *sitter.Node, source []byte, basePath string, m *ImportMap) {
	count := int(list.ChildCount())
	for i := 0; i < count; i++ {
		child := list.Child(i)
		switch child.Type() {
		case "identifier":
			name := content(child, source)
			m.Add(name, joinRustPath(basePath, name))
		case "self":
			if simple := rsplitLast(basePath, "::"); simple != "" {
				m.Add(simple, basePath)
			}
		case "use_as_clause":
			path := firstChildOfType(child, "scoped_identifier")
			if path == nil {
				path = firstChildOfType(child, "identifier")
			}
			alias := lastChildOfType(child, "identifier")
			if path != nil && alias != nil {
				m.Add(content(alias, source), joinRustPath(basePath, content(path, source)))
			}
		case "scoped_identifier":
			scoped := content(child, source)
			full := joinRustPath(basePath, scoped)
			if simple := rsplitLast(scoped, "::"); simple != "" {
				m.Add(simple, full)
			}
		case "scoped_use_list":
			// Nested group: `a::{b::{c, d}}`.
			nestedBase := firstChildOfType(child, "scoped_identifier")
			if nestedBase == nil {
				nestedBase = firstChildOfType(child, "identifier")
			}
			nestedList := firstChildOfType(child, "use_list")
			if nestedBase != nil && nestedList != nil {
				parseRustUseList(nestedList, source, joinRustPath(basePath, content(nestedBase, source)), m)
			}
		case "use_wildcard":
			inner := firstChildOfType(child, "scoped_identifier")
			if inner == nil {
				inner = firstChildOfType(child, "identifier")
			}
			if inner != nil {
				m.AddGlobBase(joinRustPath(basePath, content(inner, source)))
			} else if basePath != "" {
				m.AddGlobBase(basePath)
			}
		}
	}
}

func joinRustPath(base, rest string) string {
	if base == "" {
		return rest
	}
	return base + "::" + rest
}

func rsplitLast(s, sep string) string {
	idx := -1
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			idx = i
		}
	}
	if idx < 0 {
		return s
	}
	return s[idx+len(sep):]
}

func lastChildOfType(n *sitter.Node, kind string) *sitter.Node {
	children := childrenOfType(n, kind)
	if len(children) == 0 {
		return nil
	}
	return children[len(children)-1]
}
