package resolver

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// jsExtensions are the source-file extensions stripped from the final
// segment of a relative import path before it is treated as a module name.
var jsExtensions = map[string]struct{}{
	"js": {}, "ts": {}, "jsx": {}, "tsx": {}, "mjs": {}, "cjs": {},
}

// parseJSImports walks a JavaScript or TypeScript AST for import_statement
// nodes, handling default imports, named imports (with aliasing),
// namespace imports, and relative-path resolution against
// currentModulePath:
//
//   - import { foo } from './bar';          -> ("foo", "<mod>.bar.foo")
//   - import { foo as bar } from './baz';   -> ("bar", "<mod>.baz.foo")
//   - import foo from './bar';              -> ("foo", "<mod>.bar.default")
//   - import * as foo from './bar';         -> ("foo", "<mod>.bar")
//   - import foo from 'lodash';             -> ("foo", "external.lodash.default")
func parseJSImports(root *sitter.Node, source []byte, currentModulePath string) *ImportMap {
	m := NewImportMap(".")
	if root == nil {
		return m
	}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "import_statement" {
			return true
		}
		sourceNode := firstChildOfType(n, "string")
		if sourceNode == nil {
			return true
		}
		raw := strings.Trim(content(sourceNode, source), `"'`)

		resolvedPath := raw
		if currentModulePath != "" {
			if resolved, ok := resolveRelativeImportPath(currentModulePath, raw); ok {
				resolvedPath = resolved
			} else if strings.HasPrefix(raw, ".") {
				resolvedPath = raw
			} else {
				resolvedPath = "external." + raw
			}
		}

		clause := firstChildOfType(n, "import_clause")
		if clause != nil {
			parseJSImportClause(clause, source, resolvedPath, m)
		}
		return true
	})
	return m
}

func parseJSImportClause(clause *sitter.Node, source []byte, sourcePath string, m *ImportMap) {
	count := int(clause.ChildCount())
	for i := 0; i < count; i++ {
		child := clause.Child(i)
		switch child.Type() {
		case "identifier":
			// Default import: `import foo from './bar'`.
			m.Add(content(child, source), sourcePath+".default")
		case "named_imports":
			specs := childrenOfType(child, "import_specifier")
			for _, spec := range specs {
				parseJSImportSpecifier(spec, source, sourcePath, m)
			}
		case "namespace_import":
			inner := childrenOfType(child, "identifier")
			for _, id := range inner {
				m.Add(content(id, source), sourcePath)
			}
		}
	}
}

func parseJSImportSpecifier(spec *sitter.Node, source []byte, sourcePath string, m *ImportMap) {
	nameNode := spec.ChildByFieldName("name")
	aliasNode := spec.ChildByFieldName("alias")
	if nameNode == nil {
		return
	}
	orig := content(nameNode, source)
	if aliasNode != nil {
		m.Add(content(aliasNode, source), sourcePath+"."+orig)
		return
	}
	m.Add(orig, sourcePath+"."+orig)
}

// resolveRelativeImportPath resolves importPath (e.g. "./core",
// "../utils") against currentModulePath (e.g. "vanilla.atom"), mirroring
// how entity qualified_names are built: the current module's own segment
// is popped first, then each path segment is applied in turn. Known
// JS/TS extensions on the final segment are stripped. ok is false for
// non-relative (bare specifier) imports like "lodash".
func resolveRelativeImportPath(currentModulePath, importPath string) (resolved string, ok bool) {
	if !strings.HasPrefix(importPath, ".") {
		return "", false
	}

	var parts []string
	if currentModulePath != "" {
		parts = strings.Split(currentModulePath, ".")
	}
	if len(parts) > 0 {
		parts = parts[:len(parts)-1]
	}

	for _, segment := range strings.Split(importPath, "/") {
		switch segment {
		case ".", "":
			// current directory, no change
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, stripJSExtension(segment))
		}
	}

	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "."), true
}

func stripJSExtension(segment string) string {
	idx := strings.LastIndex(segment, ".")
	if idx < 0 {
		return segment
	}
	base, ext := segment[:idx], segment[idx+1:]
	if _, known := jsExtensions[ext]; known {
		return base
	}
	return segment
}
