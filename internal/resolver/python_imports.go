package resolver

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// parsePythonImports walks a Python AST for import_statement and
// import_from_statement nodes:
//
//   - from os.path import join       -> ("join", "external.os.path.join")
//   - from os.path import join as j  -> ("j", "external.os.path.join")
//   - import os.path                 -> ("os", "external.os")
//   - import os.path as osp          -> ("osp", "external.os.path")
//   - from . import foo (in mypackage.utils)      -> ("foo", "mypackage.foo")
//   - from .helpers import bar (in mypackage.utils) -> ("bar", "mypackage.helpers.bar")
func parsePythonImports(root *sitter.Node, source []byte, currentModulePath string) *ImportMap {
	m := NewImportMap(".")
	if root == nil {
		return m
	}
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_from_statement":
			parsePythonFromImport(n, source, currentModulePath, m)
		case "import_statement":
			parsePythonPlainImport(n, source, m)
		}
		return true
	})
	return m
}

func parsePythonFromImport(n *sitter.Node, source []byte, currentModulePath string, m *ImportMap) {
	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}

	names := childrenOfType(n, "dotted_name")
	aliased := childrenOfType(n, "aliased_import")

	switch moduleNode.Type() {
	case "dotted_name":
		modText := content(moduleNode, source)
		for _, name := range names {
			if name == moduleNode {
				continue
			}
			nameText := content(name, source)
			m.Add(nameText, "external."+modText+"."+nameText)
		}
		for _, al := range aliased {
			nameNode := al.ChildByFieldName("name")
			aliasNode := al.ChildByFieldName("alias")
			if nameNode == nil || aliasNode == nil {
				continue
			}
			m.Add(content(aliasNode, source), "external."+modText+"."+content(nameNode, source))
		}
	case "relative_import":
		relText := content(moduleNode, source)
		for _, name := range names {
			nameText := content(name, source)
			m.Add(nameText, resolvePythonRelativeImport(currentModulePath, relText, nameText))
		}
		for _, al := range aliased {
			nameNode := al.ChildByFieldName("name")
			aliasNode := al.ChildByFieldName("alias")
			if nameNode == nil || aliasNode == nil {
				continue
			}
			nameText := content(nameNode, source)
			m.Add(content(aliasNode, source), resolvePythonRelativeImport(currentModulePath, relText, nameText))
		}
	}
}

func parsePythonPlainImport(n *sitter.Node, source []byte, m *ImportMap) {
	for _, name := range childrenOfType(n, "dotted_name") {
		full := content(name, source)
		local, _, _ := strings.Cut(full, ".")
		m.Add(local, "external."+local)
	}
	for _, al := range childrenOfType(n, "aliased_import") {
		nameNode := al.ChildByFieldName("name")
		aliasNode := al.ChildByFieldName("alias")
		if nameNode == nil || aliasNode == nil {
			continue
		}
		m.Add(content(aliasNode, source), "external."+content(nameNode, source))
	}
}

// resolvePythonRelativeImport resolves a Python relative import (leading
// dots in relativeText: one dot = current package, two = parent, …)
// against currentModulePath, which already includes the importing file's
// own module segment.
func resolvePythonRelativeImport(currentModulePath, relativeText, importName string) string {
	dotCount := 0
	for dotCount < len(relativeText) && relativeText[dotCount] == '.' {
		dotCount++
	}
	moduleSuffix := relativeText[dotCount:]

	var parts []string
	if currentModulePath != "" {
		parts = strings.Split(currentModulePath, ".")
	}
	for i := 0; i < dotCount && len(parts) > 0; i++ {
		parts = parts[:len(parts)-1]
	}

	if moduleSuffix != "" {
		for _, segment := range strings.Split(moduleSuffix, ".") {
			if segment != "" {
				parts = append(parts, segment)
			}
		}
	}
	parts = append(parts, importName)

	return strings.Join(parts, ".")
}
