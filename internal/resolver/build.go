package resolver

import sitter "github.com/smacker/go-tree-sitter"

// BuildImportMap parses the import/use declarations in root's AST into an
// ImportMap, dispatching to the per-language parser. currentModulePath is
// used only by the JavaScript/TypeScript/Python parsers, to resolve
// relative import paths to the same absolute module-path form entity
// qualified_names use; Rust's use declarations are already absolute or
// crate-relative so it is ignored there.
func BuildImportMap(root *sitter.Node, source []byte, lang Language, currentModulePath string) *ImportMap {
	switch lang {
	case LanguageRust:
		return parseRustImports(root, source)
	case LanguageJavaScript, LanguageTypeScript:
		return parseJSImports(root, source, currentModulePath)
	case LanguagePython:
		return parsePythonImports(root, source, currentModulePath)
	default:
		return NewImportMap(".")
	}
}
