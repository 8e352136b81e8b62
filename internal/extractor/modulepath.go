package extractor

import (
	"path"
	"strings"
)

// DeriveModulePath turns a repository-relative file path into the
// separator-joined module path used by BuildModuleQualifiedName and every
// other qualified-name builder. sourceRoot is stripped first (e.g. "src/"); ext is
// the language's source extension including the dot (".rs", ".py");
// indexStems names the per-directory "this file IS the directory's
// module" file stems (Rust: "mod"; Python: "__init__"; empty disables the
// rule, treating every file as its own leaf module, which is how
// JavaScript/TypeScript modules work).
//
// Returns "" for a crate/package root file (entryStems match with no
// containing directory) — callers use that to decide whether to synthesize
// a root module entity instead of a regular one.
func DeriveModulePath(filePath, sourceRoot, ext, sep string, indexStems map[string]bool, entryStems map[string]bool) string {
	rel := strings.TrimPrefix(filePath, sourceRoot)
	rel = strings.TrimPrefix(rel, "/")

	dir, file := path.Split(rel)
	dir = strings.TrimSuffix(dir, "/")
	stem := strings.TrimSuffix(file, ext)

	var dirParts []string
	if dir != "" && dir != "." {
		dirParts = strings.Split(dir, "/")
	}

	if entryStems[stem] && dir == "" {
		return ""
	}
	if indexStems[stem] {
		return strings.Join(dirParts, sep)
	}
	return strings.Join(append(dirParts, stem), sep)
}
