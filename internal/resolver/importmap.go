package resolver

import "strings"

// ImportMap maps simple names to fully qualified paths for one source
// file, plus the list of glob/wildcard import bases recorded separately
// since they don't map a single name.
type ImportMap struct {
	separator string
	mappings  map[string]string
	globBases []string
}

// NewImportMap creates an empty ImportMap using separator for Scoped
// detection and glob-base joining.
func NewImportMap(separator string) *ImportMap {
	return &ImportMap{separator: separator, mappings: make(map[string]string)}
}

// Add inserts a simpleName -> qualifiedPath mapping. Aliased imports
// (`use X as Y`, `import X as Y`) call Add with the alias as simpleName.
func (m *ImportMap) Add(simpleName, qualifiedPath string) {
	m.mappings[simpleName] = qualifiedPath
}

// AddGlobBase records a wildcard import's base path (`use std::io::*` ->
// "std::io"), consulted by reference resolution step 6.
func (m *ImportMap) AddGlobBase(base string) {
	m.globBases = append(m.globBases, base)
}

// Resolve looks up a bare name. ok is false if name was never imported.
func (m *ImportMap) Resolve(name string) (path string, ok bool) {
	path, ok = m.mappings[name]
	return path, ok
}

// Separator returns the language separator this map was built with.
func (m *ImportMap) Separator() string { return m.separator }

// GlobBases returns the recorded wildcard-import bases, in import order.
func (m *ImportMap) GlobBases() []string { return m.globBases }

// Len returns the number of name -> path mappings.
func (m *ImportMap) Len() int { return len(m.mappings) }

// IsEmpty reports whether the map has neither mappings nor glob bases.
func (m *ImportMap) IsEmpty() bool { return len(m.mappings) == 0 && len(m.globBases) == 0 }

// ImportedPaths returns every mapped qualified path, in no particular
// order. Used by reference-resolution step 4's "matches any import-map
// entry's first segment" external check.
func (m *ImportMap) ImportedPaths() []string {
	paths := make([]string, 0, len(m.mappings))
	for _, p := range m.mappings {
		paths = append(paths, p)
	}
	return paths
}

// IsScoped reports whether name already contains separator, i.e. it is
// already qualified and should not be looked up in an import map.
func IsScoped(name, separator string) bool {
	return strings.Contains(name, separator)
}

// firstSegment returns the portion of name before the first separator, or
// name itself if it contains no separator.
func firstSegment(name, separator string) string {
	if idx := strings.Index(name, separator); idx >= 0 {
		return name[:idx]
	}
	return name
}
