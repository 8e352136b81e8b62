package resolver

import "strings"

// maxResolveDepth guards the substitution step (step 4) against a
// pathological self-referential import map; no real import map needs more
// than a couple of substitution hops.
const maxResolveDepth = 8

// ReferenceResolver turns a bare or partially-qualified identifier into a
// fully qualified name for one language. It is a pure function of its
// inputs: Resolve never errors and never mutates ImportMap, so calling it
// twice with identical arguments always returns the identical string.
type ReferenceResolver struct {
	Config     PathConfig
	Primitives map[string]struct{}
}

// NewReferenceResolver builds a ReferenceResolver for lang. ok is false for
// languages PathConfigFor doesn't support.
func NewReferenceResolver(lang Language) (ReferenceResolver, bool) {
	cfg, primitives, ok := PathConfigFor(lang)
	if !ok {
		return ReferenceResolver{}, false
	}
	return ReferenceResolver{Config: cfg, Primitives: primitives}, true
}

// Resolve resolves name to an FQN given importMap, an optional AST-parent
// scope, the package name, and the current module path. Unresolved names
// degrade to "external<sep>name" rather than erroring.
//
// Resolution order:
//  1. Universal Function Call Syntax `<T as Tr>::m` (or `<T>::m` for
//     inherent methods) — resolve T and Tr independently, with no parent
//     scope, and recompose.
//  2. Known standard-library primitive — returned unchanged.
//  3. Relative prefix (crate::, self::, super::…) — normalized via
//     ParsePath + LanguagePath.Resolve.
//  4. Already scoped (contains the separator) — external-prefix check,
//     import-map first-segment substitution, local-package check,
//     import-map-sibling external check, else prepend package.
//  5. Bare identifier present in the import map — substituted (and
//     normalized if the mapped path is itself relative).
//  6. First matching glob-import base — `base<sep>name`.
//  7. AST-parent scope, if provided — `scope<sep>name`.
//  8. Package + current module both known — `package<sep>module<sep>name`.
//  9. Otherwise — `external<sep>name`.
func (r ReferenceResolver) Resolve(name string, importMap *ImportMap, parentScope *string, pkg, currentModule string) string {
	return r.resolveDepth(name, importMap, parentScope, pkg, currentModule, 0)
}

func (r ReferenceResolver) resolveDepth(name string, importMap *ImportMap, parentScope *string, pkg, currentModule string, depth int) string {
	sep := r.Config.Separator

	// Step 1: UFCS `<T as Tr>::m` / `<T>::m`.
	if strings.HasPrefix(name, "<") {
		if resolved, ok := r.resolveUFCS(name, importMap, pkg, currentModule, depth); ok {
			return resolved
		}
	}

	// Step 2: stdlib primitive.
	if _, ok := r.Primitives[name]; ok {
		return name
	}

	// Step 3: relative prefix.
	for _, rp := range r.Config.RelativePrefixes {
		if strings.HasPrefix(name, rp.Token) {
			return ParsePath(name, r.Config).Resolve(pkg, currentModule)
		}
	}

	// Step 4: already scoped.
	if IsScoped(name, sep) {
		return r.resolveScoped(name, importMap, pkg, currentModule, sep, depth)
	}

	// Step 5: bare identifier in import map.
	if mapped, ok := importMap.Resolve(name); ok {
		for _, rp := range r.Config.RelativePrefixes {
			if strings.HasPrefix(mapped, rp.Token) {
				return ParsePath(mapped, r.Config).Resolve(pkg, currentModule)
			}
		}
		return mapped
	}

	// Step 6: glob-import bases, first one wins.
	if bases := importMap.GlobBases(); len(bases) > 0 {
		return bases[0] + sep + name
	}

	// Step 7: AST-parent scope.
	if parentScope != nil && *parentScope != "" {
		return *parentScope + sep + name
	}

	// Step 8: package + current module, both known.
	if pkg != "" && currentModule != "" {
		return pkg + sep + currentModule + sep + name
	}

	// Step 9: external fallback.
	return "external" + sep + name
}

func (r ReferenceResolver) resolveUFCS(name string, importMap *ImportMap, pkg, currentModule string, depth int) (string, bool) {
	if depth >= maxResolveDepth {
		return "", false
	}
	sep := r.Config.Separator
	closeTok := ">" + sep
	idx := strings.Index(name, closeTok)
	if idx < 0 {
		return "", false
	}
	inner := name[1:idx]
	method := name[idx+len(closeTok):]

	typePart := inner
	traitPart := ""
	if i2 := strings.Index(inner, " as "); i2 >= 0 {
		typePart = strings.TrimSpace(inner[:i2])
		traitPart = strings.TrimSpace(inner[i2+len(" as "):])
	}

	resolvedType := r.resolveDepth(typePart, importMap, nil, pkg, currentModule, depth+1)
	if traitPart == "" {
		return "<" + resolvedType + ">" + sep + method, true
	}
	resolvedTrait := r.resolveDepth(traitPart, importMap, nil, pkg, currentModule, depth+1)
	return "<" + resolvedType + " as " + resolvedTrait + ">" + sep + method, true
}

func (r ReferenceResolver) resolveScoped(name string, importMap *ImportMap, pkg, currentModule, sep string, depth int) string {
	first := firstSegment(name, sep)

	if _, ok := r.Config.ExternalPrefixes[first]; ok || first == "external" {
		return name
	}

	if mapped, ok := importMap.Resolve(first); ok && depth < maxResolveDepth {
		rest := strings.TrimPrefix(name, first+sep)
		substituted := mapped + sep + rest
		return r.resolveDepth(substituted, importMap, nil, pkg, currentModule, depth+1)
	}

	if first == pkg {
		return name
	}

	for _, p := range importMap.ImportedPaths() {
		if firstSegment(p, sep) == first {
			return name
		}
	}

	return pkg + sep + name
}
