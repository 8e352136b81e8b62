package extractor

import (
	"regexp"
	"strings"
)

// selfWordBoundary matches the token "Self" as a whole word, so that
// "SelfReference" does not count as a Self-returning signature.
var selfWordBoundary = regexp.MustCompile(`\bSelf\b`)

// BuildModuleQualifiedName builds: "pkg::mod" for a regular
// module file, or "pkg" alone for a crate root (lib.rs/main.rs, modulePath
// empty).
func BuildModuleQualifiedName(pkg, modulePath, sep string) string {
	if modulePath == "" {
		return pkg
	}
	return joinNonEmpty(sep, pkg, modulePath)
}

// BuildTypeQualifiedName builds "pkg::mod::TypeName".
func BuildTypeQualifiedName(pkg, modulePath, name, sep string) string {
	return joinNonEmpty(sep, pkg, modulePath, name)
}

// BuildFunctionQualifiedName builds "pkg::mod::func_name".
func BuildFunctionQualifiedName(pkg, modulePath, name, sep string) string {
	return joinNonEmpty(sep, pkg, modulePath, name)
}

// BuildInherentMethodQualifiedName builds the
// angle-bracketed UFCS form "<pkg::mod::TypeName>::method_name" is
// mandatory even for inherent methods, so that reference resolution
// produces the identical string for a call through either an instance or
// the fully qualified path.
func BuildInherentMethodQualifiedName(typeQualifiedName, methodName, sep string) string {
	return "<" + typeQualifiedName + ">" + sep + methodName
}

// BuildTraitImplMethodQualifiedName builds:
// "<pkg::mod::TypeName as pkg::mod::TraitName>::method_name". boundsSuffix
// is the " where …" disambiguation text (empty when the impl has no
// bounds); it is inserted inside the angle brackets, matching how the
// impl block's own qualified name disambiguates overlapping impls.
func BuildTraitImplMethodQualifiedName(typeQualifiedName, traitQualifiedName, boundsSuffix, methodName, sep string) string {
	return "<" + typeQualifiedName + " as " + traitQualifiedName + boundsSuffix + ">" + sep + methodName
}

// BuildImplBlockQualifiedName builds "pkg::mod::impl
// TypeName" for an inherent impl, or "pkg::mod::<TypeName as TraitName>"
// for a trait impl (traitQualifiedName == "" selects the inherent form).
func BuildImplBlockQualifiedName(pkg, modulePath, typeQualifiedName, traitQualifiedName, boundsSuffix, sep string) string {
	prefix := joinNonEmpty(sep, pkg, modulePath)
	var block string
	if traitQualifiedName == "" {
		block = "impl " + typeQualifiedName + boundsSuffix
	} else {
		block = "<" + typeQualifiedName + " as " + traitQualifiedName + boundsSuffix + ">"
	}
	if prefix == "" {
		return block
	}
	return prefix + sep + block
}

// ForeignTypeImplSegment builds the segment used when implementing
// a local trait for a foreign (non-local) type, the foreign type segment
// is used unprefixed, as-is — callers pass the raw type name rather than
// resolving it through the local package, so this is a no-op kept as a
// named function purely to document the rule at the call site.
func ForeignTypeImplSegment(foreignTypeName string) string { return foreignTypeName }

// IsMethod classifies a function inside an impl/class body as a Method
// rather than a plain associated Function. This is a
// deliberate divergence from strict language semantics: a function is a
// method if it takes a self-family first parameter, OR its return type
// contains the word-boundary token "Self" — so `fn new() -> Self` counts
// as a method even though it takes no self parameter.
func IsMethod(hasSelfParam bool, returnType string) bool {
	return hasSelfParam || selfWordBoundary.MatchString(returnType)
}

func joinNonEmpty(sep string, parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, sep)
}
