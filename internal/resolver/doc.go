// Package resolver builds, for every source file, an import map from simple
// names to fully qualified names and a reference resolver that turns an
// arbitrary identifier appearing in that file into a fully qualified name
// (FQN), given the current package and module.
//
// The design generalizes across language families with a single
// data-driven PathConfig rather than a parser per language: a separator, an
// ordered list of relative prefixes (crate::, self::, super::, ./, ../, a
// leading-dot count for Python), and a set of external prefixes (stdlib
// roots, or a bare "external" marker). LanguagePath and ReferenceResolver
// are pure functions of their inputs — calling either twice with identical
// arguments always produces identical output, and resolution never fails:
// an identifier that cannot be placed degrades to "external::name" (or the
// language's separator equivalent) rather than returning an error.
package resolver
