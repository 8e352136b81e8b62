// Package extractor parses a source file with tree-sitter and emits the
// code entities found in it, with fully resolved qualified names and
// reference metadata.
//
// One extractor per supported language sits behind the uniform Extract
// function; all of them build an import map and a
// resolver.ReferenceResolver (internal/resolver) and use it to turn every
// call, type reference, and trait/interface implementation into a fully
// qualified name before the entity ever leaves this package — nothing
// downstream ever sees a raw unresolved identifier.
package extractor
