package resolver

// Language identifies a supported source language. Shared with the entity
// extractor, since qualified-name construction and path resolution
// are both keyed on it.
type Language string

const (
	LanguageRust       Language = "rust"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageGo         Language = "go"
	LanguageUnknown    Language = "unknown"
)

// rustStdlibPrimitives is the fixed list of standard-library primitive and
// built-in type names that resolve unchanged, never prefixed by the local
// package (the second step of reference resolution).
var rustStdlibPrimitives = map[string]struct{}{
	"bool": {}, "char": {}, "str": {},
	"i8": {}, "i16": {}, "i32": {}, "i64": {}, "i128": {}, "isize": {},
	"u8": {}, "u16": {}, "u32": {}, "u64": {}, "u128": {}, "usize": {},
	"f32": {}, "f64": {},
	"Self": {}, "Option": {}, "Result": {}, "Box": {}, "Vec": {}, "String": {},
}

// PathConfigFor returns the PathConfig and the stdlib-primitive set for a
// language. ok is false for languages with no path-resolution support
// (e.g. Go, whose qualified names are plain import-path-based and need no
// relative-prefix algebra).
func PathConfigFor(lang Language) (cfg PathConfig, primitives map[string]struct{}, ok bool) {
	switch lang {
	case LanguageRust:
		return rustPathConfig(), rustStdlibPrimitives, true
	case LanguagePython:
		return pythonPathConfig(), nil, true
	case LanguageJavaScript:
		return jsPathConfig(), nil, true
	case LanguageTypeScript:
		return jsPathConfig(), nil, true
	default:
		return PathConfig{}, nil, false
	}
}

// rustPathConfig is the Rust-like family: "::" separator, crate:: (root),
// self:: (current module), chainable super:: (parent), plus the stdlib
// crate roots as external prefixes.
func rustPathConfig() PathConfig {
	return NewPathConfig("::", []RelativePrefix{
		{Token: "crate::", Chainable: false, Semantics: SemanticsRoot},
		{Token: "self::", Chainable: false, Semantics: SemanticsCurrent},
		{Token: "super::", Chainable: true, Semantics: SemanticsParent},
	}, []string{"std", "core", "alloc"})
}

// pythonPathConfig models leading-dot relative imports as a single
// chainable "." prefix resolved with SemanticsParent: Levels ends up equal
// to the dot count, and popping that many trailing segments off the
// current module path (which already includes the file's own module
// segment) reproduces Python's "one dot = current package" rule directly.
func pythonPathConfig() PathConfig {
	return NewPathConfig(".", []RelativePrefix{
		{Token: ".", Chainable: true, Semantics: SemanticsParent},
	}, nil)
}

// jsPathConfig covers JavaScript and TypeScript: "." separator, "./" and
// "../" prefixes. JS/TS have no stdlib-external-prefix convention; bare
// specifiers (e.g. "lodash") are handled by the import parser itself,
// which prefixes them with "external." before they ever reach ParsePath.
func jsPathConfig() PathConfig {
	return NewPathConfig(".", []RelativePrefix{
		{Token: "../", Chainable: true, Semantics: SemanticsParent},
		{Token: "./", Chainable: false, Semantics: SemanticsCurrent},
	}, nil)
}
