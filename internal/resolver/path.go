package resolver

import "strings"

// RelativeSemantics describes how a relative prefix anchors a path once
// resolved against a package and current module.
type RelativeSemantics int

const (
	// SemanticsRoot anchors the path at the package root (e.g. Rust crate::).
	SemanticsRoot RelativeSemantics = iota
	// SemanticsCurrent anchors the path at the current module (e.g. Rust self::).
	SemanticsCurrent
	// SemanticsParent navigates up N levels from the current module before
	// anchoring (e.g. Rust super::, chained as super::super::…).
	SemanticsParent
)

// RelativePrefix is one entry in a PathConfig's ordered prefix table.
type RelativePrefix struct {
	// Token is the literal prefix text, including its trailing separator
	// (e.g. "crate::", "self::", "super::", "./", "../").
	Token string
	// Chainable means the token may repeat consecutively (super::super::…,
	// or "../../"); each repetition adds one level for SemanticsParent.
	Chainable bool
	Semantics RelativeSemantics
}

// PathConfig is the per-language configuration that parameterizes path
// parsing and resolution. Construct one via the per-language constructors
// in languages.go.
type PathConfig struct {
	// Separator joins qualified-name segments ("::" for the Rust-like
	// family, "." for JavaScript/TypeScript/Python).
	Separator string
	// RelativePrefixes is checked in order; for chainable tokens the
	// longest run of consecutive repeats is counted.
	RelativePrefixes []RelativePrefix
	// ExternalPrefixes are first-segment names that mark a path external
	// even with no literal "external" token (e.g. "std", "core", "alloc").
	ExternalPrefixes map[string]struct{}
}

// NewPathConfig builds a PathConfig. externalPrefixes may be nil.
func NewPathConfig(separator string, prefixes []RelativePrefix, externalPrefixes []string) PathConfig {
	set := make(map[string]struct{}, len(externalPrefixes))
	for _, p := range externalPrefixes {
		set[p] = struct{}{}
	}
	return PathConfig{
		Separator:        separator,
		RelativePrefixes: prefixes,
		ExternalPrefixes: set,
	}
}

// PathKind discriminates the three shapes a parsed LanguagePath can take.
type PathKind int

const (
	KindAbsolute PathKind = iota
	KindRelative
	KindExternal
)

// LanguagePath is a parsed reference path: plain segments plus enough
// context (kind, originating prefix, semantics, parent-levels) to resolve
// it against a package and current module.
type LanguagePath struct {
	Kind      PathKind
	Prefix    string
	Semantics RelativeSemantics
	Levels    int
	Segments  []string
	separator string
}

// ParsePath parses raw according to cfg. Parsing is deterministic: check
// relative prefixes in config order (counting the longest chain for
// chainable tokens), then the literal "external"+separator prefix, then
// first-segment membership in ExternalPrefixes, else Absolute.
func ParsePath(raw string, cfg PathConfig) LanguagePath {
	for _, rp := range cfg.RelativePrefixes {
		if !strings.HasPrefix(raw, rp.Token) {
			continue
		}
		rest := raw
		levels := 0
		if rp.Chainable {
			for strings.HasPrefix(rest, rp.Token) {
				rest = strings.TrimPrefix(rest, rp.Token)
				levels++
			}
		} else {
			rest = strings.TrimPrefix(rest, rp.Token)
			levels = 1
		}
		return LanguagePath{
			Kind:      KindRelative,
			Prefix:    rp.Token,
			Semantics: rp.Semantics,
			Levels:    levels,
			Segments:  splitSegments(rest, cfg.Separator),
			separator: cfg.Separator,
		}
	}

	externalToken := "external" + cfg.Separator
	if strings.HasPrefix(raw, externalToken) {
		return LanguagePath{
			Kind:      KindExternal,
			Segments:  splitSegments(strings.TrimPrefix(raw, externalToken), cfg.Separator),
			separator: cfg.Separator,
		}
	}
	if raw == "external" {
		return LanguagePath{Kind: KindExternal, separator: cfg.Separator}
	}

	segments := splitSegments(raw, cfg.Separator)
	if len(segments) > 0 {
		if _, ok := cfg.ExternalPrefixes[segments[0]]; ok {
			return LanguagePath{Kind: KindExternal, Segments: segments, separator: cfg.Separator}
		}
	}

	return LanguagePath{Kind: KindAbsolute, Segments: segments, separator: cfg.Separator}
}

func splitSegments(s string, sep string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, sep)
}

// IsRelative reports whether p was parsed from a relative prefix.
func (p LanguagePath) IsRelative() bool { return p.Kind == KindRelative }

// IsExternal reports whether p is external.
func (p LanguagePath) IsExternal() bool { return p.Kind == KindExternal }

// SimpleName is the final segment, or "" if there are none.
func (p LanguagePath) SimpleName() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// ToQualifiedName reconstructs the qualified-name string for p, prepending
// the appropriate decoration for its kind. Round-trips with ParsePath:
// ParsePath(p.ToQualifiedName(), cfg) describes the same path as p.
func (p LanguagePath) ToQualifiedName() string {
	joined := strings.Join(p.Segments, p.separator)
	switch p.Kind {
	case KindExternal:
		if joined == "" {
			return "external"
		}
		return "external" + p.separator + joined
	case KindRelative:
		prefix := p.Prefix
		if p.Semantics == SemanticsParent && p.Levels > 1 {
			prefix = strings.Repeat(p.Prefix, p.Levels)
		}
		if joined == "" {
			return strings.TrimSuffix(prefix, p.separator)
		}
		return prefix + joined
	default:
		return joined
	}
}

func (p LanguagePath) String() string { return p.ToQualifiedName() }

// Resolve computes the absolute qualified name for p given the enclosing
// package and current module (both already dot/colon-joined strings, using
// p's separator). See the resolution-order table in doc.go.
func (p LanguagePath) Resolve(pkg, currentModule string) string {
	switch p.Kind {
	case KindAbsolute:
		return p.ToQualifiedName()
	case KindExternal:
		return p.ToQualifiedName()
	case KindRelative:
		switch p.Semantics {
		case SemanticsRoot:
			return p.joinNonEmpty(pkg)
		case SemanticsCurrent:
			return p.joinNonEmpty(pkg, currentModule)
		case SemanticsParent:
			parent := popTrailing(currentModule, p.separator, p.Levels)
			return p.joinNonEmpty(pkg, parent)
		}
	}
	return p.ToQualifiedName()
}

// joinNonEmpty joins non-empty prefix parts with p's segments, omitting any
// empty prefix part rather than leaving a stray separator.
func (p LanguagePath) joinNonEmpty(prefixParts ...string) string {
	var parts []string
	for _, pp := range prefixParts {
		if pp != "" {
			parts = append(parts, pp)
		}
	}
	parts = append(parts, p.Segments...)
	return strings.Join(parts, p.separator)
}

// popTrailing removes up to levels trailing segments from module. If
// levels meets or exceeds module's depth, returns "" (package root) rather
// than erroring — the exceeds-depth edge case degrades gracefully.
func popTrailing(module, sep string, levels int) string {
	if module == "" || levels <= 0 {
		return module
	}
	parts := strings.Split(module, sep)
	if levels >= len(parts) {
		return ""
	}
	return strings.Join(parts[:len(parts)-levels], sep)
}
