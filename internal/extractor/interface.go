package extractor

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/codeindexd/internal/resolver"
)

// FileInput is everything one Extract call needs about a single source
// file. SourceRoot and Package are optional: SourceRoot lets the extractor
// derive a module path from FilePath; Package is the enclosing
// package/crate name used to compose absolute qualified names. Both may be
// empty for a file extracted in isolation (tests, single-file mode), in
// which case qualified names simply omit that component.
type FileInput struct {
	Content      []byte
	FilePath     string
	Language     resolver.Language
	Package      string
	SourceRoot   string
	RepositoryID string

	// SkipRootModule tells the Rust extractor this file is a main.rs whose
	// directory also has a lib.rs, so lib.rs already owns the crate-root
	// module's qualified name; synthesizing a second one here would
	// collide. Ignored by every other language.
	SkipRootModule bool
}

// Extractor is the uniform per-language interface every extractor implements:
// extract(file_bytes, file_path, language, package?, source_root?) ->
// [Entity]. A file that fails to parse returns zero entities and a
// non-nil error; the caller (the pipeline's extraction stage) counts the failure but never
// aborts the pipeline over it.
type Extractor interface {
	Extract(ctx context.Context, in FileInput) ([]Entity, error)
}

// registry maps each supported language to its extractor. Built once at
// package init; every entry is stateless and safe for concurrent use,
// which is what lets the pipeline run many extraction workers against the same
// Extractor value.
var registry = map[resolver.Language]Extractor{
	resolver.LanguageRust:       rustExtractor{},
	resolver.LanguagePython:     pythonExtractor{},
	resolver.LanguageJavaScript: jsExtractor{},
	resolver.LanguageTypeScript: jsExtractor{},
}

// Extract dispatches to the registered Extractor for in.Language.
func Extract(ctx context.Context, in FileInput) ([]Entity, error) {
	ext, ok := registry[in.Language]
	if !ok {
		return nil, fmt.Errorf("extractor: unsupported language %q", in.Language)
	}
	return ext.Extract(ctx, in)
}
