package extractor

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/fyrsmithlabs/codeindexd/internal/resolver"
)

// grammars maps each supported Language to its tree-sitter grammar. Go's
// own grammar is registered for completeness even though no extractor
// claims resolver.LanguageGo yet; the corpus's indexers (e.g. the
// code-indexer example) treat Go as a first-class language and this keeps
// the door open without committing to a Go-specific extractor in this
// pass.
var grammars = map[resolver.Language]*sitter.Language{
	resolver.LanguageRust:       rust.GetLanguage(),
	resolver.LanguagePython:     python.GetLanguage(),
	resolver.LanguageJavaScript: javascript.GetLanguage(),
	resolver.LanguageTypeScript: typescript.GetLanguage(),
	resolver.LanguageGo:         golang.GetLanguage(),
}

// parseSource parses content with lang's grammar and returns the tree's
// root node. Callers own the tree's lifetime only through the returned
// node; the *sitter.Tree itself is discarded since nothing here closes it
// explicitly (go-tree-sitter trees are GC'd like any other Go value).
func parseSource(ctx context.Context, content []byte, lang resolver.Language) (*sitter.Node, error) {
	grammar, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("extractor: no tree-sitter grammar for language %q", lang)
	}
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("extractor: parse failed: %w", err)
	}
	root := tree.RootNode()
	if root == nil || root.HasError() && root.ChildCount() == 0 {
		return nil, fmt.Errorf("extractor: empty or unparsable source")
	}
	return root, nil
}
