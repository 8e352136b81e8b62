package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// defaultSkipDirs are directories never walked into, regardless of
// include/exclude patterns — generated code, dependency trees, and VCS
// metadata that never contain entities worth extracting.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}

// extensionLanguage maps a file extension to the resolver.Language string
// the extractor registry is keyed on. Files with an unrecognized
// extension are skipped by the discovery stage before they ever reach extraction.
var extensionLanguage = map[string]string{
	".rs":  "rust",
	".py":  "python",
	".js":  "javascript",
	".jsx": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
}

// DiscoveryOptions configures the discovery stage's walk, mirroring the repository
// service's IncludePatterns/ExcludePatterns/MaxFileSize knobs.
type DiscoveryOptions struct {
	RepositoryPath  string
	IncludePatterns []string
	ExcludePatterns []string
	MaxFileSize     int64
}

// discoverFiles walks RepositoryPath, applies the skip-dir list and
// include/exclude glob patterns, and sends FileBatch values of at most
// batchSize files to out. It closes out when the walk completes.
func discoverFiles(ctx context.Context, opts DiscoveryOptions, batchSize int, out chan<- FileBatch, filesDiscovered *atomic.Int64) error {
	defer close(out)

	var pending []DiscoveredFile
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		batch := FileBatch{Files: pending}
		pending = nil
		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// dirsWithLibRs records every directory holding a lib.rs, so a sibling
	// main.rs in the same directory can be flagged: filepath.Walk visits a
	// directory's entries in lexical order, and "lib.rs" sorts before
	// "main.rs", so lib.rs is always recorded before its sibling main.rs is
	// reached.
	dirsWithLibRs := make(map[string]bool)

	cleanRoot := filepath.Clean(opts.RepositoryPath)
	err := filepath.Walk(cleanRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if defaultSkipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relPath, err := filepath.Rel(cleanRoot, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		lang, ok := extensionLanguage[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		if !shouldIncludeFile(relPath, info, opts) {
			return nil
		}

		dir := filepath.Dir(path)
		base := filepath.Base(path)
		if base == "lib.rs" {
			dirsWithLibRs[dir] = true
		}

		pending = append(pending, DiscoveredFile{
			AbsPath:        path,
			RelPath:        filepath.ToSlash(relPath),
			Language:       lang,
			SkipRootModule: base == "main.rs" && dirsWithLibRs[dir],
		})
		if filesDiscovered != nil {
			filesDiscovered.Add(1)
		}
		if len(pending) >= batchSize {
			if ferr := flush(); ferr != nil {
				return ferr
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pipeline: walking %s: %w", cleanRoot, err)
	}
	return flush()
}

// shouldIncludeFile applies exclude-then-include glob matching against
// both the file's basename and its path relative to the repository root.
func shouldIncludeFile(relPath string, info os.FileInfo, opts DiscoveryOptions) bool {
	if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
		return false
	}
	basename := filepath.Base(relPath)

	for _, pattern := range opts.ExcludePatterns {
		if matched, _ := filepath.Match(pattern, basename); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return false
		}
		if strings.Contains(pattern, "**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if strings.HasPrefix(relPath, prefix+string(filepath.Separator)) {
				return false
			}
		}
	}

	if len(opts.IncludePatterns) == 0 {
		return true
	}
	for _, pattern := range opts.IncludePatterns {
		if matched, _ := filepath.Match(pattern, basename); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
