package pipeline

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fyrsmithlabs/codeindexd/internal/extractor"
	"github.com/fyrsmithlabs/codeindexd/internal/logging"
	"github.com/fyrsmithlabs/codeindexd/internal/resolver"
	"github.com/fyrsmithlabs/codeindexd/internal/secrets"
	"go.uber.org/zap"
)

// extractStage is the extraction stage: parses each discovered file with bounded
// concurrency, buffers extracted entities grouped by file, and flushes
// EntityBatch values of at most entitiesPerBatch total entities. A file
// that fails to parse contributes zero entities and bumps failedFiles,
// never aborting the run. When scrub is non-nil and enabled, every
// entity's content is scrubbed for secrets before it is buffered, so a
// credential checked into the repository never reaches the embedding stage's
// calls or the entities table.
func extractStage(ctx context.Context, in <-chan FileBatch, out chan<- EntityBatch, repositoryID string, entitiesPerBatch, maxConcurrency int, failedFiles, entitiesExtracted *atomic.Int64, scrub secrets.Scrubber, logger *logging.Logger) error {
	defer close(out)

	sem := make(chan struct{}, maxConcurrency)
	var buffer []fileEntities
	var bufferedCount int

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		batch := EntityBatch{Files: buffer}
		buffer = nil
		bufferedCount = 0
		select {
		case out <- batch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for fb := range in {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		type result struct {
			file     DiscoveredFile
			entities []extractor.Entity
			err      error
		}
		results := make([]result, len(fb.Files))

		var wg sync.WaitGroup
		for i, f := range fb.Files {
			i, f := i, f
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				content, err := os.ReadFile(f.AbsPath)
				if err != nil {
					results[i] = result{file: f, err: err}
					return
				}
				entities, err := extractor.Extract(ctx, extractor.FileInput{
					Content:        content,
					FilePath:       f.RelPath,
					Language:       resolver.Language(f.Language),
					Package:        f.Package,
					RepositoryID:   repositoryID,
					SkipRootModule: f.SkipRootModule,
				})
				results[i] = result{file: f, entities: entities, err: err}
			}()
		}
		wg.Wait()

		for _, r := range results {
			if r.err != nil {
				failedFiles.Add(1)
				if logger != nil {
					logger.Warn(ctx, "extraction failed", zap.String("file", r.file.RelPath), zap.Error(r.err))
				}
				continue
			}
			if scrub != nil && scrub.IsEnabled() {
				for i := range r.entities {
					r.entities[i].Content = scrub.Scrub(r.entities[i].Content).Scrubbed
				}
			}
			buffer = append(buffer, fileEntities{FilePath: r.file.RelPath, Entities: r.entities})
			bufferedCount += len(r.entities)
			if entitiesExtracted != nil {
				entitiesExtracted.Add(int64(len(r.entities)))
			}
			if bufferedCount >= entitiesPerBatch {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}

	return flush()
}
