package pipeline

import "github.com/fyrsmithlabs/codeindexd/internal/extractor"

// FileBatch is the discovery stage's output: a bounded group of discovered file paths still
// to be extracted.
type FileBatch struct {
	Files []DiscoveredFile
}

// DiscoveredFile is one file the discovery stage decided belongs in this indexing run.
type DiscoveredFile struct {
	AbsPath  string
	RelPath  string
	Language string
	Package  string

	// SkipRootModule is set when this file is a Rust crate entry point
	// (main.rs) whose directory also contains a lib.rs, so lib.rs already
	// owns the crate-root module's qualified name. Without it, a crate
	// with both files would extract two Module entities sharing the same
	// qualified_name.
	SkipRootModule bool
}

// fileEntities groups the entities extracted from one file, which is what
// the snapshot stage needs to diff against that file's previous snapshot.
type fileEntities struct {
	FilePath string
	Entities []extractor.Entity
}

// EntityBatch is the extraction stage's output: entities grouped by source file, bounded to
// Config.EntitiesPerEmbeddingBatch total entities.
type EntityBatch struct {
	Files []fileEntities
}

// embeddedEntity pairs an extracted entity with the embedding_id the cache
// or a fresh provider call assigned it.
type embeddedEntity struct {
	Entity      extractor.Entity
	EmbeddingID int64
	PointID     string
	ContentHash string
	TokenCount  int
}

// EmbeddedBatch is the embedding stage's output, still grouped by file.
type EmbeddedBatch struct {
	Files []embeddedFile
}

type embeddedFile struct {
	FilePath string
	Entities []embeddedEntity
}

// StoredBatch is the storage stage's output: for each file, the entity ids now persisted,
// which is all the snapshot stage needs to reconcile that file's snapshot.
type StoredBatch struct {
	Files []storedFile
}

type storedFile struct {
	FilePath  string
	EntityIDs []string
}

// RunStats accumulates counters across a full pipeline run for the
// driver's final report.
type RunStats struct {
	FilesDiscovered   int
	FilesFailed       int
	EntitiesExtracted int
	EntitiesStored    int
	EntitiesDeleted   int
	EmbeddingsCached  int
	EmbeddingsFresh   int
}
