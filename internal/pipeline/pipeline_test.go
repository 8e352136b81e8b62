package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriver_Run_EndToEnd(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "widget.py", "def widget():\n    pass\n\n\ndef gadget():\n    pass\n")

	store := newFakeStore()
	dense := &fakeDenseProvider{}

	driver := &Driver{
		Config: Config{PipelineChannelCapacity: 2, EntitiesPerEmbeddingBatch: 10},
		Store:  store,
		Embed:  EmbedDeps{Dense: dense, Sparse: fakeSparseProvider{}, Store: store, ModelVersion: "v1"},
	}

	stats, err := driver.Run(context.Background(), "collection-1", "widget-repo", DiscoveryOptions{RepositoryPath: root})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesDiscovered)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.True(t, stats.EntitiesExtracted >= 1)
	assert.Equal(t, stats.EntitiesExtracted, stats.EntitiesStored)
	assert.Len(t, store.storedEntities, stats.EntitiesStored)

	// a non-git temp dir: commit hash is simply empty, not an error.
	assert.Equal(t, "", store.lastIndexedCommit)
}

func TestDriver_Run_PropagatesStageError(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")
	require.NoError(t, os.RemoveAll(root))

	store := newFakeStore()
	driver := &Driver{
		Store: store,
		Embed: EmbedDeps{Dense: &fakeDenseProvider{}, Sparse: fakeSparseProvider{}, Store: store, ModelVersion: "v1"},
	}

	_, err := driver.Run(context.Background(), "collection-1", "missing-repo", DiscoveryOptions{RepositoryPath: root})
	assert.Error(t, err)
}
