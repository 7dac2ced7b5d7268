package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeweaver/codeweaver/internal/chunk"
	"github.com/codeweaver/codeweaver/internal/discovery"
	"github.com/codeweaver/codeweaver/internal/embedprovider"
	"github.com/codeweaver/codeweaver/internal/query"
	"github.com/codeweaver/codeweaver/internal/semparse"
	"github.com/codeweaver/codeweaver/internal/tokenizer"
	"github.com/codeweaver/codeweaver/internal/vectorstore"
)

func newTestSelector(chunkLimit int) *chunk.Selector {
	counter := tokenizer.New()
	family := tokenizer.FamilyHeuristic
	parser := semparse.NewParser()
	delim := chunk.NewDelimiterChunker(counter, family, chunkLimit, 10)
	sem := chunk.NewSemanticChunker(parser, delim, counter, family, chunkLimit, 10)
	return chunk.NewSelector(parser, sem, delim)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestPipeline(t *testing.T, root string) (*Pipeline, *vectorstore.ChromemStore) {
	t.Helper()
	disc, err := discovery.New(root, nil, 0)
	require.NoError(t, err)

	manifest, err := discovery.Load(filepath.Join(root, ".codeweaver", "manifest.json"))
	require.NoError(t, err)

	store, err := vectorstore.NewChromemStore("")
	require.NoError(t, err)

	dedup, err := NewDedupStore(0)
	require.NoError(t, err)

	keyword, err := query.NewKeywordIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = keyword.Close() })

	return &Pipeline{
		Discovery: disc,
		Selector:  newTestSelector(200),
		Manifest:  manifest,
		Dense:     embedprovider.NewMockDenseProvider(8),
		Sparse:    embedprovider.NewMockSparseProvider(),
		Store:     store,
		Keyword:   keyword,
		Dedup:     dedup,
		Stats:     NewStats(time.Now()),
		Config:    Config{RetryPolicy: embedprovider.RetryPolicy{MaxAttempts: 1}},
	}, store
}

func TestPipeline_Run_IndexesNewFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")
	writeFile(t, root, "b.go", "package demo\n\nfunc Sub(a, b int) int {\n\treturn a - b\n}\n")

	p, store := newTestPipeline(t, root)
	require.NoError(t, p.Run(context.Background()))

	snap := p.Stats.Snapshot(time.Now())
	assert.EqualValues(t, 2, snap.FilesDiscovered)
	assert.EqualValues(t, 2, snap.FilesProcessed)
	assert.Greater(t, snap.ChunksIndexed, int64(0))
	assert.Greater(t, store.Count(), 0)

	entryA, ok := p.Manifest.Get("a.go")
	require.True(t, ok)
	assert.True(t, entryA.EmbeddingState.Dense)
	assert.Equal(t, "mock-dense", entryA.EmbeddingState.DenseModel)
	assert.True(t, entryA.EmbeddingState.Sparse)
	assert.Equal(t, "mock-sparse", entryA.EmbeddingState.SparseModel)
	assert.NotEmpty(t, entryA.ChunkIDs)
}

func TestPipeline_Run_SkipsUnchangedOnSecondRun(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")

	p, _ := newTestPipeline(t, root)
	require.NoError(t, p.Run(context.Background()))

	p.Stats = NewStats(time.Now())
	require.NoError(t, p.Run(context.Background()))

	snap := p.Stats.Snapshot(time.Now())
	assert.EqualValues(t, 0, snap.FilesProcessed, "second run over an unchanged tree should process nothing")
}

func TestPipeline_Run_DeletesRemovedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")

	p, store := newTestPipeline(t, root)
	require.NoError(t, p.Run(context.Background()))
	require.Greater(t, store.Count(), 0)

	hits, err := p.Keyword.Search(context.Background(), "Add", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits, "keyword index should have been populated during the run")

	require.NoError(t, os.Remove(filepath.Join(root, "a.go")))
	p.Stats = NewStats(time.Now())
	require.NoError(t, p.Run(context.Background()))

	_, ok := p.Manifest.Get("a.go")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Count())

	hits, err = p.Keyword.Search(context.Background(), "Add", 5)
	require.NoError(t, err)
	assert.Empty(t, hits, "keyword index should be cleared along with the vector store")
}

func TestPipeline_Run_DegradesWhenDenseProviderFails(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")

	p, _ := newTestPipeline(t, root)
	failing := embedprovider.NewMockDenseProvider(8)
	failing.SetEmbedError(assert.AnError)
	p.Dense = failing

	require.NoError(t, p.Run(context.Background()))

	entry, ok := p.Manifest.Get("a.go")
	require.True(t, ok)
	assert.False(t, entry.EmbeddingState.Dense)
	assert.True(t, entry.EmbeddingState.Sparse)
}

func TestPipeline_Run_DedupesDuplicateContentAcrossFiles(t *testing.T) {
	root := t.TempDir()
	body := "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n"
	writeFile(t, root, "a.go", body)
	writeFile(t, root, "b.go", body)

	p, store := newTestPipeline(t, root)
	require.NoError(t, p.Run(context.Background()))

	entryA, _ := p.Manifest.Get("a.go")
	entryB, _ := p.Manifest.Get("b.go")
	require.NotEmpty(t, entryA.ChunkIDs)
	require.NotEmpty(t, entryB.ChunkIDs)
	assert.Equal(t, entryA.ChunkIDs, entryB.ChunkIDs, "identical file content should dedup to the same canonical chunk ids")
	assert.Equal(t, len(entryA.ChunkIDs), store.Count(), "the duplicate's chunks must not be upserted a second time")
}

func TestPipeline_Run_CheckpointSkipsProcessedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")

	p, _ := newTestPipeline(t, root)
	cpPath := filepath.Join(root, ".codeweaver", "checkpoint.json")
	cp, err := LoadCheckpoint(cpPath, "project-hash")
	require.NoError(t, err)
	cp.ProcessedFiles = []string{"a.go"}
	p.Checkpoint = cp

	require.NoError(t, p.Run(context.Background()))

	snap := p.Stats.Snapshot(time.Now())
	assert.EqualValues(t, 0, snap.FilesProcessed, "a file already in the checkpoint's processed list should be skipped")
}

func TestDedupStore_RecordFirstWins(t *testing.T) {
	d, err := NewDedupStore(0)
	require.NoError(t, err)

	id, isNew := d.Record("hash1", "chunk-a")
	assert.True(t, isNew)
	assert.Equal(t, "chunk-a", id)

	id, isNew = d.Record("hash1", "chunk-b")
	assert.False(t, isNew)
	assert.Equal(t, "chunk-a", id, "the first chunk_id seen for a content hash stays canonical")
}

func TestCheckpoint_ShouldSkip(t *testing.T) {
	dir := t.TempDir()
	cp, err := LoadCheckpoint(filepath.Join(dir, "checkpoint.json"), "hash")
	require.NoError(t, err)
	assert.False(t, cp.ShouldSkip("a.go"))

	require.NoError(t, cp.MarkProcessed("a.go", PhaseManifest))
	assert.True(t, cp.ShouldSkip("a.go"))

	reloaded, err := LoadCheckpoint(filepath.Join(dir, "checkpoint.json"), "hash")
	require.NoError(t, err)
	assert.True(t, reloaded.ShouldSkip("a.go"))
}

func TestCheckpoint_DifferentProjectHashIgnoresStaleCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cp, err := LoadCheckpoint(filepath.Join(dir, "checkpoint.json"), "hash-1")
	require.NoError(t, err)
	require.NoError(t, cp.MarkProcessed("a.go", PhaseManifest))

	reloaded, err := LoadCheckpoint(filepath.Join(dir, "checkpoint.json"), "hash-2")
	require.NoError(t, err)
	assert.False(t, reloaded.ShouldSkip("a.go"))
}

func TestStats_SnapshotComputesProcessingRate(t *testing.T) {
	start := time.Now().Add(-10 * time.Second)
	s := NewStats(start)
	s.AddFilesProcessed(20)

	snap := s.Snapshot(start.Add(10 * time.Second))
	assert.InDelta(t, 2.0, snap.ProcessingRate, 0.01)
}

func TestGovernanceError_Error(t *testing.T) {
	err := &GovernanceError{Kind: GovernanceChunkLimitExceeded, FilePath: "big.go", Detail: "too many chunks"}
	assert.Contains(t, err.Error(), "big.go")
	assert.Contains(t, err.Error(), "chunk_limit_exceeded")
}

func TestPipeline_IndexingState_ReportsProgress(t *testing.T) {
	p := &Pipeline{}
	p.setState(RunNotStarted)
	state, coverage := p.IndexingState()
	assert.Equal(t, RunNotStarted, state)
	assert.Zero(t, coverage)

	p.setState(RunInProgress)
	p.setProgress(4, 2)
	state, coverage = p.IndexingState()
	assert.Equal(t, RunInProgress, state)
	assert.Equal(t, 0.5, coverage)
}
