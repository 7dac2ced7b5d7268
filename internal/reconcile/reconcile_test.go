package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeweaver/codeweaver/internal/chunk"
	"github.com/codeweaver/codeweaver/internal/discovery"
	"github.com/codeweaver/codeweaver/internal/embedprovider"
	"github.com/codeweaver/codeweaver/internal/pipeline"
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

func newTestDeps(t *testing.T, root string) (Deps, *discovery.Manifest, *vectorstore.ChromemStore) {
	t.Helper()
	manifest, err := discovery.Load(filepath.Join(root, ".codeweaver", "manifest.json"))
	require.NoError(t, err)

	store, err := vectorstore.NewChromemStore("")
	require.NoError(t, err)

	dedup, err := pipeline.NewDedupStore(0)
	require.NoError(t, err)

	return Deps{
		Root:        root,
		Manifest:    manifest,
		Store:       store,
		Selector:    newTestSelector(200),
		RetryPolicy: embedprovider.RetryPolicy{MaxAttempts: 1},
		Dedup:       dedup,
	}, manifest, store
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRun_NoOpWhenForceReindex(t *testing.T) {
	root := t.TempDir()
	deps, manifest, _ := newTestDeps(t, root)
	deps.Dense = embedprovider.NewMockDenseProvider(8)
	manifest.Upsert(discovery.FileEntry{Path: "a.go"})

	summary, err := Run(context.Background(), deps, Options{ForceReindex: true})
	require.NoError(t, err)
	assert.Zero(t, summary.FilesConsidered)
}

func TestRun_NoOpWhenNoVectorStore(t *testing.T) {
	root := t.TempDir()
	deps, manifest, _ := newTestDeps(t, root)
	deps.Store = nil
	deps.Dense = embedprovider.NewMockDenseProvider(8)
	manifest.Upsert(discovery.FileEntry{Path: "a.go"})

	summary, err := Run(context.Background(), deps, Options{})
	require.NoError(t, err)
	assert.Zero(t, summary.FilesConsidered)
}

func TestRun_NoOpWhenNoProviders(t *testing.T) {
	root := t.TempDir()
	deps, manifest, _ := newTestDeps(t, root)
	manifest.Upsert(discovery.FileEntry{Path: "a.go"})

	summary, err := Run(context.Background(), deps, Options{})
	require.NoError(t, err)
	assert.Zero(t, summary.FilesConsidered)
}

func TestRun_NoOpWhenManifestComplete(t *testing.T) {
	root := t.TempDir()
	deps, manifest, _ := newTestDeps(t, root)
	dense := embedprovider.NewMockDenseProvider(8)
	deps.Dense = dense
	manifest.Upsert(discovery.FileEntry{
		Path:           "a.go",
		EmbeddingState: discovery.EmbeddingState{Dense: true, DenseModel: dense.ModelName()},
	})

	summary, err := Run(context.Background(), deps, Options{})
	require.NoError(t, err)
	assert.Zero(t, summary.FilesConsidered)
}

func TestRun_FillsMissingSparseWithoutTouchingDense(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")

	deps, manifest, store := newTestDeps(t, root)
	dense := embedprovider.NewMockDenseProvider(8)
	sparse := embedprovider.NewMockSparseProvider()
	deps.Dense = dense
	deps.Sparse = sparse

	manifest.Upsert(discovery.FileEntry{
		Path:           "a.go",
		EmbeddingState: discovery.EmbeddingState{Dense: true, DenseModel: dense.ModelName()},
	})

	keyword, err := query.NewKeywordIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = keyword.Close() })
	deps.Keyword = keyword

	summary, err := Run(context.Background(), deps, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesConsidered)
	assert.Equal(t, 1, summary.FilesReconciled)
	assert.Equal(t, 1, summary.SparseFilled)
	assert.Zero(t, summary.DenseFilled, "dense was already complete and should not be recounted as newly filled")

	entry, ok := manifest.Get("a.go")
	require.True(t, ok)
	assert.True(t, entry.EmbeddingState.Dense)
	assert.True(t, entry.EmbeddingState.Sparse)
	assert.Equal(t, sparse.ModelName(), entry.EmbeddingState.SparseModel)
	assert.Greater(t, store.Count(), 0)

	hits, err := keyword.Search(context.Background(), "Add", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits, "reconcile should index the chunk into the keyword index alongside the vector store")
}

func TestRun_DetectsStaleModelName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package demo\n\nfunc Add(a, b int) int {\n\treturn a + b\n}\n")

	deps, manifest, _ := newTestDeps(t, root)
	dense := embedprovider.NewMockDenseProvider(8)
	deps.Dense = dense

	manifest.Upsert(discovery.FileEntry{
		Path:           "a.go",
		EmbeddingState: discovery.EmbeddingState{Dense: true, DenseModel: "old-dense-model"},
	})

	summary, err := Run(context.Background(), deps, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FilesReconciled)
	assert.Equal(t, 1, summary.DenseFilled)

	entry, ok := manifest.Get("a.go")
	require.True(t, ok)
	assert.Equal(t, dense.ModelName(), entry.EmbeddingState.DenseModel)
}
