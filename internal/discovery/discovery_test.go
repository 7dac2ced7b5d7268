package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestDiscovery_WalkSkipsIgnoredAndBinary(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "vendor/lib.go", "package lib\n")
	writeFile(t, dir, "assets/logo.png", "not really png bytes")

	d, err := New(dir, []string{"vendor/**"}, 0)
	require.NoError(t, err)

	files, err := d.Walk()
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "main.go")
	assert.NotContains(t, paths, "vendor/lib.go")
	assert.NotContains(t, paths, "assets/logo.png")
}

func TestDiscovery_WalkRespectsMaxFileSize(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, 100)
	for i := range big {
		big[i] = 'x'
	}
	writeFile(t, dir, "big.txt", string(big))

	d, err := New(dir, nil, 10)
	require.NoError(t, err)
	files, err := d.Walk()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestHashContent_StripsWhitespaceBeforeHashing(t *testing.T) {
	a := HashContent([]byte("hello world"))
	b := HashContent([]byte("  hello world  \n"))
	assert.Equal(t, a, b)
}

func TestDiffAgainst_Categorizes(t *testing.T) {
	known := map[string]string{
		"unchanged.go": "hash-a",
		"modified.go":  "hash-old",
		"removed.go":   "hash-gone",
	}
	discovered := []DiscoveredFile{
		{Path: "unchanged.go", ContentHash: "hash-a"},
		{Path: "modified.go", ContentHash: "hash-new"},
		{Path: "added.go", ContentHash: "hash-added"},
	}

	diff := DiffAgainst(discovered, known)
	require.Len(t, diff.Unchanged, 1)
	require.Len(t, diff.Modified, 1)
	require.Len(t, diff.Added, 1)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, "removed.go", diff.Removed[0])
}

func TestManifest_LoadMissingReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	assert.Equal(t, ManifestSchemaVersion, m.Version)
	assert.Empty(t, m.Files)
}

func TestManifest_SaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m, err := Load(path)
	require.NoError(t, err)
	m.Upsert(FileEntry{
		Path:           "a.go",
		ContentHash:    "abc123",
		ChunkIDs:       []string{"chunk-1"},
		EmbeddingState: EmbeddingState{Dense: true},
	})
	require.NoError(t, m.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	entry, ok := reloaded.Get("a.go")
	require.True(t, ok)
	assert.Equal(t, "abc123", entry.ContentHash)
	assert.True(t, entry.EmbeddingState.Dense)
	assert.False(t, entry.EmbeddingState.Sparse)
}

func TestManifest_PartitionByEmbeddingState(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	m.Upsert(FileEntry{Path: "both-missing.go"})
	m.Upsert(FileEntry{Path: "dense-only.go", EmbeddingState: EmbeddingState{Sparse: true, SparseModel: "sparse-v1"}})
	m.Upsert(FileEntry{Path: "sparse-only.go", EmbeddingState: EmbeddingState{Dense: true, DenseModel: "dense-v1"}})
	m.Upsert(FileEntry{Path: "complete.go", EmbeddingState: EmbeddingState{Dense: true, DenseModel: "dense-v1", Sparse: true, SparseModel: "sparse-v1"}})
	m.Upsert(FileEntry{Path: "stale-model.go", EmbeddingState: EmbeddingState{Dense: true, DenseModel: "old-model", Sparse: true, SparseModel: "sparse-v1"}})

	p := m.PartitionByEmbeddingState("dense-v1", "sparse-v1")
	assert.Contains(t, p.BothMissing, "both-missing.go")
	assert.Contains(t, p.DenseOnlyMissing, "dense-only.go")
	assert.Contains(t, p.SparseOnlyMissing, "sparse-only.go")
	assert.Contains(t, p.Complete, "complete.go")
	assert.Contains(t, p.DenseOnlyMissing, "stale-model.go", "a recorded model name that no longer matches the current one counts as missing")
}

func TestManifest_Remove(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	m.Upsert(FileEntry{Path: "gone.go"})
	m.Remove("gone.go")
	_, ok := m.Get("gone.go")
	assert.False(t, ok)
}
