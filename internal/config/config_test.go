package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProject(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

func TestDefault_PassesValidationWithAProjectPath(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = validProject(t)

	assert.NotEmpty(t, cfg.Provider.Embedding)
	assert.NotEmpty(t, cfg.Provider.VectorStore)
	assert.Equal(t, 8000, cfg.Project.TokenLimit)
	assert.Equal(t, int64(10*1024*1024), cfg.Project.MaxFileSize)
	assert.Equal(t, 15, cfg.Project.MaxResults)
	assert.NotEmpty(t, cfg.Project.Ignore)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	root := validProject(t)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Project.Path)
	assert.Equal(t, Default().Project.TokenLimit, cfg.Project.TokenLimit)
	assert.Equal(t, Default().Chunker.MaxChunksPerFile, cfg.Chunker.MaxChunksPerFile)
	entry, ok := FirstEnabled(cfg.Provider.Embedding)
	require.True(t, ok)
	assert.Equal(t, "local", entry.Type)
}

func TestLoad_LoadsFromConfigYml(t *testing.T) {
	root := validProject(t)
	dir := filepath.Join(root, ".codeweaver")
	require.NoError(t, os.MkdirAll(dir, 0755))

	configContent := `
project:
  name: acme-service
  token_limit: 4000
  max_results: 25

provider:
  embedding:
    - type: openai
      name: primary
      enabled: true
      settings:
        model: text-embedding-3-small
        api_key: sk-test
  vector_store:
    - type: qdrant
      name: primary
      enabled: true
      settings:
        host: localhost
        port: 6334

chunker:
  importance_threshold: 0.5
  max_chunks_per_file: 2000

watcher:
  enabled: false
  debounce_ms: 1000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(configContent), 0644))

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, "acme-service", cfg.Project.Name)
	assert.Equal(t, 4000, cfg.Project.TokenLimit)
	assert.Equal(t, 25, cfg.Project.MaxResults)

	entry, ok := FirstEnabled(cfg.Provider.Embedding)
	require.True(t, ok)
	assert.Equal(t, "openai", entry.Type)
	assert.Equal(t, "text-embedding-3-small", entry.Settings["model"])

	storeEntry, ok := FirstEnabled(cfg.Provider.VectorStore)
	require.True(t, ok)
	assert.Equal(t, "qdrant", storeEntry.Type)
	assert.Equal(t, "localhost", storeEntry.Settings["host"])

	assert.Equal(t, 0.5, cfg.Chunker.ImportanceThreshold)
	assert.Equal(t, 2000, cfg.Chunker.MaxChunksPerFile)
	assert.False(t, cfg.Watcher.Enabled)
	assert.Equal(t, 1000, cfg.Watcher.DebounceMs)
}

func TestLoad_EnvironmentOverridesConfigFile(t *testing.T) {
	root := validProject(t)
	dir := filepath.Join(root, ".codeweaver")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("project:\n  token_limit: 4000\n"), 0644))

	t.Setenv("CODEWEAVER_PROJECT_TOKEN_LIMIT", "9999")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Project.TokenLimit)
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	root := validProject(t)
	dir := filepath.Join(root, ".codeweaver")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("project: [this is not valid: yaml"), 0644))

	_, err := NewLoader(root).Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidConfiguration(t *testing.T) {
	root := validProject(t)
	dir := filepath.Join(root, ".codeweaver")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("project:\n  token_limit: -1\n"), 0644))

	_, err := NewLoader(root).Load()
	assert.ErrorIs(t, err, ErrInvalidTokenLimit)
}

func TestValidate_RejectsMissingProjectPath(t *testing.T) {
	cfg := Default()
	err := Validate(cfg)
	assert.ErrorIs(t, err, ErrMissingProjectPath)
}

func TestValidate_RejectsNonexistentProjectPath(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = filepath.Join(validProject(t), "does-not-exist")
	assert.ErrorIs(t, Validate(cfg), ErrProjectPathNotFound)
}

func TestValidate_RejectsNoEnabledEmbeddingProvider(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = validProject(t)
	cfg.Provider.Embedding = nil

	assert.ErrorIs(t, Validate(cfg), ErrNoEnabledProvider)
}

func TestValidate_RejectsNoEnabledVectorStore(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = validProject(t)
	for i := range cfg.Provider.VectorStore {
		cfg.Provider.VectorStore[i].Enabled = false
	}

	assert.ErrorIs(t, Validate(cfg), ErrNoEnabledProvider)
}

func TestValidate_AllowsNoSparseOrRerankingProvider(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = validProject(t)
	cfg.Provider.SparseEmbedding = nil
	cfg.Provider.Reranking = nil

	assert.NoError(t, Validate(cfg))
}

func TestValidate_RejectsOutOfRangeImportanceThreshold(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = validProject(t)
	cfg.Chunker.ImportanceThreshold = 1.5

	assert.ErrorIs(t, Validate(cfg), ErrInvalidImportanceThreshold)
}

func TestValidate_RejectsZeroChunkLimits(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = validProject(t)
	cfg.Chunker.MaxChunksPerFile = 0
	cfg.Chunker.ChunkTimeoutSeconds = 0

	err := Validate(cfg)
	assert.ErrorIs(t, err, ErrInvalidChunkLimit)
	assert.ErrorIs(t, err, ErrInvalidChunkTimeout)
}

func TestValidate_RejectsIncompleteFailoverSettingsWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = validProject(t)
	cfg.Failover.Enabled = true
	cfg.Failover.BackupFilePath = ""

	assert.ErrorIs(t, Validate(cfg), ErrInvalidFailoverSettings)
}

func TestValidate_IgnoresFailoverSettingsWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Project.Path = validProject(t)
	cfg.Failover.Enabled = false
	cfg.Failover.BackupFilePath = ""
	cfg.Failover.FailureThreshold = 0

	assert.NoError(t, Validate(cfg))
}

func TestValidate_RejectsMultipleErrorsJoined(t *testing.T) {
	cfg := Default()
	cfg.Project.TokenLimit = -1
	cfg.Project.MaxResults = -1

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingProjectPath)
	assert.ErrorIs(t, err, ErrInvalidTokenLimit)
	assert.ErrorIs(t, err, ErrInvalidMaxResults)
}

func TestFirstEnabled_SkipsDisabledEntries(t *testing.T) {
	entries := []ProviderEntry{
		{Type: "a", Enabled: false},
		{Type: "b", Enabled: true},
		{Type: "c", Enabled: true},
	}

	entry, ok := FirstEnabled(entries)
	require.True(t, ok)
	assert.Equal(t, "b", entry.Type)
}

func TestFirstEnabled_NoneEnabled(t *testing.T) {
	_, ok := FirstEnabled([]ProviderEntry{{Type: "a", Enabled: false}})
	assert.False(t, ok)
}
