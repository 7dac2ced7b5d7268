package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeweaver/codeweaver/internal/config"
)

func TestBuildDenseProvider_Mock(t *testing.T) {
	p, err := buildDenseProvider(config.ProviderEntry{Type: "mock", Settings: map[string]any{"dimension": 16}})
	require.NoError(t, err)
	assert.Equal(t, 16, p.Dimension())
}

func TestBuildDenseProvider_Local(t *testing.T) {
	p, err := buildDenseProvider(config.ProviderEntry{Type: "local", Settings: map[string]any{"model": "custom-model"}})
	require.NoError(t, err)
	assert.Equal(t, "custom-model", p.ModelName())
}

func TestBuildDenseProvider_EmptyTypeDefaultsLocal(t *testing.T) {
	p, err := buildDenseProvider(config.ProviderEntry{})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ModelName())
}

func TestBuildDenseProvider_UnsupportedType(t *testing.T) {
	_, err := buildDenseProvider(config.ProviderEntry{Type: "openai"})
	require.Error(t, err)
}

func TestBuildSparseProvider_Mock(t *testing.T) {
	p, err := buildSparseProvider(config.ProviderEntry{Type: "mock"})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestBuildSparseProvider_UnsupportedType(t *testing.T) {
	_, err := buildSparseProvider(config.ProviderEntry{Type: "splade"})
	require.Error(t, err)
}

func TestBuildReranker_Mock(t *testing.T) {
	r, err := buildReranker(config.ProviderEntry{Type: "mock"})
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestBuildReranker_UnsupportedType(t *testing.T) {
	_, err := buildReranker(config.ProviderEntry{Type: "cohere"})
	require.Error(t, err)
}

func TestBuildPrimaryStore_Chromem(t *testing.T) {
	dir := t.TempDir()
	store, err := buildPrimaryStore(nil, config.ProviderEntry{Type: "chromem", Settings: map[string]any{"path": dir + "/store.db"}})
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}

func TestBuildPrimaryStore_UnsupportedType(t *testing.T) {
	_, err := buildPrimaryStore(nil, config.ProviderEntry{Type: "pinecone"})
	require.Error(t, err)
}
