package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeweaver/codeweaver/internal/query"
)

func TestParseFindCodeArgs_RequiresQuery(t *testing.T) {
	_, err := parseFindCodeArgs(map[string]interface{}{})
	require.Error(t, err)

	_, err = parseFindCodeArgs(map[string]interface{}{"query": ""})
	require.Error(t, err)
}

func TestParseFindCodeArgs_Defaults(t *testing.T) {
	req, err := parseFindCodeArgs(map[string]interface{}{"query": "widget constructor"})
	require.NoError(t, err)
	assert.Equal(t, "widget constructor", req.Query)
	assert.True(t, req.IncludeTests, "include_tests defaults true per find_code's spec")
	assert.Nil(t, req.Intent)
	assert.Zero(t, req.TokenLimit)
	assert.Zero(t, req.MaxResults)
}

func TestParseFindCodeArgs_FullSet(t *testing.T) {
	argsMap := map[string]interface{}{
		"query":           "why does this panic",
		"intent":          "debugging",
		"token_limit":     float64(4000),
		"include_tests":   false,
		"focus_languages": []interface{}{"go", "php"},
		"max_results":     float64(5),
	}
	req, err := parseFindCodeArgs(argsMap)
	require.NoError(t, err)
	assert.Equal(t, "why does this panic", req.Query)
	require.NotNil(t, req.Intent)
	assert.Equal(t, query.Intent("debugging"), *req.Intent)
	assert.Equal(t, 4000, req.TokenLimit)
	assert.False(t, req.IncludeTests)
	assert.Equal(t, []string{"go", "php"}, req.FocusLanguages)
	assert.Equal(t, 5, req.MaxResults)
}

func TestParseFindCodeArgs_IgnoresWrongTypedFields(t *testing.T) {
	argsMap := map[string]interface{}{
		"query":           "search term",
		"token_limit":     "not a number",
		"max_results":     "also not a number",
		"focus_languages": "not a list",
	}
	req, err := parseFindCodeArgs(argsMap)
	require.NoError(t, err)
	assert.Zero(t, req.TokenLimit)
	assert.Zero(t, req.MaxResults)
	assert.Empty(t, req.FocusLanguages)
}

func TestToStringSlice(t *testing.T) {
	out := toStringSlice([]interface{}{"a", "b", 3, "c"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestToStringSlice_Empty(t *testing.T) {
	assert.Empty(t, toStringSlice(nil))
}

func TestJSONResult_MarshalsValue(t *testing.T) {
	result, err := jsonResult(map[string]any{"status": "accepted"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
}
