package tokenizer

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount_Monotone(t *testing.T) {
	c := New()
	a := "func main() {"
	b := "func main() {\n\tfmt.Println(\"hi\")\n}"
	require.True(t, strings.HasPrefix(b, a))
	assert.LessOrEqual(t, c.Count(a, FamilyHeuristic), c.Count(b, FamilyHeuristic))
}

func TestCount_Deterministic(t *testing.T) {
	c := New()
	text := "the quick brown fox jumps over the lazy dog"
	first := c.Count(text, FamilyCL100K)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Count(text, FamilyCL100K))
	}
}

func TestCount_Empty(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.Count("", FamilyCL100K))
}

func TestCount_UnknownFamilyFallsBackToHeuristic(t *testing.T) {
	c := New()
	got := c.Count("0123456789abcdef", ModelFamily("not-a-real-family"))
	assert.Equal(t, 4, got)
}

func TestCountBatch_SafeForConcurrentUse(t *testing.T) {
	c := New()
	texts := make([]string, 200)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counts := c.CountBatch(texts, FamilyCL100K)
			assert.Len(t, counts, len(texts))
		}()
	}
	wg.Wait()
}

func TestCountBatch_Empty(t *testing.T) {
	c := New()
	assert.Empty(t, c.CountBatch(nil, FamilyHeuristic))
}
