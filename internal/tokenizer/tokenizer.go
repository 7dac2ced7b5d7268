// Package tokenizer counts tokens for a given model family. It is the size
// budget every chunker in CodeWeaver enforces against chunk_limit.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ModelFamily identifies a tokenizer encoding scheme.
type ModelFamily string

const (
	// FamilyCL100K covers GPT-4/3.5-turbo class models.
	FamilyCL100K ModelFamily = "cl100k_base"
	// FamilyO200K covers GPT-4o class models.
	FamilyO200K ModelFamily = "o200k_base"
	// FamilyHeuristic is used for unknown families; falls back to a
	// deterministic character-based approximation rather than failing.
	FamilyHeuristic ModelFamily = "heuristic"
)

// Counter counts tokens. Implementations must be deterministic and
// monotone: for texts a, b with a a prefix of b, Count(a) <= Count(b).
// Implementations must be safe for concurrent use.
type Counter interface {
	Count(text string, family ModelFamily) int
	CountBatch(texts []string, family ModelFamily) []int
}

// encodingCache is process-wide immutable-after-first-use state, per
// the module-level state rules: the tokenizer is the one permitted
// global beyond statistics and dedup stores.
type encodingCache struct {
	mu    sync.Mutex
	byFam map[ModelFamily]*tiktoken.Tiktoken
}

var globalCache = &encodingCache{byFam: make(map[ModelFamily]*tiktoken.Tiktoken)}

func (c *encodingCache) get(family ModelFamily) (*tiktoken.Tiktoken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.byFam[family]; ok {
		return enc, enc != nil
	}

	enc, err := tiktoken.GetEncoding(string(family))
	if err != nil {
		c.byFam[family] = nil
		return nil, false
	}
	c.byFam[family] = enc
	return enc, true
}

// tiktokenCounter is the default Counter, backed by real BPE encodings
// for known families and a deterministic char/4 heuristic otherwise.
// The heuristic mirrors the teacher's documentation chunker estimate
// (internal/indexer/chunker.go, estimateTokens) so callers see
// consistent behavior whether or not a BPE table is available.
type tiktokenCounter struct{}

// New returns the default Counter implementation.
func New() Counter {
	return tiktokenCounter{}
}

func (tiktokenCounter) Count(text string, family ModelFamily) int {
	if text == "" {
		return 0
	}

	if family != FamilyHeuristic {
		if enc, ok := globalCache.get(family); ok {
			return len(enc.Encode(text, nil, nil))
		}
	}

	return heuristicCount(text)
}

func (c tiktokenCounter) CountBatch(texts []string, family ModelFamily) []int {
	// texts must be a concrete sequence, not a lazy iterator: accepting a
	// slice here (rather than a channel or iterator) is what makes this
	// safe to call concurrently from multiple chunking workers.
	out := make([]int, len(texts))
	for i, t := range texts {
		out[i] = c.Count(t, family)
	}
	return out
}

// heuristicCount approximates token count at ~4 characters per token.
// Monotone and deterministic by construction.
func heuristicCount(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
