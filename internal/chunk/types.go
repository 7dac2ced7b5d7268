// Package chunk defines the chunk data model and the chunking
// strategies that produce it (spec.md §3, C4/C5/C6): a semantic
// chunker that walks the semparse.Node tree, a delimiter chunker that
// falls back to the delimiter catalog, and the selector that picks
// between them per file.
package chunk

import (
	"strings"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

// Source records which strategy produced a chunk, for observability
// and for the fallback-event log (spec.md C6).
type Source string

const (
	SourceSemantic  Source = "semantic"
	SourceDelimiter Source = "delimiter"
	SourceFallback  Source = "fallback"
	SourceEdgeCase  Source = "edge_case"
)

// Metadata carries the structural facts a chunk's originating node
// knew about, independent of chunk boundaries.
type Metadata struct {
	SymbolName     string             `json:"symbol_name,omitempty"`
	Classification string             `json:"classification,omitempty"`
	Importance     map[string]float64 `json:"importance,omitempty"`
	Evidence       string             `json:"evidence,omitempty"`
}

// Chunk is one unit of indexable content.
type Chunk struct {
	ChunkID     string   `json:"chunk_id"`
	Content     string   `json:"content"`
	FilePath    string   `json:"file_path"`
	Language    string   `json:"language"`
	StartLine   int      `json:"start_line"`
	EndLine     int      `json:"end_line"`
	Source      Source   `json:"source"`
	ContentHash string   `json:"content_hash"`
	TokenCount  int      `json:"token_count"`
	Metadata    Metadata `json:"metadata"`
}

// NewChunkID generates a time-ordered chunk identifier so chunks from
// the same indexing run sort together; grounded on the teacher's use
// of google/uuid for manifest entry IDs.
func NewChunkID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ContentHash hashes chunk content with BLAKE3, the algorithm spec.md
// §3 mandates for chunk and file content hashing. Content is trimmed
// of leading/trailing whitespace first (spec.md §3: "content_hash
// equals Blake3 of content.strip()"), matching
// internal/discovery.HashContent's normalization so two chunks
// differing only in surrounding whitespace dedup together.
func ContentHash(content string) string {
	sum := blake3.Sum256([]byte(strings.TrimSpace(content)))
	return hexEncode(sum[:])
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
