// Package embedprovider defines the dense/sparse embedding and
// reranking provider interfaces CodeWeaver's Indexing and Query
// pipelines call out to. Grounded on the teacher's internal/embed
// package (Provider, EmbedWithProgress, BatchProgress), generalized
// from a single dense-only Provider into the dense+sparse+reranker
// trio spec.md §4.8/§4.10 requires, with a transient/permanent error
// distinction the teacher's Provider does not need (it has no
// failover to route around).
package embedprovider

import "context"

// Mode mirrors the teacher's EmbedMode: embeddings for a query differ
// from embeddings for a stored passage under most dense models.
type Mode string

const (
	ModeQuery   Mode = "query"
	ModePassage Mode = "passage"
)

// TransientError wraps a provider failure the pipeline should retry
// with jittered exponential backoff (spec.md C8 Stage 4).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "embedprovider: transient error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a provider failure that retrying will not fix;
// the pipeline marks the batch dense-failed/sparse-failed and moves
// on rather than aborting.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "embedprovider: permanent error: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// DenseProvider embeds text into fixed-dimension dense vectors.
type DenseProvider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQueries(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
	Dimension() int
	MaxBatchSize() int
	MaxTokensPerInput() int
	Close() error
}

// SparseVector is a sparse bag-of-weights embedding keyed by term
// index, the shape bleve/BM25-style sparse providers and qdrant's
// sparse vector field both expect.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SparseProvider embeds text into sparse vectors (spec.md §4.10
// hybrid search's sparse leg).
type SparseProvider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([]SparseVector, error)
	ModelName() string
	Close() error
}

// RerankCandidate is one (id, text) pair submitted for reranking.
type RerankCandidate struct {
	ID   string
	Text string
}

// RerankResult pairs a candidate id with its rerank score, ordered
// highest score first.
type RerankResult struct {
	ID    string
	Score float32
}

// Reranker reorders a candidate set against a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)
	Close() error
}
