// Package vectorstore implements spec.md C10's dual-backend vector
// store: a remote primary (qdrant/go-client) fronted by a local
// in-process backup (chromem-go), joined by a hand-rolled circuit
// breaker and failover policy. Grounded on the teacher's
// internal/mcp/chromem_searcher.go for the chromem-go wiring and on
// First008-mesh's internal/vectorstore/qdrant.go for the
// qdrant-go-client shape; the circuit breaker and failover state
// machine have no corpus precedent and are built directly from
// spec.md's own diagram.
package vectorstore

import (
	"context"
	"errors"
)

// Point is one vector record: a chunk's dense embedding plus the
// sparse embedding and metadata needed to reconstruct a search hit
// without a second lookup. Sparse travels with the point so a future
// backend that gains native sparse-vector support (qdrant's named
// sparse vectors, for instance) has the weights on hand without a
// re-embed; today neither backend's Upsert indexes it for search, and
// the sparse/BM25-like query leg is instead served by
// internal/query.KeywordIndex's bleve index (see internal/query's
// Pipeline.searchSparse).
type Point struct {
	ID       string
	FilePath string
	Dense    []float32
	Sparse   *SparseEntry
	Content  string
	Metadata map[string]string
}

// SparseEntry mirrors embedprovider.SparseVector without importing
// that package, keeping vectorstore's public surface dependency-light
// for callers that only need dense search.
type SparseEntry struct {
	Indices []uint32
	Values  []float32
}

// SearchQuery is a dense similarity query; the sparse leg of a search
// is not expressed here (see Point's doc comment) since it runs
// against internal/query.KeywordIndex rather than a Store backend.
type SearchQuery struct {
	Dense  []float32
	Limit  int
	Filter map[string]string
}

// SearchHit is one ranked result.
type SearchHit struct {
	ID       string
	FilePath string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Health reports whether a backend can currently serve requests.
type Health struct {
	Healthy bool
	Detail  string
}

// ErrNotFound is returned by DeleteByID when no point with the given
// ID exists; stores that can't distinguish "already gone" from
// success may omit returning it.
var ErrNotFound = errors.New("vectorstore: point not found")

// Store is the interface both the qdrant-backed primary and the
// chromem-go-backed backup implement, and the interface Failover
// itself also implements so it can be used as a drop-in Store by the
// query and indexing pipelines.
type Store interface {
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, query SearchQuery) ([]SearchHit, error)
	DeleteByFile(ctx context.Context, filePath string) error
	DeleteByID(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) Health
	Close() error
}
