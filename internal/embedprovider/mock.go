package embedprovider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
)

// MockDenseProvider generates deterministic embeddings by hashing
// input text, grounded on the teacher's internal/embed/mock.go
// MockProvider. Used by pipeline and query tests that need a
// DenseProvider without a real model.
type MockDenseProvider struct {
	mu          sync.Mutex
	dimension   int
	closed      bool
	closeErr    error
	embedErr    error
}

// NewMockDenseProvider builds a deterministic mock with the given
// dimension (384 matches common sentence-transformer models, the
// teacher's default).
func NewMockDenseProvider(dimension int) *MockDenseProvider {
	if dimension <= 0 {
		dimension = 384
	}
	return &MockDenseProvider{dimension: dimension}
}

func (p *MockDenseProvider) SetEmbedError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedErr = err
}

func (p *MockDenseProvider) SetCloseError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeErr = err
}

func (p *MockDenseProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return p.embed(texts)
}

func (p *MockDenseProvider) EmbedQueries(_ context.Context, texts []string) ([][]float32, error) {
	return p.embed(texts)
}

func (p *MockDenseProvider) embed(texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedErr != nil {
		return nil, p.embedErr
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		hash := sha256.Sum256([]byte(text))
		vec := make([]float32, p.dimension)
		for j := 0; j < p.dimension; j++ {
			offset := (j * 4) % len(hash)
			val := binary.BigEndian.Uint32(hash[offset : offset+4])
			vec[j] = (float32(val)/float32(1<<32))*2.0 - 1.0
		}
		out[i] = vec
	}
	return out, nil
}

func (p *MockDenseProvider) ModelName() string        { return "mock-dense" }
func (p *MockDenseProvider) Dimension() int            { return p.dimension }
func (p *MockDenseProvider) MaxBatchSize() int         { return 64 }
func (p *MockDenseProvider) MaxTokensPerInput() int    { return 8192 }

func (p *MockDenseProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

func (p *MockDenseProvider) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// MockSparseProvider generates a deterministic term-hash sparse
// vector per document, standing in for a real BM25/SPLADE sparse
// embedder in tests.
type MockSparseProvider struct {
	mu       sync.Mutex
	embedErr error
}

func NewMockSparseProvider() *MockSparseProvider { return &MockSparseProvider{} }

func (p *MockSparseProvider) SetEmbedError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedErr = err
}

func (p *MockSparseProvider) EmbedDocuments(_ context.Context, texts []string) ([]SparseVector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	out := make([]SparseVector, len(texts))
	for i, text := range texts {
		hash := sha256.Sum256([]byte(text))
		indices := make([]uint32, 8)
		values := make([]float32, 8)
		for j := 0; j < 8; j++ {
			indices[j] = binary.BigEndian.Uint32(hash[j*4:j*4+4]) % 50000
			values[j] = float32(hash[j]) / 255.0
		}
		out[i] = SparseVector{Indices: indices, Values: values}
	}
	return out, nil
}

func (p *MockSparseProvider) ModelName() string { return "mock-sparse" }
func (p *MockSparseProvider) Close() error      { return nil }

// MockReranker returns candidates in their original order with a
// descending synthetic score, enough for pipeline wiring tests.
type MockReranker struct{}

func NewMockReranker() *MockReranker { return &MockReranker{} }

func (r *MockReranker) Rerank(_ context.Context, _ string, candidates []RerankCandidate) ([]RerankResult, error) {
	out := make([]RerankResult, len(candidates))
	for i, c := range candidates {
		out[i] = RerankResult{ID: c.ID, Score: float32(len(candidates)-i) / float32(len(candidates))}
	}
	return out, nil
}

func (r *MockReranker) Close() error { return nil }
