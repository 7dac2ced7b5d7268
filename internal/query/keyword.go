package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// KeywordDoc is the minimal chunk shape the keyword index stores,
// enough to reconstruct a Match without a second lookup.
type KeywordDoc struct {
	ChunkID  string
	FilePath string
	Content  string
	Language string
}

// KeywordIndex is the lexical fallback search path spec.md §4.11 step
// 4 uses when neither dense nor sparse embedding succeeded, and is
// also what actually scores the sparse leg of SPARSE_ONLY/HYBRID
// (neither vectorstore backend implements sparse vector search, so
// Pipeline.searchSparse runs a bleve query-string search over the
// same text a sparse embedder would have consumed). Grounded on the
// teacher's internal/mcp/exact_searcher.go: in-memory bleve index,
// batched indexing, QueryStringQuery search.
type KeywordIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewKeywordIndex builds an empty in-memory bleve index with the
// teacher's field mapping, generalized from documentation chunks to
// code chunks (chunk_id/content/file_path/language instead of
// id/text/chunk_type/tags/title).
func NewKeywordIndex() (*KeywordIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("query: create bleve index: %w", err)
	}
	return &KeywordIndex{index: idx}, nil
}

// IndexDocuments batch-indexes chunks, 1000 at a time, matching the
// teacher's batch size.
func (k *KeywordIndex) IndexDocuments(ctx context.Context, docs []KeywordDoc) error {
	const batchSize = 1000

	k.mu.Lock()
	defer k.mu.Unlock()

	batch := k.index.NewBatch()
	for i, doc := range docs {
		if i%batchSize == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		fields := map[string]any{
			"chunk_id":  doc.ChunkID,
			"content":   doc.Content,
			"file_path": doc.FilePath,
			"language":  doc.Language,
		}
		if err := batch.Index(doc.ChunkID, fields); err != nil {
			return fmt.Errorf("query: batch index chunk %s: %w", doc.ChunkID, err)
		}
		if batch.Size() >= batchSize {
			if err := k.index.Batch(batch); err != nil {
				return fmt.Errorf("query: execute batch: %w", err)
			}
			batch = k.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := k.index.Batch(batch); err != nil {
			return fmt.Errorf("query: execute final batch: %w", err)
		}
	}
	return nil
}

// DeleteByFile removes every chunk belonging to filePath, used when
// the indexing pipeline or watcher processes a file deletion.
func (k *KeywordIndex) DeleteByFile(ctx context.Context, filePath string, chunkIDs []string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	batch := k.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("query: delete chunks for %s: %w", filePath, err)
	}
	return nil
}

// Search runs a bleve query-string search, matching the teacher's
// QueryStringQuery usage for flexible field-scoped/boolean/phrase
// syntax.
func (k *KeywordIndex) Search(ctx context.Context, queryText string, limit int) ([]scoredHit, error) {
	if limit <= 0 {
		limit = 15
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	q := bleve.NewQueryStringQuery(queryText)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"chunk_id", "content", "file_path", "language"}

	result, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("query: bleve search: %w", err)
	}

	hits := make([]scoredHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		chunkID, _ := hit.Fields["chunk_id"].(string)
		content, _ := hit.Fields["content"].(string)
		filePath, _ := hit.Fields["file_path"].(string)
		hits = append(hits, scoredHit{
			id:       chunkID,
			filePath: filePath,
			content:  content,
			score:    float32(hit.Score),
		})
	}
	return hits, nil
}

func (k *KeywordIndex) Close() error {
	return k.index.Close()
}
