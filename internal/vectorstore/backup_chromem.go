package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

const chromemCollectionName = "codeweaver"

// ChromemStore is the local, in-process backup store spec.md C10
// falls back to during a primary outage. Grounded on the teacher's
// internal/mcp/chromem_searcher.go: a single chromem.DB, one
// collection, no embedding function attached since CodeWeaver always
// supplies its own dense embedding.
type ChromemStore struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	byFile     map[string]map[string]bool
}

// NewChromemStore opens (or creates) a persistent chromem-go database
// at path. An empty path uses an in-memory database, used by tests
// and by callers that disable the failover backup entirely.
func NewChromemStore(path string) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: open chromem db: %w", err)
		}
	}

	collection, err := db.CreateCollection(chromemCollectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create chromem collection: %w", err)
	}

	s := &ChromemStore{db: db, collection: collection, byFile: make(map[string]map[string]bool)}
	return s, nil
}

func (s *ChromemStore) trackFile(id, filePath string) {
	if filePath == "" {
		return
	}
	if s.byFile[filePath] == nil {
		s.byFile[filePath] = make(map[string]bool)
	}
	s.byFile[filePath][id] = true
}

func (s *ChromemStore) Upsert(ctx context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		metadata := make(map[string]string, len(p.Metadata)+1)
		for k, v := range p.Metadata {
			metadata[k] = v
		}
		metadata["file_path"] = p.FilePath

		doc := chromem.Document{
			ID:        p.ID,
			Content:   p.Content,
			Embedding: p.Dense,
			Metadata:  metadata,
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("vectorstore: chromem add %s: %w", p.ID, err)
		}
		s.trackFile(p.ID, p.FilePath)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, query SearchQuery) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}
	if n := s.collection.Count(); limit > n {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	docs, err := s.collection.QueryEmbedding(ctx, query.Dense, limit, query.Filter, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chromem query: %w", err)
	}

	hits := make([]SearchHit, len(docs))
	for i, doc := range docs {
		hits[i] = SearchHit{
			ID:       doc.ID,
			FilePath: doc.Metadata["file_path"],
			Content:  doc.Content,
			Score:    doc.Similarity,
			Metadata: doc.Metadata,
		}
	}
	return hits, nil
}

func (s *ChromemStore) DeleteByFile(ctx context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byFile[filePath]
	if len(ids) == 0 {
		return nil
	}
	for id := range ids {
		if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("vectorstore: chromem delete %s: %w", id, err)
		}
	}
	delete(s.byFile, filePath)
	return nil
}

func (s *ChromemStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("vectorstore: chromem delete %s: %w", id, err)
	}
	for filePath, ids := range s.byFile {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byFile, filePath)
		}
	}
	return nil
}

// Count reports how many points are currently resident, used by
// tests and by internal/health's backup-store diagnostics.
func (s *ChromemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection.Count()
}

func (s *ChromemStore) HealthCheck(_ context.Context) Health {
	return Health{Healthy: true, Detail: "chromem-go in-process backup"}
}

func (s *ChromemStore) Close() error {
	return nil
}
