package vectorstore

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore is the remote primary store spec.md C10 writes to and
// reads from under normal operation, grounded directly on
// First008-mesh's internal/vectorstore/qdrant.go: same client
// construction, same NewVectorsConfig/CreateCollection shape, same
// sha256-derived numeric point ID (chunk IDs are UUID strings;
// Qdrant's numeric point ID space needs a stable uint64, so the
// original chunk ID travels in the payload instead).
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
}

// QdrantConfig configures the remote connection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  uint64
}

// NewQdrantStore connects to Qdrant and ensures the target collection
// exists, creating it with a cosine-distance dense vector field sized
// to Dimension if absent.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connect qdrant: %w", err)
	}

	s := &QdrantStore{client: client, collection: cfg.Collection, dimension: cfg.Dimension}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("vectorstore: check qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create qdrant collection: %w", err)
	}
	return nil
}

// pointNumericID derives a stable uint64 Qdrant point ID from a chunk
// ID string, the same sha256-prefix scheme the grounding example uses
// for file paths.
func pointNumericID(id string) uint64 {
	hash := sha256.Sum256([]byte(id))
	var n uint64
	for i := 0; i < 8; i++ {
		n |= uint64(hash[i]) << (8 * i)
	}
	return n
}

func pointPayload(p Point) map[string]any {
	payload := map[string]any{
		"chunk_id":  p.ID,
		"file_path": p.FilePath,
		"content":   p.Content,
	}
	for k, v := range p.Metadata {
		payload[k] = v
	}
	return payload
}

func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	upserts := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		upserts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(pointNumericID(p.ID)),
			Vectors: qdrant.NewVectors(p.Dense...),
			Payload: qdrant.NewValueMap(pointPayload(p)),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         upserts,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant upsert: %w", err)
	}
	return nil
}

func fieldMatchCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Text{Text: value},
				},
			},
		},
	}
}

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func (s *QdrantStore) Search(ctx context.Context, query SearchQuery) ([]SearchHit, error) {
	limit := uint64(query.Limit)
	if limit == 0 {
		limit = 10
	}

	var filter *qdrant.Filter
	if len(query.Filter) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(query.Filter))
		for k, v := range query.Filter {
			conditions = append(conditions, fieldMatchCondition(k, v))
		}
		filter = &qdrant.Filter{Must: conditions}
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query.Dense...),
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: qdrant query: %w", err)
	}

	hits := make([]SearchHit, len(results))
	for i, r := range results {
		payload := make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			payload[k] = v.GetStringValue()
		}
		hits[i] = SearchHit{
			ID:       payload["chunk_id"],
			FilePath: payload["file_path"],
			Content:  payload["content"],
			Score:    r.Score,
			Metadata: payload,
		}
	}
	return hits, nil
}

func (s *QdrantStore) DeleteByFile(ctx context.Context, filePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{fieldMatchCondition("file_path", filePath)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant delete by file: %w", err)
	}
	return nil
}

func (s *QdrantStore) DeleteByID(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{fieldMatchCondition("chunk_id", id)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("vectorstore: qdrant delete by id: %w", err)
	}
	return nil
}

func (s *QdrantStore) HealthCheck(ctx context.Context) Health {
	_, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return Health{Healthy: false, Detail: err.Error()}
	}
	return Health{Healthy: true, Detail: "qdrant reachable"}
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
