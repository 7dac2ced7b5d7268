package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeweaver/codeweaver/internal/discovery"
	"github.com/codeweaver/codeweaver/internal/embedprovider"
	"github.com/codeweaver/codeweaver/internal/pipeline"
	"github.com/codeweaver/codeweaver/internal/query"
	"github.com/codeweaver/codeweaver/internal/vectorstore"
)

func TestAggregate_NoDependenciesIsUnhealthy(t *testing.T) {
	status := Aggregate(context.Background(), Sources{})
	assert.Equal(t, OverallUnhealthy, status.Overall)
	assert.Equal(t, query.IndexingNotStarted, status.Indexing.State)
	assert.Empty(t, status.Services)
}

func TestAggregate_AllHealthyReportsHealthy(t *testing.T) {
	primary, err := vectorstore.NewChromemStore("")
	require.NoError(t, err)
	backup, err := vectorstore.NewChromemStore("")
	require.NoError(t, err)
	breaker := vectorstore.NewCircuitBreaker(3, 2, time.Second)
	failover := vectorstore.NewFailover(primary, backup, breaker)

	dense := embedprovider.NewMockDenseProvider(8)
	sparse := embedprovider.NewMockSparseProvider()

	p := &pipeline.Pipeline{Stats: pipeline.NewStats(time.Now())}

	status := Aggregate(context.Background(), Sources{
		Pipeline: p,
		Failover: failover,
		Dense:    dense,
		Sparse:   sparse,
	})
	assert.Equal(t, OverallHealthy, status.Overall)
	assert.Len(t, status.Services, 3)
	assert.Equal(t, query.IndexingNotStarted, status.Indexing.State)
}

func TestAggregate_DegradedWhenSomeServiceUnhealthy(t *testing.T) {
	primary := &alwaysUnhealthyStore{}
	backup, err := vectorstore.NewChromemStore("")
	require.NoError(t, err)
	breaker := vectorstore.NewCircuitBreaker(1, 2, time.Second)
	failover := vectorstore.NewFailover(primary, backup, breaker)

	dense := embedprovider.NewMockDenseProvider(8)

	status := Aggregate(context.Background(), Sources{
		Failover: failover,
		Dense:    dense,
	})
	assert.Equal(t, OverallDegraded, status.Overall)
}

func TestAggregate_ReportsIndexingProgress(t *testing.T) {
	root := t.TempDir()
	disc, err := discovery.New(root, nil, 0)
	require.NoError(t, err)
	manifest, err := discovery.Load(root + "/.codeweaver/manifest.json")
	require.NoError(t, err)

	p := &pipeline.Pipeline{Discovery: disc, Manifest: manifest, Stats: pipeline.NewStats(time.Now())}
	p.Stats.AddFilesDiscovered(10)
	p.Stats.AddFilesProcessed(4)

	status := Aggregate(context.Background(), Sources{Pipeline: p})
	assert.EqualValues(t, 10, status.Indexing.FilesDiscovered)
	assert.EqualValues(t, 4, status.Indexing.FilesProcessed)
}

// alwaysUnhealthyStore is a minimal vectorstore.Store stub for
// exercising the degraded-overall path.
type alwaysUnhealthyStore struct{}

func (alwaysUnhealthyStore) Upsert(context.Context, []vectorstore.Point) error { return nil }
func (alwaysUnhealthyStore) Search(context.Context, vectorstore.SearchQuery) ([]vectorstore.SearchHit, error) {
	return nil, nil
}
func (alwaysUnhealthyStore) DeleteByFile(context.Context, string) error { return nil }
func (alwaysUnhealthyStore) DeleteByID(context.Context, string) error   { return nil }
func (alwaysUnhealthyStore) HealthCheck(context.Context) vectorstore.Health {
	return vectorstore.Health{Healthy: false, Detail: "forced unhealthy"}
}
func (alwaysUnhealthyStore) Close() error { return nil }
