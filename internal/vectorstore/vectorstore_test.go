package vectorstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store double used to drive the Failover
// policy under controlled failure injection, standing in for the
// qdrant primary in tests.
type fakeStore struct {
	mu      sync.Mutex
	points  map[string]Point
	failing bool
	calls   int
}

func newFakeStore() *fakeStore { return &fakeStore{points: make(map[string]Point)} }

func (s *fakeStore) setFailing(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = v
}

func (s *fakeStore) Upsert(_ context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failing {
		return errors.New("fake primary down")
	}
	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

func (s *fakeStore) Search(_ context.Context, query SearchQuery) ([]SearchHit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failing {
		return nil, errors.New("fake primary down")
	}
	hits := make([]SearchHit, 0, len(s.points))
	for _, p := range s.points {
		hits = append(hits, SearchHit{ID: p.ID, FilePath: p.FilePath, Content: p.Content})
		if query.Limit > 0 && len(hits) >= query.Limit {
			break
		}
	}
	return hits, nil
}

func (s *fakeStore) DeleteByFile(_ context.Context, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("fake primary down")
	}
	for id, p := range s.points {
		if p.FilePath == filePath {
			delete(s.points, id)
		}
	}
	return nil
}

func (s *fakeStore) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("fake primary down")
	}
	delete(s.points, id)
	return nil
}

func (s *fakeStore) HealthCheck(_ context.Context) Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Health{Healthy: !s.failing}
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.points[id]
	return ok
}

func TestCircuitBreaker_OpensAfterFailureThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, time.Hour)
	assert.Equal(t, StateClosed, cb.State())
	for i := 0; i < 3; i++ {
		require.True(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)
	cb.now = func() time.Time { return now }
	require.True(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	cb.now = func() time.Time { return now.Add(time.Hour) }
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenTripsOpenOnFailure(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(1, 2, time.Millisecond)
	cb.now = func() time.Time { return now }
	cb.RecordFailure()
	cb.now = func() time.Time { return now.Add(time.Hour) }
	require.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func newTestFailover(t *testing.T) (*Failover, *fakeStore, *ChromemStore) {
	t.Helper()
	primary := newFakeStore()
	backup, err := NewChromemStore("")
	require.NoError(t, err)
	breaker := NewCircuitBreaker(2, 1, 10*time.Millisecond)
	return NewFailover(primary, backup, breaker), primary, backup
}

func TestFailover_WritesPrimaryAndMirrorsBackup(t *testing.T) {
	fo, primary, backup := newTestFailover(t)
	ctx := context.Background()

	pt := Point{ID: "a", FilePath: "a.go", Dense: []float32{0.1, 0.2}, Content: "package a"}
	require.NoError(t, fo.Upsert(ctx, []Point{pt}))
	assert.True(t, primary.has("a"))

	hits, err := backup.Search(ctx, SearchQuery{Dense: []float32{0.1, 0.2}, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestFailover_FallsBackToBackupOnPrimaryFailure(t *testing.T) {
	fo, primary, _ := newTestFailover(t)
	ctx := context.Background()
	primary.setFailing(true)

	pt := Point{ID: "b", FilePath: "b.go", Dense: []float32{0.3, 0.4}, Content: "package b"}
	require.NoError(t, fo.Upsert(ctx, []Point{pt}))
	require.NoError(t, fo.Upsert(ctx, []Point{pt}))
	assert.Equal(t, StateOpen, fo.breaker.State())
	assert.False(t, primary.has("b"))

	hits, err := fo.Search(ctx, SearchQuery{Dense: []float32{0.3, 0.4}, Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	state := fo.State()
	assert.True(t, state.Active)
	assert.Equal(t, 1, state.WrittenDuringFailover)
}

func TestFailover_SyncsBackAfterPrimaryRecovers(t *testing.T) {
	fo, primary, _ := newTestFailover(t)
	ctx := context.Background()
	primary.setFailing(true)

	pt := Point{ID: "c", FilePath: "c.go", Dense: []float32{0.5, 0.6}, Content: "package c"}
	require.NoError(t, fo.Upsert(ctx, []Point{pt}))
	require.NoError(t, fo.Upsert(ctx, []Point{pt}))
	require.Equal(t, StateOpen, fo.breaker.State())

	fo.breaker.now = func() time.Time { return time.Now().Add(time.Hour) }
	primary.setFailing(false)

	// A successful primary call (recovery probe) should close the
	// breaker and trigger sync-back of what was written to the backup.
	require.NoError(t, fo.Upsert(ctx, []Point{{ID: "d", FilePath: "d.go", Dense: []float32{0.7, 0.8}}}))
	assert.Equal(t, StateClosed, fo.breaker.State())

	assert.True(t, primary.has("c"), "point written during failover should be synced back")
	assert.True(t, primary.has("d"))

	state := fo.State()
	assert.False(t, state.Active)
	assert.Equal(t, 0, state.WrittenDuringFailover)
}

func TestFailover_NoBackupConfiguredSurfacesError(t *testing.T) {
	primary := newFakeStore()
	primary.setFailing(true)
	fo := NewFailover(primary, nil, NewCircuitBreaker(1, 1, time.Hour))
	err := fo.Upsert(context.Background(), []Point{{ID: "x"}})
	assert.Error(t, err)
}

func TestChromemStore_UpsertSearchDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("")
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, []Point{
		{ID: "1", FilePath: "x.go", Dense: []float32{1, 0, 0}, Content: "func X()"},
		{ID: "2", FilePath: "y.go", Dense: []float32{0, 1, 0}, Content: "func Y()"},
	}))

	hits, err := s.Search(ctx, SearchQuery{Dense: []float32{1, 0, 0}, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	require.NoError(t, s.DeleteByFile(ctx, "x.go"))
	hits, err = s.Search(ctx, SearchQuery{Dense: []float32{1, 0, 0}, Limit: 2})
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "1", h.ID)
	}
}
