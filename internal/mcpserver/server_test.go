package mcpserver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeweaver/codeweaver/internal/discovery"
	"github.com/codeweaver/codeweaver/internal/health"
	"github.com/codeweaver/codeweaver/internal/query"
	"github.com/codeweaver/codeweaver/internal/reconcile"
)

// blockingIndexer lets a test control exactly when a reindex pass
// "finishes", so the single-flight guard can be exercised deterministically.
type blockingIndexer struct {
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func newBlockingIndexer() *blockingIndexer {
	return &blockingIndexer{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (i *blockingIndexer) Run(ctx context.Context) error {
	i.mu.Lock()
	i.calls++
	i.mu.Unlock()
	i.started <- struct{}{}
	<-i.release
	return nil
}

func (i *blockingIndexer) callCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

func newTestServer(t *testing.T, indexer Indexer, manifest *discovery.Manifest) *Server {
	t.Helper()
	return NewServer(indexer, manifest, reconcile.Deps{}, &query.Pipeline{}, health.Sources{})
}

func TestStartReindex_SingleFlight(t *testing.T) {
	idx := newBlockingIndexer()
	s := newTestServer(t, idx, nil)

	accepted := s.StartReindex(context.Background(), false)
	require.True(t, accepted)

	select {
	case <-idx.started:
	case <-time.After(time.Second):
		t.Fatal("indexer never started")
	}

	// A second call while the first is still running must be rejected.
	accepted2 := s.StartReindex(context.Background(), false)
	assert.False(t, accepted2)

	close(idx.release)

	require.Eventually(t, func() bool {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return !s.running
	}, time.Second, time.Millisecond)

	assert.Equal(t, 1, idx.callCount())
}

func TestStartReindex_AllowsSequentialRuns(t *testing.T) {
	idx := newBlockingIndexer()
	s := newTestServer(t, idx, nil)

	accepted := s.StartReindex(context.Background(), false)
	require.True(t, accepted)
	<-idx.started
	close(idx.release)

	require.Eventually(t, func() bool {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return !s.running
	}, time.Second, time.Millisecond)

	idx.release = make(chan struct{})
	accepted2 := s.StartReindex(context.Background(), false)
	assert.True(t, accepted2)
	<-idx.started
	close(idx.release)

	require.Eventually(t, func() bool { return idx.callCount() == 2 }, time.Second, time.Millisecond)
}

func TestStartReindex_ForceResetsManifest(t *testing.T) {
	idx := newBlockingIndexer()
	manifest := &discovery.Manifest{Files: map[string]discovery.FileEntry{
		"a.go": {Path: "a.go", ContentHash: "abc"},
	}}
	s := newTestServer(t, idx, manifest)

	accepted := s.StartReindex(context.Background(), true)
	require.True(t, accepted)
	<-idx.started

	_, ok := manifest.Get("a.go")
	assert.False(t, ok, "force reindex should reset the manifest before the indexer runs")

	close(idx.release)
	require.Eventually(t, func() bool {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return !s.running
	}, time.Second, time.Millisecond)
}

func TestStartReindex_NoForceLeavesManifestIntact(t *testing.T) {
	idx := newBlockingIndexer()
	manifest := &discovery.Manifest{Files: map[string]discovery.FileEntry{
		"a.go": {Path: "a.go", ContentHash: "abc"},
	}}
	s := newTestServer(t, idx, manifest)

	accepted := s.StartReindex(context.Background(), false)
	require.True(t, accepted)
	<-idx.started

	_, ok := manifest.Get("a.go")
	assert.True(t, ok)

	close(idx.release)
	require.Eventually(t, func() bool {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return !s.running
	}, time.Second, time.Millisecond)
}

func TestNewServer_RegistersWithoutPanicking(t *testing.T) {
	idx := newBlockingIndexer()
	assert.NotPanics(t, func() {
		newTestServer(t, idx, nil)
	})
}
