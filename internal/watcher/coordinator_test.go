package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFileWatcher is an in-memory FileWatcher stub: Start just
// captures the callback, and a test fires changes directly.
type mockFileWatcher struct {
	mu       sync.Mutex
	callback func(files []string)
	started  bool
	stopped  bool
	paused   bool
	startErr error
}

func (m *mockFileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.callback = callback
	m.started = true
	return nil
}

func (m *mockFileWatcher) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockFileWatcher) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

func (m *mockFileWatcher) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

func (m *mockFileWatcher) SetDebounceTime(time.Duration) {}

func (m *mockFileWatcher) fire(files []string) {
	m.mu.Lock()
	cb := m.callback
	m.mu.Unlock()
	if cb != nil {
		cb(files)
	}
}

func (m *mockFileWatcher) isPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *mockFileWatcher) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// mockIndexer counts Run invocations and can simulate a slow pass.
type mockIndexer struct {
	mu       sync.Mutex
	runCount int
	delay    time.Duration
}

func (m *mockIndexer) Run(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	m.runCount++
	m.mu.Unlock()
	return nil
}

func (m *mockIndexer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runCount
}

func TestCoordinator_FileChangeTriggersReindex(t *testing.T) {
	files := &mockFileWatcher{}
	indexer := &mockIndexer{}
	c := NewCoordinator(files, indexer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Start(ctx)
	require.Eventually(t, files.isStarted, time.Second, time.Millisecond)

	files.fire([]string{"a.go"})

	require.Eventually(t, func() bool { return indexer.count() == 1 }, time.Second, time.Millisecond)
}

func TestCoordinator_EmptyChangeSetIsIgnored(t *testing.T) {
	files := &mockFileWatcher{}
	indexer := &mockIndexer{}
	c := NewCoordinator(files, indexer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Start(ctx)
	require.Eventually(t, files.isStarted, time.Second, time.Millisecond)

	files.fire(nil)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, indexer.count())
}

func TestCoordinator_PausesAndResumesAroundReindex(t *testing.T) {
	files := &mockFileWatcher{}
	indexer := &mockIndexer{delay: 50 * time.Millisecond}
	c := NewCoordinator(files, indexer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Start(ctx)
	require.Eventually(t, files.isStarted, time.Second, time.Millisecond)

	files.fire([]string{"a.go"})

	require.Eventually(t, files.isPaused, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return indexer.count() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !files.isPaused() }, time.Second, time.Millisecond)
}

func TestCoordinator_OverlappingChangesDoNotStartConcurrentRuns(t *testing.T) {
	files := &mockFileWatcher{}
	indexer := &mockIndexer{delay: 100 * time.Millisecond}
	c := NewCoordinator(files, indexer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Start(ctx)
	require.Eventually(t, files.isStarted, time.Second, time.Millisecond)

	files.fire([]string{"a.go"})
	files.fire([]string{"b.go"}) // should be a no-op: a run is already in flight

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, indexer.count())
}

func TestCoordinator_StartPropagatesWatcherStartError(t *testing.T) {
	files := &mockFileWatcher{startErr: assert.AnError}
	indexer := &mockIndexer{}
	c := NewCoordinator(files, indexer)

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestCoordinator_StartReturnsOnContextCancel(t *testing.T) {
	files := &mockFileWatcher{}
	indexer := &mockIndexer{}
	c := NewCoordinator(files, indexer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, files.isStarted, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
	assert.True(t, files.stopped)
}
