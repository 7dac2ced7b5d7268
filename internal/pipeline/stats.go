package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// PhaseElapsed records the wall-clock time a pipeline phase has spent
// so far.
type PhaseElapsed struct {
	Discovery time.Duration
	Chunking  time.Duration
	Batching  time.Duration
	Embedding time.Duration
	Upsert    time.Duration
	Manifest  time.Duration
}

// Snapshot is a point-in-time, JSON-friendly read of Stats, the shape
// internal/health surfaces through get_index_status.
type Snapshot struct {
	FilesDiscovered int64
	FilesProcessed  int64
	ChunksCreated   int64
	ChunksEmbedded  int64
	ChunksIndexed   int64
	FilesWithErrors int64
	Elapsed         PhaseElapsed
	ProcessingRate  float64 // files processed per second since Start
	StartedAt       time.Time
}

// Stats accumulates the counters spec.md C8 requires ("files_discovered,
// files_processed, chunks_created, chunks_embedded, chunks_indexed,
// files_with_errors, per-phase elapsed time, processing rate"),
// generalized from the teacher's ProcessingStats
// (internal/indexer/types.go, a single-writer struct filled in after
// a synchronous run) into atomically-updated counters safe for the
// pipeline's concurrent chunking workers and stage goroutines.
type Stats struct {
	filesDiscovered int64
	filesProcessed  int64
	chunksCreated   int64
	chunksEmbedded  int64
	chunksIndexed   int64
	filesWithErrors int64

	mu        sync.Mutex
	elapsed   PhaseElapsed
	startedAt time.Time
}

// NewStats starts a fresh counter set, stamping startedAt with the
// caller-supplied time.
func NewStats(startedAt time.Time) *Stats {
	return &Stats{startedAt: startedAt}
}

func (s *Stats) AddFilesDiscovered(n int64) { atomic.AddInt64(&s.filesDiscovered, n) }
func (s *Stats) AddFilesProcessed(n int64)  { atomic.AddInt64(&s.filesProcessed, n) }
func (s *Stats) AddChunksCreated(n int64)   { atomic.AddInt64(&s.chunksCreated, n) }
func (s *Stats) AddChunksEmbedded(n int64)  { atomic.AddInt64(&s.chunksEmbedded, n) }
func (s *Stats) AddChunksIndexed(n int64)   { atomic.AddInt64(&s.chunksIndexed, n) }
func (s *Stats) AddFilesWithErrors(n int64) { atomic.AddInt64(&s.filesWithErrors, n) }

// AddPhaseElapsed accumulates wall-clock spent in one named phase.
// Phase is one of "discovery", "chunking", "batching", "embedding",
// "upsert", "manifest"; unknown phases are silently ignored.
func (s *Stats) AddPhaseElapsed(phase string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch phase {
	case "discovery":
		s.elapsed.Discovery += d
	case "chunking":
		s.elapsed.Chunking += d
	case "batching":
		s.elapsed.Batching += d
	case "embedding":
		s.elapsed.Embedding += d
	case "upsert":
		s.elapsed.Upsert += d
	case "manifest":
		s.elapsed.Manifest += d
	}
}

// Snapshot reads every counter and computes the current processing
// rate (files processed per second since startedAt), using now as the
// caller's clock.
func (s *Stats) Snapshot(now time.Time) Snapshot {
	s.mu.Lock()
	elapsed := s.elapsed
	s.mu.Unlock()

	processed := atomic.LoadInt64(&s.filesProcessed)
	wallClock := now.Sub(s.startedAt).Seconds()
	var rate float64
	if wallClock > 0 {
		rate = float64(processed) / wallClock
	}

	return Snapshot{
		FilesDiscovered: atomic.LoadInt64(&s.filesDiscovered),
		FilesProcessed:  processed,
		ChunksCreated:   atomic.LoadInt64(&s.chunksCreated),
		ChunksEmbedded:  atomic.LoadInt64(&s.chunksEmbedded),
		ChunksIndexed:   atomic.LoadInt64(&s.chunksIndexed),
		FilesWithErrors: atomic.LoadInt64(&s.filesWithErrors),
		Elapsed:         elapsed,
		ProcessingRate:  rate,
		StartedAt:       s.startedAt,
	}
}
