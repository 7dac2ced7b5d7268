package vectorstore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// FailoverState is a point-in-time snapshot of the failover policy's
// bookkeeping, exposed to internal/health for status reporting.
type FailoverState struct {
	Active                bool
	Since                 time.Time
	WrittenDuringFailover int
	DeletedDuringFailover int
	CircuitState          CircuitState
}

// Failover wraps a remote primary Store and a local backup Store
// behind spec.md C10's write-dual / read-primary-else-backup policy,
// gated by a CircuitBreaker. It implements Store itself so the
// indexing and query pipelines depend on nothing else.
type Failover struct {
	primary Store
	backup  Store
	breaker *CircuitBreaker

	mu                    sync.Mutex
	active                bool
	since                 time.Time
	writtenDuringFailover map[string]Point
	deletedFiles          map[string]bool
	deletedIDs            map[string]bool
}

// NewFailover builds the wrapper. backup may be nil if the backup
// store is disabled by configuration, in which case a primary outage
// simply surfaces errors rather than degrading to a local store.
func NewFailover(primary Store, backup Store, breaker *CircuitBreaker) *Failover {
	return &Failover{
		primary:               primary,
		backup:                backup,
		breaker:               breaker,
		writtenDuringFailover: make(map[string]Point),
		deletedFiles:          make(map[string]bool),
		deletedIDs:            make(map[string]bool),
	}
}

func (f *Failover) enterFailover() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		f.active = true
		f.since = time.Now()
	}
}

// Upsert writes to the primary when the circuit allows it, mirroring
// the write to the backup best-effort so the backup stays warm. On
// primary failure it falls back to the backup and records the points
// for later sync-back.
func (f *Failover) Upsert(ctx context.Context, points []Point) error {
	if f.breaker.Allow() {
		err := f.primary.Upsert(ctx, points)
		if err == nil {
			f.breaker.RecordSuccess()
			if f.backup != nil {
				if mirrorErr := f.backup.Upsert(ctx, points); mirrorErr != nil {
					log.Printf("Warning: vectorstore backup mirror upsert failed: %v", mirrorErr)
				}
			}
			f.maybeSyncBack(ctx)
			return nil
		}
		f.breaker.RecordFailure()
	}

	if f.backup == nil {
		return fmt.Errorf("vectorstore: primary unavailable and no backup configured")
	}

	if err := f.backup.Upsert(ctx, points); err != nil {
		return fmt.Errorf("vectorstore: backup upsert failed during failover: %w", err)
	}

	f.enterFailover()
	f.mu.Lock()
	for _, p := range points {
		f.writtenDuringFailover[p.ID] = p
		delete(f.deletedIDs, p.ID)
	}
	f.mu.Unlock()
	return nil
}

// Search reads from the primary when the circuit allows it, otherwise
// from the backup.
func (f *Failover) Search(ctx context.Context, query SearchQuery) ([]SearchHit, error) {
	if f.breaker.Allow() {
		hits, err := f.primary.Search(ctx, query)
		if err == nil {
			f.breaker.RecordSuccess()
			f.maybeSyncBack(ctx)
			return hits, nil
		}
		f.breaker.RecordFailure()
	}

	if f.backup == nil {
		return nil, fmt.Errorf("vectorstore: primary unavailable and no backup configured")
	}
	return f.backup.Search(ctx, query)
}

// DeleteByFile mirrors the delete to whichever store is healthy,
// recording a tombstone for sync-back when the primary is down.
func (f *Failover) DeleteByFile(ctx context.Context, filePath string) error {
	if f.breaker.Allow() {
		err := f.primary.DeleteByFile(ctx, filePath)
		if err == nil {
			f.breaker.RecordSuccess()
			if f.backup != nil {
				if mirrorErr := f.backup.DeleteByFile(ctx, filePath); mirrorErr != nil {
					log.Printf("Warning: vectorstore backup mirror delete failed: %v", mirrorErr)
				}
			}
			f.maybeSyncBack(ctx)
			return nil
		}
		f.breaker.RecordFailure()
	}

	if f.backup == nil {
		return fmt.Errorf("vectorstore: primary unavailable and no backup configured")
	}
	if err := f.backup.DeleteByFile(ctx, filePath); err != nil {
		return fmt.Errorf("vectorstore: backup delete failed during failover: %w", err)
	}

	f.enterFailover()
	f.mu.Lock()
	f.deletedFiles[filePath] = true
	for id, p := range f.writtenDuringFailover {
		if p.FilePath == filePath {
			delete(f.writtenDuringFailover, id)
		}
	}
	f.mu.Unlock()
	return nil
}

// DeleteByID mirrors DeleteByFile's policy for a single point.
func (f *Failover) DeleteByID(ctx context.Context, id string) error {
	if f.breaker.Allow() {
		err := f.primary.DeleteByID(ctx, id)
		if err == nil {
			f.breaker.RecordSuccess()
			if f.backup != nil {
				if mirrorErr := f.backup.DeleteByID(ctx, id); mirrorErr != nil {
					log.Printf("Warning: vectorstore backup mirror delete failed: %v", mirrorErr)
				}
			}
			f.maybeSyncBack(ctx)
			return nil
		}
		f.breaker.RecordFailure()
	}

	if f.backup == nil {
		return fmt.Errorf("vectorstore: primary unavailable and no backup configured")
	}
	if err := f.backup.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("vectorstore: backup delete failed during failover: %w", err)
	}

	f.enterFailover()
	f.mu.Lock()
	f.deletedIDs[id] = true
	delete(f.writtenDuringFailover, id)
	f.mu.Unlock()
	return nil
}

// maybeSyncBack runs after every successful primary call. Once the
// circuit has closed again and the failover policy had accumulated
// writes or deletes against the backup, it replays them against the
// primary and clears the bookkeeping, so the primary catches up
// without a full reindex.
func (f *Failover) maybeSyncBack(ctx context.Context) {
	if f.breaker.State() != StateClosed {
		return
	}

	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	points := make([]Point, 0, len(f.writtenDuringFailover))
	for _, p := range f.writtenDuringFailover {
		points = append(points, p)
	}
	deletedFiles := make([]string, 0, len(f.deletedFiles))
	for fp := range f.deletedFiles {
		deletedFiles = append(deletedFiles, fp)
	}
	deletedIDs := make([]string, 0, len(f.deletedIDs))
	for id := range f.deletedIDs {
		deletedIDs = append(deletedIDs, id)
	}
	f.mu.Unlock()

	if len(points) > 0 {
		if err := f.primary.Upsert(ctx, points); err != nil {
			log.Printf("Warning: vectorstore sync-back upsert failed, will retry next success: %v", err)
			return
		}
	}
	for _, fp := range deletedFiles {
		if err := f.primary.DeleteByFile(ctx, fp); err != nil {
			log.Printf("Warning: vectorstore sync-back delete-by-file failed, will retry next success: %v", err)
			return
		}
	}
	for _, id := range deletedIDs {
		if err := f.primary.DeleteByID(ctx, id); err != nil {
			log.Printf("Warning: vectorstore sync-back delete-by-id failed, will retry next success: %v", err)
			return
		}
	}

	f.mu.Lock()
	f.active = false
	f.writtenDuringFailover = make(map[string]Point)
	f.deletedFiles = make(map[string]bool)
	f.deletedIDs = make(map[string]bool)
	f.mu.Unlock()
}

// HealthCheck reports the primary's health, falling back to the
// backup's when the circuit is open.
func (f *Failover) HealthCheck(ctx context.Context) Health {
	if f.breaker.State() != StateOpen {
		return f.primary.HealthCheck(ctx)
	}
	if f.backup != nil {
		h := f.backup.HealthCheck(ctx)
		h.Detail = "degraded: serving from backup; " + h.Detail
		return h
	}
	return Health{Healthy: false, Detail: "primary unhealthy and no backup configured"}
}

// State returns a snapshot for internal/health to report.
func (f *Failover) State() FailoverState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FailoverState{
		Active:                f.active,
		Since:                 f.since,
		WrittenDuringFailover: len(f.writtenDuringFailover),
		DeletedDuringFailover: len(f.deletedFiles) + len(f.deletedIDs),
		CircuitState:          f.breaker.State(),
	}
}

func (f *Failover) Close() error {
	var errs []error
	if err := f.primary.Close(); err != nil {
		errs = append(errs, err)
	}
	if f.backup != nil {
		if err := f.backup.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("vectorstore: close errors: %v", errs)
	}
	return nil
}
