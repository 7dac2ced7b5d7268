// Package watcher implements spec.md C12: a debounced filesystem
// watch loop that triggers an incremental reindex through
// internal/pipeline whenever source files change. Grounded on the
// teacher's internal/watcher (fsnotify-based recursive directory
// watch with accumulate-then-debounce semantics), trimmed to the
// single-tree case: the teacher's GitWatcher/BranchSynchronizer
// machinery exists to keep several per-branch vector databases in
// sync, a concept spec.md's single-project Manifest has no equivalent
// for, so it was dropped rather than adapted (see DESIGN.md).
package watcher

import (
	"context"
	"time"
)

// FileWatcher monitors source files for changes with debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching source directories, calling callback with debounced file changes.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()

	// SetDebounceTime overrides the default debounce period; must be
	// called before Start.
	SetDebounceTime(d time.Duration)
}

// Indexer is the minimal surface Coordinator needs from the indexing
// pipeline: run one incremental pass over the project tree. Satisfied
// by *pipeline.Pipeline; kept as a narrow interface here so this
// package doesn't need to import pipeline just to be testable.
type Indexer interface {
	Run(ctx context.Context) error
}
