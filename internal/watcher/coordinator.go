package watcher

import (
	"context"
	"log"
	"sync"
)

// Coordinator drives an incremental reindex off the FileWatcher's
// debounced change notifications. Grounded on the teacher's
// WatchCoordinator, trimmed down from its git-branch-switch
// choreography (dropped; see DESIGN.md) to the single responsibility
// spec.md C12 actually asks for: pause the watcher, run one pipeline
// pass, resume.
type Coordinator struct {
	files   FileWatcher
	indexer Indexer

	runMu   sync.Mutex
	running bool
}

// NewCoordinator wires a FileWatcher to an Indexer (normally
// *pipeline.Pipeline).
func NewCoordinator(files FileWatcher, indexer Indexer) *Coordinator {
	return &Coordinator{files: files, indexer: indexer}
}

// Start begins watching and blocks until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	startErr := make(chan error, 1)
	go func() {
		startErr <- c.files.Start(ctx, func(changed []string) { c.handleChange(ctx, changed) })
	}()

	select {
	case err := <-startErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		c.files.Stop()
		return ctx.Err()
	}

	<-ctx.Done()
	if err := c.files.Stop(); err != nil {
		log.Printf("Warning: file watcher stop failed: %v", err)
	}
	return ctx.Err()
}

// handleChange is invoked synchronously from the file watcher's event
// loop, so it must return quickly: the actual pipeline run happens in
// its own goroutine, leaving the watcher free to keep accumulating
// events (per FileWatcher.Pause's contract) while a reindex is in
// flight. The watcher is paused for the run's duration so fsnotify
// events produced by the pipeline's own writes (manifest, checkpoint)
// don't retrigger it, and resumed once the pass completes so any
// changes that landed mid-run are picked up by the next debounce
// cycle rather than lost.
func (c *Coordinator) handleChange(ctx context.Context, changed []string) {
	if len(changed) == 0 {
		return
	}

	c.runMu.Lock()
	if c.running {
		c.runMu.Unlock()
		return
	}
	c.running = true
	c.runMu.Unlock()

	c.files.Pause()

	go func() {
		defer func() {
			c.runMu.Lock()
			c.running = false
			c.runMu.Unlock()
			c.files.Resume()
		}()

		log.Printf("watcher: %d file(s) changed, running incremental reindex", len(changed))
		if err := c.indexer.Run(ctx); err != nil {
			log.Printf("Error: watcher-triggered reindex failed: %v", err)
		}
	}()
}
