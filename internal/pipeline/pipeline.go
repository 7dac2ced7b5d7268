// Package pipeline implements spec.md C8's indexing pipeline: a
// producer/consumer flow with bounded channels running discovery,
// chunking, batching, embedding, vector-store upsert, and manifest
// update as distinct stages, plus the governance, statistics,
// checkpointing, and deduplication machinery spec.md §5 and §8
// require around it. Grounded on the teacher's
// internal/indexer/indexer.go orchestration shape and
// internal/indexer/progress.go's phase-oriented reporting, with the
// worker pool generalized from the teacher's sync.WaitGroup pattern to
// golang.org/x/sync's errgroup/semaphore pair.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codeweaver/codeweaver/internal/chunk"
	"github.com/codeweaver/codeweaver/internal/discovery"
	"github.com/codeweaver/codeweaver/internal/embedprovider"
	"github.com/codeweaver/codeweaver/internal/query"
	"github.com/codeweaver/codeweaver/internal/vectorstore"
)

const (
	defaultBatchSize       = 100
	defaultBatchTimeout    = 2 * time.Second
	defaultBatchWorkers    = 4
	defaultChunkedBuffer   = 64
	defaultBatchChanBuffer = 4
)

// Config tunes the pipeline's stage behavior; a zero Config is filled
// in with spec.md's defaults by Pipeline.Run.
type Config struct {
	BatchSize        int
	BatchTimeout     time.Duration
	ChunkWorkers     int
	ChunkTimeout     time.Duration
	MaxChunksPerFile int
	BatchWorkers     int
	RetryPolicy      embedprovider.RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	if c.ChunkWorkers <= 0 {
		c.ChunkWorkers = runtime.NumCPU()
	}
	if c.ChunkTimeout <= 0 {
		c.ChunkTimeout = DefaultChunkTimeout
	}
	if c.MaxChunksPerFile <= 0 {
		c.MaxChunksPerFile = DefaultMaxChunksPerFile
	}
	if c.BatchWorkers <= 0 {
		c.BatchWorkers = defaultBatchWorkers
	}
	if (c.RetryPolicy == embedprovider.RetryPolicy{}) {
		c.RetryPolicy = embedprovider.DefaultRetryPolicy
	}
	return c
}

// RunState is the coarse state the pipeline publishes for C13's
// get_index_status and C11's preflight check.
type RunState string

const (
	RunNotStarted RunState = "not_started"
	RunInProgress RunState = "in_progress"
	RunIdle       RunState = "idle"
	RunError      RunState = "error"
)

// Pipeline wires discovery, chunking, embedding, vector storage, and
// the manifest together into one indexing run. Dense/Sparse may each
// be nil when that modality isn't configured (spec.md §6: "dense
// and/or sparse"); Run degrades gracefully either way. Keyword, when
// set, is kept in sync with every upsert and removal so the query
// pipeline's keyword fallback and sparse leg have something to search.
type Pipeline struct {
	Discovery  *discovery.Discovery
	Selector   *chunk.Selector
	Manifest   *discovery.Manifest
	Dense      embedprovider.DenseProvider
	Sparse     embedprovider.SparseProvider
	Store      vectorstore.Store
	Keyword    *query.KeywordIndex
	Dedup      *DedupStore
	Stats      *Stats
	Progress   Reporter
	Checkpoint *Checkpoint
	Config     Config
	Now        func() time.Time

	stateMu       sync.Mutex
	state         RunState
	filesTotal    int
	filesComplete int
	currentFile   string
}

// CurrentFile reports the path most recently handed to the chunking
// stage, for internal/health's current_file field. Empty before the
// first file and after a run completes.
func (p *Pipeline) CurrentFile() string {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.currentFile
}

func (p *Pipeline) setCurrentFile(path string) {
	p.stateMu.Lock()
	p.currentFile = path
	p.stateMu.Unlock()
}

// IndexingState reports the pipeline's current coarse state and
// fractional file coverage: files whose chunks have all been upserted,
// over files to process. Files that yield no chunks to embed are not
// counted. The state is a RunState; internal/app adapts it to
// query.IndexingStatusProvider.
func (p *Pipeline) IndexingState() (RunState, float64) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.filesTotal == 0 {
		return p.state, 0
	}
	return p.state, float64(p.filesComplete) / float64(p.filesTotal)
}

func (p *Pipeline) setState(s RunState) {
	p.stateMu.Lock()
	p.state = s
	p.stateMu.Unlock()
}

func (p *Pipeline) setProgress(total, complete int) {
	p.stateMu.Lock()
	p.filesTotal = total
	p.filesComplete = complete
	p.stateMu.Unlock()
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) report(ev Event) {
	if p.Progress != nil {
		p.Progress.Report(ev)
	}
}

// fileChunkResult is Stage 2's output: one file's surviving chunks
// (after per-file governance and dedup) or the error that stopped it
// short. dedupedID carries the canonical chunk_id for every chunk
// this file produced that turned out to be a content-hash duplicate
// of a chunk already indexed elsewhere; spec.md §3 requires the
// manifest to still reference those canonical chunks even though they
// are never re-embedded or re-upserted.
type fileChunkResult struct {
	file      discovery.DiscoveredFile
	chunks    []chunk.Chunk
	dedupedID []string
	governed  *GovernanceError
}

// pendingFile tracks a file's progress through Stages 4-6: how many
// of its surviving chunks have been upserted, and whether every batch
// that touched it embedded successfully in each modality.
type pendingFile struct {
	file      discovery.DiscoveredFile
	total     int
	completed int
	denseOK   bool
	sparseOK  bool
	chunkIDs  []string
}

// Run executes one full indexing pass: discovery, diffing against the
// manifest, then the chunking/batching/embedding/upsert/manifest
// stages over every added or modified file, honoring any checkpoint
// resume position. It returns once every surviving file has reached
// Stage 6 or the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	cfg := p.Config.withDefaults()
	if p.Stats == nil {
		p.Stats = NewStats(p.now())
	}
	if p.Dedup == nil {
		var err error
		p.Dedup, err = NewDedupStore(0)
		if err != nil {
			return fmt.Errorf("pipeline: failed to create dedup store: %w", err)
		}
	}

	p.setState(RunInProgress)
	defer func() {
		if p.state != RunError {
			p.setState(RunIdle)
		}
	}()

	// Stage 1: discovery + diff.
	discoveryStart := p.now()
	discovered, err := p.Discovery.Walk()
	if err != nil {
		p.setState(RunError)
		return fmt.Errorf("pipeline: discovery walk failed: %w", err)
	}
	diff := discovery.DiffAgainst(discovered, p.Manifest.KnownHashes())
	p.Stats.AddFilesDiscovered(int64(len(discovered)))
	p.Stats.AddPhaseElapsed("discovery", p.now().Sub(discoveryStart))
	p.report(Event{Phase: "discovery", Message: fmt.Sprintf("discovered %d files", len(discovered))})

	if err := p.handleRemovals(ctx, diff.Removed); err != nil {
		log.Printf("Warning: pipeline failed to process removed files cleanly: %v", err)
	}

	toProcess := make([]discovery.DiscoveredFile, 0, len(diff.Added)+len(diff.Modified))
	toProcess = append(toProcess, diff.Added...)
	toProcess = append(toProcess, diff.Modified...)

	if p.Checkpoint != nil {
		filtered := toProcess[:0:0]
		for _, f := range toProcess {
			if p.Checkpoint.ShouldSkip(f.Path) {
				continue
			}
			filtered = append(filtered, f)
		}
		toProcess = filtered
	}

	p.setProgress(len(toProcess), 0)
	if len(toProcess) == 0 {
		p.report(Event{Phase: "complete", Message: "no files to index"})
		return nil
	}

	pending := make(map[string]*pendingFile, len(toProcess))
	var pendingMu sync.Mutex

	chunkedCh := make(chan fileChunkResult, defaultChunkedBuffer)
	batchCh := make(chan []chunk.Chunk, defaultBatchChanBuffer)

	g, gctx := errgroup.WithContext(ctx)

	// Stage 2: bounded chunking worker pool.
	g.Go(func() error {
		defer close(chunkedCh)
		return p.runChunking(gctx, cfg, toProcess, chunkedCh)
	})

	// Stage 3: batching.
	g.Go(func() error {
		defer close(batchCh)
		return p.runBatching(gctx, cfg, chunkedCh, batchCh, pending, &pendingMu)
	})

	// Stages 4-6: embedding, upsert, manifest update, run by a small
	// pool of batch workers so embedding latency for one batch
	// doesn't stall the others.
	var filesDoneMu sync.Mutex
	filesDone := 0
	for i := 0; i < cfg.BatchWorkers; i++ {
		g.Go(func() error {
			for batch := range batchCh {
				if err := p.processBatch(gctx, cfg, batch, pending, &pendingMu, &filesDoneMu, &filesDone, len(toProcess)); err != nil {
					log.Printf("Warning: pipeline batch processing error: %v", err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.setState(RunError)
		return fmt.Errorf("pipeline: run failed: %w", err)
	}

	p.setCurrentFile("")
	p.report(Event{Phase: "complete", Message: fmt.Sprintf("indexed %d files", len(toProcess))})
	return nil
}

// handleRemovals deletes every chunk of a file no longer present on
// disk and drops its manifest entry, spec.md C7's "removing a file
// deletes all chunks ... and drops the manifest entry."
func (p *Pipeline) handleRemovals(ctx context.Context, removed []string) error {
	if len(removed) == 0 {
		return nil
	}
	var firstErr error
	for _, path := range removed {
		if err := p.Store.DeleteByFile(ctx, path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if p.Keyword != nil {
			if entry, ok := p.Manifest.Get(path); ok {
				if err := p.Keyword.DeleteByFile(ctx, path, entry.ChunkIDs); err != nil {
					log.Printf("Warning: pipeline failed to remove %s from keyword index: %v", path, err)
				}
			}
		}
		p.Manifest.Remove(path)
	}
	if err := p.Manifest.Save(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// runChunking is Stage 2: a bounded pool of workers, each reading one
// file's content, running it through the Selector under a per-file
// deadline, capping its chunk count, deduplicating against the shared
// DedupStore, and emitting the survivors.
func (p *Pipeline) runChunking(ctx context.Context, cfg Config, files []discovery.DiscoveredFile, out chan<- fileChunkResult) error {
	sem := semaphore.NewWeighted(int64(cfg.ChunkWorkers))
	g, gctx := errgroup.WithContext(ctx)

	for _, f := range files {
		f := f
		if err := sem.Acquire(gctx, 1); err != nil {
			return g.Wait()
		}
		g.Go(func() error {
			defer sem.Release(1)

			p.setCurrentFile(f.Path)
			chunkStart := p.now()
			result := p.chunkOneFile(gctx, cfg, f)
			p.Stats.AddPhaseElapsed("chunking", p.now().Sub(chunkStart))
			p.report(Event{Phase: "chunking", Message: fmt.Sprintf("chunked %s", f.Path)})

			select {
			case out <- result:
			case <-gctx.Done():
				return gctx.Err()
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Pipeline) chunkOneFile(ctx context.Context, cfg Config, f discovery.DiscoveredFile) fileChunkResult {
	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		log.Printf("Warning: pipeline failed to read %s: %v", f.Path, err)
		p.Stats.AddFilesWithErrors(1)
		return fileChunkResult{file: f}
	}

	chunks, govErr := chunkWithTimeout(p.Selector, f.Path, content, cfg.ChunkTimeout)
	if govErr != nil {
		p.Stats.AddFilesWithErrors(1)
		log.Printf("Warning: %v", govErr)
		return fileChunkResult{file: f, governed: govErr}
	}

	if len(chunks) > cfg.MaxChunksPerFile {
		govErr = &GovernanceError{
			Kind:     GovernanceChunkLimitExceeded,
			FilePath: f.Path,
			Detail:   fmt.Sprintf("produced %d chunks, capped at %d", len(chunks), cfg.MaxChunksPerFile),
		}
		log.Printf("Warning: %v", govErr)
		p.Stats.AddFilesWithErrors(1)
		chunks = chunks[:cfg.MaxChunksPerFile]
	}
	p.Stats.AddChunksCreated(int64(len(chunks)))

	survivors := make([]chunk.Chunk, 0, len(chunks))
	var dedupedID []string
	for _, c := range chunks {
		canonicalID, isNew := p.Dedup.Record(c.ContentHash, c.ChunkID)
		if isNew {
			survivors = append(survivors, c)
		} else {
			dedupedID = append(dedupedID, canonicalID)
		}
	}

	return fileChunkResult{file: f, chunks: survivors, dedupedID: dedupedID, governed: govErr}
}

// chunkWithTimeout runs the Selector in a goroutine and enforces
// cfg's per-file deadline; the Selector itself is synchronous
// CPU-bound work that cannot be cancelled mid-call, so a timeout here
// abandons waiting rather than the computation itself, matching
// spec.md §5's "CPU-bound; must be process-parallel or use an
// effective equivalent" note that chunking is not expected to observe
// context cancellation internally.
func chunkWithTimeout(selector *chunk.Selector, path string, content []byte, timeout time.Duration) ([]chunk.Chunk, *GovernanceError) {
	type result struct {
		chunks []chunk.Chunk
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		chunks, err := selector.Chunk(path, content)
		resultCh <- result{chunks, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return nil, &GovernanceError{Kind: GovernanceChunkingTimeout, FilePath: path, Detail: r.err.Error()}
		}
		return r.chunks, nil
	case <-time.After(timeout):
		return nil, &GovernanceError{Kind: GovernanceChunkingTimeout, FilePath: path, Detail: fmt.Sprintf("exceeded %s", timeout)}
	}
}

// runBatching is Stage 3: accumulate chunks until batch_size or
// batch_timeout, whichever comes first, registering each file's
// expected chunk count as soon as it's known.
func (p *Pipeline) runBatching(ctx context.Context, cfg Config, in <-chan fileChunkResult, out chan<- []chunk.Chunk, pending map[string]*pendingFile, pendingMu *sync.Mutex) error {
	var buffer []chunk.Chunk
	timer := time.NewTimer(cfg.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		batch := buffer
		buffer = nil
		select {
		case out <- batch:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case res, ok := <-in:
			if !ok {
				flush()
				return nil
			}

			pendingMu.Lock()
			pf := &pendingFile{
				file:     res.file,
				total:    len(res.chunks),
				denseOK:  true,
				sparseOK: true,
				chunkIDs: append([]string(nil), res.dedupedID...),
			}
			pending[res.file.Path] = pf
			pendingMu.Unlock()

			if len(res.chunks) == 0 {
				// Nothing to embed; Stage 6 fires immediately.
				if err := p.completeFileIfReady(res.file.Path, pending, pendingMu); err != nil {
					log.Printf("Warning: pipeline manifest update for %s failed: %v", res.file.Path, err)
				}
				continue
			}

			buffer = append(buffer, res.chunks...)
			if len(buffer) >= cfg.BatchSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(cfg.BatchTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(cfg.BatchTimeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// processBatch is Stages 4-6 for one batch: embed (dense and sparse,
// independently retried, permanent failures marked but non-fatal),
// upsert to the Failover-wrapped store, then update the manifest for
// every file whose chunks are now all accounted for.
func (p *Pipeline) processBatch(ctx context.Context, cfg Config, batch []chunk.Chunk, pending map[string]*pendingFile, pendingMu *sync.Mutex, filesDoneMu *sync.Mutex, filesDone *int, filesTotal int) error {
	embedStart := p.now()
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	denseVecs, denseOK := p.embedDense(ctx, cfg, texts)
	sparseVecs, sparseOK := p.embedSparse(ctx, cfg, texts)
	p.Stats.AddPhaseElapsed("embedding", p.now().Sub(embedStart))
	if denseOK || sparseOK {
		p.Stats.AddChunksEmbedded(int64(len(batch)))
	}

	points := make([]vectorstore.Point, len(batch))
	for i, c := range batch {
		pt := vectorstore.Point{
			ID:       c.ChunkID,
			FilePath: c.FilePath,
			Content:  c.Content,
			Metadata: map[string]string{
				"language":    c.Language,
				"source":      string(c.Source),
				"symbol_name": c.Metadata.SymbolName,
			},
		}
		if denseOK {
			pt.Dense = denseVecs[i]
		}
		if sparseOK {
			pt.Sparse = &vectorstore.SparseEntry{Indices: sparseVecs[i].Indices, Values: sparseVecs[i].Values}
		}
		points[i] = pt
	}

	upsertStart := p.now()
	if err := p.Store.Upsert(ctx, points); err != nil {
		p.Stats.AddPhaseElapsed("upsert", p.now().Sub(upsertStart))
		return fmt.Errorf("pipeline: upsert batch of %d chunks: %w", len(points), err)
	}
	p.Stats.AddPhaseElapsed("upsert", p.now().Sub(upsertStart))
	p.Stats.AddChunksIndexed(int64(len(points)))

	if p.Keyword != nil {
		docs := make([]query.KeywordDoc, len(batch))
		for i, c := range batch {
			docs[i] = query.KeywordDoc{ChunkID: c.ChunkID, FilePath: c.FilePath, Content: c.Content, Language: c.Language}
		}
		if err := p.Keyword.IndexDocuments(ctx, docs); err != nil {
			log.Printf("Warning: pipeline failed to index batch of %d chunks into keyword index: %v", len(docs), err)
		}
	}

	byFile := make(map[string][]chunk.Chunk)
	for _, c := range batch {
		byFile[c.FilePath] = append(byFile[c.FilePath], c)
	}

	completedNow := 0
	for path, chunks := range byFile {
		pendingMu.Lock()
		pf, ok := pending[path]
		if ok {
			pf.completed += len(chunks)
			pf.denseOK = pf.denseOK && denseOK
			pf.sparseOK = pf.sparseOK && sparseOK
			for _, c := range chunks {
				pf.chunkIDs = append(pf.chunkIDs, c.ChunkID)
			}
			if pf.completed >= pf.total {
				completedNow++
			}
		}
		pendingMu.Unlock()

		if err := p.completeFileIfReady(path, pending, pendingMu); err != nil {
			log.Printf("Warning: pipeline manifest update for %s failed: %v", path, err)
		}
	}

	filesDoneMu.Lock()
	*filesDone += completedNow
	done := *filesDone
	filesDoneMu.Unlock()
	p.setProgress(filesTotal, done)

	return nil
}

func (p *Pipeline) embedDense(ctx context.Context, cfg Config, texts []string) ([][]float32, bool) {
	if p.Dense == nil {
		return nil, false
	}
	vecs, err := embedprovider.EmbedDocumentsBatched(ctx, texts, len(texts), cfg.RetryPolicy, nil, p.Dense.EmbedDocuments)
	if err != nil {
		log.Printf("Warning: pipeline dense embedding failed for batch of %d chunks: %v", len(texts), err)
		return nil, false
	}
	return vecs, true
}

func (p *Pipeline) embedSparse(ctx context.Context, cfg Config, texts []string) ([]embedprovider.SparseVector, bool) {
	if p.Sparse == nil {
		return nil, false
	}
	vecs, err := embedprovider.EmbedDocumentsBatched(ctx, texts, len(texts), cfg.RetryPolicy, nil, p.Sparse.EmbedDocuments)
	if err != nil {
		log.Printf("Warning: pipeline sparse embedding failed for batch of %d chunks: %v", len(texts), err)
		return nil, false
	}
	return vecs, true
}

// completeFileIfReady is Stage 6: once a file's chunk count and its
// completed count agree, record the manifest entry, persist it, and
// checkpoint the file as processed.
func (p *Pipeline) completeFileIfReady(path string, pending map[string]*pendingFile, pendingMu *sync.Mutex) error {
	pendingMu.Lock()
	pf, ok := pending[path]
	if !ok || pf.completed < pf.total {
		pendingMu.Unlock()
		return nil
	}
	delete(pending, path)
	state := discovery.EmbeddingState{Dense: pf.denseOK, Sparse: pf.sparseOK}
	if pf.denseOK && p.Dense != nil {
		state.DenseModel = p.Dense.ModelName()
	}
	if pf.sparseOK && p.Sparse != nil {
		state.SparseModel = p.Sparse.ModelName()
	}
	entry := discovery.FileEntry{
		Path:           pf.file.Path,
		ContentHash:    pf.file.ContentHash,
		ChunkIDs:       pf.chunkIDs,
		EmbeddingState: state,
	}
	pendingMu.Unlock()

	manifestStart := p.now()
	p.Manifest.Upsert(entry)
	if err := p.Manifest.Save(); err != nil {
		p.Stats.AddPhaseElapsed("manifest", p.now().Sub(manifestStart))
		return fmt.Errorf("save manifest: %w", err)
	}
	p.Stats.AddPhaseElapsed("manifest", p.now().Sub(manifestStart))
	p.Stats.AddFilesProcessed(1)

	if p.Checkpoint != nil {
		if err := p.Checkpoint.MarkProcessed(path, PhaseManifest); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}

	p.report(Event{Phase: "manifest", Message: fmt.Sprintf("indexed %s", path)})
	return nil
}
