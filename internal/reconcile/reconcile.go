// Package reconcile implements spec.md C9: a pass that runs before the
// main indexing loop (when not force-reindexing) to fill in embeddings
// the manifest is missing for the currently configured dense_model and
// sparse_model, without requiring a full reindex. This is what lets an
// operator turn on sparse embeddings later, or swap a dense model,
// and only pay for the chunks that actually need the new modality.
//
// Grounded on internal/pipeline/pipeline.go's chunk/embed/upsert shape
// (chunkOneFile, processBatch): reconciliation reuses the same
// Selector and embedding providers, scoped down to a single pass over
// the files the manifest's own bookkeeping says are incomplete.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/codeweaver/codeweaver/internal/chunk"
	"github.com/codeweaver/codeweaver/internal/discovery"
	"github.com/codeweaver/codeweaver/internal/embedprovider"
	"github.com/codeweaver/codeweaver/internal/pipeline"
	"github.com/codeweaver/codeweaver/internal/query"
	"github.com/codeweaver/codeweaver/internal/vectorstore"
)

// Deps carries the components reconciliation shares with the main
// indexing pipeline; Dense and Sparse may each be nil (a deployment
// can run dense-only). Keyword, like in the main pipeline, is kept in
// sync with every reconciled file so a later sparse/keyword search
// sees chunks reconciliation filled in without a full reindex.
type Deps struct {
	Root     string
	Manifest *discovery.Manifest
	Store    vectorstore.Store
	Selector *chunk.Selector
	Dense    embedprovider.DenseProvider
	Sparse   embedprovider.SparseProvider
	Keyword  *query.KeywordIndex
	Dedup    *pipeline.DedupStore

	RetryPolicy embedprovider.RetryPolicy
}

// Options are the per-run switches spec.md C9 names explicitly.
type Options struct {
	ForceReindex bool
}

// Summary reports what a reconciliation pass actually did, so callers
// (internal/health, the CLI) can surface it without re-deriving it
// from the manifest.
type Summary struct {
	FilesConsidered int
	FilesReconciled int
	FilesFailed     int
	DenseFilled     int
	SparseFilled    int
}

// Run consults the manifest and fills in only the missing modalities
// for files it finds incomplete against the currently configured
// models. It is a no-op (zero Summary, nil error) whenever:
//   - force_reindex is requested (the main loop will touch every file
//     anyway, so reconciliation's targeted fill adds nothing);
//   - no vector store is configured;
//   - neither a dense nor a sparse provider is available;
//   - the manifest has no incomplete files for the configured models.
func Run(ctx context.Context, deps Deps, opts Options) (Summary, error) {
	var summary Summary

	if opts.ForceReindex {
		return summary, nil
	}
	if deps.Store == nil {
		return summary, nil
	}
	if deps.Dense == nil && deps.Sparse == nil {
		return summary, nil
	}

	denseModel, sparseModel := "", ""
	if deps.Dense != nil {
		denseModel = deps.Dense.ModelName()
	}
	if deps.Sparse != nil {
		sparseModel = deps.Sparse.ModelName()
	}

	partition := deps.Manifest.PartitionByEmbeddingState(denseModel, sparseModel)
	targets := make([]string, 0, len(partition.BothMissing)+len(partition.DenseOnlyMissing)+len(partition.SparseOnlyMissing))
	targets = append(targets, partition.BothMissing...)
	targets = append(targets, partition.DenseOnlyMissing...)
	targets = append(targets, partition.SparseOnlyMissing...)

	if len(targets) == 0 {
		return summary, nil
	}
	summary.FilesConsidered = len(targets)

	for _, path := range targets {
		entry, ok := deps.Manifest.Get(path)
		if !ok {
			continue
		}
		filled, err := deps.reconcileFile(ctx, entry, denseModel, sparseModel)
		if err != nil {
			log.Printf("Warning: reconcile: skipping %s: %v", path, err)
			summary.FilesFailed++
			continue
		}
		summary.FilesReconciled++
		if filled.dense {
			summary.DenseFilled++
		}
		if filled.sparse {
			summary.SparseFilled++
		}
	}
	return summary, nil
}

type filledModalities struct {
	dense  bool
	sparse bool
}

// reconcileFile re-chunks path from source and upserts a complete
// Point per chunk, but only counts (and only stamps a fresh model name
// for) the modalities the manifest entry was actually missing. See the
// comment below on why an already-complete modality still gets
// recomputed rather than left out of the upsert.
func (d Deps) reconcileFile(ctx context.Context, entry discovery.FileEntry, denseModel, sparseModel string) (filledModalities, error) {
	var filled filledModalities

	content, err := os.ReadFile(filepath.Join(d.Root, entry.Path))
	if err != nil {
		return filled, fmt.Errorf("reconcile: read %s: %w", entry.Path, err)
	}

	chunks, err := d.Selector.Chunk(entry.Path, content)
	if err != nil {
		return filled, fmt.Errorf("reconcile: chunk %s: %w", entry.Path, err)
	}
	if len(chunks) == 0 {
		return filled, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	missingDense := denseModel != "" && (!entry.EmbeddingState.Dense || entry.EmbeddingState.DenseModel != denseModel)
	missingSparse := sparseModel != "" && (!entry.EmbeddingState.Sparse || entry.EmbeddingState.SparseModel != sparseModel)
	if !missingDense && !missingSparse {
		return filled, nil
	}

	// Upsert below replaces the whole point by ID rather than merging
	// fields, so a modality that's already complete still has to be
	// recomputed here too — otherwise writing a point with a zero
	// vector for that modality would blank out the one already in the
	// store. Only missingDense/missingSparse count toward the returned
	// Summary; a recomputed-but-already-complete modality does not.
	haveDense, haveSparse := false, false
	var denseVecs [][]float32
	if d.Dense != nil {
		denseVecs, err = embedprovider.EmbedDocumentsBatched(ctx, texts, len(texts), d.RetryPolicy, nil, d.Dense.EmbedDocuments)
		if err != nil {
			log.Printf("Warning: reconcile: dense embedding failed for %s: %v", entry.Path, err)
		} else {
			haveDense = true
		}
	}
	var sparseVecs []embedprovider.SparseVector
	if d.Sparse != nil {
		sparseVecs, err = embedprovider.EmbedDocumentsBatched(ctx, texts, len(texts), d.RetryPolicy, nil, d.Sparse.EmbedDocuments)
		if err != nil {
			log.Printf("Warning: reconcile: sparse embedding failed for %s: %v", entry.Path, err)
		} else {
			haveSparse = true
		}
	}
	if missingDense && !haveDense {
		missingDense = false
	}
	if missingSparse && !haveSparse {
		missingSparse = false
	}
	if !missingDense && !missingSparse {
		return filled, nil
	}

	chunkIDs := make([]string, 0, len(chunks))
	points := make([]vectorstore.Point, 0, len(chunks))
	for i, c := range chunks {
		canonicalID := c.ChunkID
		if d.Dedup != nil {
			canonicalID, _ = d.Dedup.Record(c.ContentHash, c.ChunkID)
		}
		chunkIDs = append(chunkIDs, canonicalID)

		pt := vectorstore.Point{
			ID:       canonicalID,
			FilePath: c.FilePath,
			Content:  c.Content,
			Metadata: map[string]string{
				"language":    c.Language,
				"source":      string(c.Source),
				"symbol_name": c.Metadata.SymbolName,
			},
		}
		if haveDense {
			pt.Dense = denseVecs[i]
		}
		if haveSparse {
			pt.Sparse = &vectorstore.SparseEntry{Indices: sparseVecs[i].Indices, Values: sparseVecs[i].Values}
		}
		points = append(points, pt)
	}

	if err := d.Store.Upsert(ctx, points); err != nil {
		return filled, fmt.Errorf("reconcile: upsert %s: %w", entry.Path, err)
	}

	if d.Keyword != nil {
		docs := make([]query.KeywordDoc, len(chunks))
		for i, c := range chunks {
			docs[i] = query.KeywordDoc{ChunkID: chunkIDs[i], FilePath: c.FilePath, Content: c.Content, Language: c.Language}
		}
		if err := d.Keyword.IndexDocuments(ctx, docs); err != nil {
			log.Printf("Warning: reconcile: keyword index update failed for %s: %v", entry.Path, err)
		}
	}

	state := entry.EmbeddingState
	if haveDense {
		state.Dense = true
		state.DenseModel = denseModel
		filled.dense = missingDense
	}
	if haveSparse {
		state.Sparse = true
		state.SparseModel = sparseModel
		filled.sparse = missingSparse
	}
	entry.ChunkIDs = chunkIDs
	entry.EmbeddingState = state
	d.Manifest.Upsert(entry)
	if err := d.Manifest.Save(); err != nil {
		return filled, fmt.Errorf("reconcile: save manifest after %s: %w", entry.Path, err)
	}
	return filled, nil
}
