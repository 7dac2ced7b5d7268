package query

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/codeweaver/codeweaver/internal/embedprovider"
	"github.com/codeweaver/codeweaver/internal/vectorstore"
)

// defaultOverFetch gives the reranker headroom beyond the caller's
// requested result count, per spec.md §4.11 step 5.
const defaultOverFetch = 3

const defaultMaxResults = 15

// Request is find_code's parameter set (spec.md §6).
type Request struct {
	Query          string
	Intent         *Intent
	TokenLimit     int
	IncludeTests   bool
	FocusLanguages []string
	MaxResults     int
}

// IndexingStatusProvider lets the query pipeline read the indexing
// pipeline's published progress without depending on its package.
// internal/app supplies it through a small adapter over
// internal/pipeline's IndexingState, whose state type is RunState.
type IndexingStatusProvider interface {
	IndexingState() (state IndexingState, coverage float64)
}

// Pipeline implements spec.md §4.11's seven-step find_code operation.
// Grounded on the teacher's internal/mcp/searcher_coordinator.go for
// running the dense and sparse legs concurrently, and on
// Aman-CERP-amanmcp's errgroup.WithContext usage for the concurrency
// primitive itself.
type Pipeline struct {
	Dense          embedprovider.DenseProvider
	Sparse         embedprovider.SparseProvider
	Reranker       embedprovider.Reranker
	Store          vectorstore.Store
	Keyword        *KeywordIndex
	StatusProvider IndexingStatusProvider
	OverFetch      int
}

// Find runs the seven-step pipeline and assembles a Response.
func (p *Pipeline) Find(ctx context.Context, req Request) (*Response, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	overFetch := p.OverFetch
	if overFetch <= 0 {
		overFetch = defaultOverFetch
	}

	resp := &Response{Status: StatusSuccess, Matches: []Match{}}

	// Step 1: intent classification. Optional, never fatal; an
	// explicit caller-supplied intent always wins.
	intent := IntentUnknown
	if req.Intent != nil {
		intent = *req.Intent
	} else if req.Query != "" {
		intent = ClassifyIntent(req.Query)
	}

	// Step 2: state preflight.
	if p.StatusProvider != nil {
		state, coverage := p.StatusProvider.IndexingState()
		resp.IndexingState = state
		resp.IndexCoverage = coverage
		switch state {
		case IndexingNotStarted:
			resp.Status = StatusPartial
			resp.addWarning("indexing has not started; no results are available yet")
			resp.Metadata = map[string]any{"intent": intent}
			return resp, nil
		case IndexingInProgress:
			resp.addWarning(fmt.Sprintf("indexing in progress (%.0f%% covered); results may be incomplete", coverage*100))
		}
	} else {
		resp.IndexingState = IndexingIdle
	}

	// Step 3: query embedding, dense and sparse in parallel. The sparse
	// leg only needs to know whether a sparse provider is configured
	// and can embed this query at all; the actual sparse/BM25-like
	// scoring happens against p.Keyword's bleve index by query text
	// (see searchSparse), not against the embedded vector itself, since
	// neither vectorstore backend implements sparse vector search.
	var denseVec []float32
	denseOK, sparseOK := false, false

	g, gctx := errgroup.WithContext(ctx)
	if p.Dense != nil {
		g.Go(func() error {
			vecs, err := p.Dense.EmbedQueries(gctx, []string{req.Query})
			if err != nil {
				log.Printf("Warning: query pipeline dense embedding failed: %v", err)
				return nil
			}
			if len(vecs) > 0 {
				denseVec = vecs[0]
				denseOK = true
			}
			return nil
		})
	}
	if p.Sparse != nil {
		g.Go(func() error {
			vecs, err := p.Sparse.EmbedDocuments(gctx, []string{req.Query})
			if err != nil {
				log.Printf("Warning: query pipeline sparse embedding failed: %v", err)
				return nil
			}
			if len(vecs) > 0 {
				sparseOK = true
			}
			return nil
		})
	}
	_ = g.Wait() // embed goroutines never return an error themselves; failures degrade strategy instead

	// Step 4: strategy selection.
	strategy := SelectStrategy(denseOK, sparseOK)
	resp.Strategy = strategy
	resp.SearchMode = string(strategy)

	var hits []scoredHit
	switch strategy {
	case StrategyHybrid:
		denseHits, sparseHits, err := p.searchBothLegs(ctx, req.Query, denseVec, maxResults*overFetch)
		if err != nil {
			return nil, err
		}
		hits = mergeHybrid(denseHits, sparseHits)
	case StrategyDenseOnly:
		h, err := p.searchVector(ctx, vectorstore.SearchQuery{Dense: denseVec, Limit: maxResults * overFetch})
		if err != nil {
			return nil, err
		}
		hits = h
	case StrategySparseOnly:
		h, err := p.searchSparse(ctx, req.Query, maxResults*overFetch)
		if err != nil {
			return nil, err
		}
		hits = h
	case StrategyKeywordFallback:
		if p.Keyword == nil {
			resp.Status = StatusError
			resp.addWarning("neither dense nor sparse embedding succeeded and no keyword fallback is configured")
			resp.Metadata = map[string]any{
				"suggestions": []string{
					"verify embedding provider credentials",
					"check network connectivity to the embedding provider",
					"enable a keyword fallback provider in provider.embedding config",
				},
			}
			return resp, nil
		}
		h, err := p.Keyword.Search(ctx, req.Query, maxResults*overFetch)
		if err != nil {
			return nil, fmt.Errorf("query: keyword fallback search: %w", err)
		}
		hits = h
		resp.addWarning("neither dense nor sparse embedding succeeded; degraded to keyword search")
	}

	// Step 6: rerank, omitted gracefully on failure.
	if p.Reranker != nil && len(hits) > 0 {
		reranked, err := p.rerank(ctx, req.Query, hits)
		if err != nil {
			log.Printf("Warning: query pipeline rerank failed, using unranked order: %v", err)
			resp.addWarning("reranking failed; results are ordered by retrieval score only")
		} else {
			hits = reranked
		}
	}

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}

	resp.TotalMatches = len(hits)
	resp.Matches = make([]Match, len(hits))
	for i, h := range hits {
		resp.Matches[i] = Match{
			ChunkID:  h.id,
			FilePath: h.filePath,
			Content:  h.content,
			Score:    h.score,
			Metadata: h.metadata,
		}
	}
	resp.Metadata = map[string]any{"intent": intent}
	return resp, nil
}

func (p *Pipeline) searchVector(ctx context.Context, q vectorstore.SearchQuery) ([]scoredHit, error) {
	results, err := p.Store.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query: vector search: %w", err)
	}
	hits := make([]scoredHit, len(results))
	for i, r := range results {
		hits[i] = scoredHit{id: r.ID, filePath: r.FilePath, content: r.Content, score: r.Score, metadata: r.Metadata}
	}
	return hits, nil
}

// searchSparse runs the sparse/BM25-like leg against p.Keyword's bleve
// index by query text, the path documented on KeywordIndex itself:
// neither vectorstore backend implements sparse vector search, so the
// sparse leg is scored lexically rather than against the embedded
// sparse vector.
func (p *Pipeline) searchSparse(ctx context.Context, queryText string, limit int) ([]scoredHit, error) {
	if p.Keyword == nil {
		return nil, nil
	}
	hits, err := p.Keyword.Search(ctx, queryText, limit)
	if err != nil {
		return nil, fmt.Errorf("query: sparse leg keyword search: %w", err)
	}
	return hits, nil
}

func (p *Pipeline) searchBothLegs(ctx context.Context, queryText string, dense []float32, limit int) ([]scoredHit, []scoredHit, error) {
	var denseHits, sparseHits []scoredHit

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := p.searchVector(gctx, vectorstore.SearchQuery{Dense: dense, Limit: limit})
		if err != nil {
			return err
		}
		denseHits = h
		return nil
	})
	g.Go(func() error {
		h, err := p.searchSparse(gctx, queryText, limit)
		if err != nil {
			return err
		}
		sparseHits = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return denseHits, sparseHits, nil
}

func (p *Pipeline) rerank(ctx context.Context, queryText string, hits []scoredHit) ([]scoredHit, error) {
	candidates := make([]embedprovider.RerankCandidate, len(hits))
	for i, h := range hits {
		candidates[i] = embedprovider.RerankCandidate{ID: h.id, Text: h.content}
	}
	results, err := p.Reranker.Rerank(ctx, queryText, candidates)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]scoredHit, len(hits))
	for _, h := range hits {
		byID[h.id] = h
	}
	out := make([]scoredHit, 0, len(results))
	for _, r := range results {
		h, ok := byID[r.ID]
		if !ok {
			continue
		}
		h.score = r.Score
		out = append(out, h)
	}
	return out, nil
}
