// Package app wires every CodeWeaver component into a runnable
// instance from a loaded config.Config: discovery, chunking,
// embedding/reranking providers, the vector store (with optional
// failover), the indexing pipeline, reconciliation, the file watcher,
// health aggregation, and the MCP tool server. Grounded on the
// teacher's internal/indexer/daemon/actor.go, which is the one place
// in the teacher repo that wires a project's full dependency graph
// together (storage, embedder, chunker, processor, watchers) rather
// than composing it piecemeal per-command.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/codeweaver/codeweaver/internal/chunk"
	"github.com/codeweaver/codeweaver/internal/config"
	"github.com/codeweaver/codeweaver/internal/discovery"
	"github.com/codeweaver/codeweaver/internal/embedprovider"
	"github.com/codeweaver/codeweaver/internal/health"
	"github.com/codeweaver/codeweaver/internal/mcpserver"
	"github.com/codeweaver/codeweaver/internal/pipeline"
	"github.com/codeweaver/codeweaver/internal/query"
	"github.com/codeweaver/codeweaver/internal/reconcile"
	"github.com/codeweaver/codeweaver/internal/semparse"
	"github.com/codeweaver/codeweaver/internal/tokenizer"
	"github.com/codeweaver/codeweaver/internal/vectorstore"
	"github.com/codeweaver/codeweaver/internal/watcher"
)

// defaultWatchedExtensions lists the file extensions whose changes the
// watcher reacts to: the source languages semparse parses plus a few
// other source and doc/config formats (.js/.jsx, .cpp/.hpp, .md,
// .yaml/.yml, .json) that the Selector's delimiter and fallback rungs handle
// (spec.md C6), the same source set the teacher's daemon Actor derives
// from cfg.GetSourceExtensions.
var defaultWatchedExtensions = []string{
	".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".php", ".rb", ".rs",
	".java", ".c", ".h", ".cpp", ".hpp", ".md", ".yaml", ".yml", ".json",
}

// pipelineStatus adapts *pipeline.Pipeline to query.IndexingStatusProvider;
// pipeline.RunState and query.IndexingState share the same string values.
type pipelineStatus struct{ p *pipeline.Pipeline }

func (s pipelineStatus) IndexingState() (query.IndexingState, float64) {
	state, coverage := s.p.IndexingState()
	return query.IndexingState(state), coverage
}

// App holds every wired component for one project.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Manifest *discovery.Manifest
	Recon    reconcile.Deps
	Query    *query.Pipeline
	Health   health.Sources
	Watcher  *watcher.Coordinator
	Server   *mcpserver.Server

	closers []func() error
}

// Build constructs an App from cfg. It does not start anything
// (watching, serving); call Serve or run Pipeline.Run/Coordinator.Start
// explicitly.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	manifestPath := cfg.Project.Path + "/.codeweaver/manifest.json"
	manifest, err := discovery.Load(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("app: load manifest: %w", err)
	}
	a.Manifest = manifest

	disc, err := discovery.New(cfg.Project.Path, cfg.DiscoveryIgnoreGlobs(), cfg.MaxFileSize())
	if err != nil {
		return nil, fmt.Errorf("app: build discovery: %w", err)
	}

	selector, err := buildSelector(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: build chunk selector: %w", err)
	}

	dense, sparse, reranker, err := a.buildProviders(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: build embedding providers: %w", err)
	}

	store, failover, err := a.buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: build vector store: %w", err)
	}

	dedup, err := pipeline.NewDedupStore(4096)
	if err != nil {
		return nil, fmt.Errorf("app: build dedup store: %w", err)
	}

	keyword, err := query.NewKeywordIndex()
	if err != nil {
		return nil, fmt.Errorf("app: build keyword index: %w", err)
	}
	a.closers = append(a.closers, keyword.Close)

	a.Pipeline = &pipeline.Pipeline{
		Discovery: disc,
		Selector:  selector,
		Manifest:  manifest,
		Dense:     dense,
		Sparse:    sparse,
		Store:     store,
		Keyword:   keyword,
		Dedup:     dedup,
		Stats:     pipeline.NewStats(time.Now()),
		Config:    cfg.PipelineConfig(),
	}

	a.Recon = reconcile.Deps{
		Root:     cfg.Project.Path,
		Manifest: manifest,
		Store:    store,
		Selector: selector,
		Dense:    dense,
		Sparse:   sparse,
		Keyword:  keyword,
		Dedup:    dedup,
	}

	a.Query = &query.Pipeline{
		Dense:          dense,
		Sparse:         sparse,
		Reranker:       reranker,
		Store:          store,
		Keyword:        keyword,
		StatusProvider: pipelineStatus{a.Pipeline},
	}

	a.Health = health.Sources{
		Pipeline: a.Pipeline,
		Failover: failover,
		Dense:    dense,
		Sparse:   sparse,
		Reranker: reranker,
	}

	fw, err := watcher.NewFileWatcher([]string{cfg.Project.Path}, defaultWatchedExtensions, cfg.DiscoveryIgnoreGlobs())
	if err != nil {
		return nil, fmt.Errorf("app: build file watcher: %w", err)
	}
	fw.SetDebounceTime(cfg.WatcherDebounce())
	a.Watcher = watcher.NewCoordinator(fw, a.Pipeline)

	a.Server = mcpserver.NewServer(a.Pipeline, a.Manifest, a.Recon, a.Query, a.Health)

	return a, nil
}

// Close releases every resource Build acquired (provider subprocesses,
// store connections), in the teacher's defer-stack style.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("app: close: %v", errs)
}

func buildSelector(cfg *config.Config) (*chunk.Selector, error) {
	counter := tokenizer.New()
	parser := semparse.NewParser()
	delimiter := chunk.NewDelimiterChunker(counter, tokenizer.FamilyCL100K, cfg.Project.TokenLimit, 0)
	semantic := chunk.NewSemanticChunker(parser, delimiter, counter, tokenizer.FamilyCL100K, cfg.Project.TokenLimit, 0)
	return chunk.NewSelector(parser, semantic, delimiter), nil
}

// buildProviders dispatches each configured provider entry's Type to a
// concrete embedprovider implementation. Only "local" (subprocess
// HTTP embedder) and "mock" are wired today; an unrecognized type is a
// startup-fatal config error (spec.md §7's "configuration errors are
// fatal at startup").
func (a *App) buildProviders(cfg *config.Config) (embedprovider.DenseProvider, embedprovider.SparseProvider, embedprovider.Reranker, error) {
	var dense embedprovider.DenseProvider
	var sparse embedprovider.SparseProvider
	var reranker embedprovider.Reranker

	if entry, ok := config.FirstEnabled(cfg.Provider.Embedding); ok {
		d, err := buildDenseProvider(entry)
		if err != nil {
			return nil, nil, nil, err
		}
		dense = d
		a.closers = append(a.closers, dense.Close)
	}

	if entry, ok := config.FirstEnabled(cfg.Provider.SparseEmbedding); ok {
		s, err := buildSparseProvider(entry)
		if err != nil {
			return nil, nil, nil, err
		}
		sparse = s
		a.closers = append(a.closers, sparse.Close)
	}

	if entry, ok := config.FirstEnabled(cfg.Provider.Reranking); ok {
		r, err := buildReranker(entry)
		if err != nil {
			return nil, nil, nil, err
		}
		reranker = r
		a.closers = append(a.closers, reranker.Close)
	}

	return dense, sparse, reranker, nil
}

func buildDenseProvider(entry config.ProviderEntry) (embedprovider.DenseProvider, error) {
	switch entry.Type {
	case "local", "":
		cfg := embedprovider.LocalConfig{}
		if v, ok := entry.Settings["binary_path"].(string); ok {
			cfg.BinaryPath = v
		}
		if v, ok := entry.Settings["port"].(int); ok {
			cfg.Port = v
		}
		if v, ok := entry.Settings["model"].(string); ok {
			cfg.Model = v
		}
		if v, ok := entry.Settings["dimension"].(int); ok {
			cfg.Dimension = v
		}
		return embedprovider.NewLocalProvider(cfg), nil
	case "mock":
		dim := 384
		if v, ok := entry.Settings["dimension"].(int); ok {
			dim = v
		}
		return embedprovider.NewMockDenseProvider(dim), nil
	default:
		return nil, fmt.Errorf("unsupported dense embedding provider type %q", entry.Type)
	}
}

func buildSparseProvider(entry config.ProviderEntry) (embedprovider.SparseProvider, error) {
	switch entry.Type {
	case "mock", "":
		return embedprovider.NewMockSparseProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported sparse embedding provider type %q", entry.Type)
	}
}

func buildReranker(entry config.ProviderEntry) (embedprovider.Reranker, error) {
	switch entry.Type {
	case "mock", "":
		return embedprovider.NewMockReranker(), nil
	default:
		return nil, fmt.Errorf("unsupported reranking provider type %q", entry.Type)
	}
}

// buildStore constructs the primary vector store from the first
// enabled provider.vector_store entry. When failover is enabled, the
// primary is wrapped with a chromem-go backup store and a circuit
// breaker (spec.md C10); the returned Failover is also what
// internal/health reports on, nil when failover is disabled.
func (a *App) buildStore(ctx context.Context, cfg *config.Config) (vectorstore.Store, *vectorstore.Failover, error) {
	entry, ok := config.FirstEnabled(cfg.Provider.VectorStore)
	if !ok {
		return nil, nil, fmt.Errorf("no enabled vector store configured")
	}

	primary, err := buildPrimaryStore(ctx, entry)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, primary.Close)

	if !cfg.Failover.Enabled {
		return primary, nil, nil
	}

	backup, err := vectorstore.NewChromemStore(cfg.Failover.BackupFilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("build backup store: %w", err)
	}
	a.closers = append(a.closers, backup.Close)

	breaker := cfg.CircuitBreaker()
	fo := vectorstore.NewFailover(primary, backup, breaker)
	return fo, fo, nil
}

func buildPrimaryStore(ctx context.Context, entry config.ProviderEntry) (vectorstore.Store, error) {
	switch entry.Type {
	case "qdrant", "":
		qcfg := vectorstore.QdrantConfig{Host: "localhost", Port: 6334, Collection: "codeweaver", Dimension: 384}
		if v, ok := entry.Settings["host"].(string); ok {
			qcfg.Host = v
		}
		if v, ok := entry.Settings["port"].(int); ok {
			qcfg.Port = v
		}
		if v, ok := entry.Settings["api_key"].(string); ok {
			qcfg.APIKey = v
		}
		if v, ok := entry.Settings["collection"].(string); ok {
			qcfg.Collection = v
		}
		if v, ok := entry.Settings["dimension"].(int); ok {
			qcfg.Dimension = uint64(v)
		}
		return vectorstore.NewQdrantStore(ctx, qcfg)
	case "chromem":
		path := ".codeweaver/store.db"
		if v, ok := entry.Settings["path"].(string); ok {
			path = v
		}
		return vectorstore.NewChromemStore(path)
	default:
		return nil, fmt.Errorf("unsupported vector store provider type %q", entry.Type)
	}
}
