// Package mcpserver exposes CodeWeaver's three tools
// (find_code/reindex/get_index_status, spec.md §6) over the MCP
// tool-invocation protocol. Grounded on the teacher's
// internal/mcp/server.go: same mark3labs/mcp-go server construction,
// same stdio-serve-with-signal-handling Serve loop, same
// composable AddXTool registration functions - generalized from the
// teacher's five fixed cortex_* tools (search/exact/graph/files/
// pattern, each backed by its own searcher) to CodeWeaver's three,
// each backed by one of internal/query, internal/pipeline +
// internal/reconcile, and internal/health.
package mcpserver

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codeweaver/codeweaver/internal/discovery"
	"github.com/codeweaver/codeweaver/internal/health"
	"github.com/codeweaver/codeweaver/internal/query"
	"github.com/codeweaver/codeweaver/internal/reconcile"
)

// Indexer is the minimal surface Server needs to drive a reindex pass;
// satisfied by *pipeline.Pipeline.
type Indexer interface {
	Run(ctx context.Context) error
}

// Server wires the three tools to their backing components and runs
// the MCP stdio transport.
type Server struct {
	indexer       Indexer
	manifest      *discovery.Manifest
	reconcileDeps reconcile.Deps
	query         *query.Pipeline
	healthSources health.Sources

	mcp *server.MCPServer

	runMu   sync.Mutex
	running bool
}

// NewServer builds the MCP server and registers find_code, reindex,
// and get_index_status. query may be nil only in tests that don't
// exercise find_code.
func NewServer(indexer Indexer, manifest *discovery.Manifest, reconcileDeps reconcile.Deps, queryPipeline *query.Pipeline, healthSources health.Sources) *Server {
	s := &Server{
		indexer:       indexer,
		manifest:      manifest,
		reconcileDeps: reconcileDeps,
		query:         queryPipeline,
		healthSources: healthSources,
	}

	s.mcp = server.NewMCPServer(
		"codeweaver",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	addFindCodeTool(s.mcp, s.query)
	addReindexTool(s.mcp, s)
	addGetIndexStatusTool(s.mcp, s.healthSources)

	return s
}

// StartReindex runs reconciliation (unless force) followed by one
// indexing pass, in the background - reindex(force?) is defined as
// "accepted, runs in background" (spec.md §6). A reindex already in
// flight makes this a no-op rather than queuing a second overlapping
// pass, the same single-flight guard internal/watcher.Coordinator uses
// around its own triggered runs.
func (s *Server) StartReindex(ctx context.Context, force bool) bool {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return false
	}
	s.running = true
	s.runMu.Unlock()

	go func() {
		defer func() {
			s.runMu.Lock()
			s.running = false
			s.runMu.Unlock()
		}()

		if force && s.manifest != nil {
			s.manifest.Reset()
		}

		if _, err := reconcile.Run(ctx, s.reconcileDeps, reconcile.Options{ForceReindex: force}); err != nil {
			log.Printf("Error: reconciliation failed: %v", err)
		}

		if err := s.indexer.Run(ctx); err != nil {
			log.Printf("Error: reindex failed: %v", err)
		}
	}()

	return true
}

// Serve starts the MCP server on stdio and blocks until a shutdown
// signal, a server error, or ctx cancellation.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("mcpserver: %w", err)
		}
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		cancel()
		return nil
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
