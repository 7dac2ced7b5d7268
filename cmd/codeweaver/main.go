// Command codeweaver runs the CodeWeaver indexing pipeline and MCP
// tool server for a single project tree. Grounded on the teacher's
// cmd/cortex-embed/main.go (a small cobra-rooted binary that loads
// config, builds its dependency graph, and runs one long-lived
// service) and internal/cli/root.go's Execute()/cobra.Command
// structure, trimmed to the two operations spec.md names: serving the
// MCP tools and running a one-shot reindex.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeweaver/codeweaver/internal/app"
	"github.com/codeweaver/codeweaver/internal/config"
	"github.com/codeweaver/codeweaver/internal/reconcile"
)

var rootDir string

func main() {
	root := &cobra.Command{
		Use:   "codeweaver",
		Short: "Code-aware semantic search over a project, exposed as MCP tools",
	}
	root.PersistentFlags().StringVar(&rootDir, "project", ".", "project root directory")

	root.AddCommand(serveCmd(), reindexCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadAndBuild(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.Build(ctx, cfg)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server and background file watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := loadAndBuild(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			watchErr := make(chan error, 1)
			go func() { watchErr <- a.Watcher.Start(ctx) }()

			if err := a.Server.Serve(ctx); err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}
}

func reindexCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Run a single indexing pass over the project and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := loadAndBuild(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if force {
				a.Manifest.Reset()
			}
			if _, err := reconcile.Run(ctx, a.Recon, reconcile.Options{ForceReindex: force}); err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			if err := a.Pipeline.Run(ctx); err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "force a full reindex instead of an incremental one")
	return cmd
}
