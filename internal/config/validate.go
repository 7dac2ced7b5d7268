package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrMissingProjectPath indicates no project root was configured.
	ErrMissingProjectPath = errors.New("missing project path")

	// ErrProjectPathNotFound indicates the configured project path
	// does not exist.
	ErrProjectPathNotFound = errors.New("project path not found")

	// ErrInvalidTokenLimit indicates an invalid project.token_limit.
	ErrInvalidTokenLimit = errors.New("invalid token limit")

	// ErrInvalidMaxFileSize indicates an invalid project.max_file_size.
	ErrInvalidMaxFileSize = errors.New("invalid max file size")

	// ErrInvalidMaxResults indicates an invalid project.max_results.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrNoEnabledProvider indicates a required provider list (dense
	// embedding, vector store) has no enabled entry.
	ErrNoEnabledProvider = errors.New("no enabled provider")

	// ErrInvalidImportanceThreshold indicates an out-of-range
	// chunker.importance_threshold.
	ErrInvalidImportanceThreshold = errors.New("invalid importance threshold")

	// ErrInvalidChunkLimit indicates an invalid
	// chunker.max_chunks_per_file.
	ErrInvalidChunkLimit = errors.New("invalid max chunks per file")

	// ErrInvalidChunkTimeout indicates an invalid
	// chunker.chunk_timeout_seconds.
	ErrInvalidChunkTimeout = errors.New("invalid chunk timeout")

	// ErrInvalidFailoverSettings indicates an invalid failover.* value
	// given failover.enabled is true.
	ErrInvalidFailoverSettings = errors.New("invalid failover settings")

	// ErrInvalidWatcherSettings indicates an invalid watcher.* value.
	ErrInvalidWatcherSettings = errors.New("invalid watcher settings")
)

// Validate checks that the configuration is complete and internally
// consistent. Configuration errors are fatal at startup (spec.md §7);
// this is the gate cmd/codeweaver calls before wiring anything up.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateProject(&cfg.Project); err != nil {
		errs = append(errs, err)
	}
	if err := validateProviders(&cfg.Provider); err != nil {
		errs = append(errs, err)
	}
	if err := validateChunker(&cfg.Chunker); err != nil {
		errs = append(errs, err)
	}
	if err := validateFailover(&cfg.Failover); err != nil {
		errs = append(errs, err)
	}
	if err := validateWatcher(&cfg.Watcher); err != nil {
		errs = append(errs, err)
	}

	return joinErrors(errs)
}

func validateProject(cfg *ProjectConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.Path) == "" {
		errs = append(errs, fmt.Errorf("%w: project.path is required", ErrMissingProjectPath))
	} else if info, err := os.Stat(cfg.Path); err != nil || !info.IsDir() {
		errs = append(errs, fmt.Errorf("%w: %s", ErrProjectPathNotFound, cfg.Path))
	}

	if cfg.TokenLimit <= 0 {
		errs = append(errs, fmt.Errorf("%w: token_limit must be positive, got %d", ErrInvalidTokenLimit, cfg.TokenLimit))
	}
	if cfg.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_file_size must be positive, got %d", ErrInvalidMaxFileSize, cfg.MaxFileSize))
	}
	if cfg.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_results must be positive, got %d", ErrInvalidMaxResults, cfg.MaxResults))
	}

	return joinErrors(errs)
}

// validateProviders requires at least one enabled dense embedding
// provider and one enabled vector store - indexing and search have
// nothing to do without them. Sparse embedding and reranking are
// optional modalities (spec.md C9, C11) and may be entirely absent.
func validateProviders(cfg *ProviderConfig) error {
	var errs []error

	if _, ok := FirstEnabled(cfg.Embedding); !ok {
		errs = append(errs, fmt.Errorf("%w: provider.embedding has no enabled entry", ErrNoEnabledProvider))
	}
	if _, ok := FirstEnabled(cfg.VectorStore); !ok {
		errs = append(errs, fmt.Errorf("%w: provider.vector_store has no enabled entry", ErrNoEnabledProvider))
	}

	return joinErrors(errs)
}

func validateChunker(cfg *ChunkerConfig) error {
	var errs []error

	if cfg.ImportanceThreshold < 0 || cfg.ImportanceThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: importance_threshold must be in [0,1], got %v", ErrInvalidImportanceThreshold, cfg.ImportanceThreshold))
	}
	if cfg.MaxChunksPerFile <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_chunks_per_file must be positive, got %d", ErrInvalidChunkLimit, cfg.MaxChunksPerFile))
	}
	if cfg.ChunkTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: chunk_timeout_seconds must be positive, got %d", ErrInvalidChunkTimeout, cfg.ChunkTimeoutSeconds))
	}

	return joinErrors(errs)
}

func validateFailover(cfg *FailoverConfig) error {
	if !cfg.Enabled {
		return nil
	}

	var errs []error
	if cfg.FailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("%w: failure_threshold must be positive, got %d", ErrInvalidFailoverSettings, cfg.FailureThreshold))
	}
	if cfg.SuccessThreshold <= 0 {
		errs = append(errs, fmt.Errorf("%w: success_threshold must be positive, got %d", ErrInvalidFailoverSettings, cfg.SuccessThreshold))
	}
	if cfg.RecoveryTimeoutS <= 0 {
		errs = append(errs, fmt.Errorf("%w: recovery_timeout_s must be positive, got %d", ErrInvalidFailoverSettings, cfg.RecoveryTimeoutS))
	}
	if strings.TrimSpace(cfg.BackupFilePath) == "" {
		errs = append(errs, fmt.Errorf("%w: backup_file_path is required when failover is enabled", ErrInvalidFailoverSettings))
	}

	return joinErrors(errs)
}

func validateWatcher(cfg *WatcherConfig) error {
	if cfg.Enabled && cfg.DebounceMs < 0 {
		return fmt.Errorf("%w: debounce_ms cannot be negative, got %d", ErrInvalidWatcherSettings, cfg.DebounceMs)
	}
	return nil
}

// joinErrors combines multiple errors into a single error that still
// satisfies errors.Is/As against each of them (errors.Join), or
// returns nil if errs is empty.
func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
