// Package config loads CodeWeaver's structured configuration: a
// single file covering project settings, the provider lists for each
// pluggable backend, chunker governance, failover, and the file
// watcher. Grounded on the teacher's project-config loader (Default +
// Load + Validate over a viper.Viper, project-local config directory)
// but reshaped around the provider-entry-list pattern spec.md §6
// requires instead of the teacher's single hardcoded embedding
// backend.
//
// The teacher also carried a GlobalConfig for machine-wide daemon
// settings (~/.cortex/config.yml: socket paths, idle timeouts, model
// dirs). CodeWeaver has no daemon concept - it is one process indexing
// one project tree - so that layer was dropped rather than adapted
// (see DESIGN.md).
package config

// Config is CodeWeaver's complete configuration surface (spec.md §6).
type Config struct {
	Project  ProjectConfig  `yaml:"project" mapstructure:"project"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Chunker  ChunkerConfig  `yaml:"chunker" mapstructure:"chunker"`
	Failover FailoverConfig `yaml:"failover" mapstructure:"failover"`
	Watcher  WatcherConfig  `yaml:"watcher" mapstructure:"watcher"`
}

// ProjectConfig identifies the project tree being indexed and bounds
// the work done against it.
type ProjectConfig struct {
	Path        string   `yaml:"path" mapstructure:"path"`
	Name        string   `yaml:"name" mapstructure:"name"`
	TokenLimit  int      `yaml:"token_limit" mapstructure:"token_limit"`
	MaxFileSize int64    `yaml:"max_file_size" mapstructure:"max_file_size"`
	MaxResults  int      `yaml:"max_results" mapstructure:"max_results"`
	Ignore      []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns excluded from discovery (C7)
}

// ProviderEntry is one configured backend of a given kind (an
// embedding model, a vector store, ...). Settings carries
// provider-specific fields (host, API key, model path, ...) as a free
// map rather than a fixed struct, since the set of provider types is
// open-ended and each has its own shape.
type ProviderEntry struct {
	Type     string         `yaml:"type" mapstructure:"type"`
	Name     string         `yaml:"name" mapstructure:"name"`
	Enabled  bool           `yaml:"enabled" mapstructure:"enabled"`
	Settings map[string]any `yaml:"settings" mapstructure:"settings"`
}

// FirstEnabled returns the first enabled entry, or false if none are.
// Indexing wires up exactly one dense provider, one sparse provider,
// one reranker, and one primary store at a time; the config format
// allows several configured entries per kind (e.g. to keep a disabled
// alternative on hand) but only the first enabled one is used.
func FirstEnabled(entries []ProviderEntry) (ProviderEntry, bool) {
	for _, e := range entries {
		if e.Enabled {
			return e, true
		}
	}
	return ProviderEntry{}, false
}

// ProviderConfig lists the configured backends for each pluggable
// concern (spec.md §6).
type ProviderConfig struct {
	Embedding       []ProviderEntry `yaml:"embedding" mapstructure:"embedding"`
	SparseEmbedding []ProviderEntry `yaml:"sparse_embedding" mapstructure:"sparse_embedding"`
	Reranking       []ProviderEntry `yaml:"reranking" mapstructure:"reranking"`
	VectorStore     []ProviderEntry `yaml:"vector_store" mapstructure:"vector_store"`
}

// ChunkerConfig holds the chunker settings and the chunking stage's
// per-file limits (spec.md C4-C6, C8 governance). Only MaxChunksPerFile
// and ChunkTimeoutSeconds reach the indexing pipeline (see
// PipelineConfig); the other fields are loaded and validated but are not
// read by the Selector or the chunkers, which use their own built-in
// defaults.
type ChunkerConfig struct {
	ImportanceThreshold        float64  `yaml:"importance_threshold" mapstructure:"importance_threshold"`
	PreferSemantic             bool     `yaml:"prefer_semantic" mapstructure:"prefer_semantic"`
	ForceDelimiterForLanguages []string `yaml:"force_delimiter_for_languages" mapstructure:"force_delimiter_for_languages"`
	EnableHybridChunking       bool     `yaml:"enable_hybrid_chunking" mapstructure:"enable_hybrid_chunking"`
	MaxChunksPerFile           int      `yaml:"max_chunks_per_file" mapstructure:"max_chunks_per_file"`
	ChunkTimeoutSeconds        int      `yaml:"chunk_timeout_seconds" mapstructure:"chunk_timeout_seconds"`
}

// FailoverConfig configures the circuit breaker and backup store
// spec.md C10 wraps around the primary vector store.
type FailoverConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	RecoveryTimeoutS int    `yaml:"recovery_timeout_s" mapstructure:"recovery_timeout_s"`
	SuccessThreshold int    `yaml:"success_threshold" mapstructure:"success_threshold"`
	BackupFilePath   string `yaml:"backup_file_path" mapstructure:"backup_file_path"`
}

// WatcherConfig configures the debounced filesystem watch loop
// (spec.md C12).
type WatcherConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	DebounceMs int  `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Default returns a configuration with sensible defaults. Project.Path
// is left empty; the loader fills it in with the directory it loaded
// from, since there is no sane project-independent default.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			TokenLimit:  8000,
			MaxFileSize: 10 * 1024 * 1024,
			MaxResults:  15,
			Ignore: []string{
				"node_modules/**",
				"vendor/**",
				".git/**",
				".codeweaver/**",
				"dist/**",
				"build/**",
				"target/**",
				"__pycache__/**",
				"*.pyc",
			},
		},
		Provider: ProviderConfig{
			Embedding: []ProviderEntry{
				{Type: "local", Name: "default", Enabled: true, Settings: map[string]any{
					"model":      "BAAI/bge-small-en-v1.5",
					"dimensions": 384,
					"endpoint":   "http://localhost:8121/embed",
				}},
			},
			SparseEmbedding: []ProviderEntry{},
			Reranking:       []ProviderEntry{},
			VectorStore: []ProviderEntry{
				{Type: "chromem", Name: "backup", Enabled: true, Settings: map[string]any{
					"path": ".codeweaver/backup.db",
				}},
			},
		},
		Chunker: ChunkerConfig{
			ImportanceThreshold:        0.3,
			PreferSemantic:             true,
			ForceDelimiterForLanguages: []string{},
			EnableHybridChunking:       true,
			MaxChunksPerFile:           5000,
			ChunkTimeoutSeconds:        30,
		},
		Failover: FailoverConfig{
			Enabled:          true,
			FailureThreshold: 3,
			RecoveryTimeoutS: 30,
			SuccessThreshold: 2,
			BackupFilePath:   ".codeweaver/backup.db",
		},
		Watcher: WatcherConfig{
			Enabled:    true,
			DebounceMs: 500,
		},
	}
}
