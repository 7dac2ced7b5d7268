package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: environment variables > config file > defaults.
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given project
// root directory.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load loads configuration with the following priority (highest to
// lowest):
//  1. Environment variables (CODEWEAVER_*)
//  2. Config file (.codeweaver/config.yml or .codeweaver/config.yaml)
//  3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".codeweaver")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("CODEWEAVER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Project.Path == "" {
		abs, err := filepath.Abs(l.rootDir)
		if err != nil {
			return nil, fmt.Errorf("config: resolve project path: %w", err)
		}
		cfg.Project.Path = abs
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	return cfg, nil
}

// bindEnvVars registers the scalar keys that make sense as
// environment overrides. Provider lists are structural (a list of
// entries, each with a free-form settings map) and aren't meaningfully
// overridable via a single flat env var, so only the project/chunker/
// failover/watcher scalars are bound here.
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("project.path")
	v.BindEnv("project.name")
	v.BindEnv("project.token_limit")
	v.BindEnv("project.max_file_size")
	v.BindEnv("project.max_results")

	v.BindEnv("chunker.importance_threshold")
	v.BindEnv("chunker.prefer_semantic")
	v.BindEnv("chunker.enable_hybrid_chunking")
	v.BindEnv("chunker.max_chunks_per_file")
	v.BindEnv("chunker.chunk_timeout_seconds")

	v.BindEnv("failover.enabled")
	v.BindEnv("failover.failure_threshold")
	v.BindEnv("failover.recovery_timeout_s")
	v.BindEnv("failover.success_threshold")
	v.BindEnv("failover.backup_file_path")

	v.BindEnv("watcher.enabled")
	v.BindEnv("watcher.debounce_ms")
}

// setDefaults configures viper with Default()'s values so a config
// file only needs to specify overrides.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("project.token_limit", d.Project.TokenLimit)
	v.SetDefault("project.max_file_size", d.Project.MaxFileSize)
	v.SetDefault("project.max_results", d.Project.MaxResults)
	v.SetDefault("project.ignore", d.Project.Ignore)

	v.SetDefault("provider.embedding", d.Provider.Embedding)
	v.SetDefault("provider.sparse_embedding", d.Provider.SparseEmbedding)
	v.SetDefault("provider.reranking", d.Provider.Reranking)
	v.SetDefault("provider.vector_store", d.Provider.VectorStore)

	v.SetDefault("chunker.importance_threshold", d.Chunker.ImportanceThreshold)
	v.SetDefault("chunker.prefer_semantic", d.Chunker.PreferSemantic)
	v.SetDefault("chunker.force_delimiter_for_languages", d.Chunker.ForceDelimiterForLanguages)
	v.SetDefault("chunker.enable_hybrid_chunking", d.Chunker.EnableHybridChunking)
	v.SetDefault("chunker.max_chunks_per_file", d.Chunker.MaxChunksPerFile)
	v.SetDefault("chunker.chunk_timeout_seconds", d.Chunker.ChunkTimeoutSeconds)

	v.SetDefault("failover.enabled", d.Failover.Enabled)
	v.SetDefault("failover.failure_threshold", d.Failover.FailureThreshold)
	v.SetDefault("failover.recovery_timeout_s", d.Failover.RecoveryTimeoutS)
	v.SetDefault("failover.success_threshold", d.Failover.SuccessThreshold)
	v.SetDefault("failover.backup_file_path", d.Failover.BackupFilePath)

	v.SetDefault("watcher.enabled", d.Watcher.Enabled)
	v.SetDefault("watcher.debounce_ms", d.Watcher.DebounceMs)
}

// LoadConfig is a convenience function that creates a loader and loads
// config using the current working directory as the project root.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration for a specific project root.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
