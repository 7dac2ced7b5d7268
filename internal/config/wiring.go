package config

import (
	"time"

	"github.com/codeweaver/codeweaver/internal/pipeline"
	"github.com/codeweaver/codeweaver/internal/vectorstore"
)

// PipelineConfig converts the chunker governance settings into a
// pipeline.Config. Fields pipeline.Config has that spec.md §6 does not
// expose (batch size/timeout, worker counts, retry policy) are left at
// their zero value; pipeline.Config.withDefaults fills those in.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		ChunkTimeout:     time.Duration(c.Chunker.ChunkTimeoutSeconds) * time.Second,
		MaxChunksPerFile: c.Chunker.MaxChunksPerFile,
	}
}

// CircuitBreaker builds the breaker spec.md C10's Failover sits
// behind, or nil if failover is disabled - callers must not pass a nil
// breaker to vectorstore.NewFailover; a nil result here means the
// primary store should be used directly instead of wrapping it.
func (c *Config) CircuitBreaker() *vectorstore.CircuitBreaker {
	if !c.Failover.Enabled {
		return nil
	}
	return vectorstore.NewCircuitBreaker(
		c.Failover.FailureThreshold,
		c.Failover.SuccessThreshold,
		time.Duration(c.Failover.RecoveryTimeoutS)*time.Second,
	)
}

// WatcherDebounce returns the configured debounce period for
// watcher.SetDebounceTime.
func (c *Config) WatcherDebounce() time.Duration {
	return time.Duration(c.Watcher.DebounceMs) * time.Millisecond
}

// DiscoveryIgnoreGlobs and MaxFileSize feed internal/discovery.New
// directly; kept as thin accessors so callers don't reach into
// Config.Project themselves.
func (c *Config) DiscoveryIgnoreGlobs() []string { return c.Project.Ignore }
func (c *Config) MaxFileSize() int64             { return c.Project.MaxFileSize }
