package pipeline

import "time"

// DefaultChunkTimeout bounds how long Stage 2 may spend chunking a
// single file (spec.md C8 governance, default 30s).
const DefaultChunkTimeout = 30 * time.Second

// DefaultMaxChunksPerFile caps how many chunks a single file may
// contribute; exceeding it truncates rather than aborts (spec.md C8
// governance, default 5000).
const DefaultMaxChunksPerFile = 5000

// GovernanceErrorKind distinguishes the two governance violations the
// pipeline can hit per file.
type GovernanceErrorKind string

const (
	GovernanceChunkingTimeout    GovernanceErrorKind = "chunking_timeout"
	GovernanceChunkLimitExceeded GovernanceErrorKind = "chunk_limit_exceeded"
)

// GovernanceError is recorded against a file but never stops the
// pipeline, matching spec.md C8: "Exceeding either raises a
// governance error that is recorded but does not stop the pipeline."
type GovernanceError struct {
	Kind     GovernanceErrorKind
	FilePath string
	Detail   string
}

func (e *GovernanceError) Error() string {
	return "pipeline: governance violation (" + string(e.Kind) + ") on " + e.FilePath + ": " + e.Detail
}
