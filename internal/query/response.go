// Package query implements spec.md C11's find_code pipeline: intent
// classification, query embedding, strategy selection, vector search
// through the Failover wrapper, reranking, and response assembly.
// Grounded on the teacher's internal/mcp/searcher_coordinator.go for
// the parallel dual-search coordination pattern and
// internal/mcp/exact_searcher.go for the bleve-backed keyword fallback.
package query

// Status is the top-level outcome of a find_code call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// IndexingState mirrors the subset of C13's indexing status the query
// pipeline needs for its preflight check.
type IndexingState string

const (
	IndexingNotStarted IndexingState = "not_started"
	IndexingInProgress IndexingState = "in_progress"
	IndexingIdle       IndexingState = "idle"
	IndexingError      IndexingState = "error"
)

// Match is one ranked search result.
type Match struct {
	ChunkID  string            `json:"chunk_id"`
	FilePath string            `json:"file_path"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Response is find_code's return shape, matching spec.md §4.11 step 7
// field-for-field.
type Response struct {
	Status        Status         `json:"status"`
	Warnings      []string       `json:"warnings,omitempty"`
	IndexingState IndexingState  `json:"indexing_state"`
	IndexCoverage float64        `json:"index_coverage,omitempty"`
	SearchMode    string         `json:"search_mode"`
	Strategy      Strategy       `json:"strategy"`
	Matches       []Match        `json:"matches"`
	TotalMatches  int            `json:"total_matches"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (r *Response) addWarning(w string) {
	r.Warnings = append(r.Warnings, w)
	if r.Status == StatusSuccess {
		r.Status = StatusPartial
	}
}
