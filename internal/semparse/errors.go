package semparse

import "fmt"

// DepthExceededError is raised when AST recursion exceeds the bounded
// depth (default 200, spec.md C2). It is a distinct error kind so
// callers can route it through the governance taxonomy (spec.md §7)
// rather than confusing it with a generic parse failure.
type DepthExceededError struct {
	Language string
	FilePath string
	MaxDepth int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("semparse: AST depth exceeded %d while parsing %s (%s)", e.MaxDepth, e.FilePath, e.Language)
}

// ParseError wraps an underlying grammar/parser failure. Chunker
// Selector (C6) catches this specifically to trigger its fallback
// chain.
type ParseError struct {
	Language string
	FilePath string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("semparse: failed to parse %s as %s: %v", e.FilePath, e.Language, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedLanguageError indicates no parser is registered for a
// language; the Chunker Selector treats this like a ParseError for
// fallback purposes but it is reported distinctly for diagnostics.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("semparse: unsupported language %q", e.Language)
}
