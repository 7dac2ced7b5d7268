package semparse

import (
	"path/filepath"
	"strings"
)

// Parser parses source into a typed Node tree. One Parser instance
// is safe for concurrent use once constructed: tree-sitter parsers
// are built fresh per ParseSource call (mirroring the teacher's
// per-call sitter.NewParser()), so there is no shared mutable state
// beyond the registered *sitter.Language values, which are themselves
// immutable after construction.
type Parser struct {
	treeSitter map[string]func() *treeSitterParser
}

// NewParser builds a Parser supporting Go (via go/ast) plus every
// language with a registered tree-sitter grammar.
func NewParser() *Parser {
	return &Parser{treeSitter: treeSitterParsers}
}

// LanguageForPath detects a language from a file extension, mirroring
// the teacher's detectLanguage.
func LanguageForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	ext = strings.TrimPrefix(ext, ".")
	switch ext {
	case "go":
		return "go"
	case "ts", "tsx":
		return "typescript"
	case "py":
		return "python"
	case "rs":
		return "rust"
	case "c", "h":
		return "c"
	case "java":
		return "java"
	case "php":
		return "php"
	case "rb":
		return "ruby"
	default:
		return "unknown"
	}
}

// SupportsLanguage reports whether Parse can handle the given
// language string.
func (p *Parser) SupportsLanguage(language string) bool {
	if language == "go" {
		return true
	}
	_, ok := p.treeSitter[language]
	return ok
}

// SupportedLanguages lists every language this Parser can route, Go
// first since it is the special-cased path.
func (p *Parser) SupportedLanguages() []string {
	langs := []string{"go"}
	for l := range p.treeSitter {
		langs = append(langs, l)
	}
	return langs
}

// Parse parses source bytes identified by sourceID (typically a file
// path) for the given language and returns the root Node. Returns
// UnsupportedLanguageError for languages with no registered parser,
// ParseError when the underlying grammar/compiler rejects the source,
// and, for the tree-sitter languages, DepthExceededError when the AST
// recurses past the bounded depth (200, spec.md C2); the Go path applies
// no depth bound.
func (p *Parser) Parse(language, sourceID string, source []byte) (*Node, error) {
	if language == "go" {
		return parseGo(sourceID, source)
	}
	ctor, ok := p.treeSitter[language]
	if !ok {
		return nil, &UnsupportedLanguageError{Language: language}
	}
	return ctor().ParseSource(sourceID, source)
}

// ParseFile detects the language from the path's extension and parses
// it. A nil, nil return (no error, no node) signals a language
// CodeWeaver does not attempt to parse at all; callers route such
// files straight to the Delimiter Chunker (C5) rather than treating
// it as a failure worth a FallbackEvent.
func (p *Parser) ParseFile(path string, source []byte) (*Node, error) {
	language := LanguageForPath(path)
	if language == "unknown" {
		return nil, nil
	}
	return p.Parse(language, path, source)
}
