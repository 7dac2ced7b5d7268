package chunk

import (
	"log"

	"github.com/codeweaver/codeweaver/internal/semparse"
)

// FallbackEvent is the structured log record spec.md C6 requires for
// every fallback hop, generalized from the teacher's [TIMING]/
// Warning: log.Printf vocabulary (internal/indexer's progress logs)
// into a typed struct instead of a free-form string.
type FallbackEvent struct {
	FilePath         string
	AttemptedChunker string
	ErrorClass       string
	NextAttempt      string
}

func logFallback(ev FallbackEvent) {
	log.Printf("Warning: chunker fallback file=%s attempted=%s error=%s next=%s",
		ev.FilePath, ev.AttemptedChunker, ev.ErrorClass, ev.NextAttempt)
}

// Selector routes each file to the best chunker and wraps the chain
// with graceful degradation (spec.md C6): semantic -> delimiter
// (family) -> delimiter (generic) -> recursive text splitter. Every
// hop down the chain is logged. Stateless after construction.
type Selector struct {
	parser    *semparse.Parser
	semantic  *SemanticChunker
	delimiter *DelimiterChunker
}

// NewSelector builds a Selector. delimiter is shared by both the
// semantic chunker's internal fallback and the selector's own
// delimiter/generic rungs.
func NewSelector(parser *semparse.Parser, semanticChunker *SemanticChunker, delimiterChunker *DelimiterChunker) *Selector {
	return &Selector{parser: parser, semantic: semanticChunker, delimiter: delimiterChunker}
}

// Chunk routes filePath/content through the full fallback chain.
func (s *Selector) Chunk(filePath string, content []byte) ([]Chunk, error) {
	language := semparse.LanguageForPath(filePath)

	if s.parser.SupportsLanguage(language) {
		chunks, err := s.semantic.Chunk(filePath, language, content)
		if err == nil {
			return chunks, nil
		}
		logFallback(FallbackEvent{
			FilePath:         filePath,
			AttemptedChunker: "semantic",
			ErrorClass:       errorClass(err),
			NextAttempt:      "delimiter",
		})
		if _, ok := err.(*BinaryFileError); ok {
			return nil, err
		}
	}

	chunks, err := s.delimiter.Chunk(filePath, language, content)
	if err == nil && len(chunks) > 0 {
		return chunks, nil
	}
	logFallback(FallbackEvent{
		FilePath:         filePath,
		AttemptedChunker: "delimiter",
		ErrorClass:       noMatchOrErr(err),
		NextAttempt:      "delimiter_generic",
	})

	chunks, err = s.delimiter.ChunkGeneric(filePath, language, content)
	if err == nil && len(chunks) > 0 {
		return chunks, nil
	}
	logFallback(FallbackEvent{
		FilePath:         filePath,
		AttemptedChunker: "delimiter_generic",
		ErrorClass:       noMatchOrErr(err),
		NextAttempt:      "recursive_text_splitter",
	})

	return s.finalFallback(filePath, language, content), nil
}

// finalFallback mirrors semantic.go's step 4 and delimiter_chunker.go's
// oversized-chunk path: the recursive text splitter has no notion of
// where within the parent text a piece came from, so every piece
// emitted here is stamped with the full span of the text it was split
// from (the whole file, in this last-resort rung), the same way those
// two callers stamp recursively-split pieces with their parent node's
// or parent chunk's span rather than a per-piece one.
func (s *Selector) finalFallback(filePath, language string, content []byte) []Chunk {
	text := string(content)
	startLine, endLine := 1, countLines(text)
	if endLine < startLine {
		endLine = startLine
	}
	pieces := RecursiveSplit(s.delimiter.counter, s.delimiter.family, text, s.delimiter.chunkLimit, s.delimiter.simpleOverlap)
	out := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		out = append(out, Chunk{
			ChunkID:     NewChunkID(),
			Content:     p,
			FilePath:    filePath,
			Language:    language,
			StartLine:   startLine,
			EndLine:     endLine,
			Source:      SourceFallback,
			ContentHash: ContentHash(p),
			TokenCount:  s.delimiter.counter.Count(p, s.delimiter.family),
		})
	}
	return out
}

func errorClass(err error) string {
	switch err.(type) {
	case *BinaryFileError:
		return "binary_file"
	case *semparse.ParseError:
		return "parse_error"
	case *semparse.DepthExceededError:
		return "depth_exceeded"
	case *semparse.UnsupportedLanguageError:
		return "unsupported_language"
	default:
		return "unknown_error"
	}
}

func noMatchOrErr(err error) string {
	if err == nil {
		return "no_match"
	}
	return errorClass(err)
}
