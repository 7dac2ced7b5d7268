package chunk

import (
	"bytes"
	"strings"

	"github.com/codeweaver/codeweaver/internal/semparse"
	"github.com/codeweaver/codeweaver/internal/tokenizer"
)

// DefaultImportanceThreshold is the minimum importance score (on any
// agent task) a node needs to be chunkable on its own.
const DefaultImportanceThreshold = 0.3

// BinaryFileError is raised when file content contains a NUL byte,
// the edge case the Semantic Chunker must short-circuit before
// attempting to parse.
type BinaryFileError struct {
	FilePath string
}

func (e *BinaryFileError) Error() string {
	return "chunk: binary content detected in " + e.FilePath
}

// SemanticChunker walks a semparse.Node tree and emits chunks for
// chunkable nodes, falling back to the Delimiter Chunker and finally
// the recursive text splitter for oversized nodes (spec.md C4).
// Stateless after construction so one instance is safe to share
// across parallel file workers (spec.md C6).
type SemanticChunker struct {
	parser              *semparse.Parser
	delimiter           *DelimiterChunker
	counter             tokenizer.Counter
	family              tokenizer.ModelFamily
	chunkLimit          int
	simpleOverlap       int
	importanceThreshold float64
}

// NewSemanticChunker builds a SemanticChunker. chunkLimit and
// simpleOverlap are expressed in tokens under family.
func NewSemanticChunker(parser *semparse.Parser, delimiter *DelimiterChunker, counter tokenizer.Counter, family tokenizer.ModelFamily, chunkLimit, simpleOverlap int) *SemanticChunker {
	return &SemanticChunker{
		parser:              parser,
		delimiter:           delimiter,
		counter:             counter,
		family:              family,
		chunkLimit:          chunkLimit,
		simpleOverlap:       simpleOverlap,
		importanceThreshold: DefaultImportanceThreshold,
	}
}

// Chunk chunks one file's content. language must be one the
// underlying semparse.Parser supports; callers route unsupported
// languages to the Delimiter Chunker directly (selector's job, C6).
func (c *SemanticChunker) Chunk(filePath, language string, content []byte) ([]Chunk, error) {
	if bytes.IndexByte(content, 0) != -1 {
		return nil, &BinaryFileError{FilePath: filePath}
	}
	if edge, ok := edgeCaseChunks(filePath, language, content); ok {
		return edge, nil
	}

	root, err := c.parser.Parse(language, filePath, content)
	if err != nil {
		return nil, err
	}

	var out []Chunk
	c.walk(root, filePath, language, 0, &out)
	return out, nil
}

// edgeCaseChunks handles the cases spec.md C4 says must short-circuit
// before parsing is attempted at all.
func edgeCaseChunks(filePath, language string, content []byte) ([]Chunk, bool) {
	if len(content) == 0 {
		return []Chunk{}, true
	}
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return []Chunk{edgeCaseChunk(filePath, language, text, 1, countLines(text))}, true
	}
	if countLines(text) <= 1 {
		return []Chunk{edgeCaseChunk(filePath, language, text, 1, 1)}, true
	}
	return nil, false
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func edgeCaseChunk(filePath, language, text string, start, end int) Chunk {
	return Chunk{
		ChunkID:     NewChunkID(),
		Content:     text,
		FilePath:    filePath,
		Language:    language,
		StartLine:   start,
		EndLine:     end,
		Source:      SourceEdgeCase,
		ContentHash: ContentHash(text),
	}
}

// walk implements the four-step size-management rule, collecting
// chunks for node into out.
func (c *SemanticChunker) walk(n *semparse.Node, filePath, language string, depth int, out *[]Chunk) {
	if !isChunkable(n, c.importanceThreshold) {
		for _, child := range n.Children {
			c.walk(child, filePath, language, depth+1, out)
		}
		return
	}

	tokens := c.counter.Count(n.Text, c.family)

	// Step 1: fits within chunk_limit as-is.
	if tokens <= c.chunkLimit {
		*out = append(*out, c.buildChunk(n, filePath, language, depth, SourceSemantic))
		return
	}

	// Step 2: composite - recurse into children, each handled by the
	// same rule (oversized children fall through to steps 3/4).
	if n.Composite && len(n.Children) > 0 {
		before := len(*out)
		for _, child := range n.Children {
			c.walk(child, filePath, language, depth+1, out)
		}
		if len(*out) > before {
			return
		}
	}

	// Step 3: fall back to the Delimiter Chunker over node.text,
	// annotated with the parent semantic kind for context.
	if c.delimiter != nil {
		delimChunks, err := c.delimiter.Chunk(filePath, language, []byte(n.Text))
		if err == nil && len(delimChunks) > 0 {
			for i := range delimChunks {
				delimChunks[i].Metadata.SymbolName = n.Name
				delimChunks[i].Metadata.Classification = string(n.Classification)
				delimChunks[i].StartLine += n.Span.StartLine - 1
				delimChunks[i].EndLine += n.Span.StartLine - 1
			}
			*out = append(*out, delimChunks...)
			return
		}
	}

	// Step 4: last resort, recursive text splitter.
	pieces := RecursiveSplit(c.counter, c.family, n.Text, c.chunkLimit, c.simpleOverlap)
	for _, p := range pieces {
		*out = append(*out, Chunk{
			ChunkID:     NewChunkID(),
			Content:     p,
			FilePath:    filePath,
			Language:    language,
			StartLine:   n.Span.StartLine,
			EndLine:     n.Span.EndLine,
			Source:      SourceFallback,
			ContentHash: ContentHash(p),
			TokenCount:  c.counter.Count(p, c.family),
			Metadata: Metadata{
				SymbolName:     n.Name,
				Classification: string(n.Classification),
			},
		})
	}
}

func (c *SemanticChunker) buildChunk(n *semparse.Node, filePath, language string, depth int, source Source) Chunk {
	importance := make(map[string]float64, len(n.Importance))
	for task, v := range n.Importance {
		importance[string(task)] = v
	}
	return Chunk{
		ChunkID:     NewChunkID(),
		Content:     n.Text,
		FilePath:    filePath,
		Language:    language,
		StartLine:   n.Span.StartLine,
		EndLine:     n.Span.EndLine,
		Source:      source,
		ContentHash: ContentHash(n.Text),
		TokenCount:  c.counter.Count(n.Text, c.family),
		Metadata: Metadata{
			SymbolName:     n.Name,
			Classification: string(n.Classification),
			Importance:     importance,
			Evidence:       n.Evidence,
		},
	}
}

// isChunkable mirrors spec.md C4: non-UNKNOWN classification with at
// least one importance score at or above threshold, or composite with
// a chunkable descendant.
func isChunkable(n *semparse.Node, threshold float64) bool {
	if n.Classification != semparse.ClassUnknown && n.MaxImportance() >= threshold {
		return true
	}
	return n.Composite && n.HasChunkableDescendant(threshold)
}
