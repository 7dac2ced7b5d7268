package chunk

import (
	"sort"
	"strings"

	"github.com/codeweaver/codeweaver/internal/delimiter"
	"github.com/codeweaver/codeweaver/internal/tokenizer"
)

// DelimiterChunker implements the three-phase pattern-driven chunker
// (spec.md C5): match detection, boundary extraction with LIFO
// nesting, priority/overlap resolution. Stateless after construction.
type DelimiterChunker struct {
	counter       tokenizer.Counter
	family        tokenizer.ModelFamily
	chunkLimit    int
	simpleOverlap int
}

// NewDelimiterChunker builds a DelimiterChunker.
func NewDelimiterChunker(counter tokenizer.Counter, family tokenizer.ModelFamily, chunkLimit, simpleOverlap int) *DelimiterChunker {
	return &DelimiterChunker{counter: counter, family: family, chunkLimit: chunkLimit, simpleOverlap: simpleOverlap}
}

type match struct {
	delim    delimiter.Delimiter
	token    string // the specific start/end token matched
	pos      int
	isStart  bool
}

type boundary struct {
	delim   delimiter.Delimiter
	start   int
	end     int
	nesting int
}

// Chunk chunks content using the family's delimiter catalog. language
// is looked up first as a canonical language name, then as a file
// extension; when neither is known, the family is picked by
// delimiter.DetectFamily from the content itself.
func (c *DelimiterChunker) Chunk(filePath, language string, content []byte) ([]Chunk, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return []Chunk{}, nil
	}

	fam, ok := delimiter.FamilyForLanguage(language)
	if !ok {
		fam, ok = delimiter.FamilyForExtension(language)
	}
	var delims []delimiter.Delimiter
	if ok {
		delims = delimiter.DelimitersForFamily(fam)
	} else {
		delims = delimiter.DelimitersForFamily(delimiter.DetectFamily(text))
	}
	return c.chunkWithDelimiters(filePath, language, text, delims)
}

// ChunkGeneric chunks with the generic, language-agnostic paragraph
// delimiter set — the selector's second fallback rung (spec.md C6:
// "catch a delimiter no-match and fall back to a generic-family
// Delimiter Chunker").
func (c *DelimiterChunker) ChunkGeneric(filePath, language string, content []byte) ([]Chunk, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return []Chunk{}, nil
	}
	return c.chunkWithDelimiters(filePath, language, text, delimiter.GenericDelimiters())
}

func (c *DelimiterChunker) chunkWithDelimiters(filePath, language, text string, delims []delimiter.Delimiter) ([]Chunk, error) {
	matches := findMatches(text, delims)
	if len(matches) == 0 {
		return []Chunk{}, nil
	}

	boundaries := extractBoundaries(text, matches)
	accepted := resolveBoundaries(boundaries)

	var out []Chunk
	var prevEnd int
	for _, b := range accepted {
		chunkText := sliceChunk(text, b)
		if strings.TrimSpace(chunkText) == "" {
			continue
		}
		if b.delim.TakeWholeLines {
			chunkText = expandToWholeLines(text, chunkText, b)
		}
		if c.simpleOverlap > 0 && prevEnd > 0 && prevEnd < b.start {
			prefix := overlapPrefix(text, prevEnd, c.simpleOverlap)
			chunkText = prefix + chunkText
		}
		out = append(out, c.emit(filePath, language, chunkText, text, b))
		prevEnd = b.end
	}

	// All chunks oversized -> recursive text splitter as final step.
	var final []Chunk
	anyOversized := false
	for _, ch := range out {
		if c.counter.Count(ch.Content, c.family) > c.chunkLimit {
			anyOversized = true
			for _, piece := range RecursiveSplit(c.counter, c.family, ch.Content, c.chunkLimit, c.simpleOverlap) {
				final = append(final, Chunk{
					ChunkID:     NewChunkID(),
					Content:     piece,
					FilePath:    filePath,
					Language:    language,
					StartLine:   ch.StartLine,
					EndLine:     ch.EndLine,
					Source:      SourceFallback,
					ContentHash: ContentHash(piece),
					TokenCount:  c.counter.Count(piece, c.family),
					Metadata:    ch.Metadata,
				})
			}
		} else {
			final = append(final, ch)
		}
	}
	if !anyOversized {
		return out, nil
	}
	return final, nil
}

func (c *DelimiterChunker) emit(filePath, language, chunkText, fullText string, b boundary) Chunk {
	startLine := 1 + strings.Count(fullText[:b.start], "\n")
	endLine := 1 + strings.Count(fullText[:b.end], "\n")
	return Chunk{
		ChunkID:     NewChunkID(),
		Content:     chunkText,
		FilePath:    filePath,
		Language:    language,
		StartLine:   startLine,
		EndLine:     endLine,
		Source:      SourceDelimiter,
		ContentHash: ContentHash(chunkText),
		TokenCount:  c.counter.Count(chunkText, c.family),
		Metadata: Metadata{
			Classification: string(b.delim.Kind),
		},
	}
}

// findMatches is Phase A: scan with every configured start (and,
// where distinct, end) token and record raw positions.
func findMatches(text string, delims []delimiter.Delimiter) []match {
	var matches []match
	for _, d := range delims {
		for _, pos := range allIndexes(text, d.Start) {
			matches = append(matches, match{delim: d, token: d.Start, pos: pos, isStart: true})
		}
		if d.End != "" {
			for _, pos := range allIndexes(text, d.End) {
				matches = append(matches, match{delim: d, token: d.End, pos: pos, isStart: false})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })
	return matches
}

func allIndexes(text, sub string) []int {
	if sub == "" {
		return nil
	}
	var out []int
	from := 0
	for {
		idx := strings.Index(text[from:], sub)
		if idx < 0 {
			break
		}
		out = append(out, from+idx)
		from = from + idx + len(sub)
	}
	return out
}

// extractBoundaries is Phase B: walk matches left-to-right
// maintaining a stack per spec.md C5. Nestable delimiters pop LIFO;
// non-nestable find the nearest open of matching kind.
func extractBoundaries(text string, matches []match) []boundary {
	type open struct {
		m       match
		nesting int
	}
	var stack []open
	var out []boundary

	for _, m := range matches {
		if m.delim.End == "" {
			// ANY-ended delimiter: closes at the next ANY-ended start or
			// end of text, handled after the loop as a special case.
			continue
		}
		if m.isStart {
			stack = append(stack, open{m: m, nesting: len(stack)})
			continue
		}
		// end token: find matching open.
		if len(stack) == 0 {
			continue
		}
		if m.delim.Nestable {
			// Pop the most recent open of the same delimiter kind.
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].m.delim.Kind == m.delim.Kind {
					o := stack[i]
					stack = append(stack[:i], stack[i+1:]...)
					out = append(out, boundary{delim: o.m.delim, start: o.m.pos, end: m.pos + len(m.token), nesting: o.nesting})
					break
				}
			}
		} else {
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].m.delim.Kind == m.delim.Kind {
					o := stack[i]
					stack = stack[:i]
					out = append(out, boundary{delim: o.m.delim, start: o.m.pos, end: m.pos + len(m.token), nesting: o.nesting})
					break
				}
			}
		}
	}

	out = append(out, anyEndedBoundaries(text, matches)...)
	return out
}

// anyEndedBoundaries handles delimiters whose End is ANY (expanded to
// ""): each such delimiter's span runs from its start to just before
// the next start of any ANY-ended delimiter (whatever its kind or
// priority), or to end of text.
func anyEndedBoundaries(text string, matches []match) []boundary {
	var starts []match
	for _, m := range matches {
		if m.isStart && m.delim.End == "" {
			starts = append(starts, m)
		}
	}
	var out []boundary
	for i, m := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1].pos
		}
		out = append(out, boundary{delim: m.delim, start: m.pos, end: end, nesting: 0})
	}
	return out
}

// resolveBoundaries is Phase C: sort by (-priority, -length,
// start_pos), greedily accept non-overlapping boundaries, then
// re-sort accepted boundaries by start position for emission.
func resolveBoundaries(boundaries []boundary) []boundary {
	sort.Slice(boundaries, func(i, j int) bool {
		a, b := boundaries[i], boundaries[j]
		if a.delim.Priority != b.delim.Priority {
			return a.delim.Priority > b.delim.Priority
		}
		lenA, lenB := a.end-a.start, b.end-b.start
		if lenA != lenB {
			return lenA > lenB
		}
		return a.start < b.start
	})

	var accepted []boundary
	for _, b := range boundaries {
		overlaps := false
		for _, a := range accepted {
			if b.start < a.end && a.start < b.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			accepted = append(accepted, b)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })
	return accepted
}

func sliceChunk(text string, b boundary) string {
	start, end := b.start, b.end
	if !b.delim.Inclusive {
		start += len(b.delim.Start)
	}
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	return text[start:end]
}

func expandToWholeLines(fullText, chunkText string, b boundary) string {
	start := b.start
	for start > 0 && fullText[start-1] != '\n' {
		start--
	}
	end := b.end
	for end < len(fullText) && fullText[end] != '\n' {
		end++
	}
	if end < len(fullText) {
		end++
	}
	if start > end || start > len(fullText) {
		return chunkText
	}
	return fullText[start:end]
}

func overlapPrefix(text string, fromPos, overlap int) string {
	start := fromPos - overlap
	if start < 0 {
		start = 0
	}
	if start > len(text) {
		return ""
	}
	end := fromPos
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		return ""
	}
	return text[start:end]
}
