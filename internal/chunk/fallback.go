package chunk

import (
	"strings"

	"github.com/codeweaver/codeweaver/internal/tokenizer"
)

// splitSeparators are tried in order, widest first, mirroring the
// teacher's paragraph → sentence cascade in ChunkDocument's
// processSection/splitByParagraphs/splitLargeParagraph steps, but
// generalized into one recursive splitter usable as the terminal step
// for both the Semantic and Delimiter chunkers.
var splitSeparators = []string{"\n\n", "\n", ". ", " "}

// RecursiveSplit is the last-resort chunker (spec.md C4 step 4 / C5
// "all chunks oversized" failure mode): split on the widest separator
// that yields pieces within chunk_limit, falling back to narrower
// separators, and finally hard-splitting by rune count.
func RecursiveSplit(counter tokenizer.Counter, family tokenizer.ModelFamily, text string, chunkLimit, overlap int) []string {
	if counter.Count(text, family) <= chunkLimit {
		return []string{text}
	}
	return recursiveSplit(counter, family, text, chunkLimit, overlap, 0)
}

func recursiveSplit(counter tokenizer.Counter, family tokenizer.ModelFamily, text string, chunkLimit, overlap, sepIdx int) []string {
	if counter.Count(text, family) <= chunkLimit {
		return []string{text}
	}
	if sepIdx >= len(splitSeparators) {
		return hardSplit(counter, family, text, chunkLimit, overlap)
	}

	pieces := strings.Split(text, splitSeparators[sepIdx])
	if len(pieces) <= 1 {
		return recursiveSplit(counter, family, text, chunkLimit, overlap, sepIdx+1)
	}

	var out []string
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		piece := current.String()
		if counter.Count(piece, family) > chunkLimit {
			out = append(out, recursiveSplit(counter, family, piece, chunkLimit, overlap, sepIdx+1)...)
		} else {
			out = append(out, piece)
		}
		current.Reset()
	}

	sep := splitSeparators[sepIdx]
	for _, p := range pieces {
		candidate := p
		if current.Len() > 0 {
			candidate = current.String() + sep + p
		}
		if current.Len() > 0 && counter.Count(candidate, family) > chunkLimit {
			flush()
			current.WriteString(p)
		} else {
			current.Reset()
			current.WriteString(candidate)
		}
	}
	flush()

	return applyOverlap(out, overlap)
}

// hardSplit splits by rune count when no separator helps, e.g. a
// single token longer than chunk_limit.
func hardSplit(counter tokenizer.Counter, family tokenizer.ModelFamily, text string, chunkLimit, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	// Approximate a safe rune window from the heuristic ratio (~4
	// chars/token) and shrink it until it fits, bounding the number of
	// Count calls on pathological input.
	window := chunkLimit * 4
	if window < 1 {
		window = 1
	}
	var out []string
	for len(runes) > 0 {
		w := window
		if w > len(runes) {
			w = len(runes)
		}
		for w > 1 && counter.Count(string(runes[:w]), family) > chunkLimit {
			w = w / 2
		}
		out = append(out, string(runes[:w]))
		runes = runes[w:]
	}
	return applyOverlap(out, overlap)
}

// applyOverlap prepends the trailing overlap characters of the
// previous piece to each subsequent piece, mirroring simple_overlap.
func applyOverlap(pieces []string, overlap int) []string {
	if overlap <= 0 || len(pieces) < 2 {
		return pieces
	}
	out := make([]string, len(pieces))
	out[0] = pieces[0]
	for i := 1; i < len(pieces); i++ {
		prev := []rune(pieces[i-1])
		start := len(prev) - overlap
		if start < 0 {
			start = 0
		}
		out[i] = string(prev[start:]) + pieces[i]
	}
	return out
}
