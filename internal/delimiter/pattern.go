package delimiter

// Pattern is the DSL-level description of a delimiter before expansion:
// start tokens, end tokens (or ANY for "no end token"), a semantic
// kind, and optional overrides of the kind's defaults.
type Pattern struct {
	Start    []string
	End      []string // nil/empty means ANY: end is inferred from context
	Kind     Kind
	Families []Family

	Priority        *int
	Inclusive       *bool
	TakeWholeLines  *bool
	Nestable        *bool
}

// ANY is a sentinel used in End to mean "no end token" (used by
// delimiters whose close is implied, e.g. Python's def/class). The
// delimiter chunker ends such a span at the next ANY-ended start or at
// end of text; indentation is not tracked.
var ANY = []string{}

// Delimiter is the concrete, expanded form of a Pattern: one start
// token paired with one end token (or ANY), ready for scanning.
type Delimiter struct {
	Start          string
	End            string // empty means ANY
	Kind           Kind
	Priority       int
	Inclusive      bool
	TakeWholeLines bool
	Nestable       bool
}

// lineTerminators are appended to any pattern whose tokens are
// sensitive to line endings, so all three variants are matched.
var lineTerminators = []string{"\n", "\r\n", "\r"}

// Expand produces concrete Delimiters from a Pattern, applying kind
// defaults and caller overrides, and including \n/\r\n/\r variants for
// any token containing a literal newline marker.
func Expand(p Pattern) []Delimiter {
	priority := DefaultPriority(p.Kind)
	if p.Priority != nil {
		priority = *p.Priority
	}
	inclusive := false
	if p.Inclusive != nil {
		inclusive = *p.Inclusive
	}
	wholeLines := false
	if p.TakeWholeLines != nil {
		wholeLines = *p.TakeWholeLines
	}
	nestable := true
	if p.Nestable != nil {
		nestable = *p.Nestable
	}

	ends := p.End
	isAny := len(ends) == 0

	var out []Delimiter
	for _, start := range p.Start {
		starts := expandLineSensitive(start)
		if isAny {
			for _, s := range starts {
				out = append(out, Delimiter{
					Start: s, End: "", Kind: p.Kind, Priority: priority,
					Inclusive: inclusive, TakeWholeLines: wholeLines, Nestable: nestable,
				})
			}
			continue
		}
		for _, s := range starts {
			for _, e := range ends {
				for _, ee := range expandLineSensitive(e) {
					out = append(out, Delimiter{
						Start: s, End: ee, Kind: p.Kind, Priority: priority,
						Inclusive: inclusive, TakeWholeLines: wholeLines, Nestable: nestable,
					})
				}
			}
		}
	}
	return out
}

// expandLineSensitive returns the \n/\r\n/\r variants of a token when it
// contains a line-terminator placeholder ("\n"), otherwise just the
// token itself.
func expandLineSensitive(token string) []string {
	const placeholder = "\n"
	if !containsNewlinePlaceholder(token) {
		return []string{token}
	}
	variants := make([]string, 0, len(lineTerminators))
	for _, term := range lineTerminators {
		variants = append(variants, replaceAll(token, placeholder, term))
	}
	return variants
}

func containsNewlinePlaceholder(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return true
		}
	}
	return false
}

func replaceAll(s, old, new string) string {
	if old == "" {
		return s
	}
	var b []byte
	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && s[i:i+len(old)] == old {
			b = append(b, new...)
			i += len(old)
			continue
		}
		b = append(b, s[i])
		i++
	}
	return string(b)
}
