package query

import "strings"

// Intent is the coarse task category a query is classified into,
// reusing semparse's AgentTask vocabulary so a ranker can weight chunk
// importance vectors by the same five categories the chunker already
// scores nodes against.
type Intent string

const (
	IntentDiscovery     Intent = "discovery"
	IntentComprehension Intent = "comprehension"
	IntentModification  Intent = "modification"
	IntentDebugging     Intent = "debugging"
	IntentDocumentation Intent = "documentation"
	IntentUnknown       Intent = "unknown"
)

// intentKeywords is a small heuristic lexicon; this step is explicitly
// optional and never fatal per spec.md §4.11 step 1; an empty or
// unmatched query simply classifies as unknown and downstream ranking
// treats that as "no weighting preference".
var intentKeywords = map[Intent][]string{
	IntentDebugging:     {"bug", "error", "fail", "crash", "panic", "exception", "broken", "fix"},
	IntentModification:  {"change", "refactor", "rename", "add", "implement", "update", "remove"},
	IntentDocumentation: {"document", "explain", "how does", "what is", "describe"},
	IntentDiscovery:     {"where is", "find", "locate", "list", "which file"},
	IntentComprehension: {"understand", "why", "how"},
}

// ClassifyIntent runs the heuristic lexicon over query. Caller-supplied
// explicit intent (the find_code `intent?` parameter) should always
// take precedence over this; ClassifyIntent only fills the gap when
// intent is omitted.
func ClassifyIntent(queryText string) Intent {
	lower := strings.ToLower(queryText)
	for _, intent := range []Intent{IntentDebugging, IntentModification, IntentDocumentation, IntentDiscovery, IntentComprehension} {
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(lower, kw) {
				return intent
			}
		}
	}
	return IntentUnknown
}
