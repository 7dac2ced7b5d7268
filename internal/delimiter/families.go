// Package delimiter implements the pattern DSL that yields concrete
// open/close delimiters organized by language family (spec.md C3). The
// known-language table maps 52 file extensions to a family; any other
// extension is assigned a family by DetectFamily's content heuristic.
package delimiter

// Family groups languages that share syntactic delimiter conventions.
type Family string

const (
	CStyle      Family = "c_style"
	PythonStyle Family = "python_style"
	MLStyle     Family = "ml_style"
	LispStyle   Family = "lisp_style"
	MarkupStyle Family = "markup_style"
	ShellStyle  Family = "shell_style"
	Functional  Family = "functional"
	LatexStyle  Family = "latex_style"
	RubyStyle   Family = "ruby_style"
	MatlabStyle Family = "matlab_style"
)

// Kind names a delimiter's semantic role. Default priorities run
// MODULE_BOUNDARY (90) down to WHITESPACE (1).
type Kind string

const (
	KindModuleBoundary Kind = "MODULE_BOUNDARY"
	KindClass          Kind = "CLASS"
	KindFunction       Kind = "FUNCTION"
	KindBlock          Kind = "BLOCK"
	KindParagraph      Kind = "PARAGRAPH"
	KindComment        Kind = "COMMENT"
	KindWhitespace     Kind = "WHITESPACE"
)

// DefaultPriority returns the 1-100 scale default priority for a kind.
func DefaultPriority(k Kind) int {
	switch k {
	case KindModuleBoundary:
		return 90
	case KindClass:
		return 80
	case KindFunction:
		return 70
	case KindParagraph:
		return 40
	case KindBlock:
		return 30
	case KindComment:
		return 10
	case KindWhitespace:
		return 1
	default:
		return 20
	}
}

// languageFamilies is the O(1) known-language lookup table. Extensions
// are bare, without the leading dot.
var languageFamilies = map[string]Family{
	"go":    CStyle,
	"c":     CStyle,
	"h":     CStyle,
	"cpp":   CStyle,
	"cc":    CStyle,
	"hpp":   CStyle,
	"java":  CStyle,
	"cs":    CStyle,
	"js":    CStyle,
	"jsx":   CStyle,
	"ts":    CStyle,
	"tsx":   CStyle,
	"rs":    CStyle,
	"swift": CStyle,
	"kt":    CStyle,
	"php":   CStyle,
	"scala": CStyle,

	"py":  PythonStyle,
	"pyi": PythonStyle,

	"ml":  MLStyle,
	"mli": MLStyle,
	"fs":  MLStyle,
	"fsx": MLStyle,

	"lisp": LispStyle,
	"el":   LispStyle,
	"clj":  LispStyle,
	"cljs": LispStyle,
	"scm":  LispStyle,
	"rkt":  LispStyle,

	"html": MarkupStyle,
	"htm":  MarkupStyle,
	"xml":  MarkupStyle,
	"vue":  MarkupStyle,
	"svg":  MarkupStyle,
	"md":   MarkupStyle,
	"rst":  MarkupStyle,

	"sh":   ShellStyle,
	"bash": ShellStyle,
	"zsh":  ShellStyle,
	"fish": ShellStyle,

	"hs":     Functional,
	"elm":    Functional,
	"erl":    Functional,
	"ex":     Functional,
	"exs":    Functional,

	"tex": LatexStyle,
	"sty": LatexStyle,

	"rb":    RubyStyle,
	"erb":   RubyStyle,
	"rake":  RubyStyle,

	"m":    MatlabStyle,
	"mat":  MatlabStyle,
}

// FamilyForExtension returns the known family for an extension (without
// leading dot) in O(1), and whether it was found.
func FamilyForExtension(ext string) (Family, bool) {
	f, ok := languageFamilies[ext]
	return f, ok
}

// languageNameFamilies maps semparse's canonical language names (not
// file extensions) to a family, for callers that already know the
// language rather than the path it came from.
var languageNameFamilies = map[string]Family{
	"go":         CStyle,
	"c":          CStyle,
	"java":       CStyle,
	"javascript": CStyle,
	"typescript": CStyle,
	"rust":       CStyle,
	"php":        CStyle,
	"python":     PythonStyle,
	"ruby":       RubyStyle,
}

// FamilyForLanguage looks up a family by canonical language name
// (spec.md C2's language strings), distinct from FamilyForExtension's
// file-extension keys.
func FamilyForLanguage(language string) (Family, bool) {
	f, ok := languageNameFamilies[language]
	return f, ok
}

// characteristicDelimiters scores a content sample against each family's
// signature tokens, used by the heuristic family detector for unknown
// extensions (spec.md C3).
var characteristicDelimiters = map[Family][]string{
	CStyle:      {"{", "}", "//", "/*", ";"},
	PythonStyle: {"def ", "class ", ":\n", "#"},
	MLStyle:     {"let ", "in ", "match ", "(*"},
	LispStyle:   {"(defun", "(let", ";;"},
	MarkupStyle: {"<", "</", "/>"},
	ShellStyle:  {"#!/", "fi\n", "done\n", "#"},
	Functional:  {"module ", "->", "|>"},
	LatexStyle:  {"\\begin{", "\\end{", "\\"},
	RubyStyle:   {"def ", "end\n", "#", "@"},
	MatlabStyle: {"function ", "endfunction", "%"},
}

// DetectFamily scores a content sample's characteristic tokens per
// family and returns the best match. Used when an extension is not in
// the known-language table.
func DetectFamily(sample string) Family {
	best := CStyle
	bestScore := -1
	for fam, tokens := range characteristicDelimiters {
		score := 0
		for _, tok := range tokens {
			score += countOccurrences(sample, tok)
		}
		if score > bestScore {
			bestScore = score
			best = fam
		}
	}
	return best
}

func countOccurrences(s, substr string) int {
	if substr == "" {
		return 0
	}
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
