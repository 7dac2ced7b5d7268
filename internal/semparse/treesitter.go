package semparse

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// maxDepth bounds AST recursion. Past this depth a node is almost
// certainly pathological (generated code, minified blobs) rather than
// a tree worth chunking, so parsing aborts with DepthExceededError.
const maxDepth = 200

// treeSitterParser wraps a tree-sitter grammar for one language and
// turns its concrete syntax tree into the Node tree, assigning
// Classification/Importance/Evidence along the way. Grounded on the
// teacher's internal/indexer/parsers/treesitter.go walkTree/
// findChildByType/nodeToSymbolInfo pattern, extended with
// classification and bounded-depth tracking.
type treeSitterParser struct {
	language *sitter.Language
	lang     string
}

func newTreeSitterParser(language *sitter.Language, lang string) *treeSitterParser {
	return &treeSitterParser{language: language, lang: lang}
}

// treeSitterParsers maps a language name to its constructor. Built
// once; lookups are O(1) by language string (spec.md C2 dispatch).
var treeSitterParsers = map[string]func() *treeSitterParser{
	"python":     func() *treeSitterParser { return newTreeSitterParser(sitter.NewLanguage(python.Language()), "python") },
	"rust":       func() *treeSitterParser { return newTreeSitterParser(sitter.NewLanguage(rust.Language()), "rust") },
	"c":          func() *treeSitterParser { return newTreeSitterParser(sitter.NewLanguage(c.Language()), "c") },
	"java":       func() *treeSitterParser { return newTreeSitterParser(sitter.NewLanguage(java.Language()), "java") },
	"php":        func() *treeSitterParser { return newTreeSitterParser(sitter.NewLanguage(php.LanguagePHP()), "php") },
	"ruby":       func() *treeSitterParser { return newTreeSitterParser(sitter.NewLanguage(ruby.Language()), "ruby") },
	"typescript": func() *treeSitterParser { return newTreeSitterParser(sitter.NewLanguage(typescript.LanguageTypescript()), "typescript") },
}

// ParseSource parses source bytes for the parser's language and
// returns the root Node of the typed tree.
func (p *treeSitterParser) ParseSource(sourceID string, source []byte) (*Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.language)

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, &ParseError{Language: p.lang, FilePath: sourceID, Err: fmt.Errorf("tree-sitter returned no tree")}
	}
	defer tree.Close()

	root, err := p.convert(tree.RootNode(), source, sourceID, 0)
	if err != nil {
		return nil, err
	}
	return root, nil
}

// convert walks a tree-sitter node recursively, building the Node
// tree. depth is tracked explicitly and raises DepthExceededError
// rather than silently truncating, so the Chunker Selector can fall
// back cleanly instead of chunking a half-built tree.
func (p *treeSitterParser) convert(n *sitter.Node, source []byte, sourceID string, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, &DepthExceededError{Language: p.lang, FilePath: sourceID, MaxDepth: maxDepth}
	}

	kind := n.Kind()
	nameNode := n.ChildByFieldName("name")
	hasName := nameNode != nil

	cls, evidence := Classify(kind, hasName, p.lang)

	node := &Node{
		Kind:           kind,
		Classification: cls,
		Importance:     baseImportance(cls),
		Span: Span{
			StartLine: int(n.StartPosition().Row) + 1,
			EndLine:   int(n.EndPosition().Row) + 1,
			SourceID:  sourceID,
		},
		Text:      string(source[n.StartByte():n.EndByte()]),
		Evidence:  evidence,
		Composite: n.ChildCount() > 0,
	}
	if hasName {
		node.Name = string(source[nameNode.StartByte():nameNode.EndByte()])
	}

	childCount := int(n.ChildCount())
	for i := 0; i < childCount; i++ {
		child := n.Child(uint(i))
		if child == nil {
			continue
		}
		childNode, err := p.convert(child, source, sourceID, depth+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}

	return node, nil
}

// SupportedTreeSitterLanguages lists languages routed through the
// tree-sitter path (every registered language except Go, which uses
// go/ast directly).
func SupportedTreeSitterLanguages() []string {
	langs := make([]string, 0, len(treeSitterParsers))
	for l := range treeSitterParsers {
		langs = append(langs, l)
	}
	return langs
}
