package semparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_LanguageExtensionWinsOverPattern(t *testing.T) {
	// "method" in Ruby's extension table maps to ClassFunction, while
	// the generic pattern fallback would also match "method" via
	// substring - the extension layer must win and report its own
	// evidence, not the pattern layer's.
	cls, evidence := Classify("method", false, "ruby")
	assert.Equal(t, ClassFunction, cls)
	assert.Contains(t, evidence, "language_extension")
}

func TestClassify_GrammarBasedRequiresNameField(t *testing.T) {
	cls, evidence := Classify("some_function_like_thing", false, "unknown-lang")
	// Without a name field grammar_based declines; the hierarchical
	// pattern fallback then classifies the kind by substring.
	assert.Equal(t, ClassFunction, cls)
	assert.Contains(t, evidence, "hierarchical_pattern")

	cls, evidence = Classify("some_function_like_thing", true, "unknown-lang")
	assert.Equal(t, ClassFunction, cls)
	assert.Contains(t, evidence, "grammar_based")
}

func TestClassify_HierarchicalFallback(t *testing.T) {
	cls, evidence := Classify("weird_loop_node", false, "unknown-lang")
	assert.Equal(t, ClassLoop, cls)
	assert.Contains(t, evidence, "hierarchical_pattern")
}

func TestClassify_Unknown(t *testing.T) {
	cls, evidence := Classify("totally_unrecognized_node", false, "unknown-lang")
	assert.Equal(t, ClassUnknown, cls)
	assert.Contains(t, evidence, "no classifier layer matched")
}

func TestNode_MaxImportance(t *testing.T) {
	n := &Node{Importance: map[AgentTask]float64{TaskDiscovery: 0.2, TaskDebugging: 0.9}}
	assert.Equal(t, 0.9, n.MaxImportance())
}

func TestNode_HasChunkableDescendant(t *testing.T) {
	leaf := &Node{Classification: ClassFunction, Importance: map[AgentTask]float64{TaskDiscovery: 0.9}}
	parent := &Node{Classification: ClassUnknown, Importance: map[AgentTask]float64{}, Children: []*Node{leaf}}
	assert.True(t, parent.HasChunkableDescendant(0.5))

	dead := &Node{Classification: ClassUnknown, Importance: map[AgentTask]float64{}}
	assert.False(t, dead.HasChunkableDescendant(0.5))
}

func TestLanguageForPath(t *testing.T) {
	cases := map[string]string{
		"main.go":        "go",
		"app.py":         "python",
		"index.ts":       "typescript",
		"lib.rs":         "rust",
		"Main.java":      "java",
		"script.rb":      "ruby",
		"index.php":      "php",
		"header.h":       "c",
		"README.txt":     "unknown",
		"no_extension":   "unknown",
	}
	for path, want := range cases {
		assert.Equal(t, want, LanguageForPath(path), "path=%s", path)
	}
}

func TestParser_SupportsLanguage(t *testing.T) {
	p := NewParser()
	assert.True(t, p.SupportsLanguage("go"))
	assert.True(t, p.SupportsLanguage("python"))
	assert.False(t, p.SupportsLanguage("cobol"))
}

func TestParser_ParseFile_UnknownLanguageReturnsNil(t *testing.T) {
	p := NewParser()
	node, err := p.ParseFile("data.unknownext", []byte("whatever"))
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestParser_Parse_UnsupportedLanguageError(t *testing.T) {
	p := NewParser()
	_, err := p.Parse("cobol", "x.cbl", []byte("IDENTIFICATION DIVISION."))
	require.Error(t, err)
	var target *UnsupportedLanguageError
	assert.ErrorAs(t, err, &target)
}

func TestParser_Parse_Go_FunctionsAndTypes(t *testing.T) {
	src := []byte(`package demo

import "fmt"

const MaxRetries = 3

type Widget struct {
	Name string
}

func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}

func (w *Widget) String() string {
	return fmt.Sprintf("Widget(%s)", w.Name)
}
`)
	p := NewParser()
	root, err := p.Parse("go", "demo.go", src)
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Equal(t, "demo", root.Name)

	var names []string
	var classes []Classification
	for _, c := range root.Children {
		names = append(names, c.Name)
		classes = append(classes, c.Classification)
	}
	assert.Contains(t, names, "NewWidget")
	assert.Contains(t, names, "String")
	assert.Contains(t, names, "Widget")
	assert.Contains(t, classes, ClassFunction)
	assert.Contains(t, classes, ClassMethod)
	assert.Contains(t, classes, ClassClass)
}

func TestParser_Parse_Go_SyntaxErrorWrapsParseError(t *testing.T) {
	p := NewParser()
	_, err := p.Parse("go", "broken.go", []byte("package demo\nfunc ( {"))
	require.Error(t, err)
	var target *ParseError
	assert.ErrorAs(t, err, &target)
}

func TestParser_Parse_Python_ClassesAndFunctions(t *testing.T) {
	src := []byte("class Greeter:\n    def hello(self):\n        return 'hi'\n\ndef standalone():\n    pass\n")
	p := NewParser()
	root, err := p.Parse("python", "greet.py", src)
	require.NoError(t, err)
	require.NotNil(t, root)

	var found []string
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Name != "" {
			found = append(found, n.Name)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	assert.Contains(t, found, "Greeter")
	assert.Contains(t, found, "hello")
	assert.Contains(t, found, "standalone")
}

func TestParser_Parse_DepthExceeded(t *testing.T) {
	// Deeply nested parenthesized expression drives tree-sitter's
	// concrete tree past the bounded depth.
	var b strings.Builder
	b.WriteString("x = ")
	for i := 0; i < 400; i++ {
		b.WriteString("(")
	}
	b.WriteString("1")
	for i := 0; i < 400; i++ {
		b.WriteString(")")
	}
	p := NewParser()
	_, err := p.Parse("python", "deep.py", []byte(b.String()))
	require.Error(t, err)
	var target *DepthExceededError
	assert.ErrorAs(t, err, &target)
}

func TestSupportedTreeSitterLanguages_ExcludesGo(t *testing.T) {
	langs := SupportedTreeSitterLanguages()
	assert.NotContains(t, langs, "go")
	assert.Contains(t, langs, "python")
	assert.Contains(t, langs, "rust")
}
