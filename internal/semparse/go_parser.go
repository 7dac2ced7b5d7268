package semparse

import (
	"go/ast"
	"go/parser"
	"go/token"
)

// parseGo parses Go source with go/ast and converts the result
// directly into a Node tree. Grounded on the teacher's
// internal/indexer/parser.go parseGoFile/processGenDecl/
// processFuncDecl walk, generalized from the teacher's
// CodeExtraction/SymbolInfo shape into the language-agnostic Node
// tree every other language path also produces.
func parseGo(sourceID string, source []byte) (*Node, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, sourceID, source, parser.ParseComments)
	if err != nil {
		return nil, &ParseError{Language: "go", FilePath: sourceID, Err: err}
	}

	root := &Node{
		Kind:           "source_file",
		Classification: ClassUnknown,
		Importance:     baseImportance(ClassUnknown),
		Span: Span{
			StartLine: fset.Position(file.Pos()).Line,
			EndLine:   fset.Position(file.End()).Line,
			SourceID:  sourceID,
		},
		Text:      string(source),
		Composite: true,
		Name:      file.Name.Name,
	}

	for _, imp := range file.Imports {
		root.Children = append(root.Children, goImportNode(imp, fset, sourceID))
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			root.Children = append(root.Children, goGenDeclNodes(d, fset, sourceID)...)
		case *ast.FuncDecl:
			root.Children = append(root.Children, goFuncDeclNode(d, fset, sourceID))
		}
	}

	return root, nil
}

func goSpan(fset *token.FileSet, start, end token.Pos, sourceID string) Span {
	return Span{
		StartLine: fset.Position(start).Line,
		EndLine:   fset.Position(end).Line,
		SourceID:  sourceID,
	}
}

func goImportNode(imp *ast.ImportSpec, fset *token.FileSet, sourceID string) *Node {
	path := ""
	if imp.Path != nil {
		path = imp.Path.Value
	}
	cls, evidence := Classify("import_declaration", true, "go")
	return &Node{
		Kind:           "import_spec",
		Classification: cls,
		Importance:     baseImportance(cls),
		Span:           goSpan(fset, imp.Pos(), imp.End(), sourceID),
		Text:           path,
		Evidence:       evidence,
		Name:           path,
	}
}

// goGenDeclNodes handles type/const/var declarations, grounded on
// processGenDecl's ValueSpec/TypeSpec split.
func goGenDeclNodes(decl *ast.GenDecl, fset *token.FileSet, sourceID string) []*Node {
	var nodes []*Node
	for _, spec := range decl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			nodes = append(nodes, goTypeSpecNode(s, fset, sourceID))
		case *ast.ValueSpec:
			nodes = append(nodes, goValueSpecNodes(s, decl.Tok, fset, sourceID)...)
		}
	}
	return nodes
}

func goTypeSpecNode(spec *ast.TypeSpec, fset *token.FileSet, sourceID string) *Node {
	rawKind := "type_declaration"
	switch spec.Type.(type) {
	case *ast.StructType:
		rawKind = "struct_type"
	case *ast.InterfaceType:
		rawKind = "interface_type"
	}
	cls, evidence := Classify(rawKind, true, "go")
	return &Node{
		Kind:           rawKind,
		Classification: cls,
		Importance:     baseImportance(cls),
		Span:           goSpan(fset, spec.Pos(), spec.End(), sourceID),
		Evidence:       evidence,
		Name:           spec.Name.Name,
		Composite:      true,
	}
}

func goValueSpecNodes(spec *ast.ValueSpec, tok token.Token, fset *token.FileSet, sourceID string) []*Node {
	rawKind := "var_spec"
	if tok == token.CONST {
		rawKind = "const_spec"
	}
	var nodes []*Node
	for _, name := range spec.Names {
		cls, evidence := Classify(rawKind, true, "go")
		nodes = append(nodes, &Node{
			Kind:           rawKind,
			Classification: cls,
			Importance:     baseImportance(cls),
			Span:           goSpan(fset, spec.Pos(), spec.End(), sourceID),
			Evidence:       evidence,
			Name:           name.Name,
		})
	}
	return nodes
}

// goFuncDeclNode handles both plain functions and methods, grounded
// on processFuncDecl's receiver-presence branch.
func goFuncDeclNode(decl *ast.FuncDecl, fset *token.FileSet, sourceID string) *Node {
	rawKind := "function_declaration"
	if decl.Recv != nil && len(decl.Recv.List) > 0 {
		rawKind = "method_declaration"
	}
	cls, evidence := Classify(rawKind, true, "go")
	importance := baseImportance(cls)
	if decl.Name.IsExported() {
		for task := range importance {
			importance[task] = minFloat(1.0, importance[task]+0.05)
		}
	}
	return &Node{
		Kind:           rawKind,
		Classification: cls,
		Importance:     importance,
		Span:           goSpan(fset, decl.Pos(), decl.End(), sourceID),
		Evidence:       evidence,
		Name:           decl.Name.Name,
		Composite:      decl.Body != nil && len(decl.Body.List) > 0,
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
