package delimiter

// catalog holds the Pattern set for each family. It is built once;
// DelimitersForFamily expands a family's patterns afresh on every call,
// without caching (module-level state limited to the immutable
// registry itself, per spec.md §9).
var catalog = map[Family][]Pattern{
	CStyle: {
		{Start: []string{"class ", "struct ", "interface "}, End: []string{"}"}, Kind: KindClass},
		{Start: []string{"func ", "function ", "public ", "private ", "protected ", "fn "}, End: []string{"}"}, Kind: KindFunction},
		{Start: []string{"{"}, End: []string{"}"}, Kind: KindBlock},
		{Start: []string{"//"}, End: []string{"\n"}, Kind: KindComment},
		{Start: []string{"/*"}, End: []string{"*/"}, Kind: KindComment},
		{Start: []string{"package ", "module ", "namespace "}, End: ANY, Kind: KindModuleBoundary},
	},
	PythonStyle: {
		{Start: []string{"class "}, End: ANY, Kind: KindClass},
		{Start: []string{"def "}, End: ANY, Kind: KindFunction},
		{Start: []string{"#"}, End: []string{"\n"}, Kind: KindComment},
		{Start: []string{"\"\"\""}, End: []string{"\"\"\""}, Kind: KindBlock},
	},
	MLStyle: {
		{Start: []string{"module "}, End: ANY, Kind: KindModuleBoundary},
		{Start: []string{"let "}, End: ANY, Kind: KindFunction},
		{Start: []string{"(*"}, End: []string{"*)"}, Kind: KindComment},
	},
	LispStyle: {
		{Start: []string{"(defun ", "(defmethod ", "(defn "}, End: []string{")"}, Kind: KindFunction, Nestable: boolPtr(true)},
		{Start: []string{"(defclass ", "(deftype "}, End: []string{")"}, Kind: KindClass, Nestable: boolPtr(true)},
		{Start: []string{";;"}, End: []string{"\n"}, Kind: KindComment},
	},
	MarkupStyle: {
		{Start: []string{"<!--"}, End: []string{"-->"}, Kind: KindComment},
		{Start: []string{"## "}, End: ANY, Kind: KindParagraph},
		{Start: []string{"# "}, End: ANY, Kind: KindModuleBoundary},
		{Start: []string{"```"}, End: []string{"```"}, Kind: KindBlock, Inclusive: boolPtr(true), TakeWholeLines: boolPtr(true)},
	},
	ShellStyle: {
		{Start: []string{"function "}, End: []string{"}"}, Kind: KindFunction},
		{Start: []string{"#"}, End: []string{"\n"}, Kind: KindComment},
		{Start: []string{"{"}, End: []string{"}"}, Kind: KindBlock},
	},
	Functional: {
		{Start: []string{"module "}, End: ANY, Kind: KindModuleBoundary},
		{Start: []string{"def "}, End: ANY, Kind: KindFunction},
		{Start: []string{"#"}, End: []string{"\n"}, Kind: KindComment},
	},
	LatexStyle: {
		{Start: []string{"\\section{", "\\chapter{"}, End: ANY, Kind: KindModuleBoundary},
		{Start: []string{"\\begin{"}, End: []string{"\\end{"}, Kind: KindBlock},
		{Start: []string{"%"}, End: []string{"\n"}, Kind: KindComment},
	},
	RubyStyle: {
		{Start: []string{"class ", "module "}, End: []string{"end\n"}, Kind: KindClass},
		{Start: []string{"def "}, End: []string{"end\n"}, Kind: KindFunction},
		{Start: []string{"#"}, End: []string{"\n"}, Kind: KindComment},
	},
	MatlabStyle: {
		{Start: []string{"classdef "}, End: []string{"end\n"}, Kind: KindClass},
		{Start: []string{"function "}, End: []string{"end\n"}, Kind: KindFunction},
		{Start: []string{"%"}, End: []string{"\n"}, Kind: KindComment},
	},
}

func boolPtr(b bool) *bool { return &b }

// DelimitersForFamily returns the concrete, expanded Delimiter set for a
// family.
func DelimitersForFamily(f Family) []Delimiter {
	patterns, ok := catalog[f]
	if !ok {
		return nil
	}
	var out []Delimiter
	for _, p := range patterns {
		out = append(out, Expand(p)...)
	}
	return out
}

// GenericDelimiters is the last-resort family for content whose family
// cannot be determined at all, using only blank-line ("\n\n")
// PARAGRAPH boundaries.
func GenericDelimiters() []Delimiter {
	return Expand(Pattern{Start: []string{"\n\n"}, End: ANY, Kind: KindParagraph})
}
