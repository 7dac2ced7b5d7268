package semparse

import "strings"

// classifierLayer is one stage of the layered classification pipeline.
// Layers are tried in priority order (language-specific extensions
// first, then grammar-based inference, then the hierarchical pattern
// fallback); on disagreement the higher-priority layer wins. A layer
// that cannot classify a node returns ok=false.
type classifierLayer struct {
	name    string
	classify func(rawKind string, hasNameField bool, language string) (Classification, float64, bool)
}

// languageExtensions holds per-language overrides that win over the
// generic grammar-based and pattern-fallback layers, e.g. languages
// whose grammar names a production "arrow_function" rather than the
// generic "function_declaration".
var languageExtensions = map[string]map[string]Classification{
	"python": {
		"function_definition": ClassFunction,
		"class_definition":    ClassClass,
		"decorated_definition": ClassFunction,
		"import_statement":    ClassImport,
		"import_from_statement": ClassImport,
		"for_statement":       ClassLoop,
		"while_statement":     ClassLoop,
		"if_statement":        ClassConditional,
		"comment":             ClassComment,
	},
	"javascript": {
		"function_declaration": ClassFunction,
		"arrow_function":        ClassFunction,
		"method_definition":     ClassMethod,
		"class_declaration":     ClassClass,
		"import_statement":      ClassImport,
		"for_statement":         ClassLoop,
		"while_statement":       ClassLoop,
		"if_statement":          ClassConditional,
		"comment":               ClassComment,
	},
	"typescript": {
		"function_declaration":  ClassFunction,
		"arrow_function":        ClassFunction,
		"method_definition":     ClassMethod,
		"class_declaration":     ClassClass,
		"interface_declaration": ClassClass,
		"import_statement":      ClassImport,
		"comment":               ClassComment,
	},
	"rust": {
		"function_item": ClassFunction,
		"impl_item":     ClassClass,
		"struct_item":   ClassClass,
		"use_declaration": ClassImport,
		"for_expression":  ClassLoop,
		"while_expression": ClassLoop,
		"if_expression":    ClassConditional,
		"line_comment":     ClassComment,
		"block_comment":    ClassComment,
	},
	"java": {
		"method_declaration": ClassMethod,
		"class_declaration":  ClassClass,
		"interface_declaration": ClassClass,
		"import_declaration": ClassImport,
		"for_statement":       ClassLoop,
		"while_statement":     ClassLoop,
		"if_statement":        ClassConditional,
		"line_comment":        ClassComment,
	},
	"ruby": {
		"method":  ClassFunction,
		"class":   ClassClass,
		"module":  ClassClass,
		"for":     ClassLoop,
		"while":   ClassLoop,
		"if":      ClassConditional,
		"comment": ClassComment,
	},
	"php": {
		"function_definition":  ClassFunction,
		"method_declaration":   ClassMethod,
		"class_declaration":    ClassClass,
		"namespace_use_declaration": ClassImport,
		"comment":              ClassComment,
	},
	"c": {
		"function_definition": ClassFunction,
		"struct_specifier":    ClassClass,
		"preproc_include":     ClassImport,
		"for_statement":       ClassLoop,
		"while_statement":     ClassLoop,
		"if_statement":        ClassConditional,
		"comment":             ClassComment,
	},
	"go": {
		"function_declaration": ClassFunction,
		"method_declaration":   ClassMethod,
		"type_declaration":     ClassClass,
		"import_declaration":   ClassImport,
		"for_statement":        ClassLoop,
		"if_statement":         ClassConditional,
		"comment":              ClassComment,
	},
}

// hierarchicalPatterns is the last-resort, language-agnostic fallback:
// substring matches against the raw grammar kind name.
var hierarchicalPatterns = []struct {
	substr string
	class  Classification
}{
	{"function", ClassFunction},
	{"method", ClassMethod},
	{"class", ClassClass},
	{"struct", ClassClass},
	{"interface", ClassClass},
	{"impl", ClassClass},
	{"for", ClassLoop},
	{"while", ClassLoop},
	{"loop", ClassLoop},
	{"if", ClassConditional},
	{"switch", ClassConditional},
	{"match", ClassConditional},
	{"import", ClassImport},
	{"use_declaration", ClassImport},
	{"comment", ClassComment},
	{"string_literal", ClassLiteral},
	{"number_literal", ClassLiteral},
	{"identifier", ClassIdentifier},
	{"block", ClassBlock},
}

var layers = []classifierLayer{
	{
		name: "language_extension",
		classify: func(rawKind string, _ bool, language string) (Classification, float64, bool) {
			if table, ok := languageExtensions[language]; ok {
				if cls, ok := table[rawKind]; ok {
					return cls, 1.0, true
				}
			}
			return "", 0, false
		},
	},
	{
		name: "grammar_based",
		classify: func(rawKind string, hasNameField bool, _ string) (Classification, float64, bool) {
			// A node carrying a "name" field and whose kind contains a
			// structural keyword is classified with high confidence
			// purely from the grammar shape, without language-specific
			// tables. Confidence fixed at 0.85, the documented floor.
			if !hasNameField {
				return "", 0, false
			}
			lower := strings.ToLower(rawKind)
			switch {
			case strings.Contains(lower, "function") || strings.Contains(lower, "method"):
				return ClassFunction, 0.85, true
			case strings.Contains(lower, "class") || strings.Contains(lower, "struct") || strings.Contains(lower, "interface"):
				return ClassClass, 0.85, true
			}
			return "", 0, false
		},
	},
	{
		name: "hierarchical_pattern",
		classify: func(rawKind string, _ bool, _ string) (Classification, float64, bool) {
			lower := strings.ToLower(rawKind)
			for _, p := range hierarchicalPatterns {
				if strings.Contains(lower, p.substr) {
					return p.class, 0.5, true
				}
			}
			return "", 0, false
		},
	},
}

// Classify runs the layered classifier pipeline and returns the node's
// classification plus an evidence string explaining how it was
// reached. Layers are tried in priority order; the first layer that
// classifies the node wins (language-specific extensions have
// strictly higher priority than grammar-based inference, which in
// turn outranks the hierarchical pattern fallback).
func Classify(rawKind string, hasNameField bool, language string) (Classification, string) {
	for _, layer := range layers {
		if cls, confidence, ok := layer.classify(rawKind, hasNameField, language); ok {
			return cls, layerEvidence(layer.name, rawKind, confidence)
		}
	}
	return ClassUnknown, "no classifier layer matched kind=" + rawKind
}

func layerEvidence(layer, rawKind string, confidence float64) string {
	return layer + ": kind=" + rawKind + " confidence=" + formatConfidence(confidence)
}

func formatConfidence(c float64) string {
	// Avoid importing fmt for a single call site; small static table
	// covers the fixed confidence values the layers emit.
	switch c {
	case 1.0:
		return "1.00"
	case 0.85:
		return "0.85"
	case 0.5:
		return "0.50"
	default:
		return "0.00"
	}
}

// baseImportance gives each classification a starting importance
// vector across agent tasks; the per-node step in parsers may further
// nudge scores using structural signals (export status, doc presence).
func baseImportance(cls Classification) map[AgentTask]float64 {
	switch cls {
	case ClassFunction, ClassMethod:
		return map[AgentTask]float64{
			TaskDiscovery: 0.8, TaskComprehension: 0.9, TaskModification: 0.7,
			TaskDebugging: 0.8, TaskDocumentation: 0.6,
		}
	case ClassClass:
		return map[AgentTask]float64{
			TaskDiscovery: 0.9, TaskComprehension: 0.85, TaskModification: 0.6,
			TaskDebugging: 0.5, TaskDocumentation: 0.7,
		}
	case ClassImport:
		return map[AgentTask]float64{
			TaskDiscovery: 0.4, TaskComprehension: 0.3, TaskModification: 0.3,
			TaskDebugging: 0.2, TaskDocumentation: 0.1,
		}
	case ClassConditional, ClassLoop:
		return map[AgentTask]float64{
			TaskDiscovery: 0.2, TaskComprehension: 0.4, TaskModification: 0.5,
			TaskDebugging: 0.6, TaskDocumentation: 0.1,
		}
	case ClassComment:
		return map[AgentTask]float64{
			TaskDiscovery: 0.1, TaskComprehension: 0.3, TaskModification: 0.1,
			TaskDebugging: 0.1, TaskDocumentation: 0.8,
		}
	case ClassBlock:
		return map[AgentTask]float64{
			TaskDiscovery: 0.1, TaskComprehension: 0.2, TaskModification: 0.2,
			TaskDebugging: 0.2, TaskDocumentation: 0.0,
		}
	default:
		return map[AgentTask]float64{
			TaskDiscovery: 0, TaskComprehension: 0, TaskModification: 0,
			TaskDebugging: 0, TaskDocumentation: 0,
		}
	}
}
