package pattern

import (
	"strings"

	"github.com/viant/morphein/syntax"
)

// complexityThreshold is the nesting count above which a diff is considered
// ambiguous and its confidence discounted
const complexityThreshold = 24

// baseConfidence is the per-category starting confidence table
var baseConfidence = map[Category]float64{
	CategorySecurity:      0.95,
	CategoryAccessibility: 0.85,
	CategoryImports:       0.80,
	CategoryComponents:    0.75,
	CategoryHydration:     0.75,
	CategoryMigration:     0.70,
	CategoryTesting:       0.70,
	CategoryFormatting:    0.65,
	CategoryGeneric:       0.60,
}

// legacyTokens are pre-hooks React API markers that indicate migration work
var legacyTokens = []string{
	"findDOMNode",
	"componentWillMount",
	"componentWillReceiveProps",
	"componentWillUpdate",
	`ref="`,
}

// Classifier assigns diffs a transformation category and an initial confidence
type Classifier struct{}

// NewClassifier creates a new Classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines the category of a diff, using origin-stage hints first,
// then node-kind hints, then content heuristics
func (c *Classifier) Classify(diff syntax.Diff, stage Stage) Category {
	switch stage {
	case StageSecurity:
		return CategorySecurity
	case StageHydration:
		return CategoryHydration
	case StageTesting:
		return CategoryTesting
	}

	switch diff.NodeKind {
	case "import_statement", "export_statement":
		return CategoryImports
	}

	content := diff.Before + diff.After
	if hasAccessibilityTokens(content) {
		return CategoryAccessibility
	}
	if hasLegacyTokens(content) {
		return CategoryMigration
	}

	switch diff.NodeKind {
	case "jsx_element", "jsx_self_closing_element", "function_declaration",
		"class_declaration", "method_definition":
		return CategoryComponents
	}
	if strings.Contains(content, "use strict") {
		return CategoryFormatting
	}
	return CategoryGeneric
}

// Confidence computes the initial confidence for a classified diff: the
// category base, plus a bonus for pure additions, minus a penalty when the
// diff's nesting complexity marks it as ambiguous, clamped to [0.5, 1.0]
func (c *Classifier) Confidence(category Category, diff syntax.Diff) float64 {
	confidence, ok := baseConfidence[category]
	if !ok {
		confidence = baseConfidence[CategoryGeneric]
	}
	if diff.Change == syntax.Addition {
		confidence += 0.05
	}
	if complexity(diff) > complexityThreshold {
		confidence -= 0.10
	}
	if confidence < 0.5 {
		confidence = 0.5
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}

// Validate reports whether a candidate rule is well formed enough to store
func (c *Classifier) Validate(rule *Rule) bool {
	if rule == nil || rule.Description == "" {
		return false
	}
	if rule.Matcher.Source == "" && rule.Replacement.Literal == "" {
		return false
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return false
	}
	if rule.Category == "" {
		return false
	}
	if rule.Replacement.IsTemplate() {
		if _, ok := LookupTemplate(rule.Replacement.Template); !ok {
			return false
		}
	}
	return true
}

// complexity counts bracket, paren and tag nesting characters in a diff
func complexity(diff syntax.Diff) int {
	count := 0
	for _, fragment := range []string{diff.Before, diff.After} {
		for _, r := range fragment {
			switch r {
			case '(', ')', '[', ']', '{', '}', '<', '>':
				count++
			}
		}
	}
	return count
}

func hasAccessibilityTokens(content string) bool {
	return strings.Contains(content, "aria-") ||
		strings.Contains(content, "alt=") ||
		strings.Contains(content, "role=")
}

func hasLegacyTokens(content string) bool {
	for _, token := range legacyTokens {
		if strings.Contains(content, token) {
			return true
		}
	}
	return false
}
