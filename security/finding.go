// Package security maps externally produced security findings onto a fixed
// set of hand-coded rewrite templates. Security rewrites are never inferred
// from the shape of matched code: a finding only selects a template, and a
// finding whose signature has no template produces nothing.
package security

import (
	"strings"

	"github.com/viant/morphein/pattern"
)

// Severity ranks a finding; only critical and high findings produce rules
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Actionable reports whether the severity warrants an automatic rewrite
func (s Severity) Actionable() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Finding is the consumed shape of an upstream security-scanner finding
type Finding struct {
	Severity    Severity `json:"severity"`
	SignatureID string   `json:"signatureId"`
	Description string   `json:"description"`
	MatchedText string   `json:"matchedText,omitempty"`
}

// template pairs a signature class with its rewrite
type template struct {
	class       string
	description string
	matcher     pattern.Matcher
	replacement pattern.Replacement
}

// templates is the fixed rewrite table; signature ids are matched by class
// substring so scanner databases can evolve without code changes here
var templates = []template{
	{
		class:       "eval",
		description: "Replace eval of data with JSON.parse",
		matcher:     pattern.Matcher{Source: `\beval\s*\(([^)]*)\)`, Flags: "g"},
		replacement: pattern.Literal("JSON.parse($1)"),
	},
	{
		class:       "innerhtml",
		description: "Replace innerHTML assignment with textContent",
		matcher:     pattern.Matcher{Source: `\.innerHTML\s*=`, Flags: "g"},
		replacement: pattern.Literal(".textContent ="),
	},
	{
		class:       "document-write",
		description: "Remove document.write calls",
		matcher:     pattern.Matcher{Source: `document\.write(?:ln)?\s*\(([^)]*)\);?`, Flags: "g"},
		replacement: pattern.Literal("console.warn($1);"),
	},
	{
		class:       "hardcoded-secret",
		description: "Move hardcoded credentials to environment lookups",
		matcher:     pattern.Matcher{Source: `\b(api[_-]?key|apikey|secret|password|token)\b(\s*[:=]\s*)['"][^'"]+['"]`, Flags: "gi"},
		replacement: pattern.Template("secret-to-env"),
	},
}

// RulesForFindings converts actionable findings into rewrite rules from the
// fixed template table. Confidence starts at the security base and the rules
// still pass through the same store and safety pipeline as learned ones.
func RulesForFindings(findings []Finding, stage pattern.Stage) []pattern.Rule {
	var rules []pattern.Rule
	for _, finding := range findings {
		if !finding.Severity.Actionable() {
			continue
		}
		matched := matchTemplate(finding.SignatureID)
		if matched == nil {
			continue
		}
		rule := pattern.NewRule(
			matched.description,
			matched.matcher,
			matched.replacement,
			0.95, stage, pattern.CategorySecurity,
		)
		rules = append(rules, rule)
	}
	return pattern.Dedup(rules)
}

func matchTemplate(signatureID string) *template {
	id := strings.ToLower(signatureID)
	id = strings.NewReplacer("_", "-", ".", "-").Replace(id)
	for i := range templates {
		if strings.Contains(id, templates[i].class) {
			return &templates[i]
		}
	}
	return nil
}
