package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Category groups learned rules by the kind of transformation they encode
type Category string

const (
	CategorySecurity      Category = "security"
	CategoryImports       Category = "imports"
	CategoryComponents    Category = "components"
	CategoryAccessibility Category = "accessibility"
	CategoryHydration     Category = "hydration"
	CategoryMigration     Category = "migration"
	CategoryTesting       Category = "testing"
	CategoryFormatting    Category = "formatting"
	CategoryGeneric       Category = "generic"
)

// Stage identifies the transformation stage that produced an observation
type Stage int

const (
	StageConfig Stage = iota + 1
	StageLexical
	StageComponents
	StageHydration
	StageMigration
	StageTesting
	StageSecurity
	StageLearning
)

// Name returns the stage name
func (s Stage) Name() string {
	switch s {
	case StageConfig:
		return "config"
	case StageLexical:
		return "lexical"
	case StageComponents:
		return "components"
	case StageHydration:
		return "hydration"
	case StageMigration:
		return "migration"
	case StageTesting:
		return "testing"
	case StageSecurity:
		return "security"
	case StageLearning:
		return "learning"
	default:
		return "unknown"
	}
}

// Valid reports whether the stage is within the known range
func (s Stage) Valid() bool {
	return s >= StageConfig && s <= StageLearning
}

// Matcher holds a rule's pattern as an explicit source/flags pair. Flags use
// the JavaScript convention: "g" applies the rule to every match, "i", "m"
// and "s" map onto the corresponding Go regexp mode flags.
type Matcher struct {
	Source string `json:"source"`
	Flags  string `json:"flags,omitempty"`
}

// Global reports whether the matcher applies to all matches rather than the first
func (m Matcher) Global() bool {
	return strings.Contains(m.Flags, "g")
}

// Compile builds the Go regexp for the matcher
func (m Matcher) Compile() (*regexp.Regexp, error) {
	var modes string
	for _, flag := range m.Flags {
		switch flag {
		case 'i', 'm', 's':
			modes += string(flag)
		}
	}
	source := m.Source
	if modes != "" {
		source = "(?" + modes + ")" + source
	}
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("invalid matcher %q: %w", m.Source, err)
	}
	return re, nil
}

// Normalize returns the matcher's identity for store-level equivalence checks
func (m Matcher) Normalize() string {
	return strings.Join(strings.Fields(m.Source), " ") + "|" + m.Flags
}

// Replacement is a tagged variant: either a literal replacement string
// (which may reference match groups as $1, $2, ...) or the name of a
// registered template function computing the replacement from a match
type Replacement struct {
	Literal  string `json:"literal,omitempty"`
	Template string `json:"template,omitempty"`
}

// Literal builds a literal replacement
func Literal(text string) Replacement {
	return Replacement{Literal: text}
}

// Template builds a template replacement referring to a registered template
func Template(name string) Replacement {
	return Replacement{Template: name}
}

// IsTemplate reports whether the replacement is function valued
func (r Replacement) IsTemplate() bool {
	return r.Template != ""
}

// Rule is a learned rewrite: a matcher plus replacement with confidence and
// frequency bookkeeping. Confidence only ever increases on repeated
// equivalent observation and a rule is applied only at or above ApplyThreshold.
type Rule struct {
	ID          string
	Description string
	Matcher     Matcher
	// Guard, when set, marks the rule inapplicable for code it matches
	// anywhere; insertion rules use it as an already-present check since
	// the matcher alone only sees the insertion point
	Guard          Matcher
	Replacement    Replacement
	Confidence     float64
	Frequency      int
	OriginStage    Stage
	Category       Category
	RequiredImport string
}

// ApplyThreshold is the minimum confidence at which a rule is applied
const ApplyThreshold = 0.70

// MergeIncrement is the confidence nudge added when an equivalent rule is
// observed again; accrual caps at MergeCap, never at 1.0, so only rules that
// start high (security templates) can exceed it
const (
	MergeIncrement = 0.02
	MergeCap       = 0.95
)

// NewRule creates a rule with a fresh identifier and frequency 1
func NewRule(description string, matcher Matcher, replacement Replacement, confidence float64, stage Stage, category Category) Rule {
	return Rule{
		ID:          uuid.NewString(),
		Description: description,
		Matcher:     matcher,
		Replacement: replacement,
		Confidence:  confidence,
		Frequency:   1,
		OriginStage: stage,
		Category:    category,
	}
}

// Key returns the deduplication key for extraction-time merging
func (r *Rule) Key() string {
	return r.Description + "|" + string(r.Category)
}

// Identity returns the store-level equivalence key. It spans matcher, guard
// and replacement so that distinct insertion rules sharing the same anchor
// matcher never merge into one another.
func (r *Rule) Identity() string {
	return r.Matcher.Normalize() + "|" + r.Guard.Normalize() +
		"|" + r.Replacement.Literal + "|" + r.Replacement.Template
}

// Reinforce merges a repeated equivalent observation into the rule
func (r *Rule) Reinforce() {
	r.Frequency++
	if r.Confidence < MergeCap {
		r.Confidence = min(r.Confidence+MergeIncrement, MergeCap)
	}
}

// Apply applies the rule to code, returning the rewritten code. Code the
// guard matches, or code the matcher does not match, is returned unchanged
// with a nil error; a broken matcher or unknown template surfaces as an error
// so the caller can skip the rule without aborting the batch.
func (r *Rule) Apply(code string) (string, error) {
	if r.Guard.Source != "" {
		guard, err := r.Guard.Compile()
		if err != nil {
			return code, err
		}
		if guard.MatchString(code) {
			return code, nil
		}
	}
	re, err := r.Matcher.Compile()
	if err != nil {
		return code, err
	}
	if r.Replacement.IsTemplate() {
		fn, ok := LookupTemplate(r.Replacement.Template)
		if !ok {
			return code, fmt.Errorf("unknown template %q", r.Replacement.Template)
		}
		if r.Matcher.Global() {
			return re.ReplaceAllStringFunc(code, func(matched string) string {
				return fn(re.FindStringSubmatch(matched))
			}), nil
		}
		return replaceFirstFunc(re, code, fn), nil
	}
	if r.Matcher.Global() {
		return re.ReplaceAllString(code, r.Replacement.Literal), nil
	}
	return replaceFirst(re, code, r.Replacement.Literal), nil
}

// replaceFirst substitutes only the first match, expanding $group references
func replaceFirst(re *regexp.Regexp, code, literal string) string {
	loc := re.FindStringSubmatchIndex(code)
	if loc == nil {
		return code
	}
	expanded := re.ExpandString(nil, literal, code, loc)
	return code[:loc[0]] + string(expanded) + code[loc[1]:]
}

// replaceFirstFunc substitutes only the first match using a template function
func replaceFirstFunc(re *regexp.Regexp, code string, fn TemplateFunc) string {
	loc := re.FindStringSubmatchIndex(code)
	if loc == nil {
		return code
	}
	groups := make([]string, 0, len(loc)/2)
	for i := 0; i < len(loc); i += 2 {
		if loc[i] < 0 {
			groups = append(groups, "")
			continue
		}
		groups = append(groups, code[loc[i]:loc[i+1]])
	}
	return code[:loc[0]] + fn(groups) + code[loc[1]:]
}
