// Package safety enforces the output contract of machine-derived rewrites:
// whatever the rules did, the returned code either parses or is the
// unmodified original. Correctness is checked at the output boundary, never
// by trusting a rule.
package safety

import (
	"context"
	"strings"

	"github.com/viant/morphein/pattern"
	"github.com/viant/morphein/store"
	"github.com/viant/morphein/syntax"
)

// Outcome is the terminal state of the per-file pipeline
type Outcome int

const (
	Validated Outcome = iota
	Reverted
)

// String returns the outcome name
func (o Outcome) String() string {
	if o == Reverted {
		return "reverted"
	}
	return "validated"
}

// Strategy records which rewriting path produced the result
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyStructural
	StrategyTextual
)

// String returns the strategy name
func (s Strategy) String() string {
	switch s {
	case StrategyStructural:
		return "structural"
	case StrategyTextual:
		return "textual"
	default:
		return "none"
	}
}

// Result is the pipeline's per-file outcome
type Result struct {
	Code     string
	Applied  []string
	Outcome  Outcome
	Strategy Strategy
}

// Pipeline applies a rule set structural-first with textual fallback and
// mandatory parse validation
type Pipeline struct {
	dialect syntax.Dialect
}

// NewPipeline creates a pipeline for the given dialect
func NewPipeline(dialect syntax.Dialect) *Pipeline {
	return &Pipeline{dialect: dialect}
}

// Transform runs the state machine StructuralAttempt -> TextualFallback ->
// Validated|Reverted. The structural attempt rewrites tree fragments and
// regenerates the file; if it errors or changes nothing, the textual fallback
// applies the rule set to the raw text. The result is re-parsed regardless of
// path: on parse failure all changes are discarded and the original is
// returned unchanged with zero applied changes.
func (p *Pipeline) Transform(ctx context.Context, code string, rules *store.RuleStore) Result {
	original := code

	transformed, applied, ok := p.structuralApply(ctx, code, rules)
	strategy := StrategyStructural
	if !ok || len(applied) == 0 {
		transformed, applied = rules.Apply(code)
		strategy = StrategyTextual
	}
	if len(applied) == 0 {
		return Result{Code: original, Outcome: Validated, Strategy: StrategyNone}
	}

	parser := syntax.NewParser(p.dialect)
	if !parser.Validate(ctx, []byte(transformed)) {
		return Result{Code: original, Outcome: Reverted, Strategy: strategy}
	}
	return Result{Code: transformed, Applied: applied, Outcome: Validated, Strategy: strategy}
}

// structuralApply rewrites each top-level fragment that a rule matches and
// splices the results back into the source; required imports are added at
// file level afterwards. It reports ok=false when the snapshot does not parse.
func (p *Pipeline) structuralApply(ctx context.Context, code string, rules *store.RuleStore) (string, []string, bool) {
	parser := syntax.NewParser(p.dialect)
	tree, err := parser.Parse(ctx, []byte(code))
	if err != nil || tree.HasErrors() {
		return "", nil, false
	}

	type splice struct {
		start, end  int
		replacement string
	}

	// file-anchored rules (\A prefix insertions) must see the whole file,
	// not each fragment, or they would fire once per statement
	var fragmentRules, fileRules []pattern.Rule
	for _, rule := range rules.Eligible() {
		if strings.HasPrefix(rule.Matcher.Source, `\A`) {
			fileRules = append(fileRules, rule)
			continue
		}
		fragmentRules = append(fragmentRules, rule)
	}

	root := tree.Root()
	src := tree.Source()

	var splices []splice
	var applied []string
	appliedIDs := make(map[string]bool)
	imports := make(map[string]bool)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		fragment := node.Content(src)
		rewritten := fragment
		for j := range fragmentRules {
			rule := &fragmentRules[j]
			next, err := rule.Apply(rewritten)
			if err != nil || next == rewritten {
				continue
			}
			rewritten = next
			if !appliedIDs[rule.ID] {
				appliedIDs[rule.ID] = true
				applied = append(applied, rule.Description)
			}
			if rule.RequiredImport != "" {
				imports[rule.RequiredImport] = true
			}
		}
		if rewritten != fragment {
			splices = append(splices, splice{
				start:       int(node.StartByte()),
				end:         int(node.EndByte()),
				replacement: rewritten,
			})
		}
	}
	if len(splices) == 0 {
		// nothing fragment-scoped changed; let the textual fallback run the
		// file-scoped rules over the raw text instead
		return "", nil, false
	}

	var builder strings.Builder
	offset := 0
	for _, s := range splices {
		builder.WriteString(code[offset:s.start])
		builder.WriteString(s.replacement)
		offset = s.end
	}
	builder.WriteString(code[offset:])

	result := builder.String()
	for j := range fileRules {
		rule := &fileRules[j]
		next, err := rule.Apply(result)
		if err != nil || next == result {
			continue
		}
		result = next
		if !appliedIDs[rule.ID] {
			appliedIDs[rule.ID] = true
			applied = append(applied, rule.Description)
		}
		if rule.RequiredImport != "" {
			imports[rule.RequiredImport] = true
		}
	}
	for path := range imports {
		result = pattern.EnsureImport(result, path)
	}
	return result, applied, true
}
