package pattern

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/viant/morphein/syntax"
)

// snippetCap bounds legacy-pattern scanning so worst-case matching cost per
// file stays fixed regardless of file size
const snippetCap = 2000

// maxStructuralFragment bounds the size of a fragment turned into a literal
// structural rule; larger fragments are too file specific to generalize
const maxStructuralFragment = 300

// Extractor turns transformation observations into candidate rules using
// structural, textual and generic-fallback strategies
type Extractor struct {
	classifier *Classifier
}

// NewExtractor creates a new Extractor
func NewExtractor() *Extractor {
	return &Extractor{classifier: NewClassifier()}
}

// Classifier exposes the extractor's classifier
func (e *Extractor) Classifier() *Classifier {
	return e.classifier
}

// Extract derives candidate rules from a before/after snapshot pair. The
// structural strategy works diff by diff, the textual strategy recognizes
// known transformation shapes on the raw snapshots, and the generic fallback
// only fires when both yield nothing for an observed diff.
func (e *Extractor) Extract(ctx context.Context, before, after []byte, stage Stage, dialect syntax.Dialect) []Rule {
	diffs := syntax.DiffSource(ctx, before, after, dialect)

	var rules []Rule
	for _, diff := range diffs {
		rules = append(rules, e.structural(diff, stage)...)
	}
	rules = append(rules, e.textual(string(before), string(after), stage)...)
	if len(rules) == 0 {
		for _, diff := range diffs {
			if rule, ok := e.generic(diff, stage); ok {
				rules = append(rules, rule)
			}
		}
	}

	valid := rules[:0]
	for _, rule := range rules {
		if e.classifier.Validate(&rule) {
			valid = append(valid, rule)
		}
	}
	return Dedup(valid)
}

// structural derives rules from a diff's structural key
func (e *Extractor) structural(diff syntax.Diff, stage Stage) []Rule {
	category := e.classifier.Classify(diff, stage)
	confidence := e.classifier.Confidence(category, diff)

	switch diff.Change {
	case syntax.Addition:
		if diff.NodeKind != "import_statement" || len(diff.After) > maxStructuralFragment {
			return nil
		}
		line := strings.TrimRight(diff.After, "\n")
		rule := NewRule(
			"Ensure import: "+firstLine(line, 60),
			Matcher{Source: directivePrefixPattern},
			Literal("${1}"+escapeLiteral(line)+"\n"),
			confidence, stage, category,
		)
		rule.Guard = importGuard(line)
		return []Rule{rule}
	case syntax.Removal:
		if len(diff.Before) > maxStructuralFragment {
			return nil
		}
		matcher := Matcher{Source: regexp.QuoteMeta(diff.Before) + `\n?`, Flags: "g"}
		return []Rule{NewRule(
			fmt.Sprintf("Remove %s: %s", diff.NodeKind, firstLine(diff.Before, 60)),
			matcher,
			Literal(""),
			confidence, stage, category,
		)}
	case syntax.Modification:
		if len(diff.Before) > maxStructuralFragment || len(diff.After) > maxStructuralFragment {
			return nil
		}
		matcher := Matcher{Source: regexp.QuoteMeta(diff.Before), Flags: "g"}
		return []Rule{NewRule(
			fmt.Sprintf("Rewrite %s: %s", diff.NodeKind, firstLine(diff.Before, 60)),
			matcher,
			Literal(escapeLiteral(diff.After)),
			confidence, stage, category,
		)}
	}
	return nil
}

// textual recognizes stage-specific transformation shapes on raw snapshots
func (e *Extractor) textual(before, after string, stage Stage) []Rule {
	var rules []Rule

	if hasStrictDirective(after) && !hasStrictDirective(before) {
		diff := syntax.Diff{Change: syntax.Addition, NodeKind: "expression_statement"}
		rules = append(rules, NewRule(
			"Add 'use strict' directive",
			Matcher{Source: `\A(?:['"]use strict['"];?[ \t]*\n?)?`},
			Literal("'use strict';\n"),
			e.classifier.Confidence(CategoryFormatting, diff), stage, CategoryFormatting,
		))
	}

	modification := syntax.Diff{Change: syntax.Modification}
	if strings.Contains(before, "<img") && strings.Contains(after, "<Image") {
		rule := NewRule(
			"Convert <img> to <Image>",
			Matcher{Source: `<img(\s|/|>)`, Flags: "g"},
			Literal("<Image$1"),
			e.classifier.Confidence(CategoryMigration, modification), stage, CategoryMigration,
		)
		rule.RequiredImport = "next/image"
		rules = append(rules, rule)
	}
	if strings.Contains(before, "<a href=") && strings.Contains(after, "<Link href=") {
		open := NewRule(
			"Convert <a href> to <Link href>",
			Matcher{Source: `<a(\s+href=)`, Flags: "g"},
			Literal("<Link$1"),
			e.classifier.Confidence(CategoryMigration, modification), stage, CategoryMigration,
		)
		open.RequiredImport = "next/link"
		rules = append(rules, open, NewRule(
			"Convert closing </a> to </Link>",
			Matcher{Source: `</a>`, Flags: "g"},
			Literal("</Link>"),
			e.classifier.Confidence(CategoryMigration, modification), stage, CategoryMigration,
		))
	}

	if strings.Contains(before, ".map(") && !strings.Contains(before, "key={") &&
		strings.Contains(after, "key={") {
		rules = append(rules, NewRule(
			"Add missing iteration key to mapped JSX",
			Matcher{Source: mapCallbackPattern, Flags: "g"},
			Template("jsx-add-key"),
			e.classifier.Confidence(CategoryComponents, modification), stage, CategoryComponents,
		))
	}

	if strings.Contains(before, "<img") && !strings.Contains(before, "alt=") &&
		strings.Contains(after, "alt=") {
		rules = append(rules, NewRule(
			"Add alt attribute to img elements",
			Matcher{Source: `<img\b([^>]*?)(\s*/?)>`, Flags: "g"},
			Template("jsx-img-alt"),
			e.classifier.Confidence(CategoryAccessibility, modification), stage, CategoryAccessibility,
		))
	}

	rules = append(rules, e.legacyRules(before, after, stage)...)
	return rules
}

// directivePrefixPattern anchors an insertion at the top of the file while
// keeping a leading directive prologue in place; a guard makes the rule a
// no-op when its target is already present elsewhere
const directivePrefixPattern = `\A((?:['"]use strict['"];?[ \t]*\n)?)`

var importSourcePattern = regexp.MustCompile(`['"]([^'"]+)['"]`)

// importGuard matches any existing import of the same module path, in any
// form, so an insertion rule never duplicates an already-imported binding
func importGuard(line string) Matcher {
	if m := importSourcePattern.FindStringSubmatch(line); m != nil {
		return Matcher{Source: `(?m)^[ \t]*import\b[^\n]*['"]` + regexp.QuoteMeta(m[1]) + `['"]`}
	}
	return Matcher{Source: regexp.QuoteMeta(line)}
}

// mapCallbackPattern matches a .map callback returning a JSX element
const mapCallbackPattern = `\.map\(\s*\(?([A-Za-z_$][\w$]*)(?:,\s*([A-Za-z_$][\w$]*))?\)?\s*=>\s*(\(\s*)?<([A-Za-z][\w.]*)([^/>]*?)\s*(/?)>`

// legacyRemoval pairs a legacy API matcher with its rewrite
type legacyRemoval struct {
	description string
	matcher     Matcher
	replacement Replacement
}

var legacyAPIRemovals = []legacyRemoval{
	{
		description: "Unwrap ReactDOM.findDOMNode calls",
		matcher:     Matcher{Source: `ReactDOM\.findDOMNode\(([^)]*)\)`, Flags: "g"},
		replacement: Literal("$1"),
	},
	{
		description: "Rename componentWillMount to UNSAFE_componentWillMount",
		matcher:     Matcher{Source: `\bcomponentWillMount\b`, Flags: "g"},
		replacement: Literal("UNSAFE_componentWillMount"),
	},
	{
		description: "Rename componentWillReceiveProps to UNSAFE_componentWillReceiveProps",
		matcher:     Matcher{Source: `\bcomponentWillReceiveProps\b`, Flags: "g"},
		replacement: Literal("UNSAFE_componentWillReceiveProps"),
	},
	{
		description: "Convert string refs to callback refs",
		matcher:     Matcher{Source: `ref="([A-Za-z_$][\w$]*)"`, Flags: "g"},
		replacement: Literal("ref={(el) => (this.$1 = el)}"),
	},
}

// legacyRules proposes rules for legacy API usages that the observed
// transformation eliminated; the scan is capped to keep matching cost bounded
func (e *Extractor) legacyRules(before, after string, stage Stage) []Rule {
	scan := before
	if len(scan) > snippetCap {
		scan = scan[:snippetCap]
	}
	modification := syntax.Diff{Change: syntax.Modification}
	var rules []Rule
	for _, legacy := range legacyAPIRemovals {
		re, err := legacy.matcher.Compile()
		if err != nil {
			continue
		}
		if !re.MatchString(scan) || re.MatchString(after) {
			continue
		}
		rules = append(rules, NewRule(
			legacy.description,
			legacy.matcher,
			legacy.replacement,
			e.classifier.Confidence(CategoryMigration, modification), stage, CategoryMigration,
		))
	}
	return rules
}

// generic is the fallback strategy: a whole-diff literal rule. The structural
// strategy already covers removals, modifications and import additions, so
// the fallback's main contribution is top-of-file additions.
func (e *Extractor) generic(diff syntax.Diff, stage Stage) (Rule, bool) {
	confidence := e.classifier.Confidence(CategoryGeneric, diff)
	switch diff.Change {
	case syntax.Addition:
		if diff.Location.Row != 0 || diff.After == "" || len(diff.After) > maxStructuralFragment {
			return Rule{}, false
		}
		line := strings.TrimRight(diff.After, "\n")
		rule := NewRule(
			fmt.Sprintf("Learned insertion (%s): %s", diff.NodeKind, firstLine(line, 60)),
			Matcher{Source: directivePrefixPattern},
			Literal("${1}"+escapeLiteral(line)+"\n"),
			confidence, stage, CategoryGeneric,
		)
		rule.Guard = Matcher{Source: regexp.QuoteMeta(line)}
		return rule, true
	case syntax.Modification:
		if diff.Before == "" || diff.After == "" {
			return Rule{}, false
		}
		if len(diff.Before) > maxStructuralFragment || len(diff.After) > maxStructuralFragment {
			return Rule{}, false
		}
		return NewRule(
			fmt.Sprintf("Learned rewrite (%s): %s", diff.NodeKind, firstLine(diff.Before, 60)),
			Matcher{Source: regexp.QuoteMeta(diff.Before), Flags: "g"},
			Literal(escapeLiteral(diff.After)),
			confidence, stage, CategoryGeneric,
		), true
	}
	return Rule{}, false
}

// Dedup merges rules sharing a (description, category) key: a repeat
// increments frequency and nudges confidence instead of inserting a duplicate
func Dedup(rules []Rule) []Rule {
	var deduped []Rule
	index := make(map[string]int)
	for _, rule := range rules {
		if at, ok := index[rule.Key()]; ok {
			deduped[at].Reinforce()
			continue
		}
		index[rule.Key()] = len(deduped)
		deduped = append(deduped, rule)
	}
	return deduped
}

// escapeLiteral escapes $ so observed text survives group expansion verbatim
func escapeLiteral(text string) string {
	return strings.ReplaceAll(text, "$", "$$")
}

func hasStrictDirective(code string) bool {
	trimmed := strings.TrimLeft(code, " \t\n")
	return strings.HasPrefix(trimmed, "'use strict'") || strings.HasPrefix(trimmed, `"use strict"`)
}

// firstLine truncates content to its first line, capped at limit runes
func firstLine(content string, limit int) string {
	if at := strings.IndexByte(content, '\n'); at >= 0 {
		content = content[:at]
	}
	runes := []rune(content)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return content
}
