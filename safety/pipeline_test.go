package safety_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/morphein/pattern"
	"github.com/viant/morphein/safety"
	"github.com/viant/morphein/store"
	"github.com/viant/morphein/syntax"
)

func newStore(t *testing.T, rules ...pattern.Rule) *store.RuleStore {
	t.Helper()
	ruleStore := store.NewRuleStore(t.TempDir())
	for _, rule := range rules {
		ruleStore.Add(rule)
	}
	return ruleStore
}

func TestPipeline_ValidatedStructural(t *testing.T) {
	rule := pattern.NewRule("var to let",
		pattern.Matcher{Source: `\bvar\b`, Flags: "g"},
		pattern.Literal("let"),
		0.90, pattern.StageLexical, pattern.CategoryGeneric)
	pipeline := safety.NewPipeline(syntax.JavaScript)

	result := pipeline.Transform(context.Background(), "var a = 1;\nvar b = 2;\n", newStore(t, rule))
	assert.Equal(t, safety.Validated, result.Outcome)
	assert.Equal(t, safety.StrategyStructural, result.Strategy)
	assert.Equal(t, "let a = 1;\nlet b = 2;\n", result.Code)
	assert.Equal(t, []string{"var to let"}, result.Applied)
}

func TestPipeline_RevertsUnparseableRewrite(t *testing.T) {
	// a rule whose replacement produces unbalanced braces must be rejected
	rule := pattern.NewRule("bad brace",
		pattern.Matcher{Source: `doWork\(\)`, Flags: "g"},
		pattern.Literal("doWork() {"),
		0.95, pattern.StageLexical, pattern.CategoryGeneric)
	pipeline := safety.NewPipeline(syntax.JavaScript)

	original := "doWork();\n"
	result := pipeline.Transform(context.Background(), original, newStore(t, rule))
	assert.Equal(t, safety.Reverted, result.Outcome)
	assert.Equal(t, original, result.Code)
	assert.Empty(t, result.Applied)
}

func TestPipeline_NoEligibleRulesIsNoOp(t *testing.T) {
	rule := pattern.NewRule("below threshold",
		pattern.Matcher{Source: `const`, Flags: "g"},
		pattern.Literal("let"),
		0.69, pattern.StageLexical, pattern.CategoryGeneric)
	pipeline := safety.NewPipeline(syntax.JavaScript)

	original := "const a = 1;\n"
	result := pipeline.Transform(context.Background(), original, newStore(t, rule))
	assert.Equal(t, safety.Validated, result.Outcome)
	assert.Equal(t, safety.StrategyNone, result.Strategy)
	assert.Equal(t, original, result.Code)
	assert.Empty(t, result.Applied)
}

func TestPipeline_TextualFallbackForFileAnchoredRules(t *testing.T) {
	// file-anchored prefix rules cannot run per fragment; they fall back to
	// the textual path and still insert exactly once
	rule := pattern.NewRule("Add 'use strict' directive",
		pattern.Matcher{Source: `\A(?:['"]use strict['"];?[ \t]*\n?)?`},
		pattern.Literal("'use strict';\n"),
		0.70, pattern.StageLexical, pattern.CategoryFormatting)
	pipeline := safety.NewPipeline(syntax.JavaScript)

	result := pipeline.Transform(context.Background(), "const a = 1;\n", newStore(t, rule))
	assert.Equal(t, safety.Validated, result.Outcome)
	assert.Equal(t, safety.StrategyTextual, result.Strategy)
	assert.Equal(t, "'use strict';\nconst a = 1;\n", result.Code)
	assert.Equal(t, []string{"Add 'use strict' directive"}, result.Applied)

	// a second pass over the already-transformed code changes nothing
	second := pipeline.Transform(context.Background(), result.Code, newStore(t, rule))
	assert.Equal(t, result.Code, second.Code)
	assert.Empty(t, second.Applied)
}

func TestPipeline_GuardedInsertionSkipsPresentImport(t *testing.T) {
	// a learned import-insertion rule carries the extracted rule shape: an
	// anchor that keeps a directive prologue first and a guard matching the
	// module path anywhere in the file
	rule := pattern.NewRule("Ensure import: import React from 'react';",
		pattern.Matcher{Source: `\A((?:['"]use strict['"];?[ \t]*\n)?)`},
		pattern.Literal("${1}import React from 'react';\n"),
		0.85, pattern.StageComponents, pattern.CategoryImports)
	rule.Guard = pattern.Matcher{Source: `(?m)^[ \t]*import\b[^\n]*['"]react['"]`}
	pipeline := safety.NewPipeline(syntax.JavaScript)

	// the import is already present below the directive; nothing changes
	original := "'use strict';\nimport React from 'react';\nconst b = 2;\n"
	result := pipeline.Transform(context.Background(), original, newStore(t, rule))
	assert.Equal(t, safety.Validated, result.Outcome)
	assert.Equal(t, original, result.Code)
	assert.Empty(t, result.Applied)

	// when it is missing, the insertion lands below the directive
	result = pipeline.Transform(context.Background(), "'use strict';\nconst b = 2;\n", newStore(t, rule))
	assert.Equal(t, safety.Validated, result.Outcome)
	assert.Equal(t, "'use strict';\nimport React from 'react';\nconst b = 2;\n", result.Code)
	assert.Equal(t, []string{"Ensure import: import React from 'react';"}, result.Applied)
}

func TestPipeline_TextualFallbackWhenSnapshotDoesNotParse(t *testing.T) {
	// the structural path needs a clean parse; broken input falls through to
	// the textual path, and the rewrite is only kept if the output parses
	rule := pattern.NewRule("rename",
		pattern.Matcher{Source: `oldName`, Flags: "g"},
		pattern.Literal("newName"),
		0.90, pattern.StageLexical, pattern.CategoryGeneric)
	pipeline := safety.NewPipeline(syntax.JavaScript)

	original := "function oldName( {\n"
	result := pipeline.Transform(context.Background(), original, newStore(t, rule))
	assert.Equal(t, safety.Reverted, result.Outcome)
	assert.Equal(t, original, result.Code)
	assert.Empty(t, result.Applied)
}
