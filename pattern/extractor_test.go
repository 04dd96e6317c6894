package pattern_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/morphein/pattern"
	"github.com/viant/morphein/syntax"
)

func findRule(rules []pattern.Rule, description string) *pattern.Rule {
	for i := range rules {
		if rules[i].Description == description {
			return &rules[i]
		}
	}
	return nil
}

func TestExtractor_UseStrictScenario(t *testing.T) {
	extractor := pattern.NewExtractor()
	rules := extractor.Extract(context.Background(),
		[]byte("const x = 1"),
		[]byte("'use strict';\nconst x = 1"),
		pattern.StageLexical, syntax.JavaScript)

	rule := findRule(rules, "Add 'use strict' directive")
	require.NotNil(t, rule)
	assert.InDelta(t, 0.70, rule.Confidence, 1e-9)
	assert.Equal(t, pattern.CategoryFormatting, rule.Category)
	assert.GreaterOrEqual(t, rule.Confidence, pattern.ApplyThreshold)

	// applying to an unrelated snippet lacking the directive inserts it once
	got, err := rule.Apply("const y = 2;")
	require.NoError(t, err)
	assert.Equal(t, "'use strict';\nconst y = 2;", got)

	// re-applying does not duplicate
	again, err := rule.Apply(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestExtractor_ImportAddition(t *testing.T) {
	extractor := pattern.NewExtractor()
	rules := extractor.Extract(context.Background(),
		[]byte("const a = 1;\n"),
		[]byte("import React from 'react';\nconst a = 1;\n"),
		pattern.StageComponents, syntax.JavaScript)

	rule := findRule(rules, "Ensure import: import React from 'react';")
	require.NotNil(t, rule)
	assert.Equal(t, pattern.CategoryImports, rule.Category)

	got, err := rule.Apply("const b = 2;\n")
	require.NoError(t, err)
	assert.Equal(t, "import React from 'react';\nconst b = 2;\n", got)

	again, err := rule.Apply(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestExtractor_ImportRuleRespectsExistingImports(t *testing.T) {
	extractor := pattern.NewExtractor()
	rules := extractor.Extract(context.Background(),
		[]byte("const a = 1;\n"),
		[]byte("import React from 'react';\nconst a = 1;\n"),
		pattern.StageComponents, syntax.JavaScript)
	rule := findRule(rules, "Ensure import: import React from 'react';")
	require.NotNil(t, rule)

	// the import already present below a directive must not be duplicated
	code := "'use strict';\nimport React from 'react';\nconst b = 2;\n"
	got, err := rule.Apply(code)
	require.NoError(t, err)
	assert.Equal(t, code, got)

	// the same module path in any import form counts as present
	variant := "import React, { useState } from 'react';\nconst b = 2;\n"
	got, err = rule.Apply(variant)
	require.NoError(t, err)
	assert.Equal(t, variant, got)

	// when the import is genuinely missing it lands below the directive,
	// keeping the prologue in place
	got, err = rule.Apply("'use strict';\nconst b = 2;\n")
	require.NoError(t, err)
	assert.Equal(t, "'use strict';\nimport React from 'react';\nconst b = 2;\n", got)
}

func TestExtractor_MigrationRecognizers(t *testing.T) {
	extractor := pattern.NewExtractor()
	before := "const Logo = () => <img src={src} />;\n"
	after := "const Logo = () => <Image src={src} />;\n"
	rules := extractor.Extract(context.Background(), []byte(before), []byte(after), pattern.StageMigration, syntax.JavaScript)

	rule := findRule(rules, "Convert <img> to <Image>")
	require.NotNil(t, rule)
	assert.Equal(t, "next/image", rule.RequiredImport)

	got, err := rule.Apply(`<img src="/a.png" /><img src="/b.png" />`)
	require.NoError(t, err)
	assert.Equal(t, `<Image src="/a.png" /><Image src="/b.png" />`, got)
}

func TestExtractor_LegacyRemoval(t *testing.T) {
	extractor := pattern.NewExtractor()
	before := "class A extends Component {\n  componentWillMount() {\n    init();\n  }\n}\n"
	after := "class A extends Component {\n  UNSAFE_componentWillMount() {\n    init();\n  }\n}\n"
	rules := extractor.Extract(context.Background(), []byte(before), []byte(after), pattern.StageComponents, syntax.JavaScript)

	rule := findRule(rules, "Rename componentWillMount to UNSAFE_componentWillMount")
	require.NotNil(t, rule)
	assert.Equal(t, pattern.CategoryMigration, rule.Category)

	got, err := rule.Apply("componentWillMount() {}")
	require.NoError(t, err)
	assert.Equal(t, "UNSAFE_componentWillMount() {}", got)

	// idempotent thanks to the word boundary
	again, err := rule.Apply(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestExtractor_GenericFallback(t *testing.T) {
	extractor := pattern.NewExtractor()
	before := "const a = 1;\n"
	after := "globalThis.flags = {};\nconst a = 1;\n"
	rules := extractor.Extract(context.Background(), []byte(before), []byte(after), pattern.StageConfig, syntax.JavaScript)
	require.Len(t, rules, 1)

	rule := rules[0]
	assert.Equal(t, pattern.CategoryGeneric, rule.Category)
	assert.Less(t, rule.Confidence, pattern.ApplyThreshold)

	got, err := rule.Apply("const b = 2;\n")
	require.NoError(t, err)
	assert.Equal(t, "globalThis.flags = {};\nconst b = 2;\n", got)

	again, err := rule.Apply(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	// the learned line present further down also counts as present
	below := "'use strict';\nglobalThis.flags = {};\nconst b = 2;\n"
	got, err = rule.Apply(below)
	require.NoError(t, err)
	assert.Equal(t, below, got)
}

func TestDedup(t *testing.T) {
	base := pattern.NewRule("same", pattern.Matcher{Source: "a"}, pattern.Literal("b"), 0.70, pattern.StageLexical, pattern.CategoryGeneric)
	other := pattern.NewRule("other", pattern.Matcher{Source: "c"}, pattern.Literal("d"), 0.60, pattern.StageLexical, pattern.CategoryGeneric)
	repeat := base

	deduped := pattern.Dedup([]pattern.Rule{base, other, repeat})
	require.Len(t, deduped, 2)

	merged := findRule(deduped, "same")
	require.NotNil(t, merged)
	assert.Equal(t, 2, merged.Frequency)
	assert.InDelta(t, 0.72, merged.Confidence, 1e-9)
}
