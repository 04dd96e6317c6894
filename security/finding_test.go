package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/morphein/pattern"
	"github.com/viant/morphein/security"
)

func TestRulesForFindings(t *testing.T) {
	var testCases = []struct {
		description string
		findings    []security.Finding
		expectRules int
	}{
		{
			description: "critical finding with known signature",
			findings: []security.Finding{
				{Severity: security.SeverityCritical, SignatureID: "JS_EVAL_USAGE"},
			},
			expectRules: 1,
		},
		{
			description: "high severity is actionable",
			findings: []security.Finding{
				{Severity: security.SeverityHigh, SignatureID: "dom.innerHTML.assignment"},
			},
			expectRules: 1,
		},
		{
			description: "medium and low are filtered",
			findings: []security.Finding{
				{Severity: security.SeverityMedium, SignatureID: "JS_EVAL_USAGE"},
				{Severity: security.SeverityLow, SignatureID: "JS_EVAL_USAGE"},
			},
			expectRules: 0,
		},
		{
			description: "unknown signature has no template",
			findings: []security.Finding{
				{Severity: security.SeverityCritical, SignatureID: "PROTOTYPE_POLLUTION"},
			},
			expectRules: 0,
		},
		{
			description: "duplicate findings collapse into one rule",
			findings: []security.Finding{
				{Severity: security.SeverityCritical, SignatureID: "JS_EVAL_USAGE"},
				{Severity: security.SeverityHigh, SignatureID: "js.eval.usage"},
			},
			expectRules: 1,
		},
	}

	for _, testCase := range testCases {
		rules := security.RulesForFindings(testCase.findings, pattern.StageSecurity)
		if !assert.Len(t, rules, testCase.expectRules, testCase.description) {
			continue
		}
		for _, rule := range rules {
			assert.Equal(t, pattern.CategorySecurity, rule.Category, testCase.description)
			assert.InDelta(t, 0.95, rule.Confidence, 1e-9, testCase.description)
			assert.True(t, rule.Confidence >= pattern.ApplyThreshold, testCase.description)
		}
	}
}

func TestSecurityRewrites(t *testing.T) {
	var testCases = []struct {
		description string
		signatureID string
		input       string
		expect      string
	}{
		{
			description: "eval replaced with JSON.parse",
			signatureID: "JS_EVAL_USAGE",
			input:       "const data = eval(payload);\n",
			expect:      "const data = JSON.parse(payload);\n",
		},
		{
			description: "innerHTML assignment becomes textContent",
			signatureID: "DOM_INNERHTML_WRITE",
			input:       "node.innerHTML = markup;\n",
			expect:      "node.textContent = markup;\n",
		},
		{
			description: "document.write downgraded to console.warn",
			signatureID: "document.write.call",
			input:       "document.write(banner);\n",
			expect:      "console.warn(banner);\n",
		},
		{
			description: "hardcoded secret moved to environment lookup",
			signatureID: "HARDCODED_SECRET",
			input:       `const config = { api_key: "abc123" };` + "\n",
			expect:      `const config = { api_key: process.env.API_KEY };` + "\n",
		},
		{
			description: "secret rewrite is case insensitive",
			signatureID: "HARDCODED_SECRET",
			input:       `const Token = 'hunter2';` + "\n",
			expect:      `const Token = process.env.TOKEN;` + "\n",
		},
	}

	for _, testCase := range testCases {
		rules := security.RulesForFindings([]security.Finding{
			{Severity: security.SeverityCritical, SignatureID: testCase.signatureID},
		}, pattern.StageSecurity)
		require.Len(t, rules, 1, testCase.description)
		actual, err := rules[0].Apply(testCase.input)
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, actual, testCase.description)
	}
}

func TestSeverityActionable(t *testing.T) {
	assert.True(t, security.SeverityCritical.Actionable())
	assert.True(t, security.SeverityHigh.Actionable())
	assert.False(t, security.SeverityMedium.Actionable())
	assert.False(t, security.SeverityLow.Actionable())
}
