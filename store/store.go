package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/morphein/pattern"
)

// RulesFile is the rule collection file name inside the state directory
const RulesFile = "rules.json"

// RuleStore is the deduplicating, persistent rule collection. It follows a
// load-then-mutate-then-save discipline over a single whole-collection file
// and is meant to exist at most once per process; concurrent writer processes
// sharing a project directory are not supported.
type RuleStore struct {
	fs             afs.Service
	location       string
	rules          []pattern.Rule
	applyThreshold float64
}

// NewRuleStore creates a rule store persisted under the given state directory
func NewRuleStore(stateDir string) *RuleStore {
	return &RuleStore{
		fs:             afs.New(),
		location:       path.Join(stateDir, RulesFile),
		applyThreshold: pattern.ApplyThreshold,
	}
}

// SetApplyThreshold overrides the minimum confidence for rule application
func (s *RuleStore) SetApplyThreshold(threshold float64) {
	s.applyThreshold = threshold
}

// Location returns the store's file location
func (s *RuleStore) Location() string {
	return s.location
}

// Rules returns the current in-memory rule collection in store order
func (s *RuleStore) Rules() []pattern.Rule {
	return s.rules
}

// Load reads the persisted rule collection; a missing or corrupt store
// degrades to an empty collection so learning never blocks transformation
func (s *RuleStore) Load(ctx context.Context) {
	s.rules = nil
	data, err := s.fs.DownloadWithURL(ctx, s.location)
	if err != nil || len(data) == 0 {
		return
	}
	var persisted []persistedRule
	if err := json.Unmarshal(data, &persisted); err != nil {
		debugf("rule store %s is corrupt: %v", s.location, err)
		return
	}
	for _, item := range persisted {
		rule, ok := item.toRule()
		if !ok {
			debugf("dropping invalid stored rule %q", item.Description)
			continue
		}
		s.rules = append(s.rules, rule)
	}
}

// Save persists the whole rule collection. A save failure surfaces to the
// caller rather than being swallowed; the in-memory collection is untouched.
func (s *RuleStore) Save(ctx context.Context) error {
	persisted := make([]persistedRule, 0, len(s.rules))
	for i := range s.rules {
		persisted = append(persisted, fromRule(&s.rules[i]))
	}
	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rule store: %w", err)
	}
	if err := s.fs.Upload(ctx, s.location, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save rule store %s: %w", s.location, err)
	}
	return nil
}

// Add merges the rule into an existing equivalent rule, incrementing
// frequency and nudging confidence, or appends it. It reports whether the
// rule was merged.
func (s *RuleStore) Add(rule pattern.Rule) bool {
	key := rule.Identity()
	for i := range s.rules {
		if s.rules[i].Identity() == key {
			s.rules[i].Reinforce()
			return true
		}
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Frequency == 0 {
		rule.Frequency = 1
	}
	s.rules = append(s.rules, rule)
	return false
}

// Eligible returns the rules at or above the application threshold, in store order
func (s *RuleStore) Eligible() []pattern.Rule {
	var eligible []pattern.Rule
	for i := range s.rules {
		if s.rules[i].Confidence >= s.applyThreshold {
			eligible = append(eligible, s.rules[i])
		}
	}
	return eligible
}

// Apply runs every sufficiently confident rule over the code in store order.
// A rule that fails to apply is skipped, never aborting the batch; rules that
// change the code contribute their description to the applied list.
func (s *RuleStore) Apply(code string) (string, []string) {
	var applied []string
	for i := range s.rules {
		rule := &s.rules[i]
		if rule.Confidence < s.applyThreshold {
			continue
		}
		next, err := rule.Apply(code)
		if err != nil {
			debugf("skipping rule %q: %v", rule.Description, err)
			continue
		}
		if next == code {
			continue
		}
		if rule.RequiredImport != "" {
			next = pattern.EnsureImport(next, rule.RequiredImport)
		}
		code = next
		applied = append(applied, rule.Description)
	}
	return code, applied
}

// Delete removes a rule by id, reporting whether it existed
func (s *RuleStore) Delete(id string) bool {
	for i := range s.rules {
		if s.rules[i].ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Reset discards all rules
func (s *RuleStore) Reset() {
	s.rules = nil
}

// RulePatch carries optional field updates for Edit
type RulePatch struct {
	Description    *string
	PatternSource  *string
	PatternFlags   *string
	Replacement    *string
	Confidence     *float64
	RequiredImport *string
}

// Edit applies a patch to the rule with the given id
func (s *RuleStore) Edit(id string, patch RulePatch) bool {
	for i := range s.rules {
		if s.rules[i].ID != id {
			continue
		}
		rule := &s.rules[i]
		if patch.Description != nil {
			rule.Description = *patch.Description
		}
		if patch.PatternSource != nil {
			rule.Matcher.Source = *patch.PatternSource
		}
		if patch.PatternFlags != nil {
			rule.Matcher.Flags = *patch.PatternFlags
		}
		if patch.Replacement != nil {
			rule.Replacement = pattern.Literal(*patch.Replacement)
		}
		if patch.Confidence != nil && *patch.Confidence >= 0 && *patch.Confidence <= 1 {
			rule.Confidence = *patch.Confidence
		}
		if patch.RequiredImport != nil {
			rule.RequiredImport = *patch.RequiredImport
		}
		return true
	}
	return false
}

// Export writes the rule collection to an arbitrary location
func (s *RuleStore) Export(ctx context.Context, location string) error {
	persisted := make([]persistedRule, 0, len(s.rules))
	for i := range s.rules {
		persisted = append(persisted, fromRule(&s.rules[i]))
	}
	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	if err := s.fs.Upload(ctx, location, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to export rules to %s: %w", location, err)
	}
	return nil
}

// Import merges rules from an exported collection into the store; both the
// explicit {source, flags} pattern schema and the legacy "/body/flags"
// stringified form are accepted
func (s *RuleStore) Import(ctx context.Context, location string) (int, error) {
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return 0, fmt.Errorf("failed to read rules from %s: %w", location, err)
	}
	var persisted []persistedRule
	if err := json.Unmarshal(data, &persisted); err != nil {
		return 0, fmt.Errorf("failed to decode rules from %s: %w", location, err)
	}
	imported := 0
	for _, item := range persisted {
		rule, ok := item.toRule()
		if !ok {
			continue
		}
		s.Add(rule)
		imported++
	}
	return imported, nil
}

// persistedRule is the on-disk rule schema
type persistedRule struct {
	ID             string       `json:"id,omitempty"`
	Description    string       `json:"description"`
	Pattern        patternJSON  `json:"pattern"`
	Guard          *patternJSON `json:"guard,omitempty"`
	Replacement    string       `json:"replacement,omitempty"`
	Template       string       `json:"template,omitempty"`
	Confidence     float64      `json:"confidence"`
	Frequency      int          `json:"frequency"`
	Layer          int          `json:"layer"`
	Category       string       `json:"category"`
	RequiredImport string       `json:"requiredImport,omitempty"`
}

// patternJSON decodes either the explicit {source, flags} schema or the
// legacy "/body/flags" stringified pattern
type patternJSON struct {
	Source string `json:"source"`
	Flags  string `json:"flags,omitempty"`
}

func (p *patternJSON) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		p.Source, p.Flags = splitLegacyPattern(raw)
		return nil
	}
	type alias patternJSON
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = patternJSON(decoded)
	return nil
}

// splitLegacyPattern parses the "/body/flags" form
func splitLegacyPattern(raw string) (string, string) {
	if !strings.HasPrefix(raw, "/") {
		return raw, ""
	}
	last := strings.LastIndexByte(raw, '/')
	if last <= 0 {
		return raw, ""
	}
	return raw[1:last], raw[last+1:]
}

func fromRule(rule *pattern.Rule) persistedRule {
	persisted := persistedRule{
		ID:             rule.ID,
		Description:    rule.Description,
		Pattern:        patternJSON{Source: rule.Matcher.Source, Flags: rule.Matcher.Flags},
		Confidence:     rule.Confidence,
		Frequency:      rule.Frequency,
		Layer:          int(rule.OriginStage),
		Category:       string(rule.Category),
		RequiredImport: rule.RequiredImport,
	}
	if rule.Guard.Source != "" {
		persisted.Guard = &patternJSON{Source: rule.Guard.Source, Flags: rule.Guard.Flags}
	}
	if rule.Replacement.IsTemplate() {
		persisted.Template = rule.Replacement.Template
	} else {
		persisted.Replacement = rule.Replacement.Literal
	}
	return persisted
}

func (p *persistedRule) toRule() (pattern.Rule, bool) {
	rule := pattern.Rule{
		ID:             p.ID,
		Description:    p.Description,
		Matcher:        pattern.Matcher{Source: p.Pattern.Source, Flags: p.Pattern.Flags},
		Confidence:     p.Confidence,
		Frequency:      p.Frequency,
		OriginStage:    pattern.Stage(p.Layer),
		Category:       pattern.Category(p.Category),
		RequiredImport: p.RequiredImport,
	}
	if p.Guard != nil {
		rule.Guard = pattern.Matcher{Source: p.Guard.Source, Flags: p.Guard.Flags}
	}
	if p.Template != "" {
		if _, ok := pattern.LookupTemplate(p.Template); !ok {
			return pattern.Rule{}, false
		}
		rule.Replacement = pattern.Template(p.Template)
	} else {
		rule.Replacement = pattern.Literal(p.Replacement)
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.Frequency == 0 {
		rule.Frequency = 1
	}
	if rule.Description == "" || rule.Matcher.Source == "" && rule.Replacement.Literal == "" {
		return pattern.Rule{}, false
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return pattern.Rule{}, false
	}
	return rule, true
}
