// Package learner is the subsystem entry point: transformation stages report
// before/after code pairs here, candidate rules are extracted and merged into
// the persistent store, and the accumulated ruleset is applied back through
// the safety pipeline.
package learner

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/morphein/pattern"
	"github.com/viant/morphein/safety"
	"github.com/viant/morphein/security"
	"github.com/viant/morphein/store"
	"github.com/viant/morphein/syntax"
)

// Input is the upstream contract: each stage supplies the original and
// transformed code for a file after processing it, plus findings when the
// stage is the security scanner
type Input struct {
	OriginalCode string
	Code         string
	FilePath     string
	Stage        pattern.Stage
	Findings     []security.Finding
}

// Result reports what one learning call did
type Result struct {
	Code        string
	NewRules    int
	MergedRules int
	Applied     []string
	Outcome     safety.Outcome
}

// Summary describes one replayed log entry during cross-session loading
type Summary struct {
	FilePath string
	Stage    pattern.Stage
	Learned  int
}

// Learner holds the per-run learning state explicitly: the rule store, the
// transformation log, the cross-session watermark and tuning options. It is
// a plain struct rather than a module-level singleton so isolated instances
// can run side by side in tests.
type Learner struct {
	options   Options
	extractor *pattern.Extractor
	rules     *store.RuleStore
	log       *store.TransformationLog
	session   *store.Session
	loaded    bool
}

// New creates a Learner persisting under the given state directory; nil
// options load the state directory's config file or defaults
func New(stateDir string, options *Options) *Learner {
	opts := LoadOptions(stateDir)
	if options != nil {
		opts = *options
	}
	rules := store.NewRuleStore(stateDir)
	rules.SetApplyThreshold(opts.ApplyThreshold)
	return &Learner{
		options:   opts,
		extractor: pattern.NewExtractor(),
		rules:     rules,
		log:       store.NewTransformationLog(stateDir),
		session:   store.NewSession(stateDir),
	}
}

// Store exposes the learner's rule store for the management surface
func (l *Learner) Store() *store.RuleStore {
	return l.rules
}

// Log exposes the learner's transformation log
func (l *Learner) Log() *store.TransformationLog {
	return l.log
}

// Learn extracts candidate rules from a stage's before/after pair, merges
// them into the store, records the observation in the transformation log and
// applies the current ruleset back to the file through the safety pipeline.
// Extraction and logging degrade silently so learning never blocks the
// primary transformation; a store save failure surfaces as an error alongside
// the already-computed result.
func (l *Learner) Learn(ctx context.Context, input Input) (*Result, error) {
	if !input.Stage.Valid() {
		return nil, fmt.Errorf("invalid origin stage %d", input.Stage)
	}
	l.ensureLoaded(ctx)

	dialect := syntax.DialectForPath(input.FilePath)
	candidates := l.extractor.Extract(ctx, []byte(input.OriginalCode), []byte(input.Code), input.Stage, dialect)
	candidates = append(candidates, security.RulesForFindings(input.Findings, input.Stage)...)

	result := &Result{}
	for _, candidate := range candidates {
		if l.rules.Add(candidate) {
			result.MergedRules++
		} else {
			result.NewRules++
		}
	}
	l.debugf("learned %d new and %d merged rules from %s (stage %s)",
		result.NewRules, result.MergedRules, input.FilePath, input.Stage.Name())

	if err := l.log.Append(ctx, store.LogEntry{
		Timestamp:   time.Now(),
		BeforeCode:  input.OriginalCode,
		AfterCode:   input.Code,
		OriginStage: input.Stage,
		FilePath:    input.FilePath,
	}); err != nil {
		l.debugf("failed to append transformation log: %v", err)
	}

	pipeline := safety.NewPipeline(dialect)
	applied := pipeline.Transform(ctx, input.Code, l.rules)
	result.Code = applied.Code
	result.Applied = applied.Applied
	result.Outcome = applied.Outcome

	if err := l.rules.Save(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// LoadCrossSession replays transformation-log entries recorded after the
// persisted watermark through the extractors, exactly as same-session
// observations, then advances the watermark to now so each entry contributes
// exactly once even across restarts. A corrupt or missing log degrades to an
// empty replay rather than failing the run.
func (l *Learner) LoadCrossSession(ctx context.Context) ([]Summary, error) {
	l.ensureLoaded(ctx)
	l.session.Load(ctx)

	entries := l.log.EntriesSince(ctx, l.session.LastLoadTime)
	var summaries []Summary
	for _, entry := range entries {
		dialect := syntax.DialectForPath(entry.FilePath)
		candidates := l.extractor.Extract(ctx, []byte(entry.BeforeCode), []byte(entry.AfterCode), entry.OriginStage, dialect)
		learned := 0
		for _, candidate := range candidates {
			if !l.rules.Add(candidate) {
				learned++
			}
		}
		summaries = append(summaries, Summary{
			FilePath: entry.FilePath,
			Stage:    entry.OriginStage,
			Learned:  learned,
		})
	}

	l.session.LastLoadTime = time.Now()
	if err := l.session.Save(ctx); err != nil {
		return summaries, err
	}
	if len(entries) > 0 {
		if err := l.rules.Save(ctx); err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// ClearHistory truncates the transformation log and resets the watermark
func (l *Learner) ClearHistory(ctx context.Context) error {
	if err := l.log.Clear(ctx); err != nil {
		return err
	}
	l.session.LastLoadTime = time.Time{}
	return l.session.Save(ctx)
}

func (l *Learner) ensureLoaded(ctx context.Context) {
	if l.loaded {
		return
	}
	l.rules.Load(ctx)
	l.loaded = true
}
