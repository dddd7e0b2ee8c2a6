// Package insight turns a derived chart set into templated narrative
// findings. Each rule reads only its declared chart slices and never depends
// on another rule's output.
package insight

import (
	"github.com/openmedicaid/claimlens/internal/logger"
	"github.com/openmedicaid/claimlens/internal/models"
)

// Synthesizer runs a rule catalog over a chart set.
type Synthesizer struct {
	cfg    RuleConfig
	rules  []Rule
	onSkip func(rule string)
	onEmit func(rule string, in models.Insight)
}

// Option customizes a Synthesizer.
type Option func(*Synthesizer)

// WithRules replaces the default catalog.
func WithRules(rules []Rule) Option {
	return func(s *Synthesizer) { s.rules = rules }
}

// WithSkipHook registers a callback for rules whose precondition fails.
func WithSkipHook(fn func(rule string)) Option {
	return func(s *Synthesizer) { s.onSkip = fn }
}

// WithEmitHook registers a callback for every emitted insight.
func WithEmitHook(fn func(rule string, in models.Insight)) Option {
	return func(s *Synthesizer) { s.onEmit = fn }
}

// New returns a synthesizer over the default catalog.
func New(cfg RuleConfig, opts ...Option) *Synthesizer {
	s := &Synthesizer{cfg: cfg, rules: Catalog()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate evaluates every rule in catalog order. Rules whose precondition is
// not met are skipped; the result is never nil.
func (s *Synthesizer) Generate(cs models.ChartSet) []models.Insight {
	insights := make([]models.Insight, 0, len(s.rules))
	for _, rule := range s.rules {
		in, ok := rule.Apply(cs, s.cfg)
		if !ok {
			logger.Debug("Insight rule %s skipped: precondition not met", rule.Name)
			if s.onSkip != nil {
				s.onSkip(rule.Name)
			}
			continue
		}
		insights = append(insights, in)
		if s.onEmit != nil {
			s.onEmit(rule.Name, in)
		}
	}
	return insights
}

// Summary counts findings per category.
type Summary struct {
	Total      int                            `json:"total"`
	ByCategory map[models.InsightCategory]int `json:"by_category"`
}

// Summarize counts insights per category. Every known category is present,
// with zero when nothing was emitted for it.
func Summarize(insights []models.Insight) Summary {
	sum := Summary{ByCategory: make(map[models.InsightCategory]int, len(models.InsightCategories))}
	for _, c := range models.InsightCategories {
		sum.ByCategory[c] = 0
	}
	for _, in := range insights {
		sum.ByCategory[in.Category]++
		sum.Total++
	}
	return sum
}
