// Package outlier flags records whose z-score within their population
// exceeds a threshold and attaches a severity tier and a plain-language
// improbability to each.
package outlier

import (
	"fmt"
	"math"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/stats"
)

// ClassificationError reports an unusable classifier policy.
type ClassificationError struct {
	Message string
}

func (e *ClassificationError) Error() string {
	return e.Message
}

// Classifier scores populations against one policy.
type Classifier struct {
	cfg Config
}

// New returns a classifier for cfg.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ClassificationError{Message: fmt.Sprintf("invalid outlier policy: %v", err)}
	}
	return &Classifier{cfg: cfg}, nil
}

// Config returns the policy the classifier was built with.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Classify returns the candidates whose z-score is strictly above the
// threshold, ordered by z-score descending. Ties keep input order.
//
// Statistics come from pop.Stats when supplied, otherwise from the
// non-excluded candidates. An empty population or one with zero variance
// yields an empty, non-nil result.
func (c *Classifier) Classify(pop Population) []models.OutlierEntry {
	entries := []models.OutlierEntry{}

	values := make([]float64, 0, len(pop.Candidates))
	for _, cand := range pop.Candidates {
		if !cand.Excluded {
			values = append(values, cand.Value)
		}
	}
	if len(values) == 0 {
		return entries
	}

	mean, std, _ := stats.MeanStdDev(values)
	if pop.Stats != nil {
		mean, std = pop.Stats.Mean, pop.Stats.StdDev
	}
	if std == 0 {
		return entries
	}

	for _, cand := range pop.Candidates {
		if cand.Excluded {
			continue
		}
		z, ok := stats.ZScore(cand.Value, mean, std)
		if !ok || z <= c.cfg.Threshold {
			continue
		}
		entry, ok := FromComputedZScore(c.cfg, pop.Name, cand, models.ZScoreResult{
			Value:  cand.Value,
			Mean:   mean,
			StdDev: std,
			ZScore: z,
		})
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score.ZScore > entries[j].Score.ZScore
	})
	return entries
}

// FromComputedZScore builds an entry for a formulaic z-score. ok is false
// when z is below the first severity tier.
func FromComputedZScore(cfg Config, population string, cand Candidate, score models.ZScoreResult) (models.OutlierEntry, bool) {
	tier, level, ok := cfg.TierFor(score.ZScore)
	if !ok {
		return models.OutlierEntry{}, false
	}
	phrase, order := ProbabilityPhrase(score.ZScore)
	return models.OutlierEntry{
		ID:            cand.ID,
		Label:         cand.Label,
		Population:    population,
		Spending:      cand.Spending,
		Claims:        cand.Claims,
		Beneficiaries: cand.Beneficiaries,
		Score:         score,
		Level:         level,
		Tier:          tier.Label,
		Analogy: models.Analogy{
			Probability: phrase,
			Analogy:     cfg.BandFor(order),
			Severity:    tier.Severity,
		},
	}, true
}

// ProbabilityPhrase renders the one-sided normal tail P(Z > z) as "1 in N"
// and returns the order of magnitude of N.
func ProbabilityPhrase(z float64) (string, int) {
	order := int(math.Floor(-stats.Log10TailProbability(z)))
	if order < 0 {
		order = 0
	}
	p := stats.TailProbability(z)
	if p <= 0 {
		return fmt.Sprintf("< 1 in 10^%d", order), order
	}
	inv := 1 / p
	switch {
	case inv < 1e6:
		return "1 in " + humanize.Comma(int64(math.Round(inv))), order
	case inv < 1e9:
		return fmt.Sprintf("1 in %.1f million", inv/1e6), order
	case inv < 1e12:
		return fmt.Sprintf("1 in %.1f billion", inv/1e9), order
	default:
		return fmt.Sprintf("1 in 10^%d", order), order
	}
}
