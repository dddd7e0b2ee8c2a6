package analysis

import (
	"time"

	"github.com/openmedicaid/claimlens/internal/federal"
	"github.com/openmedicaid/claimlens/internal/insight"
	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/outlier"
)

// Report is everything computed from one snapshot. It is immutable once
// built and serializes identically for identical inputs.
type Report struct {
	ID          string    `json:"id"`
	ComputedAt  time.Time `json:"computed_at"`
	Source      string    `json:"source"`
	Methodology string    `json:"methodology,omitempty"`
	Totals      Totals    `json:"totals"`

	Charts   models.ChartSet  `json:"charts"`
	Insights []models.Insight `json:"insights"`
	Summary  insight.Summary  `json:"summary"`

	Outliers        map[string][]models.OutlierEntry `json:"outliers"`
	Curated         map[string][]models.OutlierEntry `json:"curated_outliers"`
	CuratedMetadata *outlier.CatalogMetadata         `json:"curated_metadata,omitempty"`

	Federal federal.Analysis `json:"federal"`
}

// Totals are the snapshot headline numbers.
type Totals struct {
	Spending   float64 `json:"spending"`
	Providers  int     `json:"providers"`
	HCPCSCodes int     `json:"hcpcs_codes"`
}

// Entries returns the computed or curated outliers of a population.
func (r *Report) Entries(population string, curated bool) []models.OutlierEntry {
	src := r.Outliers
	if curated {
		src = r.Curated
	}
	if entries, ok := src[population]; ok {
		return entries
	}
	return []models.OutlierEntry{}
}

// OutlierCount counts computed and curated entries together.
func (r *Report) OutlierCount() int {
	n := 0
	for _, entries := range r.Outliers {
		n += len(entries)
	}
	for _, entries := range r.Curated {
		n += len(entries)
	}
	return n
}

// TopInsights returns up to n insights of the given category, in catalog
// order.
func (r *Report) TopInsights(category models.InsightCategory, n int) []models.Insight {
	var out []models.Insight
	for _, in := range r.Insights {
		if in.Category == category && len(out) < n {
			out = append(out, in)
		}
	}
	return out
}
