package models

import (
	"errors"
	"fmt"
)

// InsightCategory tags a finding. The set is closed.
type InsightCategory string

const (
	CategoryTrend         InsightCategory = "trend"
	CategoryEfficiency    InsightCategory = "efficiency"
	CategoryGeographic    InsightCategory = "geographic"
	CategoryConcentration InsightCategory = "concentration"
	CategoryAnomaly       InsightCategory = "anomaly"
)

// InsightCategories lists every category in display order.
var InsightCategories = []InsightCategory{
	CategoryTrend,
	CategoryEfficiency,
	CategoryGeographic,
	CategoryConcentration,
	CategoryAnomaly,
}

// Valid reports whether c is one of the known categories.
func (c InsightCategory) Valid() bool {
	for _, known := range InsightCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Insight is one templated finding with computed statistics substituted in.
type Insight struct {
	Title       string          `json:"title"`
	Finding     string          `json:"finding"`
	Implication string          `json:"implication"`
	Category    InsightCategory `json:"category"`
}

// Validate checks that all insight fields are valid.
func (i *Insight) Validate() error {
	if i.Title == "" {
		return errors.New("insight title must not be empty")
	}
	if i.Finding == "" {
		return errors.New("insight finding must not be empty")
	}
	if i.Implication == "" {
		return errors.New("insight implication must not be empty")
	}
	if !i.Category.Valid() {
		return fmt.Errorf("insight category %q is not recognized", i.Category)
	}
	return nil
}
