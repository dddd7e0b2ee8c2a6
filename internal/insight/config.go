package insight

import (
	"errors"
	"fmt"
)

// RuleConfig holds every threshold and label the rules branch on.
type RuleConfig struct {
	InflationThreshold float64 `mapstructure:"inflation_threshold" json:"inflation_threshold"`

	PandemicYear     int     `mapstructure:"pandemic_year" json:"pandemic_year"`
	ReboundYear      int     `mapstructure:"rebound_year" json:"rebound_year"`
	ReboundThreshold float64 `mapstructure:"rebound_threshold" json:"rebound_threshold"`

	CategoryTopK                   int     `mapstructure:"category_top_k" json:"category_top_k"`
	CategoryConcentrationThreshold float64 `mapstructure:"category_concentration_threshold" json:"category_concentration_threshold"`

	TopBucketLabel                 string  `mapstructure:"top_bucket_label" json:"top_bucket_label"`
	OtherBucketLabel               string  `mapstructure:"other_bucket_label" json:"other_bucket_label"`
	ProviderConcentrationThreshold float64 `mapstructure:"provider_concentration_threshold" json:"provider_concentration_threshold"`

	GeographicTopK int `mapstructure:"geographic_top_k" json:"geographic_top_k"`

	SeasonalVarianceThreshold float64 `mapstructure:"seasonal_variance_threshold" json:"seasonal_variance_threshold"`

	SmallTierLabel string `mapstructure:"small_tier_label" json:"small_tier_label"`
	LargeTierLabel string `mapstructure:"large_tier_label" json:"large_tier_label"`

	FocusCategory   string `mapstructure:"focus_category" json:"focus_category"`
	MinFocusEntries int    `mapstructure:"min_focus_entries" json:"min_focus_entries"`

	MinPerCapitaStates int `mapstructure:"min_per_capita_states" json:"min_per_capita_states"`

	RepeatTopK int `mapstructure:"repeat_top_k" json:"repeat_top_k"`

	DesignatedCity string `mapstructure:"designated_city" json:"designated_city"`
	MinCities      int    `mapstructure:"min_cities" json:"min_cities"`
	CityWindow     int    `mapstructure:"city_window" json:"city_window"`

	MinUnitCostEntries int `mapstructure:"min_unit_cost_entries" json:"min_unit_cost_entries"`
	UnitCostTopK       int `mapstructure:"unit_cost_top_k" json:"unit_cost_top_k"`
}

// DefaultRuleConfig returns the standard thresholds and labels.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		InflationThreshold:             5,
		PandemicYear:                   2020,
		ReboundYear:                    2021,
		ReboundThreshold:               15,
		CategoryTopK:                   3,
		CategoryConcentrationThreshold: 70,
		TopBucketLabel:                 "Top 10",
		OtherBucketLabel:               "Others",
		ProviderConcentrationThreshold: 50,
		GeographicTopK:                 5,
		SeasonalVarianceThreshold:      20,
		SmallTierLabel:                 "<$1K",
		LargeTierLabel:                 ">$100K",
		FocusCategory:                  "Dental",
		MinFocusEntries:                3,
		MinPerCapitaStates:             5,
		RepeatTopK:                     5,
		DesignatedCity:                 "BROOKLYN",
		MinCities:                      5,
		CityWindow:                     10,
		MinUnitCostEntries:             10,
		UnitCostTopK:                   3,
	}
}

// Validate checks that the rule configuration is usable.
func (c RuleConfig) Validate() error {
	labels := map[string]string{
		"top bucket label":   c.TopBucketLabel,
		"other bucket label": c.OtherBucketLabel,
		"small tier label":   c.SmallTierLabel,
		"large tier label":   c.LargeTierLabel,
		"focus category":     c.FocusCategory,
		"designated city":    c.DesignatedCity,
	}
	for name, v := range labels {
		if v == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	if c.PandemicYear >= c.ReboundYear {
		return errors.New("pandemic year must precede the rebound year")
	}
	sizes := []struct {
		name string
		v    int
		min  int
	}{
		{"category top k", c.CategoryTopK, 1},
		{"geographic top k", c.GeographicTopK, 1},
		{"min focus entries", c.MinFocusEntries, 1},
		{"min per capita states", c.MinPerCapitaStates, 2},
		{"repeat top k", c.RepeatTopK, 1},
		{"min cities", c.MinCities, 1},
		{"city window", c.CityWindow, 1},
		{"unit cost top k", c.UnitCostTopK, 1},
		{"min unit cost entries", c.MinUnitCostEntries, c.UnitCostTopK},
	}
	for _, s := range sizes {
		if s.v < s.min {
			return fmt.Errorf("%s must be at least %d", s.name, s.min)
		}
	}
	return nil
}
