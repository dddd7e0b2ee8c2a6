// Package models defines the domain entities for claimlens.
// These models represent pre-aggregated Medicaid claims statistics, the derived
// chart slices built from them, and the outputs of the analysis engine
// (insights and outlier entries).
//
// Aggregate records are produced upstream and loaded wholesale into memory.
// They are never mutated once a snapshot is loaded. Each record type carries
// its own Validate method so malformed input fails at the store boundary
// rather than turning into misleading statistics.
//
// Terminology:
//   - HCPCS: a standardized procedure/service billing code.
//   - NPI: National Provider Identifier, a unique billing-provider identifier.
//   - FMAP: Federal Medical Assistance Percentage, the federal matching share.
package models

import (
	"errors"
	"fmt"
	"math"
)

// YearlyRecord is total spending for one calendar year.
type YearlyRecord struct {
	Year          int     `json:"year" yaml:"year"`
	Spending      float64 `json:"spending" yaml:"spending"`
	Claims        float64 `json:"claims" yaml:"claims"`
	Beneficiaries float64 `json:"beneficiaries" yaml:"beneficiaries"`
}

// Validate checks that all yearly record fields are valid.
func (r *YearlyRecord) Validate() error {
	if r.Year < 1900 || r.Year > 2200 {
		return fmt.Errorf("year %d out of range", r.Year)
	}
	return checkMeasures(r.Spending, r.Claims, r.Beneficiaries)
}

// MonthlyRecord is total spending for one month, keyed "YYYY-MM".
type MonthlyRecord struct {
	Month         string  `json:"month" yaml:"month"`
	Spending      float64 `json:"spending" yaml:"spending"`
	Claims        float64 `json:"claims" yaml:"claims"`
	Beneficiaries float64 `json:"beneficiaries" yaml:"beneficiaries"`
}

// MonthNumber returns the two-digit month part of the key ("01".."12").
func (r *MonthlyRecord) MonthNumber() string {
	if len(r.Month) < 7 {
		return ""
	}
	return r.Month[5:7]
}

// Validate checks that all monthly record fields are valid.
func (r *MonthlyRecord) Validate() error {
	if len(r.Month) != 7 || r.Month[4] != '-' {
		return fmt.Errorf("month %q must be formatted YYYY-MM", r.Month)
	}
	n := r.MonthNumber()
	if n < "01" || n > "12" {
		return fmt.Errorf("month %q has invalid month number", r.Month)
	}
	return checkMeasures(r.Spending, r.Claims, r.Beneficiaries)
}

// ProviderRecord is one billing provider ranked by spending.
type ProviderRecord struct {
	NPI           string  `json:"npi" yaml:"npi"`
	Name          string  `json:"name,omitempty" yaml:"name"`
	Specialty     string  `json:"specialty,omitempty" yaml:"specialty"`
	State         string  `json:"state,omitempty" yaml:"state"`
	Spending      float64 `json:"spending" yaml:"spending"`
	Claims        float64 `json:"claims" yaml:"claims"`
	Beneficiaries float64 `json:"beneficiaries" yaml:"beneficiaries"`
}

// Validate checks that all provider record fields are valid.
func (r *ProviderRecord) Validate() error {
	if r.NPI == "" {
		return errors.New("provider NPI must not be empty")
	}
	return checkMeasures(r.Spending, r.Claims, r.Beneficiaries)
}

// DisplayName returns the provider name, falling back to the NPI.
func (r *ProviderRecord) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return "Provider " + r.NPI
}

// HCPCSRecord is one procedure code in a ranked series. Ratio carries the
// upstream ranking ratio for ratio-ranked series (cost per claim, cost per
// beneficiary, claims per beneficiary); zero means it was not supplied.
type HCPCSRecord struct {
	Code          string  `json:"code" yaml:"code"`
	Definition    string  `json:"definition,omitempty" yaml:"definition"`
	Category      string  `json:"category,omitempty" yaml:"category"`
	Spending      float64 `json:"spending" yaml:"spending"`
	Claims        float64 `json:"claims" yaml:"claims"`
	Beneficiaries float64 `json:"beneficiaries" yaml:"beneficiaries"`
	Providers     float64 `json:"providers,omitempty" yaml:"providers"`
	Ratio         float64 `json:"ratio,omitempty" yaml:"ratio"`
}

// Validate checks that all HCPCS record fields are valid.
func (r *HCPCSRecord) Validate() error {
	if r.Code == "" {
		return errors.New("HCPCS code must not be empty")
	}
	if err := checkMeasures(r.Spending, r.Claims, r.Beneficiaries, r.Providers); err != nil {
		return err
	}
	if r.Ratio < 0 || math.IsNaN(r.Ratio) || math.IsInf(r.Ratio, 0) {
		return fmt.Errorf("HCPCS %s ratio must be a non-negative finite number", r.Code)
	}
	return nil
}

// Label returns the definition, falling back to the code.
func (r *HCPCSRecord) Label() string {
	if r.Definition != "" {
		return r.Definition
	}
	return r.Code
}

// StateRecord is a state rollup with Census population and per-capita spending.
type StateRecord struct {
	State      string  `json:"state" yaml:"state"`
	Name       string  `json:"name,omitempty" yaml:"name"`
	Spending   float64 `json:"spending" yaml:"spending"`
	Claims     float64 `json:"claims" yaml:"claims"`
	Providers  float64 `json:"providers" yaml:"providers"`
	Population float64 `json:"population" yaml:"population"`
	PerCapita  float64 `json:"per_capita" yaml:"per_capita"`
}

// Validate checks that all state record fields are valid.
func (r *StateRecord) Validate() error {
	if r.State == "" {
		return errors.New("state code must not be empty")
	}
	return checkMeasures(r.Spending, r.Claims, r.Providers, r.Population, r.PerCapita)
}

// CityRecord is a city rollup.
type CityRecord struct {
	City      string  `json:"city" yaml:"city"`
	State     string  `json:"state" yaml:"state"`
	Spending  float64 `json:"spending" yaml:"spending"`
	Claims    float64 `json:"claims" yaml:"claims"`
	Providers float64 `json:"providers" yaml:"providers"`
}

// Validate checks that all city record fields are valid.
func (r *CityRecord) Validate() error {
	if r.City == "" {
		return errors.New("city must not be empty")
	}
	return checkMeasures(r.Spending, r.Claims, r.Providers)
}

// DistrictRecord is spending attributed to one congressional district.
type DistrictRecord struct {
	DistrictCode   string  `json:"district_code"`
	StateCode      string  `json:"state_code"`
	DistrictNumber string  `json:"district_number"`
	Spending       float64 `json:"spending"`
	Claims         float64 `json:"claims"`
	Beneficiaries  float64 `json:"beneficiaries"`
	Providers      float64 `json:"providers"`
}

// FMAPRecord is one state's federal matching rates and expansion status.
type FMAPRecord struct {
	StateCode string  `json:"state_code" yaml:"state_code"`
	StateName string  `json:"state_name" yaml:"state_name"`
	FY2024    float64 `json:"fy2024" yaml:"fy2024"`
	FY2023    float64 `json:"fy2023" yaml:"fy2023"`
	FY2022    float64 `json:"fy2022" yaml:"fy2022"`
	Expansion bool    `json:"expansion" yaml:"expansion"`
}

// Validate checks that all FMAP record fields are valid.
// The statutory floor is 50% and the ceiling 83%.
func (r *FMAPRecord) Validate() error {
	if r.StateCode == "" {
		return errors.New("FMAP state code must not be empty")
	}
	for _, rate := range []float64{r.FY2024, r.FY2023, r.FY2022} {
		if rate < 50 || rate > 85 {
			return fmt.Errorf("FMAP rate %.2f for %s must be between 50 and 85", rate, r.StateCode)
		}
	}
	return nil
}

// ProviderTier is a provider-count bucket by annual billing.
type ProviderTier struct {
	Tier     string  `json:"tier" yaml:"tier"`
	Count    float64 `json:"count" yaml:"count"`
	Spending float64 `json:"spending" yaml:"spending"`
}

// Validate checks that all provider tier fields are valid.
func (r *ProviderTier) Validate() error {
	if r.Tier == "" {
		return errors.New("provider tier label must not be empty")
	}
	return checkMeasures(r.Count, r.Spending)
}

// PopulationStats are full-population statistics computed upstream, used when
// the snapshot only carries the top-K of a population.
type PopulationStats struct {
	Name   string  `json:"name" yaml:"name"`
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
}

// Validate checks that all population stats fields are valid.
func (p *PopulationStats) Validate() error {
	if p.Name == "" {
		return errors.New("population name must not be empty")
	}
	if p.Count < 1 {
		return fmt.Errorf("population %s count must be at least 1", p.Name)
	}
	if p.StdDev < 0 || math.IsNaN(p.StdDev) || math.IsNaN(p.Mean) {
		return fmt.Errorf("population %s statistics must be finite with a non-negative std dev", p.Name)
	}
	return nil
}

func checkMeasures(values ...float64) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("measures must be finite")
		}
		if v < 0 {
			return errors.New("measures must not be negative")
		}
	}
	return nil
}
