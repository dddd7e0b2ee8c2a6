package models

import (
	"fmt"
	"time"
)

// Snapshot is one read-only view of the Aggregate Store. Every array is
// ranked the way upstream produced it (for example HCPCSBySpending is
// descending by spending) and consumers must keep that order.
type Snapshot struct {
	ComputedAt      time.Time `json:"computed_at" yaml:"computed_at"`
	Source          string    `json:"source" yaml:"source"`
	Methodology     string    `json:"methodology,omitempty" yaml:"methodology"`
	TotalSpending   float64   `json:"total_spending" yaml:"total_spending"`
	TotalProviders  int       `json:"total_providers" yaml:"total_providers"`
	TotalHCPCSCodes int       `json:"total_hcpcs_codes" yaml:"total_hcpcs_codes"`

	Yearly        []YearlyRecord   `json:"yearly" yaml:"yearly"`
	Monthly       []MonthlyRecord  `json:"monthly" yaml:"monthly"`
	TopProviders  []ProviderRecord `json:"top_providers" yaml:"top_providers"`
	ProviderTiers []ProviderTier   `json:"provider_tiers" yaml:"provider_tiers"`

	HCPCSBySpending             []HCPCSRecord `json:"hcpcs_by_spending" yaml:"hcpcs_by_spending"`
	HCPCSByClaims               []HCPCSRecord `json:"hcpcs_by_claims" yaml:"hcpcs_by_claims"`
	HCPCSByCostPerClaim         []HCPCSRecord `json:"hcpcs_by_cost_per_claim" yaml:"hcpcs_by_cost_per_claim"`
	HCPCSByCostPerBeneficiary   []HCPCSRecord `json:"hcpcs_by_cost_per_beneficiary" yaml:"hcpcs_by_cost_per_beneficiary"`
	HCPCSByClaimsPerBeneficiary []HCPCSRecord `json:"hcpcs_by_claims_per_beneficiary" yaml:"hcpcs_by_claims_per_beneficiary"`

	States         []StateRecord     `json:"states" yaml:"states"`
	Cities         []CityRecord      `json:"cities" yaml:"cities"`
	FMAP           []FMAPRecord      `json:"fmap" yaml:"fmap"`
	DistrictCounts map[string]int    `json:"district_counts" yaml:"district_counts"`
	Populations    []PopulationStats `json:"populations" yaml:"populations"`
}

// ValidationError names the first malformed record found in a snapshot.
type ValidationError struct {
	Slice string
	Index int
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid %s: %v", e.Slice, e.Err)
	}
	return fmt.Sprintf("invalid %s[%d]: %v", e.Slice, e.Index, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

type validator interface {
	Validate() error
}

func validateSlice[T any, P interface {
	*T
	validator
}](name string, items []T) error {
	for i := range items {
		if err := P(&items[i]).Validate(); err != nil {
			return &ValidationError{Slice: name, Index: i, Err: err}
		}
	}
	return nil
}

// Validate checks every record in the snapshot and returns a *ValidationError
// for the first malformed one. Empty arrays are valid: rules that need them
// simply do not fire.
func (s *Snapshot) Validate() error {
	if s.TotalSpending < 0 {
		return &ValidationError{Slice: "total_spending", Index: -1, Err: fmt.Errorf("must not be negative")}
	}
	checks := []func() error{
		func() error { return validateSlice("yearly", s.Yearly) },
		func() error { return validateSlice("monthly", s.Monthly) },
		func() error { return validateSlice("top_providers", s.TopProviders) },
		func() error { return validateSlice("provider_tiers", s.ProviderTiers) },
		func() error { return validateSlice("hcpcs_by_spending", s.HCPCSBySpending) },
		func() error { return validateSlice("hcpcs_by_claims", s.HCPCSByClaims) },
		func() error { return validateSlice("hcpcs_by_cost_per_claim", s.HCPCSByCostPerClaim) },
		func() error { return validateSlice("hcpcs_by_cost_per_beneficiary", s.HCPCSByCostPerBeneficiary) },
		func() error { return validateSlice("hcpcs_by_claims_per_beneficiary", s.HCPCSByClaimsPerBeneficiary) },
		func() error { return validateSlice("states", s.States) },
		func() error { return validateSlice("cities", s.Cities) },
		func() error { return validateSlice("fmap", s.FMAP) },
		func() error { return validateSlice("populations", s.Populations) },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	seen := make(map[int]bool, len(s.Yearly))
	for i, y := range s.Yearly {
		if seen[y.Year] {
			return &ValidationError{Slice: "yearly", Index: i, Err: fmt.Errorf("duplicate year %d", y.Year)}
		}
		seen[y.Year] = true
	}
	for state, n := range s.DistrictCounts {
		if n < 1 {
			return &ValidationError{Slice: "district_counts", Index: -1, Err: fmt.Errorf("state %s must have at least 1 district", state)}
		}
	}
	return nil
}

// Population returns the named precomputed population statistics, if present.
func (s *Snapshot) Population(name string) *PopulationStats {
	for i := range s.Populations {
		if s.Populations[i].Name == name {
			return &s.Populations[i]
		}
	}
	return nil
}
