package models

// YearlyPoint is a yearly record with its growth over the prior year.
type YearlyPoint struct {
	Year          int     `json:"year"`
	Spending      float64 `json:"spending"`
	Claims        float64 `json:"claims"`
	Beneficiaries float64 `json:"beneficiaries"`
	Growth        float64 `json:"growth"` // percent vs prior year, 0 for the first year
}

// MonthlyPoint is a monthly record. BeneficiariesEstimated marks rows whose
// beneficiary count was approximated from claims.
type MonthlyPoint struct {
	Month                  string  `json:"month"`
	Spending               float64 `json:"spending"`
	Claims                 float64 `json:"claims"`
	Beneficiaries          float64 `json:"beneficiaries"`
	BeneficiariesEstimated bool    `json:"beneficiaries_estimated,omitempty"`
}

// SeasonalPoint is spending summed across years for one month number.
type SeasonalPoint struct {
	Month    string  `json:"month"` // "01".."12"
	Spending float64 `json:"spending"`
	Claims   float64 `json:"claims"`
}

// ProviderPoint is a top provider with possibly estimated beneficiaries.
type ProviderPoint struct {
	ProviderRecord
	BeneficiariesEstimated bool `json:"beneficiaries_estimated,omitempty"`
}

// CategorySpend is spending for a service category or a concentration bucket.
type CategorySpend struct {
	Category string  `json:"category"`
	Spending float64 `json:"spending"`
}

// RatioPoint is a procedure code ranked by a derived ratio.
type RatioPoint struct {
	Code          string  `json:"code"`
	Definition    string  `json:"definition"`
	Category      string  `json:"category,omitempty"`
	Spending      float64 `json:"spending"`
	Claims        float64 `json:"claims"`
	Beneficiaries float64 `json:"beneficiaries"`
	Ratio         float64 `json:"ratio"`
}

// ChartSet is the derived, presentation-ready view of a snapshot. Insight
// rules read only from a ChartSet.
type ChartSet struct {
	Yearly               []YearlyPoint   `json:"yearly"`
	Monthly              []MonthlyPoint  `json:"monthly"`
	Seasonal             []SeasonalPoint `json:"seasonal"`
	TopProviders         []ProviderPoint `json:"top_providers"`
	Concentration        []CategorySpend `json:"concentration"`
	ProviderTiers        []ProviderTier  `json:"provider_tiers"`
	TopHCPCS             []HCPCSRecord   `json:"top_hcpcs"`
	TopByClaims          []HCPCSRecord   `json:"top_by_claims"`
	Categories           []CategorySpend `json:"categories"`
	CostPerClaim         []RatioPoint    `json:"cost_per_claim"`
	CostPerBeneficiary   []RatioPoint    `json:"cost_per_beneficiary"`
	ClaimsPerBeneficiary []RatioPoint    `json:"claims_per_beneficiary"`
	States               []StateRecord   `json:"states"`
	StatesByPerCapita    []StateRecord   `json:"states_by_per_capita"`
	Cities               []CityRecord    `json:"cities"`
}
