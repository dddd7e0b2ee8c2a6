package outlier

import (
	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/stats"
)

// Population names shared by the classifier, the curated catalog and the API.
const (
	PopulationProviderSpending     = "provider_spending"
	PopulationHCPCSSpending        = "hcpcs_spending"
	PopulationCostPerClaim         = "cost_per_claim"
	PopulationClaimsPerBeneficiary = "claims_per_beneficiary"
	PopulationDistrictSpending     = "district_spending"
)

// Populations lists every population in report order.
var Populations = []string{
	PopulationProviderSpending,
	PopulationHCPCSSpending,
	PopulationCostPerClaim,
	PopulationClaimsPerBeneficiary,
	PopulationDistrictSpending,
}

// Candidate is one member of a population. Excluded marks candidates whose
// value could not be computed (a ratio with no valid denominator).
type Candidate struct {
	ID            string
	Label         string
	Value         float64
	Spending      float64
	Claims        float64
	Beneficiaries float64
	Excluded      bool
}

// Population is a named candidate set. When Stats is set the z-scores are
// taken against those upstream full-population statistics instead of the
// candidates themselves.
type Population struct {
	Name       string
	Candidates []Candidate
	Stats      *models.PopulationStats
}

// ProviderSpending builds the provider spending population.
func ProviderSpending(providers []models.ProviderRecord, ps *models.PopulationStats) Population {
	pop := Population{Name: PopulationProviderSpending, Stats: ps}
	for _, p := range providers {
		pop.Candidates = append(pop.Candidates, Candidate{
			ID:            p.NPI,
			Label:         p.Name,
			Value:         p.Spending,
			Spending:      p.Spending,
			Claims:        p.Claims,
			Beneficiaries: p.Beneficiaries,
		})
	}
	return pop
}

// HCPCSSpending builds the procedure-code spending population.
func HCPCSSpending(codes []models.HCPCSRecord, ps *models.PopulationStats) Population {
	pop := Population{Name: PopulationHCPCSSpending, Stats: ps}
	for _, c := range codes {
		pop.Candidates = append(pop.Candidates, hcpcsCandidate(c, c.Spending, false))
	}
	return pop
}

// CostPerClaim builds the cost-per-claim population. A precomputed ratio is
// used when present; otherwise spending/claims, excluded when claims <= 0.
func CostPerClaim(codes []models.HCPCSRecord, ps *models.PopulationStats) Population {
	pop := Population{Name: PopulationCostPerClaim, Stats: ps}
	for _, c := range codes {
		v, ok := c.Ratio, c.Ratio > 0
		if !ok {
			v, ok = stats.Ratio(c.Spending, c.Claims)
		}
		pop.Candidates = append(pop.Candidates, hcpcsCandidate(c, v, !ok))
	}
	return pop
}

// ClaimsPerBeneficiary builds the claims-per-beneficiary population,
// excluded when beneficiaries <= 0 and no ratio was supplied.
func ClaimsPerBeneficiary(codes []models.HCPCSRecord, ps *models.PopulationStats) Population {
	pop := Population{Name: PopulationClaimsPerBeneficiary, Stats: ps}
	for _, c := range codes {
		v, ok := c.Ratio, c.Ratio > 0
		if !ok {
			v, ok = stats.Ratio(c.Claims, c.Beneficiaries)
		}
		pop.Candidates = append(pop.Candidates, hcpcsCandidate(c, v, !ok))
	}
	return pop
}

// DistrictSpending builds the congressional district population. Districts
// with no attributed spending are excluded, as they carry no data.
func DistrictSpending(districts []models.DistrictRecord) Population {
	pop := Population{Name: PopulationDistrictSpending}
	for _, d := range districts {
		pop.Candidates = append(pop.Candidates, Candidate{
			ID:            d.DistrictCode,
			Label:         d.StateCode,
			Value:         d.Spending,
			Spending:      d.Spending,
			Claims:        d.Claims,
			Beneficiaries: d.Beneficiaries,
			Excluded:      d.Spending <= 0,
		})
	}
	return pop
}

func hcpcsCandidate(c models.HCPCSRecord, value float64, excluded bool) Candidate {
	return Candidate{
		ID:            c.Code,
		Label:         c.Definition,
		Value:         value,
		Spending:      c.Spending,
		Claims:        c.Claims,
		Beneficiaries: c.Beneficiaries,
		Excluded:      excluded,
	}
}
