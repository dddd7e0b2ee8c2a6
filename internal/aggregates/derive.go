package aggregates

import (
	"math"
	"sort"

	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/stats"
)

// BeneficiaryEstimateRatio approximates beneficiaries from claims when the
// true count is unavailable. It is a placeholder heuristic, not a measured
// statistic, and rows using it are flagged.
const BeneficiaryEstimateRatio = 0.6

// DefaultValidStateCodes are the 50 states, DC and the five inhabited
// territories. Military and malformed codes are dropped from state views.
var DefaultValidStateCodes = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
	"DC", "PR", "VI", "GU", "AS", "MP",
}

// DeriveOptions controls the reshaping of a snapshot.
type DeriveOptions struct {
	BeneficiaryEstimateRatio float64
	ValidStateCodes          []string
	TopBucketLabel           string
	OtherBucketLabel         string
	TopBucketSize            int
	PerCapitaLimit           int
	CityLimit                int
}

// DefaultDeriveOptions returns the standard chart shaping.
func DefaultDeriveOptions() DeriveOptions {
	return DeriveOptions{
		BeneficiaryEstimateRatio: BeneficiaryEstimateRatio,
		ValidStateCodes:          DefaultValidStateCodes,
		TopBucketLabel:           "Top 10",
		OtherBucketLabel:         "Others",
		TopBucketSize:            10,
		PerCapitaLimit:           10,
		CityLimit:                50,
	}
}

// Derive builds the chart set for s. It never modifies s.
func Derive(s *models.Snapshot, opts DeriveOptions) models.ChartSet {
	cs := models.ChartSet{
		Yearly:               deriveYearly(s.Yearly),
		Monthly:              deriveMonthly(s.Monthly, opts.BeneficiaryEstimateRatio),
		Seasonal:             deriveSeasonal(s.Monthly),
		TopProviders:         deriveProviders(s.TopProviders, opts.BeneficiaryEstimateRatio),
		Concentration:        deriveConcentration(s, opts),
		ProviderTiers:        append([]models.ProviderTier{}, s.ProviderTiers...),
		TopHCPCS:             append([]models.HCPCSRecord{}, s.HCPCSBySpending...),
		TopByClaims:          append([]models.HCPCSRecord{}, s.HCPCSByClaims...),
		Categories:           deriveCategories(s.HCPCSBySpending),
		CostPerClaim:         deriveRatios(s.HCPCSByCostPerClaim, func(h models.HCPCSRecord) (float64, bool) { return stats.Ratio(h.Spending, h.Claims) }),
		CostPerBeneficiary:   deriveRatios(s.HCPCSByCostPerBeneficiary, func(h models.HCPCSRecord) (float64, bool) { return stats.Ratio(h.Spending, h.Beneficiaries) }),
		ClaimsPerBeneficiary: deriveRatios(s.HCPCSByClaimsPerBeneficiary, func(h models.HCPCSRecord) (float64, bool) { return stats.Ratio(h.Claims, h.Beneficiaries) }),
	}

	valid := make(map[string]bool, len(opts.ValidStateCodes))
	for _, code := range opts.ValidStateCodes {
		valid[code] = true
	}
	cs.States = []models.StateRecord{}
	for _, st := range s.States {
		if valid[st.State] {
			cs.States = append(cs.States, st)
		}
	}
	perCapita := append([]models.StateRecord{}, cs.States...)
	sort.SliceStable(perCapita, func(i, j int) bool {
		return perCapita[i].PerCapita > perCapita[j].PerCapita
	})
	cs.StatesByPerCapita = perCapita[:min(opts.PerCapitaLimit, len(perCapita))]

	cs.Cities = append([]models.CityRecord{}, s.Cities[:min(opts.CityLimit, len(s.Cities))]...)
	return cs
}

func deriveYearly(records []models.YearlyRecord) []models.YearlyPoint {
	sorted := append([]models.YearlyRecord{}, records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	points := make([]models.YearlyPoint, len(sorted))
	for i, r := range sorted {
		p := models.YearlyPoint{Year: r.Year, Spending: r.Spending, Claims: r.Claims, Beneficiaries: r.Beneficiaries}
		if i > 0 && sorted[i-1].Spending > 0 {
			prev := sorted[i-1].Spending
			p.Growth = (r.Spending - prev) / prev * 100
		}
		points[i] = p
	}
	return points
}

func estimate(beneficiaries, claims, ratio float64) (float64, bool) {
	if beneficiaries == 0 && claims > 0 && ratio > 0 {
		return math.Round(claims * ratio), true
	}
	return beneficiaries, false
}

func deriveMonthly(records []models.MonthlyRecord, ratio float64) []models.MonthlyPoint {
	points := make([]models.MonthlyPoint, len(records))
	for i, r := range records {
		b, est := estimate(r.Beneficiaries, r.Claims, ratio)
		points[i] = models.MonthlyPoint{
			Month:                  r.Month,
			Spending:               r.Spending,
			Claims:                 r.Claims,
			Beneficiaries:          b,
			BeneficiariesEstimated: est,
		}
	}
	return points
}

func deriveSeasonal(records []models.MonthlyRecord) []models.SeasonalPoint {
	byMonth := make(map[string]*models.SeasonalPoint, 12)
	for _, r := range records {
		n := r.MonthNumber()
		p, ok := byMonth[n]
		if !ok {
			p = &models.SeasonalPoint{Month: n}
			byMonth[n] = p
		}
		p.Spending += r.Spending
		p.Claims += r.Claims
	}
	points := make([]models.SeasonalPoint, 0, len(byMonth))
	for _, p := range byMonth {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Month < points[j].Month })
	return points
}

func deriveProviders(records []models.ProviderRecord, ratio float64) []models.ProviderPoint {
	points := make([]models.ProviderPoint, len(records))
	for i, r := range records {
		b, est := estimate(r.Beneficiaries, r.Claims, ratio)
		r.Beneficiaries = b
		if r.Name == "" {
			r.Name = r.DisplayName()
		}
		points[i] = models.ProviderPoint{ProviderRecord: r, BeneficiariesEstimated: est}
	}
	return points
}

// deriveConcentration splits total spending into the top provider bucket and
// everyone else. Others is omitted when the snapshot has no total.
func deriveConcentration(s *models.Snapshot, opts DeriveOptions) []models.CategorySpend {
	buckets := []models.CategorySpend{}
	if len(s.TopProviders) == 0 {
		return buckets
	}
	var top float64
	for _, p := range s.TopProviders[:min(opts.TopBucketSize, len(s.TopProviders))] {
		top += p.Spending
	}
	buckets = append(buckets, models.CategorySpend{Category: opts.TopBucketLabel, Spending: top})
	if s.TotalSpending > 0 {
		buckets = append(buckets, models.CategorySpend{Category: opts.OtherBucketLabel, Spending: math.Max(s.TotalSpending-top, 0)})
	}
	return buckets
}

func deriveCategories(records []models.HCPCSRecord) []models.CategorySpend {
	totals := make(map[string]float64)
	for _, r := range records {
		cat := r.Category
		if cat == "" {
			cat = "Other"
		}
		totals[cat] += r.Spending
	}
	cats := make([]models.CategorySpend, 0, len(totals))
	for c, v := range totals {
		cats = append(cats, models.CategorySpend{Category: c, Spending: v})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Spending != cats[j].Spending {
			return cats[i].Spending > cats[j].Spending
		}
		return cats[i].Category < cats[j].Category
	})
	return cats
}

// deriveRatios keeps the upstream ranking order. A supplied ratio wins;
// otherwise compute derives it and rows with an excluded ratio are dropped.
func deriveRatios(records []models.HCPCSRecord, compute func(models.HCPCSRecord) (float64, bool)) []models.RatioPoint {
	points := make([]models.RatioPoint, 0, len(records))
	for _, r := range records {
		ratio, ok := r.Ratio, r.Ratio > 0
		if !ok {
			ratio, ok = compute(r)
		}
		if !ok {
			continue
		}
		points = append(points, models.RatioPoint{
			Code:          r.Code,
			Definition:    r.Definition,
			Category:      r.Category,
			Spending:      r.Spending,
			Claims:        r.Claims,
			Beneficiaries: r.Beneficiaries,
			Ratio:         ratio,
		})
	}
	return points
}
