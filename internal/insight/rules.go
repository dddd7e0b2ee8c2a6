package insight

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/stats"
)

// Rule is one independent finding generator. Apply returns false when the
// rule's minimum-data precondition is not met.
type Rule struct {
	Name   string
	Slices []string
	Apply  func(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool)
}

// Catalog returns the rules in evaluation order.
func Catalog() []Rule {
	return []Rule{
		{Name: "multi_year_trajectory", Slices: []string{"yearly"}, Apply: YearlyTrajectory},
		{Name: "pandemic_pattern", Slices: []string{"yearly"}, Apply: PandemicPattern},
		{Name: "category_concentration", Slices: []string{"categories"}, Apply: CategoryConcentration},
		{Name: "provider_concentration", Slices: []string{"concentration"}, Apply: ProviderConcentration},
		{Name: "geographic_providers", Slices: []string{"states"}, Apply: GeographicProviders},
		{Name: "procedure_cost_outliers", Slices: []string{"cost_per_claim", "cost_per_beneficiary"}, Apply: ProcedureCostOutliers},
		{Name: "seasonal_utilization", Slices: []string{"seasonal"}, Apply: SeasonalUtilization},
		{Name: "volume_cost_divergence", Slices: []string{"top_hcpcs"}, Apply: VolumeCostDivergence},
		{Name: "provider_size_distribution", Slices: []string{"provider_tiers"}, Apply: ProviderSizeDistribution},
		{Name: "focus_category_spend", Slices: []string{"top_hcpcs"}, Apply: FocusCategorySpend},
		{Name: "per_capita_disparity", Slices: []string{"states"}, Apply: PerCapitaDisparity},
		{Name: "repeat_procedures", Slices: []string{"claims_per_beneficiary"}, Apply: RepeatProcedures},
		{Name: "urban_concentration", Slices: []string{"cities"}, Apply: UrbanConcentration},
		{Name: "unit_cost_economics", Slices: []string{"cost_per_claim"}, Apply: UnitCostEconomics},
	}
}

var monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// YearlyTrajectory reports total and average annual growth and the peak year.
func YearlyTrajectory(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	if len(cs.Yearly) < 2 {
		return models.Insight{}, false
	}
	first, last := cs.Yearly[0], cs.Yearly[len(cs.Yearly)-1]
	if first.Spending <= 0 {
		return models.Insight{}, false
	}
	total := stats.Round1((last.Spending - first.Spending) / first.Spending * 100)
	avg := stats.Round1(total / float64(len(cs.Yearly)-1))

	peak := cs.Yearly[0]
	for _, y := range cs.Yearly[1:] {
		if y.Growth > peak.Growth {
			peak = y
		}
	}

	implication := "Growth is within normal healthcare inflation bounds."
	if avg > cfg.InflationThreshold {
		implication = "Growth exceeds typical healthcare inflation (3-5%), suggesting expanding coverage or rising utilization."
	}
	return models.Insight{
		Title: "Multi-Year Spending Trajectory",
		Finding: fmt.Sprintf("Total Medicaid spending grew %s from %d to %d, averaging %s annually. Peak growth occurred in %d at %s.",
			FormatPercent(total), first.Year, last.Year, FormatPercent(avg), peak.Year, FormatPercent(peak.Growth)),
		Implication: implication,
		Category:    models.CategoryTrend,
	}, true
}

// PandemicPattern compares growth in the pandemic year and the year after.
func PandemicPattern(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	var during, after *models.YearlyPoint
	for i := range cs.Yearly {
		switch cs.Yearly[i].Year {
		case cfg.PandemicYear:
			during = &cs.Yearly[i]
		case cfg.ReboundYear:
			after = &cs.Yearly[i]
		}
	}
	if during == nil || after == nil {
		return models.Insight{}, false
	}

	implication := fmt.Sprintf("%d pattern suggests normalized utilization post-pandemic.", after.Year)
	if stats.Round1(after.Growth) > cfg.ReboundThreshold {
		implication = fmt.Sprintf("Sharp %d rebound suggests deferred care returning, not underlying demand growth.", after.Year)
	}
	return models.Insight{
		Title: "Pandemic Impact Pattern",
		Finding: fmt.Sprintf("%d saw %s change vs prior year, followed by %s in %d. This reflects pandemic-era disruption and recovery patterns.",
			during.Year, FormatPercent(during.Growth), FormatPercent(after.Growth), after.Year),
		Implication: implication,
		Category:    models.CategoryTrend,
	}, true
}

// CategoryConcentration reports the top category's share and the top-K share.
func CategoryConcentration(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	if len(cs.Categories) == 0 {
		return models.Insight{}, false
	}
	var total float64
	for _, c := range cs.Categories {
		total += c.Spending
	}
	topShare, ok := stats.PercentageShare(cs.Categories[0].Spending, total)
	if !ok {
		return models.Insight{}, false
	}
	k := min(cfg.CategoryTopK, len(cs.Categories))
	var topK float64
	for _, c := range cs.Categories[:k] {
		topK += c.Spending
	}
	topKShare, _ := stats.PercentageShare(topK, total)

	implication := "Spending is diversified across service categories."
	if topKShare > cfg.CategoryConcentrationThreshold {
		implication = "High concentration in few categories, so targeted interventions could have outsized impact."
	}
	return models.Insight{
		Title: "Service Category Concentration",
		Finding: fmt.Sprintf("%q accounts for %s of spending. Top %d categories represent %s of total expenditure.",
			cs.Categories[0].Category, FormatPercent(topShare), k, FormatPercent(topKShare)),
		Implication: implication,
		Category:    models.CategoryConcentration,
	}, true
}

// ProviderConcentration reports the share captured by the top provider bucket.
func ProviderConcentration(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	var top, others *models.CategorySpend
	var total float64
	for i := range cs.Concentration {
		c := &cs.Concentration[i]
		total += c.Spending
		switch c.Category {
		case cfg.TopBucketLabel:
			top = c
		case cfg.OtherBucketLabel:
			others = c
		}
	}
	if top == nil || others == nil {
		return models.Insight{}, false
	}
	share, ok := stats.PercentageShare(top.Spending, total)
	if !ok {
		return models.Insight{}, false
	}

	implication := "Market appears reasonably competitive with distributed provider participation."
	if share > cfg.ProviderConcentrationThreshold {
		implication = "High concentration may indicate limited competition, warranting antitrust review or alternative provider recruitment."
	}
	return models.Insight{
		Title: "Provider Market Concentration",
		Finding: fmt.Sprintf("%s providers capture %s of spending. This concentration metric serves as a proxy for market competitiveness.",
			top.Category, FormatPercent(share)),
		Implication: implication,
		Category:    models.CategoryConcentration,
	}, true
}

// GeographicProviders reports the share of providers held by the top states
// ranked by provider count.
func GeographicProviders(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	if len(cs.States) < cfg.GeographicTopK {
		return models.Insight{}, false
	}
	ranked := append([]models.StateRecord(nil), cs.States...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Providers > ranked[j].Providers
	})

	var total, top float64
	codes := make([]string, 0, cfg.GeographicTopK)
	for i, s := range ranked {
		total += s.Providers
		if i < cfg.GeographicTopK {
			top += s.Providers
			codes = append(codes, s.State)
		}
	}
	share, ok := stats.PercentageShare(top, total)
	if !ok {
		return models.Insight{}, false
	}
	return models.Insight{
		Title: "Geographic Provider Distribution",
		Finding: fmt.Sprintf("Top %d states (%s) account for %s of all providers. Population-adjusted analysis would reveal true access disparities.",
			cfg.GeographicTopK, strings.Join(codes, ", "), FormatPercent(share)),
		Implication: "Provider density varies significantly by state, potentially affecting beneficiary access to care.",
		Category:    models.CategoryGeographic,
	}, true
}

// ProcedureCostOutliers compares the costliest procedure per claim with the
// average cost per claim.
func ProcedureCostOutliers(cs models.ChartSet, _ RuleConfig) (models.Insight, bool) {
	if len(cs.CostPerClaim) == 0 || len(cs.CostPerBeneficiary) == 0 {
		return models.Insight{}, false
	}
	values := make([]float64, len(cs.CostPerClaim))
	highest := cs.CostPerClaim[0]
	for i, p := range cs.CostPerClaim {
		values[i] = p.Ratio
		if p.Ratio > highest.Ratio {
			highest = p
		}
	}
	avg, _ := stats.Mean(values)
	multiple, ok := stats.Ratio(highest.Ratio, avg)
	if !ok {
		return models.Insight{}, false
	}
	return models.Insight{
		Title: "Procedure Cost Outliers",
		Finding: fmt.Sprintf("%q (%s) averages %s per claim, %.1fx the category average.",
			ratioLabel(highest), highest.Code, FormatCurrency(highest.Ratio), multiple),
		Implication: "High-cost outliers warrant clinical review for appropriateness and potential alternatives.",
		Category:    models.CategoryEfficiency,
	}, true
}

// SeasonalUtilization reports the peak and trough months and their spread
// relative to the monthly mean. It needs a full year of months.
func SeasonalUtilization(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	if len(cs.Seasonal) < 12 {
		return models.Insight{}, false
	}
	var total float64
	maxMonth, minMonth := cs.Seasonal[0], cs.Seasonal[0]
	for _, m := range cs.Seasonal {
		total += m.Spending
		if m.Spending > maxMonth.Spending {
			maxMonth = m
		}
		if m.Spending < minMonth.Spending {
			minMonth = m
		}
	}
	avg := total / float64(len(cs.Seasonal))
	if avg <= 0 {
		return models.Insight{}, false
	}
	variance := stats.Round1((maxMonth.Spending - minMonth.Spending) / avg * 100)

	implication := "Relatively stable utilization throughout the year."
	if variance > cfg.SeasonalVarianceThreshold {
		implication = "Significant seasonality suggests opportunities for capacity planning and resource allocation."
	}
	return models.Insight{
		Title: "Seasonal Utilization Patterns",
		Finding: fmt.Sprintf("Spending peaks in month %s (%s) and troughs in month %s (%s), with %s variance from mean.",
			maxMonth.Month, monthName(maxMonth.Month), minMonth.Month, monthName(minMonth.Month), FormatPercent(variance)),
		Implication: implication,
		Category:    models.CategoryTrend,
	}, true
}

// VolumeCostDivergence fires only when the highest-spend and highest-volume
// procedures are different codes.
func VolumeCostDivergence(cs models.ChartSet, _ RuleConfig) (models.Insight, bool) {
	if len(cs.TopHCPCS) == 0 {
		return models.Insight{}, false
	}
	bySpending, byClaims := cs.TopHCPCS[0], cs.TopHCPCS[0]
	for _, h := range cs.TopHCPCS[1:] {
		if h.Spending > bySpending.Spending {
			bySpending = h
		}
		if h.Claims > byClaims.Claims {
			byClaims = h
		}
	}
	if bySpending.Code == byClaims.Code {
		return models.Insight{}, false
	}
	return models.Insight{
		Title: "Volume vs Cost Driver Divergence",
		Finding: fmt.Sprintf("Highest-volume procedure: %s (%s). Highest-spend procedure: %s (%s). These differ, indicating distinct cost and utilization drivers.",
			byClaims.Label(), byClaims.Code, bySpending.Label(), bySpending.Code),
		Implication: "Cost containment strategies should address both high-volume (frequency) and high-cost (unit price) procedures separately.",
		Category:    models.CategoryEfficiency,
	}, true
}

// ProviderSizeDistribution compares the smallest and largest billing tiers.
func ProviderSizeDistribution(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	var small, large *models.ProviderTier
	var total float64
	for i := range cs.ProviderTiers {
		t := &cs.ProviderTiers[i]
		total += t.Count
		switch t.Tier {
		case cfg.SmallTierLabel:
			small = t
		case cfg.LargeTierLabel:
			large = t
		}
	}
	if small == nil || large == nil {
		return models.Insight{}, false
	}
	smallPct, ok := stats.PercentageShare(small.Count, total)
	if !ok {
		return models.Insight{}, false
	}
	largePct, _ := stats.PercentageShare(large.Count, total)
	return models.Insight{
		Title: "Provider Size Distribution",
		Finding: fmt.Sprintf("%s of providers bill %s annually, while %s bill %s. This long-tail distribution is typical of healthcare markets.",
			FormatPercent(smallPct), small.Tier, FormatPercent(largePct), large.Tier),
		Implication: "Small providers represent administrative overhead relative to volume; consolidation or network efficiencies may reduce costs.",
		Category:    models.CategoryConcentration,
	}, true
}

// FocusCategorySpend totals spending for one service category among the top
// procedures.
func FocusCategorySpend(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	var matches []models.HCPCSRecord
	var total float64
	for _, h := range cs.TopHCPCS {
		if h.Category == cfg.FocusCategory {
			matches = append(matches, h)
			total += h.Spending
		}
	}
	if len(matches) < cfg.MinFocusEntries {
		return models.Insight{}, false
	}
	common := make([]string, 0, 3)
	for _, h := range matches[:min(3, len(matches))] {
		common = append(common, h.Label())
	}
	return models.Insight{
		Title: cfg.FocusCategory + " Services Analysis",
		Finding: fmt.Sprintf("%s procedures (%d codes in top %d) total %s. Common procedures: %s.",
			cfg.FocusCategory, len(matches), len(cs.TopHCPCS), FormatCurrency(total), strings.Join(common, ", ")),
		Implication: cfg.FocusCategory + " is often underutilized in Medicaid, so this spending pattern warrants access analysis.",
		Category:    models.CategoryEfficiency,
	}, true
}

// PerCapitaDisparity compares the highest and lowest per-capita spending
// among states with a positive per-capita value.
func PerCapitaDisparity(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	var states []models.StateRecord
	for _, s := range cs.States {
		if s.PerCapita > 0 {
			states = append(states, s)
		}
	}
	if len(states) < cfg.MinPerCapitaStates {
		return models.Insight{}, false
	}
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].PerCapita > states[j].PerCapita
	})
	highest, lowest := states[0], states[len(states)-1]
	ratio, ok := stats.Ratio(highest.PerCapita, lowest.PerCapita)
	if !ok {
		return models.Insight{}, false
	}
	return models.Insight{
		Title: "Per Capita Spending Disparity",
		Finding: fmt.Sprintf("%s spends %s per resident vs %s at %s, a %.1fx disparity. This gap suggests fundamentally different coverage models or eligibility criteria.",
			highest.State, FormatDollars(highest.PerCapita), lowest.State, FormatDollars(lowest.PerCapita), ratio),
		Implication: "Interstate spending variance of this magnitude warrants policy review. Low-spending states may have access barriers; high-spending states may have broader coverage or higher utilization.",
		Category:    models.CategoryGeographic,
	}, true
}

// RepeatProcedures flags the procedure with the most claims per beneficiary.
func RepeatProcedures(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	if len(cs.ClaimsPerBeneficiary) == 0 {
		return models.Insight{}, false
	}
	top := cs.ClaimsPerBeneficiary[0]
	codes := make([]string, 0, cfg.RepeatTopK)
	for _, p := range cs.ClaimsPerBeneficiary[:min(cfg.RepeatTopK, len(cs.ClaimsPerBeneficiary))] {
		codes = append(codes, p.Code)
	}
	return models.Insight{
		Title: "High-Frequency Repeat Procedures",
		Finding: fmt.Sprintf("%q (%s) averages %.1f claims per beneficiary, indicating ongoing or chronic treatment patterns. Top %d repeat procedures: %s.",
			ratioLabel(top), top.Code, top.Ratio, len(codes), strings.Join(codes, ", ")),
		Implication: "High claims-per-beneficiary ratios signal chronic care management opportunities. Bundled payments or care coordination could reduce administrative costs while maintaining outcomes.",
		Category:    models.CategoryAnomaly,
	}, true
}

// UrbanConcentration reports the designated city's share of the top city
// window. It fires only when that city ranks first.
func UrbanConcentration(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	if len(cs.Cities) < cfg.MinCities {
		return models.Insight{}, false
	}
	first := cs.Cities[0]
	if !strings.EqualFold(first.City, cfg.DesignatedCity) {
		return models.Insight{}, false
	}
	var total float64
	for _, c := range cs.Cities[:min(cfg.CityWindow, len(cs.Cities))] {
		total += c.Spending
	}
	share, ok := stats.PercentageShare(first.Spending, total)
	if !ok {
		return models.Insight{}, false
	}
	return models.Insight{
		Title: "Urban Spending Concentration",
		Finding: fmt.Sprintf("%s alone accounts for %s of top-%d city spending at %s.",
			TitleCase(first.City), FormatPercent(share), cfg.CityWindow, FormatCurrency(first.Spending)),
		Implication: "Urban concentration reflects population density but also specialized care networks. Rural-urban access equity should be monitored.",
		Category:    models.CategoryGeographic,
	}, true
}

// UnitCostEconomics compares the average of the costliest procedures with the
// average over every procedure.
func UnitCostEconomics(cs models.ChartSet, cfg RuleConfig) (models.Insight, bool) {
	if len(cs.CostPerClaim) < cfg.MinUnitCostEntries {
		return models.Insight{}, false
	}
	ranked := append([]models.RatioPoint(nil), cs.CostPerClaim...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Ratio > ranked[j].Ratio
	})

	var all, top float64
	for i, p := range ranked {
		all += p.Ratio
		if i < cfg.UnitCostTopK {
			top += p.Ratio
		}
	}
	avgTop := top / float64(cfg.UnitCostTopK)
	overall := all / float64(len(ranked))
	leader := ranked[0]
	return models.Insight{
		Title: "Unit Cost Economics",
		Finding: fmt.Sprintf("Top %d costliest procedures average %s/claim vs overall average of %s/claim. %s (%s) leads at %s/claim.",
			cfg.UnitCostTopK, FormatCurrency(avgTop), FormatCurrency(overall), ratioLabel(leader), leader.Code, FormatCurrency(leader.Ratio)),
		Implication: "Gene therapies and specialty drugs drive extreme per-unit costs. These require separate formulary management and outcomes tracking to justify spend.",
		Category:    models.CategoryEfficiency,
	}, true
}

func monthName(month string) string {
	n, err := strconv.Atoi(month)
	if err != nil || n < 1 || n > 12 {
		return month
	}
	return monthNames[n-1]
}

func ratioLabel(p models.RatioPoint) string {
	if p.Definition != "" {
		return p.Definition
	}
	return p.Code
}
