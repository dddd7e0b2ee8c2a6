// Package federal analyzes federal matching rates (FMAP), Medicaid expansion
// status and congressional district attribution.
package federal

import (
	"fmt"
	"sort"

	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/stats"
)

// MultipleStates names a rate shared by more than one state.
const MultipleStates = "Multiple"

// TopDistrictCount is how many districts the analysis lists.
const TopDistrictCount = 25

// RateHolder is the state holding an extreme FMAP rate.
type RateHolder struct {
	State string  `json:"state"`
	Rate  float64 `json:"rate"`
}

// Summary is the headline view of the FMAP table.
type Summary struct {
	TotalStates        int        `json:"total_states"`
	ExpansionStates    int        `json:"expansion_states"`
	NonExpansionStates int        `json:"non_expansion_states"`
	AverageFMAP        float64    `json:"avg_fmap"`
	Highest            RateHolder `json:"highest_fmap"`
	Lowest             RateHolder `json:"lowest_fmap"`
	TotalDistricts     int        `json:"total_districts"`
}

// Expansion compares expansion and non-expansion states.
type Expansion struct {
	ExpansionCount           int     `json:"expansion_count"`
	NonExpansionCount        int     `json:"non_expansion_count"`
	AvgExpansionFMAP         float64 `json:"avg_expansion_fmap"`
	AvgNonExpansionFMAP      float64 `json:"avg_non_expansion_fmap"`
	ExpansionAvgPerCapita    float64 `json:"expansion_avg_per_capita"`
	NonExpansionAvgPerCapita float64 `json:"non_expansion_avg_per_capita"`
	// ExpansionPremium is the percentage by which expansion states outspend
	// non-expansion states per capita. Nil when either group has no data.
	ExpansionPremium *float64 `json:"expansion_premium,omitempty"`
}

// Quartile groups states by FMAP rate.
type Quartile struct {
	Quartile     int     `json:"quartile"`
	States       int     `json:"states"`
	AvgFMAP      float64 `json:"avg_fmap"`
	AvgPerCapita float64 `json:"avg_per_capita"`
}

// Analysis bundles every federal view of one snapshot.
type Analysis struct {
	Summary      Summary                 `json:"summary"`
	StatesByFMAP []models.FMAPRecord     `json:"states_by_fmap"`
	Expansion    Expansion               `json:"expansion"`
	Quartiles    []Quartile              `json:"quartiles"`
	Correlation  *float64                `json:"fmap_spending_correlation,omitempty"`
	TopDistricts []models.DistrictRecord `json:"top_districts"`
	Districts    []models.DistrictRecord `json:"-"`
}

// Analyze runs every federal computation.
func Analyze(fmap []models.FMAPRecord, states []models.StateRecord, counts map[string]int) Analysis {
	districts := DistributeDistricts(states, counts)
	a := Analysis{
		Summary:      Summarize(fmap, counts),
		StatesByFMAP: ByFMAP(fmap),
		Expansion:    CompareExpansion(fmap, states),
		Quartiles:    Quartiles(fmap, states),
		TopDistricts: districts[:min(TopDistrictCount, len(districts))],
		Districts:    districts,
	}
	if r, ok := FMAPSpendingCorrelation(fmap, states); ok {
		a.Correlation = &r
	}
	return a
}

// Summarize counts states by expansion status and finds the extreme rates.
// An extreme shared by several states is reported as MultipleStates.
func Summarize(fmap []models.FMAPRecord, counts map[string]int) Summary {
	s := Summary{TotalStates: len(fmap)}
	for _, n := range counts {
		s.TotalDistricts += n
	}
	if len(fmap) == 0 {
		return s
	}

	rates := make([]float64, len(fmap))
	hi, lo := fmap[0].FY2024, fmap[0].FY2024
	for i, f := range fmap {
		rates[i] = f.FY2024
		if f.Expansion {
			s.ExpansionStates++
		} else {
			s.NonExpansionStates++
		}
		hi = max(hi, f.FY2024)
		lo = min(lo, f.FY2024)
	}
	avg, _ := stats.Mean(rates)
	s.AverageFMAP = stats.Round2(avg)
	s.Highest = holderOf(fmap, hi)
	s.Lowest = holderOf(fmap, lo)
	return s
}

func holderOf(fmap []models.FMAPRecord, rate float64) RateHolder {
	h := RateHolder{Rate: rate}
	for _, f := range fmap {
		if f.FY2024 != rate {
			continue
		}
		if h.State != "" {
			h.State = MultipleStates
			return h
		}
		h.State = f.StateCode
	}
	return h
}

// ByFMAP returns the FMAP table sorted by FY2024 rate descending, ties by
// state code.
func ByFMAP(fmap []models.FMAPRecord) []models.FMAPRecord {
	sorted := append([]models.FMAPRecord(nil), fmap...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FY2024 != sorted[j].FY2024 {
			return sorted[i].FY2024 > sorted[j].FY2024
		}
		return sorted[i].StateCode < sorted[j].StateCode
	})
	return sorted
}

// DistributeDistricts spreads each state's spending, claims and providers
// evenly over its congressional districts. States without a spending record
// produce zero-spending districts. The result is sorted by spending
// descending, ties by district code.
func DistributeDistricts(states []models.StateRecord, counts map[string]int) []models.DistrictRecord {
	byCode := make(map[string]models.StateRecord, len(states))
	for _, s := range states {
		byCode[s.State] = s
	}

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	districts := []models.DistrictRecord{}
	for _, code := range codes {
		n := counts[code]
		if n < 1 {
			continue
		}
		s := byCode[code]
		for i := 1; i <= n; i++ {
			num := fmt.Sprintf("%02d", i)
			districts = append(districts, models.DistrictRecord{
				DistrictCode:   code + "-" + num,
				StateCode:      code,
				DistrictNumber: num,
				Spending:       s.Spending / float64(n),
				Claims:         s.Claims / float64(n),
				Providers:      s.Providers / float64(n),
			})
		}
	}

	sort.SliceStable(districts, func(i, j int) bool {
		if districts[i].Spending != districts[j].Spending {
			return districts[i].Spending > districts[j].Spending
		}
		return districts[i].DistrictCode < districts[j].DistrictCode
	})
	return districts
}

type joined struct {
	code      string
	fmap      float64
	perCapita float64
	expansion bool
}

// join pairs FMAP rows with states that have a positive per-capita value.
func join(fmap []models.FMAPRecord, states []models.StateRecord) []joined {
	perCapita := make(map[string]float64, len(states))
	for _, s := range states {
		if s.PerCapita > 0 {
			perCapita[s.State] = s.PerCapita
		}
	}
	var rows []joined
	for _, f := range fmap {
		if pc, ok := perCapita[f.StateCode]; ok {
			rows = append(rows, joined{code: f.StateCode, fmap: f.FY2024, perCapita: pc, expansion: f.Expansion})
		}
	}
	return rows
}

// CompareExpansion averages FMAP over every state in each group and
// per-capita spending over the states in each group that report it.
func CompareExpansion(fmap []models.FMAPRecord, states []models.StateRecord) Expansion {
	var e Expansion
	var expRates, nonRates []float64
	for _, f := range fmap {
		if f.Expansion {
			expRates = append(expRates, f.FY2024)
		} else {
			nonRates = append(nonRates, f.FY2024)
		}
	}
	e.ExpansionCount, e.NonExpansionCount = len(expRates), len(nonRates)
	if avg, ok := stats.Mean(expRates); ok {
		e.AvgExpansionFMAP = stats.Round2(avg)
	}
	if avg, ok := stats.Mean(nonRates); ok {
		e.AvgNonExpansionFMAP = stats.Round2(avg)
	}

	var expPC, nonPC []float64
	for _, r := range join(fmap, states) {
		if r.expansion {
			expPC = append(expPC, r.perCapita)
		} else {
			nonPC = append(nonPC, r.perCapita)
		}
	}
	expAvg, expOK := stats.Mean(expPC)
	nonAvg, nonOK := stats.Mean(nonPC)
	if expOK {
		e.ExpansionAvgPerCapita = stats.Round2(expAvg)
	}
	if nonOK {
		e.NonExpansionAvgPerCapita = stats.Round2(nonAvg)
	}
	if expOK && nonOK {
		if r, ok := stats.Ratio(expAvg-nonAvg, nonAvg); ok {
			premium := stats.Round1(r * 100)
			e.ExpansionPremium = &premium
		}
	}
	return e
}

// Quartiles ranks states with per-capita data by FMAP rate ascending and
// averages each quartile.
func Quartiles(fmap []models.FMAPRecord, states []models.StateRecord) []Quartile {
	rows := join(fmap, states)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].fmap != rows[j].fmap {
			return rows[i].fmap < rows[j].fmap
		}
		return rows[i].code < rows[j].code
	})

	buckets := stats.QuartileBuckets(len(rows))
	fmapByQ := make(map[int][]float64, 4)
	pcByQ := make(map[int][]float64, 4)
	for i, r := range rows {
		q := buckets[i]
		fmapByQ[q] = append(fmapByQ[q], r.fmap)
		pcByQ[q] = append(pcByQ[q], r.perCapita)
	}

	quartiles := []Quartile{}
	for q := 1; q <= 4; q++ {
		if len(fmapByQ[q]) == 0 {
			continue
		}
		avgFMAP, _ := stats.Mean(fmapByQ[q])
		avgPC, _ := stats.Mean(pcByQ[q])
		quartiles = append(quartiles, Quartile{
			Quartile:     q,
			States:       len(fmapByQ[q]),
			AvgFMAP:      stats.Round2(avgFMAP),
			AvgPerCapita: stats.Round2(avgPC),
		})
	}
	return quartiles
}

// FMAPSpendingCorrelation is the Pearson correlation between FY2024 FMAP and
// per-capita spending, rounded to two decimals.
func FMAPSpendingCorrelation(fmap []models.FMAPRecord, states []models.StateRecord) (float64, bool) {
	rows := join(fmap, states)
	x := make([]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i], y[i] = r.fmap, r.perCapita
	}
	r, ok := stats.Correlation(x, y)
	if !ok {
		return 0, false
	}
	return stats.Round2(r), true
}
