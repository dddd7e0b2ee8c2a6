// Package stats provides the descriptive statistics used by the outlier
// classifier, the insight rules and the federal analysis.
//
// All functions are pure. Degenerate inputs (empty sequences, zero variance,
// zero or negative denominators) are reported through a false ok result
// instead of producing NaN or Inf. Standard deviations use the population
// formula (divide by N) throughout.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mean returns the arithmetic mean. ok is false for an empty sequence.
func Mean(values []float64) (mean float64, ok bool) {
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// PopulationStdDev returns sqrt(sum((v-mean)^2)/N). It is exactly 0 when all
// values are identical and 0 for an empty sequence.
func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 || allEqual(values) {
		return 0
	}
	return stat.PopStdDev(values, nil)
}

// MeanStdDev returns the mean and population standard deviation together.
func MeanStdDev(values []float64) (mean, std float64, ok bool) {
	mean, ok = Mean(values)
	if !ok {
		return 0, 0, false
	}
	return mean, PopulationStdDev(values), true
}

// ZScore returns (value-mean)/std. ok is false when std is zero or any input
// is not finite.
func ZScore(value, mean, std float64) (float64, bool) {
	if std == 0 || !finite(std) || !finite(mean) || !finite(value) {
		return 0, false
	}
	z := (value - mean) / std
	return z, finite(z)
}

// Ratio returns num/den. ok is false when den <= 0 or the result is not finite.
func Ratio(num, den float64) (float64, bool) {
	if den <= 0 || !finite(num) || !finite(den) {
		return 0, false
	}
	r := num / den
	return r, finite(r)
}

// PercentageShare returns part/whole*100 rounded to one decimal place.
// ok is false when whole is zero.
func PercentageShare(part, whole float64) (float64, bool) {
	if whole == 0 || !finite(part) || !finite(whole) {
		return 0, false
	}
	return Round1(part / whole * 100), true
}

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Sum adds up values.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// QuartileBuckets assigns quartiles 1..4 to ranks 0..n-1 of an ascending
// ordering. Buckets differ in size by at most one.
func QuartileBuckets(n int) []int {
	buckets := make([]int, n)
	for rank := range buckets {
		buckets[rank] = rank*4/n + 1
	}
	return buckets
}

// Correlation returns the Pearson correlation of x and y. ok is false when the
// lengths differ, fewer than 3 pairs exist, or either side has zero variance.
func Correlation(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 3 {
		return 0, false
	}
	if PopulationStdDev(x) == 0 || PopulationStdDev(y) == 0 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	return r, finite(r)
}

// TailProbability returns P(Z > z) under the standard normal distribution.
func TailProbability(z float64) float64 {
	return distuv.UnitNormal.Survival(z)
}

// Log10TailProbability returns log10 P(Z > z). For large z it uses the
// Mills-ratio approximation phi(z)/z, which stays finite where the direct
// tail underflows to zero.
func Log10TailProbability(z float64) float64 {
	if p := TailProbability(z); p > 1e-300 {
		return math.Log10(p)
	}
	lnTail := -z*z/2 - math.Log(z*math.Sqrt(2*math.Pi))
	return lnTail / math.Ln10
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
