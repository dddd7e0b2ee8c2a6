package stats

import (
	"math"
	"testing"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		wantOK bool
	}{
		{name: "empty", values: nil, wantOK: false},
		{name: "single", values: []float64{42}, want: 42, wantOK: true},
		{name: "several", values: []float64{500, 50, 45}, want: 595.0 / 3, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Mean(tt.values)
			if ok != tt.wantOK {
				t.Fatalf("Mean() ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Mean() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestPopulationStdDev(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "empty", values: nil, want: 0},
		{name: "single", values: []float64{7}, want: 0},
		{name: "identical", values: []float64{0.1, 0.1, 0.1}, want: 0},
		{name: "divides by N", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, want: 2},
		{name: "two points", values: []float64{0, 10}, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PopulationStdDev(tt.values)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PopulationStdDev() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestPopulationStdDev_NonNegativeAndZeroIffIdentical(t *testing.T) {
	sequences := [][]float64{
		{1, 1, 1, 1},
		{1, 1, 1, 1.0000001},
		{-5, 5},
		{1e12, 1e12 + 1},
		{3.3, 3.3},
		{0.1, 0.2, 0.3},
	}
	for _, seq := range sequences {
		std := PopulationStdDev(seq)
		if std < 0 {
			t.Errorf("PopulationStdDev(%v) = %f, want >= 0", seq, std)
		}
		identical := allEqual(seq)
		if identical != (std == 0) {
			t.Errorf("PopulationStdDev(%v) = %g, identical = %v", seq, std, identical)
		}
	}
}

func TestZScore(t *testing.T) {
	if _, ok := ZScore(10, 5, 0); ok {
		t.Error("ZScore with zero std dev should be excluded")
	}
	if _, ok := ZScore(math.NaN(), 5, 1); ok {
		t.Error("ZScore with NaN value should be excluded")
	}
	z, ok := ZScore(11, 5, 2)
	if !ok || z != 3 {
		t.Errorf("ZScore(11, 5, 2) = %f, %v, want 3, true", z, ok)
	}
	z, ok = ZScore(1, 5, 2)
	if !ok || z != -2 {
		t.Errorf("ZScore(1, 5, 2) = %f, %v, want -2, true", z, ok)
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name   string
		num    float64
		den    float64
		want   float64
		wantOK bool
	}{
		{name: "normal", num: 10, den: 4, want: 2.5, wantOK: true},
		{name: "zero denominator", num: 10, den: 0, wantOK: false},
		{name: "negative denominator", num: 10, den: -1, wantOK: false},
		{name: "zero numerator", num: 0, den: 3, want: 0, wantOK: true},
		{name: "infinite numerator", num: math.Inf(1), den: 3, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Ratio(tt.num, tt.den)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Ratio(%v, %v) = %v, %v, want %v, %v", tt.num, tt.den, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPercentageShare(t *testing.T) {
	if _, ok := PercentageShare(5, 0); ok {
		t.Error("PercentageShare with zero whole should be excluded")
	}
	got, ok := PercentageShare(150, 155)
	if !ok || got != 96.8 {
		t.Errorf("PercentageShare(150, 155) = %v, %v, want 96.8, true", got, ok)
	}
	got, _ = PercentageShare(1, 3)
	if got != 33.3 {
		t.Errorf("PercentageShare(1, 3) = %v, want 33.3", got)
	}
}

func TestQuartileBuckets(t *testing.T) {
	got := QuartileBuckets(8)
	want := []int{1, 1, 2, 2, 3, 3, 4, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("QuartileBuckets(8) = %v, want %v", got, want)
		}
	}

	counts := map[int]int{}
	for _, q := range QuartileBuckets(51) {
		counts[q]++
	}
	for q := 1; q <= 4; q++ {
		if counts[q] < 12 || counts[q] > 13 {
			t.Errorf("quartile %d has %d members, want 12 or 13", q, counts[q])
		}
	}

	if len(QuartileBuckets(0)) != 0 {
		t.Error("QuartileBuckets(0) should be empty")
	}
}

func TestCorrelation(t *testing.T) {
	r, ok := Correlation([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	if !ok || math.Abs(r-1) > 1e-12 {
		t.Errorf("perfect positive correlation = %f, %v", r, ok)
	}
	r, ok = Correlation([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	if !ok || math.Abs(r+1) > 1e-12 {
		t.Errorf("perfect negative correlation = %f, %v", r, ok)
	}
	if _, ok := Correlation([]float64{1, 2}, []float64{1, 2}); ok {
		t.Error("correlation of 2 pairs should be excluded")
	}
	if _, ok := Correlation([]float64{1, 2, 3}, []float64{5, 5, 5}); ok {
		t.Error("correlation with a constant side should be excluded")
	}
}

func TestTailProbability(t *testing.T) {
	tests := []struct {
		z       float64
		wantInv float64 // 1/p
		tol     float64
	}{
		{z: 3, wantInv: 741, tol: 1},
		{z: 4, wantInv: 31574, tol: 5},
		{z: 5, wantInv: 3488556, tol: 500},
	}
	for _, tt := range tests {
		inv := 1 / TailProbability(tt.z)
		if math.Abs(inv-tt.wantInv) > tt.tol {
			t.Errorf("1/TailProbability(%v) = %f, want ~%f", tt.z, inv, tt.wantInv)
		}
	}
}

func TestLog10TailProbability(t *testing.T) {
	// Direct branch agrees with the tail probability.
	if got, want := Log10TailProbability(3), math.Log10(TailProbability(3)); math.Abs(got-want) > 1e-12 {
		t.Errorf("Log10TailProbability(3) = %f, want %f", got, want)
	}
	// Asymptotic branch stays finite and decreasing where the tail underflows.
	a := Log10TailProbability(40)
	b := Log10TailProbability(60)
	if math.IsInf(a, 0) || math.IsNaN(a) || !(b < a) {
		t.Errorf("Log10TailProbability(40) = %f, (60) = %f", a, b)
	}
	if a > -340 || a < -352 {
		t.Errorf("Log10TailProbability(40) = %f, want about -349", a)
	}
}
