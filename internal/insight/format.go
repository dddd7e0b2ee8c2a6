package insight

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

var currencyUnits = []struct {
	scale  float64
	suffix string
}{
	{1e3, "K"},
	{1e6, "M"},
	{1e9, "B"},
	{1e12, "T"},
}

// FormatCurrency compacts a dollar amount to $K, $M, $B or $T with one
// decimal at or above $1,000, and whole dollars below. A value that rounds
// up to 1000 of one unit is shown in the next unit.
func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	unit := -1
	for i, u := range currencyUnits {
		if v >= u.scale {
			unit = i
		}
	}
	if unit < 0 {
		if math.Round(v) < 1e3 {
			return fmt.Sprintf("%s$%.0f", sign, math.Round(v))
		}
		unit = 0
	}

	scaled := roundHalfAway(v / currencyUnits[unit].scale)
	if scaled >= 1e3 && unit < len(currencyUnits)-1 {
		unit++
		scaled = roundHalfAway(v / currencyUnits[unit].scale)
	}
	return fmt.Sprintf("%s$%.1f%s", sign, scaled, currencyUnits[unit].suffix)
}

// FormatPercent renders a percentage with one decimal place.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", roundHalfAway(v))
}

// FormatDollars renders an exact dollar amount, comma grouped, with cents.
func FormatDollars(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// TitleCase renders an upper-case place name for prose.
func TitleCase(s string) string {
	return titleCaser.String(s)
}

// roundHalfAway rounds to one decimal, half away from zero.
func roundHalfAway(v float64) float64 {
	return math.Round(v*10) / 10
}
