package outlier

import (
	"errors"
	"fmt"

	"github.com/openmedicaid/claimlens/internal/models"
)

// DefaultThreshold is the z-score a candidate must exceed to be an outlier.
const DefaultThreshold = 3.0

// Tier is one row of the severity breakpoint table. A z-score belongs to the
// highest tier whose Min it reaches.
type Tier struct {
	Min      float64         `json:"min" yaml:"min"`
	Label    string          `json:"label" yaml:"label"`
	Severity models.Severity `json:"severity" yaml:"severity"`
}

// AnalogyBand maps an order of magnitude of 1/P(Z > z) to a plain-language
// improbability.
type AnalogyBand struct {
	MinOrder int    `json:"min_order" yaml:"min_order"`
	Phrase   string `json:"phrase" yaml:"phrase"`
}

// Config is the policy behind classification: the threshold, the ordered
// severity tiers and the analogy phrase table.
type Config struct {
	Threshold float64       `json:"threshold" yaml:"threshold"`
	Tiers     []Tier        `json:"tiers" yaml:"tiers"`
	Bands     []AnalogyBand `json:"bands" yaml:"bands"`
}

// DefaultTiers is the six-level table {3.0, 3.5, 4.0, 5.0, 6.0, 10.0}.
func DefaultTiers() []Tier {
	return []Tier{
		{Min: 3.0, Label: "notable", Severity: models.SeverityHigh},
		{Min: 3.5, Label: "elevated", Severity: models.SeverityHigh},
		{Min: 4.0, Label: "high", Severity: models.SeverityHigh},
		{Min: 5.0, Label: "severe", Severity: models.SeverityExtreme},
		{Min: 6.0, Label: "extreme", Severity: models.SeverityExtreme},
		{Min: 10.0, Label: "astronomical", Severity: models.SeverityAstronomical},
	}
}

// DefaultBands returns the improbability phrases keyed by order of magnitude.
func DefaultBands() []AnalogyBand {
	return []AnalogyBand{
		{MinOrder: 0, Phrase: "Calling a coin flip correctly a few times in a row"},
		{MinOrder: 2, Phrase: "Flipping heads 9 times in a row"},
		{MinOrder: 3, Phrase: "Rolling a perfect Yahtzee on your first roll"},
		{MinOrder: 4, Phrase: "Guessing someone's exact birth minute on first try"},
		{MinOrder: 5, Phrase: "Being dealt pocket aces three hands in a row in Texas Hold'em"},
		{MinOrder: 6, Phrase: "Winning your state lottery with a single ticket"},
		{MinOrder: 8, Phrase: "Winning Powerball with a single ticket"},
		{MinOrder: 12, Phrase: "Picking one specific second out of the last 30,000 years"},
		{MinOrder: 16, Phrase: "Winning Powerball twice in a row with one ticket each time"},
		{MinOrder: 18, Phrase: "A chimpanzee typing 'to be or not to be' perfectly on first attempt"},
		{MinOrder: 26, Phrase: "Randomly selecting the same specific atom from two different human bodies"},
		{MinOrder: 29, Phrase: "Shuffling a deck and getting the exact same order as someone else shuffling simultaneously on Mars"},
		{MinOrder: 37, Phrase: "Every person on Earth guessing the same random 20-digit number simultaneously"},
		{MinOrder: 150, Phrase: "Flipping heads 500 times in a row"},
		{MinOrder: 210, Phrase: "Dealing 40 royal flushes consecutively from shuffled decks"},
	}
}

// DefaultConfig returns the standard classification policy.
func DefaultConfig() Config {
	return Config{
		Threshold: DefaultThreshold,
		Tiers:     DefaultTiers(),
		Bands:     DefaultBands(),
	}
}

// Validate checks that the policy tables are usable.
func (c Config) Validate() error {
	if c.Threshold <= 0 {
		return errors.New("outlier threshold must be positive")
	}
	if len(c.Tiers) == 0 {
		return errors.New("at least one severity tier is required")
	}
	if c.Tiers[0].Min > c.Threshold {
		return fmt.Errorf("first tier minimum %.2f must not exceed the threshold %.2f", c.Tiers[0].Min, c.Threshold)
	}
	for i := 1; i < len(c.Tiers); i++ {
		if c.Tiers[i].Min <= c.Tiers[i-1].Min {
			return fmt.Errorf("tier %d minimum %.2f must be greater than %.2f", i, c.Tiers[i].Min, c.Tiers[i-1].Min)
		}
		if c.Tiers[i].Severity < c.Tiers[i-1].Severity {
			return fmt.Errorf("tier %d severity %s is less severe than tier %d", i, c.Tiers[i].Severity, i-1)
		}
	}
	for i, t := range c.Tiers {
		if t.Label == "" {
			return fmt.Errorf("tier %d label must not be empty", i)
		}
	}
	if len(c.Bands) == 0 {
		return errors.New("at least one analogy band is required")
	}
	for i := 1; i < len(c.Bands); i++ {
		if c.Bands[i].MinOrder <= c.Bands[i-1].MinOrder {
			return fmt.Errorf("analogy band %d must have a larger order than band %d", i, i-1)
		}
	}
	return nil
}

// TierFor returns the tier for z and its 1-based level. ok is false when z is
// below the first tier.
func (c Config) TierFor(z float64) (tier Tier, level int, ok bool) {
	for i := len(c.Tiers) - 1; i >= 0; i-- {
		if z >= c.Tiers[i].Min {
			return c.Tiers[i], i + 1, true
		}
	}
	return Tier{}, 0, false
}

// BandFor returns the phrase whose order is the largest not above order.
func (c Config) BandFor(order int) string {
	phrase := c.Bands[0].Phrase
	for _, b := range c.Bands {
		if b.MinOrder > order {
			break
		}
		phrase = b.Phrase
	}
	return phrase
}
