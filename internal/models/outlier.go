package models

import (
	"errors"
	"fmt"
	"strings"
)

// Severity is an ordinal rarity tier. Higher values are more severe.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityHigh
	SeverityExtreme
	SeverityAstronomical
)

var severityNames = []string{"low", "high", "extreme", "astronomical"}

func (s Severity) String() string {
	if s < SeverityLow || s > SeverityAstronomical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity parses a severity name, case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(name, n) {
			return Severity(i), nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", name)
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityLow || s > SeverityAstronomical {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Analogy is a human-readable rarity description attached to an outlier.
type Analogy struct {
	Probability string   `json:"probability" yaml:"probability"`
	Analogy     string   `json:"analogy" yaml:"analogy"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

// ZScoreResult holds a z-score and the population statistics behind it.
// Curated entries carry only Value and ZScore; Mean and StdDev are zero.
type ZScoreResult struct {
	Value  float64 `json:"value"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	ZScore float64 `json:"z_score"`
}

// OutlierEntry is a record flagged as an outlier within its population.
// Entries from the formulaic classifier and from the curated catalog share
// this shape; Curated only records provenance.
type OutlierEntry struct {
	ID            string       `json:"id"`
	Label         string       `json:"label,omitempty"`
	Population    string       `json:"population"`
	Spending      float64      `json:"spending"`
	Claims        float64      `json:"claims"`
	Beneficiaries float64      `json:"beneficiaries"`
	Score         ZScoreResult `json:"score"`
	Level         int          `json:"level"`
	Tier          string       `json:"tier"`
	Analogy       Analogy      `json:"analogy"`
	Curated       bool         `json:"curated"`
}

// Validate checks that all outlier entry fields are valid.
func (e *OutlierEntry) Validate() error {
	if e.ID == "" {
		return errors.New("outlier ID must not be empty")
	}
	if e.Population == "" {
		return errors.New("outlier population must not be empty")
	}
	if e.Level < 1 {
		return errors.New("outlier level must be at least 1")
	}
	if e.Analogy.Probability == "" {
		return errors.New("outlier probability must not be empty")
	}
	return nil
}
