package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  validator
		wantErr bool
	}{
		{name: "valid year", record: &YearlyRecord{Year: 2024, Spending: 1e9, Claims: 10}},
		{name: "year out of range", record: &YearlyRecord{Year: 24, Spending: 1}, wantErr: true},
		{name: "negative claims", record: &YearlyRecord{Year: 2024, Claims: -1}, wantErr: true},
		{name: "NaN spending", record: &YearlyRecord{Year: 2024, Spending: math.NaN()}, wantErr: true},
		{name: "valid month", record: &MonthlyRecord{Month: "2024-12", Spending: 1}},
		{name: "month without dash", record: &MonthlyRecord{Month: "2024/12"}, wantErr: true},
		{name: "month thirteen", record: &MonthlyRecord{Month: "2024-13"}, wantErr: true},
		{name: "month zero", record: &MonthlyRecord{Month: "2024-00"}, wantErr: true},
		{name: "valid provider", record: &ProviderRecord{NPI: "1417262056", Spending: 1}},
		{name: "provider without NPI", record: &ProviderRecord{Spending: 1}, wantErr: true},
		{name: "valid HCPCS", record: &HCPCSRecord{Code: "T1019", Spending: 1, Ratio: 2.5}},
		{name: "HCPCS infinite ratio", record: &HCPCSRecord{Code: "T1019", Ratio: math.Inf(1)}, wantErr: true},
		{name: "HCPCS without code", record: &HCPCSRecord{Spending: 1}, wantErr: true},
		{name: "state without code", record: &StateRecord{Spending: 1}, wantErr: true},
		{name: "city without name", record: &CityRecord{State: "NY"}, wantErr: true},
		{name: "valid FMAP", record: &FMAPRecord{StateCode: "MS", FY2024: 76.9, FY2023: 77.27, FY2022: 78.31}},
		{name: "FMAP below floor", record: &FMAPRecord{StateCode: "NY", FY2024: 12, FY2023: 50, FY2022: 50}, wantErr: true},
		{name: "tier without label", record: &ProviderTier{Count: 3}, wantErr: true},
		{name: "population without count", record: &PopulationStats{Name: "p", Mean: 1}, wantErr: true},
		{name: "population negative std dev", record: &PopulationStats{Name: "p", Count: 2, StdDev: -1}, wantErr: true},
		{name: "valid insight", record: &Insight{Title: "t", Finding: "f", Implication: "i", Category: CategoryTrend}},
		{name: "insight unknown category", record: &Insight{Title: "t", Finding: "f", Implication: "i", Category: "weather"}, wantErr: true},
		{name: "insight without finding", record: &Insight{Title: "t", Implication: "i", Category: CategoryAnomaly}, wantErr: true},
		{name: "valid outlier", record: &OutlierEntry{ID: "x", Population: "p", Level: 1, Analogy: Analogy{Probability: "1 in 44"}}},
		{name: "outlier level zero", record: &OutlierEntry{ID: "x", Population: "p", Analogy: Analogy{Probability: "1 in 44"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordHelpers(t *testing.T) {
	if got := (&ProviderRecord{NPI: "123"}).DisplayName(); got != "Provider 123" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := (&ProviderRecord{NPI: "123", Name: "Acme"}).DisplayName(); got != "Acme" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := (&HCPCSRecord{Code: "T1019"}).Label(); got != "T1019" {
		t.Errorf("Label() = %q", got)
	}
	if got := (&MonthlyRecord{Month: "2024-07"}).MonthNumber(); got != "07" {
		t.Errorf("MonthNumber() = %q", got)
	}
	if got := (&MonthlyRecord{Month: "2024"}).MonthNumber(); got != "" {
		t.Errorf("short MonthNumber() = %q", got)
	}
}

func TestSeverityText(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityHigh, SeverityExtreme, SeverityAstronomical} {
		text, err := s.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d) error = %v", s, err)
		}
		var back Severity
		if err := back.UnmarshalText(text); err != nil || back != s {
			t.Errorf("UnmarshalText(%s) = %v, %v", text, back, err)
		}
	}

	if s, err := ParseSeverity("EXTREME"); err != nil || s != SeverityExtreme {
		t.Errorf("ParseSeverity(EXTREME) = %v, %v", s, err)
	}
	if _, err := ParseSeverity("mild"); err == nil {
		t.Error("ParseSeverity(mild) expected error")
	}
	if _, err := Severity(9).MarshalText(); err == nil {
		t.Error("MarshalText(9) expected error")
	}
	if got := Severity(9).String(); got != "severity(9)" {
		t.Errorf("String() = %q", got)
	}

	data, err := json.Marshal(Analogy{Probability: "1 in 3.5 million", Severity: SeverityAstronomical})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"probability":"1 in 3.5 million","analogy":"","severity":"astronomical"}`; string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestInsightCategoryValid(t *testing.T) {
	for _, c := range InsightCategories {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if InsightCategory("Trend").Valid() {
		t.Error("categories are case-sensitive")
	}
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name      string
		snap      Snapshot
		wantSlice string
		wantIndex int
	}{
		{name: "empty snapshot"},
		{
			name:      "negative total",
			snap:      Snapshot{TotalSpending: -1},
			wantSlice: "total_spending",
			wantIndex: -1,
		},
		{
			name:      "bad second month",
			snap:      Snapshot{Monthly: []MonthlyRecord{{Month: "2024-01"}, {Month: "2024-1"}}},
			wantSlice: "monthly",
			wantIndex: 1,
		},
		{
			name:      "duplicate year",
			snap:      Snapshot{Yearly: []YearlyRecord{{Year: 2023}, {Year: 2024}, {Year: 2023}}},
			wantSlice: "yearly",
			wantIndex: 2,
		},
		{
			name:      "zero districts",
			snap:      Snapshot{DistrictCounts: map[string]int{"WY": 0}},
			wantSlice: "district_counts",
			wantIndex: -1,
		},
		{
			name:      "bad population",
			snap:      Snapshot{Populations: []PopulationStats{{Name: "p"}}},
			wantSlice: "populations",
			wantIndex: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantSlice == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Slice != tt.wantSlice || verr.Index != tt.wantIndex {
				t.Errorf("ValidationError = %s[%d], want %s[%d]", verr.Slice, verr.Index, tt.wantSlice, tt.wantIndex)
			}
			if verr.Unwrap() == nil {
				t.Error("ValidationError should wrap the record error")
			}
		})
	}
}

func TestSnapshotPopulation(t *testing.T) {
	snap := Snapshot{Populations: []PopulationStats{{Name: "a", Count: 1}, {Name: "b", Count: 2}}}
	if p := snap.Population("b"); p == nil || p.Count != 2 {
		t.Errorf("Population(b) = %+v", p)
	}
	if p := snap.Population("c"); p != nil {
		t.Errorf("Population(c) = %+v, want nil", p)
	}
}
