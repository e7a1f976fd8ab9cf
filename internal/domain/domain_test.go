package domain

import (
	"encoding/json"
	"testing"
)

func TestSeverityMultiplier(t *testing.T) {
	cases := []struct {
		severity Severity
		want     float64
	}{
		{SeverityNone, 0},
		{SeverityLow, 1},
		{SeverityMedium, 2},
		{SeverityHigh, 3},
		{Severity("bogus"), 1},
	}
	for _, tc := range cases {
		if got := tc.severity.Multiplier(); got != tc.want {
			t.Errorf("Multiplier(%q) = %v, want %v", tc.severity, got, tc.want)
		}
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	if SeverityNone.Rank() >= SeverityLow.Rank() {
		t.Fatal("expected none to rank below low")
	}
	if SeverityLow.Rank() >= SeverityMedium.Rank() {
		t.Fatal("expected low to rank below medium")
	}
	if SeverityMedium.Rank() >= SeverityHigh.Rank() {
		t.Fatal("expected medium to rank below high")
	}
	if Severity("bogus").Rank() != -1 {
		t.Fatal("expected unknown severity to rank -1")
	}
}

func TestMaxSeverity(t *testing.T) {
	if got := MaxSeverity(SeverityLow, SeverityHigh); got != SeverityHigh {
		t.Fatalf("expected high, got %s", got)
	}
	if got := MaxSeverity(SeverityMedium, SeverityNone); got != SeverityMedium {
		t.Fatalf("expected medium, got %s", got)
	}
	if got := MaxSeverity(SeverityLow, SeverityLow); got != SeverityLow {
		t.Fatalf("expected low, got %s", got)
	}
}

func TestSeverityIsValid(t *testing.T) {
	for _, s := range []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh} {
		if !s.IsValid() {
			t.Fatalf("expected %q to be valid", s)
		}
	}
	if Severity("critical").IsValid() {
		t.Fatal("expected unknown severity to be invalid")
	}
}

func TestDimensionIsValid(t *testing.T) {
	for _, d := range Dimensions {
		if !d.IsValid() {
			t.Fatalf("expected %q to be valid", d)
		}
	}
	if Dimension("liquidity").IsValid() {
		t.Fatal("expected unknown dimension to be invalid")
	}
}

func TestReportTopSeverity(t *testing.T) {
	r := Report{Risks: []RiskItem{
		{Dimension: DimensionSavings, Severity: SeverityLow},
		{Dimension: DimensionDeficit, Severity: SeverityHigh},
		{Dimension: DimensionStability, Severity: SeverityMedium},
	}}
	if got := r.TopSeverity(); got != SeverityHigh {
		t.Fatalf("expected high, got %s", got)
	}

	empty := Report{}
	if got := empty.TopSeverity(); got != SeverityNone {
		t.Fatalf("expected none for empty report, got %s", got)
	}
}

func TestReportOverallScore(t *testing.T) {
	r := Report{Risks: []RiskItem{
		{Score: 40},
		{Score: 60},
	}}
	if got := r.OverallScore(); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
	empty := Report{}
	if got := empty.OverallScore(); got != 0 {
		t.Fatalf("expected 0 for empty report, got %v", got)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	withField := &ValidationError{Field: "user_id", Message: "is required"}
	if withField.Error() != "user_id: is required" {
		t.Fatalf("unexpected error text: %s", withField.Error())
	}
	bare := &ValidationError{Message: "current_month_income must be positive, got -5"}
	if bare.Error() != "current_month_income must be positive, got -5" {
		t.Fatalf("unexpected error text: %s", bare.Error())
	}
}

func TestAsValidation(t *testing.T) {
	ve := &ValidationError{Field: "month", Message: "is required"}
	got, ok := AsValidation(ve)
	if !ok || got.Field != "month" {
		t.Fatalf("expected to unwrap validation error, got %v %v", got, ok)
	}
	if _, ok := AsValidation(json.Unmarshal([]byte("{"), &struct{}{})); ok {
		t.Fatal("expected non-validation error to not match")
	}
}

func TestReportJSONKeys(t *testing.T) {
	r := Report{
		Metadata: Metadata{UserID: "u1", Month: "2025-06", EngineVersion: "1.0.0"},
		Risks: []RiskItem{{
			ID:        "RK-DEFICIT",
			Dimension: DimensionDeficit,
			Severity:  SeverityHigh,
		}},
		Alerts: []string{},
	}
	body, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"metadata", "risks", "rule_triggers", "recommendations", "action_plan", "alerts", "audit"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("expected report JSON to carry %q", key)
		}
	}
}
