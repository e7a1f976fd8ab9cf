package engine

import (
	"testing"

	"finmentor/internal/domain"
)

func TestBuildContextWeeklyMetrics(t *testing.T) {
	in := quietInput()
	in.WeeklyExpenses = []float64{4000, 4000, 9000, 3000}

	ctx := BuildContext(in, DefaultConfig())
	if ctx["max_weekly_expense"] != 9000.0 {
		t.Fatalf("max weekly: %v", ctx["max_weekly_expense"])
	}
	if ctx["avg_weekly_expense"] != 5000.0 {
		t.Fatalf("avg weekly: %v", ctx["avg_weekly_expense"])
	}
	cv, ok := ctx["cashflow_coefficient_variation"].(float64)
	if !ok || cv < 0.5416 || cv > 0.5417 {
		t.Fatalf("coefficient of variation: %v", ctx["cashflow_coefficient_variation"])
	}
}

func TestBuildContextWeeklyMetricsNeedTwoEntries(t *testing.T) {
	in := quietInput()
	in.WeeklyExpenses = []float64{9000}

	ctx := BuildContext(in, DefaultConfig())
	if ctx["max_weekly_expense"] != 0.0 || ctx["avg_weekly_expense"] != 0.0 {
		t.Fatalf("single week should derive nothing: max=%v avg=%v",
			ctx["max_weekly_expense"], ctx["avg_weekly_expense"])
	}
}

func TestBuildContextVariationNeedsThreeEntries(t *testing.T) {
	in := quietInput()
	in.WeeklyExpenses = []float64{4000, 9000}

	ctx := BuildContext(in, DefaultConfig())
	if ctx["max_weekly_expense"] != 9000.0 || ctx["avg_weekly_expense"] != 6500.0 {
		t.Fatalf("two weeks should still derive max/avg: %v", ctx)
	}
	if ctx["cashflow_coefficient_variation"] != 0.0 {
		t.Fatalf("variation needs three weeks, got %v", ctx["cashflow_coefficient_variation"])
	}
}

func TestBuildContextLargestTransaction(t *testing.T) {
	in := quietInput()
	in.LargeTransactions = []float64{1200, 5400, 900}

	ctx := BuildContext(in, DefaultConfig())
	if ctx["max_large_transaction"] != 5400.0 {
		t.Fatalf("max large transaction: %v", ctx["max_large_transaction"])
	}
}

func TestBuildContextCountsReadAsNumbers(t *testing.T) {
	in := quietInput()
	in.ConsecutiveDeficitCount = 3
	in.ZeroIncomeDays = 7

	ctx := BuildContext(in, DefaultConfig())
	// Counts are stored as floats so comparison expressions need no
	// special casing.
	if ctx["consecutive_deficit_count"] != 3.0 {
		t.Fatalf("deficit count: %#v", ctx["consecutive_deficit_count"])
	}
	if ctx["zero_income_days"] != 7.0 {
		t.Fatalf("zero income days: %#v", ctx["zero_income_days"])
	}
}

func TestBuildContextOmitsUnreportedScalars(t *testing.T) {
	in := quietInput()
	in.PreviousMonthIncome = nil
	in.EmergencyFundBalance = nil

	ctx := BuildContext(in, DefaultConfig())
	if _, ok := ctx["previous_month_income"]; ok {
		t.Fatalf("unreported scalar should be absent from the context")
	}
	if _, ok := ctx["emergency_fund_balance"]; ok {
		t.Fatalf("unreported scalar should be absent from the context")
	}
	if ctx["savings_rate"] != 0.30 {
		t.Fatalf("reported scalar should be present: %v", ctx["savings_rate"])
	}
}

func TestBuildContextAbsentBlocksAreEmptyMaps(t *testing.T) {
	ctx := BuildContext(quietInput(), DefaultConfig())
	for _, key := range []string{"behavior_metrics", "forecast", "insights"} {
		block, ok := ctx[key].(map[string]any)
		if !ok || len(block) != 0 {
			t.Fatalf("%s: expected empty map, got %#v", key, ctx[key])
		}
	}
}

func TestBuildContextNestedBlocks(t *testing.T) {
	in := quietInput()
	in.Forecast = &domain.Forecast{PredictedIncomeNextMonth: 21000, Confidence: 0.82}
	in.Insights = &domain.Insights{TopSpendCategory: "Food"}

	ctx := BuildContext(in, DefaultConfig())
	forecast := ctx["forecast"].(map[string]any)
	if forecast["predicted_income_next_month"] != 21000.0 || forecast["confidence"] != 0.82 {
		t.Fatalf("forecast block: %v", forecast)
	}
	insights := ctx["insights"].(map[string]any)
	if insights["top_spend_category"] != "Food" {
		t.Fatalf("insights block: %v", insights)
	}
}

func TestBuildContextConfigTables(t *testing.T) {
	ctx := BuildContext(quietInput(), DefaultConfig())

	savings := ctx["persona_min_savings"].(map[string]any)
	if savings["gig_worker"] != 0.25 || savings["default"] != 0.20 {
		t.Fatalf("persona savings table: %v", savings)
	}
	if ctx["rent_threshold"] != 0.35 {
		t.Fatalf("rent threshold: %v", ctx["rent_threshold"])
	}
	months := ctx["emergency_fund_months"].(map[string]any)
	if months["gig_worker"] != 6.0 {
		t.Fatalf("fund months table: %v", months)
	}
}

func TestBuildContextPersonaFallback(t *testing.T) {
	in := quietInput()
	in.Persona = ""

	ctx := BuildContext(in, DefaultConfig())
	if ctx["persona"] != "default" {
		t.Fatalf("persona: %v", ctx["persona"])
	}
}
