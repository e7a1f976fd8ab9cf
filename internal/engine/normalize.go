package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"finmentor/internal/domain"
)

// fieldAliases maps accepted alternate spellings of top-level payload
// keys to their canonical names.
var fieldAliases = map[string]string{
	"Category_spend":    "category_spend",
	"Behaviour_metrics": "behavior_metrics",
	"Forecast":          "forecast",
}

// NormalizationTrace records how the raw payload's keys were read, for
// the report's audit block.
type NormalizationTrace struct {
	// InputFields holds the canonicalized top-level keys, sorted.
	InputFields []string
	// UsedAliases holds the canonical names of fields that arrived
	// under an alias spelling, sorted.
	UsedAliases []string
}

// Normalize converts a raw snapshot payload into the canonical input
// model. It resolves key aliases, coerces numerics, validates the
// monetary scalars and derives net cashflow and the expense delta.
// Rejected payloads return a *domain.ValidationError and no partial
// output.
func Normalize(raw map[string]any) (*domain.NormalizedInput, *NormalizationTrace, error) {
	if raw == nil {
		return nil, nil, &domain.ValidationError{Message: "input must be a JSON object"}
	}

	trace := buildTrace(raw)

	userID := asString(rawValue(raw, "user_id"))
	if userID == "" {
		return nil, nil, &domain.ValidationError{Field: "user_id", Message: "is required"}
	}
	month := asString(rawValue(raw, "month"))
	if month == "" {
		return nil, nil, &domain.ValidationError{Field: "month", Message: "is required"}
	}

	money := map[string]float64{}
	for _, field := range []string{
		"current_month_income", "current_month_expense",
		"avg_monthly_income", "avg_monthly_expense",
	} {
		value, err := asFloat(rawValue(raw, field))
		if err != nil {
			return nil, nil, &domain.ValidationError{Field: field, Message: err.Error()}
		}
		if value <= 0 {
			return nil, nil, &domain.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("must be positive, got %v", value),
			}
		}
		money[field] = value
	}

	in := &domain.NormalizedInput{
		UserID:              userID,
		Month:               month,
		Persona:             personaOrDefault(asString(rawValue(raw, "persona_type"))),
		CurrentMonthIncome:  money["current_month_income"],
		CurrentMonthExpense: money["current_month_expense"],
		AvgMonthlyIncome:    money["avg_monthly_income"],
		AvgMonthlyExpense:   money["avg_monthly_expense"],
		RiskLevel:           asString(rawValue(raw, "risk_level")),
		LastUpdated:         asString(rawValue(raw, "last_updated")),
	}

	// Optional scalars stay nil when the key is absent or null so the
	// rules guarding on them can tell "not reported" from a real zero.
	optional := []struct {
		key string
		dst **float64
	}{
		{"savings_rate", &in.SavingsRate},
		{"income_volatility", &in.IncomeVolatility},
		{"emergency_fund_balance", &in.EmergencyFundBalance},
		{"rent_or_housing", &in.RentOrHousing},
		{"previous_month_income", &in.PreviousMonthIncome},
		{"previous_month_expense", &in.PreviousMonthExpense},
		{"cash_withdrawals", &in.CashWithdrawals},
		{"loan_emi_total", &in.LoanEMITotal},
		{"previous_savings_balance", &in.PreviousSavingsBalance},
		{"current_savings_balance", &in.CurrentSavingsBalance},
	}
	for _, field := range optional {
		v := rawValue(raw, field.key)
		if v == nil {
			continue
		}
		value, err := asFloat(v)
		if err != nil {
			return nil, nil, &domain.ValidationError{Field: field.key, Message: err.Error()}
		}
		*field.dst = &value
	}

	// Confidence defaults to full trust only when the key is absent; an
	// explicit zero survives.
	in.ConfidenceScore = 1.0
	if _, ok := raw["confidence_score"]; ok {
		value, err := asFloat(raw["confidence_score"])
		if err != nil {
			return nil, nil, &domain.ValidationError{Field: "confidence_score", Message: err.Error()}
		}
		in.ConfidenceScore = value
	}

	for _, field := range []struct {
		key string
		dst *int
	}{
		{"zero_income_days", &in.ZeroIncomeDays},
		{"consecutive_deficit_count", &in.ConsecutiveDeficitCount},
	} {
		value, err := asFloat(rawValue(raw, field.key))
		if err != nil {
			return nil, nil, &domain.ValidationError{Field: field.key, Message: err.Error()}
		}
		*field.dst = int(value)
	}

	for _, field := range []struct {
		key string
		dst *[]float64
	}{
		{"weekly_expenses", &in.WeeklyExpenses},
		{"large_transactions", &in.LargeTransactions},
	} {
		values, err := asFloatSlice(rawValue(raw, field.key))
		if err != nil {
			return nil, nil, &domain.ValidationError{Field: field.key, Message: err.Error()}
		}
		*field.dst = values
	}

	spend, err := asCategorySpend(rawValue(raw, "category_spend"))
	if err != nil {
		return nil, nil, &domain.ValidationError{Field: "category_spend", Message: err.Error()}
	}
	in.CategorySpend = spend

	if block, ok := rawValue(raw, "behavior_metrics").(map[string]any); ok && len(block) > 0 {
		in.BehaviorMetrics = &domain.BehaviorMetrics{
			AvgDailyExpense:    numField(block, "avg_daily_expense"),
			HighSpendDays:      numField(block, "high_spend_days"),
			CashflowStability:  numField(block, "cashflow_stability"),
			DiscretionaryRatio: numField(block, "discretionary_ratio"),
		}
	}
	if block, ok := rawValue(raw, "forecast").(map[string]any); ok && len(block) > 0 {
		fc := &domain.Forecast{
			PredictedIncomeNextMonth:  numField(block, "predicted_income_next_month"),
			PredictedExpenseNextMonth: numField(block, "predicted_expense_next_month"),
			Savings:                   numField(block, "savings"),
			Confidence:                1.0,
		}
		if _, ok := block["confidence"]; ok {
			fc.Confidence = numField(block, "confidence")
		}
		in.Forecast = fc
	}
	if block, ok := raw["insights"].(map[string]any); ok && len(block) > 0 {
		in.Insights = &domain.Insights{
			TopSpendCategory: asString(block["top_spend_category"]),
			CategoryDrift:    asString(block["category_drift"]),
		}
	}

	in.NetCashflow = in.CurrentMonthIncome - in.CurrentMonthExpense
	if in.AvgMonthlyExpense != 0 {
		delta := (in.CurrentMonthExpense - in.AvgMonthlyExpense) / in.AvgMonthlyExpense
		in.ExpenseDeltaPct = &delta
	}

	return in, trace, nil
}

func buildTrace(raw map[string]any) *NormalizationTrace {
	trace := &NormalizationTrace{
		InputFields: make([]string, 0, len(raw)),
	}
	for key := range raw {
		if canonical, ok := fieldAliases[key]; ok {
			trace.InputFields = append(trace.InputFields, canonical)
			trace.UsedAliases = append(trace.UsedAliases, canonical)
			continue
		}
		trace.InputFields = append(trace.InputFields, strings.ReplaceAll(strings.ToLower(key), " ", "_"))
	}
	sort.Strings(trace.InputFields)
	sort.Strings(trace.UsedAliases)
	return trace
}

// rawValue reads a top-level key, consulting alias spellings.
func rawValue(raw map[string]any, key string) any {
	if v, ok := raw[key]; ok {
		return v
	}
	for alias, canonical := range fieldAliases {
		if canonical == key {
			if v, ok := raw[alias]; ok {
				return v
			}
		}
	}
	return nil
}

func personaOrDefault(persona string) string {
	if persona == "" {
		return "default"
	}
	return persona
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// asFloat coerces a raw payload value to float64. Null and empty
// strings read as zero; anything unparseable is an error.
func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func asFloatSlice(v any) ([]float64, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not a list: %v", v)
	}
	out := make([]float64, 0, len(items))
	for i, item := range items {
		f, err := asFloat(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func asCategorySpend(v any) (map[string]float64, error) {
	if v == nil {
		return map[string]float64{}, nil
	}
	block, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("not an object: %v", v)
	}
	out := make(map[string]float64, len(block))
	for category, amount := range block {
		f, err := asFloat(amount)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", category, err)
		}
		out[category] = f
	}
	return out, nil
}

// numField reads a numeric member of a nested block, tolerating
// missing keys and nulls.
func numField(block map[string]any, key string) float64 {
	f, err := asFloat(block[key])
	if err != nil {
		return 0
	}
	return f
}
