package engine

import (
	"math"

	"finmentor/internal/domain"
)

// BuildContext assembles the flat lookup structure rules evaluate
// against: direct snapshot scalars, derived weekly metrics, nested
// blocks as maps (empty when the block is absent), and the config
// threshold tables keyed for bracket access.
func BuildContext(in *domain.NormalizedInput, cfg Config) map[string]any {
	maxWeekly := 0.0
	avgWeekly := 0.0
	cashflowCV := 0.0
	if len(in.WeeklyExpenses) >= 2 {
		sum := 0.0
		for _, w := range in.WeeklyExpenses {
			if w > maxWeekly {
				maxWeekly = w
			}
			sum += w
		}
		avgWeekly = sum / float64(len(in.WeeklyExpenses))
		if len(in.WeeklyExpenses) >= 3 && avgWeekly > 0 {
			cashflowCV = sampleStdev(in.WeeklyExpenses, avgWeekly) / avgWeekly
		}
	}

	maxLargeTxn := 0.0
	for _, t := range in.LargeTransactions {
		if t > maxLargeTxn {
			maxLargeTxn = t
		}
	}

	expenseDelta := 0.0
	if in.ExpenseDeltaPct != nil {
		expenseDelta = *in.ExpenseDeltaPct
	}
	persona := in.Persona
	if persona == "" {
		persona = "default"
	}

	ctx := map[string]any{
		"current_month_income":  in.CurrentMonthIncome,
		"current_month_expense": in.CurrentMonthExpense,
		"avg_monthly_income":    in.AvgMonthlyIncome,
		"avg_monthly_expense":   in.AvgMonthlyExpense,
		"net_cashflow":          in.NetCashflow,
		"expense_delta_pct":     expenseDelta,
		"category_spend":        floatMapToAny(in.CategorySpend),
		"persona":               persona,

		"consecutive_deficit_count": float64(in.ConsecutiveDeficitCount),
		"zero_income_days":          float64(in.ZeroIncomeDays),

		"max_weekly_expense":             maxWeekly,
		"avg_weekly_expense":             avgWeekly,
		"cashflow_coefficient_variation": cashflowCV,
		"max_large_transaction":          maxLargeTxn,

		"behavior_metrics": map[string]any{},
		"forecast":         map[string]any{},
		"insights":         map[string]any{},

		"persona_min_savings":        floatMapToAny(cfg.PersonaMinSavings),
		"volatility_threshold":       floatMapToAny(cfg.VolatilityThreshold),
		"overspend_bands":            floatMapToAny(cfg.OverspendBands),
		"deficit_bands":              floatMapToAny(cfg.DeficitBands),
		"stability_thresholds":       floatMapToAny(cfg.StabilityThresholds),
		"discretionary_ratio_bands":  floatMapToAny(cfg.DiscretionaryRatioBands),
		"rent_threshold":             cfg.RentThreshold,
		"emergency_fund_months":      floatMapToAny(cfg.EmergencyFundMonths),
		"category_thresholds":        floatMapToAny(cfg.CategoryThresholds),
		"forecast_surplus_threshold": cfg.ForecastSurplusThreshold,
		"forecast_confidence_min":    cfg.ForecastConfidenceMin,
		"buffer_months_warning":      floatMapToAny(cfg.BufferMonthsWarning),
	}

	// Unreported optional scalars are left out entirely: comparisons on
	// them soft-fail instead of matching a fabricated zero, and the
	// is_null / field_exists condition types can see the absence.
	for key, value := range map[string]*float64{
		"savings_rate":             in.SavingsRate,
		"income_volatility":        in.IncomeVolatility,
		"emergency_fund_balance":   in.EmergencyFundBalance,
		"rent_or_housing":          in.RentOrHousing,
		"previous_month_income":    in.PreviousMonthIncome,
		"previous_month_expense":   in.PreviousMonthExpense,
		"cash_withdrawals":         in.CashWithdrawals,
		"loan_emi_total":           in.LoanEMITotal,
		"previous_savings_balance": in.PreviousSavingsBalance,
		"current_savings_balance":  in.CurrentSavingsBalance,
	} {
		if value != nil {
			ctx[key] = *value
		}
	}

	if bm := in.BehaviorMetrics; bm != nil {
		ctx["behavior_metrics"] = map[string]any{
			"cashflow_stability":  bm.CashflowStability,
			"discretionary_ratio": bm.DiscretionaryRatio,
			"high_spend_days":     bm.HighSpendDays,
			"avg_daily_expense":   bm.AvgDailyExpense,
		}
	}
	if fc := in.Forecast; fc != nil {
		ctx["forecast"] = map[string]any{
			"predicted_income_next_month":  fc.PredictedIncomeNextMonth,
			"predicted_expense_next_month": fc.PredictedExpenseNextMonth,
			"savings":                      fc.Savings,
			"confidence":                   fc.Confidence,
		}
	}
	if ins := in.Insights; ins != nil {
		ctx["insights"] = map[string]any{
			"top_spend_category": ins.TopSpendCategory,
			"category_drift":     ins.CategoryDrift,
		}
	}

	return ctx
}

func floatMapToAny(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sampleStdev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}
