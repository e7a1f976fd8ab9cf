package domain

import (
	"errors"
	"time"
)

// Severity is the qualitative level attached to rule triggers and risks.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityOrder = []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh}

func (s Severity) IsValid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Rank orders severities none < low < medium < high. Unknown values rank -1.
func (s Severity) Rank() int {
	for i, known := range severityOrder {
		if s == known {
			return i
		}
	}
	return -1
}

// Multiplier is the weight factor used by risk scoring.
// Unknown severities count as 1, matching low.
func (s Severity) Multiplier() float64 {
	switch s {
	case SeverityNone:
		return 0
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 1
}

func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Dimension groups related rules into one risk axis.
type Dimension string

const (
	DimensionDeficit         Dimension = "deficit"
	DimensionOverspend       Dimension = "overspend"
	DimensionVolatility      Dimension = "volatility"
	DimensionStability       Dimension = "stability"
	DimensionSavings         Dimension = "savings"
	DimensionDiscretionary   Dimension = "discretionary"
	DimensionCategoryOutlier Dimension = "category_outlier"
)

// Dimensions is the fixed output ordering for risk items.
var Dimensions = []Dimension{
	DimensionDeficit,
	DimensionOverspend,
	DimensionSavings,
	DimensionVolatility,
	DimensionStability,
	DimensionDiscretionary,
	DimensionCategoryOutlier,
}

func (d Dimension) IsValid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// BehaviorMetrics is the optional spending-behavior block of a snapshot.
type BehaviorMetrics struct {
	AvgDailyExpense    float64 `json:"avg_daily_expense"`
	HighSpendDays      float64 `json:"high_spend_days"`
	CashflowStability  float64 `json:"cashflow_stability"`
	DiscretionaryRatio float64 `json:"discretionary_ratio"`
}

// Forecast is the optional next-month projection block of a snapshot.
// Confidence defaults to 1.0 when the block is present without it.
type Forecast struct {
	PredictedIncomeNextMonth  float64 `json:"predicted_income_next_month"`
	PredictedExpenseNextMonth float64 `json:"predicted_expense_next_month"`
	Savings                   float64 `json:"savings"`
	Confidence                float64 `json:"confidence"`
}

// Insights carries free-text analytics attached to a snapshot.
type Insights struct {
	TopSpendCategory string `json:"top_spend_category,omitempty"`
	CategoryDrift    string `json:"category_drift,omitempty"`
}

// NormalizedInput is the canonical snapshot every rule evaluates against.
// Optional scalars are pointers: nil means the field was never reported,
// which is distinct from an explicit zero and keeps the rules that depend
// on them from firing against fabricated values.
type NormalizedInput struct {
	UserID  string `json:"user_id"`
	Month   string `json:"month"`
	Persona string `json:"persona_type"`

	CurrentMonthIncome  float64 `json:"current_month_income"`
	CurrentMonthExpense float64 `json:"current_month_expense"`
	AvgMonthlyIncome    float64 `json:"avg_monthly_income"`
	AvgMonthlyExpense   float64 `json:"avg_monthly_expense"`

	SavingsRate      *float64 `json:"savings_rate,omitempty"`
	IncomeVolatility *float64 `json:"income_volatility,omitempty"`
	RiskLevel        string   `json:"risk_level,omitempty"`
	ConfidenceScore  float64  `json:"confidence_score"`
	LastUpdated      string   `json:"last_updated,omitempty"`

	CategorySpend   map[string]float64 `json:"category_spend,omitempty"`
	BehaviorMetrics *BehaviorMetrics   `json:"behavior_metrics,omitempty"`
	Forecast        *Forecast          `json:"forecast,omitempty"`
	Insights        *Insights          `json:"insights,omitempty"`

	NetCashflow     float64  `json:"net_cashflow"`
	ExpenseDeltaPct *float64 `json:"expense_delta_pct,omitempty"`

	EmergencyFundBalance    *float64  `json:"emergency_fund_balance,omitempty"`
	RentOrHousing           *float64  `json:"rent_or_housing,omitempty"`
	WeeklyExpenses          []float64 `json:"weekly_expenses,omitempty"`
	PreviousMonthIncome     *float64  `json:"previous_month_income,omitempty"`
	PreviousMonthExpense    *float64  `json:"previous_month_expense,omitempty"`
	LargeTransactions       []float64 `json:"large_transactions,omitempty"`
	CashWithdrawals         *float64  `json:"cash_withdrawals,omitempty"`
	LoanEMITotal            *float64  `json:"loan_emi_total,omitempty"`
	ZeroIncomeDays          int       `json:"zero_income_days"`
	ConsecutiveDeficitCount int       `json:"consecutive_deficit_count"`
	PreviousSavingsBalance  *float64  `json:"previous_savings_balance,omitempty"`
	CurrentSavingsBalance   *float64  `json:"current_savings_balance,omitempty"`
}

// RuleTrigger is the outcome of evaluating one rule against a snapshot.
type RuleTrigger struct {
	RuleID    string         `json:"rule_id"`
	Triggered bool           `json:"triggered"`
	Severity  Severity       `json:"severity,omitempty"`
	Weight    float64        `json:"weight"`
	Params    map[string]any `json:"params"`
	Reason    string         `json:"reason,omitempty"`
	DataRefs  []string       `json:"data_refs,omitempty"`
}

// Contributor records one triggered rule's share of a risk item.
type Contributor struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Weight   float64  `json:"weight"`
}

// RiskItem is one aggregated risk dimension in the report.
type RiskItem struct {
	ID               string        `json:"id"`
	Dimension        Dimension     `json:"dimension"`
	Score            float64       `json:"score"`
	Severity         Severity      `json:"severity"`
	Summary          string        `json:"summary"`
	Reasons          []string      `json:"reasons"`
	DataRefs         []string      `json:"data_refs"`
	Contributors     []Contributor `json:"contributors"`
	WeightedScore    float64       `json:"weighted_score"`
	MaxPossibleScore float64       `json:"max_possible_score"`
}

// Recommendation is one actionable suggestion derived from triggered rules.
type Recommendation struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Actions      []string       `json:"actions"`
	Amounts      map[string]any `json:"amounts"`
	LinkedRisks  []string       `json:"linked_risks"`
	Priority     int            `json:"priority"`
	ValidForDays int            `json:"valid_for_days"`
	DataRefs     []string       `json:"data_refs,omitempty"`
}

type ActionItem struct {
	ActionID string `json:"action_id"`
	Title    string `json:"title"`
	KPI      string `json:"kpi"`
	Target   int    `json:"target"`
	Owner    string `json:"owner"`
}

type ActionPlan struct {
	Next30Days []ActionItem `json:"next_30_days"`
	Next90Days []ActionItem `json:"next_90_days"`
	KPIs       []string     `json:"kpis"`
}

// Metadata describes how and for whom a report was generated.
type Metadata struct {
	UserID        string  `json:"user_id"`
	Month         string  `json:"month"`
	Persona       string  `json:"persona"`
	Currency      string  `json:"currency"`
	GeneratedAt   string  `json:"generated_at"`
	EngineVersion string  `json:"engine_version"`
	EngineMode    string  `json:"engine_mode"`
	Confidence    float64 `json:"confidence"`
}

type AuditNormalization struct {
	UsedAliases []string `json:"used_aliases"`
}

// Audit records what the engine saw and did, for report traceability.
type Audit struct {
	InputFields    []string           `json:"input_fields"`
	Normalization  AuditNormalization `json:"normalization"`
	RulesEvaluated int                `json:"rules_evaluated"`
	RulesTriggered int                `json:"rules_triggered"`
}

// Report is the full evaluation output. RuleTriggers carries only the
// rules that fired; Alerts is a placeholder list kept for wire
// compatibility with downstream consumers.
type Report struct {
	Metadata        Metadata         `json:"metadata"`
	Risks           []RiskItem       `json:"risks"`
	RuleTriggers    []RuleTrigger    `json:"rule_triggers"`
	Recommendations []Recommendation `json:"recommendations"`
	ActionPlan      ActionPlan       `json:"action_plan"`
	Alerts          []string         `json:"alerts"`
	Audit           Audit            `json:"audit"`
}

// TopSeverity is the highest severity across the report's risk items.
func (r *Report) TopSeverity() Severity {
	top := SeverityNone
	for _, risk := range r.Risks {
		top = MaxSeverity(top, risk.Severity)
	}
	return top
}

// OverallScore is the mean risk score across present dimensions, 0 when none.
func (r *Report) OverallScore() float64 {
	if len(r.Risks) == 0 {
		return 0
	}
	total := 0.0
	for _, risk := range r.Risks {
		total += risk.Score
	}
	return total / float64(len(r.Risks))
}

// ValidationError marks snapshot payloads the engine must reject up front.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// AsValidation reports whether err is (or wraps) a ValidationError.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// EvaluationFilter narrows stored-evaluation listings.
type EvaluationFilter struct {
	UserID   string
	Persona  string
	Severity Severity
	Month    string
	Limit    int
}

// EvaluationSummary is one row of a stored-evaluation listing.
type EvaluationSummary struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Month         string    `json:"month"`
	Persona       string    `json:"persona"`
	TopSeverity   Severity  `json:"top_severity"`
	Score         float64   `json:"score"`
	EngineVersion string    `json:"engine_version"`
	CreatedAt     time.Time `json:"created_at"`
}

type ConversationMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}
