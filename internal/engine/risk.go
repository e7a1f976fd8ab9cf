package engine

import (
	"fmt"
	"math"
	"strings"

	"finmentor/internal/domain"
)

// ruleDimensions maps each rule to the single risk dimension it
// contributes to. A rule never feeds two dimensions.
var ruleDimensions = map[string]domain.Dimension{
	"R-DEFICIT-01":    domain.DimensionDeficit,
	"R-FCAST-DEF-01":  domain.DimensionDeficit,
	"R-CONSEC-DEF-01": domain.DimensionDeficit,

	"R-OVRSPEND-01":     domain.DimensionOverspend,
	"R-WEEKLY-SPIKE-01": domain.DimensionOverspend,
	"R-RENT-HIGH-01":    domain.DimensionOverspend,

	"R-SAVE-LOW-01":     domain.DimensionSavings,
	"R-EMERG-FUND-01":   domain.DimensionSavings,
	"R-SAVE-DEPLETE-01": domain.DimensionSavings,

	"R-VOL-INC-01":      domain.DimensionVolatility,
	"R-INCOME-DROP-01":  domain.DimensionVolatility,
	"R-CASHFLOW-VAR-01": domain.DimensionVolatility,

	"R-STAB-LOW-01":      domain.DimensionStability,
	"R-LARGE-TXN-01":     domain.DimensionStability,
	"R-ZERO-INC-DAYS-01": domain.DimensionStability,

	"R-DISC-HIGH-01":          domain.DimensionDiscretionary,
	"R-HSD-01":                domain.DimensionDiscretionary,
	"R-ENTERTAINMENT-HIGH-01": domain.DimensionDiscretionary,

	"R-CAT-DRIFT-01":       domain.DimensionCategoryOutlier,
	"R-TOP-CAT-HEAVY-01":   domain.DimensionCategoryOutlier,
	"R-FOOD-HIGH-01":       domain.DimensionCategoryOutlier,
	"R-TRANSPORT-HIGH-01":  domain.DimensionCategoryOutlier,
	"R-UTILITIES-SPIKE-01": domain.DimensionCategoryOutlier,
	"R-CASH-SPIKE-01":      domain.DimensionCategoryOutlier,
	"R-LOAN-EMI-HIGH-01":   domain.DimensionCategoryOutlier,

	"R-FCAST-SURPLUS-01":   domain.DimensionSavings,
	"R-BUFFER-WARN-01":     domain.DimensionSavings,
	"R-FCAST-CONF-LOW-01":  domain.DimensionStability,
	"R-FCAST-DEF-LARGE-01": domain.DimensionDeficit,
}

// BuildRisks groups triggered rules into risk dimensions and computes
// a severity-weighted score per dimension: each contributor adds
// weight x multiplier (none 0, low 1, medium 2, high 3) against a
// maximum of weight x 3, normalized to [0,100]. Dimension severity is
// the maximum among contributors, so one high-severity trigger marks
// the dimension high regardless of dilution. Dimensions without a
// triggered contributor are omitted entirely.
func BuildRisks(triggers []domain.RuleTrigger) []domain.RiskItem {
	type dimState struct {
		severity     domain.Severity
		reasons      []string
		refs         []string
		contributors []domain.Contributor
	}
	states := make(map[domain.Dimension]*dimState, len(domain.Dimensions))
	for _, dim := range domain.Dimensions {
		states[dim] = &dimState{severity: domain.SeverityNone}
	}

	for _, trigger := range triggers {
		if !trigger.Triggered {
			continue
		}
		dim, ok := ruleDimensions[trigger.RuleID]
		if !ok {
			continue
		}
		severity := trigger.Severity
		if severity == "" {
			severity = domain.SeverityLow
		}
		state := states[dim]
		state.severity = domain.MaxSeverity(state.severity, severity)
		if trigger.Reason != "" {
			state.reasons = append(state.reasons, trigger.Reason)
		}
		state.refs = append(state.refs, trigger.DataRefs...)
		state.contributors = append(state.contributors, domain.Contributor{
			RuleID:   trigger.RuleID,
			Severity: severity,
			Weight:   trigger.Weight,
		})
	}

	risks := make([]domain.RiskItem, 0, len(domain.Dimensions))
	for _, dim := range domain.Dimensions {
		state := states[dim]
		if len(state.contributors) == 0 {
			continue
		}

		weighted, maxPossible := 0.0, 0.0
		for _, contrib := range state.contributors {
			weighted += contrib.Weight * contrib.Severity.Multiplier()
			maxPossible += contrib.Weight * domain.SeverityHigh.Multiplier()
		}
		score := 0.0
		if maxPossible > 0 {
			score = weighted / maxPossible * 100
		}

		reasons := state.reasons
		if reasons == nil {
			reasons = []string{}
		}
		risks = append(risks, domain.RiskItem{
			ID:               "RK-" + strings.ToUpper(string(dim)),
			Dimension:        dim,
			Score:            roundTo(score, 1),
			Severity:         state.severity,
			Summary:          fmt.Sprintf("%s risk: %s", capitalizeFirst(string(dim)), state.severity),
			Reasons:          reasons,
			DataRefs:         dedupeStrings(state.refs),
			Contributors:     state.contributors,
			WeightedScore:    roundTo(weighted, 2),
			MaxPossibleScore: roundTo(maxPossible, 2),
		})
	}
	return risks
}

// RuleDimension reports which dimension a rule id feeds, if any.
func RuleDimension(ruleID string) (domain.Dimension, bool) {
	dim, ok := ruleDimensions[ruleID]
	return dim, ok
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// dedupeStrings removes duplicates while keeping first-seen order.
func dedupeStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
