package engine

import "finmentor/internal/domain"

// BuildActionPlan turns each recommendation into a single trackable
// task for the next 30 days. The 90-day horizon and KPI list are
// emitted empty; longer-range planning happens outside the engine.
func BuildActionPlan(recs []domain.Recommendation) domain.ActionPlan {
	next30 := make([]domain.ActionItem, 0, len(recs))
	for _, rec := range recs {
		next30 = append(next30, domain.ActionItem{
			ActionID: rec.ID,
			Title:    rec.Title,
			KPI:      "complete_action",
			Target:   1,
			Owner:    "user",
		})
	}
	return domain.ActionPlan{
		Next30Days: next30,
		Next90Days: []domain.ActionItem{},
		KPIs:       []string{},
	}
}
