package engine

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"finmentor/internal/domain"
)

// recommendationTTLDays is how long generated advice stays actionable.
const recommendationTTLDays = 30

// smartCap computes an achievable spending target for reduction advice:
// the higher of (income x targetRatio) and 80% of current spend, but
// never above current spend, so monthly savings stay non-negative.
func smartCap(currentSpend, income, targetRatio float64) float64 {
	targetFromIncome := income * targetRatio
	gradualReduction := currentSpend * 0.8
	return min(currentSpend, max(targetFromIncome, gradualReduction))
}

// fmtPct renders a ratio as a whole percentage, 0.25 -> 25.
func fmtPct(x float64) int {
	return int(math.Round(x * 100))
}

func fmtCurrency(symbol string, amount float64) string {
	return symbol + strconv.Itoa(int(math.Round(amount)))
}

// incomeBase is the income figure advice anchors on. Falls back to the
// rolling average when the current month reads zero.
func incomeBase(in *domain.NormalizedInput) float64 {
	if in.CurrentMonthIncome != 0 {
		return in.CurrentMonthIncome
	}
	return in.AvgMonthlyIncome
}

func paramFloat(params map[string]any, key string) float64 {
	f, _ := lookupParamFloat(params, key)
	return f
}

func lookupParamFloat(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func paramString(params map[string]any, key string) string {
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}

// BuildRecommendations turns triggered rules into personalized advice
// with concrete amounts. Emission order is fixed by rule id, so equal
// inputs always yield the same recommendation list. Each entry links
// back to the risk dimension it addresses when that dimension surfaced.
func BuildRecommendations(cfg Config, in *domain.NormalizedInput, risks []domain.RiskItem, triggers []domain.RuleTrigger) []domain.Recommendation {
	recs := make([]domain.Recommendation, 0, 8)

	riskIDs := make(map[domain.Dimension]string, len(risks))
	for _, r := range risks {
		riskIDs[r.Dimension] = r.ID
	}
	fired := make(map[string]domain.RuleTrigger, len(triggers))
	for _, t := range triggers {
		if t.Triggered {
			fired[t.RuleID] = t
		}
	}
	linked := func(dim domain.Dimension) []string {
		if id, ok := riskIDs[dim]; ok {
			return []string{id}
		}
		return []string{}
	}
	cur := func(amount float64) string { return fmtCurrency(cfg.Currency, amount) }

	log.Printf("building recommendations from %d triggered rules", len(fired))

	if t, ok := fired["R-DEFICIT-01"]; ok {
		gap := paramFloat(t.Params, "gap_amt")
		cutPct := min(0.20, max(0.10, gap/max(in.CurrentMonthExpense, 1e-6)))
		recs = append(recs, domain.Recommendation{
			ID:    "REC-BALANCE-01",
			Title: "Close this month's gap",
			Body: fmt.Sprintf("You're short by %s%d this month. Reduce discretionary spend by %d%% across top categories to balance.",
				cfg.Currency, int(gap), fmtPct(cutPct)),
			Actions: []string{
				"Set weekly discretionary budget envelopes",
				"Pause non-essential subscriptions until balance is restored",
			},
			Amounts:     map[string]any{"target_cut_pct": cutPct},
			LinkedRisks: linked(domain.DimensionDeficit),
			Priority:    1,
			DataRefs:    []string{"/current_month_expense", "/current_month_income"},
		})
	}

	if t, ok := fired["R-SAVE-LOW-01"]; ok {
		target := paramFloat(t.Params, "target_rate")
		recs = append(recs, domain.Recommendation{
			ID:    "REC-SAVE-BOOST-01",
			Title: "Boost savings rate",
			Body: fmt.Sprintf("Savings rate is below target. Set an auto-transfer to reach %d%% upon income receipt.",
				fmtPct(target)),
			Actions:     []string{"Create automated savings transfer on payday"},
			Amounts:     map[string]any{"new_savings_rate": target},
			LinkedRisks: linked(domain.DimensionSavings),
			Priority:    2,
			DataRefs:    []string{"/savings_rate"},
		})
	}

	if _, ok := fired["R-VOL-INC-01"]; ok {
		months := 3
		if in.Persona == "gig_worker" {
			months = 6
		}
		bufTarget := float64(months) * in.AvgMonthlyExpense
		recs = append(recs, domain.Recommendation{
			ID:    "REC-BUFFER-01",
			Title: "Build income buffer",
			Body: fmt.Sprintf("Income volatility is elevated. Build a %d-month buffer of %s%d.",
				months, cfg.Currency, int(bufTarget)),
			Actions: []string{
				"Allocate a buffer sub-account",
				"Divert surplus to buffer until target reached",
			},
			Amounts:     map[string]any{"buffer_target": bufTarget, "months": months},
			LinkedRisks: linked(domain.DimensionVolatility),
			Priority:    1,
			DataRefs:    []string{"/income_volatility"},
		})
	}

	if _, ok := fired["R-OVRSPEND-01"]; ok {
		softCap := in.AvgMonthlyExpense * 1.05
		recs = append(recs, domain.Recommendation{
			ID:    "REC-CAP-01",
			Title: "Set monthly cap",
			Body: fmt.Sprintf("Expenses exceed average. Set a soft cap at %s%d (≈105%% of average).",
				cfg.Currency, int(softCap)),
			Actions: []string{
				"Enable monthly cap alerts",
				"Lock discretionary spend after cap",
			},
			Amounts:     map[string]any{"cap_amount": softCap},
			LinkedRisks: linked(domain.DimensionOverspend),
			Priority:    2,
			DataRefs:    []string{"/avg_monthly_expense", "/current_month_expense"},
		})
	}

	if t, ok := fired["R-CAT-DRIFT-01"]; ok {
		cat := paramString(t.Params, "category")
		if cat == "" {
			log.Printf("R-CAT-DRIFT-01 triggered but no category in params")
		} else {
			currentSpend := in.CategorySpend[cat]
			income := incomeBase(in)
			categoryTarget, ok := cfg.CategoryThresholds[strings.ToLower(cat)]
			if !ok {
				categoryTarget = 0.15
			}
			tempCap := smartCap(currentSpend, income, categoryTarget)
			// Essential categories are never cut below their configured floor.
			if floor, ok := cfg.EssentialMinCaps[cat]; ok {
				tempCap = max(tempCap, currentSpend*floor)
			}
			reductionPct := 0.0
			if currentSpend > 0 {
				reductionPct = (currentSpend - tempCap) / currentSpend * 100
			}
			recs = append(recs, domain.Recommendation{
				ID:    "REC-CAT-AUDIT-01",
				Title: "Audit category: " + cat,
				Body: fmt.Sprintf("%s spending jumped recently to %s. Run a 1-week audit and reduce to %s (%.0f%% reduction).",
					cat, cur(currentSpend), cur(tempCap), reductionPct),
				Actions: []string{
					"Review last 10 transactions in " + cat,
					"Set temporary cap at " + cur(tempCap),
					"Identify recurring charges that can be cancelled",
				},
				Amounts:     map[string]any{"category": cat, "temp_cap": tempCap, "reduction_pct": reductionPct},
				LinkedRisks: linked(domain.DimensionCategoryOutlier),
				Priority:    3,
				DataRefs:    []string{"/category_spend/" + cat},
			})
		}
	}

	_, discFired := fired["R-DISC-HIGH-01"]
	_, hsdFired := fired["R-HSD-01"]
	if discFired || hsdFired {
		income := incomeBase(in)
		essential := income * 0.65
		targetDiscretionary := (income - essential) * 0.6
		dailyBudget := targetDiscretionary / 30
		envelopes := "Use cash envelopes for discretionary categories"
		if len(cfg.DiscretionaryCategories) > 0 {
			envelopes += " (" + strings.Join(cfg.DiscretionaryCategories, ", ") + ")"
		}
		recs = append(recs, domain.Recommendation{
			ID:    "REC-SPEND-ALERT-01",
			Title: "Tighten daily spending",
			Body: fmt.Sprintf("Discretionary spending is high. Set a daily budget of %s and enable alerts when you hit 80%% of daily limit.",
				cur(dailyBudget)),
			Actions: []string{
				fmt.Sprintf("Enable daily alerts at %s (80%% of daily budget)", cur(dailyBudget*0.8)),
				"Apply hard stops after daily budget is exceeded",
				envelopes,
			},
			Amounts:     map[string]any{"daily_budget": dailyBudget, "monthly_target": targetDiscretionary},
			LinkedRisks: linked(domain.DimensionDiscretionary),
			Priority:    3,
			DataRefs:    []string{"/behavior_metrics/discretionary_ratio"},
		})
	}

	if t, ok := fired["R-EMERG-FUND-01"]; ok {
		required := paramFloat(t.Params, "required_fund")
		shortfall := paramFloat(t.Params, "shortfall")
		monthlyAllocation := incomeBase(in) * 0.10
		monthsToTarget := 0
		if monthlyAllocation > 0 {
			monthsToTarget = int(shortfall / monthlyAllocation)
		}
		recs = append(recs, domain.Recommendation{
			ID:    "REC-EMERG-FUND-01",
			Title: "Build emergency fund",
			Body: fmt.Sprintf("Your emergency fund is %s short of the recommended %s. Allocate %s monthly (10%% of income) to reach target in ~%d months.",
				cur(shortfall), cur(required), cur(monthlyAllocation), monthsToTarget),
			Actions: []string{
				fmt.Sprintf("Set up auto-transfer of %s on payday", cur(monthlyAllocation)),
				"Allocate all windfalls to emergency fund",
				"Review and increase allocation after 3 months",
			},
			Amounts: map[string]any{
				"required_fund":      required,
				"shortfall":          shortfall,
				"monthly_allocation": monthlyAllocation,
				"months_to_target":   monthsToTarget,
			},
			LinkedRisks: linked(domain.DimensionSavings),
			Priority:    1,
			DataRefs:    []string{"/emergency_fund_balance"},
		})
	}

	if t, ok := fired["R-RENT-HIGH-01"]; ok {
		rentRatio := paramFloat(t.Params, "rent_ratio")
		recs = append(recs, domain.Recommendation{
			ID:    "REC-RENT-REDUCE-01",
			Title: "Housing cost is too high",
			Body: fmt.Sprintf("Housing takes up %.1f%% of income (recommended: ≤35%%). Consider relocating or finding a roommate.",
				rentRatio*100),
			Actions: []string{
				"Explore cheaper housing options",
				"Negotiate rent reduction",
				"Consider shared accommodation",
			},
			Amounts:     map[string]any{"current_rent_ratio": rentRatio},
			LinkedRisks: linked(domain.DimensionOverspend),
			Priority:    2,
			DataRefs:    []string{"/rent_or_housing"},
		})
	}

	if t, ok := fired["R-CONSEC-DEF-01"]; ok {
		months := int(paramFloat(t.Params, "consecutive_months"))
		recs = append(recs, domain.Recommendation{
			ID:    "REC-DEFICIT-STREAK-01",
			Title: "Break the deficit streak",
			Body: fmt.Sprintf("You've been in deficit for %d consecutive months. Urgent action needed to balance income and expenses.",
				months),
			Actions: []string{
				"Cut all non-essential expenses immediately",
				"Look for additional income sources",
				"Review all subscriptions and cancel unused ones",
			},
			Amounts:     map[string]any{"deficit_months": months},
			LinkedRisks: linked(domain.DimensionDeficit),
			Priority:    1,
			DataRefs:    []string{"/consecutive_deficit_count"},
		})
	}

	if t, ok := fired["R-INCOME-DROP-01"]; ok {
		dropPct := paramFloat(t.Params, "drop_pct")
		currentIncome := incomeBase(in)
		previousIncome := currentIncome
		if in.PreviousMonthIncome != nil && *in.PreviousMonthIncome != 0 {
			previousIncome = *in.PreviousMonthIncome
		}
		incomeLoss := previousIncome - currentIncome
		essential := currentIncome * 0.65
		adjustedDiscretionary := max((currentIncome-essential)*0.5, 0)
		recs = append(recs, domain.Recommendation{
			ID:    "REC-INCOME-DROP-01",
			Title: "Income dropped significantly",
			Body: fmt.Sprintf("Your income dropped by %s (%.0f%%) from last month. Reduce discretionary spending to %s until income stabilizes.",
				cur(incomeLoss), dropPct*100, cur(adjustedDiscretionary)),
			Actions: []string{
				"Scale down discretionary expenses by 50%",
				fmt.Sprintf("Set temporary monthly budget at %s for non-essentials", cur(adjustedDiscretionary)),
				"Tap emergency fund if essential expenses can't be covered",
				"Explore freelance/side gigs to supplement income",
			},
			Amounts: map[string]any{
				"drop_percentage":        dropPct,
				"income_loss":            incomeLoss,
				"adjusted_discretionary": adjustedDiscretionary,
			},
			LinkedRisks: linked(domain.DimensionVolatility),
			Priority:    1,
			DataRefs:    []string{"/previous_month_income", "/current_month_income"},
		})
	}

	if t, ok := fired["R-LOAN-EMI-HIGH-01"]; ok {
		emiRatio := paramFloat(t.Params, "income_ratio")
		income := incomeBase(in)
		currentEMI := income * emiRatio
		targetEMI := income * 0.35
		potentialSavings := currentEMI - targetEMI
		recs = append(recs, domain.Recommendation{
			ID:    "REC-LOAN-REFI-01",
			Title: "Loan EMI burden is high",
			Body: fmt.Sprintf("Your loan EMI is %s (%.0f%% of income). Target: ≤40%%. Refinancing could save %s/month if you reduce EMI to %.0f%% → 35%%.",
				cur(currentEMI), emiRatio*100, cur(potentialSavings), emiRatio*100),
			Actions: []string{
				"Compare refinancing rates from 3+ lenders",
				"Consolidate multiple loans to reduce interest",
				"Negotiate with current lenders for rate reduction",
				fmt.Sprintf("Target monthly EMI: %s (35%% of income)", cur(targetEMI)),
			},
			Amounts: map[string]any{
				"emi_ratio":         emiRatio,
				"current_emi":       currentEMI,
				"target_emi":        targetEMI,
				"potential_savings": potentialSavings,
			},
			LinkedRisks: linked(domain.DimensionCategoryOutlier),
			Priority:    2,
			DataRefs:    []string{"/loan_emi_total"},
		})
	}

	if t, ok := fired["R-FCAST-SURPLUS-01"]; ok {
		surplus := paramFloat(t.Params, "surplus_amount")
		savingsAllocation := surplus * 0.50
		investmentAllocation := surplus * 0.30
		rewardAllocation := surplus * 0.20
		recs = append(recs, domain.Recommendation{
			ID:    "REC-SURPLUS-INVEST-01",
			Title: "Great news: Surplus expected!",
			Body: fmt.Sprintf("Next month is forecasted to have a surplus of %s. Smart allocation: %s to savings (50%%), %s to investment (30%%), %s as reward (20%%).",
				cur(surplus), cur(savingsAllocation), cur(investmentAllocation), cur(rewardAllocation)),
			Actions: []string{
				fmt.Sprintf("Auto-transfer %s to emergency fund", cur(savingsAllocation)),
				fmt.Sprintf("Invest %s in SIP/mutual funds", cur(investmentAllocation)),
				fmt.Sprintf("Reward yourself with %s guilt-free spending", cur(rewardAllocation)),
				"Review allocation after 3 months",
			},
			Amounts: map[string]any{
				"surplus_amount":        surplus,
				"savings_allocation":    savingsAllocation,
				"investment_allocation": investmentAllocation,
				"reward_allocation":     rewardAllocation,
			},
			LinkedRisks: []string{},
			Priority:    4,
			DataRefs:    []string{"/Forecast/predicted_income_next_month", "/Forecast/predicted_expense_next_month"},
		})
	}

	if t, ok := fired["R-FOOD-HIGH-01"]; ok {
		foodSpend := in.CategorySpend["Food"]
		income := incomeBase(in)
		foodRatio, ok := lookupParamFloat(t.Params, "food_ratio")
		if !ok && income > 0 {
			foodRatio = foodSpend / income
		}
		targetFood := smartCap(foodSpend, income, 0.25)
		savings := foodSpend - targetFood
		recs = append(recs, domain.Recommendation{
			ID:    "REC-FOOD-REDUCE-01",
			Title: "Food spending is above ideal range",
			Body: fmt.Sprintf("Food spending at %s (%.0f%% of income). Target: ≤25%%. Reduce to %s to save %s/month.",
				cur(foodSpend), foodRatio*100, cur(targetFood), cur(savings)),
			Actions: []string{
				"Plan meals weekly to reduce impulsive dining out",
				"Cook in batches for 3-4 days",
				fmt.Sprintf("Set food budget cap at %s", cur(targetFood)),
				"Cancel unused food delivery subscriptions",
			},
			Amounts: map[string]any{
				"current_food":    foodSpend,
				"target_food":     targetFood,
				"monthly_savings": savings,
			},
			LinkedRisks: linked(domain.DimensionCategoryOutlier),
			Priority:    2,
			DataRefs:    []string{"/category_spend/Food"},
		})
	}

	if t, ok := fired["R-TRANSPORT-HIGH-01"]; ok {
		transportSpend := in.CategorySpend["Transport"]
		income := incomeBase(in)
		transportRatio, ok := lookupParamFloat(t.Params, "transport_ratio")
		if !ok && income > 0 {
			transportRatio = transportSpend / income
		}
		targetTransport := smartCap(transportSpend, income, 0.15)
		savings := transportSpend - targetTransport
		recs = append(recs, domain.Recommendation{
			ID:    "REC-TRANSPORT-REDUCE-01",
			Title: "Transport costs are elevated",
			Body: fmt.Sprintf("Transport spending at %s (%.0f%% of income). Target: ≤15%%. Optimize to %s to save %s/month.",
				cur(transportSpend), transportRatio*100, cur(targetTransport), cur(savings)),
			Actions: []string{
				"Use public transport instead of ride-sharing apps",
				"Carpool with colleagues for work commute",
				fmt.Sprintf("Set transport budget cap at %s", cur(targetTransport)),
				"Consider monthly passes for regular routes",
			},
			Amounts: map[string]any{
				"current_transport": transportSpend,
				"target_transport":  targetTransport,
				"monthly_savings":   savings,
			},
			LinkedRisks: linked(domain.DimensionCategoryOutlier),
			Priority:    2,
			DataRefs:    []string{"/category_spend/Transport"},
		})
	}

	if t, ok := fired["R-ENTERTAINMENT-HIGH-01"]; ok {
		entertainmentSpend := in.CategorySpend["Entertainment"]
		income := incomeBase(in)
		entertainmentRatio, ok := lookupParamFloat(t.Params, "entertainment_ratio")
		if !ok && income > 0 {
			entertainmentRatio = entertainmentSpend / income
		}
		targetEntertainment := smartCap(entertainmentSpend, income, 0.10)
		savings := entertainmentSpend - targetEntertainment
		recs = append(recs, domain.Recommendation{
			ID:    "REC-ENTERTAINMENT-REDUCE-01",
			Title: "Entertainment spending is above recommended",
			Body: fmt.Sprintf("Entertainment at %s (%.0f%% of income). Target: ≤10%%. Cut to %s to save %s/month.",
				cur(entertainmentSpend), entertainmentRatio*100, cur(targetEntertainment), cur(savings)),
			Actions: []string{
				"Review and cancel unused streaming subscriptions",
				"Look for free/low-cost entertainment alternatives",
				fmt.Sprintf("Set entertainment budget at %s", cur(targetEntertainment)),
				"Limit expensive outings to 1-2 per month",
			},
			Amounts: map[string]any{
				"current_entertainment": entertainmentSpend,
				"target_entertainment":  targetEntertainment,
				"monthly_savings":       savings,
			},
			LinkedRisks: linked(domain.DimensionDiscretionary),
			Priority:    3,
			DataRefs:    []string{"/category_spend/Entertainment"},
		})
	}

	for i := range recs {
		recs[i].ValidForDays = recommendationTTLDays
	}
	log.Printf("generated %d recommendations", len(recs))
	return recs
}
