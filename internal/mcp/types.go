package mcp

import (
	"fmt"
	"regexp"
	"strings"

	"finmentor/internal/domain"
	"finmentor/internal/engine"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

var monthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

type evaluateSnapshotInput struct {
	Snapshot map[string]any `json:"snapshot" jsonschema:"raw monthly snapshot payload, same shape as POST /evaluate"`
}

type evaluateSnapshotOutput struct {
	Report *domain.Report `json:"report"`
}

type reportsGetLatestInput struct {
	User  string `json:"user" jsonschema:"user id"`
	Month string `json:"month,omitempty" jsonschema:"optional month YYYY-MM; omit for the latest report"`
}

type reportsGetLatestOutput struct {
	Report *domain.Report `json:"report"`
}

type reportsListInput struct {
	User     string `json:"user,omitempty" jsonschema:"optional user id filter"`
	Persona  string `json:"persona,omitempty" jsonschema:"optional persona: gig_worker, salaried, default"`
	Severity string `json:"severity,omitempty" jsonschema:"optional top severity: none, low, medium, high"`
	Month    string `json:"month,omitempty" jsonschema:"optional month YYYY-MM"`
	Limit    int    `json:"limit,omitempty" jsonschema:"number of rows, max 200"`
}

type reportsListOutput struct {
	Evaluations []domain.EvaluationSummary `json:"evaluations"`
}

type rulesListInput struct {
	Bucket string `json:"bucket,omitempty" jsonschema:"optional rule group: core_cashflow, volatility_stability, category_insights, forecast"`
}

type rulesListOutput struct {
	Groups map[string]engine.RuleGroup `json:"groups"`
	Rules  []engine.RuleDefinition     `json:"rules"`
}

type demoReportInput struct{}

type demoReportOutput struct {
	Report *domain.Report `json:"report"`
}

func normalizeUser(user string) (string, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return "", fmt.Errorf("user is required")
	}
	return user, nil
}

func normalizeMonth(month string) (string, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return "", nil
	}
	if !monthRe.MatchString(month) {
		return "", fmt.Errorf("month must be YYYY-MM, got %s", month)
	}
	return month, nil
}

func normalizeListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func normalizeListFilter(in reportsListInput) (domain.EvaluationFilter, error) {
	filter := domain.EvaluationFilter{
		UserID:  strings.TrimSpace(in.User),
		Persona: strings.ToLower(strings.TrimSpace(in.Persona)),
		Limit:   normalizeListLimit(in.Limit),
	}

	if rawSeverity := strings.ToLower(strings.TrimSpace(in.Severity)); rawSeverity != "" {
		severity := domain.Severity(rawSeverity)
		if !severity.IsValid() {
			return domain.EvaluationFilter{}, fmt.Errorf("severity must be one of none, low, medium, high")
		}
		filter.Severity = severity
	}

	month, err := normalizeMonth(in.Month)
	if err != nil {
		return domain.EvaluationFilter{}, err
	}
	filter.Month = month

	return filter, nil
}
