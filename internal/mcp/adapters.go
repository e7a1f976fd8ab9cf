package mcp

import (
	"context"

	"finmentor/internal/domain"
	"finmentor/internal/engine"
)

// SnapshotEvaluator runs evaluations for the MCP tools.
type SnapshotEvaluator interface {
	Evaluate(ctx context.Context, raw map[string]any) (*domain.Report, error)
	DemoReport(ctx context.Context) (*domain.Report, error)
}

// ReportReader exposes read operations over stored evaluations.
type ReportReader interface {
	LatestReport(ctx context.Context, userID string) (*domain.Report, error)
	ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error)
	ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error)
}

// RegistryReader exposes the rule registry for introspection.
type RegistryReader interface {
	Rules() []engine.RuleDefinition
	RulesByBucket(bucket string) []engine.RuleDefinition
	Groups() map[string]engine.RuleGroup
}
