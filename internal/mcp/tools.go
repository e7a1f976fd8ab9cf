package mcp

import (
	"context"
	"fmt"
	"strings"

	"finmentor/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, evaluator SnapshotEvaluator, reports ReportReader, registry RegistryReader) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "evaluate_snapshot",
		Description: "Evaluate one monthly financial snapshot and return the full risk report",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in evaluateSnapshotInput) (*mcp.CallToolResult, evaluateSnapshotOutput, error) {
		if evaluator == nil {
			return nil, evaluateSnapshotOutput{}, fmt.Errorf("evaluation service unavailable")
		}
		if len(in.Snapshot) == 0 {
			return nil, evaluateSnapshotOutput{}, fmt.Errorf("snapshot is required")
		}
		report, err := evaluator.Evaluate(ctx, in.Snapshot)
		if err != nil {
			if ve, ok := domain.AsValidation(err); ok {
				return nil, evaluateSnapshotOutput{}, fmt.Errorf("invalid snapshot: %s", ve.Error())
			}
			return nil, evaluateSnapshotOutput{}, err
		}
		return nil, evaluateSnapshotOutput{Report: report}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reports_get_latest",
		Description: "Get a user's stored risk report, latest or for a specific month",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in reportsGetLatestInput) (*mcp.CallToolResult, reportsGetLatestOutput, error) {
		if reports == nil {
			return nil, reportsGetLatestOutput{}, fmt.Errorf("report store unavailable")
		}
		user, err := normalizeUser(in.User)
		if err != nil {
			return nil, reportsGetLatestOutput{}, err
		}
		month, err := normalizeMonth(in.Month)
		if err != nil {
			return nil, reportsGetLatestOutput{}, err
		}

		var report *domain.Report
		if month != "" {
			report, err = reports.ReportForMonth(ctx, user, month)
		} else {
			report, err = reports.LatestReport(ctx, user)
		}
		if err != nil {
			return nil, reportsGetLatestOutput{}, err
		}
		if report == nil {
			return nil, reportsGetLatestOutput{}, fmt.Errorf("no report for user %s", user)
		}
		return nil, reportsGetLatestOutput{Report: report}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "reports_list",
		Description: "List stored evaluation summaries with optional user/persona/severity/month filters",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in reportsListInput) (*mcp.CallToolResult, reportsListOutput, error) {
		if reports == nil {
			return nil, reportsListOutput{}, fmt.Errorf("report store unavailable")
		}
		filter, err := normalizeListFilter(in)
		if err != nil {
			return nil, reportsListOutput{}, err
		}
		summaries, err := reports.ListEvaluations(ctx, filter)
		if err != nil {
			return nil, reportsListOutput{}, err
		}
		return nil, reportsListOutput{Evaluations: summaries}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "rules_list",
		Description: "List the declarative rules the engine evaluates, optionally by group",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in rulesListInput) (*mcp.CallToolResult, rulesListOutput, error) {
		if registry == nil {
			return nil, rulesListOutput{}, fmt.Errorf("rule registry unavailable")
		}
		out := rulesListOutput{Groups: registry.Groups()}
		if bucket := strings.ToLower(strings.TrimSpace(in.Bucket)); bucket != "" {
			out.Rules = registry.RulesByBucket(bucket)
		} else {
			out.Rules = registry.Rules()
		}
		return nil, out, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "demo_report",
		Description: "Evaluate the embedded demo snapshot to see a complete example report",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ demoReportInput) (*mcp.CallToolResult, demoReportOutput, error) {
		if evaluator == nil {
			return nil, demoReportOutput{}, fmt.Errorf("evaluation service unavailable")
		}
		report, err := evaluator.DemoReport(ctx)
		if err != nil {
			return nil, demoReportOutput{}, err
		}
		return nil, demoReportOutput{Report: report}, nil
	})
}
