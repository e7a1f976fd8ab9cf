package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"finmentor/internal/domain"
	"finmentor/internal/engine"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubEvaluator struct {
	report  *domain.Report
	err     error
	lastRaw map[string]any
}

func (s *stubEvaluator) Evaluate(ctx context.Context, raw map[string]any) (*domain.Report, error) {
	s.lastRaw = raw
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func (s *stubEvaluator) DemoReport(ctx context.Context) (*domain.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

type stubReports struct {
	latest     *domain.Report
	byMonth    map[string]*domain.Report
	summaries  []domain.EvaluationSummary
	lastFilter domain.EvaluationFilter
}

func (s *stubReports) LatestReport(ctx context.Context, userID string) (*domain.Report, error) {
	return s.latest, nil
}

func (s *stubReports) ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error) {
	return s.byMonth[userID+":"+month], nil
}

func (s *stubReports) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error) {
	s.lastFilter = filter
	return append([]domain.EvaluationSummary(nil), s.summaries...), nil
}

func testReport() *domain.Report {
	return &domain.Report{
		Metadata: domain.Metadata{
			UserID:        "u-1",
			Month:         "2025-06",
			Persona:       "gig_worker",
			Currency:      "₹",
			GeneratedAt:   time.Unix(0, 0).UTC().Format(time.RFC3339),
			EngineVersion: engine.Version,
			EngineMode:    "rules",
			Confidence:    0.9,
		},
		Risks: []domain.RiskItem{{
			ID:        "RISK-DEFICIT",
			Dimension: domain.DimensionDeficit,
			Score:     72,
			Severity:  domain.SeverityHigh,
			Summary:   "Spending exceeded income this month",
		}},
		Alerts: []string{},
	}
}

func testServer(t *testing.T) (*sdkmcp.Server, *stubEvaluator, *stubReports) {
	t.Helper()

	registry, err := engine.DefaultRegistry()
	if err != nil {
		t.Fatalf("load default registry: %v", err)
	}

	report := testReport()
	evaluator := &stubEvaluator{report: report}
	reports := &stubReports{
		latest:  report,
		byMonth: map[string]*domain.Report{"u-1:2025-06": report},
		summaries: []domain.EvaluationSummary{{
			ID: 1, UserID: "u-1", Month: "2025-06", Persona: "gig_worker",
			TopSeverity: domain.SeverityHigh, Score: 72,
			EngineVersion: engine.Version, CreatedAt: time.Unix(0, 0).UTC(),
		}},
	}

	srv := NewServer(nil, evaluator, reports, registry, engine.DefaultConfig(), ServerConfig{RequestTimeout: time.Second})
	return srv, evaluator, reports
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
