package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"finmentor/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type ReportEngine interface {
	Evaluate(raw map[string]any) (*domain.Report, error)
}

type ReportStore interface {
	InsertReport(ctx context.Context, report *domain.Report) (*domain.EvaluationSummary, error)
	GetLatest(ctx context.Context, userID string) (*domain.Report, error)
	GetByMonth(ctx context.Context, userID, month string) (*domain.Report, error)
	List(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error)
}

type ReportCacheStore interface {
	GetReport(ctx context.Context, userID, month string) (*domain.Report, error)
	SetReport(ctx context.Context, report *domain.Report) error
	GetChart(ctx context.Context, userID, month string) ([]byte, error)
	SetChart(ctx context.Context, userID, month string, png []byte) error
	Invalidate(ctx context.Context, userID, month string) error
}

// AlertSink receives reports whose top severity reached high. Implementations
// must not block the evaluation path for long.
type AlertSink interface {
	NotifyReport(ctx context.Context, report *domain.Report) error
}

type RiskChartRenderer interface {
	RenderRiskChart(report *domain.Report) ([]byte, error)
}

type DemoSource interface {
	DemoSnapshot() (map[string]any, error)
}

// EvaluationService orchestrates the pure engine with persistence, caching,
// chart rendering, and alert fan-out. Every side path is best-effort: a
// storage or cache failure is logged and the caller still gets the report.
type EvaluationService struct {
	tracer  trace.Tracer
	engine  ReportEngine
	store   ReportStore
	cache   ReportCacheStore
	charts  RiskChartRenderer
	demo    DemoSource
	sinks   []AlertSink
}

func NewEvaluationService(
	tracer trace.Tracer,
	engine ReportEngine,
	store ReportStore,
	cache ReportCacheStore,
	charts RiskChartRenderer,
	demo DemoSource,
	sinks ...AlertSink,
) *EvaluationService {
	return &EvaluationService{
		tracer: tracer,
		engine: engine,
		store:  store,
		cache:  cache,
		charts: charts,
		demo:   demo,
		sinks:  sinks,
	}
}

// AddAlertSink registers an additional alert destination. Not safe to call
// after the service starts receiving traffic.
func (s *EvaluationService) AddAlertSink(sink AlertSink) {
	if sink != nil {
		s.sinks = append(s.sinks, sink)
	}
}

func (s *EvaluationService) Evaluate(ctx context.Context, raw map[string]any) (*domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation-service.evaluate")
	defer span.End()

	if s.engine == nil {
		return nil, fmt.Errorf("evaluation service is not fully initialized")
	}

	report, err := s.engine.Evaluate(raw)
	if err != nil {
		return nil, err
	}

	userID := report.Metadata.UserID
	month := report.Metadata.Month

	if s.store != nil {
		if _, err := s.store.InsertReport(ctx, report); err != nil {
			log.Printf("persist report for %s %s: %v", userID, month, err)
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID, month); err != nil {
			log.Printf("invalidate cache for %s %s: %v", userID, month, err)
		}
		if err := s.cache.SetReport(ctx, report); err != nil {
			log.Printf("cache report for %s %s: %v", userID, month, err)
		}
	}

	if report.TopSeverity() == domain.SeverityHigh {
		s.notifySinks(ctx, report)
	}

	return report, nil
}

func (s *EvaluationService) notifySinks(ctx context.Context, report *domain.Report) {
	for _, sink := range s.sinks {
		if sink == nil {
			continue
		}
		if err := sink.NotifyReport(ctx, report); err != nil {
			log.Printf("alert sink error for %s %s: %v",
				report.Metadata.UserID, report.Metadata.Month, err)
		}
	}
}

// LatestReport returns the most recent stored report for a user, nil when
// the user has none.
func (s *EvaluationService) LatestReport(ctx context.Context, userID string) (*domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation-service.latest-report")
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("evaluation store unavailable")
	}
	return s.store.GetLatest(ctx, userID)
}

// ReportForMonth is a cache-aside read of one stored report.
func (s *EvaluationService) ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation-service.report-for-month")
	defer span.End()

	userID = strings.TrimSpace(userID)
	month = strings.TrimSpace(month)
	if userID == "" || month == "" {
		return nil, fmt.Errorf("user id and month are required")
	}

	if s.cache != nil {
		cached, err := s.cache.GetReport(ctx, userID, month)
		if err != nil {
			log.Printf("cache read for %s %s: %v", userID, month, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	if s.store == nil {
		return nil, fmt.Errorf("evaluation store unavailable")
	}
	report, err := s.store.GetByMonth(ctx, userID, month)
	if err != nil || report == nil {
		return report, err
	}

	if s.cache != nil {
		if err := s.cache.SetReport(ctx, report); err != nil {
			log.Printf("cache fill for %s %s: %v", userID, month, err)
		}
	}
	return report, nil
}

func (s *EvaluationService) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation-service.list-evaluations")
	defer span.End()

	if s.store == nil {
		return nil, fmt.Errorf("evaluation store unavailable")
	}

	filter.UserID = strings.TrimSpace(filter.UserID)
	filter.Persona = strings.ToLower(strings.TrimSpace(filter.Persona))
	if filter.Severity != "" && !filter.Severity.IsValid() {
		return nil, fmt.Errorf("invalid severity: %s", filter.Severity)
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	return s.store.List(ctx, filter)
}

// RiskChart renders the dimension-score chart for a stored report, caching
// the PNG bytes alongside the report. Returns nil bytes when the report does
// not exist.
func (s *EvaluationService) RiskChart(ctx context.Context, userID, month string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "evaluation-service.risk-chart")
	defer span.End()

	if s.charts == nil {
		return nil, fmt.Errorf("chart renderer unavailable")
	}

	if s.cache != nil {
		png, err := s.cache.GetChart(ctx, userID, month)
		if err != nil {
			log.Printf("chart cache read for %s %s: %v", userID, month, err)
		} else if len(png) > 0 {
			return png, nil
		}
	}

	report, err := s.ReportForMonth(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, nil
	}

	png, err := s.charts.RenderRiskChart(report)
	if err != nil {
		return nil, fmt.Errorf("render risk chart: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetChart(ctx, userID, month, png); err != nil {
			log.Printf("chart cache fill for %s %s: %v", userID, month, err)
		}
	}
	return png, nil
}

// DemoReport evaluates the embedded sample snapshot without persisting it.
func (s *EvaluationService) DemoReport(ctx context.Context) (*domain.Report, error) {
	_, span := s.tracer.Start(ctx, "evaluation-service.demo-report")
	defer span.End()

	if s.engine == nil || s.demo == nil {
		return nil, fmt.Errorf("evaluation service is not fully initialized")
	}
	raw, err := s.demo.DemoSnapshot()
	if err != nil {
		return nil, err
	}
	return s.engine.Evaluate(raw)
}
