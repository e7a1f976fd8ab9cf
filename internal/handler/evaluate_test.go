package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finmentor/internal/domain"
	"finmentor/internal/engine"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type stubEvaluations struct {
	report    *domain.Report
	err       error
	summaries []domain.EvaluationSummary
	png       []byte
	lastRaw   map[string]any
	lastUser  string
	lastMonth string
	filter    domain.EvaluationFilter
}

func (s *stubEvaluations) Evaluate(ctx context.Context, raw map[string]any) (*domain.Report, error) {
	s.lastRaw = raw
	return s.report, s.err
}

func (s *stubEvaluations) DemoReport(ctx context.Context) (*domain.Report, error) {
	return s.report, s.err
}

func (s *stubEvaluations) LatestReport(ctx context.Context, userID string) (*domain.Report, error) {
	s.lastUser = userID
	return s.report, s.err
}

func (s *stubEvaluations) ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error) {
	s.lastUser = userID
	s.lastMonth = month
	return s.report, s.err
}

func (s *stubEvaluations) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error) {
	s.filter = filter
	return s.summaries, s.err
}

func (s *stubEvaluations) RiskChart(ctx context.Context, userID, month string) ([]byte, error) {
	return s.png, s.err
}

type stubAdvisor struct {
	enabled bool
	advice  string
	err     error
}

func (s *stubAdvisor) Enabled() bool { return s.enabled }

func (s *stubAdvisor) ReportAdvice(ctx context.Context, report *domain.Report) (string, error) {
	return s.advice, s.err
}

func testRouter(t *testing.T, evals EvaluationRunner, advisor AdviceProvider, rules RuleSource) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	h := New(tracer, evals, advisor, rules, NewAlertHub())
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func sampleReport() *domain.Report {
	return &domain.Report{
		Metadata: domain.Metadata{UserID: "u-1", Month: "2025-06", Persona: "gig_worker"},
		Risks: []domain.RiskItem{{
			ID:        "RK-SAVINGS",
			Dimension: domain.DimensionSavings,
			Score:     66.7,
			Severity:  domain.SeverityHigh,
		}},
		Alerts: []string{},
	}
}

func TestEvaluateReturnsReport(t *testing.T) {
	evals := &stubEvaluations{report: sampleReport()}
	r := testRouter(t, evals, nil, nil)

	body := `{"user_id":"u-1","month":"2025-06","current_month_income":23000,"current_month_expense":20500}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if evals.lastRaw["user_id"] != "u-1" {
		t.Fatalf("payload not forwarded: %v", evals.lastRaw)
	}
	var report domain.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if report.Metadata.UserID != "u-1" {
		t.Fatalf("unexpected report user: %s", report.Metadata.UserID)
	}
}

func TestEvaluateMapsValidationErrorTo400(t *testing.T) {
	evals := &stubEvaluations{err: &domain.ValidationError{
		Field:   "current_month_income",
		Message: "must be > 0, got -5",
	}}
	r := testRouter(t, evals, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{"current_month_income":-5}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "current_month_income") {
		t.Fatalf("error must name the offending field: %s", w.Body.String())
	}
}

func TestEvaluateRejectsNonObjectBody(t *testing.T) {
	r := testRouter(t, &stubEvaluations{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`[1,2,3]`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestEvaluateInternalErrorTo500(t *testing.T) {
	evals := &stubEvaluations{err: errors.New("boom")}
	r := testRouter(t, evals, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestListEvaluationsValidatesSeverity(t *testing.T) {
	r := testRouter(t, &stubEvaluations{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/evaluations?severity=extreme", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListEvaluationsForwardsFilter(t *testing.T) {
	evals := &stubEvaluations{summaries: []domain.EvaluationSummary{{UserID: "u-1"}}}
	r := testRouter(t, evals, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/evaluations?user=u-1&persona=Gig_Worker&severity=high&limit=10", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if evals.filter.UserID != "u-1" || evals.filter.Persona != "gig_worker" {
		t.Fatalf("unexpected filter: %+v", evals.filter)
	}
	if evals.filter.Severity != domain.SeverityHigh || evals.filter.Limit != 10 {
		t.Fatalf("unexpected filter: %+v", evals.filter)
	}
}

func TestGetLatestReport404WhenMissing(t *testing.T) {
	r := testRouter(t, &stubEvaluations{}, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/evaluations/u-9/latest", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetRiskChartServesPNG(t *testing.T) {
	evals := &stubEvaluations{png: []byte{0x89, 'P', 'N', 'G'}}
	r := testRouter(t, evals, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/evaluations/u-1/2025-06/chart", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %s", ct)
	}
}

func TestAdviceRequiresConfiguredAdvisor(t *testing.T) {
	r := testRouter(t, &stubEvaluations{}, &stubAdvisor{enabled: false}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/advice", strings.NewReader(`{"user_id":"u-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAdviceResolvesStoredReport(t *testing.T) {
	evals := &stubEvaluations{report: sampleReport()}
	advisor := &stubAdvisor{enabled: true, advice: "Build a buffer first."}
	r := testRouter(t, evals, advisor, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/advice", strings.NewReader(`{"user_id":"u-1","month":"2025-06"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if evals.lastUser != "u-1" || evals.lastMonth != "2025-06" {
		t.Fatalf("report reference not resolved: %s %s", evals.lastUser, evals.lastMonth)
	}
	if !strings.Contains(w.Body.String(), "Build a buffer first.") {
		t.Fatalf("advice missing from response: %s", w.Body.String())
	}
}

func TestHealthReportsEngineVersion(t *testing.T) {
	r := testRouter(t, nil, nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), engine.Version) {
		t.Fatalf("health must report engine version: %s", w.Body.String())
	}
}
