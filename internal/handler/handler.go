package handler

import (
	"context"
	"net/http"

	"finmentor/internal/domain"
	"finmentor/internal/engine"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// EvaluationRunner is the slice of the evaluation service the API needs.
type EvaluationRunner interface {
	Evaluate(ctx context.Context, raw map[string]any) (*domain.Report, error)
	DemoReport(ctx context.Context) (*domain.Report, error)
	LatestReport(ctx context.Context, userID string) (*domain.Report, error)
	ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error)
	ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error)
	RiskChart(ctx context.Context, userID, month string) ([]byte, error)
}

// AdviceProvider turns a finished report into narrative guidance.
type AdviceProvider interface {
	Enabled() bool
	ReportAdvice(ctx context.Context, report *domain.Report) (string, error)
}

// RuleSource exposes registry introspection for the rules endpoints.
type RuleSource interface {
	Rules() []engine.RuleDefinition
	RulesByBucket(bucket string) []engine.RuleDefinition
	Rule(id string) (engine.RuleDefinition, bool)
	Groups() map[string]engine.RuleGroup
}

type Handler struct {
	tracer      trace.Tracer
	evaluations EvaluationRunner
	advisor     AdviceProvider
	rules       RuleSource
	alerts      *AlertHub
}

func New(
	tracer trace.Tracer,
	evaluations EvaluationRunner,
	advisor AdviceProvider,
	rules RuleSource,
	alerts *AlertHub,
) *Handler {
	return &Handler{
		tracer:      tracer,
		evaluations: evaluations,
		advisor:     advisor,
		rules:       rules,
		alerts:      alerts,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/evaluate", h.Evaluate)
	r.GET("/demo", h.Demo)
	r.GET("/api/evaluations", h.ListEvaluations)
	r.GET("/api/evaluations/:user/latest", h.GetLatestReport)
	r.GET("/api/evaluations/:user/:month", h.GetReport)
	r.GET("/api/evaluations/:user/:month/chart", h.GetRiskChart)
	r.GET("/api/rules", h.ListRules)
	r.GET("/api/rules/:id", h.GetRule)
	r.POST("/api/advice", h.Advice)
	r.GET("/api/alerts/stream", h.StreamAlerts)
}

// Health godoc
// @Summary      Service health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.health")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": engine.Version,
	})
}
