package handler

import (
	"net/http"
	"strconv"
	"strings"

	"finmentor/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// Evaluate godoc
// @Summary      Evaluate a financial snapshot
// @Description  Runs the rule engine over one monthly snapshot and returns the full risk report
// @Tags         evaluations
// @Accept       json
// @Produce      json
// @Param        snapshot  body  map[string]interface{}  true  "Raw snapshot payload"
// @Success      200  {object}  domain.Report
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /evaluate [post]
func (h *Handler) Evaluate(c *gin.Context) {
	if h.evaluations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.evaluate")
	defer span.End()

	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return
	}

	report, err := h.evaluations.Evaluate(ctx, raw)
	if err != nil {
		if ve, ok := domain.AsValidation(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "validation failed",
				"field": ve.Field,
				"detail": ve.Message,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("user_id", report.Metadata.UserID),
		attribute.String("top_severity", string(report.TopSeverity())),
	)
	c.JSON(http.StatusOK, report)
}

// Demo godoc
// @Summary      Evaluate the embedded demo snapshot
// @Tags         evaluations
// @Produce      json
// @Success      200  {object}  domain.Report
// @Failure      503  {object}  map[string]string
// @Router       /demo [get]
func (h *Handler) Demo(c *gin.Context) {
	if h.evaluations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.demo")
	defer span.End()

	report, err := h.evaluations.DemoReport(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListEvaluations godoc
// @Summary      List stored evaluations
// @Description  Returns evaluation summaries, optionally filtered by user/persona/severity/month
// @Tags         evaluations
// @Produce      json
// @Param        user      query  string  false  "User id"
// @Param        persona   query  string  false  "Persona (gig_worker, salaried, default)"
// @Param        severity  query  string  false  "Top severity (none, low, medium, high)"
// @Param        month     query  string  false  "Month (YYYY-MM)"
// @Param        limit     query  int     false  "Number of rows (default 50, max 200)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/evaluations [get]
func (h *Handler) ListEvaluations(c *gin.Context) {
	if h.evaluations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-evaluations")
	defer span.End()

	filter := domain.EvaluationFilter{
		UserID:  strings.TrimSpace(c.Query("user")),
		Persona: strings.ToLower(strings.TrimSpace(c.Query("persona"))),
		Month:   strings.TrimSpace(c.Query("month")),
	}

	if rawSeverity := strings.ToLower(strings.TrimSpace(c.Query("severity"))); rawSeverity != "" {
		severity := domain.Severity(rawSeverity)
		if !severity.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be one of none, low, medium, high"})
			return
		}
		filter.Severity = severity
	}

	limit := 50
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}
	filter.Limit = limit

	summaries, err := h.evaluations.ListEvaluations(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": summaries})
}

// GetLatestReport godoc
// @Summary      Get a user's latest report
// @Tags         evaluations
// @Produce      json
// @Param        user  path  string  true  "User id"
// @Success      200  {object}  domain.Report
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/evaluations/{user}/latest [get]
func (h *Handler) GetLatestReport(c *gin.Context) {
	if h.evaluations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-latest-report")
	defer span.End()

	user := strings.TrimSpace(c.Param("user"))
	report, err := h.evaluations.LatestReport(ctx, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no evaluations for user " + user})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetReport godoc
// @Summary      Get a user's report for one month
// @Tags         evaluations
// @Produce      json
// @Param        user   path  string  true  "User id"
// @Param        month  path  string  true  "Month (YYYY-MM)"
// @Success      200  {object}  domain.Report
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/evaluations/{user}/{month} [get]
func (h *Handler) GetReport(c *gin.Context) {
	if h.evaluations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-report")
	defer span.End()

	user := strings.TrimSpace(c.Param("user"))
	month := strings.TrimSpace(c.Param("month"))
	report, err := h.evaluations.ReportForMonth(ctx, user, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no report for " + user + " " + month})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetRiskChart godoc
// @Summary      Get the risk-dimension chart for one report
// @Tags         evaluations
// @Produce      png
// @Param        user   path  string  true  "User id"
// @Param        month  path  string  true  "Month (YYYY-MM)"
// @Success      200  {file}  binary
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/evaluations/{user}/{month}/chart [get]
func (h *Handler) GetRiskChart(c *gin.Context) {
	if h.evaluations == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-risk-chart")
	defer span.End()

	user := strings.TrimSpace(c.Param("user"))
	month := strings.TrimSpace(c.Param("month"))
	png, err := h.evaluations.RiskChart(ctx, user, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(png) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no chart for " + user + " " + month})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
