package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ListRules godoc
// @Summary      List registry rules
// @Description  Returns the declarative rule definitions the engine evaluates
// @Tags         rules
// @Produce      json
// @Param        bucket  query  string  false  "Rule group (core_cashflow, volatility_stability, category_insights, forecast)"
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	if h.rules == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rule registry unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.list-rules")
	defer span.End()

	bucket := strings.ToLower(strings.TrimSpace(c.Query("bucket")))
	rules := h.rules.Rules()
	if bucket != "" {
		rules = h.rules.RulesByBucket(bucket)
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": h.rules.Groups(),
		"rules":  rules,
	})
}

// GetRule godoc
// @Summary      Get one rule definition
// @Tags         rules
// @Produce      json
// @Param        id  path  string  true  "Rule id (e.g. R-DEFICIT-01)"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	if h.rules == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rule registry unavailable"})
		return
	}

	_, span := h.tracer.Start(c.Request.Context(), "handler.get-rule")
	defer span.End()

	id := strings.ToUpper(strings.TrimSpace(c.Param("id")))
	rule, ok := h.rules.Rule(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown rule: " + id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": rule})
}
