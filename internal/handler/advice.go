package handler

import (
	"net/http"
	"strings"

	"finmentor/internal/domain"

	"github.com/gin-gonic/gin"
)

type adviceRequest struct {
	UserID string         `json:"user_id"`
	Month  string         `json:"month"`
	Report *domain.Report `json:"report"`
}

// Advice godoc
// @Summary      Get narrative advice for a report
// @Description  Accepts either an inline report or a user/month reference to a stored one
// @Tags         advice
// @Accept       json
// @Produce      json
// @Param        request  body  adviceRequest  true  "Report or reference"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/advice [post]
func (h *Handler) Advice(c *gin.Context) {
	if h.advisor == nil || !h.advisor.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "advisor not configured"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.advice")
	defer span.End()

	var req adviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	report := req.Report
	if report == nil {
		user := strings.TrimSpace(req.UserID)
		if user == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "either report or user_id is required"})
			return
		}
		if h.evaluations == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation service unavailable"})
			return
		}

		var err error
		if month := strings.TrimSpace(req.Month); month != "" {
			report, err = h.evaluations.ReportForMonth(ctx, user, month)
		} else {
			report, err = h.evaluations.LatestReport(ctx, user)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no report for user " + user})
			return
		}
	}

	advice, err := h.advisor.ReportAdvice(ctx, report)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"advice": advice})
}
