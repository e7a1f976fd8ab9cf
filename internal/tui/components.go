package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"finmentor/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

// SeverityStyle maps a severity to its display style.
func SeverityStyle(s domain.Severity) lipgloss.Style {
	switch s {
	case domain.SeverityHigh:
		return SeverityHighStyle
	case domain.SeverityMedium:
		return SeverityMediumStyle
	case domain.SeverityLow:
		return SeverityLowStyle
	}
	return SeverityNoneStyle
}

// FormatSummary renders a stored-evaluation summary as a single line.
func FormatSummary(s domain.EvaluationSummary) string {
	return fmt.Sprintf("#%-4d %-12s %-8s %-11s %s score %5.1f  %s",
		s.ID,
		s.UserID,
		s.Month,
		s.Persona,
		SeverityStyle(s.TopSeverity).Render(fmt.Sprintf("%-6s", strings.ToUpper(string(s.TopSeverity)))),
		s.Score,
		s.CreatedAt.Format(time.RFC822),
	)
}

// FormatRisk renders one risk item as a single line.
func FormatRisk(r domain.RiskItem) string {
	return fmt.Sprintf("%-16s %s %5.1f  %s",
		r.Dimension,
		SeverityStyle(r.Severity).Render(fmt.Sprintf("%-6s", strings.ToUpper(string(r.Severity)))),
		r.Score,
		r.Summary,
	)
}

// RenderScoreBar renders an ASCII bar for a 0-100 risk score.
// Low scores are good, so the color scale inverts at 30 and 60.
func RenderScoreBar(label string, score float64, barWidth int) string {
	if barWidth <= 0 {
		barWidth = 20
	}
	ratio := score / 100
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	filled := int(math.Round(ratio * float64(barWidth)))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	style := ScoreGoodStyle
	if score >= 60 {
		style = ScoreBadStyle
	} else if score >= 30 {
		style = ScoreOkStyle
	}

	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%-20s %s %5.1f", label, bar, score)
}

// FormatMoney renders an amount with the report currency and thousands separators.
func FormatMoney(currency string, v float64) string {
	if currency == "" {
		currency = "₹"
	}
	if v >= 1000 || v <= -1000 {
		sign := ""
		if v < 0 {
			sign = "-"
			v = -v
		}
		return sign + currency + addCommas(fmt.Sprintf("%.0f", v))
	}
	return fmt.Sprintf("%s%.2f", currency, v)
}

func addCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}
	return result.String()
}
