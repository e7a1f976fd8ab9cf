package bot

import (
	"strings"
	"testing"

	"finmentor/internal/domain"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	StartTelegramBot(nil, nil)
}

func TestParseRisksArgs(t *testing.T) {
	user, month, err := parseRisksArgs([]string{"u-1", "2025-06"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != "u-1" || month != "2025-06" {
		t.Fatalf("unexpected parse result: user=%q month=%q", user, month)
	}

	user, month, err = parseRisksArgs([]string{"u-1"})
	if err != nil || user != "u-1" || month != "" {
		t.Fatalf("expected bare user parse, got user=%q month=%q err=%v", user, month, err)
	}

	if _, _, err := parseRisksArgs(nil); err == nil {
		t.Fatal("expected missing user error")
	}
	if _, _, err := parseRisksArgs([]string{"u-1", "June"}); err == nil {
		t.Fatal("expected invalid month error")
	}
}

func TestParseEvaluationArgsUserAndFlags(t *testing.T) {
	filter, err := parseEvaluationArgs([]string{"u-1", "--persona", "Gig_Worker", "--severity=HIGH"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.UserID != "u-1" {
		t.Fatalf("expected user u-1, got %s", filter.UserID)
	}
	if filter.Persona != "gig_worker" {
		t.Fatalf("expected lowercased persona, got %s", filter.Persona)
	}
	if filter.Severity != domain.SeverityHigh {
		t.Fatalf("expected high severity, got %s", filter.Severity)
	}
	if filter.Limit != 10 {
		t.Fatalf("expected default limit=10, got %d", filter.Limit)
	}
}

func TestParseEvaluationArgsRejectsInvalidSeverity(t *testing.T) {
	if _, err := parseEvaluationArgs([]string{"--severity", "critical"}); err == nil {
		t.Fatal("expected severity parsing error")
	}
}

func TestFormatReportIncludesRisksAndRecommendation(t *testing.T) {
	report := highSeverityReport()
	report.Recommendations = []domain.Recommendation{{ID: "REC-1", Title: "Build an emergency buffer"}}

	text := formatReport(report)
	if want := "u-1 2025-06 (gig_worker)"; !strings.Contains(text, want) {
		t.Fatalf("missing header %q in %q", want, text)
	}
	if !strings.Contains(text, "deficit [high]") {
		t.Fatalf("missing risk line in %q", text)
	}
	if !strings.Contains(text, "Build an emergency buffer") {
		t.Fatalf("missing recommendation in %q", text)
	}
}
