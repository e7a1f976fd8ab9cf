package tui

import (
	"context"
	"testing"
	"time"

	"finmentor/internal/domain"
	"finmentor/internal/engine"

	tea "github.com/charmbracelet/bubbletea"
)

// --- stub services ---

type stubEvaluationQuerier struct {
	summaries []domain.EvaluationSummary
	reports   map[string]*domain.Report
	err       error
}

func (s *stubEvaluationQuerier) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.EvaluationSummary, error) {
	return s.summaries, s.err
}

func (s *stubEvaluationQuerier) LatestReport(ctx context.Context, userID string) (*domain.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	for key, report := range s.reports {
		if report.Metadata.UserID == userID {
			_ = key
			return report, nil
		}
	}
	return nil, nil
}

func (s *stubEvaluationQuerier) ReportForMonth(ctx context.Context, userID, month string) (*domain.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.reports[userID+":"+month], nil
}

type stubAdvisorQuerier struct {
	reply string
	err   error
}

func (s *stubAdvisorQuerier) Ask(ctx context.Context, chatID int64, message string) (string, error) {
	return s.reply, s.err
}

func testSummaries() []domain.EvaluationSummary {
	return []domain.EvaluationSummary{
		{ID: 1, UserID: "u-1", Month: "2025-05", Persona: "gig_worker", TopSeverity: domain.SeverityHigh, Score: 72, CreatedAt: time.Unix(0, 0).UTC()},
		{ID: 2, UserID: "u-1", Month: "2025-06", Persona: "gig_worker", TopSeverity: domain.SeverityMedium, Score: 41, CreatedAt: time.Unix(1, 0).UTC()},
		{ID: 3, UserID: "u-2", Month: "2025-06", Persona: "salaried", TopSeverity: domain.SeverityLow, Score: 12, CreatedAt: time.Unix(2, 0).UTC()},
	}
}

func testServices(t *testing.T) Services {
	t.Helper()

	registry, err := engine.DefaultRegistry()
	if err != nil {
		t.Fatalf("load default registry: %v", err)
	}

	return Services{
		Evaluations: &stubEvaluationQuerier{
			summaries: testSummaries(),
			reports: map[string]*domain.Report{
				"u-1:2025-06": {
					Metadata: domain.Metadata{UserID: "u-1", Month: "2025-06", Persona: "gig_worker"},
					Risks: []domain.RiskItem{
						{ID: "RISK-SAVINGS", Dimension: domain.DimensionSavings, Score: 41, Severity: domain.SeverityMedium, Summary: "Savings rate below target"},
					},
				},
			},
		},
		Advisor:  &stubAdvisorQuerier{reply: "test reply"},
		Rules:    registry,
		UserID:   1,
		Username: "testuser",
	}
}

func TestAppModelInitialTab(t *testing.T) {
	m := NewAppModel(testServices(t))
	if m.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard, got %d", m.ActiveTab())
	}
}

func TestAppModelTabSwitchByNumber(t *testing.T) {
	m := NewAppModel(testServices(t))
	m.SetSize(120, 40)

	cases := []struct {
		press string
		want  Tab
	}{
		{"2", TabReports},
		{"3", TabTrends},
		{"4", TabChat},
		{"5", TabRules},
		{"1", TabDashboard},
	}

	var model tea.Model = m
	for _, tc := range cases {
		model, _ = model.(AppModel).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tc.press)})
		if got := model.(AppModel).ActiveTab(); got != tc.want {
			t.Fatalf("expected tab %d after pressing %s, got %d", tc.want, tc.press, got)
		}
	}
}

func TestAppModelTabSwitchByTab(t *testing.T) {
	m := NewAppModel(testServices(t))
	m.SetSize(120, 40)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	app := updated.(AppModel)
	if app.ActiveTab() != TabReports {
		t.Fatalf("expected TabReports after Tab, got %d", app.ActiveTab())
	}

	updated, _ = app.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	app = updated.(AppModel)
	if app.ActiveTab() != TabDashboard {
		t.Fatalf("expected TabDashboard after Shift+Tab, got %d", app.ActiveTab())
	}
}

func TestAppModelWindowResize(t *testing.T) {
	m := NewAppModel(testServices(t))

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
	app := updated.(AppModel)
	if app.width != 100 || app.height != 50 {
		t.Fatalf("expected 100x50, got %dx%d", app.width, app.height)
	}
}

func TestAppModelViewRendersWithoutPanic(t *testing.T) {
	m := NewAppModel(testServices(t))
	m.SetSize(120, 40)

	for _, tab := range []Tab{TabDashboard, TabReports, TabTrends, TabChat, TabRules} {
		m.activeTab = tab
		view := m.View()
		if view == "" {
			t.Fatalf("expected non-empty view for tab %d", tab)
		}
	}
}

func TestServicesChatID(t *testing.T) {
	svc := Services{UserID: 42}
	expected := SSHChatIDOffset - 42
	if svc.ChatID() != expected {
		t.Fatalf("expected chat ID %d, got %d", expected, svc.ChatID())
	}
}
