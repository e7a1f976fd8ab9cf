package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finmentor/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dashboard message types.
type summariesMsg []domain.EvaluationSummary
type summariesErrMsg struct{ err error }
type dashTickMsg time.Time

// DashboardModel is the Bubble Tea model for the overview screen.
type DashboardModel struct {
	services  Services
	summaries []domain.EvaluationSummary
	loading   bool
	err       error
	width     int
	height    int
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(svc Services) DashboardModel {
	return DashboardModel{
		services: svc,
		loading:  true,
	}
}

// Init fires the initial data fetch command.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchSummariesCmd(),
		m.tickCmd(),
	)
}

// Update handles incoming messages.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case summariesMsg:
		m.summaries = []domain.EvaluationSummary(msg)
		m.loading = false
		m.err = nil
		return m, nil

	case summariesErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case dashTickMsg:
		return m, tea.Batch(
			m.fetchSummariesCmd(),
			m.tickCmd(),
		)
	}

	return m, nil
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	if m.loading && len(m.summaries) == 0 {
		return SubtextStyle.Render("Loading evaluations...")
	}
	if m.err != nil && len(m.summaries) == 0 {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	var sections []string

	// Recent evaluations + severity breakdown side by side
	listSection := m.renderRecentEvaluations()
	breakdown := m.renderSeverityBreakdown()

	listWidth := m.width*2/3 - 2
	if listWidth < 40 {
		listWidth = 40
	}
	breakdownWidth := m.width - listWidth - 4
	if breakdownWidth < 20 {
		breakdownWidth = 20
	}

	listBox := BorderStyle.Width(listWidth).Render(listSection)
	breakdownBox := BorderStyle.Width(breakdownWidth).Render(breakdown)

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, listBox, breakdownBox)
	sections = append(sections, topRow)

	highSection := m.renderHighSeverity()
	highBox := BorderStyle.Width(m.width - 2).Render(highSection)
	sections = append(sections, highBox)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the model dimensions.
func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Summaries returns the loaded evaluations (for testing).
func (m DashboardModel) Summaries() []domain.EvaluationSummary { return m.summaries }

func (m DashboardModel) renderRecentEvaluations() string {
	header := HeaderStyle.Render("  Recent Evaluations")
	var lines []string
	lines = append(lines, header)
	lines = append(lines, SubtextStyle.Render("  ID    User         Month    Persona     Sev    Score"))
	lines = append(lines, SubtextStyle.Render(strings.Repeat("─", 60)))

	count := len(m.summaries)
	if count > 10 {
		count = 10
	}
	for i := 0; i < count; i++ {
		lines = append(lines, "  "+FormatSummary(m.summaries[i]))
	}

	if len(m.summaries) == 0 {
		lines = append(lines, SubtextStyle.Render("  No evaluations stored yet"))
	}

	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderSeverityBreakdown() string {
	header := HeaderStyle.Render("  Severity Breakdown")

	counts := map[domain.Severity]int{}
	for _, s := range m.summaries {
		counts[s.TopSeverity]++
	}
	total := len(m.summaries)

	barWidth := m.width/3 - 18
	if barWidth < 8 {
		barWidth = 8
	}

	var lines []string
	lines = append(lines, header)
	for _, sev := range []domain.Severity{domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow, domain.SeverityNone} {
		share := 0.0
		if total > 0 {
			share = float64(counts[sev]) / float64(total) * 100
		}
		bar := RenderScoreBar(strings.ToUpper(string(sev)), share, barWidth)
		lines = append(lines, fmt.Sprintf("  %s  (%d)", bar, counts[sev]))
	}

	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderHighSeverity() string {
	header := HeaderStyle.Render("  High-Severity Reports")
	var lines []string
	lines = append(lines, header)

	shown := 0
	for _, s := range m.summaries {
		if s.TopSeverity != domain.SeverityHigh {
			continue
		}
		lines = append(lines, "  "+FormatSummary(s))
		shown++
		if shown >= 5 {
			break
		}
	}

	if shown == 0 {
		lines = append(lines, SubtextStyle.Render("  No high-severity reports right now"))
	}

	return strings.Join(lines, "\n")
}

func (m DashboardModel) fetchSummariesCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Evaluations == nil {
			return summariesErrMsg{err: fmt.Errorf("evaluation service not available")}
		}
		summaries, err := m.services.Evaluations.ListEvaluations(context.Background(), domain.EvaluationFilter{Limit: 50})
		if err != nil {
			return summariesErrMsg{err: err}
		}
		return summariesMsg(summaries)
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(15*time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
