package tui

import (
	"context"
	"fmt"
	"strings"

	"finmentor/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Report explorer message types.
type filteredSummariesMsg []domain.EvaluationSummary
type filteredSummariesErrMsg struct{ err error }
type reportDetailMsg *domain.Report
type reportDetailErrMsg struct{ err error }

var (
	personaOptions  = []string{"ALL", "gig_worker", "salaried", "default"}
	severityOptions = []string{"ALL", "none", "low", "medium", "high"}
)

// ReportExplorerModel is the Bubble Tea model for the report explorer screen.
type ReportExplorerModel struct {
	services     Services
	summaries    []domain.EvaluationSummary
	detail       *domain.Report
	personaIdx   int
	severityIdx  int
	cursor       int
	scrollOffset int
	loading      bool
	err          error
	width        int
	height       int
}

// NewReportExplorerModel creates a new report explorer model.
func NewReportExplorerModel(svc Services) ReportExplorerModel {
	return ReportExplorerModel{
		services: svc,
		loading:  true,
	}
}

// Init fires the initial listing fetch.
func (m ReportExplorerModel) Init() tea.Cmd {
	return m.fetchSummariesCmd()
}

// Update handles incoming messages.
func (m ReportExplorerModel) Update(msg tea.Msg) (ReportExplorerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case filteredSummariesMsg:
		m.summaries = []domain.EvaluationSummary(msg)
		m.loading = false
		m.cursor = 0
		m.scrollOffset = 0
		m.err = nil
		return m, nil

	case filteredSummariesErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case reportDetailMsg:
		m.detail = (*domain.Report)(msg)
		m.loading = false
		m.err = nil
		return m, nil

	case reportDetailErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		// Detail view swallows everything except back/quit style keys.
		if m.detail != nil {
			switch msg.String() {
			case "esc", "backspace":
				m.detail = nil
			}
			return m, nil
		}

		switch {
		case key.Matches(msg, DefaultKeyMap.FilterPersona):
			m.personaIdx = (m.personaIdx + 1) % len(personaOptions)
			m.loading = true
			return m, m.fetchSummariesCmd()

		case key.Matches(msg, DefaultKeyMap.FilterSeverity):
			m.severityIdx = (m.severityIdx + 1) % len(severityOptions)
			m.loading = true
			return m, m.fetchSummariesCmd()

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchSummariesCmd()

		case key.Matches(msg, DefaultKeyMap.OpenReport):
			if m.cursor < len(m.summaries) {
				selected := m.summaries[m.cursor]
				m.loading = true
				return m, m.fetchDetailCmd(selected.UserID, selected.Month)
			}
			return m, nil

		case msg.String() == "j" || msg.String() == "down":
			if m.cursor < len(m.summaries)-1 {
				m.cursor++
			}
			if m.cursor >= m.scrollOffset+m.visibleRows() {
				m.scrollOffset++
			}
			return m, nil

		case msg.String() == "k" || msg.String() == "up":
			if m.cursor > 0 {
				m.cursor--
			}
			if m.cursor < m.scrollOffset {
				m.scrollOffset--
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the report explorer.
func (m ReportExplorerModel) View() string {
	if m.detail != nil {
		return m.renderDetail()
	}

	var sections []string

	sections = append(sections, HeaderStyle.Render("  Report Explorer"))
	sections = append(sections, "")
	sections = append(sections, m.renderFilters())
	sections = append(sections, SubtextStyle.Render(strings.Repeat("─", max(1, m.width-2))))

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading..."))
		return strings.Join(sections, "\n")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(sections, "\n")
	}

	if len(m.summaries) == 0 {
		sections = append(sections, SubtextStyle.Render("  No evaluations match the current filters"))
		return strings.Join(sections, "\n")
	}

	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("  %-5s %-12s %-8s %-11s %-6s %s",
			"ID", "User", "Month", "Persona", "Sev", "Score"),
	))

	maxVisible := m.visibleRows()
	end := m.scrollOffset + maxVisible
	if end > len(m.summaries) {
		end = len(m.summaries)
	}

	for i := m.scrollOffset; i < end; i++ {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		sections = append(sections, marker+FormatSummary(m.summaries[i]))
	}

	if len(m.summaries) > maxVisible {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d-%d of %d (j/k to scroll)", m.scrollOffset+1, end, len(m.summaries)),
		))
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [p] persona  [s] severity  [enter] open  [R] refresh  [j/k] move"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *ReportExplorerModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// FilterState returns current filter indices (for testing).
func (m ReportExplorerModel) FilterState() (personaIdx, severityIdx int) {
	return m.personaIdx, m.severityIdx
}

// SummaryCount returns the number of loaded rows (for testing).
func (m ReportExplorerModel) SummaryCount() int { return len(m.summaries) }

// Detail returns the open report, if any (for testing).
func (m ReportExplorerModel) Detail() *domain.Report { return m.detail }

func (m ReportExplorerModel) renderDetail() string {
	r := m.detail
	var sections []string

	sections = append(sections, HeaderStyle.Render(
		fmt.Sprintf("  Report: %s %s (%s)", r.Metadata.UserID, r.Metadata.Month, r.Metadata.Persona),
	))
	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("  Generated %s by engine %s, confidence %.2f",
			r.Metadata.GeneratedAt, r.Metadata.EngineVersion, r.Metadata.Confidence),
	))
	sections = append(sections, "")

	sections = append(sections, HeaderStyle.Render("  Risks"))
	for _, risk := range r.Risks {
		sections = append(sections, "  "+FormatRisk(risk))
	}
	if len(r.Risks) == 0 {
		sections = append(sections, SubtextStyle.Render("  No risks"))
	}
	sections = append(sections, "")

	sections = append(sections, HeaderStyle.Render("  Recommendations"))
	count := len(r.Recommendations)
	if count > 5 {
		count = 5
	}
	for i := 0; i < count; i++ {
		rec := r.Recommendations[i]
		sections = append(sections, fmt.Sprintf("  %d. %s", rec.Priority, rec.Title))
		sections = append(sections, SubtextStyle.Render("     "+rec.Body))
	}
	if len(r.Recommendations) == 0 {
		sections = append(sections, SubtextStyle.Render("  No recommendations"))
	}

	if len(r.ActionPlan.Next30Days) > 0 {
		sections = append(sections, "")
		sections = append(sections, HeaderStyle.Render("  Next 30 Days"))
		for _, item := range r.ActionPlan.Next30Days {
			sections = append(sections, fmt.Sprintf("  - %s (KPI: %s)", item.Title, item.KPI))
		}
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [esc] back to list"))

	return strings.Join(sections, "\n")
}

func (m ReportExplorerModel) renderFilters() string {
	personaChip := m.renderChip("Persona", personaOptions, m.personaIdx)
	severityChip := m.renderChip("Severity", severityOptions, m.severityIdx)
	return "  " + lipgloss.JoinHorizontal(lipgloss.Top, personaChip, "  ", severityChip)
}

func (m ReportExplorerModel) renderChip(label string, options []string, active int) string {
	var parts []string
	parts = append(parts, SubtextStyle.Render(label+": "))
	for i, opt := range options {
		display := strings.ToUpper(opt)
		if len(display) > 10 {
			display = display[:10]
		}
		if i == active {
			parts = append(parts, ActiveTabStyle.Render(display))
		} else {
			parts = append(parts, SubtextStyle.Render(display))
		}
		parts = append(parts, " ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m ReportExplorerModel) buildFilter() domain.EvaluationFilter {
	filter := domain.EvaluationFilter{Limit: 100}

	if m.personaIdx > 0 && m.personaIdx < len(personaOptions) {
		filter.Persona = personaOptions[m.personaIdx]
	}
	if m.severityIdx > 0 && m.severityIdx < len(severityOptions) {
		filter.Severity = domain.Severity(severityOptions[m.severityIdx])
	}

	return filter
}

func (m ReportExplorerModel) fetchSummariesCmd() tea.Cmd {
	filter := m.buildFilter()
	return func() tea.Msg {
		if m.services.Evaluations == nil {
			return filteredSummariesErrMsg{err: fmt.Errorf("evaluation service not available")}
		}
		summaries, err := m.services.Evaluations.ListEvaluations(context.Background(), filter)
		if err != nil {
			return filteredSummariesErrMsg{err: err}
		}
		return filteredSummariesMsg(summaries)
	}
}

func (m ReportExplorerModel) fetchDetailCmd(userID, month string) tea.Cmd {
	return func() tea.Msg {
		if m.services.Evaluations == nil {
			return reportDetailErrMsg{err: fmt.Errorf("evaluation service not available")}
		}
		report, err := m.services.Evaluations.ReportForMonth(context.Background(), userID, month)
		if err != nil {
			return reportDetailErrMsg{err: err}
		}
		if report == nil {
			return reportDetailErrMsg{err: fmt.Errorf("report not found for %s %s", userID, month)}
		}
		return reportDetailMsg(report)
	}
}

func (m ReportExplorerModel) visibleRows() int {
	// Account for header, filters, table header, help footer
	available := m.height - 10
	if available < 5 {
		return 5
	}
	return available
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
