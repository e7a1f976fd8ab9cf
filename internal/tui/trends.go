package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"finmentor/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Trends message types.
type trendsMsg []domain.EvaluationSummary
type trendsErrMsg struct{ err error }

// TrendsModel is the Bubble Tea model for the per-user score trends screen.
type TrendsModel struct {
	services  Services
	summaries []domain.EvaluationSummary
	users     []string
	userIdx   int
	loading   bool
	err       error
	width     int
	height    int
}

// NewTrendsModel creates a new trends model.
func NewTrendsModel(svc Services) TrendsModel {
	return TrendsModel{
		services: svc,
		loading:  true,
	}
}

// Init fires the initial data fetch command.
func (m TrendsModel) Init() tea.Cmd {
	return m.fetchTrendsCmd()
}

// Update handles incoming messages.
func (m TrendsModel) Update(msg tea.Msg) (TrendsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case trendsMsg:
		m.summaries = []domain.EvaluationSummary(msg)
		m.users = distinctUsers(m.summaries)
		if m.userIdx >= len(m.users) {
			m.userIdx = 0
		}
		m.loading = false
		m.err = nil
		return m, nil

	case trendsErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.CycleUser):
			if len(m.users) > 0 {
				m.userIdx = (m.userIdx + 1) % len(m.users)
			}
			return m, nil

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchTrendsCmd()
		}
	}

	return m, nil
}

// View renders the trends screen.
func (m TrendsModel) View() string {
	var sections []string

	sections = append(sections, HeaderStyle.Render("  Score Trends"))
	sections = append(sections, "")

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading trend data..."))
		return strings.Join(sections, "\n")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(sections, "\n")
	}

	if len(m.users) == 0 {
		sections = append(sections, SubtextStyle.Render("  No evaluations stored yet."))
		return strings.Join(sections, "\n")
	}

	user := m.users[m.userIdx]
	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("  User %s (%d of %d)", user, m.userIdx+1, len(m.users)),
	))
	sections = append(sections, "")

	rows := m.userRows(user)
	barWidth := m.width/3 - 5
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 30 {
		barWidth = 30
	}

	maxRows := m.height - 10
	if maxRows < 5 {
		maxRows = 5
	}
	count := len(rows)
	if count > maxRows {
		count = maxRows
	}

	for i := 0; i < count; i++ {
		row := rows[i]
		bar := RenderScoreBar(row.Month, row.Score, barWidth)
		sev := SeverityStyle(row.TopSeverity).Render(strings.ToUpper(string(row.TopSeverity)))
		sections = append(sections, fmt.Sprintf("  %s  %s", bar, sev))
	}

	if len(rows) > maxRows {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d of %d months", count, len(rows)),
		))
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [u] cycle user  [R] refresh"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *TrendsModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// CurrentUser returns the selected user id (for testing).
func (m TrendsModel) CurrentUser() string {
	if len(m.users) == 0 {
		return ""
	}
	return m.users[m.userIdx]
}

// HasData returns whether any trend data is loaded.
func (m TrendsModel) HasData() bool { return len(m.summaries) > 0 }

func (m TrendsModel) userRows(user string) []domain.EvaluationSummary {
	var rows []domain.EvaluationSummary
	for _, s := range m.summaries {
		if s.UserID == user {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows
}

func distinctUsers(summaries []domain.EvaluationSummary) []string {
	seen := map[string]struct{}{}
	var users []string
	for _, s := range summaries {
		if _, ok := seen[s.UserID]; ok {
			continue
		}
		seen[s.UserID] = struct{}{}
		users = append(users, s.UserID)
	}
	sort.Strings(users)
	return users
}

func (m TrendsModel) fetchTrendsCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Evaluations == nil {
			return trendsErrMsg{err: fmt.Errorf("evaluation service not available")}
		}
		summaries, err := m.services.Evaluations.ListEvaluations(context.Background(), domain.EvaluationFilter{Limit: 200})
		if err != nil {
			return trendsErrMsg{err: err}
		}
		return trendsMsg(summaries)
	}
}
