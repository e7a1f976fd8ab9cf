package tui

import (
	"fmt"
	"sort"
	"strings"

	"finmentor/internal/engine"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RuleBrowserModel is the Bubble Tea model for the rule registry screen.
// The registry is static, so this screen has no fetch commands.
type RuleBrowserModel struct {
	services     Services
	buckets      []string
	bucketIdx    int
	scrollOffset int
	width        int
	height       int
}

// NewRuleBrowserModel creates a new rule browser model.
func NewRuleBrowserModel(svc Services) RuleBrowserModel {
	m := RuleBrowserModel{services: svc}
	if svc.Rules != nil {
		m.buckets = append(m.buckets, "ALL")
		var names []string
		for name := range svc.Rules.Groups() {
			names = append(names, name)
		}
		sort.Strings(names)
		m.buckets = append(m.buckets, names...)
	}
	return m
}

// Init is a no-op; the registry is loaded at construction time.
func (m RuleBrowserModel) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages.
func (m RuleBrowserModel) Update(msg tea.Msg) (RuleBrowserModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.CycleBucket):
			if len(m.buckets) > 0 {
				m.bucketIdx = (m.bucketIdx + 1) % len(m.buckets)
				m.scrollOffset = 0
			}
			return m, nil

		case msg.String() == "j" || msg.String() == "down":
			if m.scrollOffset < len(m.visibleRules())-m.visibleRows() {
				m.scrollOffset++
			}
			return m, nil

		case msg.String() == "k" || msg.String() == "up":
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the rule browser.
func (m RuleBrowserModel) View() string {
	var sections []string

	sections = append(sections, HeaderStyle.Render("  Rule Registry"))
	sections = append(sections, "")

	if m.services.Rules == nil {
		sections = append(sections, SubtextStyle.Render("  Rule registry not available."))
		return strings.Join(sections, "\n")
	}

	sections = append(sections, m.renderBucketChips())
	sections = append(sections, SubtextStyle.Render(strings.Repeat("─", max(1, m.width-2))))

	rules := m.visibleRules()
	if len(rules) == 0 {
		sections = append(sections, SubtextStyle.Render("  No rules in this group"))
		return strings.Join(sections, "\n")
	}

	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("  %-22s %-22s %-4s %s", "ID", "Group", "Wt", "Name"),
	))

	maxVisible := m.visibleRows()
	end := m.scrollOffset + maxVisible
	if end > len(rules) {
		end = len(rules)
	}

	for i := m.scrollOffset; i < end; i++ {
		sections = append(sections, "  "+formatRule(rules[i]))
	}

	if len(rules) > maxVisible {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d-%d of %d (j/k to scroll)", m.scrollOffset+1, end, len(rules)),
		))
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [b] cycle group  [j/k] scroll"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *RuleBrowserModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// ActiveBucket returns the selected bucket name (for testing).
func (m RuleBrowserModel) ActiveBucket() string {
	if len(m.buckets) == 0 {
		return ""
	}
	return m.buckets[m.bucketIdx]
}

// RuleCount returns the number of rules in the active bucket (for testing).
func (m RuleBrowserModel) RuleCount() int { return len(m.visibleRules()) }

func (m RuleBrowserModel) visibleRules() []engine.RuleDefinition {
	if m.services.Rules == nil {
		return nil
	}
	if m.bucketIdx == 0 || len(m.buckets) == 0 {
		return m.services.Rules.Rules()
	}
	return m.services.Rules.RulesByBucket(m.buckets[m.bucketIdx])
}

func (m RuleBrowserModel) renderBucketChips() string {
	var parts []string
	parts = append(parts, SubtextStyle.Render("Group: "))
	for i, bucket := range m.buckets {
		display := strings.ToUpper(bucket)
		if len(display) > 12 {
			display = display[:12]
		}
		if i == m.bucketIdx {
			parts = append(parts, ActiveTabStyle.Render(display))
		} else {
			parts = append(parts, SubtextStyle.Render(display))
		}
		parts = append(parts, " ")
	}
	return "  " + lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func formatRule(r engine.RuleDefinition) string {
	name := r.Name
	if len(name) > 50 {
		name = name[:47] + "..."
	}
	state := ""
	if !r.Enabled {
		state = SubtextStyle.Render(" (disabled)")
	}
	return fmt.Sprintf("%-22s %-22s %-4.1f %s%s", r.ID, r.Bucket, r.Weight, name, state)
}

func (m RuleBrowserModel) visibleRows() int {
	available := m.height - 9
	if available < 5 {
		return 5
	}
	return available
}
