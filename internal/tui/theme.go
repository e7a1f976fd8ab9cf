package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Tab bar styles
	TabStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle = TabStyle.Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))
	InactiveTabStyle = TabStyle.
				Foreground(lipgloss.Color("#888888"))

	// Severity colors
	SeverityNoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	SeverityLowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	SeverityMediumStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	SeverityHighStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)

	// General styles
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	SubtextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	BorderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	SpinnerColor = lipgloss.Color("#7D56F4")

	// Chat styles
	UserMsgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	AssistantMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))

	// Score bar colors
	ScoreGoodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	ScoreOkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	ScoreBadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)
