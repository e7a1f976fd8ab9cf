package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines key bindings used across the TUI.
type KeyMap struct {
	Tab      key.Binding
	ShiftTab key.Binding
	Quit     key.Binding
	Refresh  key.Binding

	// Report explorer filters
	FilterPersona  key.Binding
	FilterSeverity key.Binding
	OpenReport     key.Binding

	// Trends user cycling
	CycleUser key.Binding

	// Rule browser bucket cycling
	CycleBucket key.Binding
}

// DefaultKeyMap provides the default key bindings for the TUI.
var DefaultKeyMap = KeyMap{
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Refresh:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),

	FilterPersona:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "cycle persona")),
	FilterSeverity: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle severity")),
	OpenReport:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open report")),

	CycleUser: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "cycle user")),

	CycleBucket: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "cycle group")),
}
