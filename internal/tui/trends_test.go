package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestTrendsUpdateSummaries(t *testing.T) {
	m := NewTrendsModel(testServices(t))
	m.SetSize(120, 40)

	updated, _ := m.Update(trendsMsg(testSummaries()))
	if !updated.HasData() {
		t.Fatal("expected trend data after update")
	}
	if updated.CurrentUser() != "u-1" {
		t.Fatalf("expected first user u-1, got %s", updated.CurrentUser())
	}
}

func TestTrendsCycleUser(t *testing.T) {
	m := NewTrendsModel(testServices(t))
	m.SetSize(120, 40)
	m, _ = m.Update(trendsMsg(testSummaries()))

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}})
	if updated.CurrentUser() != "u-2" {
		t.Fatalf("expected u-2 after cycling, got %s", updated.CurrentUser())
	}

	// Cycling wraps back to the first user.
	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}})
	if updated.CurrentUser() != "u-1" {
		t.Fatalf("expected wrap to u-1, got %s", updated.CurrentUser())
	}
}

func TestTrendsUserRowsSortedByMonth(t *testing.T) {
	m := NewTrendsModel(testServices(t))
	m, _ = m.Update(trendsMsg(testSummaries()))

	rows := m.userRows("u-1")
	if len(rows) != 2 {
		t.Fatalf("expected 2 months for u-1, got %d", len(rows))
	}
	if rows[0].Month != "2025-05" || rows[1].Month != "2025-06" {
		t.Fatalf("rows not sorted by month: %+v", rows)
	}
}

func TestTrendsViewEmpty(t *testing.T) {
	m := NewTrendsModel(testServices(t))
	m.SetSize(120, 40)
	m.loading = false

	view := m.View()
	if view == "" {
		t.Fatal("expected non-empty view")
	}
}
