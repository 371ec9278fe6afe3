package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// InteractiveTable renders a navigable table and returns the selected row
// index, or -1 when the user backs out without selecting.
func InteractiveTable(ctx context.Context, headers []string, rows [][]string, hint string) (int, error) {
	if err := RequireInteraction(hint); err != nil {
		return -1, fmt.Errorf("selection required: %w", err)
	}

	m := newTableModel(headers, rows)
	if err := runModel(ctx, m); err != nil {
		return -1, fmt.Errorf("interactive table: %w", err)
	}
	if !m.done {
		return -1, ErrInterrupted
	}
	return m.selected, nil
}

func newTableModel(headers []string, rows [][]string) *itableModel {
	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		w := len(h)
		for _, row := range rows {
			if i < len(row) {
				w = max(w, len(row[i]))
			}
		}
		columns[i] = table.Column{Title: h, Width: w + 2}
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows)+1, 12)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		Foreground(purple).
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(faint)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(purple).
		Bold(false)
	t.SetStyles(s)

	return &itableModel{table: t, selected: -1}
}

type itableModel struct {
	table    table.Model
	selected int
	done     bool
}

func (m *itableModel) Init() tea.Cmd {
	return nil
}

func (m *itableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "esc", "ctrl+c":
			m.selected = -1
			m.done = true
			return m, tea.Quit
		case "enter":
			m.selected = m.table.Cursor()
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *itableModel) View() string {
	if m.done {
		return ""
	}
	return m.table.View() + "\n" + MutedStyle.Render("↑/↓ navigate  enter pull  esc back") + "\n"
}
