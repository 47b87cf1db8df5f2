package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

// accentColor is used for the section titles, table borders and headers.
var accentColor = lipgloss.AdaptiveColor{Light: "#1F6FEB", Dark: "#58A6FF"}

// sectionTitle renders the title of a report section.
func sectionTitle(title string) string {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(accentColor).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(accentColor).
		MarginTop(1).
		Render(title)
}

// reportTable is a table of the bench report, where rows of failed runs are highlighted.
type reportTable struct {
	Table  *lgtable.Table
	failed map[int]bool
	count  int
}

// Row appends a row to the table.
func (t *reportTable) Row(failed bool, row ...string) {
	if failed {
		t.failed[t.count] = true
	}
	t.Table.Row(row...)
	t.count++
}

// newTable creates a report table with the given headers and column alignments. The last
// alignment is used for the remaining columns.
func newTable(headers []string, alignments ...lipgloss.Position) *reportTable {
	t := &reportTable{failed: make(map[int]bool)}
	cell := lipgloss.NewStyle().Padding(0, 1)
	header := cell.Bold(true).Foreground(accentColor)
	failedCell := cell.Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.AdaptiveColor{Light: "124", Dark: "88"})
	t.Table = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accentColor)).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cell
			switch {
			case row == lgtable.HeaderRow:
				s = header
			case t.failed[row]:
				s = failedCell
			case row%2 == 1:
				s = cell.Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})
			}
			if len(alignments) == 0 {
				return s
			}
			return s.Align(alignments[min(col, len(alignments)-1)])
		})
	return t
}
