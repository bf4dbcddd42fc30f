package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// cellBarWidth is the width of the per-cell label distribution bar.
const cellBarWidth = 20

// renderCells draws the leaf cell table: one row per leaf, shallow cells
// first, with a colored distribution bar of the cell's active-stage labels.
func (m *Model) renderCells(width, height int) string {
	t := m.theme
	cells := m.snap.Cells
	if len(cells) == 0 {
		return t.MutedText.Render("no leaf cells: load a projections file first")
	}

	header := t.MutedText.Render(fmt.Sprintf("  %-10s %5s %5s %6s  %s",
		"KEY", "DEPTH", "PTS", "UNSURE", "LABELS"))

	rows := height - 2 // header + legend
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.cellCursor >= rows {
		start = m.cellCursor - rows + 1
	}
	end := min(start+rows, len(cells))

	var lines []string
	lines = append(lines, header)
	for i := start; i < end; i++ {
		c := cells[i]
		marker := "  "
		// %-10s counts bytes, so a truncated key with its ellipsis would
		// push the columns out of line.
		row := fmt.Sprintf("%s %5d %5d %6d  ", padRight(truncate(c.Key, 10, "…"), 10), c.Depth, c.Count, c.Unsure)
		bar := m.cellBar(c.PerCategory, c.Unsure, c.Count)
		if i == m.cellCursor {
			marker = t.Selected.Render("▸ ")
			row = t.Selected.Render(row)
		}
		lines = append(lines, truncate(marker+row, width-cellBarWidth, "…")+bar)
	}
	lines = append(lines, m.renderLegend())
	return strings.Join(lines, "\n")
}

// cellBar renders a fixed-width bar whose colored runs are proportional to
// the cell's per-category counts, unsure last in grey.
func (m *Model) cellBar(perCategory map[model.Category]int, unsure, total int) string {
	if total <= 0 {
		return ""
	}
	type run struct {
		n     int
		style lipgloss.Style
	}
	var runs []run
	for _, info := range model.Categories(m.snap.Stage) {
		if n := perCategory[info.Key]; n > 0 {
			runs = append(runs, run{n, m.theme.CategoryStyle(m.snap.Stage, info.Key)})
		}
	}
	if unsure > 0 {
		runs = append(runs, run{unsure, m.theme.Renderer.NewStyle().Foreground(m.theme.Unsure)})
	}

	var sb strings.Builder
	used := 0
	for i, r := range runs {
		w := r.n * cellBarWidth / total
		if w == 0 {
			w = 1
		}
		if i == len(runs)-1 {
			w = cellBarWidth - used
		}
		if w <= 0 {
			continue
		}
		sb.WriteString(r.style.Render(strings.Repeat("█", w)))
		used += w
	}
	return sb.String()
}
