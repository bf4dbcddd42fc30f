package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/spatial"
)

// domainHeight is the y-extent of the projection domain.
var domainHeight = math.Sqrt(3) / 2

// renderMap draws the projected points as a character raster inside the
// triangular domain. Points are colored by their active-stage label; the
// cursor cell's points are drawn bold so cell selection has a visible
// target before enter is pressed.
func (m *Model) renderMap(width, height int) string {
	g := m.snap.Grid
	if g == nil || g.Empty() {
		return m.theme.MutedText.Render("no grid: load a projections file to populate the map")
	}

	caption := m.renderMapCaption()
	legend := m.renderLegend()
	rasterH := height - lipgloss.Height(caption) - lipgloss.Height(legend)
	if rasterH < 3 {
		rasterH = 3
	}
	// Terminal cells are roughly twice as tall as wide, so an equilateral
	// triangle needs about 2.3 columns per row.
	rasterW := clamp((rasterH*23)/10, 10, width)

	raster := m.rasterize(g, rasterW, rasterH)
	return lipgloss.JoinVertical(lipgloss.Left, caption, raster, legend)
}

func (m *Model) rasterize(g *spatial.Grid, w, h int) string {
	type glyph struct {
		ch    string
		style lipgloss.Style
		set   bool
	}
	cells := make([]glyph, w*h)

	project := func(v spatial.Vec) (int, int) {
		col := int(v.X * float64(w-1))
		row := int((1 - v.Y/domainHeight) * float64(h-1))
		return clamp(col, 0, w-1), clamp(row, 0, h-1)
	}

	// Domain boundary first so points overdraw it.
	edge := m.theme.MutedText
	for row := 0; row < h; row++ {
		f := 1 - float64(row)/float64(h-1) // height fraction, apex at row 0
		left := 0.5 * f
		right := 1 - 0.5*f
		lc := clamp(int(left*float64(w-1)), 0, w-1)
		rc := clamp(int(right*float64(w-1)), 0, w-1)
		cells[row*w+lc] = glyph{ch: "·", style: edge, set: true}
		cells[row*w+rc] = glyph{ch: "·", style: edge, set: true}
		if row == h-1 {
			for c := lc; c <= rc; c++ {
				cells[row*w+c] = glyph{ch: "·", style: edge, set: true}
			}
		}
	}

	cursorKey := ""
	if len(m.snap.Cells) > 0 {
		cursorKey = m.snap.Cells[m.cellCursor].Key
	}

	for _, key := range g.LeafKeys {
		cell := g.Leaf(key)
		if cell == nil {
			continue
		}
		inCursor := key == cursorKey
		for _, id := range cell.PointIDs {
			v, ok := g.Position(id)
			if !ok {
				continue
			}
			col, row := project(v)
			style := m.pointStyle(id)
			ch := "•"
			if inCursor {
				style = style.Bold(true)
				ch = "◆"
			}
			cells[row*w+col] = glyph{ch: ch, style: style, set: true}
		}
	}

	var sb strings.Builder
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			gl := cells[row*w+col]
			if !gl.set {
				sb.WriteString(" ")
				continue
			}
			sb.WriteString(gl.style.Render(gl.ch))
		}
		if row < h-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m *Model) pointStyle(id int) lipgloss.Style {
	rec, ok := m.snap.Labels[id]
	if !ok {
		return m.theme.Renderer.NewStyle().Foreground(m.theme.Unsure)
	}
	return m.theme.CategoryStyle(m.snap.Stage, rec.Category)
}

func (m *Model) renderMapCaption() string {
	t := m.theme
	if len(m.snap.Cells) == 0 {
		return t.MutedText.Render("no leaf cells")
	}
	c := m.snap.Cells[m.cellCursor]
	caption := fmt.Sprintf("cell %s · depth %d · %d point(s) · %d unsure", c.Key, c.Depth, c.Count, c.Unsure)
	if warn := len(m.snap.Grid.Warnings); warn > 0 {
		caption += t.ErrorText.Render(fmt.Sprintf(" · %d point(s) excluded", warn))
	}
	return t.InfoText.Render(caption)
}

// renderLegend shows one swatch per category of the active stage plus the
// unsure grey.
func (m *Model) renderLegend() string {
	t := m.theme
	var parts []string
	for _, info := range model.Categories(m.snap.Stage) {
		sw := t.CategoryStyle(m.snap.Stage, info.Key).Render("■")
		parts = append(parts, sw+" "+t.InfoText.Render(info.Display))
	}
	parts = append(parts, t.Renderer.NewStyle().Foreground(t.Unsure).Render("■")+" "+t.InfoText.Render("Unsure"))
	return strings.Join(parts, "  ")
}
