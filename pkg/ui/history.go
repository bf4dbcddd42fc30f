package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/vanderheijden86/triagemap/pkg/labeling"
)

// renderHistory draws the commit timeline of the active stage's ledger,
// newest last. The ledger cursor is marked with a filled dot; commits ahead
// of the cursor are the redoable future.
func (m *Model) renderHistory(width, height int) string {
	t := m.theme
	commits := m.snap.Commits
	if !m.snap.Entered || len(commits) == 0 {
		return t.MutedText.Render("no commits yet: tag something to start the ledger")
	}

	header := t.MutedText.Render(fmt.Sprintf("  %3s %-8s %-28s %s", "SEQ", "KIND", "COUNTS", "WHEN"))
	rows := height - 1
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.historyCursor >= rows {
		start = m.historyCursor - rows + 1
	}
	end := min(start+rows, len(commits))
	now := time.Now()

	var lines []string
	lines = append(lines, header)
	for i := start; i < end; i++ {
		c := commits[i]
		marker := "○"
		if i == m.snap.Cursor {
			marker = "●"
		}
		// The middle dot is multibyte, so the WHEN column is padded by
		// display width rather than %-28s.
		counts := padRight(fmt.Sprintf("%d tagged · %d unsure", c.Counts.Manual+c.Counts.Auto, c.Counts.Unsure), 28)
		row := fmt.Sprintf("%s %3d %-8s %s %s",
			marker, c.Seq, commitKindLabel(c.Kind), counts, relativeTime(c.CreatedAt, now))
		switch {
		case i == m.historyCursor:
			row = t.Selected.Render("▸ " + row)
		case i > m.snap.Cursor:
			// Redoable future, shown dim until redone or discarded.
			row = t.MutedText.Render("  " + row)
		default:
			row = "  " + row
		}
		lines = append(lines, truncate(row, width, "…"))
	}
	return strings.Join(lines, "\n")
}

func commitKindLabel(k labeling.CommitKind) string {
	switch k {
	case labeling.KindInitial:
		return "initial"
	case labeling.KindTag:
		return "tag"
	default:
		return string(k)
	}
}
