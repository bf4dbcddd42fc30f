package ui

import (
	"github.com/charmbracelet/glamour"
)

// helpMarkdown is the full help content, rendered through glamour so it
// picks up the terminal's light or dark style automatically.
const helpMarkdown = `# triagemap

Label feature explanations in three passes. Each stage has its own closed
vocabulary and its own undo ledger.

## Workflow

1. **split** · is the feature one behavior or several?
2. **quality** · how faithful is the explanation?
3. **cause** · for the weak ones, what went wrong?

## Views

| Key | View |
|-----|------|
| m | point map, colored by label |
| c | leaf cell table |
| h | commit timeline |
| tab | cycle views |

## Labeling

| Key | Action |
|-----|--------|
| enter | select the cursor cell (map/cells) or restore a commit (history) |
| t | tag the selection with a category |
| a | auto-label from margins (needs 3 manual tags per category) |
| u / r | undo / redo |
| y | copy selected explanations to the clipboard |

## Session

| Key | Action |
|-----|--------|
| s | advance to the next stage |
| g | set the grid split threshold |
| ctrl+s | save the session |
| q | quit |

Labels you set by hand are never overwritten by the auto-labeler.
`

const helpWrap = 72

// renderHelp returns the glamour-rendered help modal, cached per width.
func (m *Model) renderHelp() string {
	wrap := min(helpWrap, max(m.width-8, 20))
	if m.helpText != "" && m.helpWidth == wrap {
		return m.helpText
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		out = helpMarkdown
	}
	m.helpText = m.theme.Modal.Render(out)
	m.helpWidth = wrap
	return m.helpText
}
