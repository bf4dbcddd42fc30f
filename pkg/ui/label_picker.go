package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// labelPicker is the modal for choosing a category from the active stage's
// vocabulary. Digits pick directly; arrows plus enter also work.
type labelPicker struct {
	stage  model.Stage
	items  []model.CategoryInfo
	cursor int
	theme  Theme
}

func newLabelPicker(stage model.Stage, theme Theme) labelPicker {
	return labelPicker{
		stage: stage,
		items: model.Categories(stage),
		theme: theme,
	}
}

// Handle processes a key press. done reports whether the picker is
// finished; cat is empty when the picker was dismissed without a choice.
func (p *labelPicker) Handle(msg tea.KeyMsg) (cat model.Category, done bool) {
	s := msg.String()
	switch s {
	case "esc", "q":
		return "", true
	case "enter":
		return p.items[p.cursor].Key, true
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
		return "", false
	case "down", "j":
		if p.cursor < len(p.items)-1 {
			p.cursor++
		}
		return "", false
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		idx := int(s[0] - '1')
		if idx < len(p.items) {
			return p.items[idx].Key, true
		}
	}
	return "", false
}

// View renders the picker modal.
func (p labelPicker) View() string {
	t := p.theme
	var sb strings.Builder
	sb.WriteString(t.Header.Render(fmt.Sprintf("Tag selection · %s stage", p.stage)))
	sb.WriteString("\n\n")
	for i, info := range p.items {
		marker := "  "
		if i == p.cursor {
			marker = t.Selected.Render("▸ ")
		}
		swatch := t.CategoryStyle(p.stage, info.Key).Render("■")
		sb.WriteString(fmt.Sprintf("%s%s %s %s\n",
			marker, t.KeyHint.Render(fmt.Sprintf("%d", i+1)), swatch, info.Display))
	}
	sb.WriteString("\n")
	sb.WriteString(t.MutedText.Render("enter/digit tag · esc cancel"))
	return t.Modal.Render(sb.String())
}
