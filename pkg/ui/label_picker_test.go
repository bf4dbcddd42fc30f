package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/testutil"
)

func pickerKey(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestLabelPickerDigitChoice(t *testing.T) {
	p := newLabelPicker(model.StageCause, DefaultTheme(lipgloss.NewRenderer(nil)))

	cat, done := p.Handle(pickerKey("3"))
	if !done || cat != model.CauseContext {
		t.Fatalf("digit 3 = (%s, %v), want (%s, true)", cat, done, model.CauseContext)
	}

	// Digit past the vocabulary does nothing.
	cat, done = p.Handle(pickerKey("9"))
	if done || cat != "" {
		t.Fatalf("digit 9 = (%s, %v), want no-op", cat, done)
	}
}

func TestLabelPickerArrowsAndEnter(t *testing.T) {
	p := newLabelPicker(model.StageQuality, DefaultTheme(lipgloss.NewRenderer(nil)))

	p.Handle(pickerKey("down"))
	p.Handle(pickerKey("down"))
	p.Handle(pickerKey("down")) // clamped at the last entry
	cat, done := p.Handle(pickerKey("enter"))
	if !done || cat != model.QualityBad {
		t.Fatalf("enter = (%s, %v), want (%s, true)", cat, done, model.QualityBad)
	}
}

func TestLabelPickerEsc(t *testing.T) {
	p := newLabelPicker(model.StageSplit, DefaultTheme(lipgloss.NewRenderer(nil)))
	cat, done := p.Handle(pickerKey("esc"))
	if !done || cat != "" {
		t.Fatalf("esc = (%s, %v), want dismissal", cat, done)
	}
}

func TestLabelPickerView(t *testing.T) {
	p := newLabelPicker(model.StageQuality, DefaultTheme(lipgloss.NewRenderer(nil)))
	view := p.View()
	testutil.AssertContains(t, view, "quality stage")
	testutil.AssertContains(t, view, "Good")
	testutil.AssertContains(t, view, "Near miss")
	testutil.AssertContains(t, view, "Bad")
}
