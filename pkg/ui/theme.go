package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep the
// terminal's own background instead of a down-converted approximation.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Theme bundles every color and pre-built style the views use. Styles are
// created once at startup instead of per-frame.
type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// UI elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor

	// Label palette, indexed by model.CategoryInfo.PaletteIndex. The last
	// entry is the unsure grey.
	Palette [5]lipgloss.AdaptiveColor
	Unsure  lipgloss.AdaptiveColor

	// Styles
	Base       lipgloss.Style
	Header     lipgloss.Style
	StageBadge lipgloss.Style
	Selected   lipgloss.Style
	MutedText  lipgloss.Style
	InfoText   lipgloss.Style
	ErrorText  lipgloss.Style
	StatusBar  lipgloss.Style
	Modal      lipgloss.Style
	KeyHint    lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#CC5500", Dark: "#FFB86C"},
		Muted:     lipgloss.AdaptiveColor{Light: "#999999", Dark: "#6272A4"},
		Error:     lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},

		Palette: [5]lipgloss.AdaptiveColor{
			{Light: "#007700", Dark: "#50FA7B"}, // green
			{Light: "#CC0000", Dark: "#FF5555"}, // red
			{Light: "#B8860B", Dark: "#F1FA8C"}, // yellow
			{Light: "#006080", Dark: "#8BE9FD"}, // cyan
			{Light: "#A03595", Dark: "#FF79C6"}, // pink
		},
		Unsure: lipgloss.AdaptiveColor{Light: "#888888", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle()
	t.Header = r.NewStyle().Bold(true).Foreground(t.Primary)
	t.StageBadge = r.NewStyle().Bold(true).Foreground(t.Highlight)
	t.Selected = r.NewStyle().Bold(true).Foreground(t.Highlight)
	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.InfoText = r.NewStyle().Foreground(t.Subtext)
	t.ErrorText = r.NewStyle().Foreground(t.Error)
	t.StatusBar = r.NewStyle().Foreground(t.Subtext)
	t.Modal = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(1, 2)
	t.KeyHint = r.NewStyle().Foreground(t.Secondary)

	return t
}

// CategoryColor returns the adaptive color for a category within a stage,
// falling back to the unsure grey for unknown or empty categories.
func (t Theme) CategoryColor(stage model.Stage, cat model.Category) lipgloss.AdaptiveColor {
	for _, info := range model.Categories(stage) {
		if info.Key == cat {
			return t.Palette[info.PaletteIndex%len(t.Palette)]
		}
	}
	return t.Unsure
}

// CategoryStyle returns a foreground style for a category within a stage.
func (t Theme) CategoryStyle(stage model.Stage, cat model.Category) lipgloss.Style {
	return t.Renderer.NewStyle().Foreground(t.CategoryColor(stage, cat))
}
