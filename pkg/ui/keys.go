package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines every binding the TUI understands. Help text is rendered
// from these bindings so the footer and the help modal never drift apart.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	MapView     key.Binding
	CellsView   key.Binding
	HistoryView key.Binding
	CycleView   key.Binding

	Select    key.Binding
	Tag       key.Binding
	AutoTag   key.Binding
	Undo      key.Binding
	Redo      key.Binding
	NextStage key.Binding
	Threshold key.Binding
	Copy      key.Binding
	Save      key.Binding

	Help key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		MapView: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "map"),
		),
		CellsView: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cells"),
		),
		HistoryView: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "history"),
		),
		CycleView: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next view"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Tag: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "tag selection"),
		),
		AutoTag: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto-label"),
		),
		Undo: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "undo"),
		),
		Redo: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "redo"),
		),
		NextStage: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "next stage"),
		),
		Threshold: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "grid threshold"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy explanations"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save session"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
