// Package ui is the terminal front end for triage sessions. It is a thin
// view over a store.Store: every mutation goes through a store command, and
// the model re-snapshots derived data whenever the store reports a change.
package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/triagemap/pkg/classify"
	"github.com/vanderheijden86/triagemap/pkg/debug"
	"github.com/vanderheijden86/triagemap/pkg/labeling"
	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/spatial"
	"github.com/vanderheijden86/triagemap/pkg/store"
)

// viewMode selects which main pane is visible.
type viewMode int

const (
	viewMap viewMode = iota
	viewCells
	viewHistory
	numViews // keep last, used for cycling
)

func (v viewMode) String() string {
	switch v {
	case viewMap:
		return "map"
	case viewCells:
		return "cells"
	case viewHistory:
		return "history"
	default:
		return "unknown"
	}
}

// focus represents which UI element has keyboard focus.
type focus int

const (
	focusMain focus = iota
	focusPicker
	focusHelp
	focusThreshold
)

// changeMsg carries a store notification into the update loop.
type changeMsg store.ChangeSet

// snapshot is the read-only derived data the views render from. It is
// rebuilt under store.View so it is always internally consistent.
type snapshot struct {
	Stage        model.Stage
	FeatureCount int
	Grid         *spatial.Grid
	Cells        []store.CellSummary
	Progress     []store.StageProgress
	Commits      []labeling.Commit
	Cursor       int
	Entered      bool
	Selection    []model.Feature
	Labels       map[int]model.LabelRecord
	Ready        classify.Readiness
}

// Options configures a Model beyond its store.
type Options struct {
	// Margins feeds the auto-labeler, keyed by stage. May be nil.
	Margins map[model.Stage][]model.Margin
	// OnSave persists the session when the user hits the save key. Nil
	// disables the binding.
	OnSave func() error
}

// Model is the bubbletea model for a triage session.
type Model struct {
	store   *store.Store
	margins map[model.Stage][]model.Margin
	onSave  func() error

	theme Theme
	keys  keyMap

	width  int
	height int

	view          viewMode
	focus         focus
	cellCursor    int
	historyCursor int

	thresholdInput textinput.Model
	picker         labelPicker

	helpText  string
	helpWidth int

	status    string
	statusErr bool

	changes     chan store.ChangeSet
	unsubscribe func()

	snap snapshot
}

// New builds a Model over the given store. The model subscribes to the
// store; Close must be called when the program exits.
func New(st *store.Store, theme Theme, opts Options) *Model {
	ti := textinput.New()
	ti.Prompt = "threshold: "
	ti.CharLimit = 6
	ti.Validate = func(s string) error {
		for _, r := range s {
			if r < '0' || r > '9' {
				return fmt.Errorf("digits only")
			}
		}
		return nil
	}

	m := &Model{
		store:          st,
		margins:        opts.Margins,
		onSave:         opts.OnSave,
		theme:          theme,
		keys:           defaultKeyMap(),
		view:           viewMap,
		thresholdInput: ti,
		changes:        make(chan store.ChangeSet, 16),
	}
	m.unsubscribe = st.Subscribe(func(cs store.ChangeSet) {
		select {
		case m.changes <- cs:
		default:
			// The update loop re-snapshots on every change message, so a
			// dropped notification is covered by the one already queued.
		}
	})
	m.refresh()
	return m
}

// Close detaches the model from its store.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// refresh rebuilds the derived snapshot from the store.
func (m *Model) refresh() {
	var snap snapshot
	m.store.View(func(sess *store.Session) {
		snap.Stage = sess.Stage
		snap.FeatureCount = len(sess.Features)
		snap.Grid = sess.Grid
		snap.Cells = store.CellSummaries(sess)
		snap.Progress = store.Progress(sess)
		snap.Selection = store.SelectedFeatures(sess)
		snap.Labels = store.ActiveLabels(sess)
		if h, ok := sess.Histories[sess.Stage]; ok {
			snap.Entered = true
			snap.Commits = h.Commits()
			snap.Cursor = h.Cursor()
			snap.Ready = classify.CheckReadiness(h.State())
		} else {
			missing := make(map[model.Category]int)
			for _, c := range model.CategoryKeys(sess.Stage) {
				missing[c] = classify.MinManualPerCategory
			}
			snap.Ready = classify.Readiness{Missing: missing}
		}
	})
	m.snap = snap
	m.cellCursor = clamp(m.cellCursor, 0, max(len(snap.Cells)-1, 0))
	m.historyCursor = clamp(m.historyCursor, 0, max(len(snap.Commits)-1, 0))
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		cs, ok := <-m.changes
		if !ok {
			return nil
		}
		return changeMsg(cs)
	}
}

// apply runs a store command and reports the outcome in the status line.
func (m *Model) apply(cmd store.Command) {
	cs, err := m.store.Apply(cmd)
	if err != nil {
		m.setError(err.Error())
		return
	}
	m.refresh()
	if cs.Any() {
		m.setStatus(fmt.Sprintf("applied %s", cmd.Name()))
	} else {
		m.setStatus(fmt.Sprintf("%s: nothing to do", cmd.Name()))
	}
	debug.Log("ui: %s changed=%+v", cmd.Name(), cs)
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case changeMsg:
		m.refresh()
		return m, m.waitForChange()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.focus {
	case focusPicker:
		return m.handlePickerKey(msg)
	case focusHelp:
		return m.handleHelpKey(msg)
	case focusThreshold:
		return m.handleThresholdKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.focus = focusHelp
		return m, nil

	case key.Matches(msg, m.keys.MapView):
		m.view = viewMap
	case key.Matches(msg, m.keys.CellsView):
		m.view = viewCells
	case key.Matches(msg, m.keys.HistoryView):
		m.view = viewHistory
	case key.Matches(msg, m.keys.CycleView):
		m.view = (m.view + 1) % numViews

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-10)
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(10)

	case key.Matches(msg, m.keys.Select):
		m.activateCursor()

	case key.Matches(msg, m.keys.Tag):
		if len(m.snap.Selection) == 0 {
			m.setError("nothing selected; pick a cell first")
			return m, nil
		}
		m.picker = newLabelPicker(m.snap.Stage, m.theme)
		m.focus = focusPicker

	case key.Matches(msg, m.keys.AutoTag):
		m.autoLabel()

	case key.Matches(msg, m.keys.Undo):
		m.apply(store.Undo{})
	case key.Matches(msg, m.keys.Redo):
		m.apply(store.Redo{})

	case key.Matches(msg, m.keys.NextStage):
		m.apply(store.SetStage{Stage: m.snap.Stage.Next()})

	case key.Matches(msg, m.keys.Threshold):
		m.thresholdInput.SetValue("")
		m.thresholdInput.Focus()
		m.focus = focusThreshold
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Copy):
		m.copySelection()

	case key.Matches(msg, m.keys.Save):
		if m.onSave == nil {
			m.setError("session persistence not configured")
			return m, nil
		}
		if err := m.onSave(); err != nil {
			m.setError(fmt.Sprintf("save failed: %v", err))
		} else {
			m.setStatus("session saved")
		}
	}
	return m, nil
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cat, done := m.picker.Handle(msg)
	if !done {
		return m, nil
	}
	m.focus = focusMain
	if cat != "" {
		m.apply(store.TagSelection{Category: cat})
	}
	return m, nil
}

func (m *Model) handleHelpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "?", "enter":
		m.focus = focusMain
	}
	return m, nil
}

func (m *Model) handleThresholdKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.thresholdInput.Blur()
		m.focus = focusMain
		return m, nil
	case "enter":
		raw := strings.TrimSpace(m.thresholdInput.Value())
		m.thresholdInput.Blur()
		m.focus = focusMain
		if raw == "" {
			return m, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			m.setError(fmt.Sprintf("bad threshold %q", raw))
			return m, nil
		}
		m.apply(store.SetThreshold{Threshold: n})
		return m, nil
	}
	var cmd tea.Cmd
	m.thresholdInput, cmd = m.thresholdInput.Update(msg)
	return m, cmd
}

// moveCursor moves the active view's cursor by delta rows.
func (m *Model) moveCursor(delta int) {
	switch m.view {
	case viewHistory:
		m.historyCursor = clamp(m.historyCursor+delta, 0, max(len(m.snap.Commits)-1, 0))
	default:
		m.cellCursor = clamp(m.cellCursor+delta, 0, max(len(m.snap.Cells)-1, 0))
	}
}

// activateCursor applies the enter action for the active view: cell
// selection on the map and cells views, commit restore on the history view.
func (m *Model) activateCursor() {
	switch m.view {
	case viewHistory:
		if len(m.snap.Commits) == 0 {
			m.setError("no commits yet")
			return
		}
		m.apply(store.RestoreCommit{Index: m.historyCursor})
	default:
		if len(m.snap.Cells) == 0 {
			m.setError("grid is empty; load projections first")
			return
		}
		m.apply(store.SelectCell{Key: m.snap.Cells[m.cellCursor].Key})
	}
}

// autoLabel runs the margin classifier over the active stage when enough
// manual examples exist.
func (m *Model) autoLabel() {
	if !m.snap.Ready.Ready {
		missing := make([]string, 0, len(m.snap.Ready.Missing))
		for cat, n := range m.snap.Ready.Missing {
			missing = append(missing, fmt.Sprintf("%s (+%d)", cat, n))
		}
		sort.Strings(missing)
		m.setError(fmt.Sprintf("need %d manual labels per category; missing: %s",
			classify.MinManualPerCategory, strings.Join(missing, ", ")))
		return
	}
	margins := m.margins[m.snap.Stage]
	if len(margins) == 0 {
		m.setError("no margins loaded for this stage")
		return
	}
	labels := classify.AutoLabel(margins, m.snap.Stage)
	m.apply(store.ApplyAutoLabels{Labels: labels})
}

// copySelection puts the selected features' explanations on the clipboard.
func (m *Model) copySelection() {
	if len(m.snap.Selection) == 0 {
		m.setError("nothing selected")
		return
	}
	var sb strings.Builder
	for _, f := range m.snap.Selection {
		fmt.Fprintf(&sb, "#%d %s\n%s\n\n", f.ID, f.Name, f.Explanation)
	}
	if err := clipboard.WriteAll(sb.String()); err != nil {
		m.setError(fmt.Sprintf("clipboard: %v", err))
		return
	}
	m.setStatus(fmt.Sprintf("copied %d explanation(s)", len(m.snap.Selection)))
}

// View implements tea.Model.
func (m *Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	if m.width == 0 {
		return "loading..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var body string
	switch m.view {
	case viewCells:
		body = m.renderCells(m.width, bodyHeight)
	case viewHistory:
		body = m.renderHistory(m.width, bodyHeight)
	default:
		body = m.renderMap(m.width, bodyHeight)
	}
	body = m.theme.Base.Height(bodyHeight).MaxHeight(bodyHeight).Render(body)

	screen := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)

	switch m.focus {
	case focusPicker:
		return m.overlay(screen, m.picker.View())
	case focusHelp:
		return m.overlay(screen, m.renderHelp())
	case focusThreshold:
		prompt := m.theme.Modal.Render(m.thresholdInput.View())
		return m.overlay(screen, prompt)
	}
	return screen
}

// overlay centers a modal over the screen.
func (m *Model) overlay(_, modal string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func (m *Model) renderHeader() string {
	t := m.theme
	title := t.Header.Render("triagemap")
	stage := t.StageBadge.Render(fmt.Sprintf("[%s]", m.snap.Stage))

	var prog []string
	for _, p := range m.snap.Progress {
		done := p.Counts.Total - p.Counts.Unsure
		s := fmt.Sprintf("%s %d/%d", p.Stage, done, p.Counts.Total)
		if p.Stage == m.snap.Stage {
			s += " " + countBar(done, p.Counts.Total, 8)
			prog = append(prog, t.Selected.Render(s))
		} else {
			prog = append(prog, t.MutedText.Render(s))
		}
	}

	line := strings.Join([]string{title, stage, strings.Join(prog, t.MutedText.Render(" › "))}, "  ")
	tabs := m.renderTabs()
	return lipgloss.JoinVertical(lipgloss.Left, truncate(line, m.width, "…"), tabs)
}

func (m *Model) renderTabs() string {
	t := m.theme
	var parts []string
	for v := viewMap; v < numViews; v++ {
		label := v.String()
		if v == m.view {
			parts = append(parts, t.Selected.Render(" "+label+" "))
		} else {
			parts = append(parts, t.MutedText.Render(" "+label+" "))
		}
	}
	return strings.Join(parts, t.MutedText.Render("│"))
}

func (m *Model) renderFooter() string {
	t := m.theme
	hints := []key.Binding{
		m.keys.Select, m.keys.Tag, m.keys.AutoTag, m.keys.Undo, m.keys.Redo,
		m.keys.NextStage, m.keys.Threshold, m.keys.Help, m.keys.Quit,
	}
	var parts []string
	for _, b := range hints {
		h := b.Help()
		parts = append(parts, t.KeyHint.Render(h.Key)+" "+t.MutedText.Render(h.Desc))
	}
	bar := truncate(strings.Join(parts, "  "), m.width, "…")

	status := m.status
	if status == "" {
		status = fmt.Sprintf("%d features · %d selected", m.snap.FeatureCount, len(m.snap.Selection))
	}
	style := t.StatusBar
	if m.statusErr {
		style = t.ErrorText
	}
	return lipgloss.JoinVertical(lipgloss.Left, style.Render(truncate(status, m.width, "…")), bar)
}
