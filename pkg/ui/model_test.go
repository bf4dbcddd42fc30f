package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/store"
	"github.com/vanderheijden86/triagemap/pkg/testutil"
)

func newTestModel(t *testing.T, n int) *Model {
	t.Helper()
	st := store.New(testutil.Features(n))
	if _, err := st.Apply(store.SetPoints{Points: testutil.SpiralPoints(n)}); err != nil {
		t.Fatalf("SetPoints: %v", err)
	}
	margins := map[model.Stage][]model.Margin{
		model.StageSplit: testutil.Margins(n, model.StageSplit),
	}
	m := New(st, DefaultTheme(lipgloss.NewRenderer(nil)), Options{Margins: margins})
	t.Cleanup(m.Close)
	m.width = 100
	m.height = 40
	return m
}

func press(m *Model, keys ...string) {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "ctrl+s":
			msg = tea.KeyMsg{Type: tea.KeyCtrlS}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m.Update(msg)
	}
}

func TestViewShowsHeaderStageAndLegend(t *testing.T) {
	m := newTestModel(t, 40)
	view := m.View()

	testutil.AssertContains(t, view, "triagemap")
	testutil.AssertContains(t, view, "[split]")
	// Active stage carries a progress bar, all empty before any tagging.
	testutil.AssertContains(t, view, "░░░░░░░░")
	testutil.AssertContains(t, view, "Single behavior")
	testutil.AssertContains(t, view, "Mixed behavior")
	testutil.AssertContains(t, view, "Unsure")
}

func TestViewSwitching(t *testing.T) {
	m := newTestModel(t, 40)

	press(m, "c")
	if m.view != viewCells {
		t.Fatalf("view = %v after c, want cells", m.view)
	}
	testutil.AssertContains(t, m.View(), "KEY")

	press(m, "h")
	if m.view != viewHistory {
		t.Fatalf("view = %v after h, want history", m.view)
	}
	testutil.AssertContains(t, m.View(), "no commits yet")

	press(m, "m")
	if m.view != viewMap {
		t.Fatalf("view = %v after m, want map", m.view)
	}

	press(m, "tab")
	if m.view != viewCells {
		t.Fatalf("view = %v after tab, want cells", m.view)
	}
	press(m, "tab", "tab")
	if m.view != viewMap {
		t.Fatalf("tab did not wrap back to map, got %v", m.view)
	}
}

func TestSelectCellThenTag(t *testing.T) {
	m := newTestModel(t, 40)

	press(m, "c", "enter")
	if len(m.snap.Selection) == 0 {
		t.Fatal("enter on a cell selected nothing")
	}
	testutil.AssertSortedIDs(t, featureIDs(m.snap.Selection))

	press(m, "t")
	if m.focus != focusPicker {
		t.Fatalf("focus = %v after t, want picker", m.focus)
	}
	press(m, "1")
	if m.focus != focusMain {
		t.Fatalf("focus = %v after picking, want main", m.focus)
	}
	if len(m.snap.Labels) != len(m.snap.Selection) {
		t.Fatalf("labels = %d, want %d", len(m.snap.Labels), len(m.snap.Selection))
	}
	for id, rec := range m.snap.Labels {
		if rec.Category != model.SplitSingle {
			t.Errorf("feature %d: category %s, want %s", id, rec.Category, model.SplitSingle)
		}
		if rec.Provenance != model.ProvenanceManual {
			t.Errorf("feature %d: provenance %s, want manual", id, rec.Provenance)
		}
	}
	if len(m.snap.Commits) != 2 {
		t.Fatalf("commits = %d, want 2 (initial + tag)", len(m.snap.Commits))
	}
	testutil.AssertContains(t, m.View(), "█")
}

func TestPickerEscLeavesLabelsUntouched(t *testing.T) {
	m := newTestModel(t, 20)
	press(m, "c", "enter", "t", "esc")
	if m.focus != focusMain {
		t.Fatalf("focus = %v after esc, want main", m.focus)
	}
	if len(m.snap.Labels) != 0 {
		t.Fatalf("labels = %d after cancel, want 0", len(m.snap.Labels))
	}
}

func TestTagWithoutSelectionIsAnError(t *testing.T) {
	m := newTestModel(t, 20)
	press(m, "t")
	if m.focus == focusPicker {
		t.Fatal("picker opened with empty selection")
	}
	if !m.statusErr {
		t.Fatal("expected error status")
	}
}

func TestUndoRedoKeys(t *testing.T) {
	m := newTestModel(t, 40)
	press(m, "c", "enter", "t", "1")
	tagged := len(m.snap.Labels)
	if tagged == 0 {
		t.Fatal("setup: nothing tagged")
	}

	press(m, "u")
	if len(m.snap.Labels) != 0 {
		t.Fatalf("labels after undo = %d, want 0", len(m.snap.Labels))
	}
	press(m, "r")
	if len(m.snap.Labels) != tagged {
		t.Fatalf("labels after redo = %d, want %d", len(m.snap.Labels), tagged)
	}

	// Undo at the floor is a no-op, not an error.
	press(m, "u", "u", "u")
	if m.statusErr {
		t.Fatalf("undo at floor reported error: %s", m.status)
	}
}

func TestHistoryRestore(t *testing.T) {
	m := newTestModel(t, 40)
	press(m, "c", "enter", "t", "1")
	press(m, "h")
	if m.historyCursor != 0 {
		t.Fatalf("historyCursor = %d, want 0", m.historyCursor)
	}
	press(m, "enter")
	if m.snap.Cursor != 0 {
		t.Fatalf("ledger cursor = %d after restore, want 0", m.snap.Cursor)
	}
	if len(m.snap.Labels) != 0 {
		t.Fatalf("labels = %d at initial commit, want 0", len(m.snap.Labels))
	}
}

func TestThresholdPrompt(t *testing.T) {
	m := newTestModel(t, 40)
	press(m, "g")
	if m.focus != focusThreshold {
		t.Fatalf("focus = %v after g, want threshold", m.focus)
	}
	press(m, "9", "enter")
	if m.focus != focusMain {
		t.Fatalf("focus = %v after enter, want main", m.focus)
	}
	if m.snap.Grid.Threshold != 9 {
		t.Fatalf("threshold = %d, want 9", m.snap.Grid.Threshold)
	}
}

func TestThresholdPromptEscCancels(t *testing.T) {
	m := newTestModel(t, 40)
	before := m.snap.Grid.Threshold
	press(m, "g", "5", "esc")
	if m.snap.Grid.Threshold != before {
		t.Fatalf("threshold changed on esc: %d", m.snap.Grid.Threshold)
	}
}

func TestAutoLabelBeforeReadiness(t *testing.T) {
	m := newTestModel(t, 40)
	press(m, "a")
	if !m.statusErr {
		t.Fatal("expected readiness error")
	}
	testutil.AssertContains(t, m.status, "manual labels")
	if len(m.snap.Labels) != 0 {
		t.Fatalf("labels = %d, want 0", len(m.snap.Labels))
	}
}

func TestAutoLabelAfterReadiness(t *testing.T) {
	m := newTestModel(t, 40)

	// Three manual tags per split category.
	for id := 0; id < 6; id++ {
		cat := model.SplitSingle
		if id%2 == 1 {
			cat = model.SplitMixed
		}
		if _, err := m.store.Apply(store.TagOne{ID: id, Category: cat}); err != nil {
			t.Fatalf("TagOne(%d): %v", id, err)
		}
	}
	m.refresh()
	if !m.snap.Ready.Ready {
		t.Fatalf("not ready after seeding: %+v", m.snap.Ready)
	}

	press(m, "a")
	if m.statusErr {
		t.Fatalf("auto-label failed: %s", m.status)
	}
	if len(m.snap.Labels) != 40 {
		t.Fatalf("labels = %d after auto, want 40", len(m.snap.Labels))
	}
	for id := 0; id < 6; id++ {
		if m.snap.Labels[id].Provenance != model.ProvenanceManual {
			t.Errorf("feature %d lost manual provenance", id)
		}
	}
}

func TestNextStageKey(t *testing.T) {
	m := newTestModel(t, 20)
	press(m, "s")
	if m.snap.Stage != model.StageQuality {
		t.Fatalf("stage = %s after s, want quality", m.snap.Stage)
	}
	testutil.AssertContains(t, m.View(), "[quality]")
	testutil.AssertContains(t, m.View(), "Near miss")
}

func TestSaveKey(t *testing.T) {
	m := newTestModel(t, 20)
	press(m, "ctrl+s")
	if !m.statusErr {
		t.Fatal("expected error when persistence is unconfigured")
	}

	saved := false
	m.onSave = func() error { saved = true; return nil }
	press(m, "ctrl+s")
	if !saved {
		t.Fatal("onSave not called")
	}
	if m.statusErr {
		t.Fatalf("unexpected error status: %s", m.status)
	}
}

func TestChangeMsgRefreshesSnapshot(t *testing.T) {
	m := newTestModel(t, 20)
	if _, err := m.store.Apply(store.SetStage{Stage: model.StageCause}); err != nil {
		t.Fatalf("SetStage: %v", err)
	}
	// The subscription queued a notification; deliver it like the program
	// loop would.
	cs := <-m.changes
	m.Update(changeMsg(cs))
	if m.snap.Stage != model.StageCause {
		t.Fatalf("snapshot stage = %s, want cause", m.snap.Stage)
	}
}

func TestHelpModal(t *testing.T) {
	m := newTestModel(t, 20)
	press(m, "?")
	if m.focus != focusHelp {
		t.Fatalf("focus = %v after ?, want help", m.focus)
	}
	view := m.View()
	testutil.AssertContains(t, view, "triagemap")
	press(m, "esc")
	if m.focus != focusMain {
		t.Fatalf("focus = %v after esc, want main", m.focus)
	}
}

func TestMapViewRendersPoints(t *testing.T) {
	m := newTestModel(t, 40)
	view := m.View()
	if !strings.Contains(view, "•") && !strings.Contains(view, "◆") {
		t.Fatal("map raster has no point glyphs")
	}
	testutil.AssertContains(t, view, "cell t")
}

func TestCellsViewFollowsCursor(t *testing.T) {
	m := newTestModel(t, 40)
	press(m, "c")
	if len(m.snap.Cells) < 2 {
		t.Skip("fixture produced a single leaf")
	}
	press(m, "j")
	if m.cellCursor != 1 {
		t.Fatalf("cellCursor = %d after j, want 1", m.cellCursor)
	}
	press(m, "k", "k")
	if m.cellCursor != 0 {
		t.Fatalf("cellCursor = %d at top, want 0", m.cellCursor)
	}
}

func featureIDs(features []model.Feature) []int {
	ids := make([]int, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ID)
	}
	return ids
}
