package store

import (
	"fmt"
	"sort"

	"github.com/vanderheijden86/triagemap/pkg/labeling"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/spatial"
)

// SetStage switches the active labeling stage, entering it fresh (with an
// initial commit) if it has never been visited.
type SetStage struct {
	Stage model.Stage
}

func (c SetStage) Name() string { return "set-stage" }

func (c SetStage) apply(sess *Session) (ChangeSet, error) {
	if !c.Stage.Valid() {
		return ChangeSet{}, fmt.Errorf("unknown stage %q", c.Stage)
	}
	if sess.Stage == c.Stage {
		return ChangeSet{}, nil
	}
	sess.Stage = c.Stage
	sess.history() // enter fresh stages eagerly so cursor 0 exists
	sess.Selection = nil
	return ChangeSet{Stage: true, Selection: true, History: true}, nil
}

// SetPoints replaces the projection point set and rebuilds the grid with
// the auto-derived threshold. The previous grid is discarded, never
// patched.
type SetPoints struct {
	Points []model.Point
}

func (c SetPoints) Name() string { return "set-points" }

func (c SetPoints) apply(sess *Session) (ChangeSet, error) {
	sess.Points = make([]model.Point, len(c.Points))
	copy(sess.Points, c.Points)
	sess.Grid = spatial.BuildAuto(sess.Points)
	sess.Selection = nil
	return ChangeSet{Grid: true, Selection: true}, nil
}

// SetThreshold rebuilds the grid with an explicit merge threshold.
type SetThreshold struct {
	Threshold int
}

func (c SetThreshold) Name() string { return "set-threshold" }

func (c SetThreshold) apply(sess *Session) (ChangeSet, error) {
	if c.Threshold < 1 {
		return ChangeSet{}, fmt.Errorf("threshold must be >= 1, got %d", c.Threshold)
	}
	sess.Grid = spatial.Build(sess.Points, c.Threshold)
	sess.Selection = nil
	return ChangeSet{Grid: true, Selection: true}, nil
}

// SelectCell replaces the selection with the members of one leaf cell.
type SelectCell struct {
	Key string
}

func (c SelectCell) Name() string { return "select-cell" }

func (c SelectCell) apply(sess *Session) (ChangeSet, error) {
	leaf := sess.Grid.Leaf(c.Key)
	if leaf == nil {
		return ChangeSet{}, fmt.Errorf("no leaf cell %q", c.Key)
	}
	sess.Selection = make([]int, len(leaf.PointIDs))
	copy(sess.Selection, leaf.PointIDs)
	return ChangeSet{Selection: true}, nil
}

// SelectPoints replaces the selection with an explicit id set.
type SelectPoints struct {
	IDs []int
}

func (c SelectPoints) Name() string { return "select-points" }

func (c SelectPoints) apply(sess *Session) (ChangeSet, error) {
	ids := make([]int, 0, len(c.IDs))
	seen := make(map[int]bool, len(c.IDs))
	for _, id := range c.IDs {
		if _, ok := sess.Features[id]; !ok {
			return ChangeSet{}, fmt.Errorf("unknown feature %d", id)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	sess.Selection = ids
	return ChangeSet{Selection: true}, nil
}

// ClearSelection empties the selection.
type ClearSelection struct{}

func (ClearSelection) Name() string { return "clear-selection" }

func (ClearSelection) apply(sess *Session) (ChangeSet, error) {
	if len(sess.Selection) == 0 {
		return ChangeSet{}, nil
	}
	sess.Selection = nil
	return ChangeSet{Selection: true}, nil
}

// TagSelection applies one manual category to every selected feature as a
// single undoable action: the pre-bulk state is saved into the current
// commit slot, the labels are applied, and a new commit is recorded.
type TagSelection struct {
	Category model.Category
}

func (c TagSelection) Name() string { return "tag-selection" }

func (c TagSelection) apply(sess *Session) (ChangeSet, error) {
	if len(sess.Selection) == 0 {
		return ChangeSet{}, fmt.Errorf("nothing selected")
	}
	h := sess.history()
	if !model.ValidCategory(sess.Stage, c.Category) {
		return ChangeSet{}, fmt.Errorf("category %q not valid for stage %s", c.Category, sess.Stage)
	}
	h.SaveCurrentState()
	if err := h.State().SetBulk(sess.Selection, model.Manual(c.Category)); err != nil {
		return ChangeSet{}, err
	}
	h.CreateCommit(labeling.KindTag)
	return ChangeSet{Labels: true, History: true}, nil
}

// TagOne applies one manual label to a single feature and records a commit.
type TagOne struct {
	ID       int
	Category model.Category
}

func (c TagOne) Name() string { return "tag-one" }

func (c TagOne) apply(sess *Session) (ChangeSet, error) {
	h := sess.history()
	h.SaveCurrentState()
	if err := h.State().Set(c.ID, model.Manual(c.Category)); err != nil {
		return ChangeSet{}, err
	}
	h.CreateCommit(labeling.KindTag)
	return ChangeSet{Labels: true, History: true}, nil
}

// ApplyAutoLabels merges classifier-proposed labels into the active stage,
// without overwriting manual labels, and records one commit for the batch.
type ApplyAutoLabels struct {
	Labels map[int]model.LabelRecord
}

func (c ApplyAutoLabels) Name() string { return "apply-auto-labels" }

func (c ApplyAutoLabels) apply(sess *Session) (ChangeSet, error) {
	if len(c.Labels) == 0 {
		return ChangeSet{}, nil
	}
	h := sess.history()
	h.SaveCurrentState()
	state := h.State()

	// Deterministic application order.
	ids := make([]int, 0, len(c.Labels))
	for id := range c.Labels {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	applied := 0
	for _, id := range ids {
		if rec, ok := state.Get(id); ok && rec.Provenance == model.ProvenanceManual {
			continue // manual labels win over auto proposals
		}
		rec := c.Labels[id]
		rec.Provenance = model.ProvenanceAuto
		if err := state.Set(id, rec); err != nil {
			return ChangeSet{}, err
		}
		applied++
	}
	if applied == 0 {
		return ChangeSet{}, nil
	}
	h.CreateCommit(labeling.KindTag)
	return ChangeSet{Labels: true, History: true}, nil
}

// ClearOne returns a feature to the unsure state and records a commit.
type ClearOne struct {
	ID int
}

func (c ClearOne) Name() string { return "clear-one" }

func (c ClearOne) apply(sess *Session) (ChangeSet, error) {
	h := sess.history()
	if _, ok := h.State().Get(c.ID); !ok {
		return ChangeSet{}, nil
	}
	h.SaveCurrentState()
	h.State().Clear(c.ID)
	h.CreateCommit(labeling.KindTag)
	return ChangeSet{Labels: true, History: true}, nil
}

// Undo steps the active stage's ledger back one commit.
type Undo struct{}

func (Undo) Name() string { return "undo" }

func (Undo) apply(sess *Session) (ChangeSet, error) {
	h := sess.history()
	if !h.CanUndo() {
		return ChangeSet{}, nil
	}
	if err := h.Undo(); err != nil {
		return ChangeSet{}, err
	}
	return ChangeSet{Labels: true, History: true}, nil
}

// Redo steps the active stage's ledger forward one commit.
type Redo struct{}

func (Redo) Name() string { return "redo" }

func (Redo) apply(sess *Session) (ChangeSet, error) {
	h := sess.history()
	if !h.CanRedo() {
		return ChangeSet{}, nil
	}
	if err := h.Redo(); err != nil {
		return ChangeSet{}, err
	}
	return ChangeSet{Labels: true, History: true}, nil
}

// RestoreCommit jumps the active stage's ledger to an absolute history
// index. Out-of-range indices are rejected, not clamped.
type RestoreCommit struct {
	Index int
}

func (c RestoreCommit) Name() string { return "restore-commit" }

func (c RestoreCommit) apply(sess *Session) (ChangeSet, error) {
	h := sess.history()
	if c.Index < 0 || c.Index >= h.Len() {
		return ChangeSet{}, fmt.Errorf("commit index %d out of range [0,%d)", c.Index, h.Len())
	}
	if c.Index == h.Cursor() {
		return ChangeSet{}, nil
	}
	if err := h.RestoreCommit(c.Index); err != nil {
		return ChangeSet{}, err
	}
	return ChangeSet{Labels: true, History: true}, nil
}
