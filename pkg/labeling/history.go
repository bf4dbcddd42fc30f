package labeling

import (
	"errors"
	"fmt"
	"time"

	"github.com/vanderheijden86/triagemap/pkg/debug"
	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

// ErrIndexOutOfRange is returned by RestoreCommit for an invalid history
// position. It signals a caller bug; UI callers should clamp before calling.
var ErrIndexOutOfRange = errors.New("history index out of range")

// CommitKind describes what produced a commit.
type CommitKind string

const (
	// KindInitial is the implicit commit created when a stage is entered
	// fresh, capturing the auto-computed starting labels.
	KindInitial CommitKind = "tag-all"
	// KindTag is a bulk or individual tagging action.
	KindTag CommitKind = "tag"
)

// Commit is an immutable snapshot of the label state. Its maps are deep
// copies at capture time and must never be mutated afterwards; the
// round-trip guarantee of the ledger depends on it.
type Commit struct {
	Seq       int                       `json:"seq"`
	Kind      CommitKind                `json:"kind"`
	Records   map[int]model.LabelRecord `json:"records"`
	ItemIDs   []int                     `json:"item_ids"`
	Counts    Counts                    `json:"counts"`
	CreatedAt time.Time                 `json:"created_at"`
}

// clone deep-copies a commit's mutable parts.
func (c Commit) clone() Commit {
	records := make(map[int]model.LabelRecord, len(c.Records))
	for id, rec := range c.Records {
		records[id] = rec
	}
	ids := make([]int, len(c.ItemIDs))
	copy(ids, c.ItemIDs)
	out := c
	out.Records = records
	out.ItemIDs = ids
	return out
}

// History is a linear undo/redo ledger over one stage's label state.
// Creating a commit while the cursor is behind the tail discards the
// discarded future (standard undo-branch-discard semantics).
type History struct {
	state   *State
	commits []Commit
	cursor  int
	nextSeq int
	clock   func() time.Time
}

func defaultClock() time.Time {
	return time.Now()
}

// NewHistory creates a ledger bound to the given live state and records the
// implicit initial commit, so index 0 is always a valid "reset to start"
// target.
func NewHistory(state *State) *History {
	return NewHistoryWithClock(state, defaultClock)
}

// NewHistoryWithClock is NewHistory with an injectable clock for
// deterministic tests.
func NewHistoryWithClock(state *State, clock func() time.Time) *History {
	h := &History{state: state, clock: clock}
	h.commits = append(h.commits, h.snapshot(KindInitial))
	h.nextSeq = 1
	return h
}

// snapshot captures the live state into a new commit value.
func (h *History) snapshot(kind CommitKind) Commit {
	defer metrics.Timer(metrics.CommitSnapshot)()
	return Commit{
		Seq:       h.nextSeq,
		Kind:      kind,
		Records:   h.state.Records(),
		ItemIDs:   h.state.ItemIDs(),
		Counts:    h.state.Counts(),
		CreatedAt: h.clock().UTC(),
	}
}

// State returns the live state the ledger is bound to.
func (h *History) State() *State {
	return h.state
}

// Len returns the number of commits.
func (h *History) Len() int {
	return len(h.commits)
}

// Cursor returns the current history position.
func (h *History) Cursor() int {
	return h.cursor
}

// Commits returns a deep copy of the commit list, oldest first.
func (h *History) Commits() []Commit {
	out := make([]Commit, len(h.commits))
	for i, c := range h.commits {
		out[i] = c.clone()
	}
	return out
}

// CommitAt returns a deep copy of the commit at index i.
func (h *History) CommitAt(i int) (Commit, error) {
	if i < 0 || i >= len(h.commits) {
		return Commit{}, fmt.Errorf("%w: %d (history length %d)", ErrIndexOutOfRange, i, len(h.commits))
	}
	return h.commits[i].clone(), nil
}

// CreateCommit snapshots the live state into a new commit appended after
// the cursor, truncating any future commits first. It never fails.
func (h *History) CreateCommit(kind CommitKind) Commit {
	if h.cursor < len(h.commits)-1 {
		debug.Log("history: truncating %d future commit(s)", len(h.commits)-1-h.cursor)
		h.commits = h.commits[:h.cursor+1]
	}
	c := h.snapshot(kind)
	h.nextSeq++
	h.commits = append(h.commits, c)
	h.cursor = len(h.commits) - 1
	return c.clone()
}

// RestoreCommit replaces the live state with the snapshot at index i and
// moves the cursor there. Restoring the current index again is a no-op.
// An invalid index returns ErrIndexOutOfRange.
func (h *History) RestoreCommit(i int) error {
	defer metrics.Timer(metrics.CommitRestore)()
	if i < 0 || i >= len(h.commits) {
		return fmt.Errorf("%w: %d (history length %d)", ErrIndexOutOfRange, i, len(h.commits))
	}
	h.state.replace(h.commits[i].Records)
	h.cursor = i
	return nil
}

// SaveCurrentState overwrites the snapshot at the cursor with the live
// state, without creating a new history entry. Call it before a bulk
// operation so a later undo steps over the whole operation, not item by
// item.
func (h *History) SaveCurrentState() {
	c := h.snapshot(h.commits[h.cursor].Kind)
	c.Seq = h.commits[h.cursor].Seq
	c.CreatedAt = h.commits[h.cursor].CreatedAt
	h.commits[h.cursor] = c
}

// CanUndo reports whether an earlier commit exists.
func (h *History) CanUndo() bool {
	return h.cursor > 0
}

// CanRedo reports whether a later commit exists.
func (h *History) CanRedo() bool {
	return h.cursor < len(h.commits)-1
}

// Undo restores the previous commit. No-op at the start of history.
func (h *History) Undo() error {
	if !h.CanUndo() {
		return nil
	}
	return h.RestoreCommit(h.cursor - 1)
}

// Redo restores the next commit. No-op at the tail.
func (h *History) Redo() error {
	if !h.CanRedo() {
		return nil
	}
	return h.RestoreCommit(h.cursor + 1)
}
