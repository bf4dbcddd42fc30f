// Package labeling holds the per-stage label state of a triage session and
// the undo/redo commit ledger recorded over it.
package labeling

import (
	"fmt"
	"sort"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// State is the live label assignment for one stage: a map from feature ID
// to its label record. Features absent from the map are "unsure". The
// working set (which feature IDs the stage tracks) is fixed at creation.
type State struct {
	stage   model.Stage
	itemIDs []int // sorted, immutable after construction
	records map[int]model.LabelRecord
}

// NewState creates an all-unsure label state for the given stage and
// working set. Duplicate IDs are collapsed.
func NewState(stage model.Stage, itemIDs []int) *State {
	uniq := make(map[int]bool, len(itemIDs))
	ids := make([]int, 0, len(itemIDs))
	for _, id := range itemIDs {
		if !uniq[id] {
			uniq[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return &State{
		stage:   stage,
		itemIDs: ids,
		records: make(map[int]model.LabelRecord),
	}
}

// Stage returns the stage this state belongs to.
func (s *State) Stage() model.Stage {
	return s.stage
}

// ItemIDs returns a copy of the working set, sorted ascending.
func (s *State) ItemIDs() []int {
	out := make([]int, len(s.itemIDs))
	copy(out, s.itemIDs)
	return out
}

// Total returns the size of the working set.
func (s *State) Total() int {
	return len(s.itemIDs)
}

func (s *State) tracked(id int) bool {
	i := sort.SearchInts(s.itemIDs, id)
	return i < len(s.itemIDs) && s.itemIDs[i] == id
}

// Set assigns a label to one feature. It rejects categories outside the
// stage's vocabulary and IDs outside the working set.
func (s *State) Set(id int, rec model.LabelRecord) error {
	if !model.ValidCategory(s.stage, rec.Category) {
		return fmt.Errorf("category %q not valid for stage %s", rec.Category, s.stage)
	}
	if !rec.Provenance.Valid() {
		return fmt.Errorf("invalid provenance %q", rec.Provenance)
	}
	if !s.tracked(id) {
		return fmt.Errorf("feature %d is not in the %s working set", id, s.stage)
	}
	s.records[id] = rec
	return nil
}

// SetBulk assigns the same label to many features in one call. It fails on
// the first invalid input, leaving earlier assignments applied; callers
// that need atomicity snapshot via the history first.
func (s *State) SetBulk(ids []int, rec model.LabelRecord) error {
	for _, id := range ids {
		if err := s.Set(id, rec); err != nil {
			return err
		}
	}
	return nil
}

// Clear returns a feature to the unsure state.
func (s *State) Clear(id int) {
	delete(s.records, id)
}

// Get returns the label record for a feature, if any.
func (s *State) Get(id int) (model.LabelRecord, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// Records returns a deep copy of the live label map. Mutating the returned
// map never affects the state.
func (s *State) Records() map[int]model.LabelRecord {
	out := make(map[int]model.LabelRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}

// Labeled returns the number of features carrying any label.
func (s *State) Labeled() int {
	return len(s.records)
}

// replace swaps the live label map for a copy of the given one. Used by
// commit restoration.
func (s *State) replace(records map[int]model.LabelRecord) {
	fresh := make(map[int]model.LabelRecord, len(records))
	for id, rec := range records {
		fresh[id] = rec
	}
	s.records = fresh
}

// Counts is the aggregate label tally of a stage at one moment.
// Invariant: the per-category counts, manual+auto split, and Unsure all
// reconcile against Total.
type Counts struct {
	Total       int                    `json:"total"`
	Unsure      int                    `json:"unsure"`
	Manual      int                    `json:"manual"`
	Auto        int                    `json:"auto"`
	PerCategory map[model.Category]int `json:"per_category"`
}

// Counts computes the aggregate tally from the live state.
func (s *State) Counts() Counts {
	c := Counts{
		Total:       len(s.itemIDs),
		PerCategory: make(map[model.Category]int, len(model.Categories(s.stage))),
	}
	for _, info := range model.Categories(s.stage) {
		c.PerCategory[info.Key] = 0
	}
	for _, rec := range s.records {
		c.PerCategory[rec.Category]++
		if rec.Provenance == model.ProvenanceManual {
			c.Manual++
		} else {
			c.Auto++
		}
	}
	c.Unsure = c.Total - len(s.records)
	return c
}
