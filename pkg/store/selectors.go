package store

import (
	"sort"

	"github.com/vanderheijden86/triagemap/pkg/labeling"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

// StageProgress is the labeling progress of one stage.
type StageProgress struct {
	Stage   model.Stage     `json:"stage"`
	Entered bool            `json:"entered"`
	Counts  labeling.Counts `json:"counts"`
	Commits int             `json:"commits"`
	Cursor  int             `json:"cursor"`
}

// Progress reports per-stage labeling counts across the whole workflow,
// in workflow order. Stages never entered report zero counts.
func Progress(sess *Session) []StageProgress {
	out := make([]StageProgress, 0, 3)
	for _, stage := range []model.Stage{model.StageSplit, model.StageQuality, model.StageCause} {
		p := StageProgress{Stage: stage, Counts: labeling.Counts{Total: len(sess.Features)}}
		if h, ok := sess.Histories[stage]; ok {
			p.Entered = true
			p.Counts = h.State().Counts()
			p.Commits = h.Len()
			p.Cursor = h.Cursor()
		} else {
			p.Counts.Unsure = p.Counts.Total
			p.Counts.PerCategory = make(map[model.Category]int)
			for _, info := range model.Categories(stage) {
				p.Counts.PerCategory[info.Key] = 0
			}
		}
		out = append(out, p)
	}
	return out
}

// CellSummary is the triage view of one leaf cell: how many of its members
// carry each category in the active stage.
type CellSummary struct {
	Key         string                 `json:"key"`
	Depth       int                    `json:"depth"`
	Count       int                    `json:"count"`
	Unsure      int                    `json:"unsure"`
	PerCategory map[model.Category]int `json:"per_category"`
}

// CellSummaries folds the active stage's labels over the grid leaves,
// sorted by key.
func CellSummaries(sess *Session) []CellSummary {
	var records map[int]model.LabelRecord
	if h, ok := sess.Histories[sess.Stage]; ok {
		records = h.State().Records()
	}
	out := make([]CellSummary, 0, len(sess.Grid.LeafKeys))
	for _, key := range sess.Grid.LeafKeys {
		leaf := sess.Grid.Leaf(key)
		cs := CellSummary{
			Key:         key,
			Depth:       leaf.Depth,
			Count:       len(leaf.PointIDs),
			PerCategory: make(map[model.Category]int),
		}
		for _, info := range model.Categories(sess.Stage) {
			cs.PerCategory[info.Key] = 0
		}
		for _, id := range leaf.PointIDs {
			if rec, ok := records[id]; ok {
				cs.PerCategory[rec.Category]++
			} else {
				cs.Unsure++
			}
		}
		out = append(out, cs)
	}
	return out
}

// SelectedFeatures resolves the selection to features, sorted by ID.
func SelectedFeatures(sess *Session) []model.Feature {
	out := make([]model.Feature, 0, len(sess.Selection))
	for _, id := range sess.Selection {
		if f, ok := sess.Features[id]; ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveLabels returns a copy of the active stage's featureID to label map.
// Stages never entered yield an empty map.
func ActiveLabels(sess *Session) map[int]model.LabelRecord {
	if h, ok := sess.Histories[sess.Stage]; ok {
		return h.State().Records()
	}
	return map[int]model.LabelRecord{}
}

// StageFlow counts features by their (stage, category) pair across all
// entered stages, for the flow chart. Unsure features count under the
// empty category.
func StageFlow(sess *Session) map[model.Stage]map[model.Category]int {
	out := make(map[model.Stage]map[model.Category]int, len(sess.Histories))
	for stage, h := range sess.Histories {
		counts := make(map[model.Category]int)
		records := h.State().Records()
		for _, id := range h.State().ItemIDs() {
			if rec, ok := records[id]; ok {
				counts[rec.Category]++
			} else {
				counts[""]++
			}
		}
		out[stage] = counts
	}
	return out
}
