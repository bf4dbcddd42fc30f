// Package model defines the core domain types for triagemap: features under
// triage, labeling stages, and the closed category vocabulary of each stage.
package model

import "fmt"

// Stage identifies one of the three labeling stages of the triage workflow.
type Stage string

const (
	// StageSplit decides whether a feature's explanation describes one
	// behavior or several (feature-splitting).
	StageSplit Stage = "split"
	// StageQuality rates explanation quality.
	StageQuality Stage = "quality"
	// StageCause assigns a root cause to a bad explanation.
	StageCause Stage = "cause"
)

// AllStages lists stages in workflow order.
var AllStages = []Stage{StageSplit, StageQuality, StageCause}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageSplit, StageQuality, StageCause:
		return true
	}
	return false
}

// Next returns the stage that follows s in the workflow, or s itself when s
// is the last stage.
func (s Stage) Next() Stage {
	switch s {
	case StageSplit:
		return StageQuality
	case StageQuality:
		return StageCause
	}
	return s
}

// Category is a label value within a stage's closed vocabulary.
type Category string

// Split-stage categories.
const (
	SplitSingle Category = "single-behavior"
	SplitMixed  Category = "mixed-behavior"
)

// Quality-stage categories.
const (
	QualityGood     Category = "good"
	QualityNearMiss Category = "near-miss"
	QualityBad      Category = "bad"
)

// Cause-stage categories. The vocabulary follows the final naming; earlier
// iterations used "missed lexicon" / "missed n-gram" for what is now
// pattern-miss.
const (
	CausePatternMiss Category = "pattern-miss"
	CauseOverbroad   Category = "overbroad"
	CauseContext     Category = "context-confusion"
	CauseNoise       Category = "noise"
)

// CategoryInfo describes one category of a stage's vocabulary.
type CategoryInfo struct {
	Key     Category `json:"key"`
	Display string   `json:"display"`
	// PaletteIndex is a stable index into the fixed chart palette.
	PaletteIndex int `json:"palette_index"`
}

// stageVocab is the typed category tree, built once at package init and
// queried by stage. Order within a stage is the canonical display order and
// is relied on for deterministic chart legends and count vectors.
var stageVocab = map[Stage][]CategoryInfo{
	StageSplit: {
		{Key: SplitSingle, Display: "Single behavior", PaletteIndex: 0},
		{Key: SplitMixed, Display: "Mixed behavior", PaletteIndex: 1},
	},
	StageQuality: {
		{Key: QualityGood, Display: "Good", PaletteIndex: 0},
		{Key: QualityNearMiss, Display: "Near miss", PaletteIndex: 2},
		{Key: QualityBad, Display: "Bad", PaletteIndex: 1},
	},
	StageCause: {
		{Key: CausePatternMiss, Display: "Pattern miss", PaletteIndex: 0},
		{Key: CauseOverbroad, Display: "Overbroad", PaletteIndex: 1},
		{Key: CauseContext, Display: "Context confusion", PaletteIndex: 2},
		{Key: CauseNoise, Display: "Noise", PaletteIndex: 3},
	},
}

// Categories returns the stage's vocabulary in canonical order.
// The returned slice must not be mutated.
func Categories(stage Stage) []CategoryInfo {
	return stageVocab[stage]
}

// CategoryKeys returns just the category keys of a stage in canonical order.
func CategoryKeys(stage Stage) []Category {
	infos := stageVocab[stage]
	keys := make([]Category, len(infos))
	for i, info := range infos {
		keys[i] = info.Key
	}
	return keys
}

// ValidCategory reports whether cat belongs to stage's vocabulary.
func ValidCategory(stage Stage, cat Category) bool {
	for _, info := range stageVocab[stage] {
		if info.Key == cat {
			return true
		}
	}
	return false
}

// CategoryDisplay returns the display name for a category within a stage,
// or the raw key when the category is unknown.
func CategoryDisplay(stage Stage, cat Category) string {
	for _, info := range stageVocab[stage] {
		if info.Key == cat {
			return info.Display
		}
	}
	return string(cat)
}

// ParseStage converts a string to a Stage, with a typed error on failure.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage %q (want split, quality, or cause)", s)
	}
	return stage, nil
}
