package model

import (
	"fmt"
	"math"
	"time"
)

// Feature is one machine-learning feature under triage, with its candidate
// explanation and summary activation statistics. Features are immutable once
// loaded; labels live in the per-stage label state, not on the feature.
type Feature struct {
	ID          int    `json:"id"`
	Name        string `json:"name,omitempty"`
	Explanation string `json:"explanation"`
	// ActivationFreq is the fraction of tokens on which the feature fires.
	ActivationFreq float64 `json:"activation_freq,omitempty"`
	MaxActivation  float64 `json:"max_activation,omitempty"`
	// Layer and Index locate the feature in the source model, when known.
	Layer int `json:"layer,omitempty"`
	Index int `json:"index,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate checks structural invariants of a loaded feature.
func (f Feature) Validate() error {
	if f.ID < 0 {
		return fmt.Errorf("feature id must be non-negative, got %d", f.ID)
	}
	if f.Explanation == "" {
		return fmt.Errorf("feature %d has empty explanation", f.ID)
	}
	if f.ActivationFreq < 0 || f.ActivationFreq > 1 {
		return fmt.Errorf("feature %d activation_freq %.4f out of [0,1]", f.ID, f.ActivationFreq)
	}
	return nil
}

// Point is a feature's 2D projection into the fixed triangular decision
// domain, produced by an external projection service. Aux carries optional
// per-category scalars (e.g. classifier decision margins) keyed by category.
type Point struct {
	ID  int                  `json:"feature_id"`
	X   float64              `json:"x"`
	Y   float64              `json:"y"`
	Aux map[Category]float64 `json:"explainer_positions,omitempty"`
}

// Finite reports whether both coordinates are finite. Points failing this
// check are excluded from grid construction.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Margin is an external classifier's per-category decision margin for one
// feature. Larger positive values mean stronger membership in the category.
type Margin struct {
	FeatureID int                  `json:"feature_id"`
	Stage     Stage                `json:"stage"`
	Values    map[Category]float64 `json:"margins"`
}
