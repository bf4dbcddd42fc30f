// Package classify consumes per-category decision margins produced by the
// external scoring service: it derives auto labels, places features in the
// decision-space triangle, and summarizes margin distributions for the
// progress panels. It never computes margins itself.
package classify

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/vanderheijden86/triagemap/pkg/labeling"
	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/spatial"
)

// MinManualPerCategory is how many manual tags each category needs before
// the external classifier can be (re)fit. Below this the stage is simply
// "not ready yet", which is a normal state surfaced as a progress
// indicator, not an error.
const MinManualPerCategory = 3

// Readiness describes whether a stage has enough manual labels for
// classification.
type Readiness struct {
	Ready bool `json:"ready"`
	// Missing maps each under-labeled category to how many more manual
	// tags it needs.
	Missing map[model.Category]int `json:"missing,omitempty"`
}

// CheckReadiness tallies manual labels per category against
// MinManualPerCategory.
func CheckReadiness(state *labeling.State) Readiness {
	manual := make(map[model.Category]int)
	for _, rec := range state.Records() {
		if rec.Provenance == model.ProvenanceManual {
			manual[rec.Category]++
		}
	}

	r := Readiness{Ready: true}
	for _, info := range model.Categories(state.Stage()) {
		if n := manual[info.Key]; n < MinManualPerCategory {
			if r.Missing == nil {
				r.Missing = make(map[model.Category]int)
			}
			r.Missing[info.Key] = MinManualPerCategory - n
			r.Ready = false
		}
	}
	return r
}

// AutoLabel converts margins into auto-provenance label records: each
// feature gets the category with the largest positive margin. Ties break
// toward the stage's canonical category order. Features with no positive
// margin stay unlabeled (unsure).
func AutoLabel(margins []model.Margin, stage model.Stage) map[int]model.LabelRecord {
	defer metrics.Timer(metrics.MarginCompute)()

	out := make(map[int]model.LabelRecord, len(margins))
	keys := model.CategoryKeys(stage)
	for _, m := range margins {
		if m.Stage != stage {
			continue
		}
		best := model.Category("")
		bestVal := 0.0
		for _, cat := range keys { // canonical order makes ties deterministic
			if v, ok := m.Values[cat]; ok && v > bestVal {
				best, bestVal = cat, v
			}
		}
		if best != "" {
			out[m.FeatureID] = model.Auto(best)
		}
	}
	return out
}

// Place maps margins into the decision-space triangle via barycentric
// weights. It requires a stage with exactly three categories (the quality
// stage); other stages have no triangular decision space.
func Place(margins []model.Margin, stage model.Stage, tr *spatial.Transform) ([]model.Point, error) {
	keys := model.CategoryKeys(stage)
	if len(keys) != 3 {
		return nil, fmt.Errorf("stage %s has %d categories; decision-space placement needs exactly 3", stage, len(keys))
	}

	pts := make([]model.Point, 0, len(margins))
	for _, m := range margins {
		if m.Stage != stage {
			continue
		}
		v := tr.PlaceWeights(m.Values[keys[0]], m.Values[keys[1]], m.Values[keys[2]])
		pts = append(pts, model.Point{ID: m.FeatureID, X: v.X, Y: v.Y, Aux: m.Values})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].ID < pts[j].ID })
	return pts, nil
}

// CategorySummary is the distribution summary of one category's margins.
type CategorySummary struct {
	Category model.Category `json:"category"`
	Count    int            `json:"count"`
	Mean     float64        `json:"mean"`
	StdDev   float64        `json:"std_dev"`
	Q1       float64        `json:"q1"`
	Median   float64        `json:"median"`
	Q3       float64        `json:"q3"`
	Min      float64        `json:"min"`
	Max      float64        `json:"max"`
}

// Summarize computes per-category margin distribution summaries in the
// stage's canonical category order. Categories with no margins are omitted.
func Summarize(margins []model.Margin, stage model.Stage) ([]CategorySummary, error) {
	byCat := make(map[model.Category][]float64)
	for _, m := range margins {
		if m.Stage != stage {
			continue
		}
		for cat, v := range m.Values {
			byCat[cat] = append(byCat[cat], v)
		}
	}

	var out []CategorySummary
	for _, cat := range model.CategoryKeys(stage) {
		vals := byCat[cat]
		if len(vals) == 0 {
			continue
		}
		mean, err := stats.Mean(vals)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", cat, err)
		}
		sd, err := stats.StandardDeviation(vals)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", cat, err)
		}
		q, err := stats.Quartile(vals)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", cat, err)
		}
		mn, _ := stats.Min(vals)
		mx, _ := stats.Max(vals)
		out = append(out, CategorySummary{
			Category: cat,
			Count:    len(vals),
			Mean:     mean,
			StdDev:   sd,
			Q1:       q.Q1,
			Median:   q.Q2,
			Q3:       q.Q3,
			Min:      mn,
			Max:      mx,
		})
	}
	return out, nil
}
