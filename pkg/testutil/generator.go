// Package testutil provides deterministic fixture generators and small
// t.Helper assertions shared by the package test suites.
package testutil

import (
	"fmt"
	"math"
	"time"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// goldenAngle spreads spiral points evenly without collinear runs.
const goldenAngle = 2.39996

// Features generates n valid features with stable IDs 0..n-1.
func Features(n int) []model.Feature {
	out := make([]model.Feature, 0, n)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, model.Feature{
			ID:             i,
			Name:           fmt.Sprintf("feature-%d", i),
			Explanation:    fmt.Sprintf("fires on pattern %d", i),
			ActivationFreq: 0.001 * float64(i+1),
			MaxActivation:  1 + float64(i%7),
			Layer:          i % 12,
			Index:          i,
			UpdatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

// SpiralPoints generates n projected points on a golden-angle spiral
// around the domain centroid. All points are finite and inside the
// triangular domain, so a grid build excludes none of them.
func SpiralPoints(n int) []model.Point {
	cx, cy := 0.5, math.Sqrt(3)/6
	out := make([]model.Point, 0, n)
	for i := 0; i < n; i++ {
		r := 0.02 + 0.2*float64(i)/float64(n)
		a := float64(i) * goldenAngle
		out = append(out, model.Point{
			ID: i,
			X:  cx + r*math.Cos(a),
			Y:  cy + r*math.Sin(a),
		})
	}
	return out
}

// Margins generates one margin row per feature for the given stage. Even
// IDs lean +0.5 toward the stage's first category, odd IDs toward the
// second, so the auto-labeler splits them cleanly.
func Margins(n int, stage model.Stage) []model.Margin {
	cats := model.CategoryKeys(stage)
	out := make([]model.Margin, 0, n)
	for i := 0; i < n; i++ {
		values := make(map[model.Category]float64, len(cats))
		for j, c := range cats {
			values[c] = 0.1 * float64(j)
		}
		values[cats[i%2]] += 0.5
		out = append(out, model.Margin{
			FeatureID: i,
			Stage:     stage,
			Values:    values,
		})
	}
	return out
}
