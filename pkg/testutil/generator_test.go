package testutil

import (
	"testing"

	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/spatial"
)

func TestFeaturesValidAndUnique(t *testing.T) {
	features := Features(50)
	if len(features) != 50 {
		t.Fatalf("len = %d, want 50", len(features))
	}
	AssertAllValid(t, features)
	AssertNoDuplicateIDs(t, features)
}

func TestSpiralPointsInsideDomain(t *testing.T) {
	points := SpiralPoints(80)
	tri := spatial.Domain()
	for _, p := range points {
		if !p.Finite() {
			t.Errorf("point %d not finite", p.ID)
		}
		if !tri.Contains(spatial.Vec{X: p.X, Y: p.Y}) {
			t.Errorf("point %d (%v, %v) outside domain", p.ID, p.X, p.Y)
		}
	}
	g := spatial.BuildAuto(points)
	if len(g.Warnings) != 0 {
		t.Errorf("grid excluded %d points, want 0", len(g.Warnings))
	}
}

func TestMarginsSplitCleanly(t *testing.T) {
	margins := Margins(10, model.StageSplit)
	for _, mg := range margins {
		want := model.SplitSingle
		if mg.FeatureID%2 == 1 {
			want = model.SplitMixed
		}
		var best model.Category
		bestV := -1.0
		for c, v := range mg.Values {
			if v > bestV {
				best, bestV = c, v
			}
		}
		if best != want {
			t.Errorf("feature %d: argmax %s, want %s", mg.FeatureID, best, want)
		}
	}
}
