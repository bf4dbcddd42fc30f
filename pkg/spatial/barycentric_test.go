package spatial

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTransformRoundTrip(t *testing.T) {
	tr, err := NewTransform(Domain())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	cases := []Barycentric{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
		{1.0 / 3, 1.0 / 3, 1.0 / 3},
		{0.5, 0.25, 0.25},
		{0.9, 0.05, 0.05},
	}
	for _, want := range cases {
		v := tr.FromBarycentric(want)
		got := tr.ToBarycentric(v)
		if !almostEqual(got.WA, want.WA) || !almostEqual(got.WB, want.WB) || !almostEqual(got.WC, want.WC) {
			t.Errorf("round trip %+v -> %+v", want, got)
		}
	}
}

func TestTransformVertices(t *testing.T) {
	dom := Domain()
	tr, err := NewTransform(dom)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	b := tr.ToBarycentric(dom.A)
	if !almostEqual(b.WA, 1) || !almostEqual(b.WB, 0) || !almostEqual(b.WC, 0) {
		t.Errorf("vertex A -> %+v, want (1,0,0)", b)
	}
}

func TestTransformDegenerate(t *testing.T) {
	flat := Triangle{A: Vec{0, 0}, B: Vec{1, 1}, C: Vec{2, 2}}
	if _, err := NewTransform(flat); err == nil {
		t.Error("expected error for collinear vertices")
	}
}

func TestFromBarycentricZeroWeights(t *testing.T) {
	tr, err := NewTransform(Domain())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	got := tr.FromBarycentric(Barycentric{})
	want := Domain().Centroid()
	if !almostEqual(got.X, want.X) || !almostEqual(got.Y, want.Y) {
		t.Errorf("zero weights -> %+v, want centroid %+v", got, want)
	}
}

func TestPlaceWeightsClampsNegatives(t *testing.T) {
	tr, err := NewTransform(Domain())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	got := tr.PlaceWeights(-1, 0, 2)
	if !almostEqual(got.X, Domain().C.X) || !almostEqual(got.Y, Domain().C.Y) {
		t.Errorf("negative weight not clamped: %+v", got)
	}
}

func TestSubdivideCoversParent(t *testing.T) {
	dom := Domain()
	children := dom.Subdivide()

	// Centroids of all children lie in the parent.
	for i, c := range children {
		if !dom.Contains(c.Centroid()) {
			t.Errorf("child %d centroid outside parent", i)
		}
	}

	// A sampling of parent-interior points lands in at least one child.
	tr, err := NewTransform(dom)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	for i := 0; i < 50; i++ {
		wa := math.Mod(0.17+0.618*float64(i), 1.0)
		wb := (1 - wa) * math.Mod(0.29+0.382*float64(i), 1.0)
		v := tr.FromBarycentric(Barycentric{WA: wa, WB: wb, WC: 1 - wa - wb})
		found := false
		for _, c := range children {
			if c.Contains(v) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("point %+v in parent but in no child", v)
		}
	}
}
