// Package spatial partitions 2D feature projections inside a fixed triangular
// decision domain into a density-adaptive hierarchy of triangle cells. Leaf
// cells are the unit of one-click batch selection in the triage UI.
package spatial

import "math"

// Vec is a 2D point or vector.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Triangle is a triangle given by its three vertices in counter-clockwise
// order.
type Triangle struct {
	A Vec `json:"a"`
	B Vec `json:"b"`
	C Vec `json:"c"`
}

// containsEps is the tolerance for point-in-triangle tests. Points within
// this distance of an edge count as inside; the deterministic child-order
// scan in the grid builder resolves which side of a shared edge wins.
const containsEps = 1e-12

// Domain returns the fixed root decision-space triangle: an equilateral
// triangle with unit base. All projections are expected to land inside it.
func Domain() Triangle {
	return Triangle{
		A: Vec{X: 0, Y: 0},
		B: Vec{X: 1, Y: 0},
		C: Vec{X: 0.5, Y: math.Sqrt(3) / 2},
	}
}

func cross(o, a, b Vec) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// Contains reports whether v lies inside t (edges inclusive, within
// containsEps).
func (t Triangle) Contains(v Vec) bool {
	d1 := cross(t.A, t.B, v)
	d2 := cross(t.B, t.C, v)
	d3 := cross(t.C, t.A, v)
	return d1 >= -containsEps && d2 >= -containsEps && d3 >= -containsEps
}

// slack returns the smallest signed edge distance of v with respect to t.
// Larger is deeper inside; negative is outside. Used as a fallback when
// floating-point noise makes every strict containment test fail.
func (t Triangle) slack(v Vec) float64 {
	d1 := cross(t.A, t.B, v)
	d2 := cross(t.B, t.C, v)
	d3 := cross(t.C, t.A, v)
	return math.Min(d1, math.Min(d2, d3))
}

// Centroid returns the triangle's centroid.
func (t Triangle) Centroid() Vec {
	return Vec{
		X: (t.A.X + t.B.X + t.C.X) / 3,
		Y: (t.A.Y + t.B.Y + t.C.Y) / 3,
	}
}

func mid(a, b Vec) Vec {
	return Vec{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Subdivide splits t into its four natural midpoint sub-triangles. The
// child order is fixed (three corner triangles in vertex order, then the
// center triangle); the grid builder's tie-break for points on shared edges
// depends on this order being stable.
func (t Triangle) Subdivide() [4]Triangle {
	ab := mid(t.A, t.B)
	bc := mid(t.B, t.C)
	ca := mid(t.C, t.A)
	return [4]Triangle{
		{A: t.A, B: ab, C: ca}, // corner at A
		{A: ab, B: t.B, C: bc}, // corner at B
		{A: ca, B: bc, C: t.C}, // corner at C
		{A: ab, B: bc, C: ca},  // center (inverted)
	}
}
