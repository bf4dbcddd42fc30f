package spatial

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Barycentric holds barycentric weights relative to a triangle's vertices.
// For points inside the triangle all three weights are in [0,1] and sum to 1.
type Barycentric struct {
	WA float64 `json:"wa"`
	WB float64 `json:"wb"`
	WC float64 `json:"wc"`
}

// Transform converts between cartesian coordinates and barycentric weights
// for one fixed triangle. The 3x3 system
//
//	| Ax Bx Cx |   | wa |   | x |
//	| Ay By Cy | * | wb | = | y |
//	| 1  1  1  |   | wc |   | 1 |
//
// is factorized once at construction; ToBarycentric is then a single solve.
type Transform struct {
	tri Triangle
	lu  *mat.LU
}

// NewTransform builds a Transform for tri. It fails when tri is degenerate
// (zero area).
func NewTransform(tri Triangle) (*Transform, error) {
	m := mat.NewDense(3, 3, []float64{
		tri.A.X, tri.B.X, tri.C.X,
		tri.A.Y, tri.B.Y, tri.C.Y,
		1, 1, 1,
	})
	var lu mat.LU
	lu.Factorize(m)
	if math.Abs(lu.Det()) < 1e-14 {
		return nil, fmt.Errorf("degenerate triangle: vertices are collinear")
	}
	return &Transform{tri: tri, lu: &lu}, nil
}

// Triangle returns the transform's triangle.
func (t *Transform) Triangle() Triangle {
	return t.tri
}

// ToBarycentric converts a cartesian point into barycentric weights.
func (t *Transform) ToBarycentric(v Vec) Barycentric {
	rhs := mat.NewVecDense(3, []float64{v.X, v.Y, 1})
	var w mat.VecDense
	// Solve cannot fail here: the factorization was checked non-singular.
	_ = t.lu.SolveVecTo(&w, false, rhs)
	return Barycentric{WA: w.AtVec(0), WB: w.AtVec(1), WC: w.AtVec(2)}
}

// FromBarycentric converts barycentric weights back to cartesian
// coordinates. Weights need not be normalized; they are scaled to sum to 1
// first (all-zero weights map to the centroid).
func (t *Transform) FromBarycentric(b Barycentric) Vec {
	sum := b.WA + b.WB + b.WC
	if sum == 0 {
		return t.tri.Centroid()
	}
	wa, wb, wc := b.WA/sum, b.WB/sum, b.WC/sum
	return Vec{
		X: wa*t.tri.A.X + wb*t.tri.B.X + wc*t.tri.C.X,
		Y: wa*t.tri.A.Y + wb*t.tri.B.Y + wc*t.tri.C.Y,
	}
}

// PlaceWeights maps three non-negative category weights into the domain
// triangle. Negative weights are clamped to zero. This is how classifier
// decision margins become positions in the decision-space map.
func (t *Transform) PlaceWeights(wa, wb, wc float64) Vec {
	return t.FromBarycentric(Barycentric{
		WA: math.Max(wa, 0),
		WB: math.Max(wb, 0),
		WC: math.Max(wc, 0),
	})
}
