package spatial

import (
	"fmt"
	"math"
	"sort"

	"github.com/vanderheijden86/triagemap/pkg/debug"
	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

const (
	// ThresholdDivisor fixes the merge threshold relative to the input
	// size: threshold = ceil(n / ThresholdDivisor). With the divisor at 16
	// a full view of a few thousand points yields leaves of a few hundred
	// points, which is the batch size an annotator can review in one pass.
	ThresholdDivisor = 16

	// MaxDepth caps subdivision. At depth 12 a cell edge is 1/4096 of the
	// domain edge; points closer together than that (including exact
	// duplicates) stay in one leaf rather than recursing forever.
	MaxDepth = 12

	// RootKey is the path key of the root cell. Child keys append one
	// digit '0'..'3' per subdivision level.
	RootKey = "t"
)

// Threshold derives the merge threshold (minimum points per leaf before a
// split is considered) from the total point count.
func Threshold(totalPoints int) int {
	if totalPoints <= 0 {
		return 1
	}
	return (totalPoints + ThresholdDivisor - 1) / ThresholdDivisor
}

// Cell is one node of the spatial partition.
type Cell struct {
	Key      string   `json:"key"`
	Tri      Triangle `json:"boundary"`
	Depth    int      `json:"depth"`
	PointIDs []int    `json:"point_ids"` // sorted ascending
	Children []string `json:"children,omitempty"`
}

// Leaf reports whether the cell has no children.
func (c *Cell) Leaf() bool {
	return len(c.Children) == 0
}

// Count returns the number of points in the cell.
func (c *Cell) Count() int {
	return len(c.PointIDs)
}

// Warning describes an input point excluded from the grid. Exclusions are
// recoverable conditions, not errors: the grid is built from the remaining
// points.
type Warning struct {
	PointID int    `json:"point_id"`
	Reason  string `json:"reason"`
}

// Grid is an immutable spatial partition of a point set. It is rebuilt from
// scratch whenever the inputs change, never mutated in place.
type Grid struct {
	Threshold int              `json:"threshold"`
	Cells     map[string]*Cell `json:"cells"`
	LeafKeys  []string         `json:"leaf_keys"` // sorted ascending
	Warnings  []Warning        `json:"warnings,omitempty"`

	points map[int]Vec
}

// Empty reports whether the grid holds no cells (zero valid input points).
func (g *Grid) Empty() bool {
	return len(g.Cells) == 0
}

// TotalPoints returns the number of points covered by the grid.
func (g *Grid) TotalPoints() int {
	if root, ok := g.Cells[RootKey]; ok {
		return root.Count()
	}
	return 0
}

// Leaf returns the leaf cell for key, or nil when key does not name a leaf.
func (g *Grid) Leaf(key string) *Cell {
	c, ok := g.Cells[key]
	if !ok || !c.Leaf() {
		return nil
	}
	return c
}

// LeafFor returns the leaf cell containing the given point ID, or nil when
// the point is not in the grid.
func (g *Grid) LeafFor(pointID int) *Cell {
	if _, ok := g.points[pointID]; !ok {
		return nil
	}
	cell, ok := g.Cells[RootKey]
	if !ok {
		return nil
	}
	for !cell.Leaf() {
		next := cell
		for _, childKey := range cell.Children {
			child := g.Cells[childKey]
			if containsID(child.PointIDs, pointID) {
				next = child
				break
			}
		}
		if next == cell {
			// Should not happen: children partition the parent exactly.
			break
		}
		cell = next
	}
	return cell
}

func containsID(sorted []int, id int) bool {
	i := sort.SearchInts(sorted, id)
	return i < len(sorted) && sorted[i] == id
}

// Build constructs a grid over the given points with an explicit merge
// threshold. It is a pure function of its inputs: building twice from the
// same data yields identical cell keys and point assignments.
//
// Invalid points (non-finite coordinates, IDs already seen, points outside
// the domain) are dropped and reported in Grid.Warnings.
func Build(points []model.Point, threshold int) *Grid {
	defer metrics.Timer(metrics.GridBuild)()

	if threshold < 1 {
		threshold = 1
	}
	g := &Grid{
		Threshold: threshold,
		Cells:     make(map[string]*Cell),
		points:    make(map[int]Vec, len(points)),
	}

	domain := Domain()
	var ids []int
	seen := make(map[int]bool, len(points))
	for _, p := range points {
		switch {
		case !p.Finite():
			g.Warnings = append(g.Warnings, Warning{PointID: p.ID, Reason: "non-finite coordinates"})
		case seen[p.ID]:
			g.Warnings = append(g.Warnings, Warning{PointID: p.ID, Reason: "duplicate id"})
		case !domain.Contains(Vec{X: p.X, Y: p.Y}):
			g.Warnings = append(g.Warnings, Warning{PointID: p.ID, Reason: "outside decision domain"})
		default:
			seen[p.ID] = true
			g.points[p.ID] = Vec{X: p.X, Y: p.Y}
			ids = append(ids, p.ID)
		}
	}
	if len(g.Warnings) > 0 {
		debug.Log("grid: dropped %d of %d input points", len(g.Warnings), len(points))
	}

	if len(ids) == 0 {
		return g
	}
	sort.Ints(ids)

	g.subdivide(RootKey, domain, 0, ids)
	sort.Strings(g.LeafKeys)
	return g
}

// BuildAuto constructs a grid with the threshold derived from the point
// count via Threshold.
func BuildAuto(points []model.Point) *Grid {
	return Build(points, Threshold(len(points)))
}

// subdivide recursively builds the cell at key covering tri with the given
// point IDs (sorted). A cell becomes a leaf when its count is at or below
// the threshold, the depth cap is reached, or its points cannot be
// geometrically separated (all coincident).
//
// Leaf size bound: every leaf produced by a completed split chain holds at
// most Threshold points; only depth-capped or coincident leaves may exceed
// it, and then only because the points cannot be told apart at the minimum
// cell size.
func (g *Grid) subdivide(key string, tri Triangle, depth int, ids []int) {
	cell := &Cell{Key: key, Tri: tri, Depth: depth, PointIDs: ids}
	g.Cells[key] = cell

	if len(ids) <= g.Threshold || depth >= MaxDepth || g.allCoincident(ids) {
		g.LeafKeys = append(g.LeafKeys, key)
		return
	}

	children := tri.Subdivide()
	buckets := make([][]int, 4)
	for _, id := range ids {
		i := g.childIndex(children, g.points[id])
		buckets[i] = append(buckets[i], id)
	}

	for i, child := range children {
		if len(buckets[i]) == 0 {
			continue // empty children are not materialized; leaves are never empty
		}
		childKey := fmt.Sprintf("%s%d", key, i)
		cell.Children = append(cell.Children, childKey)
		g.subdivide(childKey, child, depth+1, buckets[i])
	}
}

// childIndex assigns v to exactly one of the four sub-triangles. Children
// are tested in fixed order and the first containing triangle wins, so a
// point exactly on a shared edge always goes to the lower-indexed child.
// If floating-point noise leaves v outside every child, the child with the
// largest containment slack takes it.
func (g *Grid) childIndex(children [4]Triangle, v Vec) int {
	for i, child := range children {
		if child.Contains(v) {
			return i
		}
	}
	best, bestSlack := 0, math.Inf(-1)
	for i, child := range children {
		if s := child.slack(v); s > bestSlack {
			best, bestSlack = i, s
		}
	}
	return best
}

// allCoincident reports whether every point in ids shares one location.
func (g *Grid) allCoincident(ids []int) bool {
	if len(ids) < 2 {
		return true
	}
	first := g.points[ids[0]]
	for _, id := range ids[1:] {
		if g.points[id] != first {
			return false
		}
	}
	return true
}

// Position returns the stored location of a point in the grid.
func (g *Grid) Position(pointID int) (Vec, bool) {
	v, ok := g.points[pointID]
	return v, ok
}
