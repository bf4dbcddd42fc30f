package charts

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"sort"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/spatial"
)

// TriangleMapOptions controls decision-space map export.
type TriangleMapOptions struct {
	Path   string // Output path; format inferred from extension when Format empty
	Format string // "svg" or "png" (case-insensitive)
	Title  string // Optional title rendered in the header
	Stage  model.Stage
	Grid   *spatial.Grid
	// Labels maps feature IDs to their label in Stage. Unlabeled points
	// render grey.
	Labels map[int]model.LabelRecord
}

const (
	mapWidth   = 860
	mapHeight  = 760
	mapPad     = 60.0
	mapHeader  = 84.0
	pointR     = 3.5
	pointRSVG  = 4
	legendRowH = 16
)

// SaveTriangleMap renders the grid and its points into the fixed
// triangular decision domain.
func SaveTriangleMap(opts TriangleMapOptions) error {
	format, err := ResolveFormat(&opts.Path, opts.Format)
	if err != nil {
		return err
	}
	file, err := createOutput(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	return RenderTriangleMap(file, format, opts)
}

// RenderTriangleMap writes the map to w in the given format.
func RenderTriangleMap(w io.Writer, format Format, opts TriangleMapOptions) error {
	defer metrics.Timer(metrics.ChartRender)()

	if opts.Grid == nil {
		return fmt.Errorf("grid is required for map export")
	}
	if !opts.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", opts.Stage)
	}
	switch format {
	case FormatSVG:
		return renderTriangleMapSVG(w, opts)
	default:
		return renderTriangleMapPNG(w, opts)
	}
}

// project maps a domain coordinate onto the canvas. Canvas y grows down,
// domain y grows up.
func project(v spatial.Vec) (float64, float64) {
	side := float64(mapWidth) - 2*mapPad
	x := mapPad + v.X*side
	y := mapHeader + mapPad + (math.Sqrt(3)/2-v.Y)*side
	return x, y
}

func mapTitle(opts TriangleMapOptions) string {
	if opts.Title != "" {
		return opts.Title
	}
	return fmt.Sprintf("Decision map (%s stage)", opts.Stage)
}

// sortedCellKeys walks the whole cell tree, not just leaves, shallow first
// so deep outlines draw on top.
func sortedCellKeys(g *spatial.Grid) []string {
	keys := make([]string, 0, len(g.Cells))
	for key := range g.Cells {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

func renderTriangleMapSVG(w io.Writer, opts TriangleMapOptions) error {
	canvas := svg.New(w)
	canvas.Start(mapWidth, mapHeight)
	canvas.Rect(0, 0, mapWidth, mapHeight, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, mapWidth-32, int(mapHeader)-24, 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))

	canvas.Text(32, 44, truncate(mapTitle(opts), 70),
		fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(32, 64, fmt.Sprintf("points: %d  leaves: %d  threshold: %d",
		opts.Grid.TotalPoints(), len(opts.Grid.LeafKeys), opts.Grid.Threshold),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))

	// cell outlines, shallow to deep
	for _, key := range sortedCellKeys(opts.Grid) {
		cell := opts.Grid.Cells[key]
		ax, ay := project(cell.Tri.A)
		bx, by := project(cell.Tri.B)
		cx, cy := project(cell.Tri.C)
		stroke := fade(colorGridLine, 1.0/float64(cell.Depth+1))
		canvas.Polygon(
			[]int{int(ax), int(bx), int(cx)},
			[]int{int(ay), int(by), int(cy)},
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:1", css(stroke)),
		)
	}

	// points colored by label
	for _, key := range opts.Grid.LeafKeys {
		leaf := opts.Grid.Leaf(key)
		for _, id := range leaf.PointIDs {
			pos, ok := opts.Grid.Position(id)
			if !ok {
				continue
			}
			px, py := project(pos)
			c := colorUnsure
			if rec, ok := opts.Labels[id]; ok {
				c = CategoryColor(opts.Stage, rec.Category)
			}
			canvas.Circle(int(px), int(py), pointRSVG,
				fmt.Sprintf("fill:%s;stroke:%s;stroke-width:0.5", css(c), css(colorStroke)))
		}
	}

	// legend
	cats := model.Categories(opts.Stage)
	lx := mapWidth - 210
	ly := int(mapHeader) + 24
	canvas.Roundrect(lx, ly, 190, (len(cats)+2)*legendRowH+12, 10, 10,
		fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorLegendBG), css(colorStroke)))
	canvas.Text(lx+12, ly+18, "Legend",
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
	row := ly + 18 + legendRowH
	for _, info := range cats {
		canvas.Roundrect(lx+12, row-10, 12, 12, 3, 3,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(CategoryColor(opts.Stage, info.Key)), css(colorStroke)))
		canvas.Text(lx+30, row, info.Display,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
		row += legendRowH
	}
	canvas.Roundrect(lx+12, row-10, 12, 12, 3, 3,
		fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorUnsure), css(colorStroke)))
	canvas.Text(lx+30, row, "Unsure",
		fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	canvas.End()
	return nil
}

func renderTriangleMapPNG(w io.Writer, opts TriangleMapOptions) error {
	dc := gg.NewContext(mapWidth, mapHeight)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, mapWidth-32, mapHeader-24, 10)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(truncate(mapTitle(opts), 70), 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("points: %d  leaves: %d  threshold: %d",
		opts.Grid.TotalPoints(), len(opts.Grid.LeafKeys), opts.Grid.Threshold), 32, 60, 0, 0.5)

	for _, key := range sortedCellKeys(opts.Grid) {
		cell := opts.Grid.Cells[key]
		ax, ay := project(cell.Tri.A)
		bx, by := project(cell.Tri.B)
		cx, cy := project(cell.Tri.C)
		dc.SetColor(fade(colorGridLine, 1.0/float64(cell.Depth+1)))
		dc.SetLineWidth(1)
		dc.MoveTo(ax, ay)
		dc.LineTo(bx, by)
		dc.LineTo(cx, cy)
		dc.ClosePath()
		dc.Stroke()
	}

	for _, key := range opts.Grid.LeafKeys {
		leaf := opts.Grid.Leaf(key)
		for _, id := range leaf.PointIDs {
			pos, ok := opts.Grid.Position(id)
			if !ok {
				continue
			}
			px, py := project(pos)
			c := colorUnsure
			if rec, ok := opts.Labels[id]; ok {
				c = CategoryColor(opts.Stage, rec.Category)
			}
			dc.SetColor(c)
			dc.DrawCircle(px, py, pointR)
			dc.Fill()
			dc.SetColor(colorStroke)
			dc.SetLineWidth(0.5)
			dc.DrawCircle(px, py, pointR)
			dc.Stroke()
		}
	}

	cats := model.Categories(opts.Stage)
	lx := float64(mapWidth) - 210
	ly := mapHeader + 24
	boxH := float64((len(cats)+2)*legendRowH + 12)
	dc.SetColor(colorLegendBG)
	dc.DrawRoundedRectangle(lx, ly, 190, boxH, 10)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.DrawRoundedRectangle(lx, ly, 190, boxH, 10)
	dc.Stroke()
	dc.SetColor(colorText)
	dc.DrawStringAnchored("Legend", lx+12, ly+16, 0, 0.5)
	row := ly + 16 + legendRowH
	for _, info := range cats {
		drawLegendSwatch(dc, lx+12, row, CategoryColor(opts.Stage, info.Key), info.Display)
		row += legendRowH
	}
	drawLegendSwatch(dc, lx+12, row, colorUnsure, "Unsure")

	return dc.EncodePNG(w)
}

func drawLegendSwatch(dc *gg.Context, x, y float64, c color.RGBA, label string) {
	dc.SetColor(c)
	dc.DrawRoundedRectangle(x, y-8, 12, 12, 3)
	dc.Fill()
	dc.SetColor(colorStroke)
	dc.DrawRoundedRectangle(x, y-8, 12, 12, 3)
	dc.Stroke()
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(label, x+20, y, 0, 0.5)
}
