package charts

import (
	"fmt"
	"io"
	"math"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/triagemap/pkg/metrics"
)

// RadarAxis is one spoke of a radar plot.
type RadarAxis struct {
	Label string
	Value float64
	// Max scales the axis; non-positive means 1.
	Max float64
}

// RadarOptions controls radar plot export. Radars need at least three
// axes to enclose an area.
type RadarOptions struct {
	Path   string
	Format string
	Title  string
	Axes   []RadarAxis
}

const (
	radarSize   = 520
	radarHeader = 64.0
	radarRings  = 4
)

// SaveRadar renders a radar plot of the given axes.
func SaveRadar(opts RadarOptions) error {
	format, err := ResolveFormat(&opts.Path, opts.Format)
	if err != nil {
		return err
	}
	file, err := createOutput(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	return RenderRadar(file, format, opts)
}

// RenderRadar writes the radar plot to w in the given format.
func RenderRadar(w io.Writer, format Format, opts RadarOptions) error {
	defer metrics.Timer(metrics.ChartRender)()

	if len(opts.Axes) < 3 {
		return fmt.Errorf("radar needs at least 3 axes, got %d", len(opts.Axes))
	}
	switch format {
	case FormatSVG:
		return renderRadarSVG(w, opts)
	default:
		return renderRadarPNG(w, opts)
	}
}

// spoke returns the canvas endpoint for axis i at radius fraction t.
func spoke(i, n int, t float64) (float64, float64) {
	cx := float64(radarSize) / 2
	cy := radarHeader + (float64(radarSize)-radarHeader)/2
	r := (float64(radarSize) - radarHeader) / 2 * 0.72
	angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
	return cx + r*t*math.Cos(angle), cy + r*t*math.Sin(angle)
}

func (a RadarAxis) fraction() float64 {
	max := a.Max
	if max <= 0 {
		max = 1
	}
	t := a.Value / max
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t
}

func radarTitle(opts RadarOptions) string {
	if opts.Title != "" {
		return opts.Title
	}
	return "Category radar"
}

func renderRadarSVG(w io.Writer, opts RadarOptions) error {
	n := len(opts.Axes)
	canvas := svg.New(w)
	canvas.Start(radarSize, radarSize)
	canvas.Rect(0, 0, radarSize, radarSize, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Text(32, 36, truncate(radarTitle(opts), 54),
		fmt.Sprintf("fill:%s;font-size:15px;font-family:monospace;font-weight:bold", css(colorText)))

	// concentric guide rings
	for ring := 1; ring <= radarRings; ring++ {
		t := float64(ring) / radarRings
		xs := make([]int, n)
		ys := make([]int, n)
		for i := 0; i < n; i++ {
			x, y := spoke(i, n, t)
			xs[i], ys[i] = int(x), int(y)
		}
		canvas.Polygon(xs, ys, fmt.Sprintf("fill:none;stroke:%s;stroke-width:1", css(colorGridLine)))
	}

	// spokes and labels
	for i, axis := range opts.Axes {
		x, y := spoke(i, n, 1)
		cx, cy := spoke(i, n, 0)
		canvas.Line(int(cx), int(cy), int(x), int(y),
			fmt.Sprintf("stroke:%s;stroke-width:1", css(colorAxis)))
		lx, ly := spoke(i, n, 1.14)
		canvas.Text(int(lx), int(ly), truncate(axis.Label, 18),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:middle", css(colorSubtle)))
	}

	// value polygon
	xs := make([]int, n)
	ys := make([]int, n)
	for i, axis := range opts.Axes {
		x, y := spoke(i, n, axis.fraction())
		xs[i], ys[i] = int(x), int(y)
	}
	fill := categoryPalette[3]
	canvas.Polygon(xs, ys, fmt.Sprintf("fill:%s;fill-opacity:0.35;stroke:%s;stroke-width:2", css(fill), css(fill)))

	canvas.End()
	return nil
}

func renderRadarPNG(w io.Writer, opts RadarOptions) error {
	n := len(opts.Axes)
	dc := gg.NewContext(radarSize, radarSize)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorText)
	dc.DrawStringAnchored(truncate(radarTitle(opts), 54), 32, 32, 0, 0.5)

	for ring := 1; ring <= radarRings; ring++ {
		t := float64(ring) / radarRings
		dc.SetColor(colorGridLine)
		dc.SetLineWidth(1)
		for i := 0; i < n; i++ {
			x1, y1 := spoke(i, n, t)
			x2, y2 := spoke((i+1)%n, n, t)
			dc.DrawLine(x1, y1, x2, y2)
		}
		dc.Stroke()
	}

	dc.SetColor(colorAxis)
	for i, axis := range opts.Axes {
		cx, cy := spoke(i, n, 0)
		x, y := spoke(i, n, 1)
		dc.DrawLine(cx, cy, x, y)
		dc.Stroke()
		lx, ly := spoke(i, n, 1.14)
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(truncate(axis.Label, 18), lx, ly, 0.5, 0.5)
		dc.SetColor(colorAxis)
	}

	fill := categoryPalette[3]
	dc.SetRGBA(float64(fill.R)/255, float64(fill.G)/255, float64(fill.B)/255, 0.35)
	for i, axis := range opts.Axes {
		x, y := spoke(i, n, axis.fraction())
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.ClosePath()
	dc.FillPreserve()
	dc.SetColor(fill)
	dc.SetLineWidth(2)
	dc.Stroke()

	return dc.EncodePNG(w)
}
