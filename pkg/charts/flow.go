package charts

import (
	"fmt"
	"io"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

// FlowOptions controls stage-flow chart export: one column per workflow
// stage, one block per category, block height proportional to count.
type FlowOptions struct {
	Path   string
	Format string
	Title  string
	// Counts maps each stage to its per-category label counts. Unsure
	// features count under the empty category.
	Counts map[model.Stage]map[model.Category]int
}

const (
	flowWidth    = 780
	flowHeight   = 480
	flowPad      = 48.0
	flowHeader   = 72.0
	flowColW     = 150.0
	flowBlockGap = 6.0
)

type flowBlock struct {
	Label string
	Count int
	Y, H  float64
	Color colorOf
}

type colorOf = [4]uint8

// SaveFlow renders the workflow columns.
func SaveFlow(opts FlowOptions) error {
	format, err := ResolveFormat(&opts.Path, opts.Format)
	if err != nil {
		return err
	}
	file, err := createOutput(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	return RenderFlow(file, format, opts)
}

// RenderFlow writes the flow chart to w in the given format.
func RenderFlow(w io.Writer, format Format, opts FlowOptions) error {
	defer metrics.Timer(metrics.ChartRender)()

	cols := flowColumns(opts)
	switch format {
	case FormatSVG:
		return renderFlowSVG(w, opts, cols)
	default:
		return renderFlowPNG(w, opts, cols)
	}
}

type flowColumn struct {
	Stage  model.Stage
	X      float64
	Total  int
	Blocks []flowBlock
}

func flowColumns(opts FlowOptions) []flowColumn {
	// Columns scale against the largest stage total so stages stay
	// visually comparable.
	maxTotal := 1
	for _, counts := range opts.Counts {
		total := 0
		for _, n := range counts {
			total += n
		}
		if total > maxTotal {
			maxTotal = total
		}
	}

	plotH := float64(flowHeight) - flowHeader - 2*flowPad
	gap := (float64(flowWidth) - 2*flowPad - 3*flowColW) / 2

	var cols []flowColumn
	for i, stage := range model.AllStages {
		counts := opts.Counts[stage]
		col := flowColumn{
			Stage: stage,
			X:     flowPad + float64(i)*(flowColW+gap),
		}
		y := flowHeader + flowPad
		appendBlock := func(label string, count int, c [4]uint8) {
			if count == 0 {
				return
			}
			h := plotH * float64(count) / float64(maxTotal)
			col.Blocks = append(col.Blocks, flowBlock{Label: label, Count: count, Y: y, H: h, Color: c})
			col.Total += count
			y += h + flowBlockGap
		}
		for _, info := range model.Categories(stage) {
			c := CategoryColor(stage, info.Key)
			appendBlock(info.Display, counts[info.Key], [4]uint8{c.R, c.G, c.B, c.A})
		}
		appendBlock("Unsure", counts[""], [4]uint8{colorUnsure.R, colorUnsure.G, colorUnsure.B, colorUnsure.A})
		cols = append(cols, col)
	}
	return cols
}

func flowTitle(opts FlowOptions) string {
	if opts.Title != "" {
		return opts.Title
	}
	return "Stage flow"
}

func renderFlowSVG(w io.Writer, opts FlowOptions, cols []flowColumn) error {
	canvas := svg.New(w)
	canvas.Start(flowWidth, flowHeight)
	canvas.Rect(0, 0, flowWidth, flowHeight, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, flowWidth-32, int(flowHeader)-24, 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(32, 44, truncate(flowTitle(opts), 64),
		fmt.Sprintf("fill:%s;font-size:15px;font-family:monospace;font-weight:bold", css(colorText)))

	for _, col := range cols {
		canvas.Text(int(col.X+flowColW/2), int(flowHeader+flowPad)-12,
			fmt.Sprintf("%s (%d)", col.Stage, col.Total),
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;text-anchor:middle", css(colorText)))
		for _, b := range col.Blocks {
			style := fmt.Sprintf("fill:#%02x%02x%02x;stroke:%s;stroke-width:1", b.Color[0], b.Color[1], b.Color[2], css(colorStroke))
			canvas.Rect(int(col.X), int(b.Y), int(flowColW), int(b.H), style)
			if b.H >= 14 {
				canvas.Text(int(col.X+6), int(b.Y+b.H/2)+4,
					fmt.Sprintf("%s: %d", truncate(b.Label, 12), b.Count),
					fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorText)))
			}
		}
	}

	canvas.End()
	return nil
}

func renderFlowPNG(w io.Writer, opts FlowOptions, cols []flowColumn) error {
	dc := gg.NewContext(flowWidth, flowHeight)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, flowWidth-32, flowHeader-24, 10)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(truncate(flowTitle(opts), 64), 32, 40, 0, 0.5)

	for _, col := range cols {
		dc.SetColor(colorText)
		dc.DrawStringAnchored(fmt.Sprintf("%s (%d)", col.Stage, col.Total),
			col.X+flowColW/2, flowHeader+flowPad-14, 0.5, 0.5)
		for _, b := range col.Blocks {
			dc.SetRGB255(int(b.Color[0]), int(b.Color[1]), int(b.Color[2]))
			dc.DrawRectangle(col.X, b.Y, flowColW, b.H)
			dc.Fill()
			dc.SetColor(colorStroke)
			dc.DrawRectangle(col.X, b.Y, flowColW, b.H)
			dc.Stroke()
			if b.H >= 14 {
				dc.DrawStringAnchored(fmt.Sprintf("%s: %d", truncate(b.Label, 12), b.Count),
					col.X+6, b.Y+b.H/2, 0, 0.5)
			}
		}
	}

	return dc.EncodePNG(w)
}
