package charts

import (
	"fmt"
	"image/color"
	"io"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

// HistogramOptions controls label-count histogram export.
type HistogramOptions struct {
	Path   string
	Format string
	Title  string
	Stage  model.Stage
	// Counts maps category keys to label counts. Unsure renders as its
	// own bar keyed by the empty category.
	Counts map[model.Category]int
}

const (
	histWidth  = 640
	histHeight = 420
	histPad    = 56.0
	histHeader = 72.0
)

type histBar struct {
	Label string
	Count int
	Color color.RGBA
}

// SaveHistogram renders one bar per category of the stage, in canonical
// vocabulary order, with an unsure bar last.
func SaveHistogram(opts HistogramOptions) error {
	format, err := ResolveFormat(&opts.Path, opts.Format)
	if err != nil {
		return err
	}
	file, err := createOutput(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	return RenderHistogram(file, format, opts)
}

// RenderHistogram writes the histogram to w in the given format.
func RenderHistogram(w io.Writer, format Format, opts HistogramOptions) error {
	defer metrics.Timer(metrics.ChartRender)()

	if !opts.Stage.Valid() {
		return fmt.Errorf("unknown stage %q", opts.Stage)
	}
	bars := histogramBars(opts)
	switch format {
	case FormatSVG:
		return renderHistogramSVG(w, opts, bars)
	default:
		return renderHistogramPNG(w, opts, bars)
	}
}

func histogramBars(opts HistogramOptions) []histBar {
	var bars []histBar
	for _, info := range model.Categories(opts.Stage) {
		bars = append(bars, histBar{
			Label: info.Display,
			Count: opts.Counts[info.Key],
			Color: CategoryColor(opts.Stage, info.Key),
		})
	}
	bars = append(bars, histBar{Label: "Unsure", Count: opts.Counts[""], Color: colorUnsure})
	return bars
}

func histTitle(opts HistogramOptions) string {
	if opts.Title != "" {
		return opts.Title
	}
	return fmt.Sprintf("Label counts (%s stage)", opts.Stage)
}

func maxCount(bars []histBar) int {
	max := 1
	for _, b := range bars {
		if b.Count > max {
			max = b.Count
		}
	}
	return max
}

func renderHistogramSVG(w io.Writer, opts HistogramOptions, bars []histBar) error {
	canvas := svg.New(w)
	canvas.Start(histWidth, histHeight)
	canvas.Rect(0, 0, histWidth, histHeight, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, histWidth-32, int(histHeader)-24, 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(32, 44, truncate(histTitle(opts), 60),
		fmt.Sprintf("fill:%s;font-size:15px;font-family:monospace;font-weight:bold", css(colorText)))

	plotW := float64(histWidth) - 2*histPad
	plotH := float64(histHeight) - histHeader - 2*histPad
	baseline := histHeader + histPad + plotH
	slot := plotW / float64(len(bars))
	barW := slot * 0.6
	max := maxCount(bars)

	canvas.Line(int(histPad), int(baseline), int(histPad+plotW), int(baseline),
		fmt.Sprintf("stroke:%s;stroke-width:1", css(colorAxis)))

	for i, b := range bars {
		h := plotH * float64(b.Count) / float64(max)
		x := histPad + float64(i)*slot + (slot-barW)/2
		y := baseline - h
		canvas.Rect(int(x), int(y), int(barW), int(h),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(b.Color), css(colorStroke)))
		canvas.Text(int(x+barW/2), int(y)-6, fmt.Sprintf("%d", b.Count),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:middle", css(colorText)))
		canvas.Text(int(x+barW/2), int(baseline)+16, truncate(b.Label, 14),
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;text-anchor:middle", css(colorSubtle)))
	}

	canvas.End()
	return nil
}

func renderHistogramPNG(w io.Writer, opts HistogramOptions, bars []histBar) error {
	dc := gg.NewContext(histWidth, histHeight)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, histWidth-32, histHeader-24, 10)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(truncate(histTitle(opts), 60), 32, 40, 0, 0.5)

	plotW := float64(histWidth) - 2*histPad
	plotH := float64(histHeight) - histHeader - 2*histPad
	baseline := histHeader + histPad + plotH
	slot := plotW / float64(len(bars))
	barW := slot * 0.6
	max := maxCount(bars)

	dc.SetColor(colorAxis)
	dc.SetLineWidth(1)
	dc.DrawLine(histPad, baseline, histPad+plotW, baseline)
	dc.Stroke()

	for i, b := range bars {
		h := plotH * float64(b.Count) / float64(max)
		x := histPad + float64(i)*slot + (slot-barW)/2
		y := baseline - h
		dc.SetColor(b.Color)
		dc.DrawRectangle(x, y, barW, h)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.DrawRectangle(x, y, barW, h)
		dc.Stroke()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(fmt.Sprintf("%d", b.Count), x+barW/2, y-8, 0.5, 0.5)
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(truncate(b.Label, 14), x+barW/2, baseline+12, 0.5, 0.5)
	}

	return dc.EncodePNG(w)
}
