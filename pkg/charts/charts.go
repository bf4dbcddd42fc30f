// Package charts renders static triage visuals (SVG or PNG): the triangular
// decision-space map, per-category histograms, activation radar plots, and
// the cross-stage flow chart. The visual language stays minimal so exported
// snapshots can be read without auxiliary docs.
package charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// Format is a supported output format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ResolveFormat normalizes an explicit format or infers one from the output
// path extension, defaulting to SVG. A path without an extension gets the
// resolved format's extension appended.
func ResolveFormat(path *string, format string) (Format, error) {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	if f == "" {
		switch strings.ToLower(filepath.Ext(*path)) {
		case ".svg":
			f = "svg"
		case ".png":
			f = "png"
		default:
			f = "svg"
		}
	}
	switch Format(f) {
	case FormatSVG, FormatPNG:
	default:
		return "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if *path != "" && filepath.Ext(*path) == "" {
		*path = *path + "." + f
	}
	return Format(f), nil
}

func createOutput(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create parent dir: %w", err)
		}
	}
	return os.Create(path)
}

// --- palette ---------------------------------------------------------------

var (
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorLegendBG = color.RGBA{0xee, 0xee, 0xee, 0xff}
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorGridLine = color.RGBA{0xb0, 0xbe, 0xc5, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorUnsure   = color.RGBA{0x9e, 0x9e, 0x9e, 0xff}
	colorAxis     = color.RGBA{0x78, 0x90, 0x9c, 0xff}
)

// categoryPalette is indexed by model.CategoryInfo.PaletteIndex.
var categoryPalette = []color.RGBA{
	{0x66, 0xbb, 0x6a, 0xff}, // green
	{0xef, 0x53, 0x50, 0xff}, // red
	{0xff, 0xa7, 0x26, 0xff}, // amber
	{0x42, 0xa5, 0xf5, 0xff}, // blue
	{0xab, 0x47, 0xbc, 0xff}, // purple
}

// CategoryColor returns the palette color for a category of the given
// stage; unknown categories and the unsure state render grey.
func CategoryColor(stage model.Stage, cat model.Category) color.RGBA {
	for _, info := range model.Categories(stage) {
		if info.Key == cat {
			return categoryPalette[info.PaletteIndex%len(categoryPalette)]
		}
	}
	return colorUnsure
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func fade(c color.RGBA, alpha float64) color.RGBA {
	blend := func(v uint8) uint8 {
		return uint8(float64(v)*alpha + 255*(1-alpha))
	}
	return color.RGBA{blend(c.R), blend(c.G), blend(c.B), 0xff}
}
