package charts

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/spatial"
)

func testGrid(t *testing.T, n int) *spatial.Grid {
	t.Helper()
	pts := make([]model.Point, 0, n)
	cx, cy := 0.5, math.Sqrt(3)/6
	for i := 0; i < n; i++ {
		r := 0.02 + 0.2*float64(i)/float64(n)
		a := float64(i) * 2.39996
		pts = append(pts, model.Point{ID: i, X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)})
	}
	return spatial.BuildAuto(pts)
}

func readOutput(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if len(data) == 0 {
		t.Fatalf("%s is empty", path)
	}
	return data
}

func TestSaveTriangleMapSVG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.svg")
	err := SaveTriangleMap(TriangleMapOptions{
		Path:  path,
		Stage: model.StageQuality,
		Grid:  testGrid(t, 60),
		Labels: map[int]model.LabelRecord{
			0: model.Manual(model.QualityGood),
			1: model.Auto(model.QualityBad),
		},
	})
	if err != nil {
		t.Fatalf("SaveTriangleMap: %v", err)
	}
	svg := string(readOutput(t, path))
	if !strings.Contains(svg, "<svg") {
		t.Fatal("output is not SVG")
	}
	if !strings.Contains(svg, "Decision map (quality stage)") {
		t.Fatal("default title missing")
	}
	// One circle per gridded point, at the integer point radius.
	if got := strings.Count(svg, "<circle"); got != 60 {
		t.Fatalf("got %d circles, want 60", got)
	}
	if !strings.Contains(svg, `r="4"`) {
		t.Fatal("point radius missing from circles")
	}
	for _, label := range []string{"Good", "Near miss", "Bad", "Unsure"} {
		if !strings.Contains(svg, label) {
			t.Fatalf("legend missing %q", label)
		}
	}
}

func TestSaveTriangleMapPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	err := SaveTriangleMap(TriangleMapOptions{
		Path:   path,
		Format: "png",
		Stage:  model.StageSplit,
		Grid:   testGrid(t, 30),
	})
	if err != nil {
		t.Fatalf("SaveTriangleMap: %v", err)
	}
	data := readOutput(t, path)
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Fatal("output is not PNG")
	}
}

func TestSaveTriangleMapRequiresGrid(t *testing.T) {
	err := SaveTriangleMap(TriangleMapOptions{Path: "x.svg", Stage: model.StageSplit})
	if err == nil {
		t.Fatal("nil grid should be rejected")
	}
}

func TestSaveHistogram(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hist.svg")
	err := SaveHistogram(HistogramOptions{
		Path:  path,
		Stage: model.StageCause,
		Counts: map[model.Category]int{
			model.CausePatternMiss: 12,
			model.CauseNoise:       3,
			"":                     5,
		},
	})
	if err != nil {
		t.Fatalf("SaveHistogram: %v", err)
	}
	svg := string(readOutput(t, path))
	for _, want := range []string{"Pattern miss", "Noise", "Unsure", ">12<", ">5<"} {
		if !strings.Contains(svg, want) {
			t.Fatalf("histogram missing %q", want)
		}
	}
}

func TestSaveRadar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.png")
	err := SaveRadar(RadarOptions{
		Path: path,
		Axes: []RadarAxis{
			{Label: "good", Value: 0.8},
			{Label: "near-miss", Value: 0.3},
			{Label: "bad", Value: 0.5},
		},
	})
	if err != nil {
		t.Fatalf("SaveRadar: %v", err)
	}
	if !bytes.HasPrefix(readOutput(t, path), []byte("\x89PNG")) {
		t.Fatal("output is not PNG")
	}

	if err := SaveRadar(RadarOptions{Path: "r.svg", Axes: []RadarAxis{{Label: "only", Value: 1}}}); err == nil {
		t.Fatal("radar with <3 axes should be rejected")
	}
}

func TestSaveFlow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.svg")
	err := SaveFlow(FlowOptions{
		Path: path,
		Counts: map[model.Stage]map[model.Category]int{
			model.StageSplit:   {model.SplitSingle: 20, model.SplitMixed: 10},
			model.StageQuality: {model.QualityGood: 8, "": 22},
		},
	})
	if err != nil {
		t.Fatalf("SaveFlow: %v", err)
	}
	svg := string(readOutput(t, path))
	for _, want := range []string{"split (30)", "quality (30)", "cause (0)", "Unsure: 22"} {
		if !strings.Contains(svg, want) {
			t.Fatalf("flow chart missing %q", want)
		}
	}
}

func TestResolveFormat(t *testing.T) {
	path := "out"
	f, err := ResolveFormat(&path, "")
	if err != nil || f != FormatSVG || path != "out.svg" {
		t.Fatalf("f=%s path=%s err=%v", f, path, err)
	}

	path = "out.png"
	f, err = ResolveFormat(&path, "")
	if err != nil || f != FormatPNG {
		t.Fatalf("f=%s err=%v", f, err)
	}

	// An explicit format still appends the extension when missing.
	path = "out"
	f, err = ResolveFormat(&path, "png")
	if err != nil || f != FormatPNG || path != "out.png" {
		t.Fatalf("f=%s path=%s err=%v", f, path, err)
	}

	path = "chart.svg"
	f, err = ResolveFormat(&path, "png")
	if err != nil || f != FormatPNG || path != "chart.svg" {
		t.Fatalf("explicit format rewrote path: f=%s path=%s err=%v", f, path, err)
	}

	path = "out.svg"
	if _, err := ResolveFormat(&path, "webp"); err == nil {
		t.Fatal("unsupported format should be rejected")
	}
}
