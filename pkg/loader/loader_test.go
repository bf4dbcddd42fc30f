package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func collectWarnings() (*[]string, ParseOptions) {
	var warnings []string
	return &warnings, ParseOptions{WarningHandler: func(msg string) {
		warnings = append(warnings, msg)
	}}
}

func TestParseFeatures(t *testing.T) {
	input := strings.Join([]string{
		`{"id":0,"explanation":"fires on dates","activation_freq":0.01}`,
		``,
		`{"id":1,"explanation":"fires on numerals","layer":4,"index":17}`,
		`{not json}`,
		`{"id":1,"explanation":"duplicate id"}`,
		`{"id":2,"explanation":""}`,
	}, "\n")

	warnings, opts := collectWarnings()
	feats, err := ParseFeatures(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParseFeatures: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("got %d features, want 2", len(feats))
	}
	if feats[1].Layer != 4 || feats[1].Index != 17 {
		t.Fatalf("feature 1 = %+v", feats[1])
	}
	// Malformed line, duplicate id, empty explanation.
	if len(*warnings) != 3 {
		t.Fatalf("warnings = %v", *warnings)
	}
}

func TestParseFeaturesStripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBF" + `{"id":7,"explanation":"bom line"}`
	feats, err := ParseFeatures(strings.NewReader(input), ParseOptions{WarningHandler: func(string) {}})
	if err != nil {
		t.Fatalf("ParseFeatures: %v", err)
	}
	if len(feats) != 1 || feats[0].ID != 7 {
		t.Fatalf("got %+v", feats)
	}
}

func TestParsePointsKeepsNonFinite(t *testing.T) {
	// The grid builder owns coordinate validation; the loader passes
	// syntactically valid points through.
	input := strings.Join([]string{
		`{"feature_id":0,"x":0.5,"y":0.3}`,
		`{"feature_id":-1,"x":0,"y":0}`,
		`{"feature_id":2,"x":9.0,"y":9.0}`,
	}, "\n")

	warnings, opts := collectWarnings()
	pts, err := ParsePoints(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParsePoints: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("got %d points, want 2", len(pts))
	}
	if len(*warnings) != 1 {
		t.Fatalf("warnings = %v", *warnings)
	}
}

func TestParseMarginsRejectsCrossStageCategories(t *testing.T) {
	input := strings.Join([]string{
		`{"feature_id":0,"stage":"quality","margins":{"good":0.9,"near-miss":-0.2,"bad":-0.8}}`,
		`{"feature_id":1,"stage":"quality","margins":{"noise":1.0}}`,
		`{"feature_id":2,"stage":"bogus","margins":{"good":0.1}}`,
	}, "\n")

	warnings, opts := collectWarnings()
	margins, err := ParseMargins(strings.NewReader(input), opts)
	if err != nil {
		t.Fatalf("ParseMargins: %v", err)
	}
	if len(margins) != 1 {
		t.Fatalf("got %d margins, want 1", len(margins))
	}
	if len(*warnings) != 2 {
		t.Fatalf("warnings = %v", *warnings)
	}
}

func TestLoadFeaturesMissingFile(t *testing.T) {
	if _, err := LoadFeatures(filepath.Join(t.TempDir(), "absent.jsonl")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGetDataDirEnvOverride(t *testing.T) {
	t.Setenv(DataDirEnvVar, "/tmp/custom-data")
	dir, err := GetDataDir("/ignored")
	if err != nil {
		t.Fatalf("GetDataDir: %v", err)
	}
	if dir != "/tmp/custom-data" {
		t.Fatalf("dir = %s", dir)
	}

	os.Unsetenv(DataDirEnvVar)
	dir, err = GetDataDir("/repo")
	if err != nil {
		t.Fatalf("GetDataDir: %v", err)
	}
	if dir != filepath.Join("/repo", ".triagemap") {
		t.Fatalf("dir = %s", dir)
	}
}

func TestLoadFeaturesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FeaturesFile)
	content := `{"id":0,"explanation":"alpha"}` + "\n" + `{"id":1,"explanation":"beta"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	feats, err := LoadFeatures(path)
	if err != nil {
		t.Fatalf("LoadFeatures: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("got %d features", len(feats))
	}
}
