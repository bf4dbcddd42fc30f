// Package loader reads triagemap data bundles: JSONL files holding
// features, projection points, and classifier margins. One JSON object per
// line; malformed or invalid lines are skipped with a warning instead of
// failing the whole load, so a partially corrupt export still opens.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/triagemap/pkg/metrics"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

// DataDirEnvVar overrides the default data directory when set.
const DataDirEnvVar = "TM_DATA_DIR"

// Canonical file names inside a data directory.
const (
	FeaturesFile    = "features.jsonl"
	ProjectionsFile = "projections.jsonl"
	MarginsFile     = "margins.jsonl"
)

// DefaultMaxBufferSize caps a single JSONL line at 10MB.
const DefaultMaxBufferSize = 1024 * 1024 * 10

// GetDataDir resolves the data directory: TM_DATA_DIR if set, otherwise
// .triagemap under root (or the current directory when root is empty).
func GetDataDir(root string) (string, error) {
	if envDir := os.Getenv(DataDirEnvVar); envDir != "" {
		return envDir, nil
	}
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}
	return filepath.Join(root, ".triagemap"), nil
}

// ParseOptions configures JSONL parsing.
type ParseOptions struct {
	// WarningHandler receives skip warnings. Nil prints to stderr, except
	// under TM_ROBOT=1 where warnings are suppressed.
	WarningHandler func(string)

	// BufferSize caps the line length in bytes. Longer lines are skipped.
	// Zero means DefaultMaxBufferSize.
	BufferSize int
}

func (o ParseOptions) warn() func(string) {
	if o.WarningHandler != nil {
		return o.WarningHandler
	}
	if os.Getenv("TM_ROBOT") == "1" {
		return func(string) {}
	}
	return func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
}

// LoadFeatures reads features from a JSONL file.
func LoadFeatures(path string) ([]model.Feature, error) {
	return LoadFeaturesWithOptions(path, ParseOptions{})
}

// LoadFeaturesWithOptions reads features with custom options.
func LoadFeaturesWithOptions(path string, opts ParseOptions) ([]model.Feature, error) {
	f, err := openDataFile(path, "features")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseFeatures(f, opts)
}

// ParseFeatures parses feature JSONL from a reader. Malformed lines,
// features failing validation, and duplicate IDs are skipped with warnings.
func ParseFeatures(r io.Reader, opts ParseOptions) ([]model.Feature, error) {
	defer metrics.Timer(metrics.JSONLParse)()
	warn := opts.warn()
	seen := make(map[int]bool)
	var out []model.Feature
	err := forEachLine(r, opts, func(lineNum int, line []byte) {
		var feat model.Feature
		if err := json.Unmarshal(line, &feat); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			return
		}
		if err := feat.Validate(); err != nil {
			warn(fmt.Sprintf("skipping invalid feature on line %d: %v", lineNum, err))
			return
		}
		if seen[feat.ID] {
			warn(fmt.Sprintf("skipping duplicate feature %d on line %d", feat.ID, lineNum))
			return
		}
		seen[feat.ID] = true
		out = append(out, feat)
	})
	return out, err
}

// LoadPoints reads projection points from a JSONL file. Coordinate
// validation (finiteness, domain membership) is the grid builder's job;
// the loader only requires well-formed JSON.
func LoadPoints(path string) ([]model.Point, error) {
	return LoadPointsWithOptions(path, ParseOptions{})
}

// LoadPointsWithOptions reads points with custom options.
func LoadPointsWithOptions(path string, opts ParseOptions) ([]model.Point, error) {
	f, err := openDataFile(path, "projections")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePoints(f, opts)
}

// ParsePoints parses projection point JSONL from a reader.
func ParsePoints(r io.Reader, opts ParseOptions) ([]model.Point, error) {
	defer metrics.Timer(metrics.JSONLParse)()
	warn := opts.warn()
	var out []model.Point
	err := forEachLine(r, opts, func(lineNum int, line []byte) {
		var pt model.Point
		if err := json.Unmarshal(line, &pt); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			return
		}
		if pt.ID < 0 {
			warn(fmt.Sprintf("skipping point with negative feature_id on line %d", lineNum))
			return
		}
		out = append(out, pt)
	})
	return out, err
}

// LoadMargins reads classifier margins from a JSONL file.
func LoadMargins(path string) ([]model.Margin, error) {
	return LoadMarginsWithOptions(path, ParseOptions{})
}

// LoadMarginsWithOptions reads margins with custom options.
func LoadMarginsWithOptions(path string, opts ParseOptions) ([]model.Margin, error) {
	f, err := openDataFile(path, "margins")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseMargins(f, opts)
}

// ParseMargins parses margin JSONL from a reader. Margins for unknown
// stages or with categories outside the stage vocabulary are skipped.
func ParseMargins(r io.Reader, opts ParseOptions) ([]model.Margin, error) {
	defer metrics.Timer(metrics.JSONLParse)()
	warn := opts.warn()
	var out []model.Margin
	err := forEachLine(r, opts, func(lineNum int, line []byte) {
		var m model.Margin
		if err := json.Unmarshal(line, &m); err != nil {
			warn(fmt.Sprintf("skipping malformed JSON on line %d: %v", lineNum, err))
			return
		}
		if !m.Stage.Valid() {
			warn(fmt.Sprintf("skipping margin with unknown stage %q on line %d", m.Stage, lineNum))
			return
		}
		for cat := range m.Values {
			if !model.ValidCategory(m.Stage, cat) {
				warn(fmt.Sprintf("skipping margin with category %q outside stage %s on line %d", cat, m.Stage, lineNum))
				return
			}
		}
		out = append(out, m)
	})
	return out, err
}

func openDataFile(path, kind string) (*os.File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no %s file at %s", kind, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", kind, err)
	}
	return f, nil
}

// forEachLine drives line-oriented parsing: BOM stripping on the first
// line, blank-line skipping, and over-long-line recovery.
func forEachLine(r io.Reader, opts ParseOptions, fn func(lineNum int, line []byte)) error {
	maxCapacity := opts.BufferSize
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxBufferSize
	}
	warn := opts.warn()
	reader := bufio.NewReaderSize(r, maxCapacity)

	lineNum := 0
	for {
		lineNum++
		line, isPrefix, err := reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("error reading stream at line %d: %w", lineNum, err)
		}

		if isPrefix {
			warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", lineNum, maxCapacity))
			for isPrefix {
				_, isPrefix, err = reader.ReadLine()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return fmt.Errorf("error skipping long line at line %d: %w", lineNum, err)
				}
			}
			continue
		}

		if len(line) == 0 {
			continue
		}
		if lineNum == 1 {
			line = stripBOM(line)
		}
		fn(lineNum, line)
	}
}

func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
