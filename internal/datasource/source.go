// Package datasource discovers and loads triagemap data bundles, and
// persists triage sessions to SQLite. A bundle is a directory holding
// features.jsonl, projections.jsonl, and optionally margins.jsonl; the
// session database lives alongside them as sessions.db.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/triagemap/pkg/loader"
)

// SessionDBName is the session database file inside a bundle directory.
const SessionDBName = "sessions.db"

// Bundle describes one discovered data bundle directory.
type Bundle struct {
	// Dir is the absolute bundle directory path.
	Dir string `json:"dir"`
	// FeaturesPath is always set; a directory without features.jsonl is
	// not a bundle.
	FeaturesPath    string `json:"features_path"`
	ProjectionsPath string `json:"projections_path,omitempty"`
	MarginsPath     string `json:"margins_path,omitempty"`
	SessionDBPath   string `json:"session_db_path,omitempty"`
	// ModTime is the newest modification time across the bundle's files.
	ModTime time.Time `json:"mod_time"`
}

// String returns a human-readable description of the bundle.
func (b Bundle) String() string {
	parts := []string{"features"}
	if b.ProjectionsPath != "" {
		parts = append(parts, "projections")
	}
	if b.MarginsPath != "" {
		parts = append(parts, "margins")
	}
	if b.SessionDBPath != "" {
		if _, err := os.Stat(b.SessionDBPath); err == nil {
			parts = append(parts, "sessions")
		}
	}
	return fmt.Sprintf("%s (%s, mod=%s)", b.Dir, strings.Join(parts, "+"), b.ModTime.Format(time.RFC3339))
}

// DiscoveryOptions configures bundle discovery.
type DiscoveryOptions struct {
	// DataDir is the bundle directory. Empty means TM_DATA_DIR, falling
	// back to .triagemap under Root.
	DataDir string
	// Root anchors the default data directory lookup.
	Root string
	// ExtraDirs are additional candidate directories to inspect.
	ExtraDirs []string
	// Logger receives discovery log lines. Nil discards them.
	Logger func(msg string)
}

// DiscoverBundles inspects the candidate directories and returns the
// bundles found, newest first.
func DiscoverBundles(opts DiscoveryOptions) ([]Bundle, error) {
	log := opts.Logger
	if log == nil {
		log = func(string) {}
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = loader.GetDataDir(opts.Root)
		if err != nil {
			return nil, err
		}
	}

	dirs := append([]string{dataDir}, opts.ExtraDirs...)
	var bundles []Bundle
	for _, dir := range dirs {
		b, ok := inspectDir(dir)
		if !ok {
			log(fmt.Sprintf("no bundle in %s", dir))
			continue
		}
		log(fmt.Sprintf("found bundle: %s", b))
		bundles = append(bundles, b)
	}

	sort.Slice(bundles, func(i, j int) bool {
		if bundles[i].ModTime.Equal(bundles[j].ModTime) {
			return bundles[i].Dir < bundles[j].Dir
		}
		return bundles[i].ModTime.After(bundles[j].ModTime)
	})
	return bundles, nil
}

// SelectBundle picks the bundle to open: the newest one with projection
// data, else the newest overall.
func SelectBundle(bundles []Bundle) (Bundle, error) {
	if len(bundles) == 0 {
		return Bundle{}, fmt.Errorf("no data bundles discovered")
	}
	for _, b := range bundles {
		if b.ProjectionsPath != "" {
			return b, nil
		}
	}
	return bundles[0], nil
}

// inspectDir checks whether dir is a bundle and fills in its paths.
func inspectDir(dir string) (Bundle, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Bundle{}, false
	}
	b := Bundle{Dir: abs}

	featPath := filepath.Join(abs, loader.FeaturesFile)
	info, err := os.Stat(featPath)
	if err != nil || info.Size() == 0 {
		return Bundle{}, false
	}
	b.FeaturesPath = featPath
	b.ModTime = info.ModTime()

	for _, opt := range []struct {
		name string
		dst  *string
	}{
		{loader.ProjectionsFile, &b.ProjectionsPath},
		{loader.MarginsFile, &b.MarginsPath},
		{SessionDBName, &b.SessionDBPath},
	} {
		path := filepath.Join(abs, opt.name)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			*opt.dst = path
			if info.ModTime().After(b.ModTime) {
				b.ModTime = info.ModTime()
			}
		}
	}
	// The session database is created on first save; a fresh bundle
	// still gets a concrete path so saves land next to the data.
	if b.SessionDBPath == "" {
		b.SessionDBPath = filepath.Join(abs, SessionDBName)
	}
	return b, true
}
