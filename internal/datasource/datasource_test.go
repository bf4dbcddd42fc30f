package datasource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vanderheijden86/triagemap/pkg/labeling"
	"github.com/vanderheijden86/triagemap/pkg/loader"
	"github.com/vanderheijden86/triagemap/pkg/model"
)

func writeBundle(t *testing.T, dir string, withProjections, withMargins bool) {
	t.Helper()
	features := `{"id":0,"explanation":"fires on dates"}` + "\n" +
		`{"id":1,"explanation":"fires on numerals"}` + "\n" +
		`{"id":2,"explanation":"fires on code"}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, loader.FeaturesFile), []byte(features), 0o644); err != nil {
		t.Fatal(err)
	}
	if withProjections {
		points := `{"feature_id":0,"x":0.5,"y":0.29}` + "\n" +
			`{"feature_id":1,"x":0.4,"y":0.2}` + "\n" +
			`{"feature_id":99,"x":0.3,"y":0.1}` + "\n"
		if err := os.WriteFile(filepath.Join(dir, loader.ProjectionsFile), []byte(points), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if withMargins {
		margins := `{"feature_id":0,"stage":"split","margins":{"single-behavior":0.8,"mixed-behavior":-0.3}}` + "\n"
		if err := os.WriteFile(filepath.Join(dir, loader.MarginsFile), []byte(margins), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscoverBundles(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, true, false)
	empty := t.TempDir()

	bundles, err := DiscoverBundles(DiscoveryOptions{DataDir: dir, ExtraDirs: []string{empty}})
	if err != nil {
		t.Fatalf("DiscoverBundles: %v", err)
	}
	if len(bundles) != 1 {
		t.Fatalf("got %d bundles, want 1", len(bundles))
	}
	b := bundles[0]
	if b.FeaturesPath == "" || b.ProjectionsPath == "" {
		t.Fatalf("bundle paths incomplete: %+v", b)
	}
	if b.MarginsPath != "" {
		t.Fatal("margins path set for absent file")
	}
}

func TestFreshBundleSessionsPersist(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, false, false)

	b, ok := inspectDir(dir)
	if !ok {
		t.Fatal("bundle not recognized")
	}
	// No sessions.db yet; the bundle still carries the path saves will use.
	if want := filepath.Join(b.Dir, SessionDBName); b.SessionDBPath != want {
		t.Fatalf("SessionDBPath = %q, want %q", b.SessionDBPath, want)
	}

	store, err := OpenSessionStore(b.SessionDBPath)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	h := labeling.NewHistory(labeling.NewState(model.StageSplit, []int{0, 1, 2}))
	if err := store.Save(SavedSession{ID: "first", Stage: model.StageSplit, Ledgers: map[model.Stage]*labeling.History{model.StageSplit: h}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	store.Close()

	if _, err := os.Stat(b.SessionDBPath); err != nil {
		t.Fatalf("sessions.db not created in bundle dir: %v", err)
	}

	reopened, err := OpenSessionStore(b.SessionDBPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	saved, err := reopened.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if saved == nil || saved.ID != "first" {
		t.Fatalf("saved session lost across reopen: %+v", saved)
	}
}

func TestSelectBundlePrefersProjections(t *testing.T) {
	old := Bundle{Dir: "a", ProjectionsPath: "a/projections.jsonl", ModTime: time.Unix(100, 0)}
	fresh := Bundle{Dir: "b", ModTime: time.Unix(200, 0)}
	got, err := SelectBundle([]Bundle{fresh, old})
	if err != nil {
		t.Fatalf("SelectBundle: %v", err)
	}
	if got.Dir != "a" {
		t.Fatalf("selected %s, want the one with projections", got.Dir)
	}

	if _, err := SelectBundle(nil); err == nil {
		t.Fatal("empty bundle list should be an error")
	}
}

func TestLoadBundleDropsUnknownPoints(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, true, true)

	b, ok := inspectDir(dir)
	if !ok {
		t.Fatal("bundle not recognized")
	}
	data, err := LoadBundle(context.Background(), b)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if len(data.Features) != 3 {
		t.Fatalf("got %d features", len(data.Features))
	}
	// Point for feature 99 references nothing in features.jsonl.
	if len(data.Points) != 2 {
		t.Fatalf("got %d points, want 2", len(data.Points))
	}
	if len(data.MarginsForStage(model.StageSplit)) != 1 {
		t.Fatal("split margins missing")
	}
	if len(data.MarginsForStage(model.StageCause)) != 0 {
		t.Fatal("unexpected cause margins")
	}
}

func TestSessionStorePragmas(t *testing.T) {
	store, err := OpenSessionStore(filepath.Join(t.TempDir(), SessionDBName))
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer store.Close()

	var mode string
	if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
	var timeout int
	if err := store.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Fatalf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), SessionDBName)
	store, err := OpenSessionStore(path)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer store.Close()

	h := labeling.NewHistory(labeling.NewState(model.StageSplit, []int{0, 1, 2}))
	h.SaveCurrentState()
	if err := h.State().Set(0, model.Manual(model.SplitSingle)); err != nil {
		t.Fatal(err)
	}
	h.CreateCommit(labeling.KindTag)

	sess := SavedSession{
		ID:      "sess-1",
		Stage:   model.StageSplit,
		Ledgers: map[model.Stage]*labeling.History{model.StageSplit: h},
	}
	if err := store.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load("sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Stage != model.StageSplit {
		t.Fatalf("stage = %s", got.Stage)
	}
	ledger, ok := got.Ledgers[model.StageSplit]
	if !ok {
		t.Fatal("split ledger missing")
	}
	if ledger.Len() != 2 || ledger.Cursor() != 1 {
		t.Fatalf("ledger len=%d cursor=%d", ledger.Len(), ledger.Cursor())
	}
	rec, ok := ledger.State().Get(0)
	if !ok || rec.Category != model.SplitSingle {
		t.Fatalf("restored label = %+v", rec)
	}
}

func TestSessionStoreOverwriteAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), SessionDBName)
	store, err := OpenSessionStore(path)
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer store.Close()

	h := labeling.NewHistory(labeling.NewState(model.StageSplit, []int{0}))
	base := SavedSession{
		ID:      "sess-1",
		Stage:   model.StageSplit,
		SavedAt: time.Unix(100, 0).UTC(),
		Ledgers: map[model.Stage]*labeling.History{model.StageSplit: h},
	}
	if err := store.Save(base); err != nil {
		t.Fatal(err)
	}

	// Saving again with a later stage replaces the row, not duplicates it.
	base.Stage = model.StageQuality
	base.SavedAt = time.Unix(200, 0).UTC()
	base.Ledgers[model.StageQuality] = labeling.NewHistory(labeling.NewState(model.StageQuality, []int{0}))
	if err := store.Save(base); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Stage != model.StageQuality {
		t.Fatalf("sessions = %+v", sessions)
	}

	latest, err := store.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if latest == nil || len(latest.Ledgers) != 2 {
		t.Fatalf("latest = %+v", latest)
	}

	if err := store.Delete("sess-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete("sess-1"); err == nil {
		t.Fatal("double delete should report not found")
	}
	latest, err = store.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest after delete: %v", err)
	}
	if latest != nil {
		t.Fatal("expected no sessions after delete")
	}
}
