package server

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/triagemap/internal/datasource"
	"github.com/vanderheijden86/triagemap/pkg/model"
	"github.com/vanderheijden86/triagemap/pkg/store"
)

func newTestServer(t *testing.T, n int) (*Server, *store.Store) {
	t.Helper()
	features := make([]model.Feature, 0, n)
	points := make([]model.Point, 0, n)
	cx, cy := 0.5, math.Sqrt(3)/6
	for i := 0; i < n; i++ {
		features = append(features, model.Feature{ID: i, Explanation: "feat"})
		r := 0.02 + 0.2*float64(i)/float64(n)
		a := float64(i) * 2.39996
		points = append(points, model.Point{ID: i, X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)})
	}
	st := store.New(features)
	if _, err := st.Apply(store.SetPoints{Points: points}); err != nil {
		t.Fatal(err)
	}

	margins := make([]model.Margin, 0, n)
	for i := 0; i < n; i++ {
		margins = append(margins, model.Margin{
			FeatureID: i,
			Stage:     model.StageSplit,
			Values: map[model.Category]float64{
				model.SplitSingle: 0.5 - float64(i%2),
				model.SplitMixed:  float64(i%2) - 0.5,
			},
		})
	}
	return New(st, Options{Margins: margins}), st
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, 4)
	w := do(t, s, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if decode(t, w)["status"] != "ok" {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestGridEndpoint(t *testing.T) {
	s, _ := newTestServer(t, 40)
	w := do(t, s, http.MethodGet, "/api/grid", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["total"].(float64) != 40 {
		t.Fatalf("total = %v", body["total"])
	}
	if len(body["leaves"].([]any)) == 0 {
		t.Fatal("no leaves returned")
	}

	w = do(t, s, http.MethodPost, "/api/grid/threshold", map[string]int{"threshold": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("threshold status = %d: %s", w.Code, w.Body.String())
	}
	w = do(t, s, http.MethodPost, "/api/grid/threshold", map[string]int{"threshold": 0})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad threshold status = %d", w.Code)
	}
}

func TestTagAndCommits(t *testing.T) {
	s, _ := newTestServer(t, 8)

	w := do(t, s, http.MethodPost, "/api/labels", map[string]any{
		"ids": []int{0, 1, 2}, "category": "single-behavior",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("tag status = %d: %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/api/labels", nil)
	body := decode(t, w)
	if len(body["labels"].(map[string]any)) != 3 {
		t.Fatalf("labels = %v", body["labels"])
	}

	w = do(t, s, http.MethodGet, "/api/commits", nil)
	body = decode(t, w)
	if len(body["commits"].([]any)) != 2 || body["cursor"].(float64) != 1 {
		t.Fatalf("commits = %s", w.Body.String())
	}

	// Cross-stage category is a client error.
	w = do(t, s, http.MethodPost, "/api/labels", map[string]any{
		"ids": []int{0}, "category": "noise",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("cross-stage tag status = %d", w.Code)
	}
}

func TestUndoRedoEndpoints(t *testing.T) {
	s, _ := newTestServer(t, 4)
	do(t, s, http.MethodPost, "/api/labels", map[string]any{"ids": []int{0}, "category": "mixed-behavior"})

	if w := do(t, s, http.MethodPost, "/api/undo", nil); w.Code != http.StatusOK {
		t.Fatalf("undo status = %d", w.Code)
	}
	w := do(t, s, http.MethodGet, "/api/labels", nil)
	if len(decode(t, w)["labels"].(map[string]any)) != 0 {
		t.Fatal("undo did not clear label")
	}
	if w := do(t, s, http.MethodPost, "/api/redo", nil); w.Code != http.StatusOK {
		t.Fatalf("redo status = %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/api/labels", nil)
	if len(decode(t, w)["labels"].(map[string]any)) != 1 {
		t.Fatal("redo did not reapply label")
	}
}

func TestRestoreValidation(t *testing.T) {
	s, _ := newTestServer(t, 4)
	do(t, s, http.MethodPost, "/api/labels", map[string]any{"ids": []int{0}, "category": "mixed-behavior"})

	if w := do(t, s, http.MethodPost, "/api/commits/restore", map[string]int{"index": 9}); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out-of-range restore status = %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/api/commits/restore", map[string]int{"index": 0}); w.Code != http.StatusOK {
		t.Fatalf("restore status = %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/api/commits/restore", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing index status = %d", w.Code)
	}
}

func TestAutoLabelRequiresReadiness(t *testing.T) {
	s, _ := newTestServer(t, 12)

	// No manual labels yet; the unentered stage reports every category
	// as fully missing.
	w0 := do(t, s, http.MethodPost, "/api/labels/auto", nil)
	if w0.Code != http.StatusConflict {
		t.Fatalf("unready auto-label status = %d", w0.Code)
	}
	missing, ok := decode(t, w0)["missing"].(map[string]any)
	if !ok {
		t.Fatalf("missing counts absent: %s", w0.Body.String())
	}
	for _, cat := range model.CategoryKeys(model.StageSplit) {
		if got, want := missing[string(cat)], float64(3); got != want {
			t.Errorf("missing[%s] = %v, want %v", cat, got, want)
		}
	}

	// Three manual labels per split category unlocks it.
	do(t, s, http.MethodPost, "/api/labels", map[string]any{"ids": []int{0, 2, 4}, "category": "single-behavior"})
	do(t, s, http.MethodPost, "/api/labels", map[string]any{"ids": []int{1, 3, 5}, "category": "mixed-behavior"})

	w := do(t, s, http.MethodPost, "/api/labels/auto", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("auto-label status = %d: %s", w.Code, w.Body.String())
	}
	w = do(t, s, http.MethodGet, "/api/labels", nil)
	if len(decode(t, w)["labels"].(map[string]any)) != 12 {
		t.Fatalf("labels after auto = %s", w.Body.String())
	}
}

func TestStageSwitch(t *testing.T) {
	s, _ := newTestServer(t, 4)
	if w := do(t, s, http.MethodPost, "/api/stage", map[string]string{"stage": "quality"}); w.Code != http.StatusOK {
		t.Fatalf("stage switch status = %d", w.Code)
	}
	w := do(t, s, http.MethodGet, "/api/state", nil)
	if decode(t, w)["stage"] != "quality" {
		t.Fatalf("state = %s", w.Body.String())
	}
	if w := do(t, s, http.MethodPost, "/api/stage", map[string]string{"stage": "bogus"}); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad stage status = %d", w.Code)
	}
}

func TestExportMap(t *testing.T) {
	s, _ := newTestServer(t, 30)
	w := do(t, s, http.MethodGet, "/api/export/map", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("content type = %s", ct)
	}
	if !strings.Contains(w.Body.String(), "<svg") {
		t.Fatal("export body is not SVG")
	}

	w = do(t, s, http.MethodGet, "/api/export/map?format=png", nil)
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("png export status = %d", w.Code)
	}
}

func TestSessionEndpointsUnconfigured(t *testing.T) {
	s, _ := newTestServer(t, 4)
	if w := do(t, s, http.MethodPost, "/api/session/save", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("save status = %d", w.Code)
	}
	if w := do(t, s, http.MethodPost, "/api/session/load", map[string]any{}); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("load status = %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/sessions", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("list status = %d", w.Code)
	}
}

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	sessions, err := datasource.OpenSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("OpenSessionStore: %v", err)
	}
	defer sessions.Close()

	base, st := newTestServer(t, 8)
	s := New(st, Options{Sessions: sessions, Margins: base.margins})

	if _, err := st.Apply(store.TagOne{ID: 2, Category: model.SplitSingle}); err != nil {
		t.Fatalf("TagOne: %v", err)
	}
	if w := do(t, s, http.MethodPost, "/api/session/save", nil); w.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", w.Code, w.Body.String())
	}

	// Wipe the label, then load the saved session back.
	if _, err := st.Apply(store.Undo{}); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if w := do(t, s, http.MethodPost, "/api/session/load", map[string]any{}); w.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", w.Code, w.Body.String())
	}
	st.View(func(sess *store.Session) {
		rec, ok := sess.Histories[model.StageSplit].State().Get(2)
		if !ok || rec.Category != model.SplitSingle {
			t.Errorf("restored label = %+v ok=%v", rec, ok)
		}
	})

	if w := do(t, s, http.MethodPost, "/api/session/load", map[string]any{"id": "nope"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", w.Code)
	}
}
