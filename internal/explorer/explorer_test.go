package explorer

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/merge"
	"github.com/efebarandurmaz/lineage/internal/observability"
	"github.com/efebarandurmaz/lineage/internal/pipeline"
	"github.com/efebarandurmaz/lineage/internal/query"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
)

func entry(name, def string) ir.Entry {
	return ir.Entry{
		Declaration: ir.Declaration{Name: name, Type: "UInt64", Default: def, Description: name + "."},
		Category:    "Core",
		Tier:        ir.TierProduction,
	}
}

func snap(entries ...ir.Entry) *ir.Snapshot {
	s := ir.NewSnapshot()
	for _, e := range entries {
		s.Put(e)
	}
	return s
}

// fixture has max_threads changing default, old_setting removed and
// new_setting added between A and B.
func fixture(revs ...string) *ir.Document {
	if len(revs) == 0 {
		revs = []string{"A", "B"}
	}
	m := merge.NewMerger("settings")
	m.Fold(revs[0], snap(entry("max_threads", "0"), entry("old_setting", "1")))
	for _, rev := range revs[1:] {
		m.Fold(rev, snap(entry("max_threads", "8"), entry("new_setting", "true")))
	}
	doc := ir.NewDocument(revs)
	doc.Add(m.Finalize())
	return doc
}

func newExplorer(t *testing.T, store *Store) (*Explorer, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	e, err := New(nil, store, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, metrics
}

func do(t *testing.T, e *Explorer, method, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decoding %q: %v", method, target, w.Body.String(), err)
		}
	}
	return w.Code
}

func TestHandleVersions(t *testing.T) {
	e, _ := newExplorer(t, NewStoreFromDocument(fixture()))

	var resp VersionsResponse
	if code := do(t, e, http.MethodGet, "/api/versions", &resp); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if strings.Join(resp.Versions, ",") != "A,B" {
		t.Errorf("versions = %v", resp.Versions)
	}
	if resp.GeneratedBy != ir.GeneratedBy {
		t.Errorf("generated_by = %q", resp.GeneratedBy)
	}
	if len(resp.Kinds) != 1 || resp.Kinds[0].Settings != 3 || resp.Kinds[0].Live != 2 {
		t.Errorf("kinds = %+v", resp.Kinds)
	}
}

func TestHandleSettings(t *testing.T) {
	e, _ := newExplorer(t, NewStoreFromDocument(fixture()))

	tests := []struct {
		target string
		code   int
		count  int
	}{
		{"/api/settings/settings", http.StatusOK, 3},
		{"/api/settings/settings?present_in=A", http.StatusOK, 2},
		{"/api/settings/settings?present_in=Z", http.StatusOK, 0},
		{"/api/settings/format_settings", http.StatusNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			var resp SettingsResponse
			if code := do(t, e, http.MethodGet, tt.target, &resp); code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, code)
			}
			if resp.Count != tt.count || len(resp.Settings) != tt.count {
				t.Errorf("count = %d, settings = %d, want %d", resp.Count, len(resp.Settings), tt.count)
			}
		})
	}
}

func TestHandleSetting(t *testing.T) {
	e, _ := newExplorer(t, NewStoreFromDocument(fixture()))

	var s ir.Setting
	if code := do(t, e, http.MethodGet, "/api/settings/settings/old_setting", &s); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if s.IntroducedIn != "A" || s.RemovedIn != "B" {
		t.Errorf("lifecycle = %q..%q", s.IntroducedIn, s.RemovedIn)
	}

	if code := do(t, e, http.MethodGet, "/api/settings/settings/nope", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestHandleCurrent(t *testing.T) {
	e, _ := newExplorer(t, NewStoreFromDocument(fixture()))

	var st query.Status
	if code := do(t, e, http.MethodGet, "/api/settings/settings/old_setting/current", &st); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if st.Revision != "A" || st.Default != "1" || st.Live {
		t.Errorf("status = %+v", st)
	}

	tests := []string{
		"/api/settings/settings/nope/current",
		"/api/settings/unknown/max_threads/current",
	}
	for _, target := range tests {
		if code := do(t, e, http.MethodGet, target, nil); code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", target, code)
		}
	}
}

func TestHandleLookup(t *testing.T) {
	e, _ := newExplorer(t, NewStoreFromDocument(fixture()))

	var lifecycles []query.Lifecycle
	if code := do(t, e, http.MethodGet, "/api/lookup/max_threads", &lifecycles); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(lifecycles) != 1 {
		t.Fatalf("expected 1 lifecycle, got %d", len(lifecycles))
	}
	cur := lifecycles[0].Current
	if cur.Revision != "B" || cur.Default != "8" || !cur.Live {
		t.Errorf("current = %+v", cur)
	}

	if code := do(t, e, http.MethodGet, "/api/lookup/unknown", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestHandleDiff(t *testing.T) {
	e, metrics := newExplorer(t, NewStoreFromDocument(fixture()))

	var diff snapshot.RegistryDiff
	if code := do(t, e, http.MethodGet, "/api/diff?kind=settings&from=A&to=B", &diff); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	want := snapshot.DiffSummary{Added: 1, Removed: 1, DefaultChanged: 1}
	if diff.Summary != want {
		t.Errorf("summary = %+v, want %+v", diff.Summary, want)
	}

	// Second request is served from the diff cache.
	do(t, e, http.MethodGet, "/api/diff?kind=settings&from=A&to=B", &diff)
	if hits := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")); hits != 1 {
		t.Errorf("cache hits = %v, want 1", hits)
	}

	errs := []struct {
		target string
		code   int
	}{
		{"/api/diff?kind=settings&from=A", http.StatusBadRequest},
		{"/api/diff?kind=nope&from=A&to=B", http.StatusNotFound},
		{"/api/diff?kind=settings&from=A&to=Z", http.StatusNotFound},
	}
	for _, tt := range errs {
		if code := do(t, e, http.MethodGet, tt.target, nil); code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.target, tt.code, code)
		}
	}
}

func TestNoRegistryLoaded(t *testing.T) {
	e, _ := newExplorer(t, NewStore(filepath.Join(t.TempDir(), "missing.json")))
	if code := do(t, e, http.MethodGet, "/api/versions", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}

func TestHandleReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if _, err := pipeline.WriteFile(path, fixture("A", "B")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	store := NewStore(path)
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, _ := newExplorer(t, store)

	var before snapshot.RegistryDiff
	do(t, e, http.MethodGet, "/api/diff?kind=settings&from=A&to=B", &before)

	if _, err := pipeline.WriteFile(path, fixture("A", "B", "C")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if code := do(t, e, http.MethodPost, "/api/reload", nil); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if n, latest := store.Info(); n != 3 || latest != "C" {
		t.Fatalf("after reload: %d revisions, latest %q", n, latest)
	}

	if code := do(t, e, http.MethodGet, "/api/diff?kind=settings&from=B&to=C", nil); code != http.StatusOK {
		t.Fatalf("expected 200 for new revision, got %d", code)
	}
}

func TestHandleReload_KeepsDocumentOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if _, err := pipeline.WriteFile(path, fixture()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	store := NewStore(path)
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, _ := newExplorer(t, store)

	if err := writeRaw(path, "{not json"); err != nil {
		t.Fatal(err)
	}
	if code := do(t, e, http.MethodPost, "/api/reload", nil); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
	if n, _ := store.Info(); n != 2 {
		t.Fatalf("expected previous document to stay loaded, got %d revisions", n)
	}
}

func TestRequestMetricsAndEndpoint(t *testing.T) {
	e, metrics := newExplorer(t, NewStoreFromDocument(fixture()))

	do(t, e, http.MethodGet, "/api/settings/settings/max_threads", nil)
	do(t, e, http.MethodGet, "/api/settings/settings/nope", nil)

	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues("/api/settings/{kind}/{name}", "200")); got != 1 {
		t.Errorf("200 requests = %v", got)
	}
	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues("/api/settings/{kind}/{name}", "404")); got != 1 {
		t.Errorf("404 requests = %v", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, req)
	if !bytes.Contains(w.Body.Bytes(), []byte("lineage_api_requests_total")) {
		t.Errorf("metrics endpoint missing request counter")
	}
}

func TestCORSHeaders(t *testing.T) {
	e, _ := newExplorer(t, NewStoreFromDocument(fixture()))

	req := httptest.NewRequest(http.MethodOptions, "/api/versions", nil)
	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header")
	}
}

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
