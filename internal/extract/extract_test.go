package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/efebarandurmaz/lineage/internal/classify"
	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
	"github.com/efebarandurmaz/lineage/internal/sources"
	"github.com/efebarandurmaz/lineage/internal/vcs"
)

const settingsCpp = `#define COMMON_SETTINGS(DECLARE, DECLARE_WITH_ALIAS) \
    DECLARE(UInt64, max_threads, 0, "Threads.", 0) \
    DECLARE(Bool, allow_x, false, "Only has an effect in ClickHouse Cloud.", EXPERIMENTAL) \
    DECLARE(UInt64, short_call, 1) \
    DECLARE(UInt64, max_threads, 8, "Redeclared.", IMPORTANT) \

#define OBSOLETE_SETTINGS(M, ALIAS) \
    MAKE_OBSOLETE(M, Bool, gone, 0) \
`

var settingsKind = sources.Kind{
	Name:       "settings",
	Path:       "src/Core/Settings.cpp",
	Macro:      "COMMON_SETTINGS",
	Terminator: "OBSOLETE_SETTINGS",
	DocsBase:   "https://example.com/settings",
}

func newExtractor(repo vcs.Repository, logs *bytes.Buffer) *Extractor {
	return &Extractor{
		Repo:       repo,
		Classifier: &classify.Classifier{},
		Logger:     slog.New(slog.NewTextHandler(logs, nil)),
	}
}

func TestExtract_OK(t *testing.T) {
	repo := vcs.NewMemory()
	repo.Commit("r1", time.Unix(1, 0), map[string]string{settingsKind.Path: settingsCpp})

	var logs bytes.Buffer
	snap, out := newExtractor(repo, &logs).Extract(context.Background(), "r1", settingsKind)
	if out.Status != StatusOK || out.Err != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Declarations != 2 || out.Skipped != 1 || out.Duplicates != 1 {
		t.Errorf("counts = %+v", out)
	}

	mt, ok := snap.Get("max_threads")
	if !ok {
		t.Fatal("max_threads missing")
	}
	if mt.Default != "8" || !mt.Important {
		t.Errorf("last declaration should win, got %+v", mt)
	}
	if mt.DocsURL != "https://example.com/settings#max_threads" {
		t.Errorf("docs url = %q", mt.DocsURL)
	}
	if names := entryNames(snap); strings.Join(names, ",") != "max_threads,allow_x" {
		t.Errorf("order = %v", names)
	}
	ax, _ := snap.Get("allow_x")
	if !ax.CloudOnly || ax.Tier != ir.TierExperimental || ax.Category != ir.Uncategorized {
		t.Errorf("allow_x = %+v", ax)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected warnings: %s", logs.String())
	}
}

func TestExtract_Degraded(t *testing.T) {
	repo := vcs.NewMemory()
	repo.Commit("no-file", time.Unix(1, 0), map[string]string{})
	repo.Commit("no-block", time.Unix(2, 0), map[string]string{settingsKind.Path: "int main() {}\n"})
	repo.Commit("broken", time.Unix(3, 0), map[string]string{
		settingsKind.Path: "#define COMMON_SETTINGS(M, ALIAS) \\\n    DECLARE(UInt64, a, 0, \"x\", 0 \\\n",
	})
	repo.Commit("flaky", time.Unix(4, 0), map[string]string{settingsKind.Path: settingsCpp})
	repo.FailFetch("flaky", errors.New("connection reset"))

	tests := []struct {
		rev  string
		want Status
	}{
		{"no-file", StatusMissingSource},
		{"unknown", StatusMissingSource},
		{"no-block", StatusMissingBlock},
		{"broken", StatusParseError},
		{"flaky", StatusFetchError},
	}
	for _, tt := range tests {
		t.Run(tt.rev, func(t *testing.T) {
			var logs bytes.Buffer
			snap, out := newExtractor(repo, &logs).Extract(context.Background(), tt.rev, settingsKind)
			if out.Status != tt.want {
				t.Fatalf("status = %s, want %s (err %v)", out.Status, tt.want, out.Err)
			}
			if snap == nil || snap.Len() != 0 {
				t.Errorf("expected empty snapshot, got %d entries", snap.Len())
			}
			for _, attr := range []string{"level=WARN", "revision=" + tt.rev, "kind=settings", "path=src/Core/Settings.cpp"} {
				if !strings.Contains(logs.String(), attr) {
					t.Errorf("warning missing %q: %s", attr, logs.String())
				}
			}
		})
	}
}

func TestExtract_UsesCache(t *testing.T) {
	repo := vcs.NewMemory()
	repo.Commit("r1", time.Unix(1, 0), map[string]string{settingsKind.Path: settingsCpp})
	repo.Commit("r2", time.Unix(2, 0), map[string]string{settingsKind.Path: settingsCpp})

	memo, err := snapshot.NewMemo(16, nil)
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	ex := newExtractor(repo, &logs)
	ex.Cache = memo

	_, first := ex.Extract(context.Background(), "r1", settingsKind)
	snap, second := ex.Extract(context.Background(), "r2", settingsKind)
	if first.Cached || !second.Cached {
		t.Errorf("cached = %v, %v", first.Cached, second.Cached)
	}
	if second.Declarations != first.Declarations || second.Skipped != first.Skipped {
		t.Errorf("cached outcome differs: %+v vs %+v", second, first)
	}
	if _, ok := snap.Get("allow_x"); !ok {
		t.Error("cached snapshot missing allow_x")
	}
}

func TestExtract_CachesMissingBlock(t *testing.T) {
	repo := vcs.NewMemory()
	repo.Commit("r1", time.Unix(1, 0), map[string]string{settingsKind.Path: "// empty\n"})
	memo, err := snapshot.NewMemo(16, nil)
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	ex := newExtractor(repo, &logs)
	ex.Cache = memo

	ex.Extract(context.Background(), "r1", settingsKind)
	_, out := ex.Extract(context.Background(), "r1", settingsKind)
	if !out.Cached || out.Status != StatusMissingBlock {
		t.Errorf("outcome = %+v", out)
	}
}

func entryNames(s *ir.Snapshot) []string {
	var names []string
	for _, e := range s.Entries() {
		names = append(names, e.Name)
	}
	return names
}

func TestOutcome_DurationUnitInJSON(t *testing.T) {
	data, err := json.Marshal(Outcome{Status: StatusOK, Duration: 2 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"duration_ns":2000000`) {
		t.Errorf("json = %s", data)
	}
}
