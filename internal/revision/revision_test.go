package revision

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/efebarandurmaz/lineage/internal/vcs"
)

const changelog = `### Table of Contents
**[ClickHouse release v25.8 LTS, 2025-08-28](#258)**<br/>
**[ClickHouse release v25.7, 2025-07-24](#257)**<br/>

### <a id="258"></a> ClickHouse release v25.8 LTS, 2025-08-28
### <a id="257"></a> ClickHouse release v25.7, 2025-07-24
### <a id="256"></a> ClickHouse release v25.6, 2025-06-26
`

func TestParseChangelog(t *testing.T) {
	minors := ParseChangelog(changelog, regexp.MustCompile(DefaultAnnouncement))
	want := []Minor{
		{"v25.8", ChannelLTS},
		{"v25.7", ChannelStable},
		{"v25.8", ChannelLTS},
		{"v25.7", ChannelStable},
		{"v25.6", ChannelStable},
	}
	if !reflect.DeepEqual(minors, want) {
		t.Errorf("minors = %+v, want %+v", minors, want)
	}
}

func TestFilterMinors(t *testing.T) {
	minors := []Minor{{"v3", ChannelLTS}, {"v2", ChannelStable}, {"v1", ChannelStable}}
	if got := FilterMinors(minors, ChannelStable, 0); len(got) != 2 || got[0].Label != "v2" {
		t.Errorf("stable = %+v", got)
	}
	if got := FilterMinors(minors, ChannelLTS, 0); len(got) != 1 || got[0].Label != "v3" {
		t.Errorf("lts = %+v", got)
	}
	if got := FilterMinors(minors, ChannelBoth, 2); len(got) != 2 || got[1].Label != "v2" {
		t.Errorf("limited = %+v", got)
	}
}

func TestParseChannel(t *testing.T) {
	for in, want := range map[string]Channel{"": ChannelBoth, "both": ChannelBoth, "LTS": ChannelLTS, "stable": ChannelStable} {
		got, err := ParseChannel(in)
		if err != nil || got != want {
			t.Errorf("ParseChannel(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseChannel("nightly"); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestTagMatcher_LatestIsNumeric(t *testing.T) {
	m, err := NewTagMatcher("")
	if err != nil {
		t.Fatal(err)
	}
	tags := []string{
		"v25.8.9.1-lts",
		"v25.8.10.2-lts",
		"v25.8.10.12-lts",
		"v25.8.11.1-stable",
		"v25.80.1.1-lts",
		"v25.8.12.1-lts-rc",
	}
	got, ok := m.Latest(tags, Minor{"v25.8", ChannelLTS})
	if !ok || got != "v25.8.10.12-lts" {
		t.Errorf("Latest = %q, %v", got, ok)
	}
	if _, ok := m.Latest(tags, Minor{"v24.1", ChannelStable}); ok {
		t.Error("expected no tag for v24.1")
	}
	if _, err := NewTagMatcher(`^{minor}-{channel}$`); err == nil {
		t.Error("expected error for pattern without capture groups")
	}
}

func newRepo() *vcs.Memory {
	repo := vcs.NewMemory()
	repo.Commit("v25.6.2.1-stable", time.Unix(100, 0), nil)
	repo.Commit("v25.7.3.1-stable", time.Unix(200, 0), nil)
	repo.Commit("v25.8.1.1-lts", time.Unix(300, 0), nil)
	repo.Commit("v25.8.2.1-lts", time.Unix(400, 0), nil)
	repo.Tag("v25.6.1.1-stable", "v25.6.2.1-stable", "v25.7.3.1-stable", "v25.8.1.1-lts", "v25.8.2.1-lts")
	return repo
}

func TestResolver_FromChangelog(t *testing.T) {
	r := &Resolver{Repo: newRepo()}
	ctx := context.Background()

	got, err := r.FromChangelog(ctx, changelog, Options{Channel: ChannelBoth, Minors: 3})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"v25.8.2.1-lts", "v25.7.3.1-stable", "v25.8.2.1-lts"}; !reflect.DeepEqual(got, want) {
		t.Errorf("both = %q, want %q", got, want)
	}

	got, err = r.FromChangelog(ctx, changelog, Options{Channel: ChannelStable})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"v25.7.3.1-stable", "v25.7.3.1-stable", "v25.6.2.1-stable"}; !reflect.DeepEqual(got, want) {
		t.Errorf("stable = %q, want %q", got, want)
	}
}

func TestResolver_Resolve(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "CHANGELOG.md")
	if err := os.WriteFile(logPath, []byte(changelog), 0o644); err != nil {
		t.Fatal(err)
	}
	versionsPath := filepath.Join(dir, "versions.txt")
	if err := os.WriteFile(versionsPath, []byte("\nv25.6.2.1-stable\n\n  unknown-rev  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{Repo: newRepo()}
	got, err := r.Resolve(context.Background(), Options{
		Changelog:    logPath,
		Channel:      ChannelLTS,
		Minors:       1,
		VersionsFile: versionsPath,
		Explicit:     []string{"v25.8.1.1-lts", "v25.8.2.1-lts"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"unknown-rev", "v25.6.2.1-stable", "v25.8.1.1-lts", "v25.8.2.1-lts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolver_DefaultsToHead(t *testing.T) {
	r := &Resolver{Repo: vcs.NewMemory()}
	got, err := r.Resolve(context.Background(), Options{Changelog: filepath.Join(t.TempDir(), "missing.md")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(got, []string{DefaultRevision}) {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolver_MissingVersionsFile(t *testing.T) {
	r := &Resolver{Repo: vcs.NewMemory()}
	if _, err := r.Resolve(context.Background(), Options{VersionsFile: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("expected error for missing versions file")
	}
}

func TestSort_StableForEqualTimes(t *testing.T) {
	repo := vcs.NewMemory()
	repo.Commit("b", time.Unix(50, 0), nil)
	repo.Commit("a", time.Unix(50, 0), nil)
	repo.Commit("c", time.Unix(10, 0), nil)
	r := &Resolver{Repo: repo}
	got := r.Sort(context.Background(), []string{"b", "a", "c"})
	if want := []string{"c", "b", "a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Sort = %q, want %q", got, want)
	}
}
