package query

import (
	"errors"
	"testing"

	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
)

func document() *ir.Document {
	doc := ir.NewDocument([]string{"r1", "r2", "r3"})

	mt := &ir.Setting{Name: "max_threads", Type: "UInt64", IntroducedIn: "r1"}
	mt.Versions.Set("r1", ir.RevisionState{Default: "0", Tier: ir.TierProduction})
	mt.Versions.Set("r3", ir.RevisionState{Default: "8", Tier: ir.TierBeta, Important: true, ChangedFromPrev: true})

	old := &ir.Setting{Name: "old_thing", IntroducedIn: "r1", RemovedIn: "r2"}
	old.Versions.Set("r1", ir.RevisionState{Default: "1", Tier: ir.TierObsolete})
	doc.Add(&ir.Registry{Kind: "settings", Settings: []*ir.Setting{mt, old}})

	mtMerge := &ir.Setting{Name: "max_threads", IntroducedIn: "r2"}
	mtMerge.Versions.Set("r2", ir.RevisionState{Default: "4", Tier: ir.TierProduction})
	doc.Add(&ir.Registry{Kind: "merge_tree_settings", Settings: []*ir.Setting{mtMerge}})
	return doc
}

func TestLookup_AcrossKinds(t *testing.T) {
	got, err := Lookup(document(), "max_threads")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Kind != "settings" || got[1].Kind != "merge_tree_settings" {
		t.Fatalf("lifecycles = %+v", got)
	}
	s := got[0]
	if s.IntroducedIn != "r1" || s.RemovedIn != "" || len(s.Revisions) != 2 {
		t.Errorf("settings lifecycle = %+v", s)
	}
	if s.Current.Revision != "r3" || s.Current.Tier != ir.TierBeta || !s.Current.Important || !s.Current.Live {
		t.Errorf("current = %+v", s.Current)
	}
	if m := got[1].Current; m.Revision != "r2" || m.Live {
		t.Errorf("merge tree current = %+v", m)
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, err := Lookup(document(), "nope"); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("err = %v", err)
	}
}

func TestCurrent(t *testing.T) {
	doc := document()
	st, err := Current(doc, "settings", "old_thing")
	if err != nil {
		t.Fatal(err)
	}
	if st.Revision != "r1" || st.Tier != ir.TierObsolete || st.Live {
		t.Errorf("old_thing = %+v", st)
	}
	if _, err := Current(doc, "format_settings", "x"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := Current(doc, "settings", "x"); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("err = %v", err)
	}
}

func TestDiff(t *testing.T) {
	d, err := Diff(document(), "settings", "r1", "r3")
	if err != nil {
		t.Fatal(err)
	}
	want := snapshot.DiffSummary{Removed: 1, DefaultChanged: 1, TierChanged: 1, ImportanceChanged: 1}
	if d.Summary != want {
		t.Errorf("summary = %+v, want %+v", d.Summary, want)
	}
	if _, err := Diff(document(), "settings", "r1", "r9"); !errors.Is(err, snapshot.ErrUnknownRevision) {
		t.Errorf("err = %v", err)
	}
}
