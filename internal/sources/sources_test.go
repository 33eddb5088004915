package sources

import (
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	r := NewDefaultRegistry()
	all := r.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 default kinds, got %d", len(all))
	}
	names := []string{all[0].Name, all[1].Name, all[2].Name}
	if strings.Join(names, ",") != "settings,merge_tree_settings,format_settings" {
		t.Errorf("order = %v", names)
	}

	k, err := r.Kind("merge_tree_settings")
	if err != nil {
		t.Fatal(err)
	}
	if k.Macro != "MERGE_TREE_SETTINGS" || k.Path != "src/Storages/MergeTree/MergeTreeSettings.cpp" {
		t.Errorf("kind = %+v", k)
	}
	if got := k.DocsURL("index_granularity"); got != "https://clickhouse.com/docs/operations/settings/merge-tree-settings#index_granularity" {
		t.Errorf("DocsURL = %q", got)
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Kind{Name: "x"}); err == nil {
		t.Error("expected validation error")
	}
	if err := r.Register(Kind{Name: "a", Path: "a.cpp", Macro: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Kind{Name: "b", Path: "b.cpp", Macro: "B"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Kind{Name: "a", Path: "a2.cpp", Macro: "A"}); err != nil {
		t.Fatal(err)
	}
	all := r.All()
	if len(all) != 2 || all[0].Name != "a" || all[0].Path != "a2.cpp" {
		t.Errorf("All = %+v", all)
	}
	if _, err := r.Kind("missing"); err == nil {
		t.Error("expected error for unknown kind")
	}
	if (Kind{}).DocsURL("x") != "" {
		t.Error("kind without docs base should have no docs URL")
	}
}
