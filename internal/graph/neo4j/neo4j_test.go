package neo4j

import (
	"testing"

	"github.com/efebarandurmaz/lineage/internal/graph"
)

func TestVersionParams(t *testing.T) {
	got := versionParams([]string{"v1", "v2"})
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	second := got[1].(map[string]any)
	if second["name"] != "v2" || second["order"] != 1 {
		t.Errorf("row = %v", second)
	}
}

func TestSettingParams(t *testing.T) {
	rows := settingParams([]graph.SettingNode{{
		Kind:         "settings",
		Name:         "max_threads",
		Type:         "UInt64",
		IntroducedIn: "v1",
		Presence: []graph.Presence{
			{Revision: "v1", Default: "0", Tier: "production"},
			{Revision: "v2", Default: "8", Tier: "production", Important: true},
		},
	}})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["name"] != "max_threads" || row["introduced_in"] != "v1" || row["removed_in"] != "" {
		t.Errorf("row = %v", row)
	}
	presence := row["presence"].([]any)
	last := presence[1].(map[string]any)
	if last["default"] != "8" || last["important"] != true {
		t.Errorf("presence = %v", last)
	}
}
