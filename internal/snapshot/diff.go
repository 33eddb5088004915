package snapshot

import (
	"errors"
	"fmt"
	"slices"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

// DiffType indicates the kind of change.
type DiffType string

const (
	DiffAdded    DiffType = "added"
	DiffRemoved  DiffType = "removed"
	DiffModified DiffType = "modified"
)

// ErrUnknownRevision is returned when a diff names a revision that is not in
// the document.
var ErrUnknownRevision = errors.New("unknown revision")

// RegistryDiff is the difference between two revisions of one registry.
type RegistryDiff struct {
	Kind     string        `json:"kind"`
	From     string        `json:"from"`
	To       string        `json:"to"`
	Settings []SettingDiff `json:"settings"`
	Summary  DiffSummary   `json:"summary"`
}

// SettingDiff is the change to one setting.
type SettingDiff struct {
	Name              string            `json:"name"`
	Type              DiffType          `json:"type"`
	Old               *ir.RevisionState `json:"old,omitempty"`
	New               *ir.RevisionState `json:"new,omitempty"`
	DefaultChanged    bool              `json:"default_changed,omitempty"`
	TierChanged       bool              `json:"tier_changed,omitempty"`
	ImportanceChanged bool              `json:"importance_changed,omitempty"`
}

// DiffSummary provides aggregate stats about the diff.
type DiffSummary struct {
	Added             int `json:"added"`
	Removed           int `json:"removed"`
	DefaultChanged    int `json:"default_changed"`
	TierChanged       int `json:"tier_changed"`
	ImportanceChanged int `json:"importance_changed"`
}

// Diff compares the settings of kind at revisions from and to. Settings
// present at both revisions are reported only when their default, tier or
// importance differ; defaults compare verbatim.
func Diff(doc *ir.Document, kind, from, to string) (*RegistryDiff, error) {
	reg, ok := doc.Registry(kind)
	if !ok {
		return nil, fmt.Errorf("no registry for kind %q", kind)
	}
	for _, rev := range []string{from, to} {
		if !slices.Contains(doc.Versions, rev) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRevision, rev)
		}
	}

	d := &RegistryDiff{Kind: kind, From: from, To: to, Settings: []SettingDiff{}}
	for _, s := range reg.Settings {
		oldState, inOld := s.Versions.Get(from)
		newState, inNew := s.Versions.Get(to)
		switch {
		case !inOld && inNew:
			d.Settings = append(d.Settings, SettingDiff{Name: s.Name, Type: DiffAdded, New: &newState})
		case inOld && !inNew:
			d.Settings = append(d.Settings, SettingDiff{Name: s.Name, Type: DiffRemoved, Old: &oldState})
		case inOld && inNew:
			sd := SettingDiff{
				Name:              s.Name,
				Type:              DiffModified,
				Old:               &oldState,
				New:               &newState,
				DefaultChanged:    oldState.Default != newState.Default,
				TierChanged:       oldState.Tier != newState.Tier,
				ImportanceChanged: oldState.Important != newState.Important,
			}
			if sd.DefaultChanged || sd.TierChanged || sd.ImportanceChanged {
				d.Settings = append(d.Settings, sd)
			}
		}
	}
	d.Summary = computeSummary(d.Settings)
	return d, nil
}

func computeSummary(diffs []SettingDiff) DiffSummary {
	var s DiffSummary
	for _, d := range diffs {
		switch d.Type {
		case DiffAdded:
			s.Added++
		case DiffRemoved:
			s.Removed++
		case DiffModified:
			if d.DefaultChanged {
				s.DefaultChanged++
			}
			if d.TierChanged {
				s.TierChanged++
			}
			if d.ImportanceChanged {
				s.ImportanceChanged++
			}
		}
	}
	return s
}
