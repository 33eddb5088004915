// Package merge folds chronologically ordered snapshots of one source kind
// into a consolidated registry.
package merge

import (
	"slices"
	"sort"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

// Merger accumulates snapshots for one registry. Revisions must be folded in
// chronological order.
type Merger struct {
	kind      string
	revisions []string
	seen      map[string]bool
	settings  map[string]*ir.Setting
}

// NewMerger returns an empty merger for kind.
func NewMerger(kind string) *Merger {
	return &Merger{
		kind:     kind,
		seen:     make(map[string]bool),
		settings: make(map[string]*ir.Setting),
	}
}

// Fold adds the snapshot taken at rev. Static fields of a setting keep their
// first-seen values; only CloudOnly is OR-ed and the per-revision state is
// recorded. An empty or nil snapshot still counts as a processed revision.
// Folding a revision again overwrites its states.
func (m *Merger) Fold(rev string, snap *ir.Snapshot) {
	if !m.seen[rev] {
		m.seen[rev] = true
		m.revisions = append(m.revisions, rev)
	}
	for _, e := range snap.Entries() {
		s, ok := m.settings[e.Name]
		if !ok {
			s = &ir.Setting{
				Name:        e.Name,
				Type:        e.Type,
				Description: e.Description,
				Flags:       e.Flags,
				Alias:       ir.NullString(e.Alias),
				Category:    e.Category,
				DocsURL:     e.DocsURL,
			}
			m.settings[e.Name] = s
		}
		s.CloudOnly = s.CloudOnly || e.CloudOnly
		s.Versions.Set(rev, ir.RevisionState{
			Default:   e.Default,
			Tier:      e.Tier,
			Important: e.Important,
		})
	}
}

// Revisions returns the folded revisions in order.
func (m *Merger) Revisions() []string {
	return slices.Clone(m.revisions)
}

// Finalize computes the lifecycle fields and returns the registry sorted by
// name case-insensitively. The merger must not be used afterwards.
func (m *Merger) Finalize() *ir.Registry {
	reg := &ir.Registry{Kind: m.kind, Settings: make([]*ir.Setting, 0, len(m.settings))}
	for _, s := range m.settings {
		m.lifecycle(s)
		reg.Settings = append(reg.Settings, s)
	}
	sort.SliceStable(reg.Settings, func(i, j int) bool {
		a, b := reg.Settings[i].Name, reg.Settings[j].Name
		if ir.LessName(a, b) {
			return true
		}
		if ir.LessName(b, a) {
			return false
		}
		return a < b
	})
	return reg
}

// lifecycle walks the revisions in order, rebuilding the state map
// chronologically. changed_from_prev compares against the nearest earlier
// revision where the setting was present, across gaps.
func (m *Merger) lifecycle(s *ir.Setting) {
	var (
		ordered     ir.Versions
		prevDefault string
		havePrev    bool
		last        = -1
	)
	s.IntroducedIn, s.RemovedIn = "", ""
	for i, rev := range m.revisions {
		st, ok := s.Versions.Get(rev)
		if !ok {
			continue
		}
		if last < 0 {
			s.IntroducedIn = ir.NullString(rev)
		}
		last = i
		st.ChangedFromPrev = havePrev && st.Default != prevDefault
		prevDefault, havePrev = st.Default, true
		ordered.Set(rev, st)
	}
	if last >= 0 && last+1 < len(m.revisions) {
		s.RemovedIn = ir.NullString(m.revisions[last+1])
	}
	s.Versions = ordered
}
