package ir

import "strings"

// Declaration is one parsed macro call. All fields except Description hold the
// raw argument text as it appeared in source.
type Declaration struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Default     string `json:"default"`
	Description string `json:"description"`
	Flags       string `json:"flags"`
	Alias       string `json:"alias,omitempty"`
}

// Tier is the stability classification of a setting.
type Tier string

const (
	TierProduction   Tier = "production"
	TierBeta         Tier = "beta"
	TierExperimental Tier = "experimental"
	TierObsolete     Tier = "obsolete"
)

// Uncategorized is the category assigned when no classification pattern matches.
const Uncategorized = "Uncategorized"

// Entry is a Declaration with the attributes derived by classification.
type Entry struct {
	Declaration
	Category  string `json:"category"`
	CloudOnly bool   `json:"cloud_only"`
	Tier      Tier   `json:"tier"`
	Important bool   `json:"important"`
	DocsURL   string `json:"docs_url,omitempty"`
}

// Snapshot holds the classified entries of one source kind at one revision.
// Names are unique; Put on an existing name replaces the entry but keeps its
// original position.
type Snapshot struct {
	order   []string
	entries map[string]Entry
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{entries: make(map[string]Entry)}
}

// Put stores e under its name. The last Put for a name wins.
func (s *Snapshot) Put(e Entry) {
	if s.entries == nil {
		s.entries = make(map[string]Entry)
	}
	if _, ok := s.entries[e.Name]; !ok {
		s.order = append(s.order, e.Name)
	}
	s.entries[e.Name] = e
}

// Get returns the entry for name.
func (s *Snapshot) Get(name string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	e, ok := s.entries[name]
	return e, ok
}

// Len returns the number of distinct names.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Entries returns the entries in first-declaration order.
func (s *Snapshot) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name])
	}
	return out
}

// LessName orders setting names case-insensitively.
func LessName(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
