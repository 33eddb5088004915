// Package query answers consumer questions against a finished registry
// document: what changed between two revisions, when a setting appeared or
// disappeared, and what tier and importance it has now.
package query

import (
	"errors"
	"fmt"

	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/snapshot"
)

// ErrUnknownSetting is returned when no registry contains the name.
var ErrUnknownSetting = errors.New("unknown setting")

// Status is the state of a setting at the latest revision where it is
// present.
type Status struct {
	Revision  string  `json:"revision"`
	Default   string  `json:"default"`
	Tier      ir.Tier `json:"tier"`
	Important bool    `json:"important"`
	// Live is true when Revision is the newest revision of the document.
	Live bool `json:"live"`
}

// Lifecycle is the history of one setting within one registry.
type Lifecycle struct {
	Kind         string            `json:"kind"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Category     string            `json:"category"`
	CloudOnly    bool              `json:"cloud_only"`
	DocsURL      string            `json:"docs_url,omitempty"`
	IntroducedIn ir.NullString     `json:"introduced_in"`
	RemovedIn    ir.NullString     `json:"removed_in"`
	Revisions    []string          `json:"revisions"`
	Current      Status            `json:"current"`
	History      []ir.HistoryEntry `json:"history,omitempty"`
}

// Lookup returns the lifecycle of name in every registry that contains it,
// in document kind order.
func Lookup(doc *ir.Document, name string) ([]Lifecycle, error) {
	var out []Lifecycle
	for _, kind := range doc.Kinds() {
		reg, _ := doc.Registry(kind)
		s, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		out = append(out, Lifecycle{
			Kind:         kind,
			Name:         s.Name,
			Type:         s.Type,
			Category:     s.Category,
			CloudOnly:    s.CloudOnly,
			DocsURL:      s.DocsURL,
			IntroducedIn: s.IntroducedIn,
			RemovedIn:    s.RemovedIn,
			Revisions:    s.Versions.Revisions(),
			Current:      current(doc, s),
			History:      s.History,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	return out, nil
}

// Current returns the state of name in kind at the latest revision where it
// is present.
func Current(doc *ir.Document, kind, name string) (Status, error) {
	reg, ok := doc.Registry(kind)
	if !ok {
		return Status{}, fmt.Errorf("no registry for kind %q", kind)
	}
	s, ok := reg.Lookup(name)
	if !ok {
		return Status{}, fmt.Errorf("%w: %s/%s", ErrUnknownSetting, kind, name)
	}
	return current(doc, s), nil
}

func current(doc *ir.Document, s *ir.Setting) Status {
	for i := len(doc.Versions) - 1; i >= 0; i-- {
		rev := doc.Versions[i]
		st, ok := s.Versions.Get(rev)
		if !ok {
			continue
		}
		return Status{
			Revision:  rev,
			Default:   st.Default,
			Tier:      st.Tier,
			Important: st.Important,
			Live:      i == len(doc.Versions)-1,
		}
	}
	return Status{}
}

// Diff reports what changed in kind between revisions from and to.
func Diff(doc *ir.Document, kind, from, to string) (*snapshot.RegistryDiff, error) {
	return snapshot.Diff(doc, kind, from, to)
}
