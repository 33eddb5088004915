package pipeline

import (
	"github.com/efebarandurmaz/lineage/internal/extract"
	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/merge"
)

// KindSnapshot is the serializable result of extracting one kind at one
// revision.
type KindSnapshot struct {
	Kind    string          `json:"kind"`
	Entries []ir.Entry      `json:"entries"`
	Outcome extract.Outcome `json:"outcome"`
}

// RevisionSnapshots holds every kind extracted at one revision.
type RevisionSnapshots struct {
	Revision string         `json:"revision"`
	Kinds    []KindSnapshot `json:"kinds"`
}

// Builder folds revision snapshots into a document. It does no I/O, so the
// same folding runs inside workflows.
type Builder struct {
	kinds     []string
	mergers   map[string]*merge.Merger
	revisions []string
}

// NewBuilder creates a builder producing one registry per kind, in order.
func NewBuilder(kinds []string) *Builder {
	b := &Builder{kinds: kinds, mergers: make(map[string]*merge.Merger, len(kinds))}
	for _, k := range kinds {
		b.mergers[k] = merge.NewMerger(k)
	}
	return b
}

// Add folds one revision. Revisions must arrive in chronological order.
// Snapshots of unknown kinds are ignored, and a kind missing from rs is
// folded as empty.
func (b *Builder) Add(rs RevisionSnapshots) {
	b.revisions = append(b.revisions, rs.Revision)
	byKind := make(map[string]KindSnapshot, len(rs.Kinds))
	for _, ks := range rs.Kinds {
		byKind[ks.Kind] = ks
	}
	for _, k := range b.kinds {
		snap := ir.NewSnapshot()
		for _, e := range byKind[k].Entries {
			snap.Put(e)
		}
		b.mergers[k].Fold(rs.Revision, snap)
	}
}

// Document finalizes every registry. The builder must not be used afterwards.
func (b *Builder) Document() *ir.Document {
	doc := ir.NewDocument(append([]string(nil), b.revisions...))
	for _, k := range b.kinds {
		doc.Add(b.mergers[k].Finalize())
	}
	return doc
}
