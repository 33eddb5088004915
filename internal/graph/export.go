package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

// SettingNode is the graph projection of one setting.
type SettingNode struct {
	Kind         string
	Name         string
	Type         string
	Category     string
	CloudOnly    bool
	DocsURL      string
	IntroducedIn string
	RemovedIn    string
	Presence     []Presence
}

// Presence is one PRESENT_IN edge.
type Presence struct {
	Revision  string
	Default   string
	Tier      string
	Important bool
}

// ExportStats counts what Export wrote.
type ExportStats struct {
	Versions int
	Settings map[string]int
	Edges    int
}

// Project converts one registry into graph nodes. Presence follows the
// chronological order of versions.
func Project(versions []string, reg *ir.Registry) []SettingNode {
	nodes := make([]SettingNode, 0, len(reg.Settings))
	for _, s := range reg.Settings {
		n := SettingNode{
			Kind:         reg.Kind,
			Name:         s.Name,
			Type:         s.Type,
			Category:     s.Category,
			CloudOnly:    s.CloudOnly,
			DocsURL:      s.DocsURL,
			IntroducedIn: string(s.IntroducedIn),
			RemovedIn:    string(s.RemovedIn),
		}
		for _, rev := range versions {
			st, ok := s.Versions.Get(rev)
			if !ok {
				continue
			}
			n.Presence = append(n.Presence, Presence{
				Revision:  rev,
				Default:   st.Default,
				Tier:      string(st.Tier),
				Important: st.Important,
			})
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// Export writes every registry of doc to repo.
func Export(ctx context.Context, repo Repository, doc *ir.Document, logger *slog.Logger) (ExportStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	stats := ExportStats{Settings: make(map[string]int)}

	if err := repo.StoreVersions(ctx, doc.Versions); err != nil {
		return stats, fmt.Errorf("store versions: %w", err)
	}
	stats.Versions = len(doc.Versions)

	for _, kind := range doc.Kinds() {
		reg, _ := doc.Registry(kind)
		nodes := Project(doc.Versions, reg)
		if err := repo.StoreSettings(ctx, kind, nodes); err != nil {
			return stats, fmt.Errorf("store %s settings: %w", kind, err)
		}
		stats.Settings[kind] = len(nodes)
		for _, n := range nodes {
			stats.Edges += len(n.Presence)
		}
		logger.Debug("graph export", "kind", kind, "settings", len(nodes))
	}

	logger.Info("graph export complete", "versions", stats.Versions, "edges", stats.Edges)
	return stats, nil
}
