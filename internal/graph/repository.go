// Package graph exports registry documents to a graph store as
// (:Setting)-[:PRESENT_IN]->(:Version) with lifecycle edges.
package graph

import (
	"context"
)

// Repository provides graph storage for registry documents.
type Repository interface {
	// StoreVersions upserts the revision nodes in chronological order.
	StoreVersions(ctx context.Context, versions []string) error
	// StoreSettings upserts the setting nodes of one kind and replaces their
	// presence and lifecycle edges.
	StoreSettings(ctx context.Context, kind string, nodes []SettingNode) error
	// QueryPresence returns the revisions a setting is present in, oldest first.
	QueryPresence(ctx context.Context, kind, name string) ([]string, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close releases resources.
	Close(ctx context.Context) error
}
