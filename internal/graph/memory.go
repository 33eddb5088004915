package graph

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Repository.
type Memory struct {
	mu       sync.RWMutex
	versions []string
	settings map[string]map[string]SettingNode
}

// NewMemory returns an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{settings: make(map[string]map[string]SettingNode)}
}

func (m *Memory) StoreVersions(ctx context.Context, versions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = append([]string(nil), versions...)
	return nil
}

func (m *Memory) StoreSettings(ctx context.Context, kind string, nodes []SettingNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	known := make(map[string]bool, len(m.versions))
	for _, v := range m.versions {
		known[v] = true
	}
	byName := make(map[string]SettingNode, len(nodes))
	for _, n := range nodes {
		for _, p := range n.Presence {
			if !known[p.Revision] {
				return fmt.Errorf("setting %s: unknown version %s", n.Name, p.Revision)
			}
		}
		byName[n.Name] = n
	}
	m.settings[kind] = byName
	return nil
}

func (m *Memory) QueryPresence(ctx context.Context, kind, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.settings[kind][name]
	if !ok {
		return nil, nil
	}
	revs := make([]string, 0, len(n.Presence))
	for _, p := range n.Presence {
		revs = append(revs, p.Revision)
	}
	return revs, nil
}

// Setting returns the stored node for kind and name.
func (m *Memory) Setting(kind, name string) (SettingNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.settings[kind][name]
	return n, ok
}

func (m *Memory) Ping(ctx context.Context) error  { return nil }
func (m *Memory) Close(ctx context.Context) error { return nil }

var _ Repository = (*Memory)(nil)
