package vcs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Repository. Revisions are added with Commit; tags
// are plain revision names registered with Tag.
type Memory struct {
	mu       sync.RWMutex
	files    map[string]map[string]string
	times    map[string]time.Time
	tags     []string
	failures map[string]error
	fetches  int
}

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{
		files:    make(map[string]map[string]string),
		times:    make(map[string]time.Time),
		failures: make(map[string]error),
	}
}

// Commit records rev with the given committer time and file contents.
func (m *Memory) Commit(rev string, when time.Time, files map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]string, len(files))
	for path, content := range files {
		copied[path] = content
	}
	m.files[rev] = copied
	m.times[rev] = when
}

// Tag registers tag names.
func (m *Memory) Tag(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = append(m.tags, names...)
}

// FailFetch makes every Fetch at rev return err.
func (m *Memory) FailFetch(rev string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[rev] = err
}

// Fetches returns how many Fetch calls were made.
func (m *Memory) Fetches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches
}

func (m *Memory) Fetch(ctx context.Context, rev, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if err := m.failures[rev]; err != nil {
		return "", err
	}
	files, ok := m.files[rev]
	if !ok {
		return "", fmt.Errorf("revision %s: %w", rev, ErrNotFound)
	}
	content, ok := files[path]
	if !ok {
		return "", fmt.Errorf("%s:%s: %w", rev, path, ErrNotFound)
	}
	return content, nil
}

func (m *Memory) CommitTime(ctx context.Context, rev string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	when, ok := m.times[rev]
	if !ok {
		return time.Time{}, fmt.Errorf("revision %s: %w", rev, ErrNotFound)
	}
	return when, nil
}

func (m *Memory) ListTags(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tags := append([]string(nil), m.tags...)
	sort.Strings(tags)
	return tags, nil
}
