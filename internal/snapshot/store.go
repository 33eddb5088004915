package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	objectsDir = "objects"
	indexFile  = "index.json"
)

// Store is a content-addressed disk cache of parsed blocks.
type Store struct {
	mu      sync.RWMutex
	rootDir string
	index   *Index
}

// NewStore creates or opens a store at the given directory.
func NewStore(rootDir string) (*Store, error) {
	s := &Store{rootDir: rootDir}

	if err := os.MkdirAll(filepath.Join(rootDir, objectsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	// Load or create index
	if err := s.loadIndex(); err != nil {
		s.index = &Index{
			Blocks:    []BlockSummary{},
			UpdatedAt: time.Now(),
		}
	}

	return s, nil
}

// Get returns the block stored under key.
func (s *Store) Get(ctx context.Context, key string) (*Block, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.readObject(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read object %s: %w", key, err)
	}

	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false, fmt.Errorf("unmarshal block %s: %w", key, err)
	}
	return &b, true, nil
}

// Put persists b under its key. Storing an existing key is a no-op.
func (s *Store) Put(ctx context.Context, b *Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.Key) < 3 {
		return fmt.Errorf("invalid block key %q", b.Key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	written, err := s.writeObject(b.Key, data)
	if err != nil {
		return fmt.Errorf("store object %s: %w", b.Key, err)
	}
	if !written {
		return nil
	}

	s.index.Blocks = append(s.index.Blocks, b.Summary())
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

// List returns all block summaries, newest first.
func (s *Store) List() []BlockSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]BlockSummary, len(s.index.Blocks))
	copy(result, s.index.Blocks)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}

// writeObject stores content by its hash and reports whether it was new.
func (s *Store) writeObject(hash string, content []byte) (bool, error) {
	prefix := hash[:2]
	dir := filepath.Join(s.rootDir, objectsDir, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}

	objPath := filepath.Join(dir, hash[2:])
	if _, err := os.Stat(objPath); err == nil {
		return false, nil // Already exists (content-addressable dedup)
	}

	return true, os.WriteFile(objPath, content, 0o644)
}

// readObject retrieves content by its hash.
func (s *Store) readObject(hash string) ([]byte, error) {
	if len(hash) < 3 {
		return nil, fs.ErrNotExist
	}
	objPath := filepath.Join(s.rootDir, objectsDir, hash[:2], hash[2:])
	return os.ReadFile(objPath)
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.rootDir, indexFile))
	if err != nil {
		return err
	}
	s.index = &Index{}
	return json.Unmarshal(data, s.index)
}

func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.rootDir, indexFile), data, 0o644)
}
