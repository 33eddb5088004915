package explorer

import (
	"fmt"
	"sync"
	"time"

	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/pipeline"
)

// Store holds the registry document served by the explorer.
type Store struct {
	mu         sync.RWMutex
	path       string
	doc        *ir.Document
	loadedAt   time.Time
	generation uint64
}

// NewStore creates a store that reads the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// NewStoreFromDocument creates a store around an in-memory document.
// Reload on such a store is a no-op.
func NewStoreFromDocument(doc *ir.Document) *Store {
	return &Store{doc: doc, loadedAt: time.Now().UTC(), generation: 1}
}

// Load reads the document from disk and replaces the current one. On failure
// the previous document stays in place.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	doc, err := pipeline.Load(s.path)
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.loadedAt = time.Now().UTC()
	s.generation++
	return nil
}

// Document returns the current document and its generation. The document is
// nil until the first successful Load.
func (s *Store) Document() (*ir.Document, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.generation
}

// Info reports the number of revisions and the newest one.
func (s *Store) Info() (int, string) {
	doc, _ := s.Document()
	if doc == nil {
		return 0, ""
	}
	return len(doc.Versions), doc.Latest()
}

// LoadedAt returns when the current document was loaded.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
