package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

// parserVersion is mixed into every key so cached parses are invalidated when
// the declaration parser changes behavior.
const parserVersion = "decl-v1"

// Block is the cached parse of one macro block from one source file.
type Block struct {
	Key          string           `json:"key"`
	Macro        string           `json:"macro"`
	Found        bool             `json:"found"`
	Declarations []ir.Declaration `json:"declarations,omitempty"`
	Skipped      int              `json:"skipped"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Index is a lightweight listing of all stored blocks.
type Index struct {
	Blocks    []BlockSummary `json:"blocks"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BlockSummary is the minimal info for listing blocks.
type BlockSummary struct {
	Key       string    `json:"key"`
	Macro     string    `json:"macro"`
	Found     bool      `json:"found"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns a lightweight summary of this block.
func (b *Block) Summary() BlockSummary {
	return BlockSummary{
		Key:       b.Key,
		Macro:     b.Macro,
		Found:     b.Found,
		Count:     len(b.Declarations),
		CreatedAt: b.CreatedAt,
	}
}

// Key derives the cache key for parsing macro (bounded by terminator) out of
// source. Identical files at different revisions share a key.
func Key(macro, terminator, source string) string {
	h := sha256.New()
	h.Write([]byte(parserVersion))
	h.Write([]byte{0})
	h.Write([]byte(macro))
	h.Write([]byte{0})
	h.Write([]byte(terminator))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}
