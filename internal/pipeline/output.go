package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *ir.Document) (int, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("marshal document: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return 0, fmt.Errorf("indent document: %w", err)
	}
	buf.WriteByte('\n')
	return w.Write(buf.Bytes())
}

// WriteFile writes doc to path through a temporary file and rename so
// readers never see a partial document. It returns the size written.
func WriteFile(path string, doc *ir.Document) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".lineage-*.json")
	if err != nil {
		return 0, fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := Encode(tmp, doc)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename output: %w", err)
	}
	return n, nil
}

// Load reads a document written by WriteFile.
func Load(path string) (*ir.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var doc ir.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &doc, nil
}
