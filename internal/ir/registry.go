package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// GeneratedBy is the provenance tag written into every document.
const GeneratedBy = "lineage"

// NullString is a string that serializes the empty value as JSON null.
type NullString string

func (s NullString) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *NullString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = ""
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = NullString(v)
	return nil
}

// RevisionState is the per-revision record of one setting.
type RevisionState struct {
	Default         string `json:"default"`
	Tier            Tier   `json:"tier"`
	Important       bool   `json:"important"`
	ChangedFromPrev bool   `json:"changed_from_prev"`
}

// Versions maps revisions to states and keeps insertion order, which the
// merger guarantees is chronological.
type Versions struct {
	order  []string
	states map[string]RevisionState
}

// Set stores st for rev. Overwriting keeps the original position.
func (v *Versions) Set(rev string, st RevisionState) {
	if v.states == nil {
		v.states = make(map[string]RevisionState)
	}
	if _, ok := v.states[rev]; !ok {
		v.order = append(v.order, rev)
	}
	v.states[rev] = st
}

// Get returns the state recorded for rev.
func (v *Versions) Get(rev string) (RevisionState, bool) {
	st, ok := v.states[rev]
	return st, ok
}

// Has reports whether rev is recorded.
func (v *Versions) Has(rev string) bool {
	_, ok := v.states[rev]
	return ok
}

// Revisions returns the recorded revisions in order.
func (v *Versions) Revisions() []string {
	return append([]string(nil), v.order...)
}

// Len returns the number of recorded revisions.
func (v *Versions) Len() int { return len(v.order) }

func (v Versions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, rev := range v.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(rev)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v.states[rev])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (v *Versions) UnmarshalJSON(data []byte) error {
	*v = Versions{}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("versions: %w", err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("versions: %w", err)
		}
		rev, ok := tok.(string)
		if !ok {
			return fmt.Errorf("versions: unexpected key %v", tok)
		}
		var st RevisionState
		if err := dec.Decode(&st); err != nil {
			return fmt.Errorf("versions[%s]: %w", rev, err)
		}
		v.Set(rev, st)
	}
	return expectDelim(dec, '}')
}

// HistoryEntry is one explicit change record from the change-history source.
type HistoryEntry struct {
	VersionMinor string `json:"version_minor"`
	NewDefault   string `json:"new_default"`
	Comment      string `json:"comment"`
}

// Setting is the consolidated cross-revision record of one setting name.
type Setting struct {
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Description  string         `json:"description"`
	Flags        string         `json:"flags"`
	Alias        NullString     `json:"alias"`
	Category     string         `json:"category"`
	CloudOnly    bool           `json:"cloud_only"`
	DocsURL      string         `json:"docs_url,omitempty"`
	Versions     Versions       `json:"versions"`
	IntroducedIn NullString     `json:"introduced_in"`
	RemovedIn    NullString     `json:"removed_in"`
	History      []HistoryEntry `json:"history,omitempty"`
}

// PresentIn reports whether the setting was declared at rev.
func (s *Setting) PresentIn(rev string) bool { return s.Versions.Has(rev) }

// Registry is the consolidated record of one source kind.
type Registry struct {
	Kind     string
	Settings []*Setting
}

// Lookup finds a setting by exact name. Settings must be sorted by LessName.
func (r *Registry) Lookup(name string) (*Setting, bool) {
	if r == nil {
		return nil, false
	}
	key := strings.ToLower(name)
	i := sort.Search(len(r.Settings), func(i int) bool {
		return strings.ToLower(r.Settings[i].Name) >= key
	})
	for ; i < len(r.Settings) && strings.ToLower(r.Settings[i].Name) == key; i++ {
		if r.Settings[i].Name == name {
			return r.Settings[i], true
		}
	}
	return nil, false
}

// Document is the serialized output artifact: the chronological revision list,
// one registry per source kind, and a provenance tag.
type Document struct {
	Versions    []string
	GeneratedBy string

	kinds      []string
	registries map[string]*Registry
}

// NewDocument returns an empty document for the given revisions.
func NewDocument(versions []string) *Document {
	return &Document{
		Versions:    versions,
		GeneratedBy: GeneratedBy,
		registries:  make(map[string]*Registry),
	}
}

// Add appends a registry. A second registry of the same kind replaces the first.
func (d *Document) Add(reg *Registry) {
	if d.registries == nil {
		d.registries = make(map[string]*Registry)
	}
	if _, ok := d.registries[reg.Kind]; !ok {
		d.kinds = append(d.kinds, reg.Kind)
	}
	d.registries[reg.Kind] = reg
}

// Kinds returns the source kinds in output order.
func (d *Document) Kinds() []string { return append([]string(nil), d.kinds...) }

// Registry returns the registry for kind.
func (d *Document) Registry(kind string) (*Registry, bool) {
	r, ok := d.registries[kind]
	return r, ok
}

// Latest returns the newest revision, or "" for an empty document.
func (d *Document) Latest() string {
	if len(d.Versions) == 0 {
		return ""
	}
	return d.Versions[len(d.Versions)-1]
}

const (
	keyVersions    = "versions"
	keyGeneratedBy = "generated_by"
)

func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, val any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}
	versions := d.Versions
	if versions == nil {
		versions = []string{}
	}
	if err := write(keyVersions, versions); err != nil {
		return nil, err
	}
	for _, kind := range d.kinds {
		settings := d.registries[kind].Settings
		if settings == nil {
			settings = []*Setting{}
		}
		if err := write(kind, settings); err != nil {
			return nil, err
		}
	}
	if err := write(keyGeneratedBy, d.GeneratedBy); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	*d = Document{registries: make(map[string]*Registry)}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("document: %w", err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("document: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("document: unexpected key %v", tok)
		}
		switch key {
		case keyVersions:
			if err := dec.Decode(&d.Versions); err != nil {
				return fmt.Errorf("document versions: %w", err)
			}
		case keyGeneratedBy:
			if err := dec.Decode(&d.GeneratedBy); err != nil {
				return fmt.Errorf("document generated_by: %w", err)
			}
		default:
			var settings []*Setting
			if err := dec.Decode(&settings); err != nil {
				return fmt.Errorf("document %s: %w", key, err)
			}
			d.Add(&Registry{Kind: key, Settings: settings})
		}
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
