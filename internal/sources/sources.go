package sources

import (
	"errors"
	"fmt"
	"sync"

	"github.com/efebarandurmaz/lineage/internal/macro"
)

// Kind describes one family of settings: which file declares them, which
// macro block holds the declarations and where they are documented.
type Kind struct {
	Name       string `mapstructure:"name" json:"name"`
	Path       string `mapstructure:"path" json:"path"`
	Macro      string `mapstructure:"macro" json:"macro"`
	Terminator string `mapstructure:"terminator" json:"terminator,omitempty"`
	DocsBase   string `mapstructure:"docs_base" json:"docs_base,omitempty"`
}

// DocsURL returns the documentation anchor for a setting of this kind.
func (k Kind) DocsURL(name string) string {
	if k.DocsBase == "" {
		return ""
	}
	return k.DocsBase + "#" + name
}

// Validate reports a missing required field.
func (k Kind) Validate() error {
	var errs []error
	if k.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if k.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	if k.Macro == "" {
		errs = append(errs, errors.New("macro is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("source kind %q: %w", k.Name, err)
	}
	return nil
}

const docsRoot = "https://clickhouse.com/docs/operations/settings/"

// Defaults returns the three standard kinds in output order.
func Defaults() []Kind {
	return []Kind{
		{
			Name:       "settings",
			Path:       "src/Core/Settings.cpp",
			Macro:      "COMMON_SETTINGS",
			Terminator: macro.DefaultTerminator,
			DocsBase:   docsRoot + "settings",
		},
		{
			Name:       "merge_tree_settings",
			Path:       "src/Storages/MergeTree/MergeTreeSettings.cpp",
			Macro:      "MERGE_TREE_SETTINGS",
			Terminator: macro.DefaultTerminator,
			DocsBase:   docsRoot + "merge-tree-settings",
		},
		{
			Name:       "format_settings",
			Path:       "src/Core/FormatFactorySettings.h",
			Macro:      "FORMAT_FACTORY_SETTINGS",
			Terminator: macro.DefaultTerminator,
			DocsBase:   docsRoot + "formats",
		},
	}
}

// Registry holds the configured kinds in registration order.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Kind
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Kind)}
}

// NewDefaultRegistry returns a registry holding Defaults.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, k := range Defaults() {
		_ = r.Register(k)
	}
	return r
}

// Register adds k, replacing an existing kind of the same name in place.
func (r *Registry) Register(k Kind) error {
	if err := k.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kinds[k.Name]; !ok {
		r.order = append(r.order, k.Name)
	}
	r.kinds[k.Name] = k
	return nil
}

// Kind looks up a kind by name.
func (r *Registry) Kind(name string) (Kind, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[name]
	if !ok {
		return Kind{}, fmt.Errorf("no source kind %q", name)
	}
	return k, nil
}

// All returns every kind in registration order.
func (r *Registry) All() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.kinds[name])
	}
	return out
}
