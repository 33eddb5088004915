// Package changes parses the explicit per-version change records of the
// settings history source and attaches them to registry entries.
package changes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/efebarandurmaz/lineage/internal/ir"
	"github.com/efebarandurmaz/lineage/internal/macro"
)

const (
	// DefaultPath is the history source fetched at the newest revision.
	DefaultPath = "src/Core/SettingsChangesHistory.cpp"
	// DefaultKeyword names the call that records one version's changes.
	DefaultKeyword = "addSettingsChanges"
)

// History maps setting names to their change entries, newest label first.
type History map[string][]ir.HistoryEntry

// Parse extracts history entries from calls of the form
//
//	keyword(container, "label", { {"name", old, new, "comment"}, ... })
//
// Calls with fewer than three arguments, list items that are not braced and
// tuples with fewer than four parts are skipped. Entries are sorted per name
// by label, descending and lexicographically, so "9" sorts above "10".
// A structural error in any call is returned.
func Parse(source, keyword string) (History, error) {
	if keyword == "" {
		keyword = DefaultKeyword
	}
	calls, err := macro.Calls(source, keyword)
	if err != nil {
		return nil, fmt.Errorf("parse %s calls: %w", keyword, err)
	}

	h := make(History)
	for _, call := range calls {
		if len(call.Args) < 3 {
			continue
		}
		label := macro.Unquote(call.Args[1])
		list := call.Args[2]
		if !strings.HasPrefix(list, "{") {
			continue
		}
		for _, item := range macro.Split(list) {
			if !strings.HasPrefix(item, "{") {
				continue
			}
			parts := macro.Split(item)
			if len(parts) < 4 {
				continue
			}
			name := macro.Unquote(parts[0])
			h[name] = append(h[name], ir.HistoryEntry{
				VersionMinor: label,
				NewDefault:   parts[2],
				Comment:      macro.Unquote(parts[3]),
			})
		}
	}
	for _, entries := range h {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].VersionMinor > entries[j].VersionMinor
		})
	}
	return h, nil
}

// Attach sets the history of every setting in doc whose name has entries.
// The same list is shared by settings of different kinds with equal names.
// It returns the number of settings updated.
func (h History) Attach(doc *ir.Document) int {
	n := 0
	for _, kind := range doc.Kinds() {
		reg, _ := doc.Registry(kind)
		for _, s := range reg.Settings {
			if entries, ok := h[s.Name]; ok {
				s.History = entries
				n++
			}
		}
	}
	return n
}
