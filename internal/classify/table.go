package classify

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

// Category is one labelled group of patterns. Patterns are regular
// expressions; one that does not compile is matched as a plain substring.
type Category struct {
	Label    string
	Patterns []string
}

type matcher struct {
	re     *regexp.Regexp
	substr string
}

func (m matcher) match(text string) bool {
	if m.re != nil {
		return m.re.MatchString(text)
	}
	return strings.Contains(text, m.substr)
}

type compiled struct {
	label    string
	matchers []matcher
}

// Table is an ordered classification table. The zero value classifies
// everything as ir.Uncategorized.
type Table struct {
	categories []compiled
}

// NewTable compiles cats, keeping their order.
func NewTable(cats []Category) *Table {
	t := &Table{}
	for _, c := range cats {
		cc := compiled{label: c.Label}
		for _, p := range c.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				cc.matchers = append(cc.matchers, matcher{substr: strings.ToLower(p)})
				continue
			}
			cc.matchers = append(cc.matchers, matcher{re: re})
		}
		t.categories = append(t.categories, cc)
	}
	return t
}

// Labels returns the category labels in table order.
func (t *Table) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.categories))
	for _, c := range t.categories {
		out = append(out, c.label)
	}
	return out
}

// Categorize returns the first category whose patterns match the lower-cased
// name and description, or ir.Uncategorized.
func (t *Table) Categorize(name, description string) string {
	if t == nil {
		return ir.Uncategorized
	}
	text := strings.ToLower(name + " " + description)
	for _, c := range t.categories {
		for _, m := range c.matchers {
			if m.match(text) {
				return c.label
			}
		}
	}
	return ir.Uncategorized
}

// LoadTable reads a YAML mapping of category label to pattern list. An empty
// path or empty file yields an empty table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return &Table{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	cats, err := ParseCategories(data)
	if err != nil {
		return nil, fmt.Errorf("parse categories %s: %w", path, err)
	}
	return NewTable(cats), nil
}

// ParseCategories decodes a YAML mapping, preserving key order. A scalar value
// is taken as a single pattern.
func ParseCategories(data []byte) ([]Category, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of category to patterns", root.Line)
	}

	var cats []Category
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		c := Category{Label: key.Value}
		switch val.Kind {
		case yaml.SequenceNode:
			for _, item := range val.Content {
				if item.Kind != yaml.ScalarNode {
					return nil, fmt.Errorf("line %d: category %q: pattern must be a string", item.Line, c.Label)
				}
				c.Patterns = append(c.Patterns, item.Value)
			}
		case yaml.ScalarNode:
			if val.Tag != "!!null" && val.Value != "" {
				c.Patterns = []string{val.Value}
			}
		default:
			return nil, fmt.Errorf("line %d: category %q: expected a list of patterns", val.Line, c.Label)
		}
		cats = append(cats, c)
	}
	return cats, nil
}
