// Package categorize assigns a category to a transaction from its
// description. Matching is ordered case-insensitive substring search, not NLP:
// the first rule with a matching keyword wins, so results are deterministic.
package categorize

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

//go:embed rules.yaml
var defaultRulesFS embed.FS

// DefaultCategory is returned when no keyword matches.
const DefaultCategory = "General"

// Rule maps a set of keywords to one category name.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type rulesFile struct {
	Categories []Rule `yaml:"categories"`
}

// Categorizer holds an ordered rule list.
type Categorizer struct {
	rules []Rule
}

// New builds a categorizer from the embedded default rule set.
func New() *Categorizer {
	data, err := defaultRulesFS.ReadFile("rules.yaml")
	if err != nil {
		// The embedded file is part of the binary; this cannot happen at runtime.
		panic(fmt.Sprintf("embedded rules missing: %v", err))
	}
	c, err := parse(data)
	if err != nil {
		panic(fmt.Sprintf("embedded rules invalid: %v", err))
	}
	return c
}

// NewFromFile builds a categorizer from a user-provided YAML rules file.
func NewFromFile(path string) (*Categorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Categorizer, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("rules yaml has no categories")
	}
	for _, r := range f.Categories {
		if r.Name == "" || len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %q has no name or keywords", r.Name)
		}
	}
	return &Categorizer{rules: f.Categories}, nil
}

// Categorize returns the category for a description. Keywords are matched as
// lower-cased substrings in rule order; no match yields DefaultCategory.
func (c *Categorizer) Categorize(description string) string {
	desc := strings.ToLower(description)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(desc, strings.ToLower(kw)) {
				return rule.Name
			}
		}
	}
	return DefaultCategory
}
