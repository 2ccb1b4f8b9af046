package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed facts.yaml
var defaultFacts []byte

// KeyURL is a named link listed at the end of the context
type KeyURL struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Facts is the hand-maintained season block that the website pages do not
// state compactly enough for the model
type Facts struct {
	Title        string   `yaml:"title"`
	Summary      []string `yaml:"summary"`
	Registration string   `yaml:"registration"`
	Page         string   `yaml:"page"`
	Camps        []string `yaml:"camps"`
	Notes        []string `yaml:"notes"`
	KeyURLs      []KeyURL `yaml:"key_urls"`
}

// LoadFacts reads facts from path, or the built-in copy when path is empty
func LoadFacts(path string) (*Facts, error) {
	data := defaultFacts
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read facts file: %w", err)
		}
	}
	return ParseFacts(data)
}

// ParseFacts decodes a YAML facts document
func ParseFacts(data []byte) (*Facts, error) {
	var f Facts
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse facts: %w", err)
	}
	if f.Title == "" {
		return nil, fmt.Errorf("facts document has no title")
	}
	return &f, nil
}

// Section renders the season block
func (f *Facts) Section() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n\n", f.Title)
	for _, line := range f.Summary {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	if f.Registration != "" {
		fmt.Fprintf(&b, "Registration: %s\n", f.Registration)
	}
	if f.Page != "" {
		fmt.Fprintf(&b, "Summer camps page: %s\n", f.Page)
	}
	if len(f.Camps) > 0 {
		b.WriteString("\nCamps:\n")
		for i, camp := range f.Camps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, camp)
		}
	}
	if len(f.Notes) > 0 {
		b.WriteString("\n")
		for _, line := range f.Notes {
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// KeyURLSection renders the list of key links
func (f *Facts) KeyURLSection() string {
	var b strings.Builder
	b.WriteString("=== KEY URLS ===\n\n")
	for _, u := range f.KeyURLs {
		fmt.Fprintf(&b, "%s: %s\n", u.Name, u.URL)
	}
	return b.String()
}
