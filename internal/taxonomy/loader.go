package taxonomy

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxTaxonomyFileSize = 1024 * 1024 // 1MB

//go:embed default.yaml
var defaultTaxonomy []byte

type fileSubcategory struct {
	Name      string   `koanf:"name"`
	Keywords  []string `koanf:"keywords"`
	Threshold *float64 `koanf:"threshold"`
}

type fileCategory struct {
	Name          string            `koanf:"name"`
	Description   string            `koanf:"description"`
	Keywords      []string          `koanf:"keywords"`
	Patterns      []string          `koanf:"patterns"`
	Threshold     *float64          `koanf:"threshold"`
	Subcategories []fileSubcategory `koanf:"subcategories"`
}

type fileCustomTag struct {
	Tag         string   `koanf:"tag"`
	Category    string   `koanf:"category"`
	Subcategory string   `koanf:"subcategory"`
	Keywords    []string `koanf:"keywords"`
}

type file struct {
	Version           string          `koanf:"version"`
	Categories        []fileCategory  `koanf:"categories"`
	CustomTags        []fileCustomTag `koanf:"custom_tags"`
	EscalationTargets []string        `koanf:"escalation_targets"`
}

// Load reads a YAML taxonomy from disk. An empty path loads the embedded default.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat taxonomy file: %w", err)
	}
	if info.Size() > maxTaxonomyFileSize {
		return nil, fmt.Errorf("taxonomy file %s exceeds %d bytes", path, maxTaxonomyFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy %s: %w", path, err)
	}
	return r, nil
}

// Default returns the built-in taxonomy.
func Default() (*Registry, error) {
	return Parse(defaultTaxonomy)
}

// Parse builds a Registry from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse taxonomy yaml: %w", err)
	}

	var f file
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("unmarshal taxonomy: %w", err)
	}
	if f.Version == "" {
		return nil, &ConfigError{Problems: []string{"missing version"}}
	}

	categories := make([]Category, 0, len(f.Categories))
	for _, fc := range f.Categories {
		c := Category{
			Name:        fc.Name,
			Description: fc.Description,
			Keywords:    fc.Keywords,
			Patterns:    fc.Patterns,
			Threshold:   thresholdOrDefault(fc.Threshold),
		}
		for _, fs := range fc.Subcategories {
			c.Subcategories = append(c.Subcategories, Subcategory{
				Name:      fs.Name,
				Keywords:  fs.Keywords,
				Threshold: thresholdOrDefault(fs.Threshold),
			})
		}
		categories = append(categories, c)
	}

	customTags := make([]CustomTag, 0, len(f.CustomTags))
	for _, ft := range f.CustomTags {
		customTags = append(customTags, CustomTag{
			Tag:         ft.Tag,
			Category:    ft.Category,
			Subcategory: ft.Subcategory,
			Keywords:    ft.Keywords,
		})
	}

	return New(f.Version, categories, customTags, f.EscalationTargets)
}

func thresholdOrDefault(t *float64) float64 {
	if t == nil {
		return DefaultThreshold
	}
	return *t
}
