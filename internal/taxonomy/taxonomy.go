// Package taxonomy holds the category/subcategory definitions every classifier
// and filter reads from. A Registry is built once at startup and never mutated;
// callers pass it around explicitly so tests can inject a fixture.
package taxonomy

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultThreshold applies to categories and subcategories that omit one.
const DefaultThreshold = 0.25

// Subcategory belongs to exactly one Category.
type Subcategory struct {
	Name      string
	Parent    string
	Keywords  []string
	Threshold float64
}

// Category is a top-level classification bucket.
type Category struct {
	Name          string
	Description   string
	Keywords      []string
	Patterns      []string
	Threshold     float64
	Subcategories []Subcategory
}

// CustomTag maps an organization-specific tag that sits outside the general
// taxonomy onto a category/subcategory plus the keywords that imply it.
type CustomTag struct {
	Tag         string
	Category    string
	Subcategory string
	Keywords    []string
}

// Registry is the immutable, validated taxonomy.
type Registry struct {
	version           string
	categories        []Category
	byName            map[string]int
	customTags        map[string]CustomTag
	customTagOrder    []string
	escalationTargets []string
}

// ConfigError collects every problem found while validating a taxonomy.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid taxonomy: " + strings.Join(e.Problems, "; ")
}

// New validates and freezes a taxonomy. Keywords are lower-cased and trimmed.
func New(version string, categories []Category, customTags []CustomTag, escalationTargets []string) (*Registry, error) {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(categories) == 0 {
		addf("no categories defined")
	}

	r := &Registry{
		version:    strings.TrimSpace(version),
		byName:     make(map[string]int, len(categories)),
		customTags: make(map[string]CustomTag, len(customTags)),
	}

	for i, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			addf("category %d has no name", i)
			continue
		}
		key := normalize(name)
		if _, dup := r.byName[key]; dup {
			addf("duplicate category %q", name)
			continue
		}
		if !validThreshold(c.Threshold) {
			addf("category %q threshold %v outside [0,1)", name, c.Threshold)
		}
		keywords := normalizeAll(c.Keywords)
		if len(keywords) == 0 {
			addf("category %q has no keywords", name)
		}
		for _, p := range c.Patterns {
			if _, err := regexp.Compile(p); err != nil {
				addf("category %q pattern %q: %v", name, p, err)
			}
		}

		frozen := Category{
			Name:        name,
			Description: strings.TrimSpace(c.Description),
			Keywords:    keywords,
			Patterns:    append([]string(nil), c.Patterns...),
			Threshold:   c.Threshold,
		}

		seenSub := make(map[string]bool, len(c.Subcategories))
		for j, s := range c.Subcategories {
			subName := strings.TrimSpace(s.Name)
			if subName == "" {
				addf("category %q subcategory %d has no name", name, j)
				continue
			}
			if seenSub[normalize(subName)] {
				addf("category %q has duplicate subcategory %q", name, subName)
				continue
			}
			seenSub[normalize(subName)] = true
			if !validThreshold(s.Threshold) {
				addf("subcategory %q/%q threshold %v outside [0,1)", name, subName, s.Threshold)
			}
			subKeywords := normalizeAll(s.Keywords)
			if len(subKeywords) == 0 {
				addf("subcategory %q/%q has no keywords", name, subName)
			}
			frozen.Subcategories = append(frozen.Subcategories, Subcategory{
				Name:      subName,
				Parent:    name,
				Keywords:  subKeywords,
				Threshold: s.Threshold,
			})
		}

		r.byName[key] = len(r.categories)
		r.categories = append(r.categories, frozen)
	}

	for _, ct := range customTags {
		tag := normalize(ct.Tag)
		if tag == "" {
			addf("custom tag with empty name")
			continue
		}
		if _, dup := r.customTags[tag]; dup {
			addf("duplicate custom tag %q", ct.Tag)
			continue
		}
		cat, ok := r.Category(ct.Category)
		if !ok {
			addf("custom tag %q references unknown category %q", ct.Tag, ct.Category)
			continue
		}
		frozen := CustomTag{Tag: tag, Category: cat.Name, Keywords: normalizeAll(ct.Keywords)}
		if strings.TrimSpace(ct.Subcategory) != "" {
			sub, ok := cat.Subcategory(ct.Subcategory)
			if !ok {
				addf("custom tag %q references unknown subcategory %q/%q", ct.Tag, ct.Category, ct.Subcategory)
				continue
			}
			frozen.Subcategory = sub.Name
		}
		r.customTags[tag] = frozen
		r.customTagOrder = append(r.customTagOrder, tag)
	}

	for _, t := range escalationTargets {
		t = normalize(t)
		if t == "" {
			addf("empty escalation target")
			continue
		}
		r.escalationTargets = append(r.escalationTargets, t)
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return r, nil
}

// Version is the taxonomy definition version.
func (r *Registry) Version() string { return r.version }

// Categories returns a copy of every category in definition order.
func (r *Registry) Categories() []Category {
	out := make([]Category, len(r.categories))
	for i, c := range r.categories {
		out[i] = c.clone()
	}
	return out
}

// Category looks up a category by case-insensitive name.
func (r *Registry) Category(name string) (Category, bool) {
	i, ok := r.byName[normalize(name)]
	if !ok {
		return Category{}, false
	}
	return r.categories[i].clone(), true
}

// Subcategory resolves "Category/Sub", "Category > Sub" or a bare subcategory
// name. Bare names resolve to the first match in definition order.
func (r *Registry) Subcategory(name string) (Category, Subcategory, bool) {
	for _, sep := range []string{"/", ">"} {
		if parent, child, found := strings.Cut(name, sep); found {
			cat, ok := r.Category(parent)
			if !ok {
				continue
			}
			if sub, ok := cat.Subcategory(child); ok {
				return cat, sub, true
			}
		}
	}
	for _, c := range r.categories {
		if sub, ok := c.Subcategory(name); ok {
			return c.clone(), sub, true
		}
	}
	return Category{}, Subcategory{}, false
}

// CustomTag looks up an organization-specific tag mapping.
func (r *Registry) CustomTag(tag string) (CustomTag, bool) {
	ct, ok := r.customTags[normalize(tag)]
	if !ok {
		return CustomTag{}, false
	}
	ct.Keywords = append([]string(nil), ct.Keywords...)
	return ct, true
}

// CustomTags returns every custom tag mapping in definition order.
func (r *Registry) CustomTags() []CustomTag {
	out := make([]CustomTag, 0, len(r.customTagOrder))
	for _, tag := range r.customTagOrder {
		ct, _ := r.CustomTag(tag)
		out = append(out, ct)
	}
	return out
}

// EscalationTargets is the named-target roster, lower-cased.
func (r *Registry) EscalationTargets() []string {
	return append([]string(nil), r.escalationTargets...)
}

// Subcategory looks up a child by case-insensitive name.
func (c Category) Subcategory(name string) (Subcategory, bool) {
	key := normalize(name)
	for _, s := range c.Subcategories {
		if normalize(s.Name) == key {
			s.Keywords = append([]string(nil), s.Keywords...)
			return s, true
		}
	}
	return Subcategory{}, false
}

func (c Category) clone() Category {
	out := c
	out.Keywords = append([]string(nil), c.Keywords...)
	out.Patterns = append([]string(nil), c.Patterns...)
	out.Subcategories = make([]Subcategory, len(c.Subcategories))
	for i, s := range c.Subcategories {
		s.Keywords = append([]string(nil), s.Keywords...)
		out.Subcategories[i] = s
	}
	return out
}

func validThreshold(t float64) bool {
	return t >= 0 && t < 1
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = normalize(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
