// Package classifier assigns taxonomy categories to conversations.
//
// Classify returns every matching (category, subcategory) pair, deduplicated
// and ordered by confidence. Only the first element, the primary
// classification, may be counted toward volume; Aggregate enforces that.
package classifier

import (
	"sort"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/signals"
	"github.com/MikeSquared-Agency/sift/internal/taxonomy"
)

// Method records which signal produced a classification.
type Method string

const (
	MethodTagged       Method = "tagged"
	MethodTopic        Method = "topic"
	MethodTextAnalysis Method = "text_analysis"
)

const (
	// ExplicitConfidence is assigned to exact tag/topic matches.
	ExplicitConfidence = 1.0
	// TextConfidenceCap keeps text evidence strictly below an explicit match.
	TextConfidenceCap = 0.9
	// saturationHits is the number of distinct keyword hits that reaches the cap.
	saturationHits = 3

	UnknownCategory = "Unknown"
)

// Classification is one category assignment for a conversation.
type Classification struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence"`
	Method      Method  `json:"method"`
}

type subIndex struct {
	name      string
	threshold float64
	exact     map[string]bool
	keywords  []signals.KeywordMatcher
}

type categoryIndex struct {
	name      string
	threshold float64
	exact     map[string]bool
	keywords  []signals.KeywordMatcher
	subs      []subIndex
}

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	index []categoryIndex
	order map[string]int
}

// New builds the keyword index for reg once.
func New(reg *taxonomy.Registry) *Classifier {
	c := &Classifier{order: make(map[string]int)}
	if reg == nil {
		return c
	}
	for i, cat := range reg.Categories() {
		ci := categoryIndex{
			name:      cat.Name,
			threshold: cat.Threshold,
			exact:     exactSet(cat.Name, cat.Keywords),
		}
		all := append([]string(nil), cat.Keywords...)
		for _, sub := range cat.Subcategories {
			ci.subs = append(ci.subs, subIndex{
				name:      sub.Name,
				threshold: sub.Threshold,
				exact:     exactSet(sub.Name, sub.Keywords),
				keywords:  signals.CompileKeywords(sub.Keywords),
			})
			all = append(all, sub.Keywords...)
		}
		ci.keywords = signals.CompileKeywords(all)
		c.index = append(c.index, ci)
		c.order[cat.Name] = i
	}
	return c
}

// Classify returns deduplicated classifications sorted by descending
// confidence. It never fails; no evidence yields an empty slice.
func (c *Classifier) Classify(conv conversation.Conversation) []Classification {
	sig := signals.Extract(conv)
	if sig.Empty() {
		return nil
	}

	var found []Classification
	for _, ci := range c.index {
		found = append(found, explicitMatches(ci, sig.Tags, MethodTagged)...)
		found = append(found, explicitMatches(ci, sig.Topics, MethodTopic)...)

		score := TextScore(sig.Text, ci.keywords)
		if score <= ci.threshold {
			continue
		}
		found = append(found, Classification{Category: ci.name, Confidence: score, Method: MethodTextAnalysis})
		for _, si := range ci.subs {
			if subScore := TextScore(sig.Text, si.keywords); subScore > si.threshold {
				found = append(found, Classification{
					Category:    ci.name,
					Subcategory: si.name,
					Confidence:  subScore,
					Method:      MethodTextAnalysis,
				})
			}
		}
	}

	return c.dedupAndSort(found)
}

// Primary returns the highest-confidence classification.
func Primary(cs []Classification) (Classification, bool) {
	if len(cs) == 0 {
		return Classification{}, false
	}
	return cs[0], true
}

// PrimaryOrUnknown maps an empty result onto the Unknown category.
func PrimaryOrUnknown(cs []Classification) Classification {
	if p, ok := Primary(cs); ok {
		return p
	}
	return Classification{Category: UnknownCategory}
}

// TextScore is the normalized distinct keyword-hit count, scaled so it never
// reaches ExplicitConfidence.
func TextScore(text string, keywords []signals.KeywordMatcher) float64 {
	if text == "" || len(keywords) == 0 {
		return 0
	}
	hits := len(signals.Hits(text, keywords))
	if hits == 0 {
		return 0
	}
	denom := saturationHits
	if len(keywords) < denom {
		denom = len(keywords)
	}
	ratio := float64(hits) / float64(denom)
	if ratio > 1 {
		ratio = 1
	}
	return ratio * TextConfidenceCap
}

func explicitMatches(ci categoryIndex, names []string, method Method) []Classification {
	var out []Classification
	for _, n := range names {
		if ci.exact[n] {
			out = append(out, Classification{Category: ci.name, Confidence: ExplicitConfidence, Method: method})
		}
		for _, si := range ci.subs {
			if si.exact[n] {
				out = append(out, Classification{
					Category:    ci.name,
					Subcategory: si.name,
					Confidence:  ExplicitConfidence,
					Method:      method,
				})
			}
		}
	}
	return out
}

type pairKey struct{ category, subcategory string }

func (c *Classifier) dedupAndSort(found []Classification) []Classification {
	if len(found) == 0 {
		return nil
	}
	best := make(map[pairKey]int, len(found))
	var out []Classification
	for _, cl := range found {
		k := pairKey{cl.Category, cl.Subcategory}
		i, seen := best[k]
		if !seen {
			best[k] = len(out)
			out = append(out, cl)
			continue
		}
		if better(cl, out[i]) {
			out[i] = cl
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if methodRank(a.Method) != methodRank(b.Method) {
			return methodRank(a.Method) < methodRank(b.Method)
		}
		if (a.Subcategory != "") != (b.Subcategory != "") {
			return a.Subcategory != ""
		}
		if c.order[a.Category] != c.order[b.Category] {
			return c.order[a.Category] < c.order[b.Category]
		}
		return a.Subcategory < b.Subcategory
	})
	return out
}

func better(a, b Classification) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return methodRank(a.Method) < methodRank(b.Method)
}

func methodRank(m Method) int {
	switch m {
	case MethodTagged:
		return 0
	case MethodTopic:
		return 1
	default:
		return 2
	}
}

func exactSet(name string, keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords)+1)
	set[signals.NormalizeName(name)] = true
	for _, kw := range keywords {
		set[signals.NormalizeName(kw)] = true
	}
	return set
}
