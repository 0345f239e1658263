package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
)

// Result pairs a conversation with its ordered classifications.
type Result struct {
	ConversationID  string           `json:"conversation_id"`
	Classifications []Classification `json:"classifications"`
}

// Primary is the conversation's counted classification, Unknown when empty.
func (r Result) Primary() Classification {
	return PrimaryOrUnknown(r.Classifications)
}

// PrimarySubcategory is the subcategory counted for the primary category: the
// primary's own subcategory, else the best-ranked subcategory under the same
// category, else "".
func (r Result) PrimarySubcategory() string {
	p := r.Primary()
	if p.Subcategory != "" {
		return p.Subcategory
	}
	for _, cl := range r.Classifications {
		if cl.Category == p.Category && cl.Subcategory != "" {
			return cl.Subcategory
		}
	}
	return ""
}

// SubcategoryAggregate is the volume of one subcategory.
type SubcategoryAggregate struct {
	Name       string  `json:"name"`
	Volume     int     `json:"volume"`
	Percentage float64 `json:"percentage"`
}

// CategoryAggregate is the volume of one category, counted by primary
// classification only.
type CategoryAggregate struct {
	Name          string                 `json:"name"`
	Volume        int                    `json:"volume"`
	Percentage    float64                `json:"percentage"`
	Subcategories []SubcategoryAggregate `json:"subcategories,omitempty"`
}

// Summary is the per-category volume breakdown of a batch.
type Summary struct {
	Total      int                 `json:"total"`
	Categories []CategoryAggregate `json:"categories"`
}

// ClassifyAll classifies each conversation in input order.
func (c *Classifier) ClassifyAll(convs []conversation.Conversation) []Result {
	out := make([]Result, len(convs))
	for i, conv := range convs {
		out[i] = Result{ConversationID: conv.ID, Classifications: c.Classify(conv)}
	}
	return out
}

// Aggregate counts each conversation exactly once, under its primary
// classification. Percentages are of the batch total.
func Aggregate(results []Result) Summary {
	type bucket struct {
		volume int
		subs   map[string]int
	}
	buckets := make(map[string]*bucket)

	for _, r := range results {
		p := r.Primary()
		b, ok := buckets[p.Category]
		if !ok {
			b = &bucket{subs: make(map[string]int)}
			buckets[p.Category] = b
		}
		b.volume++
		if sub := r.PrimarySubcategory(); sub != "" {
			b.subs[sub]++
		}
	}

	total := len(results)
	s := Summary{Total: total}
	for name, b := range buckets {
		agg := CategoryAggregate{Name: name, Volume: b.volume, Percentage: percentage(b.volume, total)}
		for subName, v := range b.subs {
			agg.Subcategories = append(agg.Subcategories, SubcategoryAggregate{
				Name:       subName,
				Volume:     v,
				Percentage: percentage(v, total),
			})
		}
		sort.Slice(agg.Subcategories, func(i, j int) bool {
			return byVolume(agg.Subcategories[i].Volume, agg.Subcategories[j].Volume, agg.Subcategories[i].Name, agg.Subcategories[j].Name)
		})
		s.Categories = append(s.Categories, agg)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		return byVolume(s.Categories[i].Volume, s.Categories[j].Volume, s.Categories[i].Name, s.Categories[j].Name)
	})
	return s
}

// Category returns the aggregate for name, if present.
func (s Summary) Category(name string) (CategoryAggregate, bool) {
	for _, c := range s.Categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return CategoryAggregate{}, false
}

// Validate checks the volume invariants: subcategory volumes never exceed
// their parent and category volumes add up to the total.
func (s Summary) Validate() error {
	var problems []string
	sum := 0
	for _, c := range s.Categories {
		sum += c.Volume
		subSum := 0
		for _, sub := range c.Subcategories {
			subSum += sub.Volume
		}
		if subSum > c.Volume {
			problems = append(problems, fmt.Sprintf("category %q subcategory volume %d exceeds category volume %d", c.Name, subSum, c.Volume))
		}
	}
	if sum != s.Total {
		problems = append(problems, fmt.Sprintf("category volumes sum to %d, total is %d", sum, s.Total))
	}
	if len(problems) > 0 {
		return fmt.Errorf("aggregate invariant violated: %s", strings.Join(problems, "; "))
	}
	return nil
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func byVolume(va, vb int, na, nb string) bool {
	if va != vb {
		return va > vb
	}
	return na < nb
}
