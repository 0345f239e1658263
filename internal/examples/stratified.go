package examples

import (
	"context"
	"sort"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
)

// Quota is the number of examples a category gets in a multi-category report.
type Quota struct {
	Category string  `json:"category"`
	Volume   int     `json:"volume"`
	Share    float64 `json:"share"`
	Count    int     `json:"count"`
}

// CategoryVolume is the input to AllocateQuotas.
type CategoryVolume struct {
	Category string
	Volume   int
}

// Quota tiers by share of total volume. A category below every tier still
// gets one example, so a 12% category gets 1 and a 60/25/15 split gets 3/2/1.
// Lowering these to 20%/10% would give that split 3/3/2.
const (
	threeExampleShare = 0.30
	twoExampleShare   = 0.20
)

// AllocateQuotas gives each category 3, 2 or 1 examples by its share of the
// total volume, ordered by volume descending. Categories with no volume get
// no quota.
func AllocateQuotas(volumes []CategoryVolume) []Quota {
	total := 0
	for _, v := range volumes {
		if v.Volume > 0 {
			total += v.Volume
		}
	}
	if total == 0 {
		return nil
	}

	var out []Quota
	for _, v := range volumes {
		if v.Volume <= 0 {
			continue
		}
		share := float64(v.Volume) / float64(total)
		q := Quota{Category: v.Category, Volume: v.Volume, Share: share, Count: 1}
		switch {
		case share >= threeExampleShare:
			q.Count = 3
		case share >= twoExampleShare:
			q.Count = 2
		}
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Volume != out[j].Volume {
			return out[i].Volume > out[j].Volume
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Group is the conversations whose primary classification is Category.
type Group struct {
	Category      string
	Conversations []conversation.Conversation
}

// Stratified is the combined example set of a multi-category report.
type Stratified struct {
	Quotas      []Quota     `json:"quotas"`
	Selections  []Selection `json:"selections"`
	Examples    []Example   `json:"examples"`
	Limitations []string    `json:"limitations,omitempty"`
}

// SelectStratified allocates quotas by group size and selects each category
// independently, concatenating the results in quota order.
func (s *Selector) SelectStratified(ctx context.Context, groups []Group, sentiment string) Stratified {
	byName := make(map[string][]conversation.Conversation, len(groups))
	var order []string
	for _, g := range groups {
		if _, ok := byName[g.Category]; !ok {
			order = append(order, g.Category)
		}
		byName[g.Category] = append(byName[g.Category], g.Conversations...)
	}
	volumes := make([]CategoryVolume, 0, len(order))
	for _, name := range order {
		volumes = append(volumes, CategoryVolume{Category: name, Volume: len(byName[name])})
	}

	out := Stratified{Quotas: AllocateQuotas(volumes)}
	for _, q := range out.Quotas {
		if ctx.Err() != nil {
			out.Limitations = append(out.Limitations, "selection cancelled before category "+q.Category)
			break
		}
		sel := s.Select(ctx, q.Category, byName[q.Category], sentiment, q.Count)
		out.Selections = append(out.Selections, sel)
		out.Examples = append(out.Examples, sel.Examples...)
		out.Limitations = append(out.Limitations, sel.Limitations...)
	}
	out.Limitations = uniqueStrings(out.Limitations)
	if len(out.Quotas) > 0 {
		s.warnCount("all", len(out.Examples))
	}
	return out
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
