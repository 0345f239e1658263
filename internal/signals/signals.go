// Package signals pulls the raw classification evidence out of a conversation.
package signals

import (
	"strings"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
)

// Signals is the evidence a classifier works from. All values are lower-cased.
type Signals struct {
	Tags   []string
	Topics []string
	Text   string
}

// Empty reports whether there is nothing to classify on.
func (s Signals) Empty() bool {
	return len(s.Tags) == 0 && len(s.Topics) == 0 && s.Text == ""
}

// Extract never fails; missing fields simply yield empty signal sets.
func Extract(c conversation.Conversation) Signals {
	return Signals{
		Tags:   Names(c.Tags),
		Topics: Names(c.Topics),
		Text:   strings.ToLower(c.Text()),
	}
}

// Names lower-cases, trims and de-duplicates a name list, turning "-" and "_"
// separators into spaces so "credit-card" matches the keyword "credit card".
func Names(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = NormalizeName(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// NormalizeName canonicalizes a single tag or topic name.
func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
