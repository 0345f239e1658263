package filter

import (
	"regexp"
	"sort"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/signals"
)

// Technical pattern names.
const (
	PatternCacheClearing    = "cache_clearing"
	PatternBrowserSwitching = "browser_switching"
	PatternConnectivity     = "connectivity"
	PatternExport           = "export"
	PatternAPI              = "api"
)

type technicalPattern struct {
	name     string
	patterns []*regexp.Regexp
}

var technicalPatterns = []technicalPattern{
	{PatternCacheClearing, compileAll(
		`\bclear(?:ed|ing|s)? (?:the |your |my )?(?:browser )?(?:cache|cookies|history)\b`,
		`\b(?:cache|cookies) (?:cleared|clearing)\b`,
		`\bhard (?:refresh|reload)\b`,
		`\bincognito\b`,
		`\bprivate (?:window|browsing|mode)\b`,
	)},
	{PatternBrowserSwitching, compileAll(
		`\b(?:try|tried|trying|switch|switched|switching|use|using) (?:a |another |different )*(?:browser|chrome|firefox|safari|edge)\b`,
		`\b(?:different|another|other) browser\b`,
		`\bworks?(?:ed)? (?:fine |ok |okay )?(?:in|on|with) (?:chrome|firefox|safari|edge)\b`,
	)},
	{PatternConnectivity, compileAll(
		`\b(?:network|internet|wi-?fi|vpn|proxy|firewall)\b`,
		`\bconnection (?:error|issue|problem|lost|dropped|refused|reset)s?\b`,
		`\btimed? ?out\b`,
		`\b(?:offline|disconnect(?:ed|s|ing)?)\b`,
		`\bdns\b`,
	)},
	{PatternExport, compileAll(
		`\bexport(?:s|ed|ing)?\b`,
		`\bdownload(?:s|ed|ing)? (?:the |a |my )?(?:pdf|csv|xlsx?|file|report)s?\b`,
		`\b(?:pdf|csv)\b`,
	)},
	{PatternAPI, compileAll(
		`\bapi\b`,
		`\bendpoints?\b`,
		`\bwebhooks?\b`,
		`\b(?:401|403|429|500|502|503)\b`,
		`\b(?:rate limit(?:ed)?|status code)\b`,
	)},
}

// FilterByTechnicalPatterns reports every troubleshooting pattern present in
// each conversation. A conversation may match several patterns at once.
func (e *Engine) FilterByTechnicalPatterns(convs []conversation.Conversation) []Match {
	var out []Match
	for _, conv := range convs {
		text := signals.Extract(conv).Text
		if text == "" {
			continue
		}
		var names, evidence []string
		for _, tp := range technicalPatterns {
			for _, re := range tp.patterns {
				if found := re.FindString(text); found != "" {
					names = append(names, tp.name)
					evidence = append(evidence, found)
					break
				}
			}
		}
		if len(names) == 0 {
			continue
		}
		out = append(out, Match{
			Conversation:    conv,
			ConversationID:  conv.ID,
			Confidence:      TextConfidence(len(names)),
			Reason:          ReasonTechnical,
			Patterns:        names,
			MatchedKeywords: evidence,
		})
	}
	return out
}

// PatternCount is how many matches carried one technical pattern.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// SummarizeTechnical counts each pattern across matches, most frequent first.
func SummarizeTechnical(ms []Match) []PatternCount {
	counts := make(map[string]int)
	for _, m := range ms {
		for _, p := range m.Patterns {
			counts[p]++
		}
	}
	out := make([]PatternCount, 0, len(counts))
	for p, n := range counts {
		out = append(out, PatternCount{Pattern: p, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}
