package filter

import (
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/signals"
)

var escalationPhrases = compileAll(
	`\bescalat(?:e|ed|es|ing|ion)\b`,
	`\btransfer(?:red|ring|s)?\b`,
	`\bhand(?:ed|ing)?(?: it| this| you| the case)? (?:off|over)\b`,
	`\b(?:forward|forwarded|forwarding|pass|passed|passing|route|routed|routing) (?:this|it|your (?:case|ticket|request|question))(?: on)? to\b`,
	`\bloop(?:ed|ing)? in\b`,
	`\bbring(?:ing)? in (?:our|the|a) \w+ team\b`,
)

// Tags that mark a conversation as escalated without any phrasing.
var escalationTags = map[string]bool{
	"escalated":  true,
	"escalation": true,
	"escalate":   true,
}

const (
	escalationWithTarget = 0.75
	escalationPhraseOnly = 0.6
)

type escalationIndex struct {
	roster []signals.KeywordMatcher
}

func newEscalationIndex(targets []string) escalationIndex {
	return escalationIndex{roster: signals.CompileKeywords(targets)}
}

// earliestTarget returns the roster entry mentioned first in text.
func (x escalationIndex) earliestTarget(text string) string {
	best, bestAt := "", -1
	for _, m := range x.roster {
		if i := m.Index(text); i >= 0 && (bestAt < 0 || i < bestAt) {
			best, bestAt = m.Keyword, i
		}
	}
	return best
}

// FilterByEscalation returns conversations handed between tiers or teams.
// With target empty every escalation matches and the first roster target
// mentioned is annotated; otherwise the named target must be mentioned too.
func (e *Engine) FilterByEscalation(convs []conversation.Conversation, target string) []Match {
	target = strings.ToLower(strings.TrimSpace(target))
	var want signals.KeywordMatcher
	if target != "" {
		want = signals.CompileKeyword(target)
	}

	var out []Match
	for _, conv := range convs {
		sig := signals.Extract(conv)

		m := Match{Conversation: conv, ConversationID: conv.ID}
		if tag, ok := firstEscalationTag(sig.Tags); ok {
			m.Reason, m.Detail, m.Confidence = ReasonTag, tag, ExplicitConfidence
		} else if phrase := firstPhrase(sig.Text); phrase != "" {
			m.Reason, m.Detail = ReasonEscalation, phrase
		} else {
			continue
		}

		if target != "" {
			if !want.Match(sig.Text) && !containsName(sig.Tags, target) {
				continue
			}
			m.Target = target
		} else {
			m.Target = e.escalation.earliestTarget(sig.Text)
		}

		if m.Reason == ReasonEscalation {
			m.Confidence = escalationPhraseOnly
			if m.Target != "" {
				m.Confidence = escalationWithTarget
			}
		}
		out = append(out, m)
	}
	return out
}

func firstEscalationTag(tags []string) (string, bool) {
	for _, t := range tags {
		if escalationTags[t] {
			return t, true
		}
	}
	return "", false
}

func firstPhrase(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range escalationPhrases {
		if found := re.FindString(text); found != "" {
			return found
		}
	}
	return ""
}

func containsName(names []string, want string) bool {
	want = signals.NormalizeName(want)
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}
