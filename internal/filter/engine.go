// Package filter answers precision queries over a batch of conversations:
// everything matching a named category, subcategory, custom tag, agent or
// escalation target, plus technical troubleshooting patterns.
//
// Unlike the classifier, a conversation may appear in the results of several
// queries. Filters feed drill-downs, never volume percentages.
package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/signals"
	"github.com/MikeSquared-Agency/sift/internal/taxonomy"
)

// Reason says which evidence produced a match.
type Reason string

const (
	ReasonTag        Reason = "tag"
	ReasonTopic      Reason = "topic"
	ReasonKeyword    Reason = "keyword"
	ReasonPattern    Reason = "pattern"
	ReasonAssignee   Reason = "assignee"
	ReasonTeammate   Reason = "teammate_reply"
	ReasonEscalation Reason = "escalation_phrase"
	ReasonTechnical  Reason = "technical_pattern"
)

const (
	// ExplicitConfidence is used when a tag or topic names the query directly.
	ExplicitConfidence = 0.8

	textBase = 0.5
	textStep = 0.05
	textCap  = 0.75
)

// Kind names one of the filter operations.
type Kind string

const (
	KindCategory    Kind = "category"
	KindSubcategory Kind = "subcategory"
	KindCustomTag   Kind = "custom_tag"
	KindAgent       Kind = "agent"
	KindEscalation  Kind = "escalation"
	KindTechnical   Kind = "technical"
)

var ErrUnknownKind = errors.New("unknown filter kind")

// Match is one conversation selected by a query, annotated with why.
type Match struct {
	Conversation    conversation.Conversation `json:"-"`
	ConversationID  string                    `json:"conversation_id"`
	Category        string                    `json:"category,omitempty"`
	Subcategory     string                    `json:"subcategory,omitempty"`
	Confidence      float64                   `json:"confidence"`
	Reason          Reason                    `json:"reason"`
	Detail          string                    `json:"detail,omitempty"`
	MatchedKeywords []string                  `json:"matched_keywords,omitempty"`
	Target          string                    `json:"target,omitempty"`
	Patterns        []string                  `json:"patterns,omitempty"`
}

type queryIndex struct {
	category    string
	subcategory string
	exact       map[string]bool
	keywords    []signals.KeywordMatcher
	patterns    []*regexp.Regexp
}

type subKey struct{ category, subcategory string }

// Engine holds every compiled keyword table. It is immutable after New and
// safe for concurrent use.
type Engine struct {
	reg           *taxonomy.Registry
	categories    map[string]*queryIndex
	subcategories map[subKey]*queryIndex
	customTags    map[string]*queryIndex
	escalation    escalationIndex
	logger        *slog.Logger
}

// New compiles the query tables for reg.
func New(reg *taxonomy.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		reg:           reg,
		categories:    make(map[string]*queryIndex),
		subcategories: make(map[subKey]*queryIndex),
		customTags:    make(map[string]*queryIndex),
		logger:        logger,
	}
	if reg == nil {
		return e
	}

	for _, cat := range reg.Categories() {
		all := append([]string(nil), cat.Keywords...)
		for _, sub := range cat.Subcategories {
			all = append(all, sub.Keywords...)
			e.subcategories[subKey{signals.NormalizeName(cat.Name), signals.NormalizeName(sub.Name)}] = &queryIndex{
				category:    cat.Name,
				subcategory: sub.Name,
				exact:       exactSet(sub.Name, sub.Keywords),
				keywords:    signals.CompileKeywords(sub.Keywords),
			}
		}
		idx := &queryIndex{
			category: cat.Name,
			exact:    exactSet(cat.Name, all),
			keywords: signals.CompileKeywords(all),
		}
		for _, sub := range cat.Subcategories {
			idx.exact[signals.NormalizeName(sub.Name)] = true
		}
		for _, p := range cat.Patterns {
			// Patterns were validated by the registry.
			idx.patterns = append(idx.patterns, regexp.MustCompile(`(?i)`+p))
		}
		e.categories[signals.NormalizeName(cat.Name)] = idx
	}

	for _, ct := range reg.CustomTags() {
		e.customTags[signals.NormalizeName(ct.Tag)] = &queryIndex{
			category:    ct.Category,
			subcategory: ct.Subcategory,
			exact:       map[string]bool{signals.NormalizeName(ct.Tag): true},
			keywords:    signals.CompileKeywords(ct.Keywords),
		}
	}

	e.escalation = newEscalationIndex(reg.EscalationTargets())
	return e
}

// Run dispatches to the operation named by kind. query is ignored by the
// technical filter and optional for the escalation filter.
func (e *Engine) Run(kind Kind, convs []conversation.Conversation, query string) ([]Match, error) {
	switch kind {
	case KindCategory:
		return e.FilterByCategory(convs, query), nil
	case KindSubcategory:
		return e.FilterBySubcategory(convs, query), nil
	case KindCustomTag:
		return e.FilterByCustomTag(convs, query), nil
	case KindAgent:
		return e.FilterByAgent(convs, query), nil
	case KindEscalation:
		return e.FilterByEscalation(convs, query), nil
	case KindTechnical:
		return e.FilterByTechnicalPatterns(convs), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// FilterByCategory returns every conversation matching the named category.
// An explicit tag or topic short-circuits the keyword scan.
func (e *Engine) FilterByCategory(convs []conversation.Conversation, name string) []Match {
	idx, ok := e.categories[signals.NormalizeName(name)]
	if !ok {
		e.logger.Debug("filter on unknown category", "category", name)
		return nil
	}
	return e.scan(convs, idx)
}

// FilterBySubcategory accepts "Category/Sub", "Category > Sub" or a bare
// subcategory name. Matches carry the parent category.
func (e *Engine) FilterBySubcategory(convs []conversation.Conversation, name string) []Match {
	if e.reg == nil {
		return nil
	}
	cat, sub, ok := e.reg.Subcategory(strings.TrimSpace(name))
	if !ok {
		e.logger.Debug("filter on unknown subcategory", "subcategory", name)
		return nil
	}
	idx := e.subcategories[subKey{signals.NormalizeName(cat.Name), signals.NormalizeName(sub.Name)}]
	if idx == nil {
		return nil
	}
	return e.scan(convs, idx)
}

// FilterByCustomTag resolves an organization-specific tag through the curated
// mapping. Tags with no mapping still match on literal tag presence.
func (e *Engine) FilterByCustomTag(convs []conversation.Conversation, tag string) []Match {
	key := signals.NormalizeName(tag)
	if key == "" {
		return nil
	}
	idx, ok := e.customTags[key]
	if !ok {
		e.logger.Debug("custom tag has no mapping, matching tag presence only", "tag", tag)
		idx = &queryIndex{exact: map[string]bool{key: true}}
	}
	return e.scan(convs, idx)
}

// scan applies the shared explicit-then-text matching rule.
func (e *Engine) scan(convs []conversation.Conversation, idx *queryIndex) []Match {
	var out []Match
	for _, conv := range convs {
		if m, ok := matchIndex(conv, idx); ok {
			out = append(out, m)
		}
	}
	return out
}

func matchIndex(conv conversation.Conversation, idx *queryIndex) (Match, bool) {
	sig := signals.Extract(conv)
	m := Match{
		Conversation:   conv,
		ConversationID: conv.ID,
		Category:       idx.category,
		Subcategory:    idx.subcategory,
	}

	if name, ok := firstExact(sig.Tags, idx.exact); ok {
		m.Confidence, m.Reason, m.Detail = ExplicitConfidence, ReasonTag, name
		return m, true
	}
	if name, ok := firstExact(sig.Topics, idx.exact); ok {
		m.Confidence, m.Reason, m.Detail = ExplicitConfidence, ReasonTopic, name
		return m, true
	}

	if sig.Text == "" {
		return Match{}, false
	}
	hits := signals.Hits(sig.Text, idx.keywords)
	var patterns []string
	for _, re := range idx.patterns {
		if found := re.FindString(sig.Text); found != "" {
			patterns = append(patterns, found)
		}
	}
	evidence := distinctFold(append(hits, patterns...))
	if len(evidence) == 0 {
		return Match{}, false
	}
	m.Confidence = TextConfidence(len(evidence))
	m.MatchedKeywords = evidence
	m.Reason = ReasonKeyword
	if len(hits) == 0 {
		m.Reason = ReasonPattern
	}
	return m, true
}

// TextConfidence grows with the number of distinct hits but stays below
// ExplicitConfidence.
func TextConfidence(hits int) float64 {
	if hits <= 0 {
		return 0
	}
	c := textBase + textStep*float64(hits-1)
	if c > textCap {
		c = textCap
	}
	return c
}

// FilterByAgent matches the assignee's id, email or name, then any teammate
// who replied in the conversation.
func (e *Engine) FilterByAgent(convs []conversation.Conversation, agent string) []Match {
	q := strings.ToLower(strings.TrimSpace(agent))
	if q == "" {
		return nil
	}
	var out []Match
	for _, conv := range convs {
		m := Match{Conversation: conv, ConversationID: conv.ID, Target: agent}
		a := conv.Assignee
		switch {
		case a.ID != "" && strings.EqualFold(a.ID, q), a.Email != "" && strings.EqualFold(a.Email, q):
			m.Confidence, m.Reason, m.Detail = 1.0, ReasonAssignee, firstNonEmpty(a.Name, a.Email, a.ID)
		case a.Name != "" && strings.Contains(strings.ToLower(a.Name), q):
			m.Confidence, m.Reason, m.Detail = 0.9, ReasonAssignee, a.Name
		default:
			p, ok := teammateReply(conv, q)
			if !ok {
				continue
			}
			m.Confidence, m.Reason, m.Detail = 0.6, ReasonTeammate, firstNonEmpty(p.AuthorName, p.AuthorID)
		}
		out = append(out, m)
	}
	return out
}

func teammateReply(conv conversation.Conversation, q string) (conversation.Part, bool) {
	for _, p := range conv.Parts {
		if p.Role != conversation.RoleStaff {
			continue
		}
		if p.AuthorID != "" && strings.EqualFold(p.AuthorID, q) {
			return p, true
		}
		if p.AuthorName != "" && strings.Contains(strings.ToLower(p.AuthorName), q) {
			return p, true
		}
	}
	return conversation.Part{}, false
}

// Conversations unwraps matches back into their conversations, in order.
func Conversations(ms []Match) []conversation.Conversation {
	out := make([]conversation.Conversation, len(ms))
	for i, m := range ms {
		out[i] = m.Conversation
	}
	return out
}

func firstExact(names []string, exact map[string]bool) (string, bool) {
	for _, n := range names {
		if exact[n] {
			return n, true
		}
	}
	return "", false
}

func exactSet(name string, keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords)+1)
	set[signals.NormalizeName(name)] = true
	for _, kw := range keywords {
		set[signals.NormalizeName(kw)] = true
	}
	return set
}

// distinctFold drops case-insensitive repeats, keeping first occurrences.
func distinctFold(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
