package examples

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/llm"
	"github.com/MikeSquared-Agency/sift/internal/metrics"
)

const (
	DefaultTarget = 10

	shortlistFloor   = 2.0
	shortlistCap     = 20
	shortlistMinimum = 10
	relaxedSize      = 15

	minHealthyCount = 5
	maxHealthyCount = 15
)

// Options configures a Selector. Zero values are usable.
type Options struct {
	WorkspaceID          string
	InboxURL             string
	BaselineLanguage     string
	TranslateConcurrency int
	// MinTranslateRunes is the preview length below which translation is skipped.
	MinTranslateRunes int
	Now               func() time.Time
}

// Candidate is a scored conversation.
type Candidate struct {
	Conversation conversation.Conversation
	Message      string
	Score        Score
}

// Selection is the outcome of selecting examples for one category.
type Selection struct {
	Category    string    `json:"category"`
	Examples    []Example `json:"examples"`
	Reranked    bool      `json:"reranked"`
	Limitations []string  `json:"limitations,omitempty"`
}

// Selector is safe for concurrent use.
type Selector struct {
	gen    llm.Generator
	tr     llm.Translator
	opts   Options
	linker Linker
	logger *slog.Logger
}

// New builds a Selector. gen and tr may be nil; the rule-based path runs
// without them.
func New(gen llm.Generator, tr llm.Translator, opts Options, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BaselineLanguage == "" {
		opts.BaselineLanguage = "en"
	}
	opts.BaselineLanguage = strings.ToLower(opts.BaselineLanguage)
	if opts.TranslateConcurrency < 1 {
		opts.TranslateConcurrency = 1
	}
	if opts.MinTranslateRunes <= 0 {
		opts.MinTranslateRunes = minMessageRunes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Selector{
		gen:    gen,
		tr:     tr,
		opts:   opts,
		linker: NewLinker(opts.InboxURL, opts.WorkspaceID),
		logger: logger,
	}
}

// Select picks up to target examples for one category. Failures of the
// language model or translator are absorbed; shortfalls are reported as
// Limitations.
func (s *Selector) Select(ctx context.Context, category string, convs []conversation.Conversation, sentiment string, target int) Selection {
	if target <= 0 {
		target = DefaultTarget
	}
	sel := Selection{Category: category}

	sc := ScoreContext{Sentiment: NewSentiment(sentiment), Now: s.opts.Now()}
	candidates := ScoreAll(convs, sc)
	if len(candidates) == 0 {
		sel.Limitations = append(sel.Limitations,
			fmt.Sprintf("%s: no conversation has a customer message of at least %d characters", category, minMessageRunes))
		s.logger.Warn("no qualifying example candidates", "category", category, "count", len(convs))
		return sel
	}

	shortlist := Shortlist(candidates)
	picked, reranked := s.rerank(ctx, category, sentiment, shortlist, target)
	sel.Reranked = reranked

	for _, c := range picked {
		sel.Examples = append(sel.Examples, s.format(category, c))
	}
	s.translate(ctx, sel.Examples)

	if len(sel.Examples) < target {
		sel.Limitations = append(sel.Limitations,
			fmt.Sprintf("%s: only %d of %d requested examples available", category, len(sel.Examples), target))
	}
	if s.linker.Placeholder() {
		sel.Limitations = append(sel.Limitations, "workspace id not configured; example links are placeholders")
	}
	// Small stratified quotas are checked on the combined report instead.
	if target >= minHealthyCount {
		s.warnCount(category, len(sel.Examples))
	}
	metrics.ExamplesSelected.Add(float64(len(sel.Examples)))
	return sel
}

func (s *Selector) warnCount(category string, n int) {
	if n >= minHealthyCount && n <= maxHealthyCount {
		return
	}
	s.logger.Warn("example count outside expected range",
		"category", category,
		"count", n,
		"min", minHealthyCount,
		"max", maxHealthyCount,
	)
}

// ScoreAll scores every conversation and drops the disqualified ones.
func ScoreAll(convs []conversation.Conversation, sc ScoreContext) []Candidate {
	out := make([]Candidate, 0, len(convs))
	for _, conv := range convs {
		score := ScoreConversation(conv, sc)
		if score.Disqualified {
			continue
		}
		out = append(out, Candidate{
			Conversation: conv,
			Message:      strings.TrimSpace(conv.FirstCustomerMessage()),
			Score:        score,
		})
	}
	return out
}

// Shortlist ranks candidates and keeps those at or above the score floor, up
// to the cap. When too few clear the floor it falls back to the best few by
// raw score.
func Shortlist(candidates []Candidate) []Candidate {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranks(ranked[i], ranked[j]) })

	var floor []Candidate
	for _, c := range ranked {
		if c.Score.Total >= shortlistFloor {
			floor = append(floor, c)
		}
	}
	if len(floor) >= shortlistMinimum {
		if len(floor) > shortlistCap {
			floor = floor[:shortlistCap]
		}
		return floor
	}
	if len(ranked) > relaxedSize {
		ranked = ranked[:relaxedSize]
	}
	return ranked
}

// ranks orders by score, then newer first, then id.
func ranks(a, b Candidate) bool {
	if a.Score.Total != b.Score.Total {
		return a.Score.Total > b.Score.Total
	}
	at, bt := a.Conversation.CreatedAt, b.Conversation.CreatedAt
	if at.Valid != bt.Valid {
		return at.Valid
	}
	if at.Valid && !at.Time.Equal(bt.Time) {
		return at.Time.After(bt.Time)
	}
	return a.Conversation.ID < b.Conversation.ID
}

// rerank asks the model to choose from the shortlist and tops its picks up
// from the rule-based order. Any failure falls back to the rule-based top.
func (s *Selector) rerank(ctx context.Context, category, sentiment string, shortlist []Candidate, target int) ([]Candidate, bool) {
	fallback := shortlist
	if len(fallback) > target {
		fallback = fallback[:target]
	}
	if s.gen == nil || len(shortlist) <= 1 {
		metrics.Reranks.WithLabelValues("skipped").Inc()
		return fallback, false
	}

	reply, err := s.gen.Generate(ctx, buildRerankPrompt(category, sentiment, shortlist, target))
	if err != nil {
		s.logger.Warn("example rerank failed, using rule-based order", "category", category, "error", err)
		metrics.Reranks.WithLabelValues("fallback").Inc()
		return fallback, false
	}
	indices, err := parseIndices(reply, len(shortlist))
	if err != nil {
		s.logger.Warn("unusable rerank reply, using rule-based order", "category", category, "error", err)
		metrics.Reranks.WithLabelValues("fallback").Inc()
		return fallback, false
	}

	picked := make([]Candidate, 0, target)
	used := make(map[int]bool, target)
	for _, i := range indices {
		if len(picked) == target {
			break
		}
		picked = append(picked, shortlist[i])
		used[i] = true
	}
	for i, c := range shortlist {
		if len(picked) == target {
			break
		}
		if !used[i] {
			picked = append(picked, c)
		}
	}
	metrics.Reranks.WithLabelValues("llm").Inc()
	return picked, true
}

func buildRerankPrompt(category, sentiment string, shortlist []Candidate, target int) string {
	if strings.TrimSpace(sentiment) == "" {
		sentiment = defaultSentimentDescription
	}
	if target > len(shortlist) {
		target = len(shortlist)
	}
	var b strings.Builder
	for i, c := range shortlist {
		preview := strings.Join(strings.Fields(Truncate(c.Message, promptPreviewRunes)), " ")
		fmt.Fprintf(&b, "%d. %s\n", i+1, preview)
	}
	return fmt.Sprintf(rerankPrompt, category, sentiment, len(shortlist), target, b.String())
}

// parseIndices reads a JSON array of 1-based indices and returns the valid,
// distinct ones as 0-based positions in reply order.
func parseIndices(reply string, n int) ([]int, error) {
	body, ok := llm.ExtractJSON(reply, '[', ']')
	if !ok {
		return nil, fmt.Errorf("no JSON array in reply %q", Truncate(reply, promptPreviewRunes))
	}
	var raw []json.Number
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("parse rerank indices: %w", err)
	}
	seen := make(map[int]bool, len(raw))
	var out []int
	for _, num := range raw {
		v, err := num.Int64()
		if err != nil {
			continue
		}
		i := int(v) - 1
		if i < 0 || i >= n || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rerank reply has no valid indices in 1..%d", n)
	}
	return out, nil
}
