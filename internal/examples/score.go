// Package examples picks a handful of representative verbatim conversations
// per category for the executive report.
//
// Selection is rule-based first: every candidate gets a pure heuristic Score,
// the best form a shortlist, and an optional language model may re-order the
// shortlist. The model refines the choice; it never gates it.
package examples

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/signals"
)

const (
	minMessageRunes  = 20
	fullMessageRunes = 50
	idealMaxRunes    = 200
)

// Score is the breakdown of one candidate's example-worthiness.
type Score struct {
	Message   float64 `json:"message"`
	Sentiment float64 `json:"sentiment"`
	Rating    float64 `json:"rating"`
	Recency   float64 `json:"recency"`
	Length    float64 `json:"length"`
	Total     float64 `json:"total"`
	// Disqualified is set when there is no usable customer message.
	Disqualified bool `json:"disqualified,omitempty"`
}

// ScoreContext is everything Score needs besides the conversation.
type ScoreContext struct {
	Sentiment Sentiment
	Now       time.Time
}

// ScoreConversation rates conv as an example. It is a pure function of its
// inputs.
func ScoreConversation(conv conversation.Conversation, sc ScoreContext) Score {
	msg := strings.TrimSpace(conv.FirstCustomerMessage())
	n := utf8.RuneCountInString(msg)

	var s Score
	switch {
	case n >= fullMessageRunes:
		s.Message = 2.0
	case n >= minMessageRunes:
		s.Message = 1.0
	default:
		return Score{Disqualified: true}
	}

	switch hits := sc.Sentiment.Hits(customerText(conv)); {
	case hits >= 2:
		s.Sentiment = 2.0
	case hits == 1:
		s.Sentiment = 1.5
	}

	if conv.HasRating() {
		s.Rating = 1.0
	}

	s.Recency = recencyBonus(conv.CreatedAt, sc.Now)

	if n >= fullMessageRunes && n <= idealMaxRunes {
		s.Length = 1.0
	}

	s.Total = s.Message + s.Sentiment + s.Rating + s.Recency + s.Length
	return s
}

// recencyBonus skips the term entirely when the timestamp is unusable.
func recencyBonus(ts conversation.Timestamp, now time.Time) float64 {
	if !ts.Valid || now.IsZero() {
		return 0
	}
	age := now.UTC().Sub(ts.Time.UTC())
	if age < 0 {
		age = 0
	}
	const day = 24 * time.Hour
	switch {
	case age <= 3*day:
		return 1.5
	case age <= 7*day:
		return 1.0
	case age <= 14*day:
		return 0.5
	default:
		return 0
	}
}

// customerText is every customer-authored message, lower-cased.
func customerText(conv conversation.Conversation) string {
	var b strings.Builder
	if conv.BodyRole != conversation.RoleStaff {
		b.WriteString(conv.Body)
	}
	for _, p := range conv.Parts {
		if p.Role != conversation.RoleCustomer || p.Body == "" {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(p.Body)
	}
	return strings.ToLower(b.String())
}

type sentimentFamily struct {
	name     string
	triggers []string
	keywords []string
}

var sentimentFamilies = []sentimentFamily{
	{
		name:     "negative",
		triggers: []string{"negative", "frustrat", "angry", "upset", "complain", "dissatisf", "unhappy", "churn", "detractor"},
		keywords: []string{"frustrated", "frustrating", "angry", "annoyed", "upset", "disappointed", "terrible", "awful", "horrible", "unacceptable", "ridiculous", "worst", "useless", "waste", "cancel", "still not", "again", "not working", "doesn't work"},
	},
	{
		name:     "positive",
		triggers: []string{"positive", "happy", "satisf", "delight", "praise", "promoter", "love"},
		keywords: []string{"love", "great", "amazing", "excellent", "awesome", "fantastic", "perfect", "helpful", "thank you", "thanks", "appreciate", "happy", "impressed"},
	},
	{
		name:     "confused",
		triggers: []string{"confus", "unclear", "question", "how-to", "how to", "onboarding"},
		keywords: []string{"confused", "confusing", "unclear", "don't understand", "do not understand", "not sure", "how do i", "how can i", "where is", "where do i", "can't find", "lost"},
	},
	{
		name:     "urgent",
		triggers: []string{"urgent", "critical", "blocked", "blocking", "outage", "escalat"},
		keywords: []string{"urgent", "asap", "immediately", "critical", "blocking", "blocked", "emergency", "right now", "production", "down"},
	},
}

// Sentiment matches customer text against the keyword families implied by a
// free-text sentiment description such as "frustrated enterprise admins".
type Sentiment struct {
	Description string
	matchers    []signals.KeywordMatcher
}

// NewSentiment resolves description to keyword families. A description that
// names no known family contributes its own longer words as keywords.
func NewSentiment(description string) Sentiment {
	desc := strings.ToLower(strings.TrimSpace(description))
	s := Sentiment{Description: description}
	if desc == "" {
		return s
	}

	var kws []string
	for _, f := range sentimentFamilies {
		for _, t := range f.triggers {
			if strings.Contains(desc, t) {
				kws = append(kws, f.keywords...)
				break
			}
		}
	}
	if len(kws) == 0 {
		for _, w := range strings.FieldsFunc(desc, func(r rune) bool {
			return !(r == '\'' || r == '-' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 127)
		}) {
			if utf8.RuneCountInString(w) > 3 {
				kws = append(kws, w)
			}
		}
	}
	s.matchers = signals.CompileKeywords(kws)
	return s
}

// Hits counts distinct family keywords present in text.
func (s Sentiment) Hits(text string) int {
	if len(s.matchers) == 0 {
		return 0
	}
	return len(signals.Hits(text, s.matchers))
}
