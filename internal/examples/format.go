package examples

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/sift/internal/conversation"
)

const (
	PreviewRunes       = 80
	promptPreviewRunes = 200
	ellipsis           = "..."

	// PlaceholderWorkspace stands in for the workspace id in deep links when
	// none is configured.
	PlaceholderWorkspace = "_"
	DefaultInboxURL      = "https://app.intercom.com/a/inbox"
)

// Example is one representative conversation as it appears in the report.
type Example struct {
	ConversationID string                 `json:"conversation_id"`
	Category       string                 `json:"category"`
	Preview        string                 `json:"preview"`
	Link           string                 `json:"link"`
	Language       string                 `json:"language"`
	Translation    string                 `json:"translation,omitempty"`
	CreatedAt      conversation.Timestamp `json:"created_at"`
	Score          float64                `json:"score"`
}

// Truncate shortens s to at most limit runes, ending in "..." when cut.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:keep]), " ") + ellipsis
}

// Linker builds deep links into the support inbox.
type Linker struct {
	base      string
	workspace string
}

// NewLinker never fails: an empty workspace id yields placeholder links and
// an empty base uses DefaultInboxURL.
func NewLinker(inboxURL, workspaceID string) Linker {
	inboxURL = strings.TrimRight(strings.TrimSpace(inboxURL), "/")
	if inboxURL == "" {
		inboxURL = DefaultInboxURL
	}
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		workspaceID = PlaceholderWorkspace
	}
	return Linker{base: inboxURL, workspace: workspaceID}
}

// Placeholder reports whether links lack a real workspace id.
func (l Linker) Placeholder() bool { return l.workspace == PlaceholderWorkspace }

// Link is the deep link for one conversation.
func (l Linker) Link(conversationID string) string {
	return l.base + "/" + url.PathEscape(l.workspace) + "/inbox/conversation/" + url.PathEscape(conversationID)
}

// ConversationIDFromLink reads the conversation id back out of a link built by
// Linker.Link.
func ConversationIDFromLink(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	segs := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i := len(segs) - 2; i >= 0; i-- {
		if segs[i] != "conversation" {
			continue
		}
		id, err := url.PathUnescape(segs[i+1])
		if err != nil || id == "" {
			return "", false
		}
		return id, true
	}
	return "", false
}

// format turns a scored candidate into an Example.
func (s *Selector) format(category string, c Candidate) Example {
	lang := c.Conversation.Language()
	if lang == "" {
		lang = s.opts.BaselineLanguage
	}
	return Example{
		ConversationID: c.Conversation.ID,
		Category:       category,
		Preview:        Truncate(c.Message, PreviewRunes),
		Link:           s.linker.Link(c.Conversation.ID),
		Language:       lang,
		CreatedAt:      c.Conversation.CreatedAt,
		Score:          c.Score.Total,
	}
}
