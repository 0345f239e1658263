// Package conversation models raw support conversations as delivered by the
// retrieval collaborator. Decoding is lenient: a malformed field degrades to
// its empty value instead of failing the record.
package conversation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Role is the author role of a message.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// NormalizeRole maps support-platform author types onto customer/staff.
// Unknown types default to customer.
func NormalizeRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "bot", "team", "staff", "agent", "operator", "teammate":
		return RoleStaff
	default:
		return RoleCustomer
	}
}

// Part is a single reply in a conversation thread.
type Part struct {
	Body       string    `json:"body"`
	Role       Role      `json:"author_role"`
	AuthorID   string    `json:"author_id,omitempty"`
	AuthorName string    `json:"author_name,omitempty"`
	CreatedAt  Timestamp `json:"created_at"`
}

// Assignee is the staff member a conversation is assigned to.
type Assignee struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Conversation is read-only to the rest of the module.
type Conversation struct {
	ID         string         `json:"id"`
	CreatedAt  Timestamp      `json:"created_at"`
	Body       string         `json:"body"`
	BodyRole   Role           `json:"author_role"`
	Parts      []Part         `json:"parts"`
	Tags       []string       `json:"tags"`
	Topics     []string       `json:"topics"`
	Assignee   Assignee       `json:"assignee"`
	Rating     *float64       `json:"rating,omitempty"`
	Attributes map[string]any `json:"custom_attributes,omitempty"`
}

type wireConversation struct {
	ID         json.RawMessage `json:"id"`
	CreatedAt  Timestamp       `json:"created_at"`
	Body       json.RawMessage `json:"body"`
	AuthorRole json.RawMessage `json:"author_role"`
	Source     json.RawMessage `json:"source"`
	Parts      json.RawMessage `json:"parts"`
	ConvParts  json.RawMessage `json:"conversation_parts"`
	Tags       json.RawMessage `json:"tags"`
	Topics     json.RawMessage `json:"topics"`
	Assignee   json.RawMessage `json:"assignee"`
	Rating     json.RawMessage `json:"rating"`
	ConvRating json.RawMessage `json:"conversation_rating"`
	Attributes json.RawMessage `json:"custom_attributes"`
}

type wireAuthor struct {
	Type  json.RawMessage `json:"type"`
	ID    json.RawMessage `json:"id"`
	Name  json.RawMessage `json:"name"`
	Email json.RawMessage `json:"email"`
}

type wirePart struct {
	Body       json.RawMessage `json:"body"`
	AuthorRole json.RawMessage `json:"author_role"`
	AuthorID   json.RawMessage `json:"author_id"`
	AuthorName json.RawMessage `json:"author_name"`
	Author     json.RawMessage `json:"author"`
	CreatedAt  Timestamp       `json:"created_at"`
}

type wireSource struct {
	Body   json.RawMessage `json:"body"`
	Author json.RawMessage `json:"author"`
}

// UnmarshalJSON only fails when the record is not a JSON object.
func (c *Conversation) UnmarshalJSON(b []byte) error {
	var w wireConversation
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("decode conversation: %w", err)
	}

	conv := Conversation{
		ID:         rawString(w.ID),
		CreatedAt:  w.CreatedAt,
		Body:       PlainText(rawString(w.Body)),
		BodyRole:   RoleCustomer,
		Tags:       decodeNames(w.Tags, "tags"),
		Topics:     decodeNames(w.Topics, "topics"),
		Assignee:   decodeAssignee(w.Assignee),
		Rating:     decodeRating(w.Rating),
		Attributes: decodeAttributes(w.Attributes),
	}
	if role := rawString(w.AuthorRole); role != "" {
		conv.BodyRole = NormalizeRole(role)
	}

	var src wireSource
	if len(w.Source) > 0 && json.Unmarshal(w.Source, &src) == nil {
		if conv.Body == "" {
			conv.Body = PlainText(rawString(src.Body))
		}
		var a wireAuthor
		if len(src.Author) > 0 && json.Unmarshal(src.Author, &a) == nil && rawString(a.Type) != "" {
			conv.BodyRole = NormalizeRole(rawString(a.Type))
		}
	}

	conv.Parts = decodeParts(w.Parts)
	if len(conv.Parts) == 0 {
		conv.Parts = decodeParts(w.ConvParts)
	}
	if conv.Rating == nil {
		conv.Rating = decodeRating(w.ConvRating)
	}

	*c = conv
	return nil
}

// DecodeList decodes a batch of conversations from either a JSON array or an
// object with a "conversations" array. Elements that are not objects are
// skipped and counted; only a malformed container is an error.
func DecodeList(data []byte) ([]Conversation, int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var wrapper struct {
			Conversations []json.RawMessage `json:"conversations"`
		}
		if werr := json.Unmarshal(data, &wrapper); werr != nil {
			return nil, 0, fmt.Errorf("decode conversation list: %w", err)
		}
		items = wrapper.Conversations
	}

	convs := make([]Conversation, 0, len(items))
	skipped := 0
	for _, raw := range items {
		var c Conversation
		if err := json.Unmarshal(raw, &c); err != nil {
			skipped++
			continue
		}
		convs = append(convs, c)
	}
	return convs, skipped, nil
}

func decodeParts(raw json.RawMessage) []Part {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapper struct {
			Parts []json.RawMessage `json:"conversation_parts"`
		}
		if json.Unmarshal(raw, &wrapper) != nil {
			return nil
		}
		items = wrapper.Parts
	}

	parts := make([]Part, 0, len(items))
	for _, item := range items {
		var wp wirePart
		if json.Unmarshal(item, &wp) != nil {
			continue
		}
		p := Part{
			Body:       PlainText(rawString(wp.Body)),
			Role:       RoleCustomer,
			AuthorID:   rawString(wp.AuthorID),
			AuthorName: rawString(wp.AuthorName),
			CreatedAt:  wp.CreatedAt,
		}
		role := rawString(wp.AuthorRole)
		var a wireAuthor
		if len(wp.Author) > 0 && json.Unmarshal(wp.Author, &a) == nil {
			if role == "" {
				role = rawString(a.Type)
			}
			if p.AuthorID == "" {
				p.AuthorID = rawString(a.ID)
			}
			if p.AuthorName == "" {
				p.AuthorName = rawString(a.Name)
			}
		}
		if role != "" {
			p.Role = NormalizeRole(role)
		}
		parts = append(parts, p)
	}
	return parts
}

// decodeNames accepts ["a"], [{"name":"a"}], {"<key>":[...]} or a bare string.
func decodeNames(raw json.RawMessage, key string) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapper map[string]json.RawMessage
		if json.Unmarshal(raw, &wrapper) == nil {
			if inner, ok := wrapper[key]; ok {
				return decodeNames(inner, key)
			}
			return nil
		}
		if s := rawString(raw); s != "" {
			return []string{s}
		}
		return nil
	}

	var names []string
	for _, item := range items {
		if s := rawString(item); s != "" {
			names = append(names, s)
			continue
		}
		var named struct {
			Name json.RawMessage `json:"name"`
		}
		if json.Unmarshal(item, &named) == nil {
			if s := rawString(named.Name); s != "" {
				names = append(names, s)
			}
		}
	}
	return names
}

func decodeAssignee(raw json.RawMessage) Assignee {
	if len(raw) == 0 {
		return Assignee{}
	}
	if s := rawString(raw); s != "" {
		return Assignee{ID: s}
	}
	var a wireAuthor
	if json.Unmarshal(raw, &a) != nil {
		return Assignee{}
	}
	return Assignee{ID: rawString(a.ID), Name: rawString(a.Name), Email: rawString(a.Email)}
}

func decodeRating(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	if f, ok := rawFloat(raw); ok {
		return &f
	}
	var obj struct {
		Rating json.RawMessage `json:"rating"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		if f, ok := rawFloat(obj.Rating); ok {
			return &f
		}
	}
	return nil
}

func decodeAttributes(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var attrs map[string]any
	if json.Unmarshal(raw, &attrs) != nil {
		return nil
	}
	return attrs
}

// rawString returns a JSON string or number as text, or "" for anything else.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func rawFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f, true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
