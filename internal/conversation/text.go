package conversation

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// PlainText strips markup and collapses whitespace.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	s = htmlTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// FirstCustomerMessage returns the opening customer-authored text, or "" when
// the customer never wrote anything.
func (c Conversation) FirstCustomerMessage() string {
	if c.Body != "" && c.BodyRole != RoleStaff {
		return c.Body
	}
	for _, p := range c.Parts {
		if p.Role == RoleCustomer && p.Body != "" {
			return p.Body
		}
	}
	return ""
}

// Text concatenates the body and every reply, in order.
func (c Conversation) Text() string {
	var b strings.Builder
	b.WriteString(c.Body)
	for _, p := range c.Parts {
		if p.Body == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Body)
	}
	return b.String()
}

// Attribute looks up a custom attribute by case-insensitive key.
func (c Conversation) Attribute(key string) (any, bool) {
	if v, ok := c.Attributes[key]; ok {
		return v, true
	}
	for k, v := range c.Attributes {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// AttributeString returns a custom attribute rendered as trimmed text.
func (c Conversation) AttributeString(key string) string {
	v, ok := c.Attribute(key)
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// Language returns the lower-cased primary language subtag from the
// "language", "lang" or "locale" attribute, or "" when none is set.
func (c Conversation) Language() string {
	for _, key := range []string{"language", "lang", "locale"} {
		if s := c.AttributeString(key); s != "" {
			s = strings.ToLower(s)
			if i := strings.IndexAny(s, "-_"); i > 0 {
				s = s[:i]
			}
			return s
		}
	}
	return ""
}

// HasRating reports whether the customer left an explicit satisfaction rating.
func (c Conversation) HasRating() bool {
	if c.Rating != nil {
		return true
	}
	for _, key := range []string{"rating", "csat", "satisfaction", "score"} {
		if v, ok := c.Attribute(key); ok {
			switch x := v.(type) {
			case float64:
				return true
			case string:
				if _, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
					return true
				}
			}
		}
	}
	return false
}
