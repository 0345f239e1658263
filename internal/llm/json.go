package llm

import (
	"encoding/json"
	"strings"
)

// StripCodeFence removes a surrounding ``` or ```json fence from a model reply.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "[{") {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON returns the first complete JSON value that starts with open,
// e.g. '[', after stripping fences. Models often wrap the payload in prose,
// and text after the value is ignored.
func ExtractJSON(s string, open, close byte) (string, bool) {
	s = StripCodeFence(s)
	for i := strings.IndexByte(s, open); i >= 0; {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&raw); err == nil && raw[len(raw)-1] == close {
			return string(raw), true
		}
		next := strings.IndexByte(s[i+1:], open)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", false
}
