package signals

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeywordMatcher matches one keyword on word boundaries, case-insensitively.
type KeywordMatcher struct {
	Keyword string
	re      *regexp.Regexp
}

// CompileKeyword builds a matcher for kw. Word boundaries are only enforced on
// sides where the keyword starts or ends with a word character, so "2fa",
// "make.com" and "doesn't work" all behave.
func CompileKeyword(kw string) KeywordMatcher {
	kw = strings.ToLower(strings.TrimSpace(kw))
	pattern := regexp.QuoteMeta(kw)
	if first, _ := utf8.DecodeRuneInString(kw); isWordRune(first) {
		pattern = `\b` + pattern
	}
	if last, _ := utf8.DecodeLastRuneInString(kw); isWordRune(last) {
		pattern = pattern + `\b`
	}
	return KeywordMatcher{Keyword: kw, re: regexp.MustCompile(`(?i)` + pattern)}
}

// CompileKeywords compiles a keyword list in order.
func CompileKeywords(kws []string) []KeywordMatcher {
	out := make([]KeywordMatcher, 0, len(kws))
	for _, kw := range kws {
		if strings.TrimSpace(kw) == "" {
			continue
		}
		out = append(out, CompileKeyword(kw))
	}
	return out
}

// Match reports whether the keyword occurs in text.
func (m KeywordMatcher) Match(text string) bool {
	return m.re != nil && m.re.MatchString(text)
}

// Index returns the byte offset of the first occurrence in text, or -1.
func (m KeywordMatcher) Index(text string) int {
	if m.re == nil {
		return -1
	}
	loc := m.re.FindStringIndex(text)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// Hits returns the distinct keywords from ms found in text, in matcher order.
func Hits(text string, ms []KeywordMatcher) []string {
	if text == "" {
		return nil
	}
	var hits []string
	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		if seen[m.Keyword] {
			continue
		}
		if m.Match(text) {
			seen[m.Keyword] = true
			hits = append(hits, m.Keyword)
		}
	}
	return hits
}

// isWordRune mirrors RE2's ASCII-only \b.
func isWordRune(r rune) bool {
	return r < unicode.MaxASCII && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}
