package utils

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = bluemonday.UGCPolicy()
)

const maxSanitizePasses = 8

// SanitizeText strips all markup from user-supplied text and trims surrounding whitespace.
// Entities are decoded so plain text is stored as typed; decoding may expose markup that was
// entity-encoded in the input, so passes repeat until the text no longer changes. Input that
// does not settle is returned in its escaped form.
func SanitizeText(s string) string {
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(strictPolicy.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// SanitizeRichText keeps the formatting markup allowed in posts and drops scripts, handlers
// and other active content. The result is HTML and must be rendered as such.
func SanitizeRichText(s string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(s))
}

// Snippet truncates s to at most n runes, appending an ellipsis when it was cut.
func Snippet(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}
