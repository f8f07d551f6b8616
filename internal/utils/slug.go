package utils

import (
	"strings"
	"unicode"
)

// Slugify lower-cases s and joins its alphanumeric runs with single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// ListingSlug builds the public slug for a listing: the slugified name followed by the
// last six characters of its ID. Names without letters or digits fall back to "dog".
func ListingSlug(name string, id SixID) string {
	idStr := strings.ToLower(id.String())
	suffix := idStr[len(idStr)-6:]
	base := Slugify(name)
	if base == "" {
		base = "dog"
	}
	return base + "-" + suffix
}
