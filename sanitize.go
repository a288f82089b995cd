package enroll

import (
	"strings"
	"unicode"
)

// SanitizeText strips control characters and collapses runs of
// whitespace before a free-text value is persisted.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r):
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}

	return b.String()
}

// SanitizeResponses sanitizes both keys and values of a form-response
// map, dropping entries whose key sanitizes to nothing.
func SanitizeResponses(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := SanitizeText(k)
		if key == "" {
			continue
		}
		out[key] = SanitizeText(v)
	}
	return out
}
