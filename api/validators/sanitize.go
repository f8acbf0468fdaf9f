package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, folds runs of whitespace and control
// characters into single spaces and cuts the result to maxLen runes.
// maxLen <= 0 disables the cut.
func SanitizeString(input string, maxLen int) string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	out := strings.Join(fields, " ")
	if maxLen <= 0 {
		return out
	}
	runes := []rune(out)
	if len(runes) <= maxLen {
		return out
	}
	return strings.TrimSpace(string(runes[:maxLen]))
}
