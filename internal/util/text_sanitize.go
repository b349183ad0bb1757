package util

import "strings"

// SanitizeText prepares extracted text for a Postgres text column: invalid
// UTF-8 and NUL bytes are dropped, other control characters except tab and
// newlines are removed and the result is trimmed.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(ch rune) rune {
		switch {
		case ch == '\n', ch == '\r', ch == '\t':
			return ch
		case ch < 0x20, ch == 0x7f:
			return -1
		}
		return ch
	}, s)
	return strings.TrimSpace(s)
}
