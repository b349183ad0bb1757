package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents decomposes a rune and drops combining marks: é -> e, ² -> 2.
var foldAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func isKept(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == 'ä', r == 'ö', r == 'ü', r == 'ß':
		return true
	}
	return false
}

// fold lower-cases s, turns typographic quotes into apostrophes and folds
// accented letters to their base form while keeping German umlauts and ß.
func fold(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isKept(r), r < 0x80:
			b.WriteRune(r)
		case r == '‘', r == '’', r == '“', r == '”':
			b.WriteByte('\'')
		default:
			folded, _, err := transform.String(foldAccents, string(r))
			if err != nil {
				b.WriteRune(r)
				continue
			}
			b.WriteString(strings.ToLower(folded))
		}
	}
	return b.String()
}

// Normalize applies the descriptor normalization: fold, replace everything
// outside [0-9a-zäöüß] with spaces (hyphens and slashes included), and
// collapse whitespace.
func Normalize(s string) string {
	folded := fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if isKept(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokenize splits s into normalized tokens. The index, the matcher and the
// canonicalizer all tokenize through here.
func Tokenize(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}
