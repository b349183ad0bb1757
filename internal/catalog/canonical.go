// Package catalog turns raw product master rows into canonical descriptor
// strings and manages the refresh of the catalog they are stored in.
package catalog

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Row is one raw catalog record keyed by attribute name.
type Row map[string]string

// Entry is a catalog identifier with its canonical text.
type Entry struct {
	ID            string `json:"id"`
	CanonicalText string `json:"canonical_text"`
}

// PriorityFields are read first, in this order.
var PriorityFields = []string{
	"materialShort", "materialLong1", "materialLong2", "modell", "oberflaeche", "farbe",
	"typ", "auspraegung", "groesse",
	"modell1", "modell2", "modell3", "modell4", "modell5", "modell6", "modell7", "modell8",
}

// identifierKey matches attribute names that carry manufacturer numbers or
// EAN codes rather than descriptive text.
var identifierKey = regexp.MustCompile(`(?i)herst|ean|eanupc|materialnr`)

var StopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"info", "info:", "pos", "pos.", "menge", "st", "stk", "st.", "m", "lfm", "m2", "qm", "kg", "liter", "lieferung",
		"art", "art.", "bezeichnung", "=", " :", ":", "x", "beidseitig", "nutzbar", "langl", "ca", "ca.", "inkl", "zzgl",
		"breite", "höhe", "mm", "cm", "länge", "farbe", "und", "mit", "ohne", "f.", "f", "für", "fürs", "pro", "a", "b", "das",
	} {
		StopWords[w] = struct{}{}
	}
}

var priority = func() map[string]struct{} {
	m := make(map[string]struct{}, len(PriorityFields))
	for _, f := range PriorityFields {
		m[f] = struct{}{}
	}
	return m
}()

// BuildCanonical derives the descriptor string for row. It is pure and
// deterministic; an empty row yields "".
func BuildCanonical(row Row) string {
	values := make([]string, 0, len(row))
	for _, f := range PriorityFields {
		if v := row[f]; v != "" {
			values = append(values, v)
		}
	}
	extra := make([]string, 0)
	for k, v := range row {
		if v == "" {
			continue
		}
		if _, ok := priority[k]; ok || identifierKey.MatchString(k) {
			continue
		}
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		values = append(values, row[k])
	}

	seen := make(map[string]struct{})
	tokens := make([]string, 0)
	for _, v := range values {
		for _, t := range Tokenize(v) {
			if !keepToken(t) {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		si, sj := Informativeness(tokens[i]), Informativeness(tokens[j])
		if si != sj {
			return si > sj
		}
		return tokens[i] < tokens[j]
	})
	return strings.Join(tokens, " ")
}

func keepToken(t string) bool {
	if utf8.RuneCountInString(t) < 2 {
		return false
	}
	if _, stop := StopWords[t]; stop {
		return false
	}
	return strings.IndexFunc(t, unicode.IsLetter) >= 0
}

// Informativeness ranks a token: numbers by length, words by length bucket.
func Informativeness(t string) float64 {
	if t == "" {
		return 0
	}
	n := utf8.RuneCountInString(t)
	if isDigits(t) {
		return 2 + min(3, float64(n)/2)
	}
	switch {
	case n >= 8:
		return 4
	case n >= 5:
		return 3
	case n >= 3:
		return 2
	}
	return 1
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
