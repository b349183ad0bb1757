package matching

import (
	"math"
	"unicode/utf8"
)

// Signals are the five similarity measures between a query and one
// candidate. Each lies in [0,1].
type Signals struct {
	Token       float64 `json:"token"`
	Jaccard     float64 `json:"jaccard"`
	Dice        float64 `json:"dice"`
	Cosine      float64 `json:"cosine"`
	Levenshtein float64 `json:"levenshtein"`
}

func counts(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}

// TokenOverlap is the fraction of distinct query tokens found in the
// candidate.
func TokenOverlap(query, candidate []string) float64 {
	q, c := counts(query), counts(candidate)
	if len(q) == 0 {
		return 0
	}
	hit := 0
	for t := range q {
		if _, ok := c[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(q))
}

func Jaccard(a, b []string) float64 {
	sa, sb := counts(a), counts(b)
	switch {
	case len(sa) == 0 && len(sb) == 0:
		return 1
	case len(sa) == 0 || len(sb) == 0:
		return 0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// Dice compares token lists; a repeated token matches as many times as it
// occurs in both lists.
func Dice(a, b []string) float64 {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 1
	case len(a) == 0 || len(b) == 0:
		return 0
	}
	ca, cb := counts(a), counts(b)
	inter := 0
	for t, n := range ca {
		inter += min(n, cb[t])
	}
	return 2 * float64(inter) / float64(len(a)+len(b))
}

// Cosine of the term frequency vectors.
func Cosine(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ca, cb := counts(a), counts(b)
	var dot, magA, magB float64
	for t, va := range ca {
		dot += float64(va * cb[t])
		magA += float64(va * va)
	}
	for _, vb := range cb {
		magB += float64(vb * vb)
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return math.Min(1, dot/math.Sqrt(magA*magB))
}

// EditDistance is the Levenshtein distance over runes.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// EditSimilarity is 1 - distance/maxLen on the raw strings.
func EditSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	switch {
	case la == 0 && lb == 0:
		return 1
	case la == 0 || lb == 0:
		return 0
	}
	return 1 - float64(EditDistance(a, b))/float64(max(la, lb))
}
