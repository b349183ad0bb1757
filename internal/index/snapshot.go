// Package index holds the immutable inverted index used for candidate
// retrieval and the stores that persist it between process restarts.
package index

import (
	"sort"

	"invoicematch/internal/catalog"
)

// Snapshot maps tokens to catalog ids. It is never mutated after Build, so
// any number of goroutines may query it without locking.
type Snapshot struct {
	order    []string
	position map[string]int
	docs     map[string]string
	postings map[string][]string
}

type Hit struct {
	ID         string `json:"id"`
	MatchCount int    `json:"match_count"`
	Text       string `json:"text"`
}

// Build indexes entries in the given order. Entries with an empty id are
// ignored and a repeated id keeps its first text.
func Build(entries []catalog.Entry) *Snapshot {
	s := &Snapshot{
		order:    make([]string, 0, len(entries)),
		position: make(map[string]int, len(entries)),
		docs:     make(map[string]string, len(entries)),
		postings: make(map[string][]string),
	}
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		if _, dup := s.docs[e.ID]; dup {
			continue
		}
		s.add(e.ID, e.CanonicalText)
		seen := make(map[string]struct{})
		for _, tok := range catalog.Tokenize(e.CanonicalText) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			s.postings[tok] = append(s.postings[tok], e.ID)
		}
	}
	return s
}

func (s *Snapshot) add(id, text string) {
	s.position[id] = len(s.order)
	s.order = append(s.order, id)
	s.docs[id] = text
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

func (s *Snapshot) Text(id string) (string, bool) {
	t, ok := s.docs[id]
	return t, ok
}

// Entries returns the indexed entries in insertion order.
func (s *Snapshot) Entries() []catalog.Entry {
	out := make([]catalog.Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, catalog.Entry{ID: id, CanonicalText: s.docs[id]})
	}
	return out
}

// Query counts, per catalog id, how many query tokens hit its postings and
// returns up to topN ids by descending count; equal counts keep insertion
// order. When no token hits, the first topN ids in insertion order are
// returned with a zero count. topN <= 0 means no limit.
func (s *Snapshot) Query(tokens []string, topN int) []Hit {
	if s.Len() == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, tok := range tokens {
		for _, id := range s.postings[tok] {
			counts[id]++
		}
	}

	if len(counts) == 0 {
		n := len(s.order)
		if topN > 0 && topN < n {
			n = topN
		}
		out := make([]Hit, 0, n)
		for _, id := range s.order[:n] {
			out = append(out, Hit{ID: id, Text: s.docs[id]})
		}
		return out
	}

	out := make([]Hit, 0, len(counts))
	for id, c := range counts {
		out = append(out, Hit{ID: id, MatchCount: c, Text: s.docs[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchCount != out[j].MatchCount {
			return out[i].MatchCount > out[j].MatchCount
		}
		return s.position[out[i].ID] < s.position[out[j].ID]
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
