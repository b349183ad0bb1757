package index

import (
	"encoding/json"
	"fmt"
	"sort"
)

// flatSnapshot is the persisted form: id -> text and token -> ids. order
// preserves insertion order for the no-hit fallback.
type flatSnapshot struct {
	Docs  map[string]string   `json:"docs"`
	Index map[string][]string `json:"index"`
	Order []string            `json:"order,omitempty"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(flatSnapshot{Docs: s.docs, Index: s.postings, Order: s.order})
}

// Decode restores a snapshot from its persisted form. Without an order list
// ids are ordered lexicographically.
func Decode(b []byte) (*Snapshot, error) {
	var flat flatSnapshot
	if err := json.Unmarshal(b, &flat); err != nil {
		return nil, fmt.Errorf("decode index snapshot: %w", err)
	}
	order := flat.Order
	if len(order) == 0 {
		order = make([]string, 0, len(flat.Docs))
		for id := range flat.Docs {
			order = append(order, id)
		}
		sort.Strings(order)
	}
	if len(order) != len(flat.Docs) {
		return nil, fmt.Errorf("decode index snapshot: order lists %d ids for %d documents", len(order), len(flat.Docs))
	}

	s := &Snapshot{
		order:    make([]string, 0, len(order)),
		position: make(map[string]int, len(order)),
		docs:     make(map[string]string, len(order)),
		postings: make(map[string][]string, len(flat.Index)),
	}
	for _, id := range order {
		text, ok := flat.Docs[id]
		if !ok {
			return nil, fmt.Errorf("decode index snapshot: ordered id %q has no document", id)
		}
		s.add(id, text)
	}
	for tok, ids := range flat.Index {
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if _, ok := s.docs[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) > 0 {
			s.postings[tok] = kept
		}
	}
	return s, nil
}
