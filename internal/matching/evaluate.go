package matching

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"invoicematch/internal/index"
)

type LabeledQuery struct {
	Query      string `json:"query"`
	ExpectedID string `json:"expected_id"`
}

type Mismatch struct {
	Query      string  `json:"query"`
	ExpectedID string  `json:"expected_id"`
	Predicted  string  `json:"predicted"`
	Confidence float64 `json:"confidence"`
}

type Evaluation struct {
	Total      int        `json:"total"`
	Correct    int        `json:"correct"`
	None       int        `json:"none"`
	Accuracy   float64    `json:"accuracy"`
	NoneRate   float64    `json:"none_rate"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Evaluate classifies every labeled query and compares the predicted id.
// An expected id of NONE checks that nothing is matched.
func Evaluate(snapshot *index.Snapshot, queries []LabeledQuery, cfg Config) Evaluation {
	ev := Evaluation{Total: len(queries), Mismatches: []Mismatch{}}
	for _, q := range queries {
		out := Match(snapshot, q.Query, cfg)
		if out.IsNone() {
			ev.None++
		}
		if out.CatalogID == q.ExpectedID {
			ev.Correct++
			continue
		}
		ev.Mismatches = append(ev.Mismatches, Mismatch{
			Query:      q.Query,
			ExpectedID: q.ExpectedID,
			Predicted:  out.CatalogID,
			Confidence: out.Confidence,
		})
	}
	if ev.Total > 0 {
		ev.Accuracy = float64(ev.Correct) / float64(ev.Total)
		ev.NoneRate = float64(ev.None) / float64(ev.Total)
	}
	return ev
}

// ReadLabeledQueries parses "query;expected_matnr" rows. A header row is
// skipped when present.
func ReadLabeledQueries(r io.Reader) ([]LabeledQuery, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	out := make([]LabeledQuery, 0)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read labeled queries line %d: %w", line, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("read labeled queries line %d: expected 2 fields, got %d", line, len(rec))
		}
		q, want := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if line == 1 && strings.EqualFold(q, "query") {
			continue
		}
		if want == "" {
			want = NoneID
		}
		out = append(out, LabeledQuery{Query: q, ExpectedID: want})
	}
	return out, nil
}
