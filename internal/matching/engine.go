// Package matching scores invoice line descriptions against catalog
// candidates and decides between a catalog id and the NONE verdict.
package matching

import (
	"invoicematch/internal/catalog"
	"invoicematch/internal/index"
)

// NoneID is the catalog id reported when no candidate is convincing.
const NoneID = "NONE"

type Weights struct {
	Token       float64 `json:"token"`
	Jaccard     float64 `json:"jaccard"`
	Dice        float64 `json:"dice"`
	Cosine      float64 `json:"cosine"`
	Levenshtein float64 `json:"levenshtein"`
}

// Config is an immutable value; callers pass it into every classification.
// MinDocFreq is carried for configuration compatibility and not applied.
type Config struct {
	AcceptanceThreshold float64 `json:"acceptance_threshold"`
	NoneThreshold       float64 `json:"none_threshold"`
	Weights             Weights `json:"weights"`
	CandidateTopN       int     `json:"candidate_top_n"`
	MinDocFreq          int     `json:"min_doc_freq"`
}

func DefaultConfig() Config {
	return Config{
		AcceptanceThreshold: 0.5,
		NoneThreshold:       0.35,
		Weights:             Weights{Token: 0.5, Jaccard: 0.1, Dice: 0.1, Cosine: 0.2, Levenshtein: 0.1},
		CandidateTopN:       200,
		MinDocFreq:          1,
	}
}

type Candidate struct {
	ID   string
	Text string
}

type Outcome struct {
	CatalogID   string  `json:"catalog_id"`
	Confidence  float64 `json:"confidence"`
	MatchedText string  `json:"matched_text"`
	Signals     Signals `json:"signals"`
}

func (o Outcome) IsNone() bool { return o.CatalogID == NoneID }

// Valid reports whether the outcome is trusted downstream.
func (o Outcome) Valid(cfg Config) bool {
	return !o.IsNone() && o.Confidence >= cfg.AcceptanceThreshold
}

// Fuse combines signals linearly and clamps the result to [0,1].
func Fuse(s Signals, w Weights) float64 {
	v := s.Token*w.Token +
		s.Jaccard*w.Jaccard +
		s.Dice*w.Dice +
		s.Cosine*w.Cosine +
		s.Levenshtein*w.Levenshtein
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Score computes the signals between a raw query and a candidate text.
func Score(query, candidate string) Signals {
	return score(query, catalog.Tokenize(query), candidate)
}

func score(query string, queryTokens []string, candidate string) Signals {
	ct := catalog.Tokenize(candidate)
	return Signals{
		Token:       TokenOverlap(queryTokens, ct),
		Jaccard:     Jaccard(queryTokens, ct),
		Dice:        Dice(queryTokens, ct),
		Cosine:      Cosine(queryTokens, ct),
		Levenshtein: EditSimilarity(query, candidate),
	}
}

// isNone is the NONE decision: a strict comparison, so a score equal to
// the threshold is accepted.
func isNone(score, noneThreshold float64) bool {
	return score < noneThreshold
}

// Classify picks the candidate with the highest fused score, the first one
// on ties, and applies the NONE decision. The acceptance threshold is not
// part of this decision.
func Classify(query string, candidates []Candidate, cfg Config) Outcome {
	if len(candidates) == 0 {
		return Outcome{CatalogID: NoneID}
	}
	qt := catalog.Tokenize(query)
	best := -1
	var bestScore float64
	var bestSignals Signals
	for i, c := range candidates {
		sig := score(query, qt, c.Text)
		fused := Fuse(sig, cfg.Weights)
		if best < 0 || fused > bestScore {
			best, bestScore, bestSignals = i, fused, sig
		}
	}
	if isNone(bestScore, cfg.NoneThreshold) {
		return Outcome{CatalogID: NoneID, Signals: bestSignals}
	}
	return Outcome{
		CatalogID:   candidates[best].ID,
		Confidence:  bestScore,
		MatchedText: candidates[best].Text,
		Signals:     bestSignals,
	}
}

// Match retrieves candidates for query from snapshot and classifies it.
func Match(snapshot *index.Snapshot, query string, cfg Config) Outcome {
	if snapshot == nil {
		return Outcome{CatalogID: NoneID}
	}
	hits := snapshot.Query(catalog.Tokenize(query), cfg.CandidateTopN)
	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, Candidate{ID: h.ID, Text: h.Text})
	}
	return Classify(query, candidates, cfg)
}
