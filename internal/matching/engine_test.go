package matching

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicematch/internal/catalog"
	"invoicematch/internal/index"
)

var pairs = [][2]string{
	{"Oberfläche grau matt", "grau matt oberflaeche 1200"},
	{"", ""},
	{"", "grau"},
	{"grau grau grau", "grau"},
	{"Fensterbank Marmor weiß 1200x250", "fensterbank marmor weiß"},
	{"--//--", "türblatt"},
	{"Schraube M8", "m8 schraube edelstahl m8"},
}

func TestSignalsWithinUnitInterval(t *testing.T) {
	for _, p := range pairs {
		s := Score(p[0], p[1])
		for name, v := range map[string]float64{
			"token": s.Token, "jaccard": s.Jaccard, "dice": s.Dice, "cosine": s.Cosine, "levenshtein": s.Levenshtein,
		} {
			assert.GreaterOrEqual(t, v, 0.0, "%s for %q vs %q", name, p[0], p[1])
			assert.LessOrEqual(t, v, 1.0, "%s for %q vs %q", name, p[0], p[1])
		}
	}
}

func TestSignalsIdenticalStrings(t *testing.T) {
	for _, q := range []string{"grau matt oberflaeche 1200", "Türblatt Weißlack", "m8 m8 schraube"} {
		s := Score(q, q)
		assert.Equal(t, 1.0, s.Token, q)
		assert.Equal(t, 1.0, s.Jaccard, q)
		assert.InDelta(t, 1.0, s.Cosine, 1e-12, q)
		assert.Equal(t, 1.0, s.Levenshtein, q)
		assert.Equal(t, 1.0, s.Dice, q)
	}
}

func TestSignalEdgeCases(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(nil, nil))
	assert.Equal(t, 0.0, Jaccard(nil, []string{"a"}))
	assert.Equal(t, 1.0, Dice(nil, nil))
	assert.Equal(t, 0.0, Dice([]string{"a"}, nil))
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, TokenOverlap(nil, []string{"a"}))
	assert.Equal(t, 1.0, EditSimilarity("", ""))
	assert.Equal(t, 0.0, EditSimilarity("", "abc"))
	assert.Equal(t, 0.5, Dice([]string{"x", "x", "x"}, []string{"x"}))
	assert.Equal(t, 3, EditDistance("kitten", "sitting"))
	assert.Equal(t, 2, EditDistance("größe", "grösse"))
}

func TestFuseMonotonic(t *testing.T) {
	w := DefaultConfig().Weights
	base := Signals{Token: 0.3, Jaccard: 0.2, Dice: 0.4, Cosine: 0.1, Levenshtein: 0.5}
	setters := map[string]func(*Signals, float64){
		"token":       func(s *Signals, v float64) { s.Token = v },
		"jaccard":     func(s *Signals, v float64) { s.Jaccard = v },
		"dice":        func(s *Signals, v float64) { s.Dice = v },
		"cosine":      func(s *Signals, v float64) { s.Cosine = v },
		"levenshtein": func(s *Signals, v float64) { s.Levenshtein = v },
	}
	for name, set := range setters {
		prev := -1.0
		for v := 0.0; v <= 1.0; v += 0.05 {
			s := base
			set(&s, v)
			got := Fuse(s, w)
			assert.GreaterOrEqual(t, got, prev, name)
			prev = got
		}
	}
}

func TestFuseClamps(t *testing.T) {
	all := Signals{Token: 1, Jaccard: 1, Dice: 1, Cosine: 1, Levenshtein: 1}
	assert.Equal(t, 1.0, Fuse(all, Weights{Token: 1, Jaccard: 1, Dice: 1, Cosine: 1, Levenshtein: 1}))
	assert.Equal(t, 0.0, Fuse(all, Weights{Token: -2}))
	assert.InDelta(t, 1.0, Fuse(all, DefaultConfig().Weights), 1e-12)
}

func TestEmptyCatalogIsNone(t *testing.T) {
	cfg := DefaultConfig()
	for _, q := range []string{"Oberfläche grau matt", "", "4711"} {
		out := Match(index.Build(nil), q, cfg)
		assert.Equal(t, NoneID, out.CatalogID)
		assert.Zero(t, out.Confidence)
		assert.Empty(t, out.MatchedText)
	}
	assert.Equal(t, NoneID, Classify("grau", nil, cfg).CatalogID)
	assert.Equal(t, NoneID, Match(nil, "grau", cfg).CatalogID)
}

func TestNoneThresholdBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Token: 1}
	candidates := []Candidate{{ID: "X1", Text: "alpha gamma"}}

	cfg.NoneThreshold = 0.5
	out := Classify("alpha beta", candidates, cfg)
	require.Equal(t, "X1", out.CatalogID, "score equal to the threshold is a match")
	assert.Equal(t, 0.5, out.Confidence)
	assert.Equal(t, "alpha gamma", out.MatchedText)

	cfg.NoneThreshold = math.Nextafter(0.5, 1)
	out = Classify("alpha beta", candidates, cfg)
	assert.Equal(t, NoneID, out.CatalogID)
	assert.Zero(t, out.Confidence)
	assert.Empty(t, out.MatchedText)
	assert.Equal(t, 0.5, out.Signals.Token, "signals of the best candidate are kept")

	assert.False(t, isNone(0.35, 0.35))
	assert.True(t, isNone(0.35-1e-9, 0.35))
}

func TestAcceptanceThresholdIsSeparate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Token: 1}
	cfg.NoneThreshold = 0.3
	cfg.AcceptanceThreshold = 0.5

	out := Classify("alpha beta gamma", []Candidate{{ID: "X1", Text: "alpha"}}, cfg)
	require.Equal(t, "X1", out.CatalogID)
	assert.InDelta(t, 1.0/3, out.Confidence, 1e-12)
	assert.False(t, out.Valid(cfg))

	cfg.AcceptanceThreshold = 0.3
	assert.True(t, out.Valid(cfg))
	assert.False(t, Outcome{CatalogID: NoneID, Confidence: 0.9}.Valid(cfg))
}

func TestTiesKeepFirstCandidate(t *testing.T) {
	out := Classify("grau matt", []Candidate{
		{ID: "FIRST", Text: "grau matt"},
		{ID: "SECOND", Text: "grau matt"},
	}, DefaultConfig())
	assert.Equal(t, "FIRST", out.CatalogID)
}

func TestScenarioUmlautQuery(t *testing.T) {
	snap := index.Build([]catalog.Entry{{ID: "A1", CanonicalText: "grau matt oberflaeche 1200"}})
	cfg := DefaultConfig()

	out := Match(snap, "Oberfläche grau matt", cfg)
	require.Equal(t, "A1", out.CatalogID)
	assert.GreaterOrEqual(t, out.Confidence, cfg.NoneThreshold)
	assert.InDelta(t, 2.0/3, out.Signals.Token, 1e-12)
	assert.InDelta(t, 0.4, out.Signals.Jaccard, 1e-12)
	assert.Equal(t, "grau matt oberflaeche 1200", out.MatchedText)
}

func TestMatchIsDeterministic(t *testing.T) {
	entries := []catalog.Entry{
		{ID: "A1", CanonicalText: "grau matt oberflaeche 1200"},
		{ID: "B2", CanonicalText: "fensterbank marmor weiß"},
		{ID: "C3", CanonicalText: "fensterbank grau"},
	}
	snap := index.Build(entries)
	first := Match(snap, "Fensterbank grau 1200", DefaultConfig())
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Match(snap, "Fensterbank grau 1200", DefaultConfig()))
	}
}

func TestEvaluate(t *testing.T) {
	snap := index.Build([]catalog.Entry{
		{ID: "A1", CanonicalText: "grau matt oberflaeche 1200"},
		{ID: "B2", CanonicalText: "fensterbank marmor weiß"},
	})
	queries, err := ReadLabeledQueries(strings.NewReader("query;expected_matnr\nOberfläche grau matt;A1\nFensterbank Marmor;B2\nxyz qrs;\nFensterbank Marmor;A1\n"))
	require.NoError(t, err)
	require.Len(t, queries, 4)
	assert.Equal(t, NoneID, queries[2].ExpectedID)

	ev := Evaluate(snap, queries, DefaultConfig())
	assert.Equal(t, 4, ev.Total)
	assert.Equal(t, 3, ev.Correct)
	assert.Equal(t, 1, ev.None)
	assert.InDelta(t, 0.75, ev.Accuracy, 1e-12)
	require.Len(t, ev.Mismatches, 1)
	assert.Equal(t, "B2", ev.Mismatches[0].Predicted)
}
