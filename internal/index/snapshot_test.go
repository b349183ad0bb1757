package index

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicematch/internal/catalog"
)

func sampleEntries() []catalog.Entry {
	return []catalog.Entry{
		{ID: "A1", CanonicalText: "grau matt oberflaeche 1200"},
		{ID: "B2", CanonicalText: "fensterbank marmor weiß"},
		{ID: "C3", CanonicalText: "fensterbank grau"},
		{ID: "D4", CanonicalText: "türblatt weißlack"},
	}
}

func TestQueryRanksByMatchCount(t *testing.T) {
	s := Build(sampleEntries())
	hits := s.Query([]string{"fensterbank", "grau"}, 10)
	require.Len(t, hits, 3)
	assert.Equal(t, Hit{ID: "C3", MatchCount: 2, Text: "fensterbank grau"}, hits[0])
	assert.Equal(t, "A1", hits[1].ID, "equal counts keep insertion order")
	assert.Equal(t, "B2", hits[2].ID)
	assert.Equal(t, 1, hits[1].MatchCount)
}

func TestQueryTopN(t *testing.T) {
	s := Build(sampleEntries())
	hits := s.Query([]string{"fensterbank", "grau"}, 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "C3", hits[0].ID)
}

func TestQueryFallsBackToInsertionPrefix(t *testing.T) {
	s := Build(sampleEntries())
	hits := s.Query([]string{"nothing", "matches"}, 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "A1", hits[0].ID)
	assert.Equal(t, "B2", hits[1].ID)
	assert.Zero(t, hits[0].MatchCount)

	all := s.Query(nil, 0)
	assert.Len(t, all, 4)
}

func TestQueryEmptySnapshot(t *testing.T) {
	assert.Empty(t, Build(nil).Query([]string{"grau"}, 5))
	var nilSnap *Snapshot
	assert.Zero(t, nilSnap.Len())
}

func TestBuildSkipsEmptyAndDuplicateIDs(t *testing.T) {
	s := Build([]catalog.Entry{
		{ID: "", CanonicalText: "ignored"},
		{ID: "A1", CanonicalText: "first"},
		{ID: "A1", CanonicalText: "second"},
	})
	assert.Equal(t, 1, s.Len())
	text, ok := s.Text("A1")
	require.True(t, ok)
	assert.Equal(t, "first", text)
	assert.Empty(t, s.Query([]string{"second"}, 5)[0].MatchCount)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := Build(sampleEntries())
	b, err := json.Marshal(s)
	require.NoError(t, err)

	back, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, s.Entries(), back.Entries())
	assert.Equal(t, s.Query([]string{"grau", "weiß"}, 5), back.Query([]string{"grau", "weiß"}, 5))
	assert.Equal(t, s.Query([]string{"zzz"}, 3), back.Query([]string{"zzz"}, 3))

	again, err := json.Marshal(back)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), string(again))
}

func TestDecodeWithoutOrder(t *testing.T) {
	back, err := Decode([]byte(`{"docs":{"B":"beta","A":"alpha"},"index":{"alpha":["A"],"beta":["B","X"]}}`))
	require.NoError(t, err)
	assert.Equal(t, []catalog.Entry{{ID: "A", CanonicalText: "alpha"}, {ID: "B", CanonicalText: "beta"}}, back.Entries())
	hits := back.Query([]string{"beta"}, 5)
	require.Len(t, hits, 1, "ids without a document are dropped from postings")
	assert.Equal(t, "B", hits[0].ID)

	_, err = Decode([]byte(`{"docs":{"A":"a"},"index":{},"order":["A","B"]}`))
	require.Error(t, err)
}

func TestConcurrentQueries(t *testing.T) {
	entries := make([]catalog.Entry, 0, 500)
	for i := 0; i < 500; i++ {
		entries = append(entries, catalog.Entry{ID: fmt.Sprintf("P%03d", i), CanonicalText: fmt.Sprintf("profil typ%d grau", i%7)})
	}
	s := Build(entries)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits := s.Query([]string{"typ3", "grau"}, 200)
			assert.Len(t, hits, 200)
			assert.Equal(t, 2, hits[0].MatchCount)
		}()
	}
	wg.Wait()
}
