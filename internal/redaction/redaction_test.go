package redaction

import (
	"bytes"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicematch/internal/matching"
	"invoicematch/internal/util"
)

func TestToAbsoluteRect(t *testing.T) {
	r := ToAbsoluteRect(NormalizedRect{X: 0.1, Y: 0.2, W: 0.5, H: 0.1}, 600, 800)
	assert.InDelta(t, 60, r.X, 1e-9)
	assert.InDelta(t, 300, r.Width, 1e-9)
	assert.InDelta(t, 80, r.Height, 1e-9)
	// 800 - 160 - 80
	assert.InDelta(t, 560, r.Y, 1e-9)
}

func TestCoordinateRoundTrip(t *testing.T) {
	boxes := []NormalizedRect{
		{X: 0, Y: 0, W: 1, H: 1},
		{X: 0.1, Y: 0.2, W: 0.3, H: 0.05},
		{X: 0.75, Y: 0.9, W: 0.2, H: 0.1},
		{X: 1.0 / 3, Y: 2.0 / 7, W: 0.01, H: 0.013},
	}
	for _, page := range []PageSize{{595.28, 841.89}, {612, 792}, {1, 1}} {
		for _, b := range boxes {
			got := ToNormalizedRect(ToAbsoluteRect(b, page.Width, page.Height), page.Width, page.Height)
			assert.InDelta(t, b.X, got.X, 1e-9)
			assert.InDelta(t, b.Y, got.Y, 1e-9)
			assert.InDelta(t, b.W, got.W, 1e-9)
			assert.InDelta(t, b.H, got.H, 1e-9)
		}
	}
}

func TestPlanInclusion(t *testing.T) {
	box := &NormalizedRect{X: 0.1, Y: 0.1, W: 0.4, H: 0.02}
	pages := []PageSize{{Width: 600, Height: 800}, {Width: 600, Height: 800}}
	items := []Item{
		{CatalogID: matching.NoneID, Confidence: 0, PageIndex: 0, Box: box},
		{CatalogID: "A1", Confidence: 0.49, PageIndex: 1, Box: box},
		{CatalogID: "A2", Confidence: 0.5, PageIndex: 0, Box: box},
		{CatalogID: "A3", Confidence: 0.97, PageIndex: 1, Box: box},
	}

	regions := Plan(items, 0.5, pages)
	require.Len(t, regions, 2)
	assert.Equal(t, 0, regions[0].PageIndex)
	assert.Equal(t, 1, regions[1].PageIndex)
	for _, it := range items {
		if it.Confidence >= 0.5 && it.CatalogID != matching.NoneID {
			assert.False(t, NeedsRedaction(it, 0.5), it.CatalogID)
		}
	}
}

func TestPlanSkips(t *testing.T) {
	pages := []PageSize{{Width: 600, Height: 800}}
	items := []Item{
		{CatalogID: matching.NoneID, PageIndex: 0},
		{CatalogID: matching.NoneID, PageIndex: 3, Box: &NormalizedRect{W: 0.1, H: 0.1}},
		{CatalogID: matching.NoneID, PageIndex: 0, Box: &NormalizedRect{X: 0.2, W: 0, H: 0.1}},
		{CatalogID: matching.NoneID, PageIndex: 0, Box: &NormalizedRect{X: 0.2, W: 0.1, H: -0.1}},
	}
	assert.Empty(t, Plan(items, 0.5, pages))
}

func samplePDF(t *testing.T, pages int) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	doc.SetFont("Arial", "", 12)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Text(40, 60, "Tuerblatt weisslack 2000x900")
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestPageSizes(t *testing.T) {
	sizes, err := PageSizes(samplePDF(t, 2))
	require.NoError(t, err)
	require.Len(t, sizes, 2)
	for _, s := range sizes {
		assert.InDelta(t, 595.28, s.Width, 0.01)
		assert.InDelta(t, 841.89, s.Height, 0.01)
	}
}

func TestPageSizesRejectsGarbage(t *testing.T) {
	_, err := PageSizes([]byte("definitely not a pdf"))
	require.ErrorIs(t, err, util.ErrInvalidPDF)
}

func TestApplyKeepsPages(t *testing.T) {
	src := samplePDF(t, 2)
	regions := Plan([]Item{
		{CatalogID: matching.NoneID, PageIndex: 1, Box: &NormalizedRect{X: 0.05, Y: 0.05, W: 0.5, H: 0.03}},
	}, 0.5, []PageSize{{595.28, 841.89}, {595.28, 841.89}})
	require.Len(t, regions, 1)

	out, err := Apply(src, regions)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	sizes, err := PageSizes(out)
	require.NoError(t, err)
	require.Len(t, sizes, 2)
	assert.InDelta(t, 841.89, sizes[1].Height, 0.01)
}
