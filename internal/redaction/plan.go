package redaction

import "invoicematch/internal/matching"

type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Item is one classified line item together with where it sits on the page.
type Item struct {
	CatalogID  string          `json:"catalog_id"`
	Confidence float64         `json:"confidence"`
	PageIndex  int             `json:"page_index"`
	Box        *NormalizedRect `json:"box,omitempty"`
}

type Region struct {
	PageIndex int  `json:"page_index"`
	Rect      Rect `json:"rect"`
}

// NeedsRedaction reports whether an item's text must be masked: it has no
// catalog match or its confidence is below the acceptance threshold.
func NeedsRedaction(it Item, acceptanceThreshold float64) bool {
	return it.CatalogID == matching.NoneID || it.CatalogID == "" || it.Confidence < acceptanceThreshold
}

// Plan maps the items that need redaction to page rectangles. Items without a
// box, items on pages outside the document and degenerate boxes are skipped.
func Plan(items []Item, acceptanceThreshold float64, pages []PageSize) []Region {
	var regions []Region
	for _, it := range items {
		if !NeedsRedaction(it, acceptanceThreshold) || it.Box == nil {
			continue
		}
		if it.PageIndex < 0 || it.PageIndex >= len(pages) {
			continue
		}
		page := pages[it.PageIndex]
		rect := ToAbsoluteRect(*it.Box, page.Width, page.Height)
		if rect.Width <= 0 || rect.Height <= 0 {
			continue
		}
		regions = append(regions, Region{PageIndex: it.PageIndex, Rect: rect})
	}
	return regions
}
