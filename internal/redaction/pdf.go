package redaction

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/go-pdf/fpdf/contrib/gofpdi"
	"github.com/ledongthuc/pdf"

	"invoicematch/internal/util"
)

const pageBox = "/MediaBox"

// PageSizes reads the MediaBox of every page, in page order. Anything the
// reader cannot parse is reported as util.ErrInvalidPDF.
func PageSizes(doc []byte) (sizes []PageSize, err error) {
	defer func() {
		if r := recover(); r != nil {
			sizes, err = nil, fmt.Errorf("%w: %v", util.ErrInvalidPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidPDF, err)
	}
	n := reader.NumPage()
	if n <= 0 {
		return nil, fmt.Errorf("%w: document has no pages", util.ErrInvalidPDF)
	}
	sizes = make([]PageSize, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			return nil, fmt.Errorf("%w: page %d missing", util.ErrInvalidPDF, i)
		}
		box := inheritedKey(page.V, "MediaBox")
		if box.Len() != 4 {
			return nil, fmt.Errorf("%w: page %d has no media box", util.ErrInvalidPDF, i)
		}
		llx, lly := box.Index(0).Float64(), box.Index(1).Float64()
		urx, ury := box.Index(2).Float64(), box.Index(3).Float64()
		sizes = append(sizes, PageSize{Width: urx - llx, Height: ury - lly})
	}
	return sizes, nil
}

// page attributes such as MediaBox may live on any ancestor in the page tree
func inheritedKey(v pdf.Value, key string) pdf.Value {
	for ; !v.IsNull(); v = v.Key("Parent") {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return pdf.Value{}
}

// Apply re-renders doc with an opaque black rectangle over every region.
// Regions on pages the document does not have are ignored.
func Apply(doc []byte, regions []Region) (out []byte, err error) {
	sizes, err := PageSizes(doc)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: overlay: %v", util.ErrInvalidPDF, r)
		}
	}()

	byPage := make(map[int][]Rect, len(regions))
	for _, r := range regions {
		byPage[r.PageIndex] = append(byPage[r.PageIndex], r.Rect)
	}

	w := fpdf.New("P", "pt", "A4", "")
	w.SetAutoPageBreak(false, 0)
	w.SetMargins(0, 0, 0)
	w.SetFillColor(0, 0, 0)

	imp := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(doc))
	for i, size := range sizes {
		tpl := imp.ImportPageFromStream(w, &rs, i+1, pageBox)
		w.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})
		imp.UseImportedTemplate(w, tpl, 0, 0, size.Width, size.Height)
		for _, r := range byPage[i] {
			// fpdf measures y from the top edge
			w.Rect(r.X, size.Height-r.Y-r.Height, r.Width, r.Height, "F")
		}
	}

	var buf bytes.Buffer
	if err := w.Output(&buf); err != nil {
		return nil, fmt.Errorf("write redacted document: %w", err)
	}
	return buf.Bytes(), nil
}
