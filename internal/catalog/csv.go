package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// EncodeCSV renders entries as "matnr;verketten" rows with a header line.
func EncodeCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write([]string{"matnr", "verketten"}); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write([]string{e.ID, strings.ReplaceAll(e.CanonicalText, ";", " ")}); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", e.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCSV reads entries back from the EncodeCSV format.
func DecodeCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = 2
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read catalog csv: %w", err)
	}
	out := make([]Entry, 0, len(records))
	for i, rec := range records {
		if i == 0 && rec[0] == "matnr" {
			continue
		}
		out = append(out, Entry{ID: rec[0], CanonicalText: rec[1]})
	}
	return out, nil
}
