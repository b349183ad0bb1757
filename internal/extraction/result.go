package extraction

import (
	"strings"

	"github.com/tidwall/gjson"

	"invoicematch/internal/redaction"
	"invoicematch/internal/util"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

func (s Status) Terminal() bool { return s == StatusDone || s == StatusFailed }

type Field struct {
	Name        string                    `json:"name"`
	Value       string                    `json:"value"`
	Page        int                       `json:"page,omitempty"`
	Coordinates *redaction.NormalizedRect `json:"coordinates,omitempty"`
}

// Header holds the four fields that identify an invoice for duplicate
// detection. Missing fields are empty strings.
type Header struct {
	DocumentNumber    string `json:"document_number"`
	DocumentDate      string `json:"document_date"`
	SenderBankAccount string `json:"sender_bank_account"`
	TaxID             string `json:"tax_id"`
}

// Complete reports whether all four key fields are present.
func (h Header) Complete() bool {
	return h.DocumentNumber != "" && h.DocumentDate != "" && h.SenderBankAccount != "" && h.TaxID != ""
}

type Result struct {
	Header       Header    `json:"header"`
	HeaderFields []Field   `json:"header_fields"`
	LineItems    [][]Field `json:"line_items"`
}

// Line is the part of an extracted line item the matcher and the redaction
// planner consume.
type Line struct {
	Index       int                       `json:"index"`
	Description string                    `json:"description"`
	PageIndex   int                       `json:"page_index"`
	Box         *redaction.NormalizedRect `json:"box,omitempty"`
}

// HeaderAliases lists, per header field, the names the extraction service
// may report it under. Earlier aliases take precedence.
var HeaderAliases = []struct {
	Field   string
	Aliases []string
}{
	{"documentNumber", []string{"documentNumber", "document_number"}},
	{"documentDate", []string{"documentDate", "document_date"}},
	{"senderBankAccount", []string{"senderBankAccount"}},
	{"taxId", []string{"taxId"}},
}

const descriptionField = "description"

// ResolveHeader applies HeaderAliases to the raw header fields. Names match
// case-insensitively and the first field with a given name wins; an alias
// whose value is blank falls through to the next one.
func ResolveHeader(fields []Field) Header {
	values := make(map[string]string, len(HeaderAliases))
	for _, h := range HeaderAliases {
		for _, alias := range h.Aliases {
			f, ok := findField(fields, alias)
			if ok && f.Value != "" {
				values[h.Field] = f.Value
				break
			}
		}
	}
	return Header{
		DocumentNumber:    values["documentNumber"],
		DocumentDate:      values["documentDate"],
		SenderBankAccount: values["senderBankAccount"],
		TaxID:             values["taxId"],
	}
}

func findField(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Field{}, false
}

// Lines projects every line item onto its description field. Items without a
// description still produce a Line so positions stay aligned.
func (r Result) Lines() []Line {
	lines := make([]Line, 0, len(r.LineItems))
	for i, fields := range r.LineItems {
		line := Line{Index: i}
		if f, ok := findField(fields, descriptionField); ok {
			line.Description = f.Value
			if f.Page > 0 {
				line.PageIndex = f.Page - 1
			}
			line.Box = f.Coordinates
		}
		lines = append(lines, line)
	}
	return lines
}

// ParseResult reads the payload of a finished extraction job. It accepts the
// job envelope ({"status":..,"result":{..}}) or the bare result, with the
// header and line items either at the top level or under "extraction".
func ParseResult(body []byte) Result {
	doc := gjson.ParseBytes(body)
	if r := doc.Get("result"); r.IsObject() {
		doc = r
	}
	if e := doc.Get("extraction"); e.IsObject() {
		doc = e
	}

	var res Result
	doc.Get("headerFields").ForEach(func(_, f gjson.Result) bool {
		res.HeaderFields = append(res.HeaderFields, parseField(f))
		return true
	})
	doc.Get("lineItems").ForEach(func(_, item gjson.Result) bool {
		var fields []Field
		item.ForEach(func(_, f gjson.Result) bool {
			fields = append(fields, parseField(f))
			return true
		})
		res.LineItems = append(res.LineItems, fields)
		return true
	})
	res.Header = ResolveHeader(res.HeaderFields)
	return res
}

func parseField(f gjson.Result) Field {
	field := Field{
		Name:  f.Get("name").String(),
		Value: util.SanitizeText(f.Get("value").String()),
		Page:  int(f.Get("page").Int()),
	}
	if c := f.Get("coordinates"); c.IsObject() {
		field.Coordinates = &redaction.NormalizedRect{
			X: c.Get("x").Float(),
			Y: c.Get("y").Float(),
			W: c.Get("w").Float(),
			H: c.Get("h").Float(),
		}
	}
	return field
}
