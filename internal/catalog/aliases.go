package catalog

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// FieldAliases lists the source attribute names accepted for one canonical
// field, in order of preference.
type FieldAliases struct {
	Field   string
	Aliases []string
}

// IDAliases are the source names of the catalog identifier.
var IDAliases = []string{"HerstMaterialNr", "MATNR", "Matnr", "materialNumber"}

// SourceAliases maps product master exports onto the canonical fields read by
// BuildCanonical.
var SourceAliases = []FieldAliases{
	{Field: "materialShort", Aliases: []string{"Materialkurzbezeichnung", "shortText", "MAKTX"}},
	{Field: "materialLong1", Aliases: []string{"MateriallangbezeichnungTeil1", "longText1"}},
	{Field: "materialLong2", Aliases: []string{"MateriallangbezeichnungTeil2", "longText2"}},
	{Field: "modell", Aliases: []string{"Modell", "model"}},
	{Field: "oberflaeche", Aliases: []string{"Oberflaeche", "surface"}},
	{Field: "farbe", Aliases: []string{"Farbe", "color"}},
	{Field: "typ", Aliases: []string{"Typ"}},
	{Field: "auspraegung", Aliases: []string{"Auspraegung"}},
	{Field: "groesse", Aliases: []string{"Groesse"}},
}

func firstAlias(rec gjson.Result, aliases []string) string {
	for _, a := range aliases {
		if v := strings.TrimSpace(rec.Get(a).String()); v != "" {
			return v
		}
	}
	return ""
}

// MapSourceRecord resolves one raw source record through the alias tables.
// ok is false when the record carries no identifier.
func MapSourceRecord(rec gjson.Result) (id string, row Row, ok bool) {
	id = firstAlias(rec, IDAliases)
	if id == "" {
		return "", nil, false
	}
	row = make(Row, len(SourceAliases))
	for _, fa := range SourceAliases {
		if v := firstAlias(rec, fa.Aliases); v != "" {
			row[fa.Field] = v
		}
	}
	return id, row, true
}

// ParseSourceDocument accepts a bare JSON array or the OData envelopes
// {"d":{"results":[...]}} and {"value":[...]}.
func ParseSourceDocument(data []byte) ([]gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("catalog source is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	switch {
	case doc.IsArray():
		return doc.Array(), nil
	case doc.Get("d.results").IsArray():
		return doc.Get("d.results").Array(), nil
	case doc.Get("value").IsArray():
		return doc.Get("value").Array(), nil
	}
	return nil, fmt.Errorf("catalog source has no record array")
}
