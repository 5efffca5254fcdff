package normalize

import (
	"fmt"
	"strings"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/parse"
)

// activeFields are the conventional names feeds use for the optional
// active/enabled flag; it has no column mapping of its own.
var activeFields = []string{"active", "enabled", "is_active"}

// Normalizer maps a raw parsed record onto the canonical fields using
// the source's column mappings. Missing key/price produce warnings, not
// failures; validation downstream is the hard gate.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

func (n *Normalizer) Normalize(raw parse.Record, src *models.Source) models.NormalizedRecord {
	rec := models.NormalizedRecord{Raw: raw}

	key := Lookup(raw, src.MapKey)
	price := Lookup(raw, src.MapPrice)
	qty := Lookup(raw, src.MapQty)
	if src.MapVariant != "" {
		if v := Lookup(raw, src.MapVariant); v != nil {
			rec.Variant = strings.TrimSpace(stringify(v))
		}
	}

	if key == nil || stringify(key) == "" {
		rec.Warnings = append(rec.Warnings, "empty key")
	} else {
		rec.Key = strings.TrimSpace(stringify(key))
	}

	if price == nil || stringify(price) == "" {
		rec.Warnings = append(rec.Warnings, "empty price")
	} else {
		rec.PriceRaw = price
	}

	if qty == nil || stringify(qty) == "" {
		rec.QtyRaw = 0
		rec.Warnings = append(rec.Warnings, "empty qty -> 0")
	} else {
		rec.QtyRaw = qty
	}

	for _, f := range activeFields {
		if v, ok := raw[f]; ok && v != nil {
			s := stringify(v)
			if s != "" {
				rec.Active = &s
				break
			}
		}
	}

	return rec
}

// Lookup fetches a value by column name, trying a flat key first and
// then a dotted-path traversal into nested structures.
func Lookup(raw parse.Record, col string) interface{} {
	if col == "" {
		return nil
	}
	if v, ok := raw[col]; ok {
		return v
	}
	var cur interface{} = map[string]interface{}(raw)
	for _, part := range strings.Split(col, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur, ok = obj[part]
		if !ok {
			return nil
		}
	}
	return cur
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		// avoid 1.23457e+07 style keys from JSON numbers
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", s), "0"), ".")
	default:
		return fmt.Sprintf("%v", v)
	}
}
