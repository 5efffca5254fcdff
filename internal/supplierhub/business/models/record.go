package models

// NormalizedRecord is one feed record after column mapping. Raw values
// stay untyped until validation; missing price stays nil, missing qty is
// coerced to zero with a warning.
type NormalizedRecord struct {
	Key      string
	PriceRaw interface{}
	QtyRaw   interface{}
	Variant  string
	Active   *string // optional active flag as found in the feed
	Warnings []string
	Raw      map[string]interface{}
}
