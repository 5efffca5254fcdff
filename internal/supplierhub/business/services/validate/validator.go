package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"supplierhub_api/internal/supplierhub/business/models"
)

// Validation error codes.
const (
	ErrMissingKey    = "missing-key"
	ErrInvalidPrice  = "invalid-price"
	ErrNegativePrice = "negative-price"
)

// Result is one record's validation outcome. Price stays nil when the
// feed carried no price; Qty is always usable (negatives and blanks are
// coerced to zero with a warning).
type Result struct {
	OK       bool
	Errors   []string
	Warnings []string
	Price    *float64
	Qty      int
}

// Validate applies the hard per-record gate after normalization.
func Validate(rec models.NormalizedRecord) Result {
	res := Result{}

	if strings.TrimSpace(rec.Key) == "" {
		res.Errors = append(res.Errors, ErrMissingKey)
	}

	if rec.PriceRaw != nil {
		price, ok := ParseDecimal(rec.PriceRaw)
		switch {
		case !ok:
			res.Errors = append(res.Errors, ErrInvalidPrice)
		case price < 0:
			res.Errors = append(res.Errors, ErrNegativePrice)
		default:
			res.Price = &price
		}
	}

	qty, ok := ParseInt(rec.QtyRaw)
	if !ok {
		res.Qty = 0
		res.Warnings = append(res.Warnings, "qty empty -> 0")
	} else if qty < 0 {
		res.Qty = 0
		res.Warnings = append(res.Warnings, "qty < 0 -> 0")
	} else {
		res.Qty = qty
	}

	res.OK = len(res.Errors) == 0
	return res
}

var leadingInt = regexp.MustCompile(`^-?\d+`)

// ParseDecimal parses a locale-tolerant decimal: spaces and non-breaking
// spaces are stripped and a decimal comma becomes a dot.
func ParseDecimal(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case nil:
		return 0, false
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseInt parses an integer quantity, tolerating digit grouping,
// decimal fractions (truncated) and unit suffixes the way feeds tend
// to mangle them.
func ParseInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case nil:
		return 0, false
	}
	s := strings.TrimSpace(fmt.Sprintf("%v", v))
	if s == "" {
		return 0, false
	}
	if f, ok := ParseDecimal(s); ok {
		return int(f), true
	}
	// "12 szt" and friends: take the leading integer.
	if m := leadingInt.FindString(s); m != "" {
		i, err := strconv.Atoi(m)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
