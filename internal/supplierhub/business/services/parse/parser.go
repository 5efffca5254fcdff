package parse

import (
	"errors"
	"fmt"
	"strings"
)

// Hints are the source-specific parse settings.
type Hints struct {
	Delimiter string
	Enclosure string
	ItemsPath string // JSON
	ItemXPath string // XML
}

type Parser interface {
	Parse(body []byte, hints Hints) (*Stream, error)
}

var (
	ErrMissingItemsPath = errors.New("missing-items-path")
	ErrInvalidXPath     = errors.New("invalid-xpath")
)

// ParseError wraps a format-level failure with collected diagnostics.
type ParseError struct {
	Format  string
	Details string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s parse error: %s", e.Format, e.Details)
	}
	return fmt.Sprintf("%s parse error: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParser returns the parser for a feed format (csv, json or xml).
func NewParser(format string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return &CsvParser{}, nil
	case "json":
		return &JsonParser{}, nil
	case "xml":
		return &XmlParser{}, nil
	}
	return nil, fmt.Errorf("unsupported feed format: %q", format)
}

// ResolveFormat maps a response media type onto csv/json/xml, falling
// back to the source's declared file type, then json.
func ResolveFormat(mediaType, fallback string) string {
	ct := strings.ToLower(mediaType)
	switch {
	case strings.Contains(ct, "json"):
		return "json"
	case strings.Contains(ct, "xml"):
		return "xml"
	case strings.Contains(ct, "csv"), strings.Contains(ct, "text/plain"):
		return "csv"
	}
	f := strings.ToLower(strings.TrimSpace(fallback))
	if f == "csv" || f == "json" || f == "xml" {
		return f
	}
	return "json"
}
