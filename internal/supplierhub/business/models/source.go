package models

import (
	"fmt"
	"time"
)

type KeyType string

const (
	KeyTypeEAN               KeyType = "ean"
	KeyTypeReference         KeyType = "reference"
	KeyTypeSupplierReference KeyType = "supplier_reference"
)

type RateMode string

const (
	RateModeLive  RateMode = "live"
	RateModeFixed RateMode = "fixed"
)

type MarginMode string

const (
	MarginModeFixed  MarginMode = "fixed"
	MarginModeTiered MarginMode = "tiered"
)

type EndingMode string

const (
	EndingModeNone    EndingMode = "none"
	EndingModeFixed99 EndingMode = "fixed99"
	EndingModeCustom  EndingMode = "custom"
)

type ZeroQtyPolicy string

const (
	ZeroQtyDisable   ZeroQtyPolicy = "disable"
	ZeroQtyBackorder ZeroQtyPolicy = "backorder"
	ZeroQtyNone      ZeroQtyPolicy = "none"
)

type PriceUpdateMode string

const (
	PriceUpdateDirect        PriceUpdateMode = "direct"
	PriceUpdateSpecificPrice PriceUpdateMode = "specific_price"
)

// MarginTier is one [From, To) price band with its markup percentage.
// First matching band wins.
type MarginTier struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
	Pct  float64 `json:"pct"`
}

// Source describes one supplier feed and every business rule applied to it.
type Source struct {
	ID       int
	ShopID   int
	Active   bool
	Name     string
	URL      string
	FileType string // csv|json|xml, fallback when the response has no usable Content-Type

	AuthType     string // none|basic|bearer|header|query
	AuthLogin    string
	AuthPassword string
	AuthToken    string
	Headers      map[string]string
	QueryParams  map[string]string

	Delimiter string
	Enclosure string
	ItemsPath string // dotted path to the item array in JSON feeds
	ItemXPath string // XPath selecting item nodes in XML feeds

	MapKey     string
	MapPrice   string
	MapQty     string
	MapVariant string

	KeyType  KeyType
	Currency string // currency the feed prices are expressed in

	RateMode  RateMode
	FixedRate float64

	MarginMode     MarginMode
	MarginFixedPct float64
	MarginTiers    []MarginTier

	EndingMode  EndingMode
	EndingValue string

	MinMarginPct float64
	MaxDeltaPct  float64

	ZeroQtyPolicy ZeroQtyPolicy
	StockBuffer   int

	PriceUpdateMode PriceUpdateMode
	TaxRuleGroupID  int

	// RequireIdentifier makes the pre-write guard reject products whose
	// primary identifier (ean13) is empty.
	RequireIdentifier bool

	QtyMax int // guard ceiling for quantities, 0 means default

	LastRunAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the invariants a source must satisfy before a run:
// mandatory column mappings and non-negative numeric thresholds.
func (s *Source) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("source %d: url is required", s.ID)
	}
	if s.MapKey == "" {
		return fmt.Errorf("source %d: key column mapping is required", s.ID)
	}
	if s.MapPrice == "" {
		return fmt.Errorf("source %d: price column mapping is required", s.ID)
	}
	if s.MapQty == "" {
		return fmt.Errorf("source %d: qty column mapping is required", s.ID)
	}
	if s.MaxDeltaPct < 0 {
		return fmt.Errorf("source %d: max_delta_pct must be non-negative", s.ID)
	}
	if s.MinMarginPct < 0 {
		return fmt.Errorf("source %d: min_margin_pct must be non-negative", s.ID)
	}
	if s.StockBuffer < 0 {
		return fmt.Errorf("source %d: stock_buffer must be non-negative", s.ID)
	}
	if s.FixedRate < 0 {
		return fmt.Errorf("source %d: fixed_rate must be non-negative", s.ID)
	}
	if s.QtyMax < 0 {
		return fmt.Errorf("source %d: qty_max must be non-negative", s.ID)
	}
	switch s.KeyType {
	case KeyTypeEAN, KeyTypeReference, KeyTypeSupplierReference:
	default:
		return fmt.Errorf("source %d: unknown key_type %q", s.ID, s.KeyType)
	}
	return nil
}
