package models

// Changes is the proposed per-product mutation. Nil fields are untouched.
type Changes struct {
	Price    *float64
	Quantity *int
	Active   *int
}

func (c Changes) Empty() bool {
	return c.Price == nil && c.Quantity == nil && c.Active == nil
}

// ChangeSetItem is the unit of proposed mutation produced by the diff
// engine and consumed by the guard and the updaters.
type ChangeSetItem struct {
	ProductID   int
	AttributeID int
	Changes     Changes
	Reason      string
	ShopID      int
	Key         string
}

// DiffResult aggregates one diff pass over a feed.
type DiffResult struct {
	Total    int
	Affected int
	Skipped  int
	Errors   int
	Items    []ChangeSetItem
}

// ResolvedProduct is a catalog match for a feed key. AttributeID is zero
// when the match is the base product rather than a variant.
type ResolvedProduct struct {
	ProductID   int
	AttributeID int
}

// CurrentState is the catalog state of one product in one shop context,
// read once at diff (or snapshot) time. Price is tax-excluded.
type CurrentState struct {
	Price    float64
	Quantity int
	Active   int
}

// ProductInfo is the minimal product view the guard reads before a write.
type ProductInfo struct {
	ID    int
	EAN   string
	Price float64
}

// PriceUpdate is the payload for the price updater.
type PriceUpdate struct {
	Price          float64
	ShopID         int
	Mode           PriceUpdateMode
	TaxRuleGroupID int
}

// StockUpdate is the payload for the stock updater. Quantity is final
// (stock buffer already applied); the zero-quantity policy fires when
// it lands at zero.
type StockUpdate struct {
	Quantity      *int
	Active        *int
	ShopID        int
	ZeroQtyPolicy ZeroQtyPolicy
}
