package guard

import (
	"fmt"
	"math"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/metrics"
)

// Guard rejection reason codes.
const (
	ReasonNotFound      = "not_found"
	ReasonMissingEAN    = "missing_ean"
	ReasonNegativePrice = "negative_price"
	ReasonDeltaInsane   = "delta_insane"
	ReasonNegativeQty   = "negative_qty"
	ReasonQtyAnomaly    = "qty_anomaly"
	ReasonActiveInvalid = "active_invalid"
)

// DefaultQtyMax bounds quantities when the source sets no ceiling.
const DefaultQtyMax = 100000

// insaneDeltaFactor scales the source's max delta into the circuit
// breaker threshold applied right before the write.
const insaneDeltaFactor = 4.0

// Decision is a structured accept/reject; the guard never raises.
type Decision struct {
	OK      bool
	Reason  string
	Details string
}

// ProductReader reads the minimal product view the guard checks against.
// Returns (nil, nil) when the product does not exist.
type ProductReader interface {
	ProductInfo(id int) (*models.ProductInfo, error)
}

// Service is the defense-in-depth gate immediately before a write,
// independent of the diff engine's own guard.
type Service struct {
	products ProductReader
}

func NewService(products ProductReader) *Service {
	return &Service{products: products}
}

// ValidateForUpdate re-checks a proposed change against live catalog
// state: the product must still exist, prices stay non-negative, the
// insane-delta breaker catches changes the diff-time guard missed, and
// quantity/active stay within bounds.
func (s *Service) ValidateForUpdate(productID int, changes models.Changes, src *models.Source) Decision {
	prod, err := s.products.ProductInfo(productID)
	if err != nil {
		return s.fail(ReasonNotFound, fmt.Sprintf("product %d read failed: %v", productID, err))
	}
	if prod == nil {
		return s.fail(ReasonNotFound, fmt.Sprintf("product %d not found", productID))
	}

	if src.RequireIdentifier && (prod.EAN == "" || prod.EAN == "0") {
		return s.fail(ReasonMissingEAN, "empty ean13")
	}

	if changes.Price != nil {
		price := *changes.Price
		if price < 0 {
			return s.fail(ReasonNegativePrice, "price < 0")
		}
		maxDelta := src.MaxDeltaPct
		if maxDelta <= 0 {
			maxDelta = 50.0
		}
		if prod.Price > 0 {
			delta := math.Abs((price - prod.Price) / prod.Price * 100.0)
			if delta > maxDelta*insaneDeltaFactor {
				return s.fail(ReasonDeltaInsane, fmt.Sprintf("Δ=%.1f%% > %.1f%%", delta, maxDelta*insaneDeltaFactor))
			}
		}
	}

	if changes.Quantity != nil {
		qty := *changes.Quantity
		if qty < 0 {
			return s.fail(ReasonNegativeQty, "quantity < 0")
		}
		qtyMax := src.QtyMax
		if qtyMax <= 0 {
			qtyMax = DefaultQtyMax
		}
		if qty > qtyMax {
			return s.fail(ReasonQtyAnomaly, fmt.Sprintf("quantity=%d > %d", qty, qtyMax))
		}
	}

	if changes.Active != nil {
		if a := *changes.Active; a != 0 && a != 1 {
			return s.fail(ReasonActiveInvalid, "active must be 0|1")
		}
	}

	return Decision{OK: true}
}

func (s *Service) fail(reason, details string) Decision {
	metrics.RecordGuardRejection(reason)
	return Decision{OK: false, Reason: reason, Details: details}
}
