package diff

import (
	"context"
	"fmt"
	"math"
	"strings"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/normalize"
	"supplierhub_api/internal/supplierhub/business/services/parse"
	"supplierhub_api/internal/supplierhub/business/services/pricing"
	"supplierhub_api/internal/supplierhub/business/services/validate"
	"supplierhub_api/metrics"
	"supplierhub_api/pkg/logger"
)

// priceEpsilon suppresses float-noise churn: price differences below it
// are treated as no change.
const priceEpsilon = 0.0005

// FeedLoader supplies the parsed record stream for a source.
type FeedLoader interface {
	Load(ctx context.Context, src *models.Source) (*parse.Stream, string, error)
}

// CatalogReader resolves feed keys to products and reads their current
// state. Resolve returns (nil, nil) on no match; CurrentState returns
// (nil, nil) when the state is unreadable for that shop context.
type CatalogReader interface {
	Resolve(key string, keyType models.KeyType, shopID int) (*models.ResolvedProduct, error)
	CurrentState(ids *models.ResolvedProduct, shopID int) (*models.CurrentState, error)
}

// PriceComputer turns a raw feed price into the target catalog price.
type PriceComputer interface {
	Compute(ctx context.Context, price float64, src *models.Source) (*pricing.Computation, error)
}

// Options tune one diff pass.
type Options struct {
	MaxDeltaGuard bool
}

// Service computes the change-set between a supplier feed and the
// current catalog state without writing anything.
type Service struct {
	loader     FeedLoader
	catalog    CatalogReader
	pricing    PriceComputer
	normalizer *normalize.Normalizer
	log        logger.Logger
}

func NewService(loader FeedLoader, catalog CatalogReader, priceComputer PriceComputer, log logger.Logger) *Service {
	return &Service{
		loader:     loader,
		catalog:    catalog,
		pricing:    priceComputer,
		normalizer: normalize.NewNormalizer(),
		log:        log,
	}
}

// Compute walks the whole feed once. Per-record problems become skips
// or error counts; only fetch/parse failures abort the pass.
func (s *Service) Compute(ctx context.Context, src *models.Source, opts Options) (*models.DiffResult, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	stream, _, err := s.loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load feed for source %d: %w", src.ID, err)
	}

	res := &models.DiffResult{}

	for {
		raw, ok := stream.Next()
		if !ok {
			break
		}
		res.Total++

		rec := s.normalizer.Normalize(raw, src)
		val := validate.Validate(rec)
		if !val.OK {
			res.Skipped++
			continue
		}

		item, outcome := s.diffRecord(ctx, src, rec, val, opts)
		switch outcome {
		case outcomeSkip:
			res.Skipped++
		case outcomeError:
			res.Errors++
		case outcomeChange:
			res.Items = append(res.Items, *item)
			res.Affected++
		}
		// outcomeNoop records stay in Total only
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("read feed for source %d: %w", src.ID, err)
	}
	if stream.Truncated() {
		s.log.Log("feed for source %d truncated at safety ceiling", src.ID)
	}

	metrics.AddRecordsProcessed(res.Total)
	return res, nil
}

type outcome int

const (
	outcomeNoop outcome = iota
	outcomeSkip
	outcomeError
	outcomeChange
)

func (s *Service) diffRecord(ctx context.Context, src *models.Source, rec models.NormalizedRecord, val validate.Result, opts Options) (*models.ChangeSetItem, outcome) {
	resolved, err := s.catalog.Resolve(rec.Key, src.KeyType, src.ShopID)
	if err != nil {
		s.log.Log("resolve %q failed: %v", rec.Key, err)
		return nil, outcomeError
	}
	if resolved == nil {
		return nil, outcomeSkip
	}

	cur, err := s.catalog.CurrentState(resolved, src.ShopID)
	if err != nil {
		s.log.Log("current state for product %d failed: %v", resolved.ProductID, err)
		return nil, outcomeError
	}
	if cur == nil {
		return nil, outcomeSkip
	}

	var changes models.Changes
	var reasons []string
	guardHit := false

	if val.Price != nil {
		comp, err := s.pricing.Compute(ctx, *val.Price, src)
		if err != nil {
			s.log.Log("pricing for %q failed: %v", rec.Key, err)
			return nil, outcomeError
		}
		newPrice := comp.PriceTarget
		if differsPrice(cur.Price, newPrice) {
			if opts.MaxDeltaGuard && cur.Price > 0 && deltaPct(cur.Price, newPrice) > src.MaxDeltaPct {
				// the price change is withheld; qty/active still apply
				guardHit = true
			} else {
				p := newPrice
				changes.Price = &p
				reasons = append(reasons, fmt.Sprintf("price: %.2f→%.2f (Δ%s)", cur.Price, newPrice, fmtDeltaPct(cur.Price, newPrice)))
			}
		}
	}

	newQty := applyBuffer(val.Qty, src.StockBuffer)
	if newQty != cur.Quantity {
		q := newQty
		changes.Quantity = &q
		reasons = append(reasons, fmt.Sprintf("qty: %d→%d", cur.Quantity, newQty))
	}

	if rec.Active != nil {
		a := coerceActive(*rec.Active)
		if a != cur.Active {
			changes.Active = &a
			reasons = append(reasons, fmt.Sprintf("active: %d→%d", cur.Active, a))
		}
	}

	if changes.Empty() {
		if guardHit {
			return nil, outcomeSkip
		}
		return nil, outcomeNoop
	}

	return &models.ChangeSetItem{
		ProductID:   resolved.ProductID,
		AttributeID: resolved.AttributeID,
		Changes:     changes,
		Reason:      strings.Join(reasons, "; "),
		ShopID:      src.ShopID,
		Key:         rec.Key,
	}, outcomeChange
}

func applyBuffer(qty, buffer int) int {
	if buffer <= 0 {
		return qty
	}
	if qty <= buffer {
		return 0
	}
	return qty - buffer
}

func differsPrice(a, b float64) bool {
	return math.Abs(a-b) >= priceEpsilon
}

func deltaPct(oldPrice, newPrice float64) float64 {
	return math.Abs((newPrice - oldPrice) / oldPrice * 100.0)
}

func fmtDeltaPct(oldPrice, newPrice float64) string {
	if oldPrice == 0 {
		return "n/a"
	}
	pct := (newPrice - oldPrice) / oldPrice * 100.0
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%%", sign, pct)
}

// coerceActive folds the truthy spellings feeds use into 0/1.
func coerceActive(v string) int {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return 1
	}
	return 0
}
