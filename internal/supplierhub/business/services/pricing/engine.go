package pricing

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/rates"
)

var (
	ErrFixedRateInvalid = errors.New("fixed rate must be > 0")
	ErrInvalidPrice     = errors.New("invalid price after conversion")
)

// minMarginEpsilon keeps rounding noise from tripping the minimum
// margin warning.
const minMarginEpsilon = 0.0001

// Computation is the deterministic pricing outcome for one record given
// a fixed rate snapshot.
type Computation struct {
	PriceBase          float64
	PriceTarget        float64
	RateUsed           float64
	RateMode           string
	EffectiveMarginPct float64
	Warnings           []string
}

// Engine converts feed prices to the base currency and applies margin
// and price-ending rules from the source configuration.
type Engine struct {
	rates        rates.Provider
	baseCurrency string
}

func NewEngine(provider rates.Provider, baseCurrency string) *Engine {
	if baseCurrency == "" {
		baseCurrency = rates.BaseCurrency
	}
	return &Engine{rates: provider, baseCurrency: baseCurrency}
}

// Compute runs the pricing steps in order: currency conversion, margin,
// price ending, effective-margin check.
func (e *Engine) Compute(ctx context.Context, price float64, src *models.Source) (*Computation, error) {
	comp := &Computation{}

	currency := strings.ToUpper(strings.TrimSpace(src.Currency))
	switch {
	case currency == "" || currency == e.baseCurrency:
		comp.PriceBase = price
		comp.RateUsed = 1.0
		comp.RateMode = rates.ModeSame
	case src.RateMode == models.RateModeFixed:
		if src.FixedRate <= 0 {
			return nil, ErrFixedRateInvalid
		}
		comp.RateUsed = src.FixedRate
		comp.RateMode = rates.ModeFixed
		comp.PriceBase = price / src.FixedRate
	default:
		res := e.rates.GetRate(ctx, currency, e.baseCurrency, src.FixedRate)
		comp.RateUsed = res.Rate
		comp.RateMode = res.Mode
		comp.PriceBase = price / res.Rate
		if res.Fallback() {
			comp.Warnings = append(comp.Warnings, "rate_fallback_"+res.Mode)
		}
	}

	if comp.PriceBase < 0 || math.IsNaN(comp.PriceBase) || math.IsInf(comp.PriceBase, 0) {
		return nil, ErrInvalidPrice
	}

	marginPct := e.resolveMargin(comp.PriceBase, src)
	withMargin := comp.PriceBase * (1.0 + marginPct/100.0)

	comp.PriceTarget = applyEnding(withMargin, src.EndingMode, src.EndingValue)

	if comp.PriceBase > 0 {
		comp.EffectiveMarginPct = (comp.PriceTarget/comp.PriceBase - 1.0) * 100.0
	}
	if src.MinMarginPct > 0 && comp.EffectiveMarginPct+minMarginEpsilon < src.MinMarginPct {
		comp.Warnings = append(comp.Warnings, "below_min_margin")
	}

	comp.PriceBase = round4(comp.PriceBase)
	comp.PriceTarget = round2(comp.PriceTarget)
	comp.EffectiveMarginPct = round3(comp.EffectiveMarginPct)
	return comp, nil
}

// resolveMargin picks the margin percentage: flat, or the first
// matching [from, to) tier, 0% when no tier matches.
func (e *Engine) resolveMargin(priceBase float64, src *models.Source) float64 {
	if src.MarginMode != models.MarginModeTiered {
		return src.MarginFixedPct
	}
	for _, tier := range src.MarginTiers {
		to := tier.To
		if to <= 0 {
			to = math.MaxFloat64
		}
		if priceBase >= tier.From && priceBase < to {
			return tier.Pct
		}
	}
	return 0.0
}

func applyEnding(price float64, mode models.EndingMode, value string) float64 {
	switch mode {
	case models.EndingModeFixed99:
		return math.Floor(price) + 0.99
	case models.EndingModeCustom:
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(value), ",", "."), 64)
		if err != nil {
			return round2(price)
		}
		whole := math.Floor(price)
		if whole <= 0 {
			return v
		}
		return whole + v
	default:
		return round2(price)
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
