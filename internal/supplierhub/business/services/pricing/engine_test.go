package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/rates"
)

type stubRates struct {
	rate float64
	mode string
}

func (s stubRates) GetRate(_ context.Context, _, _ string, _ float64) rates.Result {
	return rates.Result{Rate: s.rate, Mode: s.mode}
}

func plnSource() *models.Source {
	return &models.Source{
		ID:             1,
		Currency:       "PLN",
		RateMode:       models.RateModeFixed,
		FixedRate:      4.30,
		MarginMode:     models.MarginModeFixed,
		MarginFixedPct: 20,
		EndingMode:     models.EndingModeFixed99,
	}
}

func TestComputeConversionMarginAndEnding(t *testing.T) {
	engine := NewEngine(stubRates{}, "EUR")

	comp, err := engine.Compute(context.Background(), 19.99, plnSource())
	require.NoError(t, err)

	assert.InDelta(t, 4.6488, comp.PriceBase, 0.0001)
	assert.Equal(t, 5.99, comp.PriceTarget)
	assert.Equal(t, 4.30, comp.RateUsed)
	assert.Equal(t, rates.ModeFixed, comp.RateMode)
}

func TestComputeIsDeterministic(t *testing.T) {
	engine := NewEngine(stubRates{}, "EUR")
	src := plnSource()

	first, err := engine.Compute(context.Background(), 19.99, src)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := engine.Compute(context.Background(), 19.99, src)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputeSameCurrencySkipsConversion(t *testing.T) {
	engine := NewEngine(stubRates{rate: 99, mode: rates.ModeLive}, "EUR")

	comp, err := engine.Compute(context.Background(), 10.0, &models.Source{Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, comp.RateUsed)
	assert.Equal(t, rates.ModeSame, comp.RateMode)
	assert.Equal(t, 10.0, comp.PriceTarget)
}

func TestComputeLiveRateFallbackWarns(t *testing.T) {
	engine := NewEngine(stubRates{rate: 4.0, mode: rates.ModeStaleCache}, "EUR")
	src := &models.Source{Currency: "PLN", RateMode: models.RateModeLive}

	comp, err := engine.Compute(context.Background(), 8.0, src)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, comp.PriceBase, 0.0001)
	assert.Contains(t, comp.Warnings, "rate_fallback_stale-cache")
}

func TestComputeRejectsInvalidFixedRate(t *testing.T) {
	engine := NewEngine(stubRates{}, "EUR")
	src := &models.Source{Currency: "PLN", RateMode: models.RateModeFixed, FixedRate: 0}

	_, err := engine.Compute(context.Background(), 10.0, src)
	assert.ErrorIs(t, err, ErrFixedRateInvalid)
}

func TestTieredMarginFirstMatchWins(t *testing.T) {
	engine := NewEngine(stubRates{}, "EUR")
	src := &models.Source{
		Currency:   "EUR",
		MarginMode: models.MarginModeTiered,
		MarginTiers: []models.MarginTier{
			{From: 0, To: 10, Pct: 50},
			{From: 10, To: 100, Pct: 20},
			{From: 100, To: 0, Pct: 10}, // open-ended
		},
	}

	cases := []struct {
		price float64
		want  float64
	}{
		{5, 7.5},     // 50%
		{10, 12},     // boundary lands in second tier
		{50, 60},     // 20%
		{200, 220},   // 10% via open-ended tier
		{100, 110},   // boundary lands in third tier
	}
	for _, tc := range cases {
		comp, err := engine.Compute(context.Background(), tc.price, src)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, comp.PriceTarget, 0.001, "price %.2f", tc.price)
	}
}

func TestTieredMarginNoMatchMeansZero(t *testing.T) {
	engine := NewEngine(stubRates{}, "EUR")
	src := &models.Source{
		Currency:    "EUR",
		MarginMode:  models.MarginModeTiered,
		MarginTiers: []models.MarginTier{{From: 100, To: 200, Pct: 25}},
	}

	comp, err := engine.Compute(context.Background(), 50, src)
	require.NoError(t, err)
	assert.Equal(t, 50.0, comp.PriceTarget)
}

func TestCustomEnding(t *testing.T) {
	engine := NewEngine(stubRates{}, "EUR")

	src := &models.Source{Currency: "EUR", EndingMode: models.EndingModeCustom, EndingValue: "0,95"}
	comp, err := engine.Compute(context.Background(), 12.37, src)
	require.NoError(t, err)
	assert.Equal(t, 12.95, comp.PriceTarget)

	// below one unit the ending value itself becomes the price
	comp, err = engine.Compute(context.Background(), 0.40, src)
	require.NoError(t, err)
	assert.Equal(t, 0.95, comp.PriceTarget)
}

func TestBelowMinMarginWarning(t *testing.T) {
	engine := NewEngine(stubRates{}, "EUR")
	src := &models.Source{
		Currency:       "EUR",
		MarginMode:     models.MarginModeFixed,
		MarginFixedPct: 5,
		MinMarginPct:   15,
	}

	comp, err := engine.Compute(context.Background(), 100, src)
	require.NoError(t, err)
	assert.Contains(t, comp.Warnings, "below_min_margin")

	src.MarginFixedPct = 20
	comp, err = engine.Compute(context.Background(), 100, src)
	require.NoError(t, err)
	assert.NotContains(t, comp.Warnings, "below_min_margin")
}
