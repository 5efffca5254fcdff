package guard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"supplierhub_api/internal/supplierhub/business/models"
)

type fakeProducts struct {
	infos map[int]models.ProductInfo
	err   error
}

func (f *fakeProducts) ProductInfo(id int) (*models.ProductInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.infos[id]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func TestRejectsMissingProduct(t *testing.T) {
	svc := NewService(&fakeProducts{infos: map[int]models.ProductInfo{}})

	dec := svc.ValidateForUpdate(42, models.Changes{Price: f64(10)}, &models.Source{})
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonNotFound, dec.Reason)
}

func TestRejectsReadFailure(t *testing.T) {
	svc := NewService(&fakeProducts{err: fmt.Errorf("connection reset")})

	dec := svc.ValidateForUpdate(42, models.Changes{}, &models.Source{})
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonNotFound, dec.Reason)
}

func TestRejectsMissingEANWhenRequired(t *testing.T) {
	products := &fakeProducts{infos: map[int]models.ProductInfo{
		42: {ID: 42, EAN: "", Price: 10},
	}}
	svc := NewService(products)

	dec := svc.ValidateForUpdate(42, models.Changes{Price: f64(11)}, &models.Source{RequireIdentifier: true})
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonMissingEAN, dec.Reason)

	// without the requirement the same product passes
	dec = svc.ValidateForUpdate(42, models.Changes{Price: f64(11)}, &models.Source{MaxDeltaPct: 50})
	assert.True(t, dec.OK)
}

func TestRejectsNegativePrice(t *testing.T) {
	products := &fakeProducts{infos: map[int]models.ProductInfo{42: {ID: 42, Price: 10}}}
	svc := NewService(products)

	dec := svc.ValidateForUpdate(42, models.Changes{Price: f64(-1)}, &models.Source{})
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonNegativePrice, dec.Reason)
}

func TestInsaneDeltaBreaker(t *testing.T) {
	products := &fakeProducts{infos: map[int]models.ProductInfo{42: {ID: 42, Price: 10}}}
	svc := NewService(products)
	src := &models.Source{MaxDeltaPct: 50}

	// 4x the limit is 200%; 10 -> 35 is +250%
	dec := svc.ValidateForUpdate(42, models.Changes{Price: f64(35)}, src)
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonDeltaInsane, dec.Reason)

	// within the breaker but past the diff-time limit still passes here;
	// the diff engine owns the tighter check
	dec = svc.ValidateForUpdate(42, models.Changes{Price: f64(25)}, src)
	assert.True(t, dec.OK)
}

func TestRejectsNegativeQty(t *testing.T) {
	products := &fakeProducts{infos: map[int]models.ProductInfo{42: {ID: 42}}}
	svc := NewService(products)

	dec := svc.ValidateForUpdate(42, models.Changes{Quantity: i(-5)}, &models.Source{})
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonNegativeQty, dec.Reason)
}

func TestRejectsQtyAnomaly(t *testing.T) {
	products := &fakeProducts{infos: map[int]models.ProductInfo{42: {ID: 42}}}
	svc := NewService(products)

	dec := svc.ValidateForUpdate(42, models.Changes{Quantity: i(DefaultQtyMax + 1)}, &models.Source{})
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonQtyAnomaly, dec.Reason)

	// a source-level ceiling overrides the default
	dec = svc.ValidateForUpdate(42, models.Changes{Quantity: i(600)}, &models.Source{QtyMax: 500})
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonQtyAnomaly, dec.Reason)

	dec = svc.ValidateForUpdate(42, models.Changes{Quantity: i(400)}, &models.Source{QtyMax: 500})
	assert.True(t, dec.OK)
}

func TestRejectsInvalidActive(t *testing.T) {
	products := &fakeProducts{infos: map[int]models.ProductInfo{42: {ID: 42}}}
	svc := NewService(products)

	dec := svc.ValidateForUpdate(42, models.Changes{Active: i(2)}, &models.Source{})
	assert.False(t, dec.OK)
	assert.Equal(t, ReasonActiveInvalid, dec.Reason)

	dec = svc.ValidateForUpdate(42, models.Changes{Active: i(1)}, &models.Source{})
	assert.True(t, dec.OK)
}
