package preview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/parse"
)

type fakeSources struct {
	src *models.Source
}

func (f *fakeSources) GetSource(int) (*models.Source, error) { return f.src, nil }

type fakeLoader struct {
	records []parse.Record
}

func (f *fakeLoader) Load(context.Context, *models.Source) (*parse.Stream, string, error) {
	return parse.NewSliceStream(f.records), "csv", nil
}

func TestPreviewMapsHeadAndCountsWholeFeed(t *testing.T) {
	records := make([]parse.Record, 0, 30)
	for i := 0; i < 30; i++ {
		records = append(records, parse.Record{"ean": "111", "price": "9.99", "qty": "2"})
	}
	records = append(records, parse.Record{"ean": "", "price": "9.99", "qty": "2"})

	sources := &fakeSources{src: &models.Source{
		ID: 1, URL: "http://feed.example/f.csv",
		MapKey: "ean", MapPrice: "price", MapQty: "qty",
		KeyType: models.KeyTypeEAN,
	}}

	res, err := NewService(sources, &fakeLoader{records: records}).Preview(context.Background(), 1, 5)
	require.NoError(t, err)

	assert.Equal(t, "csv", res.Format)
	assert.Len(t, res.Rows, 5)
	assert.Equal(t, 31, res.Scanned)
	assert.Equal(t, 30, res.Valid)
	assert.Equal(t, 1, res.Invalid)

	row := res.Rows[0]
	assert.True(t, row.OK)
	assert.Equal(t, "111", row.Key)
	require.NotNil(t, row.Price)
	assert.Equal(t, 9.99, *row.Price)
	assert.Equal(t, 2, row.Qty)
}

func TestPreviewDefaultLimit(t *testing.T) {
	records := make([]parse.Record, 0, 50)
	for i := 0; i < 50; i++ {
		records = append(records, parse.Record{"ean": "111", "price": "1", "qty": "1"})
	}
	sources := &fakeSources{src: &models.Source{
		ID: 1, URL: "http://feed.example/f.csv",
		MapKey: "ean", MapPrice: "price", MapQty: "qty",
		KeyType: models.KeyTypeEAN,
	}}

	res, err := NewService(sources, &fakeLoader{records: records}).Preview(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, res.Rows, defaultLimit)
	assert.Equal(t, 50, res.Scanned)
}

func TestPreviewRejectsBrokenMapping(t *testing.T) {
	sources := &fakeSources{src: &models.Source{ID: 1, URL: "http://feed.example/f.csv", KeyType: models.KeyTypeEAN}}

	_, err := NewService(sources, &fakeLoader{}).Preview(context.Background(), 1, 5)
	assert.Error(t, err)
}
