package rollback

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/pkg/logger"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type fakeSnapshots struct {
	snaps []models.Snapshot
}

func (f *fakeSnapshots) SnapshotsByRunReversed(int) ([]models.Snapshot, error) {
	out := make([]models.Snapshot, len(f.snaps))
	for i, s := range f.snaps {
		out[len(f.snaps)-1-i] = s
	}
	return out, nil
}

type fakeRestorer struct {
	restored []int
	failFor  map[int]bool
}

func (f *fakeRestorer) RestoreSnapshot(_ context.Context, snap models.Snapshot) error {
	if f.failFor[snap.ProductID] {
		return fmt.Errorf("restore failed")
	}
	f.restored = append(f.restored, snap.ProductID)
	return nil
}

type logSink struct {
	entries []models.LogEntry
}

func (l *logSink) Log(entry models.LogEntry) error {
	l.entries = append(l.entries, entry)
	return nil
}

func f64(v float64) *float64 { return &v }

func TestRollbackRestoresNewestFirst(t *testing.T) {
	snaps := &fakeSnapshots{snaps: []models.Snapshot{
		{ID: 1, RunID: 3, ProductID: 7, Price: f64(10)},
		{ID: 2, RunID: 3, ProductID: 8, Price: f64(20)},
		{ID: 3, RunID: 3, ProductID: 9, Price: f64(30)},
	}}
	restorer := &fakeRestorer{}
	sink := &logSink{}

	restored, err := NewService(snaps, restorer, sink, logger.NewLogger(discard{}, "")).
		Rollback(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, restored)
	assert.Equal(t, []int{9, 8, 7}, restorer.restored)

	require.Len(t, sink.entries, 3)
	for _, e := range sink.entries {
		assert.Equal(t, models.ActionRollback, e.Action)
		assert.Equal(t, 3, e.RunID)
	}
}

func TestRollbackContinuesPastFailures(t *testing.T) {
	snaps := &fakeSnapshots{snaps: []models.Snapshot{
		{ID: 1, RunID: 3, ProductID: 7},
		{ID: 2, RunID: 3, ProductID: 8},
	}}
	restorer := &fakeRestorer{failFor: map[int]bool{8: true}}
	sink := &logSink{}

	restored, err := NewService(snaps, restorer, sink, logger.NewLogger(discard{}, "")).
		Rollback(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, restored)
	assert.Equal(t, []int{7}, restorer.restored)

	require.Len(t, sink.entries, 2)
	assert.Equal(t, models.ActionError, sink.entries[0].Action)
	assert.Equal(t, models.ActionRollback, sink.entries[1].Action)
}

func TestRollbackEmptyRunIsNoop(t *testing.T) {
	restorer := &fakeRestorer{}
	restored, err := NewService(&fakeSnapshots{}, restorer, &logSink{}, logger.NewLogger(discard{}, "")).
		Rollback(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, restored)
	assert.Empty(t, restorer.restored)
}

func TestRollbackIsIdempotent(t *testing.T) {
	snaps := &fakeSnapshots{snaps: []models.Snapshot{
		{ID: 1, RunID: 3, ProductID: 7, Price: f64(10)},
	}}
	restorer := &fakeRestorer{}
	svc := NewService(snaps, restorer, &logSink{}, logger.NewLogger(discard{}, ""))

	first, err := svc.Rollback(context.Background(), 3)
	require.NoError(t, err)
	second, err := svc.Rollback(context.Background(), 3)
	require.NoError(t, err)

	// the same absolute values are written both times
	assert.Equal(t, first, second)
	assert.Equal(t, []int{7, 7}, restorer.restored)
}
