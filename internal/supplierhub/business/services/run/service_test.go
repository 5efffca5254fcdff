package run

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/diff"
	"supplierhub_api/internal/supplierhub/business/services/guard"
	"supplierhub_api/pkg/logger"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type fakeSources struct {
	src       *models.Source
	lastRunAt *time.Time
}

func (f *fakeSources) GetSource(int) (*models.Source, error) { return f.src, nil }
func (f *fakeSources) TouchLastRun(_ int, at time.Time) error {
	f.lastRunAt = &at
	return nil
}

type fakeDiffer struct {
	result *models.DiffResult
	err    error
}

func (f *fakeDiffer) Compute(context.Context, *models.Source, diff.Options) (*models.DiffResult, error) {
	return f.result, f.err
}

type passGuard struct{}

func (passGuard) ValidateForUpdate(int, models.Changes, *models.Source) guard.Decision {
	return guard.Decision{OK: true}
}

type rejectGuard struct{ reason string }

func (g rejectGuard) ValidateForUpdate(int, models.Changes, *models.Source) guard.Decision {
	return guard.Decision{OK: false, Reason: g.reason}
}

type fakeAppliers struct {
	prices []models.PriceUpdate
	stocks []models.StockUpdate
	fail   bool
}

func (f *fakeAppliers) UpdatePrice(_ context.Context, _, _ int, upd models.PriceUpdate) error {
	if f.fail {
		return fmt.Errorf("write failed")
	}
	f.prices = append(f.prices, upd)
	return nil
}

func (f *fakeAppliers) UpdateStock(_ context.Context, _, _ int, upd models.StockUpdate) error {
	if f.fail {
		return fmt.Errorf("write failed")
	}
	f.stocks = append(f.stocks, upd)
	return nil
}

type fakeState struct {
	states map[int]models.CurrentState
}

func (f *fakeState) CurrentState(ids *models.ResolvedProduct, _ int) (*models.CurrentState, error) {
	s, ok := f.states[ids.ProductID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type memStore struct {
	nextID    int
	finished  map[int]models.RunStatus
	stats     map[int]models.RunStats
	logs      []models.LogEntry
	snapshots []models.Snapshot
	beats     []models.RunStats
}

func newMemStore() *memStore {
	return &memStore{finished: make(map[int]models.RunStatus), stats: make(map[int]models.RunStats)}
}

func (m *memStore) StartRun(int, bool, string) (int, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *memStore) FinishRun(runID int, status models.RunStatus, stats models.RunStats) error {
	m.finished[runID] = status
	m.stats[runID] = stats
	return nil
}

func (m *memStore) Heartbeat(_ int, stats models.RunStats) error {
	m.beats = append(m.beats, stats)
	return nil
}

func (m *memStore) Log(entry models.LogEntry) error {
	m.logs = append(m.logs, entry)
	return nil
}

func (m *memStore) Snapshot(snap models.Snapshot) (int64, error) {
	m.snapshots = append(m.snapshots, snap)
	return int64(len(m.snapshots)), nil
}

func (m *memStore) LogsByRun(runID int) ([]models.LogEntry, error) {
	var out []models.LogEntry
	for _, e := range m.logs {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeLocker struct {
	mu       sync.Mutex
	denied   bool
	held     bool
	unlocked bool
}

func (f *fakeLocker) TryLock(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied || f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLocker) Unlock(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = false
	f.unlocked = true
	return nil
}

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func activeSource() *models.Source {
	return &models.Source{ID: 1, ShopID: 1, Active: true, MaxDeltaPct: 50}
}

func changeItem(productID int, price float64, qty int) models.ChangeSetItem {
	return models.ChangeSetItem{
		ProductID: productID,
		ShopID:    1,
		Changes:   models.Changes{Price: f64(price), Quantity: i(qty)},
		Reason:    "test change",
	}
}

func newRunService(sources *fakeSources, differ Differ, g Guard, appliers *fakeAppliers, state *fakeState, store *memStore, locker *fakeLocker) *Service {
	return NewService(sources, differ, g, appliers, appliers, state, store, locker, logger.NewLogger(discard{}, ""))
}

func TestExecuteAppliesChanges(t *testing.T) {
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{
		Total:    10,
		Affected: 1,
		Items:    []models.ChangeSetItem{changeItem(7, 12.50, 5)},
	}}
	appliers := &fakeAppliers{}
	state := &fakeState{states: map[int]models.CurrentState{7: {Price: 10, Quantity: 3, Active: 1}}}
	store := newMemStore()
	locker := &fakeLocker{}

	res, err := newRunService(sources, differ, passGuard{}, appliers, state, store, locker).
		Execute(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusOK, res.Status)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 10, res.Total)
	require.Len(t, appliers.prices, 1)
	assert.Equal(t, 12.50, appliers.prices[0].Price)
	require.Len(t, appliers.stocks, 1)
	require.NotNil(t, appliers.stocks[0].Quantity)
	assert.Equal(t, 5, *appliers.stocks[0].Quantity)

	// snapshot captured before the writes
	require.Len(t, store.snapshots, 1)
	assert.Equal(t, 10.0, *store.snapshots[0].Price)
	assert.Equal(t, 3, *store.snapshots[0].Quantity)

	assert.True(t, locker.unlocked)
	assert.NotNil(t, sources.lastRunAt)
	assert.NotEmpty(t, res.Checksum)
}

func TestExecuteSnapshotCapturesVariantAttribute(t *testing.T) {
	// A variant-resolved change must snapshot the variant stock row, so a
	// later rollback restores the row the run actually wrote.
	item := changeItem(7, 12.50, 5)
	item.AttributeID = 4
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{Items: []models.ChangeSetItem{item}}}
	state := &fakeState{states: map[int]models.CurrentState{7: {Price: 10, Quantity: 3, Active: 1}}}
	store := newMemStore()

	_, err := newRunService(sources, differ, passGuard{}, &fakeAppliers{}, state, store, &fakeLocker{}).
		Execute(context.Background(), 1, false)
	require.NoError(t, err)

	require.Len(t, store.snapshots, 1)
	assert.Equal(t, 4, store.snapshots[0].AttributeID)
}

func TestExecuteRefusesWhenLocked(t *testing.T) {
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{Items: []models.ChangeSetItem{changeItem(7, 12.50, 5)}}}
	appliers := &fakeAppliers{}
	store := newMemStore()

	_, err := newRunService(sources, differ, passGuard{}, appliers, &fakeState{}, store, &fakeLocker{denied: true}).
		Execute(context.Background(), 1, false)
	assert.ErrorIs(t, err, ErrLocked)

	// nothing was written, logged or snapshotted
	assert.Empty(t, appliers.prices)
	assert.Empty(t, appliers.stocks)
	assert.Empty(t, store.logs)
	assert.Empty(t, store.snapshots)
	assert.Equal(t, 0, store.nextID)
}

func TestExecuteDryRunWritesNothing(t *testing.T) {
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{
		Total:    5,
		Affected: 2,
		Items: []models.ChangeSetItem{
			changeItem(7, 12.50, 5),
			changeItem(8, 9.99, 1),
		},
	}}
	appliers := &fakeAppliers{}
	store := newMemStore()

	res, err := newRunService(sources, differ, passGuard{}, appliers, &fakeState{}, store, &fakeLocker{}).
		Execute(context.Background(), 1, true)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusOK, res.Status)
	assert.True(t, res.DryRun)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Updated, "dry run reports what it would have applied")
	assert.Empty(t, appliers.prices)
	assert.Empty(t, appliers.stocks)
	assert.Empty(t, store.snapshots)
}

type blockingDiffer struct {
	started chan struct{}
	release chan struct{}
	result  *models.DiffResult
}

func (d *blockingDiffer) Compute(context.Context, *models.Source, diff.Options) (*models.DiffResult, error) {
	close(d.started)
	<-d.release
	return d.result, nil
}

func TestExecuteSerializesRunsAcrossSources(t *testing.T) {
	// The lock is global: while a run for source 1 is in flight, a run for
	// source 2 is refused.
	sources := &fakeSources{src: activeSource()}
	differ := &blockingDiffer{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  &models.DiffResult{},
	}
	locker := &fakeLocker{}
	svc := newRunService(sources, differ, passGuard{}, &fakeAppliers{}, &fakeState{}, newMemStore(), locker)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Execute(context.Background(), 1, false)
		done <- err
	}()
	<-differ.started

	_, err := svc.Execute(context.Background(), 2, false)
	assert.ErrorIs(t, err, ErrLocked)

	close(differ.release)
	require.NoError(t, <-done)
}

func TestExecuteHeartbeatPersistsCounters(t *testing.T) {
	items := make([]models.ChangeSetItem, 0, heartbeatEvery)
	for i := 0; i < heartbeatEvery; i++ {
		items = append(items, changeItem(7, 12.50, 5))
	}
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{Total: heartbeatEvery, Items: items}}
	state := &fakeState{states: map[int]models.CurrentState{7: {Price: 10, Quantity: 3, Active: 1}}}
	store := newMemStore()

	_, err := newRunService(sources, differ, passGuard{}, &fakeAppliers{}, state, store, &fakeLocker{}).
		Execute(context.Background(), 1, false)
	require.NoError(t, err)

	require.Len(t, store.beats, 1)
	assert.Equal(t, heartbeatEvery, store.beats[0].Updated)
	assert.Equal(t, heartbeatEvery, store.beats[0].Total)
}

func TestExecuteGuardRejectionSkips(t *testing.T) {
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{Items: []models.ChangeSetItem{changeItem(7, 12.50, 5)}}}
	appliers := &fakeAppliers{}
	state := &fakeState{states: map[int]models.CurrentState{7: {Price: 10, Quantity: 3, Active: 1}}}
	store := newMemStore()

	res, err := newRunService(sources, differ, rejectGuard{reason: "not_found"}, appliers, state, store, &fakeLocker{}).
		Execute(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, appliers.prices)

	require.NotEmpty(t, store.logs)
	assert.Equal(t, models.ActionSkip, store.logs[0].Action)
	assert.Equal(t, "guard: not_found", store.logs[0].Message)
}

func TestExecuteRechecksDeltaAgainstSnapshot(t *testing.T) {
	// diff proposed 12.50 against price 10, but by apply time the catalog
	// moved to 5.00: +150% exceeds the 50% limit, so only qty is written.
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{Items: []models.ChangeSetItem{changeItem(7, 12.50, 5)}}}
	appliers := &fakeAppliers{}
	state := &fakeState{states: map[int]models.CurrentState{7: {Price: 5.00, Quantity: 3, Active: 1}}}
	store := newMemStore()

	res, err := newRunService(sources, differ, passGuard{}, appliers, state, store, &fakeLocker{}).
		Execute(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Empty(t, appliers.prices)
	require.Len(t, appliers.stocks, 1)
	assert.Equal(t, 1, res.Updated)
}

func TestExecuteUnreadableStateCountsError(t *testing.T) {
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{Items: []models.ChangeSetItem{changeItem(7, 12.50, 5)}}}
	appliers := &fakeAppliers{}
	store := newMemStore()

	res, err := newRunService(sources, differ, passGuard{}, appliers, &fakeState{states: map[int]models.CurrentState{}}, store, &fakeLocker{}).
		Execute(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Errors)
	assert.Empty(t, appliers.prices)
	assert.Empty(t, store.snapshots)
}

func TestExecuteWriteFailureCountsError(t *testing.T) {
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{result: &models.DiffResult{Items: []models.ChangeSetItem{changeItem(7, 12.50, 5)}}}
	appliers := &fakeAppliers{fail: true}
	state := &fakeState{states: map[int]models.CurrentState{7: {Price: 10, Quantity: 3, Active: 1}}}
	store := newMemStore()

	res, err := newRunService(sources, differ, passGuard{}, appliers, state, store, &fakeLocker{}).
		Execute(context.Background(), 1, false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, models.RunStatusOK, res.Status)
}

func TestExecuteDiffFailureFinishesWithError(t *testing.T) {
	sources := &fakeSources{src: activeSource()}
	differ := &fakeDiffer{err: fmt.Errorf("feed unreachable")}
	store := newMemStore()

	_, err := newRunService(sources, differ, passGuard{}, &fakeAppliers{}, &fakeState{}, store, &fakeLocker{}).
		Execute(context.Background(), 1, false)
	require.Error(t, err)
	assert.Equal(t, models.RunStatusError, store.finished[1])
}

func TestExecuteRefusesDisabledSource(t *testing.T) {
	src := activeSource()
	src.Active = false
	store := newMemStore()

	_, err := newRunService(&fakeSources{src: src}, &fakeDiffer{}, passGuard{}, &fakeAppliers{}, &fakeState{}, store, &fakeLocker{}).
		Execute(context.Background(), 1, false)
	require.Error(t, err)
	assert.Equal(t, 0, store.nextID)
}

func TestExportLogsCSV(t *testing.T) {
	store := newMemStore()
	pid := 7
	store.logs = append(store.logs, models.LogEntry{
		ID: 1, RunID: 3, ProductID: &pid, Action: models.ActionPrice,
		Message: "price: 10.00→12.50 (Δ+25.0%)", OldPrice: f64(10), NewPrice: f64(12.5),
		CreatedAt: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
	})
	svc := newRunService(&fakeSources{src: activeSource()}, &fakeDiffer{}, passGuard{}, &fakeAppliers{}, &fakeState{}, store, &fakeLocker{})

	var buf bytes.Buffer
	require.NoError(t, svc.ExportLogsCSV(3, &buf))

	out := buf.String()
	assert.Contains(t, out, "id,run,product,action,old_price,new_price,old_qty,new_qty,reason,details,timestamp")
	assert.Contains(t, out, "1,3,7,price,10.00,12.50,,,")
	assert.Contains(t, out, "2026-08-27T12:00:00Z")
}
