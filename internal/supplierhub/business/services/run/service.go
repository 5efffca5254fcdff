package run

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/internal/supplierhub/business/services/diff"
	"supplierhub_api/internal/supplierhub/business/services/guard"
	"supplierhub_api/metrics"
	"supplierhub_api/pkg/logger"
)

// ErrLocked is returned when another run already holds the run lock.
var ErrLocked = errors.New("another run is already in progress")

const (
	// batchSize bounds how many change-set items are applied between
	// progress log lines.
	batchSize = 300
	// heartbeatEvery is the item interval for run heartbeats.
	heartbeatEvery = 50
)

// Differ computes the change-set without writing anything.
type Differ interface {
	Compute(ctx context.Context, src *models.Source, opts diff.Options) (*models.DiffResult, error)
}

// Guard re-validates a proposed change against live state right before
// the write.
type Guard interface {
	ValidateForUpdate(productID int, changes models.Changes, src *models.Source) guard.Decision
}

// PriceApplier writes one product's price transactionally.
type PriceApplier interface {
	UpdatePrice(ctx context.Context, productID, attributeID int, upd models.PriceUpdate) error
}

// StockApplier writes one product's quantity/active flag transactionally.
type StockApplier interface {
	UpdateStock(ctx context.Context, productID, attributeID int, upd models.StockUpdate) error
}

// StateReader reads the catalog state captured into snapshots.
type StateReader interface {
	CurrentState(ids *models.ResolvedProduct, shopID int) (*models.CurrentState, error)
}

// RunStore persists runs, their append-only logs and pre-change snapshots.
type RunStore interface {
	StartRun(sourceID int, dryRun bool, checksum string) (int, error)
	FinishRun(runID int, status models.RunStatus, stats models.RunStats) error
	Heartbeat(runID int, stats models.RunStats) error
	Log(entry models.LogEntry) error
	Snapshot(snap models.Snapshot) (int64, error)
	LogsByRun(runID int) ([]models.LogEntry, error)
}

// Locker serializes runs process-wide: one lock, one active run,
// whatever the source.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// SourceStore loads source configurations.
type SourceStore interface {
	GetSource(id int) (*models.Source, error)
	TouchLastRun(id int, at time.Time) error
}

// Service executes the full guarded pipeline for one source:
// diff → snapshot → guard → apply, under a per-source lock, with every
// decision logged.
type Service struct {
	sources SourceStore
	differ  Differ
	guard   Guard
	prices  PriceApplier
	stocks  StockApplier
	state   StateReader
	store   RunStore
	locker  Locker
	log     logger.Logger
}

func NewService(sources SourceStore, differ Differ, g Guard, prices PriceApplier, stocks StockApplier, state StateReader, store RunStore, locker Locker, log logger.Logger) *Service {
	return &Service{
		sources: sources,
		differ:  differ,
		guard:   g,
		prices:  prices,
		stocks:  stocks,
		state:   state,
		store:   store,
		locker:  locker,
		log:     log,
	}
}

// Execute runs the pipeline for one source. With dryRun the diff is
// computed and a run row recorded, but nothing is written to the
// catalog and no snapshots are taken.
func (s *Service) Execute(ctx context.Context, sourceID int, dryRun bool) (*models.Run, error) {
	src, err := s.sources.GetSource(sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source %d: %w", sourceID, err)
	}
	if !src.Active {
		return nil, fmt.Errorf("source %d is disabled", sourceID)
	}

	locked, err := s.locker.TryLock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer func() {
		if err := s.locker.Unlock(ctx); err != nil {
			s.log.Log("release run lock failed: %v", err)
		}
	}()

	started := time.Now()
	checksum := uuid.NewString()
	runID, err := s.store.StartRun(sourceID, dryRun, checksum)
	if err != nil {
		return nil, fmt.Errorf("start run for source %d: %w", sourceID, err)
	}
	s.log.Log("run %d started for source %d (dry=%v)", runID, sourceID, dryRun)

	result, err := s.differ.Compute(ctx, src, diff.Options{MaxDeltaGuard: true})
	if err != nil {
		s.finish(runID, models.RunStatusError, models.RunStats{}, started)
		s.appendLog(models.LogEntry{RunID: runID, Action: models.ActionError, Message: "diff failed", Details: err.Error()})
		return nil, err
	}

	stats := models.RunStats{
		Total:   result.Total,
		Skipped: result.Skipped,
		Errors:  result.Errors,
	}

	if dryRun {
		// A dry run reports what it would have applied.
		stats.Updated = result.Affected
		s.finish(runID, models.RunStatusOK, stats, started)
		s.touchSource(sourceID)
		return s.runRow(runID, sourceID, dryRun, models.RunStatusOK, stats, checksum, started), nil
	}

	for i, item := range result.Items {
		if err := ctx.Err(); err != nil {
			s.finish(runID, models.RunStatusAborted, stats, started)
			return nil, err
		}
		s.applyItem(ctx, runID, src, item, &stats)

		if (i+1)%heartbeatEvery == 0 {
			if err := s.store.Heartbeat(runID, stats); err != nil {
				s.log.Log("run %d heartbeat failed: %v", runID, err)
			}
		}
		if (i+1)%batchSize == 0 {
			s.log.Log("run %d progress: %d/%d applied", runID, i+1, len(result.Items))
		}
	}

	status := models.RunStatusOK
	s.finish(runID, status, stats, started)
	s.touchSource(sourceID)
	s.log.Log("run %d finished: total=%d updated=%d skipped=%d errors=%d",
		runID, stats.Total, stats.Updated, stats.Skipped, stats.Errors)
	return s.runRow(runID, sourceID, dryRun, status, stats, checksum, started), nil
}

// applyItem processes one change-set item: snapshot first, then guard,
// then a delta re-check against the snapshot, then the writes. Failures
// count as errors and never abort the run.
func (s *Service) applyItem(ctx context.Context, runID int, src *models.Source, item models.ChangeSetItem, stats *models.RunStats) {
	cur, err := s.state.CurrentState(&models.ResolvedProduct{ProductID: item.ProductID, AttributeID: item.AttributeID}, item.ShopID)
	if err != nil || cur == nil {
		stats.Errors++
		s.appendLog(models.LogEntry{
			RunID: runID, ProductID: &item.ProductID, Action: models.ActionError,
			Message: "snapshot read failed", Details: errDetails(err),
		})
		return
	}

	snap := models.Snapshot{
		RunID:       runID,
		ProductID:   item.ProductID,
		AttributeID: item.AttributeID,
		ShopID:      item.ShopID,
		Price:       f64ptr(cur.Price),
		Quantity:    intptr(cur.Quantity),
		Active:      intptr(cur.Active),
	}
	if _, err := s.store.Snapshot(snap); err != nil {
		stats.Errors++
		s.appendLog(models.LogEntry{
			RunID: runID, ProductID: &item.ProductID, Action: models.ActionError,
			Message: "snapshot write failed", Details: err.Error(),
		})
		return
	}

	if dec := s.guard.ValidateForUpdate(item.ProductID, item.Changes, src); !dec.OK {
		stats.Skipped++
		s.appendLog(models.LogEntry{
			RunID: runID, ProductID: &item.ProductID, Action: models.ActionSkip,
			Message: "guard: " + dec.Reason, Details: dec.Details,
		})
		return
	}

	changes := item.Changes

	// The catalog may have moved since the diff; re-check the price
	// delta against the snapshot just taken.
	if changes.Price != nil && cur.Price > 0 && src.MaxDeltaPct > 0 {
		delta := math.Abs((*changes.Price - cur.Price) / cur.Price * 100.0)
		if delta > src.MaxDeltaPct {
			changes.Price = nil
			s.appendLog(models.LogEntry{
				RunID: runID, ProductID: &item.ProductID, Action: models.ActionSkip,
				Message: "price withheld: delta exceeds limit",
				Details: fmt.Sprintf("Δ=%.1f%% > %.1f%%", delta, src.MaxDeltaPct),
			})
		}
	}
	if changes.Empty() {
		stats.Skipped++
		return
	}

	updated := false

	// Price strictly before stock, so a mid-item failure never leaves a
	// new quantity priced at the old value.
	if changes.Price != nil {
		err := s.prices.UpdatePrice(ctx, item.ProductID, item.AttributeID, models.PriceUpdate{
			Price:          *changes.Price,
			ShopID:         item.ShopID,
			Mode:           src.PriceUpdateMode,
			TaxRuleGroupID: src.TaxRuleGroupID,
		})
		if err != nil {
			stats.Errors++
			s.appendLog(models.LogEntry{
				RunID: runID, ProductID: &item.ProductID, Action: models.ActionError,
				Message: "price update failed", Details: err.Error(),
				OldPrice: snap.Price, NewPrice: changes.Price,
			})
			return
		}
		updated = true
		s.appendLog(models.LogEntry{
			RunID: runID, ProductID: &item.ProductID, Action: models.ActionPrice,
			Message: item.Reason, OldPrice: snap.Price, NewPrice: changes.Price,
		})
	}

	if changes.Quantity != nil || changes.Active != nil {
		err := s.stocks.UpdateStock(ctx, item.ProductID, item.AttributeID, models.StockUpdate{
			Quantity:      changes.Quantity,
			Active:        changes.Active,
			ShopID:        item.ShopID,
			ZeroQtyPolicy: src.ZeroQtyPolicy,
		})
		if err != nil {
			stats.Errors++
			s.appendLog(models.LogEntry{
				RunID: runID, ProductID: &item.ProductID, Action: models.ActionError,
				Message: "stock update failed", Details: err.Error(),
				OldQty: snap.Quantity, NewQty: changes.Quantity,
			})
			return
		}
		updated = true
		s.appendLog(models.LogEntry{
			RunID: runID, ProductID: &item.ProductID, Action: models.ActionStock,
			Message: item.Reason, OldQty: snap.Quantity, NewQty: changes.Quantity,
		})
	}

	if updated {
		stats.Updated++
	}
}

func (s *Service) finish(runID int, status models.RunStatus, stats models.RunStats, started time.Time) {
	if err := s.store.FinishRun(runID, status, stats); err != nil {
		s.log.Log("run %d finish failed: %v", runID, err)
	}
	metrics.RecordRun(string(status), time.Since(started))
}

func (s *Service) touchSource(sourceID int) {
	if err := s.sources.TouchLastRun(sourceID, time.Now()); err != nil {
		s.log.Log("touch last run for source %d failed: %v", sourceID, err)
	}
}

func (s *Service) appendLog(entry models.LogEntry) {
	if err := s.store.Log(entry); err != nil {
		s.log.Log("run %d log append failed: %v", entry.RunID, err)
	}
}

func (s *Service) runRow(id, sourceID int, dryRun bool, status models.RunStatus, stats models.RunStats, checksum string, started time.Time) *models.Run {
	now := time.Now()
	return &models.Run{
		ID:         id,
		SourceID:   sourceID,
		DryRun:     dryRun,
		Status:     status,
		Total:      stats.Total,
		Updated:    stats.Updated,
		Skipped:    stats.Skipped,
		Errors:     stats.Errors,
		Checksum:   checksum,
		StartedAt:  started,
		FinishedAt: &now,
	}
}

// ExportLogsCSV streams a run's log entries as CSV.
func (s *Service) ExportLogsCSV(runID int, w io.Writer) error {
	entries, err := s.store.LogsByRun(runID)
	if err != nil {
		return fmt.Errorf("load logs for run %d: %w", runID, err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "run", "product", "action", "old_price", "new_price", "old_qty", "new_qty", "reason", "details", "timestamp"}); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.ID, 10),
			strconv.Itoa(e.RunID),
			fmtIntPtr(e.ProductID),
			e.Action,
			fmtF64Ptr(e.OldPrice),
			fmtF64Ptr(e.NewPrice),
			fmtIntPtr(e.OldQty),
			fmtIntPtr(e.NewQty),
			e.Message,
			e.Details,
			e.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func fmtIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtF64Ptr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func errDetails(err error) string {
	if err == nil {
		return "state unreadable"
	}
	return err.Error()
}

func f64ptr(v float64) *float64 { return &v }
func intptr(v int) *int         { return &v }
