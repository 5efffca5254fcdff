package rollback

import (
	"context"
	"fmt"

	"supplierhub_api/internal/supplierhub/business/models"
	"supplierhub_api/pkg/logger"
)

// SnapshotStore reads a run's pre-change snapshots in reverse capture
// order (last captured first).
type SnapshotStore interface {
	SnapshotsByRunReversed(runID int) ([]models.Snapshot, error)
}

// CatalogRestorer writes one snapshot back to the catalog in a single
// transaction.
type CatalogRestorer interface {
	RestoreSnapshot(ctx context.Context, snap models.Snapshot) error
}

// LogStore appends rollback log entries to the original run.
type LogStore interface {
	Log(entry models.LogEntry) error
}

// Service restores catalog state from a run's snapshots. Restoring a
// snapshot writes absolute values, so replaying a rollback is
// idempotent.
type Service struct {
	snapshots SnapshotStore
	catalog   CatalogRestorer
	logs      LogStore
	log       logger.Logger
}

func NewService(snapshots SnapshotStore, catalog CatalogRestorer, logs LogStore, log logger.Logger) *Service {
	return &Service{snapshots: snapshots, catalog: catalog, logs: logs, log: log}
}

// Rollback restores every snapshot of the run, newest first, one
// transaction per product. Per-product failures are logged and do not
// stop the remaining restores. Returns the number of products restored.
func (s *Service) Rollback(ctx context.Context, runID int) (int, error) {
	snaps, err := s.snapshots.SnapshotsByRunReversed(runID)
	if err != nil {
		return 0, fmt.Errorf("load snapshots for run %d: %w", runID, err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	restored := 0
	for _, snap := range snaps {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		if err := s.catalog.RestoreSnapshot(ctx, snap); err != nil {
			s.log.Log("rollback run %d: restore product %d failed: %v", runID, snap.ProductID, err)
			s.appendLog(models.LogEntry{
				RunID: runID, ProductID: &snap.ProductID, Action: models.ActionError,
				Message: "rollback failed", Details: err.Error(),
			})
			continue
		}
		restored++
		s.appendLog(models.LogEntry{
			RunID: runID, ProductID: &snap.ProductID, Action: models.ActionRollback,
			Message:  "restored from snapshot",
			NewPrice: snap.Price, NewQty: snap.Quantity,
		})
	}

	s.log.Log("rollback run %d: restored %d/%d products", runID, restored, len(snaps))
	return restored, nil
}

func (s *Service) appendLog(entry models.LogEntry) {
	if err := s.logs.Log(entry); err != nil {
		s.log.Log("run %d rollback log append failed: %v", entry.RunID, err)
	}
}
