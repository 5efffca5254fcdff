package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"supplierhub_api/internal/supplierhub/business/models"
)

// lockClassID namespaces this application's advisory locks inside the
// shared postgres lock space; lockKeyID is the single run-lock key, so
// at most one run executes at a time regardless of source.
const (
	lockClassID = 7201
	lockKeyID   = 1
)

type RunRepository struct {
	db *sql.DB

	mu       sync.Mutex
	lockConn *sql.Conn // advisory locks are session-scoped
}

func NewRunRepository(db *sql.DB) *RunRepository {
	log.Println("Successfully created supplierhub run repository")
	return &RunRepository{db: db}
}

func (r *RunRepository) StartRun(sourceID int, dryRun bool, checksum string) (int, error) {
	query := `
				INSERT INTO supplierhub.run (source_id, dry_run, status, checksum, started_at, heartbeat_at)
				VALUES ($1, $2, $3, $4, now(), now())
				RETURNING id;
			 `
	var id int
	err := r.db.QueryRow(query, sourceID, dryRun, models.RunStatusRunning, checksum).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to start run for source %d: %w", sourceID, err)
	}
	return id, nil
}

func (r *RunRepository) FinishRun(runID int, status models.RunStatus, stats models.RunStats) error {
	query := `
				UPDATE supplierhub.run
				SET status = $2, total = $3, updated = $4, skipped = $5, errors = $6, finished_at = now()
				WHERE id = $1;
			 `
	_, err := r.db.Exec(query, runID, status, stats.Total, stats.Updated, stats.Skipped, stats.Errors)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	return nil
}

// Heartbeat bumps the liveness timestamp and persists the running
// counters so progress is visible on the run row mid-run.
func (r *RunRepository) Heartbeat(runID int, stats models.RunStats) error {
	query := `
				UPDATE supplierhub.run
				SET heartbeat_at = now(), total = $2, updated = $3, skipped = $4, errors = $5
				WHERE id = $1;
			 `
	_, err := r.db.Exec(query, runID, stats.Total, stats.Updated, stats.Skipped, stats.Errors)
	if err != nil {
		return fmt.Errorf("failed to heartbeat run %d: %w", runID, err)
	}
	return nil
}

func (r *RunRepository) GetRun(runID int) (*models.Run, error) {
	query := `
				SELECT id, source_id, dry_run, status, total, updated, skipped, errors, checksum, started_at, finished_at
				FROM supplierhub.run
				WHERE id = $1;
			 `
	var (
		run        models.Run
		finishedAt sql.NullTime
	)
	err := r.db.QueryRow(query, runID).Scan(
		&run.ID, &run.SourceID, &run.DryRun, &run.Status,
		&run.Total, &run.Updated, &run.Skipped, &run.Errors,
		&run.Checksum, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

func (r *RunRepository) Log(entry models.LogEntry) error {
	query := `
				INSERT INTO supplierhub.log (run_id, product_id, action, message, old_price, new_price, old_qty, new_qty, details, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now());
			 `
	_, err := r.db.Exec(query,
		entry.RunID, entry.ProductID, entry.Action, entry.Message,
		entry.OldPrice, entry.NewPrice, entry.OldQty, entry.NewQty, entry.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to append log for run %d: %w", entry.RunID, err)
	}
	return nil
}

func (r *RunRepository) LogsByRun(runID int) ([]models.LogEntry, error) {
	query := `
				SELECT id, run_id, product_id, action, message, old_price, new_price, old_qty, new_qty, details, created_at
				FROM supplierhub.log
				WHERE run_id = $1
				ORDER BY id;
			 `
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs for run %d: %w", runID, err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		err := rows.Scan(
			&e.ID, &e.RunID, &e.ProductID, &e.Action, &e.Message,
			&e.OldPrice, &e.NewPrice, &e.OldQty, &e.NewQty, &e.Details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *RunRepository) Snapshot(snap models.Snapshot) (int64, error) {
	query := `
				INSERT INTO supplierhub.snapshot (run_id, product_id, attribute_id, shop_id, price, quantity, active, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now())
				RETURNING id;
			 `
	var id int64
	err := r.db.QueryRow(query,
		snap.RunID, snap.ProductID, snap.AttributeID, snap.ShopID, snap.Price, snap.Quantity, snap.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot product %d in run %d: %w", snap.ProductID, snap.RunID, err)
	}
	return id, nil
}

func (r *RunRepository) SnapshotsByRunReversed(runID int) ([]models.Snapshot, error) {
	query := `
				SELECT id, run_id, product_id, attribute_id, shop_id, price, quantity, active, created_at
				FROM supplierhub.snapshot
				WHERE run_id = $1
				ORDER BY id DESC;
			 `
	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for run %d: %w", runID, err)
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		err := rows.Scan(&s.ID, &s.RunID, &s.ProductID, &s.AttributeID, &s.ShopID, &s.Price, &s.Quantity, &s.Active, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// TryLock takes the single run advisory lock without waiting; it is
// process-wide, not per source. The lock lives on a dedicated
// connection so pool recycling cannot release it mid-run.
func (r *RunRepository) TryLock(ctx context.Context) (bool, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get lock connection: %w", err)
	}

	var locked bool
	err = conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1, $2);`, lockClassID, lockKeyID).Scan(&locked)
	if err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		conn.Close()
		return false, nil
	}

	r.mu.Lock()
	r.lockConn = conn
	r.mu.Unlock()
	return true, nil
}

func (r *RunRepository) Unlock(ctx context.Context) error {
	r.mu.Lock()
	conn := r.lockConn
	r.lockConn = nil
	r.mu.Unlock()
	if conn == nil {
		return nil
	}
	defer conn.Close()

	_, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1, $2);`, lockClassID, lockKeyID)
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}
