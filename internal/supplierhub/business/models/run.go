package models

import "time"

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusOK      RunStatus = "ok"
	RunStatusError   RunStatus = "error"
	RunStatusAborted RunStatus = "aborted"
)

// Run is one execution of the feed pipeline. Status moves one-way from
// running to a terminal state, set once at finish.
type Run struct {
	ID         int
	SourceID   int
	DryRun     bool
	Status     RunStatus
	Total      int
	Updated    int
	Skipped    int
	Errors     int
	Checksum   string
	StartedAt  time.Time
	FinishedAt *time.Time
}

type RunStats struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Log entry action kinds.
const (
	ActionPrice    = "price"
	ActionStock    = "stock"
	ActionSkip     = "skip"
	ActionError    = "error"
	ActionNoChange = "nochange"
	ActionRollback = "rollback"
)

// LogEntry is an immutable append-only record of one decision taken
// during a run. Never updated or deleted; rollbacks append new entries.
type LogEntry struct {
	ID        int64
	RunID     int
	ProductID *int
	Action    string
	Message   string
	OldPrice  *float64
	NewPrice  *float64
	OldQty    *int
	NewQty    *int
	Details   string
	CreatedAt time.Time
}

// Snapshot is the immutable pre-change state of one product within a
// run, captured strictly before any mutation; sole input to rollback.
type Snapshot struct {
	ID          int64
	RunID       int
	ProductID   int
	AttributeID int
	ShopID      int
	Price       *float64
	Quantity    *int
	Active      *int
	CreatedAt   time.Time
}
