package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the pipeline from concrete storage backends
// (SQLite, Postgres). The external query API reads through the same port;
// it never mutates pipeline-owned rows.

// TickStore appends and reads raw ticks.
type TickStore interface {
	// AppendTicks bulk-inserts a batch of ticks in one transaction.
	AppendTicks(ctx context.Context, ticks []Tick) error

	// RecentTicks returns the last n ticks for a symbol in ascending
	// timestamp order.
	RecentTicks(ctx context.Context, symbol string, n int) ([]Tick, error)
}

// BarStore upserts and reads resampled bars.
type BarStore interface {
	// UpsertBars writes bars idempotently on (symbol, timeframe, start_time):
	// an existing row with the same key is replaced.
	UpsertBars(ctx context.Context, bars []Bar) error

	// RecentBars returns the last n bars in ascending start_time order.
	RecentBars(ctx context.Context, symbol string, tf Timeframe, n int) ([]Bar, error)
}

// SnapshotStore appends and reads pair-analytics snapshots.
type SnapshotStore interface {
	AppendSnapshot(ctx context.Context, snap Snapshot) error

	// RecentSnapshots returns the last n snapshots for a pair in ascending
	// computed_at order.
	RecentSnapshots(ctx context.Context, symbolX, symbolY string, tf Timeframe, n int) ([]Snapshot, error)
}

// AlertStore manages the alert lifecycle: create, list active,
// deactivate, delete.
type AlertStore interface {
	CreateAlert(ctx context.Context, metric, condition string, threshold float64) (Alert, error)
	ActiveAlerts(ctx context.Context) ([]Alert, error)
	DeactivateAlert(ctx context.Context, id int64) error
	DeleteAlert(ctx context.Context, id int64) error
}

// Store is the full persistence port consumed by the pipeline.
type Store interface {
	TickStore
	BarStore
	SnapshotStore
	AlertStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
