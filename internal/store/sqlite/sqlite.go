// Package sqlite implements the persistence port on an embedded SQLite
// database. This is the default backend: zero external services, WAL
// mode for concurrent reads while the pipeline writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pairstream/internal/model"
)

// Store is a SQLite-backed model.Store. All writes go through a single
// connection; SQLite serializes them anyway.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and parent directory) if needed and
// applies the schema. The path may carry a "sqlite://" prefix.
func Open(path string) (*Store, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ticks (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      INTEGER NOT NULL,
			symbol  TEXT    NOT NULL,
			price   REAL    NOT NULL,
			qty     REAL    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ticks_symbol_ts ON ticks (symbol, ts);

		CREATE TABLE IF NOT EXISTS bars (
			symbol     TEXT    NOT NULL,
			timeframe  TEXT    NOT NULL,
			start_time INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			PRIMARY KEY (symbol, timeframe, start_time)
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_x     TEXT    NOT NULL,
			symbol_y     TEXT    NOT NULL,
			timeframe    TEXT    NOT NULL,
			hedge_ratio  REAL,
			spread       REAL,
			z_score      REAL,
			rolling_corr REAL,
			adf_stat     REAL,
			p_value      REAL,
			computed_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_pair ON snapshots (symbol_x, symbol_y, timeframe, computed_at);

		CREATE TABLE IF NOT EXISTS alerts (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			metric     TEXT    NOT NULL,
			condition  TEXT    NOT NULL,
			threshold  REAL    NOT NULL,
			active     INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL
		);
	`)
	return err
}

// AppendTicks inserts a batch of ticks in one transaction.
func (s *Store) AppendTicks(ctx context.Context, ticks []model.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ticks (ts, symbol, price, qty) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, t := range ticks {
		if _, err := stmt.ExecContext(ctx, t.Timestamp, t.Symbol, t.Price, t.Quantity); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecentTicks returns the last n ticks for a symbol, ascending. Insertion
// order breaks timestamp ties.
func (s *Store) RecentTicks(ctx context.Context, symbol string, n int) ([]model.Tick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, symbol, price, qty FROM (
			SELECT id, ts, symbol, price, qty FROM ticks
			WHERE symbol = ?
			ORDER BY ts DESC, id DESC
			LIMIT ?
		) ORDER BY ts ASC, id ASC
	`, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		if err := rows.Scan(&t.Timestamp, &t.Symbol, &t.Price, &t.Quantity); err != nil {
			return nil, fmt.Errorf("sqlite: scan tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// UpsertBars writes bars, replacing any existing row with the same
// (symbol, timeframe, start_time).
func (s *Store) UpsertBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, timeframe, start_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, string(b.Timeframe), b.StartTime,
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecentBars returns the last n bars, ascending by start time.
func (s *Store) RecentBars(ctx context.Context, symbol string, tf model.Timeframe, n int) ([]model.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, timeframe, start_time, open, high, low, close, volume FROM (
			SELECT * FROM bars
			WHERE symbol = ? AND timeframe = ?
			ORDER BY start_time DESC
			LIMIT ?
		) ORDER BY start_time ASC
	`, symbol, string(tf), n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tfs string
		if err := rows.Scan(&b.Symbol, &tfs, &b.StartTime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("sqlite: scan bar: %w", err)
		}
		b.Timeframe = model.Timeframe(tfs)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// AppendSnapshot inserts one analytics snapshot.
func (s *Store) AppendSnapshot(ctx context.Context, snap model.Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (symbol_x, symbol_y, timeframe, hedge_ratio, spread, z_score, rolling_corr, adf_stat, p_value, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.SymbolX, snap.SymbolY, string(snap.Timeframe),
		snap.HedgeRatio, snap.Spread, snap.ZScore, snap.RollingCorr,
		snap.ADFStat, snap.PValue, snap.ComputedAt)
	if err != nil {
		return fmt.Errorf("sqlite: insert snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns the last n snapshots for a pair, ascending.
func (s *Store) RecentSnapshots(ctx context.Context, symbolX, symbolY string, tf model.Timeframe, n int) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol_x, symbol_y, timeframe, hedge_ratio, spread, z_score, rolling_corr, adf_stat, p_value, computed_at FROM (
			SELECT * FROM snapshots
			WHERE symbol_x = ? AND symbol_y = ? AND timeframe = ?
			ORDER BY computed_at DESC, id DESC
			LIMIT ?
		) ORDER BY computed_at ASC, id ASC
	`, symbolX, symbolY, string(tf), n)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var sn model.Snapshot
		var tfs string
		if err := rows.Scan(&sn.ID, &sn.SymbolX, &sn.SymbolY, &tfs,
			&sn.HedgeRatio, &sn.Spread, &sn.ZScore, &sn.RollingCorr,
			&sn.ADFStat, &sn.PValue, &sn.ComputedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan snapshot: %w", err)
		}
		sn.Timeframe = model.Timeframe(tfs)
		snaps = append(snaps, sn)
	}
	return snaps, rows.Err()
}

// CreateAlert inserts an active alert and returns it with its ID.
func (s *Store) CreateAlert(ctx context.Context, metric, condition string, threshold float64) (model.Alert, error) {
	if err := model.ValidateCondition(condition); err != nil {
		return model.Alert{}, err
	}
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (metric, condition, threshold, active, created_at)
		VALUES (?, ?, ?, 1, ?)
	`, metric, condition, threshold, now)
	if err != nil {
		return model.Alert{}, fmt.Errorf("sqlite: insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Alert{}, err
	}
	return model.Alert{
		ID: id, Metric: metric, Condition: condition,
		Threshold: threshold, Active: true, CreatedAt: now,
	}, nil
}

// ActiveAlerts lists alerts with active = 1.
func (s *Store) ActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, metric, condition, threshold, active, created_at
		FROM alerts WHERE active = 1 ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.Metric, &a.Condition, &a.Threshold, &a.Active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// DeactivateAlert flips an alert inactive. Missing IDs are not an error.
func (s *Store) DeactivateAlert(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET active = 0 WHERE id = ?`, id)
	return err
}

// DeleteAlert removes an alert.
func (s *Store) DeleteAlert(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	return err
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
