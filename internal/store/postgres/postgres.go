// Package postgres implements the persistence port on PostgreSQL via
// pgx. Suited to deployments where several readers share one database;
// the schema mirrors the SQLite backend.
package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairstream/internal/model"
)

// Store is a Postgres-backed model.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pool to the given DSN (postgres://...) and applies
// the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if err := createSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: schema: %w", err)
	}

	log.Printf("[postgres] connected, pool max=%d", cfg.MaxConns)
	return &Store{pool: pool}, nil
}

func createSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ticks (
			id      BIGSERIAL PRIMARY KEY,
			ts      BIGINT           NOT NULL,
			symbol  TEXT             NOT NULL,
			price   DOUBLE PRECISION NOT NULL,
			qty     DOUBLE PRECISION NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ticks_symbol_ts ON ticks (symbol, ts);

		CREATE TABLE IF NOT EXISTS bars (
			symbol     TEXT             NOT NULL,
			timeframe  TEXT             NOT NULL,
			start_time BIGINT           NOT NULL,
			open       DOUBLE PRECISION NOT NULL,
			high       DOUBLE PRECISION NOT NULL,
			low        DOUBLE PRECISION NOT NULL,
			close      DOUBLE PRECISION NOT NULL,
			volume     DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (symbol, timeframe, start_time)
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			id           BIGSERIAL PRIMARY KEY,
			symbol_x     TEXT   NOT NULL,
			symbol_y     TEXT   NOT NULL,
			timeframe    TEXT   NOT NULL,
			hedge_ratio  DOUBLE PRECISION,
			spread       DOUBLE PRECISION,
			z_score      DOUBLE PRECISION,
			rolling_corr DOUBLE PRECISION,
			adf_stat     DOUBLE PRECISION,
			p_value      DOUBLE PRECISION,
			computed_at  BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_pair ON snapshots (symbol_x, symbol_y, timeframe, computed_at);

		CREATE TABLE IF NOT EXISTS alerts (
			id         BIGSERIAL PRIMARY KEY,
			metric     TEXT             NOT NULL,
			condition  TEXT             NOT NULL,
			threshold  DOUBLE PRECISION NOT NULL,
			active     BOOLEAN          NOT NULL DEFAULT TRUE,
			created_at BIGINT           NOT NULL
		);
	`)
	return err
}

// AppendTicks bulk-inserts ticks with a single batched round trip.
func (s *Store) AppendTicks(ctx context.Context, ticks []model.Tick) error {
	if len(ticks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range ticks {
		batch.Queue(
			`INSERT INTO ticks (ts, symbol, price, qty) VALUES ($1, $2, $3, $4)`,
			t.Timestamp, t.Symbol, t.Price, t.Quantity)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range ticks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert tick: %w", err)
		}
	}
	return nil
}

// RecentTicks returns the last n ticks for a symbol, ascending.
func (s *Store) RecentTicks(ctx context.Context, symbol string, n int) ([]model.Tick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, symbol, price, qty FROM (
			SELECT id, ts, symbol, price, qty FROM ticks
			WHERE symbol = $1
			ORDER BY ts DESC, id DESC
			LIMIT $2
		) sub ORDER BY ts ASC, id ASC
	`, symbol, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		if err := rows.Scan(&t.Timestamp, &t.Symbol, &t.Price, &t.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// UpsertBars writes bars idempotently on the bar key.
func (s *Store) UpsertBars(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(`
			INSERT INTO bars (symbol, timeframe, start_time, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (symbol, timeframe, start_time) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high,
				low = EXCLUDED.low, close = EXCLUDED.close,
				volume = EXCLUDED.volume
		`, b.Symbol, string(b.Timeframe), b.StartTime, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert bar: %w", err)
		}
	}
	return nil
}

// RecentBars returns the last n bars, ascending by start time.
func (s *Store) RecentBars(ctx context.Context, symbol string, tf model.Timeframe, n int) ([]model.Bar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, timeframe, start_time, open, high, low, close, volume FROM (
			SELECT * FROM bars
			WHERE symbol = $1 AND timeframe = $2
			ORDER BY start_time DESC
			LIMIT $3
		) sub ORDER BY start_time ASC
	`, symbol, string(tf), n)
	if err != nil {
		return nil, fmt.Errorf("postgres: query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tfs string
		if err := rows.Scan(&b.Symbol, &tfs, &b.StartTime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("postgres: scan bar: %w", err)
		}
		b.Timeframe = model.Timeframe(tfs)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// AppendSnapshot inserts one analytics snapshot.
func (s *Store) AppendSnapshot(ctx context.Context, snap model.Snapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO snapshots (symbol_x, symbol_y, timeframe, hedge_ratio, spread, z_score, rolling_corr, adf_stat, p_value, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, snap.SymbolX, snap.SymbolY, string(snap.Timeframe),
		snap.HedgeRatio, snap.Spread, snap.ZScore, snap.RollingCorr,
		snap.ADFStat, snap.PValue, snap.ComputedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns the last n snapshots for a pair, ascending.
func (s *Store) RecentSnapshots(ctx context.Context, symbolX, symbolY string, tf model.Timeframe, n int) ([]model.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, symbol_x, symbol_y, timeframe, hedge_ratio, spread, z_score, rolling_corr, adf_stat, p_value, computed_at FROM (
			SELECT * FROM snapshots
			WHERE symbol_x = $1 AND symbol_y = $2 AND timeframe = $3
			ORDER BY computed_at DESC, id DESC
			LIMIT $4
		) sub ORDER BY computed_at ASC, id ASC
	`, symbolX, symbolY, string(tf), n)
	if err != nil {
		return nil, fmt.Errorf("postgres: query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		var sn model.Snapshot
		var tfs string
		if err := rows.Scan(&sn.ID, &sn.SymbolX, &sn.SymbolY, &tfs,
			&sn.HedgeRatio, &sn.Spread, &sn.ZScore, &sn.RollingCorr,
			&sn.ADFStat, &sn.PValue, &sn.ComputedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
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
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alerts (metric, condition, threshold, active, created_at)
		VALUES ($1, $2, $3, TRUE, $4)
		RETURNING id
	`, metric, condition, threshold, now).Scan(&id)
	if err != nil {
		return model.Alert{}, fmt.Errorf("postgres: insert alert: %w", err)
	}
	return model.Alert{
		ID: id, Metric: metric, Condition: condition,
		Threshold: threshold, Active: true, CreatedAt: now,
	}, nil
}

// ActiveAlerts lists active alerts.
func (s *Store) ActiveAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, metric, condition, threshold, active, created_at
		FROM alerts WHERE active ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.Metric, &a.Condition, &a.Threshold, &a.Active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// DeactivateAlert flips an alert inactive.
func (s *Store) DeactivateAlert(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE alerts SET active = FALSE WHERE id = $1`, id)
	return err
}

// DeleteAlert removes an alert.
func (s *Store) DeleteAlert(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	return err
}

// Ping verifies the pool is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close shuts the pool down.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
