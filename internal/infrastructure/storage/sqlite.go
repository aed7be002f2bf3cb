package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vitos/crypto_trade_level/internal/domain"
)

// SQLiteStore persists the adaptive sizing ramp's state and its closed-trade
// audit trail, per SPEC_FULL.md's domain stack. It follows the teacher's
// migration idiom: CREATE TABLE IF NOT EXISTS on open, ALTER TABLE for
// additive columns, errors on the added column ignored since sqlite has no
// "add column if not exists".
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) the sqlite file at dbPath and
// runs its schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ramp_state (
			symbol TEXT PRIMARY KEY,
			current_margin_budget REAL NOT NULL,
			ramp_mult REAL NOT NULL,
			success_count INTEGER NOT NULL DEFAULT 0,
			fail_count INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS closed_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			pnl REAL NOT NULL,
			margin_budget_after REAL NOT NULL,
			recorded_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_closed_trades_symbol ON closed_trades(symbol, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS envelope_snapshots (
			symbol TEXT NOT NULL,
			canonical_time_ms INTEGER NOT NULL,
			state TEXT NOT NULL,
			mid_price REAL NOT NULL,
			PRIMARY KEY (symbol, canonical_time_ms)
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	// Migration: widen envelope_snapshots with a raw payload column for
	// later replay tooling. Ignore the error if the column already exists.
	_, _ = s.db.Exec(`ALTER TABLE envelope_snapshots ADD COLUMN payload_json TEXT NOT NULL DEFAULT '{}'`)

	return nil
}

// SaveRampState upserts the current sizing ramp state for symbol.
func (s *SQLiteStore) SaveRampState(ctx context.Context, symbol string, state domain.SizingRampState, updatedAtMs int64) error {
	query := `INSERT INTO ramp_state (symbol, current_margin_budget, ramp_mult, success_count, fail_count, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(symbol) DO UPDATE SET
			  current_margin_budget=excluded.current_margin_budget,
			  ramp_mult=excluded.ramp_mult,
			  success_count=excluded.success_count,
			  fail_count=excluded.fail_count,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, symbol, state.CurrentMarginBudget, state.RampMult, state.SuccessCount, state.FailCount, updatedAtMs)
	return err
}

// LoadRampState returns the persisted ramp state for symbol, or ok=false if
// none has been recorded yet (the caller should fall back to a fresh
// NewSizingRamp starting budget).
func (s *SQLiteStore) LoadRampState(ctx context.Context, symbol string) (state domain.SizingRampState, ok bool, err error) {
	query := `SELECT current_margin_budget, ramp_mult, success_count, fail_count FROM ramp_state WHERE symbol = ?`
	row := s.db.QueryRowContext(ctx, query, symbol)
	err = row.Scan(&state.CurrentMarginBudget, &state.RampMult, &state.SuccessCount, &state.FailCount)
	if err == sql.ErrNoRows {
		return domain.SizingRampState{}, false, nil
	}
	if err != nil {
		return domain.SizingRampState{}, false, err
	}
	return state, true, nil
}

// RecordClosedTrade appends one closed-trade audit row and the ramp budget
// it produced.
func (s *SQLiteStore) RecordClosedTrade(ctx context.Context, trade domain.ClosedTrade, budgetAfter float64, recordedAtMs int64) error {
	query := `INSERT INTO closed_trades (symbol, pnl, margin_budget_after, recorded_at) VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, trade.Symbol, trade.PnL, budgetAfter, recordedAtMs)
	return err
}

// ClosedTradeRecord is one row of the closed-trade audit trail.
type ClosedTradeRecord struct {
	Symbol            string
	PnL               float64
	MarginBudgetAfter float64
	RecordedAtMs      int64
}

// ListClosedTrades returns the most recent closed trades for symbol, newest
// first, capped at limit.
func (s *SQLiteStore) ListClosedTrades(ctx context.Context, symbol string, limit int) ([]ClosedTradeRecord, error) {
	query := `SELECT symbol, pnl, margin_budget_after, recorded_at FROM closed_trades WHERE symbol = ? ORDER BY recorded_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClosedTradeRecord
	for rows.Next() {
		var r ClosedTradeRecord
		if err := rows.Scan(&r.Symbol, &r.PnL, &r.MarginBudgetAfter, &r.RecordedAtMs); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveEnvelopeSnapshot archives one published envelope for replay/debugging,
// keyed by (symbol, canonicalTimeMs) so re-publishing the same tick is a
// no-op update rather than a duplicate row.
func (s *SQLiteStore) SaveEnvelopeSnapshot(ctx context.Context, symbol string, canonicalTimeMs int64, state string, midPrice float64, payloadJSON string) error {
	query := `INSERT INTO envelope_snapshots (symbol, canonical_time_ms, state, mid_price, payload_json)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(symbol, canonical_time_ms) DO UPDATE SET
			  state=excluded.state,
			  mid_price=excluded.mid_price,
			  payload_json=excluded.payload_json`
	_, err := s.db.ExecContext(ctx, query, symbol, canonicalTimeMs, state, midPrice, payloadJSON)
	return err
}
