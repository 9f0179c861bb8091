package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/forex_trade_ladder/internal/domain"
)

// SQLiteStore checkpoints the active-position registry and keeps the
// closed-trade record. The registry itself lives in memory; these rows only
// exist so a restart can rebuild it.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			ticket TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_price REAL NOT NULL,
			stop_loss REAL NOT NULL,
			original_volume REAL NOT NULL,
			remaining_volume REAL NOT NULL,
			levels TEXT NOT NULL,
			state TEXT NOT NULL,
			frozen BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);`,
		`CREATE TABLE IF NOT EXISTS position_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket TEXT NOT NULL,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			original_volume REAL NOT NULL,
			closed_volume REAL NOT NULL,
			entry_price REAL NOT NULL,
			reason TEXT NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) SavePosition(ctx context.Context, pos *domain.Position) error {
	levels, err := json.Marshal(pos.Levels)
	if err != nil {
		return err
	}

	query := `INSERT INTO positions (ticket, symbol, direction, entry_price, stop_loss, original_volume, remaining_volume, levels, state, frozen, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(ticket) DO UPDATE SET
			  remaining_volume=excluded.remaining_volume,
			  levels=excluded.levels,
			  state=excluded.state,
			  frozen=excluded.frozen,
			  updated_at=excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query,
		pos.Ticket, pos.Symbol, pos.Direction, pos.EntryPrice, pos.StopLoss,
		pos.OriginalVolume, pos.RemainingVolume, string(levels), pos.State, pos.Frozen,
		pos.CreatedAt, pos.UpdatedAt)
	return err
}

func (s *SQLiteStore) DeletePosition(ctx context.Context, ticket string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM positions WHERE ticket = ?", ticket)
	return err
}

func (s *SQLiteStore) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ticket, symbol, direction, entry_price, stop_loss, original_volume, remaining_volume, levels, state, frozen, created_at, updated_at FROM positions`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		var p domain.Position
		var levels string
		if err := rows.Scan(&p.Ticket, &p.Symbol, &p.Direction, &p.EntryPrice, &p.StopLoss,
			&p.OriginalVolume, &p.RemainingVolume, &levels, &p.State, &p.Frozen,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(levels), &p.Levels); err != nil {
			return nil, fmt.Errorf("decode levels for %s: %w", p.Ticket, err)
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) SavePositionHistory(ctx context.Context, h *domain.PositionHistory) error {
	query := `INSERT INTO position_history (ticket, symbol, direction, original_volume, closed_volume, entry_price, reason, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		h.Ticket, h.Symbol, h.Direction, h.OriginalVolume, h.ClosedVolume, h.EntryPrice, h.Reason, h.ClosedAt)
	return err
}

func (s *SQLiteStore) ListPositionHistory(ctx context.Context, limit int) ([]*domain.PositionHistory, error) {
	query := `SELECT id, ticket, symbol, direction, original_volume, closed_volume, entry_price, reason, closed_at
			  FROM position_history ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*domain.PositionHistory
	for rows.Next() {
		var h domain.PositionHistory
		if err := rows.Scan(&h.ID, &h.Ticket, &h.Symbol, &h.Direction, &h.OriginalVolume,
			&h.ClosedVolume, &h.EntryPrice, &h.Reason, &h.ClosedAt); err != nil {
			return nil, err
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
