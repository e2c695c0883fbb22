package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"pair-trader/internal/models"
)

// SQLiteStore implements TradeStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ TradeStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-backed trade store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instrument TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		strategy_id INTEGER NOT NULL,
		applied_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveTrades appends applied orders in a single transaction, preserving
// their sequence.
func (s *SQLiteStore) SaveTrades(ctx context.Context, trades []models.Order) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (instrument, side, quantity, price, strategy_id, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		var appliedAt interface{}
		if !t.Timestamp.IsZero() {
			appliedAt = t.Timestamp
		}
		if _, err := stmt.ExecContext(ctx, t.InstrumentID, string(t.Side), t.Quantity, t.Price, t.StrategyID, appliedAt); err != nil {
			return fmt.Errorf("inserting trade: %w", err)
		}
	}
	return tx.Commit()
}

// GetTrades returns one strategy's trades in applied order.
func (s *SQLiteStore) GetTrades(ctx context.Context, strategyID int) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instrument, side, quantity, price, strategy_id, applied_at
		FROM trades WHERE strategy_id = ? ORDER BY id`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Order
	for rows.Next() {
		var t models.Order
		var side string
		var appliedAt sql.NullTime
		if err := rows.Scan(&t.InstrumentID, &side, &t.Quantity, &t.Price, &t.StrategyID, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Side = models.OrderSide(side)
		if appliedAt.Valid {
			t.Timestamp = appliedAt.Time
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
