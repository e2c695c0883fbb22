// Package store persists the append-only trade ledger for reporting.
package store

import (
	"context"

	"pair-trader/internal/models"
)

// TradeStore is the export sink for applied orders.
type TradeStore interface {
	SaveTrades(ctx context.Context, trades []models.Order) error
	GetTrades(ctx context.Context, strategyID int) ([]models.Order, error)
	Close() error
}
