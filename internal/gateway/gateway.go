// Package gateway defines the execution-gateway and quote-source interfaces
// consumed by the trading core, and a client for the QMT bridge service.
package gateway

import (
	"context"

	"pair-trader/internal/models"
)

// Fill describes the current fill state of an order at the gateway.
type Fill struct {
	OrderID      string
	InstrumentID string
	Side         models.OrderSide
	TradedQty    int
	OrderedQty   int
}

// Quote is a top-of-book snapshot for one instrument.
type Quote struct {
	InstrumentID string
	Bid          float64
	Ask          float64
}

// Gateway abstracts the broker connectivity layer. Implementations own their
// own call timeouts; a timed-out query is reported as an error so callers can
// apply their conservative fallbacks.
type Gateway interface {
	// SubmitOrder sends an order for execution and returns the
	// gateway-assigned order ID.
	SubmitOrder(ctx context.Context, order *models.Order) (string, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, orderID string) error

	// QueryOrder returns the fill state of an order. Orders already purged
	// by the gateway yield errors.ErrOrderNotFound.
	QueryOrder(ctx context.Context, orderID string) (*Fill, error)

	// QueryPositions returns positions for the given instruments. The result
	// may be partial: an instrument the gateway could not resolve appears as
	// a nil entry at its index.
	QueryPositions(ctx context.Context, instrumentIDs []string) ([]*models.Position, error)

	// QueryTotalEquity returns the account's current total valuation.
	QueryTotalEquity(ctx context.Context) (float64, error)
}

// QuoteSource provides live bid/ask quotes. Only the rebalance resolution
// policy consumes it.
type QuoteSource interface {
	LatestBidAsk(ctx context.Context, instrumentID string) (*Quote, error)
}
