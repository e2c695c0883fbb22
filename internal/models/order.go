package models

import "time"

// Order represents an order proposed by a strategy or applied to the ledger.
// Once recorded it is immutable; the trade ledger is append-only.
type Order struct {
	InstrumentID string
	Side         OrderSide
	Quantity     int
	Price        float64
	StrategyID   int
	Timestamp    time.Time
}

// Notional returns the order value at its limit price.
func (o Order) Notional() float64 {
	return o.Price * float64(o.Quantity)
}
