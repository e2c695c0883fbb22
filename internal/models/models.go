// Package models provides domain models for the pair-trading application.
package models

import "time"

// Mode represents the execution mode of the application.
type Mode string

const (
	ModeLive Mode = "live"
	ModeSim  Mode = "sim"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Position represents a per-instrument holding.
//
// OpenPrice is the settlement/open reference price reported by the gateway.
// Exposure checks value a position at OpenPrice, never at AvgCost: a
// newly-established or externally-seeded position can carry a zero AvgCost,
// which would value real exposure at nothing.
type Position struct {
	InstrumentID string
	Quantity     int // signed, shares
	TradableQty  int // quantity free to trade
	LockedQty    int // quantity frozen in open orders
	OpenPrice    float64
	AvgCost      float64
	LastPrice    float64
}

// Value returns the position valued at its last trade price.
func (p Position) Value() float64 {
	return p.LastPrice * float64(p.Quantity)
}

// MarketStatus represents the current market session state.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketLunch   MarketStatus = "LUNCH_BREAK"
	MarketClosed  MarketStatus = "CLOSED"
	MarketAuction MarketStatus = "OPENING_AUCTION"
)

// Receipt acknowledges an applied or submitted order.
type Receipt struct {
	OrderID  string
	PlacedAt time.Time
}
