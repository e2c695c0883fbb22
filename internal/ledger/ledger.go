// Package ledger provides an in-memory account and position book that
// executes admitted orders deterministically, mirroring live trading
// semantics for offline strategy testing.
package ledger

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	apperrors "pair-trader/internal/errors"
	"pair-trader/internal/logging"
	"pair-trader/internal/models"
	"pair-trader/internal/risk"
)

// Account tracks simulated cash. Cash changes only through Deposit and
// Withdraw, paired one-to-one with trade execution.
type Account struct {
	InitialCash float64
	Cash        float64
}

// Deposit credits trade proceeds.
func (a *Account) Deposit(amount float64) {
	a.Cash += amount
}

// Withdraw debits the cost of a buy.
func (a *Account) Withdraw(amount float64) {
	a.Cash -= amount
}

// holding is one instrument's book entry. AvgCost is volume-weighted and
// recomputed on buys only; sells adjust quantity and realize proceeds but
// never touch it.
type holding struct {
	quantity  int
	lastPrice float64
	avgCost   float64
}

func (h *holding) buy(price float64, qty int) {
	if qty == 0 {
		return
	}
	h.avgCost = (h.avgCost*float64(h.quantity) + price*float64(qty)) / float64(h.quantity+qty)
	h.quantity += qty
	h.lastPrice = price
}

func (h *holding) sell(price float64, qty int) float64 {
	h.quantity -= qty
	h.lastPrice = price
	return price * float64(qty)
}

// Ledger is the simulated execution venue. Submissions are admitted through
// the position limiter exactly like live orders, then applied to the book.
// Execution is deterministic: price is always caller-supplied and no wall
// clock or randomness is consulted.
type Ledger struct {
	mu sync.Mutex

	account  Account
	book     map[string]*holding
	records  []models.Order
	limiter  *risk.Limiter
	pairs    [][]string
	sequence int
	logger   zerolog.Logger
}

// NewLedger creates a ledger seeded with initialCash. pairs lists each
// strategy's instruments; admission checks value exposure across a
// strategy's whole pair, matching the live path.
func NewLedger(initialCash float64, limiter *risk.Limiter, pairs [][]string, logger zerolog.Logger) *Ledger {
	return &Ledger{
		account: Account{InitialCash: initialCash, Cash: initialCash},
		book:    make(map[string]*holding),
		limiter: limiter,
		pairs:   pairs,
		logger:  logger.With().Str("component", "ledger").Logger(),
	}
}

// Submit applies an order to the simulated book.
//
// Buys pass the limiter over positions synthesized from the book; a refusal
// returns a *errors.LimitError and leaves the book untouched. Sells require
// the instrument to be held with at least the requested quantity; violations
// return a *errors.OrderError wrapping ErrInsufficientPosition, also without
// mutation. A zero-quantity submit is a successful no-op.
func (l *Ledger) Submit(instrumentID string, side models.OrderSide, qty int, price float64, strategyID int) (models.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if qty == 0 {
		return models.Receipt{}, nil
	}

	switch side {
	case models.OrderSideBuy:
		if err := l.admitBuy(strategyID, qty, price); err != nil {
			return models.Receipt{}, err
		}
		h := l.holdingFor(instrumentID)
		h.buy(price, qty)
		l.account.Withdraw(price * float64(qty))
	case models.OrderSideSell:
		h, ok := l.book[instrumentID]
		if !ok {
			l.logger.Warn().Str("instrument", instrumentID).Msg("No position held, cannot sell")
			return models.Receipt{}, apperrors.NewOrderError("", instrumentID, "sell",
				"no position held", apperrors.ErrInsufficientPosition)
		}
		if h.quantity < qty {
			l.logger.Warn().
				Str("instrument", instrumentID).
				Int("held", h.quantity).
				Int("requested", qty).
				Msg("Held quantity below sell volume")
			return models.Receipt{}, apperrors.NewOrderError("", instrumentID, "sell",
				fmt.Sprintf("held %d < sell %d", h.quantity, qty), apperrors.ErrInsufficientPosition)
		}
		proceeds := h.sell(price, qty)
		l.account.Deposit(proceeds)
	default:
		return models.Receipt{}, apperrors.NewOrderError("", instrumentID, string(side), "unknown side", nil)
	}

	l.sequence++
	receipt := models.Receipt{OrderID: fmt.Sprintf("SIM-%d", l.sequence)}
	l.records = append(l.records, models.Order{
		InstrumentID: instrumentID,
		Side:         side,
		Quantity:     qty,
		Price:        price,
		StrategyID:   strategyID,
	})
	logging.LogTrade(l.logger, instrumentID, string(side), qty, price, strategyID)
	return receipt, nil
}

// admitBuy runs the limiter over positions synthesized from the book:
// everything held is tradable, nothing is locked, and the book's average
// cost stands in for the open price.
func (l *Ledger) admitBuy(strategyID, qty int, price float64) error {
	positions := make([]*models.Position, 0, len(l.pairs[strategyID]))
	for _, instrumentID := range l.pairs[strategyID] {
		h, ok := l.book[instrumentID]
		if !ok {
			positions = append(positions, &models.Position{InstrumentID: instrumentID})
			continue
		}
		positions = append(positions, &models.Position{
			InstrumentID: instrumentID,
			Quantity:     h.quantity,
			TradableQty:  h.quantity,
			LockedQty:    0,
			OpenPrice:    h.avgCost,
			AvgCost:      h.avgCost,
			LastPrice:    h.lastPrice,
		})
	}
	return l.limiter.Check(positions, strategyID, qty, price, l.markToMarket())
}

func (l *Ledger) holdingFor(instrumentID string) *holding {
	h, ok := l.book[instrumentID]
	if !ok {
		h = &holding{}
		l.book[instrumentID] = h
	}
	return h
}

// MarkToMarket values the account: cash plus every holding at its last
// trade price. The result doubles as total equity for subsequent admission
// checks, which is what ties the limiter and the ledger together within one
// simulated session.
func (l *Ledger) MarkToMarket() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.markToMarket()
}

func (l *Ledger) markToMarket() float64 {
	total := l.account.Cash
	for _, h := range l.book {
		total += h.lastPrice * float64(h.quantity)
	}
	return total
}

// Cash returns current account cash.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.account.Cash
}

// Position returns a snapshot of one instrument's book entry, or nil if
// the instrument has never traded.
func (l *Ledger) Position(instrumentID string) *models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.book[instrumentID]
	if !ok {
		return nil
	}
	return &models.Position{
		InstrumentID: instrumentID,
		Quantity:     h.quantity,
		TradableQty:  h.quantity,
		OpenPrice:    h.avgCost,
		AvgCost:      h.avgCost,
		LastPrice:    h.lastPrice,
	}
}

// Records returns a copy of the append-only trade ledger.
func (l *Ledger) Records() []models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Order, len(l.records))
	copy(out, l.records)
	return out
}

// Report logs the session outcome for one strategy and returns its trades.
func (l *Ledger) Report(strategyID int) []models.Order {
	l.mu.Lock()
	value := l.markToMarket()
	initial := l.account.InitialCash
	var trades []models.Order
	for _, r := range l.records {
		if r.StrategyID == strategyID {
			trades = append(trades, r)
		}
	}
	l.mu.Unlock()

	ratio := 0.0
	if initial != 0 {
		ratio = (value - initial) / initial
	}
	l.logger.Info().
		Int("strategy_id", strategyID).
		Float64("initial", initial).
		Float64("current", value).
		Float64("return", ratio).
		Int("trades", len(trades)).
		Msg("Session report")
	return trades
}
