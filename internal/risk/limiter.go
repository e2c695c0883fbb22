// Package risk provides pre-trade capital-allocation admission control.
package risk

import (
	"math"

	"github.com/rs/zerolog"

	apperrors "pair-trader/internal/errors"
	"pair-trader/internal/logging"
	"pair-trader/internal/models"
)

// Limiter decides whether a proposed order fits within its strategy's
// capital-allocation budget. Budgets are immutable after construction;
// shape errors are rejected here, at startup, never at admission time.
type Limiter struct {
	budgets []float64
	logger  zerolog.Logger
}

// NewLimiter builds a Limiter for numStrategies strategies. With avgMode
// each strategy receives an equal 1/n share of equity and the budgets
// argument is ignored; otherwise budgets must carry exactly one entry per
// strategy.
func NewLimiter(budgets []float64, numStrategies int, avgMode bool, logger zerolog.Logger) (*Limiter, error) {
	if numStrategies <= 0 {
		return nil, apperrors.NewConfigError("strategies", numStrategies, "at least one strategy required")
	}

	resolved := make([]float64, numStrategies)
	if avgMode {
		share := 1.0 / float64(numStrategies)
		for i := range resolved {
			resolved[i] = share
		}
	} else {
		if len(budgets) != numStrategies {
			return nil, apperrors.NewConfigError("budgets", len(budgets),
				"budget list length must match the number of strategies")
		}
		copy(resolved, budgets)
	}

	return &Limiter{
		budgets: resolved,
		logger:  logger.With().Str("component", "risk").Logger(),
	}, nil
}

// Budget returns the equity fraction allotted to a strategy.
func (l *Limiter) Budget(strategyID int) float64 {
	return l.budgets[strategyID]
}

// Admit reports whether the proposed order may proceed given the strategy's
// current exposure and total account equity.
//
// Exposure values each position at its open/settlement price, not average
// cost: average cost can be zero for newly-established or externally-seeded
// positions, which would let real exposure slip past the check unseen.
//
// A nil entry in positions means the gateway could not resolve that
// instrument. The order is ADMITTED in that case: missing exposure data is
// treated as "no constraint available", trading liveness over strictness.
// This asymmetry is a deliberate, configuration-visible risk policy.
func (l *Limiter) Admit(positions []*models.Position, strategyID, qty int, price, totalEquity float64) bool {
	exposure := 0.0
	for _, p := range positions {
		if p == nil {
			l.logger.Warn().
				Int("strategy_id", strategyID).
				Msg("Position unresolved, admitting without exposure check")
			return true
		}
		exposure += p.OpenPrice * float64(p.TradableQty+p.LockedQty)
	}

	proposed := price * float64(qty)
	limit := l.budgets[strategyID] * totalEquity
	if exposure+proposed >= limit {
		logging.LogAdmissionRefused(l.logger, strategyID, exposure, proposed, limit)
		return false
	}
	return true
}

// Check is Admit with a typed result: nil when the order is admitted,
// a *errors.LimitError describing the refusal otherwise.
func (l *Limiter) Check(positions []*models.Position, strategyID, qty int, price, totalEquity float64) error {
	if l.Admit(positions, strategyID, qty, price, totalEquity) {
		return nil
	}
	exposure := 0.0
	for _, p := range positions {
		if p != nil {
			exposure += p.OpenPrice * float64(p.TradableQty+p.LockedQty)
		}
	}
	return apperrors.NewLimitError(strategyID, exposure, price*float64(qty), l.budgets[strategyID]*totalEquity)
}

// MaxBuyQty clamps a proposed buy to the largest quantity the strategy can
// still afford, accounting for open-order value already committed. Unresolved
// positions contribute no exposure. One clamp may consume at most a tenth of
// the remaining headroom.
func (l *Limiter) MaxBuyQty(positions []*models.Position, openOrders []models.Order, qty int, price, totalEquity float64) int {
	if price == 0 || qty == 0 {
		return 0
	}

	positionVal := 0.0
	for _, p := range positions {
		if p == nil {
			continue
		}
		positionVal += p.OpenPrice * float64(p.TradableQty+p.LockedQty)
	}
	orderVal := 0.0
	for _, o := range openOrders {
		orderVal += o.Notional()
	}

	headroom := (totalEquity - positionVal - orderVal) / price / 10
	if math.IsNaN(headroom) {
		return 0
	}
	maxQty := int(math.Floor(headroom))
	if maxQty < 0 {
		maxQty = 0
	}
	if qty > maxQty {
		l.logger.Warn().
			Int("requested", qty).
			Int("clamped", maxQty).
			Msg("Buy volume clamped to budget headroom")
		return maxQty
	}
	return qty
}

// MaxSellQty clamps a proposed sell to the position's tradable quantity.
// A nil position yields zero.
func (l *Limiter) MaxSellQty(position *models.Position, qty int) int {
	if position == nil {
		return 0
	}
	if qty > position.TradableQty {
		l.logger.Warn().
			Str("instrument", position.InstrumentID).
			Int("requested", qty).
			Int("clamped", position.TradableQty).
			Msg("Sell volume clamped to tradable quantity")
		return position.TradableQty
	}
	return qty
}
