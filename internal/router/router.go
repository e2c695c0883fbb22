// Package router dispatches admitted orders to the simulated ledger or the
// execution gateway depending on run mode, applying the position limiter
// identically in both paths.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "pair-trader/internal/errors"
	"pair-trader/internal/gateway"
	"pair-trader/internal/ledger"
	"pair-trader/internal/logging"
	"pair-trader/internal/models"
	"pair-trader/internal/reconcile"
	"pair-trader/internal/risk"
)

// Router is the execution entry point for signal producers. Admission,
// then dispatch; for paired signals the resulting legs are grouped and
// handed to the reconciler.
type Router struct {
	mode       models.Mode
	limiter    *risk.Limiter
	ledger     *ledger.Ledger
	gw         gateway.Gateway
	reconciler *reconcile.Reconciler
	pairs      [][]string
	logger     zerolog.Logger

	// One lock per strategy: the admission-check-then-mutate sequence must
	// be atomic against concurrent submissions for the same strategy, or two
	// orders could both pass a limit check that neither would pass summed.
	strategyMu []sync.Mutex
}

// NewRouter wires a router for the given mode. ledger is required in sim
// mode; gw and reconciler are required in live mode.
func NewRouter(mode models.Mode, limiter *risk.Limiter, lgr *ledger.Ledger, gw gateway.Gateway,
	rec *reconcile.Reconciler, pairs [][]string, logger zerolog.Logger) *Router {
	return &Router{
		mode:       mode,
		limiter:    limiter,
		ledger:     lgr,
		gw:         gw,
		reconciler: rec,
		pairs:      pairs,
		strategyMu: make([]sync.Mutex, len(pairs)),
		logger:     logger.With().Str("component", "router").Logger(),
	}
}

// Submit routes one order. A zero-quantity order is a successful no-op.
// Refusals come back as typed errors: *errors.LimitError for budget,
// *errors.OrderError for sell-side position shortfalls.
func (r *Router) Submit(ctx context.Context, order *models.Order) (models.Receipt, error) {
	if order.Quantity == 0 {
		return models.Receipt{}, nil
	}

	r.strategyMu[order.StrategyID].Lock()
	defer r.strategyMu[order.StrategyID].Unlock()

	if r.mode == models.ModeSim {
		return r.ledger.Submit(order.InstrumentID, order.Side, order.Quantity, order.Price, order.StrategyID)
	}
	return r.submitLive(ctx, order)
}

func (r *Router) submitLive(ctx context.Context, order *models.Order) (models.Receipt, error) {
	switch order.Side {
	case models.OrderSideBuy:
		if err := r.admitLiveBuy(ctx, order); err != nil {
			return models.Receipt{}, err
		}
	case models.OrderSideSell:
		if err := r.checkLiveSell(ctx, order); err != nil {
			return models.Receipt{}, err
		}
	}

	orderID, err := r.gw.SubmitOrder(ctx, order)
	if err != nil {
		return models.Receipt{}, apperrors.Wrap(err, "submitting order")
	}
	logging.LogOrder(r.logger, orderID, order.InstrumentID, string(order.Side), "SUBMITTED")
	return models.Receipt{OrderID: orderID, PlacedAt: time.Now()}, nil
}

// admitLiveBuy runs the limiter over live gateway state. Equity or position
// queries that fail leave no exposure data; per policy the order proceeds
// (liveness over strictness), with the gap logged.
func (r *Router) admitLiveBuy(ctx context.Context, order *models.Order) error {
	positions, err := r.gw.QueryPositions(ctx, r.pairs[order.StrategyID])
	if err != nil {
		r.logger.Warn().Err(err).
			Int("strategy_id", order.StrategyID).
			Msg("Position query failed, admitting without exposure check")
		return nil
	}
	equity, err := r.gw.QueryTotalEquity(ctx)
	if err != nil {
		r.logger.Warn().Err(err).
			Int("strategy_id", order.StrategyID).
			Msg("Equity query failed, admitting without exposure check")
		return nil
	}
	return r.limiter.Check(positions, order.StrategyID, order.Quantity, order.Price, equity)
}

// checkLiveSell rejects a sell exceeding the tradable quantity held at the
// gateway. Unknown positions reject: unlike the buy side there is no upside
// to letting an unbacked sell through.
func (r *Router) checkLiveSell(ctx context.Context, order *models.Order) error {
	positions, err := r.gw.QueryPositions(ctx, []string{order.InstrumentID})
	if err != nil {
		return apperrors.Wrap(err, "querying position for sell")
	}
	if len(positions) == 0 || positions[0] == nil {
		return apperrors.NewOrderError("", order.InstrumentID, "sell",
			"no position held", apperrors.ErrInsufficientPosition)
	}
	if r.limiter.MaxSellQty(positions[0], order.Quantity) < order.Quantity {
		return apperrors.NewOrderError("", order.InstrumentID, "sell",
			"tradable quantity below sell volume", apperrors.ErrInsufficientPosition)
	}
	return nil
}

// SubmitPair submits both legs of a paired signal and registers the group
// with the reconciler. In sim mode legs apply to the ledger immediately and
// no group is tracked. If no leg reaches the gateway, no group is inserted;
// a partial submission is still tracked so the reconciler can clean it up.
func (r *Router) SubmitPair(ctx context.Context, legs []*models.Order) ([]models.Receipt, error) {
	receipts := make([]models.Receipt, 0, len(legs))
	var groupLegs []reconcile.Leg
	var firstErr error

	for _, order := range legs {
		receipt, err := r.Submit(ctx, order)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			r.logger.Warn().Err(err).
				Str("instrument", order.InstrumentID).
				Str("side", string(order.Side)).
				Msg("Pair leg refused")
			continue
		}
		receipts = append(receipts, receipt)
		if r.mode == models.ModeLive && receipt.OrderID != "" {
			groupLegs = append(groupLegs, reconcile.Leg{
				OrderID:      receipt.OrderID,
				InstrumentID: order.InstrumentID,
				SubmittedAt:  receipt.PlacedAt,
			})
		}
	}

	if len(groupLegs) > 0 && r.reconciler != nil {
		r.reconciler.Insert(reconcile.NewGroup(legs[0].StrategyID, groupLegs))
	}
	return receipts, firstErr
}
