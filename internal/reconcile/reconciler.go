// Package reconcile tracks in-flight multi-leg order groups, polls the
// execution gateway for fill state after a grace delay, and resolves leg
// imbalance by cancelling stale orders or re-ordering the lagging leg.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "pair-trader/internal/errors"
	"pair-trader/internal/gateway"
	"pair-trader/internal/logging"
	"pair-trader/internal/models"
)

// ResolutionPolicy selects how an imbalanced group is resolved.
type ResolutionPolicy string

const (
	// PolicyCancelAll cancels every leg of the group once the grace window
	// has elapsed, making no attempt to correct the lagging leg.
	PolicyCancelAll ResolutionPolicy = "cancel_all"
	// PolicyRebalanceLaggingLeg cancels only the lagging leg's open order
	// and re-orders the shortfall at an adjusted live quote.
	PolicyRebalanceLaggingLeg ResolutionPolicy = "rebalance"
)

// Config holds reconciliation policy parameters.
type Config struct {
	GraceDelay   time.Duration
	QueryTimeout time.Duration
	Policy       ResolutionPolicy
	SlidingPoint float64
}

// Reconciler owns the tracked set of order groups. The set is mutated only
// by Tick, and Tick is serialized by the internal mutex: one tick completes
// fully before the next begins, so a group can never be double-cancelled or
// compacted mid-resolution.
type Reconciler struct {
	gw     gateway.Gateway
	quotes gateway.QuoteSource
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	groups []*Group
}

// NewReconciler creates a reconciler. quotes may be nil when the cancel-all
// policy is configured; the rebalance policy requires it.
func NewReconciler(gw gateway.Gateway, quotes gateway.QuoteSource, cfg Config, logger zerolog.Logger) *Reconciler {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 3 * time.Second
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyCancelAll
	}
	return &Reconciler{
		gw:     gw,
		quotes: quotes,
		cfg:    cfg,
		logger: logger.With().Str("component", "reconciler").Logger(),
	}
}

// Insert adds a new pending group to the tracked set.
func (r *Reconciler) Insert(g *Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.Status = StatusPending
	r.groups = append(r.groups, g)
	r.logger.Info().
		Int("strategy_id", g.StrategyID).
		Int("legs", len(g.Legs)).
		Msg("Order group tracked")
}

// Size returns the number of tracked groups.
func (r *Reconciler) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}

// Empty reports whether no groups are tracked.
func (r *Reconciler) Empty() bool {
	return r.Size() == 0
}

// Tick advances every tracked group one step, then purges resolved groups.
// It is safe to drive from a single periodic loop; concurrent callers are
// serialized. Gateway failures are absorbed and logged here: no caller waits
// on a tick synchronously.
func (r *Reconciler) Tick(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range r.groups {
		r.step(ctx, g)
	}
	r.compact()
}

// step advances one group. Resolved groups are a no-op.
func (r *Reconciler) step(ctx context.Context, g *Group) {
	if g.Status == StatusResolved {
		return
	}

	fills, missing := r.queryLegs(ctx, g)

	// A leg the gateway can no longer report on leaves nothing to act on;
	// the group resolves immediately, even inside the grace window.
	if missing {
		r.logger.Warn().
			Int("strategy_id", g.StrategyID).
			Msg("Leg no longer retrievable, resolving group")
		g.Status = StatusResolved
		return
	}

	// Inside the grace window the gateway may still be reporting fills;
	// imbalance measured now would be noise.
	if g.Status == StatusPending && time.Now().Before(g.readyAt(r.cfg.GraceDelay)) {
		return
	}

	traded := cumulativeTraded(g, fills)
	minTraded, maxTraded := tradedRange(traded)
	imbalance := maxTraded - minTraded

	switch r.cfg.Policy {
	case PolicyRebalanceLaggingLeg:
		r.rebalance(ctx, g, fills, traded, imbalance)
	default:
		r.logger.Info().
			Int("strategy_id", g.StrategyID).
			Int("imbalance", imbalance).
			Msg("Grace elapsed, cancelling group")
		r.cancelLegs(ctx, g.Legs)
		g.Status = StatusResolved
	}
}

// queryLegs fetches fill state for every leg concurrently and joins the
// results before returning: group decisions are never made on partial leg
// information. A timed-out query counts as missing, the same as an order
// the gateway has already purged.
func (r *Reconciler) queryLegs(ctx context.Context, g *Group) ([]*gateway.Fill, bool) {
	fills := make([]*gateway.Fill, len(g.Legs))
	var wg sync.WaitGroup
	for i := range g.Legs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
			defer cancel()
			fill, err := r.gw.QueryOrder(qctx, g.Legs[i].OrderID)
			if err != nil {
				if !apperrors.Is(err, apperrors.ErrOrderNotFound) {
					r.logger.Warn().Err(err).
						Str("order_id", g.Legs[i].OrderID).
						Msg("Order query failed")
				}
				return
			}
			fills[i] = fill
		}(i)
	}
	wg.Wait()

	for _, f := range fills {
		if f == nil {
			return fills, true
		}
	}
	return fills, false
}

// cancelLegs fires cancellation requests for every leg. Cancels are
// fire-and-forget: a gateway error is logged and the group still resolves,
// since retrying a cancel indefinitely would stall the whole tracked set.
func (r *Reconciler) cancelLegs(ctx context.Context, legs []Leg) {
	var wg sync.WaitGroup
	for _, leg := range legs {
		wg.Add(1)
		go func(leg Leg) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
			defer cancel()
			err := r.gw.CancelOrder(cctx, leg.OrderID)
			logging.LogCancel(r.logger, leg.OrderID, err)
		}(leg)
	}
	wg.Wait()
}

// rebalance corrects leg imbalance instead of blanket-cancelling: the
// lagging leg's open order is cancelled and its shortfall re-ordered at a
// live quote nudged by the sliding point. The group stays tracked as
// PARTIALLY_RESOLVED until the legs even out.
func (r *Reconciler) rebalance(ctx context.Context, g *Group, fills []*gateway.Fill, traded []int, imbalance int) {
	if imbalance == 0 {
		// Legs are even; cancel any open remainder and close out.
		if anyOutstanding(fills) {
			r.cancelLegs(ctx, g.Legs)
		}
		g.Status = StatusResolved
		return
	}

	lag := laggingLeg(traded)
	shortfall := imbalance

	quote, err := r.quotes.LatestBidAsk(ctx, g.Legs[lag].InstrumentID)
	if err != nil {
		// Without a quote there is no corrective price; fall back to the
		// blanket cancel so the group cannot linger unresolved.
		r.logger.Warn().Err(err).
			Str("instrument", g.Legs[lag].InstrumentID).
			Msg("No quote for corrective leg, cancelling group")
		r.cancelLegs(ctx, g.Legs)
		g.Status = StatusResolved
		return
	}

	price := quote.Bid * (1 - r.cfg.SlidingPoint)
	if fills[lag].Side == models.OrderSideBuy {
		price = quote.Ask * (1 + r.cfg.SlidingPoint)
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	cerr := r.gw.CancelOrder(cctx, g.Legs[lag].OrderID)
	cancel()
	logging.LogCancel(r.logger, g.Legs[lag].OrderID, cerr)

	order := &models.Order{
		InstrumentID: g.Legs[lag].InstrumentID,
		Side:         fills[lag].Side,
		Quantity:     shortfall,
		Price:        price,
		StrategyID:   g.StrategyID,
	}
	sctx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	orderID, err := r.gw.SubmitOrder(sctx, order)
	cancel()
	if err != nil {
		r.logger.Warn().Err(err).
			Str("instrument", order.InstrumentID).
			Msg("Corrective re-order failed, cancelling group")
		r.cancelLegs(ctx, g.Legs)
		g.Status = StatusResolved
		return
	}

	logging.LogOrder(r.logger, orderID, order.InstrumentID, string(order.Side), "CORRECTIVE")
	// Bank the replaced order's fill before swapping it out, so the next
	// tick measures the leg on its cumulative total, not just the
	// corrective order's own fill.
	g.Legs[lag].filled += fills[lag].TradedQty
	g.Legs[lag].OrderID = orderID
	g.Legs[lag].SubmittedAt = time.Now()
	g.Status = StatusPartiallyResolved
}

// compact purges resolved groups, preserving the order of the rest.
// Runs once per tick, after every group has been stepped.
func (r *Reconciler) compact() {
	kept := r.groups[:0]
	for _, g := range r.groups {
		if g.Status != StatusResolved {
			kept = append(kept, g)
		}
	}
	for i := len(kept); i < len(r.groups); i++ {
		r.groups[i] = nil
	}
	r.groups = kept
}

// cumulativeTraded folds each leg's banked fills from replaced orders into
// its live order's traded quantity.
func cumulativeTraded(g *Group, fills []*gateway.Fill) []int {
	traded := make([]int, len(fills))
	for i, f := range fills {
		traded[i] = g.Legs[i].filled + f.TradedQty
	}
	return traded
}

func tradedRange(traded []int) (minTraded, maxTraded int) {
	minTraded = traded[0]
	maxTraded = traded[0]
	for _, t := range traded[1:] {
		if t < minTraded {
			minTraded = t
		}
		if t > maxTraded {
			maxTraded = t
		}
	}
	return minTraded, maxTraded
}

func laggingLeg(traded []int) int {
	lag := 0
	for i, t := range traded {
		if t < traded[lag] {
			lag = i
		}
	}
	return lag
}

func anyOutstanding(fills []*gateway.Fill) bool {
	for _, f := range fills {
		if f.TradedQty < f.OrderedQty {
			return true
		}
	}
	return false
}
