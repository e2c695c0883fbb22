// Package session drives strategies and the order reconciler on their
// configured periods, gated on market trading hours.
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pair-trader/pkg/utils"
)

// Strategy produces trading signals. Implementations call into the router
// with fully-formed order parameters; this package only schedules them.
type Strategy interface {
	StrategyID() int
	Exec(ctx context.Context, now time.Time) error
}

// Ticker is the reconciliation driver dependency.
type Ticker interface {
	Tick(ctx context.Context)
}

// Runner owns the periodic loop: reconciler ticks at a fixed short interval,
// strategies execute at their own period inside trading hours.
type Runner struct {
	strategies   []Strategy
	reconciler   Ticker
	period       time.Duration
	tickInterval time.Duration
	logger       zerolog.Logger
}

// NewRunner creates a runner. reconciler may be nil in simulated mode.
func NewRunner(strategies []Strategy, reconciler Ticker, period, tickInterval time.Duration, logger zerolog.Logger) *Runner {
	if period <= 0 {
		period = 30 * time.Second
	}
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &Runner{
		strategies:   strategies,
		reconciler:   reconciler,
		period:       period,
		tickInterval: tickInterval,
		logger:       logger.With().Str("component", "session").Logger(),
	}
}

// Run loops until the context is cancelled. Reconciler ticks are issued from
// this single goroutine, which is what serializes them.
func (r *Runner) Run(ctx context.Context) error {
	tick := time.NewTicker(r.tickInterval)
	defer tick.Stop()
	exec := time.NewTicker(r.period)
	defer exec.Stop()

	r.logger.Info().
		Dur("period", r.period).
		Dur("tick_interval", r.tickInterval).
		Int("strategies", len(r.strategies)).
		Msg("Session started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Session stopped")
			return ctx.Err()
		case <-tick.C:
			if r.reconciler != nil {
				r.reconciler.Tick(ctx)
			}
		case <-exec.C:
			now := time.Now()
			if !utils.IsTradeTime(now) {
				r.logger.Debug().Time("now", now).Msg("Outside trading hours")
				continue
			}
			r.execAll(ctx, now)
		}
	}
}

// RunBacktest steps strategies over historical timestamps from start to end,
// jumping across session boundaries. No reconciler runs: simulated fills are
// immediate and leave nothing to reconcile.
func (r *Runner) RunBacktest(ctx context.Context, start, end time.Time) error {
	current := start
	if !utils.IsTradeTime(current) {
		current = utils.NextTradeTime(current, 0)
	}
	for current.Before(end) {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.execAll(ctx, current)
		current = utils.NextTradeTime(current, r.period)
	}
	return nil
}

func (r *Runner) execAll(ctx context.Context, now time.Time) {
	for _, s := range r.strategies {
		if err := s.Exec(ctx, now); err != nil {
			r.logger.Error().Err(err).
				Int("strategy_id", s.StrategyID()).
				Msg("Strategy execution failed")
		}
	}
}
