package reconcile

import "time"

// Status is the lifecycle state of a tracked order group.
type Status string

const (
	// StatusPending: legs submitted, grace window possibly still running.
	StatusPending Status = "PENDING"
	// StatusPartiallyResolved: a corrective re-order for the lagging leg is
	// outstanding. Only the rebalance policy produces this state.
	StatusPartiallyResolved Status = "PARTIALLY_RESOLVED"
	// StatusResolved: every leg is filled-and-reconciled or cancelled. The
	// group is purged at the next compaction.
	StatusResolved Status = "RESOLVED"
)

// Leg is one side of a paired submission. It is owned exclusively by its
// group; the reconciler mutates it when a corrective re-order replaces the
// original gateway order.
type Leg struct {
	OrderID      string
	InstrumentID string
	SubmittedAt  time.Time

	// filled accumulates shares traded by orders this leg has already
	// cycled through. The live order's own fill sits on top of it, so
	// imbalance is always measured on the leg's cumulative total.
	filled int
}

// Group is a set of legs submitted together for one strategic decision.
type Group struct {
	StrategyID int
	Legs       []Leg
	Status     Status
}

// NewGroup creates a pending group from submitted legs.
func NewGroup(strategyID int, legs []Leg) *Group {
	return &Group{
		StrategyID: strategyID,
		Legs:       legs,
		Status:     StatusPending,
	}
}

// readyAt returns the instant the grace window ends: every leg must have
// had graceDelay since its submission.
func (g *Group) readyAt(graceDelay time.Duration) time.Time {
	var latest time.Time
	for _, leg := range g.Legs {
		if leg.SubmittedAt.After(latest) {
			latest = leg.SubmittedAt
		}
	}
	return latest.Add(graceDelay)
}
