package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pair-trader/pkg/utils"
)

type countingTicker struct {
	ticks atomic.Int64
}

func (c *countingTicker) Tick(ctx context.Context) {
	c.ticks.Add(1)
}

type recordingStrategy struct {
	id    int
	times []time.Time
}

func (s *recordingStrategy) StrategyID() int { return s.id }

func (s *recordingStrategy) Exec(ctx context.Context, now time.Time) error {
	s.times = append(s.times, now)
	return nil
}

func TestRunDrivesReconcilerUntilCancelled(t *testing.T) {
	ticker := &countingTicker{}
	r := NewRunner(nil, ticker, time.Hour, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Errorf("Run = %v, want context.DeadlineExceeded", err)
	}
	if ticker.ticks.Load() == 0 {
		t.Error("reconciler must tick while the session runs")
	}
}

func TestRunBacktestStaysInsideTradingHours(t *testing.T) {
	s := &recordingStrategy{id: 0}
	r := NewRunner([]Strategy{s}, nil, time.Minute, time.Second, zerolog.Nop())

	// Monday morning close into the afternoon session.
	start := time.Date(2026, 3, 2, 11, 28, 0, 0, utils.ChinaLocation)
	end := time.Date(2026, 3, 2, 13, 1, 0, 0, utils.ChinaLocation)
	if err := r.RunBacktest(context.Background(), start, end); err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}

	if len(s.times) == 0 {
		t.Fatal("strategy must execute at least once")
	}
	for _, ts := range s.times {
		if !utils.IsTradeTime(ts) {
			t.Errorf("executed outside trading hours at %v", ts)
		}
	}
	afternoonOpen := time.Date(2026, 3, 2, 13, 0, 0, 0, utils.ChinaLocation)
	found := false
	for _, ts := range s.times {
		if ts.Equal(afternoonOpen) {
			found = true
		}
	}
	if !found {
		t.Error("backtest must jump the lunch break to the 13:00 open")
	}
}

func TestRunBacktestSkipsClosedStart(t *testing.T) {
	s := &recordingStrategy{id: 0}
	r := NewRunner([]Strategy{s}, nil, time.Minute, time.Second, zerolog.Nop())

	// Saturday start steps to Monday's open.
	start := time.Date(2026, 3, 7, 10, 0, 0, 0, utils.ChinaLocation)
	end := time.Date(2026, 3, 9, 9, 31, 0, 0, utils.ChinaLocation)
	if err := r.RunBacktest(context.Background(), start, end); err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}

	if len(s.times) == 0 {
		t.Fatal("strategy must execute at least once")
	}
	monOpen := time.Date(2026, 3, 9, 9, 30, 0, 0, utils.ChinaLocation)
	if !s.times[0].Equal(monOpen) {
		t.Errorf("first execution at %v, want Monday 09:30 open", s.times[0])
	}
}

func TestRunBacktestHonoursCancellation(t *testing.T) {
	s := &recordingStrategy{id: 0}
	r := NewRunner([]Strategy{s}, nil, time.Minute, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, utils.ChinaLocation)
	end := time.Date(2026, 3, 2, 11, 0, 0, 0, utils.ChinaLocation)
	if err := r.RunBacktest(ctx, start, end); err != context.Canceled {
		t.Errorf("RunBacktest = %v, want context.Canceled", err)
	}
}
