package ledger

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	apperrors "pair-trader/internal/errors"
	"pair-trader/internal/models"
	"pair-trader/internal/risk"
)

var testPairs = [][]string{{"600519.SH", "000858.SZ"}}

func newTestLedger(t *testing.T, initialCash float64, budget float64) *Ledger {
	t.Helper()
	limiter, err := risk.NewLimiter([]float64{budget}, 1, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter: %v", err)
	}
	return NewLedger(initialCash, limiter, testPairs, zerolog.Nop())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestSubmitBuyDebitsCash(t *testing.T) {
	l := newTestLedger(t, 100000, 0.5)

	receipt, err := l.Submit("600519.SH", models.OrderSideBuy, 100, 10, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.OrderID == "" {
		t.Error("applied buy must carry a receipt ID")
	}
	if !almostEqual(l.Cash(), 99000) {
		t.Errorf("Cash = %v, want 99000", l.Cash())
	}

	pos := l.Position("600519.SH")
	if pos == nil {
		t.Fatal("position must exist after buy")
	}
	if pos.Quantity != 100 {
		t.Errorf("Quantity = %d, want 100", pos.Quantity)
	}
	if !almostEqual(pos.AvgCost, 10) {
		t.Errorf("AvgCost = %v, want 10", pos.AvgCost)
	}
}

func TestSubmitSellCreditsCashKeepsAvgCost(t *testing.T) {
	l := newTestLedger(t, 100000, 0.5)

	if _, err := l.Submit("600519.SH", models.OrderSideBuy, 100, 10, 0); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := l.Submit("600519.SH", models.OrderSideSell, 50, 12, 0); err != nil {
		t.Fatalf("sell: %v", err)
	}

	if !almostEqual(l.Cash(), 99600) {
		t.Errorf("Cash = %v, want 99600", l.Cash())
	}
	pos := l.Position("600519.SH")
	if pos.Quantity != 50 {
		t.Errorf("Quantity = %d, want 50", pos.Quantity)
	}
	// Sells never reprice the book.
	if !almostEqual(pos.AvgCost, 10) {
		t.Errorf("AvgCost = %v, want 10 after sell", pos.AvgCost)
	}
	if !almostEqual(pos.LastPrice, 12) {
		t.Errorf("LastPrice = %v, want 12", pos.LastPrice)
	}
}

func TestBuyAveragesCostVolumeWeighted(t *testing.T) {
	l := newTestLedger(t, 1000000, 0.5)

	if _, err := l.Submit("600519.SH", models.OrderSideBuy, 100, 10, 0); err != nil {
		t.Fatalf("buy 1: %v", err)
	}
	if _, err := l.Submit("600519.SH", models.OrderSideBuy, 300, 20, 0); err != nil {
		t.Fatalf("buy 2: %v", err)
	}

	pos := l.Position("600519.SH")
	// (100*10 + 300*20) / 400 = 17.5
	if !almostEqual(pos.AvgCost, 17.5) {
		t.Errorf("AvgCost = %v, want 17.5", pos.AvgCost)
	}
}

func TestOversellRejectsWithoutMutation(t *testing.T) {
	l := newTestLedger(t, 100000, 0.5)

	if _, err := l.Submit("600519.SH", models.OrderSideBuy, 50, 10, 0); err != nil {
		t.Fatalf("buy: %v", err)
	}
	cashBefore := l.Cash()

	_, err := l.Submit("600519.SH", models.OrderSideSell, 100, 10, 0)
	if err == nil {
		t.Fatal("oversell must be rejected")
	}
	if !apperrors.Is(err, apperrors.ErrInsufficientPosition) {
		t.Errorf("expected ErrInsufficientPosition, got %v", err)
	}
	if l.Cash() != cashBefore {
		t.Error("rejected sell must not touch cash")
	}
	if pos := l.Position("600519.SH"); pos.Quantity != 50 {
		t.Errorf("rejected sell must not touch the book, Quantity = %d", pos.Quantity)
	}
	if n := len(l.Records()); n != 1 {
		t.Errorf("rejected sell must not be recorded, got %d records", n)
	}
}

func TestSellUnknownInstrumentRejects(t *testing.T) {
	l := newTestLedger(t, 100000, 0.5)

	_, err := l.Submit("000858.SZ", models.OrderSideSell, 10, 10, 0)
	if err == nil {
		t.Fatal("sell of never-held instrument must be rejected")
	}
	if !apperrors.Is(err, apperrors.ErrInsufficientPosition) {
		t.Errorf("expected ErrInsufficientPosition, got %v", err)
	}
}

func TestBuyOverBudgetRejectsWithoutMutation(t *testing.T) {
	l := newTestLedger(t, 100000, 0.5)

	// Proposed 50000 equals the budgeted 50000 exactly.
	_, err := l.Submit("600519.SH", models.OrderSideBuy, 100, 500, 0)
	if err == nil {
		t.Fatal("buy at the budget boundary must be refused")
	}
	var limitErr *apperrors.LimitError
	if !apperrors.As(err, &limitErr) {
		t.Fatalf("expected *LimitError, got %T", err)
	}
	if l.Cash() != 100000 {
		t.Error("refused buy must not touch cash")
	}
	if l.Position("600519.SH") != nil {
		t.Error("refused buy must not create a position")
	}
}

func TestZeroQuantityIsNoOp(t *testing.T) {
	l := newTestLedger(t, 100000, 0.5)

	receipt, err := l.Submit("600519.SH", models.OrderSideBuy, 0, 10, 0)
	if err != nil {
		t.Fatalf("zero-quantity submit must succeed, got %v", err)
	}
	if receipt.OrderID != "" {
		t.Error("zero-quantity submit must not produce a receipt ID")
	}
	if n := len(l.Records()); n != 0 {
		t.Errorf("zero-quantity submit must not be recorded, got %d records", n)
	}
}

func TestMarkToMarketValuesAtLastPrice(t *testing.T) {
	l := newTestLedger(t, 100000, 0.9)

	if _, err := l.Submit("600519.SH", models.OrderSideBuy, 100, 10, 0); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// Cash 99000 + 100 shares at last price 10.
	if !almostEqual(l.MarkToMarket(), 100000) {
		t.Errorf("MarkToMarket = %v, want 100000", l.MarkToMarket())
	}

	if _, err := l.Submit("600519.SH", models.OrderSideSell, 10, 20, 0); err != nil {
		t.Fatalf("sell: %v", err)
	}
	// Cash 99200 + 90 shares at last price 20.
	if !almostEqual(l.MarkToMarket(), 101000) {
		t.Errorf("MarkToMarket = %v, want 101000", l.MarkToMarket())
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() (float64, []models.Order) {
		l := newTestLedger(t, 100000, 0.5)
		l.Submit("600519.SH", models.OrderSideBuy, 100, 10, 0)
		l.Submit("000858.SZ", models.OrderSideBuy, 200, 5, 0)
		l.Submit("600519.SH", models.OrderSideSell, 30, 11, 0)
		l.Submit("000858.SZ", models.OrderSideSell, 200, 4.5, 0)
		return l.MarkToMarket(), l.Records()
	}

	v1, r1 := run()
	v2, r2 := run()
	if v1 != v2 {
		t.Errorf("replay diverged: %v vs %v", v1, v2)
	}
	if len(r1) != len(r2) {
		t.Fatalf("record counts diverged: %d vs %d", len(r1), len(r2))
	}
	for i := range r1 {
		if r1[i] != r2[i] {
			t.Errorf("record %d diverged: %+v vs %+v", i, r1[i], r2[i])
		}
	}
}

func TestReportFiltersByStrategy(t *testing.T) {
	limiter, err := risk.NewLimiter([]float64{0.4, 0.4}, 2, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter: %v", err)
	}
	pairs := [][]string{{"600519.SH", "000858.SZ"}, {"601318.SH", "600036.SH"}}
	l := NewLedger(1000000, limiter, pairs, zerolog.Nop())

	l.Submit("600519.SH", models.OrderSideBuy, 100, 10, 0)
	l.Submit("601318.SH", models.OrderSideBuy, 50, 20, 1)
	l.Submit("600519.SH", models.OrderSideSell, 100, 11, 0)

	if got := len(l.Report(0)); got != 2 {
		t.Errorf("strategy 0 trades = %d, want 2", got)
	}
	if got := len(l.Report(1)); got != 1 {
		t.Errorf("strategy 1 trades = %d, want 1", got)
	}
}
