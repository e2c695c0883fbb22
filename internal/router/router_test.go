package router

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "pair-trader/internal/errors"
	"pair-trader/internal/gateway"
	"pair-trader/internal/ledger"
	"pair-trader/internal/models"
	"pair-trader/internal/reconcile"
	"pair-trader/internal/risk"
)

var testPairs = [][]string{{"600519.SH", "000858.SZ"}}

// fakeGateway serves router tests with canned positions and equity.
type fakeGateway struct {
	mu        sync.Mutex
	positions map[string]*models.Position
	equity    float64
	posErr    error
	submitted []*models.Order
	nextID    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{positions: make(map[string]*models.Position), equity: 100000}
}

func (f *fakeGateway) SubmitOrder(ctx context.Context, order *models.Order) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.submitted = append(f.submitted, order)
	return fmt.Sprintf("ORD-%d", f.nextID), nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, orderID string) error { return nil }

func (f *fakeGateway) QueryOrder(ctx context.Context, orderID string) (*gateway.Fill, error) {
	return nil, apperrors.ErrOrderNotFound
}

func (f *fakeGateway) QueryPositions(ctx context.Context, instrumentIDs []string) ([]*models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.posErr != nil {
		return nil, f.posErr
	}
	out := make([]*models.Position, len(instrumentIDs))
	for i, id := range instrumentIDs {
		out[i] = f.positions[id]
	}
	return out, nil
}

func (f *fakeGateway) QueryTotalEquity(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.equity, nil
}

func newSimRouter(t *testing.T, budget, initialCash float64) (*Router, *ledger.Ledger) {
	t.Helper()
	limiter, err := risk.NewLimiter([]float64{budget}, 1, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter: %v", err)
	}
	lgr := ledger.NewLedger(initialCash, limiter, testPairs, zerolog.Nop())
	return NewRouter(models.ModeSim, limiter, lgr, nil, nil, testPairs, zerolog.Nop()), lgr
}

func newLiveRouter(t *testing.T, gw *fakeGateway) (*Router, *reconcile.Reconciler) {
	t.Helper()
	limiter, err := risk.NewLimiter([]float64{0.5}, 1, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter: %v", err)
	}
	rec := reconcile.NewReconciler(gw, nil, reconcile.Config{GraceDelay: time.Hour}, zerolog.Nop())
	return NewRouter(models.ModeLive, limiter, nil, gw, rec, testPairs, zerolog.Nop()), rec
}

func TestZeroQuantityIsNoOp(t *testing.T) {
	r, lgr := newSimRouter(t, 0.5, 100000)

	receipt, err := r.Submit(context.Background(), &models.Order{
		InstrumentID: "600519.SH",
		Side:         models.OrderSideBuy,
		Quantity:     0,
		Price:        10,
	})
	if err != nil {
		t.Fatalf("zero-quantity submit must succeed, got %v", err)
	}
	if receipt.OrderID != "" {
		t.Error("zero-quantity submit must not produce a receipt")
	}
	if len(lgr.Records()) != 0 {
		t.Error("zero-quantity submit must not reach the ledger")
	}
}

// Two concurrent orders that each pass the limit alone but not summed must
// not both be admitted: the per-strategy lock makes check-then-apply atomic.
func TestConcurrentSubmitsAdmitAtMostBudget(t *testing.T) {
	r, _ := newSimRouter(t, 0.5, 100000)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = r.Submit(context.Background(), &models.Order{
				InstrumentID: "600519.SH",
				Side:         models.OrderSideBuy,
				Quantity:     40,
				Price:        1000,
			})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range results {
		if err == nil {
			admitted++
			continue
		}
		if !apperrors.Is(err, apperrors.ErrBudgetExceeded) {
			t.Errorf("unexpected refusal: %v", err)
		}
	}
	if admitted != 1 {
		t.Errorf("admitted = %d, want exactly 1", admitted)
	}
}

func TestLiveBuyQueryFailureAdmits(t *testing.T) {
	gw := newFakeGateway()
	gw.posErr = apperrors.ErrGatewayUnavailable
	r, _ := newLiveRouter(t, gw)

	receipt, err := r.Submit(context.Background(), &models.Order{
		InstrumentID: "600519.SH",
		Side:         models.OrderSideBuy,
		Quantity:     100,
		Price:        10,
	})
	if err != nil {
		t.Fatalf("buy with unavailable exposure data must proceed, got %v", err)
	}
	if receipt.OrderID == "" {
		t.Error("submitted order must carry the gateway order ID")
	}
}

func TestLiveBuyOverBudgetRefused(t *testing.T) {
	gw := newFakeGateway()
	gw.positions["600519.SH"] = &models.Position{InstrumentID: "600519.SH"}
	gw.positions["000858.SZ"] = &models.Position{InstrumentID: "000858.SZ"}
	r, _ := newLiveRouter(t, gw)

	// Equity 100000, budget 0.5, proposed exactly 50000.
	_, err := r.Submit(context.Background(), &models.Order{
		InstrumentID: "600519.SH",
		Side:         models.OrderSideBuy,
		Quantity:     100,
		Price:        500,
	})
	if !apperrors.Is(err, apperrors.ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.submitted) != 0 {
		t.Error("refused order must never reach the gateway")
	}
}

func TestLiveSellWithoutPositionRefused(t *testing.T) {
	gw := newFakeGateway()
	r, _ := newLiveRouter(t, gw)

	_, err := r.Submit(context.Background(), &models.Order{
		InstrumentID: "600519.SH",
		Side:         models.OrderSideSell,
		Quantity:     10,
		Price:        10,
	})
	if !apperrors.Is(err, apperrors.ErrInsufficientPosition) {
		t.Errorf("expected ErrInsufficientPosition, got %v", err)
	}
}

func TestLiveSellClampedByTradableQty(t *testing.T) {
	gw := newFakeGateway()
	gw.positions["600519.SH"] = &models.Position{
		InstrumentID: "600519.SH",
		Quantity:     100,
		TradableQty:  40,
		LockedQty:    60,
	}
	r, _ := newLiveRouter(t, gw)

	_, err := r.Submit(context.Background(), &models.Order{
		InstrumentID: "600519.SH",
		Side:         models.OrderSideSell,
		Quantity:     50,
		Price:        10,
	})
	if !apperrors.Is(err, apperrors.ErrInsufficientPosition) {
		t.Errorf("sell above tradable quantity must be refused, got %v", err)
	}

	_, err = r.Submit(context.Background(), &models.Order{
		InstrumentID: "600519.SH",
		Side:         models.OrderSideSell,
		Quantity:     40,
		Price:        10,
	})
	if err != nil {
		t.Errorf("sell within tradable quantity must proceed, got %v", err)
	}
}

func TestSubmitPairTracksGroup(t *testing.T) {
	gw := newFakeGateway()
	gw.positions["000858.SZ"] = &models.Position{
		InstrumentID: "000858.SZ",
		Quantity:     200,
		TradableQty:  200,
	}
	r, rec := newLiveRouter(t, gw)

	receipts, err := r.SubmitPair(context.Background(), []*models.Order{
		{InstrumentID: "600519.SH", Side: models.OrderSideBuy, Quantity: 100, Price: 10},
		{InstrumentID: "000858.SZ", Side: models.OrderSideSell, Quantity: 100, Price: 10},
	})
	if err != nil {
		t.Fatalf("SubmitPair: %v", err)
	}
	if len(receipts) != 2 {
		t.Errorf("receipts = %d, want 2", len(receipts))
	}
	if rec.Size() != 1 {
		t.Errorf("one group must be tracked, Size = %d", rec.Size())
	}
}

func TestSubmitPairPartialStillTracked(t *testing.T) {
	gw := newFakeGateway()
	// No position for the sell leg: it will be refused.
	r, rec := newLiveRouter(t, gw)

	receipts, err := r.SubmitPair(context.Background(), []*models.Order{
		{InstrumentID: "600519.SH", Side: models.OrderSideBuy, Quantity: 100, Price: 10},
		{InstrumentID: "000858.SZ", Side: models.OrderSideSell, Quantity: 100, Price: 10},
	})
	if err == nil {
		t.Error("refused leg must surface as an error")
	}
	if len(receipts) != 1 {
		t.Errorf("receipts = %d, want 1", len(receipts))
	}
	if rec.Size() != 1 {
		t.Errorf("partial group must still be tracked, Size = %d", rec.Size())
	}
}

func TestSubmitPairSimInsertsNothing(t *testing.T) {
	r, _ := newSimRouter(t, 0.5, 100000)

	receipts, err := r.SubmitPair(context.Background(), []*models.Order{
		{InstrumentID: "600519.SH", Side: models.OrderSideBuy, Quantity: 100, Price: 10},
	})
	if err != nil {
		t.Fatalf("SubmitPair: %v", err)
	}
	if len(receipts) != 1 {
		t.Errorf("receipts = %d, want 1", len(receipts))
	}
}
