package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"pair-trader/internal/models"
	"pair-trader/internal/risk"
)

// Property: cash moves only through recorded trades. After any sequence of
// submissions, cash equals initial minus buy notionals plus sell notionals
// over the record, regardless of how many submissions were refused.
func TestProperty_CashMatchesRecordedTrades(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("cash reconciles against the record", prop.ForAll(
		func(buys []int, sells []int, price float64) bool {
			limiter, err := risk.NewLimiter([]float64{0.9}, 1, false, zerolog.Nop())
			if err != nil {
				return false
			}
			l := NewLedger(1e6, limiter, testPairs, zerolog.Nop())

			for _, q := range buys {
				l.Submit("600519.SH", models.OrderSideBuy, q, price, 0)
			}
			for _, q := range sells {
				l.Submit("600519.SH", models.OrderSideSell, q, price, 0)
			}

			expected := 1e6
			for _, r := range l.Records() {
				if r.Side == models.OrderSideBuy {
					expected -= r.Notional()
				} else {
					expected += r.Notional()
				}
			}
			return math.Abs(l.Cash()-expected) < 1e-6
		},
		gen.SliceOfN(5, gen.IntRange(0, 500)),
		gen.SliceOfN(5, gen.IntRange(0, 800)),
		gen.Float64Range(1, 100),
	))

	properties.TestingRun(t)
}

// Property: at a constant price, trading moves value between cash and the
// book but never creates or destroys it. Mark-to-market equity stays at the
// initial cash for any admissible sequence.
func TestProperty_ConstantPricePreservesEquity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("equity invariant under constant price", prop.ForAll(
		func(qtys []int, price float64) bool {
			limiter, err := risk.NewLimiter([]float64{0.9}, 1, false, zerolog.Nop())
			if err != nil {
				return false
			}
			l := NewLedger(1e6, limiter, testPairs, zerolog.Nop())

			for i, q := range qtys {
				side := models.OrderSideBuy
				if i%2 == 1 {
					side = models.OrderSideSell
				}
				l.Submit("600519.SH", side, q, price, 0)
			}
			return math.Abs(l.MarkToMarket()-1e6) < 1e-6
		},
		gen.SliceOfN(8, gen.IntRange(0, 300)),
		gen.Float64Range(1, 50),
	))

	properties.TestingRun(t)
}
