package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pair-trader/internal/models"
	"pair-trader/internal/session"
	"pair-trader/pkg/utils"
)

func addTradeCommands(rootCmd *cobra.Command, app *App) {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live reconciliation session",
		Long: `Connects to the execution gateway and drives the order reconciler on its
configured interval until interrupted. Signal producers submit orders
through the router while the session runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Config.IsSimMode() {
				return fmt.Errorf("run requires live mode, current mode is %q", app.Config.Trading.Mode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := app.Client.Connect(ctx); err != nil {
				return err
			}
			defer app.Client.Close()

			runner := session.NewRunner(app.Strategies, app.Reconciler,
				app.Config.Strategies.Period, app.Config.Reconciler.TickInterval, app.Logger)
			err := runner.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Step a simulated session and report the outcome",
		Long: `Drives the simulated ledger over a historical window of trading
timestamps. Signal producers registered through the session package submit
orders via the router; the command prints the mark-to-market result and the
per-strategy trade report when the window ends.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Config.IsSimMode() {
				return fmt.Errorf("simulate requires sim mode, current mode is %q", app.Config.Trading.Mode)
			}
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			start, err := time.ParseInLocation("2006-01-02", startStr, utils.ChinaLocation)
			if err != nil {
				return fmt.Errorf("parsing --start: %w", err)
			}
			end, err := time.ParseInLocation("2006-01-02", endStr, utils.ChinaLocation)
			if err != nil {
				return fmt.Errorf("parsing --end: %w", err)
			}

			runner := session.NewRunner(app.Strategies, nil,
				app.Config.Strategies.Period, app.Config.Reconciler.TickInterval, app.Logger)
			if err := runner.RunBacktest(cmd.Context(), start, end.AddDate(0, 0, 1)); err != nil {
				return err
			}

			output := NewOutput(cmd)
			initial := app.Config.Trading.InitialCash
			equity := app.Ledger.MarkToMarket()
			ret := 0.0
			if initial != 0 {
				ret = (equity - initial) / initial * 100
			}
			output.Bold("Simulation %s to %s", startStr, endStr)
			output.Printf("Equity: %.2f (%s)\n", equity, output.FormatPercent(ret))
			for i := 0; i < app.Config.NumStrategies(); i++ {
				trades := app.Ledger.Report(i)
				output.Printf("Strategy %d: %d trades\n", i, len(trades))
			}

			if app.Store != nil {
				if err := app.Store.SaveTrades(cmd.Context(), app.Ledger.Records()); err != nil {
					output.Warning("Failed to persist trades: %v", err)
				}
			}
			return nil
		},
	}
	today := time.Now().In(utils.ChinaLocation).Format("2006-01-02")
	simulateCmd.Flags().String("start", today, "backtest start date (YYYY-MM-DD)")
	simulateCmd.Flags().String("end", today, "backtest end date (YYYY-MM-DD), inclusive")

	admitCmd := &cobra.Command{
		Use:   "admit",
		Short: "Dry-run the position-limit check for a proposed order",
		RunE: func(cmd *cobra.Command, args []string) error {
			strategyID, _ := cmd.Flags().GetInt("strategy")
			qty, _ := cmd.Flags().GetInt("qty")
			price, _ := cmd.Flags().GetFloat64("price")

			if strategyID < 0 || strategyID >= app.Config.NumStrategies() {
				return fmt.Errorf("strategy %d out of range (%d configured)", strategyID, app.Config.NumStrategies())
			}

			var positions []*models.Position
			var equity float64
			if app.Config.IsSimMode() {
				for _, id := range app.Config.Strategies.Pairs[strategyID] {
					if p := app.Ledger.Position(id); p != nil {
						positions = append(positions, p)
					}
				}
				equity = app.Ledger.MarkToMarket()
			} else {
				if err := app.Client.Connect(cmd.Context()); err != nil {
					return err
				}
				defer app.Client.Close()
				var err error
				positions, err = app.Client.QueryPositions(cmd.Context(), app.Config.Strategies.Pairs[strategyID])
				if err != nil {
					return err
				}
				equity, err = app.Client.QueryTotalEquity(cmd.Context())
				if err != nil {
					return err
				}
			}

			output := NewOutput(cmd)
			if app.Limiter.Admit(positions, strategyID, qty, price, equity) {
				output.Success("ADMIT: strategy %d may buy %d @ %.2f", strategyID, qty, price)
			} else {
				output.Warning("REFUSE: strategy %d over budget for %d @ %.2f", strategyID, qty, price)
				if clamped := app.Limiter.MaxBuyQty(positions, nil, qty, price, equity); clamped > 0 {
					output.Info("Largest admissible buy at %.2f: %d shares", price, clamped)
				}
			}
			return nil
		},
	}
	admitCmd.Flags().Int("strategy", 0, "strategy ID")
	admitCmd.Flags().Int("qty", 0, "proposed quantity")
	admitCmd.Flags().Float64("price", 0, "proposed price")

	rootCmd.AddCommand(runCmd, simulateCmd, admitCmd)
}
