package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pair-trader/internal/models"
)

// addReportCommands adds reporting commands.
func addReportCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Session and trade reporting",
		Long:  "Review applied trades and per-strategy session outcomes.",
	}

	cmd.AddCommand(newReportTradesCmd(app))
	cmd.AddCommand(newReportSessionCmd(app))

	rootCmd.AddCommand(cmd)
	rootCmd.AddCommand(newPositionsCmd(app))
}

func newReportTradesCmd(app *App) *cobra.Command {
	c := &cobra.Command{
		Use:   "trades",
		Short: "List applied trades for a strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			strategyID, _ := cmd.Flags().GetInt("strategy")

			trades, err := loadTrades(cmd.Context(), app, strategyID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}

			if len(trades) == 0 {
				output.Info("No trades recorded for strategy %d.", strategyID)
				return nil
			}

			output.Bold("Trades - strategy %d", strategyID)
			table := NewTable(output, "Time", "Instrument", "Side", "Qty", "Price", "Notional")
			for _, t := range trades {
				table.AddRow(
					formatTradeTime(t.Timestamp),
					t.InstrumentID,
					output.SideString(string(t.Side)),
					fmt.Sprintf("%d", t.Quantity),
					fmt.Sprintf("%.2f", t.Price),
					fmt.Sprintf("%.2f", t.Notional()),
				)
			}
			table.Render()
			return nil
		},
	}
	c.Flags().Int("strategy", 0, "strategy ID")
	return c
}

// formatTradeTime renders a trade timestamp for the table. Trades recorded
// without a timestamp print a dash instead of the zero time.
func formatTradeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// loadTrades prefers the persistent store and falls back to the in-memory
// ledger when no store is wired.
func loadTrades(ctx context.Context, app *App, strategyID int) ([]models.Order, error) {
	if app.Store != nil {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return app.Store.GetTrades(ctx, strategyID)
	}
	if app.Ledger != nil {
		return app.Ledger.Report(strategyID), nil
	}
	return nil, fmt.Errorf("no trade source available")
}

func newReportSessionCmd(app *App) *cobra.Command {
	c := &cobra.Command{
		Use:   "session",
		Short: "Summarize the simulated session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Ledger == nil {
				return fmt.Errorf("session report requires sim mode, current mode is %q", app.Config.Trading.Mode)
			}
			strategyID, _ := cmd.Flags().GetInt("strategy")

			trades := app.Ledger.Report(strategyID)
			initial := app.Config.Trading.InitialCash
			equity := app.Ledger.MarkToMarket()
			ret := 0.0
			if initial != 0 {
				ret = (equity - initial) / initial * 100
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"strategy_id":  strategyID,
					"initial_cash": initial,
					"cash":         app.Ledger.Cash(),
					"equity":       equity,
					"return_pct":   ret,
					"trades":       len(trades),
				})
			}

			output.Bold("Session - strategy %d", strategyID)
			output.Printf("Initial cash:  %.2f\n", initial)
			output.Printf("Cash:          %.2f\n", app.Ledger.Cash())
			output.Printf("Equity:        %.2f\n", equity)
			output.Printf("Return:        %s\n", output.FormatPercent(ret))
			output.Printf("Trades:        %d\n", len(trades))
			return nil
		},
	}
	c.Flags().Int("strategy", 0, "strategy ID")
	return c
}

func newPositionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "positions",
		Short: "Show current positions for every configured pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			var positions []*models.Position
			if app.Config.IsSimMode() {
				for _, pair := range app.Config.Strategies.Pairs {
					for _, id := range pair {
						if p := app.Ledger.Position(id); p != nil {
							positions = append(positions, p)
						}
					}
				}
			} else {
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				if err := app.Client.Connect(ctx); err != nil {
					return err
				}
				defer app.Client.Close()
				for _, pair := range app.Config.Strategies.Pairs {
					queried, err := app.Client.QueryPositions(ctx, pair)
					if err != nil {
						output.Error("Failed to query positions: %v", err)
						return err
					}
					for _, p := range queried {
						if p != nil {
							positions = append(positions, p)
						}
					}
				}
			}

			if output.IsJSON() {
				return output.JSON(positions)
			}

			if len(positions) == 0 {
				output.Info("No open positions.")
				return nil
			}

			table := NewTable(output, "Instrument", "Qty", "Tradable", "Locked", "AvgCost", "Last", "Value")
			for _, p := range positions {
				table.AddRow(
					p.InstrumentID,
					fmt.Sprintf("%d", p.Quantity),
					fmt.Sprintf("%d", p.TradableQty),
					fmt.Sprintf("%d", p.LockedQty),
					fmt.Sprintf("%.2f", p.AvgCost),
					fmt.Sprintf("%.2f", p.LastPrice),
					fmt.Sprintf("%.2f", p.Value()),
				)
			}
			table.Render()
			return nil
		},
	}
}
