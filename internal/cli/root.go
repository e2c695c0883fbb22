// Package cli provides the command-line interface for the pair-trading
// application.
package cli

import (
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pair-trader/internal/config"
	"pair-trader/internal/gateway"
	"pair-trader/internal/ledger"
	"pair-trader/internal/logging"
	"pair-trader/internal/models"
	"pair-trader/internal/reconcile"
	"pair-trader/internal/risk"
	"pair-trader/internal/router"
	"pair-trader/internal/session"
	"pair-trader/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	Client     *gateway.Client
	Limiter    *risk.Limiter
	Ledger     *ledger.Ledger
	Reconciler *reconcile.Reconciler
	Router     *router.Router
	Store      store.TradeStore

	// Strategies are signal producers registered by embedding callers
	// before Execute; the bare CLI runs with none.
	Strategies []session.Strategy
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "pairtrader",
		Short: "Pair-trader - execution-risk and order-reconciliation engine",
		Long: `Pair-trader checks every order against a per-strategy capital budget
before it reaches the market, executes admitted orders against a simulated
ledger or a live gateway, and reconciles paired order legs until they fill,
time out, or are cancelled.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return app.wire()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/pair-trader)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "output results as JSON")

	addTradeCommands(rootCmd, app)
	addReportCommands(rootCmd, app)

	return rootCmd
}

// wire builds the execution stack for the configured mode. Budget shape
// errors surface here, before any command runs.
func (a *App) wire() error {
	cfg := a.Config

	limiter, err := risk.NewLimiter(cfg.Strategies.Budgets, cfg.NumStrategies(),
		cfg.Strategies.BudgetAvgMode, a.Logger)
	if err != nil {
		return err
	}
	a.Limiter = limiter

	dbPath := filepath.Join(config.DefaultConfigDir(), "trader.db")
	tradeStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Trade store unavailable, reports disabled")
	} else {
		a.Store = tradeStore
	}

	if cfg.IsSimMode() {
		a.Ledger = ledger.NewLedger(cfg.Trading.InitialCash, limiter, cfg.Strategies.Pairs, a.Logger)
		a.Router = router.NewRouter(models.ModeSim, limiter, a.Ledger, nil, nil,
			cfg.Strategies.Pairs, a.Logger)
		return nil
	}

	a.Client = gateway.NewClient(gateway.ClientConfig{
		Address:           cfg.Gateway.Address,
		AccountID:         cfg.Gateway.AccountID,
		Timeout:           cfg.Gateway.Timeout,
		ReconnectAttempts: cfg.Gateway.ReconnectAttempts,
	}, a.Logger)

	a.Reconciler = reconcile.NewReconciler(a.Client, a.Client, reconcile.Config{
		GraceDelay:   cfg.Reconciler.GraceDelay,
		QueryTimeout: cfg.Gateway.Timeout,
		Policy:       reconcile.ResolutionPolicy(cfg.Reconciler.Policy),
		SlidingPoint: cfg.Reconciler.SlidingPoint,
	}, a.Logger)

	a.Router = router.NewRouter(models.ModeLive, limiter, nil, a.Client, a.Reconciler,
		cfg.Strategies.Pairs, a.Logger)
	return nil
}
