package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Rohianon/folio/cmd/folio/internal/localstore"
	"github.com/Rohianon/folio/cmd/folio/internal/output"
	"github.com/Rohianon/folio/cmd/folio/internal/tui"
	"github.com/Rohianon/folio/pkg/format"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/metrics"
	"github.com/Rohianon/folio/pkg/portfolio"
	"github.com/Rohianon/folio/pkg/refresh"
	"github.com/Rohianon/folio/pkg/render"
	"github.com/Rohianon/folio/pkg/state"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live auto-refreshing dashboard",
	Long: `Open the live dashboard. It refreshes every refresh.interval.

Keys: r refresh · tab/n next holder · shift+tab/p previous holder · q quit

When output is not a terminal a single frame is printed instead.`,
	Annotations: map[string]string{logMode: logModeFile},
	RunE:        runDashboard,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh on a schedule and log results",
	Long: `Run headless: refresh on refresh.schedule (cron syntax, e.g. "@every 30s"),
log each cycle and report triggered price alerts. Stops on Ctrl-C.`,
	Annotations: map[string]string{logMode: logModeLive},
	RunE:        runWatch,
}

var (
	onceFlag        bool
	metricsAddrFlag string
	scheduleFlag    string
)

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(watchCmd)

	dashboardCmd.Flags().Int64Var(&holderFlag, "holder", 0, "holder to open (default: first)")
	dashboardCmd.Flags().BoolVar(&chartsFlag, "charts", false, "write charts to charts.dir on every refresh")
	dashboardCmd.Flags().BoolVar(&onceFlag, "once", false, "print one frame and exit")

	watchCmd.Flags().Int64Var(&holderFlag, "holder", 0, "holder to watch (default: first)")
	watchCmd.Flags().StringVar(&scheduleFlag, "schedule", "", "cron schedule (overrides refresh.schedule)")
	watchCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "serve /metrics on this address (e.g. :9091)")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	store, err := openLocal()
	if err != nil {
		return err
	}

	opts := tui.Options{Interval: cfg.Refresh.Interval, Local: store}
	if chartsFlag {
		if opts.Charts, err = newCharts(); err != nil {
			return err
		}
	}

	ctrl := newController(newAPI(), refresh.Options{})
	if holderFlag > 0 {
		ctrl.SelectHolder(holderFlag)
	}

	if onceFlag || !term.IsTerminal(int(os.Stdout.Fd())) {
		output.Println(tui.RenderOnce(cmd.Context(), ctrl, opts))
		return nil
	}

	logger.Info().Str("api", cfg.API.URL).Dur("interval", cfg.Refresh.Interval).Msg("Dashboard started")
	return tui.Run(cmd.Context(), ctrl, opts)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openLocal()
	if err != nil {
		return err
	}

	ctrl := newController(newAPI(), refresh.Options{
		OnRender: func(snap state.Snapshot, summary portfolio.Summary) {
			logCycle(snap, summary)
			checkAlerts(store, snap)
		},
		OnError: func(err error) {
			logger.Warn().Msg(render.OneLine(err))
		},
	})

	if err := selectWatchedHolder(ctx, ctrl); err != nil {
		return err
	}

	if metricsAddrFlag != "" {
		stop := serveMetrics(metricsAddrFlag)
		defer stop()
	}

	schedule := scheduleFlag
	if schedule == "" {
		schedule = cfg.Refresh.Schedule
	}
	return ctrl.Run(ctx, schedule)
}

// selectWatchedHolder picks --holder, or the first holder the backend
// returns, and applies the first cycle for it.
func selectWatchedHolder(ctx context.Context, ctrl *refresh.Controller) error {
	if holderFlag > 0 {
		ctrl.SelectHolder(holderFlag)
		_, err := ctrl.Refresh(ctx, refresh.TriggerInitial)
		return err
	}

	res, err := ctrl.Refresh(ctx, refresh.TriggerInitial)
	if err != nil {
		return err
	}
	if len(res.Snapshot.Holders) == 0 {
		if res.Err != nil {
			return res.Err
		}
		logger.Warn().Msg("No holders yet; only market data will be refreshed")
		return nil
	}

	ctrl.SelectHolder(res.Snapshot.Holders[0].ID)
	_, err = ctrl.Refresh(ctx, refresh.TriggerInitial)
	return err
}

func logCycle(snap state.Snapshot, summary portfolio.Summary) {
	if snap.SelectedHolder == 0 {
		logger.Info().Int("stocks", len(snap.Stocks)).Msg("Market data refreshed")
		return
	}
	logger.Info().
		Int64("holder_id", snap.SelectedHolder).
		Str("value", format.Currency(summary.CurrentValue)).
		Str("profit_loss", format.SignedCurrency(summary.ProfitLoss)).
		Str("return", format.SignedPercent(summary.ProfitLossPercent)).
		Int("risk", summary.RiskScore).
		Int("holdings", summary.TotalHoldings).
		Msg("Portfolio refreshed")
}

func checkAlerts(store *localstore.Store, snap state.Snapshot) {
	alerts, err := store.Alerts()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load price alerts")
		return
	}
	for _, t := range portfolio.EvaluateAlerts(alerts, snap.StockMap()) {
		logger.Warn().
			Int("index", t.Index).
			Str("symbol", t.Alert.Symbol).
			Str("condition", string(t.Alert.Condition)).
			Float64("target", t.Alert.Price).
			Float64("price", t.CurrentPrice).
			Msg("Price alert triggered")
	}
}

// serveMetrics exposes the client's prometheus registry until stop is
// called.
func serveMetrics(addr string) (stop func()) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/metrics", metrics.Handler())

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := app.Listen(addr); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(ctx); err != nil {
			logger.Warn().Err(fmt.Errorf("metrics shutdown: %w", err)).Send()
		}
	}
}
