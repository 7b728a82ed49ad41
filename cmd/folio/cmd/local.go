package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rohianon/folio/cmd/folio/internal/output"
	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/format"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/refresh"
	"github.com/Rohianon/folio/pkg/render"
	"github.com/Rohianon/folio/pkg/state"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Watchlist commands",
	Long:  "Manage the local watchlist. It is stored on this machine, not on the backend.",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the watchlist with current prices",
	RunE:  runWatchlistList,
}

var watchlistAddCmd = &cobra.Command{
	Use:   "add SYMBOL",
	Short: "Add a symbol to the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchlistAdd,
}

var watchlistRemoveCmd = &cobra.Command{
	Use:     "remove SYMBOL",
	Aliases: []string{"rm"},
	Short:   "Remove a symbol from the watchlist",
	Args:    cobra.ExactArgs(1),
	RunE:    runWatchlistRemove,
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Price alert commands",
	Long:  "Manage local price alerts. Alerts are checked against the latest stock prices.",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List price alerts",
	RunE:  runAlertsList,
}

var alertsAddCmd = &cobra.Command{
	Use:   "add SYMBOL above|below PRICE",
	Short: "Add a price alert",
	Long: `Add a price alert.

Example:
  folio alerts add AAPL above 200`,
	Args: cobra.ExactArgs(3),
	RunE: runAlertsAdd,
}

var alertsRemoveCmd = &cobra.Command{
	Use:     "remove INDEX",
	Aliases: []string{"rm"},
	Short:   "Remove a price alert by its index",
	Args:    cobra.ExactArgs(1),
	RunE:    runAlertsRemove,
}

var alertsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check alerts against current prices",
	RunE:  runAlertsCheck,
}

func init() {
	rootCmd.AddCommand(watchlistCmd)
	watchlistCmd.AddCommand(watchlistListCmd)
	watchlistCmd.AddCommand(watchlistAddCmd)
	watchlistCmd.AddCommand(watchlistRemoveCmd)

	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAddCmd)
	alertsCmd.AddCommand(alertsRemoveCmd)
	alertsCmd.AddCommand(alertsCheckCmd)
}

// quotes loads the latest stock list through a one-off refresh cycle.
func quotes(ctx context.Context) (state.Snapshot, error) {
	ctrl := newController(newAPI(), refresh.Options{Collections: []state.Collection{state.Stocks}})
	res, err := ctrl.Refresh(ctx, refresh.TriggerInitial)
	if err != nil {
		return state.Snapshot{}, err
	}
	return res.Snapshot, res.Err
}

func runWatchlistList(cmd *cobra.Command, args []string) error {
	store, err := openLocal()
	if err != nil {
		return err
	}
	symbols, err := store.Watchlist()
	if err != nil {
		return err
	}

	var snap state.Snapshot
	if len(symbols) > 0 {
		var qerr error
		snap, qerr = quotes(cmd.Context())
		if qerr != nil && !isJSON() {
			output.Warning("Prices unavailable: " + render.OneLine(qerr))
		}
	}
	rows := render.BuildWatchlist(symbols, snap)

	if isJSON() {
		return output.JSON(rows)
	}

	render.WatchlistTable(output.Stdout, rows)
	return nil
}

func runWatchlistAdd(cmd *cobra.Command, args []string) error {
	store, err := openLocal()
	if err != nil {
		return err
	}

	added, err := store.AddToWatchlist(args[0])
	if err != nil {
		return err
	}
	if !added {
		output.Info(fmt.Sprintf("%s is already on your watchlist", args[0]))
		return nil
	}
	output.Success("Added to watchlist")
	return nil
}

func runWatchlistRemove(cmd *cobra.Command, args []string) error {
	store, err := openLocal()
	if err != nil {
		return err
	}

	removed, err := store.RemoveFromWatchlist(args[0])
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.ErrNotFound.WithMessage(fmt.Sprintf("%s is not on your watchlist", args[0]))
	}
	output.Success("Removed from watchlist")
	return nil
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	views, quoteErr, err := alertViews(cmd.Context())
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(views)
	}

	if quoteErr != nil {
		output.Warning("Prices unavailable: " + render.OneLine(quoteErr))
	}

	render.AlertsList(output.Stdout, views)
	return nil
}

func runAlertsAdd(cmd *cobra.Command, args []string) error {
	price, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return apperrors.ErrValidation.WithMessage("price must be a number")
	}

	store, err := openLocal()
	if err != nil {
		return err
	}

	alert, err := store.AddAlert(args[0], models.AlertCondition(args[1]), price)
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(alert)
	}
	output.Success(fmt.Sprintf("Alert set: %s %s %s", alert.Symbol, alert.Condition, format.Currency(alert.Price)))
	return nil
}

func runAlertsRemove(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return apperrors.ErrValidation.WithMessage("index must be a whole number")
	}

	store, err := openLocal()
	if err != nil {
		return err
	}

	removed, err := store.RemoveAlert(index)
	if err != nil {
		return err
	}
	output.Success(fmt.Sprintf("Removed alert %s %s %s", removed.Symbol, removed.Condition, format.Currency(removed.Price)))
	return nil
}

func runAlertsCheck(cmd *cobra.Command, args []string) error {
	views, quoteErr, err := alertViews(cmd.Context())
	if err != nil {
		return err
	}
	if quoteErr != nil {
		return quoteErr
	}

	triggered := make([]render.AlertView, 0, len(views))
	for _, v := range views {
		if v.Triggered {
			triggered = append(triggered, v)
		}
	}

	if isJSON() {
		return output.JSON(triggered)
	}

	if len(triggered) == 0 {
		output.Info(fmt.Sprintf("No alerts triggered (%d checked)", len(views)))
		return nil
	}
	for _, v := range triggered {
		output.Warning(alertMessage(v))
	}
	return nil
}

// alertViews pairs stored alerts with current prices. Quotes are only
// fetched when there is something to check; a quote failure is returned
// separately so the alerts can still be listed.
func alertViews(ctx context.Context) (views []render.AlertView, quoteErr error, err error) {
	store, err := openLocal()
	if err != nil {
		return nil, nil, err
	}
	alerts, err := store.Alerts()
	if err != nil {
		return nil, nil, err
	}
	if len(alerts) == 0 {
		return []render.AlertView{}, nil, nil
	}

	snap, quoteErr := quotes(ctx)
	return render.BuildAlerts(alerts, snap), quoteErr, nil
}

func alertMessage(v render.AlertView) string {
	return fmt.Sprintf("%s is %s %s (now %s)",
		v.Symbol, strings.ToLower(string(v.Condition)), format.Currency(v.Target), format.Currency(v.Current))
}
