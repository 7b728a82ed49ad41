package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rohianon/folio/cmd/folio/internal/client"
	"github.com/Rohianon/folio/cmd/folio/internal/output"
	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/format"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/portfolio"
	"github.com/Rohianon/folio/pkg/render"
)

var stocksCmd = &cobra.Command{
	Use:   "stocks",
	Short: "List stocks",
	Long:  "List stocks with price, change, volume and signal inputs, optionally for one exchange.",
	RunE:  runStocks,
}

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Market commands",
	Long:  "Market overview, movers, sector performance and insights.",
}

var marketOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show the market overview",
	RunE:  runMarketOverview,
}

var marketMoversCmd = &cobra.Command{
	Use:   "movers",
	Short: "Show top gainers, losers and most active",
	RunE:  runMarketMovers,
}

var marketSectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "Show sector performance",
	RunE:  runMarketSectors,
}

var marketInsightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show market insights",
	RunE:  runMarketInsights,
}

var recommendationsCmd = &cobra.Command{
	Use:     "recommendations",
	Aliases: []string{"recs"},
	Short:   "List recommendations",
	Long:    "List buy/hold/sell recommendations, optionally only buys or sells.",
	RunE:    runRecommendations,
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Show the heat map",
	Long: `Show the heat map, hottest first.

Levels: overheated (>=75), warm (>=50), neutral (>=25), cool.`,
	RunE: runHeatmap,
}

var (
	exchangeFlag string
	moversLimit  int
	recsLimit    int
	filterFlag   string
	levelFlag    string
	realtimeFlag bool
)

func init() {
	rootCmd.AddCommand(stocksCmd)
	rootCmd.AddCommand(marketCmd)
	marketCmd.AddCommand(marketOverviewCmd)
	marketCmd.AddCommand(marketMoversCmd)
	marketCmd.AddCommand(marketSectorsCmd)
	marketCmd.AddCommand(marketInsightsCmd)
	rootCmd.AddCommand(recommendationsCmd)
	rootCmd.AddCommand(heatmapCmd)

	stocksCmd.Flags().StringVarP(&exchangeFlag, "exchange", "x", "", "only stocks on this exchange (e.g. NSE)")
	marketMoversCmd.Flags().IntVarP(&moversLimit, "limit", "l", 10, "entries per list")

	recommendationsCmd.Flags().StringVar(&filterFlag, "filter", "all", "all, buy or sell")
	recommendationsCmd.Flags().IntVarP(&recsLimit, "limit", "l", client.DefaultRecommendationLimit, "maximum entries")

	heatmapCmd.Flags().StringVar(&levelFlag, "level", "", "only entries at this level")
	heatmapCmd.Flags().BoolVar(&realtimeFlag, "realtime", false, "use the realtime heat map")
}

func runStocks(cmd *cobra.Command, args []string) error {
	stocks, err := newAPI().ListStocks(cmd.Context(), exchangeFlag)
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(stocks)
	}

	render.StocksTable(output.Stdout, stocks)
	return nil
}

func runMarketOverview(cmd *cobra.Command, args []string) error {
	o, err := newAPI().MarketOverview(cmd.Context())
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(o)
	}

	output.Header("Market overview")
	output.Blank()
	output.KeyValue([][]string{
		{"Stocks", fmt.Sprintf("%d", o.TotalStocks)},
		{"Advancing", render.GainStyle.Render(fmt.Sprintf("%d", o.AdvancingStocks))},
		{"Declining", render.LossStyle.Render(fmt.Sprintf("%d", o.DecliningStocks))},
		{"Sentiment", format.Score(o.MarketSentiment)},
		{"Trend", orDash(o.OverallTrend)},
	})
	return nil
}

func runMarketMovers(cmd *cobra.Command, args []string) error {
	api := newAPI()
	ctx := cmd.Context()

	// Each list is independent; one failing leaves the others shown.
	var movers models.MarketMovers
	var errs []error
	var err error
	if movers.TopGainers, err = api.TopGainers(ctx, moversLimit); err != nil {
		errs = append(errs, fmt.Errorf("top gainers: %w", err))
	}
	if movers.TopLosers, err = api.TopLosers(ctx, moversLimit); err != nil {
		errs = append(errs, fmt.Errorf("top losers: %w", err))
	}
	if movers.MostActive, err = api.MostActive(ctx, moversLimit); err != nil {
		errs = append(errs, fmt.Errorf("most active: %w", err))
	}
	if len(errs) == 3 {
		return errs[0]
	}

	if isJSON() {
		return output.JSON(movers)
	}

	for _, e := range errs {
		output.Warning(render.OneLine(e))
	}
	render.MarketMovers(output.Stdout, &movers)
	return nil
}

func runMarketSectors(cmd *cobra.Command, args []string) error {
	perf, err := newAPI().Sectors(cmd.Context())
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(perf)
	}

	render.SectorPerformanceTable(output.Stdout, perf.Sectors)
	if s := perf.MarketSentiment; s.OverallTrend != "" {
		output.Info(fmt.Sprintf("Market: %s (score %s)", s.OverallTrend, format.Score(s.OverallScore)))
	}
	return nil
}

func runMarketInsights(cmd *cobra.Command, args []string) error {
	in, err := newAPI().Insights(cmd.Context())
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(in)
	}

	render.Insights(output.Stdout, in)
	return nil
}

func runRecommendations(cmd *cobra.Command, args []string) error {
	filter, err := client.ParseFilter(filterFlag)
	if err != nil {
		return err
	}

	recs, err := newAPI().ListRecommendations(cmd.Context(), filter, recsLimit)
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(recs)
	}

	render.RecommendationsGrid(output.Stdout, render.RecommendationViews(recs))

	counts := portfolio.CountActions(recs)
	output.Info(fmt.Sprintf("buy %d · hold %d · sell %d",
		counts[models.ActionBuy], counts[models.ActionHold], counts[models.ActionSell]))
	return nil
}

func runHeatmap(cmd *cobra.Command, args []string) error {
	level, err := parseHeatLevel(levelFlag)
	if err != nil {
		return err
	}

	entries, err := newAPI().ListHeatMap(cmd.Context(), realtimeFlag)
	if err != nil {
		return err
	}

	rows := render.HeatRows(entries)

	if isJSON() {
		if level != "" {
			kept := rows[:0]
			for _, r := range rows {
				if r.Level == level {
					kept = append(kept, r)
				}
			}
			rows = kept
		}
		return output.JSON(rows)
	}

	render.HeatMapTable(output.Stdout, rows, level)
	output.Println(render.HeatStatsLine(portfolio.HeatSummary(entries)))
	return nil
}

func parseHeatLevel(s string) (models.HeatLevel, error) {
	level := models.HeatLevel(strings.ToUpper(strings.TrimSpace(s)))
	switch level {
	case "", models.HeatOverheated, models.HeatWarm, models.HeatNeutral, models.HeatCool:
		return level, nil
	}
	return "", apperrors.ErrValidation.WithMessage(fmt.Sprintf("unknown heat level %q", s))
}
