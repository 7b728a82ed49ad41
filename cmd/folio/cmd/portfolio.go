package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rohianon/folio/cmd/folio/internal/output"
	"github.com/Rohianon/folio/pkg/format"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/render"
	"github.com/Rohianon/folio/pkg/state"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Portfolio analytics commands",
	Long:  "Value, profit/loss, performance and diversification for a holder.",
}

var portfolioSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a holder's portfolio summary",
	Long:  "Fetch holdings and prices, then show totals, positions and sector allocation computed locally.",
	RunE:  runPortfolioSummary,
}

var portfolioAnalyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show backend analytics for a holder",
	Long:  "Show the backend's analytics for a holder, including risk and diversification scores.",
	RunE:  runPortfolioAnalytics,
}

var portfolioPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Show portfolio performance",
	Long:  "Show overall gain, day change and the value history reported by the backend.",
	RunE:  runPortfolioPerformance,
}

var portfolioDiversificationCmd = &cobra.Command{
	Use:   "diversification",
	Short: "Show diversification analysis",
	Long:  "Show the diversification score, sector and exchange allocation, and suggestions.",
	RunE:  runPortfolioDiversification,
}

var (
	chartsFlag bool
	daysFlag   int
)

func init() {
	rootCmd.AddCommand(portfolioCmd)
	portfolioCmd.AddCommand(portfolioSummaryCmd)
	portfolioCmd.AddCommand(portfolioAnalyticsCmd)
	portfolioCmd.AddCommand(portfolioPerformanceCmd)
	portfolioCmd.AddCommand(portfolioDiversificationCmd)

	portfolioCmd.PersistentFlags().BoolVar(&chartsFlag, "charts", false, "also write charts to charts.dir")
	portfolioSummaryCmd.Flags().Int64Var(&holderFlag, "holder", 0, "holder ID")
	portfolioAnalyticsCmd.Flags().Int64Var(&holderFlag, "holder", 0, "holder ID")
	portfolioPerformanceCmd.Flags().IntVar(&daysFlag, "days", 30, "days of history")
}

func runPortfolioSummary(cmd *cobra.Command, args []string) error {
	if holderFlag <= 0 {
		return errHolderRequired
	}

	result, err := loadHolder(cmd.Context(), holderFlag,
		state.Holders, state.Holdings, state.Stocks, state.Analytics, state.Diversification)
	if err != nil {
		return err
	}
	if result.Snapshot.Holdings == nil && result.Err != nil {
		return result.Err
	}

	d := render.BuildDashboard(result.Snapshot, result.Summary)

	if isJSON() {
		return output.JSON(map[string]any{
			"cards":            d.Cards,
			"positions":        d.Positions,
			"sectorAllocation": d.Sectors,
			"advice":           d.Advice,
		})
	}

	if result.Err != nil {
		output.Warning(render.OneLine(result.Err))
	}

	output.Println(render.SummaryCards(d.Cards))
	output.Blank()
	render.HoldingsTable(output.Stdout, d.Positions)
	output.Blank()
	output.Header("Sector allocation")
	render.SectorBars(output.Stdout, d.Sectors)
	render.Diversification(output.Stdout, d.Advice)

	if chartsFlag {
		charts := render.DashboardCharts(d)
		return writeCharts(map[string]render.ChartSpec{
			render.MountSectorAllocation: charts[render.MountSectorAllocation],
			render.MountRiskGauge:        charts[render.MountRiskGauge],
		})
	}
	return nil
}

func runPortfolioAnalytics(cmd *cobra.Command, args []string) error {
	if holderFlag <= 0 {
		return errHolderRequired
	}

	a, err := newAPI().Analytics(cmd.Context(), holderFlag)
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(a)
	}

	output.Header("Analytics" + titleSuffix(a.HolderName))
	output.Blank()
	output.KeyValue([][]string{
		{"Invested", format.Currency(a.TotalInvested)},
		{"Current value", format.Currency(a.CurrentValue)},
		{"Profit/Loss", render.Signed(a.ProfitLoss, format.SignedCurrency(a.ProfitLoss))},
		{"Average return", render.Signed(a.AverageReturn, format.SignedPercent(a.AverageReturn))},
		{"Risk score", format.Score(a.RiskScore)},
		{"Diversification", format.Score(a.DiversificationScore)},
		{"Best performer", orDash(a.BestPerformer)},
	})

	if len(a.SectorAllocation) > 0 {
		output.Blank()
		output.Table([]string{"Sector", "Allocation"}, allocationRows(a.SectorAllocation))
	}
	return nil
}

func runPortfolioPerformance(cmd *cobra.Command, args []string) error {
	api := newAPI()

	perf, err := api.Performance(cmd.Context())
	if err != nil {
		return err
	}
	history, err := api.PerformanceHistory(cmd.Context(), daysFlag)
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(map[string]any{"performance": perf, "history": history})
	}

	output.Header("Performance")
	output.Blank()
	output.KeyValue([][]string{
		{"Total value", format.Currency(perf.TotalValue)},
		{"Total gain", render.Signed(perf.TotalGain, format.SignedCurrency(perf.TotalGain)+" ("+format.SignedPercent(perf.TotalGainPercent)+")")},
		{"Day change", render.Signed(perf.DayChange, format.SignedCurrency(perf.DayChange)+" ("+format.SignedPercent(perf.DayChangePercent)+")")},
	})

	if len(perf.Holdings) > 0 {
		output.Blank()
		rows := make([][]string, 0, len(perf.Holdings))
		for _, h := range perf.Holdings {
			rows = append(rows, []string{
				h.Symbol,
				render.Signed(h.Gain, format.SignedCurrency(h.Gain)),
				render.Signed(h.GainPercent, format.SignedPercent(h.GainPercent)),
				render.Signed(h.DayChangePercent, format.SignedPercent(h.DayChangePercent)),
			})
		}
		output.Table([]string{"Symbol", "Gain", "Gain %", "Day %"}, rows)
	}

	points := historyPoints(history)
	if len(points) > 0 {
		first, last := points[0], points[len(points)-1]
		output.Info(fmt.Sprintf("%d days: %s → %s", len(points), format.Currency(first.Value), format.Currency(last.Value)))
	}

	if chartsFlag {
		return writeCharts(map[string]render.ChartSpec{
			render.MountHistory: {Kind: render.ChartLine, Title: "Portfolio Value", Points: points},
		})
	}
	return nil
}

func runPortfolioDiversification(cmd *cobra.Command, args []string) error {
	div, err := newAPI().Diversification(cmd.Context())
	if err != nil {
		return err
	}

	if isJSON() {
		return output.JSON(div)
	}

	output.Header("Diversification")
	output.Blank()
	output.KeyValue([][]string{{"Score", format.Score(div.DiversificationScore)}})

	if len(div.SectorAllocation) > 0 {
		output.Blank()
		output.Table([]string{"Sector", "Allocation"}, allocationRows(div.SectorAllocation))
	}
	if len(div.ExchangeAllocation) > 0 {
		output.Blank()
		output.Table([]string{"Exchange", "Allocation"}, allocationRows(div.ExchangeAllocation))
	}
	for _, s := range div.Suggestions {
		output.Info("• " + s)
	}

	if chartsFlag {
		pie := make([]render.Slice, 0, len(div.SectorAllocation))
		for _, row := range sortedAllocation(div.SectorAllocation) {
			pie = append(pie, render.Slice{Label: row.key, Value: row.value})
		}
		return writeCharts(map[string]render.ChartSpec{
			render.MountSectorAllocation: {Kind: render.ChartPie, Title: "Sector Allocation", Slices: pie},
		})
	}
	return nil
}

// writeCharts renders specs in mount order and reports each file.
func writeCharts(specs map[string]render.ChartSpec) error {
	registry, err := newCharts()
	if err != nil {
		return err
	}

	mounts := make([]string, 0, len(specs))
	for m := range specs {
		mounts = append(mounts, m)
	}
	sort.Strings(mounts)

	output.Blank()
	for _, m := range mounts {
		h, err := registry.Upsert(m, specs[m])
		switch {
		case errors.Is(err, render.ErrNoData):
			output.Info(fmt.Sprintf("%s: nothing to chart", m))
		case err != nil:
			return err
		default:
			output.Success("Chart written: " + h.Path)
		}
	}
	return nil
}

type allocation struct {
	key   string
	value float64
}

func sortedAllocation(m map[string]float64) []allocation {
	out := make([]allocation, 0, len(m))
	for k, v := range m {
		out = append(out, allocation{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].value != out[j].value {
			return out[i].value > out[j].value
		}
		return out[i].key < out[j].key
	})
	return out
}

func allocationRows(m map[string]float64) [][]string {
	sorted := sortedAllocation(m)
	rows := make([][]string, 0, len(sorted))
	for _, a := range sorted {
		rows = append(rows, []string{a.key, format.Percent(a.value)})
	}
	return rows
}

// historyPoints converts dated points, skipping any the backend sent with
// an unreadable date.
func historyPoints(in []models.PerformancePoint) []models.HistoryPoint {
	out := make([]models.HistoryPoint, 0, len(in))
	for _, p := range in {
		t, err := time.Parse(time.DateOnly, p.Date)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, p.Date); err != nil {
				continue
			}
		}
		out = append(out, models.HistoryPoint{Timestamp: t, Value: p.Value})
	}
	return out
}

func titleSuffix(name string) string {
	if name == "" {
		return ""
	}
	return " · " + name
}

