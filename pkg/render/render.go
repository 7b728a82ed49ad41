package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/Rohianon/folio/pkg/format"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/portfolio"
)

const barWidth = 30

// Table writes a bordered table in the CLI's house style.
func Table(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(true)
	table.SetRowLine(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("│")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
	table.AppendBulk(rows)
	table.Render()
}

func empty(w io.Writer, msg string) {
	fmt.Fprintln(w, MutedStyle.Render(msg))
}

// SummaryCards lays the headline numbers out side by side.
func SummaryCards(v CardsView) string {
	card := func(label, value string) string {
		return CardStyle.Render(MutedStyle.Render(label) + "\n" + value)
	}

	cards := []string{
		card("Invested", ValueStyle.Render(format.Currency(v.TotalInvested))),
		card("Current value", ValueStyle.Render(format.Currency(v.CurrentValue))),
		card("P/L", Signed(v.ProfitLoss, format.SignedCurrency(v.ProfitLoss))),
		card("P/L %", Signed(v.ProfitLossPercent, format.SignedPercent(v.ProfitLossPercent))),
		card("Risk", ValueStyle.Render(fmt.Sprintf("%d/100", v.RiskScore))),
		card("Diversification", ValueStyle.Render(fmt.Sprintf("%d/100", v.DiversificationScore))),
	}

	title := "Portfolio"
	if v.HolderName != "" {
		title += " · " + v.HolderName
	}
	status := MutedStyle.Render(fmt.Sprintf("%d holdings · %d stocks · best %s · updated %s",
		v.TotalHoldings, v.UniqueStocks, orMissing(v.BestPerformer), format.Clock(v.LastUpdated)))

	return lipgloss.JoinVertical(lipgloss.Left,
		HeaderStyle.Render(title),
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
		status,
	)
}

func HoldingsTable(w io.Writer, rows []PositionRow) {
	if len(rows) == 0 {
		empty(w, "No holdings for this holder.")
		return
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		price := format.Currency(r.Price)
		if r.PriceMissing {
			price = format.Missing
		}
		data = append(data, []string{
			r.Symbol,
			orMissing(r.Name),
			fmt.Sprintf("%d", r.Quantity),
			format.Currency(r.AvgPrice),
			price,
			format.Currency(r.Value),
			Signed(r.ProfitLoss, format.SignedCurrency(r.ProfitLoss)),
			Signed(r.ProfitLossPercent, format.SignedPercent(r.ProfitLossPercent)),
			format.Percent(r.Weight),
			signalStyle(r.Signal).Render(string(r.Signal)),
		})
	}
	Table(w, []string{"Symbol", "Name", "Qty", "Avg", "Price", "Value", "P/L", "P/L %", "Weight", "Signal"}, data)
}

func RecommendationsGrid(w io.Writer, recs []RecommendationView) {
	if len(recs) == 0 {
		empty(w, "No recommendations available.")
		return
	}

	data := make([][]string, 0, len(recs))
	local := false
	for _, r := range recs {
		target := format.Missing
		if r.TargetPrice != nil {
			target = format.Currency(*r.TargetPrice)
		}
		data = append(data, []string{
			r.Symbol,
			orMissing(r.Name),
			actionStyle(r.Action).Render(string(r.Action)),
			format.Score(r.Score),
			target,
			orMissing(r.Reason),
		})
		local = local || r.Local
	}
	Table(w, []string{"Symbol", "Name", "Action", "Score", "Target", "Reason"}, data)
	if local {
		empty(w, "Derived locally from your holdings.")
	}
}

// HeatMapTable lists heat entries, optionally only those at level.
func HeatMapTable(w io.Writer, rows []HeatRow, level models.HeatLevel) {
	level = models.HeatLevel(strings.ToUpper(string(level)))

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		if level != "" && r.Level != level {
			continue
		}
		data = append(data, []string{
			r.Symbol,
			orMissing(r.Name),
			format.Currency(r.Price),
			Signed(r.ChangePercent, format.SignedPercent(r.ChangePercent)),
			format.Volume(r.Volume),
			format.Score(r.Score),
			heatStyle(r.Level).Render(string(r.Level)),
			format.Score(r.Sentiment),
		})
	}

	if len(data) == 0 {
		empty(w, "No heat map entries.")
		return
	}
	Table(w, []string{"Symbol", "Name", "Price", "Change", "Volume", "Heat", "Level", "Sentiment"}, data)
}

// HeatStatsLine summarises level counts and the average score.
func HeatStatsLine(s portfolio.HeatStats) string {
	return fmt.Sprintf("%s %d · %s %d · %s %d · %s %d · avg %s",
		heatStyle(models.HeatOverheated).Render("overheated"), s.Counts[models.HeatOverheated],
		heatStyle(models.HeatWarm).Render("warm"), s.Counts[models.HeatWarm],
		heatStyle(models.HeatNeutral).Render("neutral"), s.Counts[models.HeatNeutral],
		heatStyle(models.HeatCool).Render("cool"), s.Counts[models.HeatCool],
		format.Score(s.AverageScore))
}

func MarketMovers(w io.Writer, movers *models.MarketMovers) {
	if movers == nil {
		empty(w, "Market movers unavailable.")
		return
	}

	if s := movers.Summary; s != nil {
		fmt.Fprintf(w, "%s  %d advancing · %d declining · %d total · trend %s\n",
			HeaderStyle.Render("Market"), s.AdvancingStocks, s.DecliningStocks, s.TotalStocks, orMissing(s.OverallTrend))
	}

	sections := []struct {
		title  string
		stocks []models.Stock
	}{
		{"Top gainers", movers.TopGainers},
		{"Top losers", movers.TopLosers},
		{"Most active", movers.MostActive},
	}
	for _, sec := range sections {
		fmt.Fprintln(w, HeaderStyle.Render(sec.title))
		StocksTable(w, sec.stocks)
	}
}

func StocksTable(w io.Writer, stocks []models.Stock) {
	if len(stocks) == 0 {
		empty(w, "No stocks.")
		return
	}

	data := make([][]string, 0, len(stocks))
	for _, s := range stocks {
		change := format.Missing
		if s.ChangePercent != nil {
			change = Signed(*s.ChangePercent, format.SignedPercent(*s.ChangePercent))
		}
		data = append(data, []string{
			s.Symbol,
			orMissing(s.Name),
			orMissing(s.Sector),
			format.Currency(s.CurrentPrice),
			change,
			format.Volume(s.Volume),
			format.OptionalFloat(s.PERatio, 2),
			format.Ratio(s.Volatility),
			fmt.Sprintf("%d", s.ConfidenceScore),
		})
	}
	Table(w, []string{"Symbol", "Name", "Sector", "Price", "Change", "Volume", "P/E", "Volatility", "Confidence"}, data)
}

func WatchlistTable(w io.Writer, rows []WatchRow) {
	if len(rows) == 0 {
		empty(w, "Your watchlist is empty.")
		return
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		if !r.Found {
			data = append(data, []string{r.Symbol, format.Missing, format.Missing, format.Missing, format.Missing})
			continue
		}
		change := format.Missing
		if r.ChangePercent != nil {
			change = Signed(*r.ChangePercent, format.SignedPercent(*r.ChangePercent))
		}
		data = append(data, []string{r.Symbol, orMissing(r.Name), format.Currency(r.Price), change, r.Signal})
	}
	Table(w, []string{"Symbol", "Name", "Price", "Change", "Signal"}, data)
}

func AlertsList(w io.Writer, alerts []AlertView) {
	if len(alerts) == 0 {
		empty(w, "No price alerts set.")
		return
	}

	data := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		current := format.Missing
		if a.HasPrice {
			current = format.Currency(a.Current)
		}
		status := MutedStyle.Render("waiting")
		if a.Triggered {
			status = WarningStyle.Render("TRIGGERED")
		}
		data = append(data, []string{
			fmt.Sprintf("%d", a.Index),
			a.Symbol,
			string(a.Condition),
			format.Currency(a.Target),
			current,
			status,
		})
	}
	Table(w, []string{"#", "Symbol", "Condition", "Target", "Current", "Status"}, data)
}

// SectorBars draws the allocation as horizontal text bars scaled to the
// largest sector.
func SectorBars(w io.Writer, sectors []SectorSlice) {
	if len(sectors) == 0 {
		empty(w, "No sector allocation.")
		return
	}

	largest, labelWidth := 0.0, 0
	for _, s := range sectors {
		largest = max(largest, s.Percent)
		labelWidth = max(labelWidth, lipgloss.Width(s.Sector))
	}

	for _, s := range sectors {
		n := 0
		if largest > 0 {
			n = int(s.Percent / largest * barWidth)
		}
		if n == 0 && s.Percent > 0 {
			n = 1
		}
		bar := strings.Repeat("█", n) + strings.Repeat("░", barWidth-n)
		fmt.Fprintf(w, "%-*s %s %7s %s\n", labelWidth, s.Sector, GainStyle.Render(bar),
			format.Percent(s.Percent), MutedStyle.Render(format.Currency(s.Value)))
	}
}

func SectorPerformanceTable(w io.Writer, sectors []models.Sector) {
	if len(sectors) == 0 {
		empty(w, "No sector performance data.")
		return
	}

	sorted := make([]models.Sector, len(sectors))
	copy(sorted, sectors)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DayChangePercent > sorted[j].DayChangePercent })

	data := make([][]string, 0, len(sorted))
	for _, s := range sorted {
		data = append(data, []string{
			s.Label(),
			Signed(s.DayChangePercent, format.SignedPercent(s.DayChangePercent)),
			Signed(s.WeekChange, format.SignedPercent(s.WeekChange)),
			Signed(s.MonthChange, format.SignedPercent(s.MonthChange)),
			orMissing(s.Sentiment),
		})
	}
	Table(w, []string{"Sector", "Day", "Week", "Month", "Sentiment"}, data)
}

func Diversification(w io.Writer, advice []portfolio.Advice) {
	if len(advice) == 0 {
		empty(w, "No diversification advice.")
		return
	}
	for _, a := range advice {
		fmt.Fprintf(w, "%s %s\n", severityStyle(a.Severity).Render("["+string(a.Severity)+"]"), a.Message)
		if a.SuggestedSector != "" {
			fmt.Fprintf(w, "  %s\n", MutedStyle.Render("Consider: "+a.SuggestedSector))
		}
	}
}

func Insights(w io.Writer, in *models.AIInsights) {
	if in == nil {
		empty(w, "Insights unavailable.")
		return
	}

	fmt.Fprintln(w, HeaderStyle.Render(orMissing(in.Title)))
	if in.Summary != "" {
		fmt.Fprintln(w, in.Summary)
	}
	if o := in.Outlook; o != nil {
		fmt.Fprintf(w, "%s %s (confidence %s)\n", MutedStyle.Render("Outlook:"), orMissing(o.Overall), format.Score(o.Confidence))
		for _, f := range o.KeyFactors {
			fmt.Fprintf(w, "  • %s\n", f)
		}
	}
	for _, r := range in.RiskAlerts {
		fmt.Fprintf(w, "%s %s\n", WarningStyle.Render("⚠"), r)
	}
	for _, o := range in.Opportunities {
		fmt.Fprintf(w, "%s %s\n", GainStyle.Render("↑"), o)
	}
	for _, t := range in.TrendingStocks {
		fmt.Fprintf(w, "%s %s %s\n", MutedStyle.Render("trending"), t.Symbol, MutedStyle.Render(t.Reason))
	}
}

// Notification is the one-line error banner.
func Notification(err error) string {
	if err == nil {
		return ""
	}
	return LossStyle.Render("✗ ") + OneLine(err)
}

// OneLine flattens joined errors onto a single line.
func OneLine(err error) string {
	if err == nil {
		return ""
	}
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return format.Missing
	}
	return s
}
