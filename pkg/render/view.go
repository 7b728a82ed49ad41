package render

import (
	"sort"
	"strings"
	"time"

	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/portfolio"
	"github.com/Rohianon/folio/pkg/state"
)

// CardsView feeds the summary cards.
type CardsView struct {
	HolderName           string    `json:"holderName,omitempty"`
	TotalInvested        float64   `json:"totalInvested"`
	CurrentValue         float64   `json:"currentValue"`
	ProfitLoss           float64   `json:"profitLoss"`
	ProfitLossPercent    float64   `json:"profitLossPercent"`
	RiskScore            int       `json:"riskScore"`
	DiversificationScore int       `json:"diversificationScore"`
	TotalHoldings        int       `json:"totalHoldings"`
	UniqueStocks         int       `json:"uniqueStocks"`
	BestPerformer        string    `json:"bestPerformer,omitempty"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

type PositionRow struct {
	Symbol            string           `json:"symbol"`
	Name              string           `json:"name"`
	Sector            string           `json:"sector"`
	Quantity          int              `json:"quantity"`
	AvgPrice          float64          `json:"avgPrice"`
	Price             float64          `json:"price"`
	Value             float64          `json:"value"`
	ProfitLoss        float64          `json:"profitLoss"`
	ProfitLossPercent float64          `json:"profitLossPercent"`
	Weight            float64          `json:"weight"`
	Signal            portfolio.Signal `json:"signal"`
	PriceMissing      bool             `json:"priceMissing,omitempty"`
}

type RecommendationView struct {
	Symbol      string        `json:"symbol"`
	Name        string        `json:"name,omitempty"`
	Action      models.Action `json:"action"`
	Score       float64       `json:"score"`
	Reason      string        `json:"reason,omitempty"`
	TargetPrice *float64      `json:"targetPrice,omitempty"`

	// Local is set when the row was derived client-side because the
	// backend returned no recommendations.
	Local bool `json:"local,omitempty"`
}

type HeatRow struct {
	Symbol        string           `json:"symbol"`
	Name          string           `json:"name"`
	Sector        string           `json:"sector,omitempty"`
	Price         float64          `json:"price"`
	ChangePercent float64          `json:"changePercent"`
	Volume        *int64           `json:"volume,omitempty"`
	Score         float64          `json:"score"`
	Level         models.HeatLevel `json:"level"`
	Sentiment     float64          `json:"sentiment"`
	Reasoning     string           `json:"reasoning,omitempty"`
}

type SectorSlice struct {
	Sector  string  `json:"sector"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

type WatchRow struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name,omitempty"`
	Price         float64  `json:"price"`
	ChangePercent *float64 `json:"changePercent,omitempty"`
	Signal        string   `json:"signal,omitempty"`
	Found         bool     `json:"found"`
}

type AlertView struct {
	Index     int                   `json:"index"`
	Symbol    string                `json:"symbol"`
	Condition models.AlertCondition `json:"condition"`
	Target    float64               `json:"target"`
	Current   float64               `json:"current"`
	HasPrice  bool                  `json:"hasPrice"`
	Triggered bool                  `json:"triggered"`
}

// Dashboard is everything one frame shows. Renderers never look at the
// store directly.
type Dashboard struct {
	Cards             CardsView                   `json:"cards"`
	Positions         []PositionRow               `json:"positions"`
	Recommendations   []RecommendationView        `json:"recommendations"`
	Heat              []HeatRow                   `json:"heatMap"`
	HeatStats         portfolio.HeatStats         `json:"heatStats"`
	Movers            *models.MarketMovers        `json:"movers,omitempty"`
	Sectors           []SectorSlice               `json:"sectorAllocation"`
	SectorPerformance []models.Sector             `json:"sectorPerformance,omitempty"`
	Advice            []portfolio.Advice          `json:"advice"`
	Insights          *models.AIInsights          `json:"insights,omitempty"`
	History           []models.HistoryPoint       `json:"history"`
	Errors            map[state.Collection]string `json:"errors,omitempty"`
	ActionCounts      map[models.Action]int       `json:"actionCounts"`
}

// BuildDashboard projects a snapshot and its summary into view models.
func BuildDashboard(snap state.Snapshot, summary portfolio.Summary) Dashboard {
	d := Dashboard{
		Cards:     buildCards(snap, summary),
		Positions: buildPositions(summary),
		Heat:      HeatRows(snap.HeatMap),
		HeatStats: portfolio.HeatSummary(snap.HeatMap),
		Movers:    snap.Movers,
		Sectors:   buildSectors(summary),
		Advice:    portfolio.DiversificationAdvice(summary),
		Insights:  snap.Insights,
		History:   snap.History,
	}

	d.Recommendations = buildRecommendations(snap.Recommendations, summary)
	counts := make(map[models.Action]int, 4)
	for _, r := range d.Recommendations {
		counts[r.Action]++
	}
	d.ActionCounts = counts

	if snap.Sectors != nil {
		d.SectorPerformance = snap.Sectors.Sectors
	}

	if len(snap.Errors) > 0 {
		d.Errors = make(map[state.Collection]string, len(snap.Errors))
		for coll, err := range snap.Errors {
			d.Errors[coll] = err.Error()
		}
	}

	return d
}

func buildCards(snap state.Snapshot, summary portfolio.Summary) CardsView {
	cards := CardsView{
		TotalInvested:        summary.TotalInvested,
		CurrentValue:         summary.CurrentValue,
		ProfitLoss:           summary.ProfitLoss,
		ProfitLossPercent:    summary.ProfitLossPercent,
		RiskScore:            summary.RiskScore,
		DiversificationScore: summary.DiversificationScore,
		TotalHoldings:        summary.TotalHoldings,
		UniqueStocks:         summary.UniqueStocks,
		BestPerformer:        summary.BestPerformer,
		LastUpdated:          snap.LastUpdated,
	}

	// The backend owns the diversification score; the local one only
	// fills in when neither analytics nor diversification was fetched.
	switch {
	case snap.Analytics != nil:
		cards.DiversificationScore = int(snap.Analytics.DiversificationScore)
		cards.HolderName = snap.Analytics.HolderName
	case snap.Diversification != nil:
		cards.DiversificationScore = int(snap.Diversification.DiversificationScore)
	}

	if h, ok := snap.Holder(); ok && h.Name != "" {
		cards.HolderName = h.Name
	}
	return cards
}

func buildPositions(summary portfolio.Summary) []PositionRow {
	rows := make([]PositionRow, 0, len(summary.Positions))
	for _, p := range summary.Positions {
		rows = append(rows, PositionRow{
			Symbol:            p.Holding.StockSymbol,
			Name:              p.Stock.Name,
			Sector:            p.Stock.Sector,
			Quantity:          p.Holding.Quantity,
			AvgPrice:          p.Holding.AvgPrice,
			Price:             p.Stock.CurrentPrice,
			Value:             p.MarketValue,
			ProfitLoss:        p.ProfitLoss,
			ProfitLossPercent: p.ProfitLossPercent,
			Weight:            p.Weight,
			Signal:            p.Signal,
			PriceMissing:      p.PriceMissing,
		})
	}
	return rows
}

func buildRecommendations(recs []models.Recommendation, summary portfolio.Summary) []RecommendationView {
	if len(recs) == 0 {
		out := RecommendationViews(portfolio.LocalRecommendations(summary))
		for i := range out {
			out[i].Local = true
		}
		return out
	}
	return RecommendationViews(recs)
}

func RecommendationViews(recs []models.Recommendation) []RecommendationView {
	out := make([]RecommendationView, 0, len(recs))
	for _, r := range recs {
		out = append(out, RecommendationView{
			Symbol:      r.Symbol,
			Name:        r.Name,
			Action:      r.Action,
			Score:       r.Score,
			Reason:      r.Reason,
			TargetPrice: r.TargetPrice,
		})
	}
	return out
}

// HeatRows orders heat map entries hottest first.
func HeatRows(entries []models.HeatEntry) []HeatRow {
	rows := make([]HeatRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, HeatRow{
			Symbol:        e.Symbol,
			Name:          e.Name,
			Sector:        e.Sector,
			Price:         e.CurrentPrice,
			ChangePercent: e.ChangePercent,
			Volume:        e.Volume,
			Score:         e.HeatScore,
			Level:         portfolio.LevelOf(e),
			Sentiment:     e.AISentimentScore,
			Reasoning:     e.AIReasoning,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return rows
}

func buildSectors(summary portfolio.Summary) []SectorSlice {
	pcts := portfolio.SectorPercentages(summary)
	out := make([]SectorSlice, 0, len(summary.SectorAllocation))
	for sector, value := range summary.SectorAllocation {
		out = append(out, SectorSlice{Sector: sector, Value: value, Percent: pcts[sector]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

// BuildWatchlist joins watched symbols with the latest quotes. Symbols
// without a quote are kept with Found unset.
func BuildWatchlist(symbols []string, snap state.Snapshot) []WatchRow {
	rows := make([]WatchRow, 0, len(symbols))
	for _, sym := range symbols {
		row := WatchRow{Symbol: strings.ToUpper(sym)}
		if st, ok := snap.Stock(sym); ok {
			row.Name = st.Name
			row.Price = st.CurrentPrice
			row.ChangePercent = st.ChangePercent
			row.Signal = string(portfolio.SignalClassification(st))
			row.Found = true
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildAlerts pairs each stored alert with its current price and whether
// it has fired.
func BuildAlerts(alerts []models.PriceAlert, snap state.Snapshot) []AlertView {
	fired := make(map[int]bool)
	for _, t := range portfolio.EvaluateAlerts(alerts, snap.StockMap()) {
		fired[t.Index] = true
	}

	out := make([]AlertView, 0, len(alerts))
	for i, a := range alerts {
		v := AlertView{
			Index:     i,
			Symbol:    a.Symbol,
			Condition: a.Condition,
			Target:    a.Price,
			Triggered: fired[i],
		}
		if st, ok := snap.Stock(a.Symbol); ok {
			v.Current = st.CurrentPrice
			v.HasPrice = true
		}
		out = append(out, v)
	}
	return out
}
