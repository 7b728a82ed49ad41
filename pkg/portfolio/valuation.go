package portfolio

import (
	"math"
	"sort"

	"github.com/Rohianon/folio/pkg/models"
)

const UnknownSector = "Unknown"

// MarketValue is quantity × current price.
func MarketValue(h models.Holding, s models.Stock) float64 {
	return float64(h.Quantity) * s.CurrentPrice
}

// InvestedValue is quantity × average acquisition price.
func InvestedValue(h models.Holding) float64 {
	return float64(h.Quantity) * h.AvgPrice
}

func ProfitLoss(h models.Holding, s models.Stock) float64 {
	return MarketValue(h, s) - InvestedValue(h)
}

// ProfitLossPercent is 0 when nothing was invested.
func ProfitLossPercent(h models.Holding, s models.Stock) float64 {
	return percentOf(ProfitLoss(h, s), InvestedValue(h))
}

// Weight is the holding's share of total, in percent; 0 when total is 0.
func Weight(h models.Holding, s models.Stock, total float64) float64 {
	return percentOf(MarketValue(h, s), total)
}

func percentOf(part, whole float64) float64 {
	if whole == 0 || math.IsNaN(whole) || math.IsInf(whole, 0) {
		return 0
	}
	return part / whole * 100
}

// Position is one valued holding.
type Position struct {
	Holding           models.Holding `json:"holding"`
	Stock             models.Stock   `json:"stock"`
	MarketValue       float64        `json:"marketValue"`
	InvestedValue     float64        `json:"investedValue"`
	ProfitLoss        float64        `json:"profitLoss"`
	ProfitLossPercent float64        `json:"profitLossPercent"`
	Weight            float64        `json:"weight"`
	Signal            Signal         `json:"signal"`

	// PriceMissing is set when no quote was available and the average
	// price stood in for the current price.
	PriceMissing bool `json:"priceMissing,omitempty"`
}

// Summary aggregates a holder's positions.
type Summary struct {
	Positions            []Position         `json:"positions"`
	TotalInvested        float64            `json:"totalInvested"`
	CurrentValue         float64            `json:"currentValue"`
	ProfitLoss           float64            `json:"profitLoss"`
	ProfitLossPercent    float64            `json:"profitLossPercent"`
	SectorAllocation     map[string]float64 `json:"sectorAllocation"`
	TotalHoldings        int                `json:"totalHoldings"`
	UniqueStocks         int                `json:"uniqueStocks"`
	BestPerformer        string             `json:"bestPerformer,omitempty"`
	DiversificationScore int                `json:"diversificationScore"`
	RiskScore            int                `json:"riskScore"`
}

// Aggregate values every holding against stocks and totals the result.
// Stocks are looked up by symbol, then from the holding's embedded stock;
// if neither exists the holding is valued at its average price.
// Output depends only on the inputs: positions are ordered by symbol then
// holding ID and all sums run in that order.
func Aggregate(holdings []models.Holding, stocks map[string]models.Stock) Summary {
	positions := make([]Position, 0, len(holdings))
	for _, h := range holdings {
		st, missing := resolveStock(h, stocks)
		positions = append(positions, Position{
			Holding:           h,
			Stock:             st,
			MarketValue:       MarketValue(h, st),
			InvestedValue:     InvestedValue(h),
			ProfitLoss:        ProfitLoss(h, st),
			ProfitLossPercent: ProfitLossPercent(h, st),
			Signal:            SignalClassification(st),
			PriceMissing:      missing,
		})
	}

	sort.SliceStable(positions, func(i, j int) bool {
		a, b := positions[i].Holding, positions[j].Holding
		if a.StockSymbol != b.StockSymbol {
			return a.StockSymbol < b.StockSymbol
		}
		return a.ID < b.ID
	})

	summary := Summary{
		Positions:        positions,
		SectorAllocation: map[string]float64{},
		TotalHoldings:    len(positions),
	}

	symbols := map[string]struct{}{}
	riskSum := 0.0
	for _, p := range positions {
		summary.TotalInvested += p.InvestedValue
		summary.CurrentValue += p.MarketValue
		summary.SectorAllocation[sectorOf(p.Stock)] += p.MarketValue
		symbols[p.Stock.Symbol] = struct{}{}
		riskSum += p.Stock.Volatility * 100
	}

	for i := range summary.Positions {
		p := &summary.Positions[i]
		p.Weight = Weight(p.Holding, p.Stock, summary.CurrentValue)
	}

	summary.ProfitLoss = summary.CurrentValue - summary.TotalInvested
	summary.ProfitLossPercent = percentOf(summary.ProfitLoss, summary.TotalInvested)
	summary.UniqueStocks = len(symbols)
	summary.BestPerformer = bestPerformer(positions)
	summary.DiversificationScore = DiversificationScore(len(summary.SectorAllocation))
	if len(positions) > 0 {
		summary.RiskScore = int(math.Min(100, riskSum/float64(len(positions))))
	}

	return summary
}

func resolveStock(h models.Holding, stocks map[string]models.Stock) (models.Stock, bool) {
	if st, ok := stocks[h.StockSymbol]; ok {
		return st, false
	}
	if h.Stock != nil {
		return *h.Stock, false
	}
	return models.Stock{
		Symbol:       h.StockSymbol,
		Name:         h.StockSymbol,
		Sector:       UnknownSector,
		BasePrice:    h.AvgPrice,
		CurrentPrice: h.AvgPrice,
	}, true
}

func sectorOf(s models.Stock) string {
	if s.Sector == "" {
		return UnknownSector
	}
	return s.Sector
}

// bestPerformer picks the highest P/L% among priced positions; ties go to
// the earlier symbol.
func bestPerformer(positions []Position) string {
	best := ""
	bestPct := math.Inf(-1)
	for _, p := range positions {
		if p.PriceMissing {
			continue
		}
		if p.ProfitLossPercent > bestPct {
			best = p.Stock.Symbol
			bestPct = p.ProfitLossPercent
		}
	}
	return best
}

// DiversificationScore gives 20 points per distinct sector, capped at 100.
func DiversificationScore(sectors int) int {
	return min(100, sectors*20)
}
