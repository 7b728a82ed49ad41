package main

import (
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/portfolio"
)

// =============================================================================
// Portfolio API Mock Server
// =============================================================================
// An in-memory stand-in for the portfolio REST backend. It supports:
// - Holders and holdings (list, add)
// - Stock quotes with a simulated price walk
// - Portfolio analytics, performance and diversification
// - Market overview, movers, sectors and insights
// - Recommendations and the dumb-money heat map
// =============================================================================

type Server struct {
	mu       sync.RWMutex
	seed     uint64
	rng      *rand.Rand
	ticks    int
	holders  []models.Holder
	stocks   []models.Stock
	holdings []models.Holding

	nextHolderID  int64
	nextHoldingID int64
}

func NewServer(seed uint64) *Server {
	s := &Server{seed: seed}
	s.reset()
	return s
}

// reset restores the seeded state. Callers hold the write lock, or own s
// exclusively.
func (s *Server) reset() {
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))
	s.ticks = 0

	s.holders = append([]models.Holder(nil), seedHolders...)
	s.nextHolderID = int64(len(s.holders)) + 1

	s.stocks = make([]models.Stock, 0, len(seedStocks))
	for _, st := range seedStocks {
		s.stocks = append(s.stocks, newStock(st))
	}

	s.holdings = make([]models.Holding, 0, len(seedHoldings))
	for i, h := range seedHoldings {
		s.holdings = append(s.holdings, models.Holding{
			ID:          int64(i) + 1,
			HolderID:    h.holderID,
			StockSymbol: h.symbol,
			Quantity:    h.quantity,
			AvgPrice:    h.avgPrice,
		})
	}
	s.nextHoldingID = int64(len(s.holdings)) + 1
}

// tick moves every price by a normally distributed step scaled by the
// stock's volatility.
func (s *Server) tick() {
	s.ticks++
	for i := range s.stocks {
		st := &s.stocks[i]
		step := s.rng.NormFloat64() * st.Volatility * 0.02
		st.CurrentPrice = math.Max(0.05, round2(st.CurrentPrice*(1+step)))
		if st.Volume != nil {
			v := *st.Volume + int64(s.rng.IntN(50_000))
			st.Volume = &v
		}
		setChange(st)
	}
}

func setChange(st *models.Stock) {
	if st.BasePrice == 0 {
		st.ChangePercent = nil
		return
	}
	pct := round2((st.CurrentPrice - st.BasePrice) / st.BasePrice * 100)
	st.ChangePercent = &pct
}

func changeOf(st models.Stock) float64 {
	if st.ChangePercent == nil {
		return 0
	}
	return *st.ChangePercent
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// =============================================================================
// Lookups (callers hold at least the read lock)
// =============================================================================

func (s *Server) holder(id int64) (models.Holder, bool) {
	for _, h := range s.holders {
		if h.ID == id {
			return h, true
		}
	}
	return models.Holder{}, false
}

func (s *Server) stock(symbol string) (models.Stock, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, st := range s.stocks {
		if st.Symbol == symbol {
			return st, true
		}
	}
	return models.Stock{}, false
}

func (s *Server) stockMap() map[string]models.Stock {
	out := make(map[string]models.Stock, len(s.stocks))
	for _, st := range s.stocks {
		out[st.Symbol] = st
	}
	return out
}

func (s *Server) stockList() []models.Stock {
	return append([]models.Stock(nil), s.stocks...)
}

// holdingsOf returns a holder's holdings with the stock embedded, the way
// the backend serves them. holderID 0 returns every holding.
func (s *Server) holdingsOf(holderID int64) []models.Holding {
	stocks := s.stockMap()
	out := make([]models.Holding, 0)
	for _, h := range s.holdings {
		if holderID != 0 && h.HolderID != holderID {
			continue
		}
		if st, ok := stocks[h.StockSymbol]; ok {
			h.Stock = &st
		}
		out = append(out, h)
	}
	return out
}

// analytics values a set of holdings the same way the dashboard does.
func (s *Server) analytics(name string, holdings []models.Holding) models.Analytics {
	sum := portfolio.Aggregate(holdings, s.stockMap())
	return models.Analytics{
		HolderName:           name,
		TotalInvested:        round2(sum.TotalInvested),
		CurrentValue:         round2(sum.CurrentValue),
		ProfitLoss:           round2(sum.ProfitLoss),
		AverageReturn:        round2(sum.ProfitLossPercent),
		RiskScore:            float64(sum.RiskScore),
		DiversificationScore: float64(sum.DiversificationScore),
		TotalHoldings:        sum.TotalHoldings,
		UniqueStocks:         sum.UniqueStocks,
		BestPerformer:        sum.BestPerformer,
		SectorAllocation:     portfolio.SectorPercentages(sum),
	}
}

// marketSummary treats one share of every stock, bought at base price, as
// a portfolio. Recommendations are derived from it.
func (s *Server) marketSummary() portfolio.Summary {
	holdings := make([]models.Holding, 0, len(s.stocks))
	for i, st := range s.stocks {
		holdings = append(holdings, models.Holding{
			ID:          int64(i) + 1,
			StockSymbol: st.Symbol,
			Quantity:    1,
			AvgPrice:    st.BasePrice,
		})
	}
	return portfolio.Aggregate(holdings, s.stockMap())
}

func (s *Server) recommendations(filter models.Action) []models.Recommendation {
	recs := portfolio.LocalRecommendations(s.marketSummary())

	out := recs[:0]
	for _, r := range recs {
		if filter != "" && r.Action != filter {
			continue
		}
		if st, ok := s.stock(r.Symbol); ok {
			target := round2(st.CurrentPrice * (1 + targetMove(r.Action)))
			r.TargetPrice = &target
			r.RiskLevel = riskLevel(st.Volatility)
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func targetMove(a models.Action) float64 {
	switch a {
	case models.ActionBuy:
		return 0.12
	case models.ActionSell:
		return -0.08
	default:
		return 0.03
	}
}

func riskLevel(volatility float64) string {
	switch {
	case volatility >= 0.4:
		return "HIGH"
	case volatility >= 0.25:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// heatMap scores each stock from volatility, recent move and crowd
// confidence; hottest first.
func (s *Server) heatMap() []models.HeatEntry {
	entries := make([]models.HeatEntry, 0, len(s.stocks))
	for _, st := range s.stocks {
		change := changeOf(st)
		score := st.Volatility*100 + math.Abs(change)*3 + float64(100-st.ConfidenceScore)*0.3
		score = math.Round(math.Min(100, math.Max(0, score))*10) / 10
		level := portfolio.HeatClassification(score)

		entries = append(entries, models.HeatEntry{
			Symbol:           st.Symbol,
			Name:             st.Name,
			Sector:           st.Sector,
			Exchange:         st.Exchange,
			CurrentPrice:     st.CurrentPrice,
			ChangePercent:    change,
			Volume:           st.Volume,
			HeatScore:        score,
			HeatLevel:        level,
			AISentimentScore: round2(float64(st.ConfidenceScore) / 100),
			AIReasoning:      heatReasoning(level),
			Trend:            trend(change),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].HeatScore > entries[j].HeatScore
	})
	return entries
}

func heatReasoning(level models.HeatLevel) string {
	switch level {
	case models.HeatOverheated:
		return "Retail crowding with weak fundamentals"
	case models.HeatWarm:
		return "Rising retail interest, watch momentum"
	case models.HeatNeutral:
		return "Balanced flows"
	default:
		return "Little speculative activity"
	}
}

func trend(change float64) string {
	switch {
	case change > 0:
		return "UP"
	case change < 0:
		return "DOWN"
	default:
		return "FLAT"
	}
}

func (s *Server) overview() models.MarketOverview {
	o := models.MarketOverview{TotalStocks: len(s.stocks)}
	total := 0.0
	for _, st := range s.stocks {
		change := changeOf(st)
		total += change
		switch {
		case change > 0:
			o.AdvancingStocks++
		case change < 0:
			o.DecliningStocks++
		}
	}
	if o.TotalStocks == 0 {
		o.OverallTrend = "NEUTRAL"
		return o
	}

	o.AverageChangePct = round2(total / float64(o.TotalStocks))
	o.MarketSentiment = round2(float64(o.AdvancingStocks) / float64(o.TotalStocks) * 100)
	o.OverallTrend = overallTrend(o.AverageChangePct)
	return o
}

func overallTrend(avgChange float64) string {
	switch {
	case avgChange > 0.5:
		return "BULLISH"
	case avgChange < -0.5:
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

type moverOrder int

const (
	byGain moverOrder = iota
	byLoss
	byVolume
)

func (s *Server) movers(order moverOrder, limit int) []models.Stock {
	stocks := s.stockList()
	sort.SliceStable(stocks, func(i, j int) bool {
		a, b := stocks[i], stocks[j]
		switch order {
		case byLoss:
			return changeOf(a) < changeOf(b)
		case byVolume:
			return volumeOf(a) > volumeOf(b)
		default:
			return changeOf(a) > changeOf(b)
		}
	})
	if limit > 0 && len(stocks) > limit {
		stocks = stocks[:limit]
	}
	return stocks
}

func volumeOf(st models.Stock) int64 {
	if st.Volume == nil {
		return 0
	}
	return *st.Volume
}

// Tick advances simulated prices one step.
func (s *Server) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()
}
