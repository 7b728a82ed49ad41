package models

import (
	"encoding/json"
	"strings"
	"time"
)

// =============================================================================
// Core entities
// =============================================================================

type Holder struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Stock is refreshed wholesale from the backend. Optional fields are nil
// when the backend omits them.
type Stock struct {
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	Sector          string   `json:"sector"`
	Exchange        string   `json:"exchange,omitempty"`
	BasePrice       float64  `json:"basePrice"`
	CurrentPrice    float64  `json:"currentPrice"`
	Volatility      float64  `json:"volatility"`
	ConfidenceScore int      `json:"confidenceScore"`
	Volume          *int64   `json:"volume,omitempty"`
	PERatio         *float64 `json:"peRatio,omitempty"`
	ChangePercent   *float64 `json:"changePercent,omitempty"`
}

type Holding struct {
	ID          int64   `json:"id"`
	HolderID    int64   `json:"holderId,omitempty"`
	StockSymbol string  `json:"stockSymbol"`
	Quantity    int     `json:"quantity"`
	AvgPrice    float64 `json:"avgPrice"`

	// Stock is set when the backend embeds the stock object.
	Stock *Stock `json:"stock,omitempty"`
}

// UnmarshalJSON accepts either a flat stockSymbol or an embedded stock object,
// and a nested holder object in place of holderId.
func (h *Holding) UnmarshalJSON(data []byte) error {
	type alias Holding
	var raw struct {
		alias
		Holder *struct {
			ID int64 `json:"id"`
		} `json:"holder,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*h = Holding(raw.alias)
	if h.StockSymbol == "" && h.Stock != nil {
		h.StockSymbol = h.Stock.Symbol
	}
	if h.HolderID == 0 && raw.Holder != nil {
		h.HolderID = raw.Holder.ID
	}
	h.StockSymbol = strings.ToUpper(strings.TrimSpace(h.StockSymbol))
	return nil
}

// HistoryPoint is one (timestamp, portfolio value) sample.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// =============================================================================
// Backend aggregates
// =============================================================================

type Analytics struct {
	HolderName           string             `json:"holderName,omitempty"`
	TotalInvested        float64            `json:"totalInvested"`
	CurrentValue         float64            `json:"currentValue"`
	ProfitLoss           float64            `json:"profitLoss"`
	AverageReturn        float64            `json:"averageReturn"`
	RiskScore            float64            `json:"riskScore"`
	DiversificationScore float64            `json:"diversificationScore"`
	TotalHoldings        int                `json:"totalHoldings,omitempty"`
	UniqueStocks         int                `json:"uniqueStocks,omitempty"`
	BestPerformer        string             `json:"bestPerformer,omitempty"`
	SectorAllocation     map[string]float64 `json:"sectorAllocation,omitempty"`
}

type Action string

const (
	ActionBuy   Action = "BUY"
	ActionHold  Action = "HOLD"
	ActionSell  Action = "SELL"
	ActionWatch Action = "WATCH"
)

// ParseAction normalises backend spellings such as "strong buy" or "sell".
// Unknown values map to WATCH.
func ParseAction(s string) Action {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, "BUY"):
		return ActionBuy
	case strings.Contains(s, "SELL"):
		return ActionSell
	case strings.Contains(s, "HOLD"):
		return ActionHold
	default:
		return ActionWatch
	}
}

type Recommendation struct {
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name,omitempty"`
	Action      Action   `json:"action"`
	Score       float64  `json:"score"`
	Reason      string   `json:"reason,omitempty"`
	RiskLevel   string   `json:"riskLevel,omitempty"`
	TargetPrice *float64 `json:"targetPrice,omitempty"`
}

// UnmarshalJSON accepts the flat shape, the nested stock shape and the
// legacy {stockSymbol, stockName, recommendation, confidenceScore} shape.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Symbol          string   `json:"symbol"`
		Name            string   `json:"name"`
		Action          string   `json:"action"`
		Recommendation  string   `json:"recommendation"`
		Type            string   `json:"type"`
		Score           *float64 `json:"score"`
		ConfidenceScore *float64 `json:"confidenceScore"`
		Reason          string   `json:"reason"`
		RiskLevel       string   `json:"riskLevel"`
		TargetPrice     *float64 `json:"targetPrice"`
		StockSymbol     string   `json:"stockSymbol"`
		StockName       string   `json:"stockName"`
		Stock           *struct {
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
		} `json:"stock"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Recommendation{
		Symbol:      firstNonEmpty(raw.Symbol, raw.StockSymbol),
		Name:        firstNonEmpty(raw.Name, raw.StockName),
		Action:      ParseAction(firstNonEmpty(raw.Action, raw.Recommendation, raw.Type)),
		Reason:      raw.Reason,
		RiskLevel:   raw.RiskLevel,
		TargetPrice: raw.TargetPrice,
	}
	if raw.Stock != nil {
		r.Symbol = firstNonEmpty(r.Symbol, raw.Stock.Symbol)
		r.Name = firstNonEmpty(r.Name, raw.Stock.Name)
	}
	switch {
	case raw.Score != nil:
		r.Score = *raw.Score
	case raw.ConfidenceScore != nil:
		r.Score = *raw.ConfidenceScore
	}
	return nil
}

type HeatLevel string

const (
	HeatOverheated HeatLevel = "OVERHEATED"
	HeatWarm       HeatLevel = "WARM"
	HeatNeutral    HeatLevel = "NEUTRAL"
	HeatCool       HeatLevel = "COOL"
)

type HeatEntry struct {
	Symbol           string    `json:"symbol"`
	Name             string    `json:"name"`
	Sector           string    `json:"sector,omitempty"`
	Exchange         string    `json:"exchange,omitempty"`
	CurrentPrice     float64   `json:"currentPrice"`
	ChangePercent    float64   `json:"changePercent"`
	Volume           *int64    `json:"volume,omitempty"`
	HeatScore        float64   `json:"heatScore"`
	HeatLevel        HeatLevel `json:"heatLevel,omitempty"`
	AISentimentScore float64   `json:"aiSentimentScore"`
	AIReasoning      string    `json:"aiReasoning,omitempty"`
	Trend            string    `json:"trend,omitempty"`
}

type MarketOverview struct {
	TotalStocks      int     `json:"totalStocks"`
	AdvancingStocks  int     `json:"advancingStocks"`
	DecliningStocks  int     `json:"decliningStocks"`
	MarketSentiment  float64 `json:"marketSentiment"`
	OverallTrend     string  `json:"overallTrend"`
	AverageChangePct float64 `json:"averageChangePercent,omitempty"`
}

type MarketMovers struct {
	TopGainers []Stock         `json:"topGainers"`
	TopLosers  []Stock         `json:"topLosers"`
	MostActive []Stock         `json:"mostActive"`
	Summary    *MarketOverview `json:"summary,omitempty"`
}

type Sector struct {
	Name             string  `json:"name"`
	DisplayName      string  `json:"displayName,omitempty"`
	DayChangePercent float64 `json:"dayChangePercent"`
	WeekChange       float64 `json:"weekChange"`
	MonthChange      float64 `json:"monthChange"`
	Sentiment        string  `json:"sentiment,omitempty"`
}

// Label prefers the display name.
func (s Sector) Label() string {
	return firstNonEmpty(s.DisplayName, s.Name)
}

type SectorPerformance struct {
	Sectors         []Sector `json:"sectors"`
	MarketSentiment struct {
		OverallTrend string  `json:"overallTrend"`
		OverallScore float64 `json:"overallScore"`
	} `json:"marketSentiment"`
}

type Outlook struct {
	Overall    string   `json:"overall"`
	ShortTerm  string   `json:"shortTerm,omitempty"`
	MediumTerm string   `json:"mediumTerm,omitempty"`
	LongTerm   string   `json:"longTerm,omitempty"`
	Confidence float64  `json:"confidence"`
	KeyFactors []string `json:"keyFactors,omitempty"`
}

type TrendingStock struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type AIInsights struct {
	Title            string          `json:"title"`
	Summary          string          `json:"summary"`
	DetailedAnalysis string          `json:"detailedAnalysis,omitempty"`
	Outlook          *Outlook        `json:"outlook,omitempty"`
	TrendingStocks   []TrendingStock `json:"trendingStocks,omitempty"`
	RiskAlerts       []string        `json:"riskAlerts,omitempty"`
	Opportunities    []string        `json:"opportunities,omitempty"`
}

type Diversification struct {
	DiversificationScore float64            `json:"diversificationScore"`
	SectorAllocation     map[string]float64 `json:"sectorAllocation"`
	ExchangeAllocation   map[string]float64 `json:"exchangeAllocation,omitempty"`
	Suggestions          []string           `json:"suggestions,omitempty"`
}

type PerformanceHolding struct {
	Symbol           string  `json:"symbol"`
	Gain             float64 `json:"gain"`
	GainPercent      float64 `json:"gainPercent"`
	DayChangePercent float64 `json:"dayChangePercent"`
}

type PortfolioPerformance struct {
	TotalValue       float64              `json:"totalValue"`
	TotalGain        float64              `json:"totalGain"`
	TotalGainPercent float64              `json:"totalGainPercent"`
	DayChange        float64              `json:"dayChange"`
	DayChangePercent float64              `json:"dayChangePercent"`
	Holdings         []PerformanceHolding `json:"holdings,omitempty"`
}

type PerformancePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// =============================================================================
// Client-local entities
// =============================================================================

type AlertCondition string

const (
	AlertAbove AlertCondition = "ABOVE"
	AlertBelow AlertCondition = "BELOW"
)

type PriceAlert struct {
	Symbol    string         `json:"symbol"`
	Condition AlertCondition `json:"condition"`
	Price     float64        `json:"price"`
	CreatedAt time.Time      `json:"createdAt"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
