package portfolio

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rohianon/folio/pkg/models"
)

// SectorPercentages converts the sector allocation to percent of current
// value, rounded to two places. Empty when the portfolio has no value.
func SectorPercentages(s Summary) map[string]float64 {
	out := make(map[string]float64, len(s.SectorAllocation))
	if s.CurrentValue == 0 {
		return out
	}
	for sector, value := range s.SectorAllocation {
		pct, _ := decimal.NewFromFloat(value / s.CurrentValue * 100).Round(2).Float64()
		out[sector] = pct
	}
	return out
}

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

type Advice struct {
	Sector          string   `json:"sector,omitempty"`
	Percent         float64  `json:"percent,omitempty"`
	Severity        Severity `json:"severity"`
	Message         string   `json:"message"`
	SuggestedSector string   `json:"suggestedSector"`
}

const (
	highExposure     = 45.0
	moderateExposure = 30.0
)

// DiversificationAdvice flags sectors above 45% (HIGH) and 30% (MEDIUM).
// With nothing flagged it returns a single LOW entry. Ordered by exposure,
// largest first.
func DiversificationAdvice(s Summary) []Advice {
	pcts := SectorPercentages(s)
	sectors := make([]string, 0, len(pcts))
	for sector := range pcts {
		sectors = append(sectors, sector)
	}
	sort.Slice(sectors, func(i, j int) bool {
		if pcts[sectors[i]] != pcts[sectors[j]] {
			return pcts[sectors[i]] > pcts[sectors[j]]
		}
		return sectors[i] < sectors[j]
	})

	var advice []Advice
	for _, sector := range sectors {
		pct := pcts[sector]
		switch {
		case pct > highExposure:
			advice = append(advice, Advice{
				Sector:          sector,
				Percent:         pct,
				Severity:        SeverityHigh,
				Message:         fmt.Sprintf("High exposure to %s sector (%.0f%%)", sector, math.Round(pct)),
				SuggestedSector: "Banking / FMCG / Utilities",
			})
		case pct > moderateExposure:
			advice = append(advice, Advice{
				Sector:          sector,
				Percent:         pct,
				Severity:        SeverityMedium,
				Message:         "Moderate concentration in " + sector,
				SuggestedSector: "Add defensive sectors",
			})
		}
	}

	if len(advice) == 0 {
		advice = append(advice, Advice{
			Severity:        SeverityLow,
			Message:         "Portfolio is well diversified",
			SuggestedSector: "None",
		})
	}
	return advice
}

// LocalRecommendations re-buckets held positions with the client-side rule
// set. It is used when the backend's recommendation feed is unavailable.
func LocalRecommendations(s Summary) []models.Recommendation {
	recs := make([]models.Recommendation, 0, len(s.Positions))
	for _, p := range s.Positions {
		if p.PriceMissing {
			continue
		}
		action, reason := ruleFor(p.Stock.ConfidenceScore, p.ProfitLossPercent, p.Stock.Volatility)
		recs = append(recs, models.Recommendation{
			Symbol: p.Stock.Symbol,
			Name:   p.Stock.Name,
			Action: action,
			Score:  float64(p.Stock.ConfidenceScore),
			Reason: reason,
		})
	}
	return recs
}

func ruleFor(confidence int, pnlPercent, volatility float64) (models.Action, string) {
	switch {
	case confidence >= 75 && pnlPercent < 5 && volatility < 0.30:
		return models.ActionBuy, "High confidence, low volatility, growth potential"
	case confidence >= 60 && pnlPercent >= 5:
		return models.ActionHold, "Good performance, stable confidence"
	case confidence < 50 || pnlPercent < -8:
		return models.ActionSell, "Low confidence or rising downside risk"
	default:
		return models.ActionHold, "Neutral signals, wait for clarity"
	}
}

// TopByConfidence returns the n most confident stocks, ties broken by symbol.
func TopByConfidence(stocks []models.Stock, n int) []models.Stock {
	out := make([]models.Stock, len(stocks))
	copy(out, stocks)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ConfidenceScore != out[j].ConfidenceScore {
			return out[i].ConfidenceScore > out[j].ConfidenceScore
		}
		return out[i].Symbol < out[j].Symbol
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// CountActions tallies recommendations per action.
func CountActions(recs []models.Recommendation) map[models.Action]int {
	counts := map[models.Action]int{
		models.ActionBuy:   0,
		models.ActionHold:  0,
		models.ActionSell:  0,
		models.ActionWatch: 0,
	}
	for _, r := range recs {
		counts[r.Action]++
	}
	return counts
}

type HeatStats struct {
	Counts       map[models.HeatLevel]int `json:"counts"`
	AverageScore float64                  `json:"averageScore"`
	Total        int                      `json:"total"`
}

// LevelOf returns the backend level when present, otherwise classifies the
// score locally.
func LevelOf(e models.HeatEntry) models.HeatLevel {
	if e.HeatLevel != "" {
		return models.HeatLevel(strings.ToUpper(string(e.HeatLevel)))
	}
	return HeatClassification(e.HeatScore)
}

func HeatSummary(entries []models.HeatEntry) HeatStats {
	stats := HeatStats{
		Counts: map[models.HeatLevel]int{
			models.HeatOverheated: 0,
			models.HeatWarm:       0,
			models.HeatNeutral:    0,
			models.HeatCool:       0,
		},
		Total: len(entries),
	}
	if len(entries) == 0 {
		return stats
	}

	total := 0.0
	for _, e := range entries {
		stats.Counts[LevelOf(e)]++
		total += e.HeatScore
	}
	stats.AverageScore = total / float64(len(entries))
	return stats
}

type TriggeredAlert struct {
	Alert        models.PriceAlert `json:"alert"`
	CurrentPrice float64           `json:"currentPrice"`
	Index        int               `json:"index"`
}

// EvaluateAlerts reports alerts whose condition holds at the current price.
// ABOVE fires at or above the threshold; BELOW at or below. Alerts for
// unknown symbols are skipped.
func EvaluateAlerts(alerts []models.PriceAlert, stocks map[string]models.Stock) []TriggeredAlert {
	var out []TriggeredAlert
	for i, a := range alerts {
		st, ok := stocks[strings.ToUpper(a.Symbol)]
		if !ok {
			continue
		}
		fired := false
		switch a.Condition {
		case models.AlertAbove:
			fired = st.CurrentPrice >= a.Price
		case models.AlertBelow:
			fired = st.CurrentPrice <= a.Price
		}
		if fired {
			out = append(out, TriggeredAlert{Alert: a, CurrentPrice: st.CurrentPrice, Index: i})
		}
	}
	return out
}

// HistoryPoint samples the summary for the value history.
func HistoryPoint(s Summary, at time.Time) models.HistoryPoint {
	return models.HistoryPoint{Timestamp: at, Value: s.CurrentValue}
}
