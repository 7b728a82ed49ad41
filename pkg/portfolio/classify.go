package portfolio

import "github.com/Rohianon/folio/pkg/models"

// Heat bands. Policy constants, not derived from data.
const (
	HeatOverheatedAt = 75.0
	HeatWarmAt       = 55.0
	HeatNeutralAt    = 35.0
)

func HeatClassification(score float64) models.HeatLevel {
	switch {
	case score >= HeatOverheatedAt:
		return models.HeatOverheated
	case score >= HeatWarmAt:
		return models.HeatWarm
	case score >= HeatNeutralAt:
		return models.HeatNeutral
	default:
		return models.HeatCool
	}
}

type Signal string

const (
	SmartMoney    Signal = "SMART_MONEY"
	DumbMoney     Signal = "DUMB_MONEY"
	NeutralSignal Signal = "NEUTRAL"
)

const (
	smartMaxVolatility = 0.3
	smartMinConfidence = 80
	dumbMinVolatility  = 0.4
	dumbMaxConfidence  = 50
)

// SignalClassification: smart needs low volatility AND high confidence;
// dumb needs high volatility OR low confidence. A stock matching neither
// (moderate on both axes) is neutral.
func SignalClassification(s models.Stock) Signal {
	switch {
	case s.Volatility < smartMaxVolatility && s.ConfidenceScore > smartMinConfidence:
		return SmartMoney
	case s.Volatility > dumbMinVolatility || s.ConfidenceScore < dumbMaxConfidence:
		return DumbMoney
	default:
		return NeutralSignal
	}
}
