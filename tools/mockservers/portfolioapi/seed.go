package main

import "github.com/Rohianon/folio/pkg/models"

type seedStock struct {
	symbol     string
	name       string
	sector     string
	exchange   string
	base       float64
	current    float64
	volatility float64
	confidence int
	volume     int64
	pe         float64
}

var seedStocks = []seedStock{
	{"TCS", "Tata Consultancy Services", "IT", "NSE", 3850, 3912.40, 0.18, 95, 2_140_000, 29.4},
	{"INFY", "Infosys", "IT", "NSE", 1650, 1631.75, 0.22, 92, 5_820_000, 24.1},
	{"WIPRO", "Wipro", "IT", "BSE", 520, 528.30, 0.35, 68, 7_310_000, 21.8},
	{"HDFCBANK", "HDFC Bank", "Banking", "NSE", 1500, 1523.10, 0.20, 94, 9_450_000, 18.7},
	{"ICICIBANK", "ICICI Bank", "Banking", "NSE", 1050, 1071.90, 0.25, 88, 11_200_000, 17.9},
	{"SBIN", "State Bank of India", "Banking", "BSE", 720, 702.45, 0.38, 62, 14_800_000, 10.2},
	{"PNB", "Punjab National Bank", "Banking", "BSE", 110, 104.20, 0.55, 45, 38_600_000, 8.4},
	{"YESBANK", "Yes Bank", "Banking", "BSE", 24, 22.15, 0.70, 30, 152_000_000, 0},
	{"BAJFINANCE", "Bajaj Finance", "Finance", "NSE", 7200, 7288.00, 0.32, 78, 1_320_000, 33.6},
	{"RELIANCE", "Reliance Industries", "Energy", "NSE", 2950, 2987.35, 0.24, 90, 6_700_000, 27.2},
	{"ADANIPOWER", "Adani Power", "Energy", "BSE", 560, 531.80, 0.62, 40, 21_900_000, 14.9},
	{"HINDUNILVR", "Hindustan Unilever", "FMCG", "NSE", 2450, 2441.60, 0.15, 86, 1_080_000, 57.3},
	{"ITC", "ITC", "FMCG", "BSE", 430, 436.90, 0.19, 82, 12_400_000, 26.5},
	{"SUNPHARMA", "Sun Pharma", "Pharma", "NSE", 1580, 1602.25, 0.27, 79, 2_560_000, 35.1},
	{"TATAMOTORS", "Tata Motors", "Auto", "NSE", 980, 1012.70, 0.45, 58, 17_300_000, 9.8},
}

var seedHolders = []models.Holder{
	{ID: 1, Name: "Rushil Shah", Email: "rushil@example.com"},
	{ID: 2, Name: "Shambhavi", Email: "shambhavi@example.com"},
	{ID: 3, Name: "Shruti", Email: "shruti@example.com"},
	{ID: 4, Name: "Shivam", Email: "shivam@example.com"},
}

type seedHolding struct {
	holderID int64
	symbol   string
	quantity int
	avgPrice float64
}

// Holder 4 starts with an empty portfolio.
var seedHoldings = []seedHolding{
	{1, "TCS", 10, 3600},
	{1, "INFY", 15, 1500},
	{1, "HDFCBANK", 20, 1450},
	{1, "RELIANCE", 5, 2800},
	{2, "ICICIBANK", 25, 980},
	{2, "SBIN", 40, 650},
	{2, "ITC", 100, 410},
	{3, "ADANIPOWER", 50, 600},
	{3, "YESBANK", 500, 27},
	{3, "PNB", 200, 120},
}

func newStock(s seedStock) models.Stock {
	volume := s.volume
	st := models.Stock{
		Symbol:          s.symbol,
		Name:            s.name,
		Sector:          s.sector,
		Exchange:        s.exchange,
		BasePrice:       s.base,
		CurrentPrice:    s.current,
		Volatility:      s.volatility,
		ConfidenceScore: s.confidence,
		Volume:          &volume,
	}
	if s.pe > 0 {
		pe := s.pe
		st.PERatio = &pe
	}
	setChange(&st)
	return st
}
