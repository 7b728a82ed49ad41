package main

import (
	"fmt"
	"math"
	"net/mail"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/portfolio"
	"github.com/Rohianon/folio/pkg/response"
)

const (
	defaultMoverLimit = 5
	defaultRecLimit   = 50
	defaultDays       = 30
	maxDays           = 365
)

// Routes mounts the REST surface on r, which is normally the /api group.
func (s *Server) Routes(r fiber.Router) {
	// Holders & holdings
	r.Get("/holders", s.listHolders)
	r.Post("/holders", s.addHolder)
	r.Post("/holders/add", s.addHolder)
	r.Get("/holdings/:id", s.listHoldings)
	r.Post("/holdings/add/:id", s.addHolding)
	r.Post("/holdings/add", s.addHolding)

	// Stocks & portfolio
	r.Get("/stocks", s.listStocks)
	r.Get("/portfolio/analytics/:id", s.getAnalytics)
	r.Get("/portfolio/summary/:id", s.getAnalytics)
	r.Get("/portfolio/performance", s.getPerformance)
	r.Get("/portfolio/performance/history", s.getPerformanceHistory)
	r.Get("/portfolio/diversification", s.getDiversification)

	// Market
	r.Get("/market/overview", s.getOverview)
	r.Get("/market/top-gainers", s.moverList(byGain))
	r.Get("/market/top-losers", s.moverList(byLoss))
	r.Get("/market/most-active", s.moverList(byVolume))
	r.Get("/market/movers", s.getMovers)
	r.Get("/sectors", s.getSectors)
	r.Get("/ai-insights", s.getInsights)

	// Recommendations & heat map
	r.Get("/recommendations", s.recommendationList(""))
	r.Get("/recommendations/buy", s.recommendationList(models.ActionBuy))
	r.Get("/recommendations/sell", s.recommendationList(models.ActionSell))
	r.Post("/stocks/recommendations", s.legacyRecommendations)
	r.Get("/dumb-money/heat-map", s.getHeatMap)
	r.Get("/dumb-money/heat-map/realtime", s.getRealtimeHeatMap)
}

// AdminRoutes mounts state control used by tests and demos.
func (s *Server) AdminRoutes(r fiber.Router) {
	r.Post("/reset", s.resetState)
	r.Post("/tick", s.advance)
	r.Get("/state", s.getState)
}

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ErrBadRequest.WithMessage("Invalid holder id")
	}
	return id, nil
}

func holderNotFound(id int64) error {
	return apperrors.ErrNotFound.WithMessage(fmt.Sprintf("Holder %d not found", id))
}

// =============================================================================
// Holders & holdings
// =============================================================================

func (s *Server) listHolders(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return response.List(c, append([]models.Holder(nil), s.holders...))
}

type addHolderRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (s *Server) addHolder(c *fiber.Ctx) error {
	var req addHolderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrBadRequest.WithMessage("Invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	problems := map[string]string{}
	if req.Name == "" {
		problems["name"] = "name is required"
	}
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			problems["email"] = "email is invalid"
		}
	}
	if len(problems) > 0 {
		return apperrors.ErrValidation.WithDetails(problems)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	holder := models.Holder{ID: s.nextHolderID, Name: req.Name, Email: req.Email}
	s.nextHolderID++
	s.holders = append(s.holders, holder)

	logger.Info().Int64("holder_id", holder.ID).Msg("Holder added")
	return response.Created(c, holder)
}

func (s *Server) listHoldings(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.holder(id); !ok {
		return holderNotFound(id)
	}
	return response.List(c, s.holdingsOf(id))
}

type addHoldingRequest struct {
	HolderID    int64   `json:"holderId"`
	StockSymbol string  `json:"stockSymbol"`
	Quantity    int     `json:"quantity"`
	AvgPrice    float64 `json:"avgPrice"`
	Price       float64 `json:"price"`
}

func (s *Server) addHolding(c *fiber.Ctx) error {
	var req addHoldingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.ErrBadRequest.WithMessage("Invalid request body")
	}

	if c.Params("id") != "" {
		id, err := paramID(c)
		if err != nil {
			return err
		}
		req.HolderID = id
	}
	if req.AvgPrice == 0 {
		req.AvgPrice = req.Price
	}

	problems := map[string]string{}
	if req.HolderID <= 0 {
		problems["holderId"] = "holder is required"
	}
	if strings.TrimSpace(req.StockSymbol) == "" {
		problems["stockSymbol"] = "symbol is required"
	}
	if req.Quantity < 1 {
		problems["quantity"] = "quantity must be at least 1"
	}
	if req.AvgPrice <= 0 || math.IsNaN(req.AvgPrice) {
		problems["avgPrice"] = "price must be positive"
	}
	if len(problems) > 0 {
		return apperrors.ErrValidation.WithDetails(problems)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holder(req.HolderID); !ok {
		return holderNotFound(req.HolderID)
	}
	st, ok := s.stock(req.StockSymbol)
	if !ok {
		return apperrors.ErrNotFound.WithMessage("Unknown stock " + strings.ToUpper(req.StockSymbol))
	}

	holding := models.Holding{
		ID:          s.nextHoldingID,
		HolderID:    req.HolderID,
		StockSymbol: st.Symbol,
		Quantity:    req.Quantity,
		AvgPrice:    req.AvgPrice,
	}
	s.nextHoldingID++
	s.holdings = append(s.holdings, holding)

	logger.Info().
		Int64("holder_id", holding.HolderID).
		Str("symbol", holding.StockSymbol).
		Int("quantity", holding.Quantity).
		Msg("Holding added")

	holding.Stock = &st
	return response.Created(c, holding)
}

// =============================================================================
// Stocks & portfolio
// =============================================================================

func (s *Server) listStocks(c *fiber.Ctx) error {
	exchange := strings.ToUpper(strings.TrimSpace(c.Query("exchange")))

	s.mu.RLock()
	defer s.mu.RUnlock()

	stocks := make([]models.Stock, 0, len(s.stocks))
	for _, st := range s.stocks {
		if exchange != "" && st.Exchange != exchange {
			continue
		}
		stocks = append(stocks, st)
	}
	return response.List(c, stocks)
}

func (s *Server) getAnalytics(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	holder, ok := s.holder(id)
	if !ok {
		return holderNotFound(id)
	}
	return response.OK(c, s.analytics(holder.Name, s.holdingsOf(id)))
}

func (s *Server) getPerformance(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySymbol := map[string]*models.PerformanceHolding{}
	invested := map[string]float64{}
	var p models.PortfolioPerformance
	var dayStart float64

	for _, h := range s.holdingsOf(0) {
		if h.Stock == nil {
			continue
		}
		st := *h.Stock
		value := portfolio.MarketValue(h, st)
		p.TotalValue += value
		p.TotalGain += portfolio.ProfitLoss(h, st)
		p.DayChange += float64(h.Quantity) * (st.CurrentPrice - st.BasePrice)
		dayStart += float64(h.Quantity) * st.BasePrice

		ph, ok := bySymbol[st.Symbol]
		if !ok {
			ph = &models.PerformanceHolding{Symbol: st.Symbol, DayChangePercent: changeOf(st)}
			bySymbol[st.Symbol] = ph
		}
		ph.Gain += portfolio.ProfitLoss(h, st)
		invested[st.Symbol] += portfolio.InvestedValue(h)
	}

	totalInvested := p.TotalValue - p.TotalGain
	if totalInvested > 0 {
		p.TotalGainPercent = round2(p.TotalGain / totalInvested * 100)
	}
	if dayStart > 0 {
		p.DayChangePercent = round2(p.DayChange / dayStart * 100)
	}
	p.TotalValue = round2(p.TotalValue)
	p.TotalGain = round2(p.TotalGain)
	p.DayChange = round2(p.DayChange)

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		ph := bySymbol[sym]
		if invested[sym] > 0 {
			ph.GainPercent = round2(ph.Gain / invested[sym] * 100)
		}
		ph.Gain = round2(ph.Gain)
		p.Holdings = append(p.Holdings, *ph)
	}

	return response.OK(c, p)
}

// getPerformanceHistory walks total value from what was invested to what it
// is worth now, one point per day ending today.
func (s *Server) getPerformanceHistory(c *fiber.Ctx) error {
	days := defaultDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDays {
			return apperrors.ErrValidation.WithDetails(fmt.Sprintf("days must be between 1 and %d", maxDays))
		}
		days = n
	}

	s.mu.RLock()
	a := s.analytics("", s.holdingsOf(0))
	s.mu.RUnlock()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	points := make([]models.PerformancePoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		frac := 1.0
		if days > 1 {
			frac = float64(days-1-i) / float64(days-1)
		}
		wobble := 0.0
		if i > 0 {
			wobble = a.CurrentValue * 0.01 * math.Sin(float64(i))
		}
		points = append(points, models.PerformancePoint{
			Date:  today.AddDate(0, 0, -i).Format(time.DateOnly),
			Value: round2(a.TotalInvested + (a.CurrentValue-a.TotalInvested)*frac + wobble),
		})
	}
	return response.List(c, points)
}

// getDiversification reports allocation across every holder.
func (s *Server) getDiversification(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holdings := s.holdingsOf(0)
	sum := portfolio.Aggregate(holdings, s.stockMap())

	exchanges := map[string]float64{}
	for _, p := range sum.Positions {
		exchange := p.Stock.Exchange
		if exchange == "" {
			exchange = "OTHER"
		}
		exchanges[exchange] += p.MarketValue
	}
	for k, v := range exchanges {
		if sum.CurrentValue > 0 {
			exchanges[k] = round2(v / sum.CurrentValue * 100)
		} else {
			exchanges[k] = 0
		}
	}

	var suggestions []string
	for _, a := range portfolio.DiversificationAdvice(sum) {
		suggestions = append(suggestions, a.Message)
	}

	return response.OK(c, models.Diversification{
		DiversificationScore: float64(sum.DiversificationScore),
		SectorAllocation:     portfolio.SectorPercentages(sum),
		ExchangeAllocation:   exchanges,
		Suggestions:          suggestions,
	})
}

// =============================================================================
// Market
// =============================================================================

func (s *Server) getOverview(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return response.OK(c, s.overview())
}

func (s *Server) moverList(order moverOrder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := response.Limit(c, defaultMoverLimit)

		s.mu.RLock()
		defer s.mu.RUnlock()
		return response.List(c, s.movers(order, limit))
	}
}

func (s *Server) getMovers(c *fiber.Ctx) error {
	limit := response.Limit(c, defaultMoverLimit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	overview := s.overview()
	return response.OK(c, models.MarketMovers{
		TopGainers: s.movers(byGain, limit),
		TopLosers:  s.movers(byLoss, limit),
		MostActive: s.movers(byVolume, limit),
		Summary:    &overview,
	})
}

func (s *Server) getSectors(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		total float64
		n     int
	}
	groups := map[string]*acc{}
	var names []string
	for _, st := range s.stocks {
		g, ok := groups[st.Sector]
		if !ok {
			g = &acc{}
			groups[st.Sector] = g
			names = append(names, st.Sector)
		}
		g.total += changeOf(st)
		g.n++
	}
	sort.Strings(names)

	var perf models.SectorPerformance
	overall := 0.0
	for _, name := range names {
		day := round2(groups[name].total / float64(groups[name].n))
		overall += day
		perf.Sectors = append(perf.Sectors, models.Sector{
			Name:             strings.ToLower(name),
			DisplayName:      name,
			DayChangePercent: day,
			WeekChange:       round2(day * 2.3),
			MonthChange:      round2(day * 4.1),
			Sentiment:        sectorSentiment(day),
		})
	}
	if len(names) > 0 {
		overall /= float64(len(names))
	}
	perf.MarketSentiment.OverallScore = round2(overall)
	perf.MarketSentiment.OverallTrend = overallTrend(overall)

	return response.OK(c, perf)
}

func sectorSentiment(day float64) string {
	switch {
	case day > 0.25:
		return "POSITIVE"
	case day < -0.25:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}

func (s *Server) getInsights(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o := s.overview()
	insights := models.AIInsights{
		Title: "Market Pulse",
		Summary: fmt.Sprintf("%d of %d stocks advancing; average move %+.2f%%.",
			o.AdvancingStocks, o.TotalStocks, o.AverageChangePct),
		DetailedAnalysis: "Large-cap IT and private banks lead while high-beta names remain under pressure.",
		Outlook: &models.Outlook{
			Overall:    o.OverallTrend,
			ShortTerm:  o.OverallTrend,
			MediumTerm: "NEUTRAL",
			LongTerm:   "BULLISH",
			Confidence: round2(o.MarketSentiment / 100),
			KeyFactors: []string{"Earnings season", "Rate outlook", "Retail flows"},
		},
	}

	for _, st := range s.movers(byGain, 3) {
		insights.TrendingStocks = append(insights.TrendingStocks, models.TrendingStock{
			Symbol: st.Symbol,
			Name:   st.Name,
			Reason: fmt.Sprintf("Up %.2f%% on strong volume", changeOf(st)),
		})
	}
	for _, st := range s.stocks {
		switch portfolio.SignalClassification(st) {
		case portfolio.DumbMoney:
			insights.RiskAlerts = append(insights.RiskAlerts, st.Symbol+": speculative positioning")
		case portfolio.SmartMoney:
			insights.Opportunities = append(insights.Opportunities, st.Symbol+": institutional accumulation")
		}
	}

	return response.OK(c, insights)
}

// =============================================================================
// Recommendations & heat map
// =============================================================================

func (s *Server) recommendationList(filter models.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := response.Limit(c, defaultRecLimit)

		s.mu.RLock()
		recs := s.recommendations(filter)
		s.mu.RUnlock()

		if len(recs) > limit {
			recs = recs[:limit]
		}
		return response.List(c, recs)
	}
}

type legacyRecommendation struct {
	StockSymbol     string  `json:"stockSymbol"`
	StockName       string  `json:"stockName"`
	Recommendation  string  `json:"recommendation"`
	ConfidenceScore float64 `json:"confidenceScore"`
	Reason          string  `json:"reason"`
}

// legacyRecommendations serves the older POST shape some backends still
// expose.
func (s *Server) legacyRecommendations(c *fiber.Ctx) error {
	s.mu.RLock()
	recs := s.recommendations("")
	s.mu.RUnlock()

	out := make([]legacyRecommendation, 0, len(recs))
	for _, r := range recs {
		out = append(out, legacyRecommendation{
			StockSymbol:     r.Symbol,
			StockName:       r.Name,
			Recommendation:  string(r.Action),
			ConfidenceScore: r.Score,
			Reason:          r.Reason,
		})
	}
	return response.List(c, out)
}

func (s *Server) getHeatMap(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return response.List(c, s.heatMap())
}

// getRealtimeHeatMap advances prices one step before scoring.
func (s *Server) getRealtimeHeatMap(c *fiber.Ctx) error {
	s.mu.Lock()
	s.tick()
	entries := s.heatMap()
	s.mu.Unlock()

	return response.List(c, entries)
}

// =============================================================================
// Admin
// =============================================================================

func (s *Server) resetState(c *fiber.Ctx) error {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()

	logger.Info().Msg("State reset")
	return c.JSON(fiber.Map{"status": "reset"})
}

func (s *Server) advance(c *fiber.Ctx) error {
	steps, err := strconv.Atoi(c.Query("steps", "1"))
	if err != nil || steps < 1 || steps > 1000 {
		return apperrors.ErrValidation.WithDetails("steps must be between 1 and 1000")
	}

	s.mu.Lock()
	for range steps {
		s.tick()
	}
	ticks := s.ticks
	s.mu.Unlock()

	return c.JSON(fiber.Map{"ticks": ticks})
}

func (s *Server) getState(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return c.JSON(fiber.Map{
		"holders":  len(s.holders),
		"holdings": len(s.holdings),
		"stocks":   len(s.stocks),
		"ticks":    s.ticks,
	})
}
