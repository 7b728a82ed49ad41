package client

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"sort"
	"strings"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/fetch"
	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/refresh"
)

// DefaultRecommendationLimit matches what the dashboard asks for.
const DefaultRecommendationLimit = 50

// Client is the typed backend API. It implements refresh.Source.
type Client struct {
	fetcher *fetch.Client
}

var _ refresh.Source = (*Client)(nil)

func New(fetcher *fetch.Client) *Client {
	return &Client{fetcher: fetcher}
}

func (c *Client) BaseURL() string {
	return c.fetcher.BaseURL()
}

// fallbackOn reports whether err is an HTTP error with one of statuses.
func fallbackOn(err error, statuses ...int) bool {
	status := fetch.StatusOf(err)
	for _, s := range statuses {
		if status == s {
			return true
		}
	}
	return false
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	return q
}

// =============================================================================
// Validation
// =============================================================================

// ValidateHolder checks the add-holder form before anything is sent.
func ValidateHolder(name, email string) error {
	fields := map[string]string{}
	if strings.TrimSpace(name) == "" {
		fields["name"] = "name is required"
	}
	if email = strings.TrimSpace(email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			fields["email"] = "email is not a valid address"
		}
	}
	return validationError(fields)
}

// ValidateHolding checks the add-holding form before anything is sent.
func ValidateHolding(holderID int64, symbol string, quantity int, price float64) error {
	fields := map[string]string{}
	if holderID <= 0 {
		fields["holder"] = "select a holder first"
	}
	if strings.TrimSpace(symbol) == "" {
		fields["symbol"] = "symbol is required"
	}
	if quantity < 1 {
		fields["quantity"] = "quantity must be at least 1"
	}
	if price <= 0 {
		fields["price"] = "price must be greater than 0"
	}
	return validationError(fields)
}

func validationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return apperrors.ErrValidation.WithMessage(strings.Join(msgs, "; ")).WithDetails(fields)
}

// =============================================================================
// Holders & holdings
// =============================================================================

func (c *Client) Holders(ctx context.Context) ([]models.Holder, error) {
	var holders []models.Holder
	err := c.fetcher.Get(ctx, "/holders", &holders)
	return holders, err
}

type AddHolderRequest struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// AddHolder posts to /holders/add, falling back to /holders on backends
// that only expose the collection route.
func (c *Client) AddHolder(ctx context.Context, name, email string) (*models.Holder, error) {
	if err := ValidateHolder(name, email); err != nil {
		return nil, err
	}

	req := AddHolderRequest{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	var holder models.Holder
	err := c.fetcher.Post(ctx, "/holders/add", req, &holder)
	if fallbackOn(err, http.StatusNotFound, http.StatusMethodNotAllowed) {
		logger.Debug().Msg("Falling back to POST /holders")
		err = c.fetcher.Post(ctx, "/holders", req, &holder)
	}
	if err != nil {
		return nil, err
	}
	return &holder, nil
}

func (c *Client) Holdings(ctx context.Context, holderID int64) ([]models.Holding, error) {
	var holdings []models.Holding
	err := c.fetcher.Get(ctx, fmt.Sprintf("/holdings/%d", holderID), &holdings)
	return holdings, err
}

type AddHoldingRequest struct {
	HolderID    int64   `json:"holderId"`
	StockSymbol string  `json:"stockSymbol"`
	Quantity    int     `json:"quantity"`
	AvgPrice    float64 `json:"avgPrice"`
	Price       float64 `json:"price"`
}

// AddHolding posts to /holdings/add/{id}, falling back to /holdings/add
// with the holder in the body.
func (c *Client) AddHolding(ctx context.Context, holderID int64, symbol string, quantity int, price float64) (*models.Holding, error) {
	if err := ValidateHolding(holderID, symbol, quantity, price); err != nil {
		return nil, err
	}

	req := AddHoldingRequest{
		HolderID:    holderID,
		StockSymbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Quantity:    quantity,
		AvgPrice:    price,
		Price:       price,
	}
	var holding models.Holding
	err := c.fetcher.Post(ctx, fmt.Sprintf("/holdings/add/%d", holderID), req, &holding)
	if fallbackOn(err, http.StatusNotFound, http.StatusMethodNotAllowed) {
		logger.Debug().Msg("Falling back to POST /holdings/add")
		err = c.fetcher.Post(ctx, "/holdings/add", req, &holding)
	}
	if err != nil {
		return nil, err
	}
	return &holding, nil
}

// =============================================================================
// Stocks & portfolio
// =============================================================================

func (c *Client) Stocks(ctx context.Context) ([]models.Stock, error) {
	return c.ListStocks(ctx, "")
}

// ListStocks returns all stocks, or those on exchange when set.
func (c *Client) ListStocks(ctx context.Context, exchange string) ([]models.Stock, error) {
	q := url.Values{}
	if exchange = strings.TrimSpace(exchange); exchange != "" {
		q.Set("exchange", strings.ToUpper(exchange))
	}

	var stocks []models.Stock
	err := c.fetcher.Get(ctx, withQuery("/stocks", q), &stocks)
	return stocks, err
}

// Analytics reads /portfolio/analytics/{id}, or /portfolio/summary/{id} on
// backends without the analytics route.
func (c *Client) Analytics(ctx context.Context, holderID int64) (*models.Analytics, error) {
	var a models.Analytics
	err := c.fetcher.Get(ctx, fmt.Sprintf("/portfolio/analytics/%d", holderID), &a)
	if fallbackOn(err, http.StatusNotFound) {
		return c.Summary(ctx, holderID)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) Summary(ctx context.Context, holderID int64) (*models.Analytics, error) {
	var a models.Analytics
	if err := c.fetcher.Get(ctx, fmt.Sprintf("/portfolio/summary/%d", holderID), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) Performance(ctx context.Context) (*models.PortfolioPerformance, error) {
	var p models.PortfolioPerformance
	if err := c.fetcher.Get(ctx, "/portfolio/performance", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) PerformanceHistory(ctx context.Context, days int) ([]models.PerformancePoint, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", fmt.Sprint(days))
	}

	var points []models.PerformancePoint
	err := c.fetcher.Get(ctx, withQuery("/portfolio/performance/history", q), &points)
	return points, err
}

func (c *Client) Diversification(ctx context.Context) (*models.Diversification, error) {
	var d models.Diversification
	if err := c.fetcher.Get(ctx, "/portfolio/diversification", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// Market
// =============================================================================

func (c *Client) MarketOverview(ctx context.Context) (*models.MarketOverview, error) {
	var o models.MarketOverview
	if err := c.fetcher.Get(ctx, "/market/overview", &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) marketList(ctx context.Context, path string, limit int) ([]models.Stock, error) {
	var stocks []models.Stock
	err := c.fetcher.Get(ctx, withQuery(path, limitQuery(limit)), &stocks)
	return stocks, err
}

func (c *Client) TopGainers(ctx context.Context, limit int) ([]models.Stock, error) {
	return c.marketList(ctx, "/market/top-gainers", limit)
}

func (c *Client) TopLosers(ctx context.Context, limit int) ([]models.Stock, error) {
	return c.marketList(ctx, "/market/top-losers", limit)
}

func (c *Client) MostActive(ctx context.Context, limit int) ([]models.Stock, error) {
	return c.marketList(ctx, "/market/most-active", limit)
}

func (c *Client) Movers(ctx context.Context) (*models.MarketMovers, error) {
	var m models.MarketMovers
	if err := c.fetcher.Get(ctx, "/market/movers", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Sectors(ctx context.Context) (*models.SectorPerformance, error) {
	var s models.SectorPerformance
	if err := c.fetcher.Get(ctx, "/sectors", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Insights(ctx context.Context) (*models.AIInsights, error) {
	var in models.AIInsights
	if err := c.fetcher.Get(ctx, "/ai-insights", &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// =============================================================================
// Recommendations & heat map
// =============================================================================

type RecommendationFilter string

const (
	FilterAll  RecommendationFilter = ""
	FilterBuy  RecommendationFilter = "buy"
	FilterSell RecommendationFilter = "sell"
)

// ParseFilter accepts "", "all", "buy" and "sell".
func ParseFilter(s string) (RecommendationFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return FilterAll, nil
	case "buy":
		return FilterBuy, nil
	case "sell":
		return FilterSell, nil
	default:
		return FilterAll, apperrors.ErrValidation.WithMessage(fmt.Sprintf("unknown recommendation filter %q", s))
	}
}

func (c *Client) Recommendations(ctx context.Context) ([]models.Recommendation, error) {
	return c.ListRecommendations(ctx, FilterAll, DefaultRecommendationLimit)
}

// ListRecommendations reads /recommendations[/buy|/sell]. Backends without
// that route get the legacy POST /stocks/recommendations, filtered here.
func (c *Client) ListRecommendations(ctx context.Context, filter RecommendationFilter, limit int) ([]models.Recommendation, error) {
	path := "/recommendations"
	if filter != FilterAll {
		path += "/" + string(filter)
	}

	var recs []models.Recommendation
	err := c.fetcher.Get(ctx, withQuery(path, limitQuery(limit)), &recs)
	if fallbackOn(err, http.StatusNotFound) {
		logger.Debug().Msg("Falling back to POST /stocks/recommendations")
		recs = nil
		if err = c.fetcher.Post(ctx, "/stocks/recommendations", struct{}{}, &recs); err == nil {
			recs = filterRecommendations(recs, filter, limit)
		}
	}
	return recs, err
}

func filterRecommendations(recs []models.Recommendation, filter RecommendationFilter, limit int) []models.Recommendation {
	out := recs[:0]
	for _, r := range recs {
		switch {
		case filter == FilterBuy && r.Action != models.ActionBuy:
			continue
		case filter == FilterSell && r.Action != models.ActionSell:
			continue
		}
		out = append(out, r)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (c *Client) HeatMap(ctx context.Context) ([]models.HeatEntry, error) {
	return c.ListHeatMap(ctx, false)
}

// ListHeatMap reads the stored heat map, or the realtime one.
func (c *Client) ListHeatMap(ctx context.Context, realtime bool) ([]models.HeatEntry, error) {
	path := "/dumb-money/heat-map"
	if realtime {
		path += "/realtime"
	}

	var entries []models.HeatEntry
	err := c.fetcher.Get(ctx, path, &entries)
	return entries, err
}
