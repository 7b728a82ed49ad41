package state

import (
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Rohianon/folio/pkg/models"
)

// Collection names one independently fetched piece of dashboard data.
type Collection string

const (
	Holders         Collection = "holders"
	Holdings        Collection = "holdings"
	Stocks          Collection = "stocks"
	Analytics       Collection = "analytics"
	Recommendations Collection = "recommendations"
	HeatMap         Collection = "heatMap"
	Diversification Collection = "diversification"
	Movers          Collection = "movers"
	Sectors         Collection = "sectors"
	Insights        Collection = "insights"
)

// holderScoped collections are cleared when the selection changes.
var holderScoped = []Collection{Holdings, Analytics}

// Partial carries the outcome of one refresh cycle. A nil field means the
// collection was not fetched or failed; the previous value is kept.
type Partial struct {
	Holders         *[]models.Holder
	Holdings        *[]models.Holding
	Stocks          *[]models.Stock
	Analytics       *models.Analytics
	Recommendations *[]models.Recommendation
	HeatMap         *[]models.HeatEntry
	Diversification *models.Diversification
	Movers          *models.MarketMovers
	Sectors         *models.SectorPerformance
	Insights        *models.AIInsights

	// Errors records collections that failed this cycle.
	Errors map[Collection]error

	At time.Time
}

// Empty reports whether p carries no successful collection.
func (p Partial) Empty() bool {
	return p.Holders == nil && p.Holdings == nil && p.Stocks == nil &&
		p.Analytics == nil && p.Recommendations == nil && p.HeatMap == nil &&
		p.Diversification == nil && p.Movers == nil && p.Sectors == nil &&
		p.Insights == nil
}

// Snapshot is an immutable copy of the store. Renderers only ever see
// snapshots.
type Snapshot struct {
	Holders         []models.Holder
	SelectedHolder  int64
	Holdings        []models.Holding
	Stocks          []models.Stock // ordered by symbol
	Analytics       *models.Analytics
	Recommendations []models.Recommendation
	HeatMap         []models.HeatEntry
	Diversification *models.Diversification
	Movers          *models.MarketMovers
	Sectors         *models.SectorPerformance
	Insights        *models.AIInsights
	History         []models.HistoryPoint
	LastUpdated     time.Time
	Errors          map[Collection]error

	stockIndex map[string]int
}

// Stock looks a stock up by symbol, case-insensitively.
func (s Snapshot) Stock(symbol string) (models.Stock, bool) {
	i, ok := s.stockIndex[strings.ToUpper(symbol)]
	if !ok {
		return models.Stock{}, false
	}
	return s.Stocks[i], true
}

// StockMap returns the stocks keyed by symbol.
func (s Snapshot) StockMap() map[string]models.Stock {
	out := make(map[string]models.Stock, len(s.Stocks))
	for _, st := range s.Stocks {
		out[st.Symbol] = st
	}
	return out
}

// Holder returns the selected holder, if any.
func (s Snapshot) Holder() (models.Holder, bool) {
	if s.SelectedHolder == 0 {
		return models.Holder{}, false
	}
	for _, h := range s.Holders {
		if h.ID == s.SelectedHolder {
			return h, true
		}
	}
	return models.Holder{ID: s.SelectedHolder}, true
}

// Store holds the latest successfully fetched value of every collection.
// The refresh controller is its only writer.
type Store struct {
	mu sync.RWMutex

	holders         []models.Holder
	selectedHolder  int64
	holdings        []models.Holding
	stocks          []models.Stock
	stockIndex      map[string]int
	analytics       *models.Analytics
	recommendations []models.Recommendation
	heatMap         []models.HeatEntry
	diversification *models.Diversification
	movers          *models.MarketMovers
	sectors         *models.SectorPerformance
	insights        *models.AIInsights
	history         *History
	lastUpdated     time.Time
	errors          map[Collection]error
}

func New(historyCapacity int) *Store {
	return &Store{
		stockIndex: map[string]int{},
		history:    NewHistory(historyCapacity),
		errors:     map[Collection]error{},
	}
}

func (s *Store) SelectedHolder() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedHolder
}

// Update applies one refresh cycle. Successful collections replace their
// previous values and clear any recorded error; failed collections keep
// their previous values and record the error.
func (s *Store) Update(p Partial) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := false
	succeeded := func(c Collection) {
		delete(s.errors, c)
		applied = true
	}

	if p.Holders != nil {
		s.holders = slices.Clone(*p.Holders)
		succeeded(Holders)
	}
	if p.Holdings != nil {
		s.holdings = cloneHoldings(*p.Holdings)
		succeeded(Holdings)
	}
	if p.Stocks != nil {
		s.setStocks(*p.Stocks)
		succeeded(Stocks)
	}
	if p.Analytics != nil {
		s.analytics = cloneAnalytics(p.Analytics)
		succeeded(Analytics)
	}
	if p.Recommendations != nil {
		s.recommendations = slices.Clone(*p.Recommendations)
		succeeded(Recommendations)
	}
	if p.HeatMap != nil {
		s.heatMap = slices.Clone(*p.HeatMap)
		succeeded(HeatMap)
	}
	if p.Diversification != nil {
		s.diversification = cloneDiversification(p.Diversification)
		succeeded(Diversification)
	}
	if p.Movers != nil {
		s.movers = cloneMovers(p.Movers)
		succeeded(Movers)
	}
	if p.Sectors != nil {
		sectors := *p.Sectors
		sectors.Sectors = slices.Clone(p.Sectors.Sectors)
		s.sectors = &sectors
		succeeded(Sectors)
	}
	if p.Insights != nil {
		insights := *p.Insights
		s.insights = &insights
		succeeded(Insights)
	}

	for c, err := range p.Errors {
		if err != nil {
			s.errors[c] = err
		}
	}

	if applied {
		at := p.At
		if at.IsZero() {
			at = time.Now()
		}
		s.lastUpdated = at
	}
}

func (s *Store) setStocks(stocks []models.Stock) {
	s.stocks = slices.Clone(stocks)
	sort.SliceStable(s.stocks, func(i, j int) bool {
		return s.stocks[i].Symbol < s.stocks[j].Symbol
	})
	s.stockIndex = make(map[string]int, len(s.stocks))
	for i, st := range s.stocks {
		s.stockIndex[strings.ToUpper(st.Symbol)] = i
	}
}

func (s *Store) AppendHistory(p models.HistoryPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Push(p)
}

// ResetForHolder switches the selection and drops everything that belonged
// to the previous holder. Market-wide collections are kept.
func (s *Store) ResetForHolder(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selectedHolder = id
	s.holdings = nil
	s.analytics = nil
	s.history.Reset()
	for _, c := range holderScoped {
		delete(s.errors, c)
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var movers *models.MarketMovers
	if s.movers != nil {
		movers = cloneMovers(s.movers)
	}
	var sectors *models.SectorPerformance
	if s.sectors != nil {
		cp := *s.sectors
		cp.Sectors = slices.Clone(s.sectors.Sectors)
		sectors = &cp
	}
	var insights *models.AIInsights
	if s.insights != nil {
		cp := *s.insights
		insights = &cp
	}

	return Snapshot{
		Holders:         slices.Clone(s.holders),
		SelectedHolder:  s.selectedHolder,
		Holdings:        cloneHoldings(s.holdings),
		Stocks:          slices.Clone(s.stocks),
		Analytics:       cloneAnalytics(s.analytics),
		Recommendations: slices.Clone(s.recommendations),
		HeatMap:         slices.Clone(s.heatMap),
		Diversification: cloneDiversification(s.diversification),
		Movers:          movers,
		Sectors:         sectors,
		Insights:        insights,
		History:         s.history.Points(),
		LastUpdated:     s.lastUpdated,
		Errors:          maps.Clone(s.errors),
		stockIndex:      maps.Clone(s.stockIndex),
	}
}

func cloneHoldings(in []models.Holding) []models.Holding {
	if in == nil {
		return nil
	}
	out := slices.Clone(in)
	for i := range out {
		if out[i].Stock != nil {
			st := *out[i].Stock
			out[i].Stock = &st
		}
	}
	return out
}

func cloneAnalytics(in *models.Analytics) *models.Analytics {
	if in == nil {
		return nil
	}
	out := *in
	out.SectorAllocation = maps.Clone(in.SectorAllocation)
	return &out
}

func cloneDiversification(in *models.Diversification) *models.Diversification {
	if in == nil {
		return nil
	}
	out := *in
	out.SectorAllocation = maps.Clone(in.SectorAllocation)
	out.ExchangeAllocation = maps.Clone(in.ExchangeAllocation)
	out.Suggestions = slices.Clone(in.Suggestions)
	return &out
}

func cloneMovers(in *models.MarketMovers) *models.MarketMovers {
	out := *in
	out.TopGainers = slices.Clone(in.TopGainers)
	out.TopLosers = slices.Clone(in.TopLosers)
	out.MostActive = slices.Clone(in.MostActive)
	if in.Summary != nil {
		summary := *in.Summary
		out.Summary = &summary
	}
	return &out
}
