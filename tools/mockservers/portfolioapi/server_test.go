package main

import (
	"encoding/json"
	"io"
	"math"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Rohianon/folio/pkg/middleware"
	"github.com/Rohianon/folio/pkg/models"
	"github.com/Rohianon/folio/pkg/portfolio"
	"github.com/Rohianon/folio/pkg/response"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()
	return newApp(NewServer(42), Options{})
}

// call sends a request and decodes the body into out when out is non-nil.
func call(t *testing.T, app *fiber.App, method, path, body string, out any) int {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestHealth(t *testing.T) {
	app := testApp(t)

	var body map[string]string
	if status := call(t, app, "GET", "/health", "", &body); status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %s, want healthy", body["status"])
	}
}

func TestListHolders(t *testing.T) {
	app := testApp(t)

	var holders []models.Holder
	if status := call(t, app, "GET", "/api/holders", "", &holders); status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(holders) != 4 {
		t.Fatalf("holders = %d, want 4", len(holders))
	}
	if holders[0].Name != "Rushil Shah" {
		t.Errorf("holders[0].Name = %s, want Rushil Shah", holders[0].Name)
	}
}

func TestAddHolder(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"add route", "/api/holders/add", `{"name":"Meera","email":"meera@example.com"}`, 201, ""},
		{"collection route", "/api/holders", `{"name":"Meera"}`, 201, ""},
		{"missing name", "/api/holders/add", `{"name":"  "}`, 400, "VALIDATION_ERROR"},
		{"bad email", "/api/holders/add", `{"name":"Meera","email":"nope"}`, 400, "VALIDATION_ERROR"},
		{"bad body", "/api/holders/add", `{`, 400, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testApp(t)

			var raw json.RawMessage
			status := call(t, app, "POST", tt.path, tt.body, &raw)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", status, tt.wantStatus, raw)
			}

			if tt.wantCode != "" {
				var e response.ErrorResponse
				json.Unmarshal(raw, &e)
				if e.Error.Code != tt.wantCode {
					t.Errorf("error.code = %s, want %s", e.Error.Code, tt.wantCode)
				}
				return
			}

			var h models.Holder
			json.Unmarshal(raw, &h)
			if h.ID != 5 || h.Name != "Meera" {
				t.Errorf("holder = %+v, want id 5 named Meera", h)
			}
		})
	}
}

func TestAddHolder_ValidationDetails(t *testing.T) {
	app := testApp(t)

	var e response.ErrorResponse
	call(t, app, "POST", "/api/holders/add", `{"name":"","email":"bad"}`, &e)

	want := []string{"email: email is invalid", "name: name is required"}
	if len(e.Error.Details) != len(want) {
		t.Fatalf("details = %v, want %v", e.Error.Details, want)
	}
	for i := range want {
		if e.Error.Details[i] != want[i] {
			t.Errorf("details[%d] = %s, want %s", i, e.Error.Details[i], want[i])
		}
	}
}

func TestListHoldings(t *testing.T) {
	app := testApp(t)

	var holdings []models.Holding
	if status := call(t, app, "GET", "/api/holdings/1", "", &holdings); status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(holdings) != 4 {
		t.Fatalf("holdings = %d, want 4", len(holdings))
	}
	for _, h := range holdings {
		if h.HolderID != 1 {
			t.Errorf("%s holderId = %d, want 1", h.StockSymbol, h.HolderID)
		}
		if h.Stock == nil || h.Stock.Symbol != h.StockSymbol {
			t.Errorf("%s: stock not embedded", h.StockSymbol)
		}
	}

	var empty []models.Holding
	call(t, app, "GET", "/api/holdings/4", "", &empty)
	if empty == nil || len(empty) != 0 {
		t.Errorf("holder 4 holdings = %v, want empty array", empty)
	}
}

func TestListHoldings_Errors(t *testing.T) {
	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/api/holdings/99", 404, "NOT_FOUND"},
		{"/api/holdings/abc", 400, "BAD_REQUEST"},
		{"/api/holdings/0", 400, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var e response.ErrorResponse
			status := call(t, testApp(t), "GET", tt.path, "", &e)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if e.Error.Code != tt.wantCode {
				t.Errorf("error.code = %s, want %s", e.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestAddHolding(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"holder in path", "/api/holdings/add/4", `{"stockSymbol":"tcs","quantity":2,"avgPrice":3800}`, 201},
		{"holder in body", "/api/holdings/add", `{"holderId":4,"stockSymbol":"TCS","quantity":2,"price":3800}`, 201},
		{"unknown stock", "/api/holdings/add/4", `{"stockSymbol":"ZZZ","quantity":2,"avgPrice":10}`, 404},
		{"unknown holder", "/api/holdings/add/77", `{"stockSymbol":"TCS","quantity":2,"avgPrice":10}`, 404},
		{"zero quantity", "/api/holdings/add/4", `{"stockSymbol":"TCS","quantity":0,"avgPrice":10}`, 400},
		{"no price", "/api/holdings/add/4", `{"stockSymbol":"TCS","quantity":1}`, 400},
		{"no holder", "/api/holdings/add", `{"stockSymbol":"TCS","quantity":1,"avgPrice":10}`, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testApp(t)

			var raw json.RawMessage
			status := call(t, app, "POST", tt.path, tt.body, &raw)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", status, tt.wantStatus, raw)
			}
			if status != 201 {
				return
			}

			var h models.Holding
			json.Unmarshal(raw, &h)
			if h.StockSymbol != "TCS" || h.HolderID != 4 || h.AvgPrice != 3800 {
				t.Errorf("holding = %+v", h)
			}

			var holdings []models.Holding
			call(t, app, "GET", "/api/holdings/4", "", &holdings)
			if len(holdings) != 1 {
				t.Errorf("holder 4 holdings = %d, want 1", len(holdings))
			}
		})
	}
}

func TestListStocks(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"/api/stocks", 15},
		{"/api/stocks?exchange=NSE", 9},
		{"/api/stocks?exchange=bse", 6},
		{"/api/stocks?exchange=NYSE", 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var stocks []models.Stock
			call(t, testApp(t), "GET", tt.path, "", &stocks)
			if len(stocks) != tt.want {
				t.Errorf("stocks = %d, want %d", len(stocks), tt.want)
			}
		})
	}
}

func TestAnalytics(t *testing.T) {
	app := testApp(t)

	for _, path := range []string{"/api/portfolio/analytics/1", "/api/portfolio/summary/1"} {
		var a models.Analytics
		if status := call(t, app, "GET", path, "", &a); status != 200 {
			t.Fatalf("%s status = %d, want 200", path, status)
		}

		if a.HolderName != "Rushil Shah" {
			t.Errorf("holderName = %s, want Rushil Shah", a.HolderName)
		}
		if !near(a.TotalInvested, 101500) {
			t.Errorf("totalInvested = %v, want 101500", a.TotalInvested)
		}
		if !near(a.CurrentValue, 108999) {
			t.Errorf("currentValue = %v, want 108999", a.CurrentValue)
		}
		if !near(a.ProfitLoss, 7499) {
			t.Errorf("profitLoss = %v, want 7499", a.ProfitLoss)
		}
		if !near(a.AverageReturn, 7.39) {
			t.Errorf("averageReturn = %v, want 7.39", a.AverageReturn)
		}
		if a.DiversificationScore != 60 {
			t.Errorf("diversificationScore = %v, want 60", a.DiversificationScore)
		}
		if a.TotalHoldings != 4 || a.UniqueStocks != 4 {
			t.Errorf("holdings = %d/%d, want 4/4", a.TotalHoldings, a.UniqueStocks)
		}

		total := 0.0
		for _, pct := range a.SectorAllocation {
			total += pct
		}
		if math.Abs(total-100) > 0.05 {
			t.Errorf("sector allocation sums to %v, want 100", total)
		}
	}
}

func TestAnalytics_EmptyPortfolio(t *testing.T) {
	var a models.Analytics
	call(t, testApp(t), "GET", "/api/portfolio/analytics/4", "", &a)

	if a.CurrentValue != 0 || a.TotalInvested != 0 || a.AverageReturn != 0 {
		t.Errorf("analytics = %+v, want zero values", a)
	}
	if len(a.SectorAllocation) != 0 {
		t.Errorf("sectorAllocation = %v, want empty", a.SectorAllocation)
	}
}

func TestPerformance(t *testing.T) {
	var p models.PortfolioPerformance
	call(t, testApp(t), "GET", "/api/portfolio/performance", "", &p)

	if len(p.Holdings) != 10 {
		t.Fatalf("holdings = %d, want 10", len(p.Holdings))
	}
	if !sort.SliceIsSorted(p.Holdings, func(i, j int) bool { return p.Holdings[i].Symbol < p.Holdings[j].Symbol }) {
		t.Error("holdings should be sorted by symbol")
	}

	gain := 0.0
	for _, h := range p.Holdings {
		gain += h.Gain
	}
	if math.Abs(gain-p.TotalGain) > 0.1 {
		t.Errorf("sum of gains = %v, want %v", gain, p.TotalGain)
	}
}

func TestPerformanceHistory(t *testing.T) {
	app := testApp(t)

	var points []models.PerformancePoint
	if status := call(t, app, "GET", "/api/portfolio/performance/history?days=7", "", &points); status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(points) != 7 {
		t.Fatalf("points = %d, want 7", len(points))
	}

	today := time.Now().UTC().Format(time.DateOnly)
	if points[6].Date != today {
		t.Errorf("last date = %s, want %s", points[6].Date, today)
	}
	for i := 1; i < len(points); i++ {
		if points[i].Date <= points[i-1].Date {
			t.Errorf("dates not ascending at %d: %s then %s", i, points[i-1].Date, points[i].Date)
		}
	}

	var all []models.PerformancePoint
	call(t, app, "GET", "/api/portfolio/performance/history", "", &all)
	if len(all) != defaultDays {
		t.Errorf("default points = %d, want %d", len(all), defaultDays)
	}

	for _, q := range []string{"0", "-3", "abc", "366"} {
		if status := call(t, app, "GET", "/api/portfolio/performance/history?days="+q, "", nil); status != 400 {
			t.Errorf("days=%s status = %d, want 400", q, status)
		}
	}
}

func TestDiversification(t *testing.T) {
	var d models.Diversification
	call(t, testApp(t), "GET", "/api/portfolio/diversification", "", &d)

	if d.DiversificationScore != 80 {
		t.Errorf("diversificationScore = %v, want 80", d.DiversificationScore)
	}
	if len(d.Suggestions) == 0 {
		t.Error("suggestions should not be empty")
	}

	total := 0.0
	for _, pct := range d.ExchangeAllocation {
		total += pct
	}
	if math.Abs(total-100) > 0.05 {
		t.Errorf("exchange allocation sums to %v, want 100", total)
	}
}

func TestMarketOverview(t *testing.T) {
	var o models.MarketOverview
	call(t, testApp(t), "GET", "/api/market/overview", "", &o)

	if o.TotalStocks != 15 {
		t.Errorf("totalStocks = %d, want 15", o.TotalStocks)
	}
	if o.AdvancingStocks+o.DecliningStocks > o.TotalStocks {
		t.Errorf("advancing %d + declining %d exceeds total", o.AdvancingStocks, o.DecliningStocks)
	}
	if o.OverallTrend == "" {
		t.Error("overallTrend should be set")
	}
}

func TestMoverLists(t *testing.T) {
	tests := []struct {
		path      string
		wantFirst string
		wantLen   int
	}{
		{"/api/market/top-gainers?limit=3", "TATAMOTORS", 3},
		{"/api/market/top-losers?limit=2", "YESBANK", 2},
		{"/api/market/most-active", "YESBANK", defaultMoverLimit},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var stocks []models.Stock
			call(t, testApp(t), "GET", tt.path, "", &stocks)
			if len(stocks) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(stocks), tt.wantLen)
			}
			if stocks[0].Symbol != tt.wantFirst {
				t.Errorf("first = %s, want %s", stocks[0].Symbol, tt.wantFirst)
			}
		})
	}
}

func TestMovers(t *testing.T) {
	var m models.MarketMovers
	call(t, testApp(t), "GET", "/api/market/movers", "", &m)

	if len(m.TopGainers) != defaultMoverLimit || len(m.TopLosers) != defaultMoverLimit {
		t.Errorf("movers = %d/%d, want %d each", len(m.TopGainers), len(m.TopLosers), defaultMoverLimit)
	}
	if m.Summary == nil || m.Summary.TotalStocks != 15 {
		t.Errorf("summary = %+v, want 15 stocks", m.Summary)
	}
}

func TestSectors(t *testing.T) {
	var perf models.SectorPerformance
	call(t, testApp(t), "GET", "/api/sectors", "", &perf)

	if len(perf.Sectors) != 7 {
		t.Fatalf("sectors = %d, want 7", len(perf.Sectors))
	}
	for _, s := range perf.Sectors {
		if s.Label() == "" {
			t.Errorf("sector %+v has no label", s)
		}
	}
	if perf.MarketSentiment.OverallTrend == "" {
		t.Error("overallTrend should be set")
	}
}

func TestInsights(t *testing.T) {
	var in models.AIInsights
	call(t, testApp(t), "GET", "/api/ai-insights", "", &in)

	if in.Title == "" || in.Summary == "" {
		t.Errorf("insights = %+v, want title and summary", in)
	}
	if len(in.TrendingStocks) != 3 {
		t.Errorf("trendingStocks = %d, want 3", len(in.TrendingStocks))
	}
	if len(in.RiskAlerts) == 0 || len(in.Opportunities) == 0 {
		t.Error("risk alerts and opportunities should both be present")
	}
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		path       string
		wantLen    int
		wantAction models.Action
	}{
		{"/api/recommendations", 15, ""},
		{"/api/recommendations?limit=4", 4, ""},
		{"/api/recommendations/buy", 8, models.ActionBuy},
		{"/api/recommendations/sell", 3, models.ActionSell},
		{"/api/recommendations/sell?limit=1", 1, models.ActionSell},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var recs []models.Recommendation
			call(t, testApp(t), "GET", tt.path, "", &recs)

			if len(recs) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(recs), tt.wantLen)
			}
			for i, r := range recs {
				if tt.wantAction != "" && r.Action != tt.wantAction {
					t.Errorf("%s action = %s, want %s", r.Symbol, r.Action, tt.wantAction)
				}
				if r.TargetPrice == nil {
					t.Errorf("%s has no target price", r.Symbol)
				}
				if i > 0 && recs[i-1].Score < r.Score {
					t.Errorf("not sorted by score at %d", i)
				}
			}
		})
	}
}

func TestLegacyRecommendations(t *testing.T) {
	var raw []map[string]any
	call(t, testApp(t), "POST", "/api/stocks/recommendations", "{}", &raw)

	if len(raw) != 15 {
		t.Fatalf("len = %d, want 15", len(raw))
	}
	if _, ok := raw[0]["stockSymbol"]; !ok {
		t.Errorf("legacy shape missing stockSymbol: %v", raw[0])
	}

	// the client model reads the legacy shape too
	var recs []models.Recommendation
	call(t, testApp(t), "POST", "/api/stocks/recommendations", "{}", &recs)
	if recs[0].Symbol != "TCS" || recs[0].Action != models.ActionBuy {
		t.Errorf("recs[0] = %+v, want TCS BUY", recs[0])
	}
}

func TestHeatMap(t *testing.T) {
	var entries []models.HeatEntry
	call(t, testApp(t), "GET", "/api/dumb-money/heat-map", "", &entries)

	if len(entries) != 15 {
		t.Fatalf("entries = %d, want 15", len(entries))
	}
	for i, e := range entries {
		if e.HeatScore < 0 || e.HeatScore > 100 {
			t.Errorf("%s heatScore = %v, out of range", e.Symbol, e.HeatScore)
		}
		if e.HeatLevel != portfolio.HeatClassification(e.HeatScore) {
			t.Errorf("%s level = %s, want %s", e.Symbol, e.HeatLevel, portfolio.HeatClassification(e.HeatScore))
		}
		if i > 0 && entries[i-1].HeatScore < e.HeatScore {
			t.Errorf("not sorted hottest first at %d", i)
		}
	}
	if entries[0].Symbol != "YESBANK" {
		t.Errorf("hottest = %s, want YESBANK", entries[0].Symbol)
	}
}

func TestRealtimeHeatMapAdvancesPrices(t *testing.T) {
	app := testApp(t)

	var entries []models.HeatEntry
	call(t, app, "GET", "/api/dumb-money/heat-map/realtime", "", &entries)
	if len(entries) != 15 {
		t.Fatalf("entries = %d, want 15", len(entries))
	}

	var state map[string]int
	call(t, app, "GET", "/admin/state", "", &state)
	if state["ticks"] != 1 {
		t.Errorf("ticks = %d, want 1", state["ticks"])
	}
}

func TestTickIsDeterministic(t *testing.T) {
	a, b := NewServer(7), NewServer(7)
	for range 5 {
		a.Tick()
		b.Tick()
	}

	for i := range a.stocks {
		if a.stocks[i].CurrentPrice != b.stocks[i].CurrentPrice {
			t.Errorf("%s: %v != %v", a.stocks[i].Symbol, a.stocks[i].CurrentPrice, b.stocks[i].CurrentPrice)
		}
		if a.stocks[i].CurrentPrice <= 0 {
			t.Errorf("%s price = %v, want positive", a.stocks[i].Symbol, a.stocks[i].CurrentPrice)
		}
	}
}

func TestAdminResetAndTick(t *testing.T) {
	app := testApp(t)

	call(t, app, "POST", "/api/holders/add", `{"name":"Meera"}`, nil)

	var tick map[string]int
	if status := call(t, app, "POST", "/admin/tick?steps=3", "", &tick); status != 200 {
		t.Fatalf("tick status = %d, want 200", status)
	}
	if tick["ticks"] != 3 {
		t.Errorf("ticks = %d, want 3", tick["ticks"])
	}
	if status := call(t, app, "POST", "/admin/tick?steps=0", "", nil); status != 400 {
		t.Errorf("steps=0 status = %d, want 400", status)
	}

	if status := call(t, app, "POST", "/admin/reset", "", nil); status != 200 {
		t.Fatalf("reset status = %d, want 200", status)
	}

	var state map[string]int
	call(t, app, "GET", "/admin/state", "", &state)
	if state["holders"] != 4 || state["ticks"] != 0 {
		t.Errorf("state = %v, want 4 holders and 0 ticks", state)
	}

	var stocks []models.Stock
	call(t, app, "GET", "/api/stocks", "", &stocks)
	if stocks[0].CurrentPrice != seedStocks[0].current {
		t.Errorf("%s price = %v, want seeded %v", stocks[0].Symbol, stocks[0].CurrentPrice, seedStocks[0].current)
	}
}

func TestFaultInjection(t *testing.T) {
	tests := []struct {
		name       string
		faults     middleware.FaultConfig
		path       string
		wantStatus int
		wantBody   string
	}{
		{"fail", middleware.FaultConfig{FailRate: 1}, "/api/holders", 500, "INTERNAL_ERROR"},
		{"corrupt", middleware.FaultConfig{CorruptRate: 1}, "/api/stocks", 200, `{"truncated": [`},
		{"health exempt", middleware.FaultConfig{FailRate: 1}, "/health", 200, "healthy"},
		{"reset exempt", middleware.FaultConfig{FailRate: 1}, "/admin/state", 200, "holders"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.faults.Rand = func() float64 { return 0 }
			app := newApp(NewServer(42), Options{Faults: tt.faults})

			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			body, _ := io.ReadAll(resp.Body)
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", body, tt.wantBody)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := testApp(t)
	call(t, app, "GET", "/api/holders", "", nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), serviceName) {
		t.Error("metrics should include requests labelled with the service name")
	}
}

func TestRequestIDEchoed(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/holders/99", nil)
	req.Header.Set("X-Request-ID", "rid-1")

	resp, err := testApp(t).Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "rid-1" {
		t.Errorf("X-Request-ID = %s, want rid-1", got)
	}
}

func TestDocs(t *testing.T) {
	app := newApp(NewServer(42), Options{Faults: middleware.FaultConfig{FailRate: 1, Rand: func() float64 { return 0 }}})

	for _, target := range []string{"/docs", "/docs/openapi.yaml"} {
		resp, err := app.Test(httptest.NewRequest("GET", target, nil))
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != 200 {
			t.Errorf("%s status = %d, want 200", target, resp.StatusCode)
		}
		if target == "/docs/openapi.yaml" && !strings.Contains(string(body), "/holdings/add/{id}") {
			t.Error("embedded document should describe the holdings routes")
		}
	}
}
