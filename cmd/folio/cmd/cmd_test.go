package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Rohianon/folio/cmd/folio/internal/output"
	apperrors "github.com/Rohianon/folio/pkg/errors"
)

// backend is a canned REST backend that records the requests it saw.
type backend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}

	routes := map[string]any{
		"GET /api/holders": []map[string]any{{"id": 1, "name": "Asha", "email": "asha@example.com"}},
		"GET /api/holdings/1": []map[string]any{
			{"id": 1, "stockSymbol": "AAPL", "quantity": 10, "avgPrice": 100},
			{"id": 2, "stockSymbol": "MSFT", "quantity": 5, "avgPrice": 200},
		},
		"GET /api/stocks": []map[string]any{
			{"symbol": "AAPL", "name": "Apple", "sector": "Technology", "currentPrice": 120, "volatility": 0.2, "confidenceScore": 85},
			{"symbol": "MSFT", "name": "Microsoft", "sector": "Technology", "currentPrice": 190, "volatility": 0.5, "confidenceScore": 40},
		},
		"POST /api/holders/add": map[string]any{"id": 7, "name": "Ravi", "email": "ravi@example.com"},
		"GET /api/recommendations/buy": []map[string]any{
			{"symbol": "AAPL", "action": "BUY", "score": 88},
		},
		"GET /api/dumb-money/heat-map": []map[string]any{
			{"symbol": "HOT", "heatScore": 80},
			{"symbol": "COOL", "heatScore": 10},
		},
	}

	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.RequestURI())
		b.mu.Unlock()

		body, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI against api with an isolated home directory and
// returns what it printed.
func execute(t *testing.T, home, api string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	output.Stdout, output.Stderr = &stdout, &stderr
	t.Cleanup(func() { output.Stdout, output.Stderr = os.Stdout, os.Stderr })

	t.Setenv("HOME", home)
	t.Setenv("FOLIO_STORAGE_PATH", filepath.Join(home, "local.json"))
	t.Setenv("FOLIO_CHARTS_DIR", filepath.Join(home, "charts"))

	resetFlags(rootCmd)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--api-url", api}, args...))

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestHoldersList(t *testing.T) {
	b := newBackend(t)

	out, err := execute(t, t.TempDir(), b.URL+"/api", "holders", "list")
	if err != nil {
		t.Fatalf("holders list error = %v", err)
	}
	if !strings.Contains(out, "Asha") || !strings.Contains(out, "asha@example.com") {
		t.Errorf("output missing holder:\n%s", out)
	}
}

func TestHoldersAdd_ValidationBlocksRequest(t *testing.T) {
	b := newBackend(t)

	_, err := execute(t, t.TempDir(), b.URL+"/api", "holders", "add", "--email", "not-an-email")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if got := b.seen(); len(got) != 0 {
		t.Errorf("requests = %v, want none", got)
	}
}

func TestHoldersAdd_JSON(t *testing.T) {
	b := newBackend(t)

	out, err := execute(t, t.TempDir(), b.URL+"/api",
		"holders", "add", "--name", "Ravi", "--email", "ravi@example.com", "--format", "json")
	if err != nil {
		t.Fatalf("holders add error = %v", err)
	}

	var got struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.ID != 7 || got.Name != "Ravi" {
		t.Errorf("holder = %+v, want id 7 Ravi", got)
	}
}

func TestPortfolioSummary(t *testing.T) {
	b := newBackend(t)

	out, err := execute(t, t.TempDir(), b.URL+"/api", "portfolio", "summary", "--holder", "1")
	if err != nil {
		t.Fatalf("portfolio summary error = %v", err)
	}

	for _, want := range []string{"Asha", "₹2,000.00", "₹2,150.00", "+₹150.00", "+7.50%", "AAPL", "MSFT", "Technology"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPortfolioSummary_RequiresHolder(t *testing.T) {
	b := newBackend(t)

	_, err := execute(t, t.TempDir(), b.URL+"/api", "portfolio", "summary")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestPortfolioSummary_Charts(t *testing.T) {
	b := newBackend(t)
	home := t.TempDir()

	out, err := execute(t, home, b.URL+"/api", "portfolio", "summary", "--holder", "1", "--charts")
	if err != nil {
		t.Fatalf("portfolio summary error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(home, "charts", "sector-allocation.png")); err != nil {
		t.Errorf("sector chart not written: %v\n%s", err, out)
	}
}

func TestRecommendations_Filter(t *testing.T) {
	b := newBackend(t)

	out, err := execute(t, t.TempDir(), b.URL+"/api", "recommendations", "--filter", "buy", "--limit", "2")
	if err != nil {
		t.Fatalf("recommendations error = %v", err)
	}
	if !strings.Contains(out, "AAPL") || !strings.Contains(out, "buy 1") {
		t.Errorf("output:\n%s", out)
	}

	seen := b.seen()
	if len(seen) != 1 || seen[0] != "GET /api/recommendations/buy?limit=2" {
		t.Errorf("requests = %v", seen)
	}

	_, err = execute(t, t.TempDir(), b.URL+"/api", "recommendations", "--filter", "hold")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("unknown filter error = %v, want validation error", err)
	}
}

func TestHeatmap_Level(t *testing.T) {
	b := newBackend(t)

	out, err := execute(t, t.TempDir(), b.URL+"/api", "heatmap", "--level", "cool")
	if err != nil {
		t.Fatalf("heatmap error = %v", err)
	}
	if !strings.Contains(out, "COOL") || strings.Contains(out, "HOT ") {
		t.Errorf("output:\n%s", out)
	}

	_, err = execute(t, t.TempDir(), b.URL+"/api", "heatmap", "--level", "lukewarm")
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("unknown level error = %v, want validation error", err)
	}
}

func TestWatchlistAndAlerts(t *testing.T) {
	b := newBackend(t)
	home := t.TempDir()
	api := b.URL + "/api"

	if _, err := execute(t, home, api, "watchlist", "add", "aapl"); err != nil {
		t.Fatalf("watchlist add error = %v", err)
	}
	out, err := execute(t, home, api, "watchlist", "list")
	if err != nil {
		t.Fatalf("watchlist list error = %v", err)
	}
	if !strings.Contains(out, "AAPL") || !strings.Contains(out, "₹120.00") {
		t.Errorf("watchlist:\n%s", out)
	}

	if _, err := execute(t, home, api, "alerts", "add", "AAPL", "above", "110"); err != nil {
		t.Fatalf("alerts add error = %v", err)
	}
	if _, err := execute(t, home, api, "alerts", "add", "MSFT", "sideways", "110"); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("bad condition error = %v, want validation error", err)
	}

	out, err = execute(t, home, api, "alerts", "check")
	if err != nil {
		t.Fatalf("alerts check error = %v", err)
	}
	if !strings.Contains(out, "AAPL is above ₹110.00 (now ₹120.00)") {
		t.Errorf("alerts check:\n%s", out)
	}

	if _, err := execute(t, home, api, "alerts", "remove", "3"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("remove out of range error = %v, want not found", err)
	}
	if _, err := execute(t, home, api, "alerts", "remove", "0"); err != nil {
		t.Errorf("alerts remove error = %v", err)
	}
}

func TestDashboard_Once(t *testing.T) {
	b := newBackend(t)

	out, err := execute(t, t.TempDir(), b.URL+"/api", "dashboard", "--once")
	if err != nil {
		t.Fatalf("dashboard error = %v", err)
	}
	for _, want := range []string{"folio", "Asha", "AAPL", "₹2,150.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("frame missing %q:\n%s", want, out)
		}
	}
}

func TestConfigPath(t *testing.T) {
	b := newBackend(t)
	home := t.TempDir()

	out, err := execute(t, home, b.URL+"/api", "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if want := filepath.Join(home, ".folio", "folio.yaml"); strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), want)
	}
}
