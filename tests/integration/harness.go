package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Rohianon/folio/pkg/fetch"
	"github.com/Rohianon/folio/pkg/models"
)

// =============================================================================
// Integration Test Harness
// =============================================================================
// Utilities for running tests against a live portfolio API mock
// (tools/mockservers/portfolioapi). Tests skip when the mock is not
// reachable or under -short.
// =============================================================================

// Config holds the mock server URLs
type Config struct {
	// MockURL is the server root; admin and health routes live here.
	MockURL string
	// APIURL is what the dashboard is pointed at.
	APIURL string
}

// DefaultConfig returns the default configuration for local testing
func DefaultConfig() *Config {
	root := strings.TrimRight(getEnvOrDefault("FOLIO_MOCK_URL", "http://localhost:8093"), "/")
	return &Config{
		MockURL: root,
		APIURL:  root + "/api",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Harness provides utilities for integration tests
type Harness struct {
	t      *testing.T
	config *Config
	client *http.Client
}

// NewHarness creates a harness and skips the test unless the mock is up.
// State is reset before returning.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	h := &Harness{
		t:      t,
		config: DefaultConfig(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	if err := h.WaitForMock(3 * time.Second); err != nil {
		t.Skipf("Portfolio API mock not available: %v", err)
	}
	if err := h.Reset(); err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}
	return h
}

// Config returns the harness configuration
func (h *Harness) Config() *Config {
	return h.config
}

// Fetcher returns a fetch client pointed at the mock API.
func (h *Harness) Fetcher(timeout time.Duration) *fetch.Client {
	return fetch.New(fetch.Config{BaseURL: h.config.APIURL, Timeout: timeout})
}

// =============================================================================
// HTTP Helpers
// =============================================================================

// Request represents an HTTP request configuration
type Request struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// Do executes an HTTP request and returns the response
func (h *Harness) Do(req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		jsonBody, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		body = bytes.NewReader(jsonBody)
	}

	httpReq, err := http.NewRequest(req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}, nil
}

// JSON unmarshals the response body into the given value
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// =============================================================================
// Mock Server Helpers
// =============================================================================

// Reset restores the mock's seeded state
func (h *Harness) Reset() error {
	return h.admin("/admin/reset")
}

// Tick advances the mock's simulated prices by steps
func (h *Harness) Tick(steps int) error {
	return h.admin(fmt.Sprintf("/admin/tick?steps=%d", steps))
}

func (h *Harness) admin(path string) error {
	resp, err := h.Do(Request{
		Method: "POST",
		URL:    h.config.MockURL + path,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("%s failed with status %d", path, resp.StatusCode)
	}
	return nil
}

// WaitForMock waits for the mock server to be ready
func (h *Harness) WaitForMock(timeout time.Duration) error {
	return h.waitForHealth(h.config.MockURL+"/health", timeout)
}

func (h *Harness) waitForHealth(url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := h.client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", url)
}

// =============================================================================
// Assertions
// =============================================================================

// AssertStatus checks that the response has the expected status code
func (h *Harness) AssertStatus(resp *Response, expected int) {
	h.t.Helper()
	if resp.StatusCode != expected {
		h.t.Errorf("Expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// AssertJSONField checks that a JSON response has a field with the expected value
func (h *Harness) AssertJSONField(resp *Response, field string, expected any) {
	h.t.Helper()
	var data map[string]any
	if err := resp.JSON(&data); err != nil {
		h.t.Errorf("Failed to parse JSON: %v", err)
		return
	}

	actual, ok := data[field]
	if !ok {
		h.t.Errorf("Field %s not found in response", field)
		return
	}

	if actual != expected {
		h.t.Errorf("Field %s: expected %v, got %v", field, expected, actual)
	}
}

// =============================================================================
// Refresh source
// =============================================================================

// fetchSource feeds the refresh controller straight from the fetcher.
type fetchSource struct {
	f *fetch.Client
}

func get[T any](ctx context.Context, f *fetch.Client, path string) (T, error) {
	var out T
	err := f.Get(ctx, path, &out)
	return out, err
}

func (s fetchSource) Holders(ctx context.Context) ([]models.Holder, error) {
	return get[[]models.Holder](ctx, s.f, "/holders")
}

func (s fetchSource) Holdings(ctx context.Context, holderID int64) ([]models.Holding, error) {
	return get[[]models.Holding](ctx, s.f, fmt.Sprintf("/holdings/%d", holderID))
}

func (s fetchSource) Stocks(ctx context.Context) ([]models.Stock, error) {
	return get[[]models.Stock](ctx, s.f, "/stocks")
}

func (s fetchSource) Analytics(ctx context.Context, holderID int64) (*models.Analytics, error) {
	return get[*models.Analytics](ctx, s.f, fmt.Sprintf("/portfolio/analytics/%d", holderID))
}

func (s fetchSource) Recommendations(ctx context.Context) ([]models.Recommendation, error) {
	return get[[]models.Recommendation](ctx, s.f, "/recommendations")
}

func (s fetchSource) HeatMap(ctx context.Context) ([]models.HeatEntry, error) {
	return get[[]models.HeatEntry](ctx, s.f, "/dumb-money/heat-map")
}

func (s fetchSource) Diversification(ctx context.Context) (*models.Diversification, error) {
	return get[*models.Diversification](ctx, s.f, "/portfolio/diversification")
}

func (s fetchSource) Movers(ctx context.Context) (*models.MarketMovers, error) {
	return get[*models.MarketMovers](ctx, s.f, "/market/movers")
}

func (s fetchSource) Sectors(ctx context.Context) (*models.SectorPerformance, error) {
	return get[*models.SectorPerformance](ctx, s.f, "/sectors")
}

func (s fetchSource) Insights(ctx context.Context) (*models.AIInsights, error) {
	return get[*models.AIInsights](ctx, s.f, "/ai-insights")
}
