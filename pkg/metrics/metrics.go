package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================
// Metrics for the folio client and its development backend:
// - backend fetches made by the dashboard (count, latency, outcome)
// - refresh cycles and discarded stale results
// - chart renders
// - HTTP request metrics for the mock backend
// =============================================================================

var (
	registry = prometheus.NewRegistry()

	// HTTP metrics (mock backend)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)

	injectedFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_mock_injected_faults_total",
			Help: "Faults injected by the mock backend",
		},
		[]string{"kind"},
	)

	// Fetch metrics
	fetchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_fetch_requests_total",
			Help: "Backend requests issued by the dashboard",
		},
		[]string{"path", "outcome"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_fetch_duration_seconds",
			Help:    "Backend request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"path"},
	)

	// Refresh metrics
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_refresh_total",
			Help: "Refresh cycles by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	refreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_refresh_duration_seconds",
			Help:    "Refresh cycle duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"trigger"},
	)

	refreshStaleDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_refresh_stale_discarded_total",
			Help: "Refresh results dropped because a newer cycle or selection superseded them",
		},
	)

	// Chart metrics
	chartRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_chart_renders_total",
			Help: "Chart renders by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(httpRequestsTotal)
	registry.MustRegister(httpRequestDuration)
	registry.MustRegister(injectedFaults)

	registry.MustRegister(fetchRequestsTotal)
	registry.MustRegister(fetchDuration)

	registry.MustRegister(refreshTotal)
	registry.MustRegister(refreshDuration)
	registry.MustRegister(refreshStaleDiscarded)

	registry.MustRegister(chartRenders)
}

// Registry returns the prometheus registry
func Registry() *prometheus.Registry {
	return registry
}

// Handler returns a Fiber handler for the /metrics endpoint
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// =============================================================================
// Middleware
// =============================================================================

// Config holds metrics middleware configuration
type Config struct {
	ServiceName string
	SkipPaths   []string
}

// Middleware returns Fiber middleware that records HTTP metrics
func Middleware(cfg Config) fiber.Handler {
	skipPaths := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *fiber.Ctx) error {
		if skipPaths[c.Path()] {
			return c.Next()
		}

		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		method := c.Method()
		path := c.Route().Path

		httpRequestsTotal.WithLabelValues(cfg.ServiceName, method, path, status).Inc()
		httpRequestDuration.WithLabelValues(cfg.ServiceName, method, path).Observe(duration)

		return err
	}
}

// =============================================================================
// Metric Recording Functions
// =============================================================================

// RecordFetch records one backend request. path should be a route pattern,
// not a concrete URL, to keep label cardinality bounded.
func RecordFetch(path, outcome string, duration time.Duration) {
	fetchRequestsTotal.WithLabelValues(path, outcome).Inc()
	fetchDuration.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordRefresh records the outcome of one refresh cycle
func RecordRefresh(trigger, outcome string, duration time.Duration) {
	refreshTotal.WithLabelValues(trigger, outcome).Inc()
	refreshDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// RecordStaleDiscard counts a refresh result that was not applied
func RecordStaleDiscard() {
	refreshStaleDiscarded.Inc()
}

// RecordChartRender records a chart render attempt
func RecordChartRender(kind, outcome string) {
	chartRenders.WithLabelValues(kind, outcome).Inc()
}

// RecordInjectedFault counts a fault produced by the mock backend
func RecordInjectedFault(kind string) {
	injectedFaults.WithLabelValues(kind).Inc()
}
