package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHTTPClient wraps an HTTP client with OpenTelemetry tracing
func WrapHTTPClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client.Transport = otelhttp.NewTransport(transport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "backend " + r.Method + " " + r.URL.Path
		}),
	)
	return client
}

// NewTracedHTTPClient creates an HTTP client with tracing enabled. The
// timeout is a hard ceiling; callers bound individual requests with their
// context.
func NewTracedHTTPClient(timeout time.Duration) *http.Client {
	return WrapHTTPClient(&http.Client{Timeout: timeout})
}
