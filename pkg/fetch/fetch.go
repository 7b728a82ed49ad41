package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Rohianon/folio/pkg/logger"
	"github.com/Rohianon/folio/pkg/metrics"
	"github.com/Rohianon/folio/pkg/telemetry"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxBody bounds how much of an error body is kept on HTTPError.
	maxBody = 4 << 10
)

// Config holds fetcher configuration
type Config struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient defaults to a traced client. Tests pass their own.
	HTTPClient *http.Client
}

// Client performs JSON requests against the backend. Each call is bounded
// by Timeout and never retried.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = telemetry.WrapHTTPClient(&http.Client{})
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    timeout,
		httpClient: httpClient,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get decodes the JSON response of GET path into out. out may be nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out. out may be nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (err error) {
	route := RoutePattern(path)
	start := time.Now()
	requestID := uuid.New().String()

	ctx, span := telemetry.StartSpan(ctx, "fetch "+method+" "+route)
	defer span.End()
	telemetry.SetAttributes(ctx,
		attribute.String("http.route", route),
		attribute.String("request.id", requestID),
	)

	defer func() {
		outcome := Outcome(err)
		metrics.RecordFetch(route, outcome, time.Since(start))
		telemetry.RecordError(ctx, err)

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err)
		}
		event.
			Str("method", method).
			Str("path", path).
			Str("request_id", requestID).
			Str("outcome", outcome).
			Dur("duration", time.Since(start)).
			Msg("Backend request")
	}()

	var reqBody io.Reader
	if body != nil {
		jsonBody, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("failed to marshal request: %w", mErr)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classify(ctx, callCtx, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.classify(ctx, callCtx, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Body:    truncate(string(respBody), maxBody),
			Message: errorMessage(respBody),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if !isJSON(contentType) {
		return &DecodeError{Method: method, Path: path, ContentType: contentType}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &DecodeError{Method: method, Path: path, ContentType: contentType, Err: err}
	}

	return nil
}

// classify separates our own deadline from caller cancellation and
// connection failures.
func (c *Client) classify(parent, callCtx context.Context, method, path string, err error) error {
	if parent.Err() != nil {
		return &TransportError{Method: method, Path: path, Err: parent.Err()}
	}

	var netErr net.Error
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Method: method, Path: path, After: c.timeout}
	}

	return &TransportError{Method: method, Path: path, Err: err}
}

// Outcome labels err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrHTTP):
		return "http_error"
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrTransport):
		return "transport_error"
	default:
		return "error"
	}
}

var idSegment = regexp.MustCompile(`/\d+(/|$)`)

// RoutePattern strips the query string and replaces numeric path segments
// with :id, e.g. /holdings/add/42?x=1 → /holdings/add/:id.
func RoutePattern(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for idSegment.MatchString(path) {
		path = idSegment.ReplaceAllString(path, "/:id$1")
	}
	return path
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// errorMessage pulls a human message out of the common error envelopes:
// {"error":"..."}, {"error":{"message":"..."}} and {"message":"..."}.
func errorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	if len(envelope.Error) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return envelope.Message
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
