// Package connector provides HTTP client functionality and query logic for
// the Prometheus HTTP API. It handles API communication, metric name
// discovery, chunked range-query planning, and health metric exposition.
package connector

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjacquet/prometheus_connector/internal/logging"
	"github.com/fjacquet/prometheus_connector/internal/models"
	"github.com/fjacquet/prometheus_connector/internal/telemetry"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	contentType           = "application/json" // Content type for API requests
	httpContentTypeHeader = "Content-Type"     // HTTP header name for content type

	// Retry configuration
	retryCount       = 3                // Number of retry attempts
	retryWaitTime    = 5 * time.Second  // Initial wait time between retries
	retryMaxWaitTime = 60 * time.Second // Maximum wait time between retries

	// Connection pool configuration
	maxIdleConns        = 100              // Total idle connections across all hosts
	maxIdleConnsPerHost = 20               // Idle connections per host (default is 2, too low)
	idleConnTimeout     = 90 * time.Second // Timeout for idle connections
)

// Paths of the Prometheus HTTP API used by the connector. The label values
// path is a format string taking the label name.
const (
	pathLabelValues = "/api/v1/label/%s/values"
	pathQuery       = "/api/v1/query"
	pathBuildInfo   = "/api/v1/status/buildinfo"
	pathReady       = "/-/ready"
)

// Query parameter names used by the Prometheus HTTP API.
const (
	queryParamQuery = "query"   // PromQL expression for instant queries
	queryParamTime  = "time"    // Evaluation timestamp in decimal seconds
	queryParamMatch = "match[]" // Series selector restricting metadata queries
)

// HTTP header names used in Prometheus API requests.
const (
	HeaderAccept = "Accept" // Accept header for content negotiation
)

// AuthError reports that the backend rejected the configured credentials
// (HTTP 401 or 403). The message renders the full actionable template;
// callers that only need the classification can use errors.As.
type AuthError struct {
	StatusCode int    // HTTP status returned by the backend
	URL        string // Request URL that was rejected
}

// Error implements the error interface with an actionable multi-line message.
func (e *AuthError) Error() string {
	return fmt.Sprintf(telemetry.ErrAuthFailedTemplate, e.StatusCode, e.URL)
}

// ClientOption configures optional PromClient settings.
type ClientOption func(*clientOptions)

type clientOptions struct {
	tracerProvider trace.TracerProvider
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		tracerProvider: nil, // Will use noop via TracerWrapper
	}
}

// WithTracerProvider sets the TracerProvider for distributed tracing.
// If not provided, tracing operations use a noop provider (no overhead).
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(o *clientOptions) {
		o.tracerProvider = tp
	}
}

// PromClient handles HTTP communication with the Prometheus HTTP API.
// It manages TLS configuration, per-request authentication headers, and
// provides methods for fetching data from the API endpoints the connector
// relies on.
type PromClient struct {
	client  *resty.Client           // HTTP client with base URL, retry, and pool configuration
	cfg     *models.ConnectorConfig // Validated connector configuration
	baseURL string                  // Normalized endpoint, used when building error messages
	tracing *TracerWrapper          // OpenTelemetry tracer wrapper for nil-safe distributed tracing

	// Connection tracking for graceful shutdown
	mu         sync.Mutex    // Protects closed and closeChan
	activeReqs int32         // Count of active requests (atomic)
	closed     bool          // Whether Close() has been called
	closeChan  chan struct{} // Signaled when all requests complete
}

// NewPromClient creates a new Prometheus API client from a validated
// connector configuration. It initializes the HTTP client with the configured
// endpoint and read timeout, a retry policy for transient failures, and a
// pooled transport enforcing TLS 1.2 as minimum.
// TracerProvider can be injected via WithTracerProvider option for distributed tracing.
//
// The client is configured with:
//   - Base URL and request timeout from the connector configuration
//   - Retries on network errors, HTTP 429 and 5xx, honoring Retry-After
//   - Optional OpenTelemetry tracer via options
//
// Example:
//
//	cfg := models.NewConnectorConfig()
//	client := NewPromClient(cfg)  // Without tracing
//	client := NewPromClient(cfg, WithTracerProvider(tp))  // With tracing
func NewPromClient(cfg *models.ConnectorConfig, opts ...ClientOption) *PromClient {
	// Apply options
	options := defaultClientOptions()
	for _, opt := range opts {
		opt(&options)
	}

	baseURL := strings.TrimSuffix(cfg.Endpoint().String(), "/")

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.ReadTimeout().AsTimeDuration()).
		// Configure retry with exponential backoff
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry on network errors
			if err != nil {
				return true
			}
			// Retry on rate limiting (429) and server errors (5xx)
			return r.StatusCode() == http.StatusTooManyRequests ||
				r.StatusCode() >= 500
		})

	// Enable automatic Retry-After header handling for 429 responses
	client.AddRetryAfterErrorCondition()

	// Configure connection pool and TLS in http.Transport for unified config
	httpClient := client.GetClient()
	httpClient.Transport = &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12, // Enforce TLS 1.2 minimum
		},
	}

	// Create TracerWrapper with injected provider (uses noop if nil)
	tracing := NewTracerWrapper(options.tracerProvider, "prometheus_connector/http-client")

	return &PromClient{
		client:     client,
		cfg:        cfg,
		baseURL:    baseURL,
		tracing:    tracing,
		activeReqs: 0,
		closed:     false,
	}
}

// getHeaders returns the HTTP headers required for Prometheus API requests.
// It starts from the configured additional headers, adds the Accept header,
// and resolves the authentication header for this request.
//
// Authentication resolution:
//   - Bearer: the token is read (and trimmed) from the configured token file
//     on every request, so rotated tokens are picked up without a restart.
//   - Basic: user and password are encoded per RFC 7617.
//
// The resolved credential is placed under the configured auth header name,
// which defaults to Authorization.
//
// SECURITY: The returned map carries credentials. Its values must never be
// logged or included in error messages; token file read failures are reported
// by file name only.
//
// This method is called internally before each HTTP request.
func (c *PromClient) getHeaders() (map[string]string, error) {
	// AdditionalHeaders returns a fresh copy, safe to extend
	headers := c.cfg.AdditionalHeaders()
	headers[HeaderAccept] = contentType

	if tokenFile, ok := c.cfg.BearerTokenFile(); ok {
		token, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read bearer token file %s: %w", tokenFile, err)
		}
		headers[c.cfg.AuthHeaderName()] = "Bearer " + strings.TrimSpace(string(token))
		return headers, nil
	}

	if user, ok := c.cfg.User(); ok {
		password, _ := c.cfg.Password()
		credentials := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
		headers[c.cfg.AuthHeaderName()] = "Basic " + credentials
	}

	return headers, nil
}

// requestURL joins the configured endpoint with an API path for use in error
// messages and span attributes. Query parameters are intentionally excluded.
func (c *PromClient) requestURL(path string) string {
	return c.baseURL + path
}

// fetchData sends an HTTP GET request to the given API path and unmarshals the
// JSON response into the provided target. It handles authentication header
// resolution, Prometheus error envelopes, and provides detailed error messages
// for common failure scenarios.
//
// When OpenTelemetry tracing is enabled, this method creates a span for the
// HTTP request and records relevant attributes including method, URL, status
// code, and duration.
//
// Parameters:
//   - ctx: Context for request cancellation, timeout, and trace propagation
//   - path: API path relative to the configured endpoint
//   - params: Query parameters to append (may be nil)
//   - target: Pointer to struct where JSON response will be unmarshaled
//
// Returns an error if:
//   - The client is closed or the auth header cannot be resolved
//   - HTTP request fails (network error, timeout)
//   - Server returns non-2xx status code (401/403 produce actionable messages)
//   - JSON unmarshaling fails
func (c *PromClient) fetchData(ctx context.Context, path string, params map[string]string, target interface{}) error {
	// Check if client is closed
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client is closed")
	}
	atomic.AddInt32(&c.activeReqs, 1)
	c.mu.Unlock()

	// Track request completion
	defer func() {
		if atomic.AddInt32(&c.activeReqs, -1) == 0 {
			c.mu.Lock()
			if c.closed && c.closeChan != nil {
				close(c.closeChan)
				c.closeChan = nil
			}
			c.mu.Unlock()
		}
	}()

	// Create span for HTTP request using TracerWrapper
	ctx, span := c.tracing.StartSpan(ctx, "http.request", trace.SpanKindClient)
	defer span.End()

	url := c.requestURL(path)

	// Record start time for duration calculation
	startTime := time.Now()

	// Resolve headers and inject trace context
	headers, err := c.getHeaders()
	if err != nil {
		c.recordError(span, err)
		return err
	}
	headers = c.injectTraceContext(ctx, headers)

	// Make HTTP request
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParams(params).
		Get(path)

	// Calculate duration
	duration := time.Since(startTime)

	if err != nil {
		// Record error on span
		c.recordError(span, err)
		return fmt.Errorf("HTTP request to %s failed: %w", url, err)
	}

	// Record HTTP attributes
	requestSize := int64(0) // GET requests typically have no body
	responseSize := int64(len(resp.Body()))
	c.recordHTTPAttributes(span, http.MethodGet, url, resp.StatusCode(), requestSize, responseSize, duration)

	if resp.IsError() {
		// Handle 401/403 - credentials rejected
		if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
			err := &AuthError{StatusCode: resp.StatusCode(), URL: url}
			logging.LogError(err.Error())
			c.recordError(span, err)
			return err
		}

		// Prometheus wraps most failures in a JSON error envelope; surface
		// errorType and error when present
		var envelope models.APIResponse
		if jsonErr := json.Unmarshal(resp.Body(), &envelope); jsonErr == nil && envelope.Status == models.StatusError {
			err := fmt.Errorf("backend request failed: url=%s, status=%d: %w",
				url, resp.StatusCode(), envelope.Err())
			c.recordError(span, err)
			return err
		}

		// Include URL, status code, and content-type in error message
		contentTypeValue := resp.Header().Get(httpContentTypeHeader)
		err := fmt.Errorf("HTTP request failed: url=%s, status=%d (%s), content-type=%s",
			url, resp.StatusCode(), resp.Status(), contentTypeValue)
		c.recordError(span, err)
		return err
	}

	// Validate Content-Type before attempting to unmarshal
	respContentType := resp.Header().Get(httpContentTypeHeader)
	if respContentType != "" && !strings.Contains(respContentType, contentType) {
		// Server returned non-JSON content (likely HTML error page)
		bodyPreview := string(resp.Body())
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		errMsg := fmt.Sprintf(
			telemetry.ErrNonJSONResponseTemplate,
			respContentType,
			url,
			bodyPreview,
		)
		logging.LogError(errMsg)
		// Include URL, status code, and content-type in structured error message
		err := fmt.Errorf("server returned %s instead of JSON: url=%s, status=%d, preview=%s",
			respContentType, url, resp.StatusCode(), bodyPreview)
		c.recordError(span, err)
		return err
	}

	if err := json.Unmarshal(resp.Body(), target); err != nil {
		// Provide more context for JSON unmarshaling errors including URL, status code, and content-type
		bodyPreview := string(resp.Body())
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		contentTypeValue := resp.Header().Get(httpContentTypeHeader)
		unmarshalErr := fmt.Errorf("failed to unmarshal JSON response: url=%s, status=%d, content-type=%s, error=%w\nResponse preview: %s",
			url, resp.StatusCode(), contentTypeValue, err, bodyPreview)
		c.recordError(span, unmarshalErr)
		return unmarshalErr
	}

	// Set span status to OK for successful requests
	if span != nil {
		span.SetStatus(codes.Ok, "Request completed successfully")
	}

	return nil
}

// recordHTTPAttributes records HTTP semantic convention attributes on the span.
// This method follows OpenTelemetry HTTP semantic conventions for consistent
// attribute naming across different tracing backends.
//
// Parameters:
//   - span: The span to record attributes on (nil-safe)
//   - method: HTTP method (e.g., "GET", "POST")
//   - url: Full request URL
//   - statusCode: HTTP response status code
//   - requestSize: Size of request body in bytes (0 if no body)
//   - responseSize: Size of response body in bytes
//   - duration: Request duration
func (c *PromClient) recordHTTPAttributes(span trace.Span, method, url string, statusCode int, requestSize, responseSize int64, duration time.Duration) {
	// Nil-safe check: if span is nil, do nothing
	if span == nil {
		return
	}

	// Record HTTP semantic convention attributes using centralized constants
	span.SetAttributes(
		attribute.String(telemetry.AttrHTTPMethod, method),
		attribute.String(telemetry.AttrHTTPURL, url),
		attribute.Int(telemetry.AttrHTTPStatusCode, statusCode),
		attribute.Int64(telemetry.AttrHTTPRequestContentLength, requestSize),
		attribute.Int64(telemetry.AttrHTTPResponseContentLength, responseSize),
		attribute.Float64(telemetry.AttrHTTPDurationMS, float64(duration.Milliseconds())),
	)
}

// recordError records an error on the span and sets the span status to error.
// This method follows OpenTelemetry conventions for error recording.
//
// Parameters:
//   - span: The span to record the error on (nil-safe)
//   - err: The error to record
func (c *PromClient) recordError(span trace.Span, err error) {
	// Nil-safe check: if span is nil, do nothing
	if span == nil {
		return
	}

	// Record error as span event
	span.RecordError(err)

	// Set span status to error with error message
	span.SetStatus(codes.Error, err.Error())

	// Add error attribute using centralized constant
	span.SetAttributes(
		attribute.String(telemetry.AttrError, err.Error()),
	)
}

// injectTraceContext injects trace context into HTTP request headers using W3C Trace Context propagation.
// This enables distributed tracing across service boundaries.
// TracerWrapper ensures this is always safe to call (uses noop if tracing disabled).
//
// Parameters:
//   - ctx: Context containing the trace information
//   - headers: Map of HTTP headers to inject trace context into
//
// Returns the headers map with trace context injected
func (c *PromClient) injectTraceContext(ctx context.Context, headers map[string]string) map[string]string {
	// Create a carrier that implements the TextMapCarrier interface
	carrier := propagation.MapCarrier{}
	for k, v := range headers {
		carrier.Set(k, v)
	}

	// Inject trace context into the carrier using the global propagator
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	// Convert carrier back to map
	result := make(map[string]string)
	for k, v := range carrier {
		result[k] = v
	}

	return result
}

// Close releases resources associated with the HTTP client.
// It waits for active requests to complete (up to 30 seconds)
// before closing connections.
//
// Returns an error if:
//   - The client is already closed
//   - Timeout exceeded while waiting for active requests
func (c *PromClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client already closed")
	}
	c.closed = true

	// Check if there are active requests
	activeCount := atomic.LoadInt32(&c.activeReqs)
	if activeCount > 0 {
		c.closeChan = make(chan struct{})
		ch := c.closeChan // Store local reference to avoid race
		c.mu.Unlock()

		// Wait for active requests with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		select {
		case <-ch:
			log.Debug("All active requests completed during shutdown")
		case <-ctx.Done():
			log.Warnf("Timeout waiting for %d active requests during shutdown", activeCount)
		}
	} else {
		c.mu.Unlock()
	}

	// Close idle connections
	if c.client != nil {
		c.client.GetClient().CloseIdleConnections()
		c.client = nil
	}

	return nil
}

// CloseWithContext releases resources with explicit timeout control.
// Use this when you need custom shutdown timeout behavior.
//
// Parameters:
//   - ctx: Context for shutdown timeout
//
// Returns an error if:
//   - The client is already closed
//   - Context is cancelled while waiting for active requests
func (c *PromClient) CloseWithContext(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("client already closed")
	}
	c.closed = true

	activeCount := atomic.LoadInt32(&c.activeReqs)
	if activeCount > 0 {
		c.closeChan = make(chan struct{})
		ch := c.closeChan // Store local reference to avoid race
		c.mu.Unlock()

		select {
		case <-ch:
			log.Debug("All active requests completed during shutdown")
		case <-ctx.Done():
			log.Warnf("Context cancelled while waiting for %d active requests", activeCount)
			return ctx.Err()
		}
	} else {
		c.mu.Unlock()
	}

	if c.client != nil {
		c.client.GetClient().CloseIdleConnections()
		c.client = nil
	}

	return nil
}
