// Package testutil provides shared test utilities and helper functions.
// This file contains fluent builders and common test helpers to reduce
// duplication across test files and improve test maintainability.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

// MockServerBuilder provides a fluent interface for creating mock Prometheus
// HTTP API servers. It simplifies test server setup by providing chainable
// methods for configuring the endpoints the connector talks to.
//
// Example usage:
//
//	server := testutil.NewMockServer().
//	    WithMetricNames("up", "go_goroutines").
//	    WithReady().
//	    Build()
//	defer server.Close()
type MockServerBuilder struct {
	handlers     map[string]http.HandlerFunc
	useTLS       bool
	authHeader   string
	authExpected string
}

// NewMockServer creates a new MockServerBuilder.
func NewMockServer() *MockServerBuilder {
	return &MockServerBuilder{
		handlers: make(map[string]http.HandlerFunc),
	}
}

// WithTLS enables TLS for the mock server.
func (b *MockServerBuilder) WithTLS() *MockServerBuilder {
	b.useTLS = true
	return b
}

// WithAuthCheck makes every endpoint require the given header to carry the
// expected value; requests without it receive 401 with an error envelope.
func (b *MockServerBuilder) WithAuthCheck(header, expected string) *MockServerBuilder {
	b.authHeader = header
	b.authExpected = expected
	return b
}

// WithMetricNames adds a handler for the metric name discovery endpoint
// returning the given names in a success envelope.
func (b *MockServerBuilder) WithMetricNames(names ...string) *MockServerBuilder {
	if names == nil {
		names = []string{}
	}
	b.handlers[TestPathMetricNames] = func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, successEnvelope(names))
	}
	return b
}

// WithInstantVector adds a handler for the instant query endpoint returning
// a vector result. Each sample is a map with "metric" (label map) and
// "value" ([timestamp, "value"]) keys, matching the wire format.
func (b *MockServerBuilder) WithInstantVector(samples ...map[string]any) *MockServerBuilder {
	if samples == nil {
		samples = []map[string]any{}
	}
	b.handlers[TestPathQuery] = func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, successEnvelope(map[string]any{
			"resultType": "vector",
			"result":     samples,
		}))
	}
	return b
}

// Sample builds one instant-vector sample in the wire format for use with
// WithInstantVector.
func Sample(labels map[string]string, timestamp float64, value string) map[string]any {
	return map[string]any{
		"metric": labels,
		"value":  []any{timestamp, value},
	}
}

// WithBuildInfo adds a handler for the build info endpoint reporting the
// given backend version.
func (b *MockServerBuilder) WithBuildInfo(version string) *MockServerBuilder {
	b.handlers[TestPathBuildInfo] = func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, successEnvelope(map[string]string{
			"version":   version,
			"revision":  "deadbeef",
			"goVersion": "go1.25.0",
		}))
	}
	return b
}

// WithReady adds a handler for the readiness endpoint answering the way a
// ready Prometheus does.
func (b *MockServerBuilder) WithReady() *MockServerBuilder {
	b.handlers[TestPathReady] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Prometheus Server is Ready.\n"))
	}
	return b
}

// WithCustomEndpoint adds a custom handler for the specified path.
func (b *MockServerBuilder) WithCustomEndpoint(path string, handler http.HandlerFunc) *MockServerBuilder {
	b.handlers[path] = handler
	return b
}

// WithErrorResponse adds a handler that returns the specified HTTP status code.
func (b *MockServerBuilder) WithErrorResponse(path string, statusCode int) *MockServerBuilder {
	b.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		if statusCode >= 400 {
			writeJSONResponse(w, map[string]string{
				"status":    "error",
				"errorType": "internal",
				"error":     http.StatusText(statusCode),
			})
		}
	}
	return b
}

// WithAPIError adds a handler answering 200 with an error-status envelope,
// the way the query endpoints report evaluation failures.
func (b *MockServerBuilder) WithAPIError(path, errorType, message string) *MockServerBuilder {
	b.handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, map[string]string{
			"status":    "error",
			"errorType": errorType,
			"error":     message,
		})
	}
	return b
}

// Build creates and returns the configured HTTP test server.
func (b *MockServerBuilder) Build() *httptest.Server {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.authHeader != "" && r.Header.Get(b.authHeader) != b.authExpected {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSONResponse(w, map[string]string{
				"status":    "error",
				"errorType": "unauthorized",
				"error":     "authentication required",
			})
			return
		}
		if handler, ok := b.handlers[r.URL.Path]; ok {
			handler(w, r)
		} else {
			w.WriteHeader(http.StatusNotFound)
			writeJSONResponse(w, map[string]string{
				"status":    "error",
				"errorType": "not_found",
				"error":     "endpoint not found",
			})
		}
	})

	if b.useTLS {
		return httptest.NewTLSServer(handler)
	}
	return httptest.NewServer(handler)
}

// successEnvelope wraps data in the standard success response envelope.
func successEnvelope(data any) map[string]any {
	return map[string]any{
		"status": "success",
		"data":   data,
	}
}

// writeJSONResponse writes a JSON response to the ResponseWriter.
func writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set(ContentTypeHeader, ContentTypeJSON)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// LoadTestData loads test data from a file.
// It uses t.Helper() to report errors at the caller's location.
func LoadTestData(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("Failed to read test data file %s: %v", filename, err)
	}
	return data
}

// AssertNoError is a helper that fails the test if err is not nil.
func AssertNoError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			format := msgAndArgs[0].(string)
			args := msgAndArgs[1:]
			t.Fatalf(format+": %v", append(args, err)...)
		} else {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
}

// AssertError is a helper that fails the test if err is nil.
func AssertError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			format := msgAndArgs[0].(string)
			t.Fatalf(format, msgAndArgs[1:]...)
		} else {
			t.Fatal("Expected error, got nil")
		}
	}
}

// AssertContains is a helper that fails the test if the string doesn't
// contain the substring.
func AssertContains(t *testing.T, s, substr string, msgAndArgs ...any) {
	t.Helper()
	if !strings.Contains(s, substr) {
		if len(msgAndArgs) > 0 {
			format := msgAndArgs[0].(string)
			t.Fatalf(format, msgAndArgs[1:]...)
		} else {
			t.Fatalf("String %q does not contain %q", s, substr)
		}
	}
}

// AssertEqual is a helper that fails the test if the values are not equal.
func AssertEqual(t *testing.T, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	if expected != actual {
		if len(msgAndArgs) > 0 {
			format := msgAndArgs[0].(string)
			t.Fatalf(format, msgAndArgs[1:]...)
		} else {
			t.Fatalf("Expected %v, got %v", expected, actual)
		}
	}
}
