// Package testutil provides shared testing utilities and constants for the
// Prometheus connector.
//
// This package centralizes common test constants, helper functions, and mock
// builders to reduce duplication across test files and improve test
// maintainability.
//
// # Key Components
//
// Constants: Shared test values (paths, credentials, error messages) defined
// in constants.go
//
// MockServerBuilder: Fluent interface for creating mock Prometheus HTTP API
// servers with configurable endpoints
//
// Helper Functions: Common test utilities (data loading, assertions) for
// cleaner test code
//
// # Usage Examples
//
// Creating a mock backend:
//
//	server := testutil.NewMockServer().
//	    WithMetricNames("up", "go_goroutines").
//	    WithBuildInfo("2.54.1").
//	    Build()
//	defer server.Close()
//
// Using shared constants:
//
//	token := testutil.TestBearerToken
//	path := testutil.TestPathMetricNames
package testutil

// HTTP headers
const (
	ContentTypeHeader   = "Content-Type"
	AcceptHeader        = "Accept"
	AuthorizationHeader = "Authorization"
)

// Common test values
const (
	ContentTypeJSON     = "application/json"
	TestBearerToken     = "test-bearer-token"
	TestBearerTokenFile = "/etc/secrets/prometheus-token"
	TestUser            = "prometheus"
	TestPassword        = "test-password"
)

// Prometheus HTTP API paths
const (
	TestPathMetricNames = "/api/v1/label/__name__/values"
	TestPathQuery       = "/api/v1/query"
	TestPathBuildInfo   = "/api/v1/status/buildinfo"
	TestPathReady       = "/-/ready"
	TestPathMetrics     = "/metrics"
	TestPathHealth      = "/health"
)

// Test error messages
const (
	TestErrorExpectedError           = "Expected error, got nil"
	TestErrorUnexpected              = "Unexpected error: %v"
	TestErrorValidateUnexpected      = "Validate() unexpected error = %v"
	TestErrorExpectedErrorContaining = "Expected error containing %q, got %q"
)

// Test server names and identifiers
const (
	TestBackendVersion = "2.54.1"
	TestOTELEndpoint   = "localhost:4317"
	TestServiceName    = "prometheus-connector-test"
	TestServiceVersion = "1.0.0-test"
	TestLogName        = "test.log"
)
