// Package connector provides interfaces for Prometheus API client abstraction.
// These interfaces enable better testability and allow for mock implementations
// in unit tests without requiring actual Prometheus server connectivity.
package connector

import (
	"context"
	"time"

	"github.com/fjacquet/prometheus_connector/internal/models"
)

// PrometheusAPI defines the interface for interacting with the Prometheus HTTP API.
// This interface abstracts the HTTP client implementation and enables easy mocking
// in unit tests.
//
// Implementations must provide:
//   - Metadata discovery (label values)
//   - Instant query evaluation
//   - Backend identification and readiness probes
//   - Resource cleanup
//
// The primary implementation is PromClient, which uses Resty for HTTP communication.
type PrometheusAPI interface {
	// FetchLabelValues retrieves all known values for the given label name,
	// honoring the configured match selector for metadata queries.
	//
	// Parameters:
	//   - ctx: Context for request cancellation and timeout
	//   - label: Label name to enumerate (e.g., "__name__" for metric names)
	//
	// Returns the label values as reported by the backend, or an error if the
	// request fails or the response envelope reports an error.
	FetchLabelValues(ctx context.Context, label string) ([]string, error)

	// Query evaluates a PromQL expression at the given instant.
	//
	// Parameters:
	//   - ctx: Context for request cancellation and timeout
	//   - query: PromQL expression to evaluate
	//   - evalTime: Evaluation timestamp, sent as decimal seconds
	//
	// Returns the typed query result, or an error if the request fails or the
	// backend rejects the expression.
	Query(ctx context.Context, query string, evalTime time.Time) (*models.QueryData, error)

	// BuildInfo retrieves the backend build information (version, revision,
	// Go version). Not every backend implements the endpoint; see
	// ErrBuildInfoUnavailable.
	BuildInfo(ctx context.Context) (*models.BuildInfo, error)

	// Ready probes the backend readiness endpoint. A nil return means the
	// backend is accepting queries.
	Ready(ctx context.Context) error

	// Close releases resources associated with the HTTP client, including
	// closing idle connections in the connection pool.
	//
	// Returns an error if the client is already closed or cleanup fails.
	Close() error
}
