// Package connector provides backend version detection for the Prometheus
// HTTP API. It probes the buildinfo endpoint with retry logic so transient
// failures at startup do not leave the connector without version information.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fjacquet/prometheus_connector/internal/models"
	log "github.com/sirupsen/logrus"
)

// RetryConfig defines the configuration for retry logic with exponential backoff.
// It controls how many times to retry transient failures and the delay between attempts.
type RetryConfig struct {
	MaxAttempts   int           // Maximum number of retry attempts
	InitialDelay  time.Duration // Initial delay before first retry
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig provides sensible defaults for retry behavior.
// - 3 attempts total (initial + 2 retries)
// - 1 second initial delay
// - 10 second maximum delay
// - 2x backoff factor (exponential)
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:   3,
	InitialDelay:  1 * time.Second,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
}

// BackendVersionDetector identifies the Prometheus backend version through
// the buildinfo endpoint. Transient failures (network errors, 5xx) are
// retried with exponential backoff; authentication failures and missing
// endpoints fail fast since retrying cannot change the outcome.
type BackendVersionDetector struct {
	client      *PromClient // HTTP client for making probe requests
	retryConfig RetryConfig // Retry configuration for transient failures
}

// NewBackendVersionDetector creates a new version detector using the provided client.
// It uses the default retry configuration for handling transient failures.
//
// Parameters:
//   - client: Configured Prometheus API client
//
// Returns a new BackendVersionDetector instance.
func NewBackendVersionDetector(client *PromClient) *BackendVersionDetector {
	return &BackendVersionDetector{
		client:      client,
		retryConfig: DefaultRetryConfig,
	}
}

// DetectVersion probes the buildinfo endpoint and returns the backend
// version string (e.g., "2.54.1").
//
// The detection process:
//  1. GET /api/v1/status/buildinfo with the configured credentials
//  2. On network errors or HTTP 5xx, retry with exponential backoff
//  3. On HTTP 401/403, fail immediately with an actionable message
//  4. On HTTP 404, return ErrBuildInfoUnavailable (endpoint not served)
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//
// Returns:
//   - Detected backend version string
//   - Error if the probe fails or the endpoint is unavailable
//
// Example:
//
//	detector := NewBackendVersionDetector(client)
//	version, err := detector.DetectVersion(ctx)
//	if errors.Is(err, ErrBuildInfoUnavailable) {
//	    log.Debug("Backend version unknown")
//	}
func (d *BackendVersionDetector) DetectVersion(ctx context.Context) (string, error) {
	log.Debug("Starting backend version detection")

	probeURL := d.client.requestURL(pathBuildInfo)

	delay := d.retryConfig.InitialDelay
	for attempt := 1; attempt <= d.retryConfig.MaxAttempts; attempt++ {
		client, err := d.client.restyClient()
		if err != nil {
			return "", err
		}

		headers, err := d.client.getHeaders()
		if err != nil {
			return "", err
		}

		resp, err := client.R().
			SetContext(ctx).
			SetHeaders(headers).
			Get(pathBuildInfo)

		if err != nil {
			// Network error - retry with backoff
			log.Debugf("Version detection attempt %d/%d failed with network error: %v",
				attempt, d.retryConfig.MaxAttempts, err)

			if attempt < d.retryConfig.MaxAttempts {
				log.Debugf("Retrying in %v...", delay)
				time.Sleep(delay)
				delay = time.Duration(float64(delay) * d.retryConfig.BackoffFactor)
				if delay > d.retryConfig.MaxDelay {
					delay = d.retryConfig.MaxDelay
				}
				continue
			}

			return "", fmt.Errorf("backend version detection failed after %d attempts: url=%s, error=%w",
				d.retryConfig.MaxAttempts, probeURL, err)
		}

		// Check response status
		switch resp.StatusCode() {
		case http.StatusOK:
			version, err := decodeBuildInfoVersion(resp.Body())
			if err != nil {
				return "", fmt.Errorf("backend version detection failed: url=%s: %w", probeURL, err)
			}
			log.Infof("Detected backend version: %s", version)
			return version, nil

		case http.StatusUnauthorized, http.StatusForbidden:
			// Authentication error - fail immediately, retrying cannot help
			return "", &AuthError{StatusCode: resp.StatusCode(), URL: probeURL}

		case http.StatusNotFound:
			// Endpoint not served by this backend - fail fast
			log.Debug("Backend does not serve the buildinfo endpoint (HTTP 404)")
			return "", ErrBuildInfoUnavailable

		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			// Transient server errors - retry with backoff
			log.Debugf("Version detection attempt %d/%d failed with transient error (HTTP %d)",
				attempt, d.retryConfig.MaxAttempts, resp.StatusCode())

			if attempt < d.retryConfig.MaxAttempts {
				log.Debugf("Retrying in %v...", delay)
				time.Sleep(delay)
				delay = time.Duration(float64(delay) * d.retryConfig.BackoffFactor)
				if delay > d.retryConfig.MaxDelay {
					delay = d.retryConfig.MaxDelay
				}
				continue
			}

			return "", fmt.Errorf("backend version detection failed after %d attempts: url=%s, status=%d",
				d.retryConfig.MaxAttempts, probeURL, resp.StatusCode())

		default:
			return "", fmt.Errorf("backend version detection failed: url=%s, status=%d (%s)",
				probeURL, resp.StatusCode(), resp.Status())
		}
	}

	return "", fmt.Errorf("backend version detection failed: url=%s", probeURL)
}

// decodeBuildInfoVersion extracts the version field from a buildinfo response body.
func decodeBuildInfoVersion(body []byte) (string, error) {
	var envelope models.APIResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode build info envelope: %w", err)
	}
	if err := envelope.Err(); err != nil {
		return "", err
	}

	var info models.BuildInfo
	if err := json.Unmarshal(envelope.Data, &info); err != nil {
		return "", fmt.Errorf("failed to decode build info: %w", err)
	}
	if info.Version == "" {
		return "", fmt.Errorf("build info response carries no version")
	}

	return info.Version, nil
}
