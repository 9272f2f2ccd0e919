package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fjacquet/prometheus_connector/internal/models"
	"github.com/fjacquet/prometheus_connector/internal/utils"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

// LabelMetricNames is the reserved label enumerating metric names.
const LabelMetricNames = "__name__"

// ErrBuildInfoUnavailable is returned by BuildInfo when the backend does not
// serve the buildinfo endpoint. Prometheus added it in 2.14; some compatible
// backends (or locked-down proxies) never expose it. Callers should treat it
// as "no version information" rather than a failure.
var ErrBuildInfoUnavailable = errors.New("backend does not expose build information")

// restyClient returns the underlying resty client, or an error when the
// client has been closed. Probe methods that bypass fetchData go through this
// guard so a close during a health check fails cleanly instead of panicking.
func (c *PromClient) restyClient() (*resty.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.client == nil {
		return nil, fmt.Errorf("client is closed")
	}
	return c.client, nil
}

// FetchLabelValues retrieves all known values for the given label name from
// the backend. The configured match selector, when set, restricts the
// enumeration via the match[] parameter; FetchLabelValues(ctx, "__name__")
// is how the connector discovers metric names.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//   - label: Label name to enumerate
//
// Returns the values in backend order, or an error if the request fails or
// the response envelope reports an error.
func (c *PromClient) FetchLabelValues(ctx context.Context, label string) ([]string, error) {
	params := map[string]string{}
	if match, ok := c.cfg.MatchString(); ok {
		params[queryParamMatch] = match
	}

	path := fmt.Sprintf(pathLabelValues, url.PathEscape(label))

	var envelope models.APIResponse
	if err := c.fetchData(ctx, path, params, &envelope); err != nil {
		return nil, err
	}
	if err := envelope.Err(); err != nil {
		return nil, fmt.Errorf("label values request for %s rejected: %w", label, err)
	}

	var values []string
	if err := json.Unmarshal(envelope.Data, &values); err != nil {
		return nil, fmt.Errorf("failed to decode label values for %s: %w", label, err)
	}

	logWarnings(envelope.Warnings)
	return values, nil
}

// Query evaluates a PromQL expression at the given instant and returns the
// typed result. The evaluation timestamp is sent as decimal seconds with
// millisecond precision.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//   - query: PromQL expression to evaluate
//   - evalTime: Evaluation timestamp
//
// Returns the decoded result, or an error if the request fails or the
// backend rejects the expression.
//
// Example:
//
//	data, err := client.Query(ctx, `up[1h]`, time.Now())
func (c *PromClient) Query(ctx context.Context, query string, evalTime time.Time) (*models.QueryData, error) {
	params := map[string]string{
		queryParamQuery: query,
		queryParamTime:  utils.FormatQueryTime(evalTime),
	}

	var envelope models.APIResponse
	if err := c.fetchData(ctx, pathQuery, params, &envelope); err != nil {
		return nil, err
	}
	if err := envelope.Err(); err != nil {
		return nil, fmt.Errorf("query %q rejected: %w", query, err)
	}

	var data models.QueryData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode query result: %w", err)
	}

	logWarnings(envelope.Warnings)
	return &data, nil
}

// BuildInfo retrieves the backend build information. Unlike the envelope
// endpoints this handles HTTP 404 specially, mapping it to
// ErrBuildInfoUnavailable so callers can degrade gracefully on backends
// without the endpoint.
func (c *PromClient) BuildInfo(ctx context.Context) (*models.BuildInfo, error) {
	client, err := c.restyClient()
	if err != nil {
		return nil, err
	}

	headers, err := c.getHeaders()
	if err != nil {
		return nil, err
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(pathBuildInfo)
	if err != nil {
		return nil, fmt.Errorf("build info request to %s failed: %w", c.requestURL(pathBuildInfo), err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrBuildInfoUnavailable
	case resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode(), URL: c.requestURL(pathBuildInfo)}
	case resp.IsError():
		return nil, fmt.Errorf("build info request failed: url=%s, status=%d (%s)",
			c.requestURL(pathBuildInfo), resp.StatusCode(), resp.Status())
	}

	var envelope models.APIResponse
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode build info envelope: %w", err)
	}
	if err := envelope.Err(); err != nil {
		return nil, fmt.Errorf("build info request rejected: %w", err)
	}

	var info models.BuildInfo
	if err := json.Unmarshal(envelope.Data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode build info: %w", err)
	}

	return &info, nil
}

// Ready probes the backend readiness endpoint. The endpoint answers plain
// text, so the response body is ignored; only the status code matters.
func (c *PromClient) Ready(ctx context.Context) error {
	client, err := c.restyClient()
	if err != nil {
		return err
	}

	headers, err := c.getHeaders()
	if err != nil {
		return err
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(pathReady)
	if err != nil {
		return fmt.Errorf("readiness probe to %s failed: %w", c.requestURL(pathReady), err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return &AuthError{StatusCode: resp.StatusCode(), URL: c.requestURL(pathReady)}
	}
	if resp.IsError() {
		return fmt.Errorf("backend not ready: url=%s, status=%d (%s)",
			c.requestURL(pathReady), resp.StatusCode(), resp.Status())
	}

	return nil
}

// logWarnings surfaces query warnings from the response envelope without
// failing the request.
func logWarnings(warnings []string) {
	for _, w := range warnings {
		log.Warnf("Backend warning: %s", w)
	}
}
