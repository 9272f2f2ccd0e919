package connector

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// healthCheckTimeout caps connectivity probes when the caller's context
// carries no deadline of its own.
const healthCheckTimeout = 5 * time.Second

// TestConnectivity verifies that the backend is reachable and willing to
// serve queries. It probes the readiness endpoint first and falls back to
// the build information endpoint for backends or proxies that do not expose
// readiness.
//
// Outcomes:
//   - Readiness probe succeeds: the backend is up, returns nil
//   - Readiness fails with a credential rejection: returns the AuthError
//     unchanged so callers surface the actionable message
//   - Readiness fails but build info answers: the backend serves the API
//     even though /-/ready is absent or blocked, returns nil
//   - Both fail: returns an error describing both probes
//
// The method respects the caller's context deadline and applies a 5-second
// default timeout when none is set.
func (c *PromCollector) TestConnectivity(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
	}

	readyErr := c.client.Ready(ctx)
	if readyErr == nil {
		return nil
	}

	var authErr *AuthError
	if errors.As(readyErr, &authErr) {
		return readyErr
	}

	if _, infoErr := c.client.BuildInfo(ctx); infoErr != nil {
		if errors.Is(infoErr, ErrBuildInfoUnavailable) {
			return readyErr
		}
		return fmt.Errorf("backend connectivity check failed: readiness probe: %v; build info probe: %w", readyErr, infoErr)
	}

	// The readiness endpoint is unavailable but the query API answers.
	return nil
}

// IsHealthy reports whether the collector has completed at least one
// successful metric name discovery. Used by the /health endpoint to
// distinguish a warming-up or failing connector from an operational one.
func (c *PromCollector) IsHealthy() bool {
	c.scrapeMu.RLock()
	defer c.scrapeMu.RUnlock()
	return !c.lastSuccessfulScrape.IsZero()
}
