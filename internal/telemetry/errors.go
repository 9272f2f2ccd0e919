package telemetry

// This file defines error message templates for common failure scenarios.
// Templates provide consistent, actionable error messages with troubleshooting steps.
//
// Using templates instead of inline error messages:
//   - Centralizes error message maintenance
//   - Ensures consistent formatting and content
//   - Makes it easier to update troubleshooting steps
//   - Reduces code duplication
//
// Usage:
//
//	if resp.StatusCode() == http.StatusUnauthorized {
//	    return fmt.Errorf(telemetry.ErrAuthFailedTemplate, resp.StatusCode(), url)
//	}
//
// Each template includes:
//   - Clear description of the error
//   - Explanation of common causes
//   - Step-by-step troubleshooting instructions
//   - Example configuration or commands
//   - Relevant context (URL, status code, etc.)

// Error message templates for common scenarios
const (
	// ErrAuthFailedTemplate is returned when the Prometheus backend rejects the request credentials
	ErrAuthFailedTemplate = `Prometheus backend rejected the request credentials (HTTP %d).

The backend requires authentication and the configured credentials were refused.

Troubleshooting steps:
1. For bearer auth, verify the token file named by 'prometheus.bearer.token.file' exists and holds a current token
2. For basic auth, verify 'prometheus.auth.user' and 'prometheus.auth.password' in the catalog
3. If the backend sits behind a proxy expecting a custom header, set 'prometheus.auth.http.header.name'
4. Confirm the credentials work outside the connector: curl -H "Authorization: Bearer $(cat <token-file>)" <uri>/api/v1/status/buildinfo

Example catalog:
  prometheus.uri: https://prometheus.example.com
  prometheus.bearer.token.file: /var/run/secrets/prometheus-token

Request URL: %s`

	// ErrNonJSONResponseTemplate is returned when the backend returns non-JSON content
	ErrNonJSONResponseTemplate = `Prometheus backend returned non-JSON response (Content-Type: %s).

This usually indicates:
1. Wrong endpoint URL (check 'prometheus.uri' in the catalog; include any path prefix the backend is served under)
2. An intermediate proxy answering instead of the backend (login page, error page)
3. A backend that does not speak the Prometheus HTTP API

Request URL: %s
Response preview: %s`
)
