// Package models provides shared test constants for model tests.
package models

import "github.com/fjacquet/prometheus_connector/internal/testutil"

// Shared test constants - aliased from testutil for backward compatibility
const (
	// Test endpoints and paths
	testPathMetrics     = testutil.TestPathMetrics
	testPathMetricNames = testutil.TestPathMetricNames

	// Test error messages
	testErrorValidateUnexpected      = testutil.TestErrorValidateUnexpected
	testErrorExpectedError           = testutil.TestErrorExpectedError
	testErrorUnexpected              = testutil.TestErrorUnexpected
	testErrorExpectedErrorContaining = testutil.TestErrorExpectedErrorContaining

	// Test credentials and identifiers
	testUser            = testutil.TestUser
	testPassword        = testutil.TestPassword
	testBearerTokenFile = testutil.TestBearerTokenFile
	testOTELEndpoint    = testutil.TestOTELEndpoint
	testLogName         = testutil.TestLogName
)
