// Package connector provides shared test constants and utilities.
// This file contains common constants used across multiple test files
// to avoid duplication and ensure consistency.
package connector

import "github.com/fjacquet/prometheus_connector/internal/testutil"

// Shared test constants - aliased from testutil for consistency
const (
	// HTTP headers
	contentTypeHeader   = testutil.ContentTypeHeader
	authorizationHeader = testutil.AuthorizationHeader

	// Common test values
	contentTypeJSON = testutil.ContentTypeJSON
	testBearerToken = testutil.TestBearerToken
	testUser        = testutil.TestUser
	testPassword    = testutil.TestPassword

	// Prometheus HTTP API paths
	testPathMetricNames = testutil.TestPathMetricNames
	testPathQuery       = testutil.TestPathQuery
	testPathBuildInfo   = testutil.TestPathBuildInfo
	testPathReady       = testutil.TestPathReady

	// Test error messages
	testErrorExpectedError           = testutil.TestErrorExpectedError
	testErrorUnexpected              = testutil.TestErrorUnexpected
	testErrorExpectedErrorContaining = testutil.TestErrorExpectedErrorContaining

	// Test server identifiers
	testBackendVersion = testutil.TestBackendVersion
)
