package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// buildInfoHandler serves a success envelope carrying the given version.
func buildInfoHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(contentTypeHeader, contentTypeJSON)
		fmt.Fprintf(w, `{"status":"success","data":{"version":%q,"revision":"deadbeef","goVersion":"go1.25.0"}}`, version)
	}
}

// setupDetectorTest creates a client and detector pointed at the test server,
// with fast backoff and the transport-level retries disabled so the detector's
// own retry loop is the only one in play.
func setupDetectorTest(t *testing.T, serverURL string) (*PromClient, *BackendVersionDetector) {
	t.Helper()
	client := NewPromClient(newTestConfig(t, serverURL))
	client.client.SetRetryCount(0)

	detector := NewBackendVersionDetector(client)
	detector.retryConfig = RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      20 * time.Millisecond,
		BackoffFactor: 2.0,
	}
	return client, detector
}

func TestBackendVersionDetectorSuccess(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{name: "prometheus 2.x", version: testBackendVersion},
		{name: "prometheus 3.x", version: "3.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(buildInfoHandler(tt.version))
			defer server.Close()

			client, detector := setupDetectorTest(t, server.URL)
			defer client.Close()

			version, err := detector.DetectVersion(context.Background())
			if err != nil {
				t.Errorf("DetectVersion() unexpected error = %v", err)
			}
			if version != tt.version {
				t.Errorf("DetectVersion() = %v, want %v", version, tt.version)
			}
		})
	}
}

func TestBackendVersionDetectorRetriesTransientErrors(t *testing.T) {
	tests := []struct {
		name         string
		failureCount int // Number of 503s before the server recovers
		wantErr      bool
	}{
		{
			name:         "succeeds on first attempt",
			failureCount: 0,
		},
		{
			name:         "succeeds after one retry",
			failureCount: 1,
		},
		{
			name:         "succeeds after two retries",
			failureCount: 2,
		},
		{
			name:         "fails after max attempts",
			failureCount: 3,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attemptCount := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attemptCount < tt.failureCount {
					attemptCount++
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				buildInfoHandler(testBackendVersion)(w, r)
			}))
			defer server.Close()

			client, detector := setupDetectorTest(t, server.URL)
			defer client.Close()

			version, err := detector.DetectVersion(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("DetectVersion() expected error after exhausting attempts, got nil")
				}
				if !strings.Contains(err.Error(), "after 3 attempts") {
					t.Errorf("DetectVersion() error = %v, want mention of exhausted attempts", err)
				}
				return
			}
			if err != nil {
				t.Errorf("DetectVersion() unexpected error = %v", err)
			}
			if version != testBackendVersion {
				t.Errorf("DetectVersion() = %v, want %v", version, testBackendVersion)
			}
		})
	}
}

func TestBackendVersionDetectorAuthErrorFailsFast(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{name: "unauthorized", statusCode: http.StatusUnauthorized},
		{name: "forbidden", statusCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts++
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client, detector := setupDetectorTest(t, server.URL)
			defer client.Close()

			version, err := detector.DetectVersion(context.Background())
			if version != "" {
				t.Errorf("DetectVersion() = %v, want empty string on auth error", version)
			}

			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("DetectVersion() error = %v, want *AuthError", err)
			}
			if authErr.StatusCode != tt.statusCode {
				t.Errorf("AuthError.StatusCode = %d, want %d", authErr.StatusCode, tt.statusCode)
			}

			server.Close()
			if attempts != 1 {
				t.Errorf("server saw %d attempts, want 1 (auth errors must not be retried)", attempts)
			}
		})
	}
}

func TestBackendVersionDetectorBuildInfoUnavailable(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, detector := setupDetectorTest(t, server.URL)
	defer client.Close()

	_, err := detector.DetectVersion(context.Background())
	if !errors.Is(err, ErrBuildInfoUnavailable) {
		t.Errorf("DetectVersion() error = %v, want ErrBuildInfoUnavailable", err)
	}

	server.Close()
	if attempts != 1 {
		t.Errorf("server saw %d attempts, want 1 (missing endpoint must not be retried)", attempts)
	}
}

func TestBackendVersionDetectorUnexpectedStatus(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client, detector := setupDetectorTest(t, server.URL)
	defer client.Close()

	_, err := detector.DetectVersion(context.Background())
	if err == nil {
		t.Fatal("DetectVersion() expected error for unexpected status, got nil")
	}
	if !strings.Contains(err.Error(), "status=418") {
		t.Errorf("DetectVersion() error = %v, want status in message", err)
	}

	server.Close()
	if attempts != 1 {
		t.Errorf("server saw %d attempts, want 1", attempts)
	}
}

func TestBackendVersionDetectorNetworkError(t *testing.T) {
	// Nothing listens here
	client, detector := setupDetectorTest(t, "http://127.0.0.1:65534")
	defer client.Close()

	_, err := detector.DetectVersion(context.Background())
	if err == nil {
		t.Fatal("DetectVersion() expected error for unreachable backend, got nil")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("DetectVersion() error = %v, want mention of exhausted attempts", err)
	}
}

func TestBackendVersionDetectorClosedClient(t *testing.T) {
	server := httptest.NewServer(buildInfoHandler(testBackendVersion))
	defer server.Close()

	client, detector := setupDetectorTest(t, server.URL)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() unexpected error = %v", err)
	}

	_, err := detector.DetectVersion(context.Background())
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("DetectVersion() error = %v, want closed-client error", err)
	}
}

func TestBackendVersionDetectorSendsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get(authorizationHeader)
		if !strings.HasPrefix(auth, "Basic ") {
			t.Errorf("Authorization header = %q, want Basic credentials", auth)
		}
		buildInfoHandler(testBackendVersion)(w, r)
	}))
	defer server.Close()

	cfg := newTestConfig(t, server.URL)
	cfg.SetUser(testUser)
	cfg.SetPassword(testPassword)

	client := NewPromClient(cfg)
	defer client.Close()
	client.client.SetRetryCount(0)

	detector := NewBackendVersionDetector(client)
	if _, err := detector.DetectVersion(context.Background()); err != nil {
		t.Errorf("DetectVersion() unexpected error = %v", err)
	}
}

func TestDecodeBuildInfoVersion(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		want        string
		wantErr     bool
		errContains string
	}{
		{
			name: "valid build info",
			body: `{"status":"success","data":{"version":"2.54.1","revision":"deadbeef"}}`,
			want: "2.54.1",
		},
		{
			name:        "error envelope",
			body:        `{"status":"error","errorType":"internal","error":"something broke"}`,
			wantErr:     true,
			errContains: "internal",
		},
		{
			name:        "missing version field",
			body:        `{"status":"success","data":{"revision":"deadbeef"}}`,
			wantErr:     true,
			errContains: "no version",
		},
		{
			name:        "malformed body",
			body:        `<html>not json</html>`,
			wantErr:     true,
			errContains: "decode build info envelope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBuildInfoVersion([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("decodeBuildInfoVersion() expected error, got version %q", got)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("decodeBuildInfoVersion() error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("decodeBuildInfoVersion() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Errorf("decodeBuildInfoVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	if DefaultRetryConfig.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", DefaultRetryConfig.MaxAttempts)
	}
	if DefaultRetryConfig.InitialDelay != 1*time.Second {
		t.Errorf("InitialDelay = %v, want 1s", DefaultRetryConfig.InitialDelay)
	}
	if DefaultRetryConfig.MaxDelay != 10*time.Second {
		t.Errorf("MaxDelay = %v, want 10s", DefaultRetryConfig.MaxDelay)
	}
	if DefaultRetryConfig.BackoffFactor != 2.0 {
		t.Errorf("BackoffFactor = %v, want 2.0", DefaultRetryConfig.BackoffFactor)
	}
}
