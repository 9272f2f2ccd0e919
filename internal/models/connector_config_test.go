package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNewConnectorConfig_Defaults(t *testing.T) {
	cfg := NewConnectorConfig()

	if got := cfg.Endpoint().String(); got != DefaultEndpoint {
		t.Errorf("Endpoint() = %q, want %q", got, DefaultEndpoint)
	}
	if got := cfg.QueryChunkSizeDuration(); got != Duration(Day) {
		t.Errorf("QueryChunkSizeDuration() = %v, want 1d", got)
	}
	if got := cfg.MaxQueryRangeDuration(); got != Duration(21*Day) {
		t.Errorf("MaxQueryRangeDuration() = %v, want 21d", got)
	}
	if got := cfg.CacheTTL(); got != Duration(30*time.Second) {
		t.Errorf("CacheTTL() = %v, want 30s", got)
	}
	if got := cfg.ReadTimeout(); got != Duration(10*time.Second) {
		t.Errorf("ReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.AuthHeaderName(); got != "Authorization" {
		t.Errorf("AuthHeaderName() = %q, want Authorization", got)
	}
	if _, ok := cfg.BearerTokenFile(); ok {
		t.Error("BearerTokenFile() should not be set by default")
	}
	if _, ok := cfg.User(); ok {
		t.Error("User() should not be set by default")
	}
	if _, ok := cfg.Password(); ok {
		t.Error("Password() should not be set by default")
	}
	if cfg.CaseInsensitiveNameMatching() {
		t.Error("CaseInsensitiveNameMatching() should default to false")
	}
	if got := cfg.AdditionalHeaders(); len(got) != 0 {
		t.Errorf("AdditionalHeaders() = %v, want empty map", got)
	}
	if _, ok := cfg.MatchString(); ok {
		t.Error("MatchString() should not be set by default")
	}
	if got := cfg.QueryFunctions(); len(got) != 0 {
		t.Errorf("QueryFunctions() = %v, want empty set", got)
	}

	// The default configuration must be valid as-is.
	if err := cfg.Validate(); err != nil {
		t.Errorf(testErrorValidateUnexpected, err)
	}
}

func TestConnectorConfig_SetEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{name: "http with port", uri: "http://localhost:9090"},
		{name: "https with path", uri: "https://prometheus.example.com/prom"},
		{name: "empty string", uri: "", wantErr: true},
		{name: "missing scheme", uri: "prometheus.example.com:9090", wantErr: true},
		{name: "path only", uri: "/api/v1", wantErr: true},
		{name: "scheme without host", uri: "http://", wantErr: true},
		{name: "unparseable", uri: "http://bad host/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConnectorConfig()
			err := cfg.SetEndpoint(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SetEndpoint(%q) expected error, got nil", tt.uri)
				}
				if !strings.Contains(err.Error(), PropURI) {
					t.Errorf("SetEndpoint(%q) error = %v, want error naming %s", tt.uri, err, PropURI)
				}
				// A rejected value must not disturb the configured endpoint.
				if got := cfg.Endpoint().String(); got != DefaultEndpoint {
					t.Errorf("Endpoint() after failed set = %q, want %q", got, DefaultEndpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetEndpoint(%q) unexpected error = %v", tt.uri, err)
			}
			if got := cfg.Endpoint().String(); got != tt.uri {
				t.Errorf("Endpoint() = %q, want %q", got, tt.uri)
			}
		})
	}
}

func TestConnectorConfig_DurationFloors(t *testing.T) {
	tests := []struct {
		name    string
		set     func(*ConnectorConfig, Duration) error
		prop    string
		value   Duration
		wantErr bool
	}{
		{
			name:  "chunk accepts one millisecond",
			set:   (*ConnectorConfig).SetQueryChunkSizeDuration,
			prop:  PropQueryChunkSizeDuration,
			value: Duration(time.Millisecond),
		},
		{
			name:    "chunk rejects sub millisecond",
			set:     (*ConnectorConfig).SetQueryChunkSizeDuration,
			prop:    PropQueryChunkSizeDuration,
			value:   Duration(500 * time.Microsecond),
			wantErr: true,
		},
		{
			name:  "range accepts one millisecond",
			set:   (*ConnectorConfig).SetMaxQueryRangeDuration,
			prop:  PropMaxQueryRangeDuration,
			value: Duration(time.Millisecond),
		},
		{
			name:    "range rejects zero",
			set:     (*ConnectorConfig).SetMaxQueryRangeDuration,
			prop:    PropMaxQueryRangeDuration,
			value:   Duration(0),
			wantErr: true,
		},
		{
			name:  "cache ttl accepts one second",
			set:   (*ConnectorConfig).SetCacheTTL,
			prop:  PropCacheTTL,
			value: Duration(time.Second),
		},
		{
			name:    "cache ttl rejects 500ms at assignment",
			set:     (*ConnectorConfig).SetCacheTTL,
			prop:    PropCacheTTL,
			value:   Duration(500 * time.Millisecond),
			wantErr: true,
		},
		{
			name:  "read timeout accepts one second",
			set:   (*ConnectorConfig).SetReadTimeout,
			prop:  PropReadTimeout,
			value: Duration(time.Second),
		},
		{
			name:    "read timeout rejects 500ms at assignment",
			set:     (*ConnectorConfig).SetReadTimeout,
			prop:    PropReadTimeout,
			value:   Duration(500 * time.Millisecond),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConnectorConfig()
			err := tt.set(cfg, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("setter expected error for %v, got nil", tt.value)
				}
				if !strings.Contains(err.Error(), tt.prop) {
					t.Errorf("error = %v, want error naming %s", err, tt.prop)
				}
				if !strings.Contains(err.Error(), "at least") {
					t.Errorf("error = %v, want error naming the minimum", err)
				}
				// The rejected value must not land in the config: the
				// defaults still validate.
				if verr := cfg.Validate(); verr != nil {
					t.Errorf("Validate() after rejected set: unexpected error = %v", verr)
				}
				return
			}
			if err != nil {
				t.Fatalf("setter unexpected error = %v", err)
			}
		})
	}
}

func TestConnectorConfig_SetQueryFunctions(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "lowercases mixed case names",
			input: []string{"Sum", "AVG"},
			want:  []string{"avg", "sum"},
		},
		{
			name:  "deduplicates case variants",
			input: []string{"rate", "RATE", "Rate"},
			want:  []string{"rate"},
		},
		{
			name:  "trims whitespace and drops empties",
			input: []string{" sum ", "", "  "},
			want:  []string{"sum"},
		},
		{
			name:  "nil input clears the set",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConnectorConfig()
			cfg.SetQueryFunctions(tt.input)
			got := cfg.QueryFunctions()
			if len(got) != len(tt.want) {
				t.Fatalf("QueryFunctions() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("QueryFunctions() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestConnectorConfig_HasQueryFunction(t *testing.T) {
	cfg := NewConnectorConfig()
	cfg.SetQueryFunctions([]string{"Sum", "AVG"})

	for _, fn := range []string{"sum", "SUM", "Avg"} {
		if !cfg.HasQueryFunction(fn) {
			t.Errorf("HasQueryFunction(%q) = false, want true", fn)
		}
	}
	if cfg.HasQueryFunction("rate") {
		t.Error("HasQueryFunction(\"rate\") = true, want false")
	}
}

func TestConnectorConfig_SetAdditionalHeaders(t *testing.T) {
	cfg := NewConnectorConfig()

	if err := cfg.SetAdditionalHeaders("X-Scope-OrgID:tenant-a,X-Source:connector"); err != nil {
		t.Fatalf(testErrorUnexpected, err)
	}
	want := map[string]string{"X-Scope-OrgID": "tenant-a", "X-Source": "connector"}
	if got := cfg.AdditionalHeaders(); !reflect.DeepEqual(got, want) {
		t.Errorf("AdditionalHeaders() = %v, want %v", got, want)
	}

	err := cfg.SetAdditionalHeaders("not-a-header-pair")
	if err == nil {
		t.Fatal(testErrorExpectedError)
	}
	if !strings.Contains(err.Error(), PropAdditionalHeaders) {
		t.Errorf("error = %v, want error naming %s", err, PropAdditionalHeaders)
	}
	if !strings.Contains(err.Error(), "not-a-header-pair") {
		t.Errorf("error = %v, want error carrying the raw value", err)
	}
	// Rejected input leaves the previous headers in place.
	if got := cfg.AdditionalHeaders(); !reflect.DeepEqual(got, want) {
		t.Errorf("AdditionalHeaders() after failed set = %v, want %v", got, want)
	}
}

func TestConnectorConfig_AdditionalHeadersCopy(t *testing.T) {
	cfg := NewConnectorConfig()
	if err := cfg.SetAdditionalHeaders("a:b"); err != nil {
		t.Fatalf(testErrorUnexpected, err)
	}

	headers := cfg.AdditionalHeaders()
	headers["a"] = "tampered"
	headers["new"] = "entry"

	if got := cfg.AdditionalHeaders(); got["a"] != "b" || len(got) != 1 {
		t.Errorf("AdditionalHeaders() = %v, mutation of the returned map leaked in", got)
	}
}

func TestConnectorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, cfg *ConnectorConfig)
		wantErr bool
		errMsgs []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {},
		},
		{
			name: "range smaller than chunk",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				mustSetDuration(t, cfg.SetQueryChunkSizeDuration, "2d")
				mustSetDuration(t, cfg.SetMaxQueryRangeDuration, "1d")
			},
			wantErr: true,
			errMsgs: []string{PropMaxQueryRangeDuration, PropQueryChunkSizeDuration},
		},
		{
			name: "comparison floors to whole seconds",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				// 1200ms and 1500ms both floor to 1s, so the pair passes
				// even though the range is nominally narrower.
				mustSetDuration(t, cfg.SetQueryChunkSizeDuration, "1500ms")
				mustSetDuration(t, cfg.SetMaxQueryRangeDuration, "1200ms")
			},
		},
		{
			name: "equal range and chunk are valid",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				mustSetDuration(t, cfg.SetQueryChunkSizeDuration, "1d")
				mustSetDuration(t, cfg.SetMaxQueryRangeDuration, "1d")
			},
		},
		{
			name: "basic auth with both parts is valid",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetUser(testUser)
				cfg.SetPassword(testPassword)
			},
		},
		{
			name: "bearer token file alone is valid",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetBearerTokenFile(testBearerTokenFile)
			},
		},
		{
			name: "bearer token file and basic auth are exclusive",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetBearerTokenFile(testBearerTokenFile)
				cfg.SetUser(testUser)
				cfg.SetPassword(testPassword)
			},
			wantErr: true,
			errMsgs: []string{"mutually exclusive"},
		},
		{
			name: "user without password",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetUser(testUser)
			},
			wantErr: true,
			errMsgs: []string{"set together"},
		},
		{
			name: "password without user",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetPassword(testPassword)
			},
			wantErr: true,
			errMsgs: []string{"set together"},
		},
		{
			name: "additional headers must not carry the auth header",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				if err := cfg.SetAdditionalHeaders("Authorization:Bearer abc"); err != nil {
					t.Fatalf(testErrorUnexpected, err)
				}
			},
			wantErr: true,
			errMsgs: []string{PropAdditionalHeaders, "Authorization"},
		},
		{
			name: "auth header clash follows the configured name",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetAuthHeaderName("X-Custom-Auth")
				if err := cfg.SetAdditionalHeaders("X-Custom-Auth:abc"); err != nil {
					t.Fatalf(testErrorUnexpected, err)
				}
			},
			wantErr: true,
			errMsgs: []string{"X-Custom-Auth"},
		},
		{
			name: "renamed auth header frees Authorization for forwarding",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetAuthHeaderName("X-Custom-Auth")
				if err := cfg.SetAdditionalHeaders("Authorization:forwarded"); err != nil {
					t.Fatalf(testErrorUnexpected, err)
				}
			},
		},
		{
			name: "empty auth header name",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetAuthHeaderName("")
			},
			wantErr: true,
			errMsgs: []string{PropAuthHeaderName},
		},
		{
			name: "all violations are reported together",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				mustSetDuration(t, cfg.SetQueryChunkSizeDuration, "2d")
				mustSetDuration(t, cfg.SetMaxQueryRangeDuration, "1d")
				cfg.SetBearerTokenFile(testBearerTokenFile)
				cfg.SetUser(testUser)
			},
			wantErr: true,
			errMsgs: []string{
				PropMaxQueryRangeDuration,
				"mutually exclusive",
				"set together",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConnectorConfig()
			tt.mutate(t, cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal(testErrorExpectedError)
				}
				for _, msg := range tt.errMsgs {
					if !strings.Contains(err.Error(), msg) {
						t.Errorf(testErrorExpectedErrorContaining, msg, err.Error())
					}
				}
				return
			}
			if err != nil {
				t.Errorf(testErrorValidateUnexpected, err)
			}
		})
	}
}

func TestConnectorConfig_StringMasksSecrets(t *testing.T) {
	cfg := NewConnectorConfig()
	cfg.SetUser(testUser)
	cfg.SetPassword("s3cr3t-value")
	if err := cfg.SetAdditionalHeaders("X-Api-Key:another-secret"); err != nil {
		t.Fatalf(testErrorUnexpected, err)
	}

	rendered := cfg.String()

	if strings.Contains(rendered, "s3cr3t-value") {
		t.Errorf("String() leaks the password: %q", rendered)
	}
	if !strings.Contains(rendered, "****") {
		t.Errorf("String() should mark the password as masked: %q", rendered)
	}
	if strings.Contains(rendered, "another-secret") {
		t.Errorf("String() leaks additional header values: %q", rendered)
	}
	if !strings.Contains(rendered, "X-Api-Key") {
		t.Errorf("String() should list additional header names: %q", rendered)
	}
	if !strings.Contains(rendered, testUser) {
		t.Errorf("String() should show the user name: %q", rendered)
	}
	if !strings.Contains(rendered, DefaultEndpoint) {
		t.Errorf("String() should show the endpoint: %q", rendered)
	}
}

func TestConnectorConfig_StringOmitsUnsetOptionals(t *testing.T) {
	rendered := NewConnectorConfig().String()

	for _, prop := range []string{PropBearerTokenFile, PropAuthUser, PropAuthPassword, PropQueryMatchString, PropQueryFunctions} {
		if strings.Contains(rendered, prop) {
			t.Errorf("String() should omit unset %s: %q", prop, rendered)
		}
	}
	for _, prop := range []string{PropURI, PropCacheTTL, PropReadTimeout} {
		if !strings.Contains(rendered, prop) {
			t.Errorf("String() should include %s: %q", prop, rendered)
		}
	}
}

func TestConnectorConfig_Equal(t *testing.T) {
	base := func(t *testing.T) *ConnectorConfig {
		t.Helper()
		cfg := NewConnectorConfig()
		if err := cfg.SetEndpoint("http://prom:9090"); err != nil {
			t.Fatalf(testErrorUnexpected, err)
		}
		if err := cfg.SetAdditionalHeaders("X-Scope-OrgID:tenant-a"); err != nil {
			t.Fatalf(testErrorUnexpected, err)
		}
		cfg.SetQueryFunctions([]string{"sum", "avg"})
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(t *testing.T, cfg *ConnectorConfig)
		want   bool
	}{
		{
			name:   "identical configs are equal",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {},
			want:   true,
		},
		{
			name: "different endpoint",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				if err := cfg.SetEndpoint("http://other:9090"); err != nil {
					t.Fatalf(testErrorUnexpected, err)
				}
			},
		},
		{
			name: "different read timeout",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				mustSetDuration(t, cfg.SetReadTimeout, "30s")
			},
		},
		{
			name: "different header value",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				if err := cfg.SetAdditionalHeaders("X-Scope-OrgID:tenant-b"); err != nil {
					t.Fatalf(testErrorUnexpected, err)
				}
			},
		},
		{
			name: "different function set",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetQueryFunctions([]string{"sum"})
			},
		},
		{
			name: "different credentials",
			mutate: func(t *testing.T, cfg *ConnectorConfig) {
				cfg.SetUser(testUser)
				cfg.SetPassword(testPassword)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base(t)
			b := base(t)
			tt.mutate(t, b)
			if got := a.Equal(b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("nil is never equal", func(t *testing.T) {
		if base(t).Equal(nil) {
			t.Error("Equal(nil) = true, want false")
		}
	})
}

// mustSetDuration parses the duration and applies the setter, failing the
// test on either error.
func mustSetDuration(t *testing.T, set func(Duration) error, value string) {
	t.Helper()
	d, err := ParseDuration(value)
	if err != nil {
		t.Fatalf("ParseDuration(%q) unexpected error = %v", value, err)
	}
	if err := set(d); err != nil {
		t.Fatalf("setter(%q) unexpected error = %v", value, err)
	}
}
