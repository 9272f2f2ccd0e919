package models

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v2"
)

func baseEnvelopeConfig() Config {
	var c Config
	c.Server.Port = "2112"
	c.Server.Host = "localhost"
	c.Server.URI = "/metrics"
	c.Server.HealthURI = "/health"
	c.Server.LogName = testLogName
	c.Catalog.Path = "prometheus.yaml"
	return c
}

func TestConfig_SetDefaults(t *testing.T) {
	var c Config
	c.SetDefaults()

	if c.Server.URI != "/metrics" {
		t.Errorf("SetDefaults() URI = %v, want /metrics", c.Server.URI)
	}
	if c.Server.HealthURI != "/health" {
		t.Errorf("SetDefaults() HealthURI = %v, want /health", c.Server.HealthURI)
	}
	if c.OpenTelemetry.SamplingRate != 1.0 {
		t.Errorf("SetDefaults() SamplingRate = %v, want 1.0", c.OpenTelemetry.SamplingRate)
	}
	if c.OpenTelemetry.ServiceName != "prometheus_connector" {
		t.Errorf("SetDefaults() ServiceName = %v, want prometheus_connector", c.OpenTelemetry.ServiceName)
	}

	preset := baseEnvelopeConfig()
	preset.Server.URI = "/custom"
	preset.OpenTelemetry.SamplingRate = 0.25
	preset.SetDefaults()
	if preset.Server.URI != "/custom" {
		t.Errorf("SetDefaults() overwrote URI = %v, want /custom", preset.Server.URI)
	}
	if preset.OpenTelemetry.SamplingRate != 0.25 {
		t.Errorf("SetDefaults() overwrote SamplingRate = %v, want 0.25", preset.OpenTelemetry.SamplingRate)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantError bool
		errMsg    string
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			wantError: false,
		},
		{
			name: "missing catalog path is allowed",
			modify: func(c *Config) {
				c.Catalog.Path = ""
			},
			wantError: false,
		},
		{
			name: "missing server port",
			modify: func(c *Config) {
				c.Server.Port = ""
			},
			wantError: true,
			errMsg:    "server port is required",
		},
		{
			name: "invalid server port - too high",
			modify: func(c *Config) {
				c.Server.Port = "99999"
			},
			wantError: true,
			errMsg:    "invalid server port",
		},
		{
			name: "invalid server port - negative",
			modify: func(c *Config) {
				c.Server.Port = "-1"
			},
			wantError: true,
			errMsg:    "invalid server port",
		},
		{
			name: "invalid server port - non-numeric",
			modify: func(c *Config) {
				c.Server.Port = "abc"
			},
			wantError: true,
			errMsg:    "invalid server port",
		},
		{
			name: "missing server host",
			modify: func(c *Config) {
				c.Server.Host = ""
			},
			wantError: true,
			errMsg:    "server host is required",
		},
		{
			name: "metrics URI without leading slash",
			modify: func(c *Config) {
				c.Server.URI = "metrics"
			},
			wantError: true,
			errMsg:    "invalid metrics URI",
		},
		{
			name: "health URI without leading slash",
			modify: func(c *Config) {
				c.Server.HealthURI = "health"
			},
			wantError: true,
			errMsg:    "invalid health URI",
		},
		{
			name: "metrics and health URI collide",
			modify: func(c *Config) {
				c.Server.URI = "/probe"
				c.Server.HealthURI = "/probe"
			},
			wantError: true,
			errMsg:    "must differ",
		},
		{
			name: "tracing enabled without endpoint",
			modify: func(c *Config) {
				c.OpenTelemetry.Enabled = true
			},
			wantError: true,
			errMsg:    "opentelemetry endpoint is required",
		},
		{
			name: "tracing enabled with endpoint",
			modify: func(c *Config) {
				c.OpenTelemetry.Enabled = true
				c.OpenTelemetry.Endpoint = testOTELEndpoint
			},
			wantError: false,
		},
		{
			name: "sampling rate above one",
			modify: func(c *Config) {
				c.OpenTelemetry.SamplingRate = 1.5
			},
			wantError: true,
			errMsg:    "invalid opentelemetry sampling rate",
		},
		{
			name: "sampling rate below zero",
			modify: func(c *Config) {
				c.OpenTelemetry.SamplingRate = -0.1
			},
			wantError: true,
			errMsg:    "invalid opentelemetry sampling rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := baseEnvelopeConfig()
			tt.modify(&config)

			err := config.Validate()

			if tt.wantError {
				if err == nil {
					t.Error(testErrorExpectedError)
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf(testErrorExpectedErrorContaining, tt.errMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf(testErrorValidateUnexpected, err)
				}
			}
		})
	}
}

func TestConfig_ParseYAML(t *testing.T) {
	tests := []struct {
		name           string
		yaml           string
		expectedPath   string
		shouldValidate bool
	}{
		{
			name: "full config with catalog and tracing",
			yaml: `
server:
  host: "localhost"
  port: "2112"
  uri: "/metrics"
  healthUri: "/health"
  logName: "connector.log"
catalog:
  path: "etc/prometheus.yaml"
opentelemetry:
  enabled: true
  endpoint: "localhost:4317"
  insecure: true
  samplingRate: 0.5
  serviceName: "prometheus_connector"
`,
			expectedPath:   "etc/prometheus.yaml",
			shouldValidate: true,
		},
		{
			name: "minimal config picks up URI defaults",
			yaml: `
server:
  host: "0.0.0.0"
  port: "8080"
`,
			expectedPath:   "",
			shouldValidate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config Config
			if err := yaml.Unmarshal([]byte(tt.yaml), &config); err != nil {
				t.Fatalf("yaml.Unmarshal() error = %v", err)
			}

			err := config.Validate()
			if tt.shouldValidate && err != nil {
				t.Errorf(testErrorValidateUnexpected, err)
			}
			if !tt.shouldValidate && err == nil {
				t.Error(testErrorExpectedError)
			}

			if config.Catalog.Path != tt.expectedPath {
				t.Errorf("Catalog.Path = %v, want %v", config.Catalog.Path, tt.expectedPath)
			}
			if tt.shouldValidate && config.Server.URI != testPathMetrics {
				t.Errorf("Server.URI = %v, want %v", config.Server.URI, testPathMetrics)
			}
		})
	}
}

func TestConfig_GetServerAddress(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     string
		expected string
	}{
		{
			name:     "standard server address",
			host:     "0.0.0.0",
			port:     "2112",
			expected: "0.0.0.0:2112",
		},
		{
			name:     "localhost with custom port",
			host:     "localhost",
			port:     "9090",
			expected: "localhost:9090",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config Config
			config.Server.Host = tt.host
			config.Server.Port = tt.port

			result := config.GetServerAddress()
			if result != tt.expected {
				t.Errorf("GetServerAddress() = %v, want %v", result, tt.expected)
			}
		})
	}
}
