// Package models defines the core data structures for the Prometheus
// connector: the service envelope configuration, the catalog-backed
// connector configuration and the wire formats of the Prometheus HTTP API.
package models

import (
	"errors"
	"fmt"
	"strconv"
)

// Config represents the service envelope configuration: where the connector
// itself listens, where it logs, which catalog file defines the backend
// connection and how tracing is exported. The connector settings proper live
// in ConnectorConfig and are bound from the catalog file.
type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		Host      string `yaml:"host"`
		URI       string `yaml:"uri"`
		HealthURI string `yaml:"healthUri"`
		LogName   string `yaml:"logName"`
	} `yaml:"server"`

	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`

	OpenTelemetry OpenTelemetryConfig `yaml:"opentelemetry"`
}

// OpenTelemetryConfig controls distributed tracing. Tracing is optional; a
// disabled or misconfigured exporter never prevents the connector from
// serving.
type OpenTelemetryConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`
	Insecure       bool    `yaml:"insecure"`
	SamplingRate   float64 `yaml:"samplingRate"`
	ServiceName    string  `yaml:"serviceName"`
	ServiceVersion string  `yaml:"serviceVersion"`
	PeerService    string  `yaml:"peerService"`
}

// SetDefaults sets default values for optional configuration fields.
// This method is called automatically by Validate() before validation checks.
func (c *Config) SetDefaults() {
	if c.Server.URI == "" {
		c.Server.URI = "/metrics"
	}
	if c.Server.HealthURI == "" {
		c.Server.HealthURI = "/health"
	}
	if c.OpenTelemetry.SamplingRate == 0 {
		c.OpenTelemetry.SamplingRate = 1.0
	}
	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = "prometheus_connector"
	}
}

// Validate checks if the envelope configuration is valid and returns an
// error if not. It covers the HTTP server settings and the tracing section;
// the catalog file referenced by Catalog.Path is validated separately when
// it is loaded.
//
// This method calls SetDefaults() before validation so optional fields carry
// their documented defaults.
func (c *Config) Validate() error {
	c.SetDefaults()

	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}
	if c.Server.Host == "" {
		return errors.New("server host is required")
	}
	if c.Server.URI[0] != '/' {
		return fmt.Errorf("invalid metrics URI: %s (must start with /)", c.Server.URI)
	}
	if c.Server.HealthURI[0] != '/' {
		return fmt.Errorf("invalid health URI: %s (must start with /)", c.Server.HealthURI)
	}
	if c.Server.URI == c.Server.HealthURI {
		return fmt.Errorf("metrics URI and health URI must differ, both are %s", c.Server.URI)
	}

	if c.OpenTelemetry.Enabled && c.OpenTelemetry.Endpoint == "" {
		return errors.New("opentelemetry endpoint is required when tracing is enabled")
	}
	if c.OpenTelemetry.SamplingRate < 0 || c.OpenTelemetry.SamplingRate > 1 {
		return fmt.Errorf("invalid opentelemetry sampling rate: %v (must be between 0 and 1)", c.OpenTelemetry.SamplingRate)
	}

	return nil
}

// GetServerAddress returns the complete server address for HTTP server binding.
// Format: host:port
//
// Example: "0.0.0.0:2112"
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
