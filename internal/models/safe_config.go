// Package models defines the core data structures for the Prometheus connector.
package models

import (
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// CatalogLoader loads and validates a connector configuration from a
// catalog file. The binding implementation lives in internal/config; it is
// injected here so the models package stays free of binding concerns.
type CatalogLoader func(path string) (*ConnectorConfig, error)

// SafeConfig provides thread-safe access to the envelope and connector
// configuration. It uses RWMutex to allow concurrent reads while
// serializing writes. Pattern from Prometheus blackbox_exporter.
//
// SafeConfig enables dynamic configuration reload without restarting the
// connector:
//   - Operators can update credentials or the backend address via SIGHUP
//   - File watchers can trigger automatic reload when the catalog changes
//   - Invalid configurations are rejected without affecting the running config
//
// Usage:
//
//	safeCfg := models.NewSafeConfig(cfg, connectorCfg)
//
//	// Read (concurrent-safe)
//	current := safeCfg.Connector()
//
//	// Reload (validates before applying)
//	changed, err := safeCfg.Reload("/path/to/config.yaml", config.LoadCatalog)
type SafeConfig struct {
	mu        sync.RWMutex
	cfg       *Config
	connector *ConnectorConfig
}

// NewSafeConfig creates a new SafeConfig with the provided initial
// configurations. Both are stored by reference; the caller should not
// modify them after passing them in.
func NewSafeConfig(cfg *Config, connector *ConnectorConfig) *SafeConfig {
	return &SafeConfig{
		cfg:       cfg,
		connector: connector,
	}
}

// Get returns the current envelope configuration (read-locked).
// The returned pointer is safe to use until the next reload.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg
}

// Connector returns the current connector configuration (read-locked).
// The returned pointer is safe to use until the next reload.
func (sc *SafeConfig) Connector() *ConnectorConfig {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.connector
}

// Reload loads and validates a new envelope configuration from the file and,
// when the envelope names a catalog, a new connector configuration through
// loadCatalog. Validation happens BEFORE acquiring the write lock
// (fail-fast pattern), so invalid configurations never affect the running
// connector.
//
// Returns:
//   - connectorChanged: true if any connector setting changed (signals that
//     the HTTP client and collector must be rebuilt and caches flushed)
//   - err: error if a file cannot be read or validation fails
//
// Thread-safety:
// The write lock is held only for the pointer swap, minimizing contention.
// Validation and file I/O happen without holding any locks.
func (sc *SafeConfig) Reload(configPath string, loadCatalog CatalogLoader) (connectorChanged bool, err error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false, fmt.Errorf("config file not found: %s", configPath)
	}

	f, err := os.Open(configPath)
	if err != nil {
		return false, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var newCfg Config
	if err := yaml.NewDecoder(f).Decode(&newCfg); err != nil {
		return false, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := newCfg.Validate(); err != nil {
		return false, fmt.Errorf("config validation failed: %w", err)
	}

	newConnector := NewConnectorConfig()
	if newCfg.Catalog.Path != "" {
		if loadCatalog == nil {
			return false, fmt.Errorf("catalog %s named but no catalog loader provided", newCfg.Catalog.Path)
		}
		newConnector, err = loadCatalog(newCfg.Catalog.Path)
		if err != nil {
			return false, fmt.Errorf("catalog reload failed: %w", err)
		}
	}

	sc.mu.Lock()
	oldConnector := sc.connector
	sc.cfg = &newCfg
	sc.connector = newConnector
	sc.mu.Unlock()

	connectorChanged = oldConnector == nil || !oldConnector.Equal(newConnector)

	log.Info("Configuration reloaded successfully")
	if connectorChanged {
		log.Info("Connector settings changed, client will be rebuilt")
	}

	return connectorChanged, nil
}
