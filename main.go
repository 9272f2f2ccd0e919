// Prometheus Connector bridges SQL-style tooling to a Prometheus time-series
// backend. It discovers the metric names the backend exposes, plans chunked
// range queries over a configurable lookback window, and exposes its own
// operational metrics for scraping.
//
// The connector serves:
//   - Operational metrics at the configured URI (default: /metrics)
//   - A health check at the configured health URI (default: /health)
//
// Usage:
//
//	prometheus_connector --config config.yaml [--debug]
//
// Configuration is provided via YAML file specifying:
//   - Server settings (host, port, metrics URI, health URI, log file)
//   - The catalog file carrying the backend connection properties
//   - Optional OpenTelemetry trace export
//
// The envelope and the catalog file are watched for changes; edits and
// SIGHUP both trigger a validated reload without a restart.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjacquet/prometheus_connector/internal/config"
	"github.com/fjacquet/prometheus_connector/internal/connector"
	"github.com/fjacquet/prometheus_connector/internal/logging"
	"github.com/fjacquet/prometheus_connector/internal/models"
	"github.com/fjacquet/prometheus_connector/internal/telemetry"
	"github.com/fjacquet/prometheus_connector/internal/utils"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	programName       = "prometheus_connector" // Application name
	connectorVersion  = "1.0.0"                // Reported as the telemetry service version
	shutdownTimeout   = 10 * time.Second       // Maximum time to wait for graceful shutdown
	readHeaderTimeout = 5 * time.Second        // HTTP server read header timeout
)

var (
	configFile string
	debug      bool
)

// Server encapsulates the HTTP server and its dependencies for serving the
// connector metrics. It manages the lifecycle of the HTTP server, Prometheus
// registry, backend collector, configuration watchers and the OpenTelemetry
// telemetry manager.
//
// Error Handling:
// Server errors (such as port binding failures) are communicated through the
// ErrorChan() channel rather than calling log.Fatal. This allows the caller
// to perform graceful shutdown even when the server encounters errors.
//
// Usage:
//
//	server := NewServer(safeCfg, configPath)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//
//	select {
//	case <-shutdownSignal:
//	    // Normal shutdown
//	case err := <-server.ErrorChan():
//	    log.Errorf("Server error: %v", err)
//	}
//
//	server.Shutdown()
type Server struct {
	safeCfg          *models.SafeConfig   // Live envelope and connector configuration
	configPath       string               // Envelope path, reloaded on SIGHUP and file change
	httpSrv          *http.Server         // HTTP server instance
	registry         *prometheus.Registry // Prometheus metrics registry
	telemetryManager *telemetry.Manager   // OpenTelemetry telemetry manager (nil if disabled)
	tracerProvider   trace.TracerProvider // Injected into rebuilt collectors

	// collectorMu guards collector swaps during configuration reload.
	collectorMu sync.Mutex
	collector   *connector.PromCollector

	watchers []*fsnotify.Watcher

	// serverErrChan receives HTTP server errors. It is buffered (capacity 1)
	// to ensure the goroutine can send an error even if the main select
	// hasn't started listening yet (race between Start() return and select).
	serverErrChan chan error
}

// NewServer creates a new server instance around the provided configuration.
// It initializes a new Prometheus registry for metric collection and creates
// a telemetry manager if OpenTelemetry is enabled in the envelope.
func NewServer(safeCfg *models.SafeConfig, configPath string) *Server {
	cfg := safeCfg.Get()

	var telemetryMgr *telemetry.Manager
	if cfg.OpenTelemetry.Enabled {
		serviceVersion := cfg.OpenTelemetry.ServiceVersion
		if serviceVersion == "" {
			serviceVersion = connectorVersion
		}
		peerService := cfg.OpenTelemetry.PeerService
		if peerService == "" {
			peerService = safeCfg.Connector().Endpoint().Host
		}
		telemetryMgr = telemetry.NewManager(telemetry.Config{
			Enabled:        cfg.OpenTelemetry.Enabled,
			Endpoint:       cfg.OpenTelemetry.Endpoint,
			Insecure:       cfg.OpenTelemetry.Insecure,
			SamplingRate:   cfg.OpenTelemetry.SamplingRate,
			ServiceName:    cfg.OpenTelemetry.ServiceName,
			ServiceVersion: serviceVersion,
			PeerService:    peerService,
		})
	}

	return &Server{
		safeCfg:          safeCfg,
		configPath:       configPath,
		registry:         prometheus.NewRegistry(),
		telemetryManager: telemetryMgr,
		serverErrChan:    make(chan error, 1), // Buffered to prevent goroutine leak
	}
}

// Start initializes and starts the HTTP server with the metrics endpoint.
// It initializes OpenTelemetry if enabled, creates and registers the backend
// collector, wires the configuration reload plumbing, and starts the server
// in a goroutine.
//
// Returns an error if collector creation or registration fails; the backend
// rejecting the configured credentials is such an error. The HTTP server
// itself runs asynchronously and reports failures through ErrorChan().
func (s *Server) Start() error {
	// Initialize OpenTelemetry if enabled
	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.telemetryManager.Initialize(ctx); err != nil {
			// Log warning but continue - telemetry manager handles graceful degradation
			log.Warnf("Failed to initialize OpenTelemetry: %v. Continuing without tracing.", err)
		}

		// Configure W3C Trace Context propagation if telemetry is enabled
		if s.telemetryManager.IsEnabled() {
			s.tracerProvider = s.telemetryManager.TracerProvider()

			otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
				propagation.TraceContext{},
				propagation.Baggage{},
			))
			log.Info("OpenTelemetry trace context propagation configured")
		}
	}

	// Create the backend collector with the injected TracerProvider
	collector, err := s.newCollector()
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}
	s.collector = collector

	if err := s.registry.Register(collector); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	// Reload plumbing: SIGHUP plus watchers on the envelope and the catalog
	config.SetupSIGHUPHandler(s.configPath, s.reload)
	if w, err := config.WatchConfigFile(s.configPath, s.reload); err != nil {
		log.Warnf("Config file watching disabled: %v", err)
	} else {
		s.watchers = append(s.watchers, w)
	}
	if catalogPath := s.safeCfg.Get().Catalog.Path; catalogPath != "" {
		if w, err := config.WatchCatalogFile(s.configPath, catalogPath, s.reload); err != nil {
			log.Warnf("Catalog file watching disabled: %v", err)
		} else {
			s.watchers = append(s.watchers, w)
		}
	}

	// Setup HTTP handlers
	cfg := s.safeCfg.Get()
	mux := http.NewServeMux()

	// Wrap the metrics handler with trace context extraction when enabled
	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	if s.telemetryManager != nil && s.telemetryManager.IsEnabled() {
		metricsHandler = s.extractTraceContextMiddleware(metricsHandler)
	}

	mux.Handle(cfg.Server.URI, metricsHandler)
	mux.HandleFunc(cfg.Server.HealthURI, s.healthHandler)

	s.httpSrv = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting %s on %s%s", programName, cfg.GetServerAddress(), cfg.Server.URI)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Send error through channel instead of log.Fatalf
			s.serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	return nil
}

// ErrorChan returns the channel for receiving server errors.
// The main function should select on this channel to handle errors gracefully.
func (s *Server) ErrorChan() <-chan error {
	return s.serverErrChan
}

// newCollector builds a collector from the current connector configuration.
func (s *Server) newCollector() (*connector.PromCollector, error) {
	var opts []connector.CollectorOption
	if s.tracerProvider != nil {
		opts = append(opts, connector.WithCollectorTracerProvider(s.tracerProvider))
	}
	return connector.NewPromCollector(s.safeCfg.Connector(), opts...)
}

// currentCollector returns the collector serving scrapes right now.
func (s *Server) currentCollector() *connector.PromCollector {
	s.collectorMu.Lock()
	defer s.collectorMu.Unlock()
	return s.collector
}

// reload revalidates the envelope and catalog files and, when any connector
// setting changed, rebuilds the collector around a fresh HTTP client. Invalid
// files leave the running configuration untouched.
func (s *Server) reload(configPath string) error {
	connectorChanged, err := s.safeCfg.Reload(configPath, config.LoadCatalog)
	if err != nil {
		return err
	}
	if !connectorChanged {
		return nil
	}
	return s.rebuildCollector()
}

// rebuildCollector swaps the registered collector for one built from the
// reloaded connector configuration. The old collector keeps serving until
// the new one registered successfully, so a backend rejecting the new
// credentials never leaves the connector without metrics.
func (s *Server) rebuildCollector() error {
	newCollector, err := s.newCollector()
	if err != nil {
		return fmt.Errorf("collector rebuild failed: %w", err)
	}

	s.collectorMu.Lock()
	old := s.collector
	if old != nil {
		s.registry.Unregister(old)
	}
	if err := s.registry.Register(newCollector); err != nil {
		// Put the old collector back; the running configuration still works
		if old != nil {
			_ = s.registry.Register(old)
		}
		s.collectorMu.Unlock()
		_ = newCollector.Close()
		return fmt.Errorf("collector registration failed: %w", err)
	}
	s.collector = newCollector
	s.collectorMu.Unlock()

	if old != nil {
		// Waits for in-flight scrape requests before releasing connections
		if err := old.Close(); err != nil {
			log.Warnf("Closing the previous collector: %v", err)
		}
	}

	log.Info("Collector rebuilt with the new connector configuration")
	return nil
}

// Shutdown gracefully shuts down the server components in order.
//
// Shutdown Order:
//  1. Stop the configuration watchers (no reloads during teardown)
//  2. Stop the HTTP server (no new scrapes accepted)
//  3. Shutdown OpenTelemetry (flush pending spans)
//  4. Close the collector (drains backend connections)
//
// Note: Telemetry is shutdown BEFORE the client so traces from in-flight
// requests are flushed before connections close.
//
// Returns an error if shutdown fails or times out.
func (s *Server) Shutdown() error {
	var errs []error

	// Step 1: Stop watching configuration files
	for _, w := range s.watchers {
		if err := w.Close(); err != nil {
			log.Warnf("Closing config watcher: %v", err)
		}
	}

	// Step 2: Shutdown HTTP server (stops accepting new scrapes)
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down HTTP server...")
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	// Step 3: Shutdown OpenTelemetry (flush pending spans)
	if s.telemetryManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("Shutting down telemetry...")
		if err := s.telemetryManager.Shutdown(ctx); err != nil {
			log.Warnf("Telemetry shutdown warning: %v", err)
			// Don't add to errs - telemetry shutdown warnings are non-fatal
		}
	}

	// Step 4: Close collector (drains backend connections)
	if col := s.currentCollector(); col != nil {
		log.Info("Closing collector connections...")
		if err := col.Close(); err != nil {
			errs = append(errs, fmt.Errorf("collector close: %w", err))
		}
	}

	// Close error channel to signal no more errors will be sent
	close(s.serverErrChan)

	if len(errs) > 0 {
		log.Errorf("Shutdown completed with %d errors", len(errs))
		// Return first error for simplicity
		return errs[0]
	}

	log.Info("Server stopped gracefully")
	return nil
}

// extractTraceContextMiddleware wraps an HTTP handler to extract trace
// context from incoming requests. This enables distributed tracing when the
// connector is scraped as part of a larger observability pipeline.
//
// The middleware:
//   - Extracts W3C Trace Context headers from the incoming request
//   - Creates a new context with the extracted trace information
//   - Passes the context to the wrapped handler
//
// If no trace context is present in the request, the handler operates
// normally without tracing.
func (s *Server) extractTraceContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// healthHandler reports whether the connector can serve queries. It answers
// 200 when at least one metric name discovery has succeeded, falling back to
// a live connectivity probe for a connector that has not been scraped yet.
// Probe failures are logged, never echoed, so credential details stay out of
// HTTP responses.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	col := s.currentCollector()
	if col == nil {
		http.Error(w, "collector not running", http.StatusServiceUnavailable)
		return
	}

	if !col.IsHealthy() {
		if err := col.TestConnectivity(r.Context()); err != nil {
			log.Warnf("Health check failed: %v", err)
			http.Error(w, "backend unreachable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK\n")
}

// validateConfig checks if the configuration file exists, loads it, and validates its contents.
//
// Parameters:
//   - configPath: Path to the YAML configuration file
//
// Returns:
//   - Pointer to validated Config struct
//   - Error if file doesn't exist, cannot be parsed, or validation fails
func validateConfig(configPath string) (*models.Config, error) {
	if !utils.FileExists(configPath) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	var cfg models.Config
	if err := utils.ReadFile(&cfg, configPath); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setupLogging initializes the logging system with the configured log file.
// If debug mode is enabled, sets the log level to DEBUG for verbose output.
func setupLogging(cfg *models.Config, debugMode bool) error {
	if err := logging.PrepareLogs(cfg.Server.LogName); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	logging.SetDebug(debugMode)
	return nil
}

// waitForShutdown blocks until either a shutdown signal is received
// or a server error occurs through the error channel.
//
// Signals handled:
//   - SIGINT (Ctrl+C)
//   - SIGTERM (kill command)
//
// Returns an error if the server encountered a fatal error, nil for normal signal shutdown.
func waitForShutdown(serverErr <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Infof("Received signal %v, initiating graceful shutdown...", sig)
		return nil
	case err := <-serverErr:
		if err != nil {
			return err
		}
		return nil
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "SQL connector bridge for a Prometheus time-series backend",
		Long:  "Prometheus Connector discovers backend metrics, plans chunked range queries and exposes connector health in Prometheus format",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate and load the envelope configuration
			cfg, err := validateConfig(configFile)
			if err != nil {
				return err
			}

			// Setup logging
			if err := setupLogging(cfg, debug); err != nil {
				return err
			}

			// Bind the catalog the envelope names; without one the
			// connector talks to a local backend with the defaults
			connectorCfg := models.NewConnectorConfig()
			if cfg.Catalog.Path != "" {
				connectorCfg, err = config.LoadCatalog(cfg.Catalog.Path)
				if err != nil {
					return err
				}
			}

			log.Infof("Starting %s...", programName)
			log.Infof("Backend endpoint: %s", connectorCfg.Endpoint().Redacted())
			if debug {
				log.Debugf("Connector configuration: %s", connectorCfg)
			}

			safeCfg := models.NewSafeConfig(cfg, connectorCfg)

			// Create and start server
			server := NewServer(safeCfg, configFile)
			if err := server.Start(); err != nil {
				return err
			}

			// Wait for shutdown signal or server error
			if err := waitForShutdown(server.ErrorChan()); err != nil {
				log.Errorf("Server error: %v", err)
				// Continue to graceful shutdown
			}

			// Graceful shutdown
			return server.Shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (required)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug mode")
	_ = rootCmd.MarkPersistentFlagRequired("config")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
