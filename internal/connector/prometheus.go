// Package connector implements the Prometheus Collector interface for the
// connector's own operational metrics. It reports backend reachability,
// metric name discovery results, catalog cache effectiveness, and query
// planning figures in Prometheus format.
package connector

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjacquet/prometheus_connector/internal/models"
	"github.com/fjacquet/prometheus_connector/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	collectionTimeout       = 2 * time.Minute  // Maximum time allowed for metric collection
	versionDetectionTimeout = 30 * time.Second // Upper bound on the construction-time version probe
)

// CollectorOption configures optional PromCollector settings.
type CollectorOption func(*collectorOptions)

type collectorOptions struct {
	tracerProvider trace.TracerProvider
}

func defaultCollectorOptions() collectorOptions {
	return collectorOptions{
		tracerProvider: nil, // Will use noop via TracerWrapper
	}
}

// WithCollectorTracerProvider sets the TracerProvider for the collector.
// If not provided, tracing operations use a noop provider (no overhead).
func WithCollectorTracerProvider(tp trace.TracerProvider) CollectorOption {
	return func(o *collectorOptions) {
		o.tracerProvider = tp
	}
}

// PromCollector implements the Prometheus Collector interface for connector
// health metrics. Each scrape drives a metric name discovery through the
// catalog (served from cache within its TTL) and reports the outcome.
//
// The collector exposes:
//   - Backend reachability (up) derived from the discovery result
//   - Metric name count and discovery timing
//   - Catalog cache hit/miss counters
//   - Planned chunk count for a full-range query
//   - Backend version information when the backend exposes it
//
// Metrics are collected on-demand when Prometheus scrapes the /metrics endpoint.
type PromCollector struct {
	cfg     *models.ConnectorConfig
	client  PrometheusAPI
	catalog *MetricCatalog
	planner *QueryPlanner
	tracing *TracerWrapper

	backendVersion string // Detected at construction; empty when unknown

	// Scrape state for health reporting
	scrapeMu             sync.RWMutex
	lastSuccessfulScrape time.Time

	upDesc                *prometheus.Desc
	metricNamesDesc       *prometheus.Desc
	lastDiscoveryDesc     *prometheus.Desc
	discoveryDurationDesc *prometheus.Desc
	cacheHitsDesc         *prometheus.Desc
	cacheMissesDesc       *prometheus.Desc
	plannedChunksDesc     *prometheus.Desc
	backendInfoDesc       *prometheus.Desc
}

// NewPromCollector creates a new connector collector from a validated
// configuration. It initializes the HTTP client, probes the backend version,
// and registers Prometheus metric descriptors.
//
// Version detection:
//   - The buildinfo endpoint is probed once, with retries for transient errors
//   - Credential rejections abort construction: every later request would
//     fail the same way, and failing fast surfaces the actionable message
//   - Any other failure (backend down, endpoint missing) degrades to an
//     empty version; the backend_info metric is simply not exposed
//
// Example:
//
//	cfg, err := config.LoadCatalog("prometheus.yaml")
//	collector, err := NewPromCollector(cfg, WithCollectorTracerProvider(tp))
//	if err != nil {
//	    log.Fatalf("Failed to create collector: %v", err)
//	}
//	prometheus.MustRegister(collector)
func NewPromCollector(cfg *models.ConnectorConfig, opts ...CollectorOption) (*PromCollector, error) {
	// Apply options
	options := defaultCollectorOptions()
	for _, opt := range opts {
		opt(&options)
	}

	// Create base client with same TracerProvider
	client := NewPromClient(cfg, WithTracerProvider(options.tracerProvider))

	ctx, cancel := context.WithTimeout(context.Background(), versionDetectionTimeout)
	defer cancel()

	backendVersion, err := NewBackendVersionDetector(client).DetectVersion(ctx)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			_ = client.Close()
			return nil, err
		}
		if errors.Is(err, ErrBuildInfoUnavailable) {
			log.Debug("Backend does not expose build information; version metric disabled")
		} else {
			log.Warnf("Backend version detection failed: %v. Continuing without version metric.", err)
		}
		backendVersion = ""
	}

	// Create TracerWrapper for collector
	tracing := NewTracerWrapper(options.tracerProvider, "prometheus_connector/collector")

	return &PromCollector{
		cfg:            cfg,
		client:         client,
		catalog:        NewMetricCatalog(client, cfg),
		planner:        NewQueryPlanner(cfg),
		tracing:        tracing,
		backendVersion: backendVersion,
		upDesc: prometheus.NewDesc(
			MetricUp,
			"Whether the last metric name discovery against the backend succeeded",
			nil, nil,
		),
		metricNamesDesc: prometheus.NewDesc(
			MetricMetricNames,
			"Number of metric names the backend currently exposes",
			nil, nil,
		),
		lastDiscoveryDesc: prometheus.NewDesc(
			MetricLastDiscovery,
			"Unix timestamp of the last successful metric name discovery",
			nil, nil,
		),
		discoveryDurationDesc: prometheus.NewDesc(
			MetricDiscoveryDuration,
			"Duration of the last successful metric name discovery in seconds",
			nil, nil,
		),
		cacheHitsDesc: prometheus.NewDesc(
			MetricCacheHits,
			"Catalog lookups served from the metric name cache",
			nil, nil,
		),
		cacheMissesDesc: prometheus.NewDesc(
			MetricCacheMisses,
			"Catalog lookups that required a backend discovery",
			nil, nil,
		),
		plannedChunksDesc: prometheus.NewDesc(
			MetricQueryChunks,
			"Number of chunks a full-range query splits into with the current configuration",
			nil, nil,
		),
		backendInfoDesc: prometheus.NewDesc(
			MetricBackendInfo,
			"Backend build information",
			[]string{"version"}, nil,
		),
	}, nil
}

// Describe sends the descriptors of each metric to the provided channel.
// This method is required by the prometheus.Collector interface and is called
// during collector registration to validate metric definitions.
func (c *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.upDesc
	ch <- c.metricNamesDesc
	ch <- c.lastDiscoveryDesc
	ch <- c.discoveryDurationDesc
	ch <- c.cacheHitsDesc
	ch <- c.cacheMissesDesc
	ch <- c.plannedChunksDesc
	ch <- c.backendInfoDesc
}

// createScrapeSpan creates a root span for the Prometheus scrape cycle.
// It returns a context with the span and the span itself for lifecycle management.
// TracerWrapper ensures this is always safe (uses noop if tracing disabled).
func (c *PromCollector) createScrapeSpan(ctx context.Context) (context.Context, trace.Span) {
	return c.tracing.StartSpan(ctx, "prometheus.scrape", trace.SpanKindServer)
}

// Collect performs a metric name discovery and sends the connector health
// metrics to the provided channel. This method is called by Prometheus on
// each scrape request.
//
// The method uses a 2-minute timeout for the entire collection process and
// continues to expose metrics even if the discovery fails: the up gauge
// drops to 0 while cache counters and configuration metrics stay available.
// Errors are logged but do not prevent metric exposition.
//
// When OpenTelemetry tracing is enabled, this method creates a root span for
// the scrape cycle and records attributes including:
//   - scrape.duration_ms: Total time taken for the collection
//   - scrape.metric_names_count: Number of metric names discovered
//   - scrape.status: Overall scrape status (success/failure)
//
// This method is required by the prometheus.Collector interface and is called
// automatically by Prometheus during each scrape cycle (typically every
// 15-60 seconds).
//
// Parameters:
//   - ch: Channel to send Prometheus metrics to (provided by Prometheus registry)
func (c *PromCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectionTimeout)
	defer cancel()

	scrapeStart := time.Now()
	ctx, span := c.createScrapeSpan(ctx)
	defer span.End()

	names, err := c.collectMetricNames(ctx, span)

	c.updateScrapeSpan(span, scrapeStart, len(names), err)
	c.recordScrapeState(err)
	c.exposeMetrics(ch, len(names), err)

	log.Debugf("Scrape exposed %d metric names in %v", len(names), time.Since(scrapeStart))
}

// collectMetricNames runs the catalog discovery and records errors in the span.
func (c *PromCollector) collectMetricNames(ctx context.Context, span trace.Span) ([]string, error) {
	names, err := c.catalog.ListMetricNames(ctx)
	if err != nil {
		log.Errorf("Failed to discover metric names: %v", err)
		c.recordFetchError(span, "discovery_error", err)
		return nil, err
	}
	return names, nil
}

// recordFetchError records a fetch error as a span event.
// TracerWrapper ensures span is always valid (noop if tracing disabled).
func (c *PromCollector) recordFetchError(span trace.Span, eventName string, err error) {
	span.AddEvent(eventName, trace.WithAttributes(
		attribute.String(telemetry.AttrError, err.Error()),
	))
}

// recordScrapeState tracks the last successful scrape for health reporting.
func (c *PromCollector) recordScrapeState(scrapeErr error) {
	if scrapeErr != nil {
		return
	}
	c.scrapeMu.Lock()
	c.lastSuccessfulScrape = time.Now()
	c.scrapeMu.Unlock()
}

// updateScrapeSpan updates the span with scrape results and status.
// TracerWrapper ensures span is always valid (noop if tracing disabled).
func (c *PromCollector) updateScrapeSpan(span trace.Span, scrapeStart time.Time, nameCount int, scrapeErr error) {
	scrapeStatus := c.determineScrapeStatus(scrapeErr)
	c.setSpanStatus(span, scrapeStatus)
	c.recordScrapeAttributes(span, scrapeStart, nameCount, scrapeStatus)
}

// determineScrapeStatus returns the scrape status based on the discovery error.
func (c *PromCollector) determineScrapeStatus(scrapeErr error) string {
	if scrapeErr != nil {
		return "failure"
	}
	return "success"
}

// setSpanStatus sets the span status based on scrape status.
func (c *PromCollector) setSpanStatus(span trace.Span, scrapeStatus string) {
	if scrapeStatus == "failure" {
		span.SetStatus(codes.Error, "Metric name discovery failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// recordScrapeAttributes records scrape metrics as span attributes.
func (c *PromCollector) recordScrapeAttributes(span trace.Span, scrapeStart time.Time, nameCount int, scrapeStatus string) {
	scrapeDuration := time.Since(scrapeStart)
	attrs := []attribute.KeyValue{
		attribute.Float64(telemetry.AttrScrapeDurationMS, float64(scrapeDuration.Milliseconds())),
		attribute.Int(telemetry.AttrScrapeMetricNamesCount, nameCount),
		attribute.String(telemetry.AttrScrapeStatus, scrapeStatus),
	}
	span.SetAttributes(attrs...)
}

// exposeMetrics sends all connector metrics to the Prometheus channel.
func (c *PromCollector) exposeMetrics(ch chan<- prometheus.Metric, nameCount int, scrapeErr error) {
	up := 1.0
	if scrapeErr != nil {
		up = 0
	}
	ch <- prometheus.MustNewConstMetric(c.upDesc, prometheus.GaugeValue, up)
	ch <- prometheus.MustNewConstMetric(c.plannedChunksDesc, prometheus.GaugeValue, float64(c.planner.ChunkCount()))
	ch <- prometheus.MustNewConstMetric(c.cacheHitsDesc, prometheus.CounterValue, float64(c.catalog.CacheHits()))
	ch <- prometheus.MustNewConstMetric(c.cacheMissesDesc, prometheus.CounterValue, float64(c.catalog.CacheMisses()))

	if scrapeErr == nil {
		ch <- prometheus.MustNewConstMetric(c.metricNamesDesc, prometheus.GaugeValue, float64(nameCount))
	}

	if last := c.catalog.LastDiscoveryTime(); !last.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastDiscoveryDesc, prometheus.GaugeValue, float64(last.Unix()))
		ch <- prometheus.MustNewConstMetric(c.discoveryDurationDesc, prometheus.GaugeValue, c.catalog.LastDiscoveryDuration().Seconds())
	}

	if c.backendVersion != "" {
		ch <- prometheus.MustNewConstMetric(c.backendInfoDesc, prometheus.GaugeValue, 1, c.backendVersion)
	}
}

// BackendVersion returns the version detected at construction, or an empty
// string when the backend did not report one.
func (c *PromCollector) BackendVersion() string {
	return c.backendVersion
}

// Catalog exposes the collector's metric catalog for table name resolution.
func (c *PromCollector) Catalog() *MetricCatalog {
	return c.catalog
}

// Planner exposes the collector's query planner.
func (c *PromCollector) Planner() *QueryPlanner {
	return c.planner
}

// Close releases the collector's HTTP client resources. Call on shutdown or
// before discarding the collector after a configuration reload.
func (c *PromCollector) Close() error {
	return c.client.Close()
}
