package connector

// Names of the metrics exposed by the collector. Shared between descriptor
// construction and tests so renames stay in one place.
const (
	MetricUp                = "prometheus_connector_up"
	MetricMetricNames       = "prometheus_connector_metric_names"
	MetricLastDiscovery     = "prometheus_connector_last_discovery_timestamp_seconds"
	MetricDiscoveryDuration = "prometheus_connector_discovery_duration_seconds"
	MetricCacheHits         = "prometheus_connector_cache_hits_total"
	MetricCacheMisses       = "prometheus_connector_cache_misses_total"
	MetricQueryChunks       = "prometheus_connector_query_chunks"
	MetricBackendInfo       = "prometheus_connector_backend_info"
)
