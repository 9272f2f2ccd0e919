package telemetry

// HTTP semantic convention attributes
const (
	AttrHTTPMethod                = "http.method"
	AttrHTTPURL                   = "http.url"
	AttrHTTPStatusCode            = "http.status_code"
	AttrHTTPRequestContentLength  = "http.request_content_length"
	AttrHTTPResponseContentLength = "http.response_content_length"
	AttrHTTPDurationMS            = "http.duration_ms"
)

// Prometheus backend attributes
const (
	AttrBackendEndpoint  = "prometheus.endpoint"
	AttrBackendVersion   = "prometheus.version"
	AttrLabelName        = "prometheus.label"
	AttrQueryExpression  = "prometheus.query"
	AttrQueryEvalTime    = "prometheus.query.eval_time"
	AttrQueryChunkWindow = "prometheus.query.chunk_window"
	AttrQueryChunkCount  = "prometheus.query.chunk_count"
	AttrCacheHit         = "prometheus.cache_hit"
)

// Scrape cycle attributes
const (
	AttrScrapeDurationMS       = "scrape.duration_ms"
	AttrScrapeMetricNamesCount = "scrape.metric_names_count"
	AttrScrapeStatus           = "scrape.status"
)

// Error attributes
const (
	AttrError = "error"
)
