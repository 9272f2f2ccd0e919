// Package connector provides caching for backend metric name discovery.
package connector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjacquet/prometheus_connector/internal/models"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

const (
	metricNamesCacheKey = "metric_names"
	defaultCacheTTL     = 30 * time.Second
)

// MetricCatalog provides TTL-based caching for the backend's metric names.
// It wraps patrickmn/go-cache to memoize the __name__ label enumeration and
// reduce backend load.
//
// Metric names change infrequently (new series appear on deploys) but lookups
// happen on every scrape and table resolution. Caching reduces API calls from
// every lookup to once per TTL interval.
//
// Thread-safety: All methods are safe for concurrent use.
type MetricCatalog struct {
	client          PrometheusAPI
	cache           *cache.Cache
	ttl             time.Duration
	caseInsensitive bool

	// Cache effectiveness counters (atomic)
	hits   int64
	misses int64

	lastDiscoveryMu       sync.RWMutex
	lastDiscoveryTime     time.Time
	lastDiscoveryDuration time.Duration
}

// NewMetricCatalog creates a catalog backed by the given client, with TTL and
// case-matching mode taken from the connector configuration.
// Cleanup interval is set to 2x TTL.
//
// If the configured TTL is not positive, defaults to 30 seconds.
func NewMetricCatalog(client PrometheusAPI, cfg *models.ConnectorConfig) *MetricCatalog {
	ttl := cfg.CacheTTL().AsTimeDuration()
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &MetricCatalog{
		client:          client,
		cache:           cache.New(ttl, ttl*2),
		ttl:             ttl,
		caseInsensitive: cfg.CaseInsensitiveNameMatching(),
	}
}

// ListMetricNames returns the sorted, deduplicated metric names known to the
// backend, served from cache within the TTL. The returned slice is shared
// with the cache; callers must not modify it.
func (mc *MetricCatalog) ListMetricNames(ctx context.Context) ([]string, error) {
	if cached, found := mc.cache.Get(metricNamesCacheKey); found {
		atomic.AddInt64(&mc.hits, 1)
		return cached.([]string), nil
	}
	atomic.AddInt64(&mc.misses, 1)

	start := time.Now()
	values, err := mc.client.FetchLabelValues(ctx, LabelMetricNames)
	if err != nil {
		return nil, fmt.Errorf("metric name discovery failed: %w", err)
	}

	names := normalizeMetricNames(values)
	mc.cache.Set(metricNamesCacheKey, names, cache.DefaultExpiration)

	duration := time.Since(start)
	mc.lastDiscoveryMu.Lock()
	mc.lastDiscoveryTime = time.Now()
	mc.lastDiscoveryDuration = duration
	mc.lastDiscoveryMu.Unlock()

	log.Debugf("Discovered %d metric names in %v", len(names), duration)
	return names, nil
}

// ResolveMetricName maps a requested name to a backend metric name. An exact
// match always wins; with case-insensitive matching enabled, a unique
// case-folded match is accepted. An ambiguous fold (several metric names
// differing only in case) is an error since picking one silently would query
// the wrong series.
//
// Returns the resolved name and whether it was found. The error is non-nil
// only for discovery failures or ambiguous matches.
func (mc *MetricCatalog) ResolveMetricName(ctx context.Context, name string) (string, bool, error) {
	names, err := mc.ListMetricNames(ctx)
	if err != nil {
		return "", false, err
	}

	// Exact match always wins
	for _, candidate := range names {
		if candidate == name {
			return candidate, true, nil
		}
	}

	if !mc.caseInsensitive {
		return "", false, nil
	}

	folded := strings.ToLower(name)
	var matches []string
	for _, candidate := range names {
		if strings.ToLower(candidate) == folded {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0], true, nil
	default:
		return "", false, fmt.Errorf("metric name %q is ambiguous under case-insensitive matching: %v", name, matches)
	}
}

// CacheHits returns how many lookups were served from cache.
func (mc *MetricCatalog) CacheHits() int64 {
	return atomic.LoadInt64(&mc.hits)
}

// CacheMisses returns how many lookups required a backend discovery.
func (mc *MetricCatalog) CacheMisses() int64 {
	return atomic.LoadInt64(&mc.misses)
}

// LastDiscoveryTime returns the timestamp of the last successful discovery.
func (mc *MetricCatalog) LastDiscoveryTime() time.Time {
	mc.lastDiscoveryMu.RLock()
	defer mc.lastDiscoveryMu.RUnlock()
	return mc.lastDiscoveryTime
}

// LastDiscoveryDuration returns how long the last successful discovery took.
func (mc *MetricCatalog) LastDiscoveryDuration() time.Duration {
	mc.lastDiscoveryMu.RLock()
	defer mc.lastDiscoveryMu.RUnlock()
	return mc.lastDiscoveryDuration
}

// TTL returns the configured cache TTL.
func (mc *MetricCatalog) TTL() time.Duration {
	return mc.ttl
}

// Flush clears all cached data.
// Use on config reload when the backend or its credentials change.
func (mc *MetricCatalog) Flush() {
	mc.cache.Flush()
}

// normalizeMetricNames sorts and deduplicates the raw label values, dropping
// empty entries.
func normalizeMetricNames(values []string) []string {
	names := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}
