package connector

import (
	"fmt"
	"strings"
	"time"

	"github.com/fjacquet/prometheus_connector/internal/models"
)

// ChunkQuery is one planned slice of a full-range query: a PromQL range
// selector expression together with the instant it must be evaluated at.
// Consecutive chunks tile the full range without gaps or overlap, so a
// range-vector query at EvalTime covering Window reads exactly this slice.
type ChunkQuery struct {
	Expr     string        // PromQL expression for this chunk
	EvalTime time.Time     // Evaluation timestamp for the chunk query
	Window   time.Duration // Width of the range selector, whole seconds
}

// String renders the chunk in a log-friendly form.
func (cq ChunkQuery) String() string {
	return fmt.Sprintf("%s @ %d", cq.Expr, cq.EvalTime.Unix())
}

// QueryPlanner splits full-range queries into chunked range-selector queries
// according to the configured chunk size and maximum range. Splitting keeps
// individual backend responses bounded: one huge range vector becomes a
// series of smaller ones that can be fetched (and retried) independently.
//
// All arithmetic is done in whole seconds, floor-converted from the
// configured durations, consistent with how the configuration validates the
// two fields against each other.
type QueryPlanner struct {
	cfg *models.ConnectorConfig
}

// NewQueryPlanner creates a planner bound to the given connector configuration.
func NewQueryPlanner(cfg *models.ConnectorConfig) *QueryPlanner {
	return &QueryPlanner{cfg: cfg}
}

// ChunkCount returns how many chunks a full-range query splits into:
// ceil(maxQueryRange / queryChunkSize) in floor-seconds arithmetic.
func (p *QueryPlanner) ChunkCount() int64 {
	chunkSec, rangeSec := p.spanSeconds()
	return (rangeSec + chunkSec - 1) / chunkSec
}

// Plan builds the ordered chunk queries covering the configured maximum
// range ending at upperBound. Evaluation timestamps walk back from
// upperBound in chunk-size steps; the oldest chunk absorbs the remainder
// when the range is not an exact multiple of the chunk size. Chunks are
// returned oldest first so results stream in chronological order.
//
// Example, with a 1d chunk and a 36h range ending at t:
//
//	up[43200s] @ t-24h
//	up[86400s] @ t
func (p *QueryPlanner) Plan(metric string, upperBound time.Time) []ChunkQuery {
	chunkSec, rangeSec := p.spanSeconds()
	count := (rangeSec + chunkSec - 1) / chunkSec

	selector := p.selector(metric)
	chunks := make([]ChunkQuery, 0, count)

	// Walk back from the upper bound; the last chunk generated (the oldest)
	// gets whatever remains of the range
	remaining := rangeSec
	evalTime := upperBound
	for i := int64(0); i < count; i++ {
		window := chunkSec
		if remaining < chunkSec {
			window = remaining
		}
		chunks = append(chunks, ChunkQuery{
			Expr:     fmt.Sprintf("%s[%ds]", selector, window),
			EvalTime: evalTime,
			Window:   time.Duration(window) * time.Second,
		})
		evalTime = evalTime.Add(-time.Duration(window) * time.Second)
		remaining -= window
	}

	// Reverse to oldest-first order
	for i, j := 0, len(chunks)-1; i < j; i, j = i+1, j-1 {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	}
	return chunks
}

// BuildQuery renders a single range-selector expression for the metric,
// optionally wrapped in a PromQL function. The function must be present in
// the configured query-functions set (matched case-insensitively); anything
// else is rejected so only explicitly allowed functions reach the backend.
//
// An empty fn returns the bare range selector.
func (p *QueryPlanner) BuildQuery(metric string, window time.Duration, fn string) (string, error) {
	if window < time.Second {
		window = time.Second
	}
	expr := fmt.Sprintf("%s[%ds]", p.selector(metric), int64(window/time.Second))

	if fn == "" {
		return expr, nil
	}
	if !p.cfg.HasQueryFunction(fn) {
		return "", fmt.Errorf("function %q is not allowed; configure it via %s (allowed: %v)",
			fn, models.PropQueryFunctions, p.cfg.QueryFunctions())
	}
	return fmt.Sprintf("%s(%s)", strings.ToLower(strings.TrimSpace(fn)), expr), nil
}

// selector renders the series selector for a metric, appending the configured
// match string when set (e.g. `up{job="api"}`).
func (p *QueryPlanner) selector(metric string) string {
	if match, ok := p.cfg.MatchString(); ok {
		return metric + match
	}
	return metric
}

// spanSeconds returns the chunk size and maximum range in whole seconds.
// The chunk is floored at one second to keep the selector arithmetic sound
// for sub-second configurations, and the range never reports smaller than
// the chunk.
func (p *QueryPlanner) spanSeconds() (chunkSec, rangeSec int64) {
	chunkSec = p.cfg.QueryChunkSizeDuration().Seconds()
	if chunkSec < 1 {
		chunkSec = 1
	}
	rangeSec = p.cfg.MaxQueryRangeDuration().Seconds()
	if rangeSec < chunkSec {
		rangeSec = chunkSec
	}
	return chunkSec, rangeSec
}
