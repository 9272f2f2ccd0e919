package models

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Catalog property names understood by the connector. Validation errors name
// these so operators can map a failure straight back to the catalog line.
const (
	PropURI                         = "prometheus.uri"
	PropQueryChunkSizeDuration      = "prometheus.query.chunk.size.duration"
	PropMaxQueryRangeDuration       = "prometheus.max.query.range.duration"
	PropCacheTTL                    = "prometheus.cache.ttl"
	PropAuthHeaderName              = "prometheus.auth.http.header.name"
	PropBearerTokenFile             = "prometheus.bearer.token.file"
	PropAuthUser                    = "prometheus.auth.user"
	PropAuthPassword                = "prometheus.auth.password"
	PropReadTimeout                 = "prometheus.read-timeout"
	PropCaseInsensitiveNameMatching = "prometheus.case-insensitive-name-matching"
	PropAdditionalHeaders           = "prometheus.http.additional-headers"
	PropQueryMatchString            = "prometheus.query.match.string"
	PropQueryFunctions              = "prometheus.query.functions"
)

// Defaults applied by NewConnectorConfig.
const (
	DefaultEndpoint       = "http://localhost:9090"
	DefaultAuthHeaderName = "Authorization"
)

// Default durations for the connector. The chunk and range windows are
// day-denominated; cache TTL and read timeout are short.
const (
	DefaultQueryChunkSizeDuration = Duration(Day)
	DefaultMaxQueryRangeDuration  = Duration(21 * Day)
	DefaultCacheTTL               = Duration(30 * time.Second)
	DefaultReadTimeout            = Duration(10 * time.Second)
)

// Lower bounds enforced by the duration setters.
const (
	minQueryChunkSizeDuration = Duration(time.Millisecond)
	minMaxQueryRangeDuration  = Duration(time.Millisecond)
	minCacheTTL               = Duration(time.Second)
	minReadTimeout            = Duration(time.Second)
)

// ConnectorConfig holds the settings of a single Prometheus catalog. Fields
// are only reachable through setters so per-field constraints hold from the
// moment a value is assigned; Validate covers the rules that span fields and
// runs once after every property has been bound.
//
// Empty strings mean "not set" for the optional fields (bearer token file,
// user, password, match string).
type ConnectorConfig struct {
	endpoint                    *url.URL
	queryChunkSizeDuration      Duration
	maxQueryRangeDuration       Duration
	cacheTTL                    Duration
	readTimeout                 Duration
	authHeaderName              string
	bearerTokenFile             string
	user                        string
	password                    string
	caseInsensitiveNameMatching bool
	additionalHeaders           map[string]string
	matchString                 string
	queryFunctions              map[string]struct{}
}

// NewConnectorConfig returns a configuration populated with the connector
// defaults: a local Prometheus on port 9090, one-day query chunks over a
// twenty-one-day range, a 30s metadata cache TTL and a 10s read timeout.
// The default configuration passes Validate.
func NewConnectorConfig() *ConnectorConfig {
	endpoint, err := url.Parse(DefaultEndpoint)
	if err != nil {
		panic(err)
	}
	return &ConnectorConfig{
		endpoint:               endpoint,
		queryChunkSizeDuration: DefaultQueryChunkSizeDuration,
		maxQueryRangeDuration:  DefaultMaxQueryRangeDuration,
		cacheTTL:               DefaultCacheTTL,
		readTimeout:            DefaultReadTimeout,
		authHeaderName:         DefaultAuthHeaderName,
		additionalHeaders:      map[string]string{},
		queryFunctions:         map[string]struct{}{},
	}
}

// SetEndpoint parses and stores the base URI of the Prometheus HTTP API.
// The URI must be absolute, with a scheme and a host.
func (c *ConnectorConfig) SetEndpoint(rawURI string) error {
	u, err := url.Parse(rawURI)
	if err != nil {
		return fmt.Errorf("%s: invalid URI %q: %w", PropURI, rawURI, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s: URI %q must be absolute with a scheme and host", PropURI, rawURI)
	}
	c.endpoint = u
	return nil
}

// SetQueryChunkSizeDuration stores the width of each individual query sent
// to the backend. Values below 1ms are rejected.
func (c *ConnectorConfig) SetQueryChunkSizeDuration(d Duration) error {
	if err := checkMinDuration(PropQueryChunkSizeDuration, d, minQueryChunkSizeDuration); err != nil {
		return err
	}
	c.queryChunkSizeDuration = d
	return nil
}

// SetMaxQueryRangeDuration stores the overall lookback window, which gets
// divided into chunk-sized queries. Values below 1ms are rejected.
func (c *ConnectorConfig) SetMaxQueryRangeDuration(d Duration) error {
	if err := checkMinDuration(PropMaxQueryRangeDuration, d, minMaxQueryRangeDuration); err != nil {
		return err
	}
	c.maxQueryRangeDuration = d
	return nil
}

// SetCacheTTL stores how long discovered metric metadata is cached.
// Values below 1s are rejected.
func (c *ConnectorConfig) SetCacheTTL(d Duration) error {
	if err := checkMinDuration(PropCacheTTL, d, minCacheTTL); err != nil {
		return err
	}
	c.cacheTTL = d
	return nil
}

// SetReadTimeout stores how long a query to the backend may take before the
// HTTP client gives up. Values below 1s are rejected.
func (c *ConnectorConfig) SetReadTimeout(d Duration) error {
	if err := checkMinDuration(PropReadTimeout, d, minReadTimeout); err != nil {
		return err
	}
	c.readTimeout = d
	return nil
}

// SetAuthHeaderName stores the name of the HTTP header that carries
// credentials. Emptiness is checked by Validate so that all binding errors
// surface together.
func (c *ConnectorConfig) SetAuthHeaderName(name string) {
	c.authHeaderName = name
}

// SetBearerTokenFile stores the path of a file holding a bearer token. The
// file is read by the HTTP client at request time, never here.
func (c *ConnectorConfig) SetBearerTokenFile(path string) {
	c.bearerTokenFile = path
}

// SetUser stores the basic-auth user name.
func (c *ConnectorConfig) SetUser(user string) {
	c.user = user
}

// SetPassword stores the basic-auth password.
// SECURITY: the value must never be logged or echoed; String masks it.
func (c *ConnectorConfig) SetPassword(password string) {
	c.password = password
}

// SetCaseInsensitiveNameMatching controls whether metric names resolve
// case-insensitively.
func (c *ConnectorConfig) SetCaseInsensitiveNameMatching(enabled bool) {
	c.caseInsensitiveNameMatching = enabled
}

// SetAdditionalHeaders parses a compound "key:value,key:value" definition
// (see ParseHeaderString for the escaping rules) and stores the resulting
// headers. A malformed definition is rejected here, at assignment time.
func (c *ConnectorConfig) SetAdditionalHeaders(raw string) error {
	headers, err := ParseHeaderString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", PropAdditionalHeaders, err)
	}
	c.additionalHeaders = headers
	return nil
}

// SetMatchString stores the opaque match[] series selector forwarded to the
// backend on metadata queries.
func (c *ConnectorConfig) SetMatchString(match string) {
	c.matchString = match
}

// SetQueryFunctions stores the set of PromQL functions the connector may
// wrap around a range selector. Names are lowercased and de-duplicated so
// membership checks are case-insensitive.
func (c *ConnectorConfig) SetQueryFunctions(functions []string) {
	set := make(map[string]struct{}, len(functions))
	for _, fn := range functions {
		fn = strings.ToLower(strings.TrimSpace(fn))
		if fn == "" {
			continue
		}
		set[fn] = struct{}{}
	}
	c.queryFunctions = set
}

// Validate applies the rules that span multiple fields and reports all
// violations at once rather than stopping at the first. It is meant to run
// exactly once, after every property has been bound.
func (c ConnectorConfig) Validate() error {
	var errs []error
	if c.endpoint == nil {
		errs = append(errs, fmt.Errorf("%s must be set", PropURI))
	}
	if c.authHeaderName == "" {
		errs = append(errs, fmt.Errorf("%s must not be empty", PropAuthHeaderName))
	}
	if c.maxQueryRangeDuration.Seconds() < c.queryChunkSizeDuration.Seconds() {
		errs = append(errs, fmt.Errorf("%s must not be smaller than %s (%s < %s)",
			PropMaxQueryRangeDuration, PropQueryChunkSizeDuration, c.maxQueryRangeDuration, c.queryChunkSizeDuration))
	}
	hasUser := c.user != ""
	hasPassword := c.password != ""
	if c.bearerTokenFile != "" && (hasUser || hasPassword) {
		errs = append(errs, fmt.Errorf("%s and basic authentication (%s, %s) are mutually exclusive",
			PropBearerTokenFile, PropAuthUser, PropAuthPassword))
	}
	if hasUser != hasPassword {
		errs = append(errs, fmt.Errorf("%s and %s must be set together for basic authentication",
			PropAuthUser, PropAuthPassword))
	}
	if _, clash := c.additionalHeaders[c.authHeaderName]; clash {
		errs = append(errs, fmt.Errorf("%s must not include the %s header %q",
			PropAdditionalHeaders, PropAuthHeaderName, c.authHeaderName))
	}
	return errors.Join(errs...)
}

// Endpoint returns a copy of the backend base URI.
func (c ConnectorConfig) Endpoint() *url.URL {
	if c.endpoint == nil {
		return nil
	}
	u := *c.endpoint
	return &u
}

// QueryChunkSizeDuration returns the width of each individual query.
func (c ConnectorConfig) QueryChunkSizeDuration() Duration {
	return c.queryChunkSizeDuration
}

// MaxQueryRangeDuration returns the overall lookback window.
func (c ConnectorConfig) MaxQueryRangeDuration() Duration {
	return c.maxQueryRangeDuration
}

// CacheTTL returns how long discovered metric metadata is cached.
func (c ConnectorConfig) CacheTTL() Duration {
	return c.cacheTTL
}

// ReadTimeout returns the HTTP read timeout for backend queries.
func (c ConnectorConfig) ReadTimeout() Duration {
	return c.readTimeout
}

// AuthHeaderName returns the name of the header carrying credentials.
func (c ConnectorConfig) AuthHeaderName() string {
	return c.authHeaderName
}

// BearerTokenFile returns the bearer token file path and whether one is set.
func (c ConnectorConfig) BearerTokenFile() (string, bool) {
	return c.bearerTokenFile, c.bearerTokenFile != ""
}

// User returns the basic-auth user and whether one is set.
func (c ConnectorConfig) User() (string, bool) {
	return c.user, c.user != ""
}

// Password returns the basic-auth password and whether one is set.
// SECURITY: handle with care, never log the value.
func (c ConnectorConfig) Password() (string, bool) {
	return c.password, c.password != ""
}

// CaseInsensitiveNameMatching reports whether metric names resolve
// case-insensitively.
func (c ConnectorConfig) CaseInsensitiveNameMatching() bool {
	return c.caseInsensitiveNameMatching
}

// AdditionalHeaders returns a copy of the extra headers sent with every
// backend request.
func (c ConnectorConfig) AdditionalHeaders() map[string]string {
	headers := make(map[string]string, len(c.additionalHeaders))
	for k, v := range c.additionalHeaders {
		headers[k] = v
	}
	return headers
}

// MatchString returns the match[] selector and whether one is set.
func (c ConnectorConfig) MatchString() (string, bool) {
	return c.matchString, c.matchString != ""
}

// QueryFunctions returns the allowed PromQL function names, sorted.
func (c ConnectorConfig) QueryFunctions() []string {
	functions := make([]string, 0, len(c.queryFunctions))
	for fn := range c.queryFunctions {
		functions = append(functions, fn)
	}
	sort.Strings(functions)
	return functions
}

// HasQueryFunction reports whether fn is in the allowed function set.
// The lookup is case-insensitive.
func (c ConnectorConfig) HasQueryFunction(fn string) bool {
	_, ok := c.queryFunctions[strings.ToLower(fn)]
	return ok
}

// String renders the configuration for logs. The password is fully masked
// and additional headers appear as key names only, so no secret material
// ever reaches the log stream.
func (c ConnectorConfig) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s", PropURI, c.endpoint)
	fmt.Fprintf(&b, " %s=%s", PropQueryChunkSizeDuration, c.queryChunkSizeDuration)
	fmt.Fprintf(&b, " %s=%s", PropMaxQueryRangeDuration, c.maxQueryRangeDuration)
	fmt.Fprintf(&b, " %s=%s", PropCacheTTL, c.cacheTTL)
	fmt.Fprintf(&b, " %s=%s", PropReadTimeout, c.readTimeout)
	fmt.Fprintf(&b, " %s=%s", PropAuthHeaderName, c.authHeaderName)
	if c.bearerTokenFile != "" {
		fmt.Fprintf(&b, " %s=%s", PropBearerTokenFile, c.bearerTokenFile)
	}
	if c.user != "" {
		fmt.Fprintf(&b, " %s=%s", PropAuthUser, c.user)
	}
	if c.password != "" {
		fmt.Fprintf(&b, " %s=****", PropAuthPassword)
	}
	fmt.Fprintf(&b, " %s=%t", PropCaseInsensitiveNameMatching, c.caseInsensitiveNameMatching)
	if len(c.additionalHeaders) > 0 {
		keys := make([]string, 0, len(c.additionalHeaders))
		for k := range c.additionalHeaders {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, " %s=%s", PropAdditionalHeaders, strings.Join(keys, ","))
	}
	if c.matchString != "" {
		fmt.Fprintf(&b, " %s=%s", PropQueryMatchString, c.matchString)
	}
	if len(c.queryFunctions) > 0 {
		fmt.Fprintf(&b, " %s=%s", PropQueryFunctions, strings.Join(c.QueryFunctions(), ","))
	}
	return b.String()
}

// Equal reports whether two configurations carry the same settings. Reloads
// use it to decide whether the HTTP client and collector must be rebuilt.
func (c ConnectorConfig) Equal(other *ConnectorConfig) bool {
	if other == nil {
		return false
	}
	if (c.endpoint == nil) != (other.endpoint == nil) {
		return false
	}
	if c.endpoint != nil && c.endpoint.String() != other.endpoint.String() {
		return false
	}
	if c.queryChunkSizeDuration != other.queryChunkSizeDuration ||
		c.maxQueryRangeDuration != other.maxQueryRangeDuration ||
		c.cacheTTL != other.cacheTTL ||
		c.readTimeout != other.readTimeout ||
		c.authHeaderName != other.authHeaderName ||
		c.bearerTokenFile != other.bearerTokenFile ||
		c.user != other.user ||
		c.password != other.password ||
		c.caseInsensitiveNameMatching != other.caseInsensitiveNameMatching ||
		c.matchString != other.matchString {
		return false
	}
	if len(c.additionalHeaders) != len(other.additionalHeaders) {
		return false
	}
	for k, v := range c.additionalHeaders {
		if ov, ok := other.additionalHeaders[k]; !ok || ov != v {
			return false
		}
	}
	if len(c.queryFunctions) != len(other.queryFunctions) {
		return false
	}
	for fn := range c.queryFunctions {
		if _, ok := other.queryFunctions[fn]; !ok {
			return false
		}
	}
	return true
}

func checkMinDuration(prop string, d, minimum Duration) error {
	if d < minimum {
		return fmt.Errorf("%s must be at least %s, got %s", prop, minimum, d)
	}
	return nil
}
