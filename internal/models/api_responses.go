// Package models defines data structures for Prometheus HTTP API responses.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// API response status values used by the Prometheus HTTP API envelope.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope every Prometheus HTTP API endpoint returns.
// Data is kept raw so each call site can decode the payload shape it
// expects; on failure ErrorType and Error describe what went wrong.
type APIResponse struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	ErrorType string          `json:"errorType,omitempty"`
	Error     string          `json:"error,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// IsSuccess reports whether the backend answered with status "success".
func (r *APIResponse) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// Err converts an error-status response into a Go error.
func (r *APIResponse) Err() error {
	if r.IsSuccess() {
		return nil
	}
	if r.ErrorType != "" {
		return fmt.Errorf("backend returned %s error: %s", r.ErrorType, r.Error)
	}
	return fmt.Errorf("backend returned status %q: %s", r.Status, r.Error)
}

// QueryData is the data payload of /api/v1/query and /api/v1/query_range.
// ResultType is one of "vector", "matrix", "scalar" or "string"; Result is
// decoded lazily against the announced type.
type QueryData struct {
	ResultType string          `json:"resultType"`
	Result     json.RawMessage `json:"result"`
}

// Vector decodes the result as an instant vector.
func (q *QueryData) Vector() ([]VectorSample, error) {
	if q.ResultType != "vector" {
		return nil, fmt.Errorf("result type is %q, not vector", q.ResultType)
	}
	var samples []VectorSample
	if err := json.Unmarshal(q.Result, &samples); err != nil {
		return nil, fmt.Errorf("failed to decode vector result: %w", err)
	}
	return samples, nil
}

// Matrix decodes the result as a range vector.
func (q *QueryData) Matrix() ([]MatrixSeries, error) {
	if q.ResultType != "matrix" {
		return nil, fmt.Errorf("result type is %q, not matrix", q.ResultType)
	}
	var series []MatrixSeries
	if err := json.Unmarshal(q.Result, &series); err != nil {
		return nil, fmt.Errorf("failed to decode matrix result: %w", err)
	}
	return series, nil
}

// VectorSample is one element of an instant vector: a label set and a
// single sample.
type VectorSample struct {
	Metric map[string]string `json:"metric"`
	Value  SamplePair        `json:"value"`
}

// MatrixSeries is one element of a range vector: a label set and the
// samples collected over the queried window.
type MatrixSeries struct {
	Metric map[string]string `json:"metric"`
	Values []SamplePair      `json:"values"`
}

// SamplePair is a single [timestamp, value] pair as the query endpoints
// encode it: a float unix timestamp in seconds and a string-encoded value.
type SamplePair struct {
	Timestamp float64
	Value     float64
}

// Time converts the float unix timestamp to a time.Time with millisecond
// precision.
func (s SamplePair) Time() time.Time {
	return time.UnixMilli(int64(s.Timestamp * 1000))
}

// UnmarshalJSON implements json.Unmarshaler for the two-element array form.
func (s *SamplePair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("sample pair is not a two-element array: %w", err)
	}
	if err := json.Unmarshal(raw[0], &s.Timestamp); err != nil {
		return fmt.Errorf("invalid sample timestamp: %w", err)
	}
	var value string
	if err := json.Unmarshal(raw[1], &value); err != nil {
		return fmt.Errorf("invalid sample value: %w", err)
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid sample value %q: %w", value, err)
	}
	s.Value = parsed
	return nil
}

// MarshalJSON implements json.Marshaler, mirroring the wire encoding.
func (s SamplePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Timestamp, strconv.FormatFloat(s.Value, 'f', -1, 64)})
}

// BuildInfo is the data payload of /api/v1/status/buildinfo, available on
// Prometheus 2.14 and later.
type BuildInfo struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	Branch    string `json:"branch"`
	BuildUser string `json:"buildUser"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}
