// Package utils provides utility functions for timestamp conversion and file
// operations used throughout the Prometheus connector.
package utils

import (
	"fmt"
	"strconv"
	"time"
)

// FormatQueryTime converts a time.Time value to the decimal-seconds form the
// Prometheus HTTP API expects for evaluation timestamps, with millisecond
// precision.
func FormatQueryTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', 3, 64)
}

// ParseQueryTime converts a decimal-seconds timestamp back to a time.Time in
// UTC. Fractional digits beyond milliseconds are dropped.
func ParseQueryTime(s string) (time.Time, error) {
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid query timestamp %q: %w", s, err)
	}
	return time.UnixMilli(int64(seconds * 1000)).UTC(), nil
}
