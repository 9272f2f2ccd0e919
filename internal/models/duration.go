// Package models defines the core data structures for the Prometheus connector.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day is the length of the "d" duration unit accepted by ParseDuration.
const Day = 24 * time.Hour

// Duration is a time.Duration that additionally understands a day unit in
// its textual form ("1d", "21d"). Lookback windows for metrics backends are
// usually day-denominated, which time.ParseDuration cannot express.
type Duration time.Duration

// ParseDuration parses a duration string. It accepts everything
// time.ParseDuration accepts plus a whole or fractional number of days
// ("1d", "2.5d"). The empty string is invalid.
func ParseDuration(s string) (Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q: empty string", s)
	}
	if d, err := time.ParseDuration(s); err == nil {
		return Duration(d), nil
	}
	if rest, ok := strings.CutSuffix(s, "d"); ok {
		if days, err := strconv.ParseFloat(rest, 64); err == nil {
			return Duration(time.Duration(days * float64(Day))), nil
		}
	}
	return 0, fmt.Errorf("invalid duration %q: expected a number with a unit (ns, us, ms, s, m, h or d)", s)
}

// MustParseDuration is ParseDuration for statically known values; it panics
// on invalid input.
func MustParseDuration(s string) Duration {
	d, err := ParseDuration(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders whole multiples of a day as "Nd" and everything else in the
// standard Go notation, so the day-denominated defaults round-trip.
func (d Duration) String() string {
	td := time.Duration(d)
	if td != 0 && td%Day == 0 {
		return strconv.FormatInt(int64(td/Day), 10) + "d"
	}
	return td.String()
}

// Seconds returns the duration in whole seconds, rounded toward zero.
// Cross-field comparisons between day-scale windows are performed at this
// granularity.
func (d Duration) Seconds() int64 {
	return int64(time.Duration(d) / time.Second)
}

// AsTimeDuration converts to the standard library representation.
func (d Duration) AsTimeDuration() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
