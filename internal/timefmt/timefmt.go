// Package timefmt parses the instants accepted on the wire and formats the ones we emit.
package timefmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Layout is the response format: UTC with millisecond precision.
const Layout = "2006-01-02T15:04:05.000Z"

// Compact is the layout used in capture file names (adsb_YYYYMMDDTHHMMSSZ.json).
const Compact = "20060102T150405Z"

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	Compact,
}

// Format renders t in Layout.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// ParseEpochSeconds parses (possibly fractional) seconds since the Unix epoch.
func ParseEpochSeconds(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("invalid epoch seconds: %q", s)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

// ParseInstant parses an instant in any of the accepted textual layouts.
// Values without a zone are taken as UTC.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid instant: %q", s)
}

// ParseFlexible accepts epoch seconds, epoch milliseconds (values above 1e12)
// or any ParseInstant layout.
func ParseFlexible(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return ParseInstant(s)
}
