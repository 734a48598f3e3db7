package values

import (
	"strings"
	"time"
)

// The lead source exports timestamps in several shapes depending on which
// report produced the row. Layouts are tried in order; the first that parses
// wins. All layouts are interpreted in UTC since neither system records an
// offset.
var instantLayouts = []string{
	time.RFC3339,
	"1/2/2006 3:04:05 PM",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"1/2/2006",
}

// ParseInstant converts a heterogeneous date string into a canonical instant.
// A false return means "no match possible" and must never be treated as
// epoch zero by callers.
func ParseInstant(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}

	for _, layout := range instantLayouts {
		candidate := trimmed
		// The partial ISO layout accepts longer strings carrying
		// fractional seconds or an offset by matching the prefix only.
		if layout == "2006-01-02T15:04:05" && len(candidate) > len(layout) {
			candidate = candidate[:len(layout)]
		}
		if t, err := time.ParseInLocation(layout, candidate, time.UTC); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// TruncateToMinute zeroes the seconds and sub-second components. Matching
// compares whole minutes because the two systems' clocks disagree at the
// second level on nearly every call.
func TruncateToMinute(t time.Time) time.Time {
	return t.Truncate(time.Minute)
}

// CalendarDayDiff returns the absolute difference in calendar days between
// two instants, ignoring time of day.
func CalendarDayDiff(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	diff := int(ad.Sub(bd).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}
