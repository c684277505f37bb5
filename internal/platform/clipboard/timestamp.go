package clipboard

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AdherenceWindow is the trailing lookback for counting PRN doses.
const AdherenceWindow = 24 * time.Hour

var (
	meridiemNoisePattern = regexp.MustCompile(`(?i)\d{2}:\d{2}\s+(PM|AM)`)
	dateHourPattern      = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s+(\d{1,2}):(\d{2})`)
	meridiemPattern      = regexp.MustCompile(`(?i)\s*(PM|AM)`)
)

// Layouts for administration timestamps without an explicit offset. They
// are read in the parser's clinical location.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 3:04:05 PM",
	"2006-01-02 3:04 PM",
}

// Layouts carrying their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
}

const dateOnlyLayout = "2006-01-02"

// StripMeridiemNoise removes an AM/PM marker that contradicts a 24-hour
// clock, e.g. "2024-03-01 16:23 PM" becomes "2024-03-01 16:23". Hours of 12
// or less keep their marker, even when it looks wrong.
func StripMeridiemNoise(s string) string {
	s = strings.TrimSpace(s)
	if !meridiemNoisePattern.MatchString(s) {
		return s
	}
	parts := dateHourPattern.FindStringSubmatch(s)
	if parts == nil {
		return s
	}
	hour, err := strconv.Atoi(parts[2])
	if err != nil || hour <= 12 {
		return s
	}
	loc := meridiemPattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

// ParseAdministrationTime parses an EHR administration timestamp. Zone-less
// values are interpreted in loc. A bare date is read as UTC midnight, the
// ISO date-only convention. ok is false when no layout fits.
func ParseAdministrationTime(s string, loc *time.Location) (t time.Time, ok bool) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.Join(strings.Fields(StripMeridiemNoise(s)), " ")
	if s == "" {
		return time.Time{}, false
	}
	s = strings.ToUpper(s)

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// WithinWindow reports whether at lies in [now-24h, now) at millisecond
// resolution: exactly 24h ago is outside, future instants are outside.
func WithinWindow(now, at time.Time) bool {
	diff := now.Truncate(time.Millisecond).Sub(at.Truncate(time.Millisecond))
	return diff >= 0 && diff < AdherenceWindow
}
