package clipboard

import (
	"regexp"
	"strings"
)

// Regular-medication vocabulary. Matches are word-bounded substrings of a
// cell, so "500mg BID PO" is a detail cell.
var (
	regularFrequencyPattern = regexp.MustCompile(`(?i)\b(OD|BID|TID|QID|Q\d+H|DAILY|HS|PRN|STAT|NOW)\b`)
	regularRoutePattern     = regexp.MustCompile(`(?i)\b(PO|IV|SC|IM|SL|PR|NG|TOP|Sub-Q|NEB)\b`)
)

// PRN vocabulary. Route and unit anchors must be the whole trimmed cell.
var (
	prnRoutePattern     = regexp.MustCompile(`(?i)^(PO|IV|SC|IM|SL|PR|NG|TOP|SUBCUT|ORAL|RECTAL)$`)
	prnUnitPattern      = regexp.MustCompile(`(?i)^(mg|mcg|g|ml|tab|cap)$`)
	prnFrequencyPattern = regexp.MustCompile(`(?i)\b(Q\d+H|BID|TID|QID|DAILY|OD|QAM|QPM|PRN|ONCE|NOW|STAT)\b`)
	isoDatePattern      = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// Administration statuses recognised in a PRN row.
const (
	StatusTaken        = "taken"
	StatusCanceled     = "canceled"
	StatusDiscontinued = "discontinued"
	StatusPending      = "pending"
	StatusNotTaken     = "not taken"
)

var prnStatuses = map[string]bool{
	StatusTaken:        true,
	StatusCanceled:     true,
	StatusDiscontinued: true,
	StatusPending:      true,
	StatusNotTaken:     true,
}

// Row-level exclusion markers for the regular pipeline.
var regularExclusions = []string{"discontinued", "canceled", "held"}

const discontinuedMarker = "dc"

func isRegularDetail(raw string) bool {
	return regularFrequencyPattern.MatchString(raw) || regularRoutePattern.MatchString(raw)
}

func isPRNRoute(raw string) bool {
	return prnRoutePattern.MatchString(strings.TrimSpace(raw))
}

func isPRNUnit(raw string) bool {
	return prnUnitPattern.MatchString(strings.TrimSpace(raw))
}

func hasISODate(raw string) bool {
	return isoDatePattern.MatchString(raw)
}

func isDCMarker(s string) bool {
	return strings.ToLower(strings.TrimSpace(s)) == discontinuedMarker
}
