package clipboard

import (
	"fmt"
	"strings"
	"time"
)

const (
	kindPRN          = "prn"
	prnMinColumns    = 5
	unitToRouteShift = 2
)

// Cells holding the administration time sit just left of the status cell.
var adminTimeOffsets = []int{-1, -2, -3}

// PrnEntry is one as-needed medication. Text comes from the first row seen
// for Name; Count24h sums adherence hits across every row for Name.
type PrnEntry struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Count24h int    `json:"count_24h"`
}

// String renders the entry with its 24-hour administration suffix.
func (e PrnEntry) String() string {
	if e.Count24h > 0 {
		return fmt.Sprintf("%s [Taken %dx in 24h]", e.Text, e.Count24h)
	}
	return e.Text
}

// PrnRow is the field group read from one PRN row.
type PrnRow struct {
	Name       string
	Route      string
	Dose       string
	Unit       string
	Indication string
	Frequency  string
	Status     string
	AdminTime  string
}

// Text composes the display text for the row.
func (r PrnRow) Text() string {
	text := r.Name + " " + r.Dose + " " + r.Unit + " " + r.Route
	if r.Frequency != "" {
		text += " " + r.Frequency
	}
	if r.Indication != "" && !isDCMarker(r.Indication) {
		text += " (For: " + r.Indication + ")"
	}
	return text
}

// PrnResult holds the entries of one PRN parse in first-seen order.
type PrnResult struct {
	Entries []PrnEntry
	Now     time.Time
	Stats   Stats
}

// PRN tokenizes raw clipboard text and extracts PRN medications.
func (p *Parser) PRN(raw string) PrnResult {
	return p.ExtractPRN(Tokenize(raw))
}

// ExtractPRN extracts PRN entries. The clock is read once so every row is
// compared against the same instant.
func (p *Parser) ExtractPRN(rows []Row) PrnResult {
	now := p.now()
	res := PrnResult{Now: now, Stats: newStats(len(rows))}
	index := make(map[string]int)

	for n, row := range rows {
		pr, reason, ok := ReadPRNRow(row)
		if !ok {
			p.drop(&res.Stats, kindPRN, n+1, reason)
			continue
		}

		hit := 0
		if p.takenWithinWindow(pr, now) {
			hit = 1
		}

		if i, exists := index[pr.Name]; exists {
			res.Entries[i].Count24h += hit
			continue
		}
		index[pr.Name] = len(res.Entries)
		res.Entries = append(res.Entries, PrnEntry{
			Name:     pr.Name,
			Text:     pr.Text(),
			Count24h: hit,
		})
	}

	return res
}

// ReadPRNRow locates the route-anchored field group of a row. ok is false,
// with the reason, when the row must not produce an entry.
func ReadPRNRow(row Row) (pr PrnRow, reason DropReason, ok bool) {
	loc := row.Locator()
	if loc.Len() < prnMinColumns {
		return PrnRow{}, DropTooFewColumns, false
	}

	route := loc.Index(func(_ int, raw string) bool { return isPRNRoute(raw) })
	if route < 0 {
		// Conventional layout is name, route, dose, unit: back into the
		// route position from the unit.
		if unit := loc.Index(func(_ int, raw string) bool { return isPRNUnit(raw) }); unit >= 0 {
			route = unit - unitToRouteShift
		}
	}
	if route < 1 {
		return PrnRow{}, DropNoAnchor, false
	}

	pr = PrnRow{
		Name:       loc.Cell(route - 1),
		Route:      loc.Cell(route),
		Dose:       loc.Cell(route + 1),
		Unit:       loc.Cell(route + 2),
		Indication: loc.Cell(route + 3),
	}

	status := loc.LastIndex(route+3, func(_ int, raw string) bool {
		return prnStatuses[strings.ToLower(strings.TrimSpace(raw))]
	})
	if status >= 0 {
		pr.Status = strings.ToLower(loc.Cell(status))
		if i, found := loc.FirstOf(status, adminTimeOffsets, hasISODate); found {
			pr.AdminTime = loc.Cell(i)
		}
	}

	if pr.Status == StatusCanceled || pr.Status == StatusDiscontinued {
		return PrnRow{}, DropExcluded, false
	}
	if isDCMarker(pr.Indication) {
		return PrnRow{}, DropDCMarker, false
	}

	if m := prnFrequencyPattern.FindString(loc.Cell(0)); m != "" {
		pr.Frequency = strings.ToUpper(m)
	}

	return pr, "", true
}

func (p *Parser) takenWithinWindow(pr PrnRow, now time.Time) bool {
	if pr.Status != StatusTaken || pr.AdminTime == "" {
		return false
	}
	at, ok := ParseAdministrationTime(pr.AdminTime, p.loc)
	if !ok {
		p.log.Debug().Str("name", pr.Name).Str("admin_time", pr.AdminTime).Msg("unparsable administration time")
		return false
	}
	return WithinWindow(now, at)
}
