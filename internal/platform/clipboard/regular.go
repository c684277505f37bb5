package clipboard

import "strings"

const (
	kindRegular        = "regular"
	regularMinColumns  = 3
	regularStatusIndex = 3
)

// RegularEntry is one scheduled medication: the name cell and the verbatim
// detail cell (dose, frequency and route fragment).
type RegularEntry struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// String renders the entry as it is inserted into the medication field.
func (e RegularEntry) String() string {
	return e.Name + " " + e.Detail
}

// RegularResult holds the entries of one regular parse in first-seen order.
type RegularResult struct {
	Entries []RegularEntry
	Stats   Stats
}

// Regular tokenizes raw clipboard text and extracts regular medications.
func (p *Parser) Regular(raw string) RegularResult {
	return p.ExtractRegular(Tokenize(raw))
}

// ExtractRegular extracts one entry per distinct medication name. The first
// row naming a medication wins; later rows for the same name are ignored.
func (p *Parser) ExtractRegular(rows []Row) RegularResult {
	res := RegularResult{Stats: newStats(len(rows))}
	seen := make(map[string]bool)

	for n, row := range rows {
		loc := row.Locator()
		if loc.Len() < regularMinColumns {
			p.drop(&res.Stats, kindRegular, n+1, DropTooFewColumns)
			continue
		}

		lower := strings.ToLower(row.Line)
		if containsAny(lower, regularExclusions) {
			p.drop(&res.Stats, kindRegular, n+1, DropExcluded)
			continue
		}
		if loc.Has(regularStatusIndex) && isDCMarker(loc.Raw(regularStatusIndex)) {
			p.drop(&res.Stats, kindRegular, n+1, DropDCMarker)
			continue
		}

		// The detail column is the first cell carrying frequency or route
		// vocabulary that has a non-blank cell before it; that cell is the name.
		detail := loc.Index(func(i int, raw string) bool {
			return i > 0 && isRegularDetail(raw) && loc.Cell(i-1) != ""
		})
		if detail < 0 {
			p.drop(&res.Stats, kindRegular, n+1, DropNoAnchor)
			continue
		}

		name := loc.Cell(detail - 1)
		if seen[name] {
			p.drop(&res.Stats, kindRegular, n+1, DropDuplicate)
			continue
		}
		seen[name] = true
		res.Entries = append(res.Entries, RegularEntry{
			Name:   name,
			Detail: loc.Cell(detail),
		})
	}

	return res
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
