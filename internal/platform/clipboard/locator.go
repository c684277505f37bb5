package clipboard

import "strings"

// Locator finds anchor columns in a row by content and gives bounds-checked
// access to their neighbours. Index arithmetic relative to an anchor never
// panics: out-of-range cells read as "".
type Locator struct {
	cells []string
}

// NewLocator wraps a slice of raw cells.
func NewLocator(cells []string) Locator {
	return Locator{cells: cells}
}

// Len returns the number of cells.
func (l Locator) Len() int {
	return len(l.cells)
}

// Has reports whether i is a valid cell index.
func (l Locator) Has(i int) bool {
	return i >= 0 && i < len(l.cells)
}

// Raw returns the untrimmed cell at i, or "" when i is out of range.
func (l Locator) Raw(i int) string {
	if !l.Has(i) {
		return ""
	}
	return l.cells[i]
}

// Cell returns the trimmed cell at i, or "" when i is out of range.
func (l Locator) Cell(i int) string {
	return strings.TrimSpace(l.Raw(i))
}

// Index returns the first index, scanning left to right, whose cell
// satisfies match. It returns -1 when no cell matches.
func (l Locator) Index(match func(i int, raw string) bool) int {
	for i, c := range l.cells {
		if match(i, c) {
			return i
		}
	}
	return -1
}

// LastIndex scans from the last cell leftwards, visiting only indexes
// strictly greater than stop, and returns the first (rightmost) match or -1.
func (l Locator) LastIndex(stop int, match func(i int, raw string) bool) int {
	for i := len(l.cells) - 1; i > stop && i >= 0; i-- {
		if match(i, l.cells[i]) {
			return i
		}
	}
	return -1
}

// FirstOf returns the first offset from anchor, in the order given, whose
// raw cell satisfies match. ok is false when none does.
func (l Locator) FirstOf(anchor int, offsets []int, match func(raw string) bool) (idx int, ok bool) {
	for _, off := range offsets {
		i := anchor + off
		if !l.Has(i) {
			continue
		}
		if match(l.cells[i]) {
			return i, true
		}
	}
	return -1, false
}
