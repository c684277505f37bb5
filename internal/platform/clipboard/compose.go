package clipboard

import (
	"fmt"
	"strings"
)

// Compose joins entry lines in first-seen order with newlines. An empty
// slice composes to "", which callers treat as "nothing extracted".
func Compose[E fmt.Stringer](entries []E) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.String())
	}
	return strings.Join(lines, "\n")
}

// Output is the composed regular medication text.
func (r RegularResult) Output() string {
	return Compose(r.Entries)
}

// Output is the composed PRN medication text.
func (r PrnResult) Output() string {
	return Compose(r.Entries)
}
