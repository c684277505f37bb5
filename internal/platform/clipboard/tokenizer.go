package clipboard

import "strings"

// Row is one non-blank pasted line split on tabs. Cells keep their raw text;
// Line keeps the untouched line for whole-row checks.
type Row struct {
	Line  string
	Cells []string
}

// Tokenize splits clipboard text into rows. Both \r\n and \n line endings
// are accepted and lines that are blank after trimming are skipped. Any
// input is accepted; a line without tabs yields a single-cell row.
func Tokenize(raw string) []Row {
	if raw == "" {
		return nil
	}

	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	rows := make([]Row, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, Row{
			Line:  line,
			Cells: strings.Split(line, "\t"),
		})
	}
	return rows
}

// Locator returns a column locator over the row's cells.
func (r Row) Locator() Locator {
	return Locator{cells: r.Cells}
}
