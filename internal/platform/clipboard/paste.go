package clipboard

import (
	"strings"
	"unicode/utf16"
)

// Field is the destination text field at paste time. Start and End are the
// selection bounds in UTF-16 code units, the unit browsers report.
type Field struct {
	Value string `json:"value"`
	Start int    `json:"selection_start"`
	End   int    `json:"selection_end"`
}

// Action tells the host what to do with its paste event.
type Action string

const (
	// ActionSplice: suppress the native paste and set the field to Value.
	ActionSplice Action = "splice"
	// ActionNative: leave the native paste untouched.
	ActionNative Action = "native"
)

// Decision is the outcome of a paste into a medication field.
type Decision struct {
	Action   Action `json:"action"`
	Value    string `json:"value"`
	Inserted string `json:"inserted,omitempty"`
	Composed bool   `json:"composed"`
	Entries  int    `json:"entries"`
	// Save asks the host to trigger its downstream save.
	Save bool `json:"save"`
}

// PasteRegular handles a paste into the regular medication field. The
// native paste is always suppressed: composed text is spliced when any entry
// was found, the raw clipboard text otherwise. Either way a save follows.
func (p *Parser) PasteRegular(f Field, clip string) (Decision, RegularResult) {
	res := p.Regular(clip)
	out := res.Output()
	if out == "" {
		return Decision{
			Action:   ActionSplice,
			Value:    Splice(f, clip),
			Inserted: clip,
			Save:     true,
		}, res
	}
	return Decision{
		Action:   ActionSplice,
		Value:    Splice(f, out),
		Inserted: out,
		Composed: true,
		Entries:  len(res.Entries),
		Save:     true,
	}, res
}

// PastePRN handles a paste into the PRN field. When nothing is extracted the
// native paste proceeds and no save is requested; only a successful parse
// suppresses it and splices the composed text.
func (p *Parser) PastePRN(f Field, clip string) (Decision, PrnResult) {
	res := p.PRN(clip)
	out := res.Output()
	if out == "" {
		return Decision{Action: ActionNative, Value: f.Value}, res
	}
	return Decision{
		Action:   ActionSplice,
		Value:    Splice(f, out),
		Inserted: out,
		Composed: true,
		Entries:  len(res.Entries),
		Save:     true,
	}, res
}

// Splice inserts text into the field. A field that is blank after trimming
// is replaced outright; otherwise the selection is replaced. Selection
// bounds are clamped to the value and End is raised to Start when below it.
func Splice(f Field, insert string) string {
	if strings.TrimSpace(f.Value) == "" {
		return insert
	}

	units := utf16.Encode([]rune(f.Value))
	start := clamp(f.Start, 0, len(units))
	end := clamp(f.End, start, len(units))

	return string(utf16.Decode(units[:start])) + insert + string(utf16.Decode(units[end:]))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
