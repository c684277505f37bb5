package medsheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("medication sheet not found")
	ErrInvalidKind      = errors.New("invalid medication field kind")
	ErrInvalidSelection = errors.New("selection start is after selection end")
)

// Kind names one of the two medication text fields on a sheet.
type Kind string

const (
	KindRegular Kind = "regular"
	KindPRN     Kind = "prn"
)

// ParseKind accepts "regular" or "prn" in any case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindRegular:
		return KindRegular, nil
	case KindPRN:
		return KindPRN, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Sheet is a patient's medication record: the regular list and the PRN list,
// each a newline-separated block of free text.
type Sheet struct {
	PatientID uuid.UUID `json:"patient_id"`
	Regular   string    `json:"regular"`
	PRN       string    `json:"prn"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Sheet) Field(k Kind) string {
	if k == KindPRN {
		return s.PRN
	}
	return s.Regular
}

func (s *Sheet) SetField(k Kind, v string) {
	if k == KindPRN {
		s.PRN = v
		return
	}
	s.Regular = v
}

type medicationsDoc struct {
	Regular string `json:"regular"`
	PRN     string `json:"prn"`
}

// DecodeMedications reads the stored medications column. A JSON object
// fills both fields; anything else is a record from before the PRN split
// and is taken as the regular list verbatim.
func DecodeMedications(raw string) Sheet {
	if strings.TrimSpace(raw) == "" {
		return Sheet{}
	}
	if strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var doc medicationsDoc
		if err := json.Unmarshal([]byte(raw), &doc); err == nil {
			return Sheet{Regular: doc.Regular, PRN: doc.PRN}
		}
	}
	return Sheet{Regular: raw}
}

// EncodeMedications renders both fields as the stored JSON document.
func EncodeMedications(s Sheet) string {
	b, _ := json.Marshal(medicationsDoc{Regular: s.Regular, PRN: s.PRN})
	return string(b)
}

// Lines splits a field into its non-blank, trimmed lines.
func Lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

var takenBadgePattern = regexp.MustCompile(`(?i)\s*\[Taken\s+(\d+)x\s+in\s+24h\]`)

// Badge is a display line with its "[Taken Nx in 24h]" suffix lifted out.
type Badge struct {
	Text  string `json:"text"`
	Count int    `json:"count,omitempty"`
	Taken bool   `json:"taken"`
}

// ParseTakenBadge recognises the adherence suffix added to PRN entries.
func ParseTakenBadge(line string) Badge {
	m := takenBadgePattern.FindStringSubmatchIndex(line)
	if m == nil {
		return Badge{Text: strings.TrimSpace(line)}
	}
	n, _ := strconv.Atoi(line[m[2]:m[3]])
	return Badge{
		Text:  strings.TrimSpace(line[:m[0]] + line[m[1]:]),
		Count: n,
		Taken: true,
	}
}

// SheetView is a sheet split into display lines.
type SheetView struct {
	PatientID uuid.UUID `json:"patient_id"`
	Regular   []Badge   `json:"regular"`
	PRN       []Badge   `json:"prn"`
	UpdatedAt time.Time `json:"updated_at"`
}

func viewOf(s *Sheet) *SheetView {
	v := &SheetView{
		PatientID: s.PatientID,
		Regular:   []Badge{},
		PRN:       []Badge{},
		UpdatedAt: s.UpdatedAt,
	}
	for _, l := range Lines(s.Regular) {
		v.Regular = append(v.Regular, ParseTakenBadge(l))
	}
	for _, l := range Lines(s.PRN) {
		v.PRN = append(v.PRN, ParseTakenBadge(l))
	}
	return v
}
