package medsheet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medpaste/internal/platform/clipboard"
	"github.com/ehr/medpaste/internal/platform/telemetry"
)

type Service struct {
	sheets  Repository
	parser  *clipboard.Parser
	metrics *telemetry.TelemetryProvider
	log     zerolog.Logger
}

func NewService(sheets Repository, parser *clipboard.Parser, log zerolog.Logger) *Service {
	return &Service{sheets: sheets, parser: parser, log: log}
}

// SetTelemetry attaches an optional metrics provider.
func (s *Service) SetTelemetry(tp *telemetry.TelemetryProvider) {
	s.metrics = tp
}

// GetSheet returns the patient's sheet, or an empty one when none exists.
func (s *Service) GetSheet(ctx context.Context, patientID uuid.UUID) (*Sheet, error) {
	sh, err := s.sheets.Get(ctx, patientID)
	if errors.Is(err, ErrNotFound) {
		return &Sheet{PatientID: patientID}, nil
	}
	if err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *Service) SaveSheet(ctx context.Context, sh *Sheet) error {
	err := s.sheets.Save(ctx, sh)
	s.metrics.RecordSheetSave(err)
	return err
}

// Preview is the parse of a clipboard payload with nothing stored.
type Preview struct {
	Kind    Kind                     `json:"kind"`
	Output  string                   `json:"output"`
	Rows    int                      `json:"rows"`
	Dropped map[string]int           `json:"dropped,omitempty"`
	Regular []clipboard.RegularEntry `json:"regular,omitempty"`
	PRN     []clipboard.PrnEntry     `json:"prn,omitempty"`
	Now     *time.Time               `json:"now,omitempty"`
	// Zone applied to administration times without an offset.
	Timezone string `json:"timezone"`
}

func (s *Service) Preview(kind Kind, text string) (*Preview, error) {
	switch kind {
	case KindRegular:
		res := s.parser.Regular(text)
		return &Preview{
			Kind:     kind,
			Output:   res.Output(),
			Rows:     res.Stats.Rows,
			Dropped:  droppedLabels(res.Stats),
			Regular:  res.Entries,
			Timezone: s.parser.Location().String(),
		}, nil
	case KindPRN:
		res := s.parser.PRN(text)
		now := res.Now
		return &Preview{
			Kind:     kind,
			Output:   res.Output(),
			Rows:     res.Stats.Rows,
			Dropped:  droppedLabels(res.Stats),
			PRN:      res.Entries,
			Now:      &now,
			Timezone: s.parser.Location().String(),
		}, nil
	}
	return nil, ErrInvalidKind
}

// PasteInput is one paste event against a sheet field.
type PasteInput struct {
	PatientID uuid.UUID
	Kind      Kind
	Text      string
	Start     int
	End       int
	// Current is the field as the client sees it. Nil means use the
	// stored value.
	Current *string
}

// PasteResult carries the decision and the sheet after any save.
type PasteResult struct {
	clipboard.Decision
	Kind  Kind   `json:"kind"`
	Sheet *Sheet `json:"sheet"`
}

// ApplyPaste runs a paste against the stored sheet and saves the new field
// value whenever the decision asks for it. The read and the write happen
// under the repository's per-patient lock, so pastes into the two fields
// of one sheet never overwrite each other.
func (s *Service) ApplyPaste(ctx context.Context, in PasteInput) (*PasteResult, error) {
	if in.Kind != KindRegular && in.Kind != KindPRN {
		return nil, ErrInvalidKind
	}
	if in.Start > in.End {
		return nil, ErrInvalidSelection
	}

	var (
		dec   clipboard.Decision
		stats clipboard.Stats
	)
	sh, err := s.sheets.Update(ctx, in.PatientID, func(sh *Sheet) (bool, error) {
		field := clipboard.Field{Value: sh.Field(in.Kind), Start: in.Start, End: in.End}
		if in.Current != nil {
			field.Value = *in.Current
		}
		dec, stats = s.paste(in.Kind, field, in.Text)
		if dec.Save {
			sh.SetField(in.Kind, dec.Value)
		}
		return dec.Save, nil
	})
	if dec.Save {
		s.metrics.RecordSheetSave(err)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPaste(telemetry.PasteOutcome{
		Kind:    string(in.Kind),
		Action:  string(dec.Action),
		Entries: dec.Entries,
		Dropped: droppedLabels(stats),
	})

	s.log.Info().
		Str("patient_id", in.PatientID.String()).
		Str("kind", string(in.Kind)).
		Str("action", string(dec.Action)).
		Bool("composed", dec.Composed).
		Int("entries", dec.Entries).
		Int("rows", stats.Rows).
		Bool("saved", dec.Save).
		Msg("medication paste applied")

	return &PasteResult{Decision: dec, Kind: in.Kind, Sheet: sh}, nil
}

func (s *Service) paste(kind Kind, field clipboard.Field, text string) (clipboard.Decision, clipboard.Stats) {
	if kind == KindPRN {
		dec, res := s.parser.PastePRN(field, text)
		return dec, res.Stats
	}
	dec, res := s.parser.PasteRegular(field, text)
	return dec, res.Stats
}

// View returns the sheet split into display lines with adherence badges.
func (s *Service) View(ctx context.Context, patientID uuid.UUID) (*SheetView, error) {
	sh, err := s.GetSheet(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return viewOf(sh), nil
}

func droppedLabels(st clipboard.Stats) map[string]int {
	if len(st.Dropped) == 0 {
		return nil
	}
	out := make(map[string]int, len(st.Dropped))
	for r, n := range st.Dropped {
		out[string(r)] = n
	}
	return out
}
