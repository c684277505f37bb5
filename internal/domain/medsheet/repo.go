package medsheet

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Get returns ErrNotFound when the patient has no sheet yet.
	Get(ctx context.Context, patientID uuid.UUID) (*Sheet, error)
	// Save upserts the sheet and stamps UpdatedAt.
	Save(ctx context.Context, s *Sheet) error
	// Update runs fn on the current sheet (empty when none exists) while
	// holding the patient's row, and stores it when fn reports a change.
	// Concurrent updates of one patient are serialised.
	Update(ctx context.Context, patientID uuid.UUID, fn UpdateFunc) (*Sheet, error)
}

// UpdateFunc edits a sheet in place and reports whether it must be saved.
type UpdateFunc func(s *Sheet) (save bool, err error)
