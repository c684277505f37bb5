package medsheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/medpaste/internal/platform/db"
	"github.com/ehr/medpaste/internal/platform/hipaa"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// errUnchanged rolls back an Update whose callback saved nothing.
var errUnchanged = errors.New("medication sheet unchanged")

type sheetRepoPG struct {
	pool *pgxpool.Pool
	enc  *hipaa.PHIEncryptor
}

// NewRepoPG stores sheets in medication_sheet. With a non-nil enc the
// medications column is sealed at rest.
func NewRepoPG(pool *pgxpool.Pool, enc *hipaa.PHIEncryptor) Repository {
	return &sheetRepoPG{pool: pool, enc: enc}
}

func (r *sheetRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *sheetRepoPG) Get(ctx context.Context, patientID uuid.UUID) (*Sheet, error) {
	return r.get(ctx, patientID, `SELECT medications, updated_at FROM medication_sheet WHERE patient_id = $1`)
}

func (r *sheetRepoPG) get(ctx context.Context, patientID uuid.UUID, query string) (*Sheet, error) {
	var raw string
	var updated time.Time
	err := r.conn(ctx).QueryRow(ctx, query, patientID).Scan(&raw, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get medication sheet: %w", err)
	}

	raw, err = r.enc.Open(raw)
	if err != nil {
		return nil, fmt.Errorf("get medication sheet: %w", err)
	}

	s := DecodeMedications(raw)
	s.PatientID = patientID
	s.UpdatedAt = updated
	return &s, nil
}

func (r *sheetRepoPG) Save(ctx context.Context, s *Sheet) error {
	stored, err := r.enc.Seal(EncodeMedications(*s))
	if err != nil {
		return fmt.Errorf("save medication sheet: %w", err)
	}
	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication_sheet (patient_id, medications, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (patient_id) DO UPDATE
			SET medications = EXCLUDED.medications, updated_at = NOW()
		RETURNING updated_at`,
		s.PatientID, stored).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save medication sheet: %w", err)
	}
	return nil
}

// Update locks the patient's row for the rest of the transaction. A
// placeholder row is inserted first so there is always a row to lock; it is
// rolled back with the transaction when nothing is saved.
func (r *sheetRepoPG) Update(ctx context.Context, patientID uuid.UUID, fn UpdateFunc) (*Sheet, error) {
	var out *Sheet
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx,
			`INSERT INTO medication_sheet (patient_id) VALUES ($1) ON CONFLICT (patient_id) DO NOTHING`,
			patientID); err != nil {
			return fmt.Errorf("lock medication sheet: %w", err)
		}
		s, err := r.get(ctx, patientID,
			`SELECT medications, updated_at FROM medication_sheet WHERE patient_id = $1 FOR UPDATE`)
		if err != nil {
			return err
		}

		save, err := fn(s)
		if err != nil {
			return err
		}
		out = s
		if !save {
			return errUnchanged
		}
		return r.Save(ctx, s)
	})
	if errors.Is(err, errUnchanged) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
