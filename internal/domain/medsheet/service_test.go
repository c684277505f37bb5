package medsheet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/ehr/medpaste/internal/platform/clipboard"
	"github.com/ehr/medpaste/internal/platform/telemetry"
)

var testNow = time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)

const (
	regularClip = "Metformin\t500mg BID PO\tActive\nAmlodipine\t5mg OD PO\tActive"
	prnClip     = "Order 77\tParacetamol\tPO\t500\tmg\tPain\tRN Smith\t2024-01-01 10:00\ttaken"
)

// failingRepo errors on every call.
type failingRepo struct{ err error }

func (r failingRepo) Get(context.Context, uuid.UUID) (*Sheet, error) { return nil, r.err }
func (r failingRepo) Save(context.Context, *Sheet) error             { return r.err }
func (r failingRepo) Update(context.Context, uuid.UUID, UpdateFunc) (*Sheet, error) {
	return nil, r.err
}

// saveFailRepo reads from memory but cannot write.
type saveFailRepo struct{ Repository }

func (saveFailRepo) Save(context.Context, *Sheet) error { return errors.New("disk full") }

func (r saveFailRepo) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*Sheet, error) {
	sh, err := r.Repository.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		sh, err = &Sheet{PatientID: id}, nil
	}
	if err != nil {
		return nil, err
	}
	save, err := fn(sh)
	if err != nil {
		return nil, err
	}
	if save {
		return nil, r.Save(ctx, sh)
	}
	return sh, nil
}

func newTestService() *Service {
	return newTestServiceWithRepo(NewMemoryRepo())
}

func newTestServiceWithRepo(repo Repository) *Service {
	parser := clipboard.New(
		clipboard.WithClock(func() time.Time { return testNow }),
		clipboard.WithLocation(time.UTC),
	)
	return NewService(repo, parser, zerolog.Nop())
}

func strPtr(s string) *string { return &s }

func TestService_GetSheet_MissingIsEmpty(t *testing.T) {
	svc := newTestService()
	id := uuid.New()

	sh, err := svc.GetSheet(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sh.PatientID != id || sh.Regular != "" || sh.PRN != "" {
		t.Errorf("expected empty sheet for %s, got %+v", id, sh)
	}
}

func TestService_GetSheet_RepoError(t *testing.T) {
	svc := newTestServiceWithRepo(failingRepo{err: errors.New("connection refused")})
	if _, err := svc.GetSheet(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected repository error")
	}
}

func TestService_SaveSheet(t *testing.T) {
	svc := newTestService()
	id := uuid.New()

	if err := svc.SaveSheet(context.Background(), &Sheet{PatientID: id, Regular: "Metformin"}); err != nil {
		t.Fatalf("SaveSheet: %v", err)
	}
	sh, _ := svc.GetSheet(context.Background(), id)
	if sh.Regular != "Metformin" || sh.UpdatedAt.IsZero() {
		t.Errorf("unexpected stored sheet %+v", sh)
	}
}

func TestService_Preview(t *testing.T) {
	svc := newTestService()

	p, err := svc.Preview(KindRegular, regularClip+"\nWarfarin\t5mg OD PO\tDiscontinued")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if p.Output != "Metformin 500mg BID PO\nAmlodipine 5mg OD PO" {
		t.Errorf("unexpected output %q", p.Output)
	}
	if p.Rows != 3 || len(p.Regular) != 2 || p.Dropped["excluded_status"] != 1 {
		t.Errorf("unexpected preview %+v", p)
	}

	p, err = svc.Preview(KindPRN, prnClip)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if p.Output != "Paracetamol 500 mg PO (For: Pain) [Taken 1x in 24h]" {
		t.Errorf("unexpected output %q", p.Output)
	}
	if p.Now == nil || !p.Now.Equal(testNow) {
		t.Errorf("expected evaluation time %v, got %v", testNow, p.Now)
	}
	if p.Timezone != "UTC" {
		t.Errorf("expected parser timezone UTC, got %q", p.Timezone)
	}

	if _, err := svc.Preview(Kind("stat"), "x"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
}

func TestService_ApplyPaste_RegularIntoEmptySheet(t *testing.T) {
	svc := newTestService()
	id := uuid.New()

	res, err := svc.ApplyPaste(context.Background(), PasteInput{PatientID: id, Kind: KindRegular, Text: regularClip})
	if err != nil {
		t.Fatalf("ApplyPaste: %v", err)
	}
	want := "Metformin 500mg BID PO\nAmlodipine 5mg OD PO"
	if res.Action != clipboard.ActionSplice || !res.Composed || !res.Save || res.Value != want {
		t.Errorf("unexpected decision %+v", res.Decision)
	}

	sh, _ := svc.GetSheet(context.Background(), id)
	if sh.Regular != want {
		t.Errorf("expected stored regular %q, got %q", want, sh.Regular)
	}
}

func TestService_ApplyPaste_SplicesIntoStoredValue(t *testing.T) {
	svc := newTestService()
	id := uuid.New()
	svc.SaveSheet(context.Background(), &Sheet{PatientID: id, Regular: "Aspirin 81mg OD PO\n", PRN: "keep me"})

	start := len("Aspirin 81mg OD PO\n")
	res, err := svc.ApplyPaste(context.Background(), PasteInput{
		PatientID: id, Kind: KindRegular, Text: "Metformin\t500mg BID PO\tActive", Start: start, End: start,
	})
	if err != nil {
		t.Fatalf("ApplyPaste: %v", err)
	}
	if res.Value != "Aspirin 81mg OD PO\nMetformin 500mg BID PO" {
		t.Errorf("unexpected value %q", res.Value)
	}
	sh, _ := svc.GetSheet(context.Background(), id)
	if sh.PRN != "keep me" {
		t.Errorf("PRN field must be untouched, got %q", sh.PRN)
	}
}

func TestService_ApplyPaste_CurrentValueWins(t *testing.T) {
	svc := newTestService()
	id := uuid.New()
	svc.SaveSheet(context.Background(), &Sheet{PatientID: id, Regular: "stale stored text"})

	res, err := svc.ApplyPaste(context.Background(), PasteInput{
		PatientID: id, Kind: KindRegular, Text: "Metformin\t500mg BID PO\tActive",
		Current: strPtr("Unsaved edit: "), Start: 14, End: 14,
	})
	if err != nil {
		t.Fatalf("ApplyPaste: %v", err)
	}
	if res.Value != "Unsaved edit: Metformin 500mg BID PO" {
		t.Errorf("unexpected value %q", res.Value)
	}
}

func TestService_ApplyPaste_RegularFallbackSavesRawText(t *testing.T) {
	svc := newTestService()
	id := uuid.New()

	res, err := svc.ApplyPaste(context.Background(), PasteInput{PatientID: id, Kind: KindRegular, Text: "free text note"})
	if err != nil {
		t.Fatalf("ApplyPaste: %v", err)
	}
	if res.Composed || !res.Save || res.Value != "free text note" {
		t.Errorf("unexpected decision %+v", res.Decision)
	}
	sh, _ := svc.GetSheet(context.Background(), id)
	if sh.Regular != "free text note" {
		t.Errorf("expected raw text stored, got %q", sh.Regular)
	}
}

func TestService_ApplyPaste_PRNNativeDoesNotSave(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestServiceWithRepo(repo)
	id := uuid.New()

	res, err := svc.ApplyPaste(context.Background(), PasteInput{
		PatientID: id, Kind: KindPRN, Text: "nothing tabular here", Current: strPtr("existing"),
	})
	if err != nil {
		t.Fatalf("ApplyPaste: %v", err)
	}
	if res.Action != clipboard.ActionNative || res.Save || res.Value != "existing" {
		t.Errorf("unexpected decision %+v", res.Decision)
	}
	if _, err := repo.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no sheet to be written, got %v", err)
	}
}

func TestService_ApplyPaste_PRNWithBadge(t *testing.T) {
	svc := newTestService()
	id := uuid.New()

	res, err := svc.ApplyPaste(context.Background(), PasteInput{PatientID: id, Kind: KindPRN, Text: prnClip})
	if err != nil {
		t.Fatalf("ApplyPaste: %v", err)
	}
	if res.Entries != 1 || !strings.HasSuffix(res.Value, "[Taken 1x in 24h]") {
		t.Errorf("unexpected decision %+v", res.Decision)
	}
	if res.Sheet.PRN != res.Value {
		t.Errorf("expected sheet PRN to match decision value")
	}
}

func TestService_ApplyPaste_Validation(t *testing.T) {
	svc := newTestService()

	_, err := svc.ApplyPaste(context.Background(), PasteInput{PatientID: uuid.New(), Kind: "bolus"})
	if !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
	_, err = svc.ApplyPaste(context.Background(), PasteInput{PatientID: uuid.New(), Kind: KindRegular, Start: 5, End: 2})
	if !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected ErrInvalidSelection, got %v", err)
	}
}

func TestService_ApplyPaste_SaveError(t *testing.T) {
	svc := newTestServiceWithRepo(saveFailRepo{Repository: NewMemoryRepo()})
	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{})
	svc.SetTelemetry(tp)

	_, err := svc.ApplyPaste(context.Background(), PasteInput{PatientID: uuid.New(), Kind: KindRegular, Text: regularClip})
	if err == nil {
		t.Fatal("expected save error to propagate")
	}
	if n, err := testutil.GatherAndCount(tp.Registry(), "medpaste_sheet_save_total"); err != nil || n != 1 {
		t.Errorf("expected the failed save to be counted, got %d series (%v)", n, err)
	}
}

func TestService_ApplyPaste_ConcurrentFieldsBothKept(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for round := 0; round < 25; round++ {
		id := uuid.New()
		start := make(chan struct{})
		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for _, in := range []PasteInput{
			{PatientID: id, Kind: KindRegular, Text: regularClip},
			{PatientID: id, Kind: KindPRN, Text: prnClip},
		} {
			wg.Add(1)
			go func(in PasteInput) {
				defer wg.Done()
				<-start
				_, err := svc.ApplyPaste(ctx, in)
				errs <- err
			}(in)
		}
		close(start)
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("ApplyPaste: %v", err)
			}
		}

		sh, err := svc.GetSheet(ctx, id)
		if err != nil {
			t.Fatalf("GetSheet: %v", err)
		}
		if sh.Regular != "Metformin 500mg BID PO\nAmlodipine 5mg OD PO" {
			t.Fatalf("round %d: regular paste lost, got %q", round, sh.Regular)
		}
		if !strings.HasPrefix(sh.PRN, "Paracetamol 500 mg PO") {
			t.Fatalf("round %d: PRN paste lost, got %q", round, sh.PRN)
		}
	}
}

func TestService_ApplyPaste_RecordsMetrics(t *testing.T) {
	svc := newTestService()
	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{})
	svc.SetTelemetry(tp)

	ctx := context.Background()
	svc.ApplyPaste(ctx, PasteInput{PatientID: uuid.New(), Kind: KindPRN, Text: prnClip})
	svc.ApplyPaste(ctx, PasteInput{PatientID: uuid.New(), Kind: KindPRN, Text: "plain"})

	body, err := testutil.GatherAndCount(tp.Registry(), "medpaste_paste_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if body != 2 {
		t.Errorf("expected splice and native series, got %d", body)
	}
	saves, err := testutil.GatherAndCount(tp.Registry(), "medpaste_sheet_save_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if saves != 1 {
		t.Errorf("expected one save series, got %d", saves)
	}
}

func TestService_View(t *testing.T) {
	svc := newTestService()
	id := uuid.New()
	svc.SaveSheet(context.Background(), &Sheet{
		PatientID: id,
		Regular:   "Metformin 500mg BID PO\n\nAmlodipine 5mg OD PO",
		PRN:       "Paracetamol 500 mg PO (For: Pain) [Taken 2x in 24h]\nLorazepam 1 mg SL",
	})

	v, err := svc.View(context.Background(), id)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if len(v.Regular) != 2 || v.Regular[1].Text != "Amlodipine 5mg OD PO" {
		t.Errorf("unexpected regular view %+v", v.Regular)
	}
	if len(v.PRN) != 2 || !v.PRN[0].Taken || v.PRN[0].Count != 2 || v.PRN[1].Taken {
		t.Errorf("unexpected prn view %+v", v.PRN)
	}
}

func TestMemoryRepo_UpdateWithoutSaveLeavesStoreUntouched(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	id := uuid.New()

	sh, err := repo.Update(ctx, id, func(s *Sheet) (bool, error) {
		s.Regular = "draft"
		return false, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if sh.PatientID != id {
		t.Errorf("expected sheet for %s, got %s", id, sh.PatientID)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected nothing stored, got %v", err)
	}

	if _, err := repo.Update(ctx, id, func(s *Sheet) (bool, error) {
		return false, errors.New("boom")
	}); err == nil {
		t.Error("expected callback error to propagate")
	}
}
