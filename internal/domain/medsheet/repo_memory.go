package medsheet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo keeps sheets in process. It backs the service when no
// DATABASE_URL is configured and doubles as the test store.
type memoryRepo struct {
	mu     sync.RWMutex
	sheets map[uuid.UUID]Sheet
	now    func() time.Time
}

func NewMemoryRepo() Repository {
	return &memoryRepo{sheets: make(map[uuid.UUID]Sheet), now: time.Now}
}

func (r *memoryRepo) Get(_ context.Context, patientID uuid.UUID) (*Sheet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sheets[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *memoryRepo) Save(_ context.Context, s *Sheet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.UpdatedAt = r.now().UTC()
	r.sheets[s.PatientID] = *s
	return nil
}

func (r *memoryRepo) Update(_ context.Context, patientID uuid.UUID, fn UpdateFunc) (*Sheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sheets[patientID]
	if !ok {
		s = Sheet{PatientID: patientID}
	}
	save, err := fn(&s)
	if err != nil {
		return nil, err
	}
	if save {
		s.UpdatedAt = r.now().UTC()
		r.sheets[patientID] = s
	}
	return &s, nil
}
