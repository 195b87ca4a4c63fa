package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and early development.
// It enforces tenant isolation on reads, like the Postgres implementation.
type MemoryRepo struct {
	mu          sync.RWMutex
	bookings    map[string]Booking
	technicians []Technician

	// FailInserts makes Insert return an error; used to exercise the
	// booking-persistence failure path.
	FailInserts bool
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{bookings: make(map[string]Booking)}
}

var errInsertFailed = errors.New("booking: insert failed")

func (r *MemoryRepo) Insert(_ context.Context, b Booking) error {
	if r.FailInserts {
		return errInsertFailed
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = b
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, tenantID, id string) (Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok || b.TenantID != tenantID {
		return Booking{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepo) List(_ context.Context, tenantID string, limit int) ([]Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Booking
	for _, b := range r.bookings {
		if b.TenantID == tenantID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, tenantID, id string, status Status, notes string, now time.Time) (Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.TenantID != tenantID {
		return Booking{}, ErrNotFound
	}
	b.Status = status
	if notes != "" {
		b.Notes = notes
	}
	b.UpdatedAt = now
	r.bookings[id] = b
	return b, nil
}

func (r *MemoryRepo) AddTechnician(t Technician) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.technicians = append(r.technicians, t)
}

func (r *MemoryRepo) ListTechnicians(_ context.Context, tenantID string) ([]Technician, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Technician
	for _, t := range r.technicians {
		if t.TenantID == tenantID && t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
