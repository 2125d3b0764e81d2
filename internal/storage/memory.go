package storage

import (
	"context"
	"sync"
	"time"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/internal/model"
)

// MemoryStore is a process-local booking.Store. Everything is lost on
// restart; it exists for tests and single-node development
// (STORE_DRIVER=memory). A single mutex held for the whole unit of work
// gives the same check-and-insert serialization the Postgres store gets
// from its advisory lock.
type MemoryStore struct {
	mu     sync.Mutex
	appts  map[string]model.Appointment
	events []booking.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{appts: map[string]model.Appointment{}}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, appts: map[string]*model.Appointment{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, booking.ErrNotFound
	}
	return appt, nil
}

func (s *MemoryStore) List(_ context.Context, scope booking.Scope) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Appointment
	for _, appt := range s.appts {
		switch scope.Kind {
		case booking.ScopeByPatient:
			if appt.PatientID != scope.ID {
				continue
			}
		case booking.ScopeByProvider:
			if appt.ProviderID != scope.ID {
				continue
			}
		}
		out = append(out, appt)
	}
	return out, nil
}

// Events returns a copy of every event recorded by committed units of work,
// oldest first. Test hook; the durable store publishes through the outbox
// instead.
func (s *MemoryStore) Events() []booking.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]booking.Event, len(s.events))
	copy(out, s.events)
	return out
}

// memTx buffers writes so a failed unit of work leaves the store untouched.
type memTx struct {
	store  *MemoryStore
	appts  map[string]*model.Appointment // nil value marks a delete
	events []booking.Event
}

func (t *memTx) commit() {
	for id, appt := range t.appts {
		if appt == nil {
			delete(t.store.appts, id)
			continue
		}
		t.store.appts[id] = *appt
	}
	t.store.events = append(t.store.events, t.events...)
}

func (t *memTx) LockSlot(context.Context, string, string) error {
	// The store mutex already serializes units of work.
	return nil
}

func (t *memTx) ListActiveByRoom(_ context.Context, clinicID, roomID string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, appt := range t.store.appts {
		if staged, ok := t.appts[appt.ID]; ok {
			if staged == nil {
				continue
			}
			appt = *staged
		}
		if appt.ClinicID != clinicID || appt.RoomID != roomID {
			continue
		}
		if appt.Status == model.StatusCancelled {
			continue
		}
		out = append(out, appt)
	}
	return out, nil
}

func (t *memTx) Insert(_ context.Context, appt model.Appointment) error {
	t.appts[appt.ID] = &appt
	return nil
}

func (t *memTx) Get(_ context.Context, id string) (model.Appointment, error) {
	if staged, ok := t.appts[id]; ok {
		if staged == nil {
			return model.Appointment{}, booking.ErrNotFound
		}
		return *staged, nil
	}
	appt, ok := t.store.appts[id]
	if !ok {
		return model.Appointment{}, booking.ErrNotFound
	}
	return appt, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id string, status model.Status, updatedAt time.Time) error {
	appt, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	appt.Status = status
	appt.UpdatedAt = updatedAt
	t.appts[id] = &appt
	return nil
}

func (t *memTx) Delete(ctx context.Context, id string) error {
	if _, err := t.Get(ctx, id); err != nil {
		return err
	}
	t.appts[id] = nil
	return nil
}

func (t *memTx) RecordEvent(_ context.Context, evt booking.Event) error {
	t.events = append(t.events, evt)
	return nil
}
