package booking

import (
	"context"
	"time"

	"github.com/avelora/clinic-scheduler/internal/model"
)

// Event is a domain event recorded in the same unit of work as the booking
// mutation it describes. The store decides how events leave the process
// (transactional outbox for Postgres, an in-memory log for tests).
type Event struct {
	Type          string
	AppointmentID string
	Payload       []byte
}

const (
	EventBooked        = "scheduler.appointment.booked.v1"
	EventCancelled     = "scheduler.appointment.cancelled.v1"
	EventStatusChanged = "scheduler.appointment.status_changed.v1"
	EventDeleted       = "scheduler.appointment.deleted.v1"
)

// Store is the pluggable persistence boundary of the booking engine. The
// engine owns no process-wide mutable state; everything durable lives
// behind this interface.
type Store interface {
	// InTx runs fn inside a single atomic unit of work. If fn returns an
	// error nothing is persisted.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Get(ctx context.Context, id string) (model.Appointment, error)
	List(ctx context.Context, scope Scope) ([]model.Appointment, error)
}

// Tx is the in-transaction surface. LockSlot must serialize concurrent
// units of work targeting the same (clinic, room) pair for the remainder of
// the transaction, so check-and-insert cannot interleave.
type Tx interface {
	LockSlot(ctx context.Context, clinicID, roomID string) error
	ListActiveByRoom(ctx context.Context, clinicID, roomID string) ([]model.Appointment, error)
	Insert(ctx context.Context, appt model.Appointment) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	RecordEvent(ctx context.Context, evt Event) error
}
