package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avelora/clinic-scheduler/internal/model"
)

// Service orchestrates validation, authorization, conflict checking and the
// status machine around a Store. It holds no shared mutable state and does
// not assume single-process deployment; atomicity comes from the Store.
type Service struct {
	store   Store
	gate    Gate
	machine *StatusMachine
	logger  *slog.Logger

	// Clock and id source, swappable in tests.
	now   func() time.Time
	newID func() string
}

func NewService(store Store, machine *StatusMachine, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		gate:    NewGate(),
		machine: machine,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Candidate is a create request before the engine assigns identity, status
// and timestamps.
type Candidate struct {
	ClinicID   string
	RoomID     string
	PatientID  string
	ProviderID string
	StartTime  time.Time
	EndTime    time.Time
}

// Create books the candidate slot. Validation and authorization run before
// any store access; the fetch-check-insert sequence is one atomic unit of
// work serialized per (clinic, room) pair.
func (s *Service) Create(ctx context.Context, c Candidate, caller Caller) (model.Appointment, error) {
	if !c.EndTime.After(c.StartTime) {
		return model.Appointment{}, ErrInvalidInterval
	}
	if c.ClinicID == "" || c.RoomID == "" || c.PatientID == "" {
		return model.Appointment{}, ErrInvalidReference
	}
	if err := s.gate.CanCreate(caller); err != nil {
		return model.Appointment{}, err
	}

	now := s.now()
	appt := model.Appointment{
		ID:         s.newID(),
		ClinicID:   c.ClinicID,
		RoomID:     c.RoomID,
		PatientID:  c.PatientID,
		ProviderID: c.ProviderID,
		StartTime:  c.StartTime.UTC(),
		EndTime:    c.EndTime.UTC(),
		Status:     model.StatusBooked,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockSlot(ctx, appt.ClinicID, appt.RoomID); err != nil {
			return err
		}
		existing, err := tx.ListActiveByRoom(ctx, appt.ClinicID, appt.RoomID)
		if err != nil {
			return err
		}
		if Conflicts(appt, existing) {
			return ErrSlotConflict
		}
		if err := tx.Insert(ctx, appt); err != nil {
			return err
		}
		return tx.RecordEvent(ctx, s.event(EventBooked, appt))
	})
	if err != nil {
		return model.Appointment{}, wrapStore("create", err)
	}
	return appt, nil
}

// List returns the appointments visible to the caller. The gate's read
// scope is applied by the store query as-is; an empty result is valid.
func (s *Service) List(ctx context.Context, caller Caller) ([]model.Appointment, error) {
	scope, err := s.gate.ReadScope(caller)
	if err != nil {
		return nil, err
	}
	appts, err := s.store.List(ctx, scope)
	if err != nil {
		return nil, wrapStore("list", err)
	}
	return appts, nil
}

// UpdateStatus applies a status transition. Only staff and admin may
// transition appointments; the status machine validates the target.
func (s *Service) UpdateStatus(ctx context.Context, id string, target string, caller Caller) (model.Appointment, error) {
	if err := s.gate.CanUpdateStatus(caller); err != nil {
		return model.Appointment{}, err
	}

	var updated model.Appointment
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		next, err := s.machine.Validate(appt.Status, target)
		if err != nil {
			return err
		}
		now := s.now()
		if err := tx.UpdateStatus(ctx, id, next, now); err != nil {
			return err
		}
		appt.Status = next
		appt.UpdatedAt = now
		updated = appt

		evtType := EventStatusChanged
		if next == model.StatusCancelled {
			evtType = EventCancelled
		}
		return tx.RecordEvent(ctx, s.event(evtType, appt))
	})
	if err != nil {
		return model.Appointment{}, wrapStore("update status", err)
	}
	return updated, nil
}

// Delete removes an appointment outright. Deletion is not a status
// transition and bypasses the status machine. Patients may only delete
// their own records; a foreign id reads as NotFound.
func (s *Service) Delete(ctx context.Context, id string, caller Caller) error {
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		appt, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.gate.CanDelete(caller, appt); err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return tx.RecordEvent(ctx, s.event(EventDeleted, appt))
	})
	if err != nil {
		return wrapStore("delete", err)
	}
	return nil
}

func (s *Service) event(evtType string, appt model.Appointment) Event {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"clinic_id":      appt.ClinicID,
		"room_id":        appt.RoomID,
		"patient_id":     appt.PatientID,
		"provider_id":    appt.ProviderID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"status":         string(appt.Status),
	})
	if err != nil {
		// Marshalling a map of strings cannot fail; log and carry on with
		// an empty payload rather than aborting the booking.
		s.logger.Error("event payload marshal failed", "err", err)
	}
	return Event{Type: evtType, AppointmentID: appt.ID, Payload: payload}
}
