package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/internal/model"
	"github.com/avelora/clinic-scheduler/internal/outbox"
	"github.com/avelora/clinic-scheduler/libs/db"
)

const apptColumns = `id, clinic_id, room_id, patient_id, COALESCE(provider_id::text, ''), start_time, end_time, status, created_at, updated_at`

// AppointmentStore is the durable booking.Store backed by Postgres. Two
// layers keep slots conflict-free under contention: a per-(clinic,room)
// advisory transaction lock serializes check-and-insert, and the
// appointments_no_overlap exclusion constraint rejects any overlap that
// would slip through anyway.
type AppointmentStore struct {
	pool *db.Pool
}

func NewAppointmentStore(pool *db.Pool) *AppointmentStore {
	return &AppointmentStore{pool: pool}
}

func (s *AppointmentStore) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapPgError(err)
	}
	return mapPgError(tx.Commit(ctx))
}

func (s *AppointmentStore) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapPgError(err)
	}
	return appt, nil
}

func (s *AppointmentStore) List(ctx context.Context, scope booking.Scope) ([]model.Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments`
	var args []any
	switch scope.Kind {
	case booking.ScopeByPatient:
		query += ` WHERE patient_id = $1`
		args = append(args, scope.ID)
	case booking.ScopeByProvider:
		query += ` WHERE provider_id = $1`
		args = append(args, scope.ID)
	}
	query += ` ORDER BY start_time`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, mapPgError(err)
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, mapPgError(rows.Err())
	}
	return appts, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockSlot(ctx context.Context, clinicID, roomID string) error {
	// Advisory xact lock keyed on the canonical pair; released at
	// commit/rollback. Different rooms never contend.
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, clinicID+"/"+roomID)
	return err
}

func (t *pgTx) ListActiveByRoom(ctx context.Context, clinicID, roomID string) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE clinic_id = $1 AND room_id = $2 AND status <> 'cancelled'
		ORDER BY start_time
	`, clinicID, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func (t *pgTx) Insert(ctx context.Context, appt model.Appointment) error {
	var provider *string
	if appt.ProviderID != "" {
		provider = &appt.ProviderID
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, clinic_id, room_id, patient_id, provider_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, appt.ID, appt.ClinicID, appt.RoomID, appt.PatientID, provider,
		appt.StartTime, appt.EndTime, string(appt.Status), appt.CreatedAt, appt.UpdatedAt)
	return err
}

func (t *pgTx) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	return scanAppointment(row)
}

func (t *pgTx) UpdateStatus(ctx context.Context, id string, status model.Status, updatedAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, id, string(status), updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *pgTx) Delete(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *pgTx) RecordEvent(ctx context.Context, evt booking.Event) error {
	return outbox.Insert(ctx, t.tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   evt.AppointmentID,
		EventType:     evt.Type,
		Payload:       evt.Payload,
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.ClinicID,
		&appt.RoomID,
		&appt.PatientID,
		&appt.ProviderID,
		&appt.StartTime,
		&appt.EndTime,
		&status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	return appt, nil
}

// mapPgError translates driver errors into the booking taxonomy. Domain
// sentinels coming back out of a transaction body pass through untouched.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01": // exclusion_violation: the slot overlap backstop
			return booking.ErrSlotConflict
		case "23503": // foreign_key_violation: unresolvable reference
			return booking.ErrInvalidReference
		case "22P02": // invalid_text_representation: malformed uuid reached a uuid column
			return booking.ErrInvalidReference
		}
	}
	return err
}
