package booking_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/avelora/clinic-scheduler/internal/booking"
	"github.com/avelora/clinic-scheduler/internal/model"
	"github.com/avelora/clinic-scheduler/internal/storage"
)

func newTestService(store booking.Store) *booking.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return booking.NewService(store, booking.NewStatusMachine(booking.DefaultTransitions), logger)
}

func candidate(start, end time.Time) booking.Candidate {
	return booking.Candidate{
		ClinicID:  "clinic-1",
		RoomID:    "room-1",
		PatientID: "patient-1",
		StartTime: start,
		EndTime:   end,
	}
}

var (
	admin   = booking.Caller{ID: "admin-1", Role: booking.RoleAdmin}
	patient = booking.Caller{ID: "patient-1", Role: booking.RolePatient}
	staff   = booking.Caller{ID: "staff-1", Role: booking.RoleStaff}
)

// Booking times sit a week out so the slot listing's past-slot filter,
// which runs against the real clock, never trims them.
var testDay = time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)

func day(hour, min int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func TestCreateBooksSlot(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(store)

	appt, err := svc.Create(context.Background(), candidate(day(9, 0), day(10, 0)), patient)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if appt.ID == "" {
		t.Fatal("expected assigned id")
	}
	if appt.Status != model.StatusBooked {
		t.Fatalf("status = %s, want booked", appt.Status)
	}
	if appt.CreatedAt.IsZero() || appt.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	events := store.Events()
	if len(events) != 1 || events[0].Type != booking.EventBooked {
		t.Fatalf("events = %+v, want one booked event", events)
	}
}

func TestCreateRejectsInvalidInterval(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(store)

	cases := []booking.Candidate{
		candidate(day(10, 0), day(9, 0)),
		candidate(day(9, 0), day(9, 0)),
	}
	for _, c := range cases {
		if _, err := svc.Create(context.Background(), c, patient); !errors.Is(err, booking.ErrInvalidInterval) {
			t.Fatalf("want ErrInvalidInterval, got %v", err)
		}
	}
	// Validation fails before the store is touched.
	if appts, _ := store.List(context.Background(), booking.Scope{Kind: booking.ScopeAll}); len(appts) != 0 {
		t.Fatalf("store should be untouched, has %d appointments", len(appts))
	}
	if len(store.Events()) != 0 {
		t.Fatal("no events should be recorded")
	}
}

func TestCreateRejectsEmptyReferences(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())

	c := candidate(day(9, 0), day(10, 0))
	c.RoomID = ""
	if _, err := svc.Create(context.Background(), c, patient); !errors.Is(err, booking.ErrInvalidReference) {
		t.Fatalf("want ErrInvalidReference, got %v", err)
	}
}

func TestCreateConflict(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.Create(ctx, candidate(day(9, 0), day(10, 0)), patient); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.Create(ctx, candidate(day(9, 30), day(10, 30)), patient); !errors.Is(err, booking.ErrSlotConflict) {
		t.Fatalf("overlapping create: want ErrSlotConflict, got %v", err)
	}

	// Back-to-back is allowed: intervals are half-open.
	if _, err := svc.Create(ctx, candidate(day(10, 0), day(11, 0)), patient); err != nil {
		t.Fatalf("touching create failed: %v", err)
	}

	// Same time in another room does not conflict.
	other := candidate(day(9, 0), day(10, 0))
	other.RoomID = "room-2"
	if _, err := svc.Create(ctx, other, patient); err != nil {
		t.Fatalf("other-room create failed: %v", err)
	}
}

func TestCancelFreesSlot(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	appt, err := svc.Create(ctx, candidate(day(9, 0), day(10, 0)), patient)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, appt.ID, "cancelled", staff); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := svc.Create(ctx, candidate(day(9, 0), day(10, 0)), patient); err != nil {
		t.Fatalf("rebooking a cancelled slot failed: %v", err)
	}

	events := store.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[1].Type != booking.EventCancelled {
		t.Fatalf("second event = %s, want cancelled", events[1].Type)
	}
}

func TestConcurrentCreatesBookExactlyOne(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, candidate(day(14, 0), day(15, 0)), admin)
		}(i)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, booking.ErrSlotConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicted != n-1 {
		t.Fatalf("succeeded=%d conflicted=%d, want 1 and %d", succeeded, conflicted, n-1)
	}
}

func TestListScopedByRole(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	mine := candidate(day(9, 0), day(10, 0))
	mine.ProviderID = "staff-1"
	if _, err := svc.Create(ctx, mine, patient); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	theirs := candidate(day(11, 0), day(12, 0))
	theirs.PatientID = "patient-2"
	if _, err := svc.Create(ctx, theirs, admin); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	all, err := svc.List(ctx, admin)
	if err != nil || len(all) != 2 {
		t.Fatalf("admin list = %d, %v; want 2", len(all), err)
	}

	own, err := svc.List(ctx, patient)
	if err != nil || len(own) != 1 || own[0].PatientID != patient.ID {
		t.Fatalf("patient list = %+v, %v; want only own", own, err)
	}

	assigned, err := svc.List(ctx, staff)
	if err != nil || len(assigned) != 1 || assigned[0].ProviderID != staff.ID {
		t.Fatalf("staff list = %+v, %v; want only assigned", assigned, err)
	}
}

func TestUpdateStatusRules(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	appt, err := svc.Create(ctx, candidate(day(9, 0), day(10, 0)), patient)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, appt.ID, "confirmed", patient); !errors.Is(err, booking.ErrForbidden) {
		t.Fatalf("patient update: want ErrForbidden, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, appt.ID, "completed", staff); !errors.Is(err, booking.ErrInvalidStatus) {
		t.Fatalf("booked -> completed: want ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, "missing-id", "confirmed", staff); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("unknown id: want ErrNotFound, got %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, appt.ID, "confirmed", staff)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if updated.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", updated.Status)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) && !updated.UpdatedAt.Equal(updated.CreatedAt) {
		t.Fatal("updated_at should move forward")
	}

	if _, err := svc.UpdateStatus(ctx, appt.ID, "no_show", admin); err != nil {
		t.Fatalf("confirmed -> no_show failed: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, appt.ID, "confirmed", admin); !errors.Is(err, booking.ErrInvalidStatus) {
		t.Fatalf("no_show is terminal, got %v", err)
	}
}

func TestDeleteRules(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	appt, err := svc.Create(ctx, candidate(day(9, 0), day(10, 0)), patient)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	other := booking.Caller{ID: "patient-2", Role: booking.RolePatient}
	if err := svc.Delete(ctx, appt.ID, other); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("foreign delete: want ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, appt.ID, patient); err != nil {
		t.Fatalf("own delete failed: %v", err)
	}
	if err := svc.Delete(ctx, appt.ID, patient); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("double delete: want ErrNotFound, got %v", err)
	}

	// The slot is free again.
	if _, err := svc.Create(ctx, candidate(day(9, 0), day(10, 0)), patient); err != nil {
		t.Fatalf("rebooking a deleted slot failed: %v", err)
	}

	events := store.Events()
	if len(events) != 3 || events[1].Type != booking.EventDeleted {
		t.Fatalf("events = %+v, want booked/deleted/booked", events)
	}
}

func TestFreeSlotsExcludesBooked(t *testing.T) {
	svc := newTestService(storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := svc.Create(ctx, candidate(day(9, 30), day(10, 0)), patient); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	slots, err := svc.FreeSlots(ctx, "clinic-1", "room-1", day(9, 0), day(11, 0), 30*time.Minute, 30*time.Minute)
	if err != nil {
		t.Fatalf("free slots failed: %v", err)
	}
	for _, slot := range slots {
		if booking.Overlaps(slot.Start, slot.End, day(9, 30), day(10, 0)) {
			t.Fatalf("slot %v overlaps the booked interval", slot)
		}
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 open slots, got %d", len(slots))
	}

	if _, err := svc.FreeSlots(ctx, "", "room-1", day(9, 0), day(11, 0), 30*time.Minute, 30*time.Minute); !errors.Is(err, booking.ErrInvalidReference) {
		t.Fatalf("missing clinic id: want ErrInvalidReference, got %v", err)
	}
	if _, err := svc.FreeSlots(ctx, "clinic-1", "room-1", day(11, 0), day(9, 0), 30*time.Minute, 30*time.Minute); !errors.Is(err, booking.ErrInvalidInterval) {
		t.Fatalf("inverted window: want ErrInvalidInterval, got %v", err)
	}
}
