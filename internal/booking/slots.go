package booking

import (
	"context"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// FreeSlots returns the open slots of a room within [windowStart, windowEnd)
// where a booking of the given duration would not overlap any non-cancelled
// appointment. Slot starts step forward by step; starts in the past
// (before the service clock) are skipped.
func (s *Service) FreeSlots(ctx context.Context, clinicID, roomID string, windowStart, windowEnd time.Time, duration, step time.Duration) ([]Interval, error) {
	if clinicID == "" || roomID == "" {
		return nil, ErrInvalidReference
	}
	if !windowEnd.After(windowStart) {
		return nil, ErrInvalidInterval
	}

	var busy []Interval
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.ListActiveByRoom(ctx, clinicID, roomID)
		if err != nil {
			return err
		}
		for _, appt := range existing {
			busy = append(busy, Interval{Start: appt.StartTime, End: appt.EndTime})
		}
		return nil
	})
	if err != nil {
		return nil, wrapStore("free slots", err)
	}

	return openSlots(windowStart, windowEnd, duration, step, busy, s.now()), nil
}

func openSlots(windowStart, windowEnd time.Time, duration, step time.Duration, busy []Interval, now time.Time) []Interval {
	if duration <= 0 || step <= 0 {
		return nil
	}
	if windowStart.Add(duration).After(windowEnd) {
		return nil
	}

	var slots []Interval
	for t := windowStart; !t.Add(duration).After(windowEnd); t = t.Add(step) {
		if t.Before(now) {
			continue
		}
		if !overlapsAny(t, t.Add(duration), busy) {
			slots = append(slots, Interval{Start: t, End: t.Add(duration)})
		}
	}
	return slots
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

