package booking

import (
	"time"

	"github.com/avelora/clinic-scheduler/internal/model"
)

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. The single predicate covers starts-during, ends-during and
// fully-contains uniformly; touching endpoints (e1 == s2) do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// Conflicts reports whether the candidate collides with any existing
// appointment in the same clinic and room. Cancelled appointments do not
// block, and the candidate's own id is skipped so updates can be re-checked.
// The caller has already validated end > start.
func Conflicts(candidate model.Appointment, existing []model.Appointment) bool {
	for _, other := range existing {
		if other.ID == candidate.ID {
			continue
		}
		if other.Status == model.StatusCancelled {
			continue
		}
		if other.ClinicID != candidate.ClinicID || other.RoomID != candidate.RoomID {
			continue
		}
		if Overlaps(candidate.StartTime, candidate.EndTime, other.StartTime, other.EndTime) {
			return true
		}
	}
	return false
}
