package model

import "time"

// Status is the appointment lifecycle state.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// ParseStatus maps a wire string onto the closed status set.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusBooked, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return Status(s), true
	}
	return "", false
}

// Appointment is a reservation of a clinic room for a half-open time
// window [StartTime, EndTime). ProviderID may be empty at creation.
type Appointment struct {
	ID         string
	ClinicID   string
	RoomID     string
	PatientID  string
	ProviderID string
	StartTime  time.Time
	EndTime    time.Time
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
