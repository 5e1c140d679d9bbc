package agenda

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// validTransitions encodes the status lifecycle. Completed, cancelled and
// no_show are terminal.
var validTransitions = map[string]map[string]bool{
	StatusScheduled: {StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
	StatusConfirmed: {StatusCompleted: true, StatusCancelled: true, StatusNoShow: true},
}

// Appointment maps to the appointments table.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DurationMin int       `json:"duration_min"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Schedule maps to the doctor_schedules table: one weekly working window.
// Weekday follows time.Weekday (0 = Sunday). StartTime and EndTime are
// clock times in "15:04" form, interpreted in the clinic's timezone.
type Schedule struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctor_id"`
	Weekday     int       `json:"weekday"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	SlotMinutes int       `json:"slot_minutes"`
	CreatedAt   time.Time `json:"created_at"`
}

// Slot is one bookable interval produced by the free-slot computation.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
