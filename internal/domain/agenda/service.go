package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/analytics"
	"github.com/clinicore/clinicore/internal/platform/supabase"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil || a.DoctorID == uuid.Nil {
		return fmt.Errorf("patient_id and doctor_id are required")
	}
	if a.ScheduledAt.IsZero() {
		return fmt.Errorf("scheduled_at is required")
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	if a.Status != StatusScheduled {
		return fmt.Errorf("new appointments start as %s", StatusScheduled)
	}
	if a.DurationMin < 0 {
		return fmt.Errorf("duration_min must not be negative")
	}
	a.ID = uuid.New()
	a.CreatedAt = s.now().UTC()
	a.UpdatedAt = a.CreatedAt
	return s.repo.Create(ctx, a)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateStatus advances the lifecycle. Terminal statuses reject any further
// transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Appointment, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !validTransitions[cur.Status][status] {
		return nil, fmt.Errorf("cannot move appointment from %s to %s", cur.Status, status)
	}
	return s.repo.Update(ctx, id, supabase.Row{
		"status":     status,
		"updated_at": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled)
}

// Reschedule moves a non-terminal appointment to a new time.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != StatusScheduled && cur.Status != StatusConfirmed {
		return nil, fmt.Errorf("cannot reschedule a %s appointment", cur.Status)
	}
	return s.repo.Update(ctx, id, supabase.Row{
		"scheduled_at": at.UTC().Format(time.RFC3339),
		"updated_at":   s.now().UTC().Format(time.RFC3339),
	})
}

// ListDay returns the agenda for one calendar day in the given location.
func (s *Service) ListDay(ctx context.Context, doctorID *uuid.UUID, day time.Time) ([]*Appointment, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.repo.ListRange(ctx, doctorID, start, start.AddDate(0, 0, 1))
}

func (s *Service) ListRange(ctx context.Context, doctorID *uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("range end must be after start")
	}
	return s.repo.ListRange(ctx, doctorID, from, to)
}

func (s *Service) ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]*Schedule, error) {
	return s.repo.ListSchedules(ctx, doctorID)
}

func (s *Service) CreateSchedule(ctx context.Context, sc *Schedule) error {
	if sc.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if sc.Weekday < 0 || sc.Weekday > 6 {
		return fmt.Errorf("weekday must be 0..6")
	}
	if sc.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive")
	}
	start, err := parseClock(s.now(), sc.StartTime)
	if err != nil {
		return err
	}
	end, err := parseClock(s.now(), sc.EndTime)
	if err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("end_time must be after start_time")
	}
	sc.ID = uuid.New()
	sc.CreatedAt = s.now().UTC()
	return s.repo.CreateSchedule(ctx, sc)
}

func (s *Service) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSchedule(ctx, id)
}

// FreeSlots computes the open intervals for one doctor on one day.
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]Slot, error) {
	schedules, err := s.repo.ListSchedules(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	appts, err := s.ListDay(ctx, &doctorID, day)
	if err != nil {
		return nil, err
	}
	return FreeSlots(schedules, appts, day)
}

// Occupancy returns how much of the doctor's schedule capacity is booked on
// one day, as a percentage.
func (s *Service) Occupancy(ctx context.Context, doctorID uuid.UUID, day time.Time) (float64, error) {
	schedules, err := s.repo.ListSchedules(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	appts, err := s.ListDay(ctx, &doctorID, day)
	if err != nil {
		return 0, err
	}
	capacity, err := FreeSlots(schedules, nil, day)
	if err != nil {
		return 0, err
	}
	free, err := FreeSlots(schedules, appts, day)
	if err != nil {
		return 0, err
	}
	return analytics.Occupancy(len(capacity)-len(free), len(capacity)), nil
}
