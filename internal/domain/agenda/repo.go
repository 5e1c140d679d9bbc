package agenda

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

var ErrNotFound = errors.New("appointment not found")

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, id uuid.UUID, patch supabase.Row) (*Appointment, error)
	// ListRange returns appointments inside [from, to), oldest first,
	// optionally narrowed to one doctor.
	ListRange(ctx context.Context, doctorID *uuid.UUID, from, to time.Time) ([]*Appointment, error)

	ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]*Schedule, error)
	CreateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
}
