package agenda

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

const (
	tableAppointments = "appointments"
	tableSchedules    = "doctor_schedules"
)

const listLimit = 1000

type SupabaseRepository struct {
	sb *supabase.Client
}

func NewSupabaseRepository(sb *supabase.Client) *SupabaseRepository {
	return &SupabaseRepository{sb: sb}
}

func (r *SupabaseRepository) Create(ctx context.Context, a *Appointment) error {
	row, err := r.sb.Insert(ctx, tableAppointments, a)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, a)
}

func (r *SupabaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   tableAppointments,
		Filters: []supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var a Appointment
	if err := supabase.DecodeRows(rows[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *SupabaseRepository) Update(ctx context.Context, id uuid.UUID, patch supabase.Row) (*Appointment, error) {
	rows, err := r.sb.Update(ctx, tableAppointments,
		[]supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}}, patch)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var a Appointment
	if err := supabase.DecodeRows(rows[0], &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *SupabaseRepository) ListRange(ctx context.Context, doctorID *uuid.UUID, from, to time.Time) ([]*Appointment, error) {
	filters := []supabase.Filter{
		{Column: "scheduled_at", Op: "gte", Value: from.UTC().Format(time.RFC3339)},
		{Column: "scheduled_at", Op: "lt", Value: to.UTC().Format(time.RFC3339)},
	}
	if doctorID != nil {
		filters = append(filters, supabase.Filter{Column: "doctor_id", Op: "eq", Value: doctorID.String()})
	}
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   tableAppointments,
		Filters: filters,
		Order:   &supabase.Order{Column: "scheduled_at"},
		Limit:   listLimit,
	})
	if err != nil {
		return nil, err
	}
	var out []*Appointment
	if err := supabase.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SupabaseRepository) ListSchedules(ctx context.Context, doctorID uuid.UUID) ([]*Schedule, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   tableSchedules,
		Filters: []supabase.Filter{{Column: "doctor_id", Op: "eq", Value: doctorID.String()}},
		Order:   &supabase.Order{Column: "weekday"},
		Limit:   listLimit,
	})
	if err != nil {
		return nil, err
	}
	var out []*Schedule
	if err := supabase.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SupabaseRepository) CreateSchedule(ctx context.Context, s *Schedule) error {
	row, err := r.sb.Insert(ctx, tableSchedules, s)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, s)
}

func (r *SupabaseRepository) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	return r.sb.Delete(ctx, tableSchedules,
		[]supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}})
}
