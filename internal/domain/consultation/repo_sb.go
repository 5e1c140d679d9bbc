package consultation

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

const (
	tableTeleconsultations  = "teleconsultations"
	tableAgentConsultations = "agent_consultations"
)

const listLimit = 500

type SupabaseRepository struct {
	sb *supabase.Client
}

func NewSupabaseRepository(sb *supabase.Client) *SupabaseRepository {
	return &SupabaseRepository{sb: sb}
}

func (r *SupabaseRepository) Create(ctx context.Context, t *Teleconsultation) error {
	row, err := r.sb.Insert(ctx, tableTeleconsultations, t)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, t)
}

func (r *SupabaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*Teleconsultation, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   tableTeleconsultations,
		Filters: []supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var t Teleconsultation
	if err := supabase.DecodeRows(rows[0], &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SupabaseRepository) Update(ctx context.Context, id uuid.UUID, patch supabase.Row) (*Teleconsultation, error) {
	rows, err := r.sb.Update(ctx, tableTeleconsultations,
		[]supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}}, patch)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var t Teleconsultation
	if err := supabase.DecodeRows(rows[0], &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SupabaseRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Teleconsultation, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   tableTeleconsultations,
		Filters: []supabase.Filter{{Column: "doctor_id", Op: "eq", Value: doctorID.String()}},
		Order:   &supabase.Order{Column: "created_at", Descending: true},
		Limit:   listLimit,
	})
	if err != nil {
		return nil, err
	}
	var out []*Teleconsultation
	if err := supabase.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SupabaseRepository) CreateAgentConsultation(ctx context.Context, a *AgentConsultation) error {
	row, err := r.sb.Insert(ctx, tableAgentConsultations, a)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, a)
}

func (r *SupabaseRepository) ListAgentConsultations(ctx context.Context, sessionID string) ([]*AgentConsultation, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   tableAgentConsultations,
		Filters: []supabase.Filter{{Column: "session_id", Op: "eq", Value: sessionID}},
		Order:   &supabase.Order{Column: "created_at", Descending: true},
		Limit:   listLimit,
	})
	if err != nil {
		return nil, err
	}
	var out []*AgentConsultation
	if err := supabase.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}
