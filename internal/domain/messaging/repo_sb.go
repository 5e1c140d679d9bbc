package messaging

import (
	"context"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

const (
	tableMessages    = "messages"
	tablePatients    = "patients"
	tablePrePatients = "pre_patients"
)

const recentLimit = 2000

type SupabaseRepository struct {
	sb *supabase.Client
}

func NewSupabaseRepository(sb *supabase.Client) *SupabaseRepository {
	return &SupabaseRepository{sb: sb}
}

func (r *SupabaseRepository) ListMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   tableMessages,
		Filters: []supabase.Filter{{Column: "session_id", Op: "eq", Value: sessionID}},
		Order:   &supabase.Order{Column: "created_at"},
		Limit:   recentLimit,
	})
	if err != nil {
		return nil, err
	}
	var out []*Message
	if err := supabase.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SupabaseRepository) ListRecentMessages(ctx context.Context, limit int) ([]*Message, error) {
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table: tableMessages,
		Order: &supabase.Order{Column: "created_at", Descending: true},
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	var out []*Message
	if err := supabase.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SupabaseRepository) MarkSessionRead(ctx context.Context, sessionID string) error {
	_, err := r.sb.Update(ctx, tableMessages,
		[]supabase.Filter{
			{Column: "session_id", Op: "eq", Value: sessionID},
			{Column: "read", Op: "is", Value: "false"},
		},
		supabase.Row{"read": true})
	return err
}

func (r *SupabaseRepository) ListPatientContacts(ctx context.Context) ([]Contact, error) {
	return r.contacts(ctx, tablePatients, "full_name")
}

func (r *SupabaseRepository) ListPrePatientContacts(ctx context.Context) ([]Contact, error) {
	return r.contacts(ctx, tablePrePatients, "name")
}

func (r *SupabaseRepository) contacts(ctx context.Context, table, nameColumn string) ([]Contact, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   table,
		Columns: "session_id," + nameColumn + ",phone",
		Filters: []supabase.Filter{{Column: "session_id", Op: "not.is", Value: "null"}},
		Limit:   recentLimit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Contact, 0, len(rows))
	for _, row := range rows {
		c := Contact{}
		if v, ok := row["session_id"].(string); ok {
			c.SessionID = v
		}
		if v, ok := row[nameColumn].(string); ok {
			c.Name = v
		}
		if v, ok := row["phone"].(string); ok {
			c.Phone = v
		}
		if c.SessionID != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
