package consultation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

var ErrNotFound = errors.New("consultation not found")

type Repository interface {
	Create(ctx context.Context, t *Teleconsultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Teleconsultation, error)
	Update(ctx context.Context, id uuid.UUID, patch supabase.Row) (*Teleconsultation, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Teleconsultation, error)

	CreateAgentConsultation(ctx context.Context, a *AgentConsultation) error
	ListAgentConsultations(ctx context.Context, sessionID string) ([]*AgentConsultation, error)
}
