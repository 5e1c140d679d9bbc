package consultation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/ai"
	"github.com/clinicore/clinicore/internal/platform/supabase"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) CreateTeleconsultation(ctx context.Context, t *Teleconsultation) error {
	if t.PatientID == uuid.Nil || t.DoctorID == uuid.Nil {
		return fmt.Errorf("patient_id and doctor_id are required")
	}
	u, err := url.Parse(t.RoomURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("room_url must be an absolute https URL")
	}
	t.ID = uuid.New()
	t.Status = StatusWaiting
	t.CreatedAt = s.now().UTC()
	t.UpdatedAt = t.CreatedAt
	return s.repo.Create(ctx, t)
}

func (s *Service) GetTeleconsultation(ctx context.Context, id uuid.UUID) (*Teleconsultation, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Teleconsultation, error) {
	return s.repo.ListByDoctor(ctx, doctorID)
}

// UpdateStatus advances the lifecycle, stamping started_at and finished_at
// on the corresponding transitions.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*Teleconsultation, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !validTransitions[cur.Status][status] {
		return nil, fmt.Errorf("cannot move teleconsultation from %s to %s", cur.Status, status)
	}
	nowStr := s.now().UTC().Format(time.RFC3339)
	patch := supabase.Row{"status": status, "updated_at": nowStr}
	switch status {
	case StatusInProgress:
		patch["started_at"] = nowStr
	case StatusFinished:
		patch["finished_at"] = nowStr
	}
	return s.repo.Update(ctx, id, patch)
}

// SaveAnalysis persists an AI conversation analysis for a session. This is
// the only write path into agent_consultations; analyses are never stored as
// a side effect of running one.
func (s *Service) SaveAnalysis(ctx context.Context, sessionID string, patientID *uuid.UUID, analysis *ai.ConversationAnalysis) (*AgentConsultation, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if analysis == nil {
		return nil, fmt.Errorf("analysis is required")
	}
	rec := &AgentConsultation{
		ID:             uuid.New(),
		SessionID:      sessionID,
		PatientID:      patientID,
		Sentiment:      analysis.Sentiment,
		Intent:         analysis.Intent,
		Urgency:        analysis.Urgency,
		Summary:        analysis.Summary,
		SuggestedReply: analysis.SuggestedReply,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateAgentConsultation(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) ListAnalyses(ctx context.Context, sessionID string) ([]*AgentConsultation, error) {
	return s.repo.ListAgentConsultations(ctx, sessionID)
}
