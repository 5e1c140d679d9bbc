package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

var validStatuses = map[string]bool{
	"active": true, "inactive": true, "archived": true,
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.FullName) == "" {
		return fmt.Errorf("full_name is required")
	}
	if strings.TrimSpace(p.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	if p.Status == "" {
		p.Status = "active"
	}
	if !validStatuses[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	p.ID = uuid.New()
	p.CreatedAt = s.now().UTC()
	p.UpdatedAt = p.CreatedAt
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, patch supabase.Row) (*Patient, error) {
	if status, ok := patch["status"].(string); ok && !validStatuses[status] {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	delete(patch, "id")
	delete(patch, "created_at")
	patch["updated_at"] = s.now().UTC().Format(time.RFC3339)
	return s.repo.Update(ctx, id, patch)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ListPatients returns all patients, or only those matching query against
// name, phone or CPF (case-insensitive substring).
func (s *Service) ListPatients(ctx context.Context, query string) ([]*Patient, error) {
	patients, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return patients, nil
	}
	out := make([]*Patient, 0, len(patients))
	for _, p := range patients {
		if matchesQuery(p, q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matchesQuery(p *Patient, q string) bool {
	if strings.Contains(strings.ToLower(p.FullName), q) {
		return true
	}
	if strings.Contains(p.Phone, q) {
		return true
	}
	return p.CPF != nil && strings.Contains(*p.CPF, q)
}

// Bundle assembles the full detail aggregate for one patient. Every mutation
// below returns a fresh bundle rather than patching a cached one, so the view
// always reflects what the backend stored.
func (s *Service) Bundle(ctx context.Context, patientID uuid.UUID) (*Bundle, error) {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	b := &Bundle{Patient: p}
	if b.MedicalRecords, err = s.repo.ListMedicalRecords(ctx, patientID); err != nil {
		return nil, fmt.Errorf("load medical records: %w", err)
	}
	if b.Anamnesis, err = s.repo.ListAnamnesis(ctx, patientID); err != nil {
		return nil, fmt.Errorf("load anamnesis: %w", err)
	}
	if b.ClinicalData, err = s.repo.ListClinicalData(ctx, patientID); err != nil {
		return nil, fmt.Errorf("load clinical data: %w", err)
	}
	if b.Attachments, err = s.repo.ListAttachments(ctx, patientID); err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	if b.FollowUps, err = s.repo.ListFollowUps(ctx, patientID); err != nil {
		return nil, fmt.Errorf("load follow-ups: %w", err)
	}
	return b, nil
}

func (s *Service) AddMedicalRecord(ctx context.Context, rec *MedicalRecord) (*Bundle, error) {
	if strings.TrimSpace(rec.Diagnosis) == "" {
		return nil, fmt.Errorf("diagnosis is required")
	}
	rec.ID = uuid.New()
	rec.CreatedAt = s.now().UTC()
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = rec.CreatedAt
	}
	if err := s.repo.CreateMedicalRecord(ctx, rec); err != nil {
		return nil, err
	}
	return s.Bundle(ctx, rec.PatientID)
}

func (s *Service) AddAnamnesis(ctx context.Context, a *Anamnesis) (*Bundle, error) {
	if strings.TrimSpace(a.Question) == "" || strings.TrimSpace(a.Answer) == "" {
		return nil, fmt.Errorf("question and answer are required")
	}
	a.ID = uuid.New()
	a.CreatedAt = s.now().UTC()
	if err := s.repo.CreateAnamnesis(ctx, a); err != nil {
		return nil, err
	}
	return s.Bundle(ctx, a.PatientID)
}

func (s *Service) AddClinicalEntry(ctx context.Context, e *ClinicalEntry) (*Bundle, error) {
	if strings.TrimSpace(e.Kind) == "" || strings.TrimSpace(e.Value) == "" {
		return nil, fmt.Errorf("kind and value are required")
	}
	e.ID = uuid.New()
	e.CreatedAt = s.now().UTC()
	if e.MeasuredAt.IsZero() {
		e.MeasuredAt = e.CreatedAt
	}
	if err := s.repo.CreateClinicalEntry(ctx, e); err != nil {
		return nil, err
	}
	return s.Bundle(ctx, e.PatientID)
}

func (s *Service) AddAttachment(ctx context.Context, a *Attachment) (*Bundle, error) {
	if strings.TrimSpace(a.FileName) == "" || strings.TrimSpace(a.FileURL) == "" {
		return nil, fmt.Errorf("file_name and file_url are required")
	}
	a.ID = uuid.New()
	a.CreatedAt = s.now().UTC()
	if err := s.repo.CreateAttachment(ctx, a); err != nil {
		return nil, err
	}
	return s.Bundle(ctx, a.PatientID)
}

func (s *Service) AddFollowUp(ctx context.Context, f *FollowUp) (*Bundle, error) {
	if strings.TrimSpace(f.Reason) == "" {
		return nil, fmt.Errorf("reason is required")
	}
	if f.DueAt.IsZero() {
		return nil, fmt.Errorf("due_at is required")
	}
	f.ID = uuid.New()
	f.CreatedAt = s.now().UTC()
	f.Done = false
	if err := s.repo.CreateFollowUp(ctx, f); err != nil {
		return nil, err
	}
	return s.Bundle(ctx, f.PatientID)
}

func (s *Service) SetFollowUpDone(ctx context.Context, patientID, followUpID uuid.UUID, done bool) (*Bundle, error) {
	if err := s.repo.SetFollowUpDone(ctx, followUpID, done); err != nil {
		return nil, err
	}
	return s.Bundle(ctx, patientID)
}
