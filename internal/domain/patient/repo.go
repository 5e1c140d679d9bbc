package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

// ErrNotFound is returned when no patient matches the given id.
var ErrNotFound = errors.New("patient not found")

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, id uuid.UUID, patch supabase.Row) (*Patient, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Patient, error)

	ListMedicalRecords(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error)
	CreateMedicalRecord(ctx context.Context, rec *MedicalRecord) error

	ListAnamnesis(ctx context.Context, patientID uuid.UUID) ([]*Anamnesis, error)
	CreateAnamnesis(ctx context.Context, a *Anamnesis) error

	ListClinicalData(ctx context.Context, patientID uuid.UUID) ([]*ClinicalEntry, error)
	CreateClinicalEntry(ctx context.Context, e *ClinicalEntry) error

	ListAttachments(ctx context.Context, patientID uuid.UUID) ([]*Attachment, error)
	CreateAttachment(ctx context.Context, a *Attachment) error

	ListFollowUps(ctx context.Context, patientID uuid.UUID) ([]*FollowUp, error)
	CreateFollowUp(ctx context.Context, f *FollowUp) error
	SetFollowUpDone(ctx context.Context, id uuid.UUID, done bool) error
}
