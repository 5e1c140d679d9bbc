package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

const (
	tablePatients       = "patients"
	tableMedicalRecords = "medical_records"
	tableAnamnesis      = "anamnesis"
	tableClinicalData   = "clinical_data"
	tableAttachments    = "medical_attachments"
	tableFollowUps      = "follow_ups"
)

// listLimit caps bulk reads; list endpoints paginate in memory on top of it.
const listLimit = 1000

type SupabaseRepository struct {
	sb *supabase.Client
}

func NewSupabaseRepository(sb *supabase.Client) *SupabaseRepository {
	return &SupabaseRepository{sb: sb}
}

func (r *SupabaseRepository) Create(ctx context.Context, p *Patient) error {
	row, err := r.sb.Insert(ctx, tablePatients, p)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, p)
}

func (r *SupabaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table:   tablePatients,
		Filters: []supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var p Patient
	if err := supabase.DecodeRows(rows[0], &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SupabaseRepository) Update(ctx context.Context, id uuid.UUID, patch supabase.Row) (*Patient, error) {
	rows, err := r.sb.Update(ctx, tablePatients,
		[]supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}}, patch)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var p Patient
	if err := supabase.DecodeRows(rows[0], &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SupabaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.sb.Delete(ctx, tablePatients,
		[]supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}})
}

func (r *SupabaseRepository) List(ctx context.Context) ([]*Patient, error) {
	rows, err := r.sb.Select(ctx, supabase.Query{
		Table: tablePatients,
		Order: &supabase.Order{Column: "created_at", Descending: true},
		Limit: listLimit,
	})
	if err != nil {
		return nil, err
	}
	var out []*Patient
	if err := supabase.DecodeRows(rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// listChildren fetches every dependent row for one patient, newest first.
func listChildren(ctx context.Context, sb *supabase.Client, table string, patientID uuid.UUID, out interface{}) error {
	rows, err := sb.Select(ctx, supabase.Query{
		Table:   table,
		Filters: []supabase.Filter{{Column: "patient_id", Op: "eq", Value: patientID.String()}},
		Order:   &supabase.Order{Column: "created_at", Descending: true},
		Limit:   listLimit,
	})
	if err != nil {
		return err
	}
	return supabase.DecodeRows(rows, out)
}

func (r *SupabaseRepository) ListMedicalRecords(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	var out []*MedicalRecord
	err := listChildren(ctx, r.sb, tableMedicalRecords, patientID, &out)
	return out, err
}

func (r *SupabaseRepository) CreateMedicalRecord(ctx context.Context, rec *MedicalRecord) error {
	row, err := r.sb.Insert(ctx, tableMedicalRecords, rec)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, rec)
}

func (r *SupabaseRepository) ListAnamnesis(ctx context.Context, patientID uuid.UUID) ([]*Anamnesis, error) {
	var out []*Anamnesis
	err := listChildren(ctx, r.sb, tableAnamnesis, patientID, &out)
	return out, err
}

func (r *SupabaseRepository) CreateAnamnesis(ctx context.Context, a *Anamnesis) error {
	row, err := r.sb.Insert(ctx, tableAnamnesis, a)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, a)
}

func (r *SupabaseRepository) ListClinicalData(ctx context.Context, patientID uuid.UUID) ([]*ClinicalEntry, error) {
	var out []*ClinicalEntry
	err := listChildren(ctx, r.sb, tableClinicalData, patientID, &out)
	return out, err
}

func (r *SupabaseRepository) CreateClinicalEntry(ctx context.Context, e *ClinicalEntry) error {
	row, err := r.sb.Insert(ctx, tableClinicalData, e)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, e)
}

func (r *SupabaseRepository) ListAttachments(ctx context.Context, patientID uuid.UUID) ([]*Attachment, error) {
	var out []*Attachment
	err := listChildren(ctx, r.sb, tableAttachments, patientID, &out)
	return out, err
}

func (r *SupabaseRepository) CreateAttachment(ctx context.Context, a *Attachment) error {
	row, err := r.sb.Insert(ctx, tableAttachments, a)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, a)
}

func (r *SupabaseRepository) ListFollowUps(ctx context.Context, patientID uuid.UUID) ([]*FollowUp, error) {
	var out []*FollowUp
	err := listChildren(ctx, r.sb, tableFollowUps, patientID, &out)
	return out, err
}

func (r *SupabaseRepository) CreateFollowUp(ctx context.Context, f *FollowUp) error {
	row, err := r.sb.Insert(ctx, tableFollowUps, f)
	if err != nil {
		return err
	}
	return supabase.DecodeRows(row, f)
}

func (r *SupabaseRepository) SetFollowUpDone(ctx context.Context, id uuid.UUID, done bool) error {
	_, err := r.sb.Update(ctx, tableFollowUps,
		[]supabase.Filter{{Column: "id", Op: "eq", Value: id.String()}},
		supabase.Row{"done": done})
	return err
}
