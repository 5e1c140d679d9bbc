package patient

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

// mockRepo is an in-memory Repository for service tests.
type mockRepo struct {
	patients    map[uuid.UUID]*Patient
	records     []*MedicalRecord
	anamnesis   []*Anamnesis
	clinical    []*ClinicalEntry
	attachments []*Attachment
	followUps   []*FollowUp

	createErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) Update(_ context.Context, id uuid.UUID, patch supabase.Row) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	if name, ok := patch["full_name"].(string); ok {
		p.FullName = name
	}
	if status, ok := patch["status"].(string); ok {
		p.Status = status
	}
	return p, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context) ([]*Patient, error) {
	out := make([]*Patient, 0, len(m.patients))
	for _, p := range m.patients {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockRepo) ListMedicalRecords(_ context.Context, id uuid.UUID) ([]*MedicalRecord, error) {
	var out []*MedicalRecord
	for _, r := range m.records {
		if r.PatientID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateMedicalRecord(_ context.Context, rec *MedicalRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockRepo) ListAnamnesis(_ context.Context, id uuid.UUID) ([]*Anamnesis, error) {
	var out []*Anamnesis
	for _, a := range m.anamnesis {
		if a.PatientID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateAnamnesis(_ context.Context, a *Anamnesis) error {
	m.anamnesis = append(m.anamnesis, a)
	return nil
}

func (m *mockRepo) ListClinicalData(_ context.Context, id uuid.UUID) ([]*ClinicalEntry, error) {
	var out []*ClinicalEntry
	for _, e := range m.clinical {
		if e.PatientID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateClinicalEntry(_ context.Context, e *ClinicalEntry) error {
	m.clinical = append(m.clinical, e)
	return nil
}

func (m *mockRepo) ListAttachments(_ context.Context, id uuid.UUID) ([]*Attachment, error) {
	var out []*Attachment
	for _, a := range m.attachments {
		if a.PatientID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateAttachment(_ context.Context, a *Attachment) error {
	m.attachments = append(m.attachments, a)
	return nil
}

func (m *mockRepo) ListFollowUps(_ context.Context, id uuid.UUID) ([]*FollowUp, error) {
	var out []*FollowUp
	for _, f := range m.followUps {
		if f.PatientID == id {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateFollowUp(_ context.Context, f *FollowUp) error {
	m.followUps = append(m.followUps, f)
	return nil
}

func (m *mockRepo) SetFollowUpDone(_ context.Context, id uuid.UUID, done bool) error {
	for _, f := range m.followUps {
		if f.ID == id {
			f.Done = done
			return nil
		}
	}
	return ErrNotFound
}

func seedPatient(t *testing.T, svc *Service) *Patient {
	t.Helper()
	p := &Patient{FullName: "Maria Souza", Phone: "+5511999990000"}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	return p
}

func TestCreatePatientDefaultsAndValidation(t *testing.T) {
	svc := NewService(newMockRepo())

	p := seedPatient(t, svc)
	if p.Status != "active" {
		t.Errorf("Status = %q, want active", p.Status)
	}
	if p.ID == uuid.Nil || p.CreatedAt.IsZero() {
		t.Error("id and created_at should be stamped on create")
	}

	if err := svc.CreatePatient(context.Background(), &Patient{Phone: "x"}); err == nil {
		t.Error("missing full_name should be rejected")
	}
	if err := svc.CreatePatient(context.Background(), &Patient{FullName: "A", Phone: "x", Status: "bogus"}); err == nil {
		t.Error("invalid status should be rejected")
	}
}

func TestListPatientsSearchesNamePhoneCPF(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	cpf := "12345678900"
	for _, p := range []*Patient{
		{FullName: "Maria Souza", Phone: "+5511999990000"},
		{FullName: "João Lima", Phone: "+5521988887777", CPF: &cpf},
	} {
		if err := svc.CreatePatient(ctx, p); err != nil {
			t.Fatalf("CreatePatient: %v", err)
		}
	}

	cases := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"maria", 1},
		{"5521", 1},
		{"456789", 1},
		{"nobody", 0},
	}
	for _, tc := range cases {
		got, err := svc.ListPatients(ctx, tc.query)
		if err != nil {
			t.Fatalf("ListPatients(%q): %v", tc.query, err)
		}
		if len(got) != tc.want {
			t.Errorf("ListPatients(%q) = %d patients, want %d", tc.query, len(got), tc.want)
		}
	}
}

func TestUpdatePatientStripsImmutableColumns(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := seedPatient(t, svc)

	patch := supabase.Row{"full_name": "Maria S.", "id": "evil", "created_at": "evil"}
	updated, err := svc.UpdatePatient(context.Background(), p.ID, patch)
	if err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if updated.FullName != "Maria S." {
		t.Errorf("FullName = %q", updated.FullName)
	}
	if _, ok := patch["id"]; ok {
		t.Error("id should be stripped from the patch")
	}
	if _, ok := patch["updated_at"]; !ok {
		t.Error("updated_at should be stamped into the patch")
	}
}

func TestBundleAggregatesAllCollections(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := seedPatient(t, svc)

	repo.records = append(repo.records, &MedicalRecord{ID: uuid.New(), PatientID: p.ID, Diagnosis: "flu"})
	repo.followUps = append(repo.followUps, &FollowUp{ID: uuid.New(), PatientID: p.ID, Reason: "review"})

	b, err := svc.Bundle(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if b.Patient.ID != p.ID {
		t.Error("bundle carries the wrong patient")
	}
	if len(b.MedicalRecords) != 1 || len(b.FollowUps) != 1 {
		t.Errorf("bundle = %d records, %d follow-ups", len(b.MedicalRecords), len(b.FollowUps))
	}
	if len(b.Anamnesis) != 0 || len(b.ClinicalData) != 0 || len(b.Attachments) != 0 {
		t.Error("collections without rows should come back empty")
	}
}

func TestBundleUnknownPatient(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.Bundle(context.Background(), uuid.New()); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAddMedicalRecordRefetchesBundle(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := seedPatient(t, svc)

	b, err := svc.AddMedicalRecord(context.Background(), &MedicalRecord{
		PatientID: p.ID, DoctorID: uuid.New(), Diagnosis: "hypertension",
	})
	if err != nil {
		t.Fatalf("AddMedicalRecord: %v", err)
	}
	if len(b.MedicalRecords) != 1 {
		t.Fatalf("bundle has %d records, want 1", len(b.MedicalRecords))
	}
	if b.MedicalRecords[0].RecordedAt.IsZero() {
		t.Error("recorded_at should default to the insert time")
	}
}

func TestAddMedicalRecordValidatesBeforeInsert(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := seedPatient(t, svc)

	if _, err := svc.AddMedicalRecord(context.Background(), &MedicalRecord{PatientID: p.ID}); err == nil {
		t.Error("empty diagnosis should be rejected")
	}
	if len(repo.records) != 0 {
		t.Error("nothing should have been inserted")
	}
}

func TestAddFollowUpAndComplete(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := seedPatient(t, svc)

	b, err := svc.AddFollowUp(context.Background(), &FollowUp{
		PatientID: p.ID, Reason: "exam results", DueAt: time.Now().Add(48 * time.Hour), Done: true,
	})
	if err != nil {
		t.Fatalf("AddFollowUp: %v", err)
	}
	if len(b.FollowUps) != 1 || b.FollowUps[0].Done {
		t.Fatalf("new follow-up should start not done: %+v", b.FollowUps)
	}

	b, err = svc.SetFollowUpDone(context.Background(), p.ID, b.FollowUps[0].ID, true)
	if err != nil {
		t.Fatalf("SetFollowUpDone: %v", err)
	}
	if !b.FollowUps[0].Done {
		t.Error("follow-up should be marked done")
	}
}
