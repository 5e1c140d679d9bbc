package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table.
type Patient struct {
	ID          uuid.UUID  `json:"id"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone"`
	CPF         *string    `json:"cpf,omitempty"`
	Email       *string    `json:"email,omitempty"`
	BirthDate   *string    `json:"birth_date,omitempty"`
	Insurance   *string    `json:"insurance,omitempty"`
	DoctorID    *uuid.UUID `json:"doctor_id,omitempty"`
	SessionID   *string    `json:"session_id,omitempty"`
	Status      string     `json:"status"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MedicalRecord maps to the medical_records table.
type MedicalRecord struct {
	ID           uuid.UUID `json:"id"`
	PatientID    uuid.UUID `json:"patient_id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	Diagnosis    string    `json:"diagnosis"`
	Prescription *string   `json:"prescription,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Anamnesis maps to the anamnesis table: one free-form questionnaire answer.
type Anamnesis struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// ClinicalEntry maps to the clinical_data table: one measured value.
type ClinicalEntry struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	Kind       string    `json:"kind"` // weight, blood_pressure, glucose, …
	Value      string    `json:"value"`
	Unit       *string   `json:"unit,omitempty"`
	MeasuredAt time.Time `json:"measured_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Attachment maps to the medical_attachments table. The binary itself lives
// in the hosted storage bucket; this row only carries its metadata.
type Attachment struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	FileName  string    `json:"file_name"`
	FileURL   string    `json:"file_url"`
	MimeType  *string   `json:"mime_type,omitempty"`
	SizeBytes *int64    `json:"size_bytes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FollowUp maps to the follow_ups table.
type FollowUp struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DueAt     time.Time `json:"due_at"`
	Reason    string    `json:"reason"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// Bundle is the aggregate the detail view renders: the patient plus every
// dependent collection, fetched fresh after each mutation.
type Bundle struct {
	Patient        *Patient         `json:"patient"`
	MedicalRecords []*MedicalRecord `json:"medical_records"`
	Anamnesis      []*Anamnesis     `json:"anamnesis"`
	ClinicalData   []*ClinicalEntry `json:"clinical_data"`
	Attachments    []*Attachment    `json:"attachments"`
	FollowUps      []*FollowUp      `json:"follow_ups"`
}
