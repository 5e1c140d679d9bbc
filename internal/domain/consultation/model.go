package consultation

import (
	"time"

	"github.com/google/uuid"
)

// Teleconsultation statuses.
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
	StatusCancelled  = "cancelled"
)

var validTransitions = map[string]map[string]bool{
	StatusWaiting:    {StatusInProgress: true, StatusCancelled: true},
	StatusInProgress: {StatusFinished: true, StatusCancelled: true},
}

// Teleconsultation maps to the teleconsultations table: one video visit with
// its room link and lifecycle state.
type Teleconsultation struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	DoctorID   uuid.UUID  `json:"doctor_id"`
	RoomURL    string     `json:"room_url"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// AgentConsultation maps to the agent_consultations table: one persisted AI
// analysis over a conversation session. Rows are only ever written when the
// operator explicitly saves a result.
type AgentConsultation struct {
	ID             uuid.UUID `json:"id"`
	SessionID      string    `json:"session_id"`
	PatientID      *uuid.UUID `json:"patient_id,omitempty"`
	Sentiment      string    `json:"sentiment"`
	Intent         string    `json:"intent"`
	Urgency        string    `json:"urgency"`
	Summary        string    `json:"summary"`
	SuggestedReply string    `json:"suggested_reply"`
	CreatedAt      time.Time `json:"created_at"`
}
