package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a conversation session by who is on the other side.
type Kind string

const (
	KindPatient    Kind = "patient"
	KindPrePatient Kind = "pre_patient"
	KindUnknown    Kind = "unknown"
)

// Message maps to the messages table. MessageType is "human" for inbound
// WhatsApp messages and "ai" for outbound replies.
type Message struct {
	ID          uuid.UUID `json:"id"`
	SessionID   string    `json:"session_id"`
	MessageType string    `json:"message_type"`
	Content     string    `json:"content"`
	MediaURL    *string   `json:"media_url,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// Contact is the slice of a patients or pre_patients row the panel needs.
type Contact struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
}

// Session is one conversation in the panel list.
type Session struct {
	SessionID     string    `json:"session_id"`
	Kind          Kind      `json:"kind"`
	DisplayName   string    `json:"display_name"`
	Phone         string    `json:"phone,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
	UnreadCount   int       `json:"unread_count"`
}
