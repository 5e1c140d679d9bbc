package messaging

import (
	"context"
)

type Repository interface {
	// ListMessages returns a session's messages, oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]*Message, error)
	// ListRecentMessages returns the newest messages across all sessions.
	ListRecentMessages(ctx context.Context, limit int) ([]*Message, error)
	// MarkSessionRead flags every inbound message of a session as read.
	MarkSessionRead(ctx context.Context, sessionID string) error

	ListPatientContacts(ctx context.Context) ([]Contact, error)
	ListPrePatientContacts(ctx context.Context) ([]Contact, error)
}
