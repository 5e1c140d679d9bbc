package messaging

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/flows"
)

const previewLen = 80

// Sender is the outbound WhatsApp surface, satisfied by *flows.Client.
type Sender interface {
	SendText(ctx context.Context, req flows.SendTextRequest) error
	SendMedia(ctx context.Context, sessionID, kind, filename string, file io.Reader) error
	SendInvite(ctx context.Context, phone, link string) error
}

type Service struct {
	repo   Repository
	sender Sender
	log    zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	cached   []Session
	cachedAt time.Time
	ttl      time.Duration
}

func NewService(repo Repository, sender Sender, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		sender: sender,
		log:    logger.With().Str("component", "messaging").Logger(),
		now:    time.Now,
		ttl:    30 * time.Second,
	}
}

func (s *Service) directory(ctx context.Context) (*Directory, error) {
	patients, err := s.repo.ListPatientContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patient contacts: %w", err)
	}
	prePatients, err := s.repo.ListPrePatientContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pre-patient contacts: %w", err)
	}
	return NewDirectory(patients, prePatients), nil
}

func preview(m *Message) string {
	content := strings.TrimSpace(m.Content)
	if content == "" && m.MediaURL != nil {
		return "[" + MediaKind(*m.MediaURL) + "]"
	}
	runes := []rune(content)
	if len(runes) > previewLen {
		return string(runes[:previewLen]) + "…"
	}
	return content
}

// Sessions builds the conversation list: messages grouped by session id,
// classified against the contact directory, newest conversation first. The
// result is cached briefly; any send or read invalidates it.
func (s *Service) Sessions(ctx context.Context) ([]Session, error) {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < s.ttl {
		out := make([]Session, len(s.cached))
		copy(out, s.cached)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	msgs, err := s.repo.ListRecentMessages(ctx, 0)
	if err != nil {
		return nil, err
	}
	dir, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}

	bySession := make(map[string]*Session)
	for _, m := range msgs {
		sess, ok := bySession[m.SessionID]
		if !ok {
			contact, kind := dir.Resolve(m.SessionID)
			sess = &Session{
				SessionID:   m.SessionID,
				Kind:        kind,
				DisplayName: contact.Name,
				Phone:       contact.Phone,
			}
			bySession[m.SessionID] = sess
		}
		sess.MessageCount++
		if m.MessageType == "human" && !m.Read {
			sess.UnreadCount++
		}
		if m.CreatedAt.After(sess.LastMessageAt) {
			sess.LastMessageAt = m.CreatedAt
			sess.LastMessage = preview(m)
		}
	}

	out := make([]Session, 0, len(bySession))
	for _, sess := range bySession {
		out = append(out, *sess)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})

	s.mu.Lock()
	s.cached = out
	s.cachedAt = s.now()
	s.mu.Unlock()

	result := make([]Session, len(out))
	copy(result, out)
	return result, nil
}

// Messages returns one session's full transcript, oldest first.
func (s *Service) Messages(ctx context.Context, sessionID string) ([]*Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	return s.repo.ListMessages(ctx, sessionID)
}

// SendText posts an outbound message through the automation flow and drops
// the session cache so the next list reflects it.
func (s *Service) SendText(ctx context.Context, sessionID, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}
	dir, err := s.directory(ctx)
	if err != nil {
		return err
	}
	contact, kind := dir.Resolve(sessionID)
	if kind == KindUnknown {
		return fmt.Errorf("session %s has no known contact", sessionID)
	}
	err = s.sender.SendText(ctx, flows.SendTextRequest{
		SessionID: sessionID,
		Phone:     contact.Phone,
		Text:      text,
	})
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("send text failed")
		return err
	}
	s.Invalidate()
	return nil
}

func (s *Service) SendMedia(ctx context.Context, sessionID, kind, filename string, file io.Reader) error {
	if err := s.sender.SendMedia(ctx, sessionID, kind, filename, file); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Str("kind", kind).Msg("send media failed")
		return err
	}
	s.Invalidate()
	return nil
}

func (s *Service) SendInvite(ctx context.Context, phone, link string) error {
	return s.sender.SendInvite(ctx, phone, link)
}

func (s *Service) MarkRead(ctx context.Context, sessionID string) error {
	if err := s.repo.MarkSessionRead(ctx, sessionID); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate drops the cached session list. Realtime observers call this on
// every messages-table change.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
