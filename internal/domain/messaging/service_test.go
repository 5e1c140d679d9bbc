package messaging

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/flows"
)

type mockRepo struct {
	messages    []*Message
	patients    []Contact
	prePatients []Contact

	recentCalls int
}

func (m *mockRepo) ListMessages(_ context.Context, sessionID string) ([]*Message, error) {
	var out []*Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockRepo) ListRecentMessages(context.Context, int) ([]*Message, error) {
	m.recentCalls++
	return m.messages, nil
}

func (m *mockRepo) MarkSessionRead(_ context.Context, sessionID string) error {
	for _, msg := range m.messages {
		if msg.SessionID == sessionID && msg.MessageType == "human" {
			msg.Read = true
		}
	}
	return nil
}

func (m *mockRepo) ListPatientContacts(context.Context) ([]Contact, error) {
	return m.patients, nil
}

func (m *mockRepo) ListPrePatientContacts(context.Context) ([]Contact, error) {
	return m.prePatients, nil
}

type mockSender struct {
	texts   []flows.SendTextRequest
	failure error
}

func (m *mockSender) SendText(_ context.Context, req flows.SendTextRequest) error {
	if m.failure != nil {
		return m.failure
	}
	m.texts = append(m.texts, req)
	return nil
}

func (m *mockSender) SendMedia(_ context.Context, _, _, _ string, _ io.Reader) error {
	return m.failure
}

func (m *mockSender) SendInvite(_ context.Context, _, _ string) error {
	return m.failure
}

func msg(session, msgType, content string, at time.Time, read bool) *Message {
	return &Message{
		ID: uuid.New(), SessionID: session, MessageType: msgType,
		Content: content, CreatedAt: at, Read: read,
	}
}

func testService(repo *mockRepo, sender *mockSender) *Service {
	return NewService(repo, sender, zerolog.Nop())
}

func TestSessionsGroupAndClassify(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		messages: []*Message{
			msg("s1", "human", "oi, tudo bem?", base, false),
			msg("s1", "ai", "Olá! Como posso ajudar?", base.Add(time.Minute), false),
			msg("s2", "human", "quero marcar consulta", base.Add(2*time.Minute), false),
		},
		patients:    []Contact{{SessionID: "s1", Name: "Maria", Phone: "+5511"}},
		prePatients: []Contact{{SessionID: "s2", Name: "Lead"}},
	}
	svc := testService(repo, &mockSender{})

	sessions, err := svc.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	// Newest conversation first.
	if sessions[0].SessionID != "s2" || sessions[0].Kind != KindPrePatient {
		t.Errorf("first session = %+v", sessions[0])
	}
	s1 := sessions[1]
	if s1.Kind != KindPatient || s1.DisplayName != "Maria" {
		t.Errorf("s1 = %+v", s1)
	}
	if s1.MessageCount != 2 || s1.UnreadCount != 1 {
		t.Errorf("s1 counts = %d msgs, %d unread", s1.MessageCount, s1.UnreadCount)
	}
	if s1.LastMessage != "Olá! Como posso ajudar?" {
		t.Errorf("preview = %q", s1.LastMessage)
	}
}

func TestSessionsPreviewTruncatesAndTagsMedia(t *testing.T) {
	long := strings.Repeat("a", 200)
	audioURL := "https://cdn.example.com/voice.ogg"
	repo := &mockRepo{
		messages: []*Message{
			msg("s1", "human", long, time.Now(), true),
			{ID: uuid.New(), SessionID: "s2", MessageType: "human", MediaURL: &audioURL, CreatedAt: time.Now()},
		},
	}
	svc := testService(repo, &mockSender{})

	sessions, err := svc.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	for _, s := range sessions {
		switch s.SessionID {
		case "s1":
			if len([]rune(s.LastMessage)) != previewLen+1 {
				t.Errorf("preview length = %d", len([]rune(s.LastMessage)))
			}
		case "s2":
			if s.LastMessage != "[audio]" {
				t.Errorf("media preview = %q", s.LastMessage)
			}
		}
	}
}

func TestSessionsCacheAndInvalidation(t *testing.T) {
	repo := &mockRepo{
		messages: []*Message{msg("s1", "human", "hi", time.Now(), false)},
		patients: []Contact{{SessionID: "s1", Name: "Maria", Phone: "+5511"}},
	}
	sender := &mockSender{}
	svc := testService(repo, sender)
	ctx := context.Background()

	if _, err := svc.Sessions(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Sessions(ctx); err != nil {
		t.Fatal(err)
	}
	if repo.recentCalls != 1 {
		t.Fatalf("second list should hit the cache, got %d repo calls", repo.recentCalls)
	}

	if err := svc.SendText(ctx, "s1", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if _, err := svc.Sessions(ctx); err != nil {
		t.Fatal(err)
	}
	if repo.recentCalls != 2 {
		t.Errorf("send should invalidate the cache, got %d repo calls", repo.recentCalls)
	}
}

func TestSendTextResolvesPhoneAndRejectsUnknown(t *testing.T) {
	repo := &mockRepo{
		patients: []Contact{{SessionID: "s1", Name: "Maria", Phone: "+5511"}},
	}
	sender := &mockSender{}
	svc := testService(repo, sender)
	ctx := context.Background()

	if err := svc.SendText(ctx, "s1", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if len(sender.texts) != 1 || sender.texts[0].Phone != "+5511" {
		t.Errorf("sent = %+v", sender.texts)
	}

	if err := svc.SendText(ctx, "ghost", "hello"); err == nil {
		t.Error("unknown session should be rejected before any send")
	}
	if err := svc.SendText(ctx, "s1", "   "); err == nil {
		t.Error("blank text should be rejected")
	}
}

func TestMarkReadClearsUnread(t *testing.T) {
	repo := &mockRepo{
		messages: []*Message{
			msg("s1", "human", "a", time.Now(), false),
			msg("s1", "human", "b", time.Now(), false),
		},
		patients: []Contact{{SessionID: "s1", Name: "Maria"}},
	}
	svc := testService(repo, &mockSender{})
	ctx := context.Background()

	if err := svc.MarkRead(ctx, "s1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	sessions, err := svc.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sessions[0].UnreadCount != 0 {
		t.Errorf("unread = %d after MarkRead", sessions[0].UnreadCount)
	}
}
