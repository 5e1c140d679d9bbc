package supabase

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeSocket feeds scripted inbound messages and records outbound ones.
type fakeSocket struct {
	mu       sync.Mutex
	inbound  chan phoenixMessage
	outbound []phoenixMessage
	closed   bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{inbound: make(chan phoenixMessage, 16)}
}

func (f *fakeSocket) ReadJSON(v interface{}) error {
	msg, ok := <-f.inbound
	if !ok {
		return io.EOF
	}
	*(v.(*phoenixMessage)) = msg
	return nil
}

func (f *fakeSocket) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outbound = append(f.outbound, v.(phoenixMessage))
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeSocket) sentEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]string, len(f.outbound))
	for i, m := range f.outbound {
		events[i] = m.Topic + "/" + m.Event
	}
	return events
}

func newTestRealtime(sock *fakeSocket) *RealtimeClient {
	rc := NewRealtimeClient("https://example.supabase.co", "key", zerolog.Nop())
	rc.dial = func(ctx context.Context, url string) (socket, error) {
		return sock, nil
	}
	return rc
}

func changeMessage(table, event string, record Row) phoenixMessage {
	payload, _ := json.Marshal(changePayload{Type: event, Table: table, Record: record})
	return phoenixMessage{Topic: topicFor(table), Event: event, Payload: payload}
}

func TestSubscribeJoinsTopicAndDeliversChanges(t *testing.T) {
	sock := newFakeSocket()
	rc := newTestRealtime(sock)
	defer rc.Close()

	sub, err := rc.Subscribe("patients")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rc.Run(ctx)

	sock.inbound <- changeMessage("patients", "INSERT", Row{"id": "p1"})

	select {
	case change := <-sub.Changes():
		if change.Type != ChangeInsert || change.New["id"] != "p1" {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	// The join frame must have been sent for the subscribed table.
	deadline := time.Now().Add(time.Second)
	for {
		joined := false
		for _, ev := range sock.sentEvents() {
			if ev == "realtime:public:patients/phx_join" {
				joined = true
			}
		}
		if joined {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("join frame not sent, got %v", sock.sentEvents())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNonChangeEventsAreIgnored(t *testing.T) {
	sock := newFakeSocket()
	rc := newTestRealtime(sock)
	defer rc.Close()

	sub, _ := rc.Subscribe("appointments")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rc.Run(ctx)

	sock.inbound <- phoenixMessage{Topic: "phoenix", Event: "phx_reply", Payload: json.RawMessage(`{}`)}
	sock.inbound <- changeMessage("appointments", "DELETE", nil)

	select {
	case change := <-sub.Changes():
		if change.Type != ChangeDelete {
			t.Errorf("first delivered change = %+v, want DELETE", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestChangesAreRoutedPerTable(t *testing.T) {
	sock := newFakeSocket()
	rc := newTestRealtime(sock)
	defer rc.Close()

	patients, _ := rc.Subscribe("patients")
	messages, _ := rc.Subscribe("messages")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rc.Run(ctx)

	sock.inbound <- changeMessage("messages", "INSERT", Row{"id": "m1"})

	select {
	case change := <-messages.Changes():
		if change.New["id"] != "m1" {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered to messages subscription")
	}

	select {
	case change := <-patients.Changes():
		t.Errorf("patients subscription received %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAfterCloseFails(t *testing.T) {
	rc := newTestRealtime(newFakeSocket())
	rc.Close()
	if _, err := rc.Subscribe("patients"); err == nil {
		t.Fatal("expected error subscribing on closed client")
	}
}
