package websocket

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/supabase"
)

// fakeConn scripts inbound client messages and captures outbound frames.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.inbound
	if !ok {
		return 0, nil, io.EOF
	}
	return 1, msg, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbound)
	}
	return nil
}

func (f *fakeConn) events(t *testing.T) []Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, 0, len(f.written))
	for _, data := range f.written {
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal pushed event: %v", err)
		}
		out = append(out, ev)
	}
	return out
}

func startClient(t *testing.T, h *Handler) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	go h.Serve(conn)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func subscribe(conn *fakeConn, tables ...string) {
	msg, _ := json.Marshal(clientMessage{Action: "subscribe", Tables: tables})
	conn.inbound <- msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub)

	conn := startClient(t, handler)
	subscribe(conn, "appointments")
	waitFor(t, func() bool { return hub.SubscriberCount("appointments") == 1 })

	hub.BroadcastChange(supabase.Change{
		Table: "appointments",
		Type:  supabase.ChangeInsert,
		New:   supabase.Row{"id": "a1"},
	})

	waitFor(t, func() bool { return len(conn.events(t)) == 1 })
	ev := conn.events(t)[0]
	if ev.Table != "appointments" || ev.Action != "INSERT" || ev.Row["id"] != "a1" {
		t.Errorf("event = %+v", ev)
	}
}

func TestBroadcastSkipsOtherTables(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub)

	conn := startClient(t, handler)
	subscribe(conn, "patients")
	waitFor(t, func() bool { return hub.SubscriberCount("patients") == 1 })

	hub.Broadcast(Event{Table: "appointments", Action: "INSERT"})
	time.Sleep(50 * time.Millisecond)

	if n := len(conn.events(t)); n != 0 {
		t.Errorf("client received %d events for a table it never subscribed to", n)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub)

	conn := startClient(t, handler)
	subscribe(conn, "messages")
	waitFor(t, func() bool { return hub.SubscriberCount("messages") == 1 })

	msg, _ := json.Marshal(clientMessage{Action: "unsubscribe", Tables: []string{"messages"}})
	conn.inbound <- msg
	waitFor(t, func() bool { return hub.SubscriberCount("messages") == 0 })

	hub.Broadcast(Event{Table: "messages", Action: "INSERT"})
	time.Sleep(50 * time.Millisecond)
	if n := len(conn.events(t)); n != 0 {
		t.Errorf("client received %d events after unsubscribe", n)
	}
}

func TestDisconnectUnregistersClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub)

	conn := startClient(t, handler)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}
