package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ChangeType identifies the kind of row-level change in a realtime event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is a single decoded row-level change pushed by the realtime channel.
type Change struct {
	Table string
	Type  ChangeType
	New   Row // populated for INSERT and UPDATE
	Old   Row // populated for UPDATE and DELETE (primary key at minimum)
}

// Subscription is a standing stream of changes for one table. It must be
// closed when no longer needed; Close is safe to call more than once.
type Subscription struct {
	table string
	ch    chan Change
	once  sync.Once
	done  chan struct{}
}

// Changes returns the channel change events are delivered on. The channel is
// closed when the subscription is closed or the client shuts down.
func (s *Subscription) Changes() <-chan Change { return s.ch }

// Close releases the subscription.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
}

// phoenixMessage is the wire envelope of the realtime channel protocol.
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload is the payload of INSERT/UPDATE/DELETE channel events.
type changePayload struct {
	Type      string `json:"type"`
	Table     string `json:"table"`
	Record    Row    `json:"record"`
	OldRecord Row    `json:"old_record"`
}

// socket abstracts a WebSocket connection for testability.
type socket interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// dialFunc opens a socket to the realtime endpoint.
type dialFunc func(ctx context.Context, url string) (socket, error)

func gorillaDial(ctx context.Context, url string) (socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// RealtimeClient maintains one WebSocket to the realtime endpoint and fans
// decoded changes out to per-table subscriptions. It reconnects with backoff
// on socket loss and rejoins every live topic.
type RealtimeClient struct {
	url  string
	dial dialFunc
	log  zerolog.Logger

	mu     sync.Mutex
	subs   map[string][]*Subscription // table -> subscriptions
	conn   socket
	refSeq int
	closed bool
	done   chan struct{}

	heartbeatEvery time.Duration
}

// NewRealtimeClient builds a client for the given project URL and key. The
// connection is established by Run.
func NewRealtimeClient(baseURL, key string, logger zerolog.Logger) *RealtimeClient {
	wsURL := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1)
	return &RealtimeClient{
		url:            wsURL + "/realtime/v1/websocket?apikey=" + key + "&vsn=1.0.0",
		dial:           gorillaDial,
		log:            logger.With().Str("component", "realtime").Logger(),
		subs:           make(map[string][]*Subscription),
		done:           make(chan struct{}),
		heartbeatEvery: 30 * time.Second,
	}
}

func topicFor(table string) string { return "realtime:public:" + table }

// Subscribe registers interest in row-level changes on a table. The returned
// subscription receives events once Run has a live connection.
func (rc *RealtimeClient) Subscribe(table string) (*Subscription, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return nil, fmt.Errorf("realtime client is closed")
	}

	sub := &Subscription{
		table: table,
		ch:    make(chan Change, 64),
		done:  make(chan struct{}),
	}
	first := len(rc.subs[table]) == 0
	rc.subs[table] = append(rc.subs[table], sub)

	// Join the topic immediately if a connection is already up.
	if first && rc.conn != nil {
		if err := rc.join(rc.conn, table); err != nil {
			rc.log.Warn().Err(err).Str("table", table).Msg("join failed, will retry on reconnect")
		}
	}
	return sub, nil
}

func (rc *RealtimeClient) nextRef() string {
	rc.refSeq++
	return strconv.Itoa(rc.refSeq)
}

func (rc *RealtimeClient) join(conn socket, table string) error {
	return conn.WriteJSON(phoenixMessage{
		Topic:   topicFor(table),
		Event:   "phx_join",
		Payload: json.RawMessage(`{}`),
		Ref:     rc.nextRef(),
	})
}

// Run connects and pumps events until ctx is cancelled or Close is called.
// Connection loss triggers reconnection with capped exponential backoff.
func (rc *RealtimeClient) Run(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-rc.done:
			return
		default:
		}

		conn, err := rc.dial(ctx, rc.url)
		if err != nil {
			rc.log.Warn().Err(err).Dur("retry_in", backoff).Msg("realtime dial failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			case <-rc.done:
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		rc.mu.Lock()
		rc.conn = conn
		tables := make([]string, 0, len(rc.subs))
		for table := range rc.subs {
			tables = append(tables, table)
		}
		rc.mu.Unlock()

		for _, table := range tables {
			rc.mu.Lock()
			err := rc.join(conn, table)
			rc.mu.Unlock()
			if err != nil {
				rc.log.Warn().Err(err).Str("table", table).Msg("rejoin failed")
			}
		}

		rc.pump(ctx, conn)

		rc.mu.Lock()
		rc.conn = nil
		rc.mu.Unlock()
		conn.Close()
	}
}

// pump reads messages until the socket fails, sending heartbeats on a ticker.
func (rc *RealtimeClient) pump(ctx context.Context, conn socket) {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		ticker := time.NewTicker(rc.heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rc.mu.Lock()
				err := conn.WriteJSON(phoenixMessage{
					Topic:   "phoenix",
					Event:   "heartbeat",
					Payload: json.RawMessage(`{}`),
					Ref:     rc.nextRef(),
				})
				rc.mu.Unlock()
				if err != nil {
					return
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var msg phoenixMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-ctx.Done():
			case <-rc.done:
			default:
				rc.log.Warn().Err(err).Msg("realtime read failed, reconnecting")
			}
			return
		}
		rc.dispatch(msg)
	}
}

func (rc *RealtimeClient) dispatch(msg phoenixMessage) {
	switch msg.Event {
	case string(ChangeInsert), string(ChangeUpdate), string(ChangeDelete):
	default:
		return // phx_reply, presence, heartbeat acks
	}

	var payload changePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		rc.log.Warn().Err(err).Str("topic", msg.Topic).Msg("undecodable change payload")
		return
	}
	table := payload.Table
	if table == "" {
		table = strings.TrimPrefix(msg.Topic, "realtime:public:")
	}

	change := Change{
		Table: table,
		Type:  ChangeType(msg.Event),
		New:   payload.Record,
		Old:   payload.OldRecord,
	}

	rc.mu.Lock()
	subs := rc.subs[table]
	live := subs[:0]
	for _, sub := range subs {
		select {
		case <-sub.done:
			close(sub.ch)
			continue
		default:
		}
		live = append(live, sub)
		select {
		case sub.ch <- change:
		default:
			// Subscriber is not keeping up; drop rather than block the pump.
			rc.log.Warn().Str("table", table).Msg("subscriber buffer full, dropping change")
		}
	}
	rc.subs[table] = live
	rc.mu.Unlock()
}

// Close shuts the client down and closes every subscription channel.
func (rc *RealtimeClient) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	close(rc.done)
	if rc.conn != nil {
		rc.conn.Close()
	}
	for table, subs := range rc.subs {
		for _, sub := range subs {
			select {
			case <-sub.done:
			default:
				sub.Close()
			}
			close(sub.ch)
		}
		delete(rc.subs, table)
	}
}
