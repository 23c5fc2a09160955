package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"chat-relay/internal/gateway"
	"chat-relay/internal/room"

	"github.com/stretchr/testify/require"
)

// mockConn records every frame sent to it.
type mockConn struct {
	id       string
	received [][]byte
	sendErr  error
	closed   bool
	mu       sync.Mutex
}

func newMockConn(id string) *mockConn {
	return &mockConn{id: id}
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type receivedEvent struct {
	Type EventType
	Data map[string]any
}

func (m *mockConn) events() []receivedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]receivedEvent, 0, len(m.received))
	for _, frame := range m.received {
		var ev struct {
			Type EventType      `json:"type"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(frame, &ev); err != nil {
			panic(fmt.Sprintf("invalid frame %q: %v", frame, err))
		}
		events = append(events, receivedEvent{Type: ev.Type, Data: ev.Data})
	}
	return events
}

func (m *mockConn) eventsOf(t EventType) []receivedEvent {
	var out []receivedEvent
	for _, ev := range m.events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = nil
}

type gatewayCall struct {
	op   string
	args []string
}

// fakeGateway records calls in order and fails the operations listed in failOn.
// When release is set, sendText blocks until it is closed.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []gatewayCall
	failOn  map[string]error
	sendID  string
	release chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failOn: map[string]error{}, sendID: "provider-id"}
}

func (g *fakeGateway) record(op string, args ...string) error {
	if g.release != nil && op == "sendText" {
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{op: op, args: args})
	return g.failOn[op]
}

func (g *fakeGateway) getCalls() []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gatewayCall(nil), g.calls...)
}

func (g *fakeGateway) ops() []string {
	var ops []string
	for _, c := range g.getCalls() {
		ops = append(ops, c.op)
	}
	return ops
}

func (g *fakeGateway) SendText(_ context.Context, chatID, text, sessionID string) (*gateway.SendResult, error) {
	if err := g.record("sendText", chatID, text, sessionID); err != nil {
		return nil, err
	}
	return &gateway.SendResult{ID: g.sendID}, nil
}

func (g *fakeGateway) SendButtons(_ context.Context, msg gateway.Buttons) (*gateway.SendResult, error) {
	if err := g.record("sendButtons", msg.ChatID, msg.Header, msg.Body, msg.Footer, string(msg.Buttons), msg.Session); err != nil {
		return nil, err
	}
	return &gateway.SendResult{ID: g.sendID}, nil
}

func (g *fakeGateway) SendSeen(_ context.Context, chatID, messageID, sessionID, participant string) error {
	return g.record("sendSeen", chatID, messageID, sessionID, participant)
}

func (g *fakeGateway) StartTyping(_ context.Context, chatID, sessionID string) error {
	return g.record("startTyping", chatID, sessionID)
}

func (g *fakeGateway) StopTyping(_ context.Context, chatID, sessionID string) error {
	return g.record("stopTyping", chatID, sessionID)
}

// recordingRelay captures published room broadcasts.
type recordingRelay struct {
	mu     sync.Mutex
	rooms  []string
	except []string
}

func (r *recordingRelay) Publish(_ context.Context, roomID, except string, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, roomID)
	r.except = append(r.except, except)
	return nil
}

func (r *recordingRelay) getRooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rooms...)
}

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

func createTestMultiplexer(gw Gateway) *Multiplexer {
	m := NewMultiplexer(NewHub(), room.NewRegistry(), gw)
	m.now = func() time.Time { return fixedNow }
	m.newID = func() string { return "local-id" }
	return m
}

func frame(t *testing.T, eventType EventType, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(Envelope{Type: eventType, Data: raw})
	require.NoError(t, err)
	return out
}

func waitIdle(t *testing.T, m *Multiplexer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Wait(ctx))
}

// connectAndJoin connects a fresh mockConn and joins it to (sessionID, chatID).
func connectAndJoin(t *testing.T, m *Multiplexer, id, sessionID, chatID string) *mockConn {
	t.Helper()
	conn := newMockConn(id)
	m.Connect(conn)
	m.Handle(conn, frame(t, EventJoinSession, JoinSessionData{SessionID: sessionID, ChatID: chatID}))
	return conn
}
