package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"chat-relay/internal/gateway"
	"chat-relay/internal/room"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const joinedMessage = "Connected to session"

// Gateway is the subset of the messaging provider the multiplexer drives.
type Gateway interface {
	SendText(ctx context.Context, chatID, text, sessionID string) (*gateway.SendResult, error)
	SendButtons(ctx context.Context, msg gateway.Buttons) (*gateway.SendResult, error)
	SendSeen(ctx context.Context, chatID, messageID, sessionID, participant string) error
	StartTyping(ctx context.Context, chatID, sessionID string) error
	StopTyping(ctx context.Context, chatID, sessionID string) error
}

// Relay forwards room broadcasts to other instances.
type Relay interface {
	Publish(ctx context.Context, roomID, except string, data []byte) error
}

// binding is what a connection is currently joined to.
type binding struct {
	sessionID string
	chatID    string
	roomID    string
}

// Multiplexer turns client actions and provider notifications into room broadcasts.
type Multiplexer struct {
	hub      *Hub
	registry *room.Registry
	gateway  Gateway
	relay    Relay

	// connection ID -> latest binding; absent means Unbound
	bindings map[string]binding

	// guards bindings, tails and closed, and keeps registry and hub group
	// mutations in step
	mu sync.Mutex

	// connection ID -> done channel of its most recently queued action
	tails map[string]chan struct{}

	// set by Shutdown; no action is started afterwards
	closed bool

	// in-flight gateway actions
	wg sync.WaitGroup

	now   func() time.Time
	newID func() string
}

func NewMultiplexer(hub *Hub, registry *room.Registry, gw Gateway) *Multiplexer {
	return &Multiplexer{
		hub:      hub,
		registry: registry,
		gateway:  gw,
		bindings: make(map[string]binding),
		tails:    make(map[string]chan struct{}),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// SetRelay enables cross-instance fanout of room broadcasts.
func (m *Multiplexer) SetRelay(relay Relay) {
	m.relay = relay
}

// Connect registers a new transport connection. It starts Unbound.
func (m *Multiplexer) Connect(conn Conn) {
	m.hub.Add(conn)
	slog.Info("Client connected", "clientID", conn.ID())
}

// Handle dispatches one raw frame received from conn.
func (m *Multiplexer) Handle(conn Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("Failed to unmarshal frame", "clientID", conn.ID(), "error", err)
		m.emitError(conn.ID(), "Invalid message format", nil)
		return
	}

	switch env.Type {
	case EventJoinSession:
		var data JoinSessionData
		if m.decode(conn, env, &data) {
			m.JoinSession(conn, data)
		}
	case EventLeaveSession:
		m.LeaveSession(conn)
	case EventSendMessage:
		var data SendMessageData
		var fields map[string]any
		if m.decode(conn, env, &data) && m.decode(conn, env, &fields) {
			m.SendMessage(conn, data, fields)
		}
	case EventMarkAsSeen:
		var data MarkAsSeenData
		if m.decode(conn, env, &data) {
			m.MarkAsSeen(conn, data)
		}
	case EventStartTyping:
		var data TypingData
		if m.decode(conn, env, &data) {
			m.StartTyping(conn, data)
		}
	case EventStopTyping:
		var data TypingData
		if m.decode(conn, env, &data) {
			m.StopTyping(conn, data)
		}
	default:
		slog.Warn("Unknown event", "clientID", conn.ID(), "type", env.Type)
		m.emitError(conn.ID(), ErrUnknownEvent.Error()+": "+env.Type.String(), nil)
	}
}

func (m *Multiplexer) decode(conn Conn, env Envelope, v any) bool {
	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("Failed to unmarshal payload", "clientID", conn.ID(), "type", env.Type, "error", err)
		m.emitError(conn.ID(), "Invalid payload for "+env.Type.String(), err.Error())
		return false
	}
	return true
}

// JoinSession binds conn to the room of (sessionId, chatId). A connection that is
// already bound joins the new room in addition; the binding tracks the latest room.
func (m *Multiplexer) JoinSession(conn Conn, data JoinSessionData) {
	roomID, err := room.ResolveRequired(data.SessionID, data.ChatID)
	if err != nil {
		m.emitError(conn.ID(), (&ValidationError{Fields: []string{"sessionId"}}).Error(), nil)
		return
	}

	m.mu.Lock()
	if !m.hub.Join(roomID, conn.ID()) {
		m.mu.Unlock()
		slog.Warn("Join from unregistered client", "clientID", conn.ID(), "room", roomID)
		return
	}
	m.registry.Join(roomID, conn.ID())
	m.bindings[conn.ID()] = binding{sessionID: data.SessionID, chatID: data.ChatID, roomID: roomID}
	m.mu.Unlock()

	slog.Info("Client joined room", "clientID", conn.ID(), "room", roomID)

	m.emitTo(conn.ID(), EventJoinedSession, JoinedSessionData{
		SessionID: data.SessionID,
		ChatID:    data.ChatID,
		RoomID:    roomID,
		Message:   joinedMessage,
	})
	m.broadcast(roomID, conn.ID(), EventUserJoined, PresenceData{
		SocketID:  conn.ID(),
		SessionID: data.SessionID,
		ChatID:    data.ChatID,
	})
}

// LeaveSession unbinds conn from its current room. Unbound connections are ignored.
func (m *Multiplexer) LeaveSession(conn Conn) {
	b, ok := m.unbind(conn.ID())
	if !ok {
		return
	}

	slog.Info("Client left room", "clientID", conn.ID(), "room", b.roomID)

	m.broadcast(b.roomID, conn.ID(), EventUserLeft, PresenceData{
		SocketID:  conn.ID(),
		SessionID: b.sessionID,
		ChatID:    b.chatID,
	})
}

func (m *Multiplexer) unbind(connID string) (binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bindings[connID]
	if !ok {
		return binding{}, false
	}
	m.hub.Leave(b.roomID, connID)
	m.registry.Leave(b.roomID, connID)
	delete(m.bindings, connID)
	return b, true
}

// Disconnect is called by the transport once conn is gone. The connection leaves
// every room it is still in; only its bound room is told about it.
func (m *Multiplexer) Disconnect(conn Conn) {
	m.mu.Lock()
	b, bound := m.bindings[conn.ID()]
	delete(m.bindings, conn.ID())
	for _, group := range m.hub.Remove(conn.ID()) {
		m.registry.Leave(group, conn.ID())
	}
	m.mu.Unlock()

	slog.Info("Client disconnected", "clientID", conn.ID())

	if !bound {
		return
	}
	m.broadcast(b.roomID, conn.ID(), EventUserDisconnected, PresenceData{
		SocketID:  conn.ID(),
		SessionID: b.sessionID,
		ChatID:    b.chatID,
	})
}

// SendMessage validates synchronously and runs the provider round trip in the
// background. fields is the raw client payload, echoed in message-sent.
func (m *Multiplexer) SendMessage(conn Conn, data SendMessageData, fields map[string]any) {
	if err := requireFields("sessionId", data.SessionID, "chatId", data.ChatID, "text", data.Text); err != nil {
		m.emitError(conn.ID(), err.Error(), nil)
		return
	}
	if data.MessageType == "" {
		data.MessageType = MessageTypeText
	}
	if data.MessageType != MessageTypeText && data.MessageType != MessageTypeButtons {
		err := &UnsupportedTypeError{Type: data.MessageType}
		slog.Warn("Rejected message", "clientID", conn.ID(), "error", err)
		m.emitError(conn.ID(), "Error sending message", err.Error())
		return
	}

	roomID := room.Resolve(data.SessionID, data.ChatID)
	m.spawn(conn.ID(), func(ctx context.Context) {
		m.sendMessage(ctx, conn.ID(), roomID, data, fields)
	})
}

func (m *Multiplexer) sendMessage(ctx context.Context, connID, roomID string, data SendMessageData, fields map[string]any) {
	result, err := m.deliver(ctx, data)
	if err != nil {
		slog.Error("Failed to send message", "clientID", connID, "chatID", data.ChatID, "error", err)
		if stopErr := m.gateway.StopTyping(ctx, data.ChatID, data.SessionID); stopErr != nil {
			slog.Error("Failed to stop typing", "clientID", connID, "chatID", data.ChatID, "error", stopErr)
		}
		m.emitError(connID, "Error sending message", gateway.Details(err))
		return
	}

	id := ""
	if result != nil {
		id = result.ID
	}
	if id == "" {
		id = m.newID()
	}

	sent := map[string]any{
		"id":          id,
		"sessionId":   data.SessionID,
		"chatId":      data.ChatID,
		"text":        data.Text,
		"messageType": data.MessageType,
		"timestamp":   timestamp(m.now()),
		"direction":   "outbound",
		"status":      "sent",
	}
	for k, v := range fields {
		sent[k] = v
	}

	m.broadcast(roomID, "", EventMessageSent, sent)
	slog.Info("Message sent", "chatID", data.ChatID, "room", roomID, "id", id)
}

// deliver runs startTyping, the send and stopTyping in order.
func (m *Multiplexer) deliver(ctx context.Context, data SendMessageData) (*gateway.SendResult, error) {
	if err := m.gateway.StartTyping(ctx, data.ChatID, data.SessionID); err != nil {
		return nil, errors.Wrap(err, "start typing")
	}

	var (
		result *gateway.SendResult
		err    error
	)
	switch data.MessageType {
	case MessageTypeText:
		result, err = m.gateway.SendText(ctx, data.ChatID, data.Text, data.SessionID)
	case MessageTypeButtons:
		result, err = m.gateway.SendButtons(ctx, gateway.Buttons{
			ChatID:      data.ChatID,
			Header:      data.Header,
			Body:        data.Body,
			Footer:      data.Footer,
			Buttons:     data.Buttons,
			Session:     data.SessionID,
			HeaderImage: data.HeaderImage,
		})
	default:
		err = &UnsupportedTypeError{Type: data.MessageType}
	}
	if err != nil {
		return nil, errors.Wrap(err, "send")
	}

	if err := m.gateway.StopTyping(ctx, data.ChatID, data.SessionID); err != nil {
		return nil, errors.Wrap(err, "stop typing")
	}
	return result, nil
}

func (m *Multiplexer) MarkAsSeen(conn Conn, data MarkAsSeenData) {
	if err := requireFields("sessionId", data.SessionID, "chatId", data.ChatID, "messageId", data.MessageID); err != nil {
		m.emitError(conn.ID(), err.Error(), nil)
		return
	}

	roomID := room.Resolve(data.SessionID, data.ChatID)
	m.spawn(conn.ID(), func(ctx context.Context) {
		if err := m.gateway.SendSeen(ctx, data.ChatID, data.MessageID, data.SessionID, data.Participant); err != nil {
			slog.Error("Failed to mark message as seen", "clientID", conn.ID(), "messageID", data.MessageID, "error", err)
			m.emitError(conn.ID(), "Error marking message as seen", gateway.Details(err))
			return
		}

		m.broadcast(roomID, "", EventMessageSeen, MessageSeenData{
			SessionID:   data.SessionID,
			ChatID:      data.ChatID,
			MessageID:   data.MessageID,
			Participant: data.Participant,
			Timestamp:   timestamp(m.now()),
		})
		slog.Debug("Message marked as seen", "messageID", data.MessageID, "room", roomID)
	})
}

func (m *Multiplexer) StartTyping(conn Conn, data TypingData) {
	m.typing(conn, data, m.gateway.StartTyping, EventUserTyping, "Error starting typing indicator")
}

func (m *Multiplexer) StopTyping(conn Conn, data TypingData) {
	m.typing(conn, data, m.gateway.StopTyping, EventUserStoppedTyping, "Error stopping typing indicator")
}

func (m *Multiplexer) typing(conn Conn, data TypingData, call func(ctx context.Context, chatID, sessionID string) error, event EventType, failure string) {
	if err := requireFields("sessionId", data.SessionID, "chatId", data.ChatID); err != nil {
		m.emitError(conn.ID(), err.Error(), nil)
		return
	}

	roomID := room.Resolve(data.SessionID, data.ChatID)
	m.spawn(conn.ID(), func(ctx context.Context) {
		if err := call(ctx, data.ChatID, data.SessionID); err != nil {
			slog.Error("Typing indicator failed", "clientID", conn.ID(), "event", event, "error", err)
			m.emitError(conn.ID(), failure, gateway.Details(err))
			return
		}

		m.broadcast(roomID, conn.ID(), event, UserTypingData{
			SessionID: data.SessionID,
			ChatID:    data.ChatID,
			SocketID:  conn.ID(),
			Timestamp: timestamp(m.now()),
		})
	})
}

// NotifyNewMessage pushes an inbound provider message to its room.
func (m *Multiplexer) NotifyNewMessage(sessionID, chatID string, messageData map[string]any) {
	payload := m.notification(sessionID, chatID, messageData)
	payload["direction"] = "inbound"

	roomID := room.Resolve(sessionID, chatID)
	m.broadcast(roomID, "", EventNewMessage, payload)
	slog.Info("New message notified", "room", roomID)
}

// NotifyStatusChange pushes a provider status update to its room.
func (m *Multiplexer) NotifyStatusChange(sessionID, chatID string, statusData map[string]any) {
	payload := m.notification(sessionID, chatID, statusData)

	roomID := room.Resolve(sessionID, chatID)
	m.broadcast(roomID, "", EventStatusChange, payload)
	slog.Info("Status change notified", "room", roomID)
}

// notification copies data and stamps the routing fields. chatId is left out for
// session-wide notifications. A timestamp supplied by the provider is kept.
func (m *Multiplexer) notification(sessionID, chatID string, data map[string]any) map[string]any {
	payload := make(map[string]any, len(data)+4)
	for k, v := range data {
		payload[k] = v
	}
	payload["sessionId"] = sessionID
	if chatID != "" {
		payload["chatId"] = chatID
	} else {
		delete(payload, "chatId")
	}
	if _, ok := payload["timestamp"]; !ok {
		payload["timestamp"] = timestamp(m.now())
	}
	return payload
}

// Wait blocks until every in-flight gateway action has finished or ctx is done.
func (m *Multiplexer) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting actions, closes every connection and waits for the
// actions already started.
func (m *Multiplexer) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.hub.CloseAll()
	return m.Wait(ctx)
}

// spawn runs a gateway action on its own goroutine. Actions of one connection run
// one after another in the order they were spawned; actions of different
// connections overlap. Actions are not cancelled when their connection goes away.
func (m *Multiplexer) spawn(connID string, action func(ctx context.Context)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		slog.Warn("Action dropped during shutdown", "clientID", connID)
		return
	}
	prev := m.tails[connID]
	done := make(chan struct{})
	m.tails[connID] = done
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			close(done)
			m.mu.Lock()
			if m.tails[connID] == done {
				delete(m.tails, connID)
			}
			m.mu.Unlock()
		}()

		if prev != nil {
			<-prev
		}
		action(context.Background())
	}()
}

func (m *Multiplexer) broadcast(roomID, except string, event EventType, data any) {
	frame, err := encode(event, data)
	if err != nil {
		slog.Error("Failed to encode event", "event", event, "error", err)
		return
	}

	delivered := m.hub.Emit(roomID, frame, except)
	slog.Debug("Event broadcast", "event", event, "room", roomID, "delivered", delivered)

	if m.relay != nil {
		if err := m.relay.Publish(context.Background(), roomID, except, frame); err != nil {
			slog.Error("Failed to relay event", "event", event, "room", roomID, "error", err)
		}
	}
}

func (m *Multiplexer) emitTo(connID string, event EventType, data any) {
	frame, err := encode(event, data)
	if err != nil {
		slog.Error("Failed to encode event", "event", event, "error", err)
		return
	}
	if err := m.hub.EmitTo(connID, frame); err != nil {
		slog.Debug("Private event dropped", "event", event, "clientID", connID, "error", err)
	}
}

func (m *Multiplexer) emitError(connID, message string, details any) {
	m.emitTo(connID, EventError, ErrorData{Message: message, Details: details})
}
