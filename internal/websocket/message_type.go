package websocket

import (
	"encoding/json"
	"time"
)

// EventType names a frame exchanged over the websocket.
type EventType string

// Client -> server events
const (
	EventJoinSession  EventType = "join-session"
	EventLeaveSession EventType = "leave-session"
	EventSendMessage  EventType = "send-message"
	EventMarkAsSeen   EventType = "mark-as-seen"
	EventStartTyping  EventType = "start-typing"
	EventStopTyping   EventType = "stop-typing"
)

// Server -> client events
const (
	EventJoinedSession     EventType = "joined-session"
	EventUserJoined        EventType = "user-joined"
	EventUserLeft          EventType = "user-left"
	EventUserDisconnected  EventType = "user-disconnected"
	EventMessageSent       EventType = "message-sent"
	EventMessageSeen       EventType = "message-seen"
	EventUserTyping        EventType = "user-typing"
	EventUserStoppedTyping EventType = "user-stopped-typing"
	EventNewMessage        EventType = "new-message"
	EventStatusChange      EventType = "status-change"
	EventError             EventType = "error"
)

// Message types accepted by send-message.
const (
	MessageTypeText    = "text"
	MessageTypeButtons = "buttons"
)

// timestampLayout matches the millisecond ISO-8601 form clients already parse.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func (et EventType) String() string {
	return string(et)
}

// Envelope is the frame format in both directions.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

func encode(eventType EventType, data any) ([]byte, error) {
	return json.Marshal(outbound{Type: eventType, Data: data})
}

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Client payloads

type JoinSessionData struct {
	SessionID string `json:"sessionId"`
	ChatID    string `json:"chatId,omitempty"`
}

type SendMessageData struct {
	SessionID   string          `json:"sessionId"`
	ChatID      string          `json:"chatId"`
	Text        string          `json:"text"`
	MessageType string          `json:"messageType"`
	Header      string          `json:"header,omitempty"`
	Body        string          `json:"body,omitempty"`
	Footer      string          `json:"footer,omitempty"`
	Buttons     json.RawMessage `json:"buttons,omitempty"`
	HeaderImage json.RawMessage `json:"headerImage,omitempty"`
}

type MarkAsSeenData struct {
	SessionID   string `json:"sessionId"`
	ChatID      string `json:"chatId"`
	MessageID   string `json:"messageId"`
	Participant string `json:"participant,omitempty"`
}

type TypingData struct {
	SessionID string `json:"sessionId"`
	ChatID    string `json:"chatId"`
}

// Server payloads

type JoinedSessionData struct {
	SessionID string `json:"sessionId"`
	ChatID    string `json:"chatId,omitempty"`
	RoomID    string `json:"roomId"`
	Message   string `json:"message"`
}

// PresenceData is carried by user-joined, user-left and user-disconnected.
type PresenceData struct {
	SocketID  string `json:"socketId"`
	SessionID string `json:"sessionId"`
	ChatID    string `json:"chatId,omitempty"`
}

type MessageSeenData struct {
	SessionID   string `json:"sessionId"`
	ChatID      string `json:"chatId"`
	MessageID   string `json:"messageId"`
	Participant string `json:"participant,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// UserTypingData is carried by user-typing and user-stopped-typing.
type UserTypingData struct {
	SessionID string `json:"sessionId"`
	ChatID    string `json:"chatId"`
	SocketID  string `json:"socketId"`
	Timestamp string `json:"timestamp"`
}

type ErrorData struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
