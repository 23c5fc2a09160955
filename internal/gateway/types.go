package gateway

import "encoding/json"

// SendResult is the provider's answer to a send operation.
type SendResult struct {
	ID  string
	Raw map[string]any
}

// Buttons is an interactive buttons message. Buttons and HeaderImage are passed
// through to the provider untouched.
type Buttons struct {
	ChatID      string          `json:"chatId"`
	Header      string          `json:"header"`
	Body        string          `json:"body"`
	Footer      string          `json:"footer"`
	Buttons     json.RawMessage `json:"buttons"`
	Session     string          `json:"session"`
	HeaderImage json.RawMessage `json:"headerImage,omitempty"`
}

type sendTextRequest struct {
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
	Session string `json:"session"`
}

type sendSeenRequest struct {
	ChatID      string `json:"chatId"`
	MessageID   string `json:"messageId"`
	Session     string `json:"session"`
	Participant string `json:"participant,omitempty"`
}

type typingRequest struct {
	ChatID  string `json:"chatId"`
	Session string `json:"session"`
}

// messageID extracts the id from a send response. The provider reports it either
// as a plain string or as an object carrying a "_serialized" key.
func messageID(raw map[string]any) string {
	switch id := raw["id"].(type) {
	case string:
		return id
	case map[string]any:
		if s, ok := id["_serialized"].(string); ok {
			return s
		}
	}
	return ""
}
