package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const apiKeyHeader = "X-Api-Key"

// Client talks to a WAHA-style WhatsApp HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListSessions returns every session known to the provider.
func (c *Client) ListSessions(ctx context.Context) ([]map[string]any, error) {
	var sessions []map[string]any
	if err := c.do(ctx, "listSessions", http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) GetSessionStatus(ctx context.Context, sessionID string) (map[string]any, error) {
	var status map[string]any
	path := "/api/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "getSessionStatus", http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

func (c *Client) GetChatInfo(ctx context.Context, chatID, sessionID string) (map[string]any, error) {
	var info map[string]any
	path := "/api/" + url.PathEscape(sessionID) + "/chats/" + url.PathEscape(chatID)
	if err := c.do(ctx, "getChatInfo", http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) SendText(ctx context.Context, chatID, text, sessionID string) (*SendResult, error) {
	req := sendTextRequest{ChatID: chatID, Text: text, Session: sessionID}
	return c.send(ctx, "sendText", "/api/sendText", req)
}

func (c *Client) SendButtons(ctx context.Context, msg Buttons) (*SendResult, error) {
	return c.send(ctx, "sendButtons", "/api/sendButtons", msg)
}

// SendSeen marks a message as read. participant is only needed for group chats.
func (c *Client) SendSeen(ctx context.Context, chatID, messageID, sessionID, participant string) error {
	req := sendSeenRequest{ChatID: chatID, MessageID: messageID, Session: sessionID, Participant: participant}
	return c.do(ctx, "sendSeen", http.MethodPost, "/api/sendSeen", req, nil)
}

func (c *Client) StartTyping(ctx context.Context, chatID, sessionID string) error {
	return c.do(ctx, "startTyping", http.MethodPost, "/api/startTyping", typingRequest{ChatID: chatID, Session: sessionID}, nil)
}

func (c *Client) StopTyping(ctx context.Context, chatID, sessionID string) error {
	return c.do(ctx, "stopTyping", http.MethodPost, "/api/stopTyping", typingRequest{ChatID: chatID, Session: sessionID}, nil)
}

func (c *Client) send(ctx context.Context, op, path string, body any) (*SendResult, error) {
	var raw map[string]any
	if err := c.do(ctx, op, http.MethodPost, path, body, &raw); err != nil {
		return nil, err
	}
	return &SendResult{ID: messageID(raw), Raw: raw}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "gateway %s: encode request", op)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrapf(err, "gateway %s: build request", op)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "gateway %s", op)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "gateway %s: read response", op)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("Gateway call failed", "op", op, "status", resp.StatusCode, "body", string(data))
		return &Error{Op: op, StatusCode: resp.StatusCode, Detail: decodeDetail(data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "gateway %s: decode response", op)
	}
	return nil
}

func decodeDetail(data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	var detail any
	if err := json.Unmarshal(trimmed, &detail); err != nil {
		return string(trimmed)
	}
	return detail
}
