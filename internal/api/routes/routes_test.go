package routes

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-relay/internal/gateway"
	"chat-relay/internal/room"
	"chat-relay/internal/websocket"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct{}

func (stubGateway) SendText(context.Context, string, string, string) (*gateway.SendResult, error) {
	return &gateway.SendResult{ID: "id"}, nil
}
func (stubGateway) SendButtons(context.Context, gateway.Buttons) (*gateway.SendResult, error) {
	return &gateway.SendResult{ID: "id"}, nil
}
func (stubGateway) SendSeen(context.Context, string, string, string, string) error { return nil }
func (stubGateway) StartTyping(context.Context, string, string) error              { return nil }
func (stubGateway) StopTyping(context.Context, string, string) error               { return nil }
func (stubGateway) ListSessions(context.Context) ([]map[string]any, error) {
	return []map[string]any{}, nil
}
func (stubGateway) GetSessionStatus(_ context.Context, s string) (map[string]any, error) {
	return map[string]any{"name": s}, nil
}
func (stubGateway) GetChatInfo(_ context.Context, c, _ string) (map[string]any, error) {
	return map[string]any{"id": c}, nil
}

type denyAll struct{}

func (denyAll) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func newTestRouter(opts Options) (*Router, *websocket.Multiplexer) {
	mux := websocket.NewMultiplexer(websocket.NewHub(), room.NewRegistry(), stubGateway{})
	r := NewRouter(mux, stubGateway{}, opts)
	r.SetupRoutes()
	return r, mux
}

func TestRouter_Endpoints(t *testing.T) {
	r, _ := newTestRouter(Options{FrontendURL: "*"})

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{http.MethodGet, "/health", "", http.StatusOK, `{"status":"ok"}`},
		{http.MethodGet, "/api/v1/stats", "", http.StatusOK, `{"totalRooms":0,"totalConnections":0,"rooms":{},"consistent":true}`},
		{http.MethodGet, "/api/v1/sessions/s1", "", http.StatusOK, `{"name":"s1"}`},
		{http.MethodGet, "/api/v1/sessions/s1/chats/c1", "", http.StatusOK, `{"id":"c1"}`},
		{http.MethodPost, "/api/v1/webhook", `{"event":"session.status","session":"s1","payload":{}}`, http.StatusOK, `{"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.GetEngine().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestRouter_WebSocket(t *testing.T) {
	r, mux := newTestRouter(Options{FrontendURL: "*"})
	srv := httptest.NewServer(r.GetEngine())
	defer srv.Close()

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, []byte(`{"type":"join-session","data":{"sessionId":"s1","chatId":"c1"}}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"joined-session"`)

	assert.Equal(t, 1, mux.GetConnectionStats().TotalConnections)
}

func TestRouter_RateLimitedUpgrade(t *testing.T) {
	r, _ := newTestRouter(Options{FrontendURL: "*", Limiter: denyAll{}, WSRateLimit: 1})

	w := httptest.NewRecorder()
	r.GetEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
