package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"chat-relay/internal/gateway"
	"chat-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// SessionGateway is the read side of the provider gateway.
type SessionGateway interface {
	ListSessions(ctx context.Context) ([]map[string]any, error)
	GetSessionStatus(ctx context.Context, sessionID string) (map[string]any, error)
	GetChatInfo(ctx context.Context, chatID, sessionID string) (map[string]any, error)
}

type SessionHandler struct {
	gateway SessionGateway
}

func NewSessionHandler(gw SessionGateway) *SessionHandler {
	return &SessionHandler{gateway: gw}
}

// ListSessions godoc
// @Summary List provider sessions
// @Tags sessions
// @Produce json
// @Success 200 {array} map[string]interface{}
// @Failure 502 {object} map[string]interface{} "Gateway error"
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.gateway.ListSessions(c.Request.Context())
	if err != nil {
		gatewayError(c, "Error listing sessions", err)
		return
	}
	response.OK(c, sessions)
}

// GetSession godoc
// @Summary Provider session status
// @Tags sessions
// @Produce json
// @Param session path string true "Session name"
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{} "Gateway error"
// @Router /sessions/{session} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	status, err := h.gateway.GetSessionStatus(c.Request.Context(), c.Param("session"))
	if err != nil {
		gatewayError(c, "Error getting session status", err)
		return
	}
	response.OK(c, status)
}

// GetChat godoc
// @Summary Chat information
// @Tags sessions
// @Produce json
// @Param session path string true "Session name"
// @Param chatId path string true "Chat ID"
// @Success 200 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{} "Gateway error"
// @Router /sessions/{session}/chats/{chatId} [get]
func (h *SessionHandler) GetChat(c *gin.Context) {
	info, err := h.gateway.GetChatInfo(c.Request.Context(), c.Param("chatId"), c.Param("session"))
	if err != nil {
		gatewayError(c, "Error getting chat info", err)
		return
	}
	response.OK(c, info)
}

func gatewayError(c *gin.Context, message string, err error) {
	slog.Error(message, "path", c.Request.URL.Path, "error", err)
	response.Error(c, http.StatusBadGateway, message, gateway.Details(err))
}
