package handlers

import (
	"chat-relay/internal/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

type WSHandler struct {
	mux      *websocket.Multiplexer
	upgrader gorilla.Upgrader
}

func NewWSHandler(mux *websocket.Multiplexer, allowedOrigin string) *WSHandler {
	return &WSHandler{
		mux:      mux,
		upgrader: websocket.NewUpgrader(allowedOrigin),
	}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Establish a WebSocket connection for session room events
// @Tags websocket
// @Success 101 "Switching Protocols - WebSocket connection established"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	websocket.ServeWS(h.mux, &h.upgrader, c.Writer, c.Request)
}
