package handlers

import (
	"log/slog"
	"net/http"

	"chat-relay/pkg/response"

	"github.com/gin-gonic/gin"
)

// Provider webhook events that are forwarded to rooms.
const (
	WebhookMessage       = "message"
	WebhookMessageAny    = "message.any"
	WebhookMessageAck    = "message.ack"
	WebhookSessionStatus = "session.status"
)

// Notifier receives provider events destined for rooms.
type Notifier interface {
	NotifyNewMessage(sessionID, chatID string, messageData map[string]any)
	NotifyStatusChange(sessionID, chatID string, statusData map[string]any)
}

// WebhookEvent is the body the provider posts for every event.
type WebhookEvent struct {
	Event   string         `json:"event"`
	Session string         `json:"session"`
	Payload map[string]any `json:"payload"`
}

type WebhookHandler struct {
	notifier     Notifier
	messageEvent string
}

// NewWebhookHandler routes messages from messageEvent only, so a provider
// subscribed to both message events delivers each message once. An empty
// messageEvent means WebhookMessageAny.
func NewWebhookHandler(notifier Notifier, messageEvent string) *WebhookHandler {
	if messageEvent == "" {
		messageEvent = WebhookMessageAny
	}
	return &WebhookHandler{notifier: notifier, messageEvent: messageEvent}
}

// HandleWebhook godoc
// @Summary Provider webhook
// @Description Receive a provider event and push it to the matching room
// @Tags webhook
// @Accept json
// @Produce json
// @Param request body WebhookEvent true "Provider event"
// @Success 200 {object} map[string]interface{} "Event accepted or ignored"
// @Failure 400 {object} map[string]interface{} "Bad request - invalid body or missing session"
// @Router /webhook [post]
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	var ev WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid webhook body", err.Error())
		return
	}
	if ev.Event == "" || ev.Session == "" {
		response.Error(c, http.StatusBadRequest, "event and session are required", nil)
		return
	}
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}

	switch ev.Event {
	case h.messageEvent:
		chatID := messageChatID(ev.Payload)
		if chatID == "" {
			response.Error(c, http.StatusBadRequest, "payload.from is required", nil)
			return
		}
		h.notifier.NotifyNewMessage(ev.Session, chatID, ev.Payload)
	case WebhookMessageAck:
		h.notifier.NotifyStatusChange(ev.Session, messageChatID(ev.Payload), ev.Payload)
	case WebhookSessionStatus:
		h.notifier.NotifyStatusChange(ev.Session, "", ev.Payload)
	default:
		slog.Debug("Webhook event ignored", "event", ev.Event, "session", ev.Session)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// messageChatID is the other party of a message: the sender, or the recipient for
// messages sent from the session's own account.
func messageChatID(payload map[string]any) string {
	if fromMe, _ := payload["fromMe"].(bool); fromMe {
		to, _ := payload["to"].(string)
		return to
	}
	from, _ := payload["from"].(string)
	return from
}
