package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// message
var msg = map[int]string{
	http.StatusBadRequest:          "invalid request",
	http.StatusNotFound:            "not found",
	http.StatusTooManyRequests:     "rate limit exceeded",
	http.StatusInternalServerError: "internal server error",
	http.StatusBadGateway:          "gateway request failed",
}

// Message returns the default error message for status.
func Message(status int) string {
	if m, ok := msg[status]; ok {
		return m
	}
	return http.StatusText(status)
}

// Error aborts the request with {"error": message, "details": details}. An empty
// message falls back to Message(status); nil details are left out.
func Error(c *gin.Context, status int, message string, details any) {
	if message == "" {
		message = Message(status)
	}
	body := gin.H{"error": message}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, body)
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
