package handlers

import (
	"log/slog"
	"net/http"

	"chat-relay/internal/room"

	"github.com/gin-gonic/gin"
)

// StatsSource reports room membership and its self-check.
type StatsSource interface {
	GetConnectionStats() room.Stats
	CheckConsistency() error
}

// StatsResponse is room.Stats plus the registry/transport cross-check result.
type StatsResponse struct {
	room.Stats
	Consistent bool `json:"consistent"`
}

type StatsHandler struct {
	stats StatsSource
}

func NewStatsHandler(stats StatsSource) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats godoc
// @Summary Room statistics
// @Description Rooms, their members and whether the registry matches the transport
// @Tags stats
// @Produce json
// @Success 200 {object} StatsResponse
// @Router /stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	consistent := true
	if err := h.stats.CheckConsistency(); err != nil {
		slog.Error("Room registry inconsistent", "error", err)
		consistent = false
	}

	c.JSON(http.StatusOK, StatsResponse{
		Stats:      h.stats.GetConnectionStats(),
		Consistent: consistent,
	})
}
