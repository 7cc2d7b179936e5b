package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/utils"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{log: logger}
}

// CreateRoom mints a private room identifier. The room itself materializes
// lazily on the first connection to it.
// POST /api/room
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	id := utils.NewRoomID()
	h.log.Info().Str("room", id).Msg("private room created")

	c.Header("Access-Control-Allow-Origin", "*")
	c.String(http.StatusOK, id)
}
