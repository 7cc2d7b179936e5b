package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/core"
	"github.com/vovakirdan/roomchat-server/internal/metrics"
	"github.com/vovakirdan/roomchat-server/internal/proto"
)

const writeTimeout = 5 * time.Second

// WSHandler upgrades HTTP connections and bridges them to a room coordinator.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, log: logger}
}

// Serve resolves the room from the path, upgrades the connection, and runs
// the session until the connection closes.
// GET /api/room/:room/websocket
func (h *WSHandler) Serve(c *gin.Context) {
	key, err := h.hub.Resolve(c.Param("room"))
	if err != nil {
		status := stdhttp.StatusBadRequest
		if errors.Is(err, core.ErrRoomNameTooLong) {
			status = stdhttp.StatusNotFound
		}
		c.String(status, err.Error())
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	metrics.ConnectionsTotal.Inc()

	h.serveSession(c.Request.Context(), h.hub.Room(key), conn)
}

func (h *WSHandler) serveSession(ctx context.Context, room *core.Room, conn *websocket.Conn) {
	defer conn.CloseNow()

	wc := &wsConn{conn: conn}
	sess, err := room.Attach(ctx, wc)
	if err != nil {
		// Setup fault after a successful upgrade: report the detail in an
		// error payload, since close reasons are hidden from some clients,
		// then close with a distinguished code.
		h.log.Error().Err(err).Str("room", room.Key()).Msg("session setup failed")
		_ = wc.Send(proto.Error("session setup failed: " + err.Error()))
		_ = conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}
	defer room.Detach(sess)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			h.log.Debug().Err(err).Str("session_id", sess.ID()).Msg("ws connection closed")
			return
		}
		room.HandleInbound(ctx, sess, data)
	}
}

// wsConn adapts a websocket connection to the coordinator's Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Send(payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *wsConn) Close(status core.CloseStatus, reason string) error {
	return c.conn.Close(websocket.StatusCode(status), reason)
}
