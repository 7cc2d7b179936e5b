package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/proto"
)

// reconnectFloor is the minimum spacing between successive connection
// attempts, measured from when the previous connection was opened.
const reconnectFloor = 10 * time.Second

const sendTimeout = 5 * time.Second

// ErrNotConnected is returned by Send while no connection is live.
var ErrNotConnected = errors.New("not connected")

// Handler receives the agent's view of the room. HandleReady fires after
// history replay completes; welcome is true only on the first ready of the
// logical session, so informational banners show once across reconnects.
// HandleDisconnect fires when the connection drops and any displayed roster
// should be cleared.
type Handler interface {
	HandleChat(name, text string, timestamp int64)
	HandleJoined(name string)
	HandleQuit(name string)
	HandleReady(welcome bool)
	HandleError(msg string)
	HandleDisconnect()
}

// Agent maintains one logical chat session across physical reconnects. It
// announces the participant's name on every (re)connection, suppresses chat
// records already rendered from an earlier connection's backlog replay, and
// paces reconnect attempts.
type Agent struct {
	url     string
	name    string
	handler Handler
	log     zerolog.Logger

	// lastSeen is the highest chat timestamp already handed to the handler;
	// replayed duplicates at or below it are dropped.
	lastSeen int64
	welcomed bool

	mu   sync.Mutex
	conn *websocket.Conn
}

// New builds an agent for one logical session against the room websocket URL.
func New(url, name string, handler Handler, logger *zerolog.Logger) *Agent {
	return &Agent{
		url:     url,
		name:    name,
		handler: handler,
		log:     logger.With().Str("component", "sync_agent").Logger(),
	}
}

// Run connects and reconnects until ctx is canceled. Attempts are unbounded;
// each reconnect waits out the remainder of the floor since the previous
// connection started.
func (a *Agent) Run(ctx context.Context) error {
	for {
		start := time.Now()

		err := a.connectOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.log.Warn().Err(err).Msg("connection lost, reconnecting")
		a.handler.HandleDisconnect()

		select {
		case <-time.After(reconnectDelay(time.Since(start))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send submits one chat message over the current connection.
func (a *Agent) Send(text string) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, proto.Inbound{Message: text}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (a *Agent) connectOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, a.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	// Identity goes first; the server flushes roster and backlog in response.
	if err := wsjson.Write(ctx, conn, proto.Inbound{Name: a.name}); err != nil {
		return fmt.Errorf("send identity: %w", err)
	}

	a.setConn(conn)
	defer a.setConn(nil)

	for {
		var payload proto.Outbound
		if err := wsjson.Read(ctx, conn, &payload); err != nil {
			return fmt.Errorf("read payload: %w", err)
		}
		a.dispatch(payload)
	}
}

func (a *Agent) dispatch(p proto.Outbound) {
	switch {
	case p.Error != "":
		a.handler.HandleError(p.Error)
	case p.Joined != "":
		a.handler.HandleJoined(p.Joined)
	case p.Quit != "":
		a.handler.HandleQuit(p.Quit)
	case p.Ready:
		welcome := !a.welcomed
		a.welcomed = true
		a.handler.HandleReady(welcome)
	default:
		if p.Timestamp <= a.lastSeen {
			// Already rendered via backlog or a previous connection.
			return
		}
		a.lastSeen = p.Timestamp
		a.handler.HandleChat(p.Name, p.Message, p.Timestamp)
	}
}

func (a *Agent) setConn(conn *websocket.Conn) {
	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
}

// reconnectDelay returns how long to wait before the next attempt given how
// long the previous connection lasted.
func reconnectDelay(elapsed time.Duration) time.Duration {
	if elapsed >= reconnectFloor {
		return 0
	}
	return reconnectFloor - elapsed
}
