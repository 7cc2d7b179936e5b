package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/metrics"
	"github.com/vovakirdan/roomchat-server/internal/proto"
	"github.com/vovakirdan/roomchat-server/internal/store"
)

// AnonymousName is assigned when the identity payload carries no name.
const AnonymousName = "anonymous"

const persistTimeout = 5 * time.Second

// Limits bounds inbound payloads and the replayed history window.
type Limits struct {
	HistoryLimit     int
	MaxNameLength    int
	MaxMessageLength int
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		HistoryLimit:     100,
		MaxNameLength:    32,
		MaxMessageLength: 256,
	}
}

// Room coordinates a single chat room: it owns the roster of live sessions,
// assigns a strictly increasing timestamp to every chat message, fans
// messages out to all participants, and persists a bounded backlog.
//
// All roster and timestamp mutation happens under the room lock, so event
// handlers for the same room are serialized. History writes run outside the
// lock and never block delivery.
type Room struct {
	key     string
	limits  Limits
	history store.HistoryLog
	log     zerolog.Logger

	mu            sync.Mutex
	sessions      []*Session
	lastTimestamp int64

	now func() time.Time
}

// NewRoom constructs a room with an empty roster. history may be nil, in
// which case no backlog is replayed or persisted.
func NewRoom(key string, history store.HistoryLog, limits Limits, logger *zerolog.Logger) *Room {
	return &Room{
		key:     key,
		limits:  limits,
		history: history,
		log:     logger.With().Str("room", key).Logger(),
		now:     time.Now,
	}
}

// Key returns the room's 64-hex identity.
func (r *Room) Key() string { return r.key }

// Attach registers a new connection with the room. The returned session is
// queued up with join announcements for every named participant and the
// most recent history window in chronological order; nothing is sent until
// the participant announces its name.
func (r *Room) Attach(ctx context.Context, conn Conn) (*Session, error) {
	s := newSession(conn)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.sessions {
		if other.name != "" {
			s.pending = append(s.pending, proto.Joined(other.name))
		}
	}

	if r.history != nil {
		recent, err := r.history.ListRecent(ctx, r.key, r.limits.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		// Most-recent-first from the store; replay oldest first.
		for i := len(recent) - 1; i >= 0; i-- {
			s.pending = append(s.pending, recent[i])
		}
	}

	r.sessions = append(r.sessions, s)
	metrics.ActiveSessions.Inc()
	r.log.Debug().Str("session_id", s.id).Msg("session attached")

	return s, nil
}

// HandleInbound processes one payload from a session. The first payload
// must announce the participant's name; every later payload is a chat
// message. Any failure is reported back to this session only.
func (r *Room) HandleInbound(ctx context.Context, s *Session, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.quit || s.state == stateClosed {
		// A payload arrived on a connection already marked broken.
		_ = s.conn.Close(CloseStatusInternalError, "connection broken")
		return
	}

	var in proto.Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		r.sendError(s, "malformed payload: "+err.Error())
		return
	}

	if s.state == stateAwaitingIdentity {
		r.handleIdentity(s, in)
		return
	}
	r.handleChat(s, in)
}

// Detach removes a session after its connection closed or errored. Safe to
// call for sessions already pruned during a broadcast; the departure is
// announced at most once.
func (r *Room) Detach(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.quit {
		s.state = stateClosed
		return
	}
	s.quit = true
	s.state = stateClosed

	if !r.removeLocked(s) {
		return
	}
	r.log.Debug().Str("session_id", s.id).Str("participant", s.name).Msg("session detached")
	if s.name != "" {
		r.broadcastLocked(proto.Quit(s.name))
	}
}

func (r *Room) handleIdentity(s *Session, in proto.Inbound) {
	name := in.Name
	if name == "" {
		name = AnonymousName
	}
	if len(name) > r.limits.MaxNameLength {
		_ = s.conn.Send(proto.Error("Name too long."))
		_ = s.conn.Close(CloseStatusPolicyViolation, "Name too long.")
		s.quit = true
		s.state = stateClosed
		// Never joined, so no departure announcement.
		r.removeLocked(s)
		return
	}

	// Deliver everything queued since the connection was accepted, in order.
	for _, payload := range s.pending {
		if err := s.conn.Send(payload); err != nil {
			r.log.Warn().Err(err).Str("session_id", s.id).Msg("flush to new session failed")
			s.quit = true
			s.state = stateClosed
			r.removeLocked(s)
			return
		}
	}
	s.pending = nil

	s.name = name
	s.state = stateActive
	r.broadcastLocked(proto.Joined(name))
	_ = s.conn.Send(proto.Ready())

	r.log.Info().Str("session_id", s.id).Str("participant", name).Msg("participant joined")
}

func (r *Room) handleChat(s *Session, in proto.Inbound) {
	if len(in.Message) > r.limits.MaxMessageLength {
		r.sendError(s, "Message too long.")
		return
	}

	// Strictly increasing even when the clock stalls or regresses.
	ts := r.now().UnixMilli()
	if ts <= r.lastTimestamp {
		ts = r.lastTimestamp + 1
	}
	r.lastTimestamp = ts

	payload := proto.Chat(proto.ChatRecord{
		Name:      s.name,
		Message:   in.Message,
		Timestamp: ts,
	})
	r.broadcastLocked(payload)
	metrics.MessagesTotal.Inc()

	// Persistence never blocks delivery; a failed write is logged and
	// counted, and the message stays live-only.
	if r.history != nil {
		go r.persist(store.KeyForTimestamp(ts), payload)
	}
}

// broadcastLocked delivers one serialized payload to every named session
// and buffers it for unannounced ones. Sessions whose send fails are pruned
// in the same pass, then each pruned participant's departure is announced,
// so the departure fanout never sees the dead session in the roster.
func (r *Room) broadcastLocked(payload []byte) {
	var quitters []*Session

	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if s.name == "" {
			s.pending = append(s.pending, payload)
			kept = append(kept, s)
			continue
		}
		if err := s.conn.Send(payload); err != nil {
			r.log.Warn().Err(err).Str("session_id", s.id).Str("participant", s.name).Msg("send failed, pruning session")
			s.quit = true
			s.state = stateClosed
			metrics.ActiveSessions.Dec()
			quitters = append(quitters, s)
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(r.sessions); i++ {
		r.sessions[i] = nil
	}
	r.sessions = kept

	for _, q := range quitters {
		r.broadcastLocked(proto.Quit(q.name))
	}
}

func (r *Room) removeLocked(target *Session) bool {
	for i, s := range r.sessions {
		if s == target {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			metrics.ActiveSessions.Dec()
			return true
		}
	}
	return false
}

func (r *Room) sendError(s *Session, msg string) {
	_ = s.conn.Send(proto.Error(msg))
}

func (r *Room) persist(key string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.history.Append(ctx, r.key, key, payload); err != nil {
		metrics.HistoryAppendFailures.Inc()
		r.log.Error().Err(err).Str("key", key).Msg("history append failed")
	}
}
