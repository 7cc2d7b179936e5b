package core

import "github.com/google/uuid"

// sessionState is the per-session protocol phase.
type sessionState int

const (
	// stateAwaitingIdentity: connected, first payload (the name) not yet
	// received. Broadcasts buffer in the pending queue.
	stateAwaitingIdentity sessionState = iota
	// stateActive: identity accepted, participates in broadcasts.
	stateActive
	// stateClosed: torn down; no further sends are attempted.
	stateClosed
)

// Session is the server-side state for one connected participant.
type Session struct {
	id    string
	conn  Conn
	name  string
	state sessionState

	// quit marks the connection as broken so no further send is attempted
	// on a transport known to be dead.
	quit bool

	// pending buffers serialized payloads until the participant announces
	// its name, so an unannounced connection never sees roster or history.
	pending [][]byte
}

func newSession(conn Conn) *Session {
	return &Session{
		id:   uuid.NewString(),
		conn: conn,
	}
}

// ID returns the session identifier, used for logging.
func (s *Session) ID() string { return s.id }

// Name returns the participant's display name, empty until announced.
func (s *Session) Name() string { return s.name }
