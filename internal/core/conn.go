package core

// CloseStatus mirrors WebSocket close codes without binding the core to a
// transport library.
type CloseStatus int

const (
	// CloseStatusPolicyViolation closes a connection that broke protocol
	// limits, such as an oversized display name.
	CloseStatusPolicyViolation CloseStatus = 1009
	// CloseStatusInternalError closes a connection after a server-side fault.
	CloseStatusInternalError CloseStatus = 1011
)

// Conn is the transport-level connection a session writes to. Send delivers
// one serialized payload; a non-nil error means the connection is dead and
// the session will be pruned.
type Conn interface {
	Send(payload []byte) error
	Close(status CloseStatus, reason string) error
}
