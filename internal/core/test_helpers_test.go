package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/proto"
)

// fakeConn records sends in memory and can be told to fail.
type fakeConn struct {
	sent        [][]byte
	fail        bool
	closed      bool
	closeStatus CloseStatus
	closeReason string
}

func (c *fakeConn) Send(payload []byte) error {
	if c.fail {
		return errors.New("conn broken")
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close(status CloseStatus, reason string) error {
	c.closed = true
	c.closeStatus = status
	c.closeReason = reason
	return nil
}

func (c *fakeConn) payloads(t *testing.T) []proto.Outbound {
	t.Helper()
	out := make([]proto.Outbound, 0, len(c.sent))
	for _, raw := range c.sent {
		var p proto.Outbound
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("unmarshal sent payload %q: %v", raw, err)
		}
		out = append(out, p)
	}
	return out
}

func (c *fakeConn) chats(t *testing.T) []proto.Outbound {
	t.Helper()
	var out []proto.Outbound
	for _, p := range c.payloads(t) {
		if p.IsChat() {
			out = append(out, p)
		}
	}
	return out
}

func (c *fakeConn) countQuit(t *testing.T, name string) int {
	t.Helper()
	n := 0
	for _, p := range c.payloads(t) {
		if p.Quit == name {
			n++
		}
	}
	return n
}

type histRecord struct {
	room  string
	key   string
	value []byte
}

// memoryHistory is an in-memory HistoryLog for coordinator tests.
type memoryHistory struct {
	mu         sync.Mutex
	records    []histRecord
	failAppend bool
	failList   bool
}

func (m *memoryHistory) Append(_ context.Context, room, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errors.New("append failed")
	}
	m.records = append(m.records, histRecord{room: room, key: key, value: append([]byte(nil), value...)})
	return nil
}

func (m *memoryHistory) ListRecent(_ context.Context, room string, limit int) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errors.New("list failed")
	}
	var matched [][]byte
	for _, rec := range m.records {
		if rec.room == room {
			matched = append(matched, rec.value)
		}
	}
	// Records are appended in key order; return most recent first.
	var out [][]byte
	for i := len(matched) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, matched[i])
	}
	return out, nil
}

func (m *memoryHistory) Close() error { return nil }

func newTestRoom(history *memoryHistory) *Room {
	logger := zerolog.Nop()
	room := NewRoom("0000000000000000000000000000000000000000000000000000000000000000", nil, DefaultLimits(), &logger)
	if history != nil {
		room.history = history
	}
	return room
}

func freezeClock(r *Room, at time.Time) {
	r.now = func() time.Time { return at }
}

func attach(t *testing.T, r *Room) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	s, err := r.Attach(context.Background(), conn)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	return s, conn
}

func attachNamed(t *testing.T, r *Room, name string) (*Session, *fakeConn) {
	t.Helper()
	s, conn := attach(t, r)
	r.HandleInbound(context.Background(), s, identityPayload(name))
	if s.Name() != name {
		t.Fatalf("expected session name %q, got %q", name, s.Name())
	}
	return s, conn
}

func identityPayload(name string) []byte {
	b, _ := json.Marshal(proto.Inbound{Name: name})
	return b
}

func chatPayload(text string) []byte {
	b, _ := json.Marshal(proto.Inbound{Message: text})
	return b
}
