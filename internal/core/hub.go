package core

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat-server/internal/store"
)

// maxRoomNameLength caps public room names; anything longer must be a
// private 64-hex identifier.
const maxRoomNameLength = 32

var roomIDPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Hub owns all live rooms and hands out exactly one coordinator per room
// identity, so there is a single authoritative mutator of each room's state.
type Hub struct {
	history store.HistoryLog
	limits  Limits
	log     *zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewHub creates a hub backed by the given history log.
func NewHub(history store.HistoryLog, limits Limits, logger *zerolog.Logger) *Hub {
	return &Hub{
		history: history,
		limits:  limits,
		log:     logger,
		rooms:   make(map[string]*Room),
	}
}

// Resolve maps a room name or private identifier to the room key. A 64-hex
// string addresses a private room directly; a name of up to 32 characters
// is hashed into the same key space.
func (h *Hub) Resolve(name string) (string, error) {
	if roomIDPattern.MatchString(name) {
		return name, nil
	}
	if name == "" {
		return "", ErrRoomNameRequired
	}
	if len(name) > maxRoomNameLength {
		return "", ErrRoomNameTooLong
	}
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:]), nil
}

// Room returns the coordinator for a key, creating it on first use.
func (h *Hub) Room(key string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[key]
	if !ok {
		room = NewRoom(key, h.history, h.limits, h.log)
		h.rooms[key] = room
	}
	return room
}
