package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRoomID returns a fresh private room identifier: 64 hex characters,
// the same shape room name hashes resolve to.
func NewRoomID() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
