package core

import "errors"

var (
	// ErrRoomNameRequired is returned when a room is addressed with an
	// empty name.
	ErrRoomNameRequired = errors.New("room name required")
	// ErrRoomNameTooLong is returned when a public room name exceeds the
	// maximum length and is not a private room identifier.
	ErrRoomNameTooLong = errors.New("room name too long")
)
