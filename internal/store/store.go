package store

import (
	"context"
	"time"
)

// HistoryLog is the append-only message history for all rooms. Records are
// keyed per room by a lexicographically sortable string derived from the
// message timestamp, so a reverse scan over keys yields most-recent-first.
type HistoryLog interface {
	// Append durably stores a record under the given room and key.
	Append(ctx context.Context, room, key string, value []byte) error

	// ListRecent returns up to limit records for a room, most recent first.
	ListRecent(ctx context.Context, room string, limit int) ([][]byte, error)

	// Close closes the underlying database connection.
	Close() error
}

// KeyForTimestamp derives the history key for a millisecond timestamp.
// The fixed-width ISO-8601 form sorts lexicographically in time order.
func KeyForTimestamp(ts int64) string {
	return time.UnixMilli(ts).UTC().Format("2006-01-02T15:04:05.000Z")
}
