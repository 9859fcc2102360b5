package presence

import (
	"context"
	"time"
)

// Status is a user's cached presence snapshot.
type Status struct {
	UserID   string
	IsOnline bool
	LastSeen time.Time
}

// Store is the fast-path presence cache. The persisted last-seen lives in
// the chat database; this cache answers online checks without touching it
// and expires on its own if the gateway dies without marking users offline.
type Store interface {
	MarkOnline(ctx context.Context, userID string, at time.Time) error
	MarkOffline(ctx context.Context, userID string, at time.Time) error
	Get(ctx context.Context, userID string) (*Status, error)
	Close() error
}
