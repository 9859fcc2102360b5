package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
)

var ErrUserNotFound = errors.New("user not found")

// ChatStore is the persisted chat/participant/block-list store the relay
// reads to authorize routing and restore group membership on connect.
// Content persistence itself happens elsewhere; the relay only reads,
// except for the presence columns it maintains.
type ChatStore interface {
	// ChatIDsForUser returns the ids of every chat the user participates in.
	ChatIDsForUser(ctx context.Context, userID string) ([]string, error)

	// GetUser returns the user's profile record.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// IsBlocked reports whether userID has blocked blockedID.
	IsBlocked(ctx context.Context, userID, blockedID string) (bool, error)

	// SetPresence persists the online flag and last-connection timestamp.
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}
