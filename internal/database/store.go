// Package database holds the durable session repository. It is the source
// of truth for session state; the authorization store is derived from it.
package database

import (
	"context"

	"pairboard/pkg/types"
)

// SessionStore is the persistence contract for sessions. Lookups return
// (nil, nil) when no session matches; errors are reserved for store
// failures, which callers must treat as fail-closed.
type SessionStore interface {
	Create(ctx context.Context, session *types.Session) error
	// GetByID fetches a session by its identifier.
	GetByID(ctx context.Context, id string) (*types.Session, error)
	// GetByRoomID fetches the session owning a room. RoomID is 1:1 with a
	// session for the session's lifetime.
	GetByRoomID(ctx context.Context, roomID string) (*types.Session, error)
	Update(ctx context.Context, session *types.Session) error
	// ListActive returns active sessions, newest first, capped at limit.
	ListActive(ctx context.Context, limit int64) ([]*types.Session, error)
	// ListCompletedFor returns completed sessions where identity was host or
	// participant, newest first, capped at limit.
	ListCompletedFor(ctx context.Context, identity string, limit int64) ([]*types.Session, error)
	// Ping verifies store connectivity for health reporting.
	Ping(ctx context.Context) error
}
