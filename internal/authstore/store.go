// Package authstore tracks which identities may open a real-time connection
// to each room. It is a derivative of the session repository: every entry is
// reconstructable from a session's host/participant assignment, and the
// gateway re-populates it on cache misses.
package authstore

import (
	"context"
	"sync"
)

// Store is the room authorization contract. All operations are safe for
// concurrent use from connection handlers and HTTP handlers.
type Store interface {
	// Authorize idempotently adds identity to the room's allowed set,
	// creating the set if absent.
	Authorize(ctx context.Context, roomID, identity string) error
	// Revoke removes identity from the room's allowed set. The room entry is
	// removed entirely once its set becomes empty. No-op if room or identity
	// is absent.
	Revoke(ctx context.Context, roomID, identity string) error
	// IsAuthorized reports whether identity may connect to the room. Pure
	// lookup, no side effects.
	IsAuthorized(ctx context.Context, roomID, identity string) (bool, error)
	// ListAuthorized returns the identities currently allowed in the room,
	// empty if the room is unknown.
	ListAuthorized(ctx context.Context, roomID string) ([]string, error)
	// Clear removes the room entry and every identity in it. Used when a
	// session completes.
	Clear(ctx context.Context, roomID string) error
	// Rooms returns the ids of all rooms with at least one authorized
	// identity.
	Rooms(ctx context.Context) ([]string, error)
}

// MemoryStore is the default process-local Store. State is lost on restart
// by design; the gateway's repository fallback rebuilds it lazily.
type MemoryStore struct {
	mu      sync.RWMutex
	allowed map[string]map[string]struct{} // roomID -> set of identities
}

// NewMemoryStore creates an empty in-memory authorization store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		allowed: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Authorize(_ context.Context, roomID, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.allowed[roomID]
	if !ok {
		set = make(map[string]struct{})
		s.allowed[roomID] = set
	}
	set[identity] = struct{}{}
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, roomID, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.allowed[roomID]
	if !ok {
		return nil
	}
	delete(set, identity)
	if len(set) == 0 {
		delete(s.allowed, roomID)
	}
	return nil
}

func (s *MemoryStore) IsAuthorized(_ context.Context, roomID, identity string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.allowed[roomID]
	if !ok {
		return false, nil
	}
	_, ok = set[identity]
	return ok, nil
}

func (s *MemoryStore) ListAuthorized(_ context.Context, roomID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.allowed[roomID]
	if !ok {
		return nil, nil
	}
	identities := make([]string, 0, len(set))
	for identity := range set {
		identities = append(identities, identity)
	}
	return identities, nil
}

func (s *MemoryStore) Clear(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.allowed, roomID)
	return nil
}

func (s *MemoryStore) Rooms(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]string, 0, len(s.allowed))
	for roomID := range s.allowed {
		rooms = append(rooms, roomID)
	}
	return rooms, nil
}
