// Package storefake provides an in-memory SessionStore for tests, with
// per-call failure injection to exercise fail-closed paths.
package storefake

import (
	"context"
	"sort"
	"sync"

	"pairboard/pkg/types"
)

// FakeSessionStore is a concurrency-safe in-memory SessionStore.
type FakeSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session

	// GetErr, when set, is returned by GetByID/GetByRoomID/List* calls.
	GetErr error
	// UpdateErrFor returns UpdateErr from Update for the matching session id.
	UpdateErrFor string
	UpdateErr    error
}

// New creates an empty fake session store.
func New() *FakeSessionStore {
	return &FakeSessionStore{sessions: make(map[string]*types.Session)}
}

func (f *FakeSessionStore) Create(_ context.Context, session *types.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *FakeSessionStore) GetByID(_ context.Context, id string) (*types.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (f *FakeSessionStore) GetByRoomID(_ context.Context, roomID string) (*types.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	for _, session := range f.sessions {
		if session.RoomID == roomID {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *FakeSessionStore) Update(_ context.Context, session *types.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.UpdateErr != nil && session.ID == f.UpdateErrFor {
		return f.UpdateErr
	}
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *FakeSessionStore) ListActive(_ context.Context, limit int64) ([]*types.Session, error) {
	return f.list(func(s *types.Session) bool { return s.Status == types.StatusActive }, limit)
}

func (f *FakeSessionStore) ListCompletedFor(_ context.Context, identity string, limit int64) ([]*types.Session, error) {
	return f.list(func(s *types.Session) bool {
		return s.Status == types.StatusCompleted && (s.Host == identity || s.Participant == identity)
	}, limit)
}

func (f *FakeSessionStore) list(match func(*types.Session) bool, limit int64) ([]*types.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.GetErr != nil {
		return nil, f.GetErr
	}
	sessions := make([]*types.Session, 0)
	for _, session := range f.sessions {
		if match(session) {
			copied := *session
			sessions = append(sessions, &copied)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	if int64(len(sessions)) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (f *FakeSessionStore) Ping(_ context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.GetErr
}
