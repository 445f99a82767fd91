// Package session implements the session lifecycle: the HTTP-facing
// operations that mutate the durable session store and keep the room
// authorization store in sync with it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pairboard/internal/audit"
	"pairboard/internal/authstore"
	"pairboard/internal/database"
	"pairboard/pkg/types"
)

const (
	// listLimit caps the active and recent session listings.
	listLimit = 20
	// endAllLimit bounds one admin bulk pass.
	endAllLimit = 1000

	lockStripes = 64
)

// Coordinator owns all session mutations. Mutations on the same session are
// serialized through striped locks so two concurrent joins cannot both
// observe an empty participant slot.
type Coordinator struct {
	store     database.SessionStore
	authStore authstore.Store
	auditLog  audit.Logger
	log       zerolog.Logger

	locks [lockStripes]sync.Mutex
}

// NewCoordinator creates a session coordinator. auditLog may be nil when no
// audit sink is configured.
func NewCoordinator(store database.SessionStore, authStore authstore.Store, auditLog audit.Logger, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		authStore: authStore,
		auditLog:  auditLog,
		log:       log.With().Str("component", "session").Logger(),
	}
}

func (c *Coordinator) lock(sessionID string) *sync.Mutex {
	return &c.locks[xxhash.Sum64String(sessionID)%lockStripes]
}

// Create starts a new active session hosted by host and authorizes the host
// for its room.
func (c *Coordinator) Create(ctx context.Context, host, problem, difficulty string) (*types.Session, error) {
	if problem == "" || difficulty == "" {
		return nil, ErrMissingMetadata
	}

	session := &types.Session{
		ID:         uuid.NewString(),
		RoomID:     "room_" + uuid.NewString(),
		Host:       host,
		Problem:    problem,
		Difficulty: difficulty,
		Status:     types.StatusActive,
		CreatedAt:  time.Now().UTC(),
	}

	if err := c.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := c.authStore.Authorize(ctx, session.RoomID, host); err != nil {
		return nil, fmt.Errorf("failed to authorize host for room: %w", err)
	}

	c.log.Info().Str("session", session.ID).Str("room", session.RoomID).Str("host", host).Msg("session created")
	return session, nil
}

// Get returns a session by id.
func (c *Coordinator) Get(ctx context.Context, id string) (*types.Session, error) {
	session, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ListActive returns active sessions, newest first.
func (c *Coordinator) ListActive(ctx context.Context) ([]*types.Session, error) {
	return c.store.ListActive(ctx, listLimit)
}

// ListRecentFor returns completed sessions where identity took part.
func (c *Coordinator) ListRecentFor(ctx context.Context, identity string) ([]*types.Session, error) {
	return c.store.ListCompletedFor(ctx, identity, listLimit)
}

// Join fills the session's participant slot with caller and authorizes them
// for the room.
func (c *Coordinator) Join(ctx context.Context, id, caller string) (*types.Session, error) {
	mu := c.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.IsActive() {
		return nil, ErrSessionCompleted
	}
	if session.Host == caller {
		return nil, ErrSelfJoin
	}
	if session.HasParticipant() {
		return nil, ErrSessionFull
	}

	session.Participant = caller
	if err := c.store.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save participant: %w", err)
	}
	if err := c.authStore.Authorize(ctx, session.RoomID, caller); err != nil {
		return nil, fmt.Errorf("failed to authorize participant for room: %w", err)
	}

	c.log.Info().Str("session", session.ID).Str("participant", caller).Msg("participant joined")
	return session, nil
}

// Leave vacates the participant slot and revokes the caller's room
// authorization. Only the current participant may leave.
func (c *Coordinator) Leave(ctx context.Context, id, caller string) (*types.Session, error) {
	mu := c.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.HasParticipant() {
		return nil, ErrNoParticipant
	}
	if session.Participant != caller {
		return nil, ErrNotParticipant
	}

	if err := c.authStore.Revoke(ctx, session.RoomID, caller); err != nil {
		return nil, fmt.Errorf("failed to revoke room authorization: %w", err)
	}
	session.Participant = ""
	if err := c.store.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to clear participant: %w", err)
	}

	c.log.Info().Str("session", session.ID).Str("participant", caller).Msg("participant left")
	return session, nil
}

// End completes the session. Only the host may end it, and a completed
// session's room keeps no authorizations.
func (c *Coordinator) End(ctx context.Context, id, caller string) (*types.Session, error) {
	mu := c.lock(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := c.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Host != caller {
		return nil, ErrNotHost
	}
	if !session.IsActive() {
		return nil, ErrAlreadyCompleted
	}

	if err := c.complete(ctx, session); err != nil {
		return nil, err
	}

	c.log.Info().Str("session", session.ID).Msg("session ended")
	return session, nil
}

// EndAll completes every active session on behalf of an administrator. Each
// session is handled independently; one failure never aborts the batch. The
// outcome is written to the audit log.
func (c *Coordinator) EndAll(ctx context.Context, performedBy string) ([]types.EndAllResult, error) {
	sessions, err := c.store.ListActive(ctx, endAllLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	results := make([]types.EndAllResult, 0, len(sessions))
	for _, session := range sessions {
		mu := c.lock(session.ID)
		mu.Lock()
		err := c.complete(ctx, session)
		mu.Unlock()

		if err != nil {
			c.log.Error().Err(err).Str("session", session.ID).Msg("failed to end session in bulk operation")
			results = append(results, types.EndAllResult{SessionID: session.ID, OK: false, Error: err.Error()})
			continue
		}
		results = append(results, types.EndAllResult{SessionID: session.ID, OK: true})
	}

	if c.auditLog != nil {
		details := map[string]any{"count": len(results), "results": results}
		if err := c.auditLog.Record(ctx, "end_all_sessions", performedBy, details); err != nil {
			// The batch already happened; losing the audit entry is logged
			// rather than surfaced as a failure of the operation.
			c.log.Error().Err(err).Msg("failed to record end-all audit entry")
		}
	}

	c.log.Info().Str("performed_by", performedBy).Int("count", len(results)).Msg("bulk end processed")
	return results, nil
}

// complete marks a session completed and clears its room authorizations.
// Callers hold the session's lock.
func (c *Coordinator) complete(ctx context.Context, session *types.Session) error {
	now := time.Now().UTC()
	session.Status = types.StatusCompleted
	session.EndedAt = &now

	if err := c.store.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if err := c.authStore.Clear(ctx, session.RoomID); err != nil {
		return fmt.Errorf("failed to clear room authorizations: %w", err)
	}
	return nil
}
