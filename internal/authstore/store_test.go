package authstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthorizeThenIsAuthorized(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	ok, err := store.IsAuthorized(ctx, "r1", "u1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Authorize(ctx, "r1", "u1"))

	ok, err = store.IsAuthorized(ctx, "r1", "u1")
	require.NoError(t, err)
	require.True(t, ok)

	// Same identity in another room stays unauthorized.
	ok, err = store.IsAuthorized(ctx, "r2", "u1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Authorize(ctx, "r1", "u1"))
	require.NoError(t, store.Authorize(ctx, "r1", "u1"))

	identities, err := store.ListAuthorized(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, identities, 1)
}

func TestRevokeRemovesAuthorization(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Authorize(ctx, "r1", "u1"))
	require.NoError(t, store.Authorize(ctx, "r1", "u2"))
	require.NoError(t, store.Revoke(ctx, "r1", "u1"))

	ok, err := store.IsAuthorized(ctx, "r1", "u1")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = store.IsAuthorized(ctx, "r1", "u2")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRevokeLastIdentityRemovesRoom(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Authorize(ctx, "r1", "u1"))
	require.NoError(t, store.Revoke(ctx, "r1", "u1"))

	rooms, err := store.Rooms(ctx)
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestRevokeUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Revoke(ctx, "missing", "u1"))

	require.NoError(t, store.Authorize(ctx, "r1", "u1"))
	require.NoError(t, store.Revoke(ctx, "r1", "other"))

	ok, err := store.IsAuthorized(ctx, "r1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestListAuthorizedUnknownRoomIsEmpty(t *testing.T) {
	store := NewMemoryStore()

	identities, err := store.ListAuthorized(context.Background(), "missing")
	require.NoError(t, err)
	require.Empty(t, identities)
}

func TestClearRemovesWholeRoom(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Authorize(ctx, "r1", "u1"))
	require.NoError(t, store.Authorize(ctx, "r1", "u2"))
	require.NoError(t, store.Clear(ctx, "r1"))

	ok, err := store.IsAuthorized(ctx, "r1", "u1")
	require.NoError(t, err)
	require.False(t, ok)

	rooms, err := store.Rooms(ctx)
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestConcurrentMutation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			room := fmt.Sprintf("r%d", n%4)
			identity := fmt.Sprintf("u%d", n)
			for j := 0; j < 100; j++ {
				_ = store.Authorize(ctx, room, identity)
				_, _ = store.IsAuthorized(ctx, room, identity)
				_, _ = store.ListAuthorized(ctx, room)
				_ = store.Revoke(ctx, room, identity)
			}
		}(i)
	}
	wg.Wait()

	rooms, err := store.Rooms(ctx)
	require.NoError(t, err)
	require.Empty(t, rooms)
}
