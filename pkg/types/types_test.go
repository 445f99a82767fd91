package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionIsMember(t *testing.T) {
	s := &Session{Host: "user_1", Participant: "user_2"}

	require.True(t, s.IsMember("user_1"))
	require.True(t, s.IsMember("user_2"))
	require.False(t, s.IsMember("user_3"))
	require.False(t, s.IsMember(""))
}

func TestSessionIsMemberWithoutParticipant(t *testing.T) {
	s := &Session{Host: "user_1"}

	require.True(t, s.IsMember("user_1"))
	require.False(t, s.IsMember("user_2"))
	require.False(t, s.HasParticipant())
}

func TestSessionStatus(t *testing.T) {
	s := &Session{Status: StatusActive}
	require.True(t, s.IsActive())

	s.Status = StatusCompleted
	require.False(t, s.IsActive())
}

func TestIsValidIdentity(t *testing.T) {
	require.True(t, IsValidIdentity("user_2abc-XYZ"))
	require.True(t, IsValidIdentity("a"))
	require.False(t, IsValidIdentity(""))
	require.False(t, IsValidIdentity("has space"))
	require.False(t, IsValidIdentity("semi;colon"))

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}
	require.False(t, IsValidIdentity(string(long)))
}

func TestIsValidRoomID(t *testing.T) {
	require.True(t, IsValidRoomID("room_550e8400-e29b-41d4-a716-446655440000"))
	require.False(t, IsValidRoomID(""))
	require.False(t, IsValidRoomID("room/../etc"))
}
