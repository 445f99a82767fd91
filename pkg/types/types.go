package types

import (
	"time"
)

// Session status values. A session starts active and transitions to
// completed exactly once; the transition is never reversed.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Session represents one interview pairing instance. Host and RoomID are
// immutable after creation; Participant holds at most one identity at a time
// and is always distinct from Host.
type Session struct {
	ID          string     `json:"id" bson:"_id"`
	RoomID      string     `json:"roomId" bson:"roomId"`
	Host        string     `json:"host" bson:"host"`
	Participant string     `json:"participant,omitempty" bson:"participant,omitempty"`
	Problem     string     `json:"problem" bson:"problem"`
	Difficulty  string     `json:"difficulty" bson:"difficulty"`
	Status      string     `json:"status" bson:"status"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
}

// IsActive reports whether the session still accepts participants and
// room connections.
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// HasParticipant reports whether the participant slot is taken.
func (s *Session) HasParticipant() bool {
	return s.Participant != ""
}

// IsMember reports whether identity is the session's host or current
// participant. Used by the gateway's repository fallback.
func (s *Session) IsMember(identity string) bool {
	if identity == "" {
		return false
	}
	return identity == s.Host || identity == s.Participant
}

// EndAllResult is one entry of the best-effort admin bulk end operation.
type EndAllResult struct {
	SessionID string `json:"sessionId"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}
