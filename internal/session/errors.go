package session

import "errors"

// Lifecycle errors, mapped to HTTP status codes by the API layer.
var (
	ErrMissingMetadata  = errors.New("problem and difficulty are required")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("cannot join a completed session")
	ErrSelfJoin         = errors.New("host cannot join their own session")
	ErrSessionFull      = errors.New("session is full")
	ErrNoParticipant    = errors.New("no participant to remove")
	ErrNotParticipant   = errors.New("only the participant can leave")
	ErrNotHost          = errors.New("only host can end session")
	ErrAlreadyCompleted = errors.New("session already completed")
)
