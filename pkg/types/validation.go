package types

import "regexp"

// Identities come from the external identity provider and room ids are
// generated server-side; both travel in query strings and log lines, so the
// accepted alphabet is kept narrow.
var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidIdentity checks an external identity token's format.
func IsValidIdentity(identity string) bool {
	if len(identity) < 1 || len(identity) > 128 {
		return false
	}
	return idRegex.MatchString(identity)
}

// IsValidRoomID checks a room identifier's format.
func IsValidRoomID(roomID string) bool {
	if len(roomID) < 1 || len(roomID) > 128 {
		return false
	}
	return idRegex.MatchString(roomID)
}
