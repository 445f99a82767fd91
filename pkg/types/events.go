package types

import "encoding/json"

// Event type names shared by both directions of the room protocol.
const (
	EventConnected  = "connected"
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventMessage    = "message"
	EventCodeChange = "code_change"
	EventTyping     = "typing"
	EventError      = "error"
)

// Rejection reasons carried by error events before the server closes the
// connection.
const (
	ReasonMissingRoomOrIdentity = "missing_room_or_identity"
	ReasonNotAllowed            = "not_allowed"
)

// ClientEvent is the envelope for frames received from a client. Data is
// decoded per event type; unknown types are dropped.
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerEvent is the envelope for frames sent to clients.
type ServerEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessageData is the client payload of a chat message event.
type MessageData struct {
	Text string `json:"text"`
}

// CodeChangeData is the client payload of a collaborative edit event.
type CodeChangeData struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// TypingData is the client payload of a typing indicator event.
type TypingData struct {
	IsTyping bool `json:"isTyping"`
}

// ConnectedPayload acknowledges a successful room admission to the caller.
type ConnectedPayload struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
}

// PresencePayload announces an arrival or departure. Timestamp is Unix
// milliseconds.
type PresencePayload struct {
	Identity  string `json:"identity"`
	Timestamp int64  `json:"timestamp"`
}

// MessagePayload is a chat message broadcast to the whole room, sender
// included.
type MessagePayload struct {
	Identity  string `json:"identity"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// CodeChangePayload is a collaborative edit broadcast to every member except
// the sender.
type CodeChangePayload struct {
	Identity string `json:"identity"`
	Code     string `json:"code"`
	Language string `json:"language"`
}

// TypingPayload is a typing indicator broadcast to every member except the
// sender.
type TypingPayload struct {
	Identity string `json:"identity"`
	IsTyping bool   `json:"isTyping"`
}
