// Package websocket carries the real-time side of a session: the connection
// gateway that admits or rejects sockets, and the registry that relays
// room-scoped events between admitted members.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pairboard/internal/authstore"
	"pairboard/internal/database"
	"pairboard/pkg/types"
)

// Options tune the connection heartbeat and write behavior.
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

// DefaultOptions returns the timeouts used when no configuration overrides
// them.
func DefaultOptions() Options {
	return Options{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   100,
	}
}

var upgrader = websocket.Upgrader{
	// Browser clients connect from the separately hosted UI; origin policy
	// is enforced at the deployment edge.
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
}

// Handler is the connection gateway. It decides, at connection time, whether
// a (room, identity) pair may join the live room, then hands the admitted
// connection to the relay loop.
type Handler struct {
	authStore authstore.Store
	store     database.SessionStore
	registry  *Registry
	opts      Options
	log       zerolog.Logger
}

// NewHandler creates a connection gateway.
func NewHandler(authStore authstore.Store, store database.SessionStore, registry *Registry, opts Options, log zerolog.Logger) *Handler {
	return &Handler{
		authStore: authStore,
		store:     store,
		registry:  registry,
		opts:      opts,
		log:       log.With().Str("component", "gateway").Logger(),
	}
}

// HandleWebSocket upgrades the request and runs the admission check. The
// socket is upgraded before authorization so rejections reach the client as
// an error event with a reason, matching the wire contract.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	identity := r.URL.Query().Get("identity")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := NewConnection(ws, roomID, identity, h.opts.SendBuffer, h.opts.WriteTimeout)

	if roomID == "" || identity == "" {
		h.reject(conn, types.ReasonMissingRoomOrIdentity)
		return
	}
	// Malformed ids can never be authorized; reject before touching the
	// stores.
	if !types.IsValidRoomID(roomID) || !types.IsValidIdentity(identity) {
		h.reject(conn, types.ReasonNotAllowed)
		return
	}

	if !h.admit(r.Context(), roomID, identity) {
		h.reject(conn, types.ReasonNotAllowed)
		return
	}

	h.registry.Register(conn)
	_ = conn.WriteJSON(types.ServerEvent{
		Type: types.EventConnected,
		Data: types.ConnectedPayload{Room: roomID, Identity: identity},
	})
	// The whole room sees the arrival, the joiner included, so a lone host
	// observes their own presence event.
	h.registry.Broadcast(roomID, types.ServerEvent{
		Type: types.EventUserJoined,
		Data: types.PresencePayload{Identity: identity, Timestamp: time.Now().UnixMilli()},
	})

	h.log.Info().Str("room", roomID).Str("identity", identity).Msg("connection admitted")
	h.relay(conn)
}

// admit runs the two-tier authorization check: the in-memory store first,
// then reconciliation against the session repository. Any failure along the
// fallback path denies admission; the check never fails open.
func (h *Handler) admit(ctx context.Context, roomID, identity string) bool {
	ok, err := h.authStore.IsAuthorized(ctx, roomID, identity)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("authorization store lookup failed")
	}
	if ok {
		return true
	}

	// Cache miss: the process may have restarted or the HTTP join may have
	// landed on another instance. The repository is the source of truth.
	session, err := h.store.GetByRoomID(ctx, roomID)
	if err != nil {
		// Fail closed. The log line is what distinguishes an outage from a
		// genuine denial.
		h.log.Error().Err(err).Str("room", roomID).Str("identity", identity).Msg("repository fallback failed, rejecting connection")
		return false
	}
	if session == nil {
		h.log.Warn().Str("room", roomID).Str("identity", identity).Msg("no session for room during fallback")
		return false
	}
	if !session.IsActive() || !session.IsMember(identity) {
		h.log.Warn().Str("room", roomID).Str("identity", identity).Msg("fallback did not match an active host or participant")
		return false
	}

	// Self-heal the cache so the next check short-circuits.
	if err := h.authStore.Authorize(ctx, roomID, identity); err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to re-register identity after fallback")
	}
	h.log.Info().Str("room", roomID).Str("identity", identity).Msg("repository fallback admitted connection")
	return true
}

func (h *Handler) reject(conn *Connection, reason string) {
	_ = conn.WriteJSON(types.ServerEvent{Type: types.EventError, Data: reason})
	// Give the writer a moment to flush the error frame before closing.
	time.Sleep(50 * time.Millisecond)
	_ = conn.Close()
}

// relay reads client events for the lifetime of the connection and fans
// them out to the room. Cleanup runs exactly once when the read loop exits,
// however the connection died.
func (h *Handler) relay(conn *Connection) {
	defer func() {
		owned := h.registry.Unregister(conn)
		_ = conn.Close()
		if !owned {
			// A newer connection for this (room, identity) has taken over;
			// leaving the authorization and presence state to it.
			return
		}
		ctx := context.Background()
		if err := h.authStore.Revoke(ctx, conn.RoomID(), conn.Identity()); err != nil {
			h.log.Error().Err(err).Str("room", conn.RoomID()).Msg("failed to revoke authorization on disconnect")
		}
		h.registry.Broadcast(conn.RoomID(), types.ServerEvent{
			Type: types.EventUserLeft,
			Data: types.PresencePayload{Identity: conn.Identity(), Timestamp: time.Now().UnixMilli()},
		})
		h.log.Info().Str("room", conn.RoomID()).Str("identity", conn.Identity()).Msg("connection closed")
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.opts.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Str("identity", conn.Identity()).Msg("read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatch(conn, data)
	}
}

// dispatch applies one client event to the room. Malformed frames are
// dropped; they never terminate the connection.
func (h *Handler) dispatch(conn *Connection, data []byte) {
	var event types.ClientEvent
	if err := json.Unmarshal(data, &event); err != nil {
		h.log.Debug().Err(err).Str("identity", conn.Identity()).Msg("dropping malformed frame")
		return
	}

	switch event.Type {
	case types.EventMessage:
		var payload types.MessageData
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		text := strings.TrimSpace(payload.Text)
		if text == "" {
			return
		}
		// Chat goes to the whole room; the sender reconciles its own echo.
		h.registry.Broadcast(conn.RoomID(), types.ServerEvent{
			Type: types.EventMessage,
			Data: types.MessagePayload{Identity: conn.Identity(), Text: text, Timestamp: time.Now().UnixMilli()},
		})

	case types.EventCodeChange:
		var payload types.CodeChangeData
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		// High-frequency stream, last write wins; no validation beyond shape.
		h.registry.BroadcastOthers(conn.RoomID(), conn.Identity(), types.ServerEvent{
			Type: types.EventCodeChange,
			Data: types.CodeChangePayload{Identity: conn.Identity(), Code: payload.Code, Language: payload.Language},
		})

	case types.EventTyping:
		var payload types.TypingData
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		h.registry.BroadcastOthers(conn.RoomID(), conn.Identity(), types.ServerEvent{
			Type: types.EventTyping,
			Data: types.TypingPayload{Identity: conn.Identity(), IsTyping: payload.IsTyping},
		})

	default:
		h.log.Debug().Str("type", event.Type).Msg("dropping unknown event type")
	}
}
