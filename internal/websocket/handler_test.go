package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pairboard/internal/authstore"
	"pairboard/internal/database/storefake"
	"pairboard/pkg/types"
)

type wsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type gatewayFixture struct {
	store    *storefake.FakeSessionStore
	auth     *authstore.MemoryStore
	registry *Registry
	server   *httptest.Server
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	store := storefake.New()
	auth := authstore.NewMemoryStore()
	registry := NewRegistry()
	handler := NewHandler(auth, store, registry, DefaultOptions(), zerolog.Nop())

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)
	t.Cleanup(registry.CloseAll)

	return &gatewayFixture{store: store, auth: auth, registry: registry, server: server}
}

func (f *gatewayFixture) dial(t *testing.T, roomID, identity string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	url += fmt.Sprintf("/?room=%s&identity=%s", roomID, identity)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event wsEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(types.ClientEvent{Type: eventType, Data: raw}))
}

func TestRejectsMissingRoomOrIdentity(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.dial(t, "room_1", "")
	event := readEvent(t, conn)
	require.Equal(t, types.EventError, event.Type)
	require.JSONEq(t, `"missing_room_or_identity"`, string(event.Data))
}

func TestRejectsMalformedIdentity(t *testing.T) {
	f := newGatewayFixture(t)
	require.NoError(t, f.auth.Authorize(context.Background(), "room_1", "u1"))

	conn := f.dial(t, "room_1", "bad%20identity")
	event := readEvent(t, conn)
	require.Equal(t, types.EventError, event.Type)
	require.JSONEq(t, `"not_allowed"`, string(event.Data))
}

func TestRejectsUnknownRoom(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.dial(t, "room_nope", "u1")
	event := readEvent(t, conn)
	require.Equal(t, types.EventError, event.Type)
	require.JSONEq(t, `"not_allowed"`, string(event.Data))
}

func TestAdmitsAuthorizedIdentity(t *testing.T) {
	f := newGatewayFixture(t)
	require.NoError(t, f.auth.Authorize(context.Background(), "room_1", "u1"))

	conn := f.dial(t, "room_1", "u1")

	event := readEvent(t, conn)
	require.Equal(t, types.EventConnected, event.Type)
	var connected types.ConnectedPayload
	require.NoError(t, json.Unmarshal(event.Data, &connected))
	require.Equal(t, "room_1", connected.Room)
	require.Equal(t, "u1", connected.Identity)

	// A lone member still observes its own arrival.
	event = readEvent(t, conn)
	require.Equal(t, types.EventUserJoined, event.Type)
	var presence types.PresencePayload
	require.NoError(t, json.Unmarshal(event.Data, &presence))
	require.Equal(t, "u1", presence.Identity)
	require.NotZero(t, presence.Timestamp)
}

func TestExistingMemberSeesNewArrival(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u1"))
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u2"))

	host := f.dial(t, "room_1", "u1")
	readEvent(t, host) // connected
	readEvent(t, host) // own user_joined

	participant := f.dial(t, "room_1", "u2")
	readEvent(t, participant) // connected

	event := readEvent(t, host)
	require.Equal(t, types.EventUserJoined, event.Type)
	var presence types.PresencePayload
	require.NoError(t, json.Unmarshal(event.Data, &presence))
	require.Equal(t, "u2", presence.Identity)
}

func TestRepositoryFallbackAdmitsAndHeals(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	// Active session on record, but the authorization store is cold, as
	// after a process restart.
	require.NoError(t, f.store.Create(ctx, &types.Session{
		ID:     "s1",
		RoomID: "room_1",
		Host:   "u1",
		Status: types.StatusActive,
	}))

	conn := f.dial(t, "room_1", "u1")
	event := readEvent(t, conn)
	require.Equal(t, types.EventConnected, event.Type)

	ok, err := f.auth.IsAuthorized(ctx, "room_1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFallbackDeniesNonMember(t *testing.T) {
	f := newGatewayFixture(t)
	require.NoError(t, f.store.Create(context.Background(), &types.Session{
		ID:     "s1",
		RoomID: "room_1",
		Host:   "u1",
		Status: types.StatusActive,
	}))

	conn := f.dial(t, "room_1", "intruder")
	event := readEvent(t, conn)
	require.Equal(t, types.EventError, event.Type)
	require.JSONEq(t, `"not_allowed"`, string(event.Data))
}

func TestFallbackDeniesCompletedSession(t *testing.T) {
	f := newGatewayFixture(t)
	require.NoError(t, f.store.Create(context.Background(), &types.Session{
		ID:     "s1",
		RoomID: "room_1",
		Host:   "u1",
		Status: types.StatusCompleted,
	}))

	conn := f.dial(t, "room_1", "u1")
	event := readEvent(t, conn)
	require.Equal(t, types.EventError, event.Type)
	require.JSONEq(t, `"not_allowed"`, string(event.Data))
}

func TestFallbackFailsClosedOnRepositoryError(t *testing.T) {
	f := newGatewayFixture(t)
	f.store.GetErr = errors.New("connection refused")

	conn := f.dial(t, "room_1", "u1")
	event := readEvent(t, conn)
	require.Equal(t, types.EventError, event.Type)
	require.JSONEq(t, `"not_allowed"`, string(event.Data))
}

func TestMessageBroadcastToWholeRoom(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u1"))
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u2"))

	host := f.dial(t, "room_1", "u1")
	readEvent(t, host)
	readEvent(t, host)
	participant := f.dial(t, "room_1", "u2")
	readEvent(t, participant)
	readEvent(t, participant) // own user_joined
	readEvent(t, host)        // participant's user_joined

	sendEvent(t, participant, types.EventMessage, types.MessageData{Text: "  hello there  "})

	for _, conn := range []*websocket.Conn{host, participant} {
		event := readEvent(t, conn)
		require.Equal(t, types.EventMessage, event.Type)
		var msg types.MessagePayload
		require.NoError(t, json.Unmarshal(event.Data, &msg))
		require.Equal(t, "u2", msg.Identity)
		require.Equal(t, "hello there", msg.Text)
		require.NotZero(t, msg.Timestamp)
	}
}

func TestWhitespaceMessageDropped(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u1"))

	conn := f.dial(t, "room_1", "u1")
	readEvent(t, conn)
	readEvent(t, conn)

	sendEvent(t, conn, types.EventMessage, types.MessageData{Text: "   \n\t "})
	sendEvent(t, conn, types.EventMessage, types.MessageData{Text: "real"})

	// The blank message never arrives; the next frame is the real one.
	event := readEvent(t, conn)
	require.Equal(t, types.EventMessage, event.Type)
	var msg types.MessagePayload
	require.NoError(t, json.Unmarshal(event.Data, &msg))
	require.Equal(t, "real", msg.Text)
}

func TestCodeChangeSkipsSender(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u1"))
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u2"))

	host := f.dial(t, "room_1", "u1")
	readEvent(t, host)
	readEvent(t, host)
	participant := f.dial(t, "room_1", "u2")
	readEvent(t, participant)
	readEvent(t, participant)
	readEvent(t, host)

	sendEvent(t, host, types.EventCodeChange, types.CodeChangeData{Code: "x := 1", Language: "go"})

	event := readEvent(t, participant)
	require.Equal(t, types.EventCodeChange, event.Type)
	var change types.CodeChangePayload
	require.NoError(t, json.Unmarshal(event.Data, &change))
	require.Equal(t, "u1", change.Identity)
	require.Equal(t, "x := 1", change.Code)
	require.Equal(t, "go", change.Language)

	// The sender gets no echo; its next frame is a later chat message.
	sendEvent(t, participant, types.EventMessage, types.MessageData{Text: "seen it"})
	event = readEvent(t, host)
	require.Equal(t, types.EventMessage, event.Type)
}

func TestTypingSkipsSender(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u1"))
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u2"))

	host := f.dial(t, "room_1", "u1")
	readEvent(t, host)
	readEvent(t, host)
	participant := f.dial(t, "room_1", "u2")
	readEvent(t, participant)
	readEvent(t, participant)
	readEvent(t, host)

	sendEvent(t, participant, types.EventTyping, types.TypingData{IsTyping: true})

	event := readEvent(t, host)
	require.Equal(t, types.EventTyping, event.Type)
	var typing types.TypingPayload
	require.NoError(t, json.Unmarshal(event.Data, &typing))
	require.Equal(t, "u2", typing.Identity)
	require.True(t, typing.IsTyping)
}

func TestMalformedAndUnknownFramesDropped(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u1"))

	conn := f.dial(t, "room_1", "u1")
	readEvent(t, conn)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	sendEvent(t, conn, "launch_missiles", map[string]string{"target": "room"})
	sendEvent(t, conn, types.EventMessage, types.MessageData{Text: "still here"})

	event := readEvent(t, conn)
	require.Equal(t, types.EventMessage, event.Type)
}

func TestDisconnectRevokesAndAnnouncesDeparture(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u1"))
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u2"))

	host := f.dial(t, "room_1", "u1")
	readEvent(t, host)
	readEvent(t, host)
	participant := f.dial(t, "room_1", "u2")
	readEvent(t, participant)
	readEvent(t, host)

	require.NoError(t, participant.Close())

	event := readEvent(t, host)
	require.Equal(t, types.EventUserLeft, event.Type)
	var presence types.PresencePayload
	require.NoError(t, json.Unmarshal(event.Data, &presence))
	require.Equal(t, "u2", presence.Identity)

	require.Eventually(t, func() bool {
		ok, err := f.auth.IsAuthorized(ctx, "room_1", "u2")
		return err == nil && !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectReplacesExistingConnection(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.Authorize(ctx, "room_1", "u1"))

	first := f.dial(t, "room_1", "u1")
	readEvent(t, first)
	readEvent(t, first)

	second := f.dial(t, "room_1", "u1")
	readEvent(t, second)
	readEvent(t, second)

	// The replaced connection's cleanup must not revoke the identity.
	require.Eventually(t, func() bool {
		return f.registry.Stats()["connections"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	ok, err := f.auth.IsAuthorized(ctx, "room_1", "u1")
	require.NoError(t, err)
	require.True(t, ok)

	sendEvent(t, second, types.EventMessage, types.MessageData{Text: "after reconnect"})
	event := readEvent(t, second)
	require.Equal(t, types.EventMessage, event.Type)
}
