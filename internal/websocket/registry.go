package websocket

import (
	"sync"

	"pairboard/pkg/types"
)

// Registry tracks which connections are joined to which room and relays
// room-scoped events to them. Membership in a room's broadcast group is
// exactly the lifetime of the connection.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Connection // roomID -> identity -> Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]*Connection)}
}

// Register joins conn to its room's broadcast group. The model is one
// connection per identity per room: an existing connection for the same pair
// is closed asynchronously and replaced.
func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[conn.RoomID()]
	if !ok {
		members = make(map[string]*Connection)
		r.rooms[conn.RoomID()] = members
	}
	if existing, ok := members[conn.Identity()]; ok && existing != conn {
		// Close outside the lock; the replaced connection's cleanup path
		// takes this lock again.
		go func() { _ = existing.Close() }()
	}
	members[conn.Identity()] = conn
}

// Unregister removes conn from its room's broadcast group and reports
// whether conn still owned the registration. A connection replaced by a
// newer one for the same (room, identity) does not own it, and its cleanup
// must not revoke the identity's authorization or announce a departure.
func (r *Registry) Unregister(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[conn.RoomID()]
	if !ok {
		return false
	}
	if members[conn.Identity()] != conn {
		return false
	}
	delete(members, conn.Identity())
	if len(members) == 0 {
		delete(r.rooms, conn.RoomID())
	}
	return true
}

// Broadcast relays event to every member of the room, sender included.
// Delivery is best-effort: a slow or dead member never blocks the others.
func (r *Registry) Broadcast(roomID string, event types.ServerEvent) {
	for _, conn := range r.members(roomID) {
		_ = conn.WriteJSON(event)
	}
}

// BroadcastOthers relays event to every member of the room except identity.
func (r *Registry) BroadcastOthers(roomID, identity string, event types.ServerEvent) {
	for _, conn := range r.members(roomID) {
		if conn.Identity() == identity {
			continue
		}
		_ = conn.WriteJSON(event)
	}
}

func (r *Registry) members(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	conns := make([]*Connection, 0, len(members))
	for _, conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

// Stats reports live connection and room counts for health reporting.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, members := range r.rooms {
		total += len(members)
	}
	return map[string]int{
		"connections":  total,
		"active_rooms": len(r.rooms),
	}
}

// CloseAll closes every registered connection. Used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Connection, 0)
	for _, members := range r.rooms {
		for _, conn := range members {
			conns = append(conns, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
