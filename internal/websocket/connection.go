package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps one WebSocket bound to a (room, identity) pair for its
// lifetime. All writes funnel through a single writer goroutine; gorilla
// connections do not allow concurrent writers.
type Connection struct {
	conn     *websocket.Conn
	writeCh  chan []byte
	roomID   string
	identity string

	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection wraps an upgraded WebSocket and starts its writer.
func NewConnection(conn *websocket.Conn, roomID, identity string, sendBuffer int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		writeCh:      make(chan []byte, sendBuffer),
		roomID:       roomID,
		identity:     identity,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v for delivery. It returns ErrWriteTimeout when the
// client cannot drain its buffer within the write timeout.
func (c *Connection) WriteJSON(v any) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close tears the connection down exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// RoomID returns the room this connection joined.
func (c *Connection) RoomID() string { return c.roomID }

// Identity returns the identity this connection authenticated as.
func (c *Connection) Identity() string { return c.identity }
