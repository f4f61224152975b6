package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 64 << 10
)

// Connection wraps a websocket and serializes outbound frames through a buffered queue.
// The queue is never closed: closing is signalled on a separate channel, so a Send racing
// with Close fails cleanly instead of panicking.
type Connection struct {
	id     event.ConnectionID
	userID chat.UserID
	log    *slog.Logger

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}
}

func NewConnection(userID chat.UserID, ws *websocket.Conn, bufferSize int, log *slog.Logger) *Connection {
	return &Connection{
		id:     event.ConnectionID(uuid.NewString()),
		userID: userID,
		log:    log,
		ws:     ws,
		send:   make(chan []byte, bufferSize),
		closed: make(chan struct{}),
	}
}

func (c *Connection) ID() event.ConnectionID { return c.id }

func (c *Connection) UserID() chat.UserID { return c.userID }

// Start launches the write loop. It must be called exactly once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues one frame without blocking. A slow client whose queue is full is
// reported as gone, and the caller is expected to drop it.
func (c *Connection) Send(env event.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return fmt.Errorf("%w: %s", errors.ErrConnectionGone, c.id)
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("%w: send buffer of %s is full", errors.ErrConnectionGone, c.id)
	}
}

// Close terminates the session. Safe to call more than once and from any goroutine.
func (c *Connection) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed, closing connection", "conn_id", c.id, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
