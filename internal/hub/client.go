package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rhayalcantara/proyectos-sub001/internal/config"
	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
	"github.com/rhayalcantara/proyectos-sub001/pkg/log"
)

// Client is one live websocket connection bound to an authenticated user.
type Client struct {
	ID       string // connection id, unique per connection
	UserID   string
	UserName string
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte

	config    config.WebSocketConfig
	closeOnce sync.Once

	// sendMu guards Send against a close racing with a late SendFrame
	// from outside the run loop.
	sendMu sync.Mutex
	closed bool
}

func NewClient(id, userID, userName string, h *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	buf := cfg.SendBuffer
	if buf <= 0 {
		buf = 256
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		UserName: userName,
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, buf),
		config:   cfg,
	}
}

// ReadPump reads frames off the connection and hands them to the handler.
// It owns the unregister on any closure, graceful or errored.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.closeConn()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Err(err).Str(log.FieldUserID, c.UserID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send buffer onto the wire and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendFrame queues an event frame for this connection. The push is
// non-blocking: when the buffer is full, or the connection is already
// torn down, the frame is dropped.
func (c *Client) SendFrame(frame *domain.Frame) error {
	data, err := frame.Encode()
	if err != nil {
		return err
	}

	if !c.trySend(data) {
		l := log.L()
		l.Warn().Str(log.FieldUserID, c.UserID).Str("event", frame.Type).Msg("event dropped, buffer full or connection gone")
	}
	return nil
}

// trySend queues raw bytes without blocking. Returns false when the
// buffer is full or the send channel is already closed.
func (c *Client) trySend(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send buffer so WritePump drains and exits. Any
// SendFrame racing with the teardown drops its frame instead of
// panicking on the closed channel.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}
