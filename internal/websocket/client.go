package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Inbound frames are tiny (ping and error reports); anything larger is
	// a misbehaving peer.
	maxFrameBytes  = 4096
	sendBufferSize = 64
)

// Client is one device's notification channel. The server only pushes; the
// device pulls dataset contents over REST when told something changed.
type Client struct {
	ID       string
	UserID   string
	DeviceID string
	Conn     *websocket.Conn
	Manager  *Manager
	Send     chan []byte

	connectedAt time.Time
	log         *zap.Logger
	closeOnce   sync.Once
}

func NewClient(id, userID, deviceID string, conn *websocket.Conn, manager *Manager) *Client {
	c := &Client{
		ID:          id,
		UserID:      userID,
		DeviceID:    deviceID,
		Conn:        conn,
		Manager:     manager,
		Send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
		log:         zap.NewNop(),
	}
	if manager != nil {
		c.log = manager.logger.With(
			zap.String("client_id", id),
			zap.String("user_id", userID),
			zap.String("device_id", deviceID),
		)
	}
	return c
}

// Enqueue hands frame to the writer without blocking. It reports false when
// the client's buffer is full.
func (c *Client) Enqueue(frame []byte) bool {
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// Serve runs both pumps for an upgraded connection. It returns immediately.
func (c *Client) Serve() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		c.Conn.Close()
		c.log.Debug("connection closed", zap.Duration("session", time.Since(c.connectedAt)))
	})
}

func (c *Client) extendReadDeadline() error {
	return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
}

// ReadPump forwards inbound frames to the manager until the peer goes away,
// then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.Manager.Unregister <- c
		c.closeConn()
	}()

	c.Conn.SetReadLimit(maxFrameBytes)
	c.extendReadDeadline()
	c.Conn.SetPongHandler(func(string) error { return c.extendReadDeadline() })

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", zap.Error(err))
			}
			return
		}
		c.Manager.HandleMessage <- &ClientMessage{Client: c, Message: frame}
	}
}

func (c *Client) write(kind int, data []byte) error {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(kind, data)
}

// WritePump sends one JSON message per frame so receivers can decode each
// frame on its own. Closing Send ends the session with a close frame.
func (c *Client) WritePump() {
	keepalive := time.NewTicker(c.Manager.pingPeriod)
	defer func() {
		keepalive.Stop()
		c.closeConn()
	}()

	for {
		var err error
		select {
		case frame, open := <-c.Send:
			if !open {
				c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			err = c.write(websocket.TextMessage, frame)
		case <-keepalive.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			c.log.Debug("write failed", zap.Error(err))
			return
		}
	}
}
