package services

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jrong1271/scrum-planning-poker/internal/config"
	"github.com/jrong1271/scrum-planning-poker/internal/models"
)

// Conn is the transport surface the coordinator needs from a WebSocket
// connection. *websocket.Conn satisfies it; tests substitute a mock.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, data []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Client wraps a single WebSocket connection with its own send goroutine.
// The session binding (room id + session id) is attached once a create/join
// succeeds, so later events can resolve identity from the connection.
type Client struct {
	id   string
	conn Conn
	send chan []byte
	hub  *Hub
	log  *zap.Logger

	// Session binding
	sessionMu sync.RWMutex
	roomID    string
	sessionID string

	// Rate limiting
	rateLimitMu  sync.Mutex
	messageCount int
	lastReset    time.Time

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	closeMu sync.Mutex
}

func NewClient(conn Conn, hub *Hub, log *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		id:        uuid.New().String(),
		conn:      conn,
		send:      make(chan []byte, config.ClientSendBufferSize),
		hub:       hub,
		log:       log,
		lastReset: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// ID is the transport-level connection id, distinct from the session id.
func (c *Client) ID() string { return c.id }

// BindSession attaches the connection to a room and identity after a
// successful create/join.
func (c *Client) BindSession(roomID, sessionID string) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	c.roomID = roomID
	c.sessionID = sessionID
}

// ClearSession detaches the connection from its room and identity.
func (c *Client) ClearSession() {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	c.roomID = ""
	c.sessionID = ""
}

// Session returns the current binding; ok is false when the connection has
// not joined a room.
func (c *Client) Session() (roomID, sessionID string, ok bool) {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.roomID, c.sessionID, c.roomID != ""
}

// Start begins the client's write pump.
func (c *Client) Start() {
	go c.writePump()
}

// writePump handles outgoing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			writeCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()

			if err != nil {
				c.log.Warn("write error",
					zap.String("conn_id", c.id),
					zap.Error(err))
				c.hub.metrics.IncrementBroadcastErrors()
				return
			}
			c.hub.metrics.IncrementMessagesSent()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()

			if err != nil {
				c.log.Warn("ping error",
					zap.String("conn_id", c.id),
					zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// ReadPump reads inbound frames and hands them to handle until the connection
// drops. It runs on the caller's goroutine; cleanup (hub unregister, registry
// reconciliation) is the caller's responsibility once it returns.
func (c *Client) ReadPump(handle func(data []byte)) {
	for {
		readCtx, cancel := context.WithTimeout(c.ctx, config.PongTimeout)
		_, message, err := c.conn.Read(readCtx)
		cancel()

		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure &&
				websocket.CloseStatus(err) != websocket.StatusGoingAway &&
				c.ctx.Err() == nil {
				c.log.Debug("read error",
					zap.String("conn_id", c.id),
					zap.Error(err))
				c.hub.metrics.IncrementConnectionErrors()
			}
			return
		}

		if !c.checkRateLimit() {
			c.log.Warn("rate limit exceeded", zap.String("conn_id", c.id))
			c.hub.metrics.IncrementRateLimitViolations()
			c.hub.SendToClient(c, models.NewErrorMessage("rate-limited", "Rate limit exceeded. Please slow down."))
			continue
		}

		c.hub.metrics.IncrementMessagesReceived()
		handle(message)
	}
}

// checkRateLimit verifies the client hasn't exceeded message rate limits
func (c *Client) checkRateLimit() bool {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	now := time.Now()
	if now.Sub(c.lastReset) > config.RateLimitWindow {
		c.messageCount = 0
		c.lastReset = now
	}

	c.messageCount++
	return c.messageCount <= config.MaxMessagesPerSecond
}

// Send queues a message for delivery. A full buffer drops the client rather
// than blocking the hub.
func (c *Client) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		c.log.Warn("send buffer full, closing slow client", zap.String("conn_id", c.id))
		c.hub.metrics.IncrementBroadcastErrors()
		go c.Close()
		return false
	}
}

// IsClosed reports whether the client has been shut down.
func (c *Client) IsClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

// Close cleanly shuts down the client connection
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	close(c.send)
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}
