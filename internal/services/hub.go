package services

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/jrong1271/scrum-planning-poker/internal/config"
	"github.com/jrong1271/scrum-planning-poker/internal/models"
)

// Hub groups live client connections by room and fans outbound events out to
// them. Registration is synchronous, so a connection is part of its room
// group before the operation that added it queues a broadcast. Broadcasts all
// pass through the single Run loop, which keeps delivery FIFO per room: a
// delta queued after a snapshot can never arrive before it.
type Hub struct {
	// Room connections: roomId -> set of clients
	rooms map[string]map[*Client]bool

	broadcast chan *BroadcastMessage

	metrics *Metrics
	log     *zap.Logger

	mu sync.RWMutex
}

type BroadcastMessage struct {
	RoomID  string
	Message *models.WSMessage
}

func NewHub(log *zap.Logger, metrics *Metrics) *Hub {
	return &Hub{
		rooms:     make(map[string]map[*Client]bool),
		broadcast: make(chan *BroadcastMessage, config.HubBroadcastBufferSize),
		metrics:   metrics,
		log:       log,
	}
}

// Metrics exposes the hub's metrics tracker.
func (h *Hub) Metrics() *Metrics { return h.metrics }

// Run drains queued broadcasts until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case msg := <-h.broadcast:
			h.broadcastToRoom(msg)
		}
	}
}

func (h *Hub) broadcastToRoom(msg *BroadcastMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[msg.RoomID]))
	for c := range h.rooms[msg.RoomID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		// Room already gone or empty; nothing to deliver.
		return
	}

	data, err := json.Marshal(msg.Message)
	if err != nil {
		h.log.Error("failed to marshal broadcast", zap.Error(err))
		h.metrics.IncrementBroadcastErrors()
		return
	}

	for _, c := range clients {
		c.Send(data)
	}
}

// BroadcastToRoom queues an event for every connection grouped under a room.
// No-op if the room has no connections by the time the hub drains it.
func (h *Hub) BroadcastToRoom(roomID string, message *models.WSMessage) {
	h.broadcast <- &BroadcastMessage{RoomID: roomID, Message: message}
}

// SendToClient delivers an event to a single connection, bypassing room
// grouping. Used for targeted errors and room-created acknowledgements.
func (h *Hub) SendToClient(c *Client, message *models.WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}
	c.Send(data)
}

// Register associates a client's connection with a room group.
func (h *Hub) Register(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true

	h.log.Debug("connection registered",
		zap.String("room_id", roomID),
		zap.String("conn_id", c.ID()),
		zap.Int("room_connections", len(h.rooms[roomID])))
}

// Unregister detaches a client's connection from a room group. The client's
// registry entry, if any, is the RoomManager's concern, not the hub's.
func (h *Hub) Unregister(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, exists := clients[c]; !exists {
		return
	}

	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, roomID)
	}

	h.log.Debug("connection unregistered",
		zap.String("room_id", roomID),
		zap.String("conn_id", c.ID()),
		zap.Int("room_connections", len(clients)))
}

// UnregisterSuperseded detaches and closes every other connection in the room
// group bound to the same identity. Called after a rejoin settles on a new
// connection, so the replaced one stops receiving the room's broadcasts.
func (h *Hub) UnregisterSuperseded(roomID, sessionID, keepConnID string) {
	h.mu.Lock()
	var stale []*Client
	for c := range h.rooms[roomID] {
		cRoom, cSession, ok := c.Session()
		if ok && cRoom == roomID && cSession == sessionID && c.ID() != keepConnID {
			stale = append(stale, c)
			delete(h.rooms[roomID], c)
		}
	}
	if clients, ok := h.rooms[roomID]; ok && len(clients) == 0 {
		delete(h.rooms, roomID)
	}
	h.mu.Unlock()

	for _, c := range stale {
		h.log.Debug("superseded connection dropped",
			zap.String("room_id", roomID),
			zap.String("conn_id", c.ID()))
		c.Close()
	}
}

// RoomSize reports how many connections are currently grouped under a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, clients := range h.rooms {
		for c := range clients {
			c.Close()
		}
		delete(h.rooms, roomID)
	}
}
