package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jrong1271/scrum-planning-poker/internal/models"
	"github.com/jrong1271/scrum-planning-poker/internal/security"
	"github.com/jrong1271/scrum-planning-poker/internal/services"
)

// WSHandler is the event router: it upgrades connections, decodes inbound
// events, maps each to exactly one RoomManager operation, and queues the
// resulting broadcast. Every failure turns into a single-recipient error
// event; nothing propagates past this layer.
type WSHandler struct {
	hub      *services.Hub
	rooms    *services.RoomManager
	origins  *security.OriginValidator
	validate *validator.Validate
	log      *zap.Logger
}

func NewWSHandler(hub *services.Hub, rooms *services.RoomManager, origins *security.OriginValidator, log *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		rooms:    rooms,
		origins:  origins,
		validate: validator.New(),
		log:      log,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.origins.GetAcceptOptions())
	if err != nil {
		h.log.Debug("websocket accept failed", zap.Error(err))
		return
	}

	client := services.NewClient(conn, h.hub, h.log)
	client.Start()

	metrics := h.hub.Metrics()
	metrics.IncrementConnections()
	defer metrics.DecrementConnections()
	defer h.teardown(client)

	client.ReadPump(func(data []byte) {
		h.Dispatch(client, data)
	})
}

// teardown reconciles a connection that dropped without a leave-room: the
// registry entry stays, marked disconnected, until the identity rejoins or
// the janitor prunes it. The connection itself leaves the room group so
// broadcasts stop targeting it.
func (h *WSHandler) teardown(c *services.Client) {
	if roomID, sessionID, ok := c.Session(); ok {
		h.rooms.SetConnected(roomID, sessionID, false, c.ID())
		h.hub.Unregister(roomID, c)
	}
	c.Close()
}

// Dispatch routes one inbound event. It never panics outward; a crash while
// handling one connection's event must not take down other rooms.
func (h *WSHandler) Dispatch(c *services.Client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("panic in event handler", zap.Any("panic", r))
			h.sendError(c, services.KindInternal, "An error occurred while processing your request")
		}
	}()

	var msg models.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(c, services.KindInvalidPayload, "malformed message")
		return
	}

	if !security.IsValidMessageType(msg.Type) {
		h.sendError(c, services.KindInvalidPayload, "unknown event type")
		return
	}

	switch msg.Type {
	case models.MsgTypeCreateRoom:
		h.handleCreateRoom(c, msg.Payload)
	case models.MsgTypeJoinRoom:
		h.handleJoinRoom(c, msg.Payload)
	case models.MsgTypeLeaveRoom:
		h.handleLeaveRoom(c, msg.Payload)
	case models.MsgTypeSelectCard:
		h.handleSelectCard(c, msg.Payload)
	case models.MsgTypeRestartGame:
		h.handleRestartGame(c, msg.Payload)
	}
}

func (h *WSHandler) handleCreateRoom(c *services.Client, payload json.RawMessage) {
	var p models.CreateRoomPayload
	if !h.decode(c, payload, &p) {
		return
	}
	if err := security.ValidateSessionID(p.SessionID); err != nil {
		h.sendError(c, services.KindInvalidPayload, security.SanitizeErrorMessage(err))
		return
	}

	snap, err := h.rooms.CreateRoom(p.SessionID, p.UserName, c.ID())
	if err != nil {
		h.sendErrorFor(c, err)
		return
	}

	c.BindSession(snap.RoomID, p.SessionID)
	h.hub.Register(snap.RoomID, c)
	h.hub.SendToClient(c, models.NewRoomCreatedMessage(snap.RoomID))
	h.hub.BroadcastToRoom(snap.RoomID, models.NewRoomDataMessage(snap))
}

func (h *WSHandler) handleJoinRoom(c *services.Client, payload json.RawMessage) {
	var p models.JoinRoomPayload
	if !h.decode(c, payload, &p) {
		return
	}
	if err := security.ValidateRoomID(p.RoomID); err != nil {
		h.sendError(c, services.KindInvalidPayload, security.SanitizeErrorMessage(err))
		return
	}
	if err := security.ValidateSessionID(p.SessionID); err != nil {
		h.sendError(c, services.KindInvalidPayload, security.SanitizeErrorMessage(err))
		return
	}

	snap, _, err := h.rooms.Join(p.RoomID, p.SessionID, p.UserName, c.ID())
	if err != nil {
		// On a missing room the connection simply never attaches to the
		// group; it stays connected to the service.
		h.sendErrorFor(c, err)
		return
	}

	c.BindSession(p.RoomID, p.SessionID)
	h.hub.Register(p.RoomID, c)
	h.hub.UnregisterSuperseded(p.RoomID, p.SessionID, c.ID())
	h.hub.BroadcastToRoom(p.RoomID, models.NewRoomDataMessage(snap))
}

func (h *WSHandler) handleLeaveRoom(c *services.Client, payload json.RawMessage) {
	var p models.LeaveRoomPayload
	if !h.decode(c, payload, &p) {
		return
	}
	if err := security.ValidateRoomID(p.RoomID); err != nil {
		h.sendError(c, services.KindInvalidPayload, security.SanitizeErrorMessage(err))
		return
	}

	// Identity is resolved from the connection context, not the payload. A
	// leave from a connection that never joined is tolerated silently.
	roomID, sessionID, ok := c.Session()
	if !ok || roomID != p.RoomID {
		h.hub.Unregister(p.RoomID, c)
		return
	}

	snap, stillExists := h.rooms.Leave(p.RoomID, sessionID)
	h.hub.Unregister(p.RoomID, c)
	c.ClearSession()

	if stillExists {
		h.hub.BroadcastToRoom(p.RoomID, models.NewRoomDataMessage(snap))
	}
}

func (h *WSHandler) handleSelectCard(c *services.Client, payload json.RawMessage) {
	var p models.SelectCardPayload
	if !h.decode(c, payload, &p) {
		return
	}
	if err := security.ValidateRoomID(p.RoomID); err != nil {
		h.sendError(c, services.KindInvalidPayload, security.SanitizeErrorMessage(err))
		return
	}

	if err := h.rooms.SetSelection(p.RoomID, p.SessionID, p.Card); err != nil {
		h.sendErrorFor(c, err)
		return
	}

	h.hub.BroadcastToRoom(p.RoomID, models.NewScoreChangeMessage(p.SessionID, p.Card))
}

func (h *WSHandler) handleRestartGame(c *services.Client, payload json.RawMessage) {
	var p models.RestartGamePayload
	if !h.decode(c, payload, &p) {
		return
	}
	if err := security.ValidateRoomID(p.RoomID); err != nil {
		h.sendError(c, services.KindInvalidPayload, security.SanitizeErrorMessage(err))
		return
	}

	snap, err := h.rooms.Restart(p.RoomID)
	if err != nil {
		h.sendErrorFor(c, err)
		return
	}

	h.hub.BroadcastToRoom(p.RoomID, models.NewRoomDataMessage(snap))
}

// decode unmarshals and validates a payload, reporting invalid-payload to the
// client on failure.
func (h *WSHandler) decode(c *services.Client, payload json.RawMessage, v interface{}) bool {
	if len(payload) == 0 {
		h.sendError(c, services.KindInvalidPayload, "missing payload")
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		h.sendError(c, services.KindInvalidPayload, "malformed payload")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.sendError(c, services.KindInvalidPayload, "missing or malformed required fields")
		return false
	}
	return true
}

func (h *WSHandler) sendError(c *services.Client, kind, message string) {
	h.hub.SendToClient(c, models.NewErrorMessage(kind, message))
}

func (h *WSHandler) sendErrorFor(c *services.Client, err error) {
	kind := services.ErrorKind(err)
	if kind == services.KindInternal {
		h.log.Error("internal coordinator error", zap.Error(err))
	}
	h.sendError(c, kind, security.SanitizeErrorMessage(err))
}
