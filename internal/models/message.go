package models

import "encoding/json"

// WSMessage is the outbound envelope: a named event plus its payload.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// InboundMessage defers payload decoding until the event type is known.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client → Server message types
const (
	MsgTypeCreateRoom  = "create-room"
	MsgTypeJoinRoom    = "join-room"
	MsgTypeLeaveRoom   = "leave-room"
	MsgTypeSelectCard  = "select-card"
	MsgTypeRestartGame = "restart-game"
)

// Server → Client message types
const (
	MsgTypeRoomData    = "room-data"    // Full room snapshot
	MsgTypeRoomCreated = "room-created" // Sent to the creator only
	MsgTypeScoreChange = "score-change" // Single-participant selection delta
	MsgTypeError       = "error"
)

type CreateRoomPayload struct {
	UserName  string `json:"userName" validate:"required,max=64"`
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

type JoinRoomPayload struct {
	RoomID    string `json:"roomId" validate:"required"`
	UserName  string `json:"userName" validate:"required,max=64"`
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

type SelectCardPayload struct {
	RoomID    string   `json:"roomId" validate:"required"`
	SessionID string   `json:"sessionId" validate:"required,max=64"`
	Card      *float64 `json:"card"`
}

type RestartGamePayload struct {
	RoomID string `json:"roomId" validate:"required"`
}

func NewRoomDataMessage(snap RoomSnapshot) *WSMessage {
	return &WSMessage{Type: MsgTypeRoomData, Payload: snap}
}

func NewRoomCreatedMessage(roomID string) *WSMessage {
	return &WSMessage{Type: MsgTypeRoomCreated, Payload: RoomCreated{RoomID: roomID}}
}

func NewScoreChangeMessage(sessionID string, score *float64) *WSMessage {
	return &WSMessage{Type: MsgTypeScoreChange, Payload: ScoreChange{SessionID: sessionID, Score: score}}
}

func NewErrorMessage(kind, message string) *WSMessage {
	return &WSMessage{Type: MsgTypeError, Payload: ErrorInfo{Kind: kind, Message: message}}
}
