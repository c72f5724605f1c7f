package security

import (
	"github.com/coder/websocket"

	"github.com/jrong1271/scrum-planning-poker/internal/models"
)

// Known inbound event names. Anything outside this set is rejected at the
// router boundary before payload decoding.
var validMessageTypes = map[string]bool{
	models.MsgTypeCreateRoom:  true,
	models.MsgTypeJoinRoom:    true,
	models.MsgTypeLeaveRoom:   true,
	models.MsgTypeSelectCard:  true,
	models.MsgTypeRestartGame: true,
}

// IsValidMessageType checks if a WebSocket message type is valid
func IsValidMessageType(msgType string) bool {
	return validMessageTypes[msgType]
}

// OriginValidator validates WebSocket connection origins
type OriginValidator struct {
	allowedPatterns []string
}

// NewOriginValidator creates a new origin validator
func NewOriginValidator(patterns []string) *OriginValidator {
	return &OriginValidator{
		allowedPatterns: patterns,
	}
}

// GetAcceptOptions returns websocket.AcceptOptions with origin patterns
func (ov *OriginValidator) GetAcceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{
		OriginPatterns: ov.allowedPatterns,
	}
}
