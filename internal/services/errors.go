package services

import "errors"

// Coordinator error taxonomy. Every failure a registry operation can report is
// one of these; the router maps them to single-recipient error events and
// nothing propagates past it.
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrInvalidPayload      = errors.New("invalid payload")
	// ErrDuplicateHost is an internal invariant violation. It should be
	// unreachable; if it is ever observed it is a defect, not a user error.
	ErrDuplicateHost = errors.New("room has more than one host")
	ErrRoomFull      = errors.New("room is full")
	ErrIDExhausted   = errors.New("room id generation exhausted")
)

// Stable error kinds carried on outbound error events.
const (
	KindRoomNotFound        = "room-not-found"
	KindParticipantNotFound = "participant-not-found"
	KindInvalidPayload      = "invalid-payload"
	KindRoomFull            = "room-full"
	KindInternal            = "internal"
)

// ErrorKind maps a coordinator error to the kind reported to clients.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return KindRoomNotFound
	case errors.Is(err, ErrParticipantNotFound):
		return KindParticipantNotFound
	case errors.Is(err, ErrInvalidPayload):
		return KindInvalidPayload
	case errors.Is(err, ErrRoomFull):
		return KindRoomFull
	default:
		return KindInternal
	}
}
