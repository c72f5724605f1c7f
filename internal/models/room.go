package models

// RoomSnapshot is an immutable copy of a room's participant state, built under
// the room lock and safe to hand to the hub for fan-out. Participants appear
// in join order so clients get a stable display order.
type RoomSnapshot struct {
	RoomID       string        `json:"roomId"`
	Participants []Participant `json:"participants"`
}

// ScoreChange is the delta payload emitted when a single participant changes
// their card selection, instead of re-sending the whole snapshot.
type ScoreChange struct {
	SessionID string   `json:"sessionId"`
	Score     *float64 `json:"score"`
}

type RoomCreated struct {
	RoomID string `json:"roomId"`
}

type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
