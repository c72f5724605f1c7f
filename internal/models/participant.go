package models

import "time"

type ParticipantRole string

const (
	RoleHost        ParticipantRole = "host"
	RoleParticipant ParticipantRole = "participant"
)

// Participant is the per-room record for one logical user. SessionID is the
// stable identity supplied by the client; ConnID tracks whichever transport
// connection is currently carrying it and is overwritten on every (re)join.
type Participant struct {
	SessionID string          `json:"sessionId"`
	Name      string          `json:"userName"`
	Role      ParticipantRole `json:"userType"`
	Selection *float64        `json:"selectedCard"`
	Connected bool            `json:"connected"`
	ConnID    string          `json:"-"`
	JoinedAt  time.Time       `json:"-"`
	LastSeen  time.Time       `json:"-"`
}

func NewParticipant(sessionID, name string, role ParticipantRole, connID string) *Participant {
	now := time.Now()
	return &Participant{
		SessionID: sessionID,
		Name:      name,
		Role:      role,
		Selection: nil,
		Connected: true,
		ConnID:    connID,
		JoinedAt:  now,
		LastSeen:  now,
	}
}

func (p *Participant) IsHost() bool {
	return p.Role == RoleHost
}
