package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/jrong1271/scrum-planning-poker/internal/config"
	"github.com/jrong1271/scrum-planning-poker/internal/models"
	"github.com/jrong1271/scrum-planning-poker/internal/security"
)

const roomIDAttempts = 5

// room owns one room's participant registry. Every mutation goes through the
// room mutex, so operations on the same room are serialized while operations
// on different rooms proceed concurrently. Once deleted is set the room is
// dead for good; its id is never reused, so a handler holding a stale pointer
// cannot resurrect it.
type room struct {
	mu           sync.Mutex
	id           string
	participants map[string]*models.Participant
	order        []string // join order, preserved for stable display
	deleted      bool
	createdAt    time.Time
	lastActivity time.Time
}

func newRoom(id string) *room {
	now := time.Now()
	return &room{
		id:           id,
		participants: make(map[string]*models.Participant),
		createdAt:    now,
		lastActivity: now,
	}
}

// snapshotLocked copies the registry into an immutable snapshot. Callers must
// hold r.mu.
func (r *room) snapshotLocked() models.RoomSnapshot {
	return models.RoomSnapshot{
		RoomID: r.id,
		Participants: lo.Map(r.order, func(sessionID string, _ int) models.Participant {
			return *r.participants[sessionID]
		}),
	}
}

// hostCountLocked is the exactly-one-host invariant check. Callers must hold
// r.mu.
func (r *room) hostCountLocked() int {
	return lo.CountBy(lo.Values(r.participants), func(p *models.Participant) bool {
		return p.IsHost()
	})
}

// RoomManager is the process-wide room table plus the per-room participant
// registries behind it. The table mutex only guards the rooms map; registry
// state is guarded by each room's own mutex.
type RoomManager struct {
	mu      sync.RWMutex
	rooms   map[string]*room
	log     *zap.Logger
	metrics *Metrics
}

func NewRoomManager(log *zap.Logger, metrics *Metrics) *RoomManager {
	return &RoomManager{
		rooms:   make(map[string]*room),
		log:     log,
		metrics: metrics,
	}
}

// CreateRoom allocates a fresh unguessable room id, creates an empty registry
// and inserts the caller as host.
func (rm *RoomManager) CreateRoom(sessionID, userName, connID string) (models.RoomSnapshot, error) {
	safeName, err := security.SanitizeDisplayName(userName)
	if err != nil {
		return models.RoomSnapshot{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	rm.mu.Lock()
	if len(rm.rooms) >= config.MaxRoomsPerInstance {
		rm.mu.Unlock()
		return models.RoomSnapshot{}, ErrRoomFull
	}

	var r *room
	for i := 0; i < roomIDAttempts; i++ {
		id := uuid.New().String()
		if _, taken := rm.rooms[id]; taken {
			continue
		}
		r = newRoom(id)
		rm.rooms[id] = r
		break
	}
	rm.mu.Unlock()

	if r == nil {
		// Effectively unreachable with UUID ids; treated as fatal by callers.
		return models.RoomSnapshot{}, ErrIDExhausted
	}

	r.mu.Lock()
	r.participants[sessionID] = models.NewParticipant(sessionID, safeName, models.RoleHost, connID)
	r.order = append(r.order, sessionID)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	rm.metrics.IncrementRooms()
	rm.log.Info("room created",
		zap.String("room_id", r.id),
		zap.String("session_id", sessionID))

	return snap, nil
}

// Join inserts a new participant, or reconciles a reconnect in place. The
// first identity to enter an empty registry becomes host; a rejoin with a
// known identity only refreshes the display name and connection reference and
// never touches the role. The connection reference is last-write-wins under
// the room lock, so two simultaneous connections for one identity settle on
// whichever wrote last.
func (rm *RoomManager) Join(roomID, sessionID, userName, connID string) (models.RoomSnapshot, bool, error) {
	safeName, err := security.SanitizeDisplayName(userName)
	if err != nil {
		return models.RoomSnapshot{}, false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	r := rm.getRoom(roomID)
	if r == nil {
		return models.RoomSnapshot{}, false, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return models.RoomSnapshot{}, false, ErrRoomNotFound
	}

	if p, ok := r.participants[sessionID]; ok {
		// Idempotent reconnect: no duplicate entry, role unchanged.
		p.Name = safeName
		p.ConnID = connID
		p.Connected = true
		p.LastSeen = time.Now()
		r.lastActivity = time.Now()
		return r.snapshotLocked(), false, nil
	}

	if len(r.participants) >= config.MaxConnectionsPerRoom {
		return models.RoomSnapshot{}, false, ErrRoomFull
	}

	role := models.RoleParticipant
	if len(r.participants) == 0 {
		role = models.RoleHost
	}
	r.participants[sessionID] = models.NewParticipant(sessionID, safeName, role, connID)
	r.order = append(r.order, sessionID)
	r.lastActivity = time.Now()

	if r.hostCountLocked() > 1 {
		// Roll back so the registry never exposes two hosts, even for the
		// duration of a defect.
		delete(r.participants, sessionID)
		r.order = r.order[:len(r.order)-1]
		rm.log.DPanic("host invariant violated",
			zap.String("room_id", roomID),
			zap.String("session_id", sessionID))
		return models.RoomSnapshot{}, false, ErrDuplicateHost
	}

	return r.snapshotLocked(), true, nil
}

// Leave removes the participant if present; a leave for an identity that
// already left is tolerated as a no-op. The room is deleted eagerly once its
// last participant is gone. The returned bool reports whether the room still
// exists (callers broadcast the snapshot only in that case).
//
// Host departure leaves the room hostless on purpose: the host role is
// assigned only when an identity enters an empty registry, never reassigned
// on departure. The remaining participants keep their roles until the room
// empties out and a future room starts fresh.
func (rm *RoomManager) Leave(roomID, sessionID string) (models.RoomSnapshot, bool) {
	r := rm.getRoom(roomID)
	if r == nil {
		return models.RoomSnapshot{}, false
	}

	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return models.RoomSnapshot{}, false
	}

	if _, ok := r.participants[sessionID]; ok {
		delete(r.participants, sessionID)
		r.order = lo.Without(r.order, sessionID)
		r.lastActivity = time.Now()
	}

	if len(r.participants) == 0 {
		r.deleted = true
		r.mu.Unlock()
		rm.removeRoom(roomID)
		return models.RoomSnapshot{}, false
	}

	snap := r.snapshotLocked()
	r.mu.Unlock()
	return snap, true
}

// SetSelection stores a participant's current card selection. A nil value
// clears it.
func (rm *RoomManager) SetSelection(roomID, sessionID string, value *float64) error {
	r := rm.getRoom(roomID)
	if r == nil {
		return ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return ErrRoomNotFound
	}

	p, ok := r.participants[sessionID]
	if !ok {
		return ErrParticipantNotFound
	}

	p.Selection = value
	p.LastSeen = time.Now()
	r.lastActivity = time.Now()
	return nil
}

// Restart clears every participant's selection. The wipe happens under the
// room lock, so no concurrent read can observe a half-cleared registry.
func (rm *RoomManager) Restart(roomID string) (models.RoomSnapshot, error) {
	r := rm.getRoom(roomID)
	if r == nil {
		return models.RoomSnapshot{}, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return models.RoomSnapshot{}, ErrRoomNotFound
	}

	for _, p := range r.participants {
		p.Selection = nil
	}
	r.lastActivity = time.Now()
	return r.snapshotLocked(), nil
}

// Snapshot returns an immutable copy of the room's current state.
func (rm *RoomManager) Snapshot(roomID string) (models.RoomSnapshot, error) {
	r := rm.getRoom(roomID)
	if r == nil {
		return models.RoomSnapshot{}, ErrRoomNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return models.RoomSnapshot{}, ErrRoomNotFound
	}
	return r.snapshotLocked(), nil
}

// SetConnected flags a participant's presence without removing it. A
// connection that drops without a leave-room keeps its registry entry,
// disconnected, until the same identity rejoins or the janitor prunes it.
// The change only applies while connID matches the participant's current
// connection reference: a teardown for a connection already superseded by a
// rejoin must not mark the live connection disconnected.
func (rm *RoomManager) SetConnected(roomID, sessionID string, connected bool, connID string) {
	r := rm.getRoom(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted {
		return
	}
	if p, ok := r.participants[sessionID]; ok && p.ConnID == connID {
		p.Connected = connected
		p.LastSeen = time.Now()
	}
}

// PruneDisconnected removes participants that have been disconnected longer
// than maxAge, then the rooms that emptied out. It returns snapshots of the
// surviving rooms that changed, for re-broadcast.
func (rm *RoomManager) PruneDisconnected(maxAge time.Duration) []models.RoomSnapshot {
	rm.mu.RLock()
	rooms := lo.Values(rm.rooms)
	rm.mu.RUnlock()

	cutoff := time.Now().Add(-maxAge)
	var changed []models.RoomSnapshot
	var emptied []string

	for _, r := range rooms {
		r.mu.Lock()
		if r.deleted {
			r.mu.Unlock()
			continue
		}

		stale := lo.Filter(r.order, func(sessionID string, _ int) bool {
			p := r.participants[sessionID]
			return !p.Connected && p.LastSeen.Before(cutoff)
		})
		if len(stale) == 0 {
			r.mu.Unlock()
			continue
		}

		for _, sessionID := range stale {
			delete(r.participants, sessionID)
		}
		r.order = lo.Without(r.order, stale...)

		if len(r.participants) == 0 {
			r.deleted = true
			emptied = append(emptied, r.id)
		} else {
			changed = append(changed, r.snapshotLocked())
		}
		r.mu.Unlock()

		rm.log.Info("pruned stale participants",
			zap.String("room_id", r.id),
			zap.Int("removed", len(stale)))
		rm.metrics.AddPrunedParticipants(int64(len(stale)))
	}

	for _, id := range emptied {
		rm.removeRoom(id)
	}

	return changed
}

// RoomCount reports the number of live rooms.
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

func (rm *RoomManager) getRoom(roomID string) *room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[roomID]
}

func (rm *RoomManager) removeRoom(roomID string) {
	rm.mu.Lock()
	_, ok := rm.rooms[roomID]
	delete(rm.rooms, roomID)
	rm.mu.Unlock()

	if ok {
		rm.metrics.DecrementRooms()
		rm.log.Info("room removed (empty)", zap.String("room_id", roomID))
	}
}
