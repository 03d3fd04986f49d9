// internal/registry/registry.go
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/models"
)

// ErrJoinCodeTaken is returned by CreateRoom when another room already holds the code.
var ErrJoinCodeTaken = errors.New("join code already in use")

// Registry is the in-memory index of live rooms. It holds no game logic.
//
// Each index is guarded by its own lock so that lookups on one never wait on
// writes to another, and none of them ever takes a room's lock.
type Registry struct {
	roomsMu sync.RWMutex
	rooms   map[uuid.UUID]*models.Room

	codesMu sync.RWMutex
	codes   map[string]uuid.UUID

	processedMu sync.RWMutex
	processed   map[uuid.UUID]*actionSet

	connMu      sync.RWMutex
	connRooms   map[string]uuid.UUID
	connPlayers map[string]uuid.UUID
}

// actionSet is a per-room set of applied action ids.
type actionSet struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		rooms:       make(map[uuid.UUID]*models.Room),
		codes:       make(map[string]uuid.UUID),
		processed:   make(map[uuid.UUID]*actionSet),
		connRooms:   make(map[string]uuid.UUID),
		connPlayers: make(map[string]uuid.UUID),
	}
}

// CreateRoom registers a new Welcome room under joinCode. The code is reserved
// atomically, so two concurrent callers can never share one.
func (r *Registry) CreateRoom(joinCode string, now time.Time) (*models.Room, error) {
	room := models.NewRoom(joinCode, now)

	r.codesMu.Lock()
	if _, taken := r.codes[joinCode]; taken {
		r.codesMu.Unlock()
		return nil, ErrJoinCodeTaken
	}
	r.codes[joinCode] = room.ID
	r.codesMu.Unlock()

	r.processedMu.Lock()
	r.processed[room.ID] = &actionSet{ids: make(map[uuid.UUID]struct{})}
	r.processedMu.Unlock()

	r.roomsMu.Lock()
	r.rooms[room.ID] = room
	r.roomsMu.Unlock()

	return room, nil
}

// GetByID returns the room or nil.
func (r *Registry) GetByID(id uuid.UUID) *models.Room {
	r.roomsMu.RLock()
	defer r.roomsMu.RUnlock()
	return r.rooms[id]
}

// GetByJoinCode returns the room holding code or nil.
func (r *Registry) GetByJoinCode(code string) *models.Room {
	r.codesMu.RLock()
	id, ok := r.codes[code]
	r.codesMu.RUnlock()
	if !ok {
		return nil
	}
	return r.GetByID(id)
}

// RemoveRoom drops the room, its join code and its idempotency set.
// It reports whether the room was present.
func (r *Registry) RemoveRoom(id uuid.UUID) bool {
	r.roomsMu.Lock()
	room, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	r.roomsMu.Unlock()
	if !ok {
		return false
	}

	r.codesMu.Lock()
	if owner, held := r.codes[room.JoinCode]; held && owner == id {
		delete(r.codes, room.JoinCode)
	}
	r.codesMu.Unlock()

	r.processedMu.Lock()
	delete(r.processed, id)
	r.processedMu.Unlock()
	return true
}

// ListRooms returns a point-in-time snapshot of all rooms. Rooms added or removed
// after the call are not reflected, and iterating the result needs no lock.
func (r *Registry) ListRooms() []*models.Room {
	r.roomsMu.RLock()
	defer r.roomsMu.RUnlock()
	out := make([]*models.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// Count returns the number of live rooms.
func (r *Registry) Count() int {
	r.roomsMu.RLock()
	defer r.roomsMu.RUnlock()
	return len(r.rooms)
}

// IsActionProcessed records actionID for the room and reports whether it had
// already been recorded. The test and the insert happen under one lock.
// An unknown room reports false.
func (r *Registry) IsActionProcessed(roomID, actionID uuid.UUID) bool {
	r.processedMu.RLock()
	set, ok := r.processed[roomID]
	r.processedMu.RUnlock()
	if !ok {
		return false
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	if _, seen := set.ids[actionID]; seen {
		return true
	}
	set.ids[actionID] = struct{}{}
	return false
}

// ClearProcessed empties the room's idempotency set.
func (r *Registry) ClearProcessed(roomID uuid.UUID) {
	r.processedMu.RLock()
	set, ok := r.processed[roomID]
	r.processedMu.RUnlock()
	if !ok {
		return
	}
	set.mu.Lock()
	set.ids = make(map[uuid.UUID]struct{})
	set.mu.Unlock()
}

// MapConnectionToRoom binds a transport connection to a room. Last write wins.
func (r *Registry) MapConnectionToRoom(connID string, roomID uuid.UUID) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	r.connRooms[connID] = roomID
}

// MapConnectionToPlayer binds a transport connection to a player. Last write wins.
func (r *Registry) MapConnectionToPlayer(connID string, playerID uuid.UUID) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	r.connPlayers[connID] = playerID
}

// RoomForConnection returns the room bound to connID.
func (r *Registry) RoomForConnection(connID string) (uuid.UUID, bool) {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	id, ok := r.connRooms[connID]
	return id, ok
}

// PlayerForConnection returns the player bound to connID.
func (r *Registry) PlayerForConnection(connID string) (uuid.UUID, bool) {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	id, ok := r.connPlayers[connID]
	return id, ok
}

// ClearConnection forgets both bindings of connID.
func (r *Registry) ClearConnection(connID string) {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	delete(r.connRooms, connID)
	delete(r.connPlayers, connID)
}

// UnbindPlayer forgets connID's bindings if it still speaks for playerID, and
// reports whether it did.
func (r *Registry) UnbindPlayer(connID string, playerID uuid.UUID) bool {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if bound, ok := r.connPlayers[connID]; !ok || bound != playerID {
		return false
	}
	delete(r.connRooms, connID)
	delete(r.connPlayers, connID)
	return true
}
