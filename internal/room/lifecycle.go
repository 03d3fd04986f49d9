// internal/room/lifecycle.go
package room

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/jason-s-yu/hungrygod/internal/registry"
	"github.com/sirupsen/logrus"
)

const (
	// JoinCodeAlphabet leaves out 0/O and 1/I so codes survive being read aloud.
	JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	JoinCodeLength   = 6

	maxJoinCodeAttempts = 1000
)

// Settings holds the fixed timings of a game.
type Settings struct {
	Countdown         time.Duration // Countdown -> InGame delay
	OrderDuration     time.Duration // time allowed per order
	OrdersPerGame     int           // orders before the game finishes
	OrderPacing       time.Duration // pause between a resolved order and the next
	ResultsTimeout    time.Duration // how long a Results room survives without activity
	InactivityTimeout time.Duration // how long a room with nobody connected survives
}

// DefaultSettings returns the standard game timings.
func DefaultSettings() Settings {
	return Settings{
		Countdown:         6 * time.Second,
		OrderDuration:     10 * time.Second,
		OrdersPerGame:     10,
		OrderPacing:       time.Second,
		ResultsTimeout:    30 * time.Second,
		InactivityTimeout: 5 * time.Minute,
	}
}

// Lifecycle creates rooms, manages membership and evicts stale rooms.
// It is the only writer of player membership, connection flags and activity stamps.
//
// Methods suffixed Unsafe assume the caller holds room.Mu.
type Lifecycle struct {
	registry *registry.Registry
	settings Settings
	logger   *logrus.Logger

	// Now is the clock used by every time based rule. Tests replace it.
	Now func() time.Time

	// intn draws join code symbols.
	intn func(n int) int
}

// NewLifecycle wires a lifecycle to the registry.
func NewLifecycle(reg *registry.Registry, settings Settings, logger *logrus.Logger) *Lifecycle {
	return &Lifecycle{
		registry: reg,
		settings: settings,
		logger:   logger,
		Now:      time.Now,
		intn:     rand.IntN,
	}
}

// Settings returns the game timings.
func (lc *Lifecycle) Settings() Settings { return lc.settings }

// Registry returns the registry this lifecycle writes to.
func (lc *Lifecycle) Registry() *registry.Registry { return lc.registry }

// CreateRoom registers a Welcome room under a fresh join code.
func (lc *Lifecycle) CreateRoom() (*models.Room, error) {
	for attempt := 0; attempt < maxJoinCodeAttempts; attempt++ {
		code := lc.generateJoinCode()
		if lc.registry.GetByJoinCode(code) != nil {
			continue
		}
		room, err := lc.registry.CreateRoom(code, lc.Now())
		if errors.Is(err, registry.ErrJoinCodeTaken) {
			// lost a race with a concurrent create, draw again
			continue
		}
		if err != nil {
			return nil, err
		}
		lc.logger.WithFields(logrus.Fields{"room": room.ID, "code": code}).Info("room created")
		return room, nil
	}
	return nil, fmt.Errorf("no free join code after %d attempts", maxJoinCodeAttempts)
}

func (lc *Lifecycle) generateJoinCode() string {
	b := make([]byte, JoinCodeLength)
	for i := range b {
		b[i] = JoinCodeAlphabet[lc.intn(len(JoinCodeAlphabet))]
	}
	return string(b)
}

// AddPlayerUnsafe inserts the player and stamps activity. The first player moves a
// Welcome room to Lobby; the return value reports whether that happened so the
// caller can broadcast it.
func (lc *Lifecycle) AddPlayerUnsafe(room *models.Room, p *models.Player) bool {
	room.Players[p.ID] = p
	room.LastActivityAt = lc.Now()
	if room.State == models.StateWelcome {
		room.State = models.StateLobby
		return true
	}
	return false
}

// RemovePlayerUnsafe deletes the player entirely. Used for explicit leave, not
// for transport disconnects.
func (lc *Lifecycle) RemovePlayerUnsafe(room *models.Room, playerID uuid.UUID) bool {
	if _, ok := room.Players[playerID]; !ok {
		return false
	}
	delete(room.Players, playerID)
	room.LastActivityAt = lc.Now()
	return true
}

// MarkConnectedUnsafe binds the player to a new connection. The player comes back
// not ready.
func (lc *Lifecycle) MarkConnectedUnsafe(room *models.Room, playerID uuid.UUID, connID string) (*models.Player, bool) {
	p, ok := room.Players[playerID]
	if !ok {
		return nil, false
	}
	now := lc.Now()
	p.ConnectionID = connID
	p.IsConnected = true
	p.IsReady = false
	p.ConnectedAt = now
	p.LastPingAt = &now
	room.LastActivityAt = now
	return p, true
}

// MarkDisconnectedUnsafe flags the player as gone. Identity and stats are kept, the
// ready flag is dropped.
func (lc *Lifecycle) MarkDisconnectedUnsafe(room *models.Room, playerID uuid.UUID) bool {
	p, ok := room.Players[playerID]
	if !ok || !p.IsConnected {
		return false
	}
	p.IsConnected = false
	p.IsReady = false
	return true
}

// PingUnsafe records a keepalive from the player.
func (lc *Lifecycle) PingUnsafe(room *models.Room, playerID uuid.UUID) bool {
	p, ok := room.Players[playerID]
	if !ok {
		return false
	}
	now := lc.Now()
	p.LastPingAt = &now
	room.LastActivityAt = now
	return true
}

// TouchUnsafe stamps room activity.
func (lc *Lifecycle) TouchUnsafe(room *models.Room) {
	room.LastActivityAt = lc.Now()
}

// EvictStaleRooms removes every room that sat in Results past the results timeout,
// or that has had nobody connected past the inactivity timeout. It returns the ids
// it removed.
func (lc *Lifecycle) EvictStaleRooms() []uuid.UUID {
	now := lc.Now()
	var evicted []uuid.UUID
	for _, room := range lc.registry.ListRooms() {
		// removal happens under the room lock so no transition lands between the
		// staleness check and the removal; the registry never takes a room lock
		room.Mu.Lock()
		reason := lc.staleReasonUnsafe(room, now)
		removed := reason != "" && lc.registry.RemoveRoom(room.ID)
		room.Mu.Unlock()
		if removed {
			evicted = append(evicted, room.ID)
			lc.logger.WithFields(logrus.Fields{"room": room.ID, "reason": reason}).Info("room evicted")
		}
	}
	return evicted
}

func (lc *Lifecycle) staleReasonUnsafe(room *models.Room, now time.Time) string {
	idle := now.Sub(room.LastActivityAt)
	if room.State == models.StateResults && idle > lc.settings.ResultsTimeout {
		return "results timeout"
	}
	if len(room.ConnectedPlayersUnsafe()) == 0 && idle > lc.settings.InactivityTimeout {
		return "inactive"
	}
	return ""
}
