// internal/models/player.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is one participant of a room. A disconnected player keeps its identity and
// stats so it can rejoin; only the connection fields change.
type Player struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	// ConnectionID is the transport identity currently bound to this player.
	// It is reassigned when the player reconnects.
	ConnectionID string `json:"-"`

	IsConnected bool `json:"isConnected"`
	IsReady     bool `json:"isReady"`
	HitCount    int  `json:"hitCount"`

	ConnectedAt time.Time  `json:"connectedAt"`
	LastPingAt  *time.Time `json:"lastPingAt,omitempty"`
}

// NewPlayer builds a connected, not-ready player bound to connID.
func NewPlayer(name, connID string, now time.Time) *Player {
	return &Player{
		ID:           uuid.New(),
		Name:         name,
		ConnectionID: connID,
		IsConnected:  true,
		ConnectedAt:  now,
	}
}

// PlayerStats is one line of the end-of-game contribution table.
type PlayerStats struct {
	PlayerID   uuid.UUID `json:"playerId"`
	Name       string    `json:"name"`
	HitCount   int       `json:"hitCount"`
	Percentage float64   `json:"percentage"`
}
