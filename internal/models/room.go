// internal/models/room.go
package models

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoomState is the lifecycle position of a room. Values are ordered; only the
// transitions implemented by the game engine are legal.
type RoomState int

const (
	StateWelcome   RoomState = iota // waiting for the first player
	StateLobby                      // players joining and readying up
	StateCountdown                  // everyone connected is ready, clock running
	StateInGame                     // orders are being played
	StateGameOver                   // burnout happened, results follow
	StateResults                    // final stats on screen until eviction
)

var roomStateNames = [...]string{"Welcome", "Lobby", "Countdown", "InGame", "GameOver", "Results"}

func (s RoomState) String() string {
	if s < 0 || int(s) >= len(roomStateNames) {
		return fmt.Sprintf("RoomState(%d)", int(s))
	}
	return roomStateNames[s]
}

func (s RoomState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RoomState) UnmarshalText(b []byte) error {
	for i, name := range roomStateNames {
		if name == string(b) {
			*s = RoomState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown room state %q", string(b))
}

// Room is one game session with its own players, state and clock.
//
// Mu serialises every mutation of the room and of the players and order it owns.
// Different rooms never share a lock.
type Room struct {
	ID       uuid.UUID `json:"roomId"`
	JoinCode string    `json:"joinCode"`
	State    RoomState `json:"state"`

	Players map[uuid.UUID]*Player `json:"-"`

	Mood               Mood       `json:"mood"`
	CurrentOrder       *Order     `json:"currentOrder,omitempty"`
	OrderIndex         int        `json:"orderIndex"`
	CountdownStartedAt *time.Time `json:"countdownStartedAt,omitempty"`
	SuccessCount       int        `json:"successCount"`
	FailCount          int        `json:"failCount"`
	GameStartedAt      *time.Time `json:"gameStartedAt,omitempty"`

	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`

	Mu sync.Mutex `json:"-"`
}

// NewRoom returns an empty room in the Welcome state.
func NewRoom(joinCode string, now time.Time) *Room {
	return &Room{
		ID:             uuid.New(),
		JoinCode:       joinCode,
		State:          StateWelcome,
		Players:        make(map[uuid.UUID]*Player),
		Mood:           MoodNeutral,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// ConnectedPlayersUnsafe returns the players whose connection is live. Assumes Mu is held.
func (r *Room) ConnectedPlayersUnsafe() []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsConnected {
			out = append(out, p)
		}
	}
	return out
}

// AllConnectedReadyUnsafe reports whether at least one player is connected and every
// connected player is ready. Assumes Mu is held.
func (r *Room) AllConnectedReadyUnsafe() bool {
	connected := 0
	for _, p := range r.Players {
		if !p.IsConnected {
			continue
		}
		connected++
		if !p.IsReady {
			return false
		}
	}
	return connected > 0
}

// PlayerListUnsafe copies the players, oldest connection first, so they can be
// serialised after Mu is released.
func (r *Room) PlayerListUnsafe() []Player {
	out := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		cp := *p
		if p.LastPingAt != nil {
			t := *p.LastPingAt
			cp.LastPingAt = &t
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectedAt.Before(out[j].ConnectedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// GameResult is the archived summary of a finished game.
type GameResult struct {
	RoomID       uuid.UUID     `json:"roomId"`
	JoinCode     string        `json:"joinCode"`
	StartedAt    time.Time     `json:"startedAt"`
	FinishedAt   time.Time     `json:"finishedAt"`
	TotalOrders  int           `json:"totalOrders"`
	SuccessCount int           `json:"successCount"`
	FailCount    int           `json:"failCount"`
	FinalMood    Mood          `json:"finalMood"`
	Burnout      bool          `json:"burnout"`
	Players      []PlayerStats `json:"players"`
}
