package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/models"
)

// EventType names an outbound event.
type EventType string

const (
	EventRoomCreated        EventType = "RoomCreated"
	EventRoomJoined         EventType = "RoomJoined"
	EventRoomStateUpdated   EventType = "RoomStateUpdated"
	EventCountdownStarted   EventType = "CountdownStarted"
	EventCountdownCancelled EventType = "CountdownCancelled"
	EventGameStarted        EventType = "GameStarted"
	EventOrderStarted       EventType = "OrderStarted"
	EventOrderTotalsUpdated EventType = "OrderTotalsUpdated"
	EventOrderResolved      EventType = "OrderResolved"
	EventMoodChanged        EventType = "MoodChanged"
	EventGameOver           EventType = "GameOver"
	EventGameFinished       EventType = "GameFinished"
	EventStateSnapshot      EventType = "StateSnapshot"
	EventError              EventType = "Error"
)

// Event is a single named message for one connection or a room's group.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

type RoomCreatedPayload struct {
	RoomID   uuid.UUID `json:"roomId"`
	JoinCode string    `json:"joinCode"`
}

type RoomJoinedPayload struct {
	RoomID      uuid.UUID `json:"roomId"`
	PlayerID    uuid.UUID `json:"playerId"`
	RejoinToken string    `json:"rejoinToken,omitempty"`
}

type RoomStateUpdatedPayload struct {
	RoomID         uuid.UUID        `json:"roomId"`
	State          models.RoomState `json:"state"`
	Players        []models.Player  `json:"players"`
	ConnectedCount int              `json:"connectedCount"`
	ReadyCount     int              `json:"readyCount"`
}

type CountdownStartedPayload struct {
	RoomID          uuid.UUID `json:"roomId"`
	StartsAt        time.Time `json:"startsAt"`
	DurationSeconds int       `json:"durationSeconds"`
}

type CountdownCancelledPayload struct {
	RoomID uuid.UUID `json:"roomId"`
}

type GameStartedPayload struct {
	RoomID    uuid.UUID `json:"roomId"`
	StartedAt time.Time `json:"startedAt"`
}

type OrderStartedPayload struct {
	OrderID         uuid.UUID               `json:"orderId"`
	OrderNumber     int                     `json:"orderNumber"`
	Required        map[models.ItemType]int `json:"required"`
	EndsAt          time.Time               `json:"endsAt"`
	DurationSeconds int                     `json:"durationSeconds"`
}

type OrderTotalsUpdatedPayload struct {
	OrderID   uuid.UUID               `json:"orderId"`
	Submitted map[models.ItemType]int `json:"submitted"`
	Timestamp time.Time               `json:"timestamp"`
}

type OrderResolvedPayload struct {
	OrderID   uuid.UUID               `json:"orderId"`
	Result    models.OrderStatus      `json:"result"`
	Required  map[models.ItemType]int `json:"required"`
	Submitted map[models.ItemType]int `json:"submitted"`
	NewMood   models.Mood             `json:"newMood"`
}

type MoodChangedPayload struct {
	RoomID  uuid.UUID   `json:"roomId"`
	OldMood models.Mood `json:"oldMood"`
	NewMood models.Mood `json:"newMood"`
}

type GameOverPayload struct {
	RoomID          uuid.UUID `json:"roomId"`
	Reason          string    `json:"reason"`
	CompletedOrders int       `json:"completedOrders"`
	SuccessCount    int       `json:"successCount"`
	FailCount       int       `json:"failCount"`
}

type GameFinishedPayload struct {
	RoomID       uuid.UUID            `json:"roomId"`
	TotalOrders  int                  `json:"totalOrders"`
	SuccessCount int                  `json:"successCount"`
	FailCount    int                  `json:"failCount"`
	FinalMood    models.Mood          `json:"finalMood"`
	PlayerStats  []models.PlayerStats `json:"playerStats"`
}

type StateSnapshotPayload struct {
	RoomID       uuid.UUID        `json:"roomId"`
	JoinCode     string           `json:"joinCode"`
	State        models.RoomState `json:"state"`
	Mood         models.Mood      `json:"mood"`
	CurrentOrder *models.Order    `json:"currentOrder,omitempty"`
	OrderIndex   int              `json:"orderIndex"`
	OrderEndsAt  *time.Time       `json:"orderEndsAt,omitempty"`
	SuccessCount int              `json:"successCount"`
	FailCount    int              `json:"failCount"`
	Players      []models.Player  `json:"players"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorEvent builds the Error event for err.
func errorEvent(err error) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Code: ErrorCode(err), Message: err.Error()}}
}

// Notifier delivers events to connections. Implementations must not block.
type Notifier interface {
	Send(connID string, ev Event)
	Broadcast(roomID uuid.UUID, ev Event)
}

// Transport is a Notifier that also manages per-room broadcast groups.
type Transport interface {
	Notifier
	AddToGroup(roomID uuid.UUID, connID string)
	RemoveFromGroup(roomID uuid.UUID, connID string)
}
