// internal/game/engine.go
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/jason-s-yu/hungrygod/internal/registry"
	"github.com/jason-s-yu/hungrygod/internal/room"
	"github.com/sirupsen/logrus"
)

const (
	burnoutReason       = "Burnout - the god's mood dropped too low!"
	recordResultTimeout = 5 * time.Second
)

// ResultRecorder archives the summary of a finished game.
type ResultRecorder interface {
	RecordGameResult(ctx context.Context, result models.GameResult) error
}

// Engine is the room state machine. It is the only writer of game state: room state,
// orders, counters and mood. Every transition runs under the room's Mu; the events a
// transition produces are collected while the lock is held and delivered after it is
// released.
type Engine struct {
	lifecycle *room.Lifecycle
	registry  *registry.Registry
	orders    OrderGenerator
	mood      MoodCalculator
	notifier  Notifier
	recorder  ResultRecorder
	logger    *logrus.Logger

	// AfterFunc runs f once d has elapsed. It schedules the next order after pacing.
	AfterFunc func(d time.Duration, f func())
}

// Option customises an Engine.
type Option func(*Engine)

func WithOrderGenerator(g OrderGenerator) Option { return func(e *Engine) { e.orders = g } }
func WithMoodCalculator(m MoodCalculator) Option { return func(e *Engine) { e.mood = m } }
func WithResultRecorder(r ResultRecorder) Option { return func(e *Engine) { e.recorder = r } }

// NewEngine builds an engine over the lifecycle's registry.
func NewEngine(lc *room.Lifecycle, notifier Notifier, logger *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		lifecycle: lc,
		registry:  lc.Registry(),
		orders:    RandomOrders{},
		mood:      CounterMood{},
		notifier:  notifier,
		logger:    logger,
		AfterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// outbox buffers what a transition wants to emit until the room lock is released.
type outbox struct {
	roomID uuid.UUID
	items  []outgoing
	after  []func()
}

type outgoing struct {
	connID string // empty means the whole room
	ev     Event
}

func (o *outbox) broadcast(ev Event)           { o.items = append(o.items, outgoing{ev: ev}) }
func (o *outbox) send(connID string, ev Event) { o.items = append(o.items, outgoing{connID: connID, ev: ev}) }
func (o *outbox) then(f func())                { o.after = append(o.after, f) }

func (e *Engine) flush(o *outbox) {
	for _, it := range o.items {
		if it.connID == "" {
			e.notifier.Broadcast(o.roomID, it.ev)
		} else {
			e.notifier.Send(it.connID, it.ev)
		}
	}
	for _, f := range o.after {
		f()
	}
}

// withRoom locks the room, runs fn and delivers whatever fn queued.
func (e *Engine) withRoom(roomID uuid.UUID, fn func(r *models.Room, out *outbox) error) error {
	r := e.registry.GetByID(roomID)
	if r == nil {
		return ErrRoomNotFound
	}
	out := &outbox{roomID: roomID}
	r.Mu.Lock()
	// eviction removes rooms under their lock; a room dropped while we waited is gone
	if e.registry.GetByID(roomID) != r {
		r.Mu.Unlock()
		return ErrRoomNotFound
	}
	err := fn(r, out)
	r.Mu.Unlock()
	e.flush(out)
	return err
}

func (e *Engine) now() time.Time { return e.lifecycle.Now() }

// Join adds a new connected player to the room, broadcasts the room state and sends
// the joiner a snapshot. A Welcome room moves to Lobby.
func (e *Engine) Join(roomID uuid.UUID, name, connID string) (models.Player, error) {
	var joined models.Player
	err := e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		p := models.NewPlayer(name, connID, e.now())
		if e.lifecycle.AddPlayerUnsafe(r, p) {
			e.logger.WithField("room", r.ID).Info("room moved to lobby")
		}
		joined = *p
		out.broadcast(roomStateEventUnsafe(r))
		e.reevaluateCountdownUnsafe(r, out)
		out.send(connID, snapshotEventUnsafe(r))
		return nil
	})
	return joined, err
}

// Rejoin binds an existing player to a new connection. The player comes back not
// ready, which cancels a running countdown. It also returns the connection it replaced.
func (e *Engine) Rejoin(roomID, playerID uuid.UUID, connID string) (models.Player, string, error) {
	var rejoined models.Player
	var replaced string
	err := e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		if prev, ok := r.Players[playerID]; ok {
			replaced = prev.ConnectionID
		}
		p, ok := e.lifecycle.MarkConnectedUnsafe(r, playerID, connID)
		if !ok {
			return ErrPlayerNotFound
		}
		rejoined = *p
		out.broadcast(roomStateEventUnsafe(r))
		e.reevaluateCountdownUnsafe(r, out)
		out.send(connID, snapshotEventUnsafe(r))
		return nil
	})
	return rejoined, replaced, err
}

// Leave removes the player from the room entirely.
func (e *Engine) Leave(roomID, playerID uuid.UUID) error {
	return e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		if !e.lifecycle.RemovePlayerUnsafe(r, playerID) {
			return ErrPlayerNotFound
		}
		out.broadcast(roomStateEventUnsafe(r))
		e.reevaluateCountdownUnsafe(r, out)
		return nil
	})
}

// Disconnect marks the player as gone while keeping its identity and stats. A
// connection the player has since replaced by rejoining is ignored.
func (e *Engine) Disconnect(roomID, playerID uuid.UUID, connID string) error {
	return e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		p, ok := r.Players[playerID]
		if !ok {
			return ErrPlayerNotFound
		}
		if p.ConnectionID != connID || !e.lifecycle.MarkDisconnectedUnsafe(r, playerID) {
			return nil
		}
		out.broadcast(roomStateEventUnsafe(r))
		e.reevaluateCountdownUnsafe(r, out)
		return nil
	})
}

// Ping records a player keepalive.
func (e *Engine) Ping(roomID, playerID uuid.UUID) error {
	return e.withRoom(roomID, func(r *models.Room, _ *outbox) error {
		if !e.lifecycle.PingUnsafe(r, playerID) {
			return ErrPlayerNotFound
		}
		return nil
	})
}

// SendSnapshot sends the full room state to a single connection.
func (e *Engine) SendSnapshot(roomID uuid.UUID, connID string) error {
	return e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		out.send(connID, snapshotEventUnsafe(r))
		return nil
	})
}

// SetReady updates a player's ready flag. In Lobby, the change that leaves every
// connected player ready starts the countdown; in Countdown, a withdrawal or a
// non-unanimous room cancels it.
func (e *Engine) SetReady(roomID, playerID uuid.UUID, ready bool) error {
	return e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		p, ok := r.Players[playerID]
		if !ok {
			return ErrPlayerNotFound
		}
		switch r.State {
		case models.StateWelcome, models.StateLobby, models.StateCountdown:
		default:
			return ErrInvalidState
		}

		p.IsReady = ready
		e.lifecycle.TouchUnsafe(r)
		out.broadcast(roomStateEventUnsafe(r))

		switch {
		case r.State == models.StateLobby && ready && r.AllConnectedReadyUnsafe():
			e.startCountdownUnsafe(r, out)
		case r.State == models.StateCountdown && (!ready || !r.AllConnectedReadyUnsafe()):
			e.cancelCountdownUnsafe(r, out)
		}
		return nil
	})
}

func (e *Engine) startCountdownUnsafe(r *models.Room, out *outbox) {
	now := e.now()
	r.State = models.StateCountdown
	r.CountdownStartedAt = &now

	out.broadcast(Event{Type: EventCountdownStarted, Payload: CountdownStartedPayload{
		RoomID:          r.ID,
		StartsAt:        now,
		DurationSeconds: int(e.lifecycle.Settings().Countdown / time.Second),
	}})
	out.broadcast(roomStateEventUnsafe(r))
	e.logger.WithField("room", r.ID).Info("countdown started")
}

func (e *Engine) cancelCountdownUnsafe(r *models.Room, out *outbox) {
	if r.State != models.StateCountdown {
		return
	}
	r.State = models.StateLobby
	r.CountdownStartedAt = nil

	out.broadcast(Event{Type: EventCountdownCancelled, Payload: CountdownCancelledPayload{RoomID: r.ID}})
	out.broadcast(roomStateEventUnsafe(r))
	e.logger.WithField("room", r.ID).Info("countdown cancelled")
}

// reevaluateCountdownUnsafe cancels a running countdown once not every connected
// player is ready any more.
func (e *Engine) reevaluateCountdownUnsafe(r *models.Room, out *outbox) {
	if r.State == models.StateCountdown && !r.AllConnectedReadyUnsafe() {
		e.cancelCountdownUnsafe(r, out)
	}
}

// StartGameIfDue moves a Countdown room whose countdown has run its full duration
// into InGame and issues the first order. Any other room is left alone.
func (e *Engine) StartGameIfDue(roomID uuid.UUID) error {
	return e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		if r.State != models.StateCountdown || r.CountdownStartedAt == nil {
			return nil
		}
		settings := e.lifecycle.Settings()
		now := e.now()
		if now.Sub(*r.CountdownStartedAt) < settings.Countdown {
			return nil
		}

		order, err := e.orders.Generate(now, settings.OrderDuration)
		if err != nil {
			return fmt.Errorf("generate first order: %w", err)
		}

		r.State = models.StateInGame
		r.CountdownStartedAt = nil
		r.OrderIndex = 0
		r.SuccessCount = 0
		r.FailCount = 0
		r.Mood = models.MoodNeutral
		r.GameStartedAt = &now
		e.registry.ClearProcessed(r.ID)

		out.broadcast(Event{Type: EventGameStarted, Payload: GameStartedPayload{RoomID: r.ID, StartedAt: now}})
		out.broadcast(roomStateEventUnsafe(r))
		e.startOrderUnsafe(r, order, out)
		e.logger.WithField("room", r.ID).Info("game started")
		return nil
	})
}

func (e *Engine) startOrderUnsafe(r *models.Room, order *models.Order, out *outbox) {
	r.CurrentOrder = order
	out.broadcast(Event{Type: EventOrderStarted, Payload: OrderStartedPayload{
		OrderID:         order.ID,
		OrderNumber:     r.OrderIndex + 1,
		Required:        order.Clone().Required,
		EndsAt:          order.EndsAt,
		DurationSeconds: int(order.EndsAt.Sub(order.StartsAt) / time.Second),
	}})
}

// startNextOrder issues the order numbered expectedIndex. It does nothing when that
// order was already issued or the game is over.
func (e *Engine) startNextOrder(roomID uuid.UUID, expectedIndex int) error {
	return e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		if r.State != models.StateInGame || r.OrderIndex != expectedIndex {
			return nil
		}
		if r.CurrentOrder != nil && r.CurrentOrder.Status == models.OrderActive {
			return nil
		}
		order, err := e.orders.Generate(e.now(), e.lifecycle.Settings().OrderDuration)
		if err != nil {
			e.logger.WithField("room", r.ID).WithError(err).Error("order generation failed, ending game")
			e.endGameUnsafe(r, false, out)
			return nil
		}
		e.startOrderUnsafe(r, order, out)
		return nil
	})
}

// ProcessHit applies one reported hit. Duplicate hit ids within the current order are
// acknowledged without effect.
func (e *Engine) ProcessHit(roomID, hitID uuid.UUID, item models.ItemType, playerID uuid.UUID) (models.HitResult, error) {
	item, ok := models.ParseItemType(string(item))
	if !ok {
		return models.HitInvalidState, ErrInvalidItemType
	}

	result := models.HitInvalidState
	err := e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		if r.State != models.StateInGame {
			result = models.HitInvalidState
			return nil
		}
		order := r.CurrentOrder
		if order == nil || order.Status != models.OrderActive {
			result = models.HitNoActiveOrder
			return nil
		}
		if e.registry.IsActionProcessed(r.ID, hitID) {
			result = models.HitAlreadyProcessed
			return nil
		}

		order.Submitted[item]++
		if p, ok := r.Players[playerID]; ok {
			p.HitCount++
		}
		e.lifecycle.TouchUnsafe(r)

		if order.Overflowed(item) {
			e.resolveOrderUnsafe(r, models.OrderFailOver, out)
			result = models.HitOrderFailedImmediate
			return nil
		}
		if order.Complete() {
			e.resolveOrderUnsafe(r, models.OrderSuccessExact, out)
			result = models.HitOrderSuccessImmediate
			return nil
		}

		out.broadcast(Event{Type: EventOrderTotalsUpdated, Payload: OrderTotalsUpdatedPayload{
			OrderID:   order.ID,
			Submitted: order.Clone().Submitted,
			Timestamp: e.now(),
		}})
		result = models.HitCounted
		return nil
	})
	if err != nil {
		return models.HitInvalidState, err
	}
	return result, nil
}

// CheckOrderTimeout fails the current order once its end time is reached.
func (e *Engine) CheckOrderTimeout(roomID uuid.UUID) error {
	return e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		if r.State != models.StateInGame || r.CurrentOrder == nil {
			return nil
		}
		if r.CurrentOrder.Status != models.OrderActive || e.now().Before(r.CurrentOrder.EndsAt) {
			return nil
		}
		e.resolveOrderUnsafe(r, models.OrderFailTimeout, out)
		return nil
	})
}

// resolveOrderUnsafe closes the current order, recomputes mood and either ends the
// game or schedules the next order after the pacing delay.
func (e *Engine) resolveOrderUnsafe(r *models.Room, status models.OrderStatus, out *outbox) {
	order := r.CurrentOrder
	order.Status = status
	if status == models.OrderSuccessExact {
		r.SuccessCount++
	} else {
		r.FailCount++
	}

	oldMood := r.Mood
	r.Mood = e.mood.Calculate(r.SuccessCount, r.FailCount)

	snap := order.Clone()
	out.broadcast(Event{Type: EventOrderResolved, Payload: OrderResolvedPayload{
		OrderID:   order.ID,
		Result:    status,
		Required:  snap.Required,
		Submitted: snap.Submitted,
		NewMood:   r.Mood,
	}})
	if oldMood != r.Mood {
		out.broadcast(Event{Type: EventMoodChanged, Payload: MoodChangedPayload{RoomID: r.ID, OldMood: oldMood, NewMood: r.Mood}})
	}

	e.registry.ClearProcessed(r.ID)
	r.OrderIndex++

	e.logger.WithFields(logrus.Fields{
		"room":   r.ID,
		"order":  r.OrderIndex,
		"status": status,
		"mood":   r.Mood,
	}).Debug("order resolved")

	if r.OrderIndex >= e.lifecycle.Settings().OrdersPerGame {
		e.endGameUnsafe(r, false, out)
		return
	}

	roomID, next := r.ID, r.OrderIndex
	pacing := e.lifecycle.Settings().OrderPacing
	out.then(func() {
		e.AfterFunc(pacing, func() {
			if err := e.startNextOrder(roomID, next); err != nil {
				e.logger.WithField("room", roomID).WithError(err).Debug("next order not started")
			}
		})
	})
}

// EndGameOnBurnout ends a running game through GameOver when the mood calculator
// reports burnout. Nothing calls it on its own; it reports whether the game ended.
func (e *Engine) EndGameOnBurnout(roomID uuid.UUID) (bool, error) {
	ended := false
	err := e.withRoom(roomID, func(r *models.Room, out *outbox) error {
		if r.State != models.StateInGame || !e.mood.IsBurnout(r.Mood) {
			return nil
		}
		e.endGameUnsafe(r, true, out)
		ended = true
		return nil
	})
	return ended, err
}

// endGameUnsafe moves the room to Results, through GameOver on burnout, and emits
// the final stats.
func (e *Engine) endGameUnsafe(r *models.Room, burnout bool, out *outbox) {
	if burnout {
		r.State = models.StateGameOver
		out.broadcast(Event{Type: EventGameOver, Payload: GameOverPayload{
			RoomID:          r.ID,
			Reason:          burnoutReason,
			CompletedOrders: r.OrderIndex,
			SuccessCount:    r.SuccessCount,
			FailCount:       r.FailCount,
		}})
	}

	now := e.now()
	r.State = models.StateResults
	r.CurrentOrder = nil
	e.lifecycle.TouchUnsafe(r)
	e.registry.ClearProcessed(r.ID)

	stats := computePlayerStatsUnsafe(r)
	out.broadcast(Event{Type: EventGameFinished, Payload: GameFinishedPayload{
		RoomID:       r.ID,
		TotalOrders:  r.OrderIndex,
		SuccessCount: r.SuccessCount,
		FailCount:    r.FailCount,
		FinalMood:    r.Mood,
		PlayerStats:  stats,
	}})
	out.broadcast(roomStateEventUnsafe(r))

	e.logger.WithFields(logrus.Fields{
		"room":    r.ID,
		"success": r.SuccessCount,
		"fail":    r.FailCount,
		"burnout": burnout,
	}).Info("game finished")

	if e.recorder == nil {
		return
	}
	result := models.GameResult{
		RoomID:       r.ID,
		JoinCode:     r.JoinCode,
		FinishedAt:   now,
		TotalOrders:  r.OrderIndex,
		SuccessCount: r.SuccessCount,
		FailCount:    r.FailCount,
		FinalMood:    r.Mood,
		Burnout:      burnout,
		Players:      stats,
	}
	if r.GameStartedAt != nil {
		result.StartedAt = *r.GameStartedAt
	}
	out.then(func() { go e.recordResult(result) })
}

func (e *Engine) recordResult(result models.GameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), recordResultTimeout)
	defer cancel()
	if err := e.recorder.RecordGameResult(ctx, result); err != nil {
		e.logger.WithField("room", result.RoomID).WithError(err).Warn("failed to record game result")
	}
}

func roomStateEventUnsafe(r *models.Room) Event {
	connected, ready := 0, 0
	for _, p := range r.Players {
		if p.IsConnected {
			connected++
			if p.IsReady {
				ready++
			}
		}
	}
	return Event{Type: EventRoomStateUpdated, Payload: RoomStateUpdatedPayload{
		RoomID:         r.ID,
		State:          r.State,
		Players:        r.PlayerListUnsafe(),
		ConnectedCount: connected,
		ReadyCount:     ready,
	}}
}

func snapshotEventUnsafe(r *models.Room) Event {
	var endsAt *time.Time
	if r.CurrentOrder != nil {
		t := r.CurrentOrder.EndsAt
		endsAt = &t
	}
	return Event{Type: EventStateSnapshot, Payload: StateSnapshotPayload{
		RoomID:       r.ID,
		JoinCode:     r.JoinCode,
		State:        r.State,
		Mood:         r.Mood,
		CurrentOrder: r.CurrentOrder.Clone(),
		OrderIndex:   r.OrderIndex,
		OrderEndsAt:  endsAt,
		SuccessCount: r.SuccessCount,
		FailCount:    r.FailCount,
		Players:      r.PlayerListUnsafe(),
	}}
}
