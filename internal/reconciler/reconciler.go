// internal/reconciler/reconciler.go
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hungrygod/internal/game"
	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 16

// Engine is the subset of the game engine driven by time.
type Engine interface {
	StartGameIfDue(roomID uuid.UUID) error
	CheckOrderTimeout(roomID uuid.UUID) error
}

// Rooms lists the live rooms.
type Rooms interface {
	ListRooms() []*models.Room
}

// Evictor removes stale rooms and reports their ids.
type Evictor interface {
	EvictStaleRooms() []uuid.UUID
}

// EvictionListener is told about rooms removed by a tick.
type EvictionListener interface {
	RoomsEvicted(ids []uuid.UUID)
}

// Reconciler advances every room on a fixed period, independent of client traffic:
// it starts games whose countdown ran out, times out orders and evicts stale rooms.
type Reconciler struct {
	engine   Engine
	rooms    Rooms
	evictor  Evictor
	listener EvictionListener
	interval time.Duration
	logger   *logrus.Logger

	// Concurrency bounds how many rooms are reconciled at once.
	Concurrency int
}

// New builds a reconciler. listener may be nil.
func New(engine Engine, rooms Rooms, evictor Evictor, listener EvictionListener, interval time.Duration, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		engine:      engine,
		rooms:       rooms,
		evictor:     evictor,
		listener:    listener,
		interval:    interval,
		logger:      logger,
		Concurrency: defaultConcurrency,
	}
}

// Run ticks until ctx is cancelled. Every transition is atomic, so stopping between
// ticks leaves no room half way through one.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.WithField("interval", r.interval).Info("reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass over a snapshot of the rooms. Room passes and the
// eviction sweep run side by side; a failure in one room never stops the others.
func (r *Reconciler) Tick(ctx context.Context) {
	rooms := r.rooms.ListRooms()

	limit := r.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit + 1) // one slot for the eviction sweep

	g.Go(func() error {
		r.evict()
		return nil
	})
	for _, room := range rooms {
		if ctx.Err() != nil {
			break
		}
		roomID := room.ID
		g.Go(func() error {
			r.reconcileRoom(roomID)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Reconciler) evict() {
	defer r.recoverPanic(uuid.Nil, "eviction")
	ids := r.evictor.EvictStaleRooms()
	if len(ids) > 0 && r.listener != nil {
		r.listener.RoomsEvicted(ids)
	}
}

func (r *Reconciler) reconcileRoom(roomID uuid.UUID) {
	defer r.recoverPanic(roomID, "room")

	if err := r.engine.StartGameIfDue(roomID); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		r.logger.WithField("room", roomID).WithError(err).Error("countdown check failed")
	}
	if err := r.engine.CheckOrderTimeout(roomID); err != nil && !errors.Is(err, game.ErrRoomNotFound) {
		r.logger.WithField("room", roomID).WithError(err).Error("order timeout check failed")
	}
}

func (r *Reconciler) recoverPanic(roomID uuid.UUID, scope string) {
	if rec := recover(); rec != nil {
		entry := r.logger.WithField("scope", scope)
		if roomID != uuid.Nil {
			entry = entry.WithField("room", roomID)
		}
		entry.WithError(fmt.Errorf("panic: %v", rec)).Error("reconciliation panicked")
	}
}
