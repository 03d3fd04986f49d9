// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultBatchSize  = 20
	defaultFlushDelay = 500 * time.Millisecond
	defaultPopTimeout = time.Second
	shutdownFlush     = 5 * time.Second
	// maxPending caps what is held in memory while the sink keeps failing.
	maxPending = 1000
)

// Sink archives a batch of finished games.
type Sink interface {
	InsertGameResults(ctx context.Context, results []models.GameResult) error
}

// Historian pops finished games off the Redis journal and writes them to the sink in
// batches. A batch is flushed when it is full or FlushDelay after the last flush.
type Historian struct {
	rdb    *redis.Client
	queue  string
	sink   Sink
	logger *logrus.Logger

	BatchSize  int
	FlushDelay time.Duration
	PopTimeout time.Duration

	batch     []models.GameResult
	lastFlush time.Time
}

func New(rdb *redis.Client, queue string, sink Sink, logger *logrus.Logger) *Historian {
	return &Historian{
		rdb:        rdb,
		queue:      queue,
		sink:       sink,
		logger:     logger,
		BatchSize:  defaultBatchSize,
		FlushDelay: defaultFlushDelay,
		PopTimeout: defaultPopTimeout,
	}
}

// Run consumes the queue until ctx is cancelled, then flushes what it holds.
func (h *Historian) Run(ctx context.Context) {
	h.lastFlush = time.Now()
	h.logger.WithField("queue", h.queue).Info("historian started")

	for ctx.Err() == nil {
		res, err := h.rdb.BLPop(ctx, h.PopTimeout, h.queue).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			if ctx.Err() != nil {
				break
			}
			h.logger.WithError(err).Error("BLPop failed")
			select {
			case <-ctx.Done():
			case <-time.After(h.PopTimeout):
			}
		case len(res) == 2:
			// res[0] is the queue name and res[1] the payload
			h.append(res[1])
		}
		h.maybeFlush(ctx)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlush)
	defer cancel()
	h.flush(flushCtx)
	h.logger.Info("historian stopped")
}

func (h *Historian) append(payload string) {
	var result models.GameResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		h.logger.WithError(err).Warn("invalid game result record")
		return
	}
	h.batch = append(h.batch, result)
}

func (h *Historian) maybeFlush(ctx context.Context) {
	if len(h.batch) == 0 {
		return
	}
	if len(h.batch) >= h.BatchSize || time.Since(h.lastFlush) >= h.FlushDelay {
		h.flush(ctx)
	}
}

// flush writes the batch. On failure the batch is kept for the next attempt.
func (h *Historian) flush(ctx context.Context) {
	h.lastFlush = time.Now()
	if len(h.batch) == 0 {
		return
	}
	if err := h.sink.InsertGameResults(ctx, h.batch); err != nil {
		h.logger.WithError(err).WithField("pending", len(h.batch)).Error("failed to flush game results")
		if over := len(h.batch) - maxPending; over > 0 {
			h.logger.WithField("dropped", over).Warn("dropping oldest game results")
			h.batch = append(h.batch[:0], h.batch[over:]...)
		}
		return
	}
	h.logger.WithField("count", len(h.batch)).Info("flushed game results")
	h.batch = nil
}
