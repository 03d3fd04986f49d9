// internal/cache/journal.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list finished games are pushed to.
const DefaultQueueName = "hungrygod_results"

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Journal queues finished games on a Redis list for the historian to archive.
// The game server never waits on the database.
type Journal struct {
	rdb   *redis.Client
	queue string
}

// NewJournal returns a journal pushing to queue, or DefaultQueueName if empty.
func NewJournal(rdb *redis.Client, queue string) *Journal {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Journal{rdb: rdb, queue: queue}
}

// Queue is the list name the journal writes to.
func (j *Journal) Queue() string { return j.queue }

// RecordGameResult serializes the result to JSON and appends it to the queue.
func (j *Journal) RecordGameResult(ctx context.Context, result models.GameResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal game result: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.queue, err)
	}
	return nil
}
