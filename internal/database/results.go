// internal/database/results.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/hungrygod/internal/models"
)

// Schema creates the archive tables if they are missing.
const Schema = `
CREATE TABLE IF NOT EXISTS game_results (
	room_id       UUID PRIMARY KEY,
	join_code     TEXT NOT NULL,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ NOT NULL,
	total_orders  INT NOT NULL,
	success_count INT NOT NULL,
	fail_count    INT NOT NULL,
	final_mood    TEXT NOT NULL,
	burnout       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS game_result_players (
	room_id    UUID NOT NULL REFERENCES game_results(room_id) ON DELETE CASCADE,
	player_id  UUID NOT NULL,
	name       TEXT NOT NULL,
	hit_count  INT NOT NULL,
	percentage DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (room_id, player_id)
);
`

// ResultStore archives finished games in Postgres.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// EnsureSchema applies Schema.
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// InsertGameResults writes a batch of results in one transaction. Writing the same
// room twice replaces the earlier row, so a redelivered result is harmless.
func (s *ResultStore) InsertGameResults(ctx context.Context, results []models.GameResult) error {
	if len(results) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, res := range results {
			if err := insertGameResultTx(ctx, tx, res); err != nil {
				return fmt.Errorf("insert result for room %s: %w", res.RoomID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx insert game results: %w", err)
	}
	return nil
}

func insertGameResultTx(ctx context.Context, tx pgx.Tx, res models.GameResult) error {
	upsertResult := `
		INSERT INTO game_results (
			room_id, join_code, started_at, finished_at, total_orders,
			success_count, fail_count, final_mood, burnout
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (room_id) DO UPDATE SET
			join_code = $2, started_at = $3, finished_at = $4, total_orders = $5,
			success_count = $6, fail_count = $7, final_mood = $8, burnout = $9
	`
	var startedAt any
	if !res.StartedAt.IsZero() {
		startedAt = res.StartedAt
	}
	if _, err := tx.Exec(ctx, upsertResult,
		res.RoomID, res.JoinCode, startedAt, res.FinishedAt, res.TotalOrders,
		res.SuccessCount, res.FailCount, res.FinalMood.String(), res.Burnout,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM game_result_players WHERE room_id = $1`, res.RoomID); err != nil {
		return err
	}
	for _, p := range res.Players {
		q := `
			INSERT INTO game_result_players (room_id, player_id, name, hit_count, percentage)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, q, res.RoomID, p.PlayerID, p.Name, p.HitCount, p.Percentage); err != nil {
			return err
		}
	}
	return nil
}
