package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/yudh/internal/cache"
)

// MatchEndAction is the action type that closes a match in the action log.
const MatchEndAction = "match_end"

// InsertMatchActions writes a batch of logged actions in one transaction. The match
// row is created on first sight and completed when its end action arrives.
func InsertMatchActions(ctx context.Context, recs []cache.MatchActionRecord) error {
	if DB == nil {
		return ErrNoDatabase
	}
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range recs {
		rec := rec // per-iteration copy: &rec.ActorID is retained by the batch
		payload, err := json.Marshal(rec.ActionPayload)
		if err != nil {
			return fmt.Errorf("marshal payload of %s #%d: %w", rec.MatchID, rec.ActionIndex, err)
		}
		var actor *uuid.UUID
		if rec.ActorID != uuid.Nil {
			actor = &rec.ActorID
		}

		batch.Queue(`
			INSERT INTO matches (id, status, start_time)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, rec.MatchID, StatusInProgress, time.UnixMilli(rec.Timestamp))
		batch.Queue(`
			INSERT INTO match_actions (match_id, action_index, actor_user_id, action_type, action_payload, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (match_id, action_index) DO NOTHING
		`, rec.MatchID, rec.ActionIndex, actor, rec.ActionType, payload, time.UnixMilli(rec.Timestamp))

		if rec.ActionType == MatchEndAction {
			batch.Queue(`
				UPDATE matches SET status = $2, end_time = $3
				WHERE id = $1 AND status = $4
			`, rec.MatchID, StatusCompleted, time.UnixMilli(rec.Timestamp), StatusInProgress)
		}
	}

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert %d match actions: %w", len(recs), err)
	}
	return nil
}

// MarkMatchAbandoned closes a match that is still in progress.
func MarkMatchAbandoned(ctx context.Context, matchID uuid.UUID) error {
	if DB == nil {
		return ErrNoDatabase
	}
	q := `
		UPDATE matches
		SET status = $2, end_time = NOW()
		WHERE id = $1 AND status = $3
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, e := tx.Exec(ctx, q, matchID, StatusAbandoned, StatusInProgress)
		return e
	})
}
