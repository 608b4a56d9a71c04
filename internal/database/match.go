// internal/database/match.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/yudh/internal/models"
	"github.com/jason-s-yu/yudh/internal/rating"
)

// Match statuses stored in matches.status.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"
)

// MatchPlayer is one row of match_results.
type MatchPlayer struct {
	UserID uuid.UUID
	Side   string
	Name   string
	Health int
	Won    bool
}

// MatchRecord is the persisted summary of a finished match.
type MatchRecord struct {
	ID           uuid.UUID
	Status       string
	Reason       string
	WinnerUserID uuid.UUID // uuid.Nil for a draw
	Rounds       int
	StartedAt    time.Time
	EndedAt      time.Time
	Players      []MatchPlayer
}

// RecordMatch upserts the match row and its per-player results.
func RecordMatch(ctx context.Context, rec MatchRecord) error {
	if DB == nil {
		return ErrNoDatabase
	}
	var winner *uuid.UUID
	if rec.WinnerUserID != uuid.Nil {
		winner = &rec.WinnerUserID
	}

	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertMatch := `
			INSERT INTO matches (id, status, end_reason, winner_id, rounds, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE
			SET status = $2, end_reason = $3, winner_id = $4, rounds = $5, end_time = $7
		`
		if _, e := tx.Exec(ctx, upsertMatch,
			rec.ID, rec.Status, rec.Reason, winner, rec.Rounds, rec.StartedAt, rec.EndedAt,
		); e != nil {
			return e
		}

		for _, p := range rec.Players {
			q := `
				INSERT INTO match_results (match_id, user_id, side, display_name, final_health, did_win)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (match_id, user_id)
				DO UPDATE SET final_health = $5, did_win = $6
			`
			if _, e := tx.Exec(ctx, q, rec.ID, p.UserID, p.Side, p.Name, p.Health, p.Won); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert match or results: %w", err)
	}
	return nil
}

// RateDuel applies a 1v1 Glicko-2 update for a finished match and logs both changes
// in ratings. scoreA is rating.Win, rating.Draw or rating.Loss for user a.
func RateDuel(ctx context.Context, matchID, a, b uuid.UUID, scoreA float64) (models.User, models.User, error) {
	if DB == nil {
		return models.User{}, models.User{}, ErrNoDatabase
	}
	var newA, newB models.User
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		lock := `SELECT ` + userColumns + ` FROM users WHERE id=$1 FOR UPDATE`
		oldA, e := scanUser(tx.QueryRow(ctx, lock, a))
		if e != nil {
			return fmt.Errorf("load %s: %w", a, e)
		}
		oldB, e := scanUser(tx.QueryRow(ctx, lock, b))
		if e != nil {
			return fmt.Errorf("load %s: %w", b, e)
		}

		newA, newB = rating.Duel(*oldA, *oldB, scoreA)

		upd := `UPDATE users SET elo_1v1=$1, phi_1v1=$2, sigma_1v1=$3 WHERE id=$4`
		for _, u := range []models.User{newA, newB} {
			if _, e := tx.Exec(ctx, upd, u.Elo1v1, u.Phi1v1, u.Sigma1v1, u.ID); e != nil {
				return e
			}
		}

		_, e = tx.Exec(ctx, `
			INSERT INTO ratings (user_id, match_id, old_rating, new_rating, rating_mode)
			VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)
		`,
			a, matchID, oldA.Elo1v1, newA.Elo1v1, "1v1",
			b, matchID, oldB.Elo1v1, newB.Elo1v1, "1v1",
		)
		return e
	})
	if err != nil {
		return models.User{}, models.User{}, fmt.Errorf("failed to commit 1v1 rating: %w", err)
	}
	return newA, newB, nil
}
