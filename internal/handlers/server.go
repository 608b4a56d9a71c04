// internal/handlers/server.go
package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/yudh/internal/database"
	"github.com/jason-s-yu/yudh/internal/game"
	"github.com/jason-s-yu/yudh/internal/rating"
	"github.com/sirupsen/logrus"
)

// MatchServer owns the live matches and the matchmaking pool shared by every socket.
type MatchServer struct {
	Logger     *logrus.Logger
	Matches    *game.MatchStore
	Matchmaker *game.Matchmaker
}

// NewMatchServer creates a server whose matches are built with opts. Finished
// matches are persisted when a database is connected.
func NewMatchServer(logger *logrus.Logger, opts game.MatchOptions) *MatchServer {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logger)
	}
	store := game.NewMatchStore()
	ms := &MatchServer{
		Logger:     logger,
		Matches:    store,
		Matchmaker: game.NewMatchmaker(store, opts),
	}
	ms.Matchmaker.OnMatchEnd = ms.onMatchEnd
	return ms
}

func (ms *MatchServer) onMatchEnd(res game.MatchResult) {
	if !database.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ms.persistResult(ctx, res); err != nil {
			ms.Logger.WithError(err).WithField("match", res.MatchID).Error("failed to persist match result")
		}
	}()
}

// persistResult stores the finished match and rates knockouts between two users.
func (ms *MatchServer) persistResult(ctx context.Context, res game.MatchResult) error {
	winner, decided := res.Winner()

	rec := database.MatchRecord{
		ID:        res.MatchID,
		Status:    database.StatusCompleted,
		Reason:    string(res.Reason),
		Rounds:    res.Rounds,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}
	if res.Reason == game.EndAbandoned {
		rec.Status = database.StatusAbandoned
	}
	if decided {
		rec.WinnerUserID = res.Players[winner].UserID
	}
	for _, s := range []game.Side{game.SideA, game.SideB} {
		p := res.Players[s]
		rec.Players = append(rec.Players, database.MatchPlayer{
			UserID: p.UserID,
			Side:   s.String(),
			Name:   p.Name,
			Health: p.Health,
			Won:    decided && winner == s,
		})
	}
	if err := database.RecordMatch(ctx, rec); err != nil {
		return err
	}

	if res.Reason != game.EndKnockout {
		return nil
	}
	a, b := res.Players[game.SideA].UserID, res.Players[game.SideB].UserID
	if a == uuid.Nil || b == uuid.Nil || a == b {
		return nil
	}
	score := rating.Draw
	if decided {
		score = rating.Loss
		if winner == game.SideA {
			score = rating.Win
		}
	}
	_, _, err := database.RateDuel(ctx, res.MatchID, a, b, score)
	return err
}
