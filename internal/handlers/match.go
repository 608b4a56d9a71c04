package handlers

import (
	"net/http"

	"github.com/jason-s-yu/yudh/internal/database"
	"github.com/jason-s-yu/yudh/internal/game"
)

type matchListResponse struct {
	Matches []game.MatchSummary `json:"matches"`
	Waiting int                 `json:"waiting"`
}

// ListMatchesHandler returns the live matches and the size of the waiting pool.
func ListMatchesHandler(ms *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		matches := ms.Matches.List()
		if matches == nil {
			matches = []game.MatchSummary{}
		}
		writeJSON(w, http.StatusOK, matchListResponse{
			Matches: matches,
			Waiting: ms.Matchmaker.Waiting(),
		})
	}
}

// HealthHandler reports liveness.
func HealthHandler(ms *MatchServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"database": database.Enabled(),
			"matches":  ms.Matches.Len(),
		})
	}
}
