package game

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MatchSummary is the operator view of a live match.
type MatchSummary struct {
	ID        uuid.UUID `json:"id"`
	Phase     Phase     `json:"phase"`
	Round     int       `json:"round"`
	Players   [2]string `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
}

// MatchStore is the registry of live matches keyed by match id.
type MatchStore struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*Match
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches: make(map[uuid.UUID]*Match),
	}
}

func (s *MatchStore) AddMatch(m *Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
}

func (s *MatchStore) GetMatch(id uuid.UUID) (*Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, exists := s.matches[id]
	return m, exists
}

func (s *MatchStore) DeleteMatch(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, id)
}

func (s *MatchStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

// List returns summaries of all live matches, oldest first.
// Matches are summarized after the store lock is released.
func (s *MatchStore) List() []MatchSummary {
	s.mu.Lock()
	matches := make([]*Match, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, m)
	}
	s.mu.Unlock()

	out := make([]MatchSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
