// internal/game/matchmaker.go
package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client is a connected player as seen by the matchmaker. Deliver must not block.
type Client struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Name    string
	Avatar  string
	Deliver func(ev MatchEvent)
}

func (c *Client) deliver(ev MatchEvent) {
	if c.Deliver != nil {
		c.Deliver(ev)
	}
}

// membership ties a client to its match and seat.
type membership struct {
	matchID uuid.UUID
	side    Side
}

// Matchmaker pairs clients first-come first-served and tracks which match each
// client plays in.
//
// Lock order: the matchmaker never calls into a Match while holding mu.
type Matchmaker struct {
	mu      sync.Mutex
	waiting []*Client
	members map[uuid.UUID]membership

	store  *MatchStore
	opts   MatchOptions
	logger *logrus.Entry

	// OnMatchEnd is called after a finished match has been removed from the store.
	OnMatchEnd func(res MatchResult)
}

// NewMatchmaker creates a matchmaker that registers its matches in store. opts is
// passed to every new match.
func NewMatchmaker(store *MatchStore, opts MatchOptions) *Matchmaker {
	if opts.Source == nil {
		opts.Source = NewCryptoSource()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Matchmaker{
		members: make(map[uuid.UUID]membership),
		store:   store,
		opts:    opts,
		logger:  opts.Logger,
	}
}

// FindMatch pairs c with the longest-waiting client, or queues c if nobody waits.
// A client that is already queued or playing is ignored.
func (mm *Matchmaker) FindMatch(c *Client) {
	mm.mu.Lock()
	if _, playing := mm.members[c.ID]; playing || mm.waitingIndex(c.ID) >= 0 {
		mm.mu.Unlock()
		return
	}
	if len(mm.waiting) == 0 {
		mm.waiting = append(mm.waiting, c)
		mm.mu.Unlock()

		mm.logger.WithField("client", c.ID).Debug("client waiting for match")
		c.deliver(MatchEvent{Type: EventWaitingForMatch, Payload: map[string]interface{}{
			"message": "Waiting for an opponent...",
		}})
		return
	}

	waiter := mm.waiting[0]
	mm.waiting = mm.waiting[1:]

	clients := [2]*Client{c, waiter}
	m := NewMatch(uuid.New(),
		NewPlayer(c.ID, c.UserID, c.Name, c.Avatar),
		NewPlayer(waiter.ID, waiter.UserID, waiter.Name, waiter.Avatar),
		mm.opts,
	)
	m.BroadcastFn = func(ev MatchEvent) {
		for _, cl := range clients {
			cl.deliver(ev)
		}
	}
	m.BroadcastToPlayerFn = func(playerID uuid.UUID, ev MatchEvent) {
		for _, cl := range clients {
			if cl.ID == playerID {
				cl.deliver(ev)
			}
		}
	}
	m.OnEnd = mm.release

	cards := [2]SpecialCard{m.Players[SideA].Card, m.Players[SideB].Card}
	mm.members[c.ID] = membership{matchID: m.ID, side: SideA}
	mm.members[waiter.ID] = membership{matchID: m.ID, side: SideB}
	mm.store.AddMatch(m)
	mm.mu.Unlock()

	mm.logger.WithFields(logrus.Fields{
		"match":   m.ID,
		"playerA": c.ID,
		"playerB": waiter.ID,
	}).Info("match created")

	for _, side := range []Side{SideA, SideB} {
		opp := clients[side.Opponent()]
		clients[side].deliver(MatchEvent{Type: EventMatchFound, Payload: map[string]interface{}{
			"matchId": m.ID,
			"side":    side,
			"card":    cards[side],
			"opponent": map[string]interface{}{
				"name":   opp.Name,
				"avatar": opp.Avatar,
			},
		}})
	}
	m.Start()
}

// MatchFor returns the live match a client plays in.
func (mm *Matchmaker) MatchFor(clientID uuid.UUID) (*Match, Side, bool) {
	mm.mu.Lock()
	mem, ok := mm.members[clientID]
	mm.mu.Unlock()
	if !ok {
		return nil, 0, false
	}
	m, ok := mm.store.GetMatch(mem.matchID)
	if !ok {
		return nil, 0, false
	}
	return m, mem.side, true
}

// OnDisconnect drops a client from the waiting pool, or aborts its match.
func (mm *Matchmaker) OnDisconnect(clientID uuid.UUID) {
	mm.mu.Lock()
	if i := mm.waitingIndex(clientID); i >= 0 {
		mm.waiting = append(mm.waiting[:i], mm.waiting[i+1:]...)
	}
	mem, playing := mm.members[clientID]
	mm.mu.Unlock()

	if !playing {
		return
	}
	if m, ok := mm.store.GetMatch(mem.matchID); ok {
		m.Abort(clientID)
	}
}

// Waiting returns the number of queued clients.
func (mm *Matchmaker) Waiting() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return len(mm.waiting)
}

// release forgets a finished match. It runs as the match's OnEnd.
func (mm *Matchmaker) release(res MatchResult) {
	mm.mu.Lock()
	for _, p := range res.Players {
		if mem, ok := mm.members[p.PlayerID]; ok && mem.matchID == res.MatchID {
			delete(mm.members, p.PlayerID)
		}
	}
	mm.store.DeleteMatch(res.MatchID)
	mm.mu.Unlock()

	if mm.OnMatchEnd != nil {
		mm.OnMatchEnd(res)
	}
}

func (mm *Matchmaker) waitingIndex(clientID uuid.UUID) int {
	for i, c := range mm.waiting {
		if c.ID == clientID {
			return i
		}
	}
	return -1
}
