// internal/game/player.go
package game

import (
	"fmt"

	"github.com/google/uuid"
)

// Side tags a player's seat in a match. It doubles as an index into Match.Players.
type Side int

const (
	SideA Side = iota
	SideB
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// MarshalText encodes the side as "A" or "B".
func (s Side) MarshalText() ([]byte, error) {
	if s != SideA && s != SideB {
		return nil, fmt.Errorf("invalid side %d", int(s))
	}
	return []byte(s.String()), nil
}

// Player is one participant of a match.
type Player struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"-"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
	Side   Side      `json:"side"`

	Health int         `json:"health"`
	Tokens int         `json:"tokens"`
	Card   SpecialCard `json:"card"`

	Selection SelectionTracker `json:"-"`

	// rolled holds the latest roll's dice that have not been picked yet.
	rolled []RolledDie
	// picks are this turn's selections, committed to Selection when the turn ends.
	picks          []RolledDie
	rolledThisTurn bool
}

// NewPlayer creates a player with starting health and tokens.
func NewPlayer(id, userID uuid.UUID, name, avatar string) *Player {
	return &Player{
		ID:     id,
		UserID: userID,
		Name:   name,
		Avatar: avatar,
		Health: StartingHealth,
		Tokens: StartingTokens,
	}
}

// selectedCount counts committed and tentative picks.
func (p *Player) selectedCount() int {
	return len(p.Selection.Selected) + len(p.picks)
}

func (p *Player) rolledDie(dieID int) (RolledDie, bool) {
	for _, d := range p.rolled {
		if d.DieID == dieID {
			return d, true
		}
	}
	return RolledDie{}, false
}

func (p *Player) pickIndex(dieID int) int {
	for i, d := range p.picks {
		if d.DieID == dieID {
			return i
		}
	}
	return -1
}

// commitPicks moves tentative picks into the permanent selection.
func (p *Player) commitPicks() {
	for _, d := range p.picks {
		p.Selection.Select(d)
	}
	p.picks = nil
	p.rolled = nil
	p.rolledThisTurn = false
}

// resetRound clears every round-scoped field. The card is kept.
func (p *Player) resetRound() {
	p.Selection.Reset()
	p.rolled = nil
	p.picks = nil
	p.rolledThisTurn = false
}

// PlayerState is the health/token pair carried in snapshots.
type PlayerState struct {
	Health int `json:"health"`
	Tokens int `json:"tokens"`
}

// Snapshot is the health/token state of both sides, indexed by Side.
type Snapshot [2]PlayerState

func snapshotOf(players [2]*Player) Snapshot {
	return Snapshot{
		{Health: players[SideA].Health, Tokens: players[SideA].Tokens},
		{Health: players[SideB].Health, Tokens: players[SideB].Tokens},
	}
}

// PlayerView is the public description of a player sent to clients.
type PlayerView struct {
	ID     uuid.UUID   `json:"id"`
	Side   Side        `json:"side"`
	Name   string      `json:"name"`
	Avatar string      `json:"avatar,omitempty"`
	Health int         `json:"health"`
	Tokens int         `json:"tokens"`
	Card   SpecialCard `json:"card"`
}

func (p *Player) view() PlayerView {
	return PlayerView{
		ID:     p.ID,
		Side:   p.Side,
		Name:   p.Name,
		Avatar: p.Avatar,
		Health: p.Health,
		Tokens: p.Tokens,
		Card:   p.Card,
	}
}

func clampHealth(h int) int {
	if h < 0 {
		return 0
	}
	if h > MaxHealth {
		return MaxHealth
	}
	return h
}
