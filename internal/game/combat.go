// internal/game/combat.go
package game

import "fmt"

// ActionKind discriminates CombatAction records.
type ActionKind string

const (
	ActionBlock        ActionKind = "block"
	ActionUnblockedHit ActionKind = "unblocked-hit"
	ActionSteal        ActionKind = "steal"
	ActionStealFailed  ActionKind = "steal-failed"
	ActionCardEffect   ActionKind = "card-effect"
)

// ConsumedDie identifies a die spent by an action.
type ConsumedDie struct {
	Side  Side `json:"side"`
	DieID int  `json:"dieId"`
}

// CombatAction is one discrete step of a battle, replayed to clients in order.
// Snapshot is the state of both sides after the action is applied.
type CombatAction struct {
	Kind         ActionKind    `json:"kind"`
	Side         Side          `json:"side"`
	Message      string        `json:"message"`
	ConsumedDice []ConsumedDie `json:"consumedDice,omitempty"`
	Card         string        `json:"card,omitempty"`
	Skipped      bool          `json:"skipped,omitempty"`
	Snapshot     Snapshot      `json:"snapshot"`
}

// Combatant is the input of combat resolution for one side.
type Combatant struct {
	Health   int
	Tokens   int
	Selected []RolledDie
}

// CombatOutcome is the ordered action list and the state after the last action.
type CombatOutcome struct {
	Actions []CombatAction
	Final   Snapshot
}

type dieState int

const (
	dieAvailable dieState = iota
	dieConsumed
)

type combatDie struct {
	RolledDie
	state dieState
}

type combatSide struct {
	health int
	tokens int
	dice   []combatDie
}

// ResolveCombat resolves a battle between side A and side B. It is pure: the inputs
// are not modified and identical inputs always produce identical outcomes.
//
// Order: bonus tokens, A's attacks against B's defenders, B's attacks against A's
// remaining defenders, then steals (A first). Attacks take the first matching
// unconsumed blocker in the defender's selection order. Health may end below zero;
// clamping is left to the caller.
func ResolveCombat(a, b Combatant) CombatOutcome {
	sides := [2]*combatSide{newCombatSide(a), newCombatSide(b)}
	var actions []CombatAction

	for _, s := range sides {
		for _, d := range s.dice {
			if d.Face.Bonus {
				s.tokens++
			}
		}
	}

	snapshot := func() Snapshot {
		return Snapshot{
			{Health: sides[SideA].health, Tokens: sides[SideA].tokens},
			{Health: sides[SideB].health, Tokens: sides[SideB].tokens},
		}
	}

	for _, atk := range []Side{SideA, SideB} {
		attacker, defender := sides[atk], sides[atk.Opponent()]
		for i := range attacker.dice {
			d := &attacker.dice[i]
			if d.state != dieAvailable || !d.Face.Type.IsOffensive() {
				continue
			}
			d.state = dieConsumed

			if blocker := defender.firstBlocker(d.Face.Type); blocker != nil {
				blocker.state = dieConsumed
				actions = append(actions, CombatAction{
					Kind:    ActionBlock,
					Side:    atk,
					Message: fmt.Sprintf("%s %s blocked by %s %s", atk, d.Face.Type, atk.Opponent(), blocker.Face.Type),
					ConsumedDice: []ConsumedDie{
						{Side: atk, DieID: d.DieID},
						{Side: atk.Opponent(), DieID: blocker.DieID},
					},
					Snapshot: snapshot(),
				})
				continue
			}

			defender.health--
			actions = append(actions, CombatAction{
				Kind:         ActionUnblockedHit,
				Side:         atk,
				Message:      fmt.Sprintf("%s %s hits %s for 1", atk, d.Face.Type, atk.Opponent()),
				ConsumedDice: []ConsumedDie{{Side: atk, DieID: d.DieID}},
				Snapshot:     snapshot(),
			})
		}
	}

	for _, thief := range []Side{SideA, SideB} {
		owner, victim := sides[thief], sides[thief.Opponent()]
		for i := range owner.dice {
			d := &owner.dice[i]
			if d.state != dieAvailable || d.Face.Type != FaceSteal {
				continue
			}
			d.state = dieConsumed

			act := CombatAction{
				Side:         thief,
				ConsumedDice: []ConsumedDie{{Side: thief, DieID: d.DieID}},
			}
			if victim.tokens >= 1 {
				victim.tokens--
				owner.tokens++
				act.Kind = ActionSteal
				act.Message = fmt.Sprintf("%s steals a token from %s", thief, thief.Opponent())
			} else {
				act.Kind = ActionStealFailed
				act.Message = fmt.Sprintf("%s has no token to steal", thief.Opponent())
			}
			act.Snapshot = snapshot()
			actions = append(actions, act)
		}
	}

	return CombatOutcome{Actions: actions, Final: snapshot()}
}

func newCombatSide(c Combatant) *combatSide {
	s := &combatSide{
		health: c.Health,
		tokens: c.Tokens,
		dice:   make([]combatDie, len(c.Selected)),
	}
	for i, d := range c.Selected {
		s.dice[i] = combatDie{RolledDie: d, state: dieAvailable}
	}
	return s
}

// firstBlocker returns the first available defensive die that stops attack, or nil.
func (s *combatSide) firstBlocker(attack FaceType) *combatDie {
	for i := range s.dice {
		d := &s.dice[i]
		if d.state == dieAvailable && d.Face.Type.Blocks(attack) {
			return d
		}
	}
	return nil
}
