// internal/game/favor.go
package game

import (
	"fmt"
	"sort"
)

// ResolveFavors fires the activated cards of the given timing against the players,
// ordered by ascending card priority. activated is indexed by Side and covers the
// whole round, so token denial can see an opponent's activation of any timing.
//
// A card fires only if its owner holds at least its cost at execution time; the cost
// is deducted together with the effect. An unaffordable card is skipped without side
// effects. Late timing only runs heal cards. Every attempt yields one action.
func ResolveFavors(players [2]*Player, activated [2]bool, timing CardTiming) []CombatAction {
	var order []Side
	for _, side := range []Side{SideA, SideB} {
		if activated[side] && players[side].Card.Timing == timing {
			order = append(order, side)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return players[order[i]].Card.Priority < players[order[j]].Card.Priority
	})

	actions := make([]CombatAction, 0, len(order))
	for _, side := range order {
		owner, opponent := players[side], players[side.Opponent()]
		card := owner.Card
		act := CombatAction{Kind: ActionCardEffect, Side: side, Card: card.Name}

		switch {
		case !timingAllows(timing, card.Kind):
			act.Skipped = true
			act.Message = fmt.Sprintf("%s cannot act at the %s of battle", card.Name, timing)
		case owner.Tokens < card.Cost:
			act.Skipped = true
			act.Message = fmt.Sprintf("%s needs %d tokens, %s has %d", card.Name, card.Cost, side, owner.Tokens)
		default:
			owner.Tokens -= card.Cost
			act.Message, act.ConsumedDice = applyFavor(card, side, owner, opponent, activated[side.Opponent()])
		}
		act.Snapshot = snapshotOf(players)
		actions = append(actions, act)
	}
	return actions
}

func timingAllows(timing CardTiming, kind EffectKind) bool {
	if timing == TimingLate {
		return kind == EffectHeal
	}
	return kind != EffectHeal
}

func applyFavor(card SpecialCard, side Side, owner, opponent *Player, opponentActivated bool) (string, []ConsumedDie) {
	switch card.Kind {
	case EffectDamage:
		opponent.Health -= card.Magnitude
		return fmt.Sprintf("%s deals %d damage to %s", card.Name, card.Magnitude, side.Opponent()), nil

	case EffectDebuffRemoval:
		var removed []ConsumedDie
		kept := opponent.Selection.Selected[:0:0]
		for _, d := range opponent.Selection.Selected {
			if d.Face.Type == card.TargetFace {
				removed = append(removed, ConsumedDie{Side: side.Opponent(), DieID: d.DieID})
				continue
			}
			kept = append(kept, d)
		}
		opponent.Selection.Selected = kept
		return fmt.Sprintf("%s removes %d %s from %s", card.Name, len(removed), card.TargetFace, side.Opponent()), removed

	case EffectTokenDenial:
		denied := 0
		if opponentActivated {
			denied = opponent.Card.Cost
			if denied > opponent.Tokens {
				denied = opponent.Tokens
			}
			opponent.Tokens -= denied
		}
		return fmt.Sprintf("%s removes %d tokens from %s", card.Name, denied, side.Opponent()), nil

	case EffectHeal:
		before := owner.Health
		owner.Health += card.Magnitude
		if owner.Health > MaxHealth {
			owner.Health = MaxHealth
		}
		return fmt.Sprintf("%s heals %s for %d", card.Name, side, owner.Health-before), nil
	}
	return fmt.Sprintf("%s has no effect", card.Name), nil
}
