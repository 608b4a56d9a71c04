package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCombatBlocksThenHit(t *testing.T) {
	a := Combatant{Health: 20, Tokens: 2, Selected: []RolledDie{
		die(1, FaceMelee), die(2, FaceMelee), die(3, FaceMelee),
	}}
	b := Combatant{Health: 20, Tokens: 2, Selected: []RolledDie{
		die(1, FaceBlockMelee), die(2, FaceBlockMelee),
	}}

	out := ResolveCombat(a, b)
	require.Len(t, out.Actions, 3)
	assert.Equal(t, ActionBlock, out.Actions[0].Kind)
	assert.Equal(t, ActionBlock, out.Actions[1].Kind)
	assert.Equal(t, ActionUnblockedHit, out.Actions[2].Kind)

	assert.Equal(t, []ConsumedDie{{Side: SideA, DieID: 1}, {Side: SideB, DieID: 1}}, out.Actions[0].ConsumedDice)
	assert.Equal(t, []ConsumedDie{{Side: SideA, DieID: 2}, {Side: SideB, DieID: 2}}, out.Actions[1].ConsumedDice)
	assert.Equal(t, []ConsumedDie{{Side: SideA, DieID: 3}}, out.Actions[2].ConsumedDice)

	assert.Equal(t, 19, out.Final[SideB].Health)
	assert.Equal(t, 20, out.Final[SideA].Health)
	assert.Equal(t, 19, out.Actions[2].Snapshot[SideB].Health)
}

func TestCombatStealWithoutTokens(t *testing.T) {
	a := Combatant{Health: 20, Tokens: 0}
	b := Combatant{Health: 20, Tokens: 3, Selected: []RolledDie{die(5, FaceSteal)}}

	out := ResolveCombat(a, b)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, ActionStealFailed, out.Actions[0].Kind)
	assert.Equal(t, SideB, out.Actions[0].Side)
	assert.Equal(t, 0, out.Final[SideA].Tokens)
	assert.Equal(t, 3, out.Final[SideB].Tokens)
}

func TestCombatStealMovesToken(t *testing.T) {
	a := Combatant{Health: 20, Tokens: 1, Selected: []RolledDie{die(5, FaceSteal), die(4, FaceSteal)}}
	b := Combatant{Health: 20, Tokens: 1}

	out := ResolveCombat(a, b)
	require.Len(t, out.Actions, 2)
	assert.Equal(t, ActionSteal, out.Actions[0].Kind)
	assert.Equal(t, ActionStealFailed, out.Actions[1].Kind)
	assert.Equal(t, 2, out.Final[SideA].Tokens)
	assert.Equal(t, 0, out.Final[SideB].Tokens)
}

func TestCombatBonusTokensComeFirst(t *testing.T) {
	// Die 5's bonus face is a steal, so B's bonus token can be stolen back in the same battle.
	a := Combatant{Health: 20, Tokens: 0, Selected: []RolledDie{bonusDie(5)}}
	b := Combatant{Health: 20, Tokens: 0, Selected: []RolledDie{bonusDie(1)}}

	out := ResolveCombat(a, b)
	require.Len(t, out.Actions, 2)
	assert.Equal(t, ActionUnblockedHit, out.Actions[0].Kind)
	assert.Equal(t, SideB, out.Actions[0].Side)
	assert.Equal(t, ActionSteal, out.Actions[1].Kind)
	assert.Equal(t, 2, out.Final[SideA].Tokens)
	assert.Equal(t, 0, out.Final[SideB].Tokens)
	assert.Equal(t, 19, out.Final[SideA].Health)
}

func TestCombatFirstAvailableBlocker(t *testing.T) {
	// A's only block-ranged stops B's first ranged attack, so the second one lands.
	a := Combatant{Health: 20, Selected: []RolledDie{die(1, FaceBlockRanged), die(2, FaceRanged)}}
	b := Combatant{Health: 20, Selected: []RolledDie{die(1, FaceBlockRanged), die(2, FaceRanged), die(3, FaceRanged)}}

	out := ResolveCombat(a, b)
	require.Len(t, out.Actions, 3)
	assert.Equal(t, ActionBlock, out.Actions[0].Kind)
	assert.Equal(t, SideA, out.Actions[0].Side)
	assert.Equal(t, ActionBlock, out.Actions[1].Kind)
	assert.Equal(t, SideB, out.Actions[1].Side)
	assert.Equal(t, ActionUnblockedHit, out.Actions[2].Kind)
	assert.Equal(t, 19, out.Final[SideA].Health)
}

func TestCombatDoesNotMutateInput(t *testing.T) {
	a := Combatant{Health: 20, Tokens: 2, Selected: []RolledDie{die(1, FaceMelee)}}
	b := Combatant{Health: 20, Tokens: 2, Selected: []RolledDie{die(1, FaceBlockMelee)}}
	ResolveCombat(a, b)
	assert.Equal(t, FaceMelee, a.Selected[0].Face.Type)
	assert.Equal(t, FaceBlockMelee, b.Selected[0].Face.Type)
}

func drawCombatant(t *rapid.T, label string) Combatant {
	c := Combatant{
		Health: rapid.IntRange(1, MaxHealth).Draw(t, label+"-health"),
		Tokens: rapid.IntRange(0, 10).Draw(t, label+"-tokens"),
	}
	ids := rapid.SliceOfNDistinct(rapid.IntRange(1, DiceCount), 0, DiceCount, rapid.ID[int]).Draw(t, label+"-dice")
	for _, id := range ids {
		d, _ := LookupDie(id)
		c.Selected = append(c.Selected, RolledDie{DieID: id, Face: d.Faces[rapid.IntRange(0, FacesPerDie-1).Draw(t, label+"-face")]})
	}
	return c
}

func bonusCount(c Combatant) int {
	n := 0
	for _, d := range c.Selected {
		if d.Face.Bonus {
			n++
		}
	}
	return n
}

func TestCombatProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := drawCombatant(t, "a")
		b := drawCombatant(t, "b")
		out := ResolveCombat(a, b)

		// Health loss equals the unblocked hits landed on each side.
		hitsOn := [2]int{}
		stealsBy := [2]int{}
		consumed := map[ConsumedDie]int{}
		for _, act := range out.Actions {
			switch act.Kind {
			case ActionUnblockedHit:
				hitsOn[act.Side.Opponent()]++
			case ActionSteal:
				stealsBy[act.Side]++
			}
			for _, c := range act.ConsumedDice {
				consumed[c]++
			}
		}
		if a.Health-out.Final[SideA].Health != hitsOn[SideA] {
			t.Fatalf("A lost %d health over %d hits", a.Health-out.Final[SideA].Health, hitsOn[SideA])
		}
		if b.Health-out.Final[SideB].Health != hitsOn[SideB] {
			t.Fatalf("B lost %d health over %d hits", b.Health-out.Final[SideB].Health, hitsOn[SideB])
		}

		// Steals move tokens without creating them; only bonus faces add tokens.
		total := a.Tokens + b.Tokens + bonusCount(a) + bonusCount(b)
		if got := out.Final[SideA].Tokens + out.Final[SideB].Tokens; got != total {
			t.Fatalf("token total %d, want %d", got, total)
		}
		wantA := a.Tokens + bonusCount(a) + stealsBy[SideA] - stealsBy[SideB]
		if out.Final[SideA].Tokens != wantA {
			t.Fatalf("A has %d tokens, want %d", out.Final[SideA].Tokens, wantA)
		}
		if out.Final[SideA].Tokens < 0 || out.Final[SideB].Tokens < 0 {
			t.Fatalf("negative tokens: %+v", out.Final)
		}

		// A die is consumed at most once.
		for d, n := range consumed {
			if n > 1 {
				t.Fatalf("die %+v consumed %d times", d, n)
			}
		}

		// Identical inputs give identical outcomes.
		again := ResolveCombat(a, b)
		if len(again.Actions) != len(out.Actions) || again.Final != out.Final {
			t.Fatalf("resolution is not deterministic")
		}
	})
}
