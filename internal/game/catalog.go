// internal/game/catalog.go
package game

// Rule constants shared by every match.
const (
	DiceCount      = 6
	FacesPerDie    = 6
	MaxRolls       = 3
	StartingHealth = 20
	MaxHealth      = 20
	StartingTokens = 2
)

// FaceType is the action printed on a die face.
type FaceType string

const (
	FaceMelee       FaceType = "melee"        // bhala
	FaceRanged      FaceType = "ranged"       // teer
	FaceBlockMelee  FaceType = "block-melee"  // kavach
	FaceBlockRanged FaceType = "block-ranged" // dhal
	FaceSteal       FaceType = "steal"        // kapat
)

// IsOffensive reports whether the face deals damage when unblocked.
func (t FaceType) IsOffensive() bool {
	return t == FaceMelee || t == FaceRanged
}

// Blocks reports whether a defensive face t stops the given attack face.
func (t FaceType) Blocks(attack FaceType) bool {
	switch attack {
	case FaceMelee:
		return t == FaceBlockMelee
	case FaceRanged:
		return t == FaceBlockRanged
	}
	return false
}

// Face is one side of a die. Bonus (yagya) grants a token when the die is selected showing it.
type Face struct {
	ID    int      `json:"id"`
	Type  FaceType `json:"type"`
	Bonus bool     `json:"bonus"`
}

// Die is a fixed sequence of faces. Exactly one face carries the bonus flag.
type Die struct {
	ID    int               `json:"id"`
	Faces [FacesPerDie]Face `json:"faces"`
}

// Face looks up a face of d by its id (1..6).
func (d Die) Face(id int) (Face, bool) {
	if id < 1 || id > FacesPerDie {
		return Face{}, false
	}
	return d.Faces[id-1], true
}

// RolledDie pairs a die with the face it currently shows.
type RolledDie struct {
	DieID int  `json:"dieId"`
	Face  Face `json:"face"`
}

// bonusFaces holds the type of the sixth (bonus) face for dice 1..6.
var bonusFaces = [DiceCount]FaceType{FaceMelee, FaceRanged, FaceBlockMelee, FaceBlockRanged, FaceSteal, FaceMelee}

var diceSet = buildDiceSet()

func buildDiceSet() [DiceCount]Die {
	var set [DiceCount]Die
	base := [FacesPerDie - 1]FaceType{FaceMelee, FaceRanged, FaceBlockMelee, FaceBlockRanged, FaceSteal}
	for i := range set {
		d := Die{ID: i + 1}
		for j, t := range base {
			d.Faces[j] = Face{ID: j + 1, Type: t}
		}
		d.Faces[FacesPerDie-1] = Face{ID: FacesPerDie, Type: bonusFaces[i], Bonus: true}
		set[i] = d
	}
	return set
}

// DiceSet returns a copy of the per-player dice set.
func DiceSet() []Die {
	out := make([]Die, DiceCount)
	copy(out, diceSet[:])
	return out
}

// LookupDie returns the die with the given id.
func LookupDie(id int) (Die, bool) {
	if id < 1 || id > DiceCount {
		return Die{}, false
	}
	return diceSet[id-1], true
}

// CardTiming places a card's effect relative to combat.
type CardTiming string

const (
	TimingEarly CardTiming = "early"
	TimingLate  CardTiming = "late"
)

// EffectKind is what a card does when it fires.
type EffectKind string

const (
	EffectDamage        EffectKind = "damage"
	EffectDebuffRemoval EffectKind = "debuff-removal"
	EffectTokenDenial   EffectKind = "token-denial"
	EffectHeal          EffectKind = "heal"
)

// SpecialCard (devta) is a per-match card whose effect is gated on a token cost.
type SpecialCard struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Cost        int        `json:"cost"`
	Timing      CardTiming `json:"timing"`
	Kind        EffectKind `json:"kind"`
	Magnitude   int        `json:"magnitude,omitempty"`
	TargetFace  FaceType   `json:"targetFace,omitempty"`
	Priority    int        `json:"priority"`
}

var cardCatalog = []SpecialCard{
	{
		ID:          1,
		Name:        "Bali",
		Description: "The Gada Bearer. Deals heavy damage to the opponent before the battle.",
		Cost:        4,
		Timing:      TimingEarly,
		Kind:        EffectDamage,
		Magnitude:   5,
		Priority:    2,
	},
	{
		ID:          2,
		Name:        "Arjun",
		Description: "The Master of Arrows. Removes every dhal from the opponent so all teer land.",
		Cost:        6,
		Timing:      TimingEarly,
		Kind:        EffectDebuffRemoval,
		TargetFace:  FaceBlockRanged,
		Priority:    3,
	},
	{
		ID:          3,
		Name:        "Kahna",
		Description: "The Master Mind. Moves first and burns the tokens the opponent committed to their own favor.",
		Cost:        6,
		Timing:      TimingEarly,
		Kind:        EffectTokenDenial,
		Priority:    1,
	},
	{
		ID:          4,
		Name:        "Prithvi",
		Description: "Earth Goddess. Heals at the end of the battle, never above full health.",
		Cost:        5,
		Timing:      TimingLate,
		Kind:        EffectHeal,
		Magnitude:   3,
		Priority:    1,
	},
}

// Cards returns a copy of the special card catalog.
func Cards() []SpecialCard {
	out := make([]SpecialCard, len(cardCatalog))
	copy(out, cardCatalog)
	return out
}
