// internal/game/dice.go
package game

import (
	"crypto/rand"
	"math/big"

	"github.com/sirupsen/logrus"
)

// Source is the randomness provider for rolls, tosses and card deals.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n). Panics if n <= 0.
	Intn(n int) int
}

type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return cryptoSource{}
}

func (cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("game: Intn called with n <= 0")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("game: crypto/rand failure: " + err.Error())
	}
	return int(v.Int64())
}

// RollEngine draws faces for the dice a player has not selected yet.
type RollEngine struct {
	src    Source
	logger *logrus.Entry
}

// NewRollEngine creates a RollEngine. logger may be nil.
func NewRollEngine(src Source, logger *logrus.Entry) *RollEngine {
	return &RollEngine{src: src, logger: logger}
}

// Roll returns one uniformly random face for every die of the set that is not in
// selected, in die id order. It does not mutate selected.
func (e *RollEngine) Roll(selected []RolledDie) []RolledDie {
	taken := make(map[int]bool, len(selected))
	for _, d := range selected {
		taken[d.DieID] = true
	}

	rolled := make([]RolledDie, 0, DiceCount-len(taken))
	for _, die := range diceSet {
		if taken[die.ID] {
			continue
		}
		face := die.Faces[e.src.Intn(FacesPerDie)]
		rolled = append(rolled, RolledDie{DieID: die.ID, Face: face})
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"kept":   len(taken),
			"rolled": len(rolled),
		}).Debug("dice roll")
	}
	return rolled
}

// TossChoice is one side of the coin.
type TossChoice string

const (
	Heads TossChoice = "heads"
	Tails TossChoice = "tails"
)

// Valid reports whether c names a side of the coin.
func (c TossChoice) Valid() bool {
	return c == Heads || c == Tails
}

// Opposite returns the other side of the coin.
func (c TossChoice) Opposite() TossChoice {
	if c == Heads {
		return Tails
	}
	return Heads
}

// flipCoin draws a single binary toss outcome.
func flipCoin(src Source) TossChoice {
	if src.Intn(2) == 0 {
		return Heads
	}
	return Tails
}

// dealCards returns two distinct cards from a shuffled copy of the catalog.
func dealCards(src Source) (SpecialCard, SpecialCard) {
	deck := Cards()
	for i := len(deck) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck[0], deck[1]
}
