// internal/game/selection.go
package game

// SelectionTracker holds one player's round-scoped roll and selection state.
//
// Invariant: len(Selected) <= DiceCount and RollsUsed <= MaxRolls.
type SelectionTracker struct {
	RollsUsed int         `json:"rollsUsed"`
	Selected  []RolledDie `json:"selected"`
}

// Select appends d to the selection. At capacity, or if the die is already
// selected, the call is absorbed and false is returned.
func (s *SelectionTracker) Select(d RolledDie) bool {
	if len(s.Selected) >= DiceCount || s.IsSelected(d.DieID) {
		return false
	}
	s.Selected = append(s.Selected, d)
	return true
}

// IsSelected reports whether the die is already in the selection.
func (s *SelectionTracker) IsSelected(dieID int) bool {
	for _, d := range s.Selected {
		if d.DieID == dieID {
			return true
		}
	}
	return false
}

// CanRollAgain is true while rolls remain and dice are left to select.
func (s *SelectionTracker) CanRollAgain() bool {
	return s.RollsUsed < MaxRolls && len(s.Selected) < DiceCount
}

// IsRoundComplete is true once all dice are selected or every roll is spent.
func (s *SelectionTracker) IsRoundComplete() bool {
	return len(s.Selected) == DiceCount || s.RollsUsed == MaxRolls
}

// recordRoll counts a roll. It is a no-op once the limit is reached.
func (s *SelectionTracker) recordRoll() bool {
	if !s.CanRollAgain() {
		return false
	}
	s.RollsUsed++
	return true
}

// Reset clears the tracker for a new round.
func (s *SelectionTracker) Reset() {
	s.RollsUsed = 0
	s.Selected = nil
}
