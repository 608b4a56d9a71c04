package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// scriptedSource replays fixed values, then returns 0.
type scriptedSource struct {
	mu     sync.Mutex
	values []int
}

func newScriptedSource(values ...int) *scriptedSource {
	return &scriptedSource{values: values}
}

func (s *scriptedSource) push(values ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, values...)
}

func (s *scriptedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v % n
}

// rapidSource draws every value from a rapid generator.
type rapidSource struct {
	t *rapid.T
}

func (s rapidSource) Intn(n int) int {
	return rapid.IntRange(0, n-1).Draw(s.t, "intn")
}

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []MatchEvent
	playerEvents map[uuid.UUID][]MatchEvent
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]MatchEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev MatchEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev MatchEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = nil
	mb.playerEvents = make(map[uuid.UUID][]MatchEvent)
}

func (mb *mockBroadcaster) eventsOfType(typ EventType) []MatchEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []MatchEvent
	for _, ev := range mb.allEvents {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) playerEventsOfType(playerID uuid.UUID, typ EventType) []MatchEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []MatchEvent
	for _, ev := range mb.playerEvents[playerID] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (mb *mockBroadcaster) hasEvent(typ EventType) bool {
	return len(mb.eventsOfType(typ)) > 0
}

// die builds a rolled die showing a non-bonus face of the given type.
func die(id int, t FaceType) RolledDie {
	d, _ := LookupDie(id)
	for _, f := range d.Faces {
		if f.Type == t && !f.Bonus {
			return RolledDie{DieID: id, Face: f}
		}
	}
	panic("no such face")
}

// bonusDie builds a rolled die showing its bonus face.
func bonusDie(id int) RolledDie {
	d, _ := LookupDie(id)
	return RolledDie{DieID: id, Face: d.Faces[FacesPerDie-1]}
}

func countKind(actions []CombatAction, kind ActionKind) int {
	n := 0
	for _, a := range actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func zeroTiming() *Timing {
	return &Timing{}
}

// setupTestMatch creates a match with a scripted source and zero delays.
// An empty script shuffles the deck so that A holds Arjun and B holds Kahna.
func setupTestMatch(t *testing.T) (*Match, *mockBroadcaster, *scriptedSource) {
	t.Helper()
	src := newScriptedSource()
	a := NewPlayer(uuid.New(), uuid.New(), "Arjun-player", "a.png")
	b := NewPlayer(uuid.New(), uuid.New(), "Bhima-player", "b.png")
	m := NewMatch(uuid.New(), a, b, MatchOptions{Source: src, Timing: zeroTiming()})
	mb := newMockBroadcaster()
	m.BroadcastFn = mb.broadcastFn
	m.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	return m, mb, src
}

// eventually waits for cond with the short test deadline.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
