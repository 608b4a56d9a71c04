// internal/game/events.go
package game

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// EventType names a server-to-client message.
type EventType string

const (
	EventWaitingForMatch  EventType = "waiting-for-match"
	EventMatchFound       EventType = "match-found"
	EventStartToss        EventType = "start-toss"
	EventTossStarted      EventType = "toss-started"
	EventTossAutoAssigned EventType = "toss-auto-assigned"
	EventTossResult       EventType = "toss-result"
	EventMatchStart       EventType = "match-start"
	EventPhaseChange      EventType = "phase-change"
	EventDiceRolled       EventType = "dice-rolled"
	EventDieSelected      EventType = "die-selected"
	EventDieDeselected    EventType = "die-deselected"
	EventTurnChange       EventType = "turn-change"
	EventCombatAction     EventType = "combat-action"
	EventRoundReset       EventType = "round-reset"
	EventMatchOver        EventType = "match-over"
	EventOpponentLeft     EventType = "opponent-left"
)

// MatchEvent is a message delivered to one or both clients of a match.
// Payload keys are flattened next to "type" on the wire.
type MatchEvent struct {
	Type    EventType
	Payload map[string]interface{}
}

// MarshalJSON flattens the payload into the top-level object.
func (ev MatchEvent) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(ev.Payload)+1)
	for k, v := range ev.Payload {
		out[k] = v
	}
	out["type"] = ev.Type
	return json.Marshal(out)
}

// EventBytes marshals an event for the transport. On failure it logs and returns "{}".
func EventBytes(ev MatchEvent) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).WithField("type", ev.Type).Warn("failed to marshal match event")
		return []byte("{}")
	}
	return data
}
