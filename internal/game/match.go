// internal/game/match.go
package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/yudh/internal/cache"
	"github.com/sirupsen/logrus"
)

// Phase is the state of a match.
type Phase string

const (
	PhaseToss           Phase = "toss"
	PhaseRolling        Phase = "rolling"
	PhaseFavorSelection Phase = "favor-selection"
	PhaseBattle         Phase = "battle"
	PhaseTerminal       Phase = "terminal"
)

// Timing holds the pacing delays of a match.
type Timing struct {
	TossStart      time.Duration // pairing -> start-toss
	TossReveal     time.Duration // toss choice -> toss-result
	PhaseAnnounce  time.Duration // "battle" announcement -> first combat action
	CombatInterval time.Duration // between combat actions
	Settle         time.Duration // last combat action -> win check
	RoundReset     time.Duration // win check -> next round
}

// DefaultTiming returns the production pacing.
func DefaultTiming() Timing {
	return Timing{
		TossStart:      1 * time.Second,
		TossReveal:     3 * time.Second,
		PhaseAnnounce:  1 * time.Second,
		CombatInterval: 2 * time.Second,
		Settle:         2 * time.Second,
		RoundReset:     3 * time.Second,
	}
}

// ActionPublisher receives the match action log. Implemented by cache.ActionQueue.
type ActionPublisher interface {
	PublishMatchAction(ctx context.Context, record cache.MatchActionRecord) error
}

// MatchOptions configures a new match. Zero values fall back to a crypto source,
// DefaultTiming, the standard logger and no action log.
type MatchOptions struct {
	Source  Source
	Timing  *Timing
	Logger  *logrus.Entry
	Actions ActionPublisher
}

// EndReason describes how a match finished.
type EndReason string

const (
	EndKnockout  EndReason = "knockout"
	EndAbandoned EndReason = "abandoned"
)

// ResultPlayer is one side of a finished match.
type ResultPlayer struct {
	PlayerID uuid.UUID `json:"playerId"`
	UserID   uuid.UUID `json:"userId"`
	Name     string    `json:"name"`
	Health   int       `json:"health"`
}

// MatchResult is handed to OnEnd once a match has finished.
// WinnerID is uuid.Nil when both sides fell in the same battle.
type MatchResult struct {
	MatchID   uuid.UUID       `json:"matchId"`
	Reason    EndReason       `json:"reason"`
	WinnerID  uuid.UUID       `json:"winnerId"`
	Players   [2]ResultPlayer `json:"players"`
	Rounds    int             `json:"rounds"`
	StartedAt time.Time       `json:"startedAt"`
	EndedAt   time.Time       `json:"endedAt"`
}

// Winner returns the winning side, or false for a draw.
func (r MatchResult) Winner() (Side, bool) {
	for _, s := range []Side{SideA, SideB} {
		if r.WinnerID != uuid.Nil && r.Players[s].PlayerID == r.WinnerID {
			return s, true
		}
	}
	return 0, false
}

// MatchState is a consistent copy of a match's public state.
type MatchState struct {
	Phase      Phase
	Round      int
	TurnHolder Side
	FirstTurn  Side
	Players    [2]PlayerView
	Selection  [2]SelectionTracker
	Ended      bool
}

// Match is one live duel. All exported methods are safe for concurrent use; timer
// and playback callbacks take the same lock.
type Match struct {
	ID        uuid.UUID
	Players   [2]*Player
	Phase     Phase
	Round     int
	CreatedAt time.Time

	// TurnHolder is the side allowed to roll, select and end the turn.
	TurnHolder Side
	// FirstTurn is the toss loser. It opens every round.
	FirstTurn Side

	// BroadcastFn sends an event to both players. If nil, no broadcast is done.
	BroadcastFn func(ev MatchEvent)
	// BroadcastToPlayerFn sends an event to a single player.
	BroadcastToPlayerFn func(playerID uuid.UUID, ev MatchEvent)
	// OnEnd runs once, outside the match lock, after the match has finished.
	OnEnd func(res MatchResult)

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	src     Source
	roller  *RollEngine
	timing  Timing
	logger  *logrus.Entry
	actions *actionLog

	sides map[uuid.UUID]Side

	tossChoice   [2]TossChoice
	tossChosen   bool
	tossResolved bool
	ready        [2]bool

	favorDecided  [2]bool
	favorActivate [2]bool

	timers      []*time.Timer
	actionIndex int
	ended       bool
	endNotice   *MatchResult
}

// NewMatch seats a on side A and b on side B and deals each a distinct card.
func NewMatch(id uuid.UUID, a, b *Player, opts MatchOptions) *Match {
	if opts.Source == nil {
		opts.Source = NewCryptoSource()
	}
	timing := DefaultTiming()
	if opts.Timing != nil {
		timing = *opts.Timing
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("match", id)

	a.Side, b.Side = SideA, SideB
	a.Card, b.Card = dealCards(opts.Source)

	ctx, cancel := context.WithCancel(context.Background())
	m := &Match{
		ID:        id,
		Players:   [2]*Player{a, b},
		Phase:     PhaseToss,
		CreatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		src:       opts.Source,
		roller:    NewRollEngine(opts.Source, logger),
		timing:    timing,
		logger:    logger,
		sides:     map[uuid.UUID]Side{a.ID: SideA, b.ID: SideB},
	}
	if opts.Actions != nil {
		m.actions = newActionLog(opts.Actions, logger)
	}
	return m
}

// SideOf returns the side of a player in this match.
func (m *Match) SideOf(playerID uuid.UUID) (Side, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sides[playerID]
	return s, ok
}

// State returns a copy of the match's public state.
func (m *Match) State() MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := MatchState{
		Phase:      m.Phase,
		Round:      m.Round,
		TurnHolder: m.TurnHolder,
		FirstTurn:  m.FirstTurn,
		Ended:      m.ended,
	}
	for i, p := range m.Players {
		st.Players[i] = p.view()
		st.Selection[i] = SelectionTracker{
			RollsUsed: p.Selection.RollsUsed,
			Selected:  append([]RolledDie(nil), p.Selection.Selected...),
		}
	}
	return st
}

// Summary describes the match for operator listings.
func (m *Match) Summary() MatchSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MatchSummary{
		ID:        m.ID,
		Phase:     m.Phase,
		Round:     m.Round,
		Players:   [2]string{m.Players[SideA].Name, m.Players[SideB].Name},
		CreatedAt: m.CreatedAt,
	}
}

// Start schedules the start-toss announcement.
func (m *Match) Start() {
	m.run(func() {
		m.logAction(uuid.Nil, "match_start", map[string]interface{}{
			"playerA": m.Players[SideA].Name,
			"playerB": m.Players[SideB].Name,
			"cardA":   m.Players[SideA].Card.Name,
			"cardB":   m.Players[SideB].Card.Name,
		})
		m.after(m.timing.TossStart, func() {
			if m.Phase != PhaseToss {
				return
			}
			m.broadcast(MatchEvent{Type: EventStartToss, Payload: map[string]interface{}{
				"matchId": m.ID,
			}})
		})
	})
}

// HandleTossChoice records the first toss call. The caller gets choice, the other
// player the opposite. Later calls are absorbed.
func (m *Match) HandleTossChoice(playerID uuid.UUID, choice TossChoice) {
	m.run(func() {
		side, ok := m.sides[playerID]
		if !ok || m.Phase != PhaseToss || m.tossChosen || !choice.Valid() {
			return
		}
		m.tossChosen = true
		m.tossChoice[side] = choice
		m.tossChoice[side.Opponent()] = choice.Opposite()

		m.broadcast(MatchEvent{Type: EventTossStarted, Payload: map[string]interface{}{
			"playerId": playerID,
			"choice":   choice,
		}})
		m.sendTo(m.Players[side.Opponent()].ID, MatchEvent{Type: EventTossAutoAssigned, Payload: map[string]interface{}{
			"choice": choice.Opposite(),
		}})
		m.logAction(m.Players[side].UserID, "toss_choice", map[string]interface{}{"choice": choice})

		m.after(m.timing.TossReveal, m.resolveToss)
	})
}

// resolveToss draws the outcome. The loser opens every round. Lock held.
func (m *Match) resolveToss() {
	if m.Phase != PhaseToss || m.tossResolved {
		return
	}
	outcome := flipCoin(m.src)
	winner := SideA
	if m.tossChoice[SideB] == outcome {
		winner = SideB
	}
	m.FirstTurn = winner.Opponent()
	m.TurnHolder = m.FirstTurn
	m.tossResolved = true

	m.broadcast(MatchEvent{Type: EventTossResult, Payload: map[string]interface{}{
		"outcome":           outcome,
		"winnerId":          m.Players[winner].ID,
		"firstTurnHolderId": m.Players[m.FirstTurn].ID,
	}})
	m.logAction(uuid.Nil, "toss_result", map[string]interface{}{
		"outcome":   outcome,
		"firstTurn": m.FirstTurn.String(),
	})
}

// ReadyToPlay marks a player ready after the toss. Once both are ready the first
// round begins.
func (m *Match) ReadyToPlay(playerID uuid.UUID) {
	m.run(func() {
		side, ok := m.sides[playerID]
		if !ok || m.Phase != PhaseToss || !m.tossResolved || m.ready[side] {
			return
		}
		m.ready[side] = true
		if !m.ready[side.Opponent()] {
			return
		}

		m.Phase = PhaseRolling
		m.Round = 1
		m.TurnHolder = m.FirstTurn
		m.broadcast(MatchEvent{Type: EventMatchStart, Payload: map[string]interface{}{
			"phase":        m.Phase,
			"round":        m.Round,
			"turnHolderId": m.Players[m.TurnHolder].ID,
			"players":      m.views(),
		}})
		m.logger.Info("match started")
	})
}

// RollDice rolls the turn holder's unselected dice. One roll per turn; the third
// roll of a round force-selects every rolled die and ends the turn.
func (m *Match) RollDice(playerID uuid.UUID) {
	m.run(func() {
		p, ok := m.turnHolder(playerID)
		if !ok || p.rolledThisTurn || !p.Selection.CanRollAgain() {
			return
		}
		rolled := m.roller.Roll(p.Selection.Selected)
		p.Selection.recordRoll()
		p.rolled = rolled
		p.rolledThisTurn = true

		m.broadcast(MatchEvent{Type: EventDiceRolled, Payload: map[string]interface{}{
			"playerId":  p.ID,
			"dice":      rolled,
			"rollsUsed": p.Selection.RollsUsed,
		}})
		m.logAction(p.UserID, "roll_dice", map[string]interface{}{
			"dice":      rolled,
			"rollsUsed": p.Selection.RollsUsed,
		})

		if p.Selection.RollsUsed < MaxRolls {
			return
		}
		for _, d := range rolled {
			if p.pickIndex(d.DieID) >= 0 || p.selectedCount() >= DiceCount {
				continue
			}
			p.picks = append(p.picks, d)
			m.broadcastSelected(p, d)
		}
		m.endTurn(p)
	})
}

// SelectDie tentatively picks a die from the current roll. The face is the one the
// server rolled. Reaching six selected dice ends the turn.
func (m *Match) SelectDie(playerID uuid.UUID, dieID int) {
	m.run(func() {
		p, ok := m.turnHolder(playerID)
		if !ok || !p.rolledThisTurn {
			return
		}
		d, ok := p.rolledDie(dieID)
		if !ok || p.pickIndex(dieID) >= 0 || p.selectedCount() >= DiceCount {
			return
		}
		p.picks = append(p.picks, d)
		m.broadcastSelected(p, d)
		m.logAction(p.UserID, "select_die", map[string]interface{}{"die": d})

		if p.selectedCount() == DiceCount {
			m.endTurn(p)
		}
	})
}

// DeselectDie undoes a pick made this turn. Committed dice cannot be released.
func (m *Match) DeselectDie(playerID uuid.UUID, dieID int) {
	m.run(func() {
		p, ok := m.turnHolder(playerID)
		if !ok {
			return
		}
		i := p.pickIndex(dieID)
		if i < 0 {
			return
		}
		p.picks = append(p.picks[:i], p.picks[i+1:]...)
		m.broadcast(MatchEvent{Type: EventDieDeselected, Payload: map[string]interface{}{
			"playerId":      p.ID,
			"dieId":         dieID,
			"selectedCount": p.selectedCount(),
		}})
		m.logAction(p.UserID, "deselect_die", map[string]interface{}{"dieId": dieID})
	})
}

// CompleteTurn ends the holder's turn. A turn must contain a roll.
func (m *Match) CompleteTurn(playerID uuid.UUID) {
	m.run(func() {
		p, ok := m.turnHolder(playerID)
		if !ok || !p.rolledThisTurn {
			return
		}
		m.endTurn(p)
	})
}

// FavorDecision records whether a player invokes their card this round. Only the
// first decision per round counts.
func (m *Match) FavorDecision(playerID uuid.UUID, activate bool) {
	m.run(func() {
		side, ok := m.sides[playerID]
		if !ok || m.Phase != PhaseFavorSelection || m.favorDecided[side] {
			return
		}
		m.favorDecided[side] = true
		m.favorActivate[side] = activate
		m.logAction(m.Players[side].UserID, "favor_decision", map[string]interface{}{"activate": activate})

		if !m.favorDecided[side.Opponent()] {
			return
		}
		m.Phase = PhaseBattle
		m.broadcast(MatchEvent{Type: EventPhaseChange, Payload: map[string]interface{}{
			"phase":   m.Phase,
			"message": "Battle begins!",
		}})
		m.after(m.timing.PhaseAnnounce, m.startBattle)
	})
}

// Abort tears the match down because a player left. The other player is notified.
func (m *Match) Abort(playerID uuid.UUID) {
	m.run(func() {
		side, ok := m.sides[playerID]
		if !ok {
			return
		}
		stayer := m.Players[side.Opponent()]
		m.sendTo(stayer.ID, MatchEvent{Type: EventOpponentLeft, Payload: map[string]interface{}{
			"matchId": m.ID,
		}})
		m.logger.WithField("player", playerID).Info("player left, aborting match")
		m.finish(EndAbandoned, stayer.ID)
	})
}

// endTurn commits the player's picks and passes the turn, or moves to favor
// selection once both players are done. Lock held.
func (m *Match) endTurn(p *Player) {
	p.commitPicks()
	m.logAction(p.UserID, "end_turn", map[string]interface{}{
		"selected":  len(p.Selection.Selected),
		"rollsUsed": p.Selection.RollsUsed,
	})

	other := m.Players[p.Side.Opponent()]
	if p.Selection.IsRoundComplete() && other.Selection.IsRoundComplete() {
		m.Phase = PhaseFavorSelection
		m.broadcast(MatchEvent{Type: EventPhaseChange, Payload: map[string]interface{}{
			"phase":   m.Phase,
			"message": "Invoke your devta's favor?",
		}})
		return
	}

	next := other.Side
	if other.Selection.IsRoundComplete() {
		next = p.Side
	}
	m.TurnHolder = next
	m.broadcast(MatchEvent{Type: EventTurnChange, Payload: map[string]interface{}{
		"turnHolderId": m.Players[next].ID,
	}})
}

// startBattle computes the whole battle up front and hands it to playback. Lock held.
func (m *Match) startBattle() {
	if m.Phase != PhaseBattle {
		return
	}
	actions := ResolveFavors(m.Players, m.favorActivate, TimingEarly)

	out := ResolveCombat(m.combatant(SideA), m.combatant(SideB))
	actions = append(actions, out.Actions...)
	for _, s := range []Side{SideA, SideB} {
		m.Players[s].Health = out.Final[s].Health
		m.Players[s].Tokens = out.Final[s].Tokens
	}

	actions = append(actions, ResolveFavors(m.Players, m.favorActivate, TimingLate)...)

	m.logAction(uuid.Nil, "battle_resolved", map[string]interface{}{
		"round":   m.Round,
		"actions": actions,
	})
	m.logger.WithFields(logrus.Fields{
		"round":   m.Round,
		"actions": len(actions),
	}).Debug("battle resolved")

	pb := Playback{Interval: m.timing.CombatInterval, Settle: m.timing.Settle}
	go pb.Run(m.ctx, actions, func(act CombatAction) {
		m.run(func() { m.emitCombatAction(act) })
	}, func() {
		m.run(m.settle)
	})
}

func (m *Match) combatant(s Side) Combatant {
	p := m.Players[s]
	return Combatant{
		Health:   p.Health,
		Tokens:   p.Tokens,
		Selected: append([]RolledDie(nil), p.Selection.Selected...),
	}
}

// emitCombatAction sends one played-back action. The action's fields sit at the top
// level of the message next to the acting player's id.
func (m *Match) emitCombatAction(act CombatAction) {
	consumed := act.ConsumedDice
	if consumed == nil {
		consumed = []ConsumedDie{}
	}
	m.broadcast(MatchEvent{Type: EventCombatAction, Payload: map[string]interface{}{
		"playerId":     m.Players[act.Side].ID,
		"kind":         act.Kind,
		"side":         act.Side,
		"message":      act.Message,
		"consumedDice": consumed,
		"card":         act.Card,
		"skipped":      act.Skipped,
		"snapshot":     act.Snapshot,
	}})
}

// settle clamps health and either ends the match or schedules the next round. Lock held.
func (m *Match) settle() {
	if m.Phase != PhaseBattle {
		return
	}
	for _, p := range m.Players {
		p.Health = clampHealth(p.Health)
	}

	a, b := m.Players[SideA], m.Players[SideB]
	if a.Health <= 0 || b.Health <= 0 {
		winnerID, winnerName := uuid.Nil, ""
		switch {
		case a.Health > 0:
			winnerID, winnerName = a.ID, a.Name
		case b.Health > 0:
			winnerID, winnerName = b.ID, b.Name
		}
		m.Phase = PhaseTerminal
		m.broadcast(MatchEvent{Type: EventMatchOver, Payload: map[string]interface{}{
			"winnerId":   winnerID,
			"winnerName": winnerName,
			"players":    m.views(),
		}})
		m.finish(EndKnockout, winnerID)
		return
	}

	for _, p := range m.Players {
		p.resetRound()
	}
	m.favorDecided = [2]bool{}
	m.favorActivate = [2]bool{}
	m.Round++
	m.TurnHolder = m.FirstTurn

	m.after(m.timing.RoundReset, func() {
		m.Phase = PhaseRolling
		m.broadcast(MatchEvent{Type: EventRoundReset, Payload: map[string]interface{}{
			"phase":        m.Phase,
			"round":        m.Round,
			"turnHolderId": m.Players[m.TurnHolder].ID,
			"players":      m.views(),
		}})
	})
}

// finish marks the match ended and queues the end notice for run. Lock held.
func (m *Match) finish(reason EndReason, winnerID uuid.UUID) {
	if m.ended {
		return
	}
	m.ended = true
	m.Phase = PhaseTerminal
	m.cancel()
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil

	res := MatchResult{
		MatchID:   m.ID,
		Reason:    reason,
		WinnerID:  winnerID,
		Rounds:    m.Round,
		StartedAt: m.CreatedAt,
		EndedAt:   time.Now(),
	}
	for i, p := range m.Players {
		res.Players[i] = ResultPlayer{PlayerID: p.ID, UserID: p.UserID, Name: p.Name, Health: p.Health}
	}
	m.endNotice = &res

	m.logAction(uuid.Nil, "match_end", map[string]interface{}{
		"reason":   reason,
		"winnerId": winnerID,
		"rounds":   m.Round,
	})
	if m.actions != nil {
		m.actions.close()
	}
	m.logger.WithFields(logrus.Fields{
		"reason": reason,
		"winner": winnerID,
		"rounds": m.Round,
	}).Info("match ended")
}

// run executes fn under the match lock unless the match has ended, then delivers a
// pending end notice after unlocking.
func (m *Match) run(fn func()) {
	m.mu.Lock()
	if m.ended {
		m.mu.Unlock()
		return
	}
	fn()
	notice := m.endNotice
	m.endNotice = nil
	onEnd := m.OnEnd
	m.mu.Unlock()

	if notice != nil && onEnd != nil {
		onEnd(*notice)
	}
}

// after schedules fn under the match lock. Timers are stopped when the match ends.
// A fired timer removes itself from the pending set before fn runs.
func (m *Match) after(d time.Duration, fn func()) {
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		m.run(func() {
			m.dropTimer(t)
			fn()
		})
	})
	m.timers = append(m.timers, t)
}

// dropTimer forgets a timer that has fired. Lock held.
func (m *Match) dropTimer(t *time.Timer) {
	for i, pending := range m.timers {
		if pending == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// turnHolder resolves playerID to the current turn holder during rolling.
func (m *Match) turnHolder(playerID uuid.UUID) (*Player, bool) {
	side, ok := m.sides[playerID]
	if !ok || m.Phase != PhaseRolling || side != m.TurnHolder {
		return nil, false
	}
	return m.Players[side], true
}

func (m *Match) broadcastSelected(p *Player, d RolledDie) {
	m.broadcast(MatchEvent{Type: EventDieSelected, Payload: map[string]interface{}{
		"playerId":      p.ID,
		"die":           d,
		"selectedCount": p.selectedCount(),
	}})
}

func (m *Match) views() [2]PlayerView {
	return [2]PlayerView{m.Players[SideA].view(), m.Players[SideB].view()}
}

func (m *Match) broadcast(ev MatchEvent) {
	if m.BroadcastFn != nil {
		m.BroadcastFn(ev)
	}
}

func (m *Match) sendTo(playerID uuid.UUID, ev MatchEvent) {
	if m.BroadcastToPlayerFn != nil {
		m.BroadcastToPlayerFn(playerID, ev)
	}
}

// logAction records an action for the historian. Records are published in order by
// the match's action log; failures are only logged. Lock held.
func (m *Match) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	m.actionIndex++
	if m.actions == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.MatchActionRecord{
		MatchID:       m.ID,
		ActionIndex:   m.actionIndex,
		ActorID:       actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	m.actions.push(record)
}
