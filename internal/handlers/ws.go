// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/yudh/internal/game"
	"github.com/jason-s-yu/yudh/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	wsSubprotocol = "yudh"
	outboxSize    = 64
	maxNameLength = 24
	pingInterval  = 30 * time.Second
	writeTimeout  = 5 * time.Second
)

// Transport-level events that are not part of the match protocol.
const (
	eventPong  game.EventType = "pong"
	eventError game.EventType = "error"
)

// clientMessage is the union of every client-to-server message. Face echoes the
// face the client believes it picked; the server's roll wins.
type clientMessage struct {
	Type     string          `json:"type"`
	Username string          `json:"username,omitempty"`
	Avatar   string          `json:"avatar,omitempty"`
	Choice   game.TossChoice `json:"choice,omitempty"`
	DieID    int             `json:"dieId,omitempty"`
	Face     *game.Face      `json:"face,omitempty"`
	Activate bool            `json:"activate"`
}

// playerConn is one socket. Events for it queue in out and are written by writePump.
type playerConn struct {
	id     uuid.UUID
	userID uuid.UUID
	name   string
	avatar string
	out    chan game.MatchEvent
	logger *logrus.Entry
}

// send queues ev without blocking. Events for a client that cannot keep up are dropped.
func (pc *playerConn) send(ev game.MatchEvent) {
	select {
	case pc.out <- ev:
	default:
		pc.logger.WithField("type", ev.Type).Warn("outbox full, dropping event")
	}
}

func (pc *playerConn) sendError(msg string) {
	pc.send(game.MatchEvent{Type: eventError, Payload: map[string]interface{}{"message": msg}})
}

// client snapshots the profile for the matchmaker. The copy keeps later profile
// edits from racing with readers in other matches.
func (pc *playerConn) client() *game.Client {
	return &game.Client{
		ID:      pc.id,
		UserID:  pc.userID,
		Name:    pc.name,
		Avatar:  pc.avatar,
		Deliver: pc.send,
	}
}

// MatchWSHandler upgrades to a websocket speaking the "yudh" subprotocol and binds
// the socket to the matchmaker.
func MatchWSHandler(ms *MatchServer) http.HandlerFunc {
	logger := ms.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		// Identity first so the cookie rides on the upgrade response.
		claims, err := EnsureGuest(w, r)
		if err != nil {
			logger.WithError(err).Error("failed to resolve player identity")
			http.Error(w, "could not establish session", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{wsSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.WithError(err).Warn("websocket accept failed")
			return
		}
		if c.Subprotocol() != wsSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the "+wsSubprotocol+" subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		name := claims.Username
		if name == "" {
			name = guestName
		}
		pc := &playerConn{
			id:     uuid.New(),
			userID: claims.UserID,
			name:   name,
			out:    make(chan game.MatchEvent, outboxSize),
		}
		pc.logger = logger.WithFields(logrus.Fields{"conn": pc.id, "user": pc.userID})

		go writePump(ctx, c, pc)
		err = readPump(ctx, c, pc, ms.Matchmaker)

		ms.Matchmaker.OnDisconnect(pc.id)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes client messages until the socket closes and returns the read error.
func readPump(ctx context.Context, c *websocket.Conn, pc *playerConn, mm *game.Matchmaker) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			pc.sendError("Expected a text message.")
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			pc.logger.WithError(err).Debug("invalid client message")
			pc.sendError("Invalid JSON format.")
			continue
		}
		handleMessage(pc, mm, msg)
	}
}

func handleMessage(pc *playerConn, mm *game.Matchmaker, msg clientMessage) {
	switch msg.Type {
	case "ping":
		pc.send(game.MatchEvent{Type: eventPong})
		return
	case "player-ready":
		if name := strings.TrimSpace(msg.Username); name != "" {
			if len([]rune(name)) > maxNameLength {
				name = string([]rune(name)[:maxNameLength])
			}
			pc.name = name
		}
		pc.avatar = msg.Avatar
		return
	case "find-match":
		mm.FindMatch(pc.client())
		return
	}

	m, _, ok := mm.MatchFor(pc.id)
	if !ok {
		switch msg.Type {
		case "toss-choice", "ready-to-play", "roll-dice", "select-die", "deselect-die", "complete-turn", "favor-decision":
			pc.logger.WithField("type", msg.Type).Debug("match message without a match")
		default:
			pc.sendError("Unknown message type: " + msg.Type)
		}
		return
	}

	switch msg.Type {
	case "toss-choice":
		m.HandleTossChoice(pc.id, msg.Choice)
	case "ready-to-play":
		m.ReadyToPlay(pc.id)
	case "roll-dice":
		m.RollDice(pc.id)
	case "select-die":
		m.SelectDie(pc.id, msg.DieID)
	case "deselect-die":
		m.DeselectDie(pc.id, msg.DieID)
	case "complete-turn":
		m.CompleteTurn(pc.id)
	case "favor-decision":
		m.FavorDecision(pc.id, msg.Activate)
	default:
		pc.sendError("Unknown message type: " + msg.Type)
	}
}

// writePump drains the outbox and keeps the connection alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, pc *playerConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-pc.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, game.EventBytes(ev))
			cancel()
			if err != nil {
				pc.logger.WithError(err).Warn("write failed, closing connection")
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				pc.logger.WithError(err).Debug("ping failed")
				c.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}
