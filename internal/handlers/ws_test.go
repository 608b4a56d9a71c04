// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/yudh/internal/auth"
	"github.com/jason-s-yu/yudh/internal/game"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *MatchServer) {
	t.Helper()
	require.NoError(t, auth.Init(time.Hour))

	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	ms := NewMatchServer(logger, game.MatchOptions{Timing: &game.Timing{}})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", MatchWSHandler(ms))
	mux.HandleFunc("/match/list", ListMatchesHandler(ms))
	mux.HandleFunc("/healthz", HealthHandler(ms))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, ms
}

func dial(t *testing.T, srv *httptest.Server, subprotocols ...string) *websocket.Conn {
	t.Helper()
	if subprotocols == nil {
		subprotocols = []string{wsSubprotocol}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: subprotocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func sendMsg(t *testing.T, c *websocket.Conn, msg map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// readUntil reads messages until one of type typ arrives and returns it.
func readUntil(t *testing.T, c *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err, "waiting for %q", typ)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == typ {
			return msg
		}
	}
}

func TestPingPong(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)

	sendMsg(t, c, map[string]interface{}{"type": "ping"})
	readUntil(t, c, "pong")
}

func TestInvalidMessages(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	msg := readUntil(t, c, "error")
	assert.Equal(t, "Invalid JSON format.", msg["message"])

	sendMsg(t, c, map[string]interface{}{"type": "summon-garuda"})
	msg = readUntil(t, c, "error")
	assert.Contains(t, msg["message"], "summon-garuda")
}

func TestWrongSubprotocolIsClosed(t *testing.T) {
	srv, _ := newTestServer(t)
	c := dial(t, srv, "chat")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
}

func TestMatchFlowOverWebsocket(t *testing.T) {
	srv, ms := newTestServer(t)
	first := dial(t, srv)
	second := dial(t, srv)

	sendMsg(t, first, map[string]interface{}{"type": "player-ready", "username": "Arjuna", "avatar": "bow"})
	sendMsg(t, first, map[string]interface{}{"type": "find-match"})
	readUntil(t, first, "waiting-for-match")

	sendMsg(t, second, map[string]interface{}{"type": "player-ready", "username": "Karna"})
	sendMsg(t, second, map[string]interface{}{"type": "find-match"})

	foundFirst := readUntil(t, first, "match-found")
	foundSecond := readUntil(t, second, "match-found")
	assert.Equal(t, foundFirst["matchId"], foundSecond["matchId"])
	assert.Equal(t, "B", foundFirst["side"])
	assert.Equal(t, "A", foundSecond["side"])
	assert.Equal(t, "Karna", foundFirst["opponent"].(map[string]interface{})["name"])
	assert.Equal(t, "Arjuna", foundSecond["opponent"].(map[string]interface{})["name"])

	readUntil(t, first, "start-toss")
	readUntil(t, second, "start-toss")

	sendMsg(t, first, map[string]interface{}{"type": "toss-choice", "choice": "heads"})
	auto := readUntil(t, second, "toss-auto-assigned")
	assert.Equal(t, "tails", auto["choice"])

	result := readUntil(t, first, "toss-result")
	readUntil(t, second, "toss-result")

	sendMsg(t, first, map[string]interface{}{"type": "ready-to-play"})
	sendMsg(t, second, map[string]interface{}{"type": "ready-to-play"})
	start := readUntil(t, first, "match-start")
	readUntil(t, second, "match-start")
	assert.Equal(t, result["firstTurnHolderId"], start["turnHolderId"])

	list := httpGetJSON(t, srv.URL+"/match/list")
	assert.Len(t, list["matches"], 1)

	// The second connection sits on side A.
	m, ok := ms.Matches.GetMatch(uuid.MustParse(foundFirst["matchId"].(string)))
	require.True(t, ok)
	holder, other := first, second
	if m.State().TurnHolder == game.SideA {
		holder, other = second, first
	}

	sendMsg(t, holder, map[string]interface{}{"type": "roll-dice"})
	rolled := readUntil(t, other, "dice-rolled")
	assert.Len(t, rolled["dice"], game.DiceCount)

	require.NoError(t, holder.Close(websocket.StatusNormalClosure, "bye"))
	readUntil(t, other, "opponent-left")
	require.Eventually(t, func() bool { return ms.Matches.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	body := httpGetJSON(t, srv.URL+"/healthz")
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["database"])
}
