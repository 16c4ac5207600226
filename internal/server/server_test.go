package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"gomoku/backend/internal/game"
	"gomoku/backend/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, store storage.Store) (*Server, *httptest.Server) {
	t.Helper()
	engine := game.NewEngine(1, game.NewEvaluator(game.DefaultWeights()), zerolog.Nop())
	s := New(Config{
		IdleTimeout: time.Minute,
		Bot:         game.NewBot(game.SideB, engine),
		Store:       store,
		Log:         zerolog.Nop(),
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.manager.Shutdown()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server, query url.Values) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func sendMove(t *testing.T, conn *websocket.Conn, row, col int) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "move", "row": row, "col": col}))
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)
	res, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestLeaderboard(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.RecordResult(ctx, "alice", "win"))
	require.NoError(t, store.RecordResult(ctx, "bob", "lose"))
	s, _ := newTestServer(t, store)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []storage.Standing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Equal(t, []storage.Standing{
		{Username: "alice", Wins: 1},
		{Username: "bob", Losses: 1},
	}, rows)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=0", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebsocketRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, target := range []string{
		"/ws",
		"/ws?username=alice&mode=chess",
		"/ws?username=alice&mode=guest",
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSoloMatchGetsBotReply(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dial(t, ts, url.Values{"username": {"alice"}, "mode": {"solo"}})

	hello := readFrame(t, conn)
	require.Equal(t, "init", hello["type"])
	require.Equal(t, "A", hello["side"])
	require.NotEmpty(t, hello["matchId"])

	sendMove(t, conn, 7, 7)
	mine := readFrame(t, conn)
	require.Equal(t, map[string]any{"type": "marker", "side": "A", "row": 7.0, "col": 7.0}, mine)

	reply := readFrame(t, conn)
	require.Equal(t, "marker", reply["type"])
	require.Equal(t, "B", reply["side"])
	row, col := reply["row"].(float64), reply["col"].(float64)
	require.InDelta(t, 7, row, 1)
	require.InDelta(t, 7, col, 1)
}

func TestMoveBeforeRoomStartsIsAnError(t *testing.T) {
	_, ts := newTestServer(t, nil)
	host := dial(t, ts, url.Values{"username": {"hana"}, "mode": {"host"}})
	require.Equal(t, "waiting", readFrame(t, host)["type"])

	sendMove(t, host, 0, 0)
	frame := readFrame(t, host)
	require.Equal(t, "error", frame["type"])
	require.Equal(t, ErrNoMatch.Error(), frame["message"])
}

func TestGuestCannotJoinUnknownRoom(t *testing.T) {
	_, ts := newTestServer(t, nil)
	guest := dial(t, ts, url.Values{"username": {"gil"}, "mode": {"guest"}, "room": {"nope"}})
	frame := readFrame(t, guest)
	require.Equal(t, "error", frame["type"])
	require.Equal(t, ErrRoomNotFound.Error(), frame["message"])
}

func TestHostAndGuestRelayMoves(t *testing.T) {
	store := storage.NewMemoryStore()
	s, ts := newTestServer(t, store)

	host := dial(t, ts, url.Values{"username": {"hana"}, "mode": {"host"}})
	waiting := readFrame(t, host)
	require.Equal(t, "waiting", waiting["type"])
	roomID, _ := waiting["room"].(string)
	require.NotEmpty(t, roomID)

	guest := dial(t, ts, url.Values{"username": {"gil"}, "mode": {"guest"}, "room": {roomID}})
	hostStart := readFrame(t, host)
	guestStart := readFrame(t, guest)
	require.Equal(t, "start", hostStart["type"])
	require.Equal(t, "B", hostStart["side"])
	require.Equal(t, "start", guestStart["type"])
	require.Equal(t, "A", guestStart["side"])

	// The guest plays first. Every stone shows up on both screens.
	moves := []struct {
		conn     *websocket.Conn
		row, col int
	}{
		{guest, 7, 0}, {host, 0, 0},
		{guest, 7, 1}, {host, 0, 1},
		{guest, 7, 2}, {host, 0, 2},
		{guest, 7, 3}, {host, 0, 3},
		{guest, 7, 4},
	}
	for i, mv := range moves {
		side := "A"
		if i%2 == 1 {
			side = "B"
		}
		sendMove(t, mv.conn, mv.row, mv.col)
		want := map[string]any{"type": "marker", "side": side, "row": float64(mv.row), "col": float64(mv.col)}
		require.Equal(t, want, readFrame(t, mv.conn))
		other := host
		if mv.conn == host {
			other = guest
		}
		require.Equal(t, want, readFrame(t, other))
	}

	guestOver := readFrame(t, guest)
	require.Equal(t, "game_over", guestOver["type"])
	require.Equal(t, "win", guestOver["result"])
	hostOver := readFrame(t, host)
	require.Equal(t, "game_over", hostOver["type"])
	require.Equal(t, "lose", hostOver["result"])

	require.Eventually(t, func() bool {
		rows, _ := store.GetLeaderboard(context.Background(), 10)
		return len(rows) == 2
	}, 5*time.Second, 10*time.Millisecond)
	rows, err := store.GetLeaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []storage.Standing{
		{Username: "gil", Wins: 1},
		{Username: "hana", Losses: 1},
	}, rows)
	require.Eventually(t, func() bool { return s.manager.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestOpponentLeavingEndsRoom(t *testing.T) {
	s, ts := newTestServer(t, nil)
	host := dial(t, ts, url.Values{"username": {"hana"}, "mode": {"host"}})
	roomID, _ := readFrame(t, host)["room"].(string)
	guest := dial(t, ts, url.Values{"username": {"gil"}, "mode": {"guest"}, "room": {roomID}})
	require.Equal(t, "start", readFrame(t, host)["type"])
	require.Equal(t, "start", readFrame(t, guest)["type"])

	require.NoError(t, guest.WriteJSON(map[string]any{"type": "exit"}))
	frame := readFrame(t, host)
	require.Equal(t, "opponent_left", frame["type"])
	require.Eventually(t, func() bool { return s.manager.Len() == 0 && s.rooms.len() == 0 },
		5*time.Second, 10*time.Millisecond)
}
