/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sketch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame map[string]any

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()

	if cfg.Words == nil {
		cfg.Words = testWords(t, "Giraffe")
	}
	if cfg.PlayerTimeout == 0 {
		cfg.PlayerTimeout = time.Minute
	}

	srv := NewServer(cfg)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.ServeWS(w, r, strings.TrimPrefix(r.URL.Path, "/"))
	}))

	t.Cleanup(func() {
		ts.Close()
		srv.Registry().CloseAll("")
	})

	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, code, cookie string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Cookie", PlayerCookieName+"="+cookie)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/"+code, header)
	require.NoError(t, err)
	_ = resp.Body.Close()

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg frame) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(msg))
}

// expect reads frames until one of type typ arrives.
func expect(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", typ)

		if f["type"] == typ {
			return f
		}
	}
}

func expectError(t *testing.T, conn *websocket.Conn, code string) {
	t.Helper()

	f := expect(t, conn, TypeError)
	assert.Equal(t, code, f["code"])
	assert.NotEmpty(t, f["message"])
}

// expectClosed reads until the server closes conn.
func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}

		var ne net.Error
		assert.False(t, errors.As(err, &ne) && ne.Timeout(), "connection was never closed")

		return
	}
}

func joinOver(t *testing.T, conn *websocket.Conn, name string) frame {
	t.Helper()

	send(t, conn, frame{"type": TypeJoinGame, "username": name})

	return expect(t, conn, TypeGameJoined)
}

func TestServerGame(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{})

	alice := dial(t, ts, "abcd", "alice-cookie")
	send(t, alice, frame{"type": TypeCreateGame})
	created := expect(t, alice, TypeGameCreated)
	assert.Equal(t, "ABCD", created["game_id"])

	joined := joinOver(t, alice, "alice")
	assert.Equal(t, "ABCD", joined["game_id"])
	assert.Equal(t, true, joined["you"].(map[string]any)["is_admin"])

	bob := dial(t, ts, "ABCD", "bob-cookie")
	send(t, bob, frame{"type": TypeJoinGame, "username": "bob", "game_id": "abcd"})
	expect(t, bob, TypeGameJoined)

	roster := expect(t, alice, TypeUpdatePlayers)
	for len(roster["players"].([]any)) != 2 {
		roster = expect(t, alice, TypeUpdatePlayers)
	}

	send(t, alice, frame{"type": TypeStartGame, "game_id": "ABCD"})

	started := expect(t, alice, TypeGameStarted)
	assert.Equal(t, "Giraffe", started["word"])

	started = expect(t, bob, TypeGameStarted)
	assert.NotContains(t, started, "word")
	assert.Equal(t, "alice", started["drawer"])

	send(t, alice, frame{"type": TypeDrawStart, "x": 0.25, "y": 0.75})
	stroke := expect(t, bob, TypeDrawStart)
	assert.Equal(t, 0.25, stroke["x"])
	assert.Equal(t, 0.75, stroke["y"])

	send(t, bob, frame{"type": TypeDrawLine, "x": 0.5, "y": 0.5})
	expectError(t, bob, ErrNotDrawer.Code)

	send(t, alice, frame{"type": TypeDrawLine, "x": 0.5})
	expectError(t, alice, ErrInvalidStroke.Code)

	send(t, alice, frame{"type": TypeGuess, "message": "giraffe"})
	expectError(t, alice, ErrDrawerCannotGuess.Code)

	send(t, bob, frame{"type": TypeGuess, "message": "Giraffe"})

	correct := expect(t, alice, TypeCorrectGuess)
	assert.Equal(t, "bob", correct["username"])

	ended := expect(t, alice, TypeRoundEnd)
	assert.Equal(t, string(ReasonSolved), ended["reason"])
	assert.Equal(t, "bob", ended["winner"])
	assert.Equal(t, "Giraffe", ended["word"])
}

func TestServerRejections(t *testing.T) {
	t.Parallel()

	t.Run("Unknown Room", func(t *testing.T) {
		t.Parallel()
		_, ts := newTestServer(t, Config{})

		conn := dial(t, ts, "NOPE", "c1")
		send(t, conn, frame{"type": TypeJoinGame, "username": "alice"})
		expectError(t, conn, ErrNotFound.Code)
	})

	t.Run("Room Exists", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		conn := dial(t, ts, "ABCD", "c1")
		send(t, conn, frame{"type": TypeCreateGame})
		expectError(t, conn, ErrRoomExists.Code)
	})

	t.Run("Malformed Messages", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		conn := dial(t, ts, "ABCD", "c1")

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		expectError(t, conn, ErrBadMessage.Code)

		send(t, conn, frame{"type": "dance"})
		expectError(t, conn, ErrBadMessage.Code)

		send(t, conn, frame{"type": TypeGuess, "message": "hi"})
		expectError(t, conn, ErrNotJoined.Code)

		send(t, conn, frame{"type": TypeJoinGame, "username": "alice", "game_id": "WXYZ"})
		expectError(t, conn, ErrWrongRoom.Code)

		// The connection survives every rejection.
		joinOver(t, conn, "alice")
	})

	t.Run("Join Twice", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		conn := dial(t, ts, "ABCD", "c1")
		joinOver(t, conn, "alice")

		send(t, conn, frame{"type": TypeJoinGame, "username": "alice2"})
		expectError(t, conn, ErrDuplicateJoin.Code)

		assert.Equal(t, 1, srv.Stats().Sessions[0].Players)
	})

	t.Run("Rate Limited", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 1})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		conn := dial(t, ts, "ABCD", "c1")
		joinOver(t, conn, "alice")

		send(t, conn, frame{"type": TypeGuess, "message": "hi"})
		expectError(t, conn, ErrRateLimited.Code)
	})
}

func TestServerBadCode(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/no")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerReconnect(t *testing.T) {
	t.Parallel()

	t.Run("Within Grace", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		alice := dial(t, ts, "ABCD", "alice-cookie")
		first := joinOver(t, alice, "alice")
		pid := first["you"].(map[string]any)["pid"]

		bob := dial(t, ts, "ABCD", "bob-cookie")
		joinOver(t, bob, "bob")

		require.NoError(t, alice.Close())

		// bob sees alice drop out of the connected set.
		for {
			roster := expect(t, bob, TypeUpdatePlayers)
			if roster["players"].([]any)[0].(map[string]any)["connected"] == false {
				break
			}
		}

		var again *websocket.Conn
		require.Eventually(t, func() bool {
			header := http.Header{}
			header.Set("Cookie", PlayerCookieName+"=alice-cookie")

			conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ABCD", header)
			if err != nil {
				return false
			}
			_ = resp.Body.Close()

			var f frame
			_ = conn.SetReadDeadline(time.Now().Add(time.Second))
			if err := conn.ReadJSON(&f); err != nil || f["type"] != TypeGameJoined {
				_ = conn.Close()

				return false
			}

			assert.Equal(t, pid, f["you"].(map[string]any)["pid"])
			again = conn

			return true
		}, 2*time.Second, 10*time.Millisecond)
		t.Cleanup(func() {
			_ = again.Close()
		})

		send(t, again, frame{"type": TypeStartGame})
		expect(t, again, TypeGameStarted)
	})

	t.Run("After Grace", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{PlayerTimeout: 20 * time.Millisecond})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		alice := dial(t, ts, "ABCD", "alice-cookie")
		joinOver(t, alice, "alice")

		bob := dial(t, ts, "ABCD", "bob-cookie")
		joinOver(t, bob, "bob")

		require.NoError(t, alice.Close())

		for {
			roster := expect(t, bob, TypeUpdatePlayers)
			players := roster["players"].([]any)
			if len(players) == 1 {
				me := players[0].(map[string]any)
				assert.Equal(t, "bob", me["username"])
				assert.Equal(t, true, me["is_admin"])

				break
			}
		}
	})

	t.Run("New Connection Takes Over", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{PlayerTimeout: 50 * time.Millisecond})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		first := dial(t, ts, "ABCD", "alice-cookie")
		joined := joinOver(t, first, "alice")
		pid := joined["you"].(map[string]any)["pid"]

		// The old socket is still open when the new one arrives.
		second := dial(t, ts, "ABCD", "alice-cookie")
		again := expect(t, second, TypeGameJoined)
		assert.Equal(t, pid, again["you"].(map[string]any)["pid"])

		expectClosed(t, first)

		send(t, second, frame{"type": TypeJoinGame, "username": "alice2"})
		expectError(t, second, ErrDuplicateJoin.Code)

		time.Sleep(200 * time.Millisecond)

		send(t, second, frame{"type": TypeGuess, "message": "still here"})
		chat := expect(t, second, TypeMessage)
		assert.Equal(t, "still here", chat["message"])

		stats := srv.Stats()
		require.Len(t, stats.Sessions, 1)
		assert.Equal(t, 1, stats.Sessions[0].Players)
	})

	t.Run("Second Tab After Room Closes", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{PlayerTimeout: 50 * time.Millisecond})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		first := dial(t, ts, "ABCD", "alice-cookie")
		joinOver(t, first, "alice")

		send(t, first, frame{"type": TypeLeaveGame})
		require.Eventually(t, func() bool {
			_, err := srv.Registry().Get("ABCD")
			return err != nil
		}, 2*time.Second, 10*time.Millisecond)

		second := dial(t, ts, "ABCD", "alice-cookie")
		expectClosed(t, first)

		send(t, second, frame{"type": TypeCreateGame})
		expect(t, second, TypeGameCreated)
		joinOver(t, second, "alice")

		time.Sleep(300 * time.Millisecond)

		s, err := srv.Registry().Get("ABCD")
		require.NoError(t, err)
		assert.Equal(t, 1, s.Snapshot().Players)
	})

	t.Run("Room Closed Under Live Connection", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{PlayerTimeout: 50 * time.Millisecond})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		alice := dial(t, ts, "ABCD", "alice-cookie")
		joinOver(t, alice, "alice")

		srv.Registry().CloseAll("bye")
		expect(t, alice, TypeGameClosed)
		assert.Equal(t, 1, srv.Stats().Connections)

		send(t, alice, frame{"type": TypeCreateGame})
		expect(t, alice, TypeGameCreated)
		joinOver(t, alice, "alice")

		// A dropped connection in the reopened room still expires.
		require.NoError(t, alice.Close())
		require.Eventually(t, func() bool {
			_, err := srv.Registry().Get("ABCD")
			return err != nil
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Leave Then Rejoin", func(t *testing.T) {
		t.Parallel()
		srv, ts := newTestServer(t, Config{})

		_, err := srv.Registry().Create("ABCD")
		require.NoError(t, err)

		alice := dial(t, ts, "ABCD", "alice-cookie")
		joinOver(t, alice, "alice")
		bob := dial(t, ts, "ABCD", "bob-cookie")
		joinOver(t, bob, "bob")

		send(t, bob, frame{"type": TypeLeaveGame})
		send(t, bob, frame{"type": TypeGuess, "message": "hi"})
		expectError(t, bob, ErrNotJoined.Code)

		joinOver(t, bob, "bobby")
	})
}

func TestServerRun(t *testing.T) {
	t.Parallel()

	srv, ts := newTestServer(t, Config{})

	_, err := srv.Registry().Create("ABCD")
	require.NoError(t, err)

	conn := dial(t, ts, "ABCD", "c1")
	joinOver(t, conn, "alice")

	stats := srv.Stats()
	assert.Equal(t, 1, stats.Rooms)
	assert.Equal(t, 1, stats.Connections)
	require.Len(t, stats.Sessions, 1)
	assert.Equal(t, "ABCD", stats.Sessions[0].Code)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()
	cancel()

	require.NoError(t, <-done)

	closed := expect(t, conn, TypeGameClosed)
	assert.Equal(t, shutdownMessage, closed["message"])
	assert.Zero(t, srv.Registry().Len())
}
