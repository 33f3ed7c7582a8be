package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/repository/connection/inmemory"
	roomRedis "github.com/syncroom/server/internal/repository/room/redis"
	"github.com/syncroom/server/internal/service/room"
	"github.com/syncroom/server/internal/spatial"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	roomRepo := roomRedis.NewRepo(rc, slog.Default(), time.Hour)
	connRepo := inmemory.NewRepo(slog.Default())

	svc, err := room.NewService(roomRepo, connRepo, room.Config{
		MembersLimit:  4,
		PlaylistLimit: 10,
		ScheduleDelay: 100 * time.Millisecond,
		GracePeriod:   time.Second,
		GridSize:      100,
		GainCurve:     spatial.CurveExponential,
	}, slog.Default())
	require.NoError(t, err)

	srv := httptest.NewServer(NewController(svc, slog.Default()).GetMux())
	t.Cleanup(srv.Close)

	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, roomID, clientID string) *websocket.Conn {
	t.Helper()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?room-id=" + roomID + "&client-id=" + clientID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var env envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == msgType {
			return env
		}
	}
}

// A frame that is not valid JSON gets an ERROR response and the connection
// keeps serving subsequent messages.
func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "room-1", "alice")

	readUntil(t, conn, protocol.TypeSetClientID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	env := readUntil(t, conn, protocol.TypeError)
	var errPayload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &errPayload))
	assert.Contains(t, errPayload.Message, "malformed")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    protocol.TypeNTPRequest,
		"payload": map[string]any{"t0": 123},
	}))

	env = readUntil(t, conn, protocol.TypeNTPResponse)
	var ntp protocol.NTPResponsePayload
	require.NoError(t, json.Unmarshal(env.Payload, &ntp))
	assert.Equal(t, int64(123), ntp.T0)
}

func TestSetListeningSourcePayloadIsFlat(t *testing.T) {
	srv := newTestServer(t)
	conn := dialWS(t, srv, "room-1", "alice")

	readUntil(t, conn, protocol.TypeSetClientID)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": protocol.TypeStartSpatialAudio,
	}))
	readUntil(t, conn, protocol.TypeScheduledAction)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":    protocol.TypeSetListeningSource,
		"payload": map[string]any{"x": 10.0, "y": 20.0},
	}))

	env := readUntil(t, conn, protocol.TypeScheduledAction)
	var scheduled struct {
		ScheduledAction struct {
			Type    string                        `json:"type"`
			Payload protocol.SpatialConfigPayload `json:"payload"`
		} `json:"scheduled_action"`
	}
	require.NoError(t, json.Unmarshal(env.Payload, &scheduled))
	require.Equal(t, protocol.ActionSpatialConfig, scheduled.ScheduledAction.Type)
	assert.Equal(t, spatial.Position{X: 10, Y: 20}, scheduled.ScheduledAction.Payload.ListeningSource)
}

// Broadcasts for the same room run on different handler goroutines; the
// per-connection write lock must keep them off the websocket at the same
// time.
func TestBroadcastSerializesConcurrentWriters(t *testing.T) {
	c := NewController(nil, slog.Default())

	serverConns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	serverConn := <-serverConns
	t.Cleanup(func() { serverConn.Close() })

	const writers, perWriter = 4, 25
	msg := &protocol.Message{
		Type:    protocol.TypeError,
		Payload: protocol.ErrorPayload{Message: "x"},
	}

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				c.broadcast(context.Background(), []*websocket.Conn{serverConn}, msg)
			}
		}()
	}

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	for received := 0; received < writers*perWriter; received++ {
		_, _, err := client.ReadMessage()
		require.NoError(t, err)
	}
	wg.Wait()
}
