package wsrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reply struct {
	Type string `json:"type"`
}

func newRouterServer(t *testing.T) *httptest.Server {
	t.Helper()

	router := New(func(ctx context.Context, conn *websocket.Conn, err error) {
		_ = conn.WriteJSON(reply{Type: "ERROR: " + err.Error()})
	})
	router.Handle("PING", func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		return conn.WriteJSON(reply{Type: "PONG"})
	})

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = router.ServeConn(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	return conn
}

func TestServeConnDispatchesByType(t *testing.T) {
	conn := dial(t, newRouterServer(t))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "PING"}))

	var got reply
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "PONG", got.Type)
}

func TestServeConnReportsUnknownType(t *testing.T) {
	conn := dial(t, newRouterServer(t))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "NOPE"}))

	var got reply
	require.NoError(t, conn.ReadJSON(&got))
	assert.Contains(t, got.Type, ErrUnknownMessageType.Error())
}

// A frame that is not valid JSON is a protocol error, not a transport
// error: the connection stays open and keeps dispatching.
func TestServeConnSurvivesMalformedFrame(t *testing.T) {
	conn := dial(t, newRouterServer(t))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	var got reply
	require.NoError(t, conn.ReadJSON(&got))
	assert.Contains(t, got.Type, ErrMalformedMessage.Error())

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "PING"}))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "PONG", got.Type)
}
