package wsrouter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

// ErrorFunc reports a handler or routing failure on the connection without
// closing it.
type ErrorFunc func(ctx context.Context, conn *websocket.Conn, err error)

type WSRouter struct {
	routes  map[string]HandlerFunc
	onError ErrorFunc
}

func New(onError ErrorFunc) *WSRouter {
	return &WSRouter{
		routes:  make(map[string]HandlerFunc),
		onError: onError,
	}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads messages from the connection until the transport fails,
// dispatching each one by its type. Messages are handled in order, one at a
// time, so handlers for a single connection never interleave. A frame that
// is not valid JSON is reported through onError and the connection stays
// open.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			r.onError(ctx, conn, ErrMalformedMessage)
			continue
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			r.onError(ctx, conn, ErrUnknownMessageType)
			continue
		}

		if err := handler(WithMessageType(ctx, msg.Type), conn, msg.Payload); err != nil {
			r.onError(ctx, conn, err)
		}
	}
}
