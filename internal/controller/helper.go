package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/service/room"
	"github.com/syncroom/server/pkg/wsrouter"
)

var ErrValidationError = errors.New("validation error")

func (c controller) connLock(conn *websocket.Conn) *sync.Mutex {
	mu, _ := c.writeLocks.LoadOrStore(conn, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (c controller) releaseConn(conn *websocket.Conn) {
	c.writeLocks.Delete(conn)
}

func (c controller) writeToConn(ctx context.Context, conn *websocket.Conn, msg *protocol.Message) error {
	mu := c.connLock(conn)
	mu.Lock()
	defer mu.Unlock()

	return conn.WriteJSON(msg)
}

// broadcast fans a message out to every connection in the room. A dead
// connection must not block delivery to the rest, so write failures are
// logged and skipped.
func (c controller) broadcast(ctx context.Context, conns []*websocket.Conn, msg *protocol.Message) {
	for _, conn := range conns {
		if err := c.writeToConn(ctx, conn, msg); err != nil {
			c.logger.DebugContext(ctx, "failed to write to conn", "error", err)
		}
	}
}

func (c controller) broadcastRoomEvent(ctx context.Context, conns []*websocket.Conn, eventType string, payload any) {
	c.broadcast(ctx, conns, &protocol.Message{
		Type: protocol.TypeRoomEvent,
		Payload: protocol.RoomEventMessage{
			Event: protocol.RoomEvent{
				Type:    eventType,
				Payload: payload,
			},
		},
	})
}

func (c controller) writeRoomEvent(ctx context.Context, conn *websocket.Conn, eventType string, payload any) error {
	return c.writeToConn(ctx, conn, &protocol.Message{
		Type: protocol.TypeRoomEvent,
		Payload: protocol.RoomEventMessage{
			Event: protocol.RoomEvent{
				Type:    eventType,
				Payload: payload,
			},
		},
	})
}

// broadcastScheduled delivers a stamped action to the room. A nil message
// means the operation produced nothing to announce.
func (c controller) broadcastScheduled(ctx context.Context, conns []*websocket.Conn, msg *protocol.ScheduledActionMessage) {
	if msg == nil {
		return
	}

	c.broadcast(ctx, conns, &protocol.Message{
		Type:    protocol.TypeScheduledAction,
		Payload: msg,
	})
}

func (c controller) writeError(ctx context.Context, conn *websocket.Conn, message string) {
	if err := c.writeToConn(ctx, conn, &protocol.Message{
		Type:    protocol.TypeError,
		Payload: protocol.ErrorPayload{Message: message},
	}); err != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", err)
	}
}

// clientFacing reports whether the error text is safe to send back to the
// client as-is. Everything else collapses to a generic message.
func clientFacing(err error) bool {
	for _, target := range []error{
		ErrValidationError,
		wsrouter.ErrUnknownMessageType,
		wsrouter.ErrMalformedMessage,
		room.ErrRoomNotFound,
		room.ErrClientNotFound,
		room.ErrPermissionDenied,
		room.ErrMembersLimitReached,
		room.ErrPlaylistLimitReached,
		room.ErrSourceNotFound,
		room.ErrInvalidReorder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func (c controller) onWSError(ctx context.Context, conn *websocket.Conn, err error) {
	c.logger.DebugContext(ctx, "failed to handle message",
		"message_type", wsrouter.GetMessageTypeFromCtx(ctx),
		"error", err,
	)

	if clientFacing(err) {
		c.writeError(ctx, conn, err.Error())
		return
	}

	c.writeError(ctx, conn, "internal error")
}
