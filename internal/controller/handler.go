package controller

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/service/room"
)

// serveWS is the single entry point for playback clients. The room is
// created lazily on first join; a client-supplied client-id lets a
// reconnecting client keep its identity.
func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room-id")
	if roomID == "" {
		c.logger.DebugContext(r.Context(), "empty room id")
		http.Error(w, "room-id is required", http.StatusBadRequest)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		username = "guest"
	}

	clientID := r.URL.Query().Get("client-id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()
	defer c.releaseConn(conn)

	joinResp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		Conn:     conn,
		RoomID:   roomID,
		ClientID: clientID,
		Username: username,
	})
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to join room", "error", err)
		if clientFacing(err) {
			c.writeError(r.Context(), conn, err.Error())
		} else {
			c.writeError(r.Context(), conn, "internal error")
		}
		return
	}
	defer c.disconnect(r.Context(), roomID, clientID)

	if err := c.writeToConn(r.Context(), conn, &protocol.Message{
		Type:    protocol.TypeSetClientID,
		Payload: protocol.SetClientIDPayload{ClientID: clientID},
	}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write client id", "error", err)
		return
	}

	if err := c.writeRoomState(r.Context(), conn, joinResp.State); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write room state", "error", err)
		return
	}

	c.broadcastRoomEvent(r.Context(), joinResp.Conns, protocol.EventClientChange, protocol.ClientChangePayload{
		Clients: joinResp.Clients,
	})
	c.broadcastScheduled(r.Context(), joinResp.Conns, joinResp.Spatial)

	ctx := context.WithValue(r.Context(), roomIDCtxKey, roomID)
	ctx = context.WithValue(ctx, clientIDCtxKey, clientID)

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(r.Context(), "connection closed", "error", err)
	}
}

// writeRoomState replays the authoritative view to one client as the same
// room events a live subscriber would have seen.
func (c controller) writeRoomState(ctx context.Context, conn *websocket.Conn, state room.RoomState) error {
	if err := c.writeRoomEvent(ctx, conn, protocol.EventClientChange, protocol.ClientChangePayload{
		Clients: state.Clients,
	}); err != nil {
		return err
	}

	if err := c.writeRoomEvent(ctx, conn, protocol.EventSetAudioSources, protocol.SetAudioSourcesPayload{
		Sources: state.AudioSources,
	}); err != nil {
		return err
	}

	if err := c.writeRoomEvent(ctx, conn, protocol.EventSetYouTubeSources, protocol.SetYouTubeSourcesPayload{
		Sources: state.YouTubeSources,
	}); err != nil {
		return err
	}

	if state.SelectedAudio != "" {
		if err := c.writeRoomEvent(ctx, conn, protocol.EventSelectedAudioChange, protocol.SelectedAudioChangePayload{
			AudioURL: state.SelectedAudio,
		}); err != nil {
			return err
		}
	}

	if state.SelectedYouTube != "" {
		if err := c.writeRoomEvent(ctx, conn, protocol.EventSelectedYouTubeChange, protocol.SelectedYouTubeChangePayload{
			VideoID: state.SelectedYouTube,
		}); err != nil {
			return err
		}
	}

	if state.Mode != "" {
		if err := c.writeRoomEvent(ctx, conn, protocol.EventModeChange, protocol.ModeChangePayload{
			Mode: state.Mode,
		}); err != nil {
			return err
		}
	}

	if state.Playback != nil {
		if err := c.writeRoomEvent(ctx, conn, protocol.EventPlaybackState, state.Playback); err != nil {
			return err
		}
	}

	return nil
}

func (c controller) disconnect(ctx context.Context, roomID, clientID string) {
	disconnectResp, err := c.roomService.DisconnectClient(ctx, &room.DisconnectClientParams{
		RoomID:   roomID,
		ClientID: clientID,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect client", "error", err)
		return
	}

	if disconnectResp.IsRoomEmpty {
		return
	}

	c.broadcastRoomEvent(ctx, disconnectResp.Conns, protocol.EventClientChange, protocol.ClientChangePayload{
		Clients: disconnectResp.Clients,
	})
	c.broadcastScheduled(ctx, disconnectResp.Conns, disconnectResp.Spatial)
}
