package controller

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/service/room"
	"github.com/syncroom/server/internal/spatial"
)

type EmptyInput struct{}

func (ei *EmptyInput) UnmarshalJSON([]byte) error {
	return nil
}

func (c controller) validateInput(input any) error {
	if errs, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("%s: %w", errs[0].Message, ErrValidationError)
	}

	return nil
}

// clock

type NTPRequestInput struct {
	T0          int64   `json:"t0"`
	RoundTripMs float64 `json:"round_trip_ms"`
}

// handleNTPRequest answers a clock probe. t1 is stamped on receipt and t2
// right before the reply is written, so the client can subtract server
// processing time from its round-trip estimate.
func (c controller) handleNTPRequest(ctx context.Context, conn *websocket.Conn, input NTPRequestInput) error {
	t1 := c.nowMs()
	roomID := c.getRoomIDFromCtx(ctx)
	clientID := c.getClientIDFromCtx(ctx)

	if err := c.writeToConn(ctx, conn, &protocol.Message{
		Type: protocol.TypeNTPResponse,
		Payload: protocol.NTPResponsePayload{
			T0: input.T0,
			T1: t1,
			T2: c.nowMs(),
		},
	}); err != nil {
		return fmt.Errorf("failed to write ntp response: %w", err)
	}

	// piggybacked stats from the previous exchange
	c.roomService.RecordClockStats(ctx, &room.RecordClockStatsParams{
		RoomID:      roomID,
		ClientID:    clientID,
		RoundTripMs: input.RoundTripMs,
		RespondedAt: t1,
	})

	return nil
}

func (c controller) handleSync(ctx context.Context, conn *websocket.Conn, input EmptyInput) error {
	roomID := c.getRoomIDFromCtx(ctx)

	state, err := c.roomService.GetRoomState(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to get room state: %w", err)
	}

	if err := c.writeRoomState(ctx, conn, state); err != nil {
		return fmt.Errorf("failed to write room state: %w", err)
	}

	return nil
}

// playback

type PlayInput struct {
	AudioSource      string  `json:"audio_source" validate:"required"`
	TrackTimeSeconds float64 `json:"track_time_seconds" validate:"gte=0"`
}

func (c controller) handlePlay(ctx context.Context, conn *websocket.Conn, input PlayInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	playResp, err := c.roomService.Play(ctx, &room.PlayParams{
		RoomID:           c.getRoomIDFromCtx(ctx),
		SenderID:         c.getClientIDFromCtx(ctx),
		AudioSource:      input.AudioSource,
		TrackTimeSeconds: input.TrackTimeSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	c.broadcastScheduled(ctx, playResp.Conns, playResp.Message)

	return nil
}

type PauseInput struct {
	TrackTimeSeconds float64 `json:"track_time_seconds" validate:"gte=0"`
}

func (c controller) handlePause(ctx context.Context, conn *websocket.Conn, input PauseInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	pauseResp, err := c.roomService.Pause(ctx, &room.PauseParams{
		RoomID:           c.getRoomIDFromCtx(ctx),
		SenderID:         c.getClientIDFromCtx(ctx),
		TrackTimeSeconds: input.TrackTimeSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	c.broadcastScheduled(ctx, pauseResp.Conns, pauseResp.Message)

	return nil
}

type PlayYouTubeInput struct {
	VideoID          string  `json:"video_id" validate:"required"`
	TrackTimeSeconds float64 `json:"track_time_seconds" validate:"gte=0"`
}

func (c controller) handlePlayYouTube(ctx context.Context, conn *websocket.Conn, input PlayYouTubeInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	playResp, err := c.roomService.PlayYouTube(ctx, &room.PlayYouTubeParams{
		RoomID:           c.getRoomIDFromCtx(ctx),
		SenderID:         c.getClientIDFromCtx(ctx),
		VideoID:          input.VideoID,
		TrackTimeSeconds: input.TrackTimeSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to play youtube: %w", err)
	}

	c.broadcastScheduled(ctx, playResp.Conns, playResp.Message)

	return nil
}

func (c controller) handlePauseYouTube(ctx context.Context, conn *websocket.Conn, input EmptyInput) error {
	pauseResp, err := c.roomService.PauseYouTube(ctx, &room.PauseYouTubeParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to pause youtube: %w", err)
	}

	c.broadcastScheduled(ctx, pauseResp.Conns, pauseResp.Message)

	return nil
}

type SeekYouTubeInput struct {
	TrackTimeSeconds float64 `json:"track_time_seconds" validate:"gte=0"`
}

func (c controller) handleSeekYouTube(ctx context.Context, conn *websocket.Conn, input SeekYouTubeInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	seekResp, err := c.roomService.SeekYouTube(ctx, &room.SeekYouTubeParams{
		RoomID:           c.getRoomIDFromCtx(ctx),
		SenderID:         c.getClientIDFromCtx(ctx),
		TrackTimeSeconds: input.TrackTimeSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to seek youtube: %w", err)
	}

	c.broadcastScheduled(ctx, seekResp.Conns, seekResp.Message)

	return nil
}

// sources and selection

type AddAudioSourceInput struct {
	URL string `json:"url" validate:"required"`
}

func (c controller) handleAddAudioSource(ctx context.Context, conn *websocket.Conn, input AddAudioSourceInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	addResp, err := c.roomService.AddAudioSource(ctx, &room.AddAudioSourceParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		URL:      input.URL,
	})
	if err != nil {
		return fmt.Errorf("failed to add audio source: %w", err)
	}

	c.broadcastRoomEvent(ctx, addResp.Conns, protocol.EventSetAudioSources, protocol.SetAudioSourcesPayload{
		Sources: addResp.Sources,
	})

	return nil
}

type ReorderAudioSourcesInput struct {
	URLs []string `json:"urls" validate:"required,min=1"`
}

func (c controller) handleReorderAudioSources(ctx context.Context, conn *websocket.Conn, input ReorderAudioSourcesInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	reorderResp, err := c.roomService.ReorderAudioSources(ctx, &room.ReorderAudioSourcesParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		URLs:     input.URLs,
	})
	if err != nil {
		return fmt.Errorf("failed to reorder audio sources: %w", err)
	}

	c.broadcastRoomEvent(ctx, reorderResp.Conns, protocol.EventSetAudioSources, protocol.SetAudioSourcesPayload{
		Sources: reorderResp.Sources,
	})

	return nil
}

type AddYouTubeSourceInput struct {
	VideoID         string  `json:"video_id" validate:"required"`
	Title           string  `json:"title" validate:"required"`
	Thumbnail       string  `json:"thumbnail"`
	DurationSeconds float64 `json:"duration_seconds" validate:"gte=0"`
	Channel         string  `json:"channel"`
}

func (c controller) handleAddYouTubeSource(ctx context.Context, conn *websocket.Conn, input AddYouTubeSourceInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	addResp, err := c.roomService.AddYouTubeSource(ctx, &room.AddYouTubeSourceParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		Source: protocol.YouTubeSource{
			VideoID:         input.VideoID,
			Title:           input.Title,
			Thumbnail:       input.Thumbnail,
			DurationSeconds: input.DurationSeconds,
			Channel:         input.Channel,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add youtube source: %w", err)
	}

	c.broadcastRoomEvent(ctx, addResp.Conns, protocol.EventSetYouTubeSources, protocol.SetYouTubeSourcesPayload{
		Sources: addResp.Sources,
	})

	return nil
}

type RemoveYouTubeSourceInput struct {
	VideoID string `json:"video_id" validate:"required"`
}

func (c controller) handleRemoveYouTubeSource(ctx context.Context, conn *websocket.Conn, input RemoveYouTubeSourceInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	removeResp, err := c.roomService.RemoveYouTubeSource(ctx, &room.RemoveYouTubeSourceParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		VideoID:  input.VideoID,
	})
	if err != nil {
		return fmt.Errorf("failed to remove youtube source: %w", err)
	}

	c.broadcastRoomEvent(ctx, removeResp.Conns, protocol.EventSetYouTubeSources, protocol.SetYouTubeSourcesPayload{
		Sources: removeResp.Sources,
	})

	if removeResp.SelectionCleared {
		c.broadcastRoomEvent(ctx, removeResp.Conns, protocol.EventSelectedYouTubeChange, protocol.SelectedYouTubeChangePayload{})
	}

	return nil
}

type SetSelectedAudioInput struct {
	AudioURL string `json:"audio_url" validate:"required"`
}

func (c controller) handleSetSelectedAudio(ctx context.Context, conn *websocket.Conn, input SetSelectedAudioInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	selectResp, err := c.roomService.SetSelectedAudio(ctx, &room.SetSelectedAudioParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		AudioURL: input.AudioURL,
	})
	if err != nil {
		return fmt.Errorf("failed to set selected audio: %w", err)
	}

	c.broadcastRoomEvent(ctx, selectResp.Conns, protocol.EventSelectedAudioChange, protocol.SelectedAudioChangePayload{
		AudioURL: input.AudioURL,
	})

	return nil
}

type SetSelectedYouTubeInput struct {
	VideoID string `json:"video_id" validate:"required"`
}

func (c controller) handleSetSelectedYouTube(ctx context.Context, conn *websocket.Conn, input SetSelectedYouTubeInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	selectResp, err := c.roomService.SetSelectedYouTube(ctx, &room.SetSelectedYouTubeParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		VideoID:  input.VideoID,
	})
	if err != nil {
		return fmt.Errorf("failed to set selected youtube: %w", err)
	}

	c.broadcastRoomEvent(ctx, selectResp.Conns, protocol.EventSelectedYouTubeChange, protocol.SelectedYouTubeChangePayload{
		VideoID: input.VideoID,
	})

	return nil
}

type SetModeInput struct {
	Mode string `json:"mode" validate:"oneof=library youtube"`
}

func (c controller) handleSetMode(ctx context.Context, conn *websocket.Conn, input SetModeInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	modeResp, err := c.roomService.SetMode(ctx, &room.SetModeParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		Mode:     input.Mode,
	})
	if err != nil {
		return fmt.Errorf("failed to set mode: %w", err)
	}

	c.broadcastRoomEvent(ctx, modeResp.Conns, protocol.EventModeChange, protocol.ModeChangePayload{
		Mode: input.Mode,
	})

	return nil
}

// membership

type MoveClientInput struct {
	ClientID string        `json:"client_id"`
	Position positionInput `json:"position"`
}

func (c controller) handleMoveClient(ctx context.Context, conn *websocket.Conn, input MoveClientInput) error {
	senderID := c.getClientIDFromCtx(ctx)

	// no client_id means the sender moves itself
	clientID := input.ClientID
	if clientID == "" {
		clientID = senderID
	}

	moveResp, err := c.roomService.MoveClient(ctx, &room.MoveClientParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: senderID,
		ClientID: clientID,
		Position: input.Position.toPosition(),
	})
	if err != nil {
		return fmt.Errorf("failed to move client: %w", err)
	}

	c.broadcastRoomEvent(ctx, moveResp.Conns, protocol.EventClientChange, protocol.ClientChangePayload{
		Clients: moveResp.Clients,
	})
	c.broadcastScheduled(ctx, moveResp.Conns, moveResp.Spatial)

	return nil
}

type ReorderClientInput struct {
	ClientID string `json:"client_id" validate:"required"`
}

func (c controller) handleReorderClient(ctx context.Context, conn *websocket.Conn, input ReorderClientInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	reorderResp, err := c.roomService.ReorderClient(ctx, &room.ReorderClientParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		ClientID: input.ClientID,
	})
	if err != nil {
		return fmt.Errorf("failed to reorder client: %w", err)
	}

	c.broadcastRoomEvent(ctx, reorderResp.Conns, protocol.EventClientChange, protocol.ClientChangePayload{
		Clients: reorderResp.Clients,
	})

	return nil
}

type SetAdminInput struct {
	ClientID string `json:"client_id" validate:"required"`
	IsAdmin  bool   `json:"is_admin"`
}

func (c controller) handleSetAdmin(ctx context.Context, conn *websocket.Conn, input SetAdminInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	setAdminResp, err := c.roomService.SetAdmin(ctx, &room.SetAdminParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		ClientID: input.ClientID,
		IsAdmin:  input.IsAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to set admin: %w", err)
	}

	c.broadcastRoomEvent(ctx, setAdminResp.Conns, protocol.EventClientChange, protocol.ClientChangePayload{
		Clients: setAdminResp.Clients,
	})

	return nil
}

// spatial

func (c controller) handleStartSpatialAudio(ctx context.Context, conn *websocket.Conn, input EmptyInput) error {
	startResp, err := c.roomService.StartSpatialAudio(ctx, &room.StartSpatialAudioParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to start spatial audio: %w", err)
	}

	c.broadcastScheduled(ctx, startResp.Conns, startResp.Message)

	return nil
}

func (c controller) handleStopSpatialAudio(ctx context.Context, conn *websocket.Conn, input EmptyInput) error {
	stopResp, err := c.roomService.StopSpatialAudio(ctx, &room.StopSpatialAudioParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to stop spatial audio: %w", err)
	}

	c.broadcastScheduled(ctx, stopResp.Conns, stopResp.Message)

	return nil
}

type SetListeningSourceInput struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (c controller) handleSetListeningSource(ctx context.Context, conn *websocket.Conn, input SetListeningSourceInput) error {
	sourceResp, err := c.roomService.SetListeningSource(ctx, &room.SetListeningSourceParams{
		RoomID:   c.getRoomIDFromCtx(ctx),
		SenderID: c.getClientIDFromCtx(ctx),
		Position: spatial.Position{X: input.X, Y: input.Y},
	})
	if err != nil {
		return fmt.Errorf("failed to set listening source: %w", err)
	}

	c.broadcastScheduled(ctx, sourceResp.Conns, sourceResp.Message)

	return nil
}
