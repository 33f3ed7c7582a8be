package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/pkg/wsrouter"
)

// typed adapts a handler with a concrete input struct to the raw-payload
// handler shape the router dispatches on.
func typed[T any](fn func(context.Context, *websocket.Conn, T) error) wsrouter.HandlerFunc {
	return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var input T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &input); err != nil {
				return fmt.Errorf("malformed payload: %w", ErrValidationError)
			}
		}

		return fn(ctx, conn, input)
	}
}

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New(c.onWSError)

	// clock
	mux.Handle(protocol.TypeNTPRequest, typed(c.handleNTPRequest))
	mux.Handle(protocol.TypeSync, typed(c.handleSync))

	// playback
	mux.Handle(protocol.TypePlay, typed(c.handlePlay))
	mux.Handle(protocol.TypePause, typed(c.handlePause))
	mux.Handle(protocol.TypePlayYouTube, typed(c.handlePlayYouTube))
	mux.Handle(protocol.TypePauseYouTube, typed(c.handlePauseYouTube))
	mux.Handle(protocol.TypeSeekYouTube, typed(c.handleSeekYouTube))

	// sources
	mux.Handle(protocol.TypeAddAudioSource, typed(c.handleAddAudioSource))
	mux.Handle(protocol.TypeReorderAudioSources, typed(c.handleReorderAudioSources))
	mux.Handle(protocol.TypeAddYouTubeSource, typed(c.handleAddYouTubeSource))
	mux.Handle(protocol.TypeRemoveYouTubeSource, typed(c.handleRemoveYouTubeSource))
	mux.Handle(protocol.TypeSetSelectedAudio, typed(c.handleSetSelectedAudio))
	mux.Handle(protocol.TypeSetSelectedYouTube, typed(c.handleSetSelectedYouTube))
	mux.Handle(protocol.TypeSetMode, typed(c.handleSetMode))

	// membership
	mux.Handle(protocol.TypeMoveClient, typed(c.handleMoveClient))
	mux.Handle(protocol.TypeReorderClient, typed(c.handleReorderClient))
	mux.Handle(protocol.TypeSetAdmin, typed(c.handleSetAdmin))

	// spatial
	mux.Handle(protocol.TypeStartSpatialAudio, typed(c.handleStartSpatialAudio))
	mux.Handle(protocol.TypeStopSpatialAudio, typed(c.handleStopSpatialAudio))
	mux.Handle(protocol.TypeSetListeningSource, typed(c.handleSetListeningSource))

	return mux
}
