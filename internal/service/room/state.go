package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/repository/room"
)

// GetRoomState reconstructs the full authoritative view of a room for a
// late joiner or an explicit SYNC request.
func (s *service) GetRoomState(ctx context.Context, roomID string) (RoomState, error) {
	entry := s.lockRoom(roomID)
	defer entry.mu.Unlock()

	clients, err := s.getClients(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}
	if len(clients) == 0 {
		return RoomState{}, ErrRoomNotFound
	}

	return s.getRoomState(ctx, roomID, clients)
}

func (s *service) getRoomState(ctx context.Context, roomID string, clients []protocol.Client) (RoomState, error) {
	audioSources, err := s.getAudioSources(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}

	youtubeSources, err := s.getYouTubeSources(ctx, roomID)
	if err != nil {
		return RoomState{}, err
	}

	selectedAudio, err := s.getSelection(ctx, s.roomRepo.GetSelectedAudio, roomID)
	if err != nil {
		return RoomState{}, err
	}

	selectedYouTube, err := s.getSelection(ctx, s.roomRepo.GetSelectedYouTube, roomID)
	if err != nil {
		return RoomState{}, err
	}

	mode, err := s.getSelection(ctx, s.roomRepo.GetMode, roomID)
	if err != nil {
		return RoomState{}, err
	}

	state := RoomState{
		Clients:         clients,
		AudioSources:    audioSources,
		YouTubeSources:  youtubeSources,
		SelectedAudio:   selectedAudio,
		SelectedYouTube: selectedYouTube,
		Mode:            mode,
	}

	// no playback message when nothing has ever been selected
	if selectedAudio == "" && selectedYouTube == "" {
		return state, nil
	}

	playback, err := s.getExtrapolatedPlayback(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrPlaybackNeverSet) {
			return state, nil
		}
		return RoomState{}, err
	}

	playback.SelectedAudioID = selectedAudio
	playback.SelectedYTID = selectedYouTube
	state.Playback = &playback

	return state, nil
}

// getExtrapolatedPlayback answers "what time is it in the track right
// now": while playing, the stored position advances with wall time since
// the snapshot; when paused, the stored value is exact.
func (s *service) getExtrapolatedPlayback(ctx context.Context, roomID string) (protocol.PlaybackStatePayload, error) {
	playback, err := s.roomRepo.GetPlayback(ctx, roomID)
	if err != nil {
		return protocol.PlaybackStatePayload{}, fmt.Errorf("failed to get playback: %w", err)
	}

	currentTime := playback.CurrentTime
	if playback.IsPlaying {
		currentTime += float64(s.nowMs()-playback.UpdatedAt) / 1000
	}

	return protocol.PlaybackStatePayload{
		IsPlaying:   playback.IsPlaying,
		CurrentTime: currentTime,
		LastUpdated: playback.UpdatedAt,
	}, nil
}
