package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/repository/room"
	"golang.org/x/exp/slices"
)

// ScheduledActionResponse is returned by every transport mutation: the
// stamped action for the controller to broadcast, plus the room's
// subscribers.
type ScheduledActionResponse struct {
	Message *protocol.ScheduledActionMessage
	Conns   []*websocket.Conn
}

func (s *service) setPlayback(ctx context.Context, roomID string, isPlaying bool, currentTime float64) error {
	if err := s.roomRepo.SetPlayback(ctx, &room.SetPlaybackParams{
		RoomID:      roomID,
		IsPlaying:   isPlaying,
		CurrentTime: currentTime,
		UpdatedAt:   s.nowMs(),
	}); err != nil {
		return fmt.Errorf("failed to set playback: %w", err)
	}

	return nil
}

type PlayParams struct {
	RoomID           string
	SenderID         string
	AudioSource      string
	TrackTimeSeconds float64
}

// Play selects an audio source and schedules a coordinated start.
func (s *service) Play(ctx context.Context, params *PlayParams) (ScheduledActionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return ScheduledActionResponse{}, err
	}

	urls, err := s.roomRepo.GetAudioSources(ctx, params.RoomID)
	if err != nil {
		return ScheduledActionResponse{}, fmt.Errorf("failed to get audio sources: %w", err)
	}
	if !slices.Contains(urls, params.AudioSource) {
		return ScheduledActionResponse{}, ErrSourceNotFound
	}

	if err := s.roomRepo.SetSelectedAudio(ctx, params.RoomID, params.AudioSource); err != nil {
		return ScheduledActionResponse{}, fmt.Errorf("failed to set selected audio: %w", err)
	}

	if err := s.setPlayback(ctx, params.RoomID, true, params.TrackTimeSeconds); err != nil {
		return ScheduledActionResponse{}, err
	}

	executeAt := s.stampExecuteAt(entry)

	return ScheduledActionResponse{
		Message: scheduledMessage(protocol.ActionPlay, protocol.PlayPayload{
			TrackTimeSeconds: params.TrackTimeSeconds,
			AudioSource:      params.AudioSource,
		}, executeAt),
		Conns: s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type PauseParams struct {
	RoomID           string
	SenderID         string
	TrackTimeSeconds float64
}

// Pause schedules a coordinated stop at the given track position.
func (s *service) Pause(ctx context.Context, params *PauseParams) (ScheduledActionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return ScheduledActionResponse{}, err
	}

	if err := s.setPlayback(ctx, params.RoomID, false, params.TrackTimeSeconds); err != nil {
		return ScheduledActionResponse{}, err
	}

	executeAt := s.stampExecuteAt(entry)

	return ScheduledActionResponse{
		Message: scheduledMessage(protocol.ActionPause, protocol.PausePayload{
			TrackTimeSeconds: params.TrackTimeSeconds,
		}, executeAt),
		Conns: s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type PlayYouTubeParams struct {
	RoomID           string
	SenderID         string
	VideoID          string
	TrackTimeSeconds float64
}

func (s *service) PlayYouTube(ctx context.Context, params *PlayYouTubeParams) (ScheduledActionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return ScheduledActionResponse{}, err
	}

	if _, err := s.roomRepo.GetYouTubeSource(ctx, params.RoomID, params.VideoID); err != nil {
		if errors.Is(err, room.ErrSourceNotFound) {
			return ScheduledActionResponse{}, ErrSourceNotFound
		}
		return ScheduledActionResponse{}, fmt.Errorf("failed to get youtube source: %w", err)
	}

	if err := s.roomRepo.SetSelectedYouTube(ctx, params.RoomID, params.VideoID); err != nil {
		return ScheduledActionResponse{}, fmt.Errorf("failed to set selected youtube: %w", err)
	}

	if err := s.setPlayback(ctx, params.RoomID, true, params.TrackTimeSeconds); err != nil {
		return ScheduledActionResponse{}, err
	}

	executeAt := s.stampExecuteAt(entry)

	return ScheduledActionResponse{
		Message: scheduledMessage(protocol.ActionPlayYouTube, protocol.PlayYouTubePayload{
			VideoID:          params.VideoID,
			TrackTimeSeconds: params.TrackTimeSeconds,
		}, executeAt),
		Conns: s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type PauseYouTubeParams struct {
	RoomID   string
	SenderID string
}

// PauseYouTube freezes playback at the extrapolated current position.
func (s *service) PauseYouTube(ctx context.Context, params *PauseYouTubeParams) (ScheduledActionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return ScheduledActionResponse{}, err
	}

	// pausing before anything ever played freezes at zero
	playback, err := s.getExtrapolatedPlayback(ctx, params.RoomID)
	if err != nil && !errors.Is(err, room.ErrPlaybackNeverSet) {
		return ScheduledActionResponse{}, err
	}

	if err := s.setPlayback(ctx, params.RoomID, false, playback.CurrentTime); err != nil {
		return ScheduledActionResponse{}, err
	}

	executeAt := s.stampExecuteAt(entry)

	return ScheduledActionResponse{
		Message: scheduledMessage(protocol.ActionPauseYouTube, nil, executeAt),
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type SeekYouTubeParams struct {
	RoomID           string
	SenderID         string
	TrackTimeSeconds float64
}

func (s *service) SeekYouTube(ctx context.Context, params *SeekYouTubeParams) (ScheduledActionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return ScheduledActionResponse{}, err
	}

	playback, err := s.roomRepo.GetPlayback(ctx, params.RoomID)
	if err != nil && !errors.Is(err, room.ErrPlaybackNeverSet) {
		return ScheduledActionResponse{}, fmt.Errorf("failed to get playback: %w", err)
	}

	if err := s.setPlayback(ctx, params.RoomID, playback.IsPlaying, params.TrackTimeSeconds); err != nil {
		return ScheduledActionResponse{}, err
	}

	executeAt := s.stampExecuteAt(entry)

	return ScheduledActionResponse{
		Message: scheduledMessage(protocol.ActionSeekYouTube, protocol.SeekYouTubePayload{
			TrackTimeSeconds: params.TrackTimeSeconds,
		}, executeAt),
		Conns: s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}
