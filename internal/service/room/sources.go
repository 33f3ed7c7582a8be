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

type AddAudioSourceParams struct {
	RoomID   string
	SenderID string
	URL      string
}

type AudioSourcesResponse struct {
	Sources []protocol.AudioSource
	Conns   []*websocket.Conn
}

func (s *service) AddAudioSource(ctx context.Context, params *AddAudioSourceParams) (AudioSourcesResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return AudioSourcesResponse{}, err
	}

	urls, err := s.roomRepo.GetAudioSources(ctx, params.RoomID)
	if err != nil {
		return AudioSourcesResponse{}, fmt.Errorf("failed to get audio sources: %w", err)
	}
	if len(urls) >= s.cfg.PlaylistLimit {
		return AudioSourcesResponse{}, ErrPlaylistLimitReached
	}

	// adding a duplicate is a no-op, the list is rebroadcast as-is
	if err := s.roomRepo.AddAudioSource(ctx, params.RoomID, params.URL); err != nil && !errors.Is(err, room.ErrSourceAlreadyExists) {
		return AudioSourcesResponse{}, fmt.Errorf("failed to add audio source: %w", err)
	}

	sources, err := s.getAudioSources(ctx, params.RoomID)
	if err != nil {
		return AudioSourcesResponse{}, err
	}

	return AudioSourcesResponse{
		Sources: sources,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type ReorderAudioSourcesParams struct {
	RoomID   string
	SenderID string
	URLs     []string
}

// ReorderAudioSources replaces the audio list order. The new order must be
// a permutation of the current list.
func (s *service) ReorderAudioSources(ctx context.Context, params *ReorderAudioSourcesParams) (AudioSourcesResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return AudioSourcesResponse{}, err
	}

	current, err := s.roomRepo.GetAudioSources(ctx, params.RoomID)
	if err != nil {
		return AudioSourcesResponse{}, fmt.Errorf("failed to get audio sources: %w", err)
	}

	if len(current) != len(params.URLs) {
		return AudioSourcesResponse{}, ErrInvalidReorder
	}
	sortedCurrent := slices.Clone(current)
	sortedNext := slices.Clone(params.URLs)
	slices.Sort(sortedCurrent)
	slices.Sort(sortedNext)
	if !slices.Equal(sortedCurrent, sortedNext) {
		return AudioSourcesResponse{}, ErrInvalidReorder
	}

	if err := s.roomRepo.SetAudioSources(ctx, params.RoomID, params.URLs); err != nil {
		return AudioSourcesResponse{}, fmt.Errorf("failed to set audio sources: %w", err)
	}

	sources, err := s.getAudioSources(ctx, params.RoomID)
	if err != nil {
		return AudioSourcesResponse{}, err
	}

	return AudioSourcesResponse{
		Sources: sources,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type AddYouTubeSourceParams struct {
	RoomID   string
	SenderID string
	Source   protocol.YouTubeSource
}

type YouTubeSourcesResponse struct {
	Sources []protocol.YouTubeSource
	// SelectionCleared is set when removing the selected source cleared
	// the selection.
	SelectionCleared bool
	Conns            []*websocket.Conn
}

func (s *service) AddYouTubeSource(ctx context.Context, params *AddYouTubeSourceParams) (YouTubeSourcesResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return YouTubeSourcesResponse{}, err
	}

	videoIDs, err := s.roomRepo.GetYouTubeSourceIDs(ctx, params.RoomID)
	if err != nil {
		return YouTubeSourcesResponse{}, fmt.Errorf("failed to get youtube source ids: %w", err)
	}
	if len(videoIDs) >= s.cfg.PlaylistLimit {
		return YouTubeSourcesResponse{}, ErrPlaylistLimitReached
	}

	if err := s.roomRepo.AddYouTubeSource(ctx, &room.AddYouTubeSourceParams{
		RoomID: params.RoomID,
		Source: room.YouTubeSource{
			VideoID:         params.Source.VideoID,
			Title:           params.Source.Title,
			Thumbnail:       params.Source.Thumbnail,
			DurationSeconds: params.Source.DurationSeconds,
			Channel:         params.Source.Channel,
			AddedAt:         s.nowMs(),
			AddedBy:         params.SenderID,
		},
	}); err != nil {
		if !errors.Is(err, room.ErrSourceAlreadyExists) {
			return YouTubeSourcesResponse{}, fmt.Errorf("failed to add youtube source: %w", err)
		}
	}

	sources, err := s.getYouTubeSources(ctx, params.RoomID)
	if err != nil {
		return YouTubeSourcesResponse{}, err
	}

	return YouTubeSourcesResponse{
		Sources: sources,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type RemoveYouTubeSourceParams struct {
	RoomID   string
	SenderID string
	VideoID  string
}

// RemoveYouTubeSource removes a source. Removing the selected source
// clears the selection; the remaining order is untouched.
func (s *service) RemoveYouTubeSource(ctx context.Context, params *RemoveYouTubeSourceParams) (YouTubeSourcesResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return YouTubeSourcesResponse{}, err
	}

	if err := s.roomRepo.RemoveYouTubeSource(ctx, &room.RemoveYouTubeSourceParams{
		RoomID:  params.RoomID,
		VideoID: params.VideoID,
	}); err != nil {
		if errors.Is(err, room.ErrSourceNotFound) {
			return YouTubeSourcesResponse{}, ErrSourceNotFound
		}
		return YouTubeSourcesResponse{}, fmt.Errorf("failed to remove youtube source: %w", err)
	}

	selectionCleared := false
	selected, err := s.getSelection(ctx, s.roomRepo.GetSelectedYouTube, params.RoomID)
	if err != nil {
		return YouTubeSourcesResponse{}, err
	}
	if selected == params.VideoID {
		if err := s.roomRepo.SetSelectedYouTube(ctx, params.RoomID, ""); err != nil {
			return YouTubeSourcesResponse{}, fmt.Errorf("failed to clear selected youtube: %w", err)
		}
		selectionCleared = true
	}

	sources, err := s.getYouTubeSources(ctx, params.RoomID)
	if err != nil {
		return YouTubeSourcesResponse{}, err
	}

	return YouTubeSourcesResponse{
		Sources:          sources,
		SelectionCleared: selectionCleared,
		Conns:            s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type SetSelectedAudioParams struct {
	RoomID   string
	SenderID string
	AudioURL string
}

type SelectionResponse struct {
	Conns []*websocket.Conn
}

func (s *service) SetSelectedAudio(ctx context.Context, params *SetSelectedAudioParams) (SelectionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return SelectionResponse{}, err
	}

	urls, err := s.roomRepo.GetAudioSources(ctx, params.RoomID)
	if err != nil {
		return SelectionResponse{}, fmt.Errorf("failed to get audio sources: %w", err)
	}
	if !slices.Contains(urls, params.AudioURL) {
		return SelectionResponse{}, ErrSourceNotFound
	}

	if err := s.roomRepo.SetSelectedAudio(ctx, params.RoomID, params.AudioURL); err != nil {
		return SelectionResponse{}, fmt.Errorf("failed to set selected audio: %w", err)
	}

	return SelectionResponse{Conns: s.connRepo.GetRoomConns(params.RoomID)}, nil
}

type SetSelectedYouTubeParams struct {
	RoomID   string
	SenderID string
	VideoID  string
}

func (s *service) SetSelectedYouTube(ctx context.Context, params *SetSelectedYouTubeParams) (SelectionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return SelectionResponse{}, err
	}

	if _, err := s.roomRepo.GetYouTubeSource(ctx, params.RoomID, params.VideoID); err != nil {
		if errors.Is(err, room.ErrSourceNotFound) {
			return SelectionResponse{}, ErrSourceNotFound
		}
		return SelectionResponse{}, fmt.Errorf("failed to get youtube source: %w", err)
	}

	if err := s.roomRepo.SetSelectedYouTube(ctx, params.RoomID, params.VideoID); err != nil {
		return SelectionResponse{}, fmt.Errorf("failed to set selected youtube: %w", err)
	}

	return SelectionResponse{Conns: s.connRepo.GetRoomConns(params.RoomID)}, nil
}

type SetModeParams struct {
	RoomID   string
	SenderID string
	Mode     string
}

func (s *service) SetMode(ctx context.Context, params *SetModeParams) (SelectionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return SelectionResponse{}, err
	}

	if err := s.roomRepo.SetMode(ctx, params.RoomID, params.Mode); err != nil {
		return SelectionResponse{}, fmt.Errorf("failed to set mode: %w", err)
	}

	return SelectionResponse{Conns: s.connRepo.GetRoomConns(params.RoomID)}, nil
}
