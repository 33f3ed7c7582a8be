package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/repository/room"
	"github.com/syncroom/server/internal/spatial"
)

func (s *service) getClients(ctx context.Context, roomID string) ([]protocol.Client, error) {
	clientIDs, err := s.roomRepo.GetClientIDs(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client ids: %w", err)
	}

	admin, err := s.roomRepo.GetAdmin(ctx, roomID)
	if err != nil && !errors.Is(err, room.ErrSelectionNotSet) {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}

	clients := make([]protocol.Client, 0, len(clientIDs))
	for _, clientID := range clientIDs {
		client, err := s.roomRepo.GetClient(ctx, &room.GetClientParams{RoomID: roomID, ClientID: clientID})
		if err != nil {
			return nil, fmt.Errorf("failed to get client: %w", err)
		}

		clients = append(clients, protocol.Client{
			ClientID:            clientID,
			Username:            client.Username,
			Position:            spatial.Position{X: client.X, Y: client.Y},
			RoundTripMs:         client.RoundTripMs,
			LastClockResponseAt: client.LastClockResponseAt,
			IsAdmin:             clientID == admin,
		})
	}

	return clients, nil
}

func (s *service) getAudioSources(ctx context.Context, roomID string) ([]protocol.AudioSource, error) {
	urls, err := s.roomRepo.GetAudioSources(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio sources: %w", err)
	}

	sources := make([]protocol.AudioSource, 0, len(urls))
	for _, url := range urls {
		sources = append(sources, protocol.AudioSource{URL: url})
	}

	return sources, nil
}

func (s *service) getYouTubeSources(ctx context.Context, roomID string) ([]protocol.YouTubeSource, error) {
	videoIDs, err := s.roomRepo.GetYouTubeSourceIDs(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get youtube source ids: %w", err)
	}

	sources := make([]protocol.YouTubeSource, 0, len(videoIDs))
	for _, videoID := range videoIDs {
		source, err := s.roomRepo.GetYouTubeSource(ctx, roomID, videoID)
		if err != nil {
			return nil, fmt.Errorf("failed to get youtube source: %w", err)
		}

		sources = append(sources, protocol.YouTubeSource{
			VideoID:         source.VideoID,
			Title:           source.Title,
			Thumbnail:       source.Thumbnail,
			DurationSeconds: source.DurationSeconds,
			Channel:         source.Channel,
			AddedAt:         source.AddedAt,
			AddedBy:         source.AddedBy,
		})
	}

	return sources, nil
}

// getSelection reads an optional selection, mapping never-set and cleared
// to the empty string.
func (s *service) getSelection(ctx context.Context, get func(context.Context, string) (string, error), roomID string) (string, error) {
	value, err := get(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrSelectionNotSet) {
			return "", nil
		}
		return "", err
	}

	return value, nil
}
