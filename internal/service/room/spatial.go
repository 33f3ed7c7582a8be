package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/repository/room"
	"github.com/syncroom/server/internal/spatial"
)

// recomputeSpatial rebuilds per-client gains from the current positions
// and returns the SPATIAL_CONFIG broadcast, or nil while spatial mode is
// inactive. Gains are never cached across position mutations: every
// trigger recomputes from the authoritative positions. Must hold the room
// lock.
func (s *service) recomputeSpatial(ctx context.Context, roomID string, entry *roomEntry) (*protocol.ScheduledActionMessage, error) {
	active, err := s.roomRepo.IsSpatialActive(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spatial state: %w", err)
	}
	if !active {
		return nil, nil
	}

	return s.buildSpatialConfig(ctx, roomID, entry)
}

func (s *service) buildSpatialConfig(ctx context.Context, roomID string, entry *roomEntry) (*protocol.ScheduledActionMessage, error) {
	source, err := s.roomRepo.GetListeningSource(ctx, roomID)
	if err != nil {
		if !errors.Is(err, room.ErrSelectionNotSet) {
			return nil, fmt.Errorf("failed to get listening source: %w", err)
		}
		// default to the grid center until the source is explicitly moved
		center := s.engine.GridSize() / 2
		source = room.ListeningSource{X: center, Y: center}
	}

	clientIDs, err := s.roomRepo.GetClientIDs(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client ids: %w", err)
	}

	positions := make(map[string]spatial.Position, len(clientIDs))
	for _, clientID := range clientIDs {
		client, err := s.roomRepo.GetClient(ctx, &room.GetClientParams{RoomID: roomID, ClientID: clientID})
		if err != nil {
			return nil, fmt.Errorf("failed to get client: %w", err)
		}
		positions[clientID] = spatial.Position{X: client.X, Y: client.Y}
	}

	gains := s.engine.ComputeGains(positions, spatial.Position{X: source.X, Y: source.Y})

	return scheduledMessage(protocol.ActionSpatialConfig, protocol.SpatialConfigPayload{
		Gains:           gains,
		ListeningSource: spatial.Position{X: source.X, Y: source.Y},
	}, s.stampImmediate(entry)), nil
}

type StartSpatialAudioParams struct {
	RoomID   string
	SenderID string
}

func (s *service) StartSpatialAudio(ctx context.Context, params *StartSpatialAudioParams) (ScheduledActionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return ScheduledActionResponse{}, err
	}

	if err := s.roomRepo.SetSpatialActive(ctx, params.RoomID, true); err != nil {
		return ScheduledActionResponse{}, fmt.Errorf("failed to set spatial active: %w", err)
	}

	msg, err := s.buildSpatialConfig(ctx, params.RoomID, entry)
	if err != nil {
		return ScheduledActionResponse{}, err
	}

	return ScheduledActionResponse{
		Message: msg,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type StopSpatialAudioParams struct {
	RoomID   string
	SenderID string
}

// StopSpatialAudio broadcasts an immediate reset: every client cancels
// in-flight gain ramps and returns to gain 1.0.
func (s *service) StopSpatialAudio(ctx context.Context, params *StopSpatialAudioParams) (ScheduledActionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return ScheduledActionResponse{}, err
	}

	if err := s.roomRepo.SetSpatialActive(ctx, params.RoomID, false); err != nil {
		return ScheduledActionResponse{}, fmt.Errorf("failed to set spatial active: %w", err)
	}

	return ScheduledActionResponse{
		Message: scheduledMessage(protocol.ActionStopSpatialAudio, nil, s.stampImmediate(entry)),
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type SetListeningSourceParams struct {
	RoomID   string
	SenderID string
	Position spatial.Position
}

// SetListeningSource moves the virtual listening point and, while spatial
// mode is active, recomputes and broadcasts the gains.
func (s *service) SetListeningSource(ctx context.Context, params *SetListeningSourceParams) (ScheduledActionResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
		return ScheduledActionResponse{}, err
	}

	pos := s.engine.ClampPosition(params.Position)
	if err := s.roomRepo.SetListeningSource(ctx, &room.SetListeningSourceParams{
		RoomID: params.RoomID,
		X:      pos.X,
		Y:      pos.Y,
	}); err != nil {
		return ScheduledActionResponse{}, fmt.Errorf("failed to set listening source: %w", err)
	}

	msg, err := s.recomputeSpatial(ctx, params.RoomID, entry)
	if err != nil {
		return ScheduledActionResponse{}, err
	}

	return ScheduledActionResponse{
		Message: msg,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}
