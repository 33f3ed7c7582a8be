package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/repository/room"
	"github.com/syncroom/server/internal/spatial"
)

type JoinRoomParams struct {
	Conn     *websocket.Conn
	RoomID   string
	ClientID string
	Username string
}

type JoinRoomResponse struct {
	Clients []protocol.Client
	Conns   []*websocket.Conn
	State   RoomState
	Spatial *protocol.ScheduledActionMessage
}

// JoinRoom adds a client to a room, creating the room lazily on first
// join. A join during the cleanup grace period cancels the pending
// deletion.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	s.cancelCleanup(entry)

	clientIDs, err := s.roomRepo.GetClientIDs(ctx, params.RoomID)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get client ids: %w", err)
	}

	if len(clientIDs) >= s.cfg.MembersLimit {
		return JoinRoomResponse{}, ErrMembersLimitReached
	}

	center := s.engine.GridSize() / 2
	if err := s.roomRepo.SetClient(ctx, &room.SetClientParams{
		RoomID:   params.RoomID,
		ClientID: params.ClientID,
		Username: params.Username,
		X:        center,
		Y:        center,
	}); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to set client: %w", err)
	}

	// first joiner becomes the room admin
	if len(clientIDs) == 0 {
		if err := s.roomRepo.SetAdmin(ctx, params.RoomID, params.ClientID); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to set admin: %w", err)
		}
	}

	if err := s.connRepo.Add(params.Conn, params.RoomID, params.ClientID); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to register connection: %w", err)
	}

	clients, err := s.getClients(ctx, params.RoomID)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	state, err := s.getRoomState(ctx, params.RoomID, clients)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	spatialMsg, err := s.recomputeSpatial(ctx, params.RoomID, entry)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	return JoinRoomResponse{
		Clients: clients,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
		State:   state,
		Spatial: spatialMsg,
	}, nil
}

type DisconnectClientParams struct {
	RoomID   string
	ClientID string
}

type DisconnectClientResponse struct {
	Clients     []protocol.Client
	Conns       []*websocket.Conn
	IsRoomEmpty bool
	Spatial     *protocol.ScheduledActionMessage
}

// DisconnectClient removes a client. The room itself survives for the
// grace period so a reconnecting client finds its state intact.
func (s *service) DisconnectClient(ctx context.Context, params *DisconnectClientParams) (DisconnectClientResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if _, err := s.connRepo.RemoveByClientID(params.ClientID); err != nil {
		s.logger.DebugContext(ctx, "failed to remove connection", "error", err)
	}

	if err := s.roomRepo.RemoveClient(ctx, &room.RemoveClientParams{
		RoomID:   params.RoomID,
		ClientID: params.ClientID,
	}); err != nil {
		return DisconnectClientResponse{}, fmt.Errorf("failed to remove client: %w", err)
	}

	clientIDs, err := s.roomRepo.GetClientIDs(ctx, params.RoomID)
	if err != nil {
		return DisconnectClientResponse{}, fmt.Errorf("failed to get client ids: %w", err)
	}

	if len(clientIDs) == 0 {
		s.scheduleCleanup(params.RoomID, entry)
		return DisconnectClientResponse{IsRoomEmpty: true}, nil
	}

	// admin handoff to the front-of-list client
	admin, err := s.getSelection(ctx, s.roomRepo.GetAdmin, params.RoomID)
	if err != nil {
		return DisconnectClientResponse{}, err
	}
	if admin == params.ClientID {
		if err := s.roomRepo.SetAdmin(ctx, params.RoomID, clientIDs[0]); err != nil {
			return DisconnectClientResponse{}, fmt.Errorf("failed to hand off admin: %w", err)
		}
	}

	clients, err := s.getClients(ctx, params.RoomID)
	if err != nil {
		return DisconnectClientResponse{}, err
	}

	spatialMsg, err := s.recomputeSpatial(ctx, params.RoomID, entry)
	if err != nil {
		return DisconnectClientResponse{}, err
	}

	return DisconnectClientResponse{
		Clients: clients,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
		Spatial: spatialMsg,
	}, nil
}

type MoveClientParams struct {
	RoomID   string
	SenderID string
	ClientID string
	Position spatial.Position
}

type MoveClientResponse struct {
	Clients []protocol.Client
	Conns   []*websocket.Conn
	Spatial *protocol.ScheduledActionMessage
}

// MoveClient repositions a client on the grid. Moving another client
// requires admin. Repositioning triggers spatial-gain recomputation.
func (s *service) MoveClient(ctx context.Context, params *MoveClientParams) (MoveClientResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if params.SenderID == params.ClientID {
		if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
			return MoveClientResponse{}, err
		}
	} else {
		if err := s.requireAdmin(ctx, params.RoomID, params.SenderID); err != nil {
			return MoveClientResponse{}, err
		}
	}

	pos := s.engine.ClampPosition(params.Position)
	if err := s.roomRepo.UpdateClientPosition(ctx, &room.UpdateClientPositionParams{
		RoomID:   params.RoomID,
		ClientID: params.ClientID,
		X:        pos.X,
		Y:        pos.Y,
	}); err != nil {
		if errors.Is(err, room.ErrClientNotFound) {
			return MoveClientResponse{}, ErrClientNotFound
		}
		return MoveClientResponse{}, fmt.Errorf("failed to update client position: %w", err)
	}

	clients, err := s.getClients(ctx, params.RoomID)
	if err != nil {
		return MoveClientResponse{}, err
	}

	spatialMsg, err := s.recomputeSpatial(ctx, params.RoomID, entry)
	if err != nil {
		return MoveClientResponse{}, err
	}

	return MoveClientResponse{
		Clients: clients,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
		Spatial: spatialMsg,
	}, nil
}

type ReorderClientParams struct {
	RoomID   string
	SenderID string
	ClientID string
}

type ReorderClientResponse struct {
	Clients []protocol.Client
	Conns   []*websocket.Conn
}

// ReorderClient moves a client to the front of the membership list.
// Order is the only thing that changes: no playback or selection state is
// touched.
func (s *service) ReorderClient(ctx context.Context, params *ReorderClientParams) (ReorderClientResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if params.SenderID == params.ClientID {
		if err := s.requireMember(ctx, params.RoomID, params.SenderID); err != nil {
			return ReorderClientResponse{}, err
		}
	} else {
		if err := s.requireAdmin(ctx, params.RoomID, params.SenderID); err != nil {
			return ReorderClientResponse{}, err
		}
	}

	if err := s.roomRepo.MoveClientToFront(ctx, params.RoomID, params.ClientID); err != nil {
		if errors.Is(err, room.ErrClientNotFound) {
			return ReorderClientResponse{}, ErrClientNotFound
		}
		return ReorderClientResponse{}, fmt.Errorf("failed to move client to front: %w", err)
	}

	clients, err := s.getClients(ctx, params.RoomID)
	if err != nil {
		return ReorderClientResponse{}, err
	}

	return ReorderClientResponse{
		Clients: clients,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type SetAdminParams struct {
	RoomID   string
	SenderID string
	ClientID string
	IsAdmin  bool
}

type SetAdminResponse struct {
	Clients []protocol.Client
	Conns   []*websocket.Conn
}

// SetAdmin designates or clears the room admin. Admin only.
func (s *service) SetAdmin(ctx context.Context, params *SetAdminParams) (SetAdminResponse, error) {
	entry := s.lockRoom(params.RoomID)
	defer entry.mu.Unlock()

	if err := s.requireAdmin(ctx, params.RoomID, params.SenderID); err != nil {
		return SetAdminResponse{}, err
	}

	if err := s.requireMember(ctx, params.RoomID, params.ClientID); err != nil {
		return SetAdminResponse{}, ErrClientNotFound
	}

	admin := params.ClientID
	if !params.IsAdmin {
		current, err := s.getSelection(ctx, s.roomRepo.GetAdmin, params.RoomID)
		if err != nil {
			return SetAdminResponse{}, err
		}
		if current != params.ClientID {
			// demoting a non-admin is a no-op
			admin = current
		} else {
			admin = params.SenderID
		}
	}

	if err := s.roomRepo.SetAdmin(ctx, params.RoomID, admin); err != nil {
		return SetAdminResponse{}, fmt.Errorf("failed to set admin: %w", err)
	}

	clients, err := s.getClients(ctx, params.RoomID)
	if err != nil {
		return SetAdminResponse{}, err
	}

	return SetAdminResponse{
		Clients: clients,
		Conns:   s.connRepo.GetRoomConns(params.RoomID),
	}, nil
}

type RecordClockStatsParams struct {
	RoomID      string
	ClientID    string
	RoundTripMs float64
	RespondedAt int64
}

// RecordClockStats stores network-quality metrics reported through the
// clock-sync exchange. Best effort: a request arriving before the room or
// client exists is not an error, clock sync must not depend on room
// lifecycle.
func (s *service) RecordClockStats(ctx context.Context, params *RecordClockStatsParams) {
	err := s.roomRepo.UpdateClientClockStats(ctx, &room.UpdateClientClockStatsParams{
		RoomID:              params.RoomID,
		ClientID:            params.ClientID,
		RoundTripMs:         params.RoundTripMs,
		LastClockResponseAt: params.RespondedAt,
	})
	if err != nil && !errors.Is(err, room.ErrClientNotFound) {
		s.logger.DebugContext(ctx, "failed to record clock stats", "error", err)
	}
}
