package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/syncroom/server/internal/repository/room"
)

func (r repo) clientKey(roomID, clientID string) string {
	return r.roomKey(roomID, "client:"+clientID)
}

func (r repo) clientListKey(roomID string) string {
	return r.roomKey(roomID, "clientlist")
}

func (r repo) SetClient(ctx context.Context, params *room.SetClientParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	client := room.Client{
		Username: params.Username,
		X:        params.X,
		Y:        params.Y,
	}

	clientKey := r.clientKey(params.RoomID, params.ClientID)
	pipe.HSet(ctx, clientKey, client)
	pipe.Expire(ctx, clientKey, r.roomTTL)

	clientListKey := r.clientListKey(params.RoomID)
	r.appendToList(ctx, pipe, clientListKey, params.ClientID)
	pipe.Expire(ctx, clientListKey, r.roomTTL)

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

func (r repo) GetClient(ctx context.Context, params *room.GetClientParams) (room.Client, error) {
	res := r.rc.HGetAll(ctx, r.clientKey(params.RoomID, params.ClientID))
	if err := res.Err(); err != nil {
		return room.Client{}, err
	}

	if len(res.Val()) == 0 {
		return room.Client{}, room.ErrClientNotFound
	}

	var client room.Client
	if err := res.Scan(&client); err != nil {
		return room.Client{}, err
	}

	return client, nil
}

// GetClientIDs returns client ids in list order, front first.
func (r repo) GetClientIDs(ctx context.Context, roomID string) ([]string, error) {
	return r.rc.ZRange(ctx, r.clientListKey(roomID), 0, -1).Result()
}

func (r repo) RemoveClient(ctx context.Context, params *room.RemoveClientParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.ZRem(ctx, r.clientListKey(params.RoomID), params.ClientID)
	pipe.Del(ctx, r.clientKey(params.RoomID, params.ClientID))

	if err := r.executePipe(ctx, pipe); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}

// MoveClientToFront reorders a client to the head of the room list.
func (r repo) MoveClientToFront(ctx context.Context, roomID, clientID string) error {
	if err := r.rc.ZScore(ctx, r.clientListKey(roomID), clientID).Err(); err != nil {
		if err == redis.Nil {
			return room.ErrClientNotFound
		}
		return err
	}

	return r.rc.EvalSha(ctx, r.minScoreScript, []string{r.clientListKey(roomID)}, clientID).Err()
}

func (r repo) UpdateClientPosition(ctx context.Context, params *room.UpdateClientPositionParams) error {
	clientKey := r.clientKey(params.RoomID, params.ClientID)

	exists, err := r.rc.Exists(ctx, clientKey).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return room.ErrClientNotFound
	}

	return r.rc.HSet(ctx, clientKey, "x", params.X, "y", params.Y).Err()
}

func (r repo) UpdateClientClockStats(ctx context.Context, params *room.UpdateClientClockStatsParams) error {
	clientKey := r.clientKey(params.RoomID, params.ClientID)

	exists, err := r.rc.Exists(ctx, clientKey).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return room.ErrClientNotFound
	}

	return r.rc.HSet(ctx, clientKey,
		"round_trip_ms", params.RoundTripMs,
		"last_clock_response_at", params.LastClockResponseAt,
	).Err()
}
