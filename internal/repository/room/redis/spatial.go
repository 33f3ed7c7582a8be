package redis

import (
	"context"
	"strconv"

	"github.com/syncroom/server/internal/repository/room"
)

func (r repo) listeningSourceKey(roomID string) string {
	return r.roomKey(roomID, "listening-source")
}

func (r repo) SetListeningSource(ctx context.Context, params *room.SetListeningSourceParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	listeningSourceKey := r.listeningSourceKey(params.RoomID)
	pipe.HSet(ctx, listeningSourceKey, "x", params.X, "y", params.Y)
	pipe.Expire(ctx, listeningSourceKey, r.roomTTL)

	return r.executePipe(ctx, pipe)
}

func (r repo) GetListeningSource(ctx context.Context, roomID string) (room.ListeningSource, error) {
	res := r.rc.HGetAll(ctx, r.listeningSourceKey(roomID))
	if err := res.Err(); err != nil {
		return room.ListeningSource{}, err
	}

	if len(res.Val()) == 0 {
		return room.ListeningSource{}, room.ErrSelectionNotSet
	}

	var source room.ListeningSource
	if err := res.Scan(&source); err != nil {
		return room.ListeningSource{}, err
	}

	return source, nil
}

func (r repo) SetSpatialActive(ctx context.Context, roomID string, active bool) error {
	return r.setStateField(ctx, roomID, "spatial_active", strconv.FormatBool(active))
}

func (r repo) IsSpatialActive(ctx context.Context, roomID string) (bool, error) {
	value, err := r.getStateField(ctx, roomID, "spatial_active")
	if err != nil {
		if err == room.ErrSelectionNotSet {
			return false, nil
		}
		return false, err
	}

	return strconv.ParseBool(value)
}
