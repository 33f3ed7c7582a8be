package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/syncroom/server/internal/repository/room"
)

func (r repo) playbackKey(roomID string) string {
	return r.roomKey(roomID, "playback")
}

func (r repo) stateKey(roomID string) string {
	return r.roomKey(roomID, "state")
}

func (r repo) SetPlayback(ctx context.Context, params *room.SetPlaybackParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	playback := room.Playback{
		IsPlaying:   params.IsPlaying,
		CurrentTime: params.CurrentTime,
		UpdatedAt:   params.UpdatedAt,
	}

	pipe := r.rc.TxPipeline()
	playbackKey := r.playbackKey(params.RoomID)
	pipe.HSet(ctx, playbackKey, playback)
	pipe.Expire(ctx, playbackKey, r.roomTTL)

	return r.executePipe(ctx, pipe)
}

func (r repo) GetPlayback(ctx context.Context, roomID string) (room.Playback, error) {
	res := r.rc.HGetAll(ctx, r.playbackKey(roomID))
	if err := res.Err(); err != nil {
		return room.Playback{}, err
	}

	if len(res.Val()) == 0 {
		return room.Playback{}, room.ErrPlaybackNeverSet
	}

	var playback room.Playback
	if err := res.Scan(&playback); err != nil {
		return room.Playback{}, err
	}

	return playback, nil
}

func (r repo) setStateField(ctx context.Context, roomID, field, value string) error {
	pipe := r.rc.TxPipeline()
	stateKey := r.stateKey(roomID)
	pipe.HSet(ctx, stateKey, field, value)
	pipe.Expire(ctx, stateKey, r.roomTTL)

	return r.executePipe(ctx, pipe)
}

func (r repo) getStateField(ctx context.Context, roomID, field string) (string, error) {
	value, err := r.rc.HGet(ctx, r.stateKey(roomID), field).Result()
	if err != nil {
		if err == redis.Nil {
			return "", room.ErrSelectionNotSet
		}
		return "", err
	}

	return value, nil
}

func (r repo) SetSelectedAudio(ctx context.Context, roomID, url string) error {
	return r.setStateField(ctx, roomID, "selected_audio", url)
}

func (r repo) GetSelectedAudio(ctx context.Context, roomID string) (string, error) {
	return r.getStateField(ctx, roomID, "selected_audio")
}

func (r repo) SetSelectedYouTube(ctx context.Context, roomID, videoID string) error {
	return r.setStateField(ctx, roomID, "selected_youtube", videoID)
}

func (r repo) GetSelectedYouTube(ctx context.Context, roomID string) (string, error) {
	return r.getStateField(ctx, roomID, "selected_youtube")
}

func (r repo) SetMode(ctx context.Context, roomID, mode string) error {
	return r.setStateField(ctx, roomID, "mode", mode)
}

func (r repo) GetMode(ctx context.Context, roomID string) (string, error) {
	return r.getStateField(ctx, roomID, "mode")
}

func (r repo) SetAdmin(ctx context.Context, roomID, clientID string) error {
	return r.setStateField(ctx, roomID, "admin", clientID)
}

func (r repo) GetAdmin(ctx context.Context, roomID string) (string, error) {
	return r.getStateField(ctx, roomID, "admin")
}
