package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/syncroom/server/internal/repository/room"
)

func (r repo) audioListKey(roomID string) string {
	return r.roomKey(roomID, "audiolist")
}

func (r repo) youtubeListKey(roomID string) string {
	return r.roomKey(roomID, "ytlist")
}

func (r repo) youtubeSourceKey(roomID, videoID string) string {
	return r.roomKey(roomID, "ytsource:"+videoID)
}

func (r repo) AddAudioSource(ctx context.Context, roomID, url string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomID, "url", url)
	audioListKey := r.audioListKey(roomID)

	err := r.rc.ZScore(ctx, audioListKey, url).Err()
	if err == nil {
		return room.ErrSourceAlreadyExists
	}
	if err != redis.Nil {
		return err
	}

	pipe := r.rc.TxPipeline()
	r.appendToList(ctx, pipe, audioListKey, url)
	pipe.Expire(ctx, audioListKey, r.roomTTL)

	return r.executePipe(ctx, pipe)
}

// GetAudioSources returns audio source urls in list order.
func (r repo) GetAudioSources(ctx context.Context, roomID string) ([]string, error) {
	return r.rc.ZRange(ctx, r.audioListKey(roomID), 0, -1).Result()
}

// SetAudioSources replaces the audio source list with the given order.
func (r repo) SetAudioSources(ctx context.Context, roomID string, urls []string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomID, "urls", urls)
	audioListKey := r.audioListKey(roomID)

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, audioListKey)
	for i, url := range urls {
		pipe.ZAdd(ctx, audioListKey, redis.Z{Score: float64(i), Member: url})
	}
	pipe.Expire(ctx, audioListKey, r.roomTTL)

	return r.executePipe(ctx, pipe)
}

func (r repo) AddYouTubeSource(ctx context.Context, params *room.AddYouTubeSourceParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	sourceKey := r.youtubeSourceKey(params.RoomID, params.Source.VideoID)

	exists, err := r.rc.Exists(ctx, sourceKey).Result()
	if err != nil {
		return err
	}
	if exists != 0 {
		return room.ErrSourceAlreadyExists
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, sourceKey, params.Source)
	pipe.Expire(ctx, sourceKey, r.roomTTL)

	youtubeListKey := r.youtubeListKey(params.RoomID)
	r.appendToList(ctx, pipe, youtubeListKey, params.Source.VideoID)
	pipe.Expire(ctx, youtubeListKey, r.roomTTL)

	return r.executePipe(ctx, pipe)
}

func (r repo) RemoveYouTubeSource(ctx context.Context, params *room.RemoveYouTubeSourceParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	removed, err := r.rc.ZRem(ctx, r.youtubeListKey(params.RoomID), params.VideoID).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return room.ErrSourceNotFound
	}

	return r.rc.Del(ctx, r.youtubeSourceKey(params.RoomID, params.VideoID)).Err()
}

func (r repo) GetYouTubeSource(ctx context.Context, roomID, videoID string) (room.YouTubeSource, error) {
	res := r.rc.HGetAll(ctx, r.youtubeSourceKey(roomID, videoID))
	if err := res.Err(); err != nil {
		return room.YouTubeSource{}, err
	}

	if len(res.Val()) == 0 {
		return room.YouTubeSource{}, room.ErrSourceNotFound
	}

	var source room.YouTubeSource
	if err := res.Scan(&source); err != nil {
		return room.YouTubeSource{}, err
	}

	return source, nil
}

// GetYouTubeSourceIDs returns video ids in list order.
func (r repo) GetYouTubeSourceIDs(ctx context.Context, roomID string) ([]string, error) {
	return r.rc.ZRange(ctx, r.youtubeListKey(roomID), 0, -1).Result()
}
