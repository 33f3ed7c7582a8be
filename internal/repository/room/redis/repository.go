package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc                         *redis.Client
	logger                     *slog.Logger
	roomTTL                    time.Duration
	maxScoreScript             string
	minScoreScript             string
	deleteKeysWithPrefixScript string
}

func NewRepo(rc *redis.Client, logger *slog.Logger, roomTTL time.Duration) *repo {
	return &repo{
		rc:      rc,
		logger:  logger,
		roomTTL: roomTTL,
		maxScoreScript: rc.ScriptLoad(context.Background(), `
			local maxScore = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = 1
			if #maxScore > 0 then
				nextScore = tonumber(maxScore[2]) + 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`).Val(),
		minScoreScript: rc.ScriptLoad(context.Background(), `
			local minScore = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
			local nextScore = -1
			if #minScore > 0 then
				nextScore = tonumber(minScore[2]) - 1
			end
			redis.call('ZADD', KEYS[1], nextScore, ARGV[1])
			return nextScore
		`).Val(),
		deleteKeysWithPrefixScript: rc.ScriptLoad(context.Background(), `
			local pattern = ARGV[1]
			local cursor = "0"
			local count = 0

			repeat
				local result = redis.call('SCAN', cursor, 'MATCH', pattern)
				cursor = result[1]
				local keys = result[2]

				for i, key in ipairs(keys) do
					redis.call('DEL', key)
					count = count + 1
				end
			until cursor == "0"

			return count
		`).Val(),
	}
}

func (r repo) roomKey(roomID, suffix string) string {
	return "room:" + roomID + ":" + suffix
}

// appendToList adds a member behind the current back of an ordered set.
func (r repo) appendToList(ctx context.Context, c redis.Scripter, key string, value any) {
	c.EvalSha(ctx, r.maxScoreScript, []string{key}, value)
}

// prependToList adds a member in front of the current front of an ordered set.
func (r repo) prependToList(ctx context.Context, c redis.Scripter, key string, value any) {
	c.EvalSha(ctx, r.minScoreScript, []string{key}, value)
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return nil
}

// DeleteRoom removes every key belonging to the room.
func (r repo) DeleteRoom(ctx context.Context, roomID string) error {
	r.logger.DebugContext(ctx, "called", "room_id", roomID)
	if err := r.rc.EvalSha(ctx, r.deleteKeysWithPrefixScript, []string{}, "room:"+roomID+":*").Err(); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return err
	}

	return nil
}
