package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// quotaScript evicts entries older than the window, then records the call
// only if the window still has room, so denied calls consume nothing.
var quotaScript = redis.NewScript(`
	redis.call("zremrangebyscore", KEYS[1], "-inf", ARGV[1])
	if redis.call("zcard", KEYS[1]) < tonumber(ARGV[3]) then
		redis.call("zadd", KEYS[1], ARGV[2], ARGV[4])
		redis.call("pexpire", KEYS[1], ARGV[5])
		return 1
	end
	return 0
`)

// Quota caps provider calls across every worker process using a sliding
// window stored in a Redis sorted set.
type Quota interface {
	// Allow records one call against key and reports whether it fits the window.
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
	Window() time.Duration
}

type slidingWindowQuota struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
	member func() string
}

// NewQuota returns a Redis-backed sliding-window quota. limit is the
// maximum number of calls allowed per window for a given key.
func NewQuota(client *redis.Client, limit int, window time.Duration) Quota {
	return &slidingWindowQuota{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
		member: uuid.NewString,
	}
}

func (q *slidingWindowQuota) Limit() int            { return q.limit }
func (q *slidingWindowQuota) Window() time.Duration { return q.window }

func quotaKey(key string) string { return "quota:" + key }

func (q *slidingWindowQuota) Allow(ctx context.Context, key string) (bool, error) {
	now := q.now().UnixNano()
	windowStart := now - q.window.Nanoseconds()

	allowed, err := quotaScript.Run(ctx, q.client, []string{quotaKey(key)},
		strconv.FormatInt(windowStart, 10),
		strconv.FormatInt(now, 10),
		strconv.Itoa(q.limit),
		strconv.FormatInt(now, 10)+"-"+q.member(),
		strconv.FormatInt((q.window*2).Milliseconds(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("quota check for %q: %w", key, err)
	}
	return allowed == 1, nil
}
