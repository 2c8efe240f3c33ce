package cursor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisClient is the subset of *redis.Client used by Redis.
type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// advanceScript stores ARGV[1] only if it is later than the current value.
var advanceScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if (not cur) or tonumber(ARGV[1]) > tonumber(cur) then
	redis.call('SET', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// Redis keeps the position as Unix seconds under a single key, for
// deployments that share one cursor across hosts without a shared database.
type Redis struct {
	client RedisClient
	key    string
}

// NewRedis returns a Cursor stored at key.
func NewRedis(client RedisClient, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (r *Redis) Load(ctx context.Context) (time.Time, bool, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, eris.Wrapf(err, "cursor: redis get %s", r.key)
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, eris.Wrapf(err, "cursor: parse redis value %q", v)
	}
	return time.Unix(secs, 0).UTC(), true, nil
}

func (r *Redis) Save(ctx context.Context, ts time.Time) error {
	err := advanceScript.Run(ctx, r.client, []string{r.key}, ts.Unix()).Err()
	return eris.Wrapf(err, "cursor: redis advance %s", r.key)
}

func (r *Redis) Reset(ctx context.Context, ts time.Time) error {
	err := r.client.Set(ctx, r.key, strconv.FormatInt(ts.Unix(), 10), 0).Err()
	return eris.Wrapf(err, "cursor: redis set %s", r.key)
}
