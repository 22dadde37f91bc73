package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lokmanguedri/motivex/internal/redisx"
)

// Redis shares counters between replicas. A redis failure lets the request
// through.
type Redis struct {
	rdb redis.Cmdable
	cfg Config
	log zerolog.Logger
}

// hit counts one request and starts the window on the first, in one round
// trip so a counter is never left without an expiry.
var hit = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

func NewRedis(rdb redis.Cmdable, cfg Config, log zerolog.Logger) *Redis {
	return &Redis{rdb: rdb, cfg: cfg, log: log}
}

func (r *Redis) Allow(ctx context.Context, key string) bool {
	k := fmt.Sprintf(redisx.KeyRateLimit, r.cfg.Scope, key)
	n, err := hit.Run(ctx, r.rdb, []string{k}, r.cfg.Window.Milliseconds()).Int64()
	if err != nil {
		r.log.Warn().Err(err).Str("key", k).Msg("rate limit check failed, allowing")
		return true
	}
	return n <= int64(r.cfg.Limit)
}

func (r *Redis) Window() time.Duration { return r.cfg.Window }
