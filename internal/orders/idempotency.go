package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lokmanguedri/motivex/internal/redisx"
)

// Idempotency maps a client Idempotency-Key to the order it created. A key
// is claimed before the order is written, so concurrent retries of one
// checkout cannot both create it.
type Idempotency interface {
	// Claim reserves key for this request. When the key is already taken it
	// returns the order id stored for it, or "" while that request runs.
	Claim(ctx context.Context, key string) (orderID string, claimed bool, err error)
	// Complete stores the order created under a claimed key.
	Complete(ctx context.Context, key, orderID string) error
	// Release drops a claim whose checkout failed.
	Release(ctx context.Context, key string) error
}

// pendingMarker holds a claimed key until its order id is known.
const pendingMarker = "pending"

type RedisIdempotency struct {
	Redis redis.Cmdable
}

func idemRedisKey(key string) string { return fmt.Sprintf(redisx.KeyIdemOrderCreate, key) }

func (r RedisIdempotency) Claim(ctx context.Context, key string) (string, bool, error) {
	k := idemRedisKey(key)
	ok, err := r.Redis.SetNX(ctx, k, pendingMarker, redisx.TTLIdempotency).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := r.Redis.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired or released between the two calls
		return r.Claim(ctx, key)
	}
	if err != nil {
		return "", false, err
	}
	if v == pendingMarker {
		return "", false, nil
	}
	return v, false, nil
}

func (r RedisIdempotency) Complete(ctx context.Context, key, orderID string) error {
	return r.Redis.Set(ctx, idemRedisKey(key), orderID, redisx.TTLIdempotency).Err()
}

func (r RedisIdempotency) Release(ctx context.Context, key string) error {
	return r.Redis.Del(ctx, idemRedisKey(key)).Err()
}
